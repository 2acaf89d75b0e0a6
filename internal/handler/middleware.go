package handler

import (
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/contactform/backend/internal/apperr"
	"github.com/contactform/backend/internal/logging"
	"github.com/contactform/backend/internal/ratelimit"
	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

const rateLimitMessage = "Too many requests from this IP, please try again later"

// SecurityHeaders adds security response headers (CSP, X-Frame-Options, etc.)
func SecurityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("X-Frame-Options", "DENY")
		h.Set("Referrer-Policy", "strict-origin-when-cross-origin")
		h.Set("X-XSS-Protection", "0")
		h.Set("Permissions-Policy", "camera=(), microphone=(), geolocation=()")
		h.Set("Content-Security-Policy", "default-src 'self'; frame-ancestors 'none'")
		h.Set("Strict-Transport-Security", "max-age=63072000; includeSubDomains")
		next.ServeHTTP(w, r)
	})
}

// RequestID tags the request with X-Request-ID, generating one when the
// client sent none, and makes it available to every log record.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if id == "" || len(id) > 128 {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", id)
		next.ServeHTTP(w, r.WithContext(logging.WithRequestID(r.Context(), id)))
	})
}

// Recover converts a panic in any later handler into a 500 response. Once the
// handler has committed a response the panic is only logged.
func (h *Handler) Recover(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sr := &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			if rec == http.ErrAbortHandler {
				panic(rec)
			}
			err := fmt.Errorf("panic: %v", rec)
			if sr.wroteHeader {
				slog.ErrorContext(r.Context(), "panic after response was committed",
					"status", sr.statusCode, "path", r.URL.Path, "error", err)
				return
			}
			h.errs.Write(sr, r, apperr.Internal(internalMessage, err))
		}()
		next.ServeHTTP(sr, r)
	})
}

// rateLimited reports whether path counts against the limiter. Root, health
// and metrics endpoints are exempt.
func rateLimited(path string) bool {
	if strings.HasPrefix(path, "/api/") {
		return true
	}
	return path == "/contact" || strings.HasPrefix(path, "/contact/")
}

// RateLimit admits at most the limiter's quota per client IP and window.
// When the backing store fails the request is let through.
func (h *Handler) RateLimit(l *ratelimit.Limiter) func(http.Handler) http.Handler {
	rejectLog := rate.Sometimes{Interval: 10 * time.Second}
	storeLog := rate.Sometimes{Interval: 10 * time.Second}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !rateLimited(r.URL.Path) {
				next.ServeHTTP(w, r)
				return
			}

			ip := clientIP(r, 1)
			res, err := l.Allow(r.Context(), ip)
			if err != nil {
				storeLog.Do(func() {
					slog.WarnContext(r.Context(), "rate limiter unavailable, admitting request", "error", err)
				})
				next.ServeHTTP(w, r)
				return
			}

			now := time.Now()
			reset := res.RetryAfter(now)
			hdr := w.Header()
			hdr.Set("RateLimit-Limit", strconv.Itoa(res.Limit))
			hdr.Set("RateLimit-Remaining", strconv.Itoa(res.Remaining))
			hdr.Set("RateLimit-Reset", retryAfterSeconds(reset))

			if !res.Allowed {
				if h.opts.Metrics != nil {
					h.opts.Metrics.RecordRateLimited()
				}
				rejectLog.Do(func() {
					slog.WarnContext(r.Context(), "rate limit exceeded", "ip", ip, "reset_in", reset.String())
				})
				hdr.Set("Retry-After", retryAfterSeconds(reset))
				h.errs.Write(w, r, apperr.TooManyRequests(rateLimitMessage))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func retryAfterSeconds(d time.Duration) string {
	secs := int((d + time.Second - 1) / time.Second)
	if secs < 1 {
		secs = 1
	}
	return strconv.Itoa(secs)
}

// clientIP extracts the real client IP, reading from the rightmost trusted
// proxy position in X-Forwarded-For to prevent spoofing.
func clientIP(r *http.Request, trustedProxyCount int) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" && trustedProxyCount > 0 {
		parts := strings.Split(xff, ",")
		// The rightmost entry added by our infrastructure is at
		// index len(parts) - trustedProxyCount.
		idx := len(parts) - trustedProxyCount
		if idx >= 0 && idx < len(parts) {
			return strings.TrimSpace(parts[idx])
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
