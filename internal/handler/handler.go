package handler

import (
	"net/http"
	"slices"
	"time"

	"github.com/contactform/backend/internal/apperr"
	"github.com/contactform/backend/internal/metrics"
	"github.com/contactform/backend/internal/ratelimit"
	"github.com/contactform/backend/internal/repository"
	"github.com/contactform/backend/internal/service"
	"github.com/contactform/backend/internal/validation"
)

// ContactBases lists the path prefixes every contact operation is served on.
var ContactBases = []string{"/api/contact", "/api/contacts", "/contact"}

// Options tunes the HTTP surface.
type Options struct {
	Production  bool
	CORSOrigins []string
	BodyLimit   int64
	MaxPageSize int
	// Limiter is nil to disable rate limiting.
	Limiter *ratelimit.Limiter
	// Metrics is nil to disable /metrics and request metrics.
	Metrics *metrics.Collector
}

type Handler struct {
	opts     Options
	errs     *ErrorHandler
	contacts *ContactHandler
	health   *HealthHandler
}

func New(contacts service.ContactService, store repository.Store, opts Options) *Handler {
	if opts.BodyLimit <= 0 {
		opts.BodyLimit = 10 << 20
	}
	if opts.MaxPageSize <= 0 {
		opts.MaxPageSize = 100
	}
	if len(opts.CORSOrigins) == 0 {
		opts.CORSOrigins = []string{"*"}
	}
	eh := &ErrorHandler{Production: opts.Production}
	return &Handler{
		opts:     opts,
		errs:     eh,
		contacts: NewContactHandler(contacts, eh, opts.MaxPageSize),
		health:   NewHealthHandler(store, eh, time.Now()),
	}
}

// Routes builds the router and wraps it in the middleware chain, outermost
// first: recovery, request id, security headers, CORS, rate limiter, body
// parser, request logger.
func (h *Handler) Routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /{$}", h.health.Root)
	mux.HandleFunc("GET /health", h.health.Health)
	mux.HandleFunc("GET /health/db", h.health.Database)
	if h.opts.Metrics != nil {
		mux.Handle("GET /metrics", h.opts.Metrics.Handler())
	}

	create := h.Validate(validation.ContactSchema, http.HandlerFunc(h.contacts.Create))
	for _, base := range ContactBases {
		mux.Handle("POST "+base, create)
		mux.HandleFunc("GET "+base, h.contacts.List)
		mux.HandleFunc("GET "+base+"/{id}", h.contacts.Get)
	}

	mux.HandleFunc("/", h.NotFound)

	var next http.Handler = mux
	next = h.RequestLogger(next)
	next = h.ParseBody(next)
	if h.opts.Limiter != nil {
		next = h.RateLimit(h.opts.Limiter)(next)
	}
	next = h.CORS(next)
	next = SecurityHeaders(next)
	next = RequestID(next)
	next = h.Recover(next)
	return next
}

// NotFound is the fallback for every unmatched method and path.
func (h *Handler) NotFound(w http.ResponseWriter, r *http.Request) {
	h.errs.Write(w, r, apperr.RouteNotFound(r.URL.Path))
}

// CORS applies the configured origin allow-list. "*" admits every origin;
// the request origin is echoed back so credentials stay usable.
func (h *Handler) CORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		hdr := w.Header()
		hdr.Add("Vary", "Origin")
		if origin != "" && h.originAllowed(origin) {
			hdr.Set("Access-Control-Allow-Origin", origin)
			hdr.Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			hdr.Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Request-ID")
			hdr.Set("Access-Control-Allow-Credentials", "true")
		}

		if r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != "" {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (h *Handler) originAllowed(origin string) bool {
	return slices.Contains(h.opts.CORSOrigins, "*") || slices.Contains(h.opts.CORSOrigins, origin)
}
