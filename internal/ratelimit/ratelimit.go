// Package ratelimit implements fixed-window request counting per client key.
package ratelimit

import (
	"context"
	"fmt"
	"time"
)

// Store counts hits for a key within the current window.
type Store interface {
	// Increment records one hit and returns the hit count of the window the
	// hit landed in, together with the time that window resets.
	Increment(ctx context.Context, key string, window time.Duration) (count int64, resetAt time.Time, err error)
}

// Result describes one admission decision.
type Result struct {
	Allowed   bool
	Limit     int
	Remaining int
	ResetAt   time.Time
}

// RetryAfter returns how long the client should wait before retrying.
func (r Result) RetryAfter(now time.Time) time.Duration {
	d := r.ResetAt.Sub(now)
	if d < 0 {
		return 0
	}
	return d
}

// Limiter admits at most Limit hits per key per window.
type Limiter struct {
	store  Store
	limit  int
	window time.Duration
}

// New creates a Limiter. limit and window must be positive.
func New(store Store, limit int, window time.Duration) (*Limiter, error) {
	if limit < 1 {
		return nil, fmt.Errorf("ratelimit: limit must be >= 1, got %d", limit)
	}
	if window <= 0 {
		return nil, fmt.Errorf("ratelimit: window must be positive, got %s", window)
	}
	return &Limiter{store: store, limit: limit, window: window}, nil
}

// Limit returns the configured maximum hits per window.
func (l *Limiter) Limit() int { return l.limit }

// Window returns the configured window length.
func (l *Limiter) Window() time.Duration { return l.window }

// Allow records a hit for key and reports whether it is within the limit.
func (l *Limiter) Allow(ctx context.Context, key string) (Result, error) {
	count, resetAt, err := l.store.Increment(ctx, key, l.window)
	if err != nil {
		return Result{}, fmt.Errorf("ratelimit: increment %q: %w", key, err)
	}
	remaining := l.limit - int(count)
	if remaining < 0 {
		remaining = 0
	}
	return Result{
		Allowed:   count <= int64(l.limit),
		Limit:     l.limit,
		Remaining: remaining,
		ResetAt:   resetAt,
	}, nil
}
