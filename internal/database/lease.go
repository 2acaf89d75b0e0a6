package database

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Lease is exclusive use of one pooled connection. It owns the raw
// connection, arms a leak timer on acquisition and disarms it on Release.
// A Lease must not be shared between goroutines.
type Lease struct {
	pool       *Pool
	conn       *pgxpool.Conn
	acquiredAt time.Time
	leakTimer  *time.Timer
	lastQuery  atomic.Pointer[string]
	release    sync.Once
}

func newLease(p *Pool, conn *pgxpool.Conn) *Lease {
	l := &Lease{pool: p, conn: conn, acquiredAt: time.Now()}
	if p.cfg.LeakThreshold > 0 {
		l.leakTimer = time.AfterFunc(p.cfg.LeakThreshold, l.reportLeak)
	}
	return l
}

func (l *Lease) reportLeak() {
	held := time.Since(l.acquiredAt)
	attrs := []any{"held_for", held.String(), "threshold", l.pool.cfg.LeakThreshold.String()}
	if q := l.lastQuery.Load(); q != nil {
		attrs = append(attrs, "last_query", *q)
	}
	slog.Error("connection checked out past leak threshold", attrs...)
	l.pool.telemetry.ObserveLeak(held)
}

func (l *Lease) remember(sql string) { l.lastQuery.Store(&sql) }

// Query runs sql on the leased connection.
func (l *Lease) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	l.remember(sql)
	return l.conn.Query(ctx, sql, args...)
}

// QueryRow runs sql on the leased connection and returns a single row.
func (l *Lease) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	l.remember(sql)
	return l.conn.QueryRow(ctx, sql, args...)
}

// Exec runs sql on the leased connection without returning rows.
func (l *Lease) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	l.remember(sql)
	return l.conn.Exec(ctx, sql, args...)
}

// Begin starts a transaction on the leased connection.
func (l *Lease) Begin(ctx context.Context) (pgx.Tx, error) {
	l.remember("BEGIN")
	return l.conn.Begin(ctx)
}

// Release returns the connection to the pool. Calling it more than once is
// a no-op.
func (l *Lease) Release() {
	l.release.Do(func() {
		if l.leakTimer != nil {
			l.leakTimer.Stop()
		}
		l.conn.Release()
		l.pool.leave()
	})
}
