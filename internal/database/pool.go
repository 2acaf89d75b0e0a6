// Package database owns the connection pool and the lease discipline every
// store access goes through.
package database

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Pool is a bounded PostgreSQL connection pool. Every operation acquires a
// Lease and releases it on every exit path.
type Pool struct {
	pool      *pgxpool.Pool
	cfg       PoolConfig
	telemetry Telemetry

	mu     sync.Mutex
	active int
	closed bool
	idle   chan struct{}

	drainOnce sync.Once
}

// New validates cfg and builds the pool. Connections are opened lazily, so a
// store that is down at startup does not fail New; use HealthCheck for that.
func New(ctx context.Context, cfg PoolConfig, opts ...Option) (*Pool, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	pcfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("pool: parse DSN: %w", err)
	}
	pcfg.MaxConns = cfg.MaxActive
	pcfg.MinConns = cfg.MinIdle
	pcfg.MaxConnIdleTime = cfg.IdleTimeout
	pcfg.ConnConfig.ConnectTimeout = cfg.AcquireTimeout
	if cfg.HealthCheckPeriod > 0 {
		pcfg.HealthCheckPeriod = cfg.HealthCheckPeriod
	}

	pool, err := pgxpool.NewWithConfig(ctx, pcfg)
	if err != nil {
		return nil, fmt.Errorf("pool: create: %w", err)
	}
	o := buildOptions(opts)
	return &Pool{pool: pool, cfg: cfg, telemetry: o.telemetry}, nil
}

// Config returns the bounds the pool was built with.
func (p *Pool) Config() PoolConfig { return p.cfg }

func (p *Pool) enter() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return false
	}
	p.active++
	return true
}

func (p *Pool) leave() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.active--
	if p.active == 0 && p.idle != nil {
		close(p.idle)
		p.idle = nil
	}
}

// Acquire leases a connection, queueing for at most AcquireTimeout. The
// caller must Release the lease.
func (p *Pool) Acquire(ctx context.Context) (*Lease, error) {
	if !p.enter() {
		return nil, newAcquireError(ErrPoolClosed)
	}
	start := time.Now()
	actx, cancel := context.WithTimeout(ctx, p.cfg.AcquireTimeout)
	defer cancel()

	conn, err := p.pool.Acquire(actx)
	p.telemetry.ObserveAcquire(time.Since(start), err)
	if err != nil {
		p.leave()
		slog.Warn("connection acquisition failed", "wait", time.Since(start).String(), "error", err)
		return nil, newAcquireError(err)
	}
	return newLease(p, conn), nil
}

// run executes fn on a fresh lease and reports the outcome.
func (p *Pool) run(ctx context.Context, op, sql string, fn func(context.Context, *Lease) (int64, error)) error {
	lease, err := p.Acquire(ctx)
	if err != nil {
		return err
	}
	defer lease.Release()

	if p.cfg.QueryTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.cfg.QueryTimeout)
		defer cancel()
	}

	start := time.Now()
	rows, err := fn(ctx, lease)
	d := time.Since(start)
	if errors.Is(err, pgx.ErrNoRows) {
		p.telemetry.ObserveQuery(op, d, 0, nil)
		return err
	}
	p.telemetry.ObserveQuery(op, d, rows, err)
	if err != nil {
		slog.Error("query error", "op", op, "sql", sql, "duration_ms", d.Milliseconds(), "error", err)
		return wrapPgError(sql, err)
	}
	slog.Debug("executed query", "op", op, "sql", sql, "duration_ms", d.Milliseconds(), "rows", rows)
	return err
}

// Exec runs a statement that returns no rows.
func (p *Pool) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	var tag pgconn.CommandTag
	err := p.run(ctx, "exec", sql, func(ctx context.Context, l *Lease) (int64, error) {
		var err error
		tag, err = l.Exec(ctx, sql, args...)
		return tag.RowsAffected(), err
	})
	return tag, err
}

// Query runs sql on p and collects every row with fn.
func Query[T any](ctx context.Context, p *Pool, sql string, args []any, fn pgx.RowToFunc[T]) ([]T, error) {
	var out []T
	err := p.run(ctx, "query", sql, func(ctx context.Context, l *Lease) (int64, error) {
		rows, err := l.Query(ctx, sql, args...)
		if err != nil {
			return 0, err
		}
		out, err = pgx.CollectRows(rows, fn)
		return int64(len(out)), err
	})
	return out, err
}

// QueryOne runs sql on p and collects exactly one row with fn. An empty
// result returns pgx.ErrNoRows unwrapped.
func QueryOne[T any](ctx context.Context, p *Pool, sql string, args []any, fn pgx.RowToFunc[T]) (T, error) {
	var out T
	err := p.run(ctx, "query_one", sql, func(ctx context.Context, l *Lease) (int64, error) {
		rows, err := l.Query(ctx, sql, args...)
		if err != nil {
			return 0, err
		}
		out, err = pgx.CollectOneRow(rows, fn)
		if err != nil {
			return 0, err
		}
		return 1, nil
	})
	return out, err
}

// WithTransaction hands one leased connection, inside a transaction, to fn.
// The transaction commits when fn returns nil and rolls back otherwise,
// including when fn panics. The lease is released in every case.
func (p *Pool) WithTransaction(ctx context.Context, fn func(ctx context.Context, tx pgx.Tx) error) error {
	lease, err := p.Acquire(ctx)
	if err != nil {
		return err
	}
	defer lease.Release()

	start := time.Now()
	tx, err := lease.Begin(ctx)
	if err != nil {
		return wrapPgError("BEGIN", err)
	}
	defer func() {
		if r := recover(); r != nil {
			_ = tx.Rollback(context.WithoutCancel(ctx))
			panic(r)
		}
	}()

	if err := fn(ctx, tx); err != nil {
		if rbErr := tx.Rollback(context.WithoutCancel(ctx)); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
			slog.Warn("transaction rollback failed", "error", rbErr)
		}
		p.telemetry.ObserveQuery("transaction", time.Since(start), 0, err)
		return wrapPgError("", err)
	}
	err = tx.Commit(ctx)
	p.telemetry.ObserveQuery("transaction", time.Since(start), 0, err)
	return wrapPgError("COMMIT", err)
}

// HealthCheck performs a round trip and returns the store's clock.
func (p *Pool) HealthCheck(ctx context.Context) (time.Time, error) {
	const sql = "SELECT NOW()"
	return QueryOne(ctx, p, sql, nil, pgx.RowTo[time.Time])
}

// Stats reports lease and connection counts.
func (p *Pool) Stats() Stats {
	s := p.pool.Stat()
	return Stats{
		Leased: s.AcquiredConns(),
		Idle:   s.IdleConns(),
		Total:  s.TotalConns(),
		Max:    s.MaxConns(),
	}
}

// Drain stops new acquisitions, waits for outstanding leases to be released
// or for ctx to end, then closes every pooled connection. Only the first call
// does anything; later calls return nil.
func (p *Pool) Drain(ctx context.Context) error {
	first := false
	p.drainOnce.Do(func() { first = true })
	if !first {
		return nil
	}

	p.mu.Lock()
	p.closed = true
	var wait chan struct{}
	if p.active > 0 {
		p.idle = make(chan struct{})
		wait = p.idle
	}
	outstanding := p.active
	p.mu.Unlock()

	if wait != nil {
		slog.Info("waiting for leased connections", "outstanding", outstanding)
		select {
		case <-wait:
		case <-ctx.Done():
			// Close blocks until the remaining leases come back.
			go p.pool.Close()
			return fmt.Errorf("pool: drain: %d leases outstanding: %w", p.outstanding(), ctx.Err())
		}
	}

	closed := make(chan struct{})
	go func() {
		p.pool.Close()
		close(closed)
	}()
	select {
	case <-closed:
		slog.Info("database pool closed")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("pool: drain: close: %w", ctx.Err())
	}
}

func (p *Pool) outstanding() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.active
}
