package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgerrcode"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// SQLite is an embedded store for local development and tests. It follows
// the same lease and drain contract as Pool, over a single connection.
type SQLite struct {
	db             *sql.DB
	acquireTimeout time.Duration
	telemetry      Telemetry

	mu     sync.Mutex
	closed bool
	once   sync.Once
}

// OpenSQLite opens (or creates) the database at path. Use ":memory:" for a
// throwaway store.
func OpenSQLite(ctx context.Context, path string, acquireTimeout time.Duration, opts ...Option) (*SQLite, error) {
	if path == "" {
		return nil, errors.New("sqlite: path is required")
	}
	if acquireTimeout <= 0 {
		return nil, fmt.Errorf("sqlite: acquire timeout must be positive, got %s", acquireTimeout)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open: %w", err)
	}
	// One writer; an in-memory database also lives only as long as its
	// single connection.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite: enable foreign keys: %w", err)
	}
	o := buildOptions(opts)
	return &SQLite{db: db, acquireTimeout: acquireTimeout, telemetry: o.telemetry}, nil
}

// Do leases the connection for fn. fn reports the number of rows it touched.
func (s *SQLite) Do(ctx context.Context, op, query string, fn func(ctx context.Context, conn *sql.Conn) (int64, error)) error {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return newAcquireError(ErrPoolClosed)
	}

	start := time.Now()
	actx, cancel := context.WithTimeout(ctx, s.acquireTimeout)
	conn, err := s.db.Conn(actx)
	cancel()
	s.telemetry.ObserveAcquire(time.Since(start), err)
	if err != nil {
		return newAcquireError(err)
	}
	defer conn.Close()

	start = time.Now()
	rows, err := fn(ctx, conn)
	d := time.Since(start)
	if errors.Is(err, sql.ErrNoRows) {
		s.telemetry.ObserveQuery(op, d, 0, nil)
		return err
	}
	s.telemetry.ObserveQuery(op, d, rows, err)
	if err != nil {
		slog.Error("query error", "op", op, "sql", query, "duration_ms", d.Milliseconds(), "error", err)
		return wrapSQLiteError(query, err)
	}
	slog.Debug("executed query", "op", op, "sql", query, "duration_ms", d.Milliseconds(), "rows", rows)
	return nil
}

// Exec runs a statement that returns no rows.
func (s *SQLite) Exec(ctx context.Context, query string, args ...any) error {
	return s.Do(ctx, "exec", query, func(ctx context.Context, conn *sql.Conn) (int64, error) {
		res, err := conn.ExecContext(ctx, query, args...)
		if err != nil {
			return 0, err
		}
		return res.RowsAffected()
	})
}

// HealthCheck performs a round trip and returns the store's clock.
func (s *SQLite) HealthCheck(ctx context.Context) (time.Time, error) {
	const query = "SELECT strftime('%Y-%m-%dT%H:%M:%fZ', 'now')"
	var raw string
	err := s.Do(ctx, "query_one", query, func(ctx context.Context, conn *sql.Conn) (int64, error) {
		return 1, conn.QueryRowContext(ctx, query).Scan(&raw)
	})
	if err != nil {
		return time.Time{}, err
	}
	return ParseSQLiteTime(raw)
}

// Drain refuses new work and closes the database once in-flight statements
// finish. Later calls return nil.
func (s *SQLite) Drain(ctx context.Context) error {
	var err error
	s.once.Do(func() {
		s.mu.Lock()
		s.closed = true
		s.mu.Unlock()

		done := make(chan error, 1)
		go func() { done <- s.db.Close() }()
		select {
		case err = <-done:
			slog.Info("sqlite store closed")
		case <-ctx.Done():
			err = fmt.Errorf("sqlite: drain: %w", ctx.Err())
		}
	})
	return err
}

// ParseSQLiteTime parses timestamps written by strftime('%Y-%m-%dT%H:%M:%fZ').
func ParseSQLiteTime(raw string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("sqlite: parse timestamp %q: %w", raw, err)
	}
	return t, nil
}

// sqliteCodes normalises extended SQLite result codes to SQLSTATE.
var sqliteCodes = map[int]string{
	sqlite3.SQLITE_CONSTRAINT_UNIQUE:     pgerrcode.UniqueViolation,
	sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY: pgerrcode.UniqueViolation,
	sqlite3.SQLITE_CONSTRAINT_FOREIGNKEY: pgerrcode.ForeignKeyViolation,
	sqlite3.SQLITE_CONSTRAINT_NOTNULL:    pgerrcode.NotNullViolation,
	sqlite3.SQLITE_CONSTRAINT_CHECK:      pgerrcode.CheckViolation,
}

func wrapSQLiteError(query string, err error) error {
	var se *sqlite.Error
	if !errors.As(err, &se) {
		return err
	}
	code, ok := sqliteCodes[se.Code()]
	if !ok && se.Code()&0xff == sqlite3.SQLITE_CONSTRAINT {
		// Primary code only; fall back to the message.
		switch msg := se.Error(); {
		case strings.Contains(msg, "UNIQUE"):
			code, ok = pgerrcode.UniqueViolation, true
		case strings.Contains(msg, "FOREIGN KEY"):
			code, ok = pgerrcode.ForeignKeyViolation, true
		case strings.Contains(msg, "NOT NULL"):
			code, ok = pgerrcode.NotNullViolation, true
		}
	}
	if !ok {
		code = pgerrcode.InternalError
	}
	return &QueryError{Code: code, SQL: query, Err: err}
}
