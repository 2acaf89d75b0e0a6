package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
)

// ErrPoolClosed is returned by acquisitions after Drain has started.
var ErrPoolClosed = errors.New("database: pool is draining")

// ConnectionError reports a failure to obtain a connection.
type ConnectionError struct {
	Op string
	// Timeout is set when the acquisition gave up waiting, either because the
	// pool was exhausted or because it is shutting down.
	Timeout bool
	Err     error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("database: %s: %v", e.Op, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// QueryError reports a statement rejected by the store. Code is a SQLSTATE
// code regardless of the driver that produced it.
type QueryError struct {
	Code string
	SQL  string
	Err  error
}

func (e *QueryError) Error() string {
	return fmt.Sprintf("database: query failed (%s): %v", e.Code, e.Err)
}

func (e *QueryError) Unwrap() error { return e.Err }

// wrapPgError turns a Postgres server error into a QueryError and leaves every
// other error untouched.
func wrapPgError(sql string, err error) error {
	if err == nil {
		return nil
	}
	var qe *QueryError
	if errors.As(err, &qe) {
		return err
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return &QueryError{Code: pgErr.Code, SQL: sql, Err: err}
	}
	return err
}

func newAcquireError(err error) *ConnectionError {
	return &ConnectionError{
		Op:      "acquire",
		Timeout: errors.Is(err, context.DeadlineExceeded) || errors.Is(err, ErrPoolClosed),
		Err:     err,
	}
}
