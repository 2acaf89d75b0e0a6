package database

import (
	"errors"
	"fmt"
	"time"
)

// PoolConfig holds the pool bounds and lease policy.
type PoolConfig struct {
	DSN string

	MinIdle   int32
	MaxActive int32

	// IdleTimeout closes connections that sat unused for this long.
	IdleTimeout time.Duration
	// AcquireTimeout bounds how long a caller queues for a connection.
	AcquireTimeout time.Duration
	// LeakThreshold is how long a lease may be held before it is reported.
	LeakThreshold time.Duration
	// QueryTimeout bounds statement execution. Zero disables it.
	QueryTimeout time.Duration

	HealthCheckPeriod time.Duration
}

// DefaultPoolConfig mirrors the defaults of the deployment environment.
func DefaultPoolConfig() PoolConfig {
	return PoolConfig{
		MinIdle:           2,
		MaxActive:         20,
		IdleTimeout:       30 * time.Second,
		AcquireTimeout:    2 * time.Second,
		LeakThreshold:     5 * time.Second,
		HealthCheckPeriod: time.Minute,
	}
}

// Validate reports the first invalid bound.
func (c PoolConfig) Validate() error {
	switch {
	case c.DSN == "":
		return errors.New("pool: DSN is required")
	case c.MaxActive < 1:
		return fmt.Errorf("pool: max active must be at least 1, got %d", c.MaxActive)
	case c.MinIdle < 0:
		return fmt.Errorf("pool: min idle must not be negative, got %d", c.MinIdle)
	case c.MinIdle > c.MaxActive:
		return fmt.Errorf("pool: min idle (%d) exceeds max active (%d)", c.MinIdle, c.MaxActive)
	case c.AcquireTimeout <= 0:
		return fmt.Errorf("pool: acquire timeout must be positive, got %s", c.AcquireTimeout)
	case c.IdleTimeout < 0, c.LeakThreshold < 0, c.QueryTimeout < 0, c.HealthCheckPeriod < 0:
		return errors.New("pool: durations must not be negative")
	}
	return nil
}
