package database

import "time"

// Telemetry receives pool and query measurements.
type Telemetry interface {
	ObserveAcquire(wait time.Duration, err error)
	ObserveQuery(op string, d time.Duration, rows int64, err error)
	ObserveLeak(held time.Duration)
}

type nopTelemetry struct{}

func (nopTelemetry) ObserveAcquire(time.Duration, error)               {}
func (nopTelemetry) ObserveQuery(string, time.Duration, int64, error) {}
func (nopTelemetry) ObserveLeak(time.Duration)                        {}

// Stats is a point-in-time view of the pool.
type Stats struct {
	Leased int32
	Idle   int32
	Total  int32
	Max    int32
}

// Option configures a Pool or SQLite store.
type Option func(*options)

type options struct {
	telemetry Telemetry
}

// WithTelemetry routes measurements to t.
func WithTelemetry(t Telemetry) Option {
	return func(o *options) {
		if t != nil {
			o.telemetry = t
		}
	}
}

func buildOptions(opts []Option) options {
	o := options{telemetry: nopTelemetry{}}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
