// Package metrics exposes request, rate limiter and connection pool
// measurements in Prometheus format.
package metrics

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/contactform/backend/internal/database"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "contactform"

// Collector owns every metric the service exports.
type Collector struct {
	registry *prometheus.Registry

	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	rateLimited     prometheus.Counter

	acquireWait   prometheus.Histogram
	acquireErrors *prometheus.CounterVec
	queryDuration *prometheus.HistogramVec
	queryErrors   *prometheus.CounterVec
	leaks         prometheus.Counter
}

// NewCollector registers all metrics on registry. A nil registry gets a
// fresh one.
func NewCollector(registry *prometheus.Registry) *Collector {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}
	c := &Collector{
		registry: registry,
		requestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "requests_total",
				Help:      "HTTP requests by route pattern, method and status",
			},
			[]string{"route", "method", "status"},
		),
		requestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "request_duration_seconds",
				Help:      "HTTP request latency",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"route", "method"},
		),
		rateLimited: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "rate_limited_total",
			Help:      "Requests rejected by the rate limiter",
		}),
		acquireWait: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "db",
			Name:      "acquire_wait_seconds",
			Help:      "Time spent waiting for a pooled connection",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 14),
		}),
		acquireErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "db",
				Name:      "acquire_errors_total",
				Help:      "Failed connection acquisitions",
			},
			[]string{"reason"},
		),
		queryDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "db",
				Name:      "query_duration_seconds",
				Help:      "Query latency by operation",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"op"},
		),
		queryErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "db",
				Name:      "query_errors_total",
				Help:      "Failed queries by operation and SQLSTATE",
			},
			[]string{"op", "code"},
		),
		leaks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "db",
			Name:      "leaked_connections_total",
			Help:      "Connections held past the leak threshold",
		}),
	}

	registry.MustRegister(
		c.requestsTotal,
		c.requestDuration,
		c.rateLimited,
		c.acquireWait,
		c.acquireErrors,
		c.queryDuration,
		c.queryErrors,
		c.leaks,
	)
	return c
}

// Registry returns the underlying registry.
func (c *Collector) Registry() *prometheus.Registry { return c.registry }

// RegisterPoolStats exports gauges read from stats at scrape time.
func (c *Collector) RegisterPoolStats(stats func() database.Stats) {
	gauge := func(name, help string, read func(database.Stats) int32) prometheus.Collector {
		return prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "db",
			Name:      name,
			Help:      help,
		}, func() float64 { return float64(read(stats())) })
	}
	c.registry.MustRegister(
		gauge("connections_leased", "Connections currently checked out", func(s database.Stats) int32 { return s.Leased }),
		gauge("connections_idle", "Idle connections in the pool", func(s database.Stats) int32 { return s.Idle }),
		gauge("connections_total", "Open connections", func(s database.Stats) int32 { return s.Total }),
		gauge("connections_max", "Configured pool ceiling", func(s database.Stats) int32 { return s.Max }),
	)
}

// RecordRequest records one finished HTTP request.
func (c *Collector) RecordRequest(route, method string, status int, d time.Duration) {
	c.requestsTotal.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
	c.requestDuration.WithLabelValues(route, method).Observe(d.Seconds())
}

// RecordRateLimited counts one rejected request.
func (c *Collector) RecordRateLimited() { c.rateLimited.Inc() }

var _ database.Telemetry = (*Collector)(nil)

func (c *Collector) ObserveAcquire(wait time.Duration, err error) {
	c.acquireWait.Observe(wait.Seconds())
	if err == nil {
		return
	}
	reason := "error"
	var connErr *database.ConnectionError
	if errors.As(err, &connErr) && connErr.Timeout {
		reason = "timeout"
	}
	c.acquireErrors.WithLabelValues(reason).Inc()
}

func (c *Collector) ObserveQuery(op string, d time.Duration, _ int64, err error) {
	c.queryDuration.WithLabelValues(op).Observe(d.Seconds())
	if err == nil {
		return
	}
	code := "unknown"
	var qe *database.QueryError
	if errors.As(err, &qe) && qe.Code != "" {
		code = qe.Code
	}
	c.queryErrors.WithLabelValues(op, code).Inc()
}

func (c *Collector) ObserveLeak(time.Duration) { c.leaks.Inc() }

// Handler serves the registry for scraping.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
		ErrorHandling:     promhttp.ContinueOnError,
	})
}
