package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/contactform/backend/internal/database"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollector_RecordRequest(t *testing.T) {
	c := NewCollector(nil)
	c.RecordRequest("POST /api/contact", http.MethodPost, 201, 20*time.Millisecond)
	c.RecordRequest("POST /api/contact", http.MethodPost, 201, 10*time.Millisecond)
	c.RecordRequest("POST /api/contact", http.MethodPost, 400, time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(c.requestsTotal.WithLabelValues("POST /api/contact", "POST", "201")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.requestsTotal.WithLabelValues("POST /api/contact", "POST", "400")))
}

func TestCollector_DatabaseTelemetry(t *testing.T) {
	c := NewCollector(nil)

	c.ObserveAcquire(time.Millisecond, nil)
	c.ObserveAcquire(2*time.Second, &database.ConnectionError{Op: "acquire", Timeout: true, Err: errors.New("deadline")})
	c.ObserveAcquire(time.Millisecond, errors.New("refused"))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.acquireErrors.WithLabelValues("timeout")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.acquireErrors.WithLabelValues("error")))

	c.ObserveQuery("exec", time.Millisecond, 1, &database.QueryError{Code: "23505", Err: errors.New("dup")})
	c.ObserveQuery("query", time.Millisecond, 0, errors.New("boom"))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.queryErrors.WithLabelValues("exec", "23505")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.queryErrors.WithLabelValues("query", "unknown")))

	c.ObserveLeak(10 * time.Second)
	assert.Equal(t, 1.0, testutil.ToFloat64(c.leaks))

	c.RecordRateLimited()
	assert.Equal(t, 1.0, testutil.ToFloat64(c.rateLimited))
}

func TestCollector_HandlerExposesPoolStats(t *testing.T) {
	c := NewCollector(nil)
	c.RegisterPoolStats(func() database.Stats {
		return database.Stats{Leased: 3, Idle: 2, Total: 5, Max: 20}
	})

	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	body := rec.Body.String()
	assert.True(t, strings.Contains(body, "contactform_db_connections_leased 3"), body)
	assert.True(t, strings.Contains(body, "contactform_db_connections_max 20"), body)
}
