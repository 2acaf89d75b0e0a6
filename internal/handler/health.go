package handler

import (
	"io"
	"net/http"
	"time"

	"github.com/contactform/backend/internal/repository"
)

// HealthHandler serves liveness and readiness probes.
type HealthHandler struct {
	store   repository.Store
	errs    *ErrorHandler
	started time.Time
}

func NewHealthHandler(store repository.Store, errs *ErrorHandler, started time.Time) *HealthHandler {
	return &HealthHandler{store: store, errs: errs, started: started}
}

type healthResponse struct {
	Status    string    `json:"status"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
	Uptime    *float64  `json:"uptime,omitempty"`
}

// Root handles GET /.
func (h *HealthHandler) Root(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = io.WriteString(w, "Landing page backend is running")
}

// Health handles GET /health. It never touches the store.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	uptime := time.Since(h.started).Seconds()
	writeJSON(w, http.StatusOK, healthResponse{
		Status:    "success",
		Message:   "Server is healthy",
		Timestamp: time.Now().UTC(),
		Uptime:    &uptime,
	})
}

// Database handles GET /health/db with a store round trip.
func (h *HealthHandler) Database(w http.ResponseWriter, r *http.Request) {
	now, err := h.store.HealthCheck(r.Context())
	if err != nil {
		h.errs.Write(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, healthResponse{
		Status:    "success",
		Message:   "Database is healthy",
		Timestamp: now,
	})
}
