package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/contactform/backend/internal/apperr"
	"github.com/contactform/backend/internal/database"
)

const internalMessage = "Internal server error"

// ErrorHandler turns any error into the JSON error envelope.
type ErrorHandler struct {
	// Production hides stack traces and the text of unanticipated errors.
	Production bool
}

type errorResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	Stack   string `json:"stack,omitempty"`
}

// Write logs err and sends it to the client.
func (eh *ErrorHandler) Write(w http.ResponseWriter, r *http.Request, err error) {
	ae := eh.translate(err)

	attrs := []any{
		"kind", ae.Kind.String(),
		"status", ae.Status,
		"method", r.Method,
		"path", r.URL.Path,
		"remote_addr", r.RemoteAddr,
		"error", err,
	}
	if ae.Status >= http.StatusInternalServerError {
		slog.ErrorContext(r.Context(), "request failed", attrs...)
	} else {
		slog.WarnContext(r.Context(), "request rejected", attrs...)
	}

	resp := errorResponse{
		Status:  ae.Classification(),
		Message: ae.Message,
	}
	if !eh.Production {
		resp.Stack = ae.Stack()
	}
	writeJSON(w, ae.Status, resp)
}

// translate maps err onto the error taxonomy. Store errors are matched
// against the SQLSTATE table; anything unrecognised is internal.
func (eh *ErrorHandler) translate(err error) *apperr.Error {
	if ae, ok := apperr.As(err); ok {
		return ae
	}

	var qe *database.QueryError
	if errors.As(err, &qe) {
		if ae, ok := apperr.FromStoreCode(qe.Code, err); ok {
			return ae
		}
		return apperr.Internal(eh.internalText(err), err)
	}

	var ce *database.ConnectionError
	if errors.As(err, &ce) {
		status := http.StatusInternalServerError
		if ce.Timeout {
			status = http.StatusServiceUnavailable
		}
		return apperr.WithStatus(apperr.KindConnection, status, "Database connection unavailable", err)
	}

	var mbe *http.MaxBytesError
	if errors.As(err, &mbe) {
		return apperr.Wrap(apperr.KindPayloadTooLarge, "Request entity too large", err)
	}

	return apperr.Internal(eh.internalText(err), err)
}

func (eh *ErrorHandler) internalText(err error) string {
	if eh.Production || err == nil {
		return internalMessage
	}
	return err.Error()
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to write response", "error", err)
	}
}
