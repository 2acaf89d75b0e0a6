package handler

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/contactform/backend/internal/apperr"
	"github.com/contactform/backend/internal/database"
)

func TestErrorHandler_Translate(t *testing.T) {
	eh := &ErrorHandler{}
	tests := []struct {
		name     string
		err      error
		wantKind apperr.Kind
		wantCode int
		wantMsg  string
	}{
		{"operational passthrough", apperr.NotFound("Contact not found"), apperr.KindNotFound, 404, "Contact not found"},
		{"duplicate", &database.QueryError{Code: "23505", Err: errors.New("dup")}, apperr.KindConstraint, 400, "Duplicate field value entered"},
		{"foreign key", &database.QueryError{Code: "23503", Err: errors.New("fk")}, apperr.KindConstraint, 400, "Invalid reference"},
		{"wrapped store error", fmt.Errorf("repo: %w", &database.QueryError{Code: "22P02", Err: errors.New("syntax")}), apperr.KindConstraint, 400, "Invalid data format"},
		{"unknown code", &database.QueryError{Code: "XX000", Err: errors.New("internal")}, apperr.KindInternal, 500, ""},
		{"acquire timeout", &database.ConnectionError{Op: "acquire", Timeout: true, Err: errors.New("deadline")}, apperr.KindConnection, 503, ""},
		{"too large", &http.MaxBytesError{Limit: 10}, apperr.KindPayloadTooLarge, 413, "Request entity too large"},
		{"plain", errors.New("something odd"), apperr.KindInternal, 500, "something odd"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := eh.translate(tt.err)
			if got.Kind != tt.wantKind {
				t.Errorf("kind: want %s, got %s", tt.wantKind, got.Kind)
			}
			if got.Status != tt.wantCode {
				t.Errorf("status: want %d, got %d", tt.wantCode, got.Status)
			}
			if tt.wantMsg != "" && got.Message != tt.wantMsg {
				t.Errorf("message: want %q, got %q", tt.wantMsg, got.Message)
			}
		})
	}
}

func TestErrorHandler_ProductionHidesDetails(t *testing.T) {
	eh := &ErrorHandler{Production: true}
	rec := httptest.NewRecorder()
	eh.Write(rec, httptest.NewRequest("GET", "/x", nil), errors.New("secret dsn in message"))

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
	body := decode(t, rec)
	if body["message"] != "Internal server error" {
		t.Errorf("expected generic message, got %v", body["message"])
	}
	if _, ok := body["stack"]; ok {
		t.Error("stack must be omitted in production")
	}
}

func TestErrorHandler_DevelopmentIncludesStack(t *testing.T) {
	eh := &ErrorHandler{}
	rec := httptest.NewRecorder()
	eh.Write(rec, httptest.NewRequest("GET", "/x", nil), apperr.Validation("Name is required"))

	body := decode(t, rec)
	stack, _ := body["stack"].(string)
	if !strings.Contains(stack, "Name is required") {
		t.Errorf("expected stack trace, got %q", stack)
	}
}

// ---------------------------------------------------------------------------
// Body parsing
// ---------------------------------------------------------------------------

func TestParseBody_MalformedJSON(t *testing.T) {
	for _, body := range []string{`{"name":`, `[1,2]`, `{"a":1} trailing`} {
		rec := do(t, newRouter(nil, Options{}), http.MethodPost, "/api/contact", "application/json", body)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("%q: expected 400, got %d", body, rec.Code)
			continue
		}
		if got := decode(t, rec)["message"]; got != "Invalid request body" {
			t.Errorf("%q: expected Invalid request body, got %v", body, got)
		}
	}
}

func TestParseBody_TooLarge(t *testing.T) {
	router := newRouter(nil, Options{BodyLimit: 64})
	big := `{"name":"` + strings.Repeat("x", 200) + `"}`
	rec := do(t, router, http.MethodPost, "/api/contact", "application/json", big)

	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("expected 413, got %d", rec.Code)
	}
	if got := decode(t, rec)["status"]; got != "fail" {
		t.Errorf("expected status fail, got %v", got)
	}
}

func TestParseBody_UnknownContentTypeIsEmpty(t *testing.T) {
	rec := do(t, newRouter(nil, Options{}), http.MethodPost, "/api/contact", "text/plain", "name=Ada")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	if got := decode(t, rec)["message"]; got != "Name is required, Email is required, Message is required" {
		t.Errorf("unexpected message %v", got)
	}
}
