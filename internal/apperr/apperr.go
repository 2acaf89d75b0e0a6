// Package apperr defines the operational error type returned to HTTP clients.
//
// Every error that reaches the response writer is either an *Error or is
// translated into one. The HTTP status decides the classification: "fail"
// for 4xx (the client's fault), "error" for everything else.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"runtime"
	"strconv"
	"strings"
)

// Kind identifies an entry of the error taxonomy.
type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindNotFound
	KindRouteNotFound
	KindConnection
	KindConstraint
	KindTooManyRequests
	KindPayloadTooLarge
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "ValidationError"
	case KindNotFound:
		return "NotFound"
	case KindRouteNotFound:
		return "RouteNotFound"
	case KindConnection:
		return "ConnectionError"
	case KindConstraint:
		return "ConstraintViolation"
	case KindTooManyRequests:
		return "TooManyRequests"
	case KindPayloadTooLarge:
		return "PayloadTooLarge"
	default:
		return "InternalError"
	}
}

// Status returns the default HTTP status for the kind.
func (k Kind) Status() int {
	switch k {
	case KindValidation, KindConstraint:
		return http.StatusBadRequest
	case KindNotFound, KindRouteNotFound:
		return http.StatusNotFound
	case KindConnection:
		return http.StatusServiceUnavailable
	case KindTooManyRequests:
		return http.StatusTooManyRequests
	case KindPayloadTooLarge:
		return http.StatusRequestEntityTooLarge
	default:
		return http.StatusInternalServerError
	}
}

// Error is an operational error carrying an HTTP status.
type Error struct {
	Kind    Kind
	Message string
	Status  int
	Err     error

	pcs []uintptr
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// Classification returns "fail" for 4xx statuses and "error" otherwise.
func (e *Error) Classification() string {
	return Classify(e.Status)
}

// Stack renders the call stack captured when the error was created.
func (e *Error) Stack() string {
	if len(e.pcs) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString(e.Error())
	frames := runtime.CallersFrames(e.pcs)
	for {
		f, more := frames.Next()
		b.WriteString("\n    at ")
		b.WriteString(f.Function)
		b.WriteString(" (")
		b.WriteString(f.File)
		b.WriteByte(':')
		b.WriteString(strconv.Itoa(f.Line))
		b.WriteByte(')')
		if !more {
			break
		}
	}
	return b.String()
}

// Classify derives the envelope status from an HTTP status code.
func Classify(status int) string {
	if status >= 400 && status < 500 {
		return "fail"
	}
	return "error"
}

func newError(kind Kind, status int, msg string, err error) *Error {
	pcs := make([]uintptr, 32)
	n := runtime.Callers(3, pcs)
	return &Error{Kind: kind, Message: msg, Status: status, Err: err, pcs: pcs[:n]}
}

// New creates an error of the given kind with the kind's default status.
func New(kind Kind, msg string) *Error {
	return newError(kind, kind.Status(), msg, nil)
}

// Wrap creates an error of the given kind that keeps err as its cause.
func Wrap(kind Kind, msg string, err error) *Error {
	return newError(kind, kind.Status(), msg, err)
}

// WithStatus creates an error with an explicit status, for kinds whose
// status depends on the cause (ConnectionError).
func WithStatus(kind Kind, status int, msg string, err error) *Error {
	return newError(kind, status, msg, err)
}

func Validation(msg string) *Error { return newError(KindValidation, http.StatusBadRequest, msg, nil) }
func NotFound(msg string) *Error   { return newError(KindNotFound, http.StatusNotFound, msg, nil) }

func RouteNotFound(path string) *Error {
	return newError(KindRouteNotFound, http.StatusNotFound, "Route not found: "+path, nil)
}

func TooManyRequests(msg string) *Error {
	return newError(KindTooManyRequests, http.StatusTooManyRequests, msg, nil)
}

func Internal(msg string, err error) *Error {
	return newError(KindInternal, http.StatusInternalServerError, msg, err)
}

// As is errors.As specialised for *Error.
func As(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// IsKind reports whether err is an *Error of the given kind.
func IsKind(err error, kind Kind) bool {
	e, ok := As(err)
	return ok && e.Kind == kind
}
