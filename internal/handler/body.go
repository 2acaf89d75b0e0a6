package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"

	"github.com/contactform/backend/internal/apperr"
)

type bodyKey struct{}

// Body returns the decoded request body. It is never nil for requests that
// passed through ParseBody.
func Body(r *http.Request) map[string]any {
	b, _ := r.Context().Value(bodyKey{}).(map[string]any)
	if b == nil {
		return map[string]any{}
	}
	return b
}

func withBody(r *http.Request, body map[string]any) *http.Request {
	return r.WithContext(context.WithValue(r.Context(), bodyKey{}, body))
}

// ParseBody decodes JSON and urlencoded bodies into a map placed in the
// request context. Bodies over the configured limit are rejected with 413.
// Other content types leave the body empty.
func (h *Handler) ParseBody(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Body == nil || r.Body == http.NoBody || r.Method == http.MethodGet || r.Method == http.MethodHead {
			next.ServeHTTP(w, r)
			return
		}
		r.Body = http.MaxBytesReader(w, r.Body, h.opts.BodyLimit)

		mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
		var (
			body map[string]any
			err  error
		)
		switch mediaType {
		case "application/json":
			body, err = decodeJSON(r.Body)
		case "application/x-www-form-urlencoded":
			body, err = decodeForm(r)
		default:
			next.ServeHTTP(w, r)
			return
		}
		if err != nil {
			h.errs.Write(w, r, err)
			return
		}
		next.ServeHTTP(w, withBody(r, body))
	})
}

func invalidBody(err error) error {
	var mbe *http.MaxBytesError
	if errors.As(err, &mbe) {
		return err
	}
	return apperr.Wrap(apperr.KindValidation, "Invalid request body", err)
}

func decodeJSON(rc io.Reader) (map[string]any, error) {
	dec := json.NewDecoder(rc)
	var v any
	if err := dec.Decode(&v); err != nil {
		if errors.Is(err, io.EOF) {
			return map[string]any{}, nil
		}
		return nil, invalidBody(err)
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		if err == nil {
			err = errors.New("trailing data after JSON value")
		}
		return nil, invalidBody(err)
	}
	obj, ok := v.(map[string]any)
	if !ok {
		return nil, invalidBody(errors.New("body must be a JSON object"))
	}
	return obj, nil
}

func decodeForm(r *http.Request) (map[string]any, error) {
	if err := r.ParseForm(); err != nil {
		return nil, invalidBody(err)
	}
	body := make(map[string]any, len(r.PostForm))
	for k, vs := range r.PostForm {
		if len(vs) > 0 {
			body[k] = vs[0]
		}
	}
	return body, nil
}
