package handler

import (
	"errors"
	"net/http"

	"github.com/contactform/backend/internal/apperr"
	"github.com/contactform/backend/internal/validation"
)

// Validate checks the parsed body against schema. On success the body is
// replaced by its sanitised form; on failure every violation is reported in
// one 400 response.
func (h *Handler) Validate(schema *validation.Schema, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		clean, err := schema.Validate(Body(r))
		if err != nil {
			var verr *validation.Error
			if errors.As(err, &verr) {
				h.errs.Write(w, r, apperr.Validation(verr.Error()))
				return
			}
			h.errs.Write(w, r, err)
			return
		}
		next.ServeHTTP(w, withBody(r, clean))
	})
}
