package handler

import (
	"net/http"
	"strconv"

	"github.com/contactform/backend/internal/apperr"
	"github.com/contactform/backend/internal/model"
	"github.com/contactform/backend/internal/service"
)

const (
	defaultPage  = 1
	defaultLimit = 100
	// maxPage keeps offset arithmetic far from overflow.
	maxPage = 1_000_000_000
)

// ContactHandler serves contact creation, lookup and listing.
type ContactHandler struct {
	contactService service.ContactService
	errs           *ErrorHandler
	maxPageSize    int
}

// NewContactHandler creates a ContactHandler with the given service.
func NewContactHandler(contactService service.ContactService, errs *ErrorHandler, maxPageSize int) *ContactHandler {
	return &ContactHandler{contactService: contactService, errs: errs, maxPageSize: maxPageSize}
}

type dataResponse struct {
	Status     string      `json:"status"`
	Data       any         `json:"data"`
	Pagination *pagination `json:"pagination,omitempty"`
}

type pagination struct {
	Total      int64 `json:"total"`
	Page       int   `json:"page"`
	TotalPages int   `json:"totalPages"`
}

// Create handles POST on every contact base path. The body has already been
// validated and sanitised.
func (h *ContactHandler) Create(w http.ResponseWriter, r *http.Request) {
	body := Body(r)
	in := model.ContactInput{}
	in.Name, _ = body["name"].(string)
	in.Email, _ = body["email"].(string)
	in.Message, _ = body["message"].(string)

	c, err := h.contactService.Create(r.Context(), in)
	if err != nil {
		h.errs.Write(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, dataResponse{Status: "success", Data: c})
}

// Get handles GET {base}/{id}.
func (h *ContactHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		h.errs.Write(w, r, apperr.Wrap(apperr.KindConstraint, "Invalid data format", err))
		return
	}

	c, err := h.contactService.GetByID(r.Context(), id)
	if err != nil {
		h.errs.Write(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, dataResponse{Status: "success", Data: c})
}

// List handles GET {base}?page=&limit=.
// Absent, non-numeric or non-positive values fall back to page 1 and
// limit 100; limit is capped at the configured maximum page size.
func (h *ContactHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page := positiveInt(q.Get("page"), defaultPage)
	limit := positiveInt(q.Get("limit"), defaultLimit)
	if limit > h.maxPageSize {
		limit = h.maxPageSize
	}
	if page > maxPage {
		page = maxPage
	}

	result, err := h.contactService.List(r.Context(), model.ListOptions{
		Limit:  limit,
		Offset: (page - 1) * limit,
	})
	if err != nil {
		h.errs.Write(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, dataResponse{
		Status: "success",
		Data:   result.Contacts,
		Pagination: &pagination{
			Total:      result.Total,
			Page:       result.Page,
			TotalPages: result.TotalPages,
		},
	})
}

func positiveInt(s string, def int) int {
	n, err := strconv.Atoi(s)
	if err != nil || n < 1 {
		return def
	}
	return n
}
