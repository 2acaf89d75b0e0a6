package service

import (
	"context"
	"errors"
	"log/slog"

	"github.com/contactform/backend/internal/apperr"
	"github.com/contactform/backend/internal/model"
	"github.com/contactform/backend/internal/repository"
)

// defaultPageSize is used for the page count when the caller passes no limit.
const defaultPageSize = 100

// contactServiceImpl is the production implementation of ContactService.
type contactServiceImpl struct {
	repo repository.ContactRepository
}

// NewContactService creates a ContactService backed by the given repository.
func NewContactService(repo repository.ContactRepository) ContactService {
	return &contactServiceImpl{repo: repo}
}

func (s *contactServiceImpl) Create(ctx context.Context, in model.ContactInput) (*model.Contact, error) {
	c, err := s.repo.Create(ctx, in)
	if err != nil {
		slog.ErrorContext(ctx, "create contact failed", "error", err)
		return nil, apperr.Internal("Failed to create contact", err)
	}
	slog.InfoContext(ctx, "new contact created", "id", c.ID, "email", c.Email)
	return c, nil
}

func (s *contactServiceImpl) GetByID(ctx context.Context, id int64) (*model.Contact, error) {
	c, err := s.repo.FindByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperr.NotFound("Contact not found")
	}
	if err != nil {
		return nil, err
	}
	return c, nil
}

// List fetches the page and the total separately; the two reads are not one
// snapshot, so a concurrent insert can make TotalPages disagree with the page.
func (s *contactServiceImpl) List(ctx context.Context, opts model.ListOptions) (*model.ContactPage, error) {
	contacts, err := s.repo.FindPage(ctx, opts.Limit, opts.Offset)
	if err != nil {
		return nil, err
	}
	total, err := s.repo.Count(ctx)
	if err != nil {
		return nil, err
	}
	if contacts == nil {
		contacts = []*model.Contact{}
	}
	return &model.ContactPage{
		Contacts:   contacts,
		Total:      total,
		Page:       pageNumber(opts.Limit, opts.Offset),
		TotalPages: totalPages(total, opts.Limit),
	}, nil
}

func pageNumber(limit, offset int) int {
	if limit <= 0 {
		return 1
	}
	return offset/limit + 1
}

func totalPages(total int64, limit int) int {
	if limit <= 0 {
		limit = defaultPageSize
	}
	return int((total + int64(limit) - 1) / int64(limit))
}
