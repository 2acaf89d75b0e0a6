package service

import (
	"context"

	"github.com/contactform/backend/internal/model"
)

// ContactService defines the business logic for contact form submissions.
type ContactService interface {
	// Create stores a new contact. Any store failure is reported as a
	// generic internal error; the cause is logged, not returned to clients.
	Create(ctx context.Context, in model.ContactInput) (*model.Contact, error)

	// GetByID returns the contact or a NotFound error.
	GetByID(ctx context.Context, id int64) (*model.Contact, error)

	// List returns one page of contacts with pagination metadata.
	List(ctx context.Context, opts model.ListOptions) (*model.ContactPage, error)
}
