package repository

import (
	"context"
	"time"

	"github.com/contactform/backend/internal/model"
)

// ContactRepository defines the persistence interface for contacts.
// It is defined here (in repository) to avoid an import cycle with service.
type ContactRepository interface {
	Create(ctx context.Context, in model.ContactInput) (*model.Contact, error)
	// FindByID returns ErrNotFound when no row has the given id.
	FindByID(ctx context.Context, id int64) (*model.Contact, error)
	FindPage(ctx context.Context, limit, offset int) ([]*model.Contact, error)
	Count(ctx context.Context) (int64, error)
}

// Store is the lifecycle surface shared by the Postgres pool and the
// embedded SQLite store.
type Store interface {
	HealthCheck(ctx context.Context) (time.Time, error)
	Drain(ctx context.Context) error
}
