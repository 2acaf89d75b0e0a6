package repository

import (
	"context"
	"errors"

	"github.com/contactform/backend/internal/database"
	"github.com/contactform/backend/internal/model"
	"github.com/jackc/pgx/v5"
)

// PgContactRepository is the PostgreSQL implementation of ContactRepository.
type PgContactRepository struct {
	pool *database.Pool
}

// NewPgContactRepository creates a PgContactRepository backed by the given pool.
func NewPgContactRepository(pool *database.Pool) *PgContactRepository {
	return &PgContactRepository{pool: pool}
}

// Ensure PgContactRepository implements ContactRepository at compile time.
var _ ContactRepository = (*PgContactRepository)(nil)

const contactColumns = "id, name, email, message, created_at"

func scanContact(row pgx.CollectableRow) (*model.Contact, error) {
	var c model.Contact
	if err := row.Scan(&c.ID, &c.Name, &c.Email, &c.Message, &c.CreatedAt); err != nil {
		return nil, err
	}
	return &c, nil
}

// Create inserts a new contacts row and returns it with the id and
// created_at assigned by the database.
func (r *PgContactRepository) Create(ctx context.Context, in model.ContactInput) (*model.Contact, error) {
	return database.QueryOne(ctx, r.pool,
		`INSERT INTO contacts (name, email, message)
		 VALUES ($1, $2, $3)
		 RETURNING `+contactColumns,
		[]any{in.Name, in.Email, in.Message},
		scanContact,
	)
}

// FindByID returns the contact with the given id.
func (r *PgContactRepository) FindByID(ctx context.Context, id int64) (*model.Contact, error) {
	c, err := database.QueryOne(ctx, r.pool,
		`SELECT `+contactColumns+` FROM contacts WHERE id = $1`,
		[]any{id},
		scanContact,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return c, err
}

// FindPage returns contacts newest first.
func (r *PgContactRepository) FindPage(ctx context.Context, limit, offset int) ([]*model.Contact, error) {
	return database.Query(ctx, r.pool,
		`SELECT `+contactColumns+`
		 FROM contacts
		 ORDER BY created_at DESC, id DESC
		 LIMIT $1 OFFSET $2`,
		[]any{limit, offset},
		scanContact,
	)
}

// Count returns the total number of contacts.
func (r *PgContactRepository) Count(ctx context.Context) (int64, error) {
	return database.QueryOne(ctx, r.pool, `SELECT COUNT(*) FROM contacts`, nil, pgx.RowTo[int64])
}
