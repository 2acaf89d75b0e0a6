package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/contactform/backend/internal/database"
	"github.com/contactform/backend/internal/model"
)

// SQLiteContactRepository is the embedded-store implementation of
// ContactRepository used for local development.
type SQLiteContactRepository struct {
	store *database.SQLite
}

// NewSQLiteContactRepository creates a SQLiteContactRepository backed by store.
func NewSQLiteContactRepository(store *database.SQLite) *SQLiteContactRepository {
	return &SQLiteContactRepository{store: store}
}

var _ ContactRepository = (*SQLiteContactRepository)(nil)

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSQLiteContact(row rowScanner) (*model.Contact, error) {
	var (
		c   model.Contact
		raw string
	)
	if err := row.Scan(&c.ID, &c.Name, &c.Email, &c.Message, &raw); err != nil {
		return nil, err
	}
	t, err := database.ParseSQLiteTime(raw)
	if err != nil {
		return nil, err
	}
	c.CreatedAt = t
	return &c, nil
}

func (r *SQLiteContactRepository) Create(ctx context.Context, in model.ContactInput) (*model.Contact, error) {
	const query = `INSERT INTO contacts (name, email, message) VALUES (?, ?, ?)
		RETURNING ` + contactColumns
	var c *model.Contact
	err := r.store.Do(ctx, "query_one", query, func(ctx context.Context, conn *sql.Conn) (int64, error) {
		var err error
		c, err = scanSQLiteContact(conn.QueryRowContext(ctx, query, in.Name, in.Email, in.Message))
		return 1, err
	})
	return c, err
}

func (r *SQLiteContactRepository) FindByID(ctx context.Context, id int64) (*model.Contact, error) {
	const query = `SELECT ` + contactColumns + ` FROM contacts WHERE id = ?`
	var c *model.Contact
	err := r.store.Do(ctx, "query_one", query, func(ctx context.Context, conn *sql.Conn) (int64, error) {
		var err error
		c, err = scanSQLiteContact(conn.QueryRowContext(ctx, query, id))
		return 1, err
	})
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return c, err
}

func (r *SQLiteContactRepository) FindPage(ctx context.Context, limit, offset int) ([]*model.Contact, error) {
	const query = `SELECT ` + contactColumns + `
		FROM contacts
		ORDER BY created_at DESC, id DESC
		LIMIT ? OFFSET ?`
	var out []*model.Contact
	err := r.store.Do(ctx, "query", query, func(ctx context.Context, conn *sql.Conn) (int64, error) {
		rows, err := conn.QueryContext(ctx, query, limit, offset)
		if err != nil {
			return 0, err
		}
		defer rows.Close()
		for rows.Next() {
			c, err := scanSQLiteContact(rows)
			if err != nil {
				return int64(len(out)), err
			}
			out = append(out, c)
		}
		return int64(len(out)), rows.Err()
	})
	return out, err
}

func (r *SQLiteContactRepository) Count(ctx context.Context) (int64, error) {
	const query = `SELECT COUNT(*) FROM contacts`
	var n int64
	err := r.store.Do(ctx, "query_one", query, func(ctx context.Context, conn *sql.Conn) (int64, error) {
		return 1, conn.QueryRowContext(ctx, query).Scan(&n)
	})
	return n, err
}
