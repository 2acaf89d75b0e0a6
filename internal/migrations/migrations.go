// Package migrations embeds the schema and applies it.
package migrations

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"log/slog"
	"sort"
	"strings"

	"github.com/contactform/backend/internal/database"
	"github.com/jackc/pgx/v5"
)

//go:embed postgres/*.sql
var postgresFS embed.FS

//go:embed sqlite/schema.sql
var sqliteSchema string

// Migration is one incremental schema step.
type Migration struct {
	Name string
	SQL  string
}

// Postgres returns the incremental migrations sorted by name.
func Postgres() ([]Migration, error) {
	entries, err := fs.ReadDir(postgresFS, "postgres")
	if err != nil {
		return nil, err
	}
	var names []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".up.sql") {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	out := make([]Migration, 0, len(names))
	for _, name := range names {
		b, err := postgresFS.ReadFile("postgres/" + name)
		if err != nil {
			return nil, err
		}
		out = append(out, Migration{Name: strings.TrimSuffix(name, ".up.sql"), SQL: string(b)})
	}
	return out, nil
}

const ensureSchemaMigrations = `CREATE TABLE IF NOT EXISTS schema_migrations (
	name TEXT PRIMARY KEY,
	applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`

// Up applies every migration that schema_migrations does not list yet. Each
// migration and its bookkeeping row commit in one transaction.
func Up(ctx context.Context, pool *database.Pool) (int, error) {
	if _, err := pool.Exec(ctx, ensureSchemaMigrations); err != nil {
		return 0, fmt.Errorf("ensure schema_migrations: %w", err)
	}
	all, err := Postgres()
	if err != nil {
		return 0, err
	}

	applied := 0
	for _, m := range all {
		ran := false
		err := pool.WithTransaction(ctx, func(ctx context.Context, tx pgx.Tx) error {
			var exists bool
			if err := tx.QueryRow(ctx, "SELECT EXISTS(SELECT 1 FROM schema_migrations WHERE name = $1)", m.Name).Scan(&exists); err != nil {
				return err
			}
			if exists {
				return nil
			}
			if _, err := tx.Exec(ctx, m.SQL); err != nil {
				return err
			}
			if _, err := tx.Exec(ctx, "INSERT INTO schema_migrations (name) VALUES ($1)", m.Name); err != nil {
				return err
			}
			ran = true
			return nil
		})
		if err != nil {
			return applied, fmt.Errorf("migration %s: %w", m.Name, err)
		}
		if ran {
			applied++
			slog.Info("migration completed", "migration", m.Name)
		}
	}
	return applied, nil
}

// Reset drops every table and reapplies all migrations.
func Reset(ctx context.Context, pool *database.Pool) (int, error) {
	drop, err := postgresFS.ReadFile("postgres/000_drop_all.sql")
	if err != nil {
		return 0, err
	}
	slog.Info("dropping all tables")
	if _, err := pool.Exec(ctx, string(drop)); err != nil {
		return 0, fmt.Errorf("drop all: %w", err)
	}
	return Up(ctx, pool)
}

// ApplySQLite creates the schema in an embedded store.
func ApplySQLite(ctx context.Context, store *database.SQLite) error {
	for _, stmt := range strings.Split(sqliteSchema, ";") {
		if strings.TrimSpace(stmt) == "" {
			continue
		}
		if err := store.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("sqlite schema: %w", err)
		}
	}
	return nil
}
