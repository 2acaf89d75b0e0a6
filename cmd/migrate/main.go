// Command migrate provisions the contacts schema in PostgreSQL.
//
// Usage:
//
//	migrate            apply pending migrations
//	migrate up         same as above
//	migrate reset      drop every table and reapply all migrations
//	migrate createdb   create the configured database if it is missing
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/contactform/backend/internal/config"
	"github.com/contactform/backend/internal/database"
	"github.com/contactform/backend/internal/logging"
	"github.com/contactform/backend/internal/migrations"
	"github.com/spf13/cobra"
)

var cfgFile string

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "migrate",
		Short:         "Apply the contacts schema to PostgreSQL",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return config.LoadDotEnv(".env", "../.env")
		},
		RunE: runUp,
	}
	root.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "YAML config file (default $CONFIG_FILE)")

	root.AddCommand(
		&cobra.Command{
			Use:   "up",
			Short: "Apply pending migrations",
			RunE:  runUp,
		},
		&cobra.Command{
			Use:   "reset",
			Short: "Drop every table and reapply all migrations",
			RunE:  runReset,
		},
		&cobra.Command{
			Use:   "createdb",
			Short: "Create the configured database if it does not exist",
			RunE:  runCreateDB,
		},
	)
	return root
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, err
	}
	logging.Setup(os.Stdout, cfg.LogLevel)
	if cfg.Database.Driver != config.DriverPostgres {
		return nil, fmt.Errorf("migrate only supports the postgres driver, got %q", cfg.Database.Driver)
	}
	return cfg, nil
}

func withPool(ctx context.Context, fn func(*database.Pool) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	pool, err := database.New(ctx, cfg.PoolConfig())
	if err != nil {
		return err
	}
	defer func() {
		if err := pool.Drain(context.WithoutCancel(ctx)); err != nil {
			slog.Warn("pool drain failed", "error", err)
		}
	}()
	return fn(pool)
}

func runUp(cmd *cobra.Command, _ []string) error {
	return withPool(cmd.Context(), func(pool *database.Pool) error {
		n, err := migrations.Up(cmd.Context(), pool)
		if err != nil {
			return err
		}
		if n == 0 {
			slog.Info("all migrations already applied")
		} else {
			slog.Info("migrations completed", "count", n)
		}
		return nil
	})
}

func runReset(cmd *cobra.Command, _ []string) error {
	return withPool(cmd.Context(), func(pool *database.Pool) error {
		n, err := migrations.Reset(cmd.Context(), pool)
		if err != nil {
			return err
		}
		slog.Info("schema reset", "migrations", n)
		return nil
	})
}

func runCreateDB(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	_, err = migrations.EnsureDatabase(cmd.Context(), cfg.DSN())
	return err
}
