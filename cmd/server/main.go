// Command server runs the contact-form HTTP API.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/contactform/backend/internal/config"
	"github.com/contactform/backend/internal/database"
	"github.com/contactform/backend/internal/handler"
	"github.com/contactform/backend/internal/lifecycle"
	"github.com/contactform/backend/internal/logging"
	"github.com/contactform/backend/internal/metrics"
	"github.com/contactform/backend/internal/migrations"
	"github.com/contactform/backend/internal/ratelimit"
	"github.com/contactform/backend/internal/repository"
	"github.com/contactform/backend/internal/service"
	"github.com/redis/go-redis/v9"
)

func main() {
	if err := config.LoadDotEnv(); err != nil {
		logging.Setup(os.Stdout, "info")
		logging.Fatal("failed to load .env", "error", err)
	}
	cfg, err := config.Load("")
	if err != nil {
		logging.Setup(os.Stdout, "info")
		logging.Fatal("invalid configuration", "error", err)
	}
	logging.Setup(os.Stdout, cfg.LogLevel)

	if err := run(context.Background(), cfg); err != nil {
		logging.Fatal("server exited with error", "error", err)
	}
}

func run(ctx context.Context, cfg *config.Config) error {
	collector := metrics.NewCollector(nil)

	store, repo, err := openStore(ctx, cfg, collector)
	if err != nil {
		return err
	}
	drainers := []lifecycle.Drainer{store}

	// An unreachable store is not fatal at startup; /health/db reports it.
	checkCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	if now, err := store.HealthCheck(checkCtx); err != nil {
		slog.Warn("database health check failed at startup", "error", err)
	} else {
		slog.Info("database connected", "driver", cfg.Database.Driver, "server_time", now)
	}
	cancel()

	limiterStore, background, closeRedis, err := openLimiterStore(ctx, cfg)
	if err != nil {
		_ = store.Drain(ctx)
		return err
	}
	if closeRedis != nil {
		drainers = append(drainers, closeRedis)
	}
	limiter, err := ratelimit.New(limiterStore, cfg.RateLimit.MaxRequests, cfg.RateLimit.Window)
	if err != nil {
		_ = store.Drain(ctx)
		return err
	}

	if cfg.File != "" {
		path := cfg.File
		background = append(background, func(ctx context.Context) error {
			if err := config.Watch(ctx, path, func(next *config.Config) {
				logging.SetLevel(next.LogLevel)
			}); err != nil {
				slog.Warn("config watch stopped", "error", err)
			}
			return nil
		})
	}

	h := handler.New(service.NewContactService(repo), store, handler.Options{
		Production:  cfg.IsProduction(),
		CORSOrigins: cfg.HTTP.CORSOrigins,
		BodyLimit:   cfg.HTTP.BodyLimit,
		MaxPageSize: cfg.HTTP.MaxPageSize,
		Limiter:     limiter,
		Metrics:     collector,
	})

	app := &lifecycle.App{
		Server: &http.Server{
			Addr:              ":" + cfg.Port,
			Handler:           h.Routes(),
			ReadHeaderTimeout: 10 * time.Second,
		},
		Drainers:        drainers,
		Background:      background,
		ShutdownTimeout: cfg.ShutdownTimeout,
	}
	slog.Info("starting server", "port", cfg.Port, "env", cfg.Env, "driver", cfg.Database.Driver)
	return app.Run(ctx)
}

// openStore connects the configured driver and returns its lifecycle surface
// together with the contact repository on top of it.
func openStore(ctx context.Context, cfg *config.Config, collector *metrics.Collector) (repository.Store, repository.ContactRepository, error) {
	switch cfg.Database.Driver {
	case config.DriverSQLite:
		db, err := database.OpenSQLite(ctx, cfg.Database.SQLitePath, cfg.Database.ConnectionTimeout,
			database.WithTelemetry(collector))
		if err != nil {
			return nil, nil, err
		}
		if err := migrations.ApplySQLite(ctx, db); err != nil {
			_ = db.Drain(ctx)
			return nil, nil, err
		}
		return db, repository.NewSQLiteContactRepository(db), nil
	default:
		pool, err := database.New(ctx, cfg.PoolConfig(), database.WithTelemetry(collector))
		if err != nil {
			return nil, nil, err
		}
		collector.RegisterPoolStats(pool.Stats)
		return pool, repository.NewPgContactRepository(pool), nil
	}
}

// openLimiterStore picks Redis when REDIS_URL is set and the in-memory store
// otherwise. The memory store's janitor runs as a background task.
func openLimiterStore(ctx context.Context, cfg *config.Config) (ratelimit.Store, []func(context.Context) error, lifecycle.Drainer, error) {
	if cfg.RateLimit.RedisURL == "" {
		mem := ratelimit.NewMemoryStore()
		janitor := func(ctx context.Context) error {
			mem.StartJanitor(ctx, time.Minute)
			<-ctx.Done()
			return nil
		}
		return mem, []func(context.Context) error{janitor}, nil, nil
	}

	opts, err := redis.ParseURL(cfg.RateLimit.RedisURL)
	if err != nil {
		return nil, nil, nil, errors.Join(errors.New("invalid REDIS_URL"), err)
	}
	rdb := redis.NewClient(opts)
	rs := ratelimit.NewRedisStore(rdb)
	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := rs.Ping(pingCtx); err != nil {
		slog.Warn("redis unreachable at startup, requests are admitted until it recovers", "error", err)
	}
	closeRedis := lifecycle.DrainFunc(func(context.Context) error { return rdb.Close() })
	return rs, nil, closeRedis, nil
}
