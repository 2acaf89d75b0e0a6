// Package config loads service settings from defaults, an optional YAML file
// and the environment, in that order of precedence.
package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/contactform/backend/internal/database"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"

	EnvProduction  = "production"
	EnvDevelopment = "development"
)

// Config is the full service configuration.
type Config struct {
	Port            string          `yaml:"port"`
	Env             string          `yaml:"env"`
	LogLevel        string          `yaml:"log_level"`
	ShutdownTimeout time.Duration   `yaml:"shutdown_timeout"`
	Database        DatabaseConfig  `yaml:"database"`
	RateLimit       RateLimitConfig `yaml:"rate_limit"`
	HTTP            HTTPConfig      `yaml:"http"`

	// File is the YAML file the config was read from, if any.
	File string `yaml:"-"`
}

type DatabaseConfig struct {
	Driver            string        `yaml:"driver"`
	URL               string        `yaml:"url"`
	User              string        `yaml:"user"`
	Password          string        `yaml:"password"`
	Host              string        `yaml:"host"`
	Port              int           `yaml:"port"`
	Name              string        `yaml:"name"`
	SQLitePath        string        `yaml:"sqlite_path"`
	PoolMin           int           `yaml:"pool_min"`
	PoolMax           int           `yaml:"pool_max"`
	IdleTimeout       time.Duration `yaml:"idle_timeout"`
	ConnectionTimeout time.Duration `yaml:"connection_timeout"`
	LeakThreshold     time.Duration `yaml:"leak_threshold"`
	QueryTimeout      time.Duration `yaml:"query_timeout"`
}

type RateLimitConfig struct {
	Window      time.Duration `yaml:"window"`
	MaxRequests int           `yaml:"max_requests"`
	RedisURL    string        `yaml:"redis_url"`
}

type HTTPConfig struct {
	CORSOrigins []string `yaml:"cors_origins"`
	BodyLimit   int64    `yaml:"body_limit"`
	MaxPageSize int      `yaml:"max_page_size"`
}

// Default returns the configuration used when nothing overrides it.
func Default() *Config {
	return &Config{
		Port:            "3000",
		Env:             EnvDevelopment,
		LogLevel:        "info",
		ShutdownTimeout: 10 * time.Second,
		Database: DatabaseConfig{
			Driver:            DriverPostgres,
			Port:              5432,
			SQLitePath:        "contacts.db",
			PoolMin:           2,
			PoolMax:           20,
			IdleTimeout:       30 * time.Second,
			ConnectionTimeout: 2 * time.Second,
			LeakThreshold:     5 * time.Second,
		},
		RateLimit: RateLimitConfig{
			Window:      15 * time.Minute,
			MaxRequests: 100,
		},
		HTTP: HTTPConfig{
			CORSOrigins: []string{"*"},
			BodyLimit:   10 << 20,
			MaxPageSize: 100,
		},
	}
}

// LoadDotEnv reads .env files into the process environment. Missing files
// are ignored; variables already set win.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("config: load %s: %w", f, err)
		}
	}
	return nil
}

// Load builds the configuration. path names an optional YAML file; when
// empty, CONFIG_FILE is consulted.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		path = os.Getenv("CONFIG_FILE")
	}
	if path != "" {
		if err := cfg.readFile(path); err != nil {
			return nil, err
		}
	}
	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) readFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config: read %q: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("config: parse %q: %w", path, err)
	}
	c.File = path
	return nil
}

type lookupFunc func(string) (string, bool)

func (c *Config) applyEnv(lookup lookupFunc) error {
	var errs []error
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	num := func(key string, dst *int) {
		if v, ok := lookup(key); ok && v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = n
		}
	}
	dur := func(key string, dst *time.Duration) {
		if v, ok := lookup(key); ok && v != "" {
			d, err := parseDuration(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = d
		}
	}

	str("PORT", &c.Port)
	str("APP_ENV", &c.Env)
	str("LOG_LEVEL", &c.LogLevel)
	dur("SHUTDOWN_TIMEOUT", &c.ShutdownTimeout)

	str("DB_DRIVER", &c.Database.Driver)
	str("DATABASE_URL", &c.Database.URL)
	str("DB_USER", &c.Database.User)
	str("DB_PASSWORD", &c.Database.Password)
	str("DB_HOST", &c.Database.Host)
	num("DB_PORT", &c.Database.Port)
	str("DB_NAME", &c.Database.Name)
	str("SQLITE_PATH", &c.Database.SQLitePath)
	num("DB_POOL_MIN", &c.Database.PoolMin)
	num("DB_POOL_MAX", &c.Database.PoolMax)
	dur("DB_IDLE_TIMEOUT", &c.Database.IdleTimeout)
	dur("DB_CONNECTION_TIMEOUT", &c.Database.ConnectionTimeout)
	dur("DB_LEAK_THRESHOLD", &c.Database.LeakThreshold)
	dur("DB_QUERY_TIMEOUT", &c.Database.QueryTimeout)

	dur("RATE_LIMIT_WINDOW_MS", &c.RateLimit.Window)
	num("RATE_LIMIT_MAX_REQUESTS", &c.RateLimit.MaxRequests)
	str("REDIS_URL", &c.RateLimit.RedisURL)

	if v, ok := lookup("CORS_ORIGIN"); ok && v != "" {
		c.HTTP.CORSOrigins = splitList(v)
	}
	if v, ok := lookup("BODY_LIMIT_BYTES"); ok && v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			errs = append(errs, fmt.Errorf("BODY_LIMIT_BYTES: %w", err))
		} else {
			c.HTTP.BodyLimit = n
		}
	}
	num("LIST_MAX_LIMIT", &c.HTTP.MaxPageSize)

	if len(errs) > 0 {
		return fmt.Errorf("config: %w", errors.Join(errs...))
	}
	return nil
}

// parseDuration accepts a bare integer as milliseconds or a Go duration string.
func parseDuration(v string) (time.Duration, error) {
	if ms, err := strconv.ParseInt(v, 10, 64); err == nil {
		return time.Duration(ms) * time.Millisecond, nil
	}
	return time.ParseDuration(v)
}

func splitList(v string) []string {
	var out []string
	for _, p := range strings.Split(v, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Validate reports every invalid setting at once.
func (c *Config) Validate() error {
	var errs []error
	if c.Port == "" {
		errs = append(errs, errors.New("port is required"))
	}
	switch c.Database.Driver {
	case DriverPostgres:
		if c.Database.URL == "" {
			var missing []string
			for _, req := range []struct{ key, val string }{
				{"DB_USER", c.Database.User},
				{"DB_PASSWORD", c.Database.Password},
				{"DB_HOST", c.Database.Host},
				{"DB_NAME", c.Database.Name},
			} {
				if req.val == "" {
					missing = append(missing, req.key)
				}
			}
			if len(missing) > 0 {
				errs = append(errs, fmt.Errorf("missing required environment variables: %s", strings.Join(missing, ", ")))
			}
		}
	case DriverSQLite:
		if c.Database.SQLitePath == "" {
			errs = append(errs, errors.New("sqlite path is required"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown database driver %q", c.Database.Driver))
	}
	if c.Database.Driver == DriverPostgres {
		if err := c.PoolConfig().Validate(); err != nil {
			errs = append(errs, err)
		}
	}
	if c.RateLimit.Window <= 0 {
		errs = append(errs, errors.New("rate limit window must be positive"))
	}
	if c.RateLimit.MaxRequests < 1 {
		errs = append(errs, errors.New("rate limit max requests must be >= 1"))
	}
	if c.HTTP.BodyLimit < 1 {
		errs = append(errs, errors.New("body limit must be >= 1"))
	}
	if c.HTTP.MaxPageSize < 1 {
		errs = append(errs, errors.New("max page size must be >= 1"))
	}
	if c.ShutdownTimeout <= 0 {
		errs = append(errs, errors.New("shutdown timeout must be positive"))
	}
	if len(errs) > 0 {
		return fmt.Errorf("config: %w", errors.Join(errs...))
	}
	return nil
}

// IsProduction reports whether error details must be hidden from clients.
func (c *Config) IsProduction() bool { return c.Env == EnvProduction }

// DSN returns DATABASE_URL, or a URL assembled from the DB_* settings.
func (c *Config) DSN() string {
	if c.Database.URL != "" {
		return c.Database.URL
	}
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(c.Database.User, c.Database.Password),
		Host:   net.JoinHostPort(c.Database.Host, strconv.Itoa(c.Database.Port)),
		Path:   "/" + c.Database.Name,
	}
	return u.String()
}

// PoolConfig maps the database section onto pool bounds.
func (c *Config) PoolConfig() database.PoolConfig {
	pc := database.DefaultPoolConfig()
	pc.DSN = c.DSN()
	pc.MinIdle = int32(c.Database.PoolMin)
	pc.MaxActive = int32(c.Database.PoolMax)
	pc.IdleTimeout = c.Database.IdleTimeout
	pc.AcquireTimeout = c.Database.ConnectionTimeout
	pc.LeakThreshold = c.Database.LeakThreshold
	pc.QueryTimeout = c.Database.QueryTimeout
	return pc
}
