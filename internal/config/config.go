package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/rs/zerolog"

	"github.com/memoryvault/memory-vault/internal/localstate"
)

// Environment represents different deployment environments
type Environment string

const (
	EnvDevelopment Environment = "development"
	EnvTesting     Environment = "testing"
	EnvProduction  Environment = "production"
)

// Config holds the configuration shared by the vault CLI and server.
// Environment variables are parsed from the VAULT_ prefix, e.g.
// VAULT_BACKEND_URL, VAULT_HTTP_PORT.
type Config struct {
	Environment Environment `envconfig:"ENVIRONMENT" default:"development"`

	// Remote backend; empty means local-only
	BackendURL     string        `envconfig:"BACKEND_URL" default:""`
	APIToken       string        `envconfig:"API_TOKEN" default:""`
	RequestTimeout time.Duration `envconfig:"REQUEST_TIMEOUT" default:"30s"`
	MaxRetries     int           `envconfig:"MAX_RETRIES" default:"3"`
	RetryStep      time.Duration `envconfig:"RETRY_STEP" default:"1s"`

	// Storage: auto picks postgres when a DSN is set, sqlite otherwise
	DBDriver    string `envconfig:"DB_DRIVER" default:"auto"`
	SQLitePath  string `envconfig:"SQLITE_PATH" default:""`
	PostgresDSN string `envconfig:"POSTGRES_DSN" default:""`

	// Server
	HTTPPort      int           `envconfig:"HTTP_PORT" default:"8000"`
	RedisAddr     string        `envconfig:"REDIS_ADDR" default:""`
	StatsCacheTTL time.Duration `envconfig:"STATS_CACHE_TTL" default:"10m"`

	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`
	Debug    bool   `envconfig:"DEBUG" default:"false"`

	// Import
	DateOrder      string `envconfig:"DATE_ORDER" default:"DMY"`
	MaxUploadBytes int64  `envconfig:"MAX_UPLOAD_BYTES" default:"104857600"`
	ImportWorkers  int    `envconfig:"IMPORT_WORKERS" default:"4"`

	// 0 disables the background connectivity re-probe
	ConnectivityRecheck time.Duration `envconfig:"CONNECTIVITY_RECHECK" default:"0s"`
}

// ResolveDefaults validates the settings and derives DBDriver and
// SQLitePath when left to "auto" or empty.
func (c *Config) ResolveDefaults() error {
	c.DBDriver = strings.ToLower(strings.TrimSpace(c.DBDriver))
	if c.DBDriver == "" || c.DBDriver == "auto" {
		c.DBDriver = "sqlite"
		if c.PostgresDSN != "" {
			c.DBDriver = "postgres"
		}
	}

	switch c.DBDriver {
	case "sqlite":
		if c.SQLitePath == "" {
			p, err := localstate.DBPath()
			if err != nil {
				return fmt.Errorf("resolve sqlite path: %w", err)
			}
			c.SQLitePath = p
		}
	case "postgres":
		if c.PostgresDSN == "" {
			return fmt.Errorf("DB_DRIVER=postgres requires POSTGRES_DSN")
		}
	default:
		return fmt.Errorf("unsupported DB_DRIVER: %s", c.DBDriver)
	}

	c.BackendURL = strings.TrimRight(strings.TrimSpace(c.BackendURL), "/")
	c.DateOrder = strings.ToUpper(c.DateOrder)
	if c.DateOrder != "DMY" && c.DateOrder != "MDY" {
		return fmt.Errorf("unsupported DATE_ORDER: %s (want DMY or MDY)", c.DateOrder)
	}
	if _, err := zerolog.ParseLevel(strings.ToLower(c.LogLevel)); err != nil {
		return fmt.Errorf("unsupported LOG_LEVEL: %s", c.LogLevel)
	}
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("REQUEST_TIMEOUT must be positive")
	}
	if c.MaxRetries < 0 {
		return fmt.Errorf("MAX_RETRIES must not be negative")
	}
	if c.HTTPPort <= 0 || c.HTTPPort > 65535 {
		return fmt.Errorf("HTTP_PORT out of range: %d", c.HTTPPort)
	}
	if c.MaxUploadBytes <= 0 {
		return fmt.Errorf("MAX_UPLOAD_BYTES must be positive")
	}
	if c.ImportWorkers <= 0 {
		c.ImportWorkers = 1
	}
	return nil
}

// New creates a new Config by parsing VAULT_* environment variables.
func New() (*Config, error) {
	var cfg Config

	if err := envconfig.Process("VAULT", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process environment variables: %w", err)
	}

	if err := cfg.ResolveDefaults(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LogSummary writes the effective configuration without secrets.
func (c *Config) LogSummary(log zerolog.Logger) {
	log.Info().
		Str("environment", string(c.Environment)).
		Str("backend_url", c.BackendURL).
		Bool("api_token_present", c.APIToken != "").
		Dur("request_timeout", c.RequestTimeout).
		Int("max_retries", c.MaxRetries).
		Str("db_driver", c.DBDriver).
		Str("sqlite_path", c.SQLitePath).
		Bool("postgres_dsn_present", c.PostgresDSN != "").
		Int("http_port", c.HTTPPort).
		Str("redis_addr", c.RedisAddr).
		Str("date_order", c.DateOrder).
		Int("import_workers", c.ImportWorkers).
		Msg("Configuration loaded")
}

// NewForTesting creates a config specifically for testing: in-memory
// sqlite, no backend.
func NewForTesting() *Config {
	return &Config{
		Environment:    EnvTesting,
		RequestTimeout: 5 * time.Second,
		MaxRetries:     0,
		RetryStep:      10 * time.Millisecond,
		DBDriver:       "sqlite",
		SQLitePath:     ":memory:",
		HTTPPort:       8000,
		StatsCacheTTL:  time.Minute,
		LogLevel:       "debug",
		DateOrder:      "DMY",
		MaxUploadBytes: 100 << 20,
		ImportWorkers:  2,
	}
}

// HasBackend reports whether a remote backend is configured.
func (c *Config) HasBackend() bool { return c.BackendURL != "" }

// Level returns the parsed log level, info when unparsable.
func (c *Config) Level() zerolog.Level {
	lvl, err := zerolog.ParseLevel(strings.ToLower(c.LogLevel))
	if err != nil || lvl == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	if c.Debug && lvl > zerolog.DebugLevel {
		return zerolog.DebugLevel
	}
	return lvl
}

// IsTesting returns true if the environment is set to testing
func (c *Config) IsTesting() bool {
	return c.Environment == EnvTesting
}

// IsProduction returns true if the environment is set to production
func (c *Config) IsProduction() bool {
	return c.Environment == EnvProduction
}

// GetHTTPAddr returns the HTTP server address
func (c *Config) GetHTTPAddr() string {
	return fmt.Sprintf(":%d", c.HTTPPort)
}
