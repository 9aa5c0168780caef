package config

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestNew_Defaults(t *testing.T) {
	home := t.TempDir()
	t.Setenv("VAULT_HOME", home)

	cfg, err := New()
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if cfg.DBDriver != "sqlite" {
		t.Fatalf("expected sqlite driver, got %s", cfg.DBDriver)
	}
	if cfg.SQLitePath != filepath.Join(home, "vault.db") {
		t.Fatalf("unexpected sqlite path %s", cfg.SQLitePath)
	}
	if cfg.RequestTimeout != 30*time.Second || cfg.MaxRetries != 3 || cfg.RetryStep != time.Second {
		t.Fatalf("unexpected remote defaults: %+v", cfg)
	}
	if cfg.MaxUploadBytes != 100<<20 {
		t.Fatalf("unexpected upload limit %d", cfg.MaxUploadBytes)
	}
	if cfg.HasBackend() {
		t.Fatal("no backend should be configured by default")
	}
}

func TestNew_EnvOverrides(t *testing.T) {
	t.Setenv("VAULT_HOME", t.TempDir())
	t.Setenv("VAULT_BACKEND_URL", "http://localhost:8000/")
	t.Setenv("VAULT_POSTGRES_DSN", "postgres://vault@localhost/vault")
	t.Setenv("VAULT_DATE_ORDER", "mdy")
	t.Setenv("VAULT_REQUEST_TIMEOUT", "5s")

	cfg, err := New()
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if cfg.DBDriver != "postgres" {
		t.Fatalf("auto driver with DSN should pick postgres, got %s", cfg.DBDriver)
	}
	if cfg.BackendURL != "http://localhost:8000" {
		t.Fatalf("trailing slash not trimmed: %s", cfg.BackendURL)
	}
	if cfg.DateOrder != "MDY" {
		t.Fatalf("unexpected date order %s", cfg.DateOrder)
	}
	if cfg.RequestTimeout != 5*time.Second {
		t.Fatalf("unexpected timeout %v", cfg.RequestTimeout)
	}
}

func TestResolveDefaults_Rejects(t *testing.T) {
	cases := map[string]func(*Config){
		"unknown driver":   func(c *Config) { c.DBDriver = "mysql" },
		"postgres w/o dsn": func(c *Config) { c.DBDriver = "postgres" },
		"date order":       func(c *Config) { c.DateOrder = "YMD" },
		"log level":        func(c *Config) { c.LogLevel = "loud" },
		"timeout":          func(c *Config) { c.RequestTimeout = 0 },
		"port":             func(c *Config) { c.HTTPPort = 70000 },
	}
	for name, mutate := range cases {
		cfg := NewForTesting()
		mutate(cfg)
		if err := cfg.ResolveDefaults(); err == nil {
			t.Fatalf("%s: expected error", name)
		}
	}
}

func TestNewForTesting(t *testing.T) {
	cfg := NewForTesting()
	if err := cfg.ResolveDefaults(); err != nil {
		t.Fatalf("testing config should be valid: %v", err)
	}
	if !cfg.IsTesting() || cfg.IsProduction() {
		t.Fatal("expected testing environment")
	}
	if cfg.GetHTTPAddr() != ":8000" {
		t.Fatalf("unexpected addr %s", cfg.GetHTTPAddr())
	}
	if cfg.Level() != zerolog.DebugLevel {
		t.Fatalf("unexpected level %v", cfg.Level())
	}
	cfg.LogLevel = "warn"
	cfg.Debug = true
	if cfg.Level() != zerolog.DebugLevel {
		t.Fatal("debug flag should lower the level")
	}
}
