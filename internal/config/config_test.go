// ABOUTME: Tests for configuration loading and parsing
// ABOUTME: Covers YAML loading, env var expansion, duration parsing, and defaults

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	return path
}

func TestLoad_ValidConfig(t *testing.T) {
	path := writeConfig(t, `
server:
  http_addr: "0.0.0.0:8080"

database:
  path: "./members.db"

auth:
  jwt_secret: "test-secret"

conversations:
  timeout: "5m"
  sweep_interval: "20m"

cache:
  ttl: "10m"
  sweep_interval: "2m"
  cache_unknown: true
  single_flight: true
  prewarm_on_billing_event: true

logging:
  level: "debug"
  format: "json"
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.HTTPAddr != "0.0.0.0:8080" {
		t.Errorf("Server.HTTPAddr = %q, want %q", cfg.Server.HTTPAddr, "0.0.0.0:8080")
	}
	if cfg.Database.Path != "./members.db" {
		t.Errorf("Database.Path = %q, want %q", cfg.Database.Path, "./members.db")
	}
	if cfg.Auth.JWTSecret != "test-secret" {
		t.Errorf("Auth.JWTSecret = %q, want %q", cfg.Auth.JWTSecret, "test-secret")
	}
	if cfg.Conversations.Timeout != 5*time.Minute {
		t.Errorf("Conversations.Timeout = %v, want %v", cfg.Conversations.Timeout, 5*time.Minute)
	}
	if cfg.Conversations.SweepInterval != 20*time.Minute {
		t.Errorf("Conversations.SweepInterval = %v, want %v", cfg.Conversations.SweepInterval, 20*time.Minute)
	}
	if cfg.Cache.TTL != 10*time.Minute {
		t.Errorf("Cache.TTL = %v, want %v", cfg.Cache.TTL, 10*time.Minute)
	}
	if cfg.Cache.SweepInterval != 2*time.Minute {
		t.Errorf("Cache.SweepInterval = %v, want %v", cfg.Cache.SweepInterval, 2*time.Minute)
	}
	if !cfg.Cache.CacheUnknown {
		t.Error("Cache.CacheUnknown = false, want true")
	}
	if !cfg.Cache.SingleFlight {
		t.Error("Cache.SingleFlight = false, want true")
	}
	if !cfg.Cache.PrewarmOnBillingEvent {
		t.Error("Cache.PrewarmOnBillingEvent = false, want true")
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Logging.Level = %q, want %q", cfg.Logging.Level, "debug")
	}
}

func TestLoad_Defaults(t *testing.T) {
	path := writeConfig(t, `
server:
  http_addr: "localhost:8080"
database:
  path: "./members.db"
auth:
  jwt_secret: "test-secret"
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Conversations.Timeout != DefaultConversationTimeout {
		t.Errorf("Conversations.Timeout = %v, want default %v", cfg.Conversations.Timeout, DefaultConversationTimeout)
	}
	if cfg.Conversations.SweepInterval != DefaultConversationSweep {
		t.Errorf("Conversations.SweepInterval = %v, want default %v", cfg.Conversations.SweepInterval, DefaultConversationSweep)
	}
	if cfg.Cache.TTL != DefaultCacheTTL {
		t.Errorf("Cache.TTL = %v, want default %v", cfg.Cache.TTL, DefaultCacheTTL)
	}
	if cfg.Cache.SweepInterval != DefaultCacheSweep {
		t.Errorf("Cache.SweepInterval = %v, want default %v", cfg.Cache.SweepInterval, DefaultCacheSweep)
	}
	if cfg.Cache.CacheUnknown {
		t.Error("Cache.CacheUnknown = true, want false by default")
	}
	if cfg.Cache.SingleFlight {
		t.Error("Cache.SingleFlight = true, want false by default")
	}
}

func TestLoad_EnvVarExpansion(t *testing.T) {
	t.Setenv("CONCIERGE_TEST_SECRET", "expanded-secret")

	path := writeConfig(t, `
server:
  http_addr: "localhost:8080"
database:
  path: "./members.db"
auth:
  jwt_secret: "${CONCIERGE_TEST_SECRET}"
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Auth.JWTSecret != "expanded-secret" {
		t.Errorf("Auth.JWTSecret = %q, want %q", cfg.Auth.JWTSecret, "expanded-secret")
	}
}

func TestLoad_MissingHTTPAddr(t *testing.T) {
	path := writeConfig(t, `
database:
  path: "./members.db"
auth:
  jwt_secret: "test-secret"
`)

	_, err := Load(path)
	if err == nil {
		t.Fatal("Load() expected error for missing server.http_addr")
	}
	if !strings.Contains(err.Error(), "http_addr") {
		t.Errorf("error = %v, want mention of http_addr", err)
	}
}

func TestLoad_MissingDatabasePath(t *testing.T) {
	path := writeConfig(t, `
server:
  http_addr: "localhost:8080"
auth:
  jwt_secret: "test-secret"
`)

	_, err := Load(path)
	if err == nil {
		t.Fatal("Load() expected error for missing database.path")
	}
	if !strings.Contains(err.Error(), "database.path") {
		t.Errorf("error = %v, want mention of database.path", err)
	}
}

func TestLoad_MissingJWTSecret(t *testing.T) {
	path := writeConfig(t, `
server:
  http_addr: "localhost:8080"
database:
  path: "./members.db"
`)

	_, err := Load(path)
	if err == nil {
		t.Fatal("Load() expected error for missing auth.jwt_secret")
	}
	if !strings.Contains(err.Error(), "jwt_secret") {
		t.Errorf("error = %v, want mention of jwt_secret", err)
	}
}

func TestLoad_InvalidDuration(t *testing.T) {
	path := writeConfig(t, `
server:
  http_addr: "localhost:8080"
database:
  path: "./members.db"
auth:
  jwt_secret: "test-secret"
cache:
  ttl: "fifteen minutes"
`)

	_, err := Load(path)
	if err == nil {
		t.Fatal("Load() expected error for invalid duration")
	}
	if !strings.Contains(err.Error(), "cache.ttl") {
		t.Errorf("error = %v, want mention of cache.ttl", err)
	}
}

func TestLoad_FileNotFound(t *testing.T) {
	_, err := Load("/nonexistent/config.yaml")
	if err == nil {
		t.Fatal("Load() expected error for missing file")
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := writeConfig(t, "server: [not: valid: yaml")

	_, err := Load(path)
	if err == nil {
		t.Fatal("Load() expected error for invalid YAML")
	}
}
