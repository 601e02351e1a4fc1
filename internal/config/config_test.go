package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("DATA_DIR", t.TempDir())
	t.Setenv("JWT_SECRET", "test-secret")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.HTTPPort != 3000 {
		t.Errorf("expected HTTPPort 3000, got %d", cfg.HTTPPort)
	}
	if cfg.ProviderWorkers != 2 {
		t.Errorf("expected ProviderWorkers 2, got %d", cfg.ProviderWorkers)
	}
	if cfg.ServiceWorkers != 4 {
		t.Errorf("expected ServiceWorkers 4, got %d", cfg.ServiceWorkers)
	}
	if cfg.SyncInterval != 15*time.Minute {
		t.Errorf("expected SyncInterval 15m, got %v", cfg.SyncInterval)
	}
	if cfg.ProviderMaxRetries != 3 {
		t.Errorf("expected ProviderMaxRetries 3, got %d", cfg.ProviderMaxRetries)
	}
	if cfg.JWTSecret != "test-secret" {
		t.Errorf("expected JWT secret from env, got %q", cfg.JWTSecret)
	}
	if cfg.SlogLevel() != slog.LevelInfo {
		t.Errorf("expected info level, got %v", cfg.SlogLevel())
	}
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("DATA_DIR", t.TempDir())
	t.Setenv("JWT_SECRET", "test-secret")
	t.Setenv("HTTP_PORT", "8080")
	t.Setenv("SYNC_INTERVAL_MINUTES", "5")
	t.Setenv("SYNC_SERVICE_WORKERS", "8")
	t.Setenv("PROVIDER_RATE_LIMIT", "2.5")
	t.Setenv("INTEGRATIONS_FILE", "/etc/incidentsync/orgs.yaml")
	t.Setenv("LOG_LEVEL", "DEBUG")
	t.Setenv("LOG_FORMAT", "json")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.HTTPPort != 8080 {
		t.Errorf("expected HTTPPort 8080, got %d", cfg.HTTPPort)
	}
	if cfg.SyncInterval != 5*time.Minute {
		t.Errorf("expected SyncInterval 5m, got %v", cfg.SyncInterval)
	}
	if cfg.ServiceWorkers != 8 {
		t.Errorf("expected ServiceWorkers 8, got %d", cfg.ServiceWorkers)
	}
	if cfg.ProviderRateLimit != 2.5 {
		t.Errorf("expected ProviderRateLimit 2.5, got %v", cfg.ProviderRateLimit)
	}
	if cfg.IntegrationsFile != "/etc/incidentsync/orgs.yaml" {
		t.Errorf("unexpected IntegrationsFile %q", cfg.IntegrationsFile)
	}
	if cfg.SlogLevel() != slog.LevelDebug {
		t.Errorf("expected debug level, got %v", cfg.SlogLevel())
	}
	if cfg.LogFormat != "json" {
		t.Errorf("expected json format, got %q", cfg.LogFormat)
	}
}

func TestLoad_InvalidValues(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{"zero service workers", "SYNC_SERVICE_WORKERS", "0"},
		{"zero provider workers", "SYNC_PROVIDER_WORKERS", "0"},
		{"unknown log level", "LOG_LEVEL", "verbose"},
		{"unknown log format", "LOG_FORMAT", "xml"},
		{"bad webhook url", "SLACK_WEBHOOK_URL", "not a url"},
		{"port out of range", "HTTP_PORT", "70000"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("DATA_DIR", t.TempDir())
			t.Setenv("JWT_SECRET", "test-secret")
			t.Setenv(tt.key, tt.value)

			if _, err := Load(); err == nil {
				t.Errorf("expected error for %s=%s", tt.key, tt.value)
			}
		})
	}
}

func TestGetEnvAsIntOrDefault_InvalidFallsBack(t *testing.T) {
	t.Setenv("TEST_INT", "abc")
	if got := getEnvAsIntOrDefault("TEST_INT", 7); got != 7 {
		t.Errorf("expected default 7, got %d", got)
	}
}

func TestLoadOrGenerateJWTSecret_PersistsGeneratedSecret(t *testing.T) {
	t.Setenv("JWT_SECRET", "")
	path := filepath.Join(t.TempDir(), "nested", ".jwt_secret")

	first := loadOrGenerateJWTSecret(path)
	if len(first) != 64 {
		t.Fatalf("expected 64 hex chars, got %d", len(first))
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("secret not persisted: %v", err)
	}
	if string(data) != first {
		t.Errorf("persisted secret does not match")
	}

	if second := loadOrGenerateJWTSecret(path); second != first {
		t.Errorf("expected secret to be reloaded from file")
	}
}
