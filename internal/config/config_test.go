package config

import (
	"log/slog"
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	for _, key := range []string{"API_BASE_URL", "API_TIMEOUT", "STORAGE_BACKEND", "API_SKIP_AUTH_PATHS", "LOG_LEVEL"} {
		t.Setenv(key, "")
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.API.Timeout != 12*time.Second {
		t.Errorf("Load() timeout = %v, want 12s", cfg.API.Timeout)
	}
	if cfg.API.RefreshPath != "/user/recreateAccessToken" {
		t.Errorf("Load() refresh path = %q", cfg.API.RefreshPath)
	}
	if len(cfg.API.SkipAuthPaths) != 3 {
		t.Errorf("Load() skip auth paths = %v, want 3 entries", cfg.API.SkipAuthPaths)
	}
	if cfg.Storage.Backend != BackendMemory {
		t.Errorf("Load() backend = %q, want %q", cfg.Storage.Backend, BackendMemory)
	}
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("API_BASE_URL", "http://localhost:8000/api/")
	t.Setenv("API_TIMEOUT", "5s")
	t.Setenv("STORAGE_BACKEND", "Redis")
	t.Setenv("API_SKIP_AUTH_PATHS", " /a , /b ,,")
	t.Setenv("REDIS_DB", "3")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.API.BaseURL != "http://localhost:8000/api" {
		t.Errorf("Load() base url = %q, want trailing slash trimmed", cfg.API.BaseURL)
	}
	if cfg.API.Timeout != 5*time.Second {
		t.Errorf("Load() timeout = %v, want 5s", cfg.API.Timeout)
	}
	if cfg.Storage.Backend != BackendRedis {
		t.Errorf("Load() backend = %q, want %q", cfg.Storage.Backend, BackendRedis)
	}
	if got := cfg.API.SkipAuthPaths; len(got) != 2 || got[0] != "/a" || got[1] != "/b" {
		t.Errorf("Load() skip auth paths = %v, want [/a /b]", got)
	}
	if cfg.Storage.Redis.DB != 3 {
		t.Errorf("Load() redis db = %d, want 3", cfg.Storage.Redis.DB)
	}
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{name: "unparsable timeout", key: "API_TIMEOUT", value: "soon"},
		{name: "negative timeout", key: "API_TIMEOUT", value: "-1s"},
		{name: "unknown backend", key: "STORAGE_BACKEND", value: "sqlite"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			if _, err := Load(); err == nil {
				t.Errorf("Load() with %s=%q expected error but got none", tt.key, tt.value)
			}
		})
	}
}

func TestSlogLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"WARN":    slog.LevelWarn,
		"error":   slog.LevelError,
		"info":    slog.LevelInfo,
		"verbose": slog.LevelInfo,
	}
	for level, want := range tests {
		if got := (LoggingConfig{Level: level}).SlogLevel(); got != want {
			t.Errorf("SlogLevel(%q) = %v, want %v", level, got, want)
		}
	}
}

func TestCouchURL(t *testing.T) {
	c := CouchConfig{Host: "db", Port: "5984", User: "u", Password: "p"}
	if got := c.URL(); got != "http://u:p@db:5984" {
		t.Errorf("URL() = %q", got)
	}
}
