package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/hawky-4s-/energy-report-dashboard/pkg/dashboard"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("writing config: %v", err)
	}
	return path
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.APIURL != DefaultAPIURL {
		t.Errorf("APIURL = %v, want %v", cfg.APIURL, DefaultAPIURL)
	}
	if cfg.PollInterval != 30*time.Second {
		t.Errorf("PollInterval = %v, want 30s", cfg.PollInterval)
	}
	if cfg.ErrorPolicy() != dashboard.ErrorSticky {
		t.Errorf("ErrorPolicy() = %v, want sticky", cfg.ErrorPolicy())
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() error = %v", err)
	}
}

func TestLoad_File(t *testing.T) {
	path := writeConfig(t, `
api_url: http://reports.internal:9000
listen: 127.0.0.1:4000
poll_interval: 45s
request_timeout: 5s
max_retries: 2
meter_error_policy: reset
log_level: debug
allowed_origins:
  - dashboard.example.com
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.APIURL != "http://reports.internal:9000" {
		t.Errorf("APIURL = %v", cfg.APIURL)
	}
	if cfg.ListenAddr != "127.0.0.1:4000" {
		t.Errorf("ListenAddr = %v", cfg.ListenAddr)
	}
	if cfg.PollInterval != 45*time.Second {
		t.Errorf("PollInterval = %v, want 45s", cfg.PollInterval)
	}
	if cfg.RequestTimeout != 5*time.Second {
		t.Errorf("RequestTimeout = %v, want 5s", cfg.RequestTimeout)
	}
	if cfg.MaxRetries != 2 {
		t.Errorf("MaxRetries = %v, want 2", cfg.MaxRetries)
	}
	if cfg.ErrorPolicy() != dashboard.ErrorResetOnSuccess {
		t.Errorf("ErrorPolicy() = %v, want reset", cfg.ErrorPolicy())
	}
	if cfg.SlogLevel() != slog.LevelDebug {
		t.Errorf("SlogLevel() = %v, want debug", cfg.SlogLevel())
	}
	if len(cfg.AllowedOrigins) != 1 || cfg.AllowedOrigins[0] != "dashboard.example.com" {
		t.Errorf("AllowedOrigins = %v", cfg.AllowedOrigins)
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := writeConfig(t, "api_url: [unterminated")
	if _, err := Load(path); err == nil {
		t.Error("Load() should return error on invalid YAML")
	}
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := writeConfig(t, "api_url: http://from-file:8080\npoll_interval: 45s\n")
	t.Setenv("ENERGY_API_URL", "http://from-env:8080")
	t.Setenv("POLL_INTERVAL", "10s")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.APIURL != "http://from-env:8080" {
		t.Errorf("APIURL = %v, want http://from-env:8080", cfg.APIURL)
	}
	if cfg.PollInterval != 10*time.Second {
		t.Errorf("PollInterval = %v, want 10s", cfg.PollInterval)
	}
}

func TestApplyEnv(t *testing.T) {
	env := map[string]string{
		"LISTEN_ADDR":        ":9999",
		"REQUEST_TIMEOUT":    "2s",
		"MAX_RETRIES":        "3",
		"METER_ERROR_POLICY": "reset",
		"LOG_LEVEL":          "warn",
		"ALLOWED_ORIGINS":    "a.example.com, b.example.com,",
		"ENERGY_API_URL":     "   ",
	}
	lookup := func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	}

	cfg := Default()
	if err := cfg.applyEnv(lookup); err != nil {
		t.Fatalf("applyEnv() error = %v", err)
	}

	if cfg.ListenAddr != ":9999" {
		t.Errorf("ListenAddr = %v", cfg.ListenAddr)
	}
	if cfg.RequestTimeout != 2*time.Second {
		t.Errorf("RequestTimeout = %v", cfg.RequestTimeout)
	}
	if cfg.MaxRetries != 3 {
		t.Errorf("MaxRetries = %v", cfg.MaxRetries)
	}
	if cfg.MeterErrorPolicy != "reset" {
		t.Errorf("MeterErrorPolicy = %v", cfg.MeterErrorPolicy)
	}
	if cfg.SlogLevel() != slog.LevelWarn {
		t.Errorf("SlogLevel() = %v", cfg.SlogLevel())
	}
	if len(cfg.AllowedOrigins) != 2 || cfg.AllowedOrigins[1] != "b.example.com" {
		t.Errorf("AllowedOrigins = %v", cfg.AllowedOrigins)
	}
	if cfg.APIURL != DefaultAPIURL {
		t.Errorf("blank ENERGY_API_URL should be ignored, got %v", cfg.APIURL)
	}
}

func TestApplyEnv_InvalidValues(t *testing.T) {
	for _, key := range []string{"POLL_INTERVAL", "REQUEST_TIMEOUT", "MAX_RETRIES"} {
		t.Run(key, func(t *testing.T) {
			lookup := func(k string) (string, bool) {
				if k == key {
					return "nope", true
				}
				return "", false
			}
			if err := Default().applyEnv(lookup); err == nil {
				t.Errorf("applyEnv() should fail for invalid %s", key)
			}
		})
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
	}{
		{name: "relative api url", modify: func(c *Config) { c.APIURL = "/api" }},
		{name: "empty listen", modify: func(c *Config) { c.ListenAddr = "" }},
		{name: "zero poll interval", modify: func(c *Config) { c.PollInterval = 0 }},
		{name: "zero timeout", modify: func(c *Config) { c.RequestTimeout = 0 }},
		{name: "negative retries", modify: func(c *Config) { c.MaxRetries = -1 }},
		{name: "unknown policy", modify: func(c *Config) { c.MeterErrorPolicy = "forever" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.modify(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("Validate() should return error")
			}
		})
	}
}
