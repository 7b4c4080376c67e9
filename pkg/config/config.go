// Package config loads the dashboard configuration from a YAML file, a .env
// file and the process environment.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/hawky-4s-/energy-report-dashboard/pkg/dashboard"
)

// Default configuration values
const (
	DefaultAPIURL         = "http://localhost:8080"
	DefaultListenAddr     = ":3000"
	DefaultPollInterval   = dashboard.DefaultPollInterval
	DefaultRequestTimeout = 30 * time.Second
	DefaultLogLevel       = "info"
	DefaultPath           = "config.yaml"
)

// Config holds the application configuration
type Config struct {
	APIURL           string        `yaml:"api_url"`
	ListenAddr       string        `yaml:"listen"`
	PollInterval     time.Duration `yaml:"poll_interval"`
	RequestTimeout   time.Duration `yaml:"request_timeout"`
	MaxRetries       int           `yaml:"max_retries"`
	MeterErrorPolicy string        `yaml:"meter_error_policy"`
	LogLevel         string        `yaml:"log_level"`
	AllowedOrigins   []string      `yaml:"allowed_origins,omitempty"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		APIURL:           DefaultAPIURL,
		ListenAddr:       DefaultListenAddr,
		PollInterval:     DefaultPollInterval,
		RequestTimeout:   DefaultRequestTimeout,
		MeterErrorPolicy: dashboard.ErrorSticky.String(),
		LogLevel:         DefaultLogLevel,
	}
}

// Load builds the configuration: defaults, then the YAML file at path (a
// missing file is not an error), then .env and environment variables.
func Load(path string) (*Config, error) {
	cfg := Default()

	if err := cfg.loadFile(path); err != nil {
		return nil, err
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("loading .env file: %w", err)
	}
	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	if path == "" {
		path = DefaultPath
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			slog.Debug("no config file found, using defaults", "path", path)
			return nil
		}
		return fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parsing config file: %w", err)
	}
	return nil
}

// applyEnv overrides fields from environment variables.
func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	get := func(key string) (string, bool) {
		v, ok := lookup(key)
		if !ok || strings.TrimSpace(v) == "" {
			return "", false
		}
		return strings.TrimSpace(v), true
	}

	if v, ok := get("ENERGY_API_URL"); ok {
		c.APIURL = v
	}
	if v, ok := get("LISTEN_ADDR"); ok {
		c.ListenAddr = v
	}
	if v, ok := get("POLL_INTERVAL"); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("parsing POLL_INTERVAL: %w", err)
		}
		c.PollInterval = d
	}
	if v, ok := get("REQUEST_TIMEOUT"); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("parsing REQUEST_TIMEOUT: %w", err)
		}
		c.RequestTimeout = d
	}
	if v, ok := get("MAX_RETRIES"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("parsing MAX_RETRIES: %w", err)
		}
		c.MaxRetries = n
	}
	if v, ok := get("METER_ERROR_POLICY"); ok {
		c.MeterErrorPolicy = v
	}
	if v, ok := get("LOG_LEVEL"); ok {
		c.LogLevel = v
	}
	if v, ok := get("ALLOWED_ORIGINS"); ok {
		c.AllowedOrigins = nil
		for _, o := range strings.Split(v, ",") {
			if o = strings.TrimSpace(o); o != "" {
				c.AllowedOrigins = append(c.AllowedOrigins, o)
			}
		}
	}

	return nil
}

// Validate checks the configuration for obvious mistakes.
func (c *Config) Validate() error {
	u, err := url.Parse(c.APIURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("invalid api_url %q", c.APIURL)
	}
	if c.ListenAddr == "" {
		return fmt.Errorf("listen address is required")
	}
	if c.PollInterval <= 0 {
		return fmt.Errorf("poll_interval must be positive, got %s", c.PollInterval)
	}
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("request_timeout must be positive, got %s", c.RequestTimeout)
	}
	if c.MaxRetries < 0 {
		return fmt.Errorf("max_retries must not be negative, got %d", c.MaxRetries)
	}
	if _, err := dashboard.ParseErrorPolicy(c.MeterErrorPolicy); err != nil {
		return err
	}
	return nil
}

// ErrorPolicy returns the parsed meter error policy.
func (c *Config) ErrorPolicy() dashboard.ErrorPolicy {
	p, _ := dashboard.ParseErrorPolicy(c.MeterErrorPolicy)
	return p
}

// SlogLevel maps LogLevel to a slog level, defaulting to info.
func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
