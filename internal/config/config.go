// Package config loads server settings from an optional YAML file and the
// environment. Environment variables win over the file.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration values for the server.
type Config struct {
	// Postgres connection string. Empty selects the in-memory store.
	DatabaseURL string

	// HTTP listen port.
	HTTPPort int

	// Workflow engine endpoint. Empty simulates every webhook.
	WebhookURL     string
	WebhookTimeout time.Duration
	WebhookSecret  string
	// WebhookStrict treats timeouts and transport errors as hard failures.
	WebhookStrict bool
	WebhookSource string

	CycleDelay time.Duration
	EmailDelay time.Duration

	// MaxActiveLoops caps concurrently running loops; 0 is unlimited.
	MaxActiveLoops int

	// Per-user request rate on the automation start endpoints; 0 is unlimited.
	RateLimit      float64
	RateLimitBurst int

	// AdminSecret guards /api/admin. Empty disables the admin routes.
	AdminSecret string

	// Allowed CORS origin.
	FrontendURL string

	// OTLP gRPC collector address. Empty disables trace export.
	OTELEndpoint string

	LogLevel string
}

// env maps config keys to the environment variables that override them.
var env = map[string]string{
	"database_url":     "DATABASE_URL",
	"http_port":        "PORT",
	"webhook_url":      "N8N_WEBHOOK_URL",
	"webhook_timeout":  "WEBHOOK_TIMEOUT",
	"webhook_secret":   "WEBHOOK_SECRET",
	"webhook_strict":   "WEBHOOK_STRICT",
	"webhook_source":   "WEBHOOK_SOURCE",
	"cycle_delay":      "CYCLE_DELAY",
	"email_delay":      "EMAIL_DELAY",
	"max_active_loops": "MAX_ACTIVE_LOOPS",
	"rate_limit":       "RATE_LIMIT",
	"rate_limit_burst": "RATE_LIMIT_BURST",
	"admin_secret":     "ADMIN_SECRET",
	"frontend_url":     "FRONTEND_URL",
	"otel_endpoint":    "OTEL_EXPORTER_OTLP_ENDPOINT",
	"log_level":        "LOG_LEVEL",
}

// Load reads configuration. When path is empty, hubcredo.yaml in the
// working directory is used if present.
func Load(path string) (*Config, error) {
	v := viper.New()

	v.SetDefault("http_port", 5000)
	v.SetDefault("webhook_timeout", "5s")
	v.SetDefault("webhook_strict", false)
	v.SetDefault("webhook_source", "hubcredo-backend")
	v.SetDefault("cycle_delay", "2s")
	v.SetDefault("email_delay", "800ms")
	v.SetDefault("max_active_loops", 0)
	v.SetDefault("rate_limit", 1.0)
	v.SetDefault("rate_limit_burst", 5)
	v.SetDefault("frontend_url", "http://localhost:5173")
	v.SetDefault("log_level", "info")

	for key, name := range env {
		if err := v.BindEnv(key, name); err != nil {
			return nil, fmt.Errorf("bind %s: %w", name, err)
		}
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	} else {
		v.SetConfigName("hubcredo")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("read config file: %w", err)
			}
		}
	}

	cfg := &Config{
		DatabaseURL:    v.GetString("database_url"),
		HTTPPort:       v.GetInt("http_port"),
		WebhookURL:     v.GetString("webhook_url"),
		WebhookSecret:  v.GetString("webhook_secret"),
		WebhookStrict:  v.GetBool("webhook_strict"),
		WebhookSource:  v.GetString("webhook_source"),
		MaxActiveLoops: v.GetInt("max_active_loops"),
		RateLimit:      v.GetFloat64("rate_limit"),
		RateLimitBurst: v.GetInt("rate_limit_burst"),
		AdminSecret:    v.GetString("admin_secret"),
		FrontendURL:    strings.TrimRight(v.GetString("frontend_url"), "/"),
		OTELEndpoint:   v.GetString("otel_endpoint"),
		LogLevel:       v.GetString("log_level"),
	}

	var err error
	if cfg.WebhookTimeout, err = duration(v, "webhook_timeout"); err != nil {
		return nil, err
	}
	if cfg.CycleDelay, err = duration(v, "cycle_delay"); err != nil {
		return nil, err
	}
	if cfg.EmailDelay, err = duration(v, "email_delay"); err != nil {
		return nil, err
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func duration(v *viper.Viper, key string) (time.Duration, error) {
	raw := v.GetString(key)
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s (env: %s): %w", key, env[key], err)
	}
	if d < 0 {
		return 0, fmt.Errorf("%s must not be negative (env: %s)", key, env[key])
	}
	return d, nil
}

func (c *Config) validate() error {
	if c.HTTPPort <= 0 || c.HTTPPort > 65535 {
		return fmt.Errorf("http_port must be between 1 and 65535 (env: PORT), got %d", c.HTTPPort)
	}
	if c.WebhookTimeout == 0 {
		return errors.New("webhook_timeout must be positive (env: WEBHOOK_TIMEOUT)")
	}
	if c.MaxActiveLoops < 0 {
		return errors.New("max_active_loops must not be negative (env: MAX_ACTIVE_LOOPS)")
	}
	if c.RateLimit < 0 {
		return errors.New("rate_limit must not be negative (env: RATE_LIMIT)")
	}
	if c.RateLimitBurst < 1 {
		return errors.New("rate_limit_burst must be at least 1 (env: RATE_LIMIT_BURST)")
	}
	return nil
}
