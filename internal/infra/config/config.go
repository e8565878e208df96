// Package config loads runtime configuration from environment variables.
// Every field has a default so the binary runs locally without any setup.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config holds runtime configuration for calcatalog.
type Config struct {
	Host string `env:"CALCATALOG_HOST" envDefault:"0.0.0.0"`
	Port int    `env:"CALCATALOG_PORT" envDefault:"8080"`

	LogLevel  string `env:"CALCATALOG_LOG_LEVEL"  envDefault:"info"`
	LogFormat string `env:"CALCATALOG_LOG_FORMAT" envDefault:"text"`

	ExecutionTimeout time.Duration `env:"CALCATALOG_EXECUTION_TIMEOUT"    envDefault:"5s"`
	ValidatorTTL     time.Duration `env:"CALCATALOG_VALIDATOR_CACHE_TTL" envDefault:"30m"`

	// ManifestPath points at a YAML manifest of scripted calculators. Empty
	// disables scripted modules.
	ManifestPath  string        `env:"CALCATALOG_MANIFEST_PATH"`
	WatchManifest bool          `env:"CALCATALOG_WATCH_MANIFEST" envDefault:"false"`
	WatchDebounce time.Duration `env:"CALCATALOG_WATCH_DEBOUNCE" envDefault:"250ms"`

	// JournalPath is the sqlite execution journal. Empty disables it.
	JournalPath string `env:"CALCATALOG_JOURNAL_PATH"`

	TraceStdout bool `env:"CALCATALOG_TRACE_STDOUT" envDefault:"false"`

	JWTSecret      string `env:"JWT_SECRET"`
	JWTExpiryHours int    `env:"JWT_EXPIRY" envDefault:"24"`
	// AdminPasswordHash is a bcrypt hash. Empty disables the admin token endpoint.
	AdminPasswordHash string `env:"CALCATALOG_ADMIN_PASSWORD_HASH"`
}

var (
	errInvalidLogLevel  = errors.New("log level must be debug, info, warn or error")
	errInvalidLogFormat = errors.New("log format must be text or json")
)

// Load reads configuration from the environment and validates it.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	cfg.LogLevel = strings.ToLower(strings.TrimSpace(cfg.LogLevel))
	cfg.LogFormat = strings.ToLower(strings.TrimSpace(cfg.LogFormat))
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks values env.Parse cannot express as tags.
func (c Config) Validate() error {
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("%w: %q", errInvalidLogLevel, c.LogLevel)
	}
	switch c.LogFormat {
	case "text", "json":
	default:
		return fmt.Errorf("%w: %q", errInvalidLogFormat, c.LogFormat)
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("port %d out of range", c.Port)
	}
	if c.ExecutionTimeout <= 0 {
		return fmt.Errorf("execution timeout must be positive, got %s", c.ExecutionTimeout)
	}
	if c.JWTExpiryHours <= 0 {
		return fmt.Errorf("jwt expiry must be positive hours, got %d", c.JWTExpiryHours)
	}
	if c.AdminPasswordHash != "" && c.JWTSecret == "" {
		return errors.New("JWT_SECRET is required when an admin password hash is set")
	}
	return nil
}

// Addr is the HTTP listen address.
func (c Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// JWTExpiry is JWTExpiryHours as a Duration.
func (c Config) JWTExpiry() time.Duration {
	return time.Duration(c.JWTExpiryHours) * time.Hour
}

// AdminEnabled reports whether admin routes can issue and accept tokens.
func (c Config) AdminEnabled() bool {
	return c.AdminPasswordHash != "" && c.JWTSecret != ""
}
