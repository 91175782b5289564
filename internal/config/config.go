// Package config loads pledge settings from the environment.
package config

import (
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/caarlos0/env/v11"
)

// Log formats accepted by PLEDGE_LOG_FORMAT.
const (
	LogFormatText = "text"
	LogFormatJSON = "json"
)

// Config holds environment-provided settings. CLI flags override them.
type Config struct {
	// DB is the SQLite database path.
	DB string `env:"PLEDGE_DB" envDefault:"pledge.db"`

	// Asset is used when a create request names none.
	Asset string `env:"PLEDGE_ASSET" envDefault:"TOKEN"`

	LogLevel  string `env:"PLEDGE_LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"PLEDGE_LOG_FORMAT" envDefault:"text"`

	// Now pins the engine clock to a unix time. Zero uses the system clock.
	Now uint64 `env:"PLEDGE_NOW"`
}

// ParseEnv loads configuration from environment variables.
func ParseEnv(target any) error {
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// Load parses and validates a Config.
func Load() (Config, error) {
	var cfg Config
	if err := ParseEnv(&cfg); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the enumerated settings.
func (c Config) Validate() error {
	if c.DB == "" {
		return fmt.Errorf("PLEDGE_DB must not be empty")
	}
	if c.Asset == "" {
		return fmt.Errorf("PLEDGE_ASSET must not be empty")
	}
	if _, err := ParseLevel(c.LogLevel); err != nil {
		return err
	}
	switch c.LogFormat {
	case LogFormatText, LogFormatJSON:
	default:
		return fmt.Errorf("PLEDGE_LOG_FORMAT must be %q or %q, got %q", LogFormatText, LogFormatJSON, c.LogFormat)
	}
	return nil
}

// ParseLevel maps debug, info, warn and error to slog levels.
func ParseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(s))); err != nil {
		return 0, fmt.Errorf("PLEDGE_LOG_LEVEL: %w", err)
	}
	return level, nil
}

// NewHandler builds the slog handler described by c, writing to w.
// verbose forces Debug regardless of LogLevel.
func (c Config) NewHandler(w io.Writer, verbose bool) slog.Handler {
	level, err := ParseLevel(c.LogLevel)
	if err != nil {
		level = slog.LevelInfo
	}
	if verbose {
		level = slog.LevelDebug
	}

	opts := &slog.HandlerOptions{Level: level}
	if c.LogFormat == LogFormatJSON {
		return slog.NewJSONHandler(w, opts)
	}
	return slog.NewTextHandler(w, opts)
}
