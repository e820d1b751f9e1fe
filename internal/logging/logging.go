// Package logging wires up the engine's structured logger, following the
// teacher's zerolog conventions (internal/log).
package logging

import (
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
)

// Config selects the logger's level and output format.
type Config struct {
	Level  string `yaml:"level" env:"LOG_LEVEL"`
	Format string `yaml:"format" env:"LOG_FORMAT"` // "console" or "json"
}

func DefaultConfig() Config {
	return Config{Level: "info", Format: "console"}
}

// New builds a zerolog.Logger per cfg, writing to w (os.Stderr in
// production, a buffer in tests).
func New(cfg Config, w io.Writer) zerolog.Logger {
	level, err := zerolog.ParseLevel(strings.ToLower(cfg.Level))
	if err != nil {
		level = zerolog.InfoLevel
	}

	var out io.Writer = w
	if cfg.Format != "json" {
		out = zerolog.ConsoleWriter{Out: w, TimeFormat: "15:04:05"}
	}

	return zerolog.New(out).
		Level(level).
		With().
		Timestamp().
		Str("service", "rewardengine").
		Logger()
}

// Default returns the standard stderr logger used by cmd/rewardengine.
func Default() zerolog.Logger {
	return New(DefaultConfig(), os.Stderr)
}
