// Package config loads the engine's YAML configuration, following the
// teacher's Load*Config(path) + os.ReadFile + yaml.Unmarshal convention
// (internal/application/config.go), with environment-variable overrides
// layered on top the way internal/infrastructure/db.Config does via its
// `env:` struct tags.
package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/finova-oss/rewardengine/internal/antibot"
	"github.com/finova-oss/rewardengine/internal/logging"
	"github.com/finova-oss/rewardengine/internal/quality"
	"github.com/finova-oss/rewardengine/internal/referral"
	"github.com/finova-oss/rewardengine/internal/reward"
	"github.com/finova-oss/rewardengine/internal/store/cache"
	"github.com/finova-oss/rewardengine/internal/store/postgres"
)

// Config is the engine's top-level configuration tree, one section per
// concern.
type Config struct {
	Logging  logging.Config  `yaml:"logging"`
	Quality  quality.Config  `yaml:"quality"`
	AntiBot  antibot.Config  `yaml:"antibot"`
	Referral referral.Config `yaml:"referral"`
	Reward   reward.Config   `yaml:"reward"`
	Postgres postgres.Config `yaml:"postgres"`
	Redis    cache.RedisConfig `yaml:"redis"`

	// StoreBackend selects "memory" or "postgres"; audit buffer capacity
	// is exposed here rather than in internal/audit since it's an
	// operational knob, not a formula constant.
	StoreBackend       string `yaml:"store_backend" env:"STORE_BACKEND"`
	AuditBufferCapacity int   `yaml:"audit_buffer_capacity" env:"AUDIT_BUFFER_CAPACITY"`
}

// Default returns the engine's built-in defaults, matching the constants
// fixed by the spec across every subsystem.
func Default() Config {
	return Config{
		Logging:             logging.DefaultConfig(),
		Quality:             quality.DefaultConfig(),
		AntiBot:             antibot.DefaultConfig(),
		Referral:            referral.DefaultConfig(),
		Reward:              reward.DefaultConfig(),
		Postgres:            postgres.DefaultConfig(),
		Redis:               cache.DefaultRedisConfig(),
		StoreBackend:        "memory",
		AuditBufferCapacity: 1024,
	}
}

// Load reads a YAML file at path over the defaults, then applies
// environment-variable overrides for the handful of fields that carry an
// `env` tag.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("config: read %s: %w", path, err)
		}
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}
	applyEnvOverrides(&cfg)
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("LOG_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}
	if v := os.Getenv("STORE_BACKEND"); v != "" {
		cfg.StoreBackend = v
	}
	if v := os.Getenv("AUDIT_BUFFER_CAPACITY"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.AuditBufferCapacity = n
		}
	}
	if v := os.Getenv("PG_DSN"); v != "" {
		cfg.Postgres.DSN = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}
}

// Validate checks cross-cutting invariants the individual sub-configs
// can't check on their own.
func (c Config) Validate() error {
	if err := c.Quality.Validate(); err != nil {
		return err
	}
	switch c.StoreBackend {
	case "memory", "postgres":
	default:
		return fmt.Errorf("config: unknown store_backend %q", c.StoreBackend)
	}
	if c.StoreBackend == "postgres" && c.Postgres.DSN == "" {
		return fmt.Errorf("config: postgres store_backend requires postgres.dsn or PG_DSN")
	}
	if c.AuditBufferCapacity <= 0 {
		return fmt.Errorf("config: audit_buffer_capacity must be positive")
	}
	return nil
}
