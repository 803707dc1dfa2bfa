package config

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// Storage backend names
const (
	StorageMemory = "memory"
	StorageRedis  = "redis"
	StorageSQLite = "sqlite"
)

// Signature policy names
const (
	SignaturePermissive = "permissive"
	SignatureStrict     = "strict"
)

// Config is the coordinator process configuration, read from the environment
type Config struct {
	HTTPAddr    string `env:"CHESSCHAIN_HTTP_ADDR" envDefault:":8080"`
	StorageType string `env:"CHESSCHAIN_STORAGE_TYPE" envDefault:"memory"`
	RedisURL    string `env:"CHESSCHAIN_REDIS_URL" envDefault:"redis://localhost:6379/0"`
	SQLitePath  string `env:"CHESSCHAIN_SQLITE_PATH" envDefault:"chesschain.db"`

	SignaturePolicy      string `env:"CHESSCHAIN_SIGNATURE_POLICY" envDefault:"permissive"`
	SignatureVerifierURL string `env:"CHESSCHAIN_SIGNATURE_VERIFIER_URL"`

	// AllowedOrigins lists browser origins accepted on the websocket endpoint.
	// Empty means same-origin only; "*" accepts any origin.
	AllowedOrigins []string `env:"CHESSCHAIN_WS_ALLOWED_ORIGINS" envSeparator:","`

	SweepInterval      time.Duration `env:"CHESSCHAIN_SWEEP_INTERVAL" envDefault:"5s"`
	CompletedRetention time.Duration `env:"CHESSCHAIN_COMPLETED_RETENTION" envDefault:"5m"`
	ArchiveTimeout     time.Duration `env:"CHESSCHAIN_ARCHIVE_TIMEOUT" envDefault:"10s"`
	ShutdownTimeout    time.Duration `env:"CHESSCHAIN_SHUTDOWN_TIMEOUT" envDefault:"10s"`

	LogLevel string `env:"CHESSCHAIN_LOG_LEVEL" envDefault:"info"`
}

// Load parses the configuration from environment variables and validates it
func Load() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects unknown enum values and non-positive intervals
func (c *Config) Validate() error {
	switch c.StorageType {
	case StorageMemory, StorageRedis, StorageSQLite:
	default:
		return fmt.Errorf("invalid storage type %q", c.StorageType)
	}
	switch c.SignaturePolicy {
	case SignaturePermissive, SignatureStrict:
	default:
		return fmt.Errorf("invalid signature policy %q", c.SignaturePolicy)
	}
	if c.SweepInterval <= 0 {
		return fmt.Errorf("sweep interval must be positive, got %s", c.SweepInterval)
	}
	if c.CompletedRetention < 0 {
		return fmt.Errorf("completed retention must not be negative, got %s", c.CompletedRetention)
	}
	if _, err := c.SlogLevel(); err != nil {
		return err
	}
	return nil
}

// SlogLevel converts LogLevel to a slog.Level
func (c *Config) SlogLevel() (slog.Level, error) {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("invalid log level %q", c.LogLevel)
	}
}
