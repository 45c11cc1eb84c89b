// Package bootstrap loads configuration, wires every connection hub
// and use case together, and exposes the Launcher Apps (HTTP front
// door, outbox dispatcher, idempotency GC) the two cmd entrypoints run.
package bootstrap

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config is the flat, environment-driven configuration surface for
// both binaries, plus the idempotency GC interval.
type Config struct {
	DatabaseURL    string `env:"DATABASE_URL,required"`
	MigrationsPath string `env:"MIGRATIONS_PATH" envDefault:"migrations"`
	RedisURL       string `env:"REDIS_URL,required"`
	BrokerURL      string `env:"BROKER_URL,required"`
	LogLevel       string `env:"LOG_LEVEL" envDefault:"info"`

	HTTPPort    string `env:"HTTP_PORT" envDefault:":8080"`
	MetricsPort string `env:"METRICS_PORT" envDefault:":9090"`

	OutboxBatchSize     int           `env:"OUTBOX_BATCH_SIZE" envDefault:"100"`
	OutboxPollInterval  time.Duration `env:"OUTBOX_POLL_INTERVAL" envDefault:"1s"`
	OutboxMaxRetries    int           `env:"OUTBOX_MAX_RETRIES" envDefault:"5"`
	OutboxBaseDelay     time.Duration `env:"OUTBOX_BASE_DELAY" envDefault:"1s"`
	OutboxMaxDelay      time.Duration `env:"OUTBOX_MAX_DELAY" envDefault:"60s"`
	OutboxTopicPrefix   string        `env:"OUTBOX_TOPIC_PREFIX" envDefault:"payments"`
	OutboxFailureLimit  int           `env:"OUTBOX_CONSECUTIVE_FAILURE_LIMIT" envDefault:"10"`

	RateLimitEnabled       bool  `env:"RATE_LIMIT_ENABLED" envDefault:"true"`
	RateLimitMaxRequests   int64 `env:"RATE_LIMIT_MAX_REQUESTS" envDefault:"100"`
	RateLimitWindowSeconds int64 `env:"RATE_LIMIT_WINDOW_SECONDS" envDefault:"60"`

	IdempotencyTTL        time.Duration `env:"IDEMPOTENCY_TTL" envDefault:"24h"`
	IdempotencyGCInterval time.Duration `env:"IDEMPOTENCY_GC_INTERVAL" envDefault:"1h"`
}

// LoadConfig loads a .env file if present (without overriding
// already-set environment variables), then parses Config from the
// environment.
func LoadConfig() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env file: %w", err)
	}

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}

	return cfg, nil
}
