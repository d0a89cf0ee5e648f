// Package config loads portal settings from PORTAL_* environment variables.
package config

import (
	"fmt"
	"slices"
	"time"

	"github.com/caarlos0/env/v11"
)

// Storage drivers for the session record.
const (
	DriverBBolt    = "bbolt"
	DriverRedis    = "redis"
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

// Drivers lists the supported storage drivers.
var Drivers = []string{DriverBBolt, DriverRedis, DriverPostgres, DriverMemory}

// Config contains portal configuration parameters.
type Config struct {
	APIBaseURL    string        `env:"API_BASE_URL" envDefault:"http://localhost:4000"`
	HTTPTimeout   time.Duration `env:"HTTP_TIMEOUT" envDefault:"30s"`
	LogLevel      int           `env:"LOG_LEVEL" envDefault:"0"`
	LogFormat     string        `env:"LOG_FORMAT" envDefault:"text"`
	SessionSecret string        `env:"SESSION_SECRET"`
	Listen        string        `env:"LISTEN" envDefault:"127.0.0.1:8080"`
	Audit         Audit         `envPrefix:"AUDIT_"`
	Store         Store         `envPrefix:"STORE_"`
	Redis         Redis         `envPrefix:"REDIS_"`
	Postgres      Postgres      `envPrefix:"POSTGRES_"`
	Poll          Poll          `envPrefix:"POLL_"`
}

// Store selects where the session record lives.
type Store struct {
	Driver string `env:"DRIVER" envDefault:"bbolt"`
	Path   string `env:"PATH,expand" envDefault:"${HOME}/.portal/session.db"`
}

// Redis contains Redis connection parameters.
type Redis struct {
	Addr     string `env:"ADDR" envDefault:"localhost:6379"`
	Password string `env:"PASSWORD"`
	DB       int    `env:"DB" envDefault:"0"`
}

// Postgres contains PostgreSQL connection parameters.
type Postgres struct {
	DSN string `env:"DSN"`
}

// Poll contains payment watch parameters.
type Poll struct {
	Interval    time.Duration `env:"INTERVAL" envDefault:"30s"`
	MaxFailures int           `env:"MAX_FAILURES" envDefault:"10"`
}

// Audit contains gateway audit forwarding parameters.
type Audit struct {
	WebhookURL  string `env:"WEBHOOK_URL"`
	WebhookAuth string `env:"WEBHOOK_AUTH"`
}

// Prefix is prepended to every variable name.
const Prefix = "PORTAL_"

// Load reads the configuration from the environment.
func Load() (*Config, error) {
	cfg := Config{}
	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: Prefix}); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks values the environment parser cannot.
func (c *Config) Validate() error {
	if !slices.Contains(Drivers, c.Store.Driver) {
		return fmt.Errorf("unknown store driver %q (want one of %v)", c.Store.Driver, Drivers)
	}
	if c.Store.Driver == DriverPostgres && c.Postgres.DSN == "" {
		return fmt.Errorf("store driver %q requires %sPOSTGRES_DSN", DriverPostgres, Prefix)
	}
	if c.LogFormat != "text" && c.LogFormat != "json" {
		return fmt.Errorf("unknown log format %q", c.LogFormat)
	}
	if c.HTTPTimeout <= 0 {
		return fmt.Errorf("http timeout must be positive")
	}
	if c.Poll.Interval <= 0 {
		return fmt.Errorf("poll interval must be positive")
	}
	return nil
}
