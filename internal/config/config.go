// Package config loads server configuration from the environment.
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config holds everything the server needs at startup. JWT signing keys
// are not configured here: the secret lives in the database and is
// generated on first run.
type Config struct {
	Addr           string        `env:"CAMPUSFOUND_ADDR" envDefault:":8080"`
	DBPath         string        `env:"CAMPUSFOUND_DB" envDefault:"campusfound.sqlite3"`
	GuardEmail     string        `env:"CAMPUSFOUND_GUARD_EMAIL" envDefault:"guard@campus.edu"`
	LogLevel       string        `env:"LOG_LEVEL" envDefault:"info"`
	SweepInterval  time.Duration `env:"CAMPUSFOUND_SWEEP_INTERVAL" envDefault:"1h"`
	SweepGrace     time.Duration `env:"CAMPUSFOUND_SWEEP_GRACE" envDefault:"24h"`
	MaxUploadBytes int64         `env:"CAMPUSFOUND_MAX_UPLOAD" envDefault:"5242880"`
}

// Load parses configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parsing environment: %w", err)
	}
	return cfg, nil
}
