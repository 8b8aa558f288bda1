package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config holds every runtime knob, parsed from the environment.
type Config struct {
	Port        string `env:"PORT" envDefault:"8080"`
	AppEnv      string `env:"APP_ENV" envDefault:"development"`
	DatabaseURL string `env:"DATABASE_URL,required"`
	JWTSecret   string `env:"JWT_SECRET,required"`
	SentryDSN   string `env:"SENTRY_DSN"`
	CronSecret  string `env:"CRON_SECRET"`

	AdminEmail    string `env:"ADMIN_EMAIL"`
	AdminPassword string `env:"ADMIN_PASSWORD"`

	Tokens    Tokens    `envPrefix:"TOKEN_"`
	Database  Pool      `envPrefix:"DB_"`
	RateLimit RateLimit `envPrefix:"LOGIN_RATE_LIMIT_"`
}

// Tokens controls token lifetimes and the ledger retention window.
type Tokens struct {
	AccessTTL  time.Duration `env:"ACCESS_TTL" envDefault:"5m"`
	RefreshTTL time.Duration `env:"REFRESH_TTL" envDefault:"168h"`
	// LedgerGrace is how long a ledger record survives past issuance
	// before the reaper removes it, regardless of validity.
	LedgerGrace time.Duration `env:"LEDGER_GRACE" envDefault:"10m"`
}

// Pool holds database/sql pool settings.
type Pool struct {
	MaxOpenConns    int           `env:"MAX_OPEN_CONNS" envDefault:"10"`
	MaxIdleConns    int           `env:"MAX_IDLE_CONNS" envDefault:"5"`
	ConnMaxLifetime time.Duration `env:"CONN_MAX_LIFETIME" envDefault:"30m"`
	ConnMaxIdleTime time.Duration `env:"CONN_MAX_IDLE_TIME" envDefault:"10m"`
}

// RateLimit bounds login attempts per client IP.
type RateLimit struct {
	MaxHits int           `env:"MAX" envDefault:"10"`
	Window  time.Duration `env:"WINDOW" envDefault:"1m"`
}

// Load parses the environment into a Config. When loadDotEnv is set a
// local .env file is read first; a missing file is not an error.
func Load(loadDotEnv bool) (*Config, error) {
	if loadDotEnv {
		_ = godotenv.Load()
	}

	cfg := Config{}
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if cfg.AdminEmail != "" && cfg.AdminPassword == "" || cfg.AdminEmail == "" && cfg.AdminPassword != "" {
		return nil, fmt.Errorf("ADMIN_EMAIL and ADMIN_PASSWORD are required together")
	}

	return &cfg, nil
}
