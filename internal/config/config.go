// Package config loads the server configuration from the environment, with an
// optional .env file for local development.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"strings"
	"time"

	"github.com/joeshaw/envdecode"
	"github.com/joho/godotenv"

	"github.com/sakif/drink-tracker/internal/repository/sqlstore"
)

// MinSecretLength is the shortest TOKEN_SECRET accepted.
const MinSecretLength = 16

// Config holds every tunable of the server. Field tags name the environment
// variable and its default.
type Config struct {
	Port int `env:"PORT,default=8080"`

	DBDriver   string `env:"DB_DRIVER,default=sqlite"`
	DBDSN      string `env:"DB_DSN,default=data/drinks.db"`
	DBMaxConns int    `env:"DB_MAX_CONNS,default=10"`

	RequestTimeout time.Duration `env:"REQUEST_TIMEOUT,default=10s"`

	TokenSecret       string        `env:"TOKEN_SECRET"`
	TokenTTL          time.Duration `env:"TOKEN_TTL,default=168h"`
	BcryptCost        int           `env:"BCRYPT_COST,default=12"`
	AuthRatePerMinute int           `env:"AUTH_RATE_PER_MINUTE,default=30"`

	SessionRetention time.Duration `env:"SESSION_RETENTION,default=720h"`
	PurgeSchedule    string        `env:"PURGE_SCHEDULE,default=@hourly"`

	Seed     bool   `env:"SEED,default=true"`
	LogLevel string `env:"LOG_LEVEL,default=info"`
}

// Load reads envFile (if it exists) into the process environment without
// overriding variables that are already set, then decodes and validates.
// An empty envFile skips the file.
func Load(envFile string) (Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("config: reading %s: %w", envFile, err)
		}
	}

	var cfg Config
	// Every field has a default except the secret, so "nothing set" only
	// means the environment is empty; Validate reports what is missing.
	if err := envdecode.Decode(&cfg); err != nil && !errors.Is(err, envdecode.ErrNoTargetFieldsAreSet) {
		return Config{}, fmt.Errorf("config: decoding environment: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate reports every invalid field at once.
func (c Config) Validate() error {
	var errs []error
	check := func(ok bool, format string, args ...any) {
		if !ok {
			errs = append(errs, fmt.Errorf(format, args...))
		}
	}

	check(c.Port > 0 && c.Port < 65536, "PORT %d is out of range", c.Port)
	check(c.DBDSN != "", "DB_DSN is empty")
	check(c.DBMaxConns >= 1, "DB_MAX_CONNS must be at least 1")
	check(c.RequestTimeout > 0, "REQUEST_TIMEOUT must be positive")
	check(len(c.TokenSecret) >= MinSecretLength, "TOKEN_SECRET must be at least %d characters", MinSecretLength)
	check(c.TokenTTL > 0, "TOKEN_TTL must be positive")
	check(c.AuthRatePerMinute >= 1, "AUTH_RATE_PER_MINUTE must be at least 1")
	check(c.SessionRetention >= 0, "SESSION_RETENTION cannot be negative")
	check(strings.TrimSpace(c.PurgeSchedule) != "", "PURGE_SCHEDULE is empty")

	if _, err := sqlstore.ParseDialect(c.DBDriver); err != nil {
		errs = append(errs, fmt.Errorf("DB_DRIVER %q is not sqlite or postgres", c.DBDriver))
	}

	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		errs = append(errs, fmt.Errorf("LOG_LEVEL %q is not debug, info, warn or error", c.LogLevel))
	}

	if len(errs) > 0 {
		return fmt.Errorf("config: %w", errors.Join(errs...))
	}
	return nil
}

// Level is LOG_LEVEL as a slog level; unknown values fall back to info.
func (c Config) Level() slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return slog.LevelInfo
	}
	return level
}
