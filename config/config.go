// Package config loads runtime settings from the environment and optional
// .env files.
package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/caarlos0/env"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

// Storage drivers accepted in FOLIO_DRIVER.
const (
	DriverMemory   = "memory"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

type Config struct {
	Driver      string `env:"FOLIO_DRIVER" envDefault:"memory" validate:"oneof=memory sqlite postgres"`
	SQLitePath  string `env:"FOLIO_SQLITE_PATH" envDefault:"folio.db" validate:"required_if=Driver sqlite"`
	PostgresDSN string `env:"FOLIO_POSTGRES_DSN" validate:"required_if=Driver postgres"`
	TablePrefix string `env:"FOLIO_TABLE_PREFIX" validate:"max=32"`
	SchemaName  string `env:"FOLIO_SCHEMA_NAME"`

	LogLevel      string `env:"FOLIO_LOG_LEVEL" envDefault:"info" validate:"oneof=debug info warn error"`
	LogFile       string `env:"FOLIO_LOG_FILE"` // Empty logs to stderr only.
	LogMaxSizeMB  int    `env:"FOLIO_LOG_MAX_SIZE_MB" envDefault:"100" validate:"min=1"`
	LogMaxBackups int    `env:"FOLIO_LOG_MAX_BACKUPS" envDefault:"3" validate:"min=0"`
	LogMaxAgeDays int    `env:"FOLIO_LOG_MAX_AGE_DAYS" envDefault:"28" validate:"min=0"`
	LogCompress   bool   `env:"FOLIO_LOG_COMPRESS" envDefault:"false"`
}

var validate = validator.New()

// Load reads the given .env files, skipping those that do not exist, then
// parses and validates the environment. Variables already set in the
// environment win over file values.
func Load(files ...string) (*Config, error) {
	for _, f := range files {
		if _, err := os.Stat(f); errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err := godotenv.Load(f); err != nil {
			return nil, fmt.Errorf("failed to load env file %s: %w", f, err)
		}
	}

	cfg := Config{}
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := validate.Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}
