package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/rs/zerolog"
)

// Config holds the application configuration.
type Config struct {
	Addr      string
	DBDriver  string
	DSN       string
	SecretKey string
	PerPage   int
	LogLevel  zerolog.Level
	LogPretty bool
}

// Load reads the configuration from TWIRPER_* environment variables,
// falling back to development defaults.
func Load() (*Config, error) {
	perPage, err := strconv.Atoi(getEnv("TWIRPER_PER_PAGE", "30"))
	if err != nil || perPage <= 0 {
		return nil, fmt.Errorf("TWIRPER_PER_PAGE: want a positive integer, got %q", os.Getenv("TWIRPER_PER_PAGE"))
	}
	level, err := zerolog.ParseLevel(getEnv("TWIRPER_LOG_LEVEL", "info"))
	if err != nil {
		return nil, fmt.Errorf("TWIRPER_LOG_LEVEL: %w", err)
	}
	pretty, err := strconv.ParseBool(getEnv("TWIRPER_LOG_PRETTY", "true"))
	if err != nil {
		return nil, fmt.Errorf("TWIRPER_LOG_PRETTY: %w", err)
	}
	driver := getEnv("TWIRPER_DB_DRIVER", "sqlite3")
	if driver != "sqlite3" && driver != "pgx" {
		return nil, fmt.Errorf("TWIRPER_DB_DRIVER: unsupported driver %q", driver)
	}

	return &Config{
		Addr:      getEnv("TWIRPER_ADDR", ":5000"),
		DBDriver:  driver,
		DSN:       getEnv("TWIRPER_DSN", "file:/tmp/twirper.db?_foreign_keys=on"),
		SecretKey: getEnv("TWIRPER_SECRET_KEY", "development key"),
		PerPage:   perPage,
		LogLevel:  level,
		LogPretty: pretty,
	}, nil
}

// Helper to get an environment variable with a default value.
func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}
