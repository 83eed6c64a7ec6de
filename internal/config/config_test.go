package config

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":5000", cfg.Addr)
	assert.Equal(t, "sqlite3", cfg.DBDriver)
	assert.Equal(t, 30, cfg.PerPage)
	assert.Equal(t, zerolog.InfoLevel, cfg.LogLevel)
	assert.True(t, cfg.LogPretty)
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("TWIRPER_ADDR", ":8080")
	t.Setenv("TWIRPER_DB_DRIVER", "pgx")
	t.Setenv("TWIRPER_DSN", "postgres://localhost/twirper")
	t.Setenv("TWIRPER_PER_PAGE", "10")
	t.Setenv("TWIRPER_LOG_LEVEL", "debug")
	t.Setenv("TWIRPER_LOG_PRETTY", "false")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Addr)
	assert.Equal(t, "pgx", cfg.DBDriver)
	assert.Equal(t, "postgres://localhost/twirper", cfg.DSN)
	assert.Equal(t, 10, cfg.PerPage)
	assert.Equal(t, zerolog.DebugLevel, cfg.LogLevel)
	assert.False(t, cfg.LogPretty)
}

func TestLoadRejectsBadValues(t *testing.T) {
	for key, value := range map[string]string{
		"TWIRPER_PER_PAGE":   "zero",
		"TWIRPER_LOG_LEVEL":  "loud",
		"TWIRPER_LOG_PRETTY": "maybe",
		"TWIRPER_DB_DRIVER":  "mysql",
	} {
		t.Run(key, func(t *testing.T) {
			t.Setenv(key, value)
			_, err := Load()
			assert.Error(t, err)
		})
	}
}
