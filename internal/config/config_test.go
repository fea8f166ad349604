package config

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("APP_ENV", "development")
	t.Setenv("SESSION_SECRET", "")
	t.Setenv("SERVER_PORT", "")
	t.Setenv("SESSION_STORE", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.True(t, cfg.Server.CSRF)
	assert.Equal(t, devSessionSecret, cfg.Session.Secret)
	assert.Equal(t, "session", cfg.Session.CookieName)
	assert.Equal(t, 14*24*time.Hour, cfg.Session.TTL)
	assert.Equal(t, 25, cfg.Database.MaxOpenConns)
	assert.Equal(t, "redis", cfg.Session.Store)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("SERVER_CSRF", "false")
	t.Setenv("SESSION_TTL", "2h")
	t.Setenv("SESSION_SECRET", "s3cret")
	t.Setenv("DATABASE_MAX_OPEN_CONNS", "not-a-number")
	t.Setenv("SERVER_AUTH_RATE_LIMIT", "0.5")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Server.Port)
	assert.False(t, cfg.Server.CSRF)
	assert.Equal(t, 2*time.Hour, cfg.Session.TTL)
	assert.Equal(t, "s3cret", cfg.Session.Secret)
	assert.Equal(t, 25, cfg.Database.MaxOpenConns)
	assert.Equal(t, 0.5, cfg.Server.AuthRateLimit)
}

func TestLoadRequiresSecretInProduction(t *testing.T) {
	t.Setenv("APP_ENV", "production")
	t.Setenv("SESSION_SECRET", "")

	_, err := Load()
	assert.Error(t, err)
}

func TestSetupLoggingUnknownLevel(t *testing.T) {
	defer zerolog.SetGlobalLevel(zerolog.TraceLevel)

	SetupLogging(&LogConfig{Level: "loud"})
	assert.Equal(t, zerolog.InfoLevel, zerolog.GlobalLevel())

	SetupLogging(&LogConfig{Level: "debug"})
	assert.Equal(t, zerolog.DebugLevel, zerolog.GlobalLevel())
}

func TestLoadSessionStore(t *testing.T) {
	t.Setenv("SESSION_STORE", "memory")
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "memory", cfg.Session.Store)

	t.Setenv("SESSION_STORE", "memcached")
	_, err = Load()
	assert.Error(t, err)
}
