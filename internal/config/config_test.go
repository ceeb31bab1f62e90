package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv("DB_HOST", "localhost")
	t.Setenv("DB_NAME", "telematics")
}

func TestLoadDefaults(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, "5432", cfg.Database.Port)
	assert.Equal(t, "disable", cfg.Database.SSLMode)
	assert.Equal(t, 12*time.Hour, cfg.Admin.TokenExpiry)

	assert.True(t, cfg.Wialon.Enabled)
	assert.True(t, cfg.Cesar.Enabled)
	assert.True(t, cfg.Axenta.Enabled)

	assert.Equal(t, time.Minute, cfg.Sync.PollInterval)
	assert.Equal(t, 30*time.Second, cfg.Sync.IdleBackoff)
	assert.Equal(t, 5*time.Minute, cfg.Sync.ErrorBackoff)
	assert.Equal(t, 30*time.Second, cfg.Sync.RequestTimeout)
	assert.Equal(t, 15*time.Minute, cfg.Sync.HistoryWindow)
	assert.Equal(t, 5, cfg.Sync.ReconcileEvery)
	assert.Equal(t, 1, cfg.Sync.SessionRetries)
}

func TestLoadEnvOverrides(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("SYNC_POLL_INTERVAL", "90s")
	t.Setenv("SYNC_RECONCILE_EVERY", "10")
	t.Setenv("WIALON_ENABLED", "false")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 90*time.Second, cfg.Sync.PollInterval)
	assert.Equal(t, 10, cfg.Sync.ReconcileEvery)
	assert.False(t, cfg.Wialon.Enabled)
}

func TestLoadMissingDatabaseHost(t *testing.T) {
	t.Setenv("DB_HOST", "")
	t.Setenv("DB_NAME", "telematics")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid configuration")
}

func TestLoadMissingDatabaseName(t *testing.T) {
	t.Setenv("DB_HOST", "localhost")
	t.Setenv("DB_NAME", "")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid configuration")
}

func TestLoadRejectsMalformedProviderURL(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("WIALON_HOST", "not-a-url")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid configuration")
}

func TestLoadAcceptsProviderURL(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("WIALON_HOST", "https://hst-api.example.net/wialon/ajax.html")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "https://hst-api.example.net/wialon/ajax.html", cfg.Wialon.BaseURL)
}

func TestDatabaseDSN(t *testing.T) {
	db := DatabaseConfig{
		Host:     "localhost",
		Port:     "5432",
		User:     "sync",
		Password: "secret",
		DBName:   "telematics",
		SSLMode:  "disable",
	}
	assert.Equal(t,
		"host=localhost port=5432 user=sync password=secret dbname=telematics sslmode=disable",
		db.DSN(),
	)
}
