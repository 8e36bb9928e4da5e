package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	for _, k := range []string{"PORT", "DB_PATH", "SYNC_URL", "SYNC_INTERVAL", "SYNC_SCOPE", "SYNC_AUTH", "DEVICE_ID", "LOCATION_PERMISSION"} {
		t.Setenv(k, "")
	}

	cfg := Load()
	assert.Equal(t, ":8080", cfg.Port)
	assert.Equal(t, "./data/fishing.db", cfg.DBPath)
	assert.Equal(t, 15*time.Minute, cfg.Sync.Interval)
	assert.Equal(t, ScopeAll, cfg.Sync.Scope)
	assert.Equal(t, AuthOptional, cfg.Sync.Auth)
	assert.False(t, cfg.LocationPermission)
	assert.False(t, cfg.OAuth.Enabled())
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("PORT", ":9090")
	t.Setenv("SYNC_URL", "https://example.org/sync")
	t.Setenv("SYNC_INTERVAL", "0")
	t.Setenv("SYNC_SCOPE", "PERIOD")
	t.Setenv("SYNC_AUTH", "required")
	t.Setenv("DEVICE_ID", "  boat-7 ")
	t.Setenv("LOCATION_PERMISSION", "true")
	t.Setenv("OAUTH_TOKEN_URL", "https://example.org/token")
	t.Setenv("OAUTH_REFRESH_TOKEN", "r")

	cfg := Load()
	assert.Equal(t, ":9090", cfg.Port)
	assert.Equal(t, "https://example.org/sync", cfg.Sync.URL)
	assert.Zero(t, cfg.Sync.Interval)
	assert.Equal(t, ScopePeriod, cfg.Sync.Scope)
	assert.Equal(t, AuthRequired, cfg.Sync.Auth)
	assert.Equal(t, "boat-7", cfg.DeviceID)
	assert.True(t, cfg.LocationPermission)
	assert.True(t, cfg.OAuth.Enabled())
}

func TestLoadInvalidValuesFallBack(t *testing.T) {
	t.Setenv("SYNC_INTERVAL", "soon")
	t.Setenv("SYNC_SCOPE", "week")
	t.Setenv("DB_BUSY_TIMEOUT_MS", "-5")
	t.Setenv("RATE_LIMIT_RPS", "abc")
	t.Setenv("LOCATION_PERMISSION", "maybe")

	cfg := Load()
	assert.Equal(t, 15*time.Minute, cfg.Sync.Interval)
	assert.Equal(t, ScopeAll, cfg.Sync.Scope)
	assert.Equal(t, 5000, cfg.BusyTimeoutMS)
	assert.Equal(t, 20.0, cfg.RateLimitRPS)
	assert.False(t, cfg.LocationPermission)
}
