package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv("JWT_SECRET", "a-sufficiently-long-test-secret!")
	t.Setenv("DB_PASSWORD", "postgres")
}

func TestLoad_Defaults(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "development", cfg.Server.Env)
	assert.False(t, cfg.IsProduction())
	assert.Equal(t, 30, cfg.Auth.RefreshTTLDays)
	assert.Equal(t, 30, cfg.Auth.RefreshMaxTTLDays)
	assert.Equal(t, 30*24*time.Hour, cfg.Auth.RefreshTTL())
	assert.Equal(t, 15*time.Minute, cfg.Auth.AccessTokenExpiry)
	assert.Equal(t, 10*time.Minute, cfg.Auth.ReauthTokenExpiry)
	assert.Equal(t, 30*time.Minute, cfg.Auth.ResetTokenExpiry)
	assert.False(t, cfg.Auth.CookieSecure)
}

func TestLoad_RefreshCapDefaultsToSlidingWindow(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("REFRESH_TTL_DAYS", "14")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 14, cfg.Auth.RefreshTTLDays)
	assert.Equal(t, 14, cfg.Auth.RefreshMaxTTLDays)
}

func TestLoad_RefreshCapExplicit(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("REFRESH_TTL_DAYS", "30")
	t.Setenv("REFRESH_MAX_TTL_DAYS", "60")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 60*24*time.Hour, cfg.Auth.RefreshMaxTTL())
}

func TestLoad_RefreshCapBelowWindowRejected(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("REFRESH_TTL_DAYS", "30")
	t.Setenv("REFRESH_MAX_TTL_DAYS", "7")

	_, err := Load()
	assert.Error(t, err)
}

func TestLoad_MissingJWTSecret(t *testing.T) {
	t.Setenv("JWT_SECRET", "")
	t.Setenv("DB_PASSWORD", "postgres")

	_, err := Load()
	assert.Error(t, err)
}

func TestLoad_MissingDBPassword(t *testing.T) {
	t.Setenv("JWT_SECRET", "a-sufficiently-long-test-secret!")
	t.Setenv("DB_PASSWORD", "")

	_, err := Load()
	assert.Error(t, err)
}

func TestLoad_WeakJWTSecretInProduction(t *testing.T) {
	t.Setenv("JWT_SECRET", "short-secret-now!")
	t.Setenv("DB_PASSWORD", "postgres")
	t.Setenv("ENV", "production")

	_, err := Load()
	assert.Error(t, err)
}

func TestLoad_ProductionDefaults(t *testing.T) {
	t.Setenv("JWT_SECRET", "a-production-grade-secret-of-32-chars!!")
	t.Setenv("DB_PASSWORD", "postgres")
	t.Setenv("ENV", "production")

	cfg, err := Load()
	require.NoError(t, err)
	assert.True(t, cfg.IsProduction())
	assert.True(t, cfg.Auth.CookieSecure)
	assert.Empty(t, cfg.Server.AllowedOrigins)
}
