package config_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/fernlabs/authgate/internal/config"
)

func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("DATABASE_URL", "postgres://localhost:5432/authgate")
	t.Setenv("JWT_SECRET", "test-secret")
}

func TestLoadDefaults(t *testing.T) {
	setRequired(t)

	cfg, err := config.Load()
	require.NoError(t, err)
	require.Equal(t, "development", cfg.Environment)
	require.Equal(t, "8080", cfg.HTTPPort)
	require.Equal(t, 15*time.Minute, cfg.AccessTokenTTL)
	require.Equal(t, 30*24*time.Hour, cfg.RefreshTokenTTL)
	require.Equal(t, 32, cfg.RefreshTokenBytes)
	require.False(t, cfg.RefreshRotate)
	require.False(t, cfg.RevokeOnLogin)
	require.Equal(t, 10, cfg.LoginMaxFailures)
	require.Equal(t, []string{"*"}, cfg.CORSAllowedOrigins)
}

func TestLoadRequiresDatabaseURL(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	t.Setenv("JWT_SECRET", "test-secret")

	_, err := config.Load()
	require.Error(t, err)
}

func TestLoadRequiresJWTSecret(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost:5432/authgate")
	t.Setenv("JWT_SECRET", "")

	_, err := config.Load()
	require.Error(t, err)
}

func TestLoadOverrides(t *testing.T) {
	setRequired(t)
	t.Setenv("APP_ENV", "production")
	t.Setenv("ACCESS_TOKEN_TTL", "5m")
	t.Setenv("REFRESH_TOKEN_ROTATE", "true")
	t.Setenv("REFRESH_TOKEN_REVOKE_ON_LOGIN", "yes")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://app.example.com, https://admin.example.com")

	cfg, err := config.Load()
	require.NoError(t, err)
	require.Equal(t, "production", cfg.Environment)
	require.Equal(t, 5*time.Minute, cfg.AccessTokenTTL)
	require.True(t, cfg.RefreshRotate)
	require.True(t, cfg.RevokeOnLogin)
	require.Equal(t, []string{"https://app.example.com", "https://admin.example.com"}, cfg.CORSAllowedOrigins)
}

func TestLoadClampsRefreshTokenBytes(t *testing.T) {
	setRequired(t)
	t.Setenv("REFRESH_TOKEN_BYTES", "8")

	cfg, err := config.Load()
	require.NoError(t, err)
	require.Equal(t, 32, cfg.RefreshTokenBytes)
}

func TestLoadAdminRequiresPassword(t *testing.T) {
	setRequired(t)
	t.Setenv("ADMIN_USERNAME", "admin")
	t.Setenv("ADMIN_PASSWORD", "")

	_, err := config.Load()
	require.Error(t, err)
}
