package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{"SECRET", "DATABASE_DSN", "HTTP_PORT", "ENV", "TOKEN_TTL", "SEED_DEMO_DATA"} {
		t.Setenv(key, "")
	}

	cfg := Load()
	assert.Equal(t, "dev_secret", cfg.Secret)
	assert.Equal(t, "pharmacy.db", cfg.DatabaseDSN)
	assert.Equal(t, "8080", cfg.HTTPPort)
	assert.Equal(t, "development", cfg.Env)
	assert.Equal(t, 24*time.Hour, cfg.TokenTTL)
	assert.False(t, cfg.SeedDemo)
	assert.False(t, cfg.Production())
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("SECRET", "s3cret")
	t.Setenv("HTTP_PORT", "9090")
	t.Setenv("ENV", "production")
	t.Setenv("TOKEN_TTL", "2h")
	t.Setenv("SEED_DEMO_DATA", "1")

	cfg := Load()
	assert.Equal(t, "s3cret", cfg.Secret)
	assert.Equal(t, "9090", cfg.HTTPPort)
	assert.True(t, cfg.Production())
	assert.Equal(t, 2*time.Hour, cfg.TokenTTL)
	assert.True(t, cfg.SeedDemo)
}

func TestLoadRejectsBadPort(t *testing.T) {
	t.Setenv("HTTP_PORT", "not-a-port")
	t.Setenv("TOKEN_TTL", "soon")

	cfg := Load()
	assert.Equal(t, "8080", cfg.HTTPPort)
	assert.Equal(t, 24*time.Hour, cfg.TokenTTL)
}
