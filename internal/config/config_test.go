package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "dev", cfg.Env)
	assert.Equal(t, "8000", cfg.HTTPPort)
	assert.Equal(t, "postgres", cfg.StoreBackend)
	assert.Equal(t, 30*time.Minute, cfg.AccessTTL)
	assert.Equal(t, 6, cfg.CodeLength)
	assert.Equal(t, []string{"http://localhost:5173"}, cfg.CORSOrigins)
	assert.False(t, cfg.Production())
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("STORE_BACKEND", "MEMORY")
	t.Setenv("CACHE_BACKEND", "memory")
	t.Setenv("ACCESS_TTL", "5m")
	t.Setenv("CODE_LENGTH", "8")
	t.Setenv("CORS_ORIGINS", "http://a.test, http://b.test,")
	t.Setenv("SEED_ENABLED", "true")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "memory", cfg.StoreBackend)
	assert.Equal(t, "memory", cfg.CacheBackend)
	assert.Equal(t, 5*time.Minute, cfg.AccessTTL)
	assert.Equal(t, 8, cfg.CodeLength)
	assert.Equal(t, []string{"http://a.test", "http://b.test"}, cfg.CORSOrigins)
	assert.True(t, cfg.SeedEnabled)
}

func TestLoadRejectsInvalid(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{name: "store backend", env: map[string]string{"STORE_BACKEND": "mongo"}},
		{name: "cache backend", env: map[string]string{"CACHE_BACKEND": "memcached"}},
		{name: "memory store with redis queue", env: map[string]string{"STORE_BACKEND": "memory", "CACHE_BACKEND": "redis"}},
		{name: "code length", env: map[string]string{"CODE_LENGTH": "2"}},
		{name: "prod default key", env: map[string]string{"APP_ENV": "production"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load()
			assert.Error(t, err)
		})
	}
}
