package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadConfigDefaults(t *testing.T) {
	for _, key := range []string{"PORT", "STORE", "MONGO_DB", "CORS_ORIGINS", "REQUEST_TIMEOUT", "GIN_MODE"} {
		t.Setenv(key, "")
	}

	cfg := LoadConfig()
	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, "mongo", cfg.Store)
	assert.Equal(t, "pipeline", cfg.MongoDB)
	assert.True(t, cfg.Debug)
	assert.Equal(t, []string{"http://localhost:3001", "http://localhost:5173"}, cfg.CORSOrigins)
	assert.Equal(t, 30*time.Second, cfg.RequestTimeout)
}

func TestLoadConfigFromEnv(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("STORE", "memory")
	t.Setenv("GIN_MODE", "release")
	t.Setenv("CORS_ORIGINS", " https://ops.example.com , ,https://admin.example.com")
	t.Setenv("REQUEST_TIMEOUT", "5s")
	t.Setenv("TOKEN_TTL", "not-a-duration")

	cfg := LoadConfig()
	assert.Equal(t, 9090, cfg.Port)
	assert.Equal(t, "memory", cfg.Store)
	assert.False(t, cfg.Debug)
	assert.Equal(t, []string{"https://ops.example.com", "https://admin.example.com"}, cfg.CORSOrigins)
	assert.Equal(t, 5*time.Second, cfg.RequestTimeout)
	assert.Equal(t, 30*24*time.Hour, cfg.TokenTTL)
}
