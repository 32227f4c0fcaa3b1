package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "g-key")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "memory", cfg.StoreDriver)
	assert.Equal(t, "memory", cfg.RateLimitBackend)
	assert.Equal(t, 20, cfg.SenderRateLimit)
	assert.Equal(t, 10*time.Minute, cfg.SenderRateWindow)
	assert.Equal(t, 15*time.Second, cfg.AITimeout)
	assert.Equal(t, "v18.0", cfg.GraphAPIVersion)
	assert.False(t, cfg.IsProduction())
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("LLM_PROVIDER", "openai")
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("SENDER_RATE_LIMIT", "5")
	t.Setenv("SENDER_RATE_WINDOW", "1m")
	t.Setenv("ENV", "production")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 5, cfg.SenderRateLimit)
	assert.Equal(t, time.Minute, cfg.SenderRateWindow)
	assert.True(t, cfg.IsProduction())
}

func TestValidate(t *testing.T) {
	base := Config{
		StoreDriver:      "memory",
		RateLimitBackend: "memory",
		LLMProvider:      "gemini",
		GeminiKey:        "k",
		SenderRateLimit:  20,
		SenderRateWindow: time.Minute,
		ClientRateLimit:  10,
		ClientRateWindow: time.Minute,
		WorkerCount:      1,
		QueueSize:        1,
	}
	require.NoError(t, base.Validate())

	pg := base
	pg.StoreDriver = "postgres"
	assert.ErrorIs(t, pg.Validate(), ErrMissingDatabaseURL)

	mg := base
	mg.StoreDriver = "mongo"
	assert.ErrorIs(t, mg.Validate(), ErrMissingMongoURI)

	oa := base
	oa.LLMProvider = "openai"
	assert.ErrorIs(t, oa.Validate(), ErrMissingLLMKey)

	bad := base
	bad.RateLimitBackend = "memcached"
	assert.Error(t, bad.Validate())

	zero := base
	zero.SenderRateLimit = 0
	assert.Error(t, zero.Validate())
}
