package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"persona-remixer-server/modules/common/apperr"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"GEMINI_API_KEY", "API_KEY", "GEMINI_EDIT_MODEL", "GEMINI_IMAGEN_MODEL",
		"GEMINI_MIN_INTERVAL", "SESSION_STORE", "SESSION_TTL", "REDIS_HOST",
		"WEBP_QUALITY", "MAX_UPLOAD_MB", "PORT",
	} {
		t.Setenv(key, "")
	}
}

func TestLoadConfigDefaults(t *testing.T) {
	clearEnv(t)
	t.Setenv("GEMINI_API_KEY", "test-key")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "gemini-2.5-flash-image-preview", cfg.GeminiEditModel)
	assert.Equal(t, "imagen-4.0-generate-001", cfg.GeminiImagenModel)
	assert.Equal(t, "memory", cfg.SessionStore)
	assert.Equal(t, 24*time.Hour, cfg.SessionTTL)
	assert.Equal(t, float32(90), cfg.WebPQuality)
	assert.Equal(t, int64(20<<20), cfg.MaxUploadBytes())
}

func TestLoadConfigFallsBackToLegacyKey(t *testing.T) {
	clearEnv(t)
	t.Setenv("API_KEY", "legacy-key")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, "legacy-key", cfg.GeminiAPIKey)
}

func TestLoadConfigRejectsMissingOrPlaceholderKey(t *testing.T) {
	for _, key := range []string{"", PlaceholderAPIKey, "   "} {
		clearEnv(t)
		t.Setenv("GEMINI_API_KEY", key)

		_, err := LoadConfig()
		require.Error(t, err, "key %q", key)
		assert.ErrorIs(t, err, apperr.ErrConfiguration)
	}
}

func TestLoadConfigRejectsUnknownStore(t *testing.T) {
	clearEnv(t)
	t.Setenv("GEMINI_API_KEY", "test-key")
	t.Setenv("SESSION_STORE", "postgres")

	_, err := LoadConfig()
	assert.ErrorIs(t, err, apperr.ErrConfiguration)
}

func TestLoadConfigParsesOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("GEMINI_API_KEY", "test-key")
	t.Setenv("SESSION_STORE", "REDIS")
	t.Setenv("SESSION_TTL", "90m")
	t.Setenv("GEMINI_MIN_INTERVAL", "250ms")
	t.Setenv("WEBP_QUALITY", "not-a-number")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, "redis", cfg.SessionStore)
	assert.Equal(t, 90*time.Minute, cfg.SessionTTL)
	assert.Equal(t, 250*time.Millisecond, cfg.GeminiMinInterval)
	assert.Equal(t, float32(90), cfg.WebPQuality)
	assert.Equal(t, "localhost:6379", cfg.GetRedisAddr())
}
