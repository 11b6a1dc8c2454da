package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret")
	t.Setenv("ENVIRONMENT", "")
	t.Setenv("OPENROUTER_MODELS", "")
	t.Setenv("OPENROUTER_TIMEOUT_SECONDS", "")
	t.Setenv("AI_DAILY_LIMIT", "")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "development", cfg.Environment)
	assert.Equal(t, "8080", cfg.ServerPort)
	assert.Equal(t, "carelog", cfg.MongoDBName)
	assert.Equal(t, "24", cfg.SessionDuration)
	assert.Equal(t, "https://openrouter.ai/api/v1", cfg.OpenRouterBaseURL)
	assert.Equal(t, 30*time.Second, cfg.OpenRouterTimeout)
	assert.Equal(t, 50, cfg.AIDailyLimit)
	assert.True(t, cfg.IsDevelopment())
	assert.False(t, cfg.IsProduction())
}

func TestLoadConfigRequiresJWTSecret(t *testing.T) {
	t.Setenv("JWT_SECRET", "")

	_, err := LoadConfig()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "JWT_SECRET")
}

func TestLoadConfigRejectsInvalidEnvironment(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret")
	t.Setenv("ENVIRONMENT", "qa")

	_, err := LoadConfig()
	require.Error(t, err)
}

func TestLoadConfigParsesModelList(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret")
	t.Setenv("ENVIRONMENT", "production")
	t.Setenv("OPENROUTER_MODELS", " model-a , model-b,,model-c ")
	t.Setenv("OPENROUTER_TIMEOUT_SECONDS", "45")
	t.Setenv("AI_DAILY_LIMIT", "10")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, []string{"model-a", "model-b", "model-c"}, cfg.OpenRouterModels)
	assert.Equal(t, 45*time.Second, cfg.OpenRouterTimeout)
	assert.Equal(t, 10, cfg.AIDailyLimit)
	assert.True(t, cfg.IsProduction())
}

func TestLoadConfigRejectsBadTimeout(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret")
	t.Setenv("OPENROUTER_TIMEOUT_SECONDS", "zero")

	_, err := LoadConfig()
	require.Error(t, err)
}
