package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "/api/v1", cfg.Server.APIPrefix)
	assert.True(t, cfg.Server.IsDevelopment())
	assert.Equal(t, 5, cfg.Auth.LoginMaxAttempts)
	assert.Equal(t, 5, cfg.Auth.LoginWindowMinutes)
	assert.Equal(t, 10, cfg.Auth.LoginBlockMinutes)
	assert.Equal(t, "rules", cfg.Triage.Mode)
	assert.Equal(t, 6, cfg.Chat.WebTimeoutSeconds)
	assert.Equal(t, 15, cfg.Chat.LLMTimeoutSeconds)
}

func TestValidateRefusesDefaultSecretOutsideDevelopment(t *testing.T) {
	t.Setenv("ENV", "production")
	t.Setenv("BACKEND_CORS_ORIGINS", "https://app.example.org")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SECRET_KEY")
}

func TestValidateRefusesShortSecret(t *testing.T) {
	t.Setenv("ENV", "production")
	t.Setenv("SECRET_KEY", "short")
	t.Setenv("BACKEND_CORS_ORIGINS", "https://app.example.org")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "at least 32 characters")
}

func TestValidateRefusesWildcardCORSOutsideDevelopment(t *testing.T) {
	t.Setenv("ENV", "production")
	t.Setenv("SECRET_KEY", "an-actually-long-production-secret-key-1")
	t.Setenv("BACKEND_CORS_ORIGINS", "*")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "BACKEND_CORS_ORIGINS")
}

func TestValidateLLMContextBudget(t *testing.T) {
	t.Setenv("CLINICAL_CHAT_LLM_NUM_CTX", "512")
	t.Setenv("CLINICAL_CHAT_LLM_MAX_OUTPUT_TOKENS", "512")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "NUM_CTX")
}

func TestValidateWebTimeout(t *testing.T) {
	t.Setenv("CLINICAL_CHAT_WEB_TIMEOUT_SECONDS", "0")

	_, err := Load()
	require.Error(t, err)
}

func TestValidateTriageMode(t *testing.T) {
	t.Setenv("AI_TRIAGE_MODE", "oracle")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "AI_TRIAGE_MODE")
}

func TestAllowedDomainsParsing(t *testing.T) {
	t.Setenv("CLINICAL_CHAT_WEB_ALLOWED_DOMAINS", "who.int, escardio.org ,,")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, []string{"who.int", "escardio.org"}, cfg.Chat.WebAllowedDomains)
}
