package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"PORT", "CORS_ALLOWED_ORIGINS", "LLM_PROVIDER", "OPENAI_API_KEY", "OPENAI_MODEL",
		"OPENAI_BASE_URL", "ANTHROPIC_API_KEY", "ANTHROPIC_MODEL", "ARK_API_KEY", "ARK_ACCESS_KEY",
		"ARK_SECRET_KEY", "Model", "AI_TEMPERATURE", "AI_TOP_P", "AI_MAX_TOKENS", "AI_STREAM",
		"AI_HISTORY_LIMIT", "JWT_SECRET", "JWT_TTL", "STORAGE_DRIVER", "STORAGE_PATH",
		"DATABASE_URL", "TELEGRAM_BOT_TOKEN", "LOG_LEVEL", "APP_ENV",
	} {
		t.Setenv(key, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)
	t.Setenv("APP_ENV", "development")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":3005", cfg.Server.Addr)
	assert.Equal(t, []string{"*"}, cfg.Server.AllowedOrigins)
	assert.Equal(t, ProviderOpenAI, cfg.AI.Provider)
	assert.Equal(t, "gpt-3.5-turbo", cfg.AI.Model)
	assert.True(t, cfg.AI.StreamResponse)
	assert.Equal(t, 20, cfg.AI.HistoryLimit)
	assert.False(t, cfg.AI.Enabled())
	assert.True(t, cfg.Auth.UsingDevSecret())
	assert.Equal(t, 7*24*time.Hour, cfg.Auth.TokenTTL)
	assert.Equal(t, StorageFile, cfg.Storage.Driver)
	assert.Equal(t, "users.json", cfg.Storage.Path)
	assert.False(t, cfg.Telegram.Enabled())
	assert.True(t, cfg.Log.Development)
}

func TestLoadRequiresSecretOutsideDevelopment(t *testing.T) {
	clearEnv(t)

	_, err := Load()
	require.Error(t, err)
}

func TestLoadPortVariants(t *testing.T) {
	clearEnv(t)
	t.Setenv("JWT_SECRET", "s3cret")

	t.Setenv("PORT", "127.0.0.1:9000")
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:9000", cfg.Server.Addr)

	t.Setenv("PORT", "80 80")
	_, err = Load()
	require.Error(t, err)
}

func TestLoadArkProvider(t *testing.T) {
	clearEnv(t)
	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("LLM_PROVIDER", "ark")
	t.Setenv("ARK_ACCESS_KEY", "ak")
	t.Setenv("ARK_SECRET_KEY", "sk")
	t.Setenv("Model", "doubao")

	cfg, err := Load()
	require.NoError(t, err)
	assert.True(t, cfg.AI.Enabled())
	assert.Equal(t, "cn-beijing", cfg.AI.Region)
}

func TestLoadRejectsBadValues(t *testing.T) {
	cases := map[string][2]string{
		"provider":  {"LLM_PROVIDER", "bard"},
		"temp":      {"AI_TEMPERATURE", "hot"},
		"stream":    {"AI_STREAM", "sometimes"},
		"ttl":       {"JWT_TTL", "-1h"},
		"storage":   {"STORAGE_DRIVER", "mongo"},
		"maxTokens": {"AI_MAX_TOKENS", "many"},
	}

	for name, kv := range cases {
		t.Run(name, func(t *testing.T) {
			clearEnv(t)
			t.Setenv("JWT_SECRET", "s3cret")
			t.Setenv(kv[0], kv[1])

			_, err := Load()
			require.Error(t, err)
		})
	}
}

func TestLoadPostgresNeedsDSN(t *testing.T) {
	clearEnv(t)
	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("STORAGE_DRIVER", "postgres")

	_, err := Load()
	require.Error(t, err)

	t.Setenv("DATABASE_URL", "postgres://localhost/ragebot?sslmode=disable")
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, StoragePostgres, cfg.Storage.Driver)
}

func TestHistoryLimitClampsNegative(t *testing.T) {
	clearEnv(t)
	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("AI_HISTORY_LIMIT", "-4")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 0, cfg.AI.HistoryLimit)
}

func TestLoadAIIgnoresAuthSettings(t *testing.T) {
	clearEnv(t)
	t.Setenv("OPENAI_API_KEY", "sk-test")

	_, err := Load()
	require.Error(t, err, "the server still needs JWT_SECRET")

	ai, err := LoadAI()
	require.NoError(t, err)
	assert.True(t, ai.Enabled())
	assert.Equal(t, ProviderOpenAI, ai.Provider)
	assert.Equal(t, "sk-test", ai.APIKey)
	assert.Equal(t, "gpt-3.5-turbo", ai.Model)
}
