package config

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, 25, cfg.Database.MaxOpenConns)
	assert.Equal(t, 10, cfg.Redis.Connections)
	assert.False(t, cfg.Analytics.Enabled)
	assert.Equal(t, "text-embedding-3-small", cfg.Embedding.LLMModel)
}

func TestLoadConfigFromEnv(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://u:p@db:5432/retrieval?sslmode=disable")
	t.Setenv("REDIS_URL", "redis://cache:6379")
	t.Setenv("QDRANT_URL", "http://qdrant:6334")
	t.Setenv("QDRANT_API_KEY", "secret")
	t.Setenv("USE_ANALYTICS", "true")
	t.Setenv("CLICKHOUSE_URL", "clickhouse:9000")
	t.Setenv("BATCH_SIZE", "250")
	t.Setenv("ADMIN_API_KEY", "admin-secret")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "postgres://u:p@db:5432/retrieval?sslmode=disable", cfg.Database.URL)
	assert.Equal(t, "redis://cache:6379", cfg.Redis.URL)
	assert.Equal(t, "http://qdrant:6334", cfg.Qdrant.URL)
	assert.Equal(t, "secret", cfg.Qdrant.APIKey)
	assert.True(t, cfg.Analytics.Enabled)
	assert.Equal(t, "clickhouse:9000", cfg.Analytics.URL)
	assert.Equal(t, 250, cfg.Storage.BatchSize)
	assert.Equal(t, "admin-secret", cfg.Admin.APIKey)
}

func TestLoadConfigRequiresAnalyticsURLWhenEnabled(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/db")
	t.Setenv("REDIS_URL", "redis://localhost:6379")
	t.Setenv("QDRANT_URL", "http://localhost:6334")
	t.Setenv("USE_ANALYTICS", "true")
	t.Setenv("CLICKHOUSE_URL", "")

	_, err := LoadConfig()
	assert.Error(t, err)
}

func TestLoadConfigRequiresS3CredentialsWhenBucketSet(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/db")
	t.Setenv("REDIS_URL", "redis://localhost:6379")
	t.Setenv("QDRANT_URL", "http://localhost:6334")
	t.Setenv("S3_BUCKET", "chunks")
	t.Setenv("S3_ACCESS_KEY", "")
	t.Setenv("S3_SECRET_KEY", "")

	_, err := LoadConfig()
	assert.Error(t, err)
}

func TestGetEnvHelpers(t *testing.T) {
	const key = "FILECHUNK_TEST_ENV_KEY"
	defer os.Unsetenv(key)

	assert.Equal(t, "fallback", getStringEnvWithDefault(key, "fallback"))
	os.Setenv(key, "value")
	assert.Equal(t, "value", getStringEnvWithDefault(key, "fallback"))

	os.Setenv(key, "42")
	assert.Equal(t, 42, getIntEnvWithDefault(key, 0))

	os.Setenv(key, "not-a-number")
	assert.Equal(t, 7, getIntEnvWithDefault(key, 7))

	os.Setenv(key, "true")
	assert.True(t, getBoolEnvWithDefault(key, false))
}
