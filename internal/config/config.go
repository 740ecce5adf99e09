// Package config loads the platform's configuration from environment
// variables (optionally backed by a .env file), one sub-struct per
// concern, mirroring the teacher's DB_*/QDRANT_*-prefixed layout.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config is the root configuration object, composed of one struct per
// external dependency or concern.
type Config struct {
	Server     ServerConfig
	Database   DatabaseConfig
	Redis      RedisConfig
	Qdrant     QdrantConfig
	Storage    StorageConfig
	Embedding  EmbeddingConfig
	Analytics  AnalyticsConfig
	Admin      AdminConfig
	Logging    LoggingConfig
	Observability ObservabilityConfig
	RateLimit  RateLimitConfig
}

// ServerConfig holds HTTP listener settings for the search API.
type ServerConfig struct {
	Host            string
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

// DatabaseConfig holds PostgreSQL connection settings, matching the
// teacher's DB_* environment variable prefix.
type DatabaseConfig struct {
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// RedisConfig holds the queue fabric's Redis connection settings.
type RedisConfig struct {
	URL         string
	Password    string
	DB          int
	Connections int
}

// QdrantConfig holds vector store connection settings.
type QdrantConfig struct {
	URL    string
	APIKey string
	UseTLS bool
}

// StorageConfig holds blob-store (file upload) settings.
type StorageConfig struct {
	S3AccessKey string
	S3SecretKey string
	S3Endpoint  string
	S3Bucket    string
	S3Region    string
	BatchSize   int
}

// EmbeddingConfig holds the default dense/sparse embedding endpoint
// settings, used when a dataset does not override them.
type EmbeddingConfig struct {
	LLMBaseURL string
	LLMAPIKey  string
	LLMModel   string
}

// AnalyticsConfig holds ClickHouse connection settings and the
// USE_ANALYTICS feature toggle.
type AnalyticsConfig struct {
	Enabled  bool
	URL      string
	User     string
	Password string
	Database string
}

// AdminConfig holds operator-facing authentication settings.
type AdminConfig struct {
	APIKey string
}

// LoggingConfig controls the structured logger's verbosity and
// format.
type LoggingConfig struct {
	Level string
	JSON  bool
}

// ObservabilityConfig holds error-reporting settings.
type ObservabilityConfig struct {
	SentryURL string
}

// RateLimitConfig controls the request-rate limiter applied at the
// search API's edge, keyed by API key or client IP.
type RateLimitConfig struct {
	Enabled             bool
	RedisURL            string
	DefaultLimit        int
	DefaultWindow       time.Duration
	ChunkIngestLimit    int
	ChunkIngestWindow   time.Duration
}

// DefaultConfig returns documented defaults for every field that
// doesn't require an operator-supplied value.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8080,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 30 * time.Second,
		},
		Database: DatabaseConfig{
			URL:             "postgres://localhost:5432/retrieval?sslmode=disable",
			MaxOpenConns:    25,
			MaxIdleConns:    5,
			ConnMaxLifetime: time.Hour,
		},
		Redis: RedisConfig{
			URL:         "redis://localhost:6379",
			Connections: 10,
		},
		Qdrant: QdrantConfig{
			URL: "http://localhost:6334",
		},
		Storage: StorageConfig{
			BatchSize: 100,
		},
		Embedding: EmbeddingConfig{
			LLMModel: "text-embedding-3-small",
		},
		Logging: LoggingConfig{
			Level: "info",
			JSON:  true,
		},
		RateLimit: RateLimitConfig{
			Enabled:           true,
			DefaultLimit:      100,
			DefaultWindow:     time.Minute,
			ChunkIngestLimit:  30,
			ChunkIngestWindow: time.Minute,
		},
	}
}

// LoadConfig builds a Config from environment variables, loading a
// .env file first if one is present, and validates the result.
func LoadConfig() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("error loading .env file: %w", err)
		}
	}

	cfg := DefaultConfig()
	loadServerConfig(cfg)
	loadDatabaseConfig(cfg)
	loadRedisConfig(cfg)
	loadQdrantConfig(cfg)
	loadStorageConfig(cfg)
	loadEmbeddingConfig(cfg)
	loadAnalyticsConfig(cfg)
	loadAdminConfig(cfg)
	loadLoggingConfig(cfg)
	loadRateLimitConfig(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func loadServerConfig(cfg *Config) {
	cfg.Server.Host = getStringEnvWithDefault("SERVER_HOST", cfg.Server.Host)
	cfg.Server.Port = getIntEnvWithDefault("SERVER_PORT", cfg.Server.Port)
}

func loadDatabaseConfig(cfg *Config) {
	cfg.Database.URL = getStringEnvWithDefault("DATABASE_URL", cfg.Database.URL)
	cfg.Database.MaxOpenConns = getIntEnvWithDefault("DB_MAX_OPEN_CONNS", cfg.Database.MaxOpenConns)
	cfg.Database.MaxIdleConns = getIntEnvWithDefault("DB_MAX_IDLE_CONNS", cfg.Database.MaxIdleConns)
	if v := os.Getenv("DB_CONN_MAX_LIFETIME"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Database.ConnMaxLifetime = d
		}
	}
}

func loadRedisConfig(cfg *Config) {
	cfg.Redis.URL = getStringEnvWithDefault("REDIS_URL", cfg.Redis.URL)
	cfg.Redis.Connections = getIntEnvWithDefault("REDIS_CONNECTIONS", cfg.Redis.Connections)
	cfg.Redis.Password = getStringEnvWithDefault("REDIS_PASSWORD", cfg.Redis.Password)
}

func loadQdrantConfig(cfg *Config) {
	cfg.Qdrant.URL = getStringEnvWithDefault("QDRANT_URL", cfg.Qdrant.URL)
	cfg.Qdrant.APIKey = getStringEnvWithDefault("QDRANT_API_KEY", cfg.Qdrant.APIKey)
	cfg.Qdrant.UseTLS = getBoolEnvWithDefault("QDRANT_USE_TLS", cfg.Qdrant.UseTLS)
}

func loadStorageConfig(cfg *Config) {
	cfg.Storage.S3AccessKey = getStringEnvWithDefault("S3_ACCESS_KEY", cfg.Storage.S3AccessKey)
	cfg.Storage.S3SecretKey = getStringEnvWithDefault("S3_SECRET_KEY", cfg.Storage.S3SecretKey)
	cfg.Storage.S3Endpoint = getStringEnvWithDefault("S3_ENDPOINT", cfg.Storage.S3Endpoint)
	cfg.Storage.S3Bucket = getStringEnvWithDefault("S3_BUCKET", cfg.Storage.S3Bucket)
	cfg.Storage.S3Region = getStringEnvWithDefault("S3_REGION", cfg.Storage.S3Region)
	cfg.Storage.BatchSize = getIntEnvWithDefault("BATCH_SIZE", cfg.Storage.BatchSize)
}

func loadEmbeddingConfig(cfg *Config) {
	cfg.Embedding.LLMBaseURL = getStringEnvWithDefault("LLM_BASE_URL", cfg.Embedding.LLMBaseURL)
	cfg.Embedding.LLMAPIKey = getStringEnvWithDefault("LLM_API_KEY", cfg.Embedding.LLMAPIKey)
	cfg.Embedding.LLMModel = getStringEnvWithDefault("LLM_MODEL", cfg.Embedding.LLMModel)
}

func loadAnalyticsConfig(cfg *Config) {
	cfg.Analytics.Enabled = getBoolEnvWithDefault("USE_ANALYTICS", cfg.Analytics.Enabled)
	cfg.Analytics.URL = getStringEnvWithDefault("CLICKHOUSE_URL", cfg.Analytics.URL)
	cfg.Analytics.User = getStringEnvWithDefault("CLICKHOUSE_USER", cfg.Analytics.User)
	cfg.Analytics.Password = getStringEnvWithDefault("CLICKHOUSE_PASSWORD", cfg.Analytics.Password)
	cfg.Analytics.Database = getStringEnvWithDefault("CLICKHOUSE_DATABASE", cfg.Analytics.Database)
}

func loadAdminConfig(cfg *Config) {
	cfg.Admin.APIKey = getStringEnvWithDefault("ADMIN_API_KEY", cfg.Admin.APIKey)
}

func loadLoggingConfig(cfg *Config) {
	cfg.Logging.Level = getStringEnvWithDefault("LOG_LEVEL", cfg.Logging.Level)
	cfg.Logging.JSON = getBoolEnvWithDefault("LOG_JSON", cfg.Logging.JSON)
	cfg.Observability.SentryURL = getStringEnvWithDefault("SENTRY_URL", cfg.Observability.SentryURL)
}

func loadRateLimitConfig(cfg *Config) {
	cfg.RateLimit.Enabled = getBoolEnvWithDefault("RATE_LIMIT_ENABLED", cfg.RateLimit.Enabled)
	cfg.RateLimit.RedisURL = getStringEnvWithDefault("REDIS_URL", cfg.Redis.URL)
	cfg.RateLimit.DefaultLimit = getIntEnvWithDefault("RATE_LIMIT_DEFAULT_LIMIT", cfg.RateLimit.DefaultLimit)
	if v := os.Getenv("RATE_LIMIT_DEFAULT_WINDOW"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.RateLimit.DefaultWindow = d
		}
	}
	cfg.RateLimit.ChunkIngestLimit = getIntEnvWithDefault("RATE_LIMIT_CHUNK_INGEST_LIMIT", cfg.RateLimit.ChunkIngestLimit)
	if v := os.Getenv("RATE_LIMIT_CHUNK_INGEST_WINDOW"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.RateLimit.ChunkIngestWindow = d
		}
	}
}

func getStringEnvWithDefault(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

func getIntEnvWithDefault(key string, defaultValue int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return defaultValue
}

func getBoolEnvWithDefault(key string, defaultValue bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return defaultValue
}

// Validate checks that every required setting is present, failing
// fast at startup rather than on the first request that needs it.
func (c *Config) Validate() error {
	if c.Database.URL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	if c.Redis.URL == "" {
		return fmt.Errorf("REDIS_URL is required")
	}
	if c.Qdrant.URL == "" {
		return fmt.Errorf("QDRANT_URL is required")
	}
	if c.Analytics.Enabled && c.Analytics.URL == "" {
		return fmt.Errorf("CLICKHOUSE_URL is required when USE_ANALYTICS is set")
	}
	if c.Storage.S3Bucket != "" && (c.Storage.S3AccessKey == "" || c.Storage.S3SecretKey == "") {
		return fmt.Errorf("S3_ACCESS_KEY and S3_SECRET_KEY are required when S3_BUCKET is set")
	}
	return nil
}
