// Package config provides centralized configuration management for the refiner.
// It loads configuration from environment variables with sensible defaults and
// validates all settings on startup to fail fast on misconfiguration.
package config

import (
	"strconv"
	"time"
)

// Config holds all application configuration.
// All settings can be configured via environment variables.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Ingest   IngestConfig
	Template TemplateConfig
	Cache    CacheConfig
	LLM      LLMConfig
	Rate     RateLimitConfig
	Security SecurityConfig
	Logging  LoggingConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	// Host is the interface to bind to (default: 0.0.0.0)
	Host string `env:"SERVER_HOST" default:"0.0.0.0"`

	// Port is the port to listen on (default: 8080)
	Port int `env:"SERVER_PORT" default:"8080"`

	// ReadTimeout is the maximum duration for reading request body (default: 15s)
	ReadTimeout time.Duration `env:"SERVER_READ_TIMEOUT" default:"15s"`

	// WriteTimeout is the maximum duration for writing a response. Correction
	// requests wait on the language model, so keep this above LLM_TIMEOUT.
	WriteTimeout time.Duration `env:"SERVER_WRITE_TIMEOUT" default:"120s"`

	// IdleTimeout is the keep-alive timeout (default: 60s)
	IdleTimeout time.Duration `env:"SERVER_IDLE_TIMEOUT" default:"60s"`

	// ShutdownTimeout is the maximum duration to wait for graceful shutdown (default: 30s)
	ShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT" default:"30s"`

	// RequestTimeout is the middleware timeout for requests (default: 110s)
	RequestTimeout time.Duration `env:"SERVER_REQUEST_TIMEOUT" default:"110s"`
}

// DatabaseConfig holds database connection settings.
type DatabaseConfig struct {
	// URL is the PostgreSQL connection string. When empty the service runs
	// with in-memory cache, audit and sink backends.
	// Supports both DATABASE_URL and DB_URL env vars for compatibility
	URL string `env:"DATABASE_URL" envAlt:"DB_URL"`

	// MaxConns is the maximum number of connections in the pool (default: 20)
	MaxConns int `env:"DB_MAX_CONNS" default:"20"`

	// MinConns is the minimum number of connections to keep open (default: 2)
	MinConns int `env:"DB_MIN_CONNS" default:"2"`

	// MaxConnLifetime is the maximum lifetime of a connection (default: 1h)
	MaxConnLifetime time.Duration `env:"DB_MAX_CONN_LIFETIME" default:"1h"`

	// MaxConnIdleTime is the maximum idle time before a connection is closed (default: 30m)
	MaxConnIdleTime time.Duration `env:"DB_MAX_CONN_IDLE_TIME" default:"30m"`

	// Migrate applies the embedded schema migrations on startup (default: true)
	Migrate bool `env:"DB_MIGRATE" default:"true"`
}

// IngestConfig holds file intake and correction settings.
type IngestConfig struct {
	// MaxFileSize is the maximum allowed file size in bytes (default: 20MB)
	MaxFileSize int64 `env:"INGEST_MAX_FILE_SIZE" default:"20971520"`

	// MaxConcurrent is the maximum number of files processed at once (default: 4)
	MaxConcurrent int `env:"INGEST_MAX_CONCURRENT" default:"4"`

	// MaxWaitTime is how long to wait for a processing slot (default: 30s)
	MaxWaitTime time.Duration `env:"INGEST_MAX_WAIT_TIME" default:"30s"`

	// MaxCorrectionAttempts bounds failed corrections per file before it
	// is moved to manual handling (default: 3)
	MaxCorrectionAttempts int `env:"INGEST_MAX_CORRECTION_ATTEMPTS" default:"3"`

	// MaxRows is the largest table the correction executor will process (default: 500000)
	MaxRows int `env:"INGEST_MAX_ROWS" default:"500000"`

	// QueueRetention is how long finished files stay in the queue (default: 1h)
	QueueRetention time.Duration `env:"INGEST_QUEUE_RETENTION" default:"1h"`

	// JanitorInterval is how often finished files are evicted (default: 5m)
	JanitorInterval time.Duration `env:"INGEST_JANITOR_INTERVAL" default:"5m"`
}

// TemplateConfig points at the column template.
type TemplateConfig struct {
	// Path is a JSON or YAML template file. Empty uses the built-in template.
	Path string `env:"TEMPLATE_PATH"`
}

// CacheConfig selects the correction script cache backend.
type CacheConfig struct {
	// Backend is one of: postgres, redis, memory. Empty picks postgres when
	// DATABASE_URL is set and memory otherwise.
	Backend string `env:"CACHE_BACKEND"`

	// RedisURL is the redis:// URL used by the redis backend
	RedisURL string `env:"REDIS_URL"`

	// RedisPrefix namespaces cache keys (default: refiner)
	RedisPrefix string `env:"REDIS_PREFIX" default:"refiner"`
}

// LLMConfig holds correction script generator settings.
type LLMConfig struct {
	// Provider is one of: openai (any OpenAI-compatible API), anthropic, rules (default: openai)
	Provider string `env:"LLM_PROVIDER" default:"openai"`

	// BaseURL of the OpenAI-compatible endpoint (default: Groq)
	BaseURL string `env:"LLM_BASE_URL" default:"https://api.groq.com/openai/v1"`

	// Model name (default: llama-3.3-70b-versatile)
	Model string `env:"LLM_MODEL" default:"llama-3.3-70b-versatile"`

	// APIKey authenticates with the provider
	APIKey string `env:"GROQ_API_KEY" envAlt:"LLM_API_KEY"`

	// Temperature for generation (default: 0.1)
	Temperature float64 `env:"LLM_TEMPERATURE" default:"0.1"`

	// MaxTokens caps the completion length (default: 4096)
	MaxTokens int `env:"LLM_MAX_TOKENS" default:"4096"`

	// Timeout bounds a single model call (default: 60s)
	Timeout time.Duration `env:"LLM_TIMEOUT" default:"60s"`

	// MaxRetries for transient provider errors (default: 2)
	MaxRetries int `env:"LLM_MAX_RETRIES" default:"2"`
}

// RateLimitConfig holds rate limiting settings per time window.
type RateLimitConfig struct {
	// Enabled controls whether rate limiting is active (default: true)
	Enabled bool `env:"RATE_LIMIT_ENABLED" default:"true"`

	// RequestsPerMinute is the default rate limit per IP (default: 100)
	RequestsPerMinute int `env:"RATE_LIMIT_REQUESTS_PER_MINUTE" default:"100"`

	// UploadLimit is requests per minute for upload and correction endpoints (default: 20)
	UploadLimit int `env:"RATE_LIMIT_UPLOAD" default:"20"`
}

// SecurityConfig holds security-related settings.
type SecurityConfig struct {
	// TrustedProxies is a comma-separated list of trusted proxy CIDRs
	TrustedProxies []string `env:"TRUSTED_PROXIES"`

	// EnableCSP enables Content-Security-Policy headers (default: true)
	EnableCSP bool `env:"SECURITY_ENABLE_CSP" default:"true"`

	// RequireAPIKey rejects /api requests without a valid X-API-Key (default: false)
	RequireAPIKey bool `env:"REQUIRE_API_KEY" default:"false"`

	// APIKeys is a comma-separated list of accepted API keys
	APIKeys []string `env:"API_KEYS"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: debug, info, warn, error (default: info)
	Level string `env:"LOG_LEVEL" default:"info"`

	// Format is the log format: text or json (default: text)
	Format string `env:"LOG_FORMAT" default:"text"`
}

// Addr returns the server listen address in host:port format.
func (c *ServerConfig) Addr() string {
	return c.Host + ":" + strconv.Itoa(c.Port)
}

// CacheBackend resolves the effective cache backend.
func (c *Config) CacheBackend() string {
	if c.Cache.Backend != "" {
		return c.Cache.Backend
	}
	if c.Database.URL != "" {
		return "postgres"
	}
	return "memory"
}
