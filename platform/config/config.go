// Package config provides application configuration loading.
// This is part of the platform layer and contains no business logic.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// =============================================================================
// Module-Specific Config Interfaces (Principle of Least Privilege)
// =============================================================================

// DatabaseConfig provides database connection settings.
type DatabaseConfig interface {
	GetDatabaseURL() string
}

// JWTConfig provides JWT validation settings for the admin middleware.
type JWTConfig interface {
	GetJWTAccessSecret() string
}

// HTTPConfig provides settings for the HTTP server.
type HTTPConfig interface {
	GetHTTPAddr() string
	GetCORSAllowAll() bool
	GetCORSOrigins() []string
	GetCORSAllowCreds() bool
}

// AppConfig provides general application settings.
type AppConfig interface {
	GetEnv() string
	IsProduction() bool
}

// WebhookConfig provides settings for inbound provider webhooks.
type WebhookConfig interface {
	AppConfig
	GetWebhookSecret() string
}

// StatusConfig provides settings for the lookup status aggregator.
type StatusConfig interface {
	GetStatusInitialDelay() time.Duration
	GetStatusRetryInterval() time.Duration
	GetStatusMaxRetries() int
	GetStatusMaxWait() time.Duration
}

// CacheConfig provides settings for the snapshot/ETag cache.
type CacheConfig interface {
	GetCacheRedisURL() string
	GetCacheActiveTTL() time.Duration
	GetCacheTerminalTTL() time.Duration
}

// SchedulerConfig provides settings for the asynq scheduler/worker.
type SchedulerConfig interface {
	GetRedisURL() string
	GetRedisTLSInsecure() bool
	GetAsynqQueueName() string
	GetAsynqConcurrency() int
}

// ProviderConfig provides settings for the voice-AI provider client.
type ProviderConfig interface {
	GetProviderBaseURL() string
	GetProviderAPIKey() string
	GetProviderAgentID() string
	GetProviderAgentNumberID() string
}

// =============================================================================
// Main Config Struct
// =============================================================================

// Config holds all application configuration values.
type Config struct {
	Env                   string
	HTTPAddr              string
	DatabaseURL           string
	JWTAccessSecret       string
	CORSAllowAll          bool
	CORSOrigins           []string
	CORSAllowCreds        bool
	WebhookSecret         string
	StatusInitialDelay    time.Duration
	StatusRetryInterval   time.Duration
	StatusMaxRetries      int
	StatusMaxWait         time.Duration
	CacheRedisURL         string
	CacheActiveTTL        time.Duration
	CacheTerminalTTL      time.Duration
	RedisURL              string
	RedisTLSInsecure      bool
	AsynqQueueName        string
	AsynqConcurrency      int
	ProviderBaseURL       string
	ProviderAPIKey        string
	ProviderAgentID       string
	ProviderAgentNumberID string
}

// =============================================================================
// Interface Implementations
// =============================================================================

// DatabaseConfig implementation
func (c *Config) GetDatabaseURL() string { return c.DatabaseURL }

// JWTConfig implementation
func (c *Config) GetJWTAccessSecret() string { return c.JWTAccessSecret }

// HTTPConfig implementation
func (c *Config) GetHTTPAddr() string      { return c.HTTPAddr }
func (c *Config) GetCORSAllowAll() bool    { return c.CORSAllowAll }
func (c *Config) GetCORSOrigins() []string { return c.CORSOrigins }
func (c *Config) GetCORSAllowCreds() bool  { return c.CORSAllowCreds }

// AppConfig implementation
func (c *Config) GetEnv() string     { return c.Env }
func (c *Config) IsProduction() bool { return strings.EqualFold(c.Env, "production") }

// WebhookConfig implementation
func (c *Config) GetWebhookSecret() string { return c.WebhookSecret }

// StatusConfig implementation
func (c *Config) GetStatusInitialDelay() time.Duration  { return c.StatusInitialDelay }
func (c *Config) GetStatusRetryInterval() time.Duration { return c.StatusRetryInterval }
func (c *Config) GetStatusMaxRetries() int              { return c.StatusMaxRetries }
func (c *Config) GetStatusMaxWait() time.Duration       { return c.StatusMaxWait }

// CacheConfig implementation
func (c *Config) GetCacheRedisURL() string           { return c.CacheRedisURL }
func (c *Config) GetCacheActiveTTL() time.Duration   { return c.CacheActiveTTL }
func (c *Config) GetCacheTerminalTTL() time.Duration { return c.CacheTerminalTTL }

// SchedulerConfig implementation
func (c *Config) GetRedisURL() string       { return c.RedisURL }
func (c *Config) GetRedisTLSInsecure() bool { return c.RedisTLSInsecure }
func (c *Config) GetAsynqQueueName() string { return c.AsynqQueueName }
func (c *Config) GetAsynqConcurrency() int  { return c.AsynqConcurrency }

// ProviderConfig implementation
func (c *Config) GetProviderBaseURL() string       { return c.ProviderBaseURL }
func (c *Config) GetProviderAPIKey() string        { return c.ProviderAPIKey }
func (c *Config) GetProviderAgentID() string       { return c.ProviderAgentID }
func (c *Config) GetProviderAgentNumberID() string { return c.ProviderAgentNumberID }

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	_ = godotenv.Load()

	corsOrigins := splitCSV(getEnv("CORS_ORIGINS", "http://localhost:4200"))
	corsAllowAll := strings.EqualFold(getEnv("CORS_ALLOW_ALL", "false"), "true")
	if containsWildcard(corsOrigins) {
		corsAllowAll = true
	}

	cfg := &Config{
		Env:                   getEnv("APP_ENV", "development"),
		HTTPAddr:              getEnv("HTTP_ADDR", ":8080"),
		DatabaseURL:           getEnv("DATABASE_URL", ""),
		JWTAccessSecret:       getEnv("JWT_ACCESS_SECRET", ""),
		CORSAllowAll:          corsAllowAll,
		CORSOrigins:           corsOrigins,
		CORSAllowCreds:        strings.EqualFold(getEnv("CORS_ALLOW_CREDENTIALS", "true"), "true"),
		WebhookSecret:         getEnv("WEBHOOK_SECRET", ""),
		StatusInitialDelay:    mustDuration(getEnv("STATUS_INITIAL_DELAY", "300ms")),
		StatusRetryInterval:   mustDuration(getEnv("STATUS_RETRY_INTERVAL", "750ms")),
		StatusMaxRetries:      mustInt(getEnv("STATUS_MAX_RETRIES", "6")),
		StatusMaxWait:         mustDuration(getEnv("STATUS_MAX_WAIT", "10s")),
		CacheRedisURL:         getEnv("CACHE_REDIS_URL", ""),
		CacheActiveTTL:        mustDuration(getEnv("CACHE_ACTIVE_TTL", "5s")),
		CacheTerminalTTL:      mustDuration(getEnv("CACHE_TERMINAL_TTL", "5m")),
		RedisURL:              getEnv("REDIS_URL", ""),
		RedisTLSInsecure:      strings.EqualFold(getEnv("REDIS_TLS_INSECURE", "false"), "true"),
		AsynqQueueName:        getEnv("ASYNQ_QUEUE", "calls"),
		AsynqConcurrency:      mustInt(getEnv("ASYNQ_CONCURRENCY", "10")),
		ProviderBaseURL:       getEnv("PROVIDER_BASE_URL", "https://api.elevenlabs.io"),
		ProviderAPIKey:        getEnv("PROVIDER_API_KEY", ""),
		ProviderAgentID:       getEnv("PROVIDER_AGENT_ID", ""),
		ProviderAgentNumberID: getEnv("PROVIDER_AGENT_NUMBER_ID", ""),
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	if cfg.IsProduction() && cfg.WebhookSecret == "" {
		return nil, fmt.Errorf("WEBHOOK_SECRET is required in production")
	}
	if cfg.CORSAllowAll && cfg.CORSAllowCreds {
		return nil, fmt.Errorf("CORS_ALLOW_CREDENTIALS cannot be true when CORS_ALLOW_ALL is true")
	}
	if cfg.StatusMaxWait <= 0 || cfg.StatusMaxWait > 10*time.Second {
		return nil, fmt.Errorf("STATUS_MAX_WAIT must be between 0 and 10s")
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok {
		return val
	}
	return fallback
}

func mustDuration(value string) time.Duration {
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0
	}
	return d
}

func mustInt(value string) int {
	result, err := strconv.Atoi(value)
	if err != nil {
		return 0
	}
	return result
}

func splitCSV(value string) []string {
	parts := strings.Split(value, ",")
	results := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			results = append(results, trimmed)
		}
	}
	return results
}

func containsWildcard(values []string) bool {
	for _, value := range values {
		if value == "*" {
			return true
		}
	}
	return false
}
