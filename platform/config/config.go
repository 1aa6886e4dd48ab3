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

// CRMConfig provides credentials and endpoints for the upstream CRM API.
type CRMConfig interface {
	GetCRMAccountsURL() string
	GetCRMAPIURL() string
	GetCRMClientID() string
	GetCRMClientSecret() string
	GetCRMRefreshToken() string
}

// CalendarConfig provides the business calendar settings.
type CalendarConfig interface {
	GetBusinessUTCOffsetMinutes() int
}

// HTTPConfig provides settings for the HTTP server.
type HTTPConfig interface {
	GetHTTPAddr() string
	GetCORSAllowAll() bool
	GetCORSOrigins() []string
	GetCORSAllowCreds() bool
}

// SchedulerConfig provides settings for the asynq sync scheduler.
type SchedulerConfig interface {
	GetRedisURL() string
	GetRedisTLSInsecure() bool
	GetAsynqQueueName() string
	GetAsynqConcurrency() int
	GetSyncInterval() time.Duration
}

// CacheConfig provides settings for the redis stats cache.
type CacheConfig interface {
	GetRedisURL() string
	GetStatsCacheTTL() time.Duration
}

// =============================================================================
// Main Config Struct
// =============================================================================

// Config holds all application configuration values.
type Config struct {
	Env                      string
	HTTPAddr                 string
	DatabaseURL              string
	CRMAccountsURL           string
	CRMAPIURL                string
	CRMClientID              string
	CRMClientSecret          string
	CRMRefreshToken          string
	BusinessUTCOffsetMinutes int
	CORSAllowAll             bool
	CORSOrigins              []string
	CORSAllowCreds           bool
	RedisURL                 string
	RedisTLSInsecure         bool
	AsynqQueueName           string
	AsynqConcurrency         int
	SyncInterval             time.Duration
	StatsCacheTTL            time.Duration
}

// =============================================================================
// Interface Implementations
// =============================================================================

// DatabaseConfig implementation
func (c *Config) GetDatabaseURL() string { return c.DatabaseURL }

// CRMConfig implementation
func (c *Config) GetCRMAccountsURL() string  { return c.CRMAccountsURL }
func (c *Config) GetCRMAPIURL() string       { return c.CRMAPIURL }
func (c *Config) GetCRMClientID() string     { return c.CRMClientID }
func (c *Config) GetCRMClientSecret() string { return c.CRMClientSecret }
func (c *Config) GetCRMRefreshToken() string { return c.CRMRefreshToken }

// CalendarConfig implementation
func (c *Config) GetBusinessUTCOffsetMinutes() int { return c.BusinessUTCOffsetMinutes }

// HTTPConfig implementation
func (c *Config) GetHTTPAddr() string      { return c.HTTPAddr }
func (c *Config) GetCORSAllowAll() bool    { return c.CORSAllowAll }
func (c *Config) GetCORSOrigins() []string { return c.CORSOrigins }
func (c *Config) GetCORSAllowCreds() bool  { return c.CORSAllowCreds }

// SchedulerConfig implementation
func (c *Config) GetRedisURL() string            { return c.RedisURL }
func (c *Config) GetRedisTLSInsecure() bool      { return c.RedisTLSInsecure }
func (c *Config) GetAsynqQueueName() string      { return c.AsynqQueueName }
func (c *Config) GetAsynqConcurrency() int       { return c.AsynqConcurrency }
func (c *Config) GetSyncInterval() time.Duration { return c.SyncInterval }

// CacheConfig implementation
func (c *Config) GetStatsCacheTTL() time.Duration { return c.StatsCacheTTL }

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	_ = godotenv.Load()

	corsOrigins := splitCSV(getEnv("CORS_ORIGINS", "http://localhost:4200"))
	corsAllowAll := strings.EqualFold(getEnv("CORS_ALLOW_ALL", "false"), "true")
	if containsWildcard(corsOrigins) {
		corsAllowAll = true
	}

	cfg := &Config{
		Env:                      getEnv("APP_ENV", "development"),
		HTTPAddr:                 getEnv("HTTP_ADDR", ":8080"),
		DatabaseURL:              getEnv("DATABASE_URL", ""),
		CRMAccountsURL:           getEnv("CRM_ACCOUNTS_URL", "https://accounts.zoho.com"),
		CRMAPIURL:                getEnv("CRM_API_URL", "https://www.zohoapis.com/crm/v2"),
		CRMClientID:              getEnv("CRM_CLIENT_ID", ""),
		CRMClientSecret:          getEnv("CRM_CLIENT_SECRET", ""),
		CRMRefreshToken:          getEnv("CRM_REFRESH_TOKEN", ""),
		BusinessUTCOffsetMinutes: mustInt(getEnv("BUSINESS_TZ_OFFSET_MIN", "-360")),
		CORSAllowAll:             corsAllowAll,
		CORSOrigins:              corsOrigins,
		CORSAllowCreds:           strings.EqualFold(getEnv("CORS_ALLOW_CREDENTIALS", "true"), "true"),
		RedisURL:                 getEnv("REDIS_URL", ""),
		RedisTLSInsecure:         strings.EqualFold(getEnv("REDIS_TLS_INSECURE", "false"), "true"),
		AsynqQueueName:           getEnv("ASYNQ_QUEUE", "default"),
		AsynqConcurrency:         mustInt(getEnv("ASYNQ_CONCURRENCY", "10")),
		SyncInterval:             mustDuration(getEnv("MIRROR_SYNC_INTERVAL", "30m")),
		StatsCacheTTL:            mustDuration(getEnv("STATS_CACHE_TTL", "2m")),
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	if cfg.CORSAllowAll && cfg.CORSAllowCreds {
		return nil, fmt.Errorf("CORS_ALLOW_CREDENTIALS cannot be true when CORS_ALLOW_ALL is true")
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
