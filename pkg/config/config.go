// Package config loads all application configuration from environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/iotnet/mqtt-auth/pkg/credentials"
	"github.com/iotnet/mqtt-auth/pkg/middleware"
	"github.com/iotnet/mqtt-auth/pkg/observability"
)

// Storage backend types.
const (
	StorePostgres = "postgres"
	StoreBadger   = "badger"
)

// Secret storage modes.
const (
	HasherArgon2 = "argon2"
	HasherAESGCM = "aesgcm"
)

// Config holds all application configuration.
type Config struct {
	Server ServerConfig
	Store  StoreConfig
	Cache  CacheConfig
	Auth   AuthConfig

	LogLevel observability.LogLevel
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host            string
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration

	// Health/metrics server (separate port for probes and scraping)
	HealthPort string
}

// StoreConfig selects and configures the authoritative credential store.
type StoreConfig struct {
	Type string // "postgres" or "badger"

	Postgres credentials.PostgresConfig

	BadgerPath string
}

// CacheConfig configures the credential cache.
type CacheConfig struct {
	Enabled bool
	TTL     time.Duration

	Redis credentials.RedisConfig
}

// AuthConfig holds the secrets and knobs of the decision engine.
type AuthConfig struct {
	// SecretKey signs bearer tokens.
	SecretKey string
	// EncryptionKey (hex, 32 bytes) drives the reversible secret mode.
	EncryptionKey string
	// Hasher selects the secret storage mode: "argon2" or "aesgcm".
	Hasher string
	// TokenLeeway is the clock-skew tolerance for token verification.
	TokenLeeway time.Duration
	// APIKey guards the HTTP surface.
	APIKey string
	// RateLimit throttles the protected routes per client.
	RateLimit middleware.RateLimitConfig
}

// LoadConfig loads configuration from environment variables.
func LoadConfig() (*Config, error) {
	cfg := &Config{
		Server:   loadServerConfig(),
		Store:    loadStoreConfig(),
		Cache:    loadCacheConfig(),
		Auth:     loadAuthConfig(),
		LogLevel: observability.ParseLogLevel(getEnv("MQTTAUTH_LOG_LEVEL", "info")),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

func loadServerConfig() ServerConfig {
	return ServerConfig{
		Host:            getEnv("MQTTAUTH_HOST", "0.0.0.0"),
		Port:            getEnv("MQTTAUTH_PORT", "5500"),
		ReadTimeout:     getEnvDuration("MQTTAUTH_READ_TIMEOUT", 15*time.Second),
		WriteTimeout:    getEnvDuration("MQTTAUTH_WRITE_TIMEOUT", 15*time.Second),
		IdleTimeout:     getEnvDuration("MQTTAUTH_IDLE_TIMEOUT", 60*time.Second),
		ShutdownTimeout: getEnvDuration("MQTTAUTH_SHUTDOWN_TIMEOUT", 30*time.Second),
		HealthPort:      getEnv("MQTTAUTH_HEALTH_PORT", "9090"),
	}
}

func loadStoreConfig() StoreConfig {
	return StoreConfig{
		Type: getEnv("MQTTAUTH_STORE_TYPE", StorePostgres),
		Postgres: credentials.PostgresConfig{
			URL:         getEnv("MQTTAUTH_POSTGRES_URL", ""),
			MaxConns:    getEnvInt("MQTTAUTH_POSTGRES_MAX_CONNS", 20),
			MinConns:    getEnvInt("MQTTAUTH_POSTGRES_MIN_CONNS", 2),
			Timeout:     getEnvDuration("MQTTAUTH_POSTGRES_TIMEOUT", 10*time.Second),
			RetryCount:  getEnvInt("MQTTAUTH_POSTGRES_RETRY_COUNT", 5),
			RetryDelay:  getEnvDuration("MQTTAUTH_POSTGRES_RETRY_DELAY", 2*time.Second),
			MaxLifetime: getEnvDuration("MQTTAUTH_POSTGRES_MAX_LIFETIME", 1*time.Hour),
			MaxIdleTime: getEnvDuration("MQTTAUTH_POSTGRES_MAX_IDLE_TIME", 10*time.Minute),
		},
		BadgerPath: getEnv("MQTTAUTH_BADGER_PATH", "./badger-data/mqtt-auth"),
	}
}

func loadCacheConfig() CacheConfig {
	return CacheConfig{
		Enabled: getEnvBool("MQTTAUTH_CACHE_ENABLED", true),
		TTL:     getEnvDuration("MQTTAUTH_CACHE_TTL", credentials.DefaultCacheTTL),
		Redis: credentials.RedisConfig{
			URL:        getEnv("MQTTAUTH_REDIS_URL", "redis://localhost:6379"),
			Password:   getEnv("MQTTAUTH_REDIS_PASSWORD", ""),
			DB:         getEnvInt("MQTTAUTH_REDIS_DB", 0),
			MaxRetries: getEnvInt("MQTTAUTH_REDIS_MAX_RETRIES", 3),
			PoolSize:   getEnvInt("MQTTAUTH_REDIS_POOL_SIZE", 10),
		},
	}
}

func loadAuthConfig() AuthConfig {
	defaults := middleware.DefaultRateLimitConfig()
	return AuthConfig{
		SecretKey:     getEnv("MQTTAUTH_SECRET_KEY", ""),
		EncryptionKey: getEnv("MQTTAUTH_ENCRYPTION_KEY", ""),
		Hasher:        getEnv("MQTTAUTH_HASHER", HasherArgon2),
		TokenLeeway:   getEnvDuration("MQTTAUTH_TOKEN_LEEWAY", 0),
		APIKey:        getEnv("MQTTAUTH_API_KEY", ""),
		RateLimit: middleware.RateLimitConfig{
			Enabled:           getEnvBool("MQTTAUTH_RATELIMIT_ENABLED", defaults.Enabled),
			RequestsPerWindow: getEnvInt("MQTTAUTH_RATELIMIT_REQUESTS", defaults.RequestsPerWindow),
			WindowDuration:    getEnvDuration("MQTTAUTH_RATELIMIT_WINDOW", defaults.WindowDuration),
			BurstSize:         getEnvInt("MQTTAUTH_RATELIMIT_BURST", defaults.BurstSize),
		},
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("server port is required")
	}
	if c.Server.HealthPort == "" {
		return fmt.Errorf("health port is required")
	}
	if c.Server.Port == c.Server.HealthPort {
		return fmt.Errorf("server port and health port must be different")
	}

	switch c.Store.Type {
	case StorePostgres:
		if c.Store.Postgres.URL == "" {
			return fmt.Errorf("postgres URL is required for postgres storage")
		}
	case StoreBadger:
		if c.Store.BadgerPath == "" {
			return fmt.Errorf("badger path is required for badger storage")
		}
	default:
		return fmt.Errorf("invalid store type: %s (must be postgres or badger)", c.Store.Type)
	}

	switch c.Auth.Hasher {
	case HasherArgon2:
		// Self-contained, no key material needed.
	case HasherAESGCM:
		if c.Auth.EncryptionKey == "" {
			return fmt.Errorf("encryption key is required for the aesgcm secret mode")
		}
	default:
		return fmt.Errorf("invalid hasher: %s (must be argon2 or aesgcm)", c.Auth.Hasher)
	}

	if c.Auth.SecretKey == "" {
		return fmt.Errorf("secret key is required for token signing")
	}

	return nil
}

// getEnv returns an environment variable value or a default.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBool returns a boolean environment variable or a default.
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return strings.ToLower(value) == "true" || value == "1"
	}
	return defaultValue
}

// getEnvInt returns an integer environment variable or a default.
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvDuration returns a duration environment variable or a default.
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
