package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/grantcue/grantcue/pkg/observability"
)

// Config holds all application configuration
type Config struct {
	Server        ServerConfig
	Database      DatabaseConfig
	Redis         RedisConfig
	Observability ObservabilityConfig
	Access        AccessConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
}

// DatabaseConfig holds PostgreSQL configuration
type DatabaseConfig struct {
	URL          string
	MaxOpenConns int
	MaxIdleConns int
}

// RedisConfig holds the optional Redis cache configuration
type RedisConfig struct {
	// URL is empty when caching is disabled
	URL      string
	Password string
	DB       int
}

// ObservabilityConfig holds logging and metrics settings
type ObservabilityConfig struct {
	LogLevel       observability.LogLevel
	MetricsEnabled bool
}

// AccessConfig holds permission-resolution settings
type AccessConfig struct {
	// CacheTTL bounds how long a resolved permission set may be served
	CacheTTL time.Duration
	// ResolveTimeout bounds one resolution; exceeding it denies
	ResolveTimeout time.Duration
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Host:            getEnv("GRANTCUE_HOST", "0.0.0.0"),
			Port:            getEnv("GRANTCUE_PORT", "8080"),
			ReadTimeout:     getEnvDuration("GRANTCUE_READ_TIMEOUT", 15*time.Second),
			WriteTimeout:    getEnvDuration("GRANTCUE_WRITE_TIMEOUT", 15*time.Second),
			IdleTimeout:     getEnvDuration("GRANTCUE_IDLE_TIMEOUT", 60*time.Second),
			ShutdownTimeout: getEnvDuration("GRANTCUE_SHUTDOWN_TIMEOUT", 30*time.Second),
		},
		Database: DatabaseConfig{
			URL:          getEnv("GRANTCUE_POSTGRES_URL", ""),
			MaxOpenConns: getEnvInt("GRANTCUE_POSTGRES_MAX_CONNS", 25),
			MaxIdleConns: getEnvInt("GRANTCUE_POSTGRES_IDLE_CONNS", 5),
		},
		Redis: RedisConfig{
			URL:      getEnv("GRANTCUE_REDIS_URL", ""),
			Password: getEnv("GRANTCUE_REDIS_PASSWORD", ""),
			DB:       getEnvInt("GRANTCUE_REDIS_DB", 0),
		},
		Observability: ObservabilityConfig{
			LogLevel:       observability.ParseLogLevel(getEnv("GRANTCUE_LOG_LEVEL", "info")),
			MetricsEnabled: getEnvBool("GRANTCUE_METRICS_ENABLED", true),
		},
		Access: AccessConfig{
			CacheTTL:       getEnvDuration("GRANTCUE_ACCESS_CACHE_TTL", 5*time.Minute),
			ResolveTimeout: getEnvDuration("GRANTCUE_ACCESS_RESOLVE_TIMEOUT", 10*time.Second),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks the configuration for errors
func (c *Config) Validate() error {
	if c.Database.URL == "" {
		return fmt.Errorf("GRANTCUE_POSTGRES_URL is required")
	}
	if c.Server.Port == "" {
		return fmt.Errorf("server port must not be empty")
	}
	if _, err := strconv.Atoi(c.Server.Port); err != nil {
		return fmt.Errorf("invalid server port %q: %w", c.Server.Port, err)
	}
	if c.Access.CacheTTL < 0 {
		return fmt.Errorf("access cache TTL must not be negative")
	}
	if c.Access.ResolveTimeout <= 0 {
		return fmt.Errorf("access resolve timeout must be positive")
	}
	return nil
}

// getEnv returns an environment variable or a default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt returns an integer environment variable or a default
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

// getEnvBool returns a boolean environment variable or a default
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

// getEnvDuration returns a duration environment variable or a default
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}
