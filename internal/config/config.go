// Package config provides configuration management for the wallet analytics engine.
// It loads service configuration from environment variables and .env files, and
// scoring thresholds from an optional YAML or JSON file.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

// Config holds all application configuration
type Config struct {
	Server       ServerConfig
	Database     DatabaseConfig
	Cache        CacheConfig
	Batch        BatchConfig
	Monetization MonetizationConfig
	RateLimit    RateLimitConfig
	Logging      LoggingConfig
	// ThresholdsFile optionally overrides flow and scoring thresholds
	ThresholdsFile string
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Port string
	Host string
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Postgres   PostgresConfig
	ClickHouse ClickHouseConfig
	Redis      RedisConfig
}

// PostgresConfig holds Postgres configuration
type PostgresConfig struct {
	Host           string
	Port           string
	Database       string
	User           string
	Password       string
	MaxConnections int
}

// URL returns the postgres:// connection URL used by migrations
func (c PostgresConfig) URL() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=disable",
		c.User,
		c.Password,
		c.Host,
		c.Port,
		c.Database,
	)
}

// ClickHouseConfig holds ClickHouse configuration
type ClickHouseConfig struct {
	Host     string
	Port     string
	Database string
	User     string
	Password string
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Host           string
	Port           string
	Password       string
	DB             int
	MaxConnections int
}

// CacheConfig holds view cache configuration
type CacheConfig struct {
	// TTL is how long a computed view is served without recomputation
	TTL time.Duration
	// StaleRetention keeps expired views in Redis so a failed recompute leaves the prior value in place
	StaleRetention time.Duration
}

// BatchConfig holds bulk recompute configuration
type BatchConfig struct {
	Concurrency   int
	QueueSize     int
	WalletTimeout time.Duration
}

// MonetizationConfig holds paid access configuration
type MonetizationConfig struct {
	OwnerShare    float64
	GrantDuration time.Duration
	// AccessPrice is the amount the built-in payment verifier settles per grant
	AccessPrice string
}

// RateLimitConfig holds per-requester rate limiting configuration
type RateLimitConfig struct {
	RequestsPerMinute int
	Burst             int
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string
	Format string
}

// LoadConfig loads configuration from .env file and environment variables
func LoadConfig() (*Config, error) {
	// Load .env file (optional in production)
	if err := godotenv.Load(); err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("error loading .env file: %w", err)
		}
	}

	config := &Config{
		Server: ServerConfig{
			Port: getEnv("SERVER_PORT", "8080"),
			Host: getEnv("SERVER_HOST", "0.0.0.0"),
		},
		Database: DatabaseConfig{
			Postgres: PostgresConfig{
				Host:           getEnv("POSTGRES_HOST", "localhost"),
				Port:           getEnv("POSTGRES_PORT", "5432"),
				Database:       getEnv("POSTGRES_DB", "wallet_insights"),
				User:           getEnv("POSTGRES_USER", "insights"),
				Password:       getEnv("POSTGRES_PASSWORD", ""),
				MaxConnections: getEnvAsInt("POSTGRES_MAX_CONNECTIONS", 50),
			},
			ClickHouse: ClickHouseConfig{
				Host:     getEnv("CLICKHOUSE_HOST", "localhost"),
				Port:     getEnv("CLICKHOUSE_PORT", "9000"),
				Database: getEnv("CLICKHOUSE_DB", "wallet_insights"),
				User:     getEnv("CLICKHOUSE_USER", "default"),
				Password: getEnv("CLICKHOUSE_PASSWORD", ""),
			},
			Redis: RedisConfig{
				Host:           getEnv("REDIS_HOST", "localhost"),
				Port:           getEnv("REDIS_PORT", "6379"),
				Password:       getEnv("REDIS_PASSWORD", ""),
				DB:             getEnvAsInt("REDIS_DB", 0),
				MaxConnections: getEnvAsInt("REDIS_MAX_CONNECTIONS", 50),
			},
		},
		Cache: CacheConfig{
			TTL:            getEnvAsDuration("CACHE_TTL", 5*time.Minute),
			StaleRetention: getEnvAsDuration("CACHE_STALE_RETENTION", time.Hour),
		},
		Batch: BatchConfig{
			Concurrency:   getEnvAsInt("BATCH_CONCURRENCY", 8),
			QueueSize:     getEnvAsInt("BATCH_QUEUE_SIZE", 1000),
			WalletTimeout: getEnvAsDuration("BATCH_WALLET_TIMEOUT", 30*time.Second),
		},
		Monetization: MonetizationConfig{
			OwnerShare:    getEnvAsFloat("MONETIZATION_OWNER_SHARE", 0.70),
			GrantDuration: getEnvAsDuration("MONETIZATION_GRANT_DURATION", 30*24*time.Hour),
			AccessPrice:   getEnv("MONETIZATION_ACCESS_PRICE", "10"),
		},
		RateLimit: RateLimitConfig{
			RequestsPerMinute: getEnvAsInt("RATE_LIMIT_PER_MINUTE", 120),
			Burst:             getEnvAsInt("RATE_LIMIT_BURST", 20),
		},
		Logging: LoggingConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
		ThresholdsFile: getEnv("THRESHOLDS_FILE", ""),
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// Validate checks values that would make the engine misbehave
func (c *Config) Validate() error {
	if c.Monetization.OwnerShare < 0 || c.Monetization.OwnerShare > 1 {
		return fmt.Errorf("MONETIZATION_OWNER_SHARE must be within [0,1], got %v", c.Monetization.OwnerShare)
	}
	if c.Batch.Concurrency < 1 {
		return fmt.Errorf("BATCH_CONCURRENCY must be positive, got %d", c.Batch.Concurrency)
	}
	if price, err := decimal.NewFromString(c.Monetization.AccessPrice); err != nil || !price.IsPositive() {
		return fmt.Errorf("MONETIZATION_ACCESS_PRICE must be a positive decimal, got %q", c.Monetization.AccessPrice)
	}
	if c.Cache.TTL <= 0 {
		return fmt.Errorf("CACHE_TTL must be positive, got %s", c.Cache.TTL)
	}
	return nil
}

// getEnv gets an environment variable with a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt gets an environment variable as an integer with a default value
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsFloat gets an environment variable as a float with a default value
func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsDuration gets an environment variable as a duration with a default value
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}

	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}
