package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/dochieno/lawafrica-entitlements/pkg/observability"
)

// Config holds all entitlement engine configuration
type Config struct {
	// Database configuration
	Database DatabaseConfig

	// Reconciler configuration
	Reconciler ReconcilerConfig

	// Entitlement resolution configuration
	Entitlements EntitlementsConfig

	// Seat enforcement configuration
	Seats SeatsConfig

	// HTTP API configuration
	Server ServerConfig

	// Observability configuration
	Observability ObservabilityConfig
}

// DatabaseConfig holds PostgreSQL connection settings
type DatabaseConfig struct {
	URL         string
	ReplicaURLs string
	MaxConns    int
	MinConns    int
	Timeout     time.Duration
	MaxLifetime time.Duration
	MaxIdleTime time.Duration
}

// ReconcilerConfig holds subscription lifecycle reconciler settings
type ReconcilerConfig struct {
	// Schedule is a cron expression for the daemon; Interval drives the
	// embedded Run loop.
	Schedule  string
	Interval  time.Duration
	BatchSize int
}

// EntitlementsConfig holds access-resolution settings
type EntitlementsConfig struct {
	BundleProductName string
	ProductCacheSize  int
	ProductCacheTTL   time.Duration
}

// SeatsConfig holds seat enforcement settings
type SeatsConfig struct {
	// UnlimitedWhenZero keeps the legacy reading of a zero (or unset) seat
	// limit as "no quota"; set false to read zero as "nobody allowed".
	UnlimitedWhenZero bool
}

// ServerConfig holds HTTP API settings
type ServerConfig struct {
	HTTPPort string
}

// ObservabilityConfig holds observability settings
type ObservabilityConfig struct {
	LogLevel       observability.LogLevel
	MetricsEnabled bool
	HealthPort     string
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	cfg := &Config{
		Database: DatabaseConfig{
			URL:         getEnv("LAWAFRICA_POSTGRES_URL", "postgres://localhost/lawafrica?sslmode=disable"),
			ReplicaURLs: getEnv("LAWAFRICA_POSTGRES_REPLICA_URLS", ""),
			MaxConns:    getEnvInt("LAWAFRICA_POSTGRES_MAX_CONNS", 20),
			MinConns:    getEnvInt("LAWAFRICA_POSTGRES_MIN_CONNS", 2),
			Timeout:     getEnvDuration("LAWAFRICA_POSTGRES_TIMEOUT", 10*time.Second),
			MaxLifetime: getEnvDuration("LAWAFRICA_POSTGRES_MAX_LIFETIME", 30*time.Minute),
			MaxIdleTime: getEnvDuration("LAWAFRICA_POSTGRES_MAX_IDLE_TIME", 5*time.Minute),
		},
		Reconciler: ReconcilerConfig{
			Schedule:  getEnv("LAWAFRICA_RECONCILE_SCHEDULE", "@every 5m"),
			Interval:  getEnvDuration("LAWAFRICA_RECONCILE_INTERVAL", 5*time.Minute),
			BatchSize: getEnvInt("LAWAFRICA_RECONCILE_BATCH_SIZE", 500),
		},
		Entitlements: EntitlementsConfig{
			BundleProductName: getEnv("LAWAFRICA_BUNDLE_PRODUCT_NAME", "LawAfrica Institutional Bundle"),
			ProductCacheSize:  getEnvInt("LAWAFRICA_PRODUCT_CACHE_SIZE", 256),
			ProductCacheTTL:   getEnvDuration("LAWAFRICA_PRODUCT_CACHE_TTL", time.Minute),
		},
		Seats: SeatsConfig{
			UnlimitedWhenZero: getEnvBool("LAWAFRICA_SEATS_UNLIMITED_WHEN_ZERO", true),
		},
		Server: ServerConfig{
			HTTPPort: getEnv("LAWAFRICA_HTTP_PORT", "8080"),
		},
		Observability: ObservabilityConfig{
			LogLevel:       observability.ParseLogLevel(getEnv("LAWAFRICA_LOG_LEVEL", "info")),
			MetricsEnabled: getEnvBool("LAWAFRICA_METRICS_ENABLED", true),
			HealthPort:     getEnv("LAWAFRICA_HEALTH_PORT", "9090"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Database.URL == "" {
		return fmt.Errorf("postgres URL is required")
	}
	if c.Reconciler.BatchSize <= 0 {
		return fmt.Errorf("reconcile batch size must be positive")
	}
	if c.Reconciler.Interval <= 0 {
		return fmt.Errorf("reconcile interval must be positive")
	}
	if c.Reconciler.Schedule == "" {
		return fmt.Errorf("reconcile schedule is required")
	}
	if c.Entitlements.BundleProductName == "" {
		return fmt.Errorf("bundle product name is required")
	}
	if c.Observability.HealthPort == "" {
		return fmt.Errorf("health port is required")
	}
	if c.Server.HTTPPort == "" {
		return fmt.Errorf("http port is required")
	}
	return nil
}

// getEnv returns an environment variable value or a default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBool returns a boolean environment variable or a default
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return strings.ToLower(value) == "true" || value == "1"
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

// getEnvDuration returns a duration environment variable or a default
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}
