// Package config handles application configuration from environment variables
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all connector configuration.
type Config struct {
	// Server settings
	Port     string
	Env      string // "development", "staging", "production"
	LogLevel string

	// Humifortis SaaS
	APIURL        string
	APIKey        string // Required. Never logged.
	Timeout       time.Duration
	FallbackAllow bool // fail-open (true) vs fail-closed (false) when the SaaS is unreachable

	// Tracing
	OTLPEndpoint string // OTLP gRPC endpoint; tracing disabled when empty
}

// Defaults.
const (
	DefaultAPIURL    = "https://api.humifortis.educosmic.tech"
	DefaultTimeoutMS = 5000
	DefaultPort      = "8180"
	DefaultEnv       = "development"
	DefaultLogLevel  = "info"
)

// Load reads configuration from environment variables.
// It loads .env file if present (for local development).
func Load() (*Config, error) {
	// Load .env file if it exists (ignore error if not present)
	_ = godotenv.Load()

	cfg := &Config{
		Port:          getEnv("PORT", DefaultPort),
		Env:           getEnv("ENV", DefaultEnv),
		LogLevel:      getEnv("LOG_LEVEL", DefaultLogLevel),
		APIURL:        getEnv("HUMIFORTIS_API_URL", DefaultAPIURL),
		APIKey:        os.Getenv("HUMIFORTIS_API_KEY"), // Required, no default
		Timeout:       time.Duration(getEnvInt64("HUMIFORTIS_TIMEOUT_MS", DefaultTimeoutMS)) * time.Millisecond,
		FallbackAllow: getEnvBool("HUMIFORTIS_FALLBACK_ALLOW", true),
		OTLPEndpoint:  os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks that all required configuration is present.
func (c *Config) Validate() error {
	if c.APIKey == "" {
		return fmt.Errorf("HUMIFORTIS_API_KEY is required")
	}
	if c.APIURL == "" {
		return fmt.Errorf("HUMIFORTIS_API_URL is required")
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("HUMIFORTIS_TIMEOUT_MS must be positive")
	}
	return nil
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

// IsProduction returns true if running in production mode.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// Helper functions

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.ParseInt(value, 10, 64); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}
