package config

import (
	"fmt"
	"os"
	"strconv"
)

// Config holds all configuration for the application
type Config struct {
	// Server configuration
	Port           string
	Env            string
	LogFormat      string
	AllowedOrigins string

	// Database configuration
	DatabaseURL string
	DBMaxConns  int
	DBMinConns  int

	// Redis configuration (optional; the service runs without a cache)
	RedisURL      string
	RedisPassword string

	// Admin surface; routes stay unmounted when the secret is empty
	AdminJWTSecret string

	// Rate limiting; zero RPS disables the limiter
	RateLimitRPS   float64
	RateLimitBurst int

	// Transfer engine
	TransferTimeoutSeconds int
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{
		Port:                   getEnv("PORT", "8080"),
		Env:                    getEnv("ENV", "development"),
		LogFormat:              getEnv("LOG_FORMAT", ""),
		AllowedOrigins:         getEnv("ALLOWED_ORIGINS", "*"),
		DatabaseURL:            getEnv("DATABASE_URL", ""),
		DBMaxConns:             getEnvAsInt("DB_MAX_CONNS", 0),
		DBMinConns:             getEnvAsInt("DB_MIN_CONNS", 0),
		RedisURL:               getEnv("REDIS_URL", ""),
		RedisPassword:          getEnv("REDIS_PASSWORD", ""),
		AdminJWTSecret:         getEnv("ADMIN_JWT_SECRET", ""),
		RateLimitRPS:           getEnvAsFloat("RATE_LIMIT_RPS", 100),
		RateLimitBurst:         getEnvAsInt("RATE_LIMIT_BURST", 20),
		TransferTimeoutSeconds: getEnvAsInt("TRANSFER_TIMEOUT_SECONDS", 0),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate ensures all required configuration is present
func (c *Config) Validate() error {
	if c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}

	if c.AdminJWTSecret != "" && len(c.AdminJWTSecret) < 32 {
		return fmt.Errorf("ADMIN_JWT_SECRET must be at least 32 characters long")
	}

	if c.RateLimitRPS < 0 {
		return fmt.Errorf("RATE_LIMIT_RPS must not be negative")
	}

	return nil
}

// IsDevelopment returns true if running in development mode
func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

// IsProduction returns true if running in production mode
func (c *Config) IsProduction() bool {
	return c.Env == "production"
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
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getEnvAsFloat gets an environment variable as a float with a default value
func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}
