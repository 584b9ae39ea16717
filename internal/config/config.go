package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds all application configuration
type Config struct {
	Merchant MerchantConfig
	Gateway  GatewayConfig
	Redis    RedisConfig
	Logger   LoggerConfig
}

// MerchantConfig identifies the storefront this process serves
type MerchantConfig struct {
	Slug string
}

// GatewayConfig holds Pixman backend configuration
type GatewayConfig struct {
	GraphQLURL     string // GraphQL endpoint for catalog, user and coupon operations
	PaymentURL     string // REST endpoint for PIX charge creation
	APIKey         string // x-api-key header value
	Timeout        time.Duration
	PaymentTimeout time.Duration
	MaxAttempts    int
}

// RedisConfig holds the optional shared payment-session store. An empty
// Addr means sessions stay in process memory.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	Prefix   string
}

// LoggerConfig holds logging configuration
type LoggerConfig struct {
	Level       string // debug, info, warn, error
	Development bool
}

// LoadFromEnv loads configuration from environment variables
func LoadFromEnv() (*Config, error) {
	cfg := &Config{
		Merchant: MerchantConfig{
			Slug: getEnv("MERCHANT_SLUG", ""),
		},
		Gateway: GatewayConfig{
			GraphQLURL:     getEnv("GATEWAY_GRAPHQL_URL", ""),
			PaymentURL:     getEnv("GATEWAY_PAYMENT_URL", ""),
			APIKey:         getEnv("GATEWAY_API_KEY", ""),
			Timeout:        getEnvAsDuration("GATEWAY_TIMEOUT", 10*time.Second),
			PaymentTimeout: getEnvAsDuration("GATEWAY_PAYMENT_TIMEOUT", 30*time.Second),
			MaxAttempts:    getEnvAsInt("GATEWAY_MAX_ATTEMPTS", 3),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", ""),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
			Prefix:   getEnv("REDIS_PREFIX", "couponflow"),
		},
		Logger: LoggerConfig{
			Level:       getEnv("LOG_LEVEL", "info"),
			Development: getEnvAsBool("LOG_DEVELOPMENT", false),
		},
	}

	// Validate required fields
	if cfg.Merchant.Slug == "" {
		return nil, fmt.Errorf("MERCHANT_SLUG is required")
	}
	if cfg.Gateway.GraphQLURL == "" {
		return nil, fmt.Errorf("GATEWAY_GRAPHQL_URL is required")
	}
	if cfg.Gateway.PaymentURL == "" {
		return nil, fmt.Errorf("GATEWAY_PAYMENT_URL is required")
	}
	if cfg.Gateway.APIKey == "" {
		return nil, fmt.Errorf("GATEWAY_API_KEY is required")
	}

	return cfg, nil
}

// Helper functions

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}
