package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	aws_pkg "github.com/yashrajoria/storefront/pkg/aws"
)

// Config holds all configuration for the storefront API.
type Config struct {
	Port string

	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	PostgresHost     string
	PostgresPort     string
	PostgresSSLMode  string
	PostgresTimeZone string

	JWTSecret       string
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration

	RedisURL string
	CacheTTL time.Duration

	OrderSNSTopicARN string

	TaxRate               decimal.Decimal
	ShippingFlatRate      decimal.Decimal
	ShippingFreeThreshold decimal.Decimal

	RateLimitPerMinute int
	RateLimitBurst     int
	AllowedOrigins     []string
}

// LoadConfig reads configuration from environment variables with optional
// Secrets Manager override.
func LoadConfig() (*Config, error) {
	cfg := &Config{
		Port:             getEnv("PORT", "8080"),
		PostgresUser:     os.Getenv("POSTGRES_USER"),
		PostgresPassword: os.Getenv("POSTGRES_PASSWORD"),
		PostgresDB:       os.Getenv("POSTGRES_DB"),
		PostgresHost:     os.Getenv("POSTGRES_HOST"),
		PostgresPort:     getEnv("POSTGRES_PORT", "5432"),
		PostgresSSLMode:  getEnv("POSTGRES_SSLMODE", "disable"),
		PostgresTimeZone: getEnv("POSTGRES_TIMEZONE", "UTC"),
		JWTSecret:        os.Getenv("JWT_SECRET"),
		RedisURL:         os.Getenv("REDIS_URL"),
		OrderSNSTopicARN: os.Getenv("ORDER_SNS_TOPIC_ARN"),
	}

	var err error
	if cfg.AccessTokenTTL, err = parseDurationEnv("ACCESS_TOKEN_TTL", 15*time.Minute); err != nil {
		return nil, err
	}
	if cfg.RefreshTokenTTL, err = parseDurationEnv("REFRESH_TOKEN_TTL", 7*24*time.Hour); err != nil {
		return nil, err
	}
	if cfg.CacheTTL, err = parseDurationEnv("CACHE_TTL", 5*time.Minute); err != nil {
		return nil, err
	}

	if cfg.TaxRate, err = parseDecimalEnv("TAX_RATE", "0.10"); err != nil {
		return nil, err
	}
	if cfg.ShippingFlatRate, err = parseDecimalEnv("SHIPPING_FLAT_RATE", "10.00"); err != nil {
		return nil, err
	}
	if cfg.ShippingFreeThreshold, err = parseDecimalEnv("SHIPPING_FREE_THRESHOLD", "0"); err != nil {
		return nil, err
	}

	if cfg.RateLimitPerMinute, err = parseIntEnv("RATE_LIMIT_PER_MINUTE", 100); err != nil {
		return nil, err
	}
	if cfg.RateLimitBurst, err = parseIntEnv("RATE_LIMIT_BURST", 50); err != nil {
		return nil, err
	}

	cfg.AllowedOrigins = splitOrigins(getEnv("ALLOWED_ORIGINS", "http://localhost:3000"))

	// Override credentials from Secrets Manager when running on AWS
	if os.Getenv("AWS_USE_SECRETS") == "true" {
		if awsCfg, err := aws_pkg.LoadAWSConfig(context.Background()); err == nil {
			sm := aws_pkg.NewSecretsClient(awsCfg)

			var db map[string]string
			if err := sm.GetJSONSecret(context.Background(), "storefront/DB_CREDENTIALS", &db); err == nil {
				if v := db["POSTGRES_USER"]; v != "" {
					cfg.PostgresUser = v
				}
				if v := db["POSTGRES_PASSWORD"]; v != "" {
					cfg.PostgresPassword = v
				}
				if v := db["POSTGRES_DB"]; v != "" {
					cfg.PostgresDB = v
				}
				if v := db["POSTGRES_HOST"]; v != "" {
					cfg.PostgresHost = v
				}
				if v := db["POSTGRES_PORT"]; v != "" {
					cfg.PostgresPort = v
				}
			}

			if secret, err := sm.GetSecret(context.Background(), "storefront/JWT_SECRET"); err == nil && secret != "" {
				cfg.JWTSecret = secret
			}
		}
	}

	if cfg.PostgresUser == "" || cfg.PostgresPassword == "" || cfg.PostgresDB == "" || cfg.PostgresHost == "" {
		return nil, fmt.Errorf("database config incomplete")
	}
	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}
	return cfg, nil
}

// DSN builds the Postgres connection string.
func (c *Config) DSN() string {
	return fmt.Sprintf(
		"host=%s user=%s password=%s dbname=%s port=%s sslmode=%s TimeZone=%s",
		c.PostgresHost, c.PostgresUser, c.PostgresPassword, c.PostgresDB,
		c.PostgresPort, c.PostgresSSLMode, c.PostgresTimeZone,
	)
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func parseDurationEnv(key string, fallback time.Duration) (time.Duration, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}

func parseDecimalEnv(key, fallback string) (decimal.Decimal, error) {
	raw := getEnv(key, fallback)
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}

func parseIntEnv(key string, fallback int) (int, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}

func splitOrigins(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
