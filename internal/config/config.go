package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Storage backends
const (
	StoragePostgres = "postgres"
	StorageMemory   = "memory"
)

// Config holds all configuration for the application
type Config struct {
	TelegramToken  string
	DatabaseURL    string
	Storage        string
	MigrationsPath string
	LogLevel       string
	PrometheusPort string
	Port           string
	DatabasePool   PoolConfig

	WaitingDays               int
	FreeItemLimit             int
	ReminderInterval          time.Duration
	SubscriptionSweepInterval time.Duration

	StripeSecretKey      string
	StripeWebhookSecret  string
	StripePremiumPriceID string
}

// Load loads configuration from environment variables. Values found in a
// .env file in the working directory are loaded first; variables already
// set in the environment win.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Storage:              getEnvOrDefault("STORAGE", StoragePostgres),
		MigrationsPath:       getEnvOrDefault("MIGRATIONS_PATH", "migrations"),
		LogLevel:             getEnvOrDefault("LOG_LEVEL", "info"),
		PrometheusPort:       getEnvOrDefault("PROMETHEUS_PORT", "9090"),
		Port:                 getEnvOrDefault("PORT", "8080"),
		StripeSecretKey:      os.Getenv("STRIPE_SECRET_KEY"),
		StripeWebhookSecret:  os.Getenv("STRIPE_WEBHOOK_SECRET"),
		StripePremiumPriceID: os.Getenv("STRIPE_PREMIUM_PRICE_ID"),
	}

	var err error
	if cfg.WaitingDays, err = getIntOrDefault("WAITING_DAYS", 7); err != nil {
		return nil, err
	}
	if cfg.FreeItemLimit, err = getIntOrDefault("FREE_ITEM_LIMIT", 3); err != nil {
		return nil, err
	}
	if cfg.ReminderInterval, err = getDurationOrDefault("REMINDER_INTERVAL", 30*time.Second); err != nil {
		return nil, err
	}
	if cfg.DatabasePool.MaxOpenConns, err = getIntOrDefault("DB_MAX_OPEN_CONNS", 10); err != nil {
		return nil, err
	}
	if cfg.DatabasePool.MaxIdleConns, err = getIntOrDefault("DB_MAX_IDLE_CONNS", 5); err != nil {
		return nil, err
	}
	if cfg.DatabasePool.ConnMaxLifetime, err = getDurationOrDefault("DB_CONN_MAX_LIFETIME", 5*time.Minute); err != nil {
		return nil, err
	}
	if cfg.SubscriptionSweepInterval, err = getDurationOrDefault("SUBSCRIPTION_SWEEP_INTERVAL", 6*time.Hour); err != nil {
		return nil, err
	}

	// Required environment variables
	if cfg.TelegramToken = os.Getenv("TELEGRAM_TOKEN"); cfg.TelegramToken == "" {
		return nil, fmt.Errorf("TELEGRAM_TOKEN environment variable is required")
	}

	switch cfg.Storage {
	case StoragePostgres:
		if cfg.DatabaseURL = os.Getenv("DATABASE_URL"); cfg.DatabaseURL == "" {
			return nil, fmt.Errorf("DATABASE_URL environment variable is required")
		}
	case StorageMemory:
	default:
		return nil, fmt.Errorf("STORAGE must be %q or %q, got %q", StoragePostgres, StorageMemory, cfg.Storage)
	}

	if cfg.WaitingDays <= 0 {
		return nil, fmt.Errorf("WAITING_DAYS must be positive, got %d", cfg.WaitingDays)
	}
	if cfg.ReminderInterval <= 0 {
		return nil, fmt.Errorf("REMINDER_INTERVAL must be positive, got %s", cfg.ReminderInterval)
	}
	if cfg.SubscriptionSweepInterval <= 0 {
		return nil, fmt.Errorf("SUBSCRIPTION_SWEEP_INTERVAL must be positive, got %s", cfg.SubscriptionSweepInterval)
	}

	return cfg, nil
}

// BillingEnabled reports whether a Stripe key was configured
func (c *Config) BillingEnabled() bool {
	return c.StripeSecretKey != ""
}

// getEnvOrDefault returns environment variable value or default if not set
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntOrDefault(key string, defaultValue int) (int, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer: %w", key, err)
	}
	return v, nil
}

func getDurationOrDefault(key string, defaultValue time.Duration) (time.Duration, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue, nil
	}
	v, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("%s must be a duration: %w", key, err)
	}
	return v, nil
}
