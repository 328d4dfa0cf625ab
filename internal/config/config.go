package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/RaikyD/dealer-orders-service/internal/logger"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

type Config struct {
	HTTP_PORT     string
	DB_STRING     string
	REDIS_ADDR    string
	KAFKA_BROKERS []string
	KAFKA_TOPIC   string
	KAFKA_GROUP   string
	LOG_LEVEL     string

	DeliveryFee           decimal.Decimal
	FreeDeliveryThreshold decimal.Decimal
	PublicCouponCodes     []string

	IdempotencyTTL  time.Duration
	OutboxInterval  time.Duration
	ShutdownTimeout time.Duration
	AllowedOrigins  []string
}

// LoadConfig reads .env when present, then the process environment.
func LoadConfig() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		HTTP_PORT:     getEnv("HTTP_PORT", "8080"),
		DB_STRING:     os.Getenv("DB_STRING"),
		REDIS_ADDR:    os.Getenv("REDIS_ADDR"),
		KAFKA_BROKERS: getEnvAsSlice("KAFKA_BROKERS", nil),
		KAFKA_TOPIC:   getEnv("KAFKA_TOPIC", "dealer-orders.events"),
		KAFKA_GROUP:   os.Getenv("KAFKA_GROUP_ID"),
		LOG_LEVEL:     getEnv("LOG_LEVEL", "info"),

		PublicCouponCodes: getEnvAsSlice("PUBLIC_COUPON_CODES", []string{"SAVE30", "SAVE50", "SAVE100"}),
		IdempotencyTTL:    getEnvAsDuration("IDEMPOTENCY_TTL", 24*time.Hour),
		OutboxInterval:    getEnvAsDuration("OUTBOX_INTERVAL", 2*time.Second),
		ShutdownTimeout:   getEnvAsDuration("SHUTDOWN_TIMEOUT", 15*time.Second),
		AllowedOrigins:    getEnvAsSlice("CORS_ALLOWED_ORIGINS", []string{"*"}),
	}

	var err error
	if cfg.DeliveryFee, err = getEnvAsDecimal("DELIVERY_FEE", decimal.NewFromInt(32)); err != nil {
		return nil, err
	}
	if cfg.FreeDeliveryThreshold, err = getEnvAsDecimal("FREE_DELIVERY_THRESHOLD", decimal.NewFromInt(200)); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if c.HTTP_PORT == "" {
		return fmt.Errorf("HTTP_PORT is required")
	}
	if c.DB_STRING == "" {
		return fmt.Errorf("DB_STRING is required")
	}
	if c.DeliveryFee.IsNegative() || c.FreeDeliveryThreshold.IsNegative() {
		return fmt.Errorf("delivery fee and threshold must not be negative")
	}
	if len(c.KAFKA_BROKERS) > 0 && c.KAFKA_TOPIC == "" {
		return fmt.Errorf("KAFKA_TOPIC is required when KAFKA_BROKERS is set")
	}
	if c.OutboxInterval <= 0 {
		return fmt.Errorf("OUTBOX_INTERVAL must be positive")
	}
	if !logger.ValidLevel(c.LOG_LEVEL) {
		return fmt.Errorf("invalid log level: %s", c.LOG_LEVEL)
	}
	return nil
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvAsSlice(key string, def []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func getEnvAsDuration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(v); err == nil {
		return time.Duration(secs) * time.Second
	}
	return def
}

func getEnvAsDecimal(key string, def decimal.Decimal) (decimal.Decimal, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	d, err := decimal.NewFromString(v)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}
