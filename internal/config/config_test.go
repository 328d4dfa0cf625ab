package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_Defaults(t *testing.T) {
	t.Setenv("DB_STRING", "postgres://localhost/dealer")
	t.Setenv("KAFKA_BROKERS", "")
	t.Setenv("PUBLIC_COUPON_CODES", "")
	t.Setenv("DELIVERY_FEE", "")
	t.Setenv("FREE_DELIVERY_THRESHOLD", "")
	t.Setenv("LOG_LEVEL", "")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "32", cfg.DeliveryFee.String())
	assert.Equal(t, "200", cfg.FreeDeliveryThreshold.String())
	assert.Equal(t, []string{"SAVE30", "SAVE50", "SAVE100"}, cfg.PublicCouponCodes)
	assert.Equal(t, 24*time.Hour, cfg.IdempotencyTTL)
	assert.Equal(t, "info", cfg.LOG_LEVEL)
	assert.Empty(t, cfg.KAFKA_BROKERS)
}

func TestLoadConfig_Overrides(t *testing.T) {
	t.Setenv("DB_STRING", "postgres://localhost/dealer")
	t.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092")
	t.Setenv("DELIVERY_FEE", "45.50")
	t.Setenv("OUTBOX_INTERVAL", "5")
	t.Setenv("IDEMPOTENCY_TTL", "90m")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.KAFKA_BROKERS)
	assert.Equal(t, "45.5", cfg.DeliveryFee.String())
	assert.Equal(t, 5*time.Second, cfg.OutboxInterval)
	assert.Equal(t, 90*time.Minute, cfg.IdempotencyTTL)
}

func TestLoadConfig_Invalid(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"missing db", map[string]string{"DB_STRING": ""}},
		{"bad fee", map[string]string{"DELIVERY_FEE": "thirty"}},
		{"negative threshold", map[string]string{"FREE_DELIVERY_THRESHOLD": "-1"}},
		{"bad log level", map[string]string{"LOG_LEVEL": "loud"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("DB_STRING", "postgres://localhost/dealer")
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := LoadConfig()
			assert.Error(t, err)
		})
	}
}

func TestLoadConfig_LogLevels(t *testing.T) {
	for _, level := range []string{"dev", "development", "debug", "INFO", "warn", "error", "dpanic", " fatal "} {
		t.Run(level, func(t *testing.T) {
			t.Setenv("DB_STRING", "postgres://localhost/dealer")
			t.Setenv("LOG_LEVEL", level)
			cfg, err := LoadConfig()
			require.NoError(t, err)
			assert.Equal(t, level, cfg.LOG_LEVEL)
		})
	}
}
