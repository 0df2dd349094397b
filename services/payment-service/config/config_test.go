package config

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_Defaults(t *testing.T) {
	t.Setenv("PAYMENT_GATEWAY", "")
	t.Setenv("PAYSTACK_SECRET_KEY", "sk_test_123")
	t.Setenv("STORE_DRIVER", "")
	t.Setenv("EVENTS_DRIVER", "")
	t.Setenv("KAFKA_BROKERS", "")
	t.Setenv("LOCK_TTL", "")
	t.Setenv("BUSINESS_TIMEZONE", "")
	t.Setenv("AWS_USE_SECRETS", "")

	cfg, err := LoadConfig()

	require.NoError(t, err)
	assert.Equal(t, GatewayPaystack, cfg.Gateway)
	assert.Equal(t, StoreMemory, cfg.StoreDriver)
	assert.Equal(t, EventsNone, cfg.EventsDriver)
	assert.Equal(t, 30*time.Second, cfg.LockTTL)
	assert.Equal(t, "Africa/Nairobi", cfg.Location().String())
}

func TestLoadConfig_MissingGatewaySecret(t *testing.T) {
	t.Setenv("PAYMENT_GATEWAY", "paystack")
	t.Setenv("PAYSTACK_SECRET_KEY", "")
	t.Setenv("AWS_USE_SECRETS", "")

	_, err := LoadConfig()

	assert.EqualError(t, err, "PAYSTACK_SECRET_KEY is required")
}

func TestConfig_Validate(t *testing.T) {
	base := func() Config {
		return Config{
			Gateway:           GatewayPaystack,
			PaystackSecretKey: "sk",
			StoreDriver:       StoreMemory,
			EventsDriver:      EventsNone,
			BusinessTimezone:  "UTC",
		}
	}

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{"valid", func(c *Config) {}, ""},
		{"stripe without webhook secret", func(c *Config) { c.Gateway = GatewayStripe; c.StripeSecretKey = "sk" }, "STRIPE_API_KEY and STRIPE_WEBHOOK_SECRET are required"},
		{"unknown gateway", func(c *Config) { c.Gateway = "mpesa" }, `unknown PAYMENT_GATEWAY "mpesa"`},
		{"postgres incomplete", func(c *Config) { c.StoreDriver = StorePostgres }, "database config incomplete"},
		{"mongo without url", func(c *Config) { c.StoreDriver = StoreMongo }, "MONGO_DB_URL is required for the mongo store"},
		{"kafka without brokers", func(c *Config) { c.EventsDriver = EventsKafka }, "KAFKA_BROKERS is required for kafka events"},
		{"sns without topic", func(c *Config) { c.EventsDriver = EventsSNS }, "PAYMENT_SNS_TOPIC_ARN is required for sns events"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := base()
			tt.mutate(&c)
			err := c.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.EqualError(t, err, tt.wantErr)
		})
	}
}

type stubSecrets map[string]map[string]string

func (s stubSecrets) GetSecretMap(_ context.Context, name string) (map[string]string, error) {
	if m, ok := s[name]; ok {
		return m, nil
	}
	return nil, errors.New("secret not found")
}

func TestConfig_ApplySecrets(t *testing.T) {
	c := &Config{PaystackSecretKey: "from-env", PostgresUser: "env-user", JWTSecret: "env-jwt"}

	c.applySecrets(context.Background(), stubSecrets{
		"payment/GATEWAY_CREDENTIALS": {"PAYSTACK_SECRET_KEY": "from-secrets"},
		"payment/DB_CREDENTIALS":      {"POSTGRES_USER": ""},
	})

	assert.Equal(t, "from-secrets", c.PaystackSecretKey)
	assert.Equal(t, "env-user", c.PostgresUser)
	assert.Equal(t, "env-jwt", c.JWTSecret)
}
