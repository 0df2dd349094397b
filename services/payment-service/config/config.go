package config

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/joho/godotenv"

	awspkg "github.com/cate-nduta/Lash-Business-sub002/pkg/aws"
)

// Gateway names.
const (
	GatewayPaystack = "paystack"
	GatewayStripe   = "stripe"
)

// Store drivers.
const (
	StoreMemory   = "memory"
	StorePostgres = "postgres"
	StoreDynamoDB = "dynamodb"
	StoreMongo    = "mongo"
)

// Event drivers.
const (
	EventsSNS   = "sns"
	EventsKafka = "kafka"
	EventsNone  = "none"
)

type Config struct {
	Port string
	Env  string

	Gateway           string
	PaystackSecretKey string
	PaystackBaseURL   string
	StripeSecretKey   string
	StripeWebhookKey  string

	StoreDriver       string
	PostgresUser      string
	PostgresPassword  string
	PostgresDB        string
	PostgresHost      string
	PostgresPort      string
	PostgresSSLMode   string
	PostgresTimeZone  string
	DDBDocumentsTable string
	MongoURL          string
	MongoDBName       string

	RedisURL string
	LockTTL  time.Duration
	LockWait time.Duration

	EventsDriver       string
	PaymentSNSTopicARN string
	KafkaBrokers       []string
	KafkaTopic         string

	SideEffectQueueURL   string
	ReprocessQueueURL    string
	WebhookArchiveBucket string

	SMTPHost     string
	SMTPPort     int
	SMTPUsername string
	SMTPPassword string
	SMTPFrom     string
	AdminEmail   string

	CalendarAPIURL   string
	CalendarAPIToken string
	SlotsPerDay      int
	FailureRetention int
	BusinessTimezone string

	JWTSecret      string
	AllowedOrigins []string
	CallbackRPM    int
}

// LoadConfig reads configuration from environment variables with optional
// Secrets Manager override.
func LoadConfig() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Port: getEnv("PORT", "8087"),
		Env:  getEnv("ENV", "development"),

		Gateway:           strings.ToLower(getEnv("PAYMENT_GATEWAY", GatewayPaystack)),
		PaystackSecretKey: os.Getenv("PAYSTACK_SECRET_KEY"),
		PaystackBaseURL:   getEnv("PAYSTACK_BASE_URL", "https://api.paystack.co"),
		StripeSecretKey:   os.Getenv("STRIPE_API_KEY"),
		StripeWebhookKey:  os.Getenv("STRIPE_WEBHOOK_SECRET"),

		StoreDriver:       strings.ToLower(getEnv("STORE_DRIVER", StoreMemory)),
		PostgresUser:      os.Getenv("POSTGRES_USER"),
		PostgresPassword:  os.Getenv("POSTGRES_PASSWORD"),
		PostgresDB:        os.Getenv("POSTGRES_DB"),
		PostgresHost:      getEnv("POSTGRES_HOST", "localhost"),
		PostgresPort:      getEnv("POSTGRES_PORT", "5432"),
		PostgresSSLMode:   getEnv("POSTGRES_SSLMODE", "disable"),
		PostgresTimeZone:  getEnv("POSTGRES_TIMEZONE", "Africa/Nairobi"),
		DDBDocumentsTable: getEnv("DDB_TABLE_DOCUMENTS", "PipelineDocuments"),
		MongoURL:          os.Getenv("MONGO_DB_URL"),
		MongoDBName:       getEnv("MONGO_DB_NAME", "lash_business"),

		RedisURL: os.Getenv("REDIS_URL"),
		LockTTL:  getDuration("LOCK_TTL", 30*time.Second),
		LockWait: getDuration("LOCK_WAIT", 5*time.Second),

		EventsDriver:       strings.ToLower(getEnv("EVENTS_DRIVER", EventsNone)),
		PaymentSNSTopicARN: os.Getenv("PAYMENT_SNS_TOPIC_ARN"),
		KafkaBrokers:       splitList(os.Getenv("KAFKA_BROKERS")),
		KafkaTopic:         getEnv("KAFKA_TOPIC", "record-events"),

		SideEffectQueueURL:   os.Getenv("SIDE_EFFECT_QUEUE_URL"),
		ReprocessQueueURL:    os.Getenv("REPROCESS_QUEUE_URL"),
		WebhookArchiveBucket: os.Getenv("WEBHOOK_ARCHIVE_BUCKET"),

		SMTPHost:     os.Getenv("SMTP_HOST"),
		SMTPPort:     getInt("SMTP_PORT", 587),
		SMTPUsername: os.Getenv("SMTP_USERNAME"),
		SMTPPassword: os.Getenv("SMTP_PASSWORD"),
		SMTPFrom:     os.Getenv("SMTP_FROM"),
		AdminEmail:   os.Getenv("ADMIN_EMAIL"),

		CalendarAPIURL:   os.Getenv("CALENDAR_API_URL"),
		CalendarAPIToken: os.Getenv("CALENDAR_API_TOKEN"),
		SlotsPerDay:      getInt("SLOTS_PER_DAY", 6),
		FailureRetention: getInt("FAILURE_LEDGER_RETENTION", 500),
		BusinessTimezone: getEnv("BUSINESS_TIMEZONE", "Africa/Nairobi"),

		JWTSecret:      os.Getenv("JWT_SECRET"),
		AllowedOrigins: splitList(getEnv("ALLOWED_ORIGINS", "http://localhost:3000")),
		CallbackRPM:    getInt("CALLBACK_RATE_PER_MINUTE", 120),
	}

	// Override secrets from Secrets Manager when running on AWS
	if os.Getenv("AWS_USE_SECRETS") == "true" {
		if awsCfg, err := awspkg.LoadAWSConfig(context.Background()); err == nil {
			cfg.applySecrets(context.Background(), awspkg.NewSecretsClient(awsCfg))
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// SecretSource is satisfied by the Secrets Manager client.
type SecretSource interface {
	GetSecretMap(ctx context.Context, name string) (map[string]string, error)
}

func (c *Config) applySecrets(ctx context.Context, sm SecretSource) {
	if m, err := sm.GetSecretMap(ctx, "payment/GATEWAY_CREDENTIALS"); err == nil {
		override(&c.PaystackSecretKey, m["PAYSTACK_SECRET_KEY"])
		override(&c.StripeSecretKey, m["STRIPE_API_KEY"])
		override(&c.StripeWebhookKey, m["STRIPE_WEBHOOK_SECRET"])
	}
	if m, err := sm.GetSecretMap(ctx, "payment/DB_CREDENTIALS"); err == nil {
		override(&c.PostgresUser, m["POSTGRES_USER"])
		override(&c.PostgresPassword, m["POSTGRES_PASSWORD"])
		override(&c.PostgresDB, m["POSTGRES_DB"])
		override(&c.PostgresHost, m["POSTGRES_HOST"])
		override(&c.PostgresPort, m["POSTGRES_PORT"])
		override(&c.MongoURL, m["MONGO_DB_URL"])
	}
	if m, err := sm.GetSecretMap(ctx, "payment/APP_SECRETS"); err == nil {
		override(&c.JWTSecret, m["JWT_SECRET"])
		override(&c.SMTPPassword, m["SMTP_PASSWORD"])
		override(&c.CalendarAPIToken, m["CALENDAR_API_TOKEN"])
	}
}

// Validate reports the first setting the service cannot start without.
func (c *Config) Validate() error {
	switch c.Gateway {
	case GatewayPaystack:
		if c.PaystackSecretKey == "" {
			return fmt.Errorf("PAYSTACK_SECRET_KEY is required")
		}
	case GatewayStripe:
		if c.StripeSecretKey == "" || c.StripeWebhookKey == "" {
			return fmt.Errorf("STRIPE_API_KEY and STRIPE_WEBHOOK_SECRET are required")
		}
	default:
		return fmt.Errorf("unknown PAYMENT_GATEWAY %q", c.Gateway)
	}

	switch c.StoreDriver {
	case StoreMemory, StoreDynamoDB:
	case StorePostgres:
		if c.PostgresUser == "" || c.PostgresPassword == "" || c.PostgresDB == "" {
			return fmt.Errorf("database config incomplete")
		}
	case StoreMongo:
		if c.MongoURL == "" {
			return fmt.Errorf("MONGO_DB_URL is required for the mongo store")
		}
	default:
		return fmt.Errorf("unknown STORE_DRIVER %q", c.StoreDriver)
	}

	switch c.EventsDriver {
	case EventsNone:
	case EventsSNS:
		if c.PaymentSNSTopicARN == "" {
			return fmt.Errorf("PAYMENT_SNS_TOPIC_ARN is required for sns events")
		}
	case EventsKafka:
		if len(c.KafkaBrokers) == 0 {
			return fmt.Errorf("KAFKA_BROKERS is required for kafka events")
		}
	default:
		return fmt.Errorf("unknown EVENTS_DRIVER %q", c.EventsDriver)
	}

	if _, err := time.LoadLocation(c.BusinessTimezone); err != nil {
		return fmt.Errorf("invalid BUSINESS_TIMEZONE: %w", err)
	}
	return nil
}

// PostgresDSN builds the GORM connection string.
func (c *Config) PostgresDSN() string {
	return fmt.Sprintf(
		"host=%s user=%s password=%s dbname=%s port=%s sslmode=%s TimeZone=%s",
		c.PostgresHost, c.PostgresUser, c.PostgresPassword, c.PostgresDB, c.PostgresPort, c.PostgresSSLMode, c.PostgresTimeZone,
	)
}

// Location is the business time zone. Validate has already checked it.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.BusinessTimezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

func override(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getInt(key string, fallback int) int {
	if n, err := strconv.Atoi(os.Getenv(key)); err == nil {
		return n
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) time.Duration {
	if d, err := time.ParseDuration(os.Getenv(key)); err == nil && d > 0 {
		return d
	}
	return fallback
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
