package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Env  string
	Port string

	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	PostgresHost     string
	PostgresPort     string
	PostgresSSLMode  string

	MongoURI string
	MongoDB  string

	RedisURL string
	CartTTL  time.Duration

	KafkaBrokers     []string
	OrderEventsTopic string
	PaymentTopic     string
	PaymentGroupID   string

	StripeSecretKey  string
	StripeWebhookKey string

	JWTSecret string

	RateLimitPerMinute int
	RateLimitBurst     int

	PendingOrderMaxAge time.Duration
	ReconcileInterval  time.Duration
}

func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: No .env file found, using system environment variables")
	}

	cfg := &Config{
		Env:  getEnv("APP_ENV", "development"),
		Port: getEnv("PORT", "8080"),

		PostgresUser:     os.Getenv("POSTGRES_USER"),
		PostgresPassword: os.Getenv("POSTGRES_PASSWORD"),
		PostgresDB:       os.Getenv("POSTGRES_DB"),
		PostgresHost:     getEnv("POSTGRES_HOST", "localhost"),
		PostgresPort:     getEnv("POSTGRES_PORT", "5432"),
		PostgresSSLMode:  getEnv("POSTGRES_SSLMODE", "disable"),

		MongoURI: getEnv("MONGO_URI", "mongodb://localhost:27017"),
		MongoDB:  getEnv("MONGO_DB", "storefront"),

		RedisURL: getEnv("REDIS_URL", "redis://localhost:6379"),
		CartTTL:  time.Hour * 24 * 7, // default 7 days

		KafkaBrokers:     strings.Split(getEnv("KAFKA_BROKERS", "localhost:9092"), ","),
		OrderEventsTopic: getEnv("ORDER_EVENTS_TOPIC", "order.events"),
		PaymentTopic:     getEnv("PAYMENT_EVENTS_TOPIC", "payment.events"),
		PaymentGroupID:   getEnv("PAYMENT_GROUP_ID", "order-core-payments"),

		StripeSecretKey:  os.Getenv("STRIPE_SECRET_KEY"),
		StripeWebhookKey: os.Getenv("STRIPE_WEBHOOK_KEY"),

		JWTSecret: getEnv("JWT_SECRET", "your-secret-key"),

		RateLimitPerMinute: getInt("RATE_LIMIT_PER_MINUTE", 100),
		RateLimitBurst:     getInt("RATE_LIMIT_BURST", 50),

		PendingOrderMaxAge: getDuration("PENDING_ORDER_MAX_AGE", 15*time.Minute),
		ReconcileInterval:  getDuration("RECONCILE_INTERVAL", time.Minute),
	}

	if cfg.PostgresUser == "" || cfg.PostgresPassword == "" || cfg.PostgresDB == "" {
		return nil, fmt.Errorf("database config incomplete")
	}
	return cfg, nil
}

// PostgresDSN builds the gorm connection string.
func (c *Config) PostgresDSN() string {
	return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=%s",
		c.PostgresHost, c.PostgresUser, c.PostgresPassword, c.PostgresDB, c.PostgresPort, c.PostgresSSLMode)
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getInt(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			return n
		}
		log.Printf("Warning: invalid integer for %s, using default %d", key, fallback)
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
		log.Printf("Warning: invalid duration for %s, using default %s", key, fallback)
	}
	return fallback
}
