package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
)

const (
	EventsBackendNone  = "none"
	EventsBackendRedis = "redis"
	EventsBackendKafka = "kafka"
)

type Config struct {
	Development bool
	// API configuration
	APIPort   int
	JWTSecret string
	// Postgres configuration
	PostgresUser     string
	PostgresPassword string
	PostgresHost     string
	PostgresPort     int
	PostgresDB       string
	PostgresSSLMode  string

	// SMTP configuration
	SMTPHost     string
	SMTPPort     int
	SMTPUser     string
	SMTPPassword string
	SMTPSender   string

	// Notification configuration
	TelegramBotToken string
	// TelegramLinkTTL is how long a "/start <token>" link stays valid.
	TelegramLinkTTL time.Duration

	// Domain events configuration
	EventsBackend string
	RedisURL      string
	KafkaBrokers  []string
	KafkaTopic    string

	// Referral accrual scheduling
	AccrualInterval time.Duration
	AccrualLockTTL  time.Duration
	// InstanceID identifies this process when holding app locks.
	InstanceID string

	// Conversion rate feed. Empty URL means the USDT_CONVERSION_RATE setting is used.
	USDTRateURL     string
	USDTRateRefresh time.Duration

	// SettingsFile is an optional YAML file with setting defaults seeded on startup.
	SettingsFile string

	// Ad-network webhook keys, keyed by network name.
	WebhookKeys map[string]string
}

// LoadConfig loads the configuration from environment variables. The caller
// validates once its own overrides are applied.
func LoadConfig() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	cfg := &Config{
		Development:      getEnvAsBool("DEVELOPMENT", false),
		APIPort:          getEnvAsInt("API_PORT", 8080),
		JWTSecret:        getEnv("JWT_SECRET", ""),
		PostgresUser:     getEnv("POSTGRES_USER", "postgres"),
		PostgresPassword: getEnv("POSTGRES_PASSWORD", "password"),
		PostgresHost:     getEnv("POSTGRES_HOST", "localhost"),
		PostgresPort:     getEnvAsInt("POSTGRES_PORT", 5432),
		PostgresDB:       getEnv("POSTGRES_DB", "promohive"),
		PostgresSSLMode:  getEnv("POSTGRES_SSLMODE", "disable"),
		SMTPHost:         getEnv("SMTP_HOST", ""),
		SMTPPort:         getEnvAsInt("SMTP_PORT", 587),
		SMTPUser:         getEnv("SMTP_USER", ""),
		SMTPPassword:     getEnv("SMTP_PASSWORD", ""),
		SMTPSender:       getEnv("SMTP_SENDER", ""),
		TelegramBotToken: getEnv("TELEGRAM_BOT_TOKEN", ""),
		TelegramLinkTTL:  getEnvAsDuration("TELEGRAM_LINK_TTL", 15*time.Minute),
		EventsBackend:    strings.ToLower(getEnv("EVENTS_BACKEND", EventsBackendNone)),
		RedisURL:         getEnv("REDIS_URL", "redis://localhost:6379/0"),
		KafkaBrokers:     getEnvAsList("KAFKA_BROKERS", []string{"localhost:9092"}),
		KafkaTopic:       getEnv("KAFKA_TOPIC", "promohive.ledger"),
		AccrualInterval:  getEnvAsDuration("ACCRUAL_INTERVAL", 24*time.Hour),
		AccrualLockTTL:   getEnvAsDuration("ACCRUAL_LOCK_TTL", 30*time.Minute),
		InstanceID:       getEnv("INSTANCE_ID", ""),
		USDTRateURL:      getEnv("USDT_RATE_URL", ""),
		USDTRateRefresh:  getEnvAsDuration("USDT_RATE_REFRESH", 10*time.Minute),
		SettingsFile:     getEnv("SETTINGS_FILE", ""),
		WebhookKeys: map[string]string{
			"adgem":    getEnv("ADGEM_KEY", ""),
			"adsterra": getEnv("ADSTERRA_KEY", ""),
			"cpalead":  getEnv("CPALEAD_KEY", ""),
		},
	}

	if cfg.InstanceID == "" {
		hostname, _ := os.Hostname()
		cfg.InstanceID = fmt.Sprintf("%s-%s", hostname, uuid.NewString()[:8])
	}

	return cfg, nil
}

// Validate checks that all required configuration fields are properly set
func (c *Config) Validate() error {
	if c.PostgresDB == "" {
		return fmt.Errorf("POSTGRES_DB is required")
	}

	if c.PostgresHost == "" {
		return fmt.Errorf("POSTGRES_HOST is required")
	}

	if c.JWTSecret == "" && !c.Development {
		return fmt.Errorf("JWT_SECRET is required outside development mode")
	}

	switch c.EventsBackend {
	case EventsBackendNone, EventsBackendRedis, EventsBackendKafka:
	default:
		return fmt.Errorf("EVENTS_BACKEND must be one of none, redis, kafka; got %q", c.EventsBackend)
	}

	if c.AccrualInterval <= 0 {
		return fmt.Errorf("ACCRUAL_INTERVAL must be positive")
	}

	if c.AccrualLockTTL <= 0 {
		return fmt.Errorf("ACCRUAL_LOCK_TTL must be positive")
	}

	if c.USDTRateRefresh <= 0 {
		return fmt.Errorf("USDT_RATE_REFRESH must be positive")
	}

	if c.TelegramLinkTTL <= 0 {
		return fmt.Errorf("TELEGRAM_LINK_TTL must be positive")
	}

	return nil
}

// PostgresDSN builds the connection string for gorm's postgres driver.
func (c *Config) PostgresDSN() string {
	return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%d sslmode=%s",
		c.PostgresHost, c.PostgresUser, c.PostgresPassword, c.PostgresDB, c.PostgresPort, c.PostgresSSLMode)
}

// Helper functions to read environment variables
func getEnv(key string, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvAsInt(name string, defaultValue int) int {
	if valueStr, exists := os.LookupEnv(name); exists {
		if value, err := strconv.Atoi(valueStr); err == nil {
			return value
		}
	}
	return defaultValue
}

func getEnvAsBool(name string, defaultValue bool) bool {
	if valueStr, exists := os.LookupEnv(name); exists {
		if value, err := strconv.ParseBool(valueStr); err == nil {
			return value
		}
	}
	return defaultValue
}

func getEnvAsDuration(name string, defaultValue time.Duration) time.Duration {
	if valueStr, exists := os.LookupEnv(name); exists {
		if value, err := time.ParseDuration(valueStr); err == nil {
			return value
		}
	}
	return defaultValue
}

func getEnvAsList(name string, defaultValue []string) []string {
	valueStr, exists := os.LookupEnv(name)
	if !exists || strings.TrimSpace(valueStr) == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(valueStr, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
