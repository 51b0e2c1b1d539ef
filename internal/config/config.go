package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Notification channels understood by the gateway factory.
const (
	ChannelSMS      = "sms"
	ChannelTelegram = "telegram"
	ChannelEmail    = "email"
	ChannelLog      = "log"
)

type Config struct {
	Development bool
	// InstanceID identifies this process when holding job locks.
	InstanceID string

	// API configuration
	APIPort  int
	APIToken string

	// Postgres configuration
	PostgresUser     string
	PostgresPassword string
	PostgresHost     string
	PostgresPort     int
	PostgresDB       string

	// Notification configuration
	NotifyChannel        string
	OpenPhoneAPIKey      string
	OpenPhonePhoneNumber string
	OpenPhoneBaseURL     string
	TelegramBotToken     string

	// SMTP configuration
	SMTPHost     string
	SMTPPort     int
	SMTPUser     string
	SMTPPassword string
	SMTPSender   string

	// Ingestion configuration
	MailboxDir     string
	IngestWorkers  int
	IngestSchedule string

	// Billing configuration
	BillingTimezone   string
	BillingSchedule   string
	LateAfterDays     int
	ReminderSignature string
}

// LoadConfig loads the configuration from environment variables
func LoadConfig() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	hostname, _ := os.Hostname()

	cfg := &Config{
		Development: getEnvAsBool("DEVELOPMENT", false),
		InstanceID:  getEnv("INSTANCE_ID", hostname),

		APIPort:  getEnvAsInt("API_PORT", 6532),
		APIToken: getEnv("API_TOKEN", ""),

		PostgresUser:     getEnv("POSTGRES_USER", "postgres"),
		PostgresPassword: getEnv("POSTGRES_PASSWORD", "password"),
		PostgresHost:     getEnv("POSTGRES_HOST", "localhost"),
		PostgresPort:     getEnvAsInt("POSTGRES_PORT", 5432),
		PostgresDB:       getEnv("POSTGRES_DB", "ledgerd"),

		NotifyChannel:        getEnv("NOTIFY_CHANNEL", ChannelSMS),
		OpenPhoneAPIKey:      getEnv("OPENPHONE_API_KEY", ""),
		OpenPhonePhoneNumber: getEnv("OPENPHONE_PHONE_NUMBER", ""),
		OpenPhoneBaseURL:     getEnv("OPENPHONE_BASE_URL", "https://api.openphone.com/v1"),
		TelegramBotToken:     getEnv("TELEGRAM_BOT_TOKEN", ""),

		SMTPHost:     getEnv("SMTP_HOST", "smtp.example.com"),
		SMTPPort:     getEnvAsInt("SMTP_PORT", 587),
		SMTPUser:     getEnv("SMTP_USER", ""),
		SMTPPassword: getEnv("SMTP_PASSWORD", ""),
		SMTPSender:   getEnv("SMTP_SENDER", ""),

		MailboxDir:     getEnv("MAILBOX_DIR", "./mailbox"),
		IngestWorkers:  getEnvAsInt("INGEST_WORKERS", 4),
		IngestSchedule: getEnv("INGEST_SCHEDULE", "*/5 * * * *"),

		BillingTimezone:   getEnv("BILLING_TIMEZONE", "UTC"),
		BillingSchedule:   getEnv("BILLING_SCHEDULE", "0 0 * * *"),
		LateAfterDays:     getEnvAsInt("LATE_AFTER_DAYS", 2),
		ReminderSignature: getEnv("REMINDER_SIGNATURE", "Fleet Billing"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
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

	switch c.NotifyChannel {
	case ChannelSMS, ChannelLog:
	case ChannelTelegram:
		if c.TelegramBotToken == "" {
			return fmt.Errorf("TELEGRAM_BOT_TOKEN is required for the telegram channel")
		}
	case ChannelEmail:
		if c.SMTPSender == "" {
			return fmt.Errorf("SMTP_SENDER is required for the email channel")
		}
	default:
		return fmt.Errorf("unknown NOTIFY_CHANNEL %q", c.NotifyChannel)
	}

	if c.IngestWorkers < 1 {
		return fmt.Errorf("INGEST_WORKERS must be at least 1, got %d", c.IngestWorkers)
	}

	if c.LateAfterDays < 1 {
		return fmt.Errorf("LATE_AFTER_DAYS must be at least 1, got %d", c.LateAfterDays)
	}

	if _, err := c.Location(); err != nil {
		return err
	}

	return nil
}

// Location resolves BILLING_TIMEZONE; calendar-day comparisons use it.
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.BillingTimezone)
	if err != nil {
		return nil, fmt.Errorf("invalid BILLING_TIMEZONE %q: %w", c.BillingTimezone, err)
	}
	return loc, nil
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
