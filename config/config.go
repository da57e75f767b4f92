package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

// Config holds all configuration for the application. It is built once at
// startup and passed to constructors; nothing reads the environment while a
// request is being handled.
type Config struct {
	Port      string
	Env       string
	JWTSecret string
	DB        DBConfig
	Gateway   GatewayConfig
	Notify    NotifyConfig
}

// DBConfig holds the Postgres connection settings
type DBConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	Name     string
	SSLMode  string
}

// DSN renders the connection string understood by the postgres driver
func (c DBConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode)
}

// GatewayConfig holds the PayPal REST credentials and checkout settings
type GatewayConfig struct {
	ClientID     string
	ClientSecret string
	BaseURL      string
	WebhookID    string
	Currency     string
	ReturnURL    string
	CancelURL    string
	// ExchangeRate converts a wallet amount into the gateway currency:
	// gateway amount = wallet amount / ExchangeRate.
	ExchangeRate decimal.Decimal
	Timeout      time.Duration
}

// Configured reports whether client credentials are present
func (c GatewayConfig) Configured() bool {
	return c.ClientID != "" && c.ClientSecret != ""
}

// NotifyConfig holds the outbound notification channels
type NotifyConfig struct {
	WebhookURL   string
	SMTPHost     string
	SMTPPort     int
	SMTPUsername string
	SMTPPassword string
	EmailFrom    string
	Timeout      time.Duration
}

// LoadConfig loads configuration from a .env file (if present) and the
// environment
func LoadConfig() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("error loading .env file: %w", err)
	}

	rate, err := decimal.NewFromString(getEnv("DEPOSIT_EXCHANGE_RATE", "1"))
	if err != nil || !rate.IsPositive() {
		return nil, fmt.Errorf("invalid DEPOSIT_EXCHANGE_RATE %q", os.Getenv("DEPOSIT_EXCHANGE_RATE"))
	}
	gatewayTimeout, err := time.ParseDuration(getEnv("GATEWAY_TIMEOUT", "15s"))
	if err != nil {
		return nil, fmt.Errorf("invalid GATEWAY_TIMEOUT: %w", err)
	}
	notifyTimeout, err := time.ParseDuration(getEnv("NOTIFY_TIMEOUT", "5s"))
	if err != nil {
		return nil, fmt.Errorf("invalid NOTIFY_TIMEOUT: %w", err)
	}
	smtpPort, err := strconv.Atoi(getEnv("SMTP_PORT", "587"))
	if err != nil {
		return nil, fmt.Errorf("invalid SMTP_PORT: %w", err)
	}

	config := &Config{
		Port:      getEnv("PORT", "8080"),
		Env:       getEnv("ENV", "development"),
		JWTSecret: os.Getenv("JWT_SECRET"),
		DB: DBConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     os.Getenv("DB_USER"),
			Password: os.Getenv("DB_PASSWORD"),
			Name:     os.Getenv("DB_NAME"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		Gateway: GatewayConfig{
			ClientID:     os.Getenv("PAYPAL_CLIENT_ID"),
			ClientSecret: os.Getenv("PAYPAL_CLIENT_SECRET"),
			BaseURL:      getEnv("PAYPAL_BASE_URL", "https://api-m.sandbox.paypal.com"),
			WebhookID:    os.Getenv("PAYPAL_WEBHOOK_ID"),
			Currency:     getEnv("PAYPAL_CURRENCY", "USD"),
			ReturnURL:    os.Getenv("PAYPAL_RETURN_URL"),
			CancelURL:    os.Getenv("PAYPAL_CANCEL_URL"),
			ExchangeRate: rate,
			Timeout:      gatewayTimeout,
		},
		Notify: NotifyConfig{
			WebhookURL:   os.Getenv("NOTIFY_WEBHOOK_URL"),
			SMTPHost:     os.Getenv("SMTP_HOST"),
			SMTPPort:     smtpPort,
			SMTPUsername: os.Getenv("SMTP_USERNAME"),
			SMTPPassword: os.Getenv("SMTP_PASSWORD"),
			EmailFrom:    getEnv("NOTIFY_EMAIL_FROM", os.Getenv("SMTP_FROM")),
			Timeout:      notifyTimeout,
		},
	}

	return config, nil
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}
