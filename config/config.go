package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	// Server configuration
	Port        string
	Environment string

	// Storage configuration: "sqlite" keeps tickets in the pocketbase
	// database, "redis" keeps them in REDIS_URL.
	TicketStore string
	RedisURL    string

	// Paystack configuration
	PaystackSecretKey string
	PaystackBaseURL   string
	PaystackTimeout   time.Duration

	// Email configuration
	SenderEmail    string
	SenderName     string
	SenderPassword string
	SMTPHost       string
	SMTPPort       int
	SMTPTLS        bool
	NotifyTimeout  time.Duration

	// Issuance configuration
	MaxTicketsPerPurchase int
	MaxIDAttempts         int

	// EnableDebugIssuance exposes the unpaid issuance endpoints. It only
	// takes effect in development.
	EnableDebugIssuance bool

	// PubNub configuration
	PubNubPublishKey   string
	PubNubSubscribeKey string
	PubNubSecretKey    string
	GateChannel        string

	// Monitoring
	EnableMetrics bool
	MetricsPort   string
}

func LoadConfig() *Config {
	return &Config{
		// Server
		Port:        getEnv("PORT", "8090"),
		Environment: getEnv("ENVIRONMENT", "production"),

		// Storage
		TicketStore: strings.ToLower(getEnv("TICKET_STORE", "sqlite")),
		RedisURL:    getEnv("REDIS_URL", "localhost:6379"),

		// Paystack
		PaystackSecretKey: getEnv("PAYSTACK_SECRET_KEY", ""),
		PaystackBaseURL:   getEnv("PAYSTACK_BASE_URL", "https://api.paystack.co"),
		PaystackTimeout:   getEnvAsDuration("PAYSTACK_TIMEOUT", "10s"),

		// Email
		SenderEmail:    getEnv("SENDER_EMAIL", ""),
		SenderName:     getEnv("SENDER_NAME", "Event Team"),
		SenderPassword: getEnv("SENDER_PASSWORD", ""),
		SMTPHost:       getEnv("SMTP_HOST", "smtp.gmail.com"),
		SMTPPort:       getEnvAsInt("SMTP_PORT", 587),
		SMTPTLS:        getEnvAsBool("SMTP_TLS", false),
		NotifyTimeout:  getEnvAsDuration("NOTIFY_TIMEOUT", "15s"),

		// Issuance
		MaxTicketsPerPurchase: getEnvAsInt("MAX_TICKETS_PER_PURCHASE", 100),
		MaxIDAttempts:         getEnvAsInt("MAX_ID_ATTEMPTS", 8),
		EnableDebugIssuance:   getEnvAsBool("ENABLE_DEBUG_ISSUANCE", false),

		// PubNub
		PubNubPublishKey:   getEnv("PUBNUB_PUBLISH_KEY", ""),
		PubNubSubscribeKey: getEnv("PUBNUB_SUBSCRIBE_KEY", ""),
		PubNubSecretKey:    getEnv("PUBNUB_SECRET_KEY", ""),
		GateChannel:        getEnv("GATE_CHANNEL", "gate-activity"),

		// Monitoring
		EnableMetrics: getEnvAsBool("ENABLE_METRICS", true),
		MetricsPort:   getEnv("METRICS_PORT", "9090"),
	}
}

// Validate reports settings that would make the server misbehave. A missing
// Paystack key is allowed: verification then fails as unavailable, which
// matches how the gateway being down is reported.
func (c *Config) Validate() error {
	switch c.TicketStore {
	case "sqlite", "redis":
	default:
		return fmt.Errorf("config: unknown TICKET_STORE %q", c.TicketStore)
	}
	if c.MaxTicketsPerPurchase < 1 {
		return fmt.Errorf("config: MAX_TICKETS_PER_PURCHASE must be positive")
	}
	if c.MaxIDAttempts < 1 {
		return fmt.Errorf("config: MAX_ID_ATTEMPTS must be positive")
	}
	return nil
}

func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// DebugIssuanceEnabled reports whether tickets may be issued without a
// payment.
func (c *Config) DebugIssuanceEnabled() bool {
	return c.EnableDebugIssuance && c.IsDevelopment()
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue string) time.Duration {
	valueStr := getEnv(key, defaultValue)
	if duration, err := time.ParseDuration(valueStr); err == nil {
		return duration
	}
	// If parsing fails, try to parse default value
	duration, _ := time.ParseDuration(defaultValue)
	return duration
}
