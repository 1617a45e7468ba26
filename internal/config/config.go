package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds application configuration
type Config struct {
	Port           string
	Env            string
	LogLevel       string
	UseMemoryQueue bool
	WorkerCount    int

	DatabaseURL string

	RedisAddr     string
	RedisPassword string
	RedisTLS      bool

	// WhatsApp transport gateway
	WebhookToken         string
	WhatsAppBaseURL      string
	WhatsAppAPIToken     string
	WhatsAppInstanceID   string
	WhatsAppSendMaxRetry int
	WhatsAppRetryBase    time.Duration
	WhatsAppSendRate     float64

	// Calendar collaborator (appointment mutations)
	CalendarBaseURL  string
	CalendarAPIToken string

	// AI completion (optional; absence degrades to scripted replies)
	GeminiAPIKey  string
	GeminiModelID string

	ClinicName         string
	ClinicTimezone     string
	ConversationTTL    time.Duration
	ConfirmMaxAttempts int

	OperatorPhones []string
	OperatorEmails []string

	SendGridAPIKey    string
	SendGridFromEmail string
	SendGridFromName  string

	AdminJWTSecret string

	AWSRegion            string
	AWSAccessKeyID       string
	AWSSecretAccessKey   string
	AWSEndpointOverride  string
	ConversationQueueURL string
}

// Load reads configuration from environment variables
func Load() *Config {
	return &Config{
		Port:           getEnv("PORT", "8080"),
		Env:            getEnv("ENV", "development"),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		UseMemoryQueue: getEnvAsBool("USE_MEMORY_QUEUE", false),
		WorkerCount:    getEnvAsInt("WORKER_COUNT", 2),

		DatabaseURL: getEnv("DATABASE_URL", ""),

		RedisAddr:     getEnv("REDIS_ADDR", "redis:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisTLS:      getEnvAsBool("REDIS_TLS", false),

		WebhookToken:         getEnv("WEBHOOK_TOKEN", ""),
		WhatsAppBaseURL:      getEnv("WHATSAPP_BASE_URL", ""),
		WhatsAppAPIToken:     getEnv("WHATSAPP_API_TOKEN", ""),
		WhatsAppInstanceID:   getEnv("WHATSAPP_INSTANCE_ID", ""),
		WhatsAppSendMaxRetry: getEnvAsInt("WHATSAPP_SEND_MAX_RETRY", 3),
		WhatsAppRetryBase:    getEnvAsDuration("WHATSAPP_RETRY_BASE", 2*time.Second),
		WhatsAppSendRate:     getEnvAsFloat("WHATSAPP_SEND_RATE", 1.0),

		CalendarBaseURL:  getEnv("CALENDAR_BASE_URL", ""),
		CalendarAPIToken: getEnv("CALENDAR_API_TOKEN", ""),

		GeminiAPIKey:  getEnv("GEMINI_API_KEY", ""),
		GeminiModelID: getEnv("GEMINI_MODEL_ID", "gemini-2.5-flash"),

		ClinicName:         getEnv("CLINIC_NAME", "a clínica"),
		ClinicTimezone:     getEnv("CLINIC_TZ", "America/Sao_Paulo"),
		ConversationTTL:    getEnvAsDuration("CONVERSATION_TTL", 30*time.Minute),
		ConfirmMaxAttempts: getEnvAsInt("CONFIRM_MAX_ATTEMPTS", 3),

		OperatorPhones: getEnvAsList("OPERATOR_PHONES"),
		OperatorEmails: getEnvAsList("OPERATOR_EMAILS"),

		SendGridAPIKey:    getEnv("SENDGRID_API_KEY", ""),
		SendGridFromEmail: getEnv("SENDGRID_FROM_EMAIL", ""),
		SendGridFromName:  getEnv("SENDGRID_FROM_NAME", "AtendeAI"),

		AdminJWTSecret: getEnv("ADMIN_JWT_SECRET", ""),

		AWSRegion:            getEnv("AWS_REGION", "us-east-1"),
		AWSAccessKeyID:       getEnv("AWS_ACCESS_KEY_ID", ""),
		AWSSecretAccessKey:   getEnv("AWS_SECRET_ACCESS_KEY", ""),
		AWSEndpointOverride:  getEnv("AWS_ENDPOINT_OVERRIDE", ""),
		ConversationQueueURL: getEnv("CONVERSATION_QUEUE_URL", ""),
	}
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	raw := getEnv(key, "")
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return value
}

func getEnvAsFloat(key string, fallback float64) float64 {
	raw := getEnv(key, "")
	if raw == "" {
		return fallback
	}
	value, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return fallback
	}
	return value
}

func getEnvAsBool(key string, fallback bool) bool {
	raw := getEnv(key, "")
	if raw == "" {
		return fallback
	}
	value, err := strconv.ParseBool(raw)
	if err != nil {
		return fallback
	}
	return value
}

func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	raw := getEnv(key, "")
	if raw == "" {
		return fallback
	}
	value, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}
	return value
}

func getEnvAsList(key string) []string {
	raw := getEnv(key, "")
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
