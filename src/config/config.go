package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type AppConfig struct {
	Port         string
	DatabasePath string
	LogLevel     string

	// Local agency directory exports, one CSV per collecting society.
	SacemAgenciesCSVPath string
	SacdAgenciesCSVPath  string

	// SACD remote declaration endpoint and account.
	SacdAPIBaseURL         string
	SacdAPIProviderID      string
	SacdAPIPassword        string
	SacdDeclarationVersion string

	// Ticketing synchronization.
	HTTPClientTimeout      time.Duration
	UseMockTicketingSystem bool
	MockExcludedUserEmails []string

	EmailServiceProvider string

	SMTPServer   string
	SMTPPort     int
	SMTPUser     string
	SMTPPassword string

	MailgunDomain        string
	MailgunPrivateAPIKey string

	SenderEmail string
	SenderName  string
}

var Cfg *AppConfig

func LoadConfig() {
	errEnv := godotenv.Load()
	if errEnv != nil {
		log.Println("Info: No .env file found or error loading .env file. Relying on OS environment variables and defaults. Error (if any):", errEnv)
	} else {
		log.Println(".env file loaded successfully.")
	}

	log.Println("Loading application configuration...")

	httpClientTimeoutStr := getEnv("HTTP_CLIENT_TIMEOUT", "30s")
	httpClientTimeout, err := time.ParseDuration(httpClientTimeoutStr)
	if err != nil {
		log.Printf("WARNING: Invalid HTTP_CLIENT_TIMEOUT format '%s'. Using default 30s. Error: %v", httpClientTimeoutStr, err)
		httpClientTimeout = 30 * time.Second
	}

	var mockExcludedEmails []string
	for _, email := range strings.Split(getEnv("MOCK_EXCLUDED_USER_EMAILS", ""), ",") {
		email = strings.TrimSpace(email)
		if email != "" {
			mockExcludedEmails = append(mockExcludedEmails, email)
		}
	}

	Cfg = &AppConfig{
		Port:         getEnv("PORT", "8080"),
		DatabasePath: getEnv("DATABASE_PATH", "./assistant-declaration.db"),
		LogLevel:     getEnv("LOG_LEVEL", "info"),

		SacemAgenciesCSVPath: getEnv("SACEM_AGENCIES_CSV_PATH", "data/sacem-agencies.csv"),
		SacdAgenciesCSVPath:  getEnv("SACD_AGENCIES_CSV_PATH", "data/sacd-agencies.csv"),

		SacdAPIBaseURL:         getEnv("SACD_API_BASE_URL", "https://festival.sacd.fr/api"),
		SacdAPIProviderID:      getEnv("SACD_API_PROVIDER_ID", ""),
		SacdAPIPassword:        getEnv("SACD_API_PASSWORD", ""),
		SacdDeclarationVersion: getEnv("SACD_DECLARATION_VERSION", "1.0"),

		HTTPClientTimeout:      httpClientTimeout,
		UseMockTicketingSystem: getEnvAsBool("USE_MOCK_TICKETING_SYSTEM", false),
		MockExcludedUserEmails: mockExcludedEmails,

		EmailServiceProvider: getEnv("EMAIL_SERVICE_PROVIDER", "mock"),

		SMTPServer:   getEnv("SMTP_SERVER", ""),
		SMTPPort:     getEnvAsInt("SMTP_PORT", 587),
		SMTPUser:     getEnv("SMTP_USER", ""),
		SMTPPassword: getEnv("SMTP_PASSWORD", ""),

		MailgunDomain:        getEnv("MAILGUN_DOMAIN", ""),
		MailgunPrivateAPIKey: getEnv("MAILGUN_PRIVATE_API_KEY", ""),

		SenderEmail: getEnv("SENDER_EMAIL", "noreply@example.com"),
		SenderName:  getEnv("SENDER_NAME", "Assistant Declaration"),
	}

	if Cfg.EmailServiceProvider == "mailgun" {
		if Cfg.MailgunDomain == "" {
			log.Fatalf("FATAL: MAILGUN_DOMAIN is required when EMAIL_SERVICE_PROVIDER is 'mailgun', but it's not set in environment or .env file.")
		}
		if Cfg.MailgunPrivateAPIKey == "" {
			log.Fatalf("FATAL: MAILGUN_PRIVATE_API_KEY is required when EMAIL_SERVICE_PROVIDER is 'mailgun', but it's not set in environment or .env file.")
		}
		if Cfg.SenderEmail == "noreply@example.com" || Cfg.SenderEmail == "" {
			log.Fatalf("FATAL: SENDER_EMAIL must be configured properly (e.g., your Mailgun sender) when EMAIL_SERVICE_PROVIDER is 'mailgun'.")
		}
	}

	log.Printf("Configuration loaded: Port=%s, LogLevel=%s, DBPath=%s, EmailProvider=%s, MockTicketing=%t",
		Cfg.Port, Cfg.LogLevel, Cfg.DatabasePath, Cfg.EmailServiceProvider, Cfg.UseMockTicketingSystem)
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	log.Printf("Environment variable %s not set, using default: %s", key, fallback)
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		log.Printf("Integer value for %s not set or empty, using default: %d", key, fallback)
		return fallback
	}
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	log.Printf("Invalid integer value for %s ('%s'), using default: %d", key, valueStr, fallback)
	return fallback
}

func getEnvAsBool(key string, fallback bool) bool {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return fallback
	}
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	log.Printf("Invalid boolean value for %s ('%s'), using default: %t", key, valueStr, fallback)
	return fallback
}
