package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port    string
	LogPath string

	// Database
	DBDriver   string // sqlite or postgres
	DBPath     string // sqlite only
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string
	DBSSLMode  string

	// Messaging transport (cloud API bridge)
	VerifyToken   string
	WhatsAppToken string
	PhoneNumberID string
	APIBaseURL    string

	// Studio details used in reminder templates
	StudioAddress string
	CountryPrefix string

	// Reminder scheduler
	SweepInterval      time.Duration
	ReminderRetryLimit int

	// Automatic replies
	AutoReplyRulesPath string
}

func LoadConfig() *Config {
	err := godotenv.Load()
	if err != nil {
		log.Println("Warning: Error loading .env file")
	}

	return &Config{
		Port:    getEnv("PORT", "8080"),
		LogPath: getEnv("LOG_PATH", "./logs/studio.log"),

		DBDriver:   getEnv("DB_DRIVER", "sqlite"),
		DBPath:     getEnv("DB_PATH", "./studio.db"),
		DBHost:     getEnv("DB_HOST", "localhost"),
		DBPort:     getEnv("DB_PORT", "5432"),
		DBUser:     getEnv("DB_USER", "postgres"),
		DBPassword: getEnv("DB_PASSWORD", ""),
		DBName:     getEnv("DB_NAME", "studio"),
		DBSSLMode:  getEnv("DB_SSLMODE", "disable"),

		VerifyToken:   getEnv("VERIFY_TOKEN", ""),
		WhatsAppToken: getEnv("WHATSAPP_TOKEN", ""),
		PhoneNumberID: getEnv("PHONE_NUMBER_ID", ""),
		APIBaseURL:    getEnv("WA_API_BASE_URL", "https://graph.facebook.com/v19.0"),

		StudioAddress: getEnv("STUDIO_ADDRESS", "Estúdio Jéssica Santos - Rua das Flores, 123"),
		CountryPrefix: getEnv("COUNTRY_PREFIX", "55"),

		SweepInterval:      getDurationEnv("REMINDER_SWEEP_INTERVAL", time.Minute),
		ReminderRetryLimit: getIntEnv("REMINDER_RETRY_LIMIT", 10),

		AutoReplyRulesPath: getEnv("AUTO_REPLY_RULES_PATH", ""),
	}
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getIntEnv(key string, fallback int) int {
	if value, exists := os.LookupEnv(key); exists {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
		log.Printf("Warning: invalid value for %s, using default", key)
	}
	return fallback
}

func getDurationEnv(key string, fallback time.Duration) time.Duration {
	if value, exists := os.LookupEnv(key); exists {
		if d, err := time.ParseDuration(value); err == nil && d > 0 {
			return d
		}
		log.Printf("Warning: invalid value for %s, using default", key)
	}
	return fallback
}
