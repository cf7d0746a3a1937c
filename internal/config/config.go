package config

import (
	"log"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

type Config struct {
	LicenseServerURL   string
	LicenseKey         string
	ServerPublicKeyB64 string // base64 DER ed25519 key; empty disables response signature checks
	ActivationFile     string
	DatabaseURL        string
	RedisURL           string // empty = in-process session store
	RabbitMQURL        string // empty = in-memory event queue
	APIPort            string
	CacheTTLMinutes    int
	SessionTTLHours    int
}

// The default server signing key ships with the build; installs pointing at a
// self-hosted license server override it.
const DefaultServerPublicKeyB64 = "MCowBQYDK2VwAyEAexSKqSU6loGoyGTNbZXjiEcAuTYZEnIEYnfWYmgcp+M="

func LoadConfig() (*Config, error) {
	// Load .env file if it exists (useful for local development)
	err := godotenv.Load()
	if err != nil {
		log.Println("No .env file found or error loading, continuing with environment variables")
	}

	cacheTTL := getEnvInt("CACHE_TTL_MINUTES", 30)
	sessionTTL := getEnvInt("SESSION_TTL_HOURS", 24)

	cfg := &Config{
		LicenseServerURL:   getEnv("LICENSE_SERVER_URL", "https://license.urcash.app"),
		LicenseKey:         getEnv("LICENSE_KEY", ""),
		ServerPublicKeyB64: getEnv("LICENSE_SERVER_PUBLIC_KEY", DefaultServerPublicKeyB64),
		ActivationFile:     getEnv("ACTIVATION_FILE", ""),
		DatabaseURL:        getEnv("DATABASE_URL", "license-backend.db"),
		RedisURL:           getEnv("REDIS_URL", ""),
		RabbitMQURL:        getEnv("RABBITMQ_URL", ""),
		APIPort:            getEnv("API_PORT", "8002"),
		CacheTTLMinutes:    cacheTTL,
		SessionTTLHours:    sessionTTL,
	}

	if cfg.LicenseKey == "" && cfg.ActivationFile == "" {
		log.Println("Warning: neither LICENSE_KEY nor ACTIVATION_FILE is set; checks will report an inactive license.")
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	raw, exists := os.LookupEnv(key)
	if !exists {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		log.Printf("Invalid %s value '%s', using default %d", key, raw, fallback)
		return fallback
	}
	return value
}
