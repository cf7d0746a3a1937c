package cmd

import (
	"context"
	"encoding/base64"
	"flag"
	"log"
	"log/slog"
	"os"
	"time"

	"license-backend/internal/config"
	"license-backend/internal/events"
	"license-backend/internal/licensing"
	"license-backend/internal/store"

	"github.com/joho/godotenv"
)

func LoadEnvFile() {
	var configPath string

	flag.StringVar(&configPath, "env", "", "path to load env from")
	flag.Parse()

	if configPath == "" {
		log.Printf("no env file specified, using os.Environ only")
		return
	}

	log.Printf("loading env from file %s", configPath)
	err := godotenv.Load(configPath)
	if err != nil {
		log.Fatalf("error loading .env file '%s': %v", configPath, err)
	}
}

// CreateChecker wires the authoritative check chain: the remote license
// server, wrapped with the offline activation file when one is configured.
func CreateChecker(cfg *config.Config) licensing.Checker {
	var serverKey []byte
	if cfg.ServerPublicKeyB64 != "" {
		var err error
		serverKey, err = base64.StdEncoding.DecodeString(cfg.ServerPublicKeyB64)
		if err != nil {
			log.Fatalf("Invalid LICENSE_SERVER_PUBLIC_KEY: %v", err)
		}
	}

	remote, err := licensing.NewRemoteChecker(cfg.LicenseServerURL, cfg.LicenseKey, serverKey)
	if err != nil {
		log.Fatalf("Failed to create remote license checker: %v", err)
	}

	var activation *licensing.ActivationVerifier
	if cfg.ActivationFile != "" {
		raw, err := os.ReadFile(cfg.ActivationFile)
		if err != nil {
			log.Fatalf("Failed to read activation file '%s': %v", cfg.ActivationFile, err)
		}
		activation, err = licensing.NewActivationVerifier([]byte(licensing.ActivationPublicKey), string(raw))
		if err != nil {
			log.Fatalf("Failed to verify activation file: %v", err)
		}
	}

	return licensing.NewFallbackChecker(remote, activation)
}

// CreateStore picks the session storage backend: redis when configured,
// process memory otherwise.
func CreateStore(ctx context.Context, cfg *config.Config) store.Store {
	if cfg.RedisURL == "" {
		return store.NewMemoryStore()
	}

	client, err := store.Connect(ctx, cfg.RedisURL)
	if err != nil {
		log.Fatalf("Failed to connect to redis: %v", err)
	}

	sessionTTL := time.Duration(cfg.SessionTTLHours) * time.Hour
	return store.NewRedisStore(client, "urcash:", sessionTTL)
}

func CreateCache(checker licensing.Checker, st store.Store, cfg *config.Config) *licensing.Cache {
	return licensing.NewCache(checker, st, licensing.CacheConfig{
		CacheTTL:   time.Duration(cfg.CacheTTLMinutes) * time.Minute,
		SessionTTL: time.Duration(cfg.SessionTTLHours) * time.Hour,
	})
}

// CreatePublisher returns the event publisher; without a broker URL the
// in-memory queue is used and events are effectively local-only.
func CreatePublisher(cfg *config.Config) events.Publisher {
	if cfg.RabbitMQURL == "" {
		slog.Warn("RABBITMQ_URL not set, license events will not leave this process")
		return events.NewInMemoryQueue()
	}

	publisher, err := events.NewRabbitMQPublisher(cfg.RabbitMQURL)
	if err != nil {
		log.Fatalf("Failed to connect to RabbitMQ: %v", err)
	}
	return publisher
}
