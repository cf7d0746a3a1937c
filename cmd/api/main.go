package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"license-backend/cmd"
	"license-backend/internal/api"
	"license-backend/internal/config"
	"license-backend/internal/database"

	"github.com/caarlos0/env/v11"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

type APIConfig struct {
	LicenseServerURL   string   `env:"LICENSE_SERVER_URL" envDefault:"https://license.urcash.app"`
	LicenseKey         string   `env:"LICENSE_KEY"`
	ServerPublicKeyB64 string   `env:"LICENSE_SERVER_PUBLIC_KEY" envDefault:"MCowBQYDK2VwAyEAexSKqSU6loGoyGTNbZXjiEcAuTYZEnIEYnfWYmgcp+M="`
	ActivationFile     string   `env:"ACTIVATION_FILE"`
	DatabaseURL        string   `env:"DATABASE_URL" envDefault:"license-backend.db"`
	RedisURL           string   `env:"REDIS_URL"`
	RabbitMQURL        string   `env:"RABBITMQ_URL"`
	APIPort            string   `env:"API_PORT" envDefault:"8002"`
	CacheTTLMinutes    int      `env:"CACHE_TTL_MINUTES" envDefault:"30"`
	SessionTTLHours    int      `env:"SESSION_TTL_HOURS" envDefault:"24"`
	AllowedOrigins     []string `env:"ALLOWED_ORIGINS" envDefault:"http://localhost:1420,tauri://localhost"`
}

func main() {
	log.Println("Starting license API server...")

	cmd.LoadEnvFile()

	var apiCfg APIConfig
	if err := env.Parse(&apiCfg); err != nil {
		log.Fatalf("error parsing config: %v", err)
	}

	cfg := &config.Config{
		LicenseServerURL:   apiCfg.LicenseServerURL,
		LicenseKey:         apiCfg.LicenseKey,
		ServerPublicKeyB64: apiCfg.ServerPublicKeyB64,
		ActivationFile:     apiCfg.ActivationFile,
		DatabaseURL:        apiCfg.DatabaseURL,
		RedisURL:           apiCfg.RedisURL,
		RabbitMQURL:        apiCfg.RabbitMQURL,
		APIPort:            apiCfg.APIPort,
		CacheTTLMinutes:    apiCfg.CacheTTLMinutes,
		SessionTTLHours:    apiCfg.SessionTTLHours,
	}

	db, err := database.NewDatabase(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to open audit database: %v", err)
	}

	checker := cmd.CreateChecker(cfg)
	sessionStore := cmd.CreateStore(context.Background(), cfg)
	cache := cmd.CreateCache(checker, sessionStore, cfg)

	publisher := cmd.CreatePublisher(cfg)
	defer publisher.Close()

	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: apiCfg.AllowedOrigins,
		AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
	}))

	service := api.NewLicenseService(cache, db, publisher)
	service.AddRoutes(r)

	server := &http.Server{
		Addr:    ":" + cfg.APIPort,
		Handler: r,
	}

	// Goroutine for graceful shutdown
	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit
		log.Println("Shutting down server...")

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := server.Shutdown(ctx); err != nil {
			log.Fatalf("Server forced to shutdown: %v", err)
		}
	}()

	log.Printf("License API listening on port %s", cfg.APIPort)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("Could not listen on %s: %v\n", cfg.APIPort, err)
	}

	log.Println("Server stopped.")
}
