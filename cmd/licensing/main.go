package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"license-backend/cmd"
	"license-backend/internal/config"
	"license-backend/internal/licensing"
)

func generateKeys(output string) {
	privateKey, publicKey, err := licensing.GenerateKeys()
	if err != nil {
		log.Fatalf("Error generating keys: %v", err)
	}

	privateKeyFile := output + "_private_key.pem"
	if err := os.WriteFile(privateKeyFile, privateKey, 0644); err != nil {
		log.Fatalf("Error writing private key to file '%s': %v", privateKeyFile, err)
	}

	publicKeyFile := output + "_public_key.pem"
	if err := os.WriteFile(publicKeyFile, publicKey, 0644); err != nil {
		log.Fatalf("Error writing public key to file '%s': %v", publicKeyFile, err)
	}
}

func createActivation(privateKeyPath, licenseType, featureList string, days int) {
	privateKeyPem, err := os.ReadFile(privateKeyPath)
	if err != nil {
		log.Fatalf("error reading private key file: %v", err)
	}

	var features []string
	if featureList != "" {
		features = strings.Split(featureList, ",")
	} else {
		features, err = licensing.FeaturesForType(licenseType)
		if err != nil {
			log.Fatalf("Error resolving features for type '%s': %v", licenseType, err)
		}
	}

	payload := licensing.ActivationPayload{
		Type:        licenseType,
		Features:    features,
		ActivatedAt: time.Now().UTC(),
	}
	if days > 0 {
		expiration := time.Now().UTC().AddDate(0, 0, days)
		payload.Expiration = &expiration
	}

	activation, err := licensing.CreateActivation(privateKeyPem, payload)
	if err != nil {
		log.Fatalf("Error creating activation: %v", err)
	}

	fmt.Println(activation)
}

func validateActivation(publicKeyPath, activation string) {
	publicKeyPem, err := os.ReadFile(publicKeyPath)
	if err != nil {
		log.Fatalf("error reading public key file: %v", err)
	}

	verifier, err := licensing.NewActivationVerifier(publicKeyPem, activation)
	if err != nil {
		log.Fatalf("Activation verification failed: %v", err)
	}

	printStatus(verifier.Status(time.Now()))
}

func runCheck(force bool) {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	ctx := context.Background()
	cache := cmd.CreateCache(cmd.CreateChecker(cfg), cmd.CreateStore(ctx, cfg), cfg)

	status, err := cache.CheckStatus(ctx, force)
	if err != nil {
		log.Fatalf("License check failed: %v", err)
	}

	printStatus(status)
}

func runStats() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	ctx := context.Background()
	cache := cmd.CreateCache(cmd.CreateChecker(cfg), cmd.CreateStore(ctx, cfg), cfg)

	out, err := json.MarshalIndent(cache.CacheStats(ctx), "", "  ")
	if err != nil {
		log.Fatalf("Error serializing stats: %v", err)
	}
	fmt.Println(string(out))
}

func runClear() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	ctx := context.Background()
	cache := cmd.CreateCache(cmd.CreateChecker(cfg), cmd.CreateStore(ctx, cfg), cfg)

	if err := cache.ClearCache(ctx); err != nil {
		log.Fatalf("Error clearing cache: %v", err)
	}
	fmt.Println("license cache cleared")
}

func printStatus(status licensing.Status) {
	out, err := json.MarshalIndent(status, "", "  ")
	if err != nil {
		log.Fatalf("Error serializing status: %v", err)
	}
	fmt.Println(string(out))
}

func main() {
	keysArgs := flag.NewFlagSet("keys", flag.ExitOnError)
	output := keysArgs.String("output", "", "Name of output files for the generated keys")

	createArgs := flag.NewFlagSet("create", flag.ExitOnError)
	privateKey := createArgs.String("private-key", "", "Path to private key file")
	licenseType := createArgs.String("type", "basic", "License type (trial, basic, premium, lifetime)")
	features := createArgs.String("features", "", "Comma-separated feature overrides")
	days := createArgs.Int("days", 0, "Days until expiration (0 = never expires)")

	validateArgs := flag.NewFlagSet("validate", flag.ExitOnError)
	publicKey := validateArgs.String("public-key", "", "Path to public key file")
	activation := validateArgs.String("activation", "", "Activation string to validate")

	checkArgs := flag.NewFlagSet("check", flag.ExitOnError)
	force := checkArgs.Bool("force", false, "Bypass the cache and contact the license server")

	if len(os.Args) < 2 {
		log.Fatalf("expected 'keys', 'create', 'validate', 'check', 'stats' or 'clear' subcommands")
	}

	switch os.Args[1] {
	case "keys":
		if err := keysArgs.Parse(os.Args[2:]); err != nil {
			log.Fatalf("Error parsing arguments: %v", err)
		}
		generateKeys(*output)
	case "create":
		if err := createArgs.Parse(os.Args[2:]); err != nil {
			log.Fatalf("Error parsing arguments: %v", err)
		}
		createActivation(*privateKey, *licenseType, *features, *days)
	case "validate":
		if err := validateArgs.Parse(os.Args[2:]); err != nil {
			log.Fatalf("Error parsing arguments: %v", err)
		}
		validateActivation(*publicKey, *activation)
	case "check":
		if err := checkArgs.Parse(os.Args[2:]); err != nil {
			log.Fatalf("Error parsing arguments: %v", err)
		}
		runCheck(*force)
	case "stats":
		runStats()
	case "clear":
		runClear()
	default:
		log.Fatalf("unknown subcommand '%s'", os.Args[1])
	}
}
