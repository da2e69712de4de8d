package config

import (
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration
type Config struct {
	ServerPort         string
	GoogleClientID     string
	GoogleClientSecret string
	OAuthRedirectURL   string
	FrontendBaseURL    string
	MongoURI           string
	MongoDatabase      string
	StaticFilesPath    string
	AWSRegion          string
	SESFromEmail       string
	SESFromName        string
	InviteTTL          time.Duration
}

// Load reads configuration from environment variables (and a local .env
// when present) with sensible defaults. MONGODB_URI may be empty: the
// server then runs on the non-durable in-memory store, which is a
// supported mode, not an error.
func Load() *Config {
	if err := godotenv.Load(); err == nil {
		log.Println("Loaded configuration from .env")
	}

	return &Config{
		ServerPort:         getEnv("PORT", "8080"),
		GoogleClientID:     getEnv("CLIENT_ID", ""),
		GoogleClientSecret: getEnv("CLIENT_SECRET", ""),
		OAuthRedirectURL:   getEnv("REDIRECT_URI", "http://localhost:8080/auth/callback"),
		FrontendBaseURL:    getEnv("FRONTEND_URL", ""),
		MongoURI:           getEnv("MONGODB_URI", ""),
		MongoDatabase:      getEnv("MONGODB_DATABASE", "energybalance"),
		StaticFilesPath:    getEnv("STATIC_PATH", "./static"),
		AWSRegion:          getEnv("AWS_REGION", "us-east-1"),
		SESFromEmail:       getEnv("SES_FROM_EMAIL", ""),
		SESFromName:        getEnv("SES_FROM_NAME", "Energy Balance"),
		InviteTTL:          time.Hour,
	}
}

// getEnv reads an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
