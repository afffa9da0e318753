package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type AppConfig struct {
	Port               string
	DatabasePath       string
	LogLevel           string
	IdentitySecret     string
	MaxUploadSizeBytes int64

	CacheExpiration      time.Duration
	CacheCleanupInterval time.Duration

	FallbackSeriesDays int

	RateLimitInterval time.Duration
	RateLimitBurst    int
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

	identitySecret := getEnv("IDENTITY_SECRET", "a-very-secure-32-byte-long-key-must-be-32-bytes!")
	if identitySecret == "a-very-secure-32-byte-long-key-must-be-32-bytes!" {
		log.Println("WARNING: Using default insecure IDENTITY_SECRET. Set IDENTITY_SECRET environment variable for production.")
	}
	if len(identitySecret) < 32 {
		log.Fatalf("FATAL: IDENTITY_SECRET must be at least 32 bytes long. Current length: %d", len(identitySecret))
	}

	maxUploadSizeBytesStr := getEnv("MAX_UPLOAD_SIZE_BYTES", "10485760")
	maxUploadSizeBytes, err := strconv.ParseInt(maxUploadSizeBytesStr, 10, 64)
	if err != nil {
		log.Printf("WARNING: Invalid MAX_UPLOAD_SIZE_BYTES format '%s'. Using default 10MB. Error: %v", maxUploadSizeBytesStr, err)
		maxUploadSizeBytes = 10 * 1024 * 1024
	}

	fallbackSeriesDays := getEnvAsInt("FALLBACK_SERIES_DAYS", 30)
	if fallbackSeriesDays <= 0 {
		log.Printf("WARNING: Invalid FALLBACK_SERIES_DAYS %d. Using default 30.", fallbackSeriesDays)
		fallbackSeriesDays = 30
	}

	Cfg = &AppConfig{
		Port:               getEnv("PORT", "8080"),
		DatabasePath:       getEnv("DATABASE_PATH", "./finboard.db"),
		LogLevel:           getEnv("LOG_LEVEL", "info"),
		IdentitySecret:     identitySecret,
		MaxUploadSizeBytes: maxUploadSizeBytes,

		CacheExpiration:      getEnvAsDuration("CACHE_EXPIRATION", 15*time.Minute),
		CacheCleanupInterval: getEnvAsDuration("CACHE_CLEANUP_INTERVAL", 30*time.Minute),

		FallbackSeriesDays: fallbackSeriesDays,

		RateLimitInterval: getEnvAsDuration("RATE_LIMIT_INTERVAL", 100*time.Millisecond),
		RateLimitBurst:    getEnvAsInt("RATE_LIMIT_BURST", 30),
	}

	log.Printf("Configuration loaded: Port=%s, LogLevel=%s, DBPath=%s",
		Cfg.Port, Cfg.LogLevel, Cfg.DatabasePath)
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

func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		log.Printf("Duration value for %s not set or empty, using default: %s", key, fallback.String())
		return fallback
	}
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	log.Printf("Invalid duration value for %s ('%s'), using default: %s", key, valueStr, fallback.String())
	return fallback
}
