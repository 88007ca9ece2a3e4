package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds everything the service reads from the environment.
// godotenv populates the environment from .env before Load runs.
type Config struct {
	HTTPPort           string
	DatabaseURL        string
	DBDriver           string
	JWTSecret          string
	JWTTTL             time.Duration
	SessionIdleTimeout time.Duration
	PolicyDocsRoot     string
	LogLevel           string
}

func Load() Config {
	return Config{
		HTTPPort:           getEnv("HTTP_PORT", "8080"),
		DatabaseURL:        getEnv("DATABASE_URL", ""),
		DBDriver:           getEnv("DB_DRIVER", "postgres"),
		JWTSecret:          getEnv("JWT_SECRET", ""),
		JWTTTL:             getEnvDuration("JWT_EXPIRES_IN", 24*time.Hour),
		SessionIdleTimeout: getEnvDuration("SESSION_IDLE_TIMEOUT", 60*time.Minute),
		PolicyDocsRoot:     getEnv("POLICY_DOCS_ROOT", "storage/policy_documents"),
		LogLevel:           getEnv("LOG_LEVEL", "info"),
	}
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	if parsed, err := time.ParseDuration(value); err == nil {
		return parsed
	}
	if minutes, err := strconv.Atoi(value); err == nil {
		return time.Duration(minutes) * time.Minute
	}
	return fallback
}
