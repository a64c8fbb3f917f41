// Package config loads application configuration from environment variables.
package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration.
type Config struct {
	// Server
	Port string

	// JWT
	JWTSecret        string
	JWTExpirationDur time.Duration

	// Sync trigger endpoints (shared secret, bearer-style)
	SyncAPIKey string

	// MOEX ISS
	MoexBaseURL    string
	MoexLang       string
	RequestTimeout time.Duration

	// Pipeline
	NotifyThresholdPct    float64
	NotificationRetention time.Duration
	SchedulerEnabled      bool
}

var appConfig *Config

// Load loads configuration from environment variables, with a .env file
// as the fallback source.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: .env file not found")
	}

	config := &Config{
		Port: getEnv("PORT", "8080"),

		JWTSecret:  getEnv("JWT_SECRET", "fallback-secret-key-for-dev-only"),
		SyncAPIKey: getEnv("SYNC_API_KEY", ""),

		MoexBaseURL: getEnv("MOEX_BASE_URL", "https://iss.moex.com/iss"),
		MoexLang:    getEnv("MOEX_LANG", "ru"),
	}

	config.JWTExpirationDur = getEnvDuration("JWT_EXPIRES_IN", 24*time.Hour)
	config.RequestTimeout = getEnvDuration("REQUEST_TIMEOUT", 30*time.Second)
	config.NotificationRetention = getEnvDuration("NOTIFICATION_RETENTION", 30*24*time.Hour)
	config.NotifyThresholdPct = getEnvFloat("NOTIFY_THRESHOLD_PCT", 5.0)
	config.SchedulerEnabled = getEnvBool("SCHEDULER_ENABLED", true)

	appConfig = config
	return config, nil
}

// Get returns the application configuration, loading it on first use.
func Get() *Config {
	if appConfig == nil {
		var err error
		appConfig, err = Load()
		if err != nil {
			log.Fatalf("Failed to load configuration: %v", err)
		}
	}
	return appConfig
}

// getEnv retrieves an environment variable or returns a default value.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		log.Printf("Warning: invalid %s value %q, falling back to %v\n", key, raw, defaultValue)
		return defaultValue
	}
	return d
}

func getEnvFloat(key string, defaultValue float64) float64 {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		log.Printf("Warning: invalid %s value %q, falling back to %v\n", key, raw, defaultValue)
		return defaultValue
	}
	return f
}

func getEnvBool(key string, defaultValue bool) bool {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		log.Printf("Warning: invalid %s value %q, falling back to %v\n", key, raw, defaultValue)
		return defaultValue
	}
	return b
}
