package app

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	Issuer    string // Issuer claim for access tokens
	JWTSecret string // Required: HS256 signing secret, min 32 bytes

	DatabaseFile string // Path to SQLite database file (default: ./tenantcore.db)
	CacheBackend string // Cache backend (redis, memory) (default: memory)
	RedisURL     string // Redis URL, required when CacheBackend is redis

	AccessTokenTTL  time.Duration // Access token lifetime (default: 30m)
	RefreshTokenTTL time.Duration // Refresh token lifetime (default: 168h)
	MembershipTTL   time.Duration // Permission cache entry lifetime (default: 5m)

	Env                  string        // Environment (dev, staging, prod) (default: dev)
	LogLevel             string        // Log level (debug, info, warn, error) (default: info)
	LogFormat            string        // Log format (json, text) (default: json)
	Port                 int           // HTTP server port (default: 8080)
	ShutdownGracePeriod  time.Duration // Graceful shutdown timeout (default: 10s)
	HousekeepingInterval time.Duration // Housekeeping interval (default: 1h)
}

func LoadConfig() Config {
	cfg := Config{
		Issuer:    getEnvOrDefault("TENANTCORE_ISSUER", "tenantcore"),
		JWTSecret: os.Getenv("TENANTCORE_JWT_SECRET"),

		DatabaseFile: getEnvOrDefault("TENANTCORE_DATABASE_FILE", "tenantcore.db"),
		CacheBackend: getEnvOrDefault("TENANTCORE_CACHE_BACKEND", "memory"),
		RedisURL:     getEnvOrDefault("TENANTCORE_REDIS_URL", "redis://localhost:6379/0"),

		AccessTokenTTL:  getEnvDurationOrDefault("TENANTCORE_ACCESS_TTL", 30*time.Minute),
		RefreshTokenTTL: getEnvDurationOrDefault("TENANTCORE_REFRESH_TTL", 7*24*time.Hour),
		MembershipTTL:   getEnvDurationOrDefault("TENANTCORE_MEMBERSHIP_TTL", 5*time.Minute),

		Env:                  getEnvOrDefault("ENV", "dev"),
		LogLevel:             getEnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:            getEnvOrDefault("LOG_FORMAT", "json"),
		Port:                 getEnvIntOrDefault("PORT", 8080),
		ShutdownGracePeriod:  getEnvDurationOrDefault("SHUTDOWN_GRACE_PERIOD", 10*time.Second),
		HousekeepingInterval: getEnvDurationOrDefault("HOUSEKEEPING_INTERVAL", 1*time.Hour),
	}

	return cfg
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	if intValue, err := strconv.Atoi(value); err == nil {
		return intValue
	}

	return defaultValue
}

func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	// Try parsing as duration (e.g., "1h", "30m", "90s")
	if duration, err := time.ParseDuration(value); err == nil {
		return duration
	}

	// Try parsing as integer minutes (for backwards compatibility)
	if minutes, err := strconv.Atoi(value); err == nil {
		return time.Duration(minutes) * time.Minute
	}

	return defaultValue
}
