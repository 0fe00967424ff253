package config

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	HTTPAddr string

	// Remote Store A: the Apps Script web-app deployment URL. Empty
	// disables the tier.
	ScriptURL string

	// Remote Store B: Postgres connection string. Empty disables the tier.
	DatabaseURL string

	// Local cache database file.
	CachePath string

	// Origin of the deployed UI, used to build password-reset callbacks.
	AppOrigin string

	RedisAddr     string
	RedisPassword string

	SessionSecret string
	SessionIssuer string
	SessionTTL    time.Duration

	HeartbeatInterval time.Duration
}

func Load() Config {
	return Config{
		HTTPAddr:          getenv("HTTP_ADDR", ":8084"),
		ScriptURL:         getenv("SCRIPT_URL", ""),
		DatabaseURL:       getenv("DATABASE_URL", ""),
		CachePath:         getenv("CACHE_PATH", "./datacore.db"),
		AppOrigin:         getenv("APP_ORIGIN", "http://localhost:5173"),
		RedisAddr:         getenv("REDIS_ADDR", ""),
		RedisPassword:     getenv("REDIS_PASSWORD", ""),
		SessionSecret:     getenv("SESSION_SECRET", "dev-secret"),
		SessionIssuer:     getenv("SESSION_ISSUER", "teman-datacore"),
		SessionTTL:        getenvDuration("SESSION_TTL", 12*time.Hour),
		HeartbeatInterval: getenvDuration("HEARTBEAT_INTERVAL", 5*time.Minute),
	}
}

func getenv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getenvDuration(key string, fallback time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if parsed, err := time.ParseDuration(val); err == nil {
			return parsed
		}
	}
	if val := os.Getenv(key + "_SECONDS"); val != "" {
		if seconds, err := strconv.Atoi(val); err == nil {
			return time.Duration(seconds) * time.Second
		}
	}
	return fallback
}
