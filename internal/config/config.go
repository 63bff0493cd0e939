package config

import (
	"log"
	"os"
	"strconv"
	"time"
)

// Config holds application configuration values.
type Config struct {
	Secret      string
	DatabaseDSN string
	HTTPPort    string
	Env         string
	TokenTTL    time.Duration
	SeedDemo    bool
}

// Load reads configuration from environment variables with reasonable defaults.
func Load() Config {
	secret := envOr("SECRET", "dev_secret")
	dsn := envOr("DATABASE_DSN", "pharmacy.db")
	env := envOr("ENV", "development")

	port := envOr("HTTP_PORT", "8080")
	if _, err := strconv.Atoi(port); err != nil {
		log.Printf("invalid HTTP_PORT value %q, defaulting to 8080", port)
		port = "8080"
	}

	ttl := 24 * time.Hour
	if raw := os.Getenv("TOKEN_TTL"); raw != "" {
		parsed, err := time.ParseDuration(raw)
		if err != nil || parsed <= 0 {
			log.Printf("invalid TOKEN_TTL value %q, defaulting to 24h", raw)
		} else {
			ttl = parsed
		}
	}

	seedDemo := false
	switch os.Getenv("SEED_DEMO_DATA") {
	case "1", "true", "yes":
		seedDemo = true
	}

	return Config{
		Secret:      secret,
		DatabaseDSN: dsn,
		HTTPPort:    port,
		Env:         env,
		TokenTTL:    ttl,
		SeedDemo:    seedDemo,
	}
}

// Production reports whether the app runs with production hardening, which
// currently only controls the Secure flag on the session cookie.
func (c Config) Production() bool {
	return c.Env == "production"
}

func envOr(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}
