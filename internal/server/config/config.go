package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Default route prefixes subject to device verification.
var defaultSensitiveRoutes = []string{
	"/api/chat/",
	"/api/training/",
	"/api/subscriptions/",
	"/api/admin/",
}

// Config carries all process-wide settings. Loaded once at startup and
// injected into the components that need it; nothing reads the environment
// after this point.
type Config struct {
	APIHost string
	APIPort string

	DatabaseURL string

	// Local token signing secret and, optionally, the identity provider's.
	// Inbound tokens are decoded with the provider secret first.
	JWTSecret         string
	ProviderJWTSecret string
	TokenExpiration   time.Duration

	// Shared secret folded into binding checksums
	MACVerificationKey string

	AdminPassword string

	SensitiveRoutes []string
}

func Load() (*Config, error) {
	cfg := &Config{
		APIHost:            getEnv("API_HOST", "0.0.0.0"),
		APIPort:            getEnv("API_PORT", "8080"),
		DatabaseURL:        os.Getenv("DATABASE_URL"),
		JWTSecret:          os.Getenv("JWT_SECRET"),
		ProviderJWTSecret:  os.Getenv("PROVIDER_JWT_SECRET"),
		MACVerificationKey: getEnv("MAC_VERIFICATION_KEY", "mac-verification-secret"),
		AdminPassword:      os.Getenv("ADMIN_PASSWORD"),
		TokenExpiration:    24 * time.Hour,
	}

	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET environment variable must be set")
	}
	if cfg.AdminPassword == "" {
		return nil, fmt.Errorf("ADMIN_PASSWORD environment variable must be set")
	}

	if raw := os.Getenv("TOKEN_EXPIRATION_HOURS"); raw != "" {
		hours, err := strconv.Atoi(raw)
		if err != nil || hours <= 0 {
			return nil, fmt.Errorf("invalid TOKEN_EXPIRATION_HOURS: %q", raw)
		}
		cfg.TokenExpiration = time.Duration(hours) * time.Hour
	}

	if raw := os.Getenv("SENSITIVE_ROUTES"); raw != "" {
		for _, route := range strings.Split(raw, ",") {
			route = strings.TrimSpace(route)
			if route != "" {
				cfg.SensitiveRoutes = append(cfg.SensitiveRoutes, route)
			}
		}
	}
	if len(cfg.SensitiveRoutes) == 0 {
		cfg.SensitiveRoutes = append([]string(nil), defaultSensitiveRoutes...)
	}

	return cfg, nil
}

// JWTSecrets returns the decode order for inbound bearer tokens.
func (c *Config) JWTSecrets() []string {
	return []string{c.ProviderJWTSecret, c.JWTSecret}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
