// Package config loads service configuration from environment variables,
// optionally seeded from a .env file.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/crypto/bcrypt"
)

// Config holds every runtime knob of the service.
type Config struct {
	// HTTP server
	Port       string
	CORSOrigin string
	StaticDir  string

	// Database
	DBPath string

	// Sessions
	SessionTTL    time.Duration
	SweepInterval time.Duration
	SecureCookie  bool

	// Password hashing
	BcryptCost int
}

// Load reads configuration from the environment. A .env file in the
// working directory is loaded first if present.
func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		Port:       getEnv("PORT", "3000"),
		CORSOrigin: getEnv("CORS_ORIGIN", ""),
		StaticDir:  getEnv("STATIC_DIR", ""),

		DBPath: getEnv("DB_PATH", "expenses.db"),

		SessionTTL:    getEnvDuration("SESSION_TTL", 600*time.Second),
		SweepInterval: getEnvDuration("SESSION_SWEEP_INTERVAL", 5*time.Minute),
		SecureCookie:  getEnvBool("SECURE_COOKIE", false),

		BcryptCost: getEnvInt("BCRYPT_COST", 10),
	}
}

// Addr returns the listen address derived from Port.
func (c *Config) Addr() string {
	return ":" + c.Port
}

// Validate checks the configuration and returns an error listing every
// invalid field.
func (c *Config) Validate() error {
	var errs []string

	if port, err := strconv.Atoi(c.Port); err != nil {
		errs = append(errs, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errs = append(errs, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	if c.DBPath == "" {
		errs = append(errs, "database path cannot be empty")
	}

	if c.SessionTTL <= 0 {
		errs = append(errs, fmt.Sprintf("invalid session TTL %v: must be positive", c.SessionTTL))
	}
	if c.SweepInterval <= 0 {
		errs = append(errs, fmt.Sprintf("invalid session sweep interval %v: must be positive", c.SweepInterval))
	}

	if c.BcryptCost < bcrypt.MinCost || c.BcryptCost > bcrypt.MaxCost {
		errs = append(errs, fmt.Sprintf("invalid bcrypt cost %d: must be between %d and %d",
			c.BcryptCost, bcrypt.MinCost, bcrypt.MaxCost))
	}

	if c.StaticDir != "" {
		if info, err := os.Stat(c.StaticDir); err != nil || !info.IsDir() {
			errs = append(errs, fmt.Sprintf("static dir '%s' is not a readable directory", c.StaticDir))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}
	return nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
		// Bare numbers are treated as seconds, matching the original
		// deployment's SESSION_TTL=600 style values.
		if n, err := strconv.Atoi(v); err == nil {
			return time.Duration(n) * time.Second
		}
	}
	return fallback
}
