package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds settings for the API server and the operator console.
type Config struct {
	Env  string
	Port string

	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string
	DBSSLMode  string

	JWTSecret string
	JWTTTL    time.Duration

	CORSOrigins []string

	PermissionCacheTTL  time.Duration
	PermissionCacheSize int

	BaseCurrency string

	AdminEmail    string
	AdminPassword string

	APIBaseURL     string
	APIEmail       string
	APIPassword    string
	APITimeout     time.Duration
	RetryBaseDelay time.Duration
	RetryMax       int

	EnvFileLoaded bool
}

const devJWTSecret = "default_super_secret_key"

// Load reads configs/.env when present, then the process environment.
func Load() (*Config, error) {
	envErr := godotenv.Load("configs/.env")

	cfg := &Config{
		Env:  getEnv("APP_ENV", getEnv("GIN_MODE", "debug")),
		Port: getEnv("PORT", "8080"),

		DBHost:     getEnv("DB_HOST", "localhost"),
		DBPort:     getEnv("DB_PORT", "5432"),
		DBUser:     getEnv("DB_USER", "postgres"),
		DBPassword: getEnv("DB_PASSWORD", "postgres"),
		DBName:     getEnv("DB_NAME", "procurement"),
		DBSSLMode:  getEnv("DB_SSLMODE", "disable"),

		JWTSecret: os.Getenv("JWT_SECRET"),
		JWTTTL:    getDuration("JWT_TTL", 24*time.Hour),

		CORSOrigins: getList("CORS_ORIGINS", []string{"http://localhost:5173", "http://127.0.0.1:5173"}),

		PermissionCacheTTL:  getDuration("PERMISSION_CACHE_TTL", 5*time.Minute),
		PermissionCacheSize: getInt("PERMISSION_CACHE_SIZE", 128),

		BaseCurrency: strings.ToUpper(getEnv("BASE_CURRENCY", "INR")),

		AdminEmail:    os.Getenv("ADMIN_EMAIL"),
		AdminPassword: os.Getenv("ADMIN_PASSWORD"),

		APIBaseURL:     getEnv("API_BASE_URL", "http://localhost:8080"),
		APIEmail:       os.Getenv("API_EMAIL"),
		APIPassword:    os.Getenv("API_PASSWORD"),
		APITimeout:     getDuration("API_TIMEOUT", 15*time.Second),
		RetryBaseDelay: getDuration("RETRY_BASE_DELAY", time.Second),
		RetryMax:       getInt("RETRY_MAX", 2),
	}

	if cfg.JWTSecret == "" {
		if cfg.IsRelease() {
			return nil, errors.New("JWT_SECRET is required in release mode")
		}
		cfg.JWTSecret = devJWTSecret
	}

	cfg.EnvFileLoaded = envErr == nil
	return cfg, nil
}

func (c *Config) IsRelease() bool {
	return c.Env == "release" || c.Env == "production"
}

// DSN is the postgres connection string.
func (c *Config) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s",
		c.DBUser, c.DBPassword, c.DBHost, c.DBPort, c.DBName, c.DBSSLMode)
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func getList(key string, fallback []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
