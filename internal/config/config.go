package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config contains runtime configuration values. Everything is read once at
// startup; nothing here changes while the process runs.
type Config struct {
	Environment string
	HTTPPort    string
	DatabaseURL string
	ServiceName string

	// JWTSecret seeds the access-token signing key.
	JWTSecret      string
	AccessTokenTTL time.Duration

	RefreshTokenTTL   time.Duration
	RefreshTokenBytes int
	// RefreshRotate replaces the refresh-token string on every successful
	// refresh instead of echoing the presented one back.
	RefreshRotate bool
	// RevokeOnLogin deletes an account's outstanding refresh tokens before a
	// login issues a new one, keeping at most one live token per account.
	RevokeOnLogin bool

	AdminUsername string
	AdminPassword string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	LoginMaxFailures int
	LoginLockout     time.Duration
	RateLimitRPM     int

	TelemetryEndpoint string
	TelemetryInsecure bool

	CORSAllowedOrigins   []string
	CORSAllowedMethods   []string
	CORSAllowedHeaders   []string
	CORSAllowCredentials bool
}

// Load reads configuration from environment variables with sane defaults.
func Load() (Config, error) {
	_ = godotenv.Load()

	cfg := Config{
		Environment:          getEnv("APP_ENV", "development"),
		HTTPPort:             getEnv("HTTP_PORT", "8080"),
		DatabaseURL:          os.Getenv("DATABASE_URL"),
		ServiceName:          getEnv("SERVICE_NAME", "authgate"),
		JWTSecret:            os.Getenv("JWT_SECRET"),
		AccessTokenTTL:       getDuration("ACCESS_TOKEN_TTL", 15*time.Minute),
		RefreshTokenTTL:      getDuration("REFRESH_TOKEN_TTL", 30*24*time.Hour),
		RefreshTokenBytes:    getInt("REFRESH_TOKEN_BYTES", 32),
		RefreshRotate:        getBool("REFRESH_TOKEN_ROTATE", false),
		RevokeOnLogin:        getBool("REFRESH_TOKEN_REVOKE_ON_LOGIN", false),
		AdminUsername:        strings.TrimSpace(os.Getenv("ADMIN_USERNAME")),
		AdminPassword:        os.Getenv("ADMIN_PASSWORD"),
		RedisAddr:            os.Getenv("REDIS_ADDR"),
		RedisPassword:        os.Getenv("REDIS_PASSWORD"),
		RedisDB:              getInt("REDIS_DB", 0),
		LoginMaxFailures:     getInt("LOGIN_MAX_FAILURES", 10),
		LoginLockout:         getDuration("LOGIN_LOCKOUT", 5*time.Minute),
		RateLimitRPM:         getInt("RATE_LIMIT_RPM", 600),
		TelemetryEndpoint:    os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
		TelemetryInsecure:    getBool("OTEL_EXPORTER_OTLP_INSECURE", true),
		CORSAllowedOrigins:   getList("CORS_ALLOWED_ORIGINS", []string{"*"}),
		CORSAllowedMethods:   getList("CORS_ALLOWED_METHODS", []string{"GET", "POST", "OPTIONS"}),
		CORSAllowedHeaders:   getList("CORS_ALLOWED_HEADERS", []string{"Authorization", "Content-Type"}),
		CORSAllowCredentials: getBool("CORS_ALLOW_CREDENTIALS", false),
	}

	if cfg.DatabaseURL == "" {
		return Config{}, fmt.Errorf("DATABASE_URL is required")
	}
	if cfg.JWTSecret == "" {
		return Config{}, fmt.Errorf("JWT_SECRET is required")
	}
	if cfg.AdminUsername != "" && cfg.AdminPassword == "" {
		return Config{}, fmt.Errorf("ADMIN_PASSWORD is required when ADMIN_USERNAME is set")
	}

	if cfg.RefreshTokenBytes < 32 {
		cfg.RefreshTokenBytes = 32
	}

	return cfg, nil
}

func getEnv(key, def string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return def
}

func getDuration(key string, def time.Duration) time.Duration {
	if v, ok := os.LookupEnv(key); ok {
		d, err := time.ParseDuration(v)
		if err == nil {
			return d
		}
	}
	return def
}

func getInt(key string, def int) int {
	if v, ok := os.LookupEnv(key); ok {
		n, err := strconv.Atoi(v)
		if err == nil {
			return n
		}
	}
	return def
}

func getBool(key string, def bool) bool {
	if v, ok := os.LookupEnv(key); ok {
		switch strings.ToLower(v) {
		case "1", "true", "t", "yes", "y", "on":
			return true
		case "0", "false", "f", "no", "n", "off":
			return false
		}
	}
	return def
}

func getList(key string, def []string) []string {
	if v, ok := os.LookupEnv(key); ok {
		parts := strings.Split(v, ",")
		var cleaned []string
		for _, p := range parts {
			trimmed := strings.TrimSpace(p)
			if trimmed != "" {
				cleaned = append(cleaned, trimmed)
			}
		}
		if len(cleaned) > 0 {
			return cleaned
		}
	}
	return def
}
