package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration loaded from environment variables.
type Config struct {
	Port        int
	JWTSecret   string
	DatabaseURL string
	CORSOrigins []string

	AdminEmail    string
	AdminPassword string

	SquareAccessToken string
	SquareEnvironment string
	SquareLocationID  string
	SquareTimeout     time.Duration

	PlanCacheTTL time.Duration
}

// Load reads configuration from environment variables with sensible defaults.
func Load() (*Config, error) {
	port, _ := strconv.Atoi(getEnv("PORT", "4001"))

	jwtSecret := getEnv("JWT_SECRET", "")
	if jwtSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}

	dbURL := getEnv("DATABASE_URL", "")
	if dbURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	squareToken := getEnv("SQUARE_ACCESS_TOKEN", "")
	if squareToken == "" {
		return nil, fmt.Errorf("SQUARE_ACCESS_TOKEN is required")
	}

	squareEnv := getEnv("SQUARE_ENVIRONMENT", "sandbox")
	if squareEnv != "sandbox" && squareEnv != "production" {
		return nil, fmt.Errorf("SQUARE_ENVIRONMENT must be sandbox or production, got %q", squareEnv)
	}

	squareTimeout, err := time.ParseDuration(getEnv("SQUARE_TIMEOUT", "15s"))
	if err != nil {
		return nil, fmt.Errorf("invalid SQUARE_TIMEOUT: %w", err)
	}

	cacheTTL, err := time.ParseDuration(getEnv("PLAN_CACHE_TTL", "1h"))
	if err != nil {
		return nil, fmt.Errorf("invalid PLAN_CACHE_TTL: %w", err)
	}

	origins := strings.Split(getEnv("CORS_ORIGINS", "http://localhost:3000,http://localhost:3010"), ",")
	for i := range origins {
		origins[i] = strings.TrimSpace(origins[i])
	}

	return &Config{
		Port:              port,
		JWTSecret:         jwtSecret,
		DatabaseURL:       dbURL,
		CORSOrigins:       origins,
		AdminEmail:        getEnv("ADMIN_EMAIL", "admin@protown.app"),
		AdminPassword:     getEnv("ADMIN_PASSWORD", "admin123"),
		SquareAccessToken: squareToken,
		SquareEnvironment: squareEnv,
		SquareLocationID:  getEnv("SQUARE_LOCATION_ID", ""),
		SquareTimeout:     squareTimeout,
		PlanCacheTTL:      cacheTTL,
	}, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
