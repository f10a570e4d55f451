package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	// Server
	Port string // default: 8080

	// Database
	PostgresDSN string

	// Cache / counters
	RedisAddr string

	// Providers
	OpenAIAPIKey    string
	AnthropicAPIKey string
	GeminiAPIKey    string

	// Observability
	OTELExporterType     string // "stdout" or "otlp"
	OTELExporterEndpoint string // default: "localhost:4317"
	Env                  string // "development" or "production"

	// Rate limiting: requests per fixed window, per tier
	RateLimitDefault       int
	RateLimitDefaultWindow time.Duration
	RateLimitStrict        int
	RateLimitStrictWindow  time.Duration

	// Response cache
	CacheTTL time.Duration

	// Upstream call budget
	ProviderTimeout time.Duration
}

func Load() (*Config, error) {
	// Load .env file if present (non-fatal if missing)
	_ = godotenv.Load()

	cfg := &Config{
		Port:                 getEnv("PORT", "8080"),
		PostgresDSN:          os.Getenv("POSTGRES_DSN"),
		RedisAddr:            os.Getenv("REDIS_ADDR"),
		OpenAIAPIKey:         os.Getenv("OPENAI_API_KEY"),
		AnthropicAPIKey:      os.Getenv("ANTHROPIC_API_KEY"),
		GeminiAPIKey:         os.Getenv("GEMINI_API_KEY"),
		OTELExporterType:     getEnv("OTEL_EXPORTER_TYPE", "stdout"),
		OTELExporterEndpoint: getEnv("OTEL_EXPORTER_ENDPOINT", "localhost:4317"),
		Env:                  getEnv("APP_ENV", "development"),
	}

	var err error
	if cfg.RateLimitDefault, err = getIntEnv("RATE_LIMIT_DEFAULT", 100); err != nil {
		return nil, err
	}
	if cfg.RateLimitDefaultWindow, err = getDurationEnv("RATE_LIMIT_DEFAULT_WINDOW", 15*time.Minute); err != nil {
		return nil, err
	}
	if cfg.RateLimitStrict, err = getIntEnv("RATE_LIMIT_STRICT", 20); err != nil {
		return nil, err
	}
	if cfg.RateLimitStrictWindow, err = getDurationEnv("RATE_LIMIT_STRICT_WINDOW", 15*time.Minute); err != nil {
		return nil, err
	}
	if cfg.CacheTTL, err = getDurationEnv("CACHE_TTL", time.Hour); err != nil {
		return nil, err
	}
	if cfg.ProviderTimeout, err = getDurationEnv("PROVIDER_TIMEOUT", 60*time.Second); err != nil {
		return nil, err
	}

	// Validation
	if cfg.PostgresDSN == "" {
		return nil, fmt.Errorf("POSTGRES_DSN is required")
	}
	if cfg.RedisAddr == "" {
		return nil, fmt.Errorf("REDIS_ADDR is required")
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getIntEnv(key string, fallback int) (int, error) {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}

func getDurationEnv(key string, fallback time.Duration) (time.Duration, error) {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}
