package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

type Config struct {
	// Server
	Port string
	Env  string

	// Database
	DatabaseURL string

	// Redis
	RedisURL string

	// JWT
	JWTSecret string

	// Inference providers
	ProviderAPIKey     string
	PrimaryModelURL    string
	FallbackModelURL   string
	GeminiAPIKey       string
	GeminiModel        string
	ProviderTimeoutSec int

	// Generation parameters
	GenMaxTokens   int
	GenTemperature float64
	GenTopP        float64

	// Chat rate limiting
	ChatRateLimit     int
	ChatRateWindowMin int

	// History
	HistoryCacheTTLMin int
	HistoryWindow      int

	// Frontend
	FrontendURL string
}

func Load() *Config {
	// Load .env file if it exists
	godotenv.Load()

	cfg := &Config{
		Port:               getEnvOrDefault("PORT", "8080"),
		Env:                getEnvOrDefault("ENV", "development"),
		DatabaseURL:        mustGetEnv("DATABASE_URL"),
		RedisURL:           mustGetEnv("REDIS_URL"),
		JWTSecret:          mustGetEnv("JWT_SECRET"),
		ProviderAPIKey:     mustGetEnv("PROVIDER_API_KEY"),
		PrimaryModelURL:    mustGetEnv("PRIMARY_MODEL_URL"),
		FallbackModelURL:   getEnvOrDefault("FALLBACK_MODEL_URL", ""),
		GeminiAPIKey:       getEnvOrDefault("GEMINI_API_KEY", ""),
		GeminiModel:        getEnvOrDefault("GEMINI_MODEL", "gemini-2.0-flash"),
		ProviderTimeoutSec: getEnvAsIntOrDefault("PROVIDER_TIMEOUT_SECONDS", 30),
		GenMaxTokens:       getEnvAsIntOrDefault("GEN_MAX_TOKENS", 500),
		GenTemperature:     getEnvAsFloatOrDefault("GEN_TEMPERATURE", 0.7),
		GenTopP:            getEnvAsFloatOrDefault("GEN_TOP_P", 0.95),
		ChatRateLimit:      getEnvAsIntOrDefault("CHAT_RATE_LIMIT", 100),
		ChatRateWindowMin:  getEnvAsIntOrDefault("CHAT_RATE_WINDOW_MINUTES", 15),
		HistoryCacheTTLMin: getEnvAsIntOrDefault("HISTORY_CACHE_TTL_MINUTES", 5),
		HistoryWindow:      getEnvAsIntOrDefault("HISTORY_WINDOW", 5),
		FrontendURL:        getEnvOrDefault("FRONTEND_URL", "http://localhost:5173"),
	}

	return cfg
}

func mustGetEnv(key string) string {
	val := os.Getenv(key)
	if val == "" {
		panic(fmt.Sprintf("required environment variable %s is not set", key))
	}
	return val
}

func getEnvOrDefault(key, defaultVal string) string {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	return val
}

func getEnvAsIntOrDefault(key string, defaultVal int) int {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return defaultVal
	}
	return n
}

func getEnvAsFloatOrDefault(key string, defaultVal float64) float64 {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	f, err := strconv.ParseFloat(val, 64)
	if err != nil {
		return defaultVal
	}
	return f
}
