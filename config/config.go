package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	MongoDBURL  string
	MongoDBName string
	RedisURL    string
	PostgresURL string

	ServerPort     string
	AllowedOrigins string
	CookieDomain   string
	Environment    string

	JWTSecret       string
	SessionDuration string

	MinioAccessKey string
	MinioSecretKey string
	MinioEndpoint  string

	OpenRouterAPIKey  string
	OpenRouterBaseURL string
	OpenRouterModels  []string
	OpenRouterTimeout time.Duration

	AIDailyLimit int
}

// getEnvWithDefault gets an environment variable with a default value
func getEnvWithDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func LoadConfig() (*Config, error) {
	// Load .env file if it exists
	godotenv.Load() // Ignore error since file might not exist in production

	// Get environment with default
	env := getEnvWithDefault("ENVIRONMENT", "development")
	env = strings.ToLower(env)

	// Validate environment value
	validEnvs := map[string]bool{
		"development": true,
		"staging":     true,
		"production":  true,
	}
	if !validEnvs[env] {
		return nil, fmt.Errorf("invalid environment value: %s", env)
	}

	jwtSecret := os.Getenv("JWT_SECRET")
	if jwtSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET environment variable is required")
	}

	// Ordered fallback list for the extraction models. Owned here and injected
	// into the extractor, never re-declared per call site.
	var models []string
	for _, m := range strings.Split(os.Getenv("OPENROUTER_MODELS"), ",") {
		if m = strings.TrimSpace(m); m != "" {
			models = append(models, m)
		}
	}

	timeoutSecs, err := strconv.Atoi(getEnvWithDefault("OPENROUTER_TIMEOUT_SECONDS", "30"))
	if err != nil || timeoutSecs <= 0 {
		return nil, fmt.Errorf("invalid OPENROUTER_TIMEOUT_SECONDS value")
	}

	dailyLimit, err := strconv.Atoi(getEnvWithDefault("AI_DAILY_LIMIT", "50"))
	if err != nil || dailyLimit <= 0 {
		return nil, fmt.Errorf("invalid AI_DAILY_LIMIT value")
	}

	// Initialize config with environment variables
	config := &Config{
		Environment: env,

		MongoDBURL:  os.Getenv("MONGODB_URL"),
		MongoDBName: getEnvWithDefault("MONGODB_NAME", "carelog"),
		RedisURL:    os.Getenv("REDIS_URL"),
		PostgresURL: os.Getenv("POSTGRES_URL"),

		ServerPort:     getEnvWithDefault("SERVER_PORT", "8080"),
		AllowedOrigins: getEnvWithDefault("ALLOWED_ORIGINS", "http://localhost:3000"),
		CookieDomain:   getEnvWithDefault("COOKIE_DOMAIN", ""),

		JWTSecret:       jwtSecret,
		SessionDuration: getEnvWithDefault("SESSION_DURATION", "24"),

		MinioAccessKey: os.Getenv("MINIO_ACCESS_KEY"),
		MinioSecretKey: os.Getenv("MINIO_SECRET_KEY"),
		MinioEndpoint:  os.Getenv("MINIO_ENDPOINT"),

		OpenRouterAPIKey:  os.Getenv("OPENROUTER_API_KEY"),
		OpenRouterBaseURL: getEnvWithDefault("OPENROUTER_BASE_URL", "https://openrouter.ai/api/v1"),
		OpenRouterModels:  models,
		OpenRouterTimeout: time.Duration(timeoutSecs) * time.Second,

		AIDailyLimit: dailyLimit,
	}

	return config, nil
}

// IsDevelopment returns whether the current environment is development
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// IsProduction returns whether the current environment is production
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// IsStaging returns whether the current environment is staging
func (c *Config) IsStaging() bool {
	return c.Environment == "staging"
}
