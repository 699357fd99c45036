package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds application configuration
type Config struct {
	Port          string
	Env           string
	LogLevel      string
	PublicBaseURL string

	// Durable ticket storage. Empty disables persistence (tickets live in
	// the pending store only, which is how local demos run).
	DatabaseURL string

	// Pending-ticket working store. Memory by default; Redis when several
	// API instances share the validation window.
	UseRedisPending bool
	RedisAddr       string
	RedisPassword   string
	RedisTLS        bool
	PendingTTL      time.Duration

	// Circuit breaker tuning for outbound dependencies.
	BreakerFailureThreshold int
	BreakerRecoveryTimeout  time.Duration
	BreakerSuccessThreshold int
	BreakerCallTimeout      time.Duration

	// Optional AI enrichment of tone analysis.
	AIEnabled      bool
	AWSRegion      string
	BedrockModelID string
}

// Load reads configuration from environment variables
func Load() *Config {
	return &Config{
		Port:          getEnv("PORT", "8080"),
		Env:           getEnv("ENV", "development"),
		LogLevel:      getEnv("LOG_LEVEL", "info"),
		PublicBaseURL: getEnv("PUBLIC_BASE_URL", "https://mobilierdefrance.com"),

		DatabaseURL: getEnv("DATABASE_URL", ""),

		UseRedisPending: getEnvAsBool("USE_REDIS_PENDING", false),
		RedisAddr:       getEnv("REDIS_ADDR", "redis:6379"),
		RedisPassword:   getEnv("REDIS_PASSWORD", ""),
		RedisTLS:        getEnvAsBool("REDIS_TLS", false),
		PendingTTL:      getEnvAsDuration("PENDING_TICKET_TTL", 72*time.Hour),

		BreakerFailureThreshold: getEnvAsInt("BREAKER_FAILURE_THRESHOLD", 5),
		BreakerRecoveryTimeout:  getEnvAsDuration("BREAKER_RECOVERY_TIMEOUT", 60*time.Second),
		BreakerSuccessThreshold: getEnvAsInt("BREAKER_SUCCESS_THRESHOLD", 2),
		BreakerCallTimeout:      getEnvAsDuration("BREAKER_CALL_TIMEOUT", 30*time.Second),

		AIEnabled:      getEnvAsBool("AI_ENABLED", false),
		AWSRegion:      getEnv("AWS_REGION", "eu-west-3"),
		BedrockModelID: getEnv("BEDROCK_MODEL_ID", ""),
	}
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt retrieves an environment variable as an integer or returns a default value
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsBool retrieves an environment variable as a boolean or returns a default value
func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}
