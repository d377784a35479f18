package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// RiotConfig configures the tournament provider client.
type RiotConfig struct {
	BaseURL     string
	APIKey      string
	CallbackURL string
}

type Config struct {
	// Server configuration
	Environment string

	// Redis configuration
	RedisURL      string
	RedisPassword string
	RedisDB       int

	// PubNub configuration
	PubNubPublishKey   string
	PubNubSubscribeKey string
	PubNubSecretKey    string

	// Tournament provider
	Riot RiotConfig

	// Scheduler configuration
	AbandonGraceWindow time.Duration

	// Mutation lock configuration
	MutationLockTTL time.Duration

	// Rate limiting
	MutationRateLimit  int
	MutationRateWindow time.Duration

	// Monitoring
	EnableMetrics bool
}

func LoadConfig() *Config {
	// .env is optional; real deployments set the environment directly
	_ = godotenv.Load()

	return &Config{
		// Server
		Environment: getEnv("ENVIRONMENT", "development"),

		// Redis
		RedisURL:      getEnv("REDIS_URL", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvAsInt("REDIS_DB", 0),

		// PubNub
		PubNubPublishKey:   getEnv("PUBNUB_PUBLISH_KEY", ""),
		PubNubSubscribeKey: getEnv("PUBNUB_SUBSCRIBE_KEY", ""),
		PubNubSecretKey:    getEnv("PUBNUB_SECRET_KEY", ""),

		// Riot tournament API
		Riot: RiotConfig{
			BaseURL:     getEnv("RIOT_API_BASE_URL", "https://americas.api.riotgames.com"),
			APIKey:      getEnv("RIOT_API_KEY", ""),
			CallbackURL: getEnv("RIOT_CALLBACK_URL", ""),
		},

		// Scheduler
		AbandonGraceWindow: getEnvAsDuration("ABANDON_GRACE_WINDOW", "30m"),

		// Mutation locks
		MutationLockTTL: getEnvAsDuration("MUTATION_LOCK_TTL", "10s"),

		// Rate limiting
		MutationRateLimit:  getEnvAsInt("MUTATION_RATE_LIMIT", 30),
		MutationRateWindow: getEnvAsDuration("MUTATION_RATE_WINDOW", "1m"),

		// Monitoring
		EnableMetrics: getEnvAsBool("ENABLE_METRICS", true),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue string) time.Duration {
	valueStr := getEnv(key, defaultValue)
	if duration, err := time.ParseDuration(valueStr); err == nil {
		return duration
	}
	// If parsing fails, try to parse default value
	duration, _ := time.ParseDuration(defaultValue)
	return duration
}
