package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	App struct {
		Port        string
		Debug       bool
		FrontendURL string
	}
	DB struct {
		Host     string
		Port     string
		User     string
		Password string
		DBName   string
		SSLMode  string
	}
	Redis struct {
		Host     string
		Port     string
		Password string
		DB       int
	}
	Registry struct {
		SampleURL string
		ResultURL string
		Timeout   time.Duration
	}
	Kafka struct {
		Enabled bool
		Brokers []string
		Topic   string
	}
	Workers struct {
		NotifyEnabled  bool
		NotifyInterval time.Duration
	}
	RateLimit struct {
		RequestsPerSecond int
		Burst             int
	}
}

func Load() *Config {
	cfg := &Config{}

	// App
	cfg.App.Port = getEnv("PORT", "8080")
	cfg.App.Debug = getEnvAsBool("DEBUG", false)
	cfg.App.FrontendURL = getEnv("FRONTEND_URL", "http://localhost:3000")

	// DB
	cfg.DB.Host = getEnv("DB_HOST", "localhost")
	cfg.DB.Port = getEnv("DB_PORT", "5432")
	cfg.DB.User = getEnv("DB_USER", "postgres")
	cfg.DB.Password = getEnv("DB_PASSWORD", "postgres")
	cfg.DB.DBName = getEnv("DB_NAME", "pharma_qa")
	cfg.DB.SSLMode = getEnv("DB_SSLMODE", "disable")

	// Redis
	cfg.Redis.Host = getEnv("REDIS_HOST", "localhost")
	cfg.Redis.Port = getEnv("REDIS_PORT", "6379")
	cfg.Redis.Password = getEnv("REDIS_PASSWORD", "")
	cfg.Redis.DB = getEnvAsInt("REDIS_DB", 0)

	// Реестры проб и результатов (соседние сервисы ERP)
	cfg.Registry.SampleURL = getEnv("SAMPLE_REGISTRY_URL", "http://localhost:8081")
	cfg.Registry.ResultURL = getEnv("RESULT_REGISTRY_URL", "http://localhost:8082")
	cfg.Registry.Timeout = getEnvAsDuration("REGISTRY_TIMEOUT", 10*time.Second)

	// Kafka (складской топик); при выключенной Kafka работает лог-заглушка
	cfg.Kafka.Enabled = getEnvAsBool("KAFKA_ENABLED", false)
	cfg.Kafka.Brokers = getEnvAsSlice("KAFKA_BROKERS", []string{"localhost:9092"})
	cfg.Kafka.Topic = getEnv("KAFKA_PUTAWAY_TOPIC", "warehouse.putaway")

	// Workers
	cfg.Workers.NotifyEnabled = getEnvAsBool("NOTIFY_WORKER_ENABLED", true)
	cfg.Workers.NotifyInterval = getEnvAsDuration("NOTIFY_WORKER_INTERVAL", 60*time.Second)

	// Rate Limit
	cfg.RateLimit.RequestsPerSecond = getEnvAsInt("RATE_LIMIT_RPS", 10)
	cfg.RateLimit.Burst = getEnvAsInt("RATE_LIMIT_BURST", 20)

	return cfg
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if dur, err := time.ParseDuration(value); err == nil {
			return dur
		}
	}
	return defaultValue
}

func getEnvAsSlice(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		parts := strings.Split(value, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			if trimmed := strings.TrimSpace(p); trimmed != "" {
				out = append(out, trimmed)
			}
		}
		if len(out) > 0 {
			return out
		}
	}
	return defaultValue
}
