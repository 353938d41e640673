package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config is centralized process configuration.
// Keep infra values here and pass typed config into builders.
type Config struct {
	ServiceName  string
	HTTPPort     string
	PostgresDSN  string
	RedisURL     string
	KafkaBrokers []string

	MaxBundleSize      int
	RetentionDays      int
	SweepBatchSize     int
	SweepInterval      time.Duration
	AuthorizationTTL   time.Duration
	EventDedupTTL      time.Duration
	EnableResultIntake bool
	EnableRetention    bool
}

func Load() (Config, error) {
	service := os.Getenv("SERVICE_NAME")
	if service == "" {
		service = "gridgate"
	}

	port := os.Getenv("HTTP_PORT")
	if port == "" {
		port = "8080"
	}

	var brokers []string
	for _, value := range strings.Split(os.Getenv("KAFKA_BROKERS"), ",") {
		value = strings.TrimSpace(value)
		if value != "" {
			brokers = append(brokers, value)
		}
	}
	if len(brokers) == 0 {
		brokers = []string{"localhost:9092"}
	}

	return Config{
		ServiceName:  service,
		HTTPPort:     port,
		PostgresDSN:  os.Getenv("POSTGRES_DSN"),
		RedisURL:     os.Getenv("REDIS_URL"),
		KafkaBrokers: brokers,

		MaxBundleSize:      envInt("MAX_BUNDLE_SIZE", 2000),
		RetentionDays:      envInt("BUNDLE_RETENTION_DAYS", 30),
		SweepBatchSize:     envInt("RETENTION_SWEEP_BATCH_SIZE", 500),
		SweepInterval:      envDuration("RETENTION_SWEEP_INTERVAL", time.Hour),
		AuthorizationTTL:   envDuration("AUTHORIZATION_CACHE_TTL", 5*time.Minute),
		EventDedupTTL:      envDuration("EVENT_DEDUP_TTL", 7*24*time.Hour),
		EnableResultIntake: envBool("ENABLE_RESULT_INTAKE_CONSUMER", true),
		EnableRetention:    envBool("ENABLE_RETENTION_SWEEPER", true),
	}, nil
}

func envInt(name string, fallback int) int {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value <= 0 {
		return fallback
	}
	return value
}

func envDuration(name string, fallback time.Duration) time.Duration {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return fallback
	}
	value, err := time.ParseDuration(raw)
	if err != nil || value <= 0 {
		return fallback
	}
	return value
}

func envBool(name string, fallback bool) bool {
	raw := strings.TrimSpace(strings.ToLower(os.Getenv(name)))
	if raw == "" {
		return fallback
	}
	switch raw {
	case "1", "true", "t", "yes", "y", "on":
		return true
	case "0", "false", "f", "no", "n", "off":
		return false
	default:
		return fallback
	}
}
