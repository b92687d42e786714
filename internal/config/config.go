package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const ServiceVersion = "0.1.0"

// Service names double as consumer group ids.
const (
	OrderServiceName     = "order-service"
	InventoryServiceName = "inventory-service"
	PaymentServiceName   = "payment-service"
	ProjectorServiceName = "projector-service"
	CatalogServiceName   = "catalog-service"
	UserServiceName      = "user-service"
	CLIName              = "sagactl"
)

const (
	CorrelationHeader = "X-Correlation-Id"
	TopicPartitions   = 3
	ReplicationFactor = 1
	BatchTimeout      = 10 * time.Millisecond
	BatchSize         = 100
	WorkerQueueSize   = 64
)

const (
	LogsPath      = "/otlp/v1/logs"
	TracesPath    = "/otlp/v1/traces"
	MetricsPath   = "/otlp/v1/metrics"
	ExportTimeout = 30 * time.Second
	MaxQueueSize  = 2048
)

type Config struct {
	ServiceName    string
	KafkaBrokers   []string
	CreateTopics   bool
	OtelEndpoint   string
	OtelAuthHeader string
	HTTPAddr       string

	Workers           int
	HandlerMaxRetries int

	DatabaseURL        string
	OutboxPollInterval time.Duration
	OutboxBatchSize    int

	RedisAddr            string
	RedisPassword        string
	ReservationTTL       time.Duration
	ReservationMarkerTTL time.Duration

	MongoURI      string
	MongoDatabase string
}

// OtelEnabled reports whether OTLP exporters should be configured.
func (c *Config) OtelEnabled() bool {
	return c.OtelEndpoint != ""
}

// LoadConfig reads the environment for the named service and checks the
// variables that service cannot run without.
func LoadConfig(service string) (*Config, error) {
	config := &Config{
		ServiceName:    service,
		KafkaBrokers:   SplitBrokers(os.Getenv("KAFKA_BROKERS")),
		OtelEndpoint:   os.Getenv("OTEL_ENDPOINT"),
		OtelAuthHeader: os.Getenv("OTEL_AUTH_HEADER"),
		HTTPAddr:       getEnv("HTTP_ADDR", ":8080"),
		DatabaseURL:    os.Getenv("DATABASE_URL"),
		RedisAddr:      os.Getenv("REDIS_ADDR"),
		RedisPassword:  os.Getenv("REDIS_PASSWORD"),
		MongoURI:       os.Getenv("MONGO_URI"),
		MongoDatabase:  getEnv("MONGO_DATABASE", "ecommerce"),
	}

	var err error
	if config.CreateTopics, err = boolEnv("KAFKA_CREATE_TOPICS", false); err != nil {
		return nil, err
	}
	if config.Workers, err = intEnv("WORKERS", 8); err != nil {
		return nil, err
	}
	if config.HandlerMaxRetries, err = intEnv("HANDLER_MAX_RETRIES", 3); err != nil {
		return nil, err
	}
	if config.OutboxBatchSize, err = intEnv("OUTBOX_BATCH_SIZE", 100); err != nil {
		return nil, err
	}
	if config.OutboxPollInterval, err = durationEnv("OUTBOX_POLL_INTERVAL", 500*time.Millisecond); err != nil {
		return nil, err
	}
	if config.ReservationTTL, err = durationEnv("RESERVATION_TTL", 24*time.Hour); err != nil {
		return nil, err
	}
	if config.ReservationMarkerTTL, err = durationEnv("RESERVATION_MARKER_TTL", 7*24*time.Hour); err != nil {
		return nil, err
	}

	if len(config.KafkaBrokers) == 0 {
		return nil, fmt.Errorf("KAFKA_BROKERS environment variable is required")
	}
	if config.Workers < 1 {
		return nil, fmt.Errorf("WORKERS must be at least 1, got %d", config.Workers)
	}
	if config.OtelEndpoint != "" && config.OtelAuthHeader == "" {
		return nil, fmt.Errorf("OTEL_AUTH_HEADER environment variable is required when OTEL_ENDPOINT is set")
	}

	switch service {
	case OrderServiceName, CatalogServiceName, UserServiceName:
		if config.DatabaseURL == "" {
			return nil, fmt.Errorf("DATABASE_URL environment variable is required")
		}
	case InventoryServiceName:
		if config.RedisAddr == "" {
			return nil, fmt.Errorf("REDIS_ADDR environment variable is required")
		}
	case ProjectorServiceName:
		if config.MongoURI == "" {
			return nil, fmt.Errorf("MONGO_URI environment variable is required")
		}
	}

	return config, nil
}

// SplitBrokers parses a comma separated broker list.
func SplitBrokers(csv string) []string {
	brokers := []string{}
	for _, b := range strings.Split(csv, ",") {
		b = strings.TrimSpace(b)
		if b != "" {
			brokers = append(brokers, b)
		}
	}
	return brokers
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func intEnv(key string, defaultValue int) (int, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return v, nil
}

func boolEnv(key string, defaultValue bool) (bool, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("%s: %w", key, err)
	}
	return v, nil
}

func durationEnv(key string, defaultValue time.Duration) (time.Duration, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue, nil
	}
	v, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return v, nil
}
