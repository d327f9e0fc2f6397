package config

import (
	"fmt"
	"os"
	"strconv"
)

// Config holds all application configuration
type Config struct {
	ServiceName string
	ServicePort int
	Database    DatabaseConfig
	RabbitMQ    RabbitMQConfig
	Thresholds  ThresholdConfig
	Report      ReportConfig
}

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	URL string
}

// RabbitMQConfig holds RabbitMQ connection and queue settings
type RabbitMQConfig struct {
	URL              string
	IngestExchange   string
	IngestQueue      string
	IngestRoutingKey string
	EventExchange    string
	EventRoutingKey  string
	DLQQueue         string
	PrefetchCount    int
}

// ThresholdConfig holds the default classification bands applied to new
// meters and the default device shutdown threshold. Individual devices and
// meters may override these at registration time.
type ThresholdConfig struct {
	LowBatteryPct      float64
	CriticalBatteryPct float64
	FullChargePct      float64
	ShutdownWatts      float64
}

// ReportConfig holds report export settings
type ReportConfig struct {
	EventFetchLimit int
	EventEmbedLimit int
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{
		ServiceName: getEnv("SERVICE_NAME", "power-manager"),
		ServicePort: getEnvAsInt("SERVICE_PORT", 8082),
		Database: DatabaseConfig{
			URL: getEnv("DATABASE_URL", ""),
		},
		RabbitMQ: RabbitMQConfig{
			URL:              getEnv("RABBITMQ_URL", ""),
			IngestExchange:   getEnv("RABBITMQ_INGEST_EXCHANGE", "power-manager.ingest.exchange"),
			IngestQueue:      getEnv("RABBITMQ_INGEST_QUEUE", "power-manager.ingest.queue"),
			IngestRoutingKey: getEnv("RABBITMQ_INGEST_ROUTING_KEY", "power.reading.raw"),
			EventExchange:    getEnv("RABBITMQ_EVENT_EXCHANGE", "power-manager.events.exchange"),
			EventRoutingKey:  getEnv("RABBITMQ_EVENT_ROUTING_KEY", "power.event.emitted"),
			DLQQueue:         getEnv("RABBITMQ_DLQ_QUEUE", "power-manager.ingest.dlq"),
			PrefetchCount:    getEnvAsInt("RABBITMQ_PREFETCH", 10),
		},
		Thresholds: ThresholdConfig{
			LowBatteryPct:      getEnvAsFloat("POWER_LOW_BATTERY_PCT", 20.0),
			CriticalBatteryPct: getEnvAsFloat("POWER_CRITICAL_BATTERY_PCT", 5.0),
			FullChargePct:      getEnvAsFloat("POWER_FULL_CHARGE_PCT", 95.0),
			ShutdownWatts:      getEnvAsFloat("POWER_SHUTDOWN_WATTS", 3.0),
		},
		Report: ReportConfig{
			EventFetchLimit: getEnvAsInt("REPORT_EVENT_FETCH_LIMIT", 200),
			EventEmbedLimit: getEnvAsInt("REPORT_EVENT_EMBED_LIMIT", 20),
		},
	}

	// Validate required fields
	if cfg.Database.URL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required but not set in environment variables")
	}
	if cfg.RabbitMQ.URL == "" {
		return nil, fmt.Errorf("RABBITMQ_URL is required but not set in environment variables")
	}

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}
	return value
}
