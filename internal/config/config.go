package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Kafka    KafkaConfig
	Quotes   QuotesConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port string
	Host string
}

// DatabaseConfig holds PostgreSQL configuration
type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// RedisConfig holds the quote cache configuration
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	QuoteTTL time.Duration
}

// KafkaConfig holds Kafka configuration. Empty Brokers disables both the
// event producer and the fills consumer.
type KafkaConfig struct {
	Brokers    []string
	EventTopic string
	FillsTopic string
	GroupID    string
}

// QuotesConfig holds quote provider and refresh settings
type QuotesConfig struct {
	BaseURL          string
	FallbackURL      string
	RefreshInterval  time.Duration
	BatchSize        int
	PerSymbolTimeout time.Duration
}

// Load reads configuration from environment variables
func Load() *Config {
	return &Config{
		Server: ServerConfig{
			Port: getEnv("SERVER_PORT", "8080"),
			Host: getEnv("SERVER_HOST", "0.0.0.0"),
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", "postgres"),
			DBName:   getEnv("DB_NAME", "stockfolio"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
			QuoteTTL: getEnvDuration("QUOTE_CACHE_TTL", 30*time.Second),
		},
		Kafka: KafkaConfig{
			Brokers:    splitNonEmpty(getEnv("KAFKA_BROKERS", "")),
			EventTopic: getEnv("KAFKA_EVENT_TOPIC", "portfolio-events"),
			FillsTopic: getEnv("KAFKA_FILLS_TOPIC", "trade-fills"),
			GroupID:    getEnv("KAFKA_GROUP_ID", "stockfolio"),
		},
		Quotes: QuotesConfig{
			BaseURL:          getEnv("QUOTES_BASE_URL", "https://query1.finance.yahoo.com/v8/finance/chart"),
			FallbackURL:      getEnv("QUOTES_FALLBACK_URL", "https://query2.finance.yahoo.com/v8/finance/chart"),
			RefreshInterval:  getEnvDuration("QUOTES_REFRESH_INTERVAL", time.Minute),
			BatchSize:        getEnvInt("QUOTES_BATCH_SIZE", 8),
			PerSymbolTimeout: getEnvDuration("QUOTES_SYMBOL_TIMEOUT", 5*time.Second),
		},
	}
}

// ConnectionString returns the PostgreSQL connection string
func (d *DatabaseConfig) ConnectionString() string {
	return "postgres://" + d.User + ":" + d.Password + "@" + d.Host + ":" + d.Port + "/" + d.DBName + "?sslmode=" + d.SSLMode
}

// Enabled reports whether Kafka integration is configured
func (k *KafkaConfig) Enabled() bool {
	return len(k.Brokers) > 0
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func splitNonEmpty(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
