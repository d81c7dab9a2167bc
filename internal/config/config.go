package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Cache    CacheConfig
	Broker   BrokerConfig
	App      AppConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port        string
	Environment string // "development", "staging", "production"
}

// DatabaseConfig holds database connection configuration
type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// CacheConfig holds the Redis caching layer configuration
type CacheConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	TTL      time.Duration
}

// BrokerConfig holds the RabbitMQ connection for click-event fan-out.
// An empty URL disables publishing.
type BrokerConfig struct {
	URL        string
	ClickQueue string
}

// AppConfig holds application-specific configuration
type AppConfig struct {
	BaseURL           string // Base URL for generating short links
	ShortCodeLen      int
	ShortCodeRetries  int
	DefaultExpiryDays int
	MaxExpiryDays     int
	RecentLimit       int
	SweepInterval     time.Duration
	MigrationsPath    string
	OTLPEndpoint      string
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	_ = godotenv.Load()
	return &Config{
		Server: ServerConfig{
			Port:        getEnv("PORT", "8080"),
			Environment: getEnv("ENVIRONMENT", "development"),
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "urlmint"),
			Password: getEnv("DB_PASSWORD", "urlmint_secret"),
			DBName:   getEnv("DB_NAME", "urlmint"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		Cache: CacheConfig{
			Host:     getEnv("RDB_HOST", "localhost"),
			Port:     getEnv("RDB_PORT", "6379"),
			User:     getEnv("RDB_USER", ""),
			Password: getEnv("RDB_PASSWORD", ""),
			TTL:      getEnvDuration("CACHE_TTL", 5*time.Minute),
		},
		Broker: BrokerConfig{
			URL:        getEnv("AMQP_URL", ""),
			ClickQueue: getEnv("AMQP_CLICK_QUEUE", "url.clicks"),
		},
		App: AppConfig{
			BaseURL:           getEnv("BASE_URL", "http://localhost:8080"),
			ShortCodeLen:      getEnvInt("SHORT_CODE_LENGTH", 7),
			ShortCodeRetries:  getEnvInt("SHORT_CODE_MAX_RETRIES", 5),
			DefaultExpiryDays: getEnvInt("DEFAULT_EXPIRY_DAYS", 7),
			MaxExpiryDays:     getEnvInt("MAX_EXPIRY_DAYS", 365),
			RecentLimit:       getEnvInt("STATS_RECENT_LIMIT", 10),
			SweepInterval:     getEnvDuration("SWEEP_INTERVAL", time.Hour),
			MigrationsPath:    getEnv("MIGRATIONS_PATH", "migrations/schema"),
			OTLPEndpoint:      getEnv("OTLP_ENDPOINT", ""),
		},
	}, nil
}

// ConnectionString returns the PostgreSQL connection string
func (d *DatabaseConfig) ConnectionString() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.DBName, d.SSLMode)
}

// ConnectionString returns the Redis connection string
func (c *CacheConfig) ConnectionString() string {
	return fmt.Sprintf("redis://%s:%s@%s:%s/0", c.User, c.Password, c.Host, c.Port)
}

func getEnv(key, defaultVal string) string {
	if val, ok := os.LookupEnv(key); ok {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}
	return defaultVal
}
