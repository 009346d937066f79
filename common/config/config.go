package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds all engine configuration
type Config struct {
	Service   ServiceConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Adapters  AdapterConfig
	Credits   CreditConfig
	RateLimit RateLimitConfig
}

// ServiceConfig holds service-specific settings
type ServiceConfig struct {
	Name        string
	Port        int
	Environment string
	LogLevel    string
	LogFormat   string
	MetricsPort int
}

// DatabaseConfig holds Postgres connection settings
type DatabaseConfig struct {
	Host        string
	Port        int
	Database    string
	User        string
	Password    string
	MaxConns    int
	MinConns    int
	MaxIdleTime time.Duration
	MaxLifetime time.Duration
}

// RedisConfig holds Redis connection settings for the run queue and
// cancellation flags
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	Stream   string
	Group    string
}

// AdapterConfig holds endpoints and credentials for the external
// compute, inference, transfer and storage services
type AdapterConfig struct {
	NillionBaseURL   string
	NillionAPIKey    string
	NilaiBaseURL     string
	NilaiAPIKey      string
	NilaiModel       string
	ZcashRPCURL      string
	ZcashFromAddress string
	NildbBaseURL     string
	NildbAPIKey      string
	HTTPTimeout      time.Duration
	MPCPollInterval  time.Duration
	MPCPollAttempts  int
}

// CreditConfig holds credit accounting settings
type CreditConfig struct {
	BaseRunCost int
}

// RateLimitConfig bounds runs started per org
type RateLimitConfig struct {
	Enabled       bool
	RunsPerMinute int
}

// Load loads configuration from environment variables
func Load(serviceName string) (*Config, error) {
	cfg := &Config{
		Service: ServiceConfig{
			Name:        serviceName,
			Port:        getEnvInt("PORT", 8080),
			Environment: getEnv("ENVIRONMENT", "development"),
			LogLevel:    getEnv("LOG_LEVEL", "info"),
			LogFormat:   getEnv("LOG_FORMAT", "text"),
			MetricsPort: getEnvInt("METRICS_PORT", 9090),
		},
		Database: DatabaseConfig{
			Host:        getEnv("POSTGRES_HOST", "localhost"),
			Port:        getEnvInt("POSTGRES_PORT", 5432),
			Database:    getEnv("POSTGRES_DB", "zecflow"),
			User:        getEnv("POSTGRES_USER", "zecflow"),
			Password:    getEnv("POSTGRES_PASSWORD", "zecflow"),
			MaxConns:    getEnvInt("POSTGRES_MAX_CONNS", 50),
			MinConns:    getEnvInt("POSTGRES_MIN_CONNS", 10),
			MaxIdleTime: getEnvDuration("POSTGRES_MAX_IDLE_TIME", 30*time.Minute),
			MaxLifetime: getEnvDuration("POSTGRES_MAX_LIFETIME", time.Hour),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
			Stream:   getEnv("RUN_STREAM", "zf.runs.requested"),
			Group:    getEnv("RUN_CONSUMER_GROUP", "engine_workers"),
		},
		Adapters: AdapterConfig{
			NillionBaseURL:   getEnv("NILLION_BASE_URL", "http://localhost:8100"),
			NillionAPIKey:    getEnv("NILLION_API_KEY", ""),
			NilaiBaseURL:     getEnv("NILAI_BASE_URL", "http://localhost:8200"),
			NilaiAPIKey:      getEnv("NILAI_API_KEY", ""),
			NilaiModel:       getEnv("NILAI_MODEL", "meta-llama/Llama-3.1-8B-Instruct"),
			ZcashRPCURL:      getEnv("ZCASH_RPC_URL", "http://localhost:8232"),
			ZcashFromAddress: getEnv("ZCASH_FROM_ADDRESS", ""),
			NildbBaseURL:     getEnv("NILDB_BASE_URL", "http://localhost:8300"),
			NildbAPIKey:      getEnv("NILDB_API_KEY", ""),
			HTTPTimeout:      getEnvDuration("ADAPTER_HTTP_TIMEOUT", 30*time.Second),
			MPCPollInterval:  getEnvDuration("MPC_POLL_INTERVAL", 2*time.Second),
			MPCPollAttempts:  getEnvInt("MPC_POLL_ATTEMPTS", 60),
		},
		Credits: CreditConfig{
			BaseRunCost: getEnvInt("CREDIT_BASE_RUN_COST", 1),
		},
		RateLimit: RateLimitConfig{
			Enabled:       getEnvBool("RATE_LIMIT_ENABLED", true),
			RunsPerMinute: getEnvInt("RATE_LIMIT_RUNS_PER_MINUTE", 60),
		},
	}

	return cfg, nil
}

// DatabaseURL builds a Postgres connection string
func (c *Config) DatabaseURL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable",
		c.Database.User,
		c.Database.Password,
		c.Database.Host,
		c.Database.Port,
		c.Database.Database,
	)
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if value, ok := os.LookupEnv(key); ok {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if value, ok := os.LookupEnv(key); ok {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return fallback
}
