package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds all application configuration
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Asaas    AsaasConfig
	Fallback FallbackConfig
	Recovery RecoveryConfig
	Logger   LoggerConfig
	Cron     CronConfig
}

// ServerConfig holds the ops HTTP server configuration
type ServerConfig struct {
	Host string
	Port int
}

// DatabaseConfig holds PostgreSQL configuration
type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
	MaxConns int32
	MinConns int32
}

// AsaasConfig holds Asaas payment gateway configuration
type AsaasConfig struct {
	BaseURL         string
	APIKey          string // may be overridden by the secret manager
	Timeout         time.Duration
	PartnerWalletID string // static transfer destination of the infrastructure partner
	WebhookToken    string // shared token expected on incoming notifications
}

// FallbackConfig tunes the pending-record retry policy
type FallbackConfig struct {
	MaxAttempts int
	MinRetryAge time.Duration
	BatchSize   int32
}

// RecoveryConfig tunes the recovery orchestrator
type RecoveryConfig struct {
	HealthInterval    time.Duration // fixed period between health checks
	ActionDelay       time.Duration // one-shot delay before automatic remediation
	ActionInterval    time.Duration // minimum spacing between automated actions
	MaxActionAttempts int
	RetryWindow       time.Duration // how far back transient payments are re-queried
	BatchSize         int32
	SnapshotBuffer    int // health snapshot ring capacity
}

// LoggerConfig holds logging configuration
type LoggerConfig struct {
	Level       string // debug, info, warn, error
	Development bool
}

// CronConfig holds the shared secret that authenticates operator endpoints
type CronConfig struct {
	Secret string
}

// LoadFromEnv loads configuration from environment variables
func LoadFromEnv() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Host: getEnv("SERVER_HOST", "0.0.0.0"),
			Port: getEnvAsInt("SERVER_PORT", 8085),
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnvAsInt("DB_PORT", 5432),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", ""),
			Database: getEnv("DB_NAME", "portal"),
			SSLMode:  getEnv("DB_SSL_MODE", "disable"),
			MaxConns: int32(getEnvAsInt("DB_MAX_CONNS", 25)),
			MinConns: int32(getEnvAsInt("DB_MIN_CONNS", 5)),
		},
		Asaas: AsaasConfig{
			BaseURL:         getEnv("ASAAS_BASE_URL", "https://api.asaas.com/v3"),
			APIKey:          getEnv("ASAAS_API_KEY", ""),
			Timeout:         getEnvAsDuration("ASAAS_TIMEOUT", 30*time.Second),
			PartnerWalletID: getEnv("ASAAS_PARTNER_WALLET_ID", ""),
			WebhookToken:    getEnv("ASAAS_WEBHOOK_TOKEN", ""),
		},
		Fallback: FallbackConfig{
			MaxAttempts: getEnvAsInt("FALLBACK_MAX_ATTEMPTS", 5),
			MinRetryAge: getEnvAsDuration("FALLBACK_MIN_RETRY_AGE", 10*time.Minute),
			BatchSize:   int32(getEnvAsInt("FALLBACK_BATCH_SIZE", 50)),
		},
		Recovery: RecoveryConfig{
			HealthInterval:    getEnvAsDuration("RECOVERY_HEALTH_INTERVAL", 2*time.Minute),
			ActionDelay:       getEnvAsDuration("RECOVERY_ACTION_DELAY", 30*time.Second),
			ActionInterval:    getEnvAsDuration("RECOVERY_ACTION_INTERVAL", 5*time.Second),
			MaxActionAttempts: getEnvAsInt("RECOVERY_MAX_ACTION_ATTEMPTS", 3),
			RetryWindow:       getEnvAsDuration("RECOVERY_RETRY_WINDOW", 24*time.Hour),
			BatchSize:         int32(getEnvAsInt("RECOVERY_BATCH_SIZE", 20)),
			SnapshotBuffer:    getEnvAsInt("RECOVERY_SNAPSHOT_BUFFER", 60),
		},
		Logger: LoggerConfig{
			Level:       getEnv("LOG_LEVEL", "info"),
			Development: getEnvAsBool("LOG_DEVELOPMENT", false),
		},
		Cron: CronConfig{
			Secret: getEnv("CRON_SECRET", ""),
		},
	}

	// Validate required fields
	if cfg.Database.Password == "" {
		return nil, fmt.Errorf("DB_PASSWORD is required")
	}
	if cfg.Asaas.PartnerWalletID == "" {
		return nil, fmt.Errorf("ASAAS_PARTNER_WALLET_ID is required")
	}
	if cfg.Cron.Secret == "" {
		return nil, fmt.Errorf("CRON_SECRET is required")
	}

	return cfg, nil
}

// ConnectionString returns PostgreSQL connection string
func (c *DatabaseConfig) ConnectionString() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

// Helper functions

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

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}
