package common

import (
	"os"
	"strconv"
	"time"
)

// Config holds all application configuration
type Config struct {
	Database DatabaseConfig
	Ingest   IngestConfig
	Export   ExportConfig
}

// DatabaseConfig holds database-related configuration
type DatabaseConfig struct {
	DSN              string
	MaxConns         int32
	MinConns         int32
	MaxConnLifetime  time.Duration
	MaxConnIdleTime  time.Duration
	DialTimeout      time.Duration
	StatementTimeout time.Duration
}

// IngestConfig holds ingestion-related configuration
type IngestConfig struct {
	// AliasConfigPath points to a JSON alias table overriding the embedded
	// defaults. Empty means use the embedded configuration.
	AliasConfigPath string
	// DefaultDelimiter is the delimiter requested when the caller gives none.
	DefaultDelimiter string
	// SniffBytes bounds how much of the file the delimiter sniffer reads.
	SniffBytes int
}

// ExportConfig holds export-related configuration
type ExportConfig struct {
	OutputDir string
	MaxRows   int
}

// LoadConfig loads configuration from environment variables
func LoadConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			DSN:              getEnv("DB_URL", "file:facturation.db"),
			MaxConns:         getEnvAsInt32("DB_MAX_CONNS", 10),
			MinConns:         getEnvAsInt32("DB_MIN_CONNS", 2),
			MaxConnLifetime:  getEnvAsDuration("DB_MAX_CONN_LIFETIME", 30*time.Minute),
			MaxConnIdleTime:  getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", 5*time.Minute),
			DialTimeout:      getEnvAsDuration("DB_DIAL_TIMEOUT", 3*time.Second),
			StatementTimeout: getEnvAsDuration("DB_STATEMENT_TIMEOUT", 0),
		},
		Ingest: IngestConfig{
			AliasConfigPath:  getEnv("ALIAS_CONFIG_PATH", ""),
			DefaultDelimiter: getEnv("CSV_DELIMITER", ";"),
			SniffBytes:       getEnvAsInt("CSV_SNIFF_BYTES", 64*1024),
		},
		Export: ExportConfig{
			OutputDir: getEnv("EXPORT_DIR", "."),
			MaxRows:   getEnvAsInt("EXPORT_MAX_ROWS", 50000),
		},
	}
}

// Helper functions for environment variable parsing
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsInt32(key string, defaultValue int32) int32 {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.ParseInt(value, 10, 32); err == nil {
			return int32(intVal)
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// Validate validates the loaded configuration
func (c *Config) Validate() error {
	if c.Database.DSN == "" {
		return NewAppError("CONFIG_ERROR", "DB_URL is required", ErrInvalidInput)
	}
	if c.Ingest.DefaultDelimiter == "" {
		return NewAppError("CONFIG_ERROR", "CSV_DELIMITER must not be empty", ErrInvalidInput)
	}
	if c.Export.MaxRows <= 0 {
		return NewAppError("CONFIG_ERROR", "EXPORT_MAX_ROWS must be positive", ErrInvalidInput)
	}
	return nil
}
