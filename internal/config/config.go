package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	// Database Configuration
	Database DatabaseConfig

	// Log configuration
	LogLevel string

	// Logs Roots Configuration
	Logs LogsConfig

	// Analysis Configuration
	Analysis AnalysisConfig

	// LLM Enrichment Configuration
	LLM LLMConfig

	// Server Configuration
	Server ServerConfig
}

// DatabaseConfig contains database-related settings
type DatabaseConfig struct {
	Path          string
	MaxOpenConns  int
	MaxIdleConns  int
	ConnMaxLife   time.Duration
	RetentionDays int // Number of days to retain reports (0 = unlimited)
	SweepInterval time.Duration
}

// LogsConfig contains the fleet log tree locations
type LogsConfig struct {
	Roots        []string // top-level directories holding {user}/{system}/... trees
	PollInterval time.Duration
	WatchEnabled bool // filesystem notifications on top of the poll ticker
	CatalogPath  string
}

// AnalysisConfig contains pipeline tuning settings
type AnalysisConfig struct {
	WorkerPoolSize  int
	SampleLimit     int // per-issue sample entry cap
	ReportCacheSize int
}

// LLMConfig contains enrichment provider settings
type LLMConfig struct {
	Enabled bool
	BaseURL string
	Model   string
	Timeout time.Duration
}

// ServerConfig contains web server settings
type ServerConfig struct {
	Host       string
	Port       int
	Production bool
}

// Load reads configuration from .env file and environment variables
func Load() (*Config, error) {
	// Try to load .env file (ignore error if file doesn't exist)
	_ = godotenv.Load()

	cfg := &Config{
		Database: DatabaseConfig{
			Path:          getEnv("DB_PATH", "fleetlens.db"),
			MaxOpenConns:  getEnvAsInt("DB_MAX_OPEN_CONNS", 10),
			MaxIdleConns:  getEnvAsInt("DB_MAX_IDLE_CONNS", 3),
			ConnMaxLife:   getEnvAsDuration("DB_CONN_MAX_LIFE", time.Hour),
			RetentionDays: getEnvAsInt("DB_RETENTION_DAYS", 60),
			SweepInterval: getEnvAsDuration("DB_SWEEP_INTERVAL", 1*time.Hour),
		},
		Logs: LogsConfig{
			Roots:        getEnvAsList("LOGS_ROOTS", []string{"logs"}),
			PollInterval: getEnvAsDuration("POLL_INTERVAL", 30*time.Second),
			WatchEnabled: getEnvAsBool("WATCH_ENABLED", true),
			CatalogPath:  getEnv("CATALOG_PATH", ""),
		},
		Analysis: AnalysisConfig{
			WorkerPoolSize:  getEnvAsInt("WORKER_POOL_SIZE", 4),
			SampleLimit:     getEnvAsInt("ISSUE_SAMPLE_LIMIT", 5),
			ReportCacheSize: getEnvAsInt("REPORT_CACHE_SIZE", 16),
		},
		LLM: LLMConfig{
			Enabled: getEnvAsBool("LLM_ENABLED", false),
			BaseURL: getEnv("LLM_BASE_URL", "http://localhost:11434"),
			Model:   getEnv("LLM_MODEL", "llama3.2"),
			Timeout: getEnvAsDuration("LLM_TIMEOUT", 10*time.Second),
		},
		Server: ServerConfig{
			Host:       getEnv("SERVER_HOST", "0.0.0.0"),
			Port:       getEnvAsInt("SERVER_PORT", 8080),
			Production: getEnvAsBool("SERVER_PRODUCTION", false),
		},
		LogLevel: getEnv("LOG_LEVEL", "info"),
	}

	return cfg, nil
}

// Helper functions to read environment variables with defaults

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
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsList(key string, defaultValue []string) []string {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(valueStr, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
