package config

import (
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

const (
	BackendAPI    = "api"
	BackendMemory = "memory"
	BackendSQLite = "sqlite"
)

type Config struct {
	// HTTP Server
	Port string

	// Backend selection
	DataBackend string

	// Rewards REST API
	RewardsAPIURL     string
	RewardsAPITimeout time.Duration
	FetchTimeout      time.Duration
	RecordCacheSize   int
	RecordCacheTTL    time.Duration

	// Memory backend seed files
	DataDirectory string

	// Database
	SQLiteDBPath string

	// Reports
	ReportWindowDays   int
	RefreshesPerMinute int

	// Worker replica mirroring (zero disables)
	ReplicaSyncInterval time.Duration

	// AMQP (empty URL disables report events)
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// Google Sheets export
	GoogleSpreadsheetID   string
	GoogleReportSheetName string

	LogLevel string
}

func Load() *Config {
	return &Config{
		Port:        getEnv("PORT", "8081"),
		DataBackend: getEnv("DATA_BACKEND", BackendAPI),

		RewardsAPIURL:     getEnv("REWARDS_API_URL", "https://e-reward-api.onrender.com"),
		RewardsAPITimeout: getEnvDuration("REWARDS_API_TIMEOUT", 30*time.Second),
		FetchTimeout:      getEnvDuration("FETCH_TIMEOUT", 60*time.Second),
		RecordCacheSize:   getEnvInt("RECORD_CACHE_SIZE", 256),
		RecordCacheTTL:    getEnvDuration("RECORD_CACHE_TTL", 5*time.Minute),

		DataDirectory: getEnv("DATA_DIRECTORY", "data"),
		SQLiteDBPath:  getEnv("SQLITE_DB_PATH", "./data/rewards.db"),

		ReportWindowDays:   getEnvInt("REPORT_WINDOW_DAYS", 30),
		RefreshesPerMinute: getEnvInt("REFRESHES_PER_MINUTE", 30),

		ReplicaSyncInterval: getEnvDuration("REPLICA_SYNC_INTERVAL", 0),

		AMQPURL:      getEnv("AMQP_URL", ""),
		AMQPExchange: getEnv("AMQP_EXCHANGE", "rewards"),
		AMQPQueue:    getEnv("AMQP_QUEUE", "report_exports"),

		GoogleSpreadsheetID:   getEnv("GOOGLE_SPREADSHEET_ID", ""),
		GoogleReportSheetName: getEnv("GOOGLE_REPORT_SHEET_NAME", "Report"),

		LogLevel: getEnv("LOG_LEVEL", "info"),
	}
}

// Validate validates the configuration and returns an error if invalid
func (c *Config) Validate() error {
	var errors []string

	if port, err := strconv.Atoi(c.Port); err != nil {
		errors = append(errors, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	validBackends := []string{BackendAPI, BackendMemory, BackendSQLite}
	isValidBackend := false
	for _, backend := range validBackends {
		if c.DataBackend == backend {
			isValidBackend = true
			break
		}
	}
	if !isValidBackend {
		errors = append(errors, fmt.Sprintf("invalid data backend '%s': must be one of %v", c.DataBackend, validBackends))
	}

	if c.DataBackend == BackendAPI {
		if parsedURL, err := url.Parse(c.RewardsAPIURL); err != nil || c.RewardsAPIURL == "" {
			errors = append(errors, fmt.Sprintf("invalid rewards API URL '%s'", c.RewardsAPIURL))
		} else if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
			errors = append(errors, fmt.Sprintf("invalid rewards API URL scheme '%s': must be 'http' or 'https'", parsedURL.Scheme))
		}
	}

	if c.DataBackend == BackendSQLite {
		if c.SQLiteDBPath == "" {
			errors = append(errors, "SQLite database path cannot be empty when using sqlite backend")
		} else {
			dir := filepath.Dir(c.SQLiteDBPath)
			if dir != "." && dir != "" {
				if _, err := os.Stat(dir); os.IsNotExist(err) {
					if err := os.MkdirAll(dir, 0755); err != nil {
						errors = append(errors, fmt.Sprintf("cannot create SQLite database directory '%s': %v", dir, err))
					}
				}
			}
		}
	}

	if c.RewardsAPITimeout < time.Second {
		errors = append(errors, fmt.Sprintf("invalid rewards API timeout %v: must be at least 1 second", c.RewardsAPITimeout))
	}
	if c.FetchTimeout < time.Second {
		errors = append(errors, fmt.Sprintf("invalid fetch timeout %v: must be at least 1 second", c.FetchTimeout))
	} else if c.FetchTimeout > 10*time.Minute {
		errors = append(errors, fmt.Sprintf("invalid fetch timeout %v: must be at most 10 minutes", c.FetchTimeout))
	}

	if c.ReportWindowDays < 1 || c.ReportWindowDays > 3660 {
		errors = append(errors, fmt.Sprintf("invalid report window %d days: must be between 1 and 3660", c.ReportWindowDays))
	}

	if c.RefreshesPerMinute < 1 {
		errors = append(errors, fmt.Sprintf("invalid refreshes per minute %d: must be at least 1", c.RefreshesPerMinute))
	}
	if c.RecordCacheSize < 0 || c.RecordCacheTTL < 0 {
		errors = append(errors, "record cache size and TTL cannot be negative")
	}
	if c.ReplicaSyncInterval < 0 {
		errors = append(errors, fmt.Sprintf("invalid replica sync interval %v: cannot be negative", c.ReplicaSyncInterval))
	} else if c.ReplicaSyncInterval > 0 && c.ReplicaSyncInterval < time.Minute {
		errors = append(errors, fmt.Sprintf("invalid replica sync interval %v: must be at least 1 minute", c.ReplicaSyncInterval))
	}

	if c.AMQPURL != "" {
		if parsedURL, err := url.Parse(c.AMQPURL); err != nil {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL '%s': %v", c.AMQPURL, err))
		} else if parsedURL.Scheme != "amqp" && parsedURL.Scheme != "amqps" {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", parsedURL.Scheme))
		}
		if c.AMQPExchange == "" {
			errors = append(errors, "AMQP exchange name cannot be empty when AMQP URL is provided")
		}
		if c.AMQPQueue == "" {
			errors = append(errors, "AMQP queue name cannot be empty when AMQP URL is provided")
		}
	}

	if _, ok := parseLevel(c.LogLevel); !ok {
		errors = append(errors, fmt.Sprintf("invalid log level '%s': must be one of [debug info warn error]", c.LogLevel))
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}

	return nil
}

// ValidateExport checks the settings the export worker needs on top of Validate.
func (c *Config) ValidateExport() error {
	var errors []string
	if c.AMQPURL == "" {
		errors = append(errors, "AMQP URL is required for the export worker")
	}
	if c.GoogleSpreadsheetID == "" {
		errors = append(errors, "Google Spreadsheet ID is required for the export worker")
	}
	if c.GoogleReportSheetName == "" {
		errors = append(errors, "Google report sheet name cannot be empty")
	}
	if len(errors) > 0 {
		return fmt.Errorf("export configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}
	return nil
}

// SlogLevel returns the configured level, defaulting to info.
func (c *Config) SlogLevel() slog.Level {
	lvl, _ := parseLevel(c.LogLevel)
	return lvl
}

func parseLevel(s string) (slog.Level, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, true
	case "", "info":
		return slog.LevelInfo, true
	case "warn", "warning":
		return slog.LevelWarn, true
	case "error":
		return slog.LevelError, true
	default:
		return slog.LevelInfo, false
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
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
