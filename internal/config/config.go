package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Supported values of DATA_BACKEND.
const (
	BackendMemory   = "memory"
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
)

var validBackends = []string{BackendMemory, BackendSQLite, BackendPostgres}

type Config struct {
	// HTTP Server
	Port               string
	RateLimitPerMinute int

	// Storage
	DataBackend  string
	DataDir      string
	SQLiteDBPath string
	DatabaseURL  string

	// AMQP
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// Google Sheets
	GoogleSpreadsheetID      string
	GoogleSheetName          string
	GoogleOAuthClientFile    string
	GoogleOAuthTokenFile     string
	GoogleOAuthClientJSON    string
	GoogleOAuthTokenJSON     string
	GoogleServiceAccountJSON string
	GoogleServiceAccountFile string

	// Worker
	SyncBatchSize int
	SyncInterval  time.Duration

	// Background jobs and caches
	DashboardRefreshInterval time.Duration
	CacheTTL                 time.Duration
	CacheSize                int
	FixedExpenseDay          int
	FixedAutoApply           bool

	// Logging
	LogLevel  string
	LogFormat string
}

func Load() *Config {
	cfg := &Config{
		Port:               getEnv("PORT", "8081"),
		RateLimitPerMinute: getEnvInt("RATE_LIMIT_PER_MINUTE", 60),

		DataBackend:  getEnv("DATA_BACKEND", BackendSQLite),
		DataDir:      getEnv("DATA_DIR", "data"),
		SQLiteDBPath: getEnv("SQLITE_DB_PATH", "./data/budgetcal.db"),
		DatabaseURL:  getEnv("DATABASE_URL", ""),

		AMQPURL:      getEnv("AMQP_URL", ""),
		AMQPExchange: getEnv("AMQP_EXCHANGE", "budgetcal"),
		AMQPQueue:    getEnv("AMQP_QUEUE", "budgetcal.transactions"),

		GoogleSpreadsheetID:      getEnv("GOOGLE_SPREADSHEET_ID", ""),
		GoogleSheetName:          getEnv("GOOGLE_SHEET_NAME", "Transactions"),
		GoogleOAuthClientFile:    getEnv("GOOGLE_OAUTH_CLIENT_FILE", ""),
		GoogleOAuthTokenFile:     getEnv("GOOGLE_OAUTH_TOKEN_FILE", ""),
		GoogleOAuthClientJSON:    getEnv("GOOGLE_OAUTH_CLIENT_JSON", ""),
		GoogleOAuthTokenJSON:     getEnv("GOOGLE_OAUTH_TOKEN_JSON", ""),
		GoogleServiceAccountJSON: getEnv("GOOGLE_SERVICE_ACCOUNT_JSON", ""),
		GoogleServiceAccountFile: getEnv("GOOGLE_SERVICE_ACCOUNT_FILE", ""),

		SyncBatchSize: getEnvInt("SYNC_BATCH_SIZE", 10),
		SyncInterval:  getEnvDuration("SYNC_INTERVAL", 30*time.Second),

		DashboardRefreshInterval: getEnvDuration("DASHBOARD_REFRESH_INTERVAL", 5*time.Minute),
		CacheTTL:                 getEnvDuration("CACHE_TTL", 5*time.Minute),
		CacheSize:                getEnvInt("CACHE_SIZE", 256),
		FixedExpenseDay:          getEnvInt("FIXED_EXPENSE_DAY", 1),
		FixedAutoApply:           getEnvBool("FIXED_AUTO_APPLY", false),

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "text"),
	}

	return cfg
}

// SheetsEnabled reports whether a spreadsheet export target is configured.
func (c *Config) SheetsEnabled() bool {
	return c.GoogleSpreadsheetID != ""
}

// AMQPEnabled reports whether transaction events are published.
func (c *Config) AMQPEnabled() bool {
	return c.AMQPURL != ""
}

// Validate validates the configuration and returns an error if invalid
func (c *Config) Validate() error {
	var errors []string

	// Validate port
	if port, err := strconv.Atoi(c.Port); err != nil {
		errors = append(errors, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

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

	switch c.DataBackend {
	case BackendSQLite:
		if c.SQLiteDBPath == "" {
			errors = append(errors, "SQLite database path cannot be empty when using sqlite backend")
		} else {
			// Check if directory exists or can be created
			dir := filepath.Dir(c.SQLiteDBPath)
			if dir != "." && dir != "" {
				if _, err := os.Stat(dir); os.IsNotExist(err) {
					if err := os.MkdirAll(dir, 0755); err != nil {
						errors = append(errors, fmt.Sprintf("cannot create SQLite database directory '%s': %v", dir, err))
					}
				}
			}
		}
	case BackendPostgres:
		if c.DatabaseURL == "" {
			errors = append(errors, "DATABASE_URL is required when using postgres backend")
		} else if u, err := url.Parse(c.DatabaseURL); err != nil || (u.Scheme != "postgres" && u.Scheme != "postgresql") {
			errors = append(errors, "invalid DATABASE_URL: must be a postgres:// or postgresql:// URL")
		}
	}

	// Validate AMQP URL if provided
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

	// Sheets export needs one credential source.
	if c.SheetsEnabled() {
		if c.GoogleSheetName == "" {
			errors = append(errors, "Google Sheet name is required when a spreadsheet is configured")
		}
		hasOAuth := c.GoogleOAuthClientFile != "" || c.GoogleOAuthClientJSON != ""
		hasServiceAccount := c.GoogleServiceAccountFile != "" || c.GoogleServiceAccountJSON != ""
		if !hasOAuth && !hasServiceAccount {
			errors = append(errors, "either GOOGLE_OAUTH_CLIENT_FILE, GOOGLE_OAUTH_CLIENT_JSON or a service account must be provided for sheets export")
		}
		if hasOAuth && c.GoogleOAuthTokenFile == "" && c.GoogleOAuthTokenJSON == "" {
			errors = append(errors, "either GOOGLE_OAUTH_TOKEN_FILE or GOOGLE_OAUTH_TOKEN_JSON must be provided with an OAuth client")
		}
		for _, f := range []struct{ what, path string }{
			{"Google OAuth client file", c.GoogleOAuthClientFile},
			{"Google OAuth token file", c.GoogleOAuthTokenFile},
			{"Google service account file", c.GoogleServiceAccountFile},
		} {
			if f.path == "" {
				continue
			}
			if _, err := os.Stat(f.path); os.IsNotExist(err) {
				errors = append(errors, fmt.Sprintf("%s does not exist: %s", f.what, f.path))
			}
		}
	}

	// Validate worker configuration
	if c.SyncBatchSize < 1 {
		errors = append(errors, fmt.Sprintf("invalid sync batch size %d: must be at least 1", c.SyncBatchSize))
	} else if c.SyncBatchSize > 1000 {
		errors = append(errors, fmt.Sprintf("invalid sync batch size %d: must be at most 1000", c.SyncBatchSize))
	}

	if c.SyncInterval < time.Second {
		errors = append(errors, fmt.Sprintf("invalid sync interval %v: must be at least 1 second", c.SyncInterval))
	} else if c.SyncInterval > 24*time.Hour {
		errors = append(errors, fmt.Sprintf("invalid sync interval %v: must be at most 24 hours", c.SyncInterval))
	}

	if c.DashboardRefreshInterval < time.Minute || c.DashboardRefreshInterval > time.Hour {
		errors = append(errors, fmt.Sprintf("invalid dashboard refresh interval %v: must be between 1 minute and 1 hour", c.DashboardRefreshInterval))
	}
	if c.CacheSize < 1 {
		errors = append(errors, fmt.Sprintf("invalid cache size %d: must be at least 1", c.CacheSize))
	}
	if c.CacheTTL <= 0 {
		errors = append(errors, fmt.Sprintf("invalid cache TTL %v: must be positive", c.CacheTTL))
	}
	if c.RateLimitPerMinute < 1 {
		errors = append(errors, fmt.Sprintf("invalid rate limit %d: must be at least 1 request per minute", c.RateLimitPerMinute))
	}
	if c.FixedExpenseDay < 1 || c.FixedExpenseDay > 31 {
		errors = append(errors, fmt.Sprintf("invalid fixed expense day %d: must be between 1 and 31", c.FixedExpenseDay))
	}

	if f := strings.ToLower(c.LogFormat); f != "text" && f != "json" {
		errors = append(errors, fmt.Sprintf("invalid log format '%s': must be 'text' or 'json'", c.LogFormat))
	}

	// Return combined errors
	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}

	return nil
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

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}
