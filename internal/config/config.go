package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"strconv"
	"strings"
	"time"
)

var metricsNamespacePattern = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

type Config struct {
	// HTTP Server
	Port string

	// Logging
	LogLevel  string
	LogFormat string

	// Backend selection
	DataBackend  string
	SQLiteDBPath string

	// AMQP
	AMQPURL           string
	AMQPExchange      string
	AMQPQueue         string
	AMQPReminderQueue string

	// Google Sheets mirror
	GoogleSpreadsheetID   string
	GoogleSheetName       string
	GoogleOAuthClientFile string
	GoogleOAuthTokenFile  string
	GoogleOAuthClientJSON string
	GoogleOAuthTokenJSON  string
	MirrorResyncInterval  time.Duration

	// Stats cache
	StatsCacheSize int
	StatsCacheTTL  time.Duration

	// Rate limiting
	RateLimitRequests int
	RateLimitWindow   time.Duration

	// Reminder worker
	ReminderCheckInterval time.Duration
	ReminderTimezone      string

	// Metrics
	MetricsNamespace string
}

func Load() *Config {
	cfg := &Config{
		Port: getEnv("PORT", "8081"),

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "text"),

		DataBackend:  getEnv("DATA_BACKEND", "sqlite"),
		SQLiteDBPath: getEnv("SQLITE_DB_PATH", "./data/fintrack.db"),

		AMQPURL:           getEnv("AMQP_URL", ""),
		AMQPExchange:      getEnv("AMQP_EXCHANGE", "fintrack"),
		AMQPQueue:         getEnv("AMQP_QUEUE", "ledger_events"),
		AMQPReminderQueue: getEnv("AMQP_REMINDER_QUEUE", "reminders"),

		GoogleSpreadsheetID:   getEnv("GOOGLE_SPREADSHEET_ID", ""),
		GoogleSheetName:       getEnv("GOOGLE_SHEET_NAME", "Transactions"),
		GoogleOAuthClientFile: getEnv("GOOGLE_OAUTH_CLIENT_FILE", ""),
		GoogleOAuthTokenFile:  getEnv("GOOGLE_OAUTH_TOKEN_FILE", ""),
		GoogleOAuthClientJSON: getEnv("GOOGLE_OAUTH_CLIENT_JSON", ""),
		GoogleOAuthTokenJSON:  getEnv("GOOGLE_OAUTH_TOKEN_JSON", ""),
		MirrorResyncInterval:  getEnvDuration("MIRROR_RESYNC_INTERVAL", time.Hour),

		StatsCacheSize: getEnvInt("STATS_CACHE_SIZE", 256),
		StatsCacheTTL:  getEnvDuration("STATS_CACHE_TTL", 5*time.Minute),

		RateLimitRequests: getEnvInt("RATE_LIMIT_REQUESTS", 120),
		RateLimitWindow:   getEnvDuration("RATE_LIMIT_WINDOW", time.Minute),

		ReminderCheckInterval: getEnvDuration("REMINDER_CHECK_INTERVAL", time.Minute),
		ReminderTimezone:      getEnv("REMINDER_TIMEZONE", "Local"),

		MetricsNamespace: getEnv("METRICS_NAMESPACE", "fintrack"),
	}

	return cfg
}

// MirrorEnabled reports whether a Google Sheets mirror is configured.
func (c *Config) MirrorEnabled() bool {
	return c.GoogleSpreadsheetID != ""
}

// Location resolves ReminderTimezone.
func (c *Config) Location() (*time.Location, error) {
	if c.ReminderTimezone == "" || c.ReminderTimezone == "Local" {
		return time.Local, nil
	}
	return time.LoadLocation(c.ReminderTimezone)
}

// Validate validates the configuration and returns an error if invalid
func (c *Config) Validate() error {
	var errors []string

	if port, err := strconv.Atoi(c.Port); err != nil {
		errors = append(errors, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	validLevels := []string{"debug", "info", "warn", "error"}
	if !slices.Contains(validLevels, strings.ToLower(c.LogLevel)) {
		errors = append(errors, fmt.Sprintf("invalid log level '%s': must be one of %v", c.LogLevel, validLevels))
	}
	if c.LogFormat != "text" && c.LogFormat != "json" {
		errors = append(errors, fmt.Sprintf("invalid log format '%s': must be text or json", c.LogFormat))
	}

	validBackends := []string{"memory", "sqlite"}
	if !slices.Contains(validBackends, c.DataBackend) {
		errors = append(errors, fmt.Sprintf("invalid data backend '%s': must be one of %v", c.DataBackend, validBackends))
	}

	if c.DataBackend == "sqlite" {
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
		if c.AMQPReminderQueue == "" {
			errors = append(errors, "AMQP reminder queue name cannot be empty when AMQP URL is provided")
		}
	}

	if c.MirrorEnabled() {
		if c.GoogleSheetName == "" {
			errors = append(errors, "Google Sheet name is required when a spreadsheet is configured")
		}
		hasClientFile := c.GoogleOAuthClientFile != ""
		if !hasClientFile && c.GoogleOAuthClientJSON == "" {
			errors = append(errors, "either GOOGLE_OAUTH_CLIENT_FILE or GOOGLE_OAUTH_CLIENT_JSON must be provided for the sheets mirror")
		}
		hasTokenFile := c.GoogleOAuthTokenFile != ""
		if !hasTokenFile && c.GoogleOAuthTokenJSON == "" {
			errors = append(errors, "either GOOGLE_OAUTH_TOKEN_FILE or GOOGLE_OAUTH_TOKEN_JSON must be provided for the sheets mirror")
		}
		if hasClientFile {
			if _, err := os.Stat(c.GoogleOAuthClientFile); os.IsNotExist(err) {
				errors = append(errors, fmt.Sprintf("Google OAuth client file does not exist: %s", c.GoogleOAuthClientFile))
			}
		}
		if hasTokenFile {
			if _, err := os.Stat(c.GoogleOAuthTokenFile); os.IsNotExist(err) {
				errors = append(errors, fmt.Sprintf("Google OAuth token file does not exist: %s", c.GoogleOAuthTokenFile))
			}
		}
	}

	if c.MirrorResyncInterval < 0 {
		errors = append(errors, fmt.Sprintf("invalid mirror resync interval %v: must not be negative", c.MirrorResyncInterval))
	}

	if c.StatsCacheSize < 1 {
		errors = append(errors, fmt.Sprintf("invalid stats cache size %d: must be at least 1", c.StatsCacheSize))
	}
	if c.StatsCacheTTL <= 0 {
		errors = append(errors, fmt.Sprintf("invalid stats cache TTL %v: must be positive", c.StatsCacheTTL))
	}

	if c.RateLimitRequests < 1 {
		errors = append(errors, fmt.Sprintf("invalid rate limit %d: must be at least 1", c.RateLimitRequests))
	}
	if c.RateLimitWindow < time.Second {
		errors = append(errors, fmt.Sprintf("invalid rate limit window %v: must be at least 1 second", c.RateLimitWindow))
	}

	if c.ReminderCheckInterval < time.Second {
		errors = append(errors, fmt.Sprintf("invalid reminder check interval %v: must be at least 1 second", c.ReminderCheckInterval))
	} else if c.ReminderCheckInterval > time.Hour {
		errors = append(errors, fmt.Sprintf("invalid reminder check interval %v: must be at most 1 hour", c.ReminderCheckInterval))
	}
	if _, err := c.Location(); err != nil {
		errors = append(errors, fmt.Sprintf("invalid reminder timezone '%s': %v", c.ReminderTimezone, err))
	}

	if !metricsNamespacePattern.MatchString(c.MetricsNamespace) {
		errors = append(errors, fmt.Sprintf("invalid metrics namespace '%s'", c.MetricsNamespace))
	}

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
