package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"cashflow/internal/core"
	"cashflow/internal/currency"
)

type Config struct {
	// HTTP Server
	Port string

	// Database
	SQLiteDBPath string

	LogLevel string

	// Auth
	JWTSecret string
	JWTIssuer string
	JWTTTL    time.Duration

	// Currency
	ReportingCurrency string
	RatesAPIURL       string
	RatesCacheTTL     time.Duration
	FallbackRates     string

	// AMQP; empty URL keeps calendar sync in-process
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// Google Calendar; no credentials disables calendar sync
	GoogleServiceAccountJSON string
	GoogleServiceAccountFile string
	GoogleCalendarID         string

	// Side-effect dispatcher
	SideEffectWorkers int
	SideEffectBuffer  int

	// Write rate limit per client and minute
	RateLimitPerMinute int
}

func Load() *Config {
	cfg := &Config{
		Port:         getEnv("PORT", "8081"),
		SQLiteDBPath: getEnv("SQLITE_DB_PATH", "./data/cashflow.db"),
		LogLevel:     getEnv("LOG_LEVEL", "info"),

		JWTSecret: getEnv("AUTH_JWT_SECRET", ""),
		JWTIssuer: getEnv("AUTH_JWT_ISSUER", "cashflow"),
		JWTTTL:    getEnvDuration("AUTH_JWT_TTL", 24*time.Hour),

		ReportingCurrency: getEnv("REPORTING_CURRENCY", core.ReportingCurrency),
		RatesAPIURL:       getEnv("RATES_API_URL", currency.DefaultRatesURL),
		RatesCacheTTL:     getEnvDuration("RATES_CACHE_TTL", currency.DefaultCacheTTL),
		FallbackRates:     getEnv("FALLBACK_RATES", ""),

		AMQPURL:      getEnv("AMQP_URL", ""),
		AMQPExchange: getEnv("AMQP_EXCHANGE", "cashflow"),
		AMQPQueue:    getEnv("AMQP_QUEUE", "calendar_sync"),

		GoogleServiceAccountJSON: getEnv("GOOGLE_SERVICE_ACCOUNT_JSON", ""),
		GoogleServiceAccountFile: getEnv("GOOGLE_SERVICE_ACCOUNT_FILE", ""),
		GoogleCalendarID:         getEnv("GOOGLE_CALENDAR_ID", "primary"),

		SideEffectWorkers: getEnvInt("SIDE_EFFECT_WORKERS", 2),
		SideEffectBuffer:  getEnvInt("SIDE_EFFECT_BUFFER", 256),

		RateLimitPerMinute: getEnvInt("RATE_LIMIT_PER_MINUTE", 60),
	}

	return cfg
}

// CalendarEnabled reports whether Google credentials are configured.
func (c *Config) CalendarEnabled() bool {
	return c.GoogleServiceAccountJSON != "" || c.GoogleServiceAccountFile != ""
}

// Validate checks every setting and reports all problems at once.
func (c *Config) Validate() error {
	var errors []string

	if port, err := strconv.Atoi(c.Port); err != nil {
		errors = append(errors, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	if c.SQLiteDBPath == "" {
		errors = append(errors, "SQLite database path cannot be empty")
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

	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "warning", "error":
	default:
		errors = append(errors, fmt.Sprintf("invalid log level '%s': must be debug, info, warn or error", c.LogLevel))
	}

	if len(c.JWTSecret) < 32 {
		errors = append(errors, "AUTH_JWT_SECRET must be at least 32 characters")
	}
	if c.JWTTTL < time.Minute {
		errors = append(errors, fmt.Sprintf("invalid token lifetime %v: must be at least 1 minute", c.JWTTTL))
	}

	if _, err := core.NormalizeCurrency(c.ReportingCurrency); err != nil || c.ReportingCurrency == "" {
		errors = append(errors, fmt.Sprintf("unsupported reporting currency '%s'", c.ReportingCurrency))
	}
	if c.RatesAPIURL != "" {
		if u, err := url.Parse(c.RatesAPIURL); err != nil || (u.Scheme != "http" && u.Scheme != "https") {
			errors = append(errors, fmt.Sprintf("invalid rates API URL '%s': must be http or https", c.RatesAPIURL))
		}
	}
	if c.RatesCacheTTL < time.Second {
		errors = append(errors, fmt.Sprintf("invalid rates cache TTL %v: must be at least 1 second", c.RatesCacheTTL))
	}
	if c.FallbackRates != "" {
		if _, err := currency.ParseRates(c.FallbackRates); err != nil {
			errors = append(errors, fmt.Sprintf("invalid FALLBACK_RATES: %v", err))
		}
	}
	if c.RatesAPIURL == "" && c.FallbackRates == "" {
		errors = append(errors, "either RATES_API_URL or FALLBACK_RATES must be provided")
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

	if c.GoogleServiceAccountFile != "" {
		if _, err := os.Stat(c.GoogleServiceAccountFile); os.IsNotExist(err) {
			errors = append(errors, fmt.Sprintf("Google service account file does not exist: %s", c.GoogleServiceAccountFile))
		}
	}
	if c.CalendarEnabled() && c.GoogleCalendarID == "" {
		errors = append(errors, "GOOGLE_CALENDAR_ID cannot be empty when calendar credentials are provided")
	}

	if c.SideEffectWorkers < 1 || c.SideEffectWorkers > 64 {
		errors = append(errors, fmt.Sprintf("invalid side-effect workers %d: must be between 1 and 64", c.SideEffectWorkers))
	}
	if c.SideEffectBuffer < 1 {
		errors = append(errors, fmt.Sprintf("invalid side-effect buffer %d: must be at least 1", c.SideEffectBuffer))
	}
	if c.RateLimitPerMinute < 1 {
		errors = append(errors, fmt.Sprintf("invalid rate limit %d: must be at least 1", c.RateLimitPerMinute))
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
