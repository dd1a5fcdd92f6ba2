// Package config loads process configuration from the environment.
package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"
)

// Data backends.
const (
	BackendSupabase = "supabase"
	BackendSQLite   = "sqlite"
	BackendMemory   = "memory"
)

// Mail transports.
const (
	MailLog    = "log"
	MailSMTP   = "smtp"
	MailGmail  = "gmail"
	MailResend = "resend"
)

type Config struct {
	// HTTP Server
	Port               string
	LogLevel           string
	RateLimitPerMinute int
	TrustedProxies     []string

	// Data backend
	DataBackend        string
	SupabaseURL        string
	SupabaseServiceKey string
	SupabaseJWTSecret  string
	SQLiteDBPath       string
	MemorySeedFile     string

	// Report rendering and storage
	ReportStorageDir  string
	ReportFormat      string
	RotationThreshold int
	WorkerPoolSize    int

	// Mail
	MailTransport        string
	MailFrom             string
	SMTPHost             string
	SMTPPort             int
	SMTPUsername         string
	SMTPPassword         string
	SMTPStartTLS         bool
	GmailCredentialsFile string
	GmailCredentialsJSON string
	GmailSubject         string
	GmailTokenFile       string
	ResendAPIKey         string

	// Admin endpoints
	AdminUsernameHash string
	AdminPasswordHash string

	// AMQP
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// Optional infrastructure
	RedisURL           string
	GCSBucket          string
	GCSCredentialsJSON string

	// Worker
	ScheduleInterval time.Duration
	ScheduleStateDB  string
}

func Load() *Config {
	return &Config{
		Port:               getEnv("PORT", "8080"),
		LogLevel:           getEnv("LOG_LEVEL", "info"),
		RateLimitPerMinute: getEnvInt("RATE_LIMIT_PER_MINUTE", 30),
		TrustedProxies:     getEnvList("TRUSTED_PROXIES"),

		DataBackend:        getEnv("DATA_BACKEND", BackendMemory),
		SupabaseURL:        getEnv("SUPABASE_URL", ""),
		SupabaseServiceKey: getEnv("SUPABASE_SERVICE_KEY", ""),
		SupabaseJWTSecret:  getEnv("SUPABASE_JWT_SECRET", ""),
		SQLiteDBPath:       getEnv("SQLITE_DB_PATH", "./data/fintrack.db"),
		MemorySeedFile:     getEnv("MEMORY_SEED_FILE", ""),

		ReportStorageDir:  getEnv("REPORT_STORAGE_DIR", "./storage/reports"),
		ReportFormat:      getEnv("REPORT_FORMAT", "pdf"),
		RotationThreshold: getEnvInt("ROTATION_THRESHOLD", 10),
		WorkerPoolSize:    getEnvInt("WORKER_POOL_SIZE", 10),

		MailTransport:        getEnv("MAIL_TRANSPORT", MailLog),
		MailFrom:             getEnv("MAIL_FROM", ""),
		SMTPHost:             getEnv("SMTP_HOST", ""),
		SMTPPort:             getEnvInt("SMTP_PORT", 465),
		SMTPUsername:         getEnv("SMTP_USERNAME", ""),
		SMTPPassword:         getEnv("SMTP_PASSWORD", ""),
		SMTPStartTLS:         getEnvBool("SMTP_STARTTLS", false),
		GmailCredentialsFile: getEnv("GMAIL_CREDENTIALS_FILE", ""),
		GmailCredentialsJSON: getEnv("GMAIL_CREDENTIALS_JSON", ""),
		GmailSubject:         getEnv("GMAIL_SUBJECT", ""),
		GmailTokenFile:       getEnv("GMAIL_TOKEN_FILE", ""),
		ResendAPIKey:         getEnv("RESEND_API_KEY", ""),

		AdminUsernameHash: getEnv("ADMIN_USERNAME_HASH", ""),
		AdminPasswordHash: getEnv("ADMIN_PASSWORD_HASH", ""),

		AMQPURL:      getEnv("AMQP_URL", ""),
		AMQPExchange: getEnv("AMQP_EXCHANGE", "fintrack"),
		AMQPQueue:    getEnv("AMQP_QUEUE", "monthly_reports"),

		RedisURL:           getEnv("REDIS_URL", ""),
		GCSBucket:          getEnv("GCS_BUCKET", ""),
		GCSCredentialsJSON: getEnv("GCS_CREDENTIALS_JSON", ""),

		ScheduleInterval: getEnvDuration("SCHEDULE_INTERVAL", 0),
		ScheduleStateDB:  getEnv("SCHEDULE_STATE_DB", "./data/fintrack-state.db"),
	}
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

	validLevels := []string{"debug", "info", "warn", "warning", "error"}
	if !slices.Contains(validLevels, strings.ToLower(c.LogLevel)) {
		errors = append(errors, fmt.Sprintf("invalid log level '%s': must be one of %v", c.LogLevel, validLevels[:4]))
	}

	// Validate data backend
	validBackends := []string{BackendSupabase, BackendSQLite, BackendMemory}
	if !slices.Contains(validBackends, c.DataBackend) {
		errors = append(errors, fmt.Sprintf("invalid data backend '%s': must be one of %v", c.DataBackend, validBackends))
	}

	switch c.DataBackend {
	case BackendSupabase:
		if c.SupabaseURL == "" {
			errors = append(errors, "SUPABASE_URL is required when using supabase backend")
		} else if u, err := url.Parse(c.SupabaseURL); err != nil || (u.Scheme != "http" && u.Scheme != "https") {
			errors = append(errors, fmt.Sprintf("invalid SUPABASE_URL '%s': must be an http(s) URL", c.SupabaseURL))
		}
		if c.SupabaseServiceKey == "" {
			errors = append(errors, "SUPABASE_SERVICE_KEY is required when using supabase backend")
		}
	case BackendSQLite:
		if c.SQLiteDBPath == "" {
			errors = append(errors, "SQLite database path cannot be empty when using sqlite backend")
		} else if dir := filepath.Dir(c.SQLiteDBPath); dir != "." && dir != "" {
			if err := os.MkdirAll(dir, 0755); err != nil {
				errors = append(errors, fmt.Sprintf("cannot create SQLite database directory '%s': %v", dir, err))
			}
		}
	case BackendMemory:
		if c.MemorySeedFile != "" {
			if _, err := os.Stat(c.MemorySeedFile); os.IsNotExist(err) {
				errors = append(errors, fmt.Sprintf("memory seed file does not exist: %s", c.MemorySeedFile))
			}
		}
	}

	// Validate report settings
	if c.ReportStorageDir == "" {
		errors = append(errors, "report storage directory cannot be empty")
	}
	if c.ReportFormat != "pdf" && c.ReportFormat != "xlsx" {
		errors = append(errors, fmt.Sprintf("invalid report format '%s': must be 'pdf' or 'xlsx'", c.ReportFormat))
	}
	if c.RotationThreshold < 1 {
		errors = append(errors, fmt.Sprintf("invalid rotation threshold %d: must be at least 1", c.RotationThreshold))
	}
	if c.WorkerPoolSize < 1 {
		errors = append(errors, fmt.Sprintf("invalid worker pool size %d: must be at least 1", c.WorkerPoolSize))
	} else if c.WorkerPoolSize > 100 {
		errors = append(errors, fmt.Sprintf("invalid worker pool size %d: must be at most 100", c.WorkerPoolSize))
	}
	if c.RateLimitPerMinute < 1 {
		errors = append(errors, fmt.Sprintf("invalid rate limit %d: must be at least 1 request per minute", c.RateLimitPerMinute))
	}

	// Validate mail transport
	switch c.MailTransport {
	case MailLog:
	case MailSMTP:
		if c.SMTPHost == "" {
			errors = append(errors, "SMTP_HOST is required when using smtp transport")
		}
		if c.SMTPPort < 1 || c.SMTPPort > 65535 {
			errors = append(errors, fmt.Sprintf("invalid SMTP port %d: must be between 1 and 65535", c.SMTPPort))
		}
		if c.MailFrom == "" {
			errors = append(errors, "MAIL_FROM is required when using smtp transport")
		}
	case MailGmail:
		if c.GmailCredentialsFile == "" && c.GmailCredentialsJSON == "" {
			errors = append(errors, "either GMAIL_CREDENTIALS_FILE or GMAIL_CREDENTIALS_JSON must be provided for gmail transport")
		}
		if c.GmailCredentialsFile != "" {
			if _, err := os.Stat(c.GmailCredentialsFile); os.IsNotExist(err) {
				errors = append(errors, fmt.Sprintf("Gmail credentials file does not exist: %s", c.GmailCredentialsFile))
			}
		}
	case MailResend:
		if c.ResendAPIKey == "" {
			errors = append(errors, "RESEND_API_KEY is required when using resend transport")
		}
		if c.MailFrom == "" {
			errors = append(errors, "MAIL_FROM is required when using resend transport")
		}
	default:
		errors = append(errors, fmt.Sprintf("invalid mail transport '%s': must be one of [log smtp gmail resend]", c.MailTransport))
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

	if c.RedisURL != "" {
		if parsedURL, err := url.Parse(c.RedisURL); err != nil || (parsedURL.Scheme != "redis" && parsedURL.Scheme != "rediss") {
			errors = append(errors, fmt.Sprintf("invalid REDIS_URL '%s': must use the redis or rediss scheme", c.RedisURL))
		}
	}

	if c.ScheduleInterval < 0 {
		errors = append(errors, fmt.Sprintf("invalid schedule interval %v: must not be negative", c.ScheduleInterval))
	} else if c.ScheduleInterval > 0 && c.ScheduleInterval < time.Minute {
		errors = append(errors, fmt.Sprintf("invalid schedule interval %v: must be at least 1 minute", c.ScheduleInterval))
	}

	// Return combined errors
	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}

	return nil
}

// AdminConfigured reports whether the admin endpoints can authenticate.
func (c *Config) AdminConfigured() bool {
	return c.AdminUsernameHash != "" && c.AdminPasswordHash != ""
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

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
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

// getEnvList splits a comma-separated value, dropping empty items.
func getEnvList(key string) []string {
	var out []string
	for _, item := range strings.Split(os.Getenv(key), ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
