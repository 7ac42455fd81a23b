package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all configuration for the application
type Config struct {
	// Server configuration
	Port  string
	Debug bool

	// Relational store
	DatabaseDriver string // "pgx" or "sqlite"
	DatabaseURL    string
	ContentSchema  string
	RawSchema      string
	AuditTable     string
	MaxOpenConns   int

	// Dashboard behaviour
	DefaultFetchLimit  int
	MaxRangeDays       int
	HistoryStart       time.Time
	TimeZone           string
	CacheTTL           time.Duration
	SessionIdleTimeout time.Duration
	SweepSchedule      string

	// Azure Storage configuration (CSV exports)
	StorageAccount   string
	StorageContainer string
	ExportDir        string
	ExportRetention  time.Duration

	// Notification configuration (editor batch reports)
	TeamsWebhookURL   string
	NotificationEmail string
	SMTPHost          string
	SMTPPort          int
	SMTPUsername      string
	SMTPPassword      string
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{
		Port:  getEnv("PORT", "8080"),
		Debug: getBoolEnv("DEBUG", false),

		DatabaseDriver: getEnv("DATABASE_DRIVER", "pgx"),
		DatabaseURL:    getEnv("DATABASE_URL", ""),
		ContentSchema:  getEnvAllowEmpty("CONTENT_SCHEMA", "ocdul"),
		RawSchema:      getEnvAllowEmpty("RAW_SCHEMA", "raw"),
		AuditTable:     getEnv("AUDIT_TABLE", "editor_audit_log"),
		MaxOpenConns:   getIntEnv("DATABASE_MAX_OPEN_CONNS", 10),

		DefaultFetchLimit:  getIntEnv("DEFAULT_FETCH_LIMIT", 100),
		MaxRangeDays:       getIntEnv("MAX_RANGE_DAYS", 730),
		TimeZone:           getEnv("TIMEZONE", "UTC"),
		CacheTTL:           getDurationEnv("CACHE_TTL", 5*time.Minute),
		SessionIdleTimeout: getDurationEnv("SESSION_IDLE_TIMEOUT", 10*time.Minute),
		SweepSchedule:      getEnv("SESSION_SWEEP_SCHEDULE", "0 */5 * * * *"),

		StorageAccount:   getEnv("AZURE_STORAGE_ACCOUNT", ""),
		StorageContainer: getEnv("AZURE_STORAGE_CONTAINER", "exports"),
		ExportDir:        getEnv("EXPORT_DIR", "exports"),
		ExportRetention:  getDurationEnv("EXPORT_RETENTION", 30*24*time.Hour),

		TeamsWebhookURL:   getEnv("TEAMS_WEBHOOK_URL", ""),
		NotificationEmail: getEnv("NOTIFICATION_EMAIL", ""),
		SMTPHost:          getEnv("SMTP_HOST", ""),
		SMTPPort:          getIntEnv("SMTP_PORT", 587),
		SMTPUsername:      getEnv("SMTP_USERNAME", ""),
		SMTPPassword:      getEnv("SMTP_PASSWORD", ""),
	}

	historyStart, err := time.Parse("2006-01-02", getEnv("HISTORY_START", "2025-08-01"))
	if err != nil {
		return nil, fmt.Errorf("HISTORY_START must be a YYYY-MM-DD date: %w", err)
	}
	cfg.HistoryStart = historyStart

	// Validate required configuration
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// Location returns the time zone date filters are evaluated in
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.TimeZone)
	if err != nil {
		return time.UTC
	}
	return loc
}

func (c *Config) validate() error {
	if c.DatabaseDriver != "pgx" && c.DatabaseDriver != "sqlite" {
		return fmt.Errorf("DATABASE_DRIVER must be 'pgx' or 'sqlite'")
	}

	if c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}

	for name, value := range map[string]string{
		"CONTENT_SCHEMA": c.ContentSchema,
		"RAW_SCHEMA":     c.RawSchema,
		"AUDIT_TABLE":    c.AuditTable,
	} {
		if !isIdentifier(value) {
			return fmt.Errorf("%s must be a plain lowercase identifier", name)
		}
	}

	if c.DefaultFetchLimit < 0 {
		return fmt.Errorf("DEFAULT_FETCH_LIMIT cannot be negative")
	}

	if c.ExportRetention < 0 {
		return fmt.Errorf("EXPORT_RETENTION cannot be negative")
	}

	if _, err := time.LoadLocation(c.TimeZone); err != nil {
		return fmt.Errorf("TIMEZONE is not a known location: %w", err)
	}

	if c.NotificationEmail != "" {
		if c.SMTPHost == "" || c.SMTPUsername == "" || c.SMTPPassword == "" {
			return fmt.Errorf("SMTP configuration is required when NOTIFICATION_EMAIL is set")
		}
	}

	return nil
}

// isIdentifier accepts empty values (no qualification) and plain SQL
// identifiers
func isIdentifier(s string) bool {
	for i, r := range s {
		switch {
		case r == '_', r >= 'a' && r <= 'z':
		case r >= '0' && r <= '9' && i > 0:
		default:
			return false
		}
	}
	return true
}

// Helper functions for environment variable parsing
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAllowEmpty is getEnv for keys where an explicitly empty value is
// meaningful; only an unset key gets the default
func getEnvAllowEmpty(key, defaultValue string) string {
	if value, ok := os.LookupEnv(key); ok {
		return strings.TrimSpace(value)
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(strings.TrimSpace(value)); err == nil {
			return parsed
		}
	}
	return defaultValue
}
