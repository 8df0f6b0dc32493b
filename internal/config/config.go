// Package config provides application configuration management.
// It loads settings from environment variables and provides defaults for
// server mode, timeouts, rate limits and optional features.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	// Telegram Bot Configuration
	TelegramToken         string
	TelegramWebhookSecret string // X-Telegram-Bot-Api-Secret-Token value
	PublicBaseURL         string // externally reachable base URL for webhook registration

	// Metrics Authentication
	MetricsUsername string // Username for /metrics endpoint Basic Auth (default: "prometheus")
	MetricsPassword string // Password for /metrics endpoint Basic Auth (empty = no auth)

	// Server Configuration
	Port            string
	LogLevel        string
	ShutdownTimeout time.Duration

	// Data Configuration
	DataDir              string
	SessionIdleTTL       time.Duration // idle sessions reset to the root state after this
	SessionSweepInterval time.Duration

	// Portal Configuration
	PortalBaseURL    string
	PortalTimeout    time.Duration
	PortalMaxRetries int

	// Rate Limits (Token Bucket Algorithm)
	GlobalRateLimitRPS        float64
	UserRateLimitBurst        float64
	UserRateLimitRefillPerSec float64

	// Staff console
	AdminSessionTTL time.Duration
	AdminUsername   string // bootstrap account, created on first start
	AdminPassword   string

	// Broadcast
	BroadcastWorkers int
	BroadcastRPS     float64

	// Snapshot backup (optional)
	Backup BackupConfig

	// Error tracking (optional)
	SentryDSN         string
	SentryEnvironment string
	SentryRelease     string

	// Log shipping (optional)
	BetterStackToken    string
	BetterStackEndpoint string
}

// BackupConfig holds S3-compatible snapshot settings.
type BackupConfig struct {
	Enabled         bool
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	Bucket          string
	SnapshotKey     string
	Interval        time.Duration
}

// Load reads configuration from environment variables.
// It attempts to load a .env file first, then reads from env vars.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		TelegramToken:         getEnv(EnvTelegramToken, ""),
		TelegramWebhookSecret: getEnv(EnvTelegramWebhookSecret, ""),
		PublicBaseURL:         getEnv(EnvPublicBaseURL, ""),

		MetricsUsername: getEnv(EnvMetricsUsername, "prometheus"),
		MetricsPassword: getEnv(EnvMetricsPassword, ""),

		Port:            getEnv(EnvPort, "8080"),
		LogLevel:        getEnv(EnvLogLevel, "info"),
		ShutdownTimeout: getDurationEnv(EnvShutdownTimeout, GracefulShutdown),

		DataDir:              getEnv(EnvDataDir, getDefaultDataDir()),
		SessionIdleTTL:       getDurationEnv(EnvSessionIdleTTL, SessionIdleTTL),
		SessionSweepInterval: getDurationEnv(EnvSessionSweepEvery, SessionSweepInterval),

		PortalBaseURL:    getEnv(EnvPortalBaseURL, "https://portal.example.edu"),
		PortalTimeout:    getDurationEnv(EnvPortalTimeout, PortalRequest),
		PortalMaxRetries: getIntEnv(EnvPortalMaxRetries, 4),

		GlobalRateLimitRPS:        getFloatEnv(EnvGlobalRateRPS, 100.0),
		UserRateLimitBurst:        getFloatEnv(EnvUserRateBurst, 15.0),
		UserRateLimitRefillPerSec: getFloatEnv(EnvUserRateRefill, 0.5),

		AdminSessionTTL: getDurationEnv(EnvAdminSessionTTL, 12*time.Hour),
		AdminUsername:   getEnv(EnvAdminUsername, ""),
		AdminPassword:   getEnv(EnvAdminPassword, ""),

		BroadcastWorkers: getIntEnv(EnvBroadcastWorkers, 8),
		BroadcastRPS:     getFloatEnv(EnvBroadcastRPS, 25.0), // Telegram caps bots near 30 msg/s

		Backup: BackupConfig{
			Enabled:         getBoolEnv(EnvBackupEnabled, false),
			Endpoint:        getEnv(EnvBackupEndpoint, ""),
			AccessKeyID:     getEnv(EnvBackupAccessKeyID, ""),
			SecretAccessKey: getEnv(EnvBackupSecretAccessKey, ""),
			Bucket:          getEnv(EnvBackupBucket, ""),
			SnapshotKey:     getEnv(EnvBackupSnapshotKey, "studsched/db.snapshot.zst"),
			Interval:        getDurationEnv(EnvBackupInterval, SnapshotInterval),
		},

		SentryDSN:         getEnv(EnvSentryDSN, ""),
		SentryEnvironment: getEnv(EnvSentryEnvironment, "production"),
		SentryRelease:     getEnv(EnvSentryRelease, ""),

		BetterStackToken:    getEnv(EnvBetterStackToken, ""),
		BetterStackEndpoint: getEnv(EnvBetterStackEndpoint, ""),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks if required configuration values are set
func (c *Config) Validate() error {
	var errs []error

	if c.TelegramToken == "" {
		errs = append(errs, errors.New(EnvTelegramToken+" is required"))
	}
	if c.Port == "" {
		errs = append(errs, errors.New(EnvPort+" is required"))
	}
	if c.DataDir == "" {
		errs = append(errs, errors.New(EnvDataDir+" is required"))
	}
	if c.SessionIdleTTL <= 0 {
		errs = append(errs, fmt.Errorf("%s must be positive, got %v", EnvSessionIdleTTL, c.SessionIdleTTL))
	}
	if c.PortalTimeout <= 0 {
		errs = append(errs, fmt.Errorf("%s must be positive, got %v", EnvPortalTimeout, c.PortalTimeout))
	}
	if c.PortalMaxRetries < 0 {
		errs = append(errs, fmt.Errorf("%s cannot be negative, got %d", EnvPortalMaxRetries, c.PortalMaxRetries))
	}
	if c.BroadcastWorkers <= 0 {
		errs = append(errs, fmt.Errorf("%s must be positive, got %d", EnvBroadcastWorkers, c.BroadcastWorkers))
	}
	if c.BroadcastRPS <= 0 {
		errs = append(errs, fmt.Errorf("%s must be positive, got %v", EnvBroadcastRPS, c.BroadcastRPS))
	}
	if c.Backup.Enabled {
		if c.Backup.Bucket == "" {
			errs = append(errs, errors.New(EnvBackupBucket+" is required when backup is enabled"))
		}
		if c.Backup.AccessKeyID == "" || c.Backup.SecretAccessKey == "" {
			errs = append(errs, errors.New("backup credentials are required when backup is enabled"))
		}
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// getEnv retrieves environment variable with fallback to default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getIntEnv retrieves integer environment variable with fallback to default value
func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getDurationEnv retrieves duration environment variable with fallback to default value
func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// getFloatEnv retrieves float64 environment variable with fallback to default value
func getFloatEnv(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

// getBoolEnv retrieves boolean environment variable with fallback to default value
func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

// getDefaultDataDir returns platform-specific default data directory
func getDefaultDataDir() string {
	if runtime.GOOS == "windows" {
		return "./data"
	}
	return "/data"
}

// SQLitePath returns the full path to the SQLite database file
func (c *Config) SQLitePath() string {
	return filepath.Join(c.DataDir, "studsched.db")
}

// WebhookPath returns the bot-token-scoped webhook route. Keeping the token
// in the path stops third parties from posting fake updates even without the
// secret header.
func (c *Config) WebhookPath() string {
	return "/webhook/" + c.TelegramToken
}
