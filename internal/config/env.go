// Package config defines environment variable keys for configuration.
package config

//nolint:gosec // Environment variable keys are not credentials.
const (
	// Core (Required)
	EnvTelegramToken         = "SCHED_TELEGRAM_BOT_TOKEN"
	EnvTelegramWebhookSecret = "SCHED_TELEGRAM_WEBHOOK_SECRET"

	// Server
	EnvPort            = "SCHED_PORT"
	EnvLogLevel        = "SCHED_LOG_LEVEL"
	EnvShutdownTimeout = "SCHED_SHUTDOWN_TIMEOUT"
	EnvPublicBaseURL   = "SCHED_PUBLIC_BASE_URL"

	// Data
	EnvDataDir           = "SCHED_DATA_DIR"
	EnvSessionIdleTTL    = "SCHED_SESSION_IDLE_TTL"
	EnvSessionSweepEvery = "SCHED_SESSION_SWEEP_INTERVAL"

	// Portal
	EnvPortalBaseURL    = "SCHED_PORTAL_BASE_URL"
	EnvPortalTimeout    = "SCHED_PORTAL_TIMEOUT"
	EnvPortalMaxRetries = "SCHED_PORTAL_MAX_RETRIES"

	// Rate Limits
	EnvGlobalRateRPS  = "SCHED_GLOBAL_RATE_RPS"
	EnvUserRateBurst  = "SCHED_USER_RATE_BURST"
	EnvUserRateRefill = "SCHED_USER_RATE_REFILL"

	// Staff console
	EnvAdminSessionTTL = "SCHED_ADMIN_SESSION_TTL"
	EnvAdminUsername   = "SCHED_ADMIN_USERNAME"
	EnvAdminPassword   = "SCHED_ADMIN_PASSWORD"

	// Broadcast
	EnvBroadcastWorkers = "SCHED_BROADCAST_WORKERS"
	EnvBroadcastRPS     = "SCHED_BROADCAST_RPS"

	// Snapshot backup feature
	EnvBackupEnabled         = "SCHED_BACKUP_ENABLED"
	EnvBackupEndpoint        = "SCHED_BACKUP_S3_ENDPOINT"
	EnvBackupAccessKeyID     = "SCHED_BACKUP_ACCESS_KEY_ID"
	EnvBackupSecretAccessKey = "SCHED_BACKUP_SECRET_ACCESS_KEY"
	EnvBackupBucket          = "SCHED_BACKUP_BUCKET"
	EnvBackupSnapshotKey     = "SCHED_BACKUP_SNAPSHOT_KEY"
	EnvBackupInterval        = "SCHED_BACKUP_INTERVAL"

	// Sentry Feature
	EnvSentryDSN         = "SCHED_SENTRY_DSN"
	EnvSentryEnvironment = "SCHED_SENTRY_ENVIRONMENT"
	EnvSentryRelease     = "SCHED_SENTRY_RELEASE"

	// Better Stack Feature
	EnvBetterStackToken    = "SCHED_BETTERSTACK_TOKEN"
	EnvBetterStackEndpoint = "SCHED_BETTERSTACK_ENDPOINT"

	// Metrics Auth Feature
	EnvMetricsUsername = "SCHED_METRICS_USERNAME"
	EnvMetricsPassword = "SCHED_METRICS_PASSWORD"
)
