// Centralized timeout constants.
//
// Telegram expects the webhook endpoint to acknowledge quickly; actual
// update processing happens asynchronously, so the HTTP timeouts here only
// cover reading the update payload and writing the 200 response.
package config

import "time"

// Webhook timeouts
const (
	// WebhookProcessing bounds the asynchronous handling of a single update,
	// including dispatch, storage queries and a possible portal round trip.
	WebhookProcessing = 60 * time.Second

	// WebhookHTTPRead is the HTTP server read timeout. Telegram updates are
	// small JSON payloads.
	WebhookHTTPRead = 10 * time.Second

	// WebhookHTTPWrite is the HTTP server write timeout.
	WebhookHTTPWrite = 15 * time.Second

	// WebhookHTTPIdle is the HTTP server idle timeout for keep-alive connections.
	WebhookHTTPIdle = 120 * time.Second
)

// Portal timeouts
const (
	// PortalRequest is the timeout for a single HTTP request to the LMS
	// portal. The portal is slow during session peaks.
	PortalRequest = 30 * time.Second

	// PortalRetryInitial is the initial delay before retrying a failed
	// request. Exponential backoff: 1s -> 2s -> 4s -> 8s.
	PortalRetryInitial = 1 * time.Second

	// PortalRateLimit is the minimum delay between consecutive portal
	// requests from this process.
	PortalRateLimit = 500 * time.Millisecond
)

// Database timeouts
const (
	// DatabaseBusyTimeout is the SQLite busy_timeout pragma value.
	DatabaseBusyTimeout = 30 * time.Second

	// DatabaseConnMaxLifetime is the maximum lifetime of database connections.
	DatabaseConnMaxLifetime = time.Hour
)

// Background job intervals
const (
	// SessionSweepInterval is how often idle conversation sessions are cleared.
	SessionSweepInterval = 10 * time.Minute

	// SessionIdleTTL is how long a session may sit untouched before the
	// sweeper resets it to the idle state.
	SessionIdleTTL = 6 * time.Hour

	// SnapshotInterval is how often the database snapshot is uploaded.
	SnapshotInterval = 6 * time.Hour

	// RateLimiterCleanupInterval is how often inactive per-user limiters are dropped.
	RateLimiterCleanupInterval = 5 * time.Minute
)

// Graceful shutdown
const (
	// GracefulShutdown is the timeout for graceful server shutdown.
	GracefulShutdown = 30 * time.Second
)
