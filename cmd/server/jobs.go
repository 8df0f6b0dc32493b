// Package main provides the schedule bot server entry point.
package main

import (
	"context"
	"time"

	"github.com/studsched/studsched-bot/internal/config"
	"github.com/studsched/studsched-bot/internal/logger"
	"github.com/studsched/studsched-bot/internal/metrics"
	"github.com/studsched/studsched-bot/internal/session"
)

// sweepIdleSessions periodically resets sessions that were abandoned
// mid-dialogue. A user who comes back after the TTL starts from the root
// menu instead of a stale question.
func sweepIdleSessions(ctx context.Context, sessions *session.MemoryStore, cfg *config.Config, m *metrics.Metrics, log *logger.Logger) {
	ticker := time.NewTicker(cfg.SessionSweepInterval)
	defer ticker.Stop()

	log.WithField("ttl", cfg.SessionIdleTTL.String()).
		WithField("interval", cfg.SessionSweepInterval.String()).
		Info("Session sweep started")

	for {
		select {
		case <-ctx.Done():
			log.Info("Session sweep stopped")
			return
		case <-ticker.C:
			swept := sessions.SweepIdle(cfg.SessionIdleTTL)
			if swept > 0 {
				m.RecordSessionsSwept(swept)
				log.WithField("swept", swept).Info("Idle sessions reset")
			}
		}
	}
}
