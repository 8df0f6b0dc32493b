// Package main provides the schedule bot server entry point.
package main

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/studsched/studsched-bot/internal/admin"
	"github.com/studsched/studsched-bot/internal/config"
	"github.com/studsched/studsched-bot/internal/storage"
	"github.com/studsched/studsched-bot/internal/telegram"
)

// setupRoutes configures all HTTP routes.
func setupRoutes(router *gin.Engine, cfg *config.Config, webhookHandler *telegram.Webhook, adminHandler *admin.Handler, db *storage.DB, registry *prometheus.Registry) {
	rootHandler := func(c *gin.Context) {
		c.Redirect(http.StatusFound, "/admin/login")
	}
	router.GET("/", rootHandler)
	router.HEAD("/", rootHandler)

	// Liveness: only proves the process is up. Never checks dependencies.
	healthHandler := func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	}
	router.GET("/healthz", healthHandler)
	router.HEAD("/healthz", healthHandler)

	// Readiness: the bot cannot serve lookups without the database.
	readyHandler := func(c *gin.Context) {
		ctx := c.Request.Context()
		if err := db.Conn().PingContext(ctx); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status": "not ready",
				"reason": err.Error(),
			})
			return
		}

		scheduleCount, _ := db.CountScheduleEntries(ctx)
		c.JSON(http.StatusOK, gin.H{
			"status":   "ready",
			"database": "connected",
			"cache": gin.H{
				"schedule_entries": scheduleCount,
			},
		})
	}
	router.GET("/ready", readyHandler)
	router.HEAD("/ready", readyHandler)

	// Telegram webhook callback. The token-scoped path plus the secret
	// header check inside the handler gate fake updates.
	router.POST(cfg.WebhookPath(), webhookHandler.Handle)

	metricsHandler := gin.WrapH(promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	if cfg.MetricsPassword != "" {
		authed := router.Group("/", gin.BasicAuth(gin.Accounts{
			cfg.MetricsUsername: cfg.MetricsPassword,
		}))
		authed.GET("/metrics", metricsHandler)
	} else {
		router.GET("/metrics", metricsHandler)
	}

	adminHandler.Register(router)
}
