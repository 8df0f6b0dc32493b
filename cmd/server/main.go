// Package main provides the schedule bot server entry point.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	sentrygin "github.com/getsentry/sentry-go/gin"
	"github.com/gin-gonic/gin"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/studsched/studsched-bot/internal/admin"
	"github.com/studsched/studsched-bot/internal/backup"
	"github.com/studsched/studsched-bot/internal/config"
	"github.com/studsched/studsched-bot/internal/dialog"
	"github.com/studsched/studsched-bot/internal/flows/menuflow"
	"github.com/studsched/studsched-bot/internal/flows/portalflow"
	"github.com/studsched/studsched-bot/internal/flows/registerflow"
	"github.com/studsched/studsched-bot/internal/flows/scheduleflow"
	"github.com/studsched/studsched-bot/internal/logger"
	"github.com/studsched/studsched-bot/internal/metrics"
	"github.com/studsched/studsched-bot/internal/notify"
	"github.com/studsched/studsched-bot/internal/portal"
	"github.com/studsched/studsched-bot/internal/ratelimit"
	"github.com/studsched/studsched-bot/internal/sentry"
	"github.com/studsched/studsched-bot/internal/session"
	"github.com/studsched/studsched-bot/internal/storage"
	"github.com/studsched/studsched-bot/internal/telegram"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	log := logger.NewWithOptions(logger.Options{
		Level:               cfg.LogLevel,
		BetterStackToken:    cfg.BetterStackToken,
		BetterStackEndpoint: cfg.BetterStackEndpoint,
	})
	log.Info("Starting schedule bot server")

	if err := sentry.Initialize(sentry.Config{
		DSN:         cfg.SentryDSN,
		Environment: cfg.SentryEnvironment,
		Release:     cfg.SentryRelease,
	}); err != nil {
		log.WithError(err).Warn("Failed to initialize Sentry")
	} else if sentry.IsEnabled() {
		log.Info("Sentry initialized")
	}
	defer sentry.Flush(2 * time.Second)

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	registry.MustRegister(collectors.NewBuildInfoCollector())
	m := metrics.New(registry)
	log.Info("Metrics initialized")

	// Restore the last snapshot before the database file is opened.
	var backupManager *backup.Manager
	if cfg.Backup.Enabled {
		s3Client, err := backup.NewS3Client(context.Background(), backup.S3Config{
			Endpoint:        cfg.Backup.Endpoint,
			AccessKeyID:     cfg.Backup.AccessKeyID,
			SecretAccessKey: cfg.Backup.SecretAccessKey,
			Bucket:          cfg.Backup.Bucket,
		})
		if err != nil {
			log.WithError(err).Error("Failed to create backup client")
			os.Exit(1)
		}
		backupManager = backup.NewManager(s3Client, cfg.Backup.SnapshotKey, cfg.Backup.Interval, cfg.DataDir, log)
		if err := backupManager.RestoreIfMissing(context.Background(), cfg.SQLitePath()); err != nil {
			log.WithError(err).Error("Failed to restore snapshot, starting with an empty database")
		}
	}

	db, err := storage.New(cfg.SQLitePath())
	if err != nil {
		log.WithError(err).Error("Failed to open database")
		os.Exit(1)
	}
	defer func() { _ = db.Close() }()
	db.SetMetrics(m)
	log.WithField("path", cfg.SQLitePath()).Info("Database connected")

	sessions := session.NewMemoryStore()

	portalClient := portal.NewClient(cfg.PortalBaseURL, cfg.PortalTimeout, cfg.PortalMaxRetries)
	portalClient.SetMetrics(m)
	log.WithField("base_url", cfg.PortalBaseURL).Info("Portal client created")

	bot, err := tgbotapi.NewBotAPI(cfg.TelegramToken)
	if err != nil {
		log.WithError(err).Error("Failed to create Telegram client")
		os.Exit(1)
	}
	log.WithField("username", bot.Self.UserName).Info("Telegram client authorized")

	sender := telegram.NewSender(bot, cfg.GlobalRateLimitRPS, log, m)

	// The registration catch-all must come last: it claims any text no
	// other handler wanted.
	engine := dialog.NewEngine(sessions, sender, log, m,
		scheduleflow.New(db, db, log),
		portalflow.New(db, portalClient, log),
		menuflow.New(),
		registerflow.New(db, log),
	)

	userLimiter := ratelimit.NewPerUserLimiter(ratelimit.PerUserConfig{
		MaxTokens:     cfg.UserRateLimitBurst,
		RefillRate:    cfg.UserRateLimitRefillPerSec,
		CleanupPeriod: config.RateLimiterCleanupInterval,
	})
	userLimiter.OnDrop(func() { m.RecordRateLimiterDrop("per_user") })
	defer userLimiter.Stop()

	webhookHandler := telegram.NewWebhook(telegram.WebhookConfig{
		SecretToken: cfg.TelegramWebhookSecret,
		Engine:      engine,
		Answerer:    sender,
		UserLimiter: userLimiter,
		Logger:      log,
		Metrics:     m,
	})

	if cfg.PublicBaseURL != "" {
		if err := registerTelegramWebhook(bot, cfg); err != nil {
			log.WithError(err).Error("Failed to register Telegram webhook")
			os.Exit(1)
		}
		log.Info("Telegram webhook registered")
	} else {
		log.Warn("SCHED_PUBLIC_BASE_URL not set, skipping webhook registration")
	}

	notifier := notify.New(db, sender, cfg.BroadcastWorkers, cfg.BroadcastRPS, log, m)
	adminHandler := admin.New(db, db, db, notifier, cfg.AdminSessionTTL, log)
	if err := adminHandler.Bootstrap(context.Background(), cfg.AdminUsername, cfg.AdminPassword); err != nil {
		log.WithError(err).Error("Failed to bootstrap staff account")
		os.Exit(1)
	}

	if cfg.LogLevel == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	if sentry.IsEnabled() {
		router.Use(sentrygin.New(sentrygin.Options{Repanic: true}))
	}
	router.Use(securityHeadersMiddleware())
	router.Use(loggingMiddleware(log))

	setupRoutes(router, cfg, webhookHandler, adminHandler, db, registry)

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  config.WebhookHTTPRead,
		WriteTimeout: config.WebhookHTTPWrite,
		IdleTimeout:  config.WebhookHTTPIdle,
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		defer func() {
			if r := recover(); r != nil {
				log.WithField("panic", r).Error("Panic in session sweep goroutine")
			}
		}()
		sweepIdleSessions(ctx, sessions, cfg, m, log)
	}()

	if backupManager != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer func() {
				if r := recover(); r != nil {
					log.WithField("panic", r).Error("Panic in snapshot goroutine")
				}
			}()
			backupManager.Run(ctx, db)
		}()
	}

	go func() {
		log.WithField("port", cfg.Port).Info("Server starting")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Error("Failed to start server")
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down server...")

	// Finish in-flight updates before the background jobs stop.
	drainCtx, drainCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	if err := webhookHandler.Shutdown(drainCtx); err != nil {
		log.WithError(err).Warn("Timeout waiting for in-flight updates")
	}
	drainCancel()

	cancel()

	jobsDone := make(chan struct{})
	go func() {
		wg.Wait()
		close(jobsDone)
	}()
	select {
	case <-jobsDone:
		log.Info("All background goroutines stopped")
	case <-time.After(cfg.ShutdownTimeout):
		log.Warn("Timeout waiting for background goroutines")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("Server forced to shutdown")
	}

	if err := db.Close(); err != nil {
		log.WithError(err).Error("Failed to close database")
	}

	log.Info("Server stopped")
}

// registerTelegramWebhook points Telegram at this instance's webhook URL.
// Raw params because the client's WebhookConfig predates secret_token.
func registerTelegramWebhook(bot *tgbotapi.BotAPI, cfg *config.Config) error {
	params := tgbotapi.Params{
		"url": cfg.PublicBaseURL + cfg.WebhookPath(),
	}
	if cfg.TelegramWebhookSecret != "" {
		params["secret_token"] = cfg.TelegramWebhookSecret
	}
	if _, err := bot.MakeRequest("setWebhook", params); err != nil {
		return fmt.Errorf("set webhook: %w", err)
	}
	return nil
}
