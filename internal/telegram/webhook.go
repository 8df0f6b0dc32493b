package telegram

import (
	"context"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/studsched/studsched-bot/internal/config"
	"github.com/studsched/studsched-bot/internal/ctxutil"
	"github.com/studsched/studsched-bot/internal/dialog"
	"github.com/studsched/studsched-bot/internal/logger"
	"github.com/studsched/studsched-bot/internal/metrics"
	"github.com/studsched/studsched-bot/internal/ratelimit"
)

// callbackAnswerer acknowledges callback queries. *Sender implements it.
type callbackAnswerer interface {
	AnswerCallback(callbackID string) error
}

// Dispatcher is the slice of the dialogue engine the webhook needs.
type Dispatcher interface {
	Dispatch(ctx context.Context, ev dialog.Event) error
}

// Webhook receives Telegram updates over HTTP. The endpoint acknowledges
// immediately and processes each update asynchronously; Telegram redelivers
// on non-200 responses, so slow handlers must not block the response.
type Webhook struct {
	secretToken string
	engine      Dispatcher
	answerer    callbackAnswerer
	userLimiter *ratelimit.PerUserLimiter
	log         *logger.Logger
	metrics     *metrics.Metrics
	timeout     time.Duration
	wg          sync.WaitGroup
}

// WebhookConfig holds configuration for creating a new Webhook.
type WebhookConfig struct {
	SecretToken string
	Engine      Dispatcher
	Answerer    callbackAnswerer
	UserLimiter *ratelimit.PerUserLimiter
	Logger      *logger.Logger
	Metrics     *metrics.Metrics
	Timeout     time.Duration
}

// NewWebhook creates the webhook handler.
func NewWebhook(cfg WebhookConfig) *Webhook {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = config.WebhookProcessing
	}
	return &Webhook{
		secretToken: cfg.SecretToken,
		engine:      cfg.Engine,
		answerer:    cfg.Answerer,
		userLimiter: cfg.UserLimiter,
		log:         cfg.Logger.WithModule("webhook"),
		metrics:     cfg.Metrics,
		timeout:     timeout,
	}
}

// Handle is the Gin handler for the webhook endpoint.
func (h *Webhook) Handle(c *gin.Context) {
	if h.secretToken != "" &&
		c.GetHeader("X-Telegram-Bot-Api-Secret-Token") != h.secretToken {
		h.log.Warn("webhook request with bad secret token")
		c.Status(http.StatusForbidden)
		return
	}

	var update tgbotapi.Update
	if err := c.ShouldBindJSON(&update); err != nil {
		h.log.WithError(err).Warn("failed to parse update")
		c.Status(http.StatusBadRequest)
		return
	}

	// Acknowledge before processing; Telegram redelivers on anything else.
	c.Status(http.StatusOK)

	ev, callbackID, ok := normalizeUpdate(&update)
	if !ok {
		return
	}

	if !h.userLimiter.Allow(ev.UserID) {
		h.metrics.RecordWebhook(string(ev.Kind), "dropped", 0)
		return
	}

	h.wg.Add(1)
	go func() {
		defer h.wg.Done()

		start := time.Now()
		ctx, cancel := context.WithTimeout(context.Background(), h.timeout)
		defer cancel()
		ctx = ctxutil.WithUserID(ctx, ev.UserID)
		ctx = ctxutil.WithRequestID(ctx, strconv.Itoa(update.UpdateID))

		defer func() {
			if r := recover(); r != nil {
				h.log.WithField("panic", r).ErrorContext(ctx, "panic in async update processing")
			}
		}()

		if callbackID != "" {
			if err := h.answerer.AnswerCallback(callbackID); err != nil {
				h.log.WithError(err).DebugContext(ctx, "failed to answer callback query")
			}
		}

		status := "success"
		if err := h.engine.Dispatch(ctx, ev); err != nil {
			status = "error"
		}
		h.metrics.RecordWebhook(string(ev.Kind), status, time.Since(start).Seconds())
	}()
}

// normalizeUpdate converts a Telegram update into a dialogue event.
// Updates the bot does not handle (edits, channel posts, non-private chats)
// are skipped.
func normalizeUpdate(update *tgbotapi.Update) (ev dialog.Event, callbackID string, ok bool) {
	switch {
	case update.CallbackQuery != nil:
		cb := update.CallbackQuery
		messageID := 0
		if cb.Message != nil {
			messageID = cb.Message.MessageID
		}
		return dialog.NormalizeCallback(cb.From.ID, cb.Data, messageID), cb.ID, true

	case update.Message != nil && update.Message.From != nil:
		msg := update.Message
		if msg.Chat == nil || !msg.Chat.IsPrivate() {
			return dialog.Event{}, "", false
		}
		return dialog.NormalizeText(msg.From.ID, msg.Text, msg.MessageID), "", true

	default:
		return dialog.Event{}, "", false
	}
}

// Shutdown waits for all async update processing to complete.
// It returns an error if the context is canceled before completion.
func (h *Webhook) Shutdown(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		defer close(done)
		h.wg.Wait()
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
