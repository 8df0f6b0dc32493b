package telegram

import (
	"context"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/studsched/studsched-bot/internal/dialog"
	apperrors "github.com/studsched/studsched-bot/internal/errors"
	"github.com/studsched/studsched-bot/internal/logger"
	"github.com/studsched/studsched-bot/internal/metrics"
	"github.com/studsched/studsched-bot/internal/ratelimit"
)

// BotAPI is the slice of the Telegram client the sender needs.
// *tgbotapi.BotAPI implements it.
type BotAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
}

// Sender is the outbound delivery sink. It implements dialog.Deliverer and
// is also used directly by the broadcast notifier. A global token bucket
// keeps the process under Telegram's bot-wide send limit.
type Sender struct {
	api     BotAPI
	limiter *ratelimit.Limiter
	log     *logger.Logger
	metrics *metrics.Metrics
}

var _ dialog.Deliverer = (*Sender)(nil)

// NewSender creates a sender with the given global rate limit (messages
// per second).
func NewSender(api BotAPI, rps float64, log *logger.Logger, m *metrics.Metrics) *Sender {
	return &Sender{
		api:     api,
		limiter: ratelimit.New(rps, rps),
		log:     log.WithModule("telegram"),
		metrics: m,
	}
}

// Deliver sends the reply messages in order. A message flagged EditInPlace
// edits the originating message when its id is known; if Telegram rejects
// the edit (message too old, contents identical) the sender falls back to
// a fresh message rather than losing the reply.
func (s *Sender) Deliver(ctx context.Context, userID int64, replyTo int, messages []dialog.Message) error {
	for _, m := range messages {
		if err := s.limiter.Wait(ctx); err != nil {
			return err
		}

		if m.EditInPlace && replyTo != 0 {
			if err := s.edit(userID, replyTo, m); err == nil {
				continue
			}
		}

		if _, err := s.api.Send(BuildSend(userID, m)); err != nil {
			s.metrics.RecordDelivery("send", "error")
			s.log.WithError(err).WithUserID(userID).Error("failed to send message")
			return apperrors.NewCollaboratorError("delivery", "send", err)
		}
		s.metrics.RecordDelivery("send", "success")
	}
	return nil
}

func (s *Sender) edit(userID int64, messageID int, m dialog.Message) error {
	if _, err := s.api.Send(BuildEdit(userID, messageID, m)); err != nil {
		// "message is not modified" means the user pressed the same button
		// twice; nothing to re-send in that case.
		if strings.Contains(err.Error(), "message is not modified") {
			s.metrics.RecordDelivery("edit", "success")
			return nil
		}
		s.metrics.RecordDelivery("edit", "error")
		s.log.WithError(err).WithUserID(userID).Debug("edit failed, sending new message")
		return err
	}
	s.metrics.RecordDelivery("edit", "success")
	return nil
}

// SendText delivers one plain text message. Used by the broadcast path.
func (s *Sender) SendText(ctx context.Context, userID int64, text string) error {
	return s.Deliver(ctx, userID, 0, []dialog.Message{{Text: text, HTML: true}})
}

// AnswerCallback acknowledges a callback query so the client stops showing
// the progress spinner.
func (s *Sender) AnswerCallback(callbackID string) error {
	_, err := s.api.Request(tgbotapi.NewCallback(callbackID, ""))
	return err
}
