// Package notify fans a staff announcement out to registered students.
package notify

import (
	"context"
	"sync/atomic"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	apperrors "github.com/studsched/studsched-bot/internal/errors"
	"github.com/studsched/studsched-bot/internal/logger"
	"github.com/studsched/studsched-bot/internal/metrics"
	"github.com/studsched/studsched-bot/internal/ratelimit"
	"github.com/studsched/studsched-bot/internal/storage"
)

// TextSender delivers one plain message. *telegram.Sender implements it and
// owns the send rate limit; the notifier only bounds concurrency.
type TextSender interface {
	SendText(ctx context.Context, userID int64, text string) error
}

// Report summarizes one finished broadcast.
type Report struct {
	ID     string
	Total  int
	Sent   int
	Failed int
}

// Notifier sends broadcasts with a bounded worker pool, paced so a big
// fan-out does not eat the whole Telegram send budget. Per-recipient
// failures are counted, logged and skipped; one blocked user must not stop
// the rest of the fan-out.
type Notifier struct {
	students storage.StudentStore
	sender   TextSender
	workers  int
	limiter  *ratelimit.Limiter
	log      *logger.Logger
	metrics  *metrics.Metrics
}

// New creates a notifier with the given worker count, pacing deliveries at
// rps messages per second.
func New(students storage.StudentStore, sender TextSender, workers int, rps float64, log *logger.Logger, m *metrics.Metrics) *Notifier {
	if workers < 1 {
		workers = 1
	}
	var limiter *ratelimit.Limiter
	if rps > 0 {
		limiter = ratelimit.New(rps, rps)
	}
	return &Notifier{
		students: students,
		sender:   sender,
		workers:  workers,
		limiter:  limiter,
		log:      log.WithModule("notify"),
		metrics:  m,
	}
}

// Broadcast sends text to every registered student.
func (n *Notifier) Broadcast(ctx context.Context, text string) (*Report, error) {
	students, err := n.students.ListStudents(ctx)
	if err != nil {
		return nil, apperrors.NewCollaboratorError("storage", "list_students", err)
	}
	userIDs := make([]int64, len(students))
	for i, s := range students {
		userIDs[i] = s.UserID
	}
	return n.BroadcastTo(ctx, userIDs, text)
}

// BroadcastTo sends text to the given recipients and reports the per
// recipient outcome. It returns an error only when the context is
// cancelled mid-run.
func (n *Notifier) BroadcastTo(ctx context.Context, userIDs []int64, text string) (*Report, error) {
	report := &Report{
		ID:    uuid.NewString(),
		Total: len(userIDs),
	}
	log := n.log.WithField("broadcast_id", report.ID)
	log.WithField("recipients", report.Total).Info("broadcast started")

	var sent, failed atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(n.workers)
	for _, userID := range userIDs {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			if n.limiter != nil {
				if err := n.limiter.Wait(gctx); err != nil {
					return err
				}
			}
			if err := n.sender.SendText(gctx, userID, text); err != nil {
				failed.Add(1)
				n.metrics.RecordBroadcastRecipient("error")
				log.WithError(err).WithUserID(userID).Warn("broadcast delivery failed")
				return nil
			}
			sent.Add(1)
			n.metrics.RecordBroadcastRecipient("success")
			return nil
		})
	}
	err := g.Wait()

	report.Sent = int(sent.Load())
	report.Failed = int(failed.Load())
	log.WithFields(map[string]any{
		"sent":   report.Sent,
		"failed": report.Failed,
	}).Info("broadcast finished")

	return report, err
}
