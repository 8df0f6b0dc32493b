package dialog

import (
	"context"
	"fmt"
	"time"

	apperrors "github.com/studsched/studsched-bot/internal/errors"
	"github.com/studsched/studsched-bot/internal/logger"
	"github.com/studsched/studsched-bot/internal/metrics"
	"github.com/studsched/studsched-bot/internal/session"
)

// errorText is shown when a handler fails. The session keeps the state it
// had before the failed step.
const errorText = "Произошла ошибка. Попробуйте ещё раз позже."

// Deliverer sends abstract messages to a user. replyTo is the id of the
// inbound message, used for edit-in-place rendering.
type Deliverer interface {
	Deliver(ctx context.Context, userID int64, replyTo int, messages []Message) error
}

// Flow registers a group of related handlers on the router.
type Flow interface {
	Register(r *Router)
}

// Engine drives dispatch: it serializes events per user, routes them to a
// handler, applies the reply's session effects on success and hands the
// messages to the deliverer.
type Engine struct {
	router   *Router
	sessions session.Store
	sink     Deliverer
	log      *logger.Logger
	metrics  *metrics.Metrics
}

// NewEngine creates an engine and registers the flows in order. Flow order
// matters: within a state and among globals, earlier flows win ties.
func NewEngine(sessions session.Store, sink Deliverer, log *logger.Logger, m *metrics.Metrics, flows ...Flow) *Engine {
	router := NewRouter()
	for _, f := range flows {
		f.Register(router)
	}
	return &Engine{
		router:   router,
		sessions: sessions,
		sink:     sink,
		log:      log.WithModule("dialog"),
		metrics:  m,
	}
}

// Dispatch processes one event end to end. Events for one user never run
// concurrently; the user's dispatch lock is held for the whole cycle, so
// arrival order is processing order.
func (e *Engine) Dispatch(ctx context.Context, ev Event) (err error) {
	unlock := e.sessions.LockUser(ev.UserID)
	defer unlock()

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v", r)
			e.log.WithUserID(ev.UserID).WithField("panic", r).ErrorContext(ctx, "handler panicked")
			// The user still gets a failure message; silence after a
			// panic looks like the bot hung.
			if derr := e.sink.Deliver(ctx, ev.UserID, ev.MessageID, []Message{{Text: errorText}}); derr != nil {
				e.log.WithError(derr).WarnContext(ctx, "failed to deliver error message")
			}
		}
	}()

	sess := e.sessions.Get(ev.UserID)

	name, fn, ok := e.router.Route(sess.State, ev)
	if !ok {
		// No match is a valid terminal outcome, not an error.
		e.metrics.RecordDispatchMiss(string(sess.State), string(ev.Kind))
		e.log.WithUserID(ev.UserID).
			WithField("state", string(sess.State)).
			DebugContext(ctx, "no handler matched, event dropped")
		return nil
	}

	log := e.log.WithUserID(ev.UserID).WithField("handler", name)

	start := time.Now()
	reply, err := fn(ctx, sess, ev)
	elapsed := time.Since(start).Seconds()

	if err != nil {
		status := "error"
		if apperrors.IsCollaborator(err) {
			status = "collaborator_error"
		}
		e.metrics.RecordDispatch(name, status, elapsed)
		log.WithError(err).ErrorContext(ctx, "handler failed")
		// State untouched: required context keys for the current state are
		// still the ones that rendered it.
		if derr := e.sink.Deliver(ctx, ev.UserID, ev.MessageID, []Message{{Text: errorText}}); derr != nil {
			log.WithError(derr).WarnContext(ctx, "failed to deliver error message")
		}
		return err
	}

	e.metrics.RecordDispatch(name, "success", elapsed)

	if reply == nil {
		return nil
	}

	e.apply(ev.UserID, reply)

	if len(reply.Messages) > 0 {
		if derr := e.sink.Deliver(ctx, ev.UserID, ev.MessageID, reply.Messages); derr != nil {
			// Delivery failures are reported, never fatal to the session.
			log.WithError(derr).ErrorContext(ctx, "delivery failed")
			return derr
		}
	}

	return nil
}

// apply commits a successful reply's session effects.
// Clear wins over patch and transition.
func (e *Engine) apply(userID int64, reply *Reply) {
	if reply.clear {
		e.sessions.Clear(userID)
		return
	}
	if len(reply.patch) > 0 {
		e.sessions.MergeContext(userID, reply.patch)
	}
	if reply.nextState != nil {
		e.sessions.SetState(userID, *reply.nextState)
	}
}
