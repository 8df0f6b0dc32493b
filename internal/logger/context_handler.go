package logger

import (
	"context"
	"log/slog"

	"github.com/studsched/studsched-bot/internal/ctxutil"
)

// ContextHandler decorates another slog.Handler and copies request-scoped
// values (Telegram user id, update request id) from the context into every
// record. Call sites on the dispatch path use the *Context logging methods
// and never thread these ids by hand.
type ContextHandler struct {
	handler slog.Handler
}

// NewContextHandler wraps the provided handler.
func NewContextHandler(handler slog.Handler) *ContextHandler {
	return &ContextHandler{handler: handler}
}

// Enabled delegates to the wrapped handler.
func (h *ContextHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.handler.Enabled(ctx, level)
}

// Handle adds the context values as attributes before delegating.
func (h *ContextHandler) Handle(ctx context.Context, r slog.Record) error {
	if userID := ctxutil.UserID(ctx); userID != 0 {
		r.AddAttrs(slog.Int64("user_id", userID))
	}
	if requestID := ctxutil.RequestID(ctx); requestID != "" {
		r.AddAttrs(slog.String("request_id", requestID))
	}
	return h.handler.Handle(ctx, r)
}

// WithAttrs returns a new ContextHandler over the wrapped handler's attrs.
func (h *ContextHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &ContextHandler{handler: h.handler.WithAttrs(attrs)}
}

// WithGroup returns a new ContextHandler with the group applied.
func (h *ContextHandler) WithGroup(name string) slog.Handler {
	return &ContextHandler{handler: h.handler.WithGroup(name)}
}
