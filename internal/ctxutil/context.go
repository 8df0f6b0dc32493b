// Package ctxutil provides typed context keys for request-scoped values
// (user id, request id) shared between the webhook layer, the dialogue
// engine and the logger.
package ctxutil

import "context"

type contextKey int

const (
	userIDKey contextKey = iota
	requestIDKey
)

// WithUserID returns a context carrying the Telegram user id.
func WithUserID(ctx context.Context, userID int64) context.Context {
	return context.WithValue(ctx, userIDKey, userID)
}

// UserID extracts the Telegram user id from the context.
// Returns 0 if not set.
func UserID(ctx context.Context) int64 {
	if v, ok := ctx.Value(userIDKey).(int64); ok {
		return v
	}
	return 0
}

// WithRequestID returns a context carrying the update/request id.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey, requestID)
}

// RequestID extracts the request id from the context.
// Returns "" if not set.
func RequestID(ctx context.Context) string {
	if v, ok := ctx.Value(requestIDKey).(string); ok {
		return v
	}
	return ""
}
