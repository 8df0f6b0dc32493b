package logger

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/studsched/studsched-bot/internal/ctxutil"
)

func TestContextHandler_AddsContextValues(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter("info", &buf)

	ctx := ctxutil.WithUserID(context.Background(), 42)
	ctx = ctxutil.WithRequestID(ctx, "upd-17")
	log.InfoContext(ctx, "dispatching")

	out := buf.String()
	assert.Contains(t, out, `"user_id":42`)
	assert.Contains(t, out, `"request_id":"upd-17"`)
}

func TestContextHandler_PlainContextAddsNothing(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter("info", &buf)

	log.InfoContext(context.Background(), "dispatching")

	out := buf.String()
	assert.NotContains(t, out, "user_id")
	assert.NotContains(t, out, "request_id")
}

func TestContextHandler_SurvivesWith(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter("info", &buf).WithModule("webhook")

	ctx := ctxutil.WithRequestID(context.Background(), "upd-9")
	log.WarnContext(ctx, "slow update")

	out := buf.String()
	assert.Contains(t, out, `"module":"webhook"`)
	assert.Contains(t, out, `"request_id":"upd-9"`)
}
