package sentry

import (
	"testing"
	"time"
)

func TestInitialize_EmptyDSNDisables(t *testing.T) {
	if err := Initialize(Config{DSN: ""}); err != nil {
		t.Errorf("expected nil error for empty DSN, got %v", err)
	}
	if IsEnabled() {
		t.Error("expected IsEnabled() to be false without a DSN")
	}
}

func TestInitialize_ValidConfig(t *testing.T) {
	// No t.Parallel(): the SDK keeps global state.
	err := Initialize(Config{
		DSN:         "https://public@sentry.example.com/1",
		Environment: "test",
		SampleRate:  1.0,
	})
	if err != nil {
		t.Errorf("expected nil error, got %v", err)
	}
	if !IsEnabled() {
		t.Error("expected IsEnabled() after initialization")
	}
	Flush(time.Second)
}

func TestInitialize_DefaultSampleRate(t *testing.T) {
	err := Initialize(Config{
		DSN:        "https://public@sentry.example.com/1",
		SampleRate: 0,
	})
	if err != nil {
		t.Errorf("expected nil error, got %v", err)
	}
	Flush(time.Second)
}

func TestFlush_NoPendingEvents(t *testing.T) {
	if !Flush(100 * time.Millisecond) {
		t.Error("expected Flush to succeed with no pending events")
	}
}
