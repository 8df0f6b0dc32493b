package ratelimit

import (
	"sync"
	"testing"
	"time"
)

func TestPerUserLimiter_Allow(t *testing.T) {
	limiter := NewPerUserLimiter(PerUserConfig{
		MaxTokens:     3,
		RefillRate:    1.0,
		CleanupPeriod: 1 * time.Minute,
	})
	defer limiter.Stop()

	for i := 0; i < 3; i++ {
		if !limiter.Allow(1001) {
			t.Errorf("Request %d should be allowed", i+1)
		}
	}

	if limiter.Allow(1001) {
		t.Error("4th request should be denied")
	}

	// A different user has a separate bucket
	if !limiter.Allow(1002) {
		t.Error("Different user should be allowed")
	}
}

func TestPerUserLimiter_ZeroUserID(t *testing.T) {
	limiter := NewPerUserLimiter(PerUserConfig{
		MaxTokens:     1,
		RefillRate:    0.1,
		CleanupPeriod: 1 * time.Minute,
	})
	defer limiter.Stop()

	for i := 0; i < 10; i++ {
		if !limiter.Allow(0) {
			t.Error("Zero user id should always be allowed")
		}
	}
}

func TestPerUserLimiter_OnDrop(t *testing.T) {
	dropCount := 0
	limiter := NewPerUserLimiter(PerUserConfig{
		MaxTokens:     1,
		RefillRate:    0.001,
		CleanupPeriod: 1 * time.Minute,
	})
	limiter.OnDrop(func() {
		dropCount++
	})
	defer limiter.Stop()

	limiter.Allow(42)
	limiter.Allow(42)

	if dropCount != 1 {
		t.Errorf("Expected 1 drop, got %d", dropCount)
	}
}

func TestPerUserLimiter_Cleanup(t *testing.T) {
	limiter := NewPerUserLimiter(PerUserConfig{
		MaxTokens:     10,
		RefillRate:    1000, // fast refill so buckets look inactive
		CleanupPeriod: 100 * time.Millisecond,
	})
	defer limiter.Stop()

	limiter.Allow(1)
	limiter.Allow(2)

	time.Sleep(300 * time.Millisecond)

	if limiter.ActiveCount() != 0 {
		t.Errorf("Expected 0 active limiters after cleanup, got %d", limiter.ActiveCount())
	}
}

func TestPerUserLimiter_Stop(t *testing.T) {
	limiter := NewPerUserLimiter(PerUserConfig{
		MaxTokens:     10,
		RefillRate:    1.0,
		CleanupPeriod: 1 * time.Minute,
	})

	limiter.Stop()
	limiter.Stop() // safe to call twice
}

func TestPerUserLimiter_Concurrent(t *testing.T) {
	limiter := NewPerUserLimiter(PerUserConfig{
		MaxTokens:     100,
		RefillRate:    1.0,
		CleanupPeriod: 1 * time.Minute,
	})
	defer limiter.Stop()

	var wg sync.WaitGroup
	for range 100 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 10; j++ {
				limiter.Allow(7)
			}
		}()
	}
	wg.Wait()
}

func TestLimiter_Refill(t *testing.T) {
	limiter := New(1, 100)

	if !limiter.Allow() {
		t.Fatal("first request should be allowed")
	}
	if limiter.Allow() {
		t.Fatal("second immediate request should be denied")
	}

	time.Sleep(50 * time.Millisecond)

	if !limiter.Allow() {
		t.Error("request after refill should be allowed")
	}
}
