package ratelimit

import (
	"sync"
	"time"
)

// PerUserConfig configures a PerUserLimiter instance.
type PerUserConfig struct {
	MaxTokens     float64       // burst capacity per user
	RefillRate    float64       // tokens refilled per second
	CleanupPeriod time.Duration // how often inactive buckets are dropped
}

// PerUserLimiter tracks rate limits per Telegram user id.
// Each user gets a separate token bucket; buckets that refill back to
// capacity are dropped by a background cleanup loop.
type PerUserLimiter struct {
	mu       sync.RWMutex
	limiters map[int64]*Limiter
	config   PerUserConfig
	onDrop   func()
	stopCh   chan struct{}
	stopOnce sync.Once
}

// NewPerUserLimiter creates a new per-user rate limiter and starts its
// cleanup loop. Call Stop when done.
func NewPerUserLimiter(cfg PerUserConfig) *PerUserLimiter {
	pul := &PerUserLimiter{
		limiters: make(map[int64]*Limiter),
		config:   cfg,
		stopCh:   make(chan struct{}),
	}

	go pul.cleanupLoop()

	return pul
}

// OnDrop sets a callback invoked whenever a request is dropped.
// Must be set before concurrent use.
func (pul *PerUserLimiter) OnDrop(fn func()) {
	pul.onDrop = fn
}

// Allow checks if a request from the given user is allowed.
// Returns true if allowed (token consumed), false if rate limit exceeded.
func (pul *PerUserLimiter) Allow(userID int64) bool {
	if userID == 0 {
		return true
	}

	pul.mu.RLock()
	limiter, exists := pul.limiters[userID]
	pul.mu.RUnlock()

	if !exists {
		pul.mu.Lock()
		// Double-check after acquiring write lock
		limiter, exists = pul.limiters[userID]
		if !exists {
			limiter = New(pul.config.MaxTokens, pul.config.RefillRate)
			pul.limiters[userID] = limiter
		}
		pul.mu.Unlock()
	}

	allowed := limiter.Allow()
	if !allowed && pul.onDrop != nil {
		pul.onDrop()
	}
	return allowed
}

// ActiveCount returns the number of active per-user buckets.
func (pul *PerUserLimiter) ActiveCount() int {
	pul.mu.RLock()
	defer pul.mu.RUnlock()
	return len(pul.limiters)
}

func (pul *PerUserLimiter) cleanupLoop() {
	ticker := time.NewTicker(pul.config.CleanupPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-pul.stopCh:
			return
		case <-ticker.C:
			pul.mu.Lock()
			for id, limiter := range pul.limiters {
				if limiter.IsFull() {
					delete(pul.limiters, id)
				}
			}
			pul.mu.Unlock()
		}
	}
}

// Stop terminates the cleanup goroutine. Safe to call multiple times.
func (pul *PerUserLimiter) Stop() {
	pul.stopOnce.Do(func() {
		close(pul.stopCh)
	})
}
