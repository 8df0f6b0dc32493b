package session

import (
	"maps"
	"sync"
	"time"
)

// userSession is the mutable per-user record. Its own mutex serializes
// state access; dispatchMu serializes whole dispatch cycles.
type userSession struct {
	mu         sync.Mutex
	dispatchMu sync.Mutex
	state      State
	context    map[string]string
	updatedAt  time.Time
}

// MemoryStore is an in-memory Store implementation. The top-level map is
// guarded by an RWMutex only for bucket lookup; all state operations take
// the per-user mutex, so users never contend with each other.
type MemoryStore struct {
	mu    sync.RWMutex
	users map[int64]*userSession
	now   func() time.Time
}

// NewMemoryStore creates an empty in-memory session store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users: make(map[int64]*userSession),
		now:   time.Now,
	}
}

// bucket returns the user's record, creating it on first touch.
func (s *MemoryStore) bucket(userID int64) *userSession {
	s.mu.RLock()
	us, ok := s.users[userID]
	s.mu.RUnlock()
	if ok {
		return us
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	// Double-check after acquiring write lock
	if us, ok = s.users[userID]; ok {
		return us
	}
	us = &userSession{
		state:     StateIdle,
		context:   make(map[string]string),
		updatedAt: s.now(),
	}
	s.users[userID] = us
	return us
}

// Get returns a snapshot of the user's session.
func (s *MemoryStore) Get(userID int64) Session {
	us := s.bucket(userID)

	us.mu.Lock()
	defer us.mu.Unlock()
	return Session{
		UserID:    userID,
		State:     us.state,
		Context:   maps.Clone(us.context),
		UpdatedAt: us.updatedAt,
	}
}

// SetState replaces the user's state.
func (s *MemoryStore) SetState(userID int64, state State) {
	us := s.bucket(userID)

	us.mu.Lock()
	defer us.mu.Unlock()
	us.state = state
	us.updatedAt = s.now()
}

// MergeContext applies the patch to the user's context map.
// Keys with empty values are removed.
func (s *MemoryStore) MergeContext(userID int64, patch map[string]string) {
	if len(patch) == 0 {
		return
	}
	us := s.bucket(userID)

	us.mu.Lock()
	defer us.mu.Unlock()
	for k, v := range patch {
		if v == "" {
			delete(us.context, k)
			continue
		}
		us.context[k] = v
	}
	us.updatedAt = s.now()
}

// Clear resets the user to the idle state with an empty context.
func (s *MemoryStore) Clear(userID int64) {
	us := s.bucket(userID)

	us.mu.Lock()
	defer us.mu.Unlock()
	us.state = StateIdle
	us.context = make(map[string]string)
	us.updatedAt = s.now()
}

// LockUser acquires the user's dispatch lock.
func (s *MemoryStore) LockUser(userID int64) func() {
	us := s.bucket(userID)
	us.dispatchMu.Lock()
	return us.dispatchMu.Unlock
}

// SweepIdle clears sessions untouched for longer than ttl.
func (s *MemoryStore) SweepIdle(ttl time.Duration) int {
	cutoff := s.now().Add(-ttl)

	s.mu.RLock()
	candidates := make([]*userSession, 0, len(s.users))
	for _, us := range s.users {
		candidates = append(candidates, us)
	}
	s.mu.RUnlock()

	swept := 0
	for _, us := range candidates {
		// A user mid-dispatch holds dispatchMu for the whole cycle;
		// resetting them here would lose the step's effects. They stay
		// for the next sweep.
		if !us.dispatchMu.TryLock() {
			continue
		}
		us.mu.Lock()
		stale := us.updatedAt.Before(cutoff) && (us.state != StateIdle || len(us.context) > 0)
		if stale {
			us.state = StateIdle
			us.context = make(map[string]string)
			us.updatedAt = s.now()
			swept++
		}
		us.mu.Unlock()
		us.dispatchMu.Unlock()
	}
	return swept
}
