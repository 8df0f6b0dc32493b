package admin

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// sessionStore holds the staff console's login sessions in memory. Console
// logins do not need to survive a restart.
type sessionStore struct {
	mu       sync.Mutex
	sessions map[string]sessionRecord
	ttl      time.Duration
	now      func() time.Time
}

type sessionRecord struct {
	username  string
	expiresAt time.Time
}

func newSessionStore(ttl time.Duration) *sessionStore {
	return &sessionStore{
		sessions: make(map[string]sessionRecord),
		ttl:      ttl,
		now:      time.Now,
	}
}

// Create issues a fresh opaque token for the given staff account.
func (s *sessionStore) Create(username string) string {
	token := uuid.NewString()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[token] = sessionRecord{
		username:  username,
		expiresAt: s.now().Add(s.ttl),
	}
	return token
}

// Lookup resolves a token to a staff username. Expired tokens are removed
// on access.
func (s *sessionStore) Lookup(token string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.sessions[token]
	if !ok {
		return "", false
	}
	if s.now().After(rec.expiresAt) {
		delete(s.sessions, token)
		return "", false
	}
	return rec.username, true
}

// Revoke drops a token on logout.
func (s *sessionStore) Revoke(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, token)
}
