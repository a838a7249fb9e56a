package server

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"dvf-analyzer/models"
	"dvf-analyzer/services"
)

// Session keeps the outcome of one analysis so follow-up calls can refer to
// its records.
type Session struct {
	ID        string                   `json:"session_id"`
	CreatedAt time.Time                `json:"created_at"`
	Result    *models.AnalysisResult   `json:"result"`
	Records   []models.ExtractedRecord `json:"-"`
}

// SessionStore holds sessions in memory. Entries older than the TTL are
// dropped on access and by Prune.
type SessionStore struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	ttl      time.Duration
	now      func() time.Time
}

// NewSessionStore creates a store. A TTL of zero keeps sessions forever.
func NewSessionStore(ttl time.Duration) *SessionStore {
	return &SessionStore{
		sessions: make(map[string]*Session),
		ttl:      ttl,
		now:      time.Now,
	}
}

// Put stores result under a fresh ID. The cleaned records are kept most
// recent first, the order used by index lookups.
func (s *SessionStore) Put(result *models.AnalysisResult) *Session {
	sess := &Session{
		ID:        uuid.NewString(),
		CreatedAt: s.now(),
		Result:    result,
		Records:   services.RecentExamples(result.Records, -1),
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[sess.ID] = sess
	return sess
}

// Get returns a live session.
func (s *SessionStore) Get(id string) (*Session, bool) {
	s.mu.RLock()
	sess, ok := s.sessions[id]
	s.mu.RUnlock()
	if !ok {
		return nil, false
	}
	if s.expired(sess) {
		s.mu.Lock()
		delete(s.sessions, id)
		s.mu.Unlock()
		return nil, false
	}
	return sess, true
}

// Prune removes expired sessions and returns how many were dropped.
func (s *SessionStore) Prune() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for id, sess := range s.sessions {
		if s.expired(sess) {
			delete(s.sessions, id)
			n++
		}
	}
	return n
}

// Len returns the number of stored sessions.
func (s *SessionStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

func (s *SessionStore) expired(sess *Session) bool {
	return s.ttl > 0 && s.now().Sub(sess.CreatedAt) > s.ttl
}
