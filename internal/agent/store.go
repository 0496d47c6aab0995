package agent

import (
	"sync"
	"time"

	"github.com/p-n-ai/pai-quiz/internal/quiz"
)

// SessionStore holds the active quiz session of each user.
type SessionStore interface {
	Get(key string) (*quiz.Session, bool)
	Put(key string, s *quiz.Session)
	Delete(key string)
}

type storedSession struct {
	session    *quiz.Session
	lastActive time.Time
}

// MemoryStore is an in-memory implementation of SessionStore.
type MemoryStore struct {
	sessions map[string]*storedSession
	mu       sync.RWMutex
}

// NewMemoryStore creates a new in-memory session store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sessions: make(map[string]*storedSession),
	}
}

func (s *MemoryStore) Get(key string) (*quiz.Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.sessions[key]
	if !ok {
		return nil, false
	}
	stored.lastActive = time.Now()
	return stored.session, true
}

func (s *MemoryStore) Put(key string, sess *quiz.Session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[key] = &storedSession{session: sess, lastActive: time.Now()}
}

func (s *MemoryStore) Delete(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, key)
}

// Len returns the number of active sessions.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// EvictIdle drops sessions not touched since before cutoff and returns how many were removed.
func (s *MemoryStore) EvictIdle(cutoff time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for key, stored := range s.sessions {
		if stored.lastActive.Before(cutoff) {
			delete(s.sessions, key)
			n++
		}
	}
	return n
}
