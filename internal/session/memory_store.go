package session

import (
	"context"
	"sync"
	"time"

	"github.com/vaidashi/storefront-orders/internal/models"
)

// MemoryStore is a process-local Store, used in tests and single-node setups
type MemoryStore struct {
	mu       sync.Mutex
	sessions map[string]Session
	ttl      time.Duration
	now      func() time.Time
}

// NewMemoryStore creates an empty store. A nil clock means time.Now.
func NewMemoryStore(ttl time.Duration, now func() time.Time) *MemoryStore {
	if now == nil {
		now = time.Now
	}
	return &MemoryStore{sessions: make(map[string]Session), ttl: ttl, now: now}
}

func (s *MemoryStore) Create(_ context.Context, userID models.DocumentID) (*Session, error) {
	now := s.now().UTC()
	sess := Session{
		Token:     newToken(),
		UserID:    userID,
		CreatedAt: now,
		ExpiresAt: now.Add(s.ttl),
	}

	s.mu.Lock()
	s.sessions[sess.Token] = sess
	s.mu.Unlock()

	return &sess, nil
}

func (s *MemoryStore) Get(_ context.Context, token string) (*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[token]
	if !ok {
		return nil, ErrNotFound
	}

	if !s.now().Before(sess.ExpiresAt) {
		delete(s.sessions, token)
		return nil, ErrNotFound
	}

	return &sess, nil
}

func (s *MemoryStore) Delete(_ context.Context, token string) error {
	s.mu.Lock()
	delete(s.sessions, token)
	s.mu.Unlock()
	return nil
}
