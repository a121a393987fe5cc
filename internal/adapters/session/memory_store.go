package session

import (
	"context"
	"sync"
	"time"

	"github.com/goban/core/internal/domain/entities"
	"github.com/goban/core/internal/ports"
)

// MemoryStore keeps login sessions in process. Entries older than the TTL
// are treated as absent and swept on write.
type MemoryStore struct {
	mu       sync.Mutex
	ttl      time.Duration
	now      func() time.Time
	sessions map[string]entities.LoginSession
}

// NewMemoryStore creates an in-process session store
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{
		ttl:      ttl,
		now:      time.Now,
		sessions: make(map[string]entities.LoginSession),
	}
}

var _ ports.LoginSessionStore = (*MemoryStore)(nil)

func (s *MemoryStore) Save(_ context.Context, session *entities.LoginSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	for key, existing := range s.sessions {
		if existing.Expired(now, s.ttl) {
			delete(s.sessions, key)
		}
	}

	s.sessions[session.Key] = *session
	return nil
}

func (s *MemoryStore) Get(_ context.Context, key string) (*entities.LoginSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.sessions[key]
	if !ok || session.Expired(s.now(), s.ttl) {
		delete(s.sessions, key)
		return nil, entities.ErrSessionNotFound
	}

	return &session, nil
}

func (s *MemoryStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.sessions, key)
	return nil
}
