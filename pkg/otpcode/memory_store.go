package otpcode

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	gocache "github.com/patrickmn/go-cache"
)

// MemoryStore keeps entries in process memory. Codes are lost on restart.
type MemoryStore struct {
	mu sync.Mutex
	c  *gocache.Cache
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{c: gocache.New(gocache.NoExpiration, time.Minute)}
}

func (s *MemoryStore) Save(_ context.Context, entry Entry, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.c.Set(entry.UserID, entry, ttl)
	return nil
}

func (s *MemoryStore) Get(_ context.Context, userID string) (Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.get(userID)
}

func (s *MemoryStore) get(userID string) (Entry, error) {
	v, ok := s.c.Get(userID)
	if !ok {
		return Entry{}, ErrCodeNotFound
	}
	return v.(Entry), nil
}

func (s *MemoryStore) Delete(_ context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.c.Delete(userID)
	return nil
}

func (s *MemoryStore) DeleteIf(_ context.Context, userID string, id uuid.UUID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, err := s.get(userID)
	if err != nil || e.ID != id {
		return false, nil
	}
	s.c.Delete(userID)
	return true, nil
}
