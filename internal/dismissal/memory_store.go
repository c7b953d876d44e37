package dismissal

import (
	"context"
	"sync"
)

// MemoryStore is the in-process Store used in tests and as a degraded
// fallback when Redis is not configured.
type MemoryStore struct {
	mu    sync.RWMutex
	slots map[string][]string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{slots: make(map[string][]string)}
}

func (s *MemoryStore) Load(_ context.Context, slot string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	keys := s.slots[slot]
	out := make([]string, len(keys))
	copy(out, keys)
	return out, nil
}

func (s *MemoryStore) Save(_ context.Context, slot string, keys []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(keys))
	copy(out, keys)
	s.slots[slot] = out
	return nil
}
