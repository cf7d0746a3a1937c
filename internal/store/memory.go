package store

import (
	"context"
	"sync"
)

// MemoryStore keeps entries in process memory. It is the default backend: its
// lifetime matches one application run, which is exactly the session scope the
// license cache expects.
type MemoryStore struct {
	lock    sync.RWMutex
	entries map[string][]byte
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string][]byte)}
}

func (s *MemoryStore) Get(_ context.Context, key string) ([]byte, error) {
	s.lock.RLock()
	defer s.lock.RUnlock()

	value, ok := s.entries[key]
	if !ok {
		return nil, ErrNotFound
	}

	// Copy so callers cannot mutate the stored value.
	out := make([]byte, len(value))
	copy(out, value)
	return out, nil
}

func (s *MemoryStore) Set(_ context.Context, key string, value []byte) error {
	s.lock.Lock()
	defer s.lock.Unlock()

	stored := make([]byte, len(value))
	copy(stored, value)
	s.entries[key] = stored
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, keys ...string) error {
	s.lock.Lock()
	defer s.lock.Unlock()

	for _, key := range keys {
		delete(s.entries, key)
	}
	return nil
}
