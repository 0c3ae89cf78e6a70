package store

import "sync"

// MemoryStore provides an in-memory SessionStore implementation for tests
// and ephemeral sessions. It mirrors SQLite behavior for absent keys.
type MemoryStore struct {
	mu     sync.RWMutex
	values map[string]string
}

// NewMemory creates an empty MemoryStore.
func NewMemory() *MemoryStore {
	return &MemoryStore{values: make(map[string]string)}
}

// Get returns the value for key, or def when the key is absent.
func (s *MemoryStore) Get(key, def string) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if v, ok := s.values[key]; ok {
		return v
	}
	return def
}

// Set stores a value under key, replacing any previous value.
func (s *MemoryStore) Set(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = value
	return nil
}

// Remove deletes a key. Removing an absent key is not an error.
func (s *MemoryStore) Remove(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.values, key)
	return nil
}

// Clear removes all four session keys. Idempotent.
func (s *MemoryStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, key := range sessionKeys {
		delete(s.values, key)
	}
	return nil
}

// Close is a no-op for MemoryStore.
func (s *MemoryStore) Close() error {
	return nil
}
