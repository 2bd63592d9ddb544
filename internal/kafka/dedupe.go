package kafka

import (
	"sync"
	"time"
)

// DedupeStore provides interface for message deduplication
type DedupeStore interface {
	Exists(messageID string) bool
	Add(messageID string) error
}

// InMemoryDedupeStore is a simple in-memory implementation
type InMemoryDedupeStore struct {
	mu    sync.RWMutex
	store map[string]time.Time
	ttl   time.Duration
}

func NewInMemoryDedupeStore(ttl time.Duration) *InMemoryDedupeStore {
	store := &InMemoryDedupeStore{
		store: make(map[string]time.Time),
		ttl:   ttl,
	}
	go store.cleanup()
	return store
}

func (s *InMemoryDedupeStore) Exists(messageID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	expiry, ok := s.store[messageID]
	return ok && time.Now().Before(expiry)
}

func (s *InMemoryDedupeStore) Add(messageID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.store[messageID] = time.Now().Add(s.ttl)
	return nil
}

func (s *InMemoryDedupeStore) cleanup() {
	ticker := time.NewTicker(1 * time.Minute)
	defer ticker.Stop()

	for range ticker.C {
		s.mu.Lock()
		now := time.Now()
		for id, expiry := range s.store {
			if now.After(expiry) {
				delete(s.store, id)
			}
		}
		s.mu.Unlock()
	}
}
