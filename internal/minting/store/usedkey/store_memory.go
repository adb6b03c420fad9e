package usedkey

import (
	"context"
	"sync"
)

// MemoryStore keeps used keys in memory.
type MemoryStore struct {
	mu   sync.RWMutex
	keys map[string]int64 // key -> period bucket
}

// NewMemory constructs an empty in-memory used-key store.
func NewMemory() *MemoryStore {
	return &MemoryStore{keys: make(map[string]int64)}
}

func (s *MemoryStore) Add(ctx context.Context, key string, periodBucket int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.keys[key]; exists {
		return false, nil
	}
	s.keys[key] = periodBucket
	return true, nil
}

func (s *MemoryStore) Contains(ctx context.Context, key string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, exists := s.keys[key]
	return exists, nil
}

func (s *MemoryStore) ArchiveBefore(ctx context.Context, cutoffBucket int64) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	dropped := 0
	for key, bucket := range s.keys {
		if bucket != FirstTimeBucket && bucket < cutoffBucket {
			delete(s.keys, key)
			dropped++
		}
	}
	return dropped, nil
}
