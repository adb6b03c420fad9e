package audit

import (
	"context"
	"sync"

	id "aurum/pkg/domain"
)

// MemoryStore keeps audit events in memory for tests and single-node runs.
type MemoryStore struct {
	mu     sync.RWMutex
	events []Event
}

// NewMemoryStore constructs an in-memory audit store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Append(ctx context.Context, event Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	return nil
}

func (s *MemoryStore) ListByAccount(ctx context.Context, account id.Address) ([]Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []Event
	for _, e := range s.events {
		if e.Account == account {
			out = append(out, e)
		}
	}
	return out, nil
}
