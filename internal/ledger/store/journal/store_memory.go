package journal

import (
	"context"
	"sync"

	id "aurum/pkg/domain"
)

// MemoryJournal keeps entries in memory. Used in tests and when no
// Postgres mirror is configured.
type MemoryJournal struct {
	mu      sync.RWMutex
	entries []Entry
}

// NewMemory constructs an in-memory journal.
func NewMemory() *MemoryJournal {
	return &MemoryJournal{}
}

func (j *MemoryJournal) Append(ctx context.Context, entry Entry) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.entries = append(j.entries, entry)
	return nil
}

func (j *MemoryJournal) ListByAccounts(ctx context.Context, accounts []id.Address) ([]Entry, error) {
	wanted := make(map[id.Address]struct{}, len(accounts))
	for _, a := range accounts {
		wanted[a] = struct{}{}
	}

	j.mu.RLock()
	defer j.mu.RUnlock()

	var out []Entry
	for _, e := range j.entries {
		if _, ok := wanted[e.Account]; ok {
			out = append(out, e)
		}
	}
	return out, nil
}
