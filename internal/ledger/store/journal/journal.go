// Package journal provides a write-through mirror of ledger mutations for
// the collaborating application layer's reporting. The in-memory ledger is
// the source of truth; the journal is an append-only record and is never
// read back into engine state.
package journal

import (
	"context"
	"time"

	"github.com/google/uuid"

	id "aurum/pkg/domain"
)

// Kind classifies a journal entry.
type Kind string

const (
	KindMint       Kind = "mint"
	KindTransfer   Kind = "transfer"
	KindExpiryBurn Kind = "expiry_burn"
	KindStakeOpen  Kind = "stake_open"
	KindStakeClaim Kind = "stake_claim"
	KindStakeClose Kind = "stake_close"
)

// Entry records one ledger mutation.
type Entry struct {
	ID           uuid.UUID  `json:"id"`
	Kind         Kind       `json:"kind"`
	Account      id.Address `json:"account"`
	Counterparty id.Address `json:"counterparty,omitempty"`
	Amount       uint64     `json:"amount"`
	Burned       uint64     `json:"burned"`
	OccurredAt   time.Time  `json:"occurred_at"`
}

// Journal is the append-only sink. Implementations must be safe for
// concurrent use.
type Journal interface {
	Append(ctx context.Context, entry Entry) error
	ListByAccounts(ctx context.Context, accounts []id.Address) ([]Entry, error)
}
