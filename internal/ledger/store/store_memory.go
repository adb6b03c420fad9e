// Package store holds the engine's authoritative state behind a single
// write lock. Every mutation is one compound, atomic operation: it either
// fully commits or leaves no trace. Services compute policy and hand the
// store a complete effect to apply; the store re-validates balance
// preconditions inside the critical section so concurrent callers cannot
// interleave a stale check with a write.
package store

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"aurum/internal/ledger/models"
	"aurum/internal/ledger/store/journal"
	id "aurum/pkg/domain"
	dErrors "aurum/pkg/domain-errors"
)

// MemoryStore is the in-memory single-writer state machine.
type MemoryStore struct {
	mu        sync.RWMutex
	accounts  map[id.Address]*models.Account
	records   map[id.Address]*models.MintRecord
	positions map[id.Address][]*models.Position
	expiries  map[id.Address]map[int64]*models.ExpiryEntry
	stats     models.Stats

	journal journal.Journal
	logger  *slog.Logger
}

// Option configures a MemoryStore.
type Option func(*MemoryStore)

// WithJournal attaches a write-through mirror. Journal failures are logged
// and never roll back a committed mutation; the journal is reporting, not
// source of truth.
func WithJournal(j journal.Journal) Option {
	return func(s *MemoryStore) { s.journal = j }
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *MemoryStore) { s.logger = logger }
}

// NewMemory constructs an empty state store.
func NewMemory(opts ...Option) *MemoryStore {
	s := &MemoryStore{
		accounts:  make(map[id.Address]*models.Account),
		records:   make(map[id.Address]*models.MintRecord),
		positions: make(map[id.Address][]*models.Position),
		expiries:  make(map[id.Address]map[int64]*models.ExpiryEntry),
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// account returns the live account record, creating it on first touch.
// Callers must hold the write lock.
func (s *MemoryStore) account(addr id.Address) *models.Account {
	acc, ok := s.accounts[addr]
	if !ok {
		acc = &models.Account{Address: addr}
		s.accounts[addr] = acc
	}
	return acc
}

func (s *MemoryStore) record(addr id.Address) *models.MintRecord {
	rec, ok := s.records[addr]
	if !ok {
		rec = &models.MintRecord{}
		s.records[addr] = rec
	}
	return rec
}

// Account returns a copy of the account state. Unknown addresses read as
// empty accounts with a zero balance.
func (s *MemoryStore) Account(ctx context.Context, addr id.Address) (models.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if acc, ok := s.accounts[addr]; ok {
		return *acc, nil
	}
	return models.Account{Address: addr}, nil
}

// MintRecord returns a copy of the account's mint record.
func (s *MemoryStore) MintRecord(ctx context.Context, addr id.Address) (models.MintRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if rec, ok := s.records[addr]; ok {
		return *rec, nil
	}
	return models.MintRecord{}, nil
}

// Stats returns a copy of the global supply statistics.
func (s *MemoryStore) Stats(ctx context.Context) (models.Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.stats, nil
}

// SumBalances totals every account balance. Used by conservation checks;
// not part of any request path.
func (s *MemoryStore) SumBalances(ctx context.Context) (uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var sum uint64
	for _, acc := range s.accounts {
		sum += acc.Balance
	}
	return sum, nil
}

// SetAccountFlags updates the administrative flags. Nil leaves a flag
// unchanged.
func (s *MemoryStore) SetAccountFlags(ctx context.Context, addr id.Address, blacklisted, investor *bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	acc := s.account(addr)
	if blacklisted != nil {
		acc.Blacklisted = *blacklisted
	}
	if investor != nil {
		acc.Investor = *investor
	}
	return nil
}

// ApplyMint commits a mint: record update, balance credits, optional
// expiry entry, supply counter. One critical section. The application's
// Require flags are re-validated here so a precondition read that went
// stale between the service check and the commit is rejected, not applied.
func (s *MemoryStore) ApplyMint(ctx context.Context, mint models.MintApplication) error {
	s.mu.Lock()

	rec := s.record(mint.Account)
	if mint.RequireUnminted && rec.HasFirstMinted {
		s.mu.Unlock()
		return dErrors.New(dErrors.CodeAlreadyClaimed, "account already completed its first mint")
	}
	if mint.RequireCooldown && mint.Now < rec.LastMintAt+models.CooldownPeriod {
		s.mu.Unlock()
		return dErrors.New(dErrors.CodeCooldownNotOver, "one cooldown period has not elapsed since last mint")
	}
	rec.HasFirstMinted = true
	rec.LastMintAt = mint.Now
	rec.TotalMinted += mint.AccountAmount + mint.TreasuryAmount

	s.account(mint.Account).Balance += mint.AccountAmount
	s.account(mint.Treasury).Balance += mint.TreasuryAmount
	s.stats.TotalMinted += mint.AccountAmount + mint.TreasuryAmount

	if mint.Expiry != nil {
		buckets, ok := s.expiries[mint.Account]
		if !ok {
			buckets = make(map[int64]*models.ExpiryEntry)
			s.expiries[mint.Account] = buckets
		}
		if existing, ok := buckets[mint.Expiry.IssueBucket]; ok {
			// Same-day issuances share one entry; the later expiry wins so
			// the merged batch never expires early.
			existing.BatchAmount += mint.Expiry.BatchAmount
			if mint.Expiry.ExpiresAt > existing.ExpiresAt {
				existing.ExpiresAt = mint.Expiry.ExpiresAt
			}
		} else {
			entry := *mint.Expiry
			buckets[entry.IssueBucket] = &entry
		}
	}
	s.mu.Unlock()

	s.journalize(ctx, journal.Entry{
		Kind:         journal.KindMint,
		Account:      mint.Account,
		Counterparty: mint.Treasury,
		Amount:       mint.AccountAmount + mint.TreasuryAmount,
	})
	return nil
}

// Transfer debits the full amount from the sender, credits amount-burn to
// the recipient, and accounts the burn. The balance check happens inside
// the critical section.
func (s *MemoryStore) Transfer(ctx context.Context, from, to id.Address, amount, burn uint64) error {
	s.mu.Lock()

	sender := s.account(from)
	if sender.Balance < amount {
		s.mu.Unlock()
		return dErrors.New(dErrors.CodeInsufficientBalance, "sender balance below transfer amount")
	}
	sender.Balance -= amount
	s.account(to).Balance += amount - burn
	s.stats.TotalBurned += burn
	s.mu.Unlock()

	s.journalize(ctx, journal.Entry{
		Kind:         journal.KindTransfer,
		Account:      from,
		Counterparty: to,
		Amount:       amount,
		Burned:       burn,
	})
	return nil
}

// OpenPosition moves principal out of the spendable balance into the
// staked bucket and appends the position. Returns the new position's
// index.
func (s *MemoryStore) OpenPosition(ctx context.Context, owner id.Address, pos models.Position) (id.PositionID, error) {
	s.mu.Lock()

	acc := s.account(owner)
	if acc.Balance < pos.Amount {
		s.mu.Unlock()
		return 0, dErrors.New(dErrors.CodeInsufficientBalance, "balance below stake amount")
	}
	acc.Balance -= pos.Amount
	s.stats.TotalStaked += pos.Amount

	posID := id.PositionID(len(s.positions[owner]))
	pos.ID = posID
	stored := pos
	s.positions[owner] = append(s.positions[owner], &stored)
	s.mu.Unlock()

	s.journalize(ctx, journal.Entry{
		Kind:    journal.KindStakeOpen,
		Account: owner,
		Amount:  pos.Amount,
	})
	return posID, nil
}

// Position returns a copy of one position.
func (s *MemoryStore) Position(ctx context.Context, owner id.Address, posID id.PositionID) (models.Position, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	list := s.positions[owner]
	if posID < 0 || int(posID) >= len(list) {
		return models.Position{}, dErrors.New(dErrors.CodeNotFound, "position not found")
	}
	return *list[posID], nil
}

// Positions returns copies of all positions for an account, closed ones
// included.
func (s *MemoryStore) Positions(ctx context.Context, owner id.Address) ([]models.Position, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	list := s.positions[owner]
	out := make([]models.Position, 0, len(list))
	for _, p := range list {
		out = append(out, *p)
	}
	return out, nil
}

// SettleClaim mints a computed reward to the owner's spendable balance and
// resets the position's accrual anchor. The anchor the reward was computed
// from must still be current; a settle that raced another claim is
// rejected rather than paid twice.
func (s *MemoryStore) SettleClaim(ctx context.Context, owner id.Address, posID id.PositionID, reward uint64, anchor, now int64) error {
	s.mu.Lock()

	pos, err := s.openPosition(owner, posID)
	if err != nil {
		s.mu.Unlock()
		return err
	}
	if pos.LastClaimAt != anchor {
		s.mu.Unlock()
		return dErrors.New(dErrors.CodeConflict, "position settled concurrently")
	}
	s.account(owner).Balance += reward
	s.stats.TotalMinted += reward
	pos.AccumulatedRewards = 0
	pos.LastClaimAt = now
	s.mu.Unlock()

	s.journalize(ctx, journal.Entry{
		Kind:    journal.KindStakeClaim,
		Account: owner,
		Amount:  reward,
	})
	return nil
}

// ClosePosition releases staked principal plus a final reward back to the
// spendable balance and zeroes the position. Carries the same anchor check
// as SettleClaim so a withdrawal cannot pay out a reward that a concurrent
// claim already settled.
func (s *MemoryStore) ClosePosition(ctx context.Context, owner id.Address, posID id.PositionID, reward uint64, anchor int64) error {
	s.mu.Lock()

	pos, err := s.openPosition(owner, posID)
	if err != nil {
		s.mu.Unlock()
		return err
	}
	if pos.LastClaimAt != anchor {
		s.mu.Unlock()
		return dErrors.New(dErrors.CodeConflict, "position settled concurrently")
	}
	principal := pos.Amount
	if s.stats.TotalStaked < principal {
		s.mu.Unlock()
		return dErrors.New(dErrors.CodeInvariantViolation, "staked total below position principal")
	}
	s.account(owner).Balance += principal + reward
	s.stats.TotalMinted += reward
	s.stats.TotalStaked -= principal
	pos.Amount = 0
	pos.AccumulatedRewards = 0
	s.mu.Unlock()

	s.journalize(ctx, journal.Entry{
		Kind:    journal.KindStakeClose,
		Account: owner,
		Amount:  principal + reward,
	})
	return nil
}

// openPosition fetches a live position pointer. Callers must hold the
// write lock.
func (s *MemoryStore) openPosition(owner id.Address, posID id.PositionID) (*models.Position, error) {
	list := s.positions[owner]
	if posID < 0 || int(posID) >= len(list) {
		return nil, dErrors.New(dErrors.CodeNotFound, "position not found")
	}
	pos := list[posID]
	if !pos.Open() {
		return nil, dErrors.New(dErrors.CodeNotFound, "position already withdrawn")
	}
	return pos, nil
}

// ExpiryEntry returns the entry for an issuance day bucket, if present.
func (s *MemoryStore) ExpiryEntry(ctx context.Context, addr id.Address, bucket int64) (models.ExpiryEntry, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, ok := s.expiries[addr][bucket]
	if !ok {
		return models.ExpiryEntry{}, false, nil
	}
	return *entry, true, nil
}

// BurnExpired burns min(batch, balance) for an expired entry and removes
// it. Returns the burned amount; zero with no error when the bucket holds
// no live expired entry. Expiry burns bypass the transfer burn rate.
func (s *MemoryStore) BurnExpired(ctx context.Context, addr id.Address, bucket, now int64) (uint64, error) {
	s.mu.Lock()

	entry, ok := s.expiries[addr][bucket]
	if !ok || entry.ExpiresAt > now {
		s.mu.Unlock()
		return 0, nil
	}

	acc := s.account(addr)
	burned := entry.BatchAmount
	if acc.Balance < burned {
		// Already partially consumed inside the app perimeter.
		burned = acc.Balance
	}
	acc.Balance -= burned
	s.stats.TotalBurned += burned
	delete(s.expiries[addr], bucket)
	if len(s.expiries[addr]) == 0 {
		delete(s.expiries, addr)
	}
	s.mu.Unlock()

	if burned > 0 {
		s.journalize(ctx, journal.Entry{
			Kind:    journal.KindExpiryBurn,
			Account: addr,
			Amount:  burned,
			Burned:  burned,
		})
	}
	return burned, nil
}

// ExpiryBuckets lists an account's live issuance day buckets, oldest
// first. Sweeps walk these instead of calendar days, so bounded iterations
// are only spent on buckets that actually hold entries.
func (s *MemoryStore) ExpiryBuckets(ctx context.Context, addr id.Address) ([]int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	buckets := make([]int64, 0, len(s.expiries[addr]))
	for bucket := range s.expiries[addr] {
		buckets = append(buckets, bucket)
	}
	sort.Slice(buckets, func(i, j int) bool { return buckets[i] < buckets[j] })
	return buckets, nil
}

// AccountsWithExpiries lists accounts holding live expiry entries, sorted
// for deterministic sweeps.
func (s *MemoryStore) AccountsWithExpiries(ctx context.Context) ([]id.Address, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]id.Address, 0, len(s.expiries))
	for addr := range s.expiries {
		out = append(out, addr)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out, nil
}

// journalize mirrors a committed mutation. Failures are logged, never
// propagated; the memory state already committed.
func (s *MemoryStore) journalize(ctx context.Context, entry journal.Entry) {
	if s.journal == nil {
		return
	}
	entry.ID = uuid.New()
	entry.OccurredAt = time.Now()
	if err := s.journal.Append(ctx, entry); err != nil {
		s.logger.ErrorContext(ctx, "journal append failed",
			"kind", entry.Kind,
			"account", entry.Account,
			"error", err,
		)
	}
}
