// Package models defines the engine's state types: accounts, mint records,
// staking positions, expiry entries, and supply statistics. All amounts are
// uint64 minor units; all timestamps are unix seconds.
package models

import (
	id "aurum/pkg/domain"
)

// Denomination and issuance constants. One token is UnitScale minor units.
const (
	UnitScale uint64 = 1_000_000

	// MintUnit is the fixed issuance of a regular first-time or recurring
	// mint, split 50/50 between the admin treasury and the account.
	MintUnit uint64 = 1 * UnitScale

	// AdminInitialGrant is the one-off bootstrap grant minted to the admin
	// treasury when the administrator account performs its first mint.
	AdminInitialGrant uint64 = 1_000_000 * UnitScale

	// BpDenominator converts basis points to a fraction.
	BpDenominator uint64 = 10_000
)

// Time constants, in seconds.
const (
	SecondsPerDay  int64 = 86_400
	SecondsPerYear int64 = 31_536_000

	// CooldownPeriod separates recurring mints and scopes replay-key
	// period buckets. Fixed for the process lifetime.
	CooldownPeriod int64 = 365 * SecondsPerDay

	// RetentionPeriod is how long a locked user share stays spendable
	// before it becomes sweepable.
	RetentionPeriod int64 = 730 * SecondsPerDay
)

// EmergencyPenaltyBp is the penalty applied to the reward component of an
// emergency withdrawal that breaks an active lock. Principal is never
// penalized.
const EmergencyPenaltyBp uint64 = 5_000

// Account holds the spendable balance and administrative flags.
type Account struct {
	Address     id.Address `json:"address"`
	Balance     uint64     `json:"balance"`
	Blacklisted bool       `json:"blacklisted"`
	Investor    bool       `json:"investor"`
}

// MintRecord tracks per-account issuance history. HasFirstMinted false
// implies LastMintAt zero and recurring mints are rejected.
type MintRecord struct {
	HasFirstMinted bool   `json:"has_first_minted"`
	LastMintAt     int64  `json:"last_mint_at"`
	TotalMinted    uint64 `json:"total_minted"`
}

// Position is a staking position. Amount zero marks a closed position;
// closed positions are never reused, only appended past.
type Position struct {
	ID                 id.PositionID `json:"id"`
	Amount             uint64        `json:"amount"`
	StartAt            int64         `json:"start_at"`
	EndAt              int64         `json:"end_at"` // 0 = no fixed term
	LastClaimAt        int64         `json:"last_claim_at"`
	AccumulatedRewards uint64        `json:"accumulated_rewards"`
	AutoCompound       bool          `json:"auto_compound"`
	AutoClaim          bool          `json:"auto_claim"`
}

// Open reports whether the position still escrows principal.
func (p Position) Open() bool { return p.Amount > 0 }

// LockDuration is the fixed term the position was opened with. Yield tiers
// evaluate against this, not elapsed time, so the rate is stable for the
// life of the position.
func (p Position) LockDuration() int64 {
	if p.EndAt == 0 {
		return 0
	}
	return p.EndAt - p.StartAt
}

// ExpiryEntry tracks one issuance day's locked user share awaiting either
// consumption inside the app perimeter or an expiry burn.
type ExpiryEntry struct {
	Address     id.Address `json:"address"`
	IssueBucket int64      `json:"issue_bucket"` // unix day of issuance
	ExpiresAt   int64      `json:"expires_at"`
	BatchAmount uint64     `json:"batch_amount"`
}

// DayBucket converts a unix timestamp to its day-granularity bucket.
func DayBucket(unix int64) int64 { return unix / SecondsPerDay }

// PeriodBucket converts a unix timestamp to its recurring-mint period
// bucket.
func PeriodBucket(unix int64) int64 { return unix / CooldownPeriod }

// Stats is the global supply accounting. The conservation identity
// sum(balances) + TotalStaked + TotalBurned == TotalMinted must hold after
// every operation.
type Stats struct {
	TotalMinted uint64 `json:"total_minted"`
	TotalStaked uint64 `json:"total_staked"`
	TotalBurned uint64 `json:"total_burned"`
}

// MintApplication is the atomic effect of a successful mint: the record
// update, the balance credits, and the optional expiry entry, applied in
// one critical section. The Require flags make the store re-check the
// issuance preconditions under its lock, so a stale service-side read
// cannot commit a duplicate mint.
type MintApplication struct {
	Account        id.Address
	Treasury       id.Address
	AccountAmount  uint64
	TreasuryAmount uint64
	Now            int64
	Expiry         *ExpiryEntry

	// RequireUnminted rejects the commit when the account already
	// completed its first mint.
	RequireUnminted bool
	// RequireCooldown rejects the commit when one cooldown period has not
	// elapsed since the account's last mint.
	RequireCooldown bool
}
