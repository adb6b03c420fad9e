// Package params owns the engine's mutable policy configuration: burn
// rate, yield tiers, the eligibility root, and the authorized sets. All
// reads take an immutable snapshot; all writes go through the Service and
// produce a new snapshot with a bumped version. Nothing else in the engine
// holds policy state.
package params

import (
	"context"
	"log/slog"
	"sync"

	id "aurum/pkg/domain"
	dErrors "aurum/pkg/domain-errors"
	"aurum/pkg/requestcontext"
)

// MaxBurnRateBp caps the transfer burn rate at 10%.
const MaxBurnRateBp = 1000

// EligibilityRootSize is the byte length of a merkle root.
const EligibilityRootSize = 32

// YieldTiers holds the per-lock-duration reward rates in basis points.
type YieldTiers struct {
	OneYearBp    uint64
	SixMonthBp   uint64
	ThreeMonthBp uint64
	DefaultBp    uint64
}

// Snapshot is an immutable view of the engine configuration. Callers must
// not mutate it; the Service replaces the whole snapshot on every write.
type Snapshot struct {
	Version         uint64
	BurnRateBp      uint64
	Tiers           YieldTiers
	EligibilityRoot []byte
	Admin           id.Address
	Treasury        id.Address
	Escrow          id.Address

	signers      map[id.Address]struct{}
	minters      map[id.Address]struct{}
	appContracts map[id.Address]struct{}
}

// IsAdmin reports whether addr is the contract administrator.
func (s *Snapshot) IsAdmin(addr id.Address) bool { return !addr.IsZero() && addr == s.Admin }

// IsTreasury reports whether addr is the admin treasury.
func (s *Snapshot) IsTreasury(addr id.Address) bool { return !addr.IsZero() && addr == s.Treasury }

// IsEscrow reports whether addr is the staking escrow.
func (s *Snapshot) IsEscrow(addr id.Address) bool { return !addr.IsZero() && addr == s.Escrow }

// IsSigner reports whether addr is an authorized recurring-mint signer.
func (s *Snapshot) IsSigner(addr id.Address) bool {
	_, ok := s.signers[addr]
	return ok
}

// IsMinter reports whether addr is an authorized direct minter.
func (s *Snapshot) IsMinter(addr id.Address) bool {
	_, ok := s.minters[addr]
	return ok
}

// IsAppContract reports whether addr is inside the approved application
// perimeter for restricted transfers.
func (s *Snapshot) IsAppContract(addr id.Address) bool {
	_, ok := s.appContracts[addr]
	return ok
}

// Service serializes configuration writes and hands out snapshots.
type Service struct {
	mu      sync.RWMutex
	current *Snapshot
	logger  *slog.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

// Seed is the initial configuration loaded from the environment.
type Seed struct {
	Admin      id.Address
	Treasury   id.Address
	Escrow     id.Address
	BurnRateBp uint64
	Tiers      YieldTiers
}

// New constructs the params service from its seed configuration.
func New(seed Seed, opts ...Option) (*Service, error) {
	if seed.Admin.IsZero() || seed.Treasury.IsZero() || seed.Escrow.IsZero() {
		return nil, dErrors.New(dErrors.CodeValidation, "admin, treasury and escrow addresses are required")
	}
	if seed.BurnRateBp > MaxBurnRateBp {
		return nil, dErrors.Newf(dErrors.CodeValidation, "burn rate %d exceeds %d bp cap", seed.BurnRateBp, MaxBurnRateBp)
	}

	svc := &Service{
		current: &Snapshot{
			Version:      1,
			BurnRateBp:   seed.BurnRateBp,
			Tiers:        seed.Tiers,
			Admin:        seed.Admin,
			Treasury:     seed.Treasury,
			Escrow:       seed.Escrow,
			signers:      map[id.Address]struct{}{},
			minters:      map[id.Address]struct{}{},
			appContracts: map[id.Address]struct{}{},
		},
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

// Current returns the live snapshot. The returned value is shared and must
// be treated as read-only.
func (s *Service) Current() *Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// requireAdmin rejects writes from any caller other than the administrator.
func (s *Service) requireAdmin(ctx context.Context) error {
	caller := requestcontext.Account(ctx)
	if !s.Current().IsAdmin(caller) {
		return dErrors.New(dErrors.CodeUnauthorized, "administrator required")
	}
	return nil
}

// mutate clones the current snapshot, applies fn, and installs the result
// with a bumped version. The clone copies the authorized sets so published
// snapshots are never written to.
func (s *Service) mutate(fn func(*Snapshot)) *Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := &Snapshot{
		Version:         s.current.Version + 1,
		BurnRateBp:      s.current.BurnRateBp,
		Tiers:           s.current.Tiers,
		EligibilityRoot: s.current.EligibilityRoot,
		Admin:           s.current.Admin,
		Treasury:        s.current.Treasury,
		Escrow:          s.current.Escrow,
		signers:         cloneSet(s.current.signers),
		minters:         cloneSet(s.current.minters),
		appContracts:    cloneSet(s.current.appContracts),
	}
	fn(next)
	s.current = next
	return next
}

// UpdateEligibilityRoot replaces the merkle root summarizing the off-chain
// verified-user list.
func (s *Service) UpdateEligibilityRoot(ctx context.Context, root []byte) error {
	if err := s.requireAdmin(ctx); err != nil {
		return err
	}
	if len(root) != EligibilityRootSize {
		return dErrors.Newf(dErrors.CodeValidation, "eligibility root must be %d bytes", EligibilityRootSize)
	}
	rootCopy := make([]byte, len(root))
	copy(rootCopy, root)
	next := s.mutate(func(snap *Snapshot) { snap.EligibilityRoot = rootCopy })

	s.logger.InfoContext(ctx, "eligibility root updated", "version", next.Version)
	return nil
}

// SetBurnRate updates the transfer burn rate.
func (s *Service) SetBurnRate(ctx context.Context, bp uint64) error {
	if err := s.requireAdmin(ctx); err != nil {
		return err
	}
	if bp > MaxBurnRateBp {
		return dErrors.Newf(dErrors.CodeValidation, "burn rate %d exceeds %d bp cap", bp, MaxBurnRateBp)
	}
	next := s.mutate(func(snap *Snapshot) { snap.BurnRateBp = bp })

	s.logger.InfoContext(ctx, "burn rate updated", "burn_rate_bp", bp, "version", next.Version)
	return nil
}

// SetYieldTiers updates the staking reward rates.
func (s *Service) SetYieldTiers(ctx context.Context, tiers YieldTiers) error {
	if err := s.requireAdmin(ctx); err != nil {
		return err
	}
	for _, bp := range []uint64{tiers.OneYearBp, tiers.SixMonthBp, tiers.ThreeMonthBp, tiers.DefaultBp} {
		if bp > 10000 {
			return dErrors.New(dErrors.CodeValidation, "yield tier exceeds 10000 bp")
		}
	}
	next := s.mutate(func(snap *Snapshot) { snap.Tiers = tiers })

	s.logger.InfoContext(ctx, "yield tiers updated", "version", next.Version)
	return nil
}

// SetSigner adds or removes an authorized recurring-mint signer.
func (s *Service) SetSigner(ctx context.Context, addr id.Address, authorized bool) error {
	return s.setMember(ctx, addr, authorized, func(snap *Snapshot) map[id.Address]struct{} { return snap.signers })
}

// SetMinter adds or removes an authorized direct minter.
func (s *Service) SetMinter(ctx context.Context, addr id.Address, authorized bool) error {
	return s.setMember(ctx, addr, authorized, func(snap *Snapshot) map[id.Address]struct{} { return snap.minters })
}

// SetAppContract adds or removes an address from the approved application
// perimeter.
func (s *Service) SetAppContract(ctx context.Context, addr id.Address, authorized bool) error {
	return s.setMember(ctx, addr, authorized, func(snap *Snapshot) map[id.Address]struct{} { return snap.appContracts })
}

func (s *Service) setMember(ctx context.Context, addr id.Address, authorized bool, set func(*Snapshot) map[id.Address]struct{}) error {
	if err := s.requireAdmin(ctx); err != nil {
		return err
	}
	if addr.IsZero() {
		return dErrors.New(dErrors.CodeInvalidAddress, "address is required")
	}
	next := s.mutate(func(snap *Snapshot) {
		if authorized {
			set(snap)[addr] = struct{}{}
		} else {
			delete(set(snap), addr)
		}
	})

	s.logger.InfoContext(ctx, "authorized set updated",
		"address", addr,
		"authorized", authorized,
		"version", next.Version,
	)
	return nil
}

func cloneSet(in map[id.Address]struct{}) map[id.Address]struct{} {
	out := make(map[id.Address]struct{}, len(in))
	for k := range in {
		out[k] = struct{}{}
	}
	return out
}
