// Package service implements the minting controller: the two eligibility
// paths, device binding, and the split-and-lock issuance. Per-account mint
// state walks Unminted -> FirstMinted -> (recurring each cooldown period).
package service

import (
	"context"
	"fmt"
	"log/slog"

	"aurum/internal/audit"
	"aurum/internal/eligibility"
	"aurum/internal/ledger/models"
	"aurum/internal/minting/store/usedkey"
	"aurum/internal/params"
	"aurum/internal/platform/metrics"
	id "aurum/pkg/domain"
	dErrors "aurum/pkg/domain-errors"
	"aurum/pkg/requestcontext"
)

// Store is the ledger state the minting controller needs.
type Store interface {
	Account(ctx context.Context, addr id.Address) (models.Account, error)
	MintRecord(ctx context.Context, addr id.Address) (models.MintRecord, error)
	ApplyMint(ctx context.Context, mint models.MintApplication) error
}

// Verifier checks the two eligibility paths.
type Verifier interface {
	VerifyFirstTimeProof(ctx context.Context, addr id.Address, proof [][]byte) bool
	VerifyRecurringSignature(ctx context.Context, addr id.Address, device id.DeviceID, timestamp int64, signature []byte) bool
}

// Service orchestrates mints.
type Service struct {
	store    Store
	usedKeys usedkey.Store
	verifier Verifier
	params   *params.Service
	logger   *slog.Logger
	metrics  *metrics.Metrics
	audit    audit.Publisher
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

// WithMetrics attaches engine metrics.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithAuditPublisher attaches the audit sink.
func WithAuditPublisher(pub audit.Publisher) Option {
	return func(s *Service) { s.audit = pub }
}

// New constructs the minting controller.
func New(store Store, usedKeys usedkey.Store, verifier Verifier, paramsSvc *params.Service, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, fmt.Errorf("ledger store is required")
	}
	if usedKeys == nil {
		return nil, fmt.Errorf("used-key store is required")
	}
	if verifier == nil {
		return nil, fmt.Errorf("eligibility verifier is required")
	}
	if paramsSvc == nil {
		return nil, fmt.Errorf("params service is required")
	}

	svc := &Service{
		store:    store,
		usedKeys: usedKeys,
		verifier: verifier,
		params:   paramsSvc,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

// MintResult reports what a mint issued.
type MintResult struct {
	AccountAmount  uint64 `json:"account_amount"`
	TreasuryAmount uint64 `json:"treasury_amount"`
	AlreadyMinted  bool   `json:"already_minted,omitempty"`
}

// MintFirstTime performs a first-time mint under the merkle-proof path.
func (s *Service) MintFirstTime(ctx context.Context, addr id.Address, proof [][]byte, device id.DeviceID) (*MintResult, error) {
	if addr.IsZero() {
		return nil, s.reject(dErrors.New(dErrors.CodeInvalidAddress, "account address is required"))
	}
	if device.IsZero() {
		return nil, s.reject(dErrors.New(dErrors.CodeValidation, "device identifier is required"))
	}

	acc, err := s.store.Account(ctx, addr)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load account")
	}
	if acc.Blacklisted {
		return nil, s.reject(dErrors.New(dErrors.CodeBlacklisted, "account is blacklisted"))
	}

	rec, err := s.store.MintRecord(ctx, addr)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load mint record")
	}
	if rec.HasFirstMinted {
		return nil, s.reject(dErrors.New(dErrors.CodeAlreadyClaimed, "account already completed its first mint"))
	}

	if !s.verifier.VerifyFirstTimeProof(ctx, addr, proof) {
		return nil, s.reject(dErrors.New(dErrors.CodeInvalidProof, "merkle proof does not match eligibility root"))
	}

	// Reserving the binding key is the commit point for replay
	// prevention: a concurrent duplicate loses the Add race.
	key := eligibility.BindingKey(addr, device)
	inserted, err := s.usedKeys.Add(ctx, key, usedkey.FirstTimeBucket)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to reserve binding key")
	}
	if !inserted {
		return nil, s.reject(dErrors.New(dErrors.CodeDeviceAlreadyUsed, "device already bound to a completed mint"))
	}

	now := requestcontext.Now(ctx).Unix()
	snap := s.params.Current()

	if snap.IsAdmin(addr) {
		// Bootstrap path: the initial grant goes to the treasury only,
		// unrestricted, so no expiry entry is created.
		if err := s.store.ApplyMint(ctx, models.MintApplication{
			Account:         addr,
			Treasury:        snap.Treasury,
			TreasuryAmount:  models.AdminInitialGrant,
			Now:             now,
			RequireUnminted: true,
		}); err != nil {
			if dErrors.HasCode(err, dErrors.CodeAlreadyClaimed) {
				return nil, s.reject(err)
			}
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to apply admin grant")
		}
		s.recordSuccess(ctx, "admin_grant", audit.ActionAdminGrant, addr, models.AdminInitialGrant)
		return &MintResult{TreasuryAmount: models.AdminInitialGrant}, nil
	}

	result, err := s.splitAndLock(ctx, addr, snap.Treasury, now, mintGuard{unminted: true})
	if err != nil {
		return nil, err
	}
	s.recordSuccess(ctx, "first_time", audit.ActionMintFirstTime, addr, models.MintUnit)
	return result, nil
}

// MintRecurring performs an annual recurring mint under the
// detached-signature path.
func (s *Service) MintRecurring(ctx context.Context, addr id.Address, device id.DeviceID, timestamp int64, signature []byte) (*MintResult, error) {
	if addr.IsZero() {
		return nil, s.reject(dErrors.New(dErrors.CodeInvalidAddress, "account address is required"))
	}
	if device.IsZero() {
		return nil, s.reject(dErrors.New(dErrors.CodeValidation, "device identifier is required"))
	}

	acc, err := s.store.Account(ctx, addr)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load account")
	}
	if acc.Blacklisted {
		return nil, s.reject(dErrors.New(dErrors.CodeBlacklisted, "account is blacklisted"))
	}

	rec, err := s.store.MintRecord(ctx, addr)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load mint record")
	}
	if !rec.HasFirstMinted {
		return nil, s.reject(dErrors.New(dErrors.CodeValidation, "recurring mint requires a completed first-time mint"))
	}

	now := requestcontext.Now(ctx).Unix()
	if now < rec.LastMintAt+models.CooldownPeriod {
		return nil, s.reject(dErrors.New(dErrors.CodeCooldownNotOver, "one cooldown period has not elapsed since last mint"))
	}

	if !s.verifier.VerifyRecurringSignature(ctx, addr, device, timestamp, signature) {
		return nil, s.reject(dErrors.New(dErrors.CodeInvalidSignature, "signer not recovered or not authorized"))
	}

	bucket := models.PeriodBucket(now)
	key := eligibility.PeriodBindingKey(addr, device, bucket)
	inserted, err := s.usedKeys.Add(ctx, key, bucket)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to reserve binding key")
	}
	if !inserted {
		return nil, s.reject(dErrors.New(dErrors.CodeAlreadyClaimedThisPeriod, "device already minted in this period"))
	}

	result, err := s.splitAndLock(ctx, addr, s.params.Current().Treasury, now, mintGuard{cooldown: true})
	if err != nil {
		return nil, err
	}
	s.recordSuccess(ctx, "recurring", audit.ActionMintRecurring, addr, models.MintUnit)
	return result, nil
}

// MintDirect is the administrative fast path: an authorized minter issues
// the first-time unit without a proof, for accounts whose eligibility was
// established out-of-band. Idempotent: an already-minted account returns
// success without re-minting.
func (s *Service) MintDirect(ctx context.Context, addr id.Address) (*MintResult, error) {
	caller := requestcontext.Account(ctx)
	snap := s.params.Current()
	if !snap.IsMinter(caller) && !snap.IsAdmin(caller) {
		return nil, s.reject(dErrors.New(dErrors.CodeUnauthorized, "authorized minter required"))
	}
	if addr.IsZero() {
		return nil, s.reject(dErrors.New(dErrors.CodeInvalidAddress, "account address is required"))
	}

	acc, err := s.store.Account(ctx, addr)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load account")
	}
	if acc.Blacklisted {
		return nil, s.reject(dErrors.New(dErrors.CodeBlacklisted, "account is blacklisted"))
	}

	rec, err := s.store.MintRecord(ctx, addr)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load mint record")
	}
	if rec.HasFirstMinted {
		return &MintResult{AlreadyMinted: true}, nil
	}

	now := requestcontext.Now(ctx).Unix()
	result, err := s.splitAndLock(ctx, addr, snap.Treasury, now, mintGuard{unminted: true})
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeAlreadyClaimed) {
			// A concurrent mint won the commit; direct minting stays
			// idempotent.
			return &MintResult{AlreadyMinted: true}, nil
		}
		return nil, err
	}
	s.recordSuccess(ctx, "direct", audit.ActionMintDirect, addr, models.MintUnit)
	return result, nil
}

// ArchiveUsedKeys drops period keys older than two cooldown periods. A
// period bucket can never recur, so this cannot weaken replay prevention.
// Administrator only.
func (s *Service) ArchiveUsedKeys(ctx context.Context) (int, error) {
	caller := requestcontext.Account(ctx)
	if !s.params.Current().IsAdmin(caller) {
		return 0, dErrors.New(dErrors.CodeUnauthorized, "administrator required")
	}

	cutoff := models.PeriodBucket(requestcontext.Now(ctx).Unix()) - 2
	dropped, err := s.usedKeys.ArchiveBefore(ctx, cutoff)
	if err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeInternal, "failed to archive used keys")
	}

	s.logger.InfoContext(ctx, "used keys archived",
		"cutoff_bucket", cutoff,
		"dropped", dropped,
	)
	return dropped, nil
}

// mintGuard names the preconditions the store must re-validate when it
// commits.
type mintGuard struct {
	unminted bool
	cooldown bool
}

// splitAndLock applies the regular issuance: one fixed unit split 50/50
// between the treasury (unrestricted) and the account (locked behind an
// expiry entry). A precondition rejection from the store is a lost race
// with a concurrent mint and surfaces with its own code.
func (s *Service) splitAndLock(ctx context.Context, addr, treasury id.Address, now int64, guard mintGuard) (*MintResult, error) {
	half := models.MintUnit / 2
	err := s.store.ApplyMint(ctx, models.MintApplication{
		Account:        addr,
		Treasury:       treasury,
		AccountAmount:  half,
		TreasuryAmount: models.MintUnit - half,
		Now:            now,
		Expiry: &models.ExpiryEntry{
			Address:     addr,
			IssueBucket: models.DayBucket(now),
			ExpiresAt:   now + models.RetentionPeriod,
			BatchAmount: half,
		},
		RequireUnminted: guard.unminted,
		RequireCooldown: guard.cooldown,
	})
	switch {
	case err == nil:
	case dErrors.HasCode(err, dErrors.CodeAlreadyClaimed),
		dErrors.HasCode(err, dErrors.CodeCooldownNotOver):
		return nil, s.reject(err)
	default:
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to apply mint")
	}
	return &MintResult{AccountAmount: half, TreasuryAmount: models.MintUnit - half}, nil
}

func (s *Service) recordSuccess(ctx context.Context, path string, action audit.Action, addr id.Address, amount uint64) {
	if s.metrics != nil {
		s.metrics.MintsTotal.WithLabelValues(path).Inc()
		s.metrics.MintedUnits.Add(float64(amount))
	}
	audit.Emit(ctx, s.logger, s.audit, audit.Event{
		Action:     action,
		Account:    addr,
		Amount:     amount,
		DeviceName: requestcontext.DeviceName(ctx),
		RequestID:  requestcontext.RequestID(ctx),
	})
	s.logger.InfoContext(ctx, "mint applied",
		"path", path,
		"account", addr,
		"amount", amount,
	)
}

// reject counts a precondition failure and passes the error through.
func (s *Service) reject(err error) error {
	if s.metrics != nil {
		s.metrics.MintRejections.WithLabelValues(string(dErrors.CodeOf(err))).Inc()
	}
	return err
}
