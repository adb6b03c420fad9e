// Package service implements the transfer policy: the only path by which
// balances move outside minting, staking settlement, and expiry sweeps.
// Every other component routes balance movements through this service so
// the conservation identity survives any sequence of operations.
package service

import (
	"context"
	"fmt"
	"log/slog"

	"aurum/internal/audit"
	"aurum/internal/ledger/models"
	"aurum/internal/params"
	"aurum/internal/platform/metrics"
	id "aurum/pkg/domain"
	dErrors "aurum/pkg/domain-errors"
	"aurum/pkg/requestcontext"
)

// Store is the state the transfer policy needs.
type Store interface {
	Account(ctx context.Context, addr id.Address) (models.Account, error)
	MintRecord(ctx context.Context, addr id.Address) (models.MintRecord, error)
	Stats(ctx context.Context) (models.Stats, error)
	SetAccountFlags(ctx context.Context, addr id.Address, blacklisted, investor *bool) error
	Transfer(ctx context.Context, from, to id.Address, amount, burn uint64) error
}

// Service enforces the restricted-transfer and burn-on-transfer rules.
type Service struct {
	store   Store
	params  *params.Service
	logger  *slog.Logger
	metrics *metrics.Metrics
	audit   audit.Publisher
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

// New constructs the ledger service.
func New(store Store, paramsSvc *params.Service, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, fmt.Errorf("ledger store is required")
	}
	if paramsSvc == nil {
		return nil, fmt.Errorf("params service is required")
	}

	svc := &Service{
		store:  store,
		params: paramsSvc,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

// TransferResult reports what a transfer moved and burned.
type TransferResult struct {
	Credited uint64 `json:"credited"`
	Burned   uint64 `json:"burned"`
}

// Transfer applies the transfer policy in fixed priority order: blacklist,
// escrow fast path, privileged senders, perimeter restriction, then the
// proportional burn.
func (s *Service) Transfer(ctx context.Context, from, to id.Address, amount uint64) (*TransferResult, error) {
	if from.IsZero() || to.IsZero() {
		return nil, dErrors.New(dErrors.CodeInvalidAddress, "sender and recipient are required")
	}
	if amount == 0 {
		return nil, dErrors.New(dErrors.CodeZeroAmount, "transfer amount must be positive")
	}

	sender, err := s.store.Account(ctx, from)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load sender")
	}
	recipient, err := s.store.Account(ctx, to)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load recipient")
	}
	if sender.Blacklisted {
		return nil, dErrors.New(dErrors.CodeBlacklisted, "sender is blacklisted")
	}
	if recipient.Blacklisted {
		return nil, dErrors.New(dErrors.CodeBlacklisted, "recipient is blacklisted")
	}

	snap := s.params.Current()
	burn := uint64(0)
	switch {
	case snap.IsEscrow(from) || snap.IsEscrow(to):
		// Staking deposits and withdrawals are never taxed.
	case snap.IsAdmin(from) || snap.IsTreasury(from):
		// Privileged senders move without restriction or burn.
	default:
		if !snap.IsAppContract(to) && !snap.IsTreasury(to) {
			return nil, dErrors.New(dErrors.CodeLockedTokenRestriction, "recipient outside approved application perimeter")
		}
		burn = amount * snap.BurnRateBp / models.BpDenominator
	}

	if err := s.store.Transfer(ctx, from, to, amount, burn); err != nil {
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.TransfersTotal.Inc()
		if burn > 0 {
			s.metrics.BurnedUnits.Add(float64(burn))
		}
	}
	audit.Emit(ctx, s.logger, s.audit, audit.Event{
		Action:    audit.ActionTransfer,
		Account:   from,
		Amount:    amount,
		RequestID: requestcontext.RequestID(ctx),
	})
	s.logger.InfoContext(ctx, "transfer applied",
		"from", from,
		"to", to,
		"amount", amount,
		"burned", burn,
	)

	return &TransferResult{Credited: amount - burn, Burned: burn}, nil
}

// BalanceOf returns the spendable balance.
func (s *Service) BalanceOf(ctx context.Context, addr id.Address) (uint64, error) {
	if addr.IsZero() {
		return 0, dErrors.New(dErrors.CodeInvalidAddress, "address is required")
	}
	acc, err := s.store.Account(ctx, addr)
	if err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load account")
	}
	return acc.Balance, nil
}

// MintRecordOf returns the account's issuance history.
func (s *Service) MintRecordOf(ctx context.Context, addr id.Address) (*models.MintRecord, error) {
	if addr.IsZero() {
		return nil, dErrors.New(dErrors.CodeInvalidAddress, "address is required")
	}
	rec, err := s.store.MintRecord(ctx, addr)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load mint record")
	}
	return &rec, nil
}

// TotalSupplyStats returns the global supply counters.
func (s *Service) TotalSupplyStats(ctx context.Context) (*models.Stats, error) {
	stats, err := s.store.Stats(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load supply stats")
	}
	return &stats, nil
}

// SetAccountFlags mutates the blacklist/investor flags. Administrator only.
func (s *Service) SetAccountFlags(ctx context.Context, addr id.Address, blacklisted, investor *bool) error {
	caller := requestcontext.Account(ctx)
	if !s.params.Current().IsAdmin(caller) {
		return dErrors.New(dErrors.CodeUnauthorized, "administrator required")
	}
	if addr.IsZero() {
		return dErrors.New(dErrors.CodeInvalidAddress, "address is required")
	}
	if err := s.store.SetAccountFlags(ctx, addr, blacklisted, investor); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to update account flags")
	}

	s.logger.InfoContext(ctx, "account flags updated",
		"address", addr,
		"blacklisted", blacklisted,
		"investor", investor,
	)
	return nil
}
