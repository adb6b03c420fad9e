// Package service implements the staking engine: position lifecycle, yield
// tiers by fixed lock duration, lazy reward accrual, and the emergency
// withdrawal penalty.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"math/bits"

	"aurum/internal/audit"
	"aurum/internal/ledger/models"
	"aurum/internal/params"
	"aurum/internal/platform/metrics"
	id "aurum/pkg/domain"
	dErrors "aurum/pkg/domain-errors"
	"aurum/pkg/requestcontext"
)

// Lock duration thresholds for yield tier selection, in seconds.
const (
	oneYearLock    = models.SecondsPerYear
	sixMonthLock   = models.SecondsPerYear / 2
	threeMonthLock = models.SecondsPerYear / 4
)

// Store is the ledger state the staking engine needs.
type Store interface {
	Account(ctx context.Context, addr id.Address) (models.Account, error)
	OpenPosition(ctx context.Context, owner id.Address, pos models.Position) (id.PositionID, error)
	Position(ctx context.Context, owner id.Address, posID id.PositionID) (models.Position, error)
	Positions(ctx context.Context, owner id.Address) ([]models.Position, error)
	SettleClaim(ctx context.Context, owner id.Address, posID id.PositionID, reward uint64, anchor, now int64) error
	ClosePosition(ctx context.Context, owner id.Address, posID id.PositionID, reward uint64, anchor int64) error
}

// Service orchestrates staking positions.
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

// New constructs the staking engine.
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

// OpenStake escrows principal into a new position. Staking is reserved for
// accounts carrying the investor flag.
func (s *Service) OpenStake(ctx context.Context, owner id.Address, amount uint64, lockPeriod int64, autoCompound, autoClaim bool) (id.PositionID, error) {
	if owner.IsZero() {
		return 0, dErrors.New(dErrors.CodeInvalidAddress, "owner address is required")
	}
	if amount == 0 {
		return 0, dErrors.New(dErrors.CodeZeroAmount, "stake amount must be positive")
	}
	if lockPeriod < 0 {
		return 0, dErrors.New(dErrors.CodeValidation, "lock period must not be negative")
	}

	acc, err := s.store.Account(ctx, owner)
	if err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load account")
	}
	if !acc.Investor {
		return 0, dErrors.New(dErrors.CodeUnauthorized, "staking requires the investor flag")
	}

	now := requestcontext.Now(ctx).Unix()
	pos := models.Position{
		Amount:       amount,
		StartAt:      now,
		LastClaimAt:  now,
		AutoCompound: autoCompound,
		AutoClaim:    autoClaim,
	}
	if lockPeriod > 0 {
		pos.EndAt = now + lockPeriod
	}

	posID, err := s.store.OpenPosition(ctx, owner, pos)
	if err != nil {
		return 0, err
	}

	if s.metrics != nil {
		s.metrics.StakedUnits.Add(float64(amount))
		s.metrics.PositionsOpened.Inc()
	}
	audit.Emit(ctx, s.logger, s.audit, audit.Event{
		Action:    audit.ActionStakeOpened,
		Account:   owner,
		Amount:    amount,
		RequestID: requestcontext.RequestID(ctx),
	})
	s.logger.InfoContext(ctx, "stake opened",
		"owner", owner,
		"position", posID,
		"amount", amount,
		"lock_period", lockPeriod,
	)
	return posID, nil
}

// Claim mints the position's accrued reward to the owner's spendable
// balance. Claimed rewards are new issuance, exempt from the transfer burn.
func (s *Service) Claim(ctx context.Context, owner id.Address, posID id.PositionID) (uint64, error) {
	pos, err := s.liveStakePosition(ctx, owner, posID)
	if err != nil {
		return 0, err
	}

	now := requestcontext.Now(ctx).Unix()
	reward := s.pending(pos, now)
	if reward == 0 {
		return 0, dErrors.New(dErrors.CodeNoRewards, "no rewards accrued")
	}

	if err := s.store.SettleClaim(ctx, owner, posID, reward, pos.LastClaimAt, now); err != nil {
		return 0, err
	}

	if s.metrics != nil {
		s.metrics.RewardsClaimed.Add(float64(reward))
		s.metrics.MintedUnits.Add(float64(reward))
	}
	audit.Emit(ctx, s.logger, s.audit, audit.Event{
		Action:    audit.ActionStakeClaimed,
		Account:   owner,
		Amount:    reward,
		RequestID: requestcontext.RequestID(ctx),
	})
	s.logger.InfoContext(ctx, "stake rewards claimed",
		"owner", owner,
		"position", posID,
		"reward", reward,
	)
	return reward, nil
}

// WithdrawResult reports what a position closure released.
type WithdrawResult struct {
	Principal uint64 `json:"principal"`
	Reward    uint64 `json:"reward"`
	Penalty   uint64 `json:"penalty,omitempty"`
}

// Withdraw closes a position whose lock has elapsed, releasing principal
// plus the final accrued reward.
func (s *Service) Withdraw(ctx context.Context, owner id.Address, posID id.PositionID) (*WithdrawResult, error) {
	pos, err := s.liveStakePosition(ctx, owner, posID)
	if err != nil {
		return nil, err
	}

	now := requestcontext.Now(ctx).Unix()
	if pos.EndAt > 0 && now < pos.EndAt {
		return nil, dErrors.New(dErrors.CodeLockNotOver, "lock period has not elapsed")
	}
	return s.close(ctx, owner, pos, s.pending(pos, now), 0, audit.ActionStakeWithdrawn)
}

// EmergencyWithdraw closes a position at any time. Breaking an active lock
// costs the penalty share of the accrued reward; the principal is always
// returned whole. After the lock it behaves exactly like Withdraw.
func (s *Service) EmergencyWithdraw(ctx context.Context, owner id.Address, posID id.PositionID) (*WithdrawResult, error) {
	pos, err := s.liveStakePosition(ctx, owner, posID)
	if err != nil {
		return nil, err
	}

	now := requestcontext.Now(ctx).Unix()
	reward := s.pending(pos, now)
	var penalty uint64
	if pos.EndAt > 0 && now < pos.EndAt {
		penalty = reward * models.EmergencyPenaltyBp / models.BpDenominator
		reward -= penalty
	}
	return s.close(ctx, owner, pos, reward, penalty, audit.ActionStakeEmergencyWithdrawn)
}

// PendingRewards reports the claimable reward without touching state.
func (s *Service) PendingRewards(ctx context.Context, owner id.Address, posID id.PositionID) (uint64, error) {
	pos, err := s.liveStakePosition(ctx, owner, posID)
	if err != nil {
		return 0, err
	}
	return s.pending(pos, requestcontext.Now(ctx).Unix()), nil
}

// PositionsOf lists all positions for an account, closed ones included.
func (s *Service) PositionsOf(ctx context.Context, owner id.Address) ([]models.Position, error) {
	if owner.IsZero() {
		return nil, dErrors.New(dErrors.CodeInvalidAddress, "owner address is required")
	}
	return s.store.Positions(ctx, owner)
}

func (s *Service) close(ctx context.Context, owner id.Address, pos models.Position, reward, penalty uint64, action audit.Action) (*WithdrawResult, error) {
	if err := s.store.ClosePosition(ctx, owner, pos.ID, reward, pos.LastClaimAt); err != nil {
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.StakedUnits.Sub(float64(pos.Amount))
		s.metrics.PositionsClosed.Inc()
		s.metrics.MintedUnits.Add(float64(reward))
	}
	audit.Emit(ctx, s.logger, s.audit, audit.Event{
		Action:    action,
		Account:   owner,
		Amount:    pos.Amount + reward,
		RequestID: requestcontext.RequestID(ctx),
	})
	s.logger.InfoContext(ctx, "stake withdrawn",
		"owner", owner,
		"position", pos.ID,
		"principal", pos.Amount,
		"reward", reward,
		"penalty", penalty,
	)
	return &WithdrawResult{Principal: pos.Amount, Reward: reward, Penalty: penalty}, nil
}

// liveStakePosition loads an open position owned by the caller-supplied
// address.
func (s *Service) liveStakePosition(ctx context.Context, owner id.Address, posID id.PositionID) (models.Position, error) {
	if owner.IsZero() {
		return models.Position{}, dErrors.New(dErrors.CodeInvalidAddress, "owner address is required")
	}
	pos, err := s.store.Position(ctx, owner, posID)
	if err != nil {
		return models.Position{}, err
	}
	if !pos.Open() {
		return models.Position{}, dErrors.New(dErrors.CodeNotFound, "position already withdrawn")
	}
	return pos, nil
}

// pending computes the claimable reward: the carried accumulator plus the
// simple-interest accrual since the last claim anchor, truncating. The
// product amount*rate*elapsed exceeds 64 bits at realistic principals, so
// the intermediate runs through a 128-bit multiply.
func (s *Service) pending(pos models.Position, now int64) uint64 {
	elapsed := now - pos.LastClaimAt
	if elapsed <= 0 {
		return pos.AccumulatedRewards
	}
	rate := s.tierBp(pos.LockDuration())
	denom := uint64(models.SecondsPerYear) * models.BpDenominator

	hi, lo := bits.Mul64(pos.Amount, rate*uint64(elapsed))
	if hi >= denom {
		// The quotient would itself overflow uint64; no representable
		// supply reaches this.
		return math.MaxUint64
	}
	accrued, _ := bits.Div64(hi, lo, denom)
	return pos.AccumulatedRewards + accrued
}

// tierBp selects the annual reward rate from the fixed lock duration the
// position was opened with.
func (s *Service) tierBp(lockDuration int64) uint64 {
	tiers := s.params.Current().Tiers
	switch {
	case lockDuration >= oneYearLock:
		return tiers.OneYearBp
	case lockDuration >= sixMonthLock:
		return tiers.SixMonthBp
	case lockDuration >= threeMonthLock:
		return tiers.ThreeMonthBp
	default:
		return tiers.DefaultBp
	}
}
