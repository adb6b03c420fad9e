// Package service implements the issuance expiry tracker. Locked user
// shares that outlive the retention period are burned by an explicitly
// bounded sweep so no single call can touch an unbounded number of
// entries.
package service

import (
	"context"
	"fmt"
	"log/slog"

	"aurum/internal/audit"
	"aurum/internal/ledger/models"
	"aurum/internal/platform/metrics"
	id "aurum/pkg/domain"
	dErrors "aurum/pkg/domain-errors"
	"aurum/pkg/requestcontext"
)

// DefaultMaxIterations bounds a sweep when the caller passes zero.
const DefaultMaxIterations = 30

// Store is the ledger state the expiry tracker needs.
type Store interface {
	Account(ctx context.Context, addr id.Address) (models.Account, error)
	ExpiryBuckets(ctx context.Context, addr id.Address) ([]int64, error)
	BurnExpired(ctx context.Context, addr id.Address, bucket, now int64) (uint64, error)
	AccountsWithExpiries(ctx context.Context) ([]id.Address, error)
}

// Service runs expiry sweeps.
type Service struct {
	store   Store
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

// New constructs the expiry tracker.
func New(store Store, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, fmt.Errorf("ledger store is required")
	}

	svc := &Service{store: store, logger: slog.Default()}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

// SweepResult reports what one account's sweep burned.
type SweepResult struct {
	Address        id.Address `json:"address"`
	EntriesSwept   int        `json:"entries_swept"`
	Burned         uint64     `json:"burned"`
	BucketsVisited int        `json:"buckets_visited"`
}

// SweepAccount burns expired issuance batches for one account, visiting at
// most maxIterations of its live issuance buckets, oldest first. Bounded
// calls only spend iterations on buckets that still hold entries, so
// repeated calls exhaust every expired entry no matter how far in the past
// it was issued. Unprivileged: sweeping only enforces expiry that already
// happened.
func (s *Service) SweepAccount(ctx context.Context, addr id.Address, maxIterations int) (*SweepResult, error) {
	if addr.IsZero() {
		return nil, dErrors.New(dErrors.CodeInvalidAddress, "account address is required")
	}
	if maxIterations <= 0 {
		maxIterations = DefaultMaxIterations
	}

	now := requestcontext.Now(ctx).Unix()
	result := &SweepResult{Address: addr}

	buckets, err := s.store.ExpiryBuckets(ctx, addr)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list expiry buckets")
	}
	newest := models.DayBucket(now - models.RetentionPeriod)

	for _, bucket := range buckets {
		if result.BucketsVisited == maxIterations {
			break
		}
		if bucket > newest {
			// Buckets are sorted; everything from here on was issued less
			// than a retention period ago.
			break
		}
		result.BucketsVisited++

		burned, err := s.store.BurnExpired(ctx, addr, bucket, now)
		if err != nil {
			return result, dErrors.Wrap(err, dErrors.CodeInternal, "failed to burn expired batch")
		}
		if burned > 0 {
			result.EntriesSwept++
			result.Burned += burned

			acc, err := s.store.Account(ctx, addr)
			if err != nil {
				return result, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load account")
			}
			if acc.Balance == 0 {
				// Nothing left to burn from.
				break
			}
		}
	}

	if result.Burned > 0 {
		if s.metrics != nil {
			s.metrics.SweepsTotal.Inc()
			s.metrics.SweptEntriesTotal.Add(float64(result.EntriesSwept))
			s.metrics.BurnedUnits.Add(float64(result.Burned))
		}
		audit.Emit(ctx, s.logger, s.audit, audit.Event{
			Action:    audit.ActionExpirySweep,
			Account:   addr,
			Amount:    result.Burned,
			RequestID: requestcontext.RequestID(ctx),
		})
		s.logger.InfoContext(ctx, "expiry sweep burned",
			"account", addr,
			"entries", result.EntriesSwept,
			"burned", result.Burned,
		)
	}
	return result, nil
}

// SweepBatch sweeps several accounts with a shared per-account bound.
// Failures on one account do not stop the batch.
func (s *Service) SweepBatch(ctx context.Context, addrs []id.Address, maxPerAccount int) ([]SweepResult, error) {
	if len(addrs) == 0 {
		return nil, dErrors.New(dErrors.CodeValidation, "at least one address is required")
	}

	results := make([]SweepResult, 0, len(addrs))
	for _, addr := range addrs {
		res, err := s.SweepAccount(ctx, addr, maxPerAccount)
		if err != nil {
			s.logger.WarnContext(ctx, "sweep failed for account",
				"account", addr,
				"error", err,
			)
			continue
		}
		results = append(results, *res)
	}
	return results, nil
}

// SweepAll sweeps every account currently holding expiry entries. The
// background worker drives this.
func (s *Service) SweepAll(ctx context.Context, maxPerAccount int) ([]SweepResult, error) {
	addrs, err := s.store.AccountsWithExpiries(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list accounts with expiries")
	}
	if len(addrs) == 0 {
		return nil, nil
	}
	return s.SweepBatch(ctx, addrs, maxPerAccount)
}
