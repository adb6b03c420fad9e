package audit

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// Publisher is the interface services emit through. A nil publisher is
// valid and drops events; use Emit for nil-safe publishing.
type Publisher interface {
	Emit(ctx context.Context, event Event) error
}

// StorePublisher persists events via the storage layer.
type StorePublisher struct {
	store Store
}

// NewPublisher constructs a store-backed publisher.
func NewPublisher(store Store) *StorePublisher {
	return &StorePublisher{store: store}
}

func (p *StorePublisher) Emit(ctx context.Context, event Event) error {
	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	return p.store.Append(ctx, event)
}

// Emit publishes an event through an optional publisher. Audit failures
// are logged, never propagated: a mint that committed must not fail
// because its audit trail lagged.
func Emit(ctx context.Context, logger *slog.Logger, pub Publisher, event Event) {
	if pub == nil {
		return
	}
	if err := pub.Emit(ctx, event); err != nil && logger != nil {
		logger.ErrorContext(ctx, "audit emit failed",
			"action", event.Action,
			"account", event.Account,
			"error", err,
		)
	}
}
