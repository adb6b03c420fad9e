package service

import (
	"context"
	"log/slog"
	"time"
)

// Worker periodically sweeps every account holding expiry entries so
// expired batches are burned even when no caller triggers a sweep.
type Worker struct {
	svc           *Service
	interval      time.Duration
	maxPerAccount int
	logger        *slog.Logger
}

// NewWorker constructs the background sweeper.
func NewWorker(svc *Service, interval time.Duration, maxPerAccount int, logger *slog.Logger) *Worker {
	if interval <= 0 {
		interval = time.Hour
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Worker{svc: svc, interval: interval, maxPerAccount: maxPerAccount, logger: logger}
}

// Run sweeps on a ticker until the context is cancelled.
func (w *Worker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.logger.InfoContext(ctx, "expiry sweep worker started", "interval", w.interval)
	for {
		select {
		case <-ctx.Done():
			w.logger.InfoContext(ctx, "expiry sweep worker stopped")
			return ctx.Err()
		case <-ticker.C:
			results, err := w.svc.SweepAll(ctx, w.maxPerAccount)
			if err != nil {
				w.logger.ErrorContext(ctx, "background sweep failed", "error", err)
				continue
			}

			var burned uint64
			for _, res := range results {
				burned += res.Burned
			}
			if burned > 0 {
				w.logger.InfoContext(ctx, "background sweep completed",
					"accounts", len(results),
					"burned", burned,
				)
			}
		}
	}
}
