package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/urlmint/urlmint/internal/observability"
	"github.com/urlmint/urlmint/internal/repository"
)

// Sweeper periodically purges expired mappings. It is the background
// counterpart to the explicit cleanup operation; both reach the same
// terminal state through DeleteExpired.
type Sweeper struct {
	store    repository.MappingStore
	interval time.Duration
	logger   *slog.Logger
	metrics  *observability.Metrics
	nowFunc  func() time.Time
}

// NewSweeper creates a sweeper. metrics may be nil.
func NewSweeper(store repository.MappingStore, interval time.Duration, logger *slog.Logger, metrics *observability.Metrics) *Sweeper {
	if interval <= 0 {
		interval = time.Hour
	}
	return &Sweeper{
		store:    store,
		interval: interval,
		logger:   logger,
		metrics:  metrics,
		nowFunc:  time.Now,
	}
}

// Run sweeps on the configured interval until ctx is cancelled. Sweep
// failures are logged and retried on the next tick; they never stop the
// loop.
func (s *Sweeper) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("expiry sweeper stopped")
			return nil
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

func (s *Sweeper) sweep(ctx context.Context) {
	count, err := s.store.DeleteExpired(ctx, s.nowFunc())
	if err != nil {
		s.logger.ErrorContext(ctx, "expiry sweep failed", slog.String("error", err.Error()))
		return
	}
	if count > 0 {
		if s.metrics != nil {
			s.metrics.PurgedTotal.Add(float64(count))
		}
		s.logger.InfoContext(ctx, "expiry sweep completed", slog.Int64("deleted", count))
	}
}
