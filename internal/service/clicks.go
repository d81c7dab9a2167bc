package service

import (
	"context"
	"log/slog"

	"github.com/urlmint/urlmint/internal/repository"
)

// ClickPublisher fans a recorded click out to the analytics side.
// events.Publisher satisfies this; tests substitute stubs.
type ClickPublisher interface {
	PublishClick(ctx context.Context, code string, count int64) error
}

// ClickAccountant records dereferences of a mapping. It is a thin layer
// over the store's atomic increment, kept separate because its
// correctness requirement (no lost updates under arbitrary concurrent
// callers) is distinct from general CRUD.
type ClickAccountant struct {
	store     repository.MappingStore
	publisher ClickPublisher
	logger    *slog.Logger
}

// NewClickAccountant creates an accountant. publisher may be nil when
// click fan-out is disabled.
func NewClickAccountant(store repository.MappingStore, publisher ClickPublisher, logger *slog.Logger) *ClickAccountant {
	return &ClickAccountant{store: store, publisher: publisher, logger: logger}
}

// Record bumps the click counter for code and returns the new count.
// Event publishing is best-effort: a broker failure is logged, never
// surfaced to the redirecting client.
func (a *ClickAccountant) Record(ctx context.Context, code string) (int64, error) {
	count, err := a.store.IncrementClicks(ctx, code)
	if err != nil {
		return 0, err
	}
	if a.publisher != nil {
		if err := a.publisher.PublishClick(ctx, code, count); err != nil {
			a.logger.WarnContext(ctx, "failed to publish click event",
				slog.String("code", code),
				slog.String("error", err.Error()))
		}
	}
	return count, nil
}
