package repository

import (
	"context"
	"errors"
	"time"

	"github.com/sony/gobreaker"
	"github.com/urlmint/urlmint/internal/model"
)

const (
	maxAttempts  = 3
	retryBackoff = 50 * time.Millisecond
)

// ResilientMappingRepository wraps a MappingStore with bounded retries
// and a circuit breaker for storage-layer transient failures. Domain
// errors (not found, code conflict) pass through untouched and never
// count against the breaker.
type ResilientMappingRepository struct {
	inner   MappingStore
	breaker *gobreaker.CircuitBreaker
}

// NewResilientMappingRepository creates the resilience layer.
func NewResilientMappingRepository(inner MappingStore) *ResilientMappingRepository {
	settings := gobreaker.Settings{
		Name:    "mapping-store",
		Timeout: 10 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		IsSuccessful: func(err error) bool {
			return err == nil || isDomainErr(err)
		},
	}
	return &ResilientMappingRepository{
		inner:   inner,
		breaker: gobreaker.NewCircuitBreaker(settings),
	}
}

func isDomainErr(err error) bool {
	return errors.Is(err, ErrNotFound) || errors.Is(err, ErrCodeConflict)
}

// execute runs op through the breaker, retrying transient failures a
// bounded number of times. Context errors abort immediately so a caller
// deadline is never burned on backoff sleeps.
func (r *ResilientMappingRepository) execute(ctx context.Context, op func() error) error {
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		_, err := r.breaker.Execute(func() (any, error) {
			return nil, op()
		})
		if err == nil || isDomainErr(err) {
			return err
		}
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return ErrUnavailable
		}

		timer := time.NewTimer(retryBackoff * time.Duration(attempt+1))
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
	return ErrUnavailable
}

func (r *ResilientMappingRepository) Create(ctx context.Context, m *model.Mapping) error {
	return r.execute(ctx, func() error {
		return r.inner.Create(ctx, m)
	})
}

func (r *ResilientMappingRepository) GetByCode(ctx context.Context, code string) (*model.Mapping, error) {
	var out *model.Mapping
	err := r.execute(ctx, func() error {
		var err error
		out, err = r.inner.GetByCode(ctx, code)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *ResilientMappingRepository) Delete(ctx context.Context, code string) error {
	return r.execute(ctx, func() error {
		return r.inner.Delete(ctx, code)
	})
}

func (r *ResilientMappingRepository) IncrementClicks(ctx context.Context, code string) (int64, error) {
	var count int64
	err := r.execute(ctx, func() error {
		var err error
		count, err = r.inner.IncrementClicks(ctx, code)
		return err
	})
	if err != nil {
		return 0, err
	}
	return count, nil
}

func (r *ResilientMappingRepository) ListExpired(ctx context.Context, now time.Time, limit int) ([]*model.Mapping, error) {
	var out []*model.Mapping
	err := r.execute(ctx, func() error {
		var err error
		out, err = r.inner.ListExpired(ctx, now, limit)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *ResilientMappingRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	var count int64
	err := r.execute(ctx, func() error {
		var err error
		count, err = r.inner.DeleteExpired(ctx, now)
		return err
	})
	if err != nil {
		return 0, err
	}
	return count, nil
}

func (r *ResilientMappingRepository) Aggregate(ctx context.Context, now time.Time) (*Aggregate, error) {
	var out *Aggregate
	err := r.execute(ctx, func() error {
		var err error
		out, err = r.inner.Aggregate(ctx, now)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *ResilientMappingRepository) Recent(ctx context.Context, n int) ([]*model.Mapping, error) {
	var out []*model.Mapping
	err := r.execute(ctx, func() error {
		var err error
		out, err = r.inner.Recent(ctx, n)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

var _ MappingStore = (*ResilientMappingRepository)(nil)
