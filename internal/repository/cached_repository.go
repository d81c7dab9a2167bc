package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/urlmint/urlmint/internal/model"
)

// notFoundSentinel marks a negatively cached code, so repeated lookups
// of bogus codes do not hammer the database.
const notFoundSentinel = "__NOT_FOUND__"

// CachedMappingRepository layers a Redis cache-aside over another
// MappingStore for code lookups. A nil cache client degrades to a plain
// passthrough, which keeps tests and cache outages simple.
type CachedMappingRepository struct {
	inner MappingStore
	cache *redis.Client
	ttl   time.Duration
}

// NewCachedMappingRepository creates the caching layer.
func NewCachedMappingRepository(inner MappingStore, cache *redis.Client, ttl time.Duration) *CachedMappingRepository {
	return &CachedMappingRepository{inner: inner, cache: cache, ttl: ttl}
}

func cacheKey(code string) string {
	return fmt.Sprintf("url:%s", code)
}

// GetByCode tries the cache first and falls back to the inner store.
// Cache errors are ignored; the store remains the source of truth.
func (r *CachedMappingRepository) GetByCode(ctx context.Context, code string) (*model.Mapping, error) {
	key := cacheKey(code)

	if r.cache != nil {
		cached, err := r.cache.Get(ctx, key).Result()
		if err == nil {
			if cached == notFoundSentinel {
				return nil, ErrNotFound
			}
			var m model.Mapping
			if err := json.Unmarshal([]byte(cached), &m); err == nil {
				return &m, nil
			}
			// Corrupt entry: drop it and fall through to the store.
			r.cache.Del(ctx, key)
		}
	}

	m, err := r.inner.GetByCode(ctx, code)
	if err != nil {
		if errors.Is(err, ErrNotFound) && r.cache != nil {
			r.cache.Set(ctx, key, notFoundSentinel, r.ttl)
		}
		return nil, err
	}

	if r.cache != nil {
		if data, err := json.Marshal(m); err == nil {
			r.cache.Set(ctx, key, data, r.ttl)
		}
	}
	return m, nil
}

// Create writes through to the store and refreshes the cache entry,
// overwriting any negative sentinel left by earlier lookups.
func (r *CachedMappingRepository) Create(ctx context.Context, m *model.Mapping) error {
	if err := r.inner.Create(ctx, m); err != nil {
		return err
	}
	if r.cache != nil {
		if data, err := json.Marshal(m); err == nil {
			r.cache.Set(ctx, cacheKey(m.ShortCode), data, r.ttl)
		}
	}
	return nil
}

// Delete removes the mapping and invalidates its cache entry.
func (r *CachedMappingRepository) Delete(ctx context.Context, code string) error {
	if err := r.inner.Delete(ctx, code); err != nil {
		return err
	}
	if r.cache != nil {
		r.cache.Del(ctx, cacheKey(code))
	}
	return nil
}

// IncrementClicks invalidates the cached entry so metadata reads see
// the fresh counter on their next lookup.
func (r *CachedMappingRepository) IncrementClicks(ctx context.Context, code string) (int64, error) {
	count, err := r.inner.IncrementClicks(ctx, code)
	if err != nil {
		return 0, err
	}
	if r.cache != nil {
		r.cache.Del(ctx, cacheKey(code))
	}
	return count, nil
}

// ListExpired is not cached; sweeps always read the store.
func (r *CachedMappingRepository) ListExpired(ctx context.Context, now time.Time, limit int) ([]*model.Mapping, error) {
	return r.inner.ListExpired(ctx, now, limit)
}

// DeleteExpired purges from the store. Cached entries for purged codes
// age out with the TTL; redirects re-check the store before counting.
func (r *CachedMappingRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	return r.inner.DeleteExpired(ctx, now)
}

// Aggregate always reads the store snapshot.
func (r *CachedMappingRepository) Aggregate(ctx context.Context, now time.Time) (*Aggregate, error) {
	return r.inner.Aggregate(ctx, now)
}

// Recent always reads the store.
func (r *CachedMappingRepository) Recent(ctx context.Context, n int) ([]*model.Mapping, error) {
	return r.inner.Recent(ctx, n)
}

var _ MappingStore = (*CachedMappingRepository)(nil)
