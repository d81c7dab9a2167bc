package service

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/urlmint/urlmint/internal/model"
	"github.com/urlmint/urlmint/internal/repository"
)

// fakeStore is an in-memory MappingStore for unit tests. It mirrors the
// storage contract: conditional insert on code, atomic increments under
// a lock, snapshot aggregation.
type fakeStore struct {
	mu     sync.Mutex
	byCode map[string]*model.Mapping

	// forcedConflicts makes the next N inserts fail with ErrCodeConflict.
	forcedConflicts int
	// forcedErr, when set, is returned by every operation.
	forcedErr error
}

func newFakeStore() *fakeStore {
	return &fakeStore{byCode: make(map[string]*model.Mapping)}
}

func (f *fakeStore) Create(_ context.Context, m *model.Mapping) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.forcedErr != nil {
		return f.forcedErr
	}
	if f.forcedConflicts > 0 {
		f.forcedConflicts--
		return repository.ErrCodeConflict
	}
	if _, exists := f.byCode[m.ShortCode]; exists {
		return repository.ErrCodeConflict
	}
	cp := *m
	f.byCode[m.ShortCode] = &cp
	return nil
}

func (f *fakeStore) GetByCode(_ context.Context, code string) (*model.Mapping, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.forcedErr != nil {
		return nil, f.forcedErr
	}
	m, ok := f.byCode[code]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *m
	return &cp, nil
}

func (f *fakeStore) Delete(_ context.Context, code string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.forcedErr != nil {
		return f.forcedErr
	}
	if _, ok := f.byCode[code]; !ok {
		return repository.ErrNotFound
	}
	delete(f.byCode, code)
	return nil
}

func (f *fakeStore) IncrementClicks(_ context.Context, code string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.forcedErr != nil {
		return 0, f.forcedErr
	}
	m, ok := f.byCode[code]
	if !ok {
		return 0, repository.ErrNotFound
	}
	m.ClickCount++
	return m.ClickCount, nil
}

func (f *fakeStore) ListExpired(_ context.Context, now time.Time, limit int) ([]*model.Mapping, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.forcedErr != nil {
		return nil, f.forcedErr
	}
	var out []*model.Mapping
	for _, m := range f.byCode {
		if !m.ExpiresAt.After(now) {
			cp := *m
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ExpiresAt.Before(out[j].ExpiresAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeStore) DeleteExpired(_ context.Context, now time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.forcedErr != nil {
		return 0, f.forcedErr
	}
	var count int64
	for code, m := range f.byCode {
		if !m.ExpiresAt.After(now) {
			delete(f.byCode, code)
			count++
		}
	}
	return count, nil
}

func (f *fakeStore) Aggregate(_ context.Context, now time.Time) (*repository.Aggregate, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.forcedErr != nil {
		return nil, f.forcedErr
	}
	agg := &repository.Aggregate{}
	for _, m := range f.byCode {
		agg.Total++
		if m.ExpiresAt.After(now) {
			agg.Active++
		}
		agg.TotalClicks += m.ClickCount
	}
	agg.Expired = agg.Total - agg.Active
	return agg, nil
}

func (f *fakeStore) Recent(_ context.Context, n int) ([]*model.Mapping, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.forcedErr != nil {
		return nil, f.forcedErr
	}
	var out []*model.Mapping
	for _, m := range f.byCode {
		cp := *m
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if len(out) > n {
		out = out[:n]
	}
	return out, nil
}

func (f *fakeStore) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.byCode)
}

var _ repository.MappingStore = (*fakeStore)(nil)
