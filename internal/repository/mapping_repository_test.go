package repository

import (
	"context"
	"fmt"
	"log"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urlmint/urlmint/internal/model"
	"github.com/urlmint/urlmint/internal/testutil"
	"golang.org/x/sync/errgroup"
)

var (
	testDB    *testutil.TestDB
	testCache *testutil.TestCache
)

func TestMain(m *testing.M) {
	ctx := context.Background()

	var err error
	testDB, err = testutil.SetupTestDB(ctx)
	if err != nil {
		log.Fatalf("failed to set up test database: %v", err)
	}

	testCache, err = testutil.SetupTestCache(ctx)
	if err != nil {
		testDB.Teardown(ctx)
		log.Fatalf("failed to set up test cache: %v", err)
	}

	code := m.Run()

	testCache.Teardown(ctx)
	testDB.Teardown(ctx)
	os.Exit(code)
}

func newMapping(code string, lifetime time.Duration) *model.Mapping {
	now := time.Now().UTC().Truncate(time.Microsecond)
	return &model.Mapping{
		ID:          uuid.New(),
		ShortCode:   code,
		OriginalURL: "https://example.com/" + code,
		Domain:      "example.com",
		CreatedAt:   now,
		ExpiresAt:   now.Add(lifetime),
	}
}

func TestMappingRepository_Create(t *testing.T) {
	ctx := context.Background()
	repo := NewMappingRepository(testDB.Pool)
	t.Cleanup(func() { testDB.Cleanup(ctx) })

	t.Run("inserts and reads back a mapping", func(t *testing.T) {
		m := newMapping("crt0001", 24*time.Hour)
		require.NoError(t, repo.Create(ctx, m))

		got, err := repo.GetByCode(ctx, "crt0001")
		require.NoError(t, err)
		assert.Equal(t, m.ID, got.ID)
		assert.Equal(t, m.OriginalURL, got.OriginalURL)
		assert.Equal(t, m.Domain, got.Domain)
		assert.Equal(t, int64(0), got.ClickCount)
		assert.WithinDuration(t, m.ExpiresAt, got.ExpiresAt, time.Millisecond)
	})

	t.Run("duplicate short code fails with CodeConflict", func(t *testing.T) {
		m := newMapping("crt0002", 24*time.Hour)
		require.NoError(t, repo.Create(ctx, m))

		dup := newMapping("crt0002", 24*time.Hour)
		err := repo.Create(ctx, dup)
		assert.ErrorIs(t, err, ErrCodeConflict)
	})

	t.Run("concurrent creators racing on one code: exactly one wins", func(t *testing.T) {
		const n = 10
		var conflicts int64
		results := make(chan error, n)
		for i := 0; i < n; i++ {
			go func() {
				results <- repo.Create(ctx, newMapping("crt0003", 24*time.Hour))
			}()
		}
		var successes int
		for i := 0; i < n; i++ {
			err := <-results
			if err == nil {
				successes++
				continue
			}
			require.ErrorIs(t, err, ErrCodeConflict)
			conflicts++
		}
		assert.Equal(t, 1, successes)
		assert.Equal(t, int64(n-1), conflicts)
	})

	t.Run("a purged code can be reused", func(t *testing.T) {
		expired := newMapping("crt0004", -time.Hour)
		require.NoError(t, repo.Create(ctx, expired))

		_, err := repo.DeleteExpired(ctx, time.Now())
		require.NoError(t, err)

		fresh := newMapping("crt0004", 24*time.Hour)
		assert.NoError(t, repo.Create(ctx, fresh))
	})
}

func TestMappingRepository_GetByCode(t *testing.T) {
	ctx := context.Background()
	repo := NewMappingRepository(testDB.Pool)
	t.Cleanup(func() { testDB.Cleanup(ctx) })

	t.Run("unknown code fails with NotFound", func(t *testing.T) {
		_, err := repo.GetByCode(ctx, "nothere")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("expired mappings are still readable", func(t *testing.T) {
		m := newMapping("get0001", -time.Hour)
		require.NoError(t, repo.Create(ctx, m))

		got, err := repo.GetByCode(ctx, "get0001")
		require.NoError(t, err)
		assert.True(t, got.ExpiresAt.Before(time.Now()))
	})
}

func TestMappingRepository_Delete(t *testing.T) {
	ctx := context.Background()
	repo := NewMappingRepository(testDB.Pool)
	t.Cleanup(func() { testDB.Cleanup(ctx) })

	t.Run("removes the mapping", func(t *testing.T) {
		require.NoError(t, repo.Create(ctx, newMapping("del0001", 24*time.Hour)))
		require.NoError(t, repo.Delete(ctx, "del0001"))

		_, err := repo.GetByCode(ctx, "del0001")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("unknown code fails with NotFound", func(t *testing.T) {
		assert.ErrorIs(t, repo.Delete(ctx, "del0002"), ErrNotFound)
	})
}

func TestMappingRepository_IncrementClicks(t *testing.T) {
	ctx := context.Background()
	repo := NewMappingRepository(testDB.Pool)
	t.Cleanup(func() { testDB.Cleanup(ctx) })

	t.Run("returns the new count", func(t *testing.T) {
		require.NoError(t, repo.Create(ctx, newMapping("clk0001", 24*time.Hour)))

		count, err := repo.IncrementClicks(ctx, "clk0001")
		require.NoError(t, err)
		assert.Equal(t, int64(1), count)

		count, err = repo.IncrementClicks(ctx, "clk0001")
		require.NoError(t, err)
		assert.Equal(t, int64(2), count)
	})

	t.Run("unknown code fails with NotFound", func(t *testing.T) {
		_, err := repo.IncrementClicks(ctx, "clk0002")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("loses no updates under concurrency", func(t *testing.T) {
		require.NoError(t, repo.Create(ctx, newMapping("clk0003", 24*time.Hour)))

		const n = 100
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(10)
		for i := 0; i < n; i++ {
			g.Go(func() error {
				_, err := repo.IncrementClicks(gctx, "clk0003")
				return err
			})
		}
		require.NoError(t, g.Wait())

		got, err := repo.GetByCode(ctx, "clk0003")
		require.NoError(t, err)
		assert.Equal(t, int64(n), got.ClickCount)
	})
}

func TestMappingRepository_Expiry(t *testing.T) {
	ctx := context.Background()
	repo := NewMappingRepository(testDB.Pool)
	t.Cleanup(func() { testDB.Cleanup(ctx) })

	require.NoError(t, repo.Create(ctx, newMapping("exp0001", -48*time.Hour)))
	require.NoError(t, repo.Create(ctx, newMapping("exp0002", -time.Hour)))
	require.NoError(t, repo.Create(ctx, newMapping("exp0003", 24*time.Hour)))

	t.Run("ListExpired returns only expired rows, oldest expiry first", func(t *testing.T) {
		expired, err := repo.ListExpired(ctx, time.Now(), 10)
		require.NoError(t, err)
		require.Len(t, expired, 2)
		assert.Equal(t, "exp0001", expired[0].ShortCode)
		assert.Equal(t, "exp0002", expired[1].ShortCode)
	})

	t.Run("ListExpired honors the limit", func(t *testing.T) {
		expired, err := repo.ListExpired(ctx, time.Now(), 1)
		require.NoError(t, err)
		require.Len(t, expired, 1)
		assert.Equal(t, "exp0001", expired[0].ShortCode)
	})

	t.Run("DeleteExpired purges expired rows and is idempotent", func(t *testing.T) {
		count, err := repo.DeleteExpired(ctx, time.Now())
		require.NoError(t, err)
		assert.Equal(t, int64(2), count)

		count, err = repo.DeleteExpired(ctx, time.Now())
		require.NoError(t, err)
		assert.Equal(t, int64(0), count)

		_, err = repo.GetByCode(ctx, "exp0003")
		assert.NoError(t, err, "live mapping must survive the purge")
	})

	t.Run("a cutoff in the past spares recently expired rows", func(t *testing.T) {
		require.NoError(t, repo.Create(ctx, newMapping("exp0004", -time.Hour)))

		count, err := repo.DeleteExpired(ctx, time.Now().AddDate(0, 0, -1))
		require.NoError(t, err)
		assert.Equal(t, int64(0), count)
	})
}

func TestMappingRepository_Aggregate(t *testing.T) {
	ctx := context.Background()
	repo := NewMappingRepository(testDB.Pool)
	t.Cleanup(func() { testDB.Cleanup(ctx) })

	t.Run("empty table aggregates to zeros", func(t *testing.T) {
		agg, err := repo.Aggregate(ctx, time.Now())
		require.NoError(t, err)
		assert.Equal(t, int64(0), agg.Total)
		assert.Equal(t, int64(0), agg.TotalClicks)
	})

	t.Run("counts split by liveness and clicks sum across all rows", func(t *testing.T) {
		require.NoError(t, repo.Create(ctx, newMapping("agg0001", 24*time.Hour)))
		require.NoError(t, repo.Create(ctx, newMapping("agg0002", 24*time.Hour)))
		require.NoError(t, repo.Create(ctx, newMapping("agg0003", -time.Hour)))

		for i := 0; i < 3; i++ {
			_, err := repo.IncrementClicks(ctx, "agg0001")
			require.NoError(t, err)
		}
		_, err := repo.IncrementClicks(ctx, "agg0003")
		require.NoError(t, err)

		agg, err := repo.Aggregate(ctx, time.Now())
		require.NoError(t, err)
		assert.Equal(t, int64(3), agg.Total)
		assert.Equal(t, int64(2), agg.Active)
		assert.Equal(t, int64(1), agg.Expired)
		assert.Equal(t, agg.Total, agg.Active+agg.Expired)
		assert.Equal(t, int64(4), agg.TotalClicks, "expired mappings keep contributing clicks until purged")
	})
}

func TestMappingRepository_Recent(t *testing.T) {
	ctx := context.Background()
	repo := NewMappingRepository(testDB.Pool)
	t.Cleanup(func() { testDB.Cleanup(ctx) })

	base := time.Now().UTC().Truncate(time.Microsecond)
	for i := 0; i < 5; i++ {
		m := newMapping(fmt.Sprintf("rec%04d", i), 24*time.Hour)
		m.CreatedAt = base.Add(time.Duration(i) * time.Second)
		require.NoError(t, repo.Create(ctx, m))
	}

	recent, err := repo.Recent(ctx, 3)
	require.NoError(t, err)
	require.Len(t, recent, 3)
	assert.Equal(t, "rec0004", recent[0].ShortCode)
	assert.Equal(t, "rec0003", recent[1].ShortCode)
	assert.Equal(t, "rec0002", recent[2].ShortCode)
}
