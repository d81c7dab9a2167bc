package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/urlmint/urlmint/internal/model"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

var (
	ErrNotFound     = errors.New("mapping not found")
	ErrCodeConflict = errors.New("short code already exists")
	ErrUnavailable  = errors.New("storage unavailable")
)

// Aggregate holds counts computed over all mappings in one snapshot.
type Aggregate struct {
	Total       int64
	Active      int64
	Expired     int64
	TotalClicks int64
}

// MappingStore is the storage contract for short-code mappings. All
// implementations must enforce short-code uniqueness at write time and
// perform click increments atomically server-side.
type MappingStore interface {
	Create(ctx context.Context, m *model.Mapping) error
	GetByCode(ctx context.Context, code string) (*model.Mapping, error)
	Delete(ctx context.Context, code string) error
	IncrementClicks(ctx context.Context, code string) (int64, error)
	ListExpired(ctx context.Context, now time.Time, limit int) ([]*model.Mapping, error)
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
	Aggregate(ctx context.Context, now time.Time) (*Aggregate, error)
	Recent(ctx context.Context, n int) ([]*model.Mapping, error)
}

// MappingRepository handles database operations for mappings
type MappingRepository struct {
	db *pgxpool.Pool
}

// NewMappingRepository creates a new mapping repository
func NewMappingRepository(db *pgxpool.Pool) *MappingRepository {
	return &MappingRepository{db: db}
}

// Create inserts a new mapping record into the database
func (r *MappingRepository) Create(ctx context.Context, m *model.Mapping) error {
	ctx, span := tracer.Start(ctx, "db.insert",
		trace.WithAttributes(
			attribute.String("db.system", "postgresql"),
			attribute.String("db.operation", "INSERT"),
			attribute.String("db.sql.table", "urls"),
			attribute.String("short_code", m.ShortCode),
		),
	)
	defer span.End()

	// The unique index on short_code is the single enforcement point
	// for uniqueness: of two concurrent creators racing on the same
	// code, exactly one insert succeeds and the other gets 23505.
	query := `
		INSERT INTO urls (id, short_code, original_url, domain, created_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err := r.db.Exec(ctx, query,
		m.ID,
		m.ShortCode,
		m.OriginalURL,
		m.Domain,
		m.CreatedAt,
		m.ExpiresAt,
	)
	if err != nil {
		span.RecordError(err)
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrCodeConflict
		}
		return err
	}
	return nil
}

// GetByCode retrieves a mapping by its short code
func (r *MappingRepository) GetByCode(ctx context.Context, code string) (*model.Mapping, error) {
	ctx, span := tracer.Start(ctx, "db.select",
		trace.WithAttributes(
			attribute.String("db.system", "postgresql"),
			attribute.String("db.operation", "SELECT"),
			attribute.String("db.sql.table", "urls"),
			attribute.String("short_code", code),
		),
	)
	defer span.End()

	query := `
		SELECT id, short_code, original_url, domain, created_at, expires_at, click_count
		FROM urls
		WHERE short_code = $1
	`
	var m model.Mapping
	err := r.db.QueryRow(ctx, query, code).Scan(
		&m.ID,
		&m.ShortCode,
		&m.OriginalURL,
		&m.Domain,
		&m.CreatedAt,
		&m.ExpiresAt,
		&m.ClickCount,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		span.RecordError(err)
		return nil, err
	}
	return &m, nil
}

// Delete removes a mapping by its short code
func (r *MappingRepository) Delete(ctx context.Context, code string) error {
	ctx, span := tracer.Start(ctx, "db.delete",
		trace.WithAttributes(
			attribute.String("db.system", "postgresql"),
			attribute.String("db.operation", "DELETE"),
			attribute.String("db.sql.table", "urls"),
			attribute.String("short_code", code),
		),
	)
	defer span.End()

	result, err := r.db.Exec(ctx, `DELETE FROM urls WHERE short_code = $1`, code)
	if err != nil {
		span.RecordError(err)
		return err
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// IncrementClicks bumps the click counter for a mapping and returns the
// new value. The increment is a single UPDATE so concurrent redirects
// never lose updates.
func (r *MappingRepository) IncrementClicks(ctx context.Context, code string) (int64, error) {
	ctx, span := tracer.Start(ctx, "db.update",
		trace.WithAttributes(
			attribute.String("db.system", "postgresql"),
			attribute.String("db.operation", "UPDATE"),
			attribute.String("db.sql.table", "urls"),
			attribute.String("short_code", code),
		),
	)
	defer span.End()

	query := `
		UPDATE urls SET click_count = click_count + 1
		WHERE short_code = $1
		RETURNING click_count
	`
	var count int64
	err := r.db.QueryRow(ctx, query, code).Scan(&count)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, ErrNotFound
		}
		span.RecordError(err)
		return 0, err
	}
	return count, nil
}

// ListExpired returns up to limit mappings whose expiry has passed,
// oldest expiry first.
func (r *MappingRepository) ListExpired(ctx context.Context, now time.Time, limit int) ([]*model.Mapping, error) {
	ctx, span := tracer.Start(ctx, "db.select",
		trace.WithAttributes(
			attribute.String("db.system", "postgresql"),
			attribute.String("db.operation", "SELECT"),
			attribute.String("db.sql.table", "urls"),
		),
	)
	defer span.End()

	query := `
		SELECT id, short_code, original_url, domain, created_at, expires_at, click_count
		FROM urls
		WHERE expires_at <= $1
		ORDER BY expires_at
		LIMIT $2
	`
	rows, err := r.db.Query(ctx, query, now, limit)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	defer rows.Close()
	return scanMappings(rows)
}

// DeleteExpired purges all mappings whose expiry is at or before now
// and returns the number removed. Idempotent: a second sweep with no
// newly expired rows deletes nothing.
func (r *MappingRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	ctx, span := tracer.Start(ctx, "db.delete",
		trace.WithAttributes(
			attribute.String("db.system", "postgresql"),
			attribute.String("db.operation", "DELETE"),
			attribute.String("db.sql.table", "urls"),
		),
	)
	defer span.End()

	result, err := r.db.Exec(ctx, `DELETE FROM urls WHERE expires_at <= $1`, now)
	if err != nil {
		span.RecordError(err)
		return 0, err
	}
	return result.RowsAffected(), nil
}

// Aggregate computes total/active/expired counts and the click sum in a
// single statement, so the numbers come from one consistent snapshot
// rather than separate queries that could race with writers.
func (r *MappingRepository) Aggregate(ctx context.Context, now time.Time) (*Aggregate, error) {
	ctx, span := tracer.Start(ctx, "db.select",
		trace.WithAttributes(
			attribute.String("db.system", "postgresql"),
			attribute.String("db.operation", "SELECT"),
			attribute.String("db.sql.table", "urls"),
		),
	)
	defer span.End()

	query := `
		SELECT COUNT(*),
		       COUNT(*) FILTER (WHERE expires_at > $1),
		       COALESCE(SUM(click_count), 0)
		FROM urls
	`
	var agg Aggregate
	err := r.db.QueryRow(ctx, query, now).Scan(&agg.Total, &agg.Active, &agg.TotalClicks)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	agg.Expired = agg.Total - agg.Active
	return &agg, nil
}

// Recent returns up to n mappings, newest first.
func (r *MappingRepository) Recent(ctx context.Context, n int) ([]*model.Mapping, error) {
	ctx, span := tracer.Start(ctx, "db.select",
		trace.WithAttributes(
			attribute.String("db.system", "postgresql"),
			attribute.String("db.operation", "SELECT"),
			attribute.String("db.sql.table", "urls"),
		),
	)
	defer span.End()

	query := `
		SELECT id, short_code, original_url, domain, created_at, expires_at, click_count
		FROM urls
		ORDER BY created_at DESC
		LIMIT $1
	`
	rows, err := r.db.Query(ctx, query, n)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	defer rows.Close()
	return scanMappings(rows)
}

func scanMappings(rows pgx.Rows) ([]*model.Mapping, error) {
	var out []*model.Mapping
	for rows.Next() {
		var m model.Mapping
		if err := rows.Scan(
			&m.ID,
			&m.ShortCode,
			&m.OriginalURL,
			&m.Domain,
			&m.CreatedAt,
			&m.ExpiresAt,
			&m.ClickCount,
		); err != nil {
			return nil, err
		}
		out = append(out, &m)
	}
	return out, rows.Err()
}

// Ensure MappingRepository implements MappingStore at compile time
var _ MappingStore = (*MappingRepository)(nil)
