package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/google/uuid"
	"github.com/urlmint/urlmint/internal/model"
	"github.com/urlmint/urlmint/internal/observability"
	"github.com/urlmint/urlmint/internal/repository"
)

// ShortenerInterface defines the contract consumed by the HTTP layer.
type ShortenerInterface interface {
	Shorten(ctx context.Context, req *model.ShortenRequest) (*model.ShortenResponse, error)
	Info(ctx context.Context, code string) (*model.InfoResponse, error)
	Resolve(ctx context.Context, code string) (string, error)
	Stats(ctx context.Context) (*model.StatsResponse, error)
	Cleanup(ctx context.Context, req *model.CleanupRequest) (*model.CleanupResponse, error)
}

// Shortener orchestrates code generation, storage, expiry and click
// accounting to implement the public operations.
type Shortener struct {
	store       repository.MappingStore
	gen         *CodeGenerator
	expiry      *ExpiryPolicy
	clicks      *ClickAccountant
	baseURL     string
	maxAttempts int
	recentLimit int
	logger      *slog.Logger
	metrics     *observability.Metrics
	nowFunc     func() time.Time
}

// NewShortener creates the service. metrics may be nil in tests.
func NewShortener(
	store repository.MappingStore,
	gen *CodeGenerator,
	expiry *ExpiryPolicy,
	clicks *ClickAccountant,
	baseURL string,
	maxAttempts int,
	recentLimit int,
	logger *slog.Logger,
	metrics *observability.Metrics,
) *Shortener {
	if maxAttempts <= 0 {
		maxAttempts = 5
	}
	if recentLimit <= 0 {
		recentLimit = 10
	}
	return &Shortener{
		store:       store,
		gen:         gen,
		expiry:      expiry,
		clicks:      clicks,
		baseURL:     baseURL,
		maxAttempts: maxAttempts,
		recentLimit: recentLimit,
		logger:      logger,
		metrics:     metrics,
		nowFunc:     time.Now,
	}
}

// Shorten validates the original URL, resolves the lifetime, and loops
// generate → conditional insert until a code lands or the retry bound
// is hit. Exhausting the bound is exceptional: it signals near
// address-space exhaustion or a generator defect, not routine load.
func (s *Shortener) Shorten(ctx context.Context, req *model.ShortenRequest) (*model.ShortenResponse, error) {
	domain, err := validateURL(req.URL)
	if err != nil {
		return nil, ErrInvalidURL
	}

	lifetime := s.expiry.ResolveLifetime(req.ExpiresInDays)

	for attempt := 0; attempt < s.maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		code, err := s.gen.Generate()
		if err != nil {
			return nil, err
		}

		now := s.nowFunc()
		m := &model.Mapping{
			ID:          uuid.New(),
			ShortCode:   code,
			OriginalURL: req.URL,
			Domain:      domain,
			CreatedAt:   now,
			ExpiresAt:   now.Add(lifetime),
		}
		if err := s.store.Create(ctx, m); err != nil {
			if errors.Is(err, repository.ErrCodeConflict) {
				s.logger.DebugContext(ctx, "short code collision, retrying",
					slog.String("code", code),
					slog.Int("attempt", attempt+1))
				continue
			}
			return nil, err
		}

		if s.metrics != nil {
			s.metrics.ShortensTotal.Inc()
		}
		return &model.ShortenResponse{
			ShortURL:    s.shortURL(code),
			ShortCode:   code,
			OriginalURL: m.OriginalURL,
			CreatedAt:   m.CreatedAt.Format(time.RFC3339),
			ExpiresAt:   m.ExpiresAt.Format(time.RFC3339),
		}, nil
	}

	s.logger.ErrorContext(ctx, "short code generation exhausted",
		slog.Int("attempts", s.maxAttempts))
	return nil, ErrGenerationExhausted
}

// Resolve returns the original URL for a live mapping and records the
// click. This is the only path that increments the counter.
func (s *Shortener) Resolve(ctx context.Context, code string) (string, error) {
	m, err := s.store.GetByCode(ctx, code)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return "", ErrNotFound
		}
		return "", err
	}
	if !s.expiry.IsLive(m, s.nowFunc()) {
		return "", ErrExpired
	}

	if _, err := s.clicks.Record(ctx, code); err != nil {
		// A sweep may purge the row between lookup and increment when
		// the expiry boundary is being crossed; both outcomes are
		// terminal for the caller.
		if errors.Is(err, repository.ErrNotFound) {
			return "", ErrNotFound
		}
		return "", err
	}

	if s.metrics != nil {
		s.metrics.RedirectsTotal.Inc()
	}
	return m.OriginalURL, nil
}

// Info returns the full metadata view without touching the counter.
// Expired mappings are still reported, flagged inactive, until a sweep
// purges them.
func (s *Shortener) Info(ctx context.Context, code string) (*model.InfoResponse, error) {
	m, err := s.store.GetByCode(ctx, code)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	resp := s.infoView(m, s.nowFunc())
	return &resp, nil
}

// Stats returns aggregate counts plus the recent-mappings view.
func (s *Shortener) Stats(ctx context.Context) (*model.StatsResponse, error) {
	now := s.nowFunc()

	agg, err := s.store.Aggregate(ctx, now)
	if err != nil {
		return nil, err
	}
	recent, err := s.store.Recent(ctx, s.recentLimit)
	if err != nil {
		return nil, err
	}

	resp := &model.StatsResponse{
		TotalURLs:   agg.Total,
		TotalClicks: agg.TotalClicks,
		ActiveURLs:  agg.Active,
		ExpiredURLs: agg.Expired,
		RecentURLs:  make([]model.InfoResponse, 0, len(recent)),
	}
	for _, m := range recent {
		resp.RecentURLs = append(resp.RecentURLs, s.infoView(m, now))
	}
	return resp, nil
}

// Cleanup purges expired mappings when explicitly asked to. The
// includeExpired gate exists so callers can invoke cleanup without fear
// of accidental deletion.
func (s *Shortener) Cleanup(ctx context.Context, req *model.CleanupRequest) (*model.CleanupResponse, error) {
	if !req.IncludeExpired {
		return &model.CleanupResponse{
			DeletedCount: 0,
			Message:      "cleanup skipped: includeExpired not set",
		}, nil
	}

	cutoff := s.nowFunc()
	if req.OlderThanDays != nil && *req.OlderThanDays > 0 {
		cutoff = cutoff.AddDate(0, 0, -*req.OlderThanDays)
	}

	count, err := s.store.DeleteExpired(ctx, cutoff)
	if err != nil {
		return nil, err
	}
	if s.metrics != nil {
		s.metrics.PurgedTotal.Add(float64(count))
	}
	s.logger.InfoContext(ctx, "cleanup completed", slog.Int64("deleted", count))
	return &model.CleanupResponse{
		DeletedCount: count,
		Message:      fmt.Sprintf("cleanup completed, removed %d expired mappings", count),
	}, nil
}

func (s *Shortener) shortURL(code string) string {
	return s.baseURL + "/" + code
}

func (s *Shortener) infoView(m *model.Mapping, now time.Time) model.InfoResponse {
	return model.InfoResponse{
		ShortCode:   m.ShortCode,
		OriginalURL: m.OriginalURL,
		CreatedAt:   m.CreatedAt.Format(time.RFC3339),
		ExpiresAt:   m.ExpiresAt.Format(time.RFC3339),
		ClickCount:  m.ClickCount,
		IsActive:    s.expiry.IsLive(m, now),
	}
}

// validateURL checks for an absolute http(s) URL and returns its host.
func validateURL(raw string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", errors.New("scheme must be http or https")
	}
	if u.Host == "" {
		return "", errors.New("missing host")
	}
	return u.Hostname(), nil
}

// Ensure Shortener implements ShortenerInterface at compile time
var _ ShortenerInterface = (*Shortener)(nil)
