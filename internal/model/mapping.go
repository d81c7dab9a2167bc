package model

import (
	"time"

	"github.com/google/uuid"
)

// Mapping is the persisted short-code → original-URL record.
// ClickCount is the only field that changes after creation.
type Mapping struct {
	ID          uuid.UUID `json:"id"`
	ShortCode   string    `json:"short_code"`
	OriginalURL string    `json:"original_url"`
	Domain      string    `json:"domain"`
	CreatedAt   time.Time `json:"created_at"`
	ExpiresAt   time.Time `json:"expires_at"`
	ClickCount  int64     `json:"click_count"`
}

// ShortenRequest is the request body for creating a short URL.
type ShortenRequest struct {
	URL           string `json:"url" binding:"required"`
	ExpiresInDays *int   `json:"expiresInDays,omitempty"`
}

// ShortenResponse is returned on successful creation.
type ShortenResponse struct {
	ShortURL    string `json:"shortUrl"`
	ShortCode   string `json:"shortCode"`
	OriginalURL string `json:"originalUrl"`
	CreatedAt   string `json:"createdAt"`
	ExpiresAt   string `json:"expiresAt"`
}

// InfoResponse is the full metadata view of a mapping. IsActive is
// computed from the expiry timestamp at read time, never stored.
type InfoResponse struct {
	ShortCode   string `json:"shortCode"`
	OriginalURL string `json:"originalUrl"`
	CreatedAt   string `json:"createdAt"`
	ExpiresAt   string `json:"expiresAt"`
	ClickCount  int64  `json:"clickCount"`
	IsActive    bool   `json:"isActive"`
}

// StatsResponse aggregates counts over all mappings plus a bounded
// recent-activity view.
type StatsResponse struct {
	TotalURLs   int64          `json:"totalUrls"`
	TotalClicks int64          `json:"totalClicks"`
	ActiveURLs  int64          `json:"activeUrls"`
	ExpiredURLs int64          `json:"expiredUrls"`
	RecentURLs  []InfoResponse `json:"recentUrls"`
}

// CleanupRequest controls the expired-mapping purge. Deletion only
// happens when IncludeExpired is set, so a bare request is always safe.
type CleanupRequest struct {
	OlderThanDays  *int `json:"olderThanDays,omitempty"`
	IncludeExpired bool `json:"includeExpired,omitempty"`
}

// CleanupResponse reports the outcome of a purge.
type CleanupResponse struct {
	DeletedCount int64  `json:"deletedCount"`
	Message      string `json:"message"`
}

// ErrorResponse represents an API error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}
