package service

import (
	"time"

	"github.com/urlmint/urlmint/internal/model"
)

// ExpiryPolicy decides the lifetime of new mappings and whether an
// existing mapping is currently live. Liveness is always computed from
// the expiry timestamp, never stored as a flag that could drift.
type ExpiryPolicy struct {
	defaultDays int
	maxDays     int
}

// NewExpiryPolicy creates a policy with a default and an upper bound,
// both in days.
func NewExpiryPolicy(defaultDays, maxDays int) *ExpiryPolicy {
	if defaultDays <= 0 {
		defaultDays = 7
	}
	if maxDays < defaultDays {
		maxDays = defaultDays
	}
	return &ExpiryPolicy{defaultDays: defaultDays, maxDays: maxDays}
}

// DefaultLifetime returns the lifetime applied when a request does not
// ask for one.
func (p *ExpiryPolicy) DefaultLifetime() time.Duration {
	return time.Duration(p.defaultDays) * 24 * time.Hour
}

// ResolveLifetime returns the lifetime for a new mapping. A requested
// value inside [0, maxDays] wins; anything else falls back to the
// default. Zero is honored and produces a mapping that is expired the
// moment it is created.
func (p *ExpiryPolicy) ResolveLifetime(requestedDays *int) time.Duration {
	if requestedDays == nil {
		return p.DefaultLifetime()
	}
	d := *requestedDays
	if d < 0 || d > p.maxDays {
		return p.DefaultLifetime()
	}
	return time.Duration(d) * 24 * time.Hour
}

// IsLive reports whether the mapping is resolvable at the given time.
func (p *ExpiryPolicy) IsLive(m *model.Mapping, now time.Time) bool {
	return now.Before(m.ExpiresAt)
}
