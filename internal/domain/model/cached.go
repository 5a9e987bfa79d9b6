package model

import "time"

// CachedRates is a rate set together with the freshness decided when it was
// stored. After FreshUntil it may only be served as a fail-safe fallback,
// after StaleUntil not at all.
type CachedRates struct {
	Rates      *RateSet  `json:"rates"`
	StoredAt   time.Time `json:"storedAt"`
	FreshUntil time.Time `json:"freshUntil"`
	StaleUntil time.Time `json:"staleUntil"`
}

// NewCachedRates stamps rates stored at now. failSafe shorter than fresh
// is treated as fresh.
func NewCachedRates(rates *RateSet, now time.Time, fresh, failSafe time.Duration) *CachedRates {
	if failSafe < fresh {
		failSafe = fresh
	}
	return &CachedRates{
		Rates:      rates,
		StoredAt:   now,
		FreshUntil: now.Add(fresh),
		StaleUntil: now.Add(failSafe),
	}
}

// IsFresh reports whether the entry may be served without asking upstream.
func (c *CachedRates) IsFresh(now time.Time) bool {
	return now.Before(c.FreshUntil)
}

// IsUsable reports whether the entry may still be served as a fallback.
func (c *CachedRates) IsUsable(now time.Time) bool {
	return now.Before(c.StaleUntil)
}

// TTL is the remaining physical lifetime of the entry.
func (c *CachedRates) TTL(now time.Time) time.Duration {
	return c.StaleUntil.Sub(now)
}

// MaxAge is the freshness left at now, zero once the entry is stale. It is
// what a downstream HTTP cache may be told to keep the response for.
func (c *CachedRates) MaxAge(now time.Time) time.Duration {
	if d := c.FreshUntil.Sub(now); d > 0 {
		return d
	}
	return 0
}

// WithRates returns a copy of the entry carrying rates instead.
func (c *CachedRates) WithRates(rates *RateSet) *CachedRates {
	out := *c
	out.Rates = rates
	return &out
}
