package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/maypok86/otter/v2"

	"cnb-rate-service/internal/domain/model"
	"cnb-rate-service/internal/domain/ports"
	"cnb-rate-service/pkg/logger"
)

var _ ports.RateCache = (*MemoryCache)(nil)

// MemoryCache is an in-process W-TinyLFU cache backed by otter. Entries are
// dropped once their StaleUntil passes.
type MemoryCache struct {
	cache *otter.Cache[string, *model.CachedRates]
	log   *logger.Logger
	now   func() time.Time
}

// NewMemoryCache creates a cache holding at most maxSize entries. maxTTL
// bounds the physical lifetime of any entry.
func NewMemoryCache(maxSize int, maxTTL time.Duration, log *logger.Logger) (*MemoryCache, error) {
	c, err := otter.New[string, *model.CachedRates](&otter.Options[string, *model.CachedRates]{
		MaximumSize:      maxSize,
		ExpiryCalculator: otter.ExpiryWriting[string, *model.CachedRates](maxTTL),
	})
	if err != nil {
		return nil, fmt.Errorf("create memory cache: %w", err)
	}
	return &MemoryCache{cache: c, log: log, now: time.Now}, nil
}

func (c *MemoryCache) Get(_ context.Context, key string) (*model.CachedRates, bool) {
	entry, ok := c.cache.GetIfPresent(key)
	if !ok {
		c.log.Debug("Cache miss", "key", key)
		return nil, false
	}
	if !entry.IsUsable(c.now()) {
		c.cache.Invalidate(key)
		c.log.Debug("Cache entry expired", "key", key)
		return nil, false
	}
	c.log.Debug("Cache hit", "key", key)
	return entry, true
}

func (c *MemoryCache) Set(_ context.Context, key string, entry *model.CachedRates) error {
	if entry == nil || entry.Rates == nil {
		return ErrInvalidEntry
	}
	if entry.TTL(c.now()) <= 0 {
		c.cache.Invalidate(key)
		return nil
	}
	c.cache.Set(key, entry)
	c.log.Debug("Cache set", "key", key, "fresh_until", entry.FreshUntil, "stale_until", entry.StaleUntil)
	return nil
}

func (c *MemoryCache) Delete(_ context.Context, key string) error {
	c.cache.Invalidate(key)
	return nil
}

func (c *MemoryCache) Purge(_ context.Context) error {
	c.cache.InvalidateAll()
	c.log.Info("Purged memory cache")
	return nil
}
