package cache

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cnb-rate-service/internal/domain/model"
	"cnb-rate-service/pkg/logger"
)

func testRates() *model.RateSet {
	validFor := time.Date(2025, time.January, 2, 0, 0, 0, 0, time.UTC)
	return &model.RateSet{
		TargetCurrency: model.CZK,
		ValidFor:       &validFor,
		Rates: []model.ExchangeRate{
			{SourceCurrency: model.EUR, TargetCurrency: model.CZK, Rate: decimal.RequireFromString("25.185")},
			{SourceCurrency: model.USD, TargetCurrency: model.CZK, Rate: decimal.RequireFromString("24.237")},
		},
		FetchedAt: time.Date(2025, time.January, 2, 14, 35, 0, 0, time.UTC),
	}
}

func TestMemoryCache_SetGet(t *testing.T) {
	c, err := NewMemoryCache(100, 24*time.Hour, logger.NewNop())
	require.NoError(t, err)

	now := time.Date(2025, time.January, 2, 13, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }
	ctx := context.Background()

	_, found := c.Get(ctx, "rates:latest")
	assert.False(t, found)

	entry := model.NewCachedRates(testRates(), now, time.Minute, 10*time.Minute)
	require.NoError(t, c.Set(ctx, "rates:latest", entry))

	got, found := c.Get(ctx, "rates:latest")
	require.True(t, found)
	assert.Equal(t, entry, got)

	// Past FreshUntil the entry is still returned for fail-safe use.
	now = now.Add(5 * time.Minute)
	got, found = c.Get(ctx, "rates:latest")
	require.True(t, found)
	assert.False(t, got.IsFresh(now))

	now = now.Add(5 * time.Minute)
	_, found = c.Get(ctx, "rates:latest")
	assert.False(t, found)
}

func TestMemoryCache_SetRejectsEmptyEntry(t *testing.T) {
	c, err := NewMemoryCache(10, time.Hour, logger.NewNop())
	require.NoError(t, err)

	assert.ErrorIs(t, c.Set(context.Background(), "k", nil), ErrInvalidEntry)
	assert.ErrorIs(t, c.Set(context.Background(), "k", &model.CachedRates{}), ErrInvalidEntry)
}

func TestMemoryCache_SetExpiredEntryIsDropped(t *testing.T) {
	c, err := NewMemoryCache(10, time.Hour, logger.NewNop())
	require.NoError(t, err)
	ctx := context.Background()

	now := time.Now()
	stale := model.NewCachedRates(testRates(), now.Add(-time.Hour), time.Minute, time.Minute)
	require.NoError(t, c.Set(ctx, "k", stale))

	_, found := c.Get(ctx, "k")
	assert.False(t, found)
}

func TestMemoryCache_DeleteAndPurge(t *testing.T) {
	c, err := NewMemoryCache(10, time.Hour, logger.NewNop())
	require.NoError(t, err)
	ctx := context.Background()
	now := time.Now()

	require.NoError(t, c.Set(ctx, "a", model.NewCachedRates(testRates(), now, time.Hour, time.Hour)))
	require.NoError(t, c.Set(ctx, "b", model.NewCachedRates(testRates(), now, time.Hour, time.Hour)))

	require.NoError(t, c.Delete(ctx, "a"))
	_, found := c.Get(ctx, "a")
	assert.False(t, found)
	_, found = c.Get(ctx, "b")
	assert.True(t, found)

	require.NoError(t, c.Purge(ctx))
	_, found = c.Get(ctx, "b")
	assert.False(t, found)
}
