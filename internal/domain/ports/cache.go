package ports

import (
	"context"

	"cnb-rate-service/internal/domain/model"
)

// RateCache stores rate sets until their StaleUntil. Freshness is decided
// by the caller, so Get also returns entries that are past FreshUntil.
type RateCache interface {
	Get(ctx context.Context, key string) (*model.CachedRates, bool)
	Set(ctx context.Context, key string, entry *model.CachedRates) error
	Delete(ctx context.Context, key string) error
	Purge(ctx context.Context) error
}
