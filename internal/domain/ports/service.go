package ports

import (
	"context"
	"time"

	"cnb-rate-service/internal/domain/model"
	"cnb-rate-service/internal/policy"
)

// ExchangeService returns rate sets wrapped in the cache entry they were
// served from, so callers can see how long the data stays fresh.
type ExchangeService interface {
	GetLatestRates(ctx context.Context, sources []model.Currency) (*model.CachedRates, error)
	GetRatesForDate(ctx context.Context, date time.Time, sources []model.Currency) (*model.CachedRates, error)
	ConvertCurrency(ctx context.Context, request model.ConversionRequest) (*model.ConversionResult, error)
	CurrentPolicy() (policy.CachePolicy, error)
	RefreshRates(ctx context.Context) error
}
