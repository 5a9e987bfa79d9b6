package ports

import (
	"context"
	"time"

	"cnb-rate-service/internal/domain/model"
)

type RateRepository interface {
	// FetchDailyRates returns the fixing for date, or the latest one when
	// date is zero.
	FetchDailyRates(ctx context.Context, date time.Time) (*model.RateSet, error)
}
