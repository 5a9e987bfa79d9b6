package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/singleflight"

	"cnb-rate-service/internal/domain/model"
	"cnb-rate-service/internal/domain/ports"
	"cnb-rate-service/internal/metrics"
	"cnb-rate-service/internal/policy"
	"cnb-rate-service/pkg/logger"
	"cnb-rate-service/pkg/utils"
)

var (
	ErrInvalidCurrency    = errors.New("invalid currency")
	ErrDateOutOfRange     = errors.New("date is outside allowed range")
	ErrRateNotFound       = errors.New("exchange rate not found")
	ErrExternalAPIFailure = errors.New("external API failure")
	ErrInvalidAmount      = errors.New("invalid amount")
	ErrCachePolicy        = errors.New("cache policy unavailable")
)

const latestKey = "rates:latest"

const (
	defaultHistoryDays   = 90
	defaultHistoricalTTL = 24 * time.Hour
	defaultFetchTimeout  = 30 * time.Second
)

type ExchangeService struct {
	repository ports.RateRepository
	cache      ports.RateCache
	policy     ports.CachePolicyProvider
	log        *logger.Logger
	metrics    *metrics.Metrics
	group      singleflight.Group
	now        func() time.Time

	historyDays   int
	historicalTTL time.Duration
	fetchTimeout  time.Duration
}

type Option func(*ExchangeService)

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *ExchangeService) {
		s.metrics = m
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *ExchangeService) {
		s.now = now
	}
}

// WithHistory sets how far back dated lookups may go and how long a past
// fixing, which never changes, is cached.
func WithHistory(days int, ttl time.Duration) Option {
	return func(s *ExchangeService) {
		if days > 0 {
			s.historyDays = days
		}
		if ttl > 0 {
			s.historicalTTL = ttl
		}
	}
}

// WithFetchTimeout bounds a shared upstream fetch. The fetch outlives the
// request that started it, so it needs its own deadline.
func WithFetchTimeout(d time.Duration) Option {
	return func(s *ExchangeService) {
		if d > 0 {
			s.fetchTimeout = d
		}
	}
}

func NewExchangeService(repository ports.RateRepository, cache ports.RateCache, policyProvider ports.CachePolicyProvider, log *logger.Logger, opts ...Option) *ExchangeService {
	s := &ExchangeService{
		repository:    repository,
		cache:         cache,
		policy:        policyProvider,
		log:           log,
		now:           time.Now,
		historyDays:   defaultHistoryDays,
		historicalTTL: defaultHistoricalTTL,
		fetchTimeout:  defaultFetchTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CurrentPolicy is the cache policy in force right now.
func (s *ExchangeService) CurrentPolicy() (policy.CachePolicy, error) {
	return s.computePolicy(s.now())
}

func (s *ExchangeService) computePolicy(now time.Time) (policy.CachePolicy, error) {
	p, err := s.policy.ComputePolicy(now)
	if err != nil {
		s.log.Error("Failed to compute cache policy", "error", err)
		return policy.CachePolicy{}, fmt.Errorf("%w: %w", ErrCachePolicy, err)
	}
	if s.metrics != nil {
		s.metrics.PolicyDecisionsTotal.WithLabelValues(p.Band.String()).Inc()
		s.metrics.PolicyDurationSeconds.Set(p.Duration.Seconds())
	}
	return p, nil
}

// GetLatestRates returns the latest fixing together with the cache entry
// metadata it was served from.
func (s *ExchangeService) GetLatestRates(ctx context.Context, sources []model.Currency) (*model.CachedRates, error) {
	if err := validateSources(sources); err != nil {
		return nil, err
	}

	now := s.now()
	p, err := s.computePolicy(now)
	if err != nil {
		return nil, err
	}

	entry, err := s.load(ctx, latestKey, time.Time{}, p, now)
	if err != nil {
		return nil, err
	}
	return entry.WithRates(entry.Rates.Filter(sources)), nil
}

// GetRatesForDate returns the fixing for a calendar date. Dates are read in
// the publisher's calendar. Today follows the publication-aware policy;
// earlier days are final and cached for the historical TTL.
func (s *ExchangeService) GetRatesForDate(ctx context.Context, date time.Time, sources []model.Currency) (*model.CachedRates, error) {
	if err := validateSources(sources); err != nil {
		return nil, err
	}

	now := s.now()
	today := s.publisherToday(now)
	if !utils.ValidateDate(date, today, s.historyDays) {
		return nil, fmt.Errorf("%w: %s is not within the last %d days", ErrDateOutOfRange, utils.FormatDate(date), s.historyDays)
	}

	day := utils.StartOfDay(date)
	var p policy.CachePolicy
	if day.Equal(today) {
		var err error
		if p, err = s.computePolicy(now); err != nil {
			return nil, err
		}
	} else {
		p = policy.CachePolicy{Band: policy.BandHistorical, Duration: s.historicalTTL, FailSafeMaxDuration: s.historicalTTL}
	}

	entry, err := s.load(ctx, "rates:"+utils.FormatDate(day), day, p, now)
	if err != nil {
		return nil, err
	}
	return entry.WithRates(entry.Rates.Filter(sources)), nil
}

// publisherToday is the current date in the publisher's timezone. UTC is
// used only when the zone is unresolved, in which case computing today's
// policy fails anyway.
func (s *ExchangeService) publisherToday(now time.Time) time.Time {
	loc := s.policy.Location()
	if loc == nil {
		loc = time.UTC
	}
	return utils.DateIn(now, loc)
}

// load serves a fresh cached entry, or fetches one with at most one upstream
// call in flight per key. When the fetch fails a stale entry still inside
// its fail-safe window is served instead.
func (s *ExchangeService) load(ctx context.Context, key string, date time.Time, p policy.CachePolicy, now time.Time) (*model.CachedRates, error) {
	cached, found := s.cache.Get(ctx, key)
	if found && cached.IsFresh(now) {
		s.recordLookup("fresh")
		s.log.Debug("Exchange rates found in cache", "key", key)
		return cached, nil
	}
	if found {
		s.recordLookup("stale")
	} else {
		s.recordLookup("miss")
	}

	entry, err := s.fetchShared(ctx, key, date, p, now)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if found && cached.IsUsable(now) {
			s.log.Warn("Serving stale exchange rates after upstream failure",
				"key", key, "error", err, "stale_until", cached.StaleUntil)
			return cached, nil
		}
		return nil, fmt.Errorf("%w: %v", ErrExternalAPIFailure, err)
	}
	return entry, nil
}

// fetchShared joins or starts the upstream fetch for key. The fetch runs
// detached from ctx so one caller giving up does not fail the others; each
// caller still stops waiting when its own ctx is done.
func (s *ExchangeService) fetchShared(ctx context.Context, key string, date time.Time, p policy.CachePolicy, now time.Time) (*model.CachedRates, error) {
	ch := s.group.DoChan(key, func() (interface{}, error) {
		fetchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.fetchTimeout)
		defer cancel()
		return s.fetch(fetchCtx, key, date, p, now)
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		if res.Shared {
			s.log.Debug("Joined in-flight upstream fetch", "key", key)
		}
		return res.Val.(*model.CachedRates), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (s *ExchangeService) fetch(ctx context.Context, key string, date time.Time, p policy.CachePolicy, now time.Time) (*model.CachedRates, error) {
	s.log.Info("Fetching exchange rates from repository", "key", key, "band", p.Band.String(), "ttl", p.Duration)

	start := time.Now()
	rates, err := s.repository.FetchDailyRates(ctx, date)
	if s.metrics != nil {
		s.metrics.UpstreamFetchDuration.Observe(time.Since(start).Seconds())
	}
	if err != nil {
		s.recordFetch("error")
		s.log.Error("Failed to fetch exchange rates", "error", err, "key", key)
		return nil, err
	}
	s.recordFetch("success")

	entry := model.NewCachedRates(rates, now, p.Duration, p.FailSafeMaxDuration)
	if err := s.cache.Set(ctx, key, entry); err != nil {
		s.log.Error("Failed to cache exchange rates", "error", err, "key", key)
	}
	return entry, nil
}

// RefreshRates fetches the latest fixing regardless of what is cached.
func (s *ExchangeService) RefreshRates(ctx context.Context) error {
	now := s.now()
	p, err := s.computePolicy(now)
	if err != nil {
		return err
	}

	if _, err := s.fetchShared(ctx, latestKey, time.Time{}, p, now); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("%w: %v", ErrExternalAPIFailure, err)
	}
	return nil
}

// ConvertCurrency converts through CZK, the currency every CNB rate is
// quoted in.
func (s *ExchangeService) ConvertCurrency(ctx context.Context, request model.ConversionRequest) (*model.ConversionResult, error) {
	if !request.FromCurrency.IsSupported() || !request.ToCurrency.IsSupported() {
		return nil, ErrInvalidCurrency
	}

	if !request.Amount.IsPositive() {
		return nil, ErrInvalidAmount
	}

	var entry *model.CachedRates
	var err error
	if !request.Date.IsZero() {
		entry, err = s.GetRatesForDate(ctx, request.Date, nil)
	} else {
		entry, err = s.GetLatestRates(ctx, nil)
	}
	if err != nil {
		return nil, err
	}
	rates := entry.Rates

	fromRate, err := czkPerUnit(rates, request.FromCurrency)
	if err != nil {
		return nil, err
	}
	toRate, err := czkPerUnit(rates, request.ToCurrency)
	if err != nil {
		return nil, err
	}

	return &model.ConversionResult{
		FromCurrency: request.FromCurrency,
		ToCurrency:   request.ToCurrency,
		FromAmount:   request.Amount,
		ToAmount:     request.Amount.Mul(fromRate).Div(toRate),
		Rate:         fromRate.Div(toRate),
		ValidFor:     rates.ValidFor,
	}, nil
}

func czkPerUnit(rates *model.RateSet, c model.Currency) (decimal.Decimal, error) {
	if c == rates.TargetCurrency {
		return decimal.NewFromInt(1), nil
	}
	r, ok := rates.Find(c)
	if !ok || !r.Rate.IsPositive() {
		return decimal.Zero, fmt.Errorf("%w: %s", ErrRateNotFound, c)
	}
	return r.Rate, nil
}

func validateSources(sources []model.Currency) error {
	if unknown, ok := lo.Find(sources, func(c model.Currency) bool { return !c.IsSupported() }); ok {
		return fmt.Errorf("%w: %s", ErrInvalidCurrency, unknown)
	}
	return nil
}

func (s *ExchangeService) recordLookup(result string) {
	if s.metrics != nil {
		s.metrics.CacheLookupsTotal.WithLabelValues(result).Inc()
	}
}

func (s *ExchangeService) recordFetch(outcome string) {
	if s.metrics != nil {
		s.metrics.UpstreamFetchesTotal.WithLabelValues(outcome).Inc()
	}
}
