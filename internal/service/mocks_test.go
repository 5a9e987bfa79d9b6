package service

import (
	"context"
	"sync"
	"time"

	"cnb-rate-service/internal/domain/model"
	"cnb-rate-service/internal/policy"
)

type MockRateCache struct {
	mu      sync.Mutex
	entries map[string]*model.CachedRates
	now     func() time.Time
	SetErr  error
}

func newMockRateCache(now func() time.Time) *MockRateCache {
	return &MockRateCache{entries: map[string]*model.CachedRates{}, now: now}
}

func (m *MockRateCache) Get(ctx context.Context, key string) (*model.CachedRates, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[key]
	if !ok || !e.IsUsable(m.now()) {
		return nil, false
	}
	return e, true
}

func (m *MockRateCache) Set(ctx context.Context, key string, entry *model.CachedRates) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.SetErr != nil {
		return m.SetErr
	}
	m.entries[key] = entry
	return nil
}

func (m *MockRateCache) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, key)
	return nil
}

func (m *MockRateCache) Purge(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = map[string]*model.CachedRates{}
	return nil
}

func (m *MockRateCache) entry(key string) *model.CachedRates {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.entries[key]
}

type MockRateRepository struct {
	FetchDailyRatesFunc func(ctx context.Context, date time.Time) (*model.RateSet, error)
}

func (m *MockRateRepository) FetchDailyRates(ctx context.Context, date time.Time) (*model.RateSet, error) {
	return m.FetchDailyRatesFunc(ctx, date)
}

type MockPolicy struct {
	ComputePolicyFunc func(now time.Time) (policy.CachePolicy, error)
	Loc               *time.Location
}

func (m *MockPolicy) ComputePolicy(now time.Time) (policy.CachePolicy, error) {
	return m.ComputePolicyFunc(now)
}

func (m *MockPolicy) Location() *time.Location {
	return m.Loc
}

func fixedPolicy(band policy.Band, d time.Duration) *MockPolicy {
	return &MockPolicy{
		ComputePolicyFunc: func(time.Time) (policy.CachePolicy, error) {
			return policy.CachePolicy{Band: band, Duration: d, FailSafeMaxDuration: d}, nil
		},
	}
}
