// Package policy decides how long a cached rate set stays valid, following
// the publisher's daily release schedule.
package policy

import (
	"fmt"
	"sync/atomic"
	"time"
)

// Band is the part of the publication cycle an instant falls into.
type Band int

const (
	BandWeekdayStable Band = iota
	BandPreWindow
	BandPublishWindow
	BandWeekendStable
	// BandHistorical marks a past fixing that can no longer change. The
	// calculator never returns it.
	BandHistorical
)

// String is the snake_case name used in logs, metrics and the HTTP API.
func (b Band) String() string {
	switch b {
	case BandWeekdayStable:
		return "weekday_stable"
	case BandPreWindow:
		return "pre_window"
	case BandPublishWindow:
		return "publish_window"
	case BandWeekendStable:
		return "weekend_stable"
	case BandHistorical:
		return "historical"
	default:
		return fmt.Sprintf("band(%d)", int(b))
	}
}

// MarshalText encodes the band by name.
func (b Band) MarshalText() ([]byte, error) {
	return []byte(b.String()), nil
}

// CachePolicy is how long a freshly fetched rate set may be served.
// FailSafeMaxDuration bounds how long it may still be served as a stale
// fallback when the upstream fetch fails.
type CachePolicy struct {
	Band                Band
	Duration            time.Duration
	FailSafeMaxDuration time.Duration
}

// WithFailSafe returns a copy of p with a different fail-safe duration.
func (p CachePolicy) WithFailSafe(d time.Duration) CachePolicy {
	p.FailSafeMaxDuration = d
	return p
}

// Lifetime is how long a cache may physically keep the entry.
func (p CachePolicy) Lifetime() time.Duration {
	if p.FailSafeMaxDuration > p.Duration {
		return p.FailSafeMaxDuration
	}
	return p.Duration
}

// Rule is one classification step. Every rule's predicate is complete on
// its own, so for any instant exactly one rule matches.
type Rule struct {
	Band  Band
	TTL   time.Duration
	match func(local time.Time) bool
}

// Matches reports whether local, already in publisher time, belongs to the rule.
func (r Rule) Matches(local time.Time) bool {
	return r.match(local)
}

func isWeekend(local time.Time) bool {
	switch local.Weekday() {
	case time.Saturday, time.Sunday:
		return true
	default:
		return false
	}
}

func buildRules(s Schedule) []Rule {
	inPreWindow := func(local time.Time) bool {
		tod := TimeOfDay(local)
		return tod >= s.PreWindowStart && tod < s.PublishWindowStart
	}
	inPublishWindow := func(local time.Time) bool {
		tod := TimeOfDay(local)
		return tod >= s.PublishWindowStart && tod <= s.PublishWindowEnd
	}

	return []Rule{
		{
			Band:  BandWeekendStable,
			TTL:   s.WeekendTTL,
			match: isWeekend,
		},
		{
			Band: BandPreWindow,
			TTL:  s.PreWindowTTL,
			match: func(local time.Time) bool {
				return !isWeekend(local) && inPreWindow(local)
			},
		},
		{
			Band: BandPublishWindow,
			TTL:  s.PublishWindowTTL,
			match: func(local time.Time) bool {
				return !isWeekend(local) && inPublishWindow(local)
			},
		},
		{
			Band: BandWeekdayStable,
			TTL:  s.StableTTL,
			match: func(local time.Time) bool {
				return !isWeekend(local) && !inPreWindow(local) && !inPublishWindow(local)
			},
		},
	}
}

// Calculator maps an instant to a CachePolicy. It holds no mutable state
// apart from the resolved location and is safe for concurrent use.
type Calculator struct {
	schedule Schedule
	rules    []Rule
	loc      atomic.Pointer[time.Location]
	now      func() time.Time
}

type Option func(*Calculator)

// WithClock replaces time.Now for Current.
func WithClock(now func() time.Time) Option {
	return func(c *Calculator) {
		c.now = now
	}
}

// NewCalculator validates the schedule and resolves its timezone once, so a
// misconfigured host fails at startup instead of on the first request.
func NewCalculator(schedule Schedule, opts ...Option) (*Calculator, error) {
	if err := schedule.Validate(); err != nil {
		return nil, err
	}
	loc, err := ResolveLocation(schedule.Timezone)
	if err != nil {
		return nil, err
	}

	c := &Calculator{
		schedule: schedule,
		rules:    buildRules(schedule),
		now:      time.Now,
	}
	c.loc.Store(loc)
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// ComputePolicy returns the policy for the given instant. The only possible
// error is a *ConfigurationError for a calculator without a resolved zone.
func (c *Calculator) ComputePolicy(now time.Time) (CachePolicy, error) {
	rule, err := c.classify(now)
	if err != nil {
		return CachePolicy{}, err
	}

	failSafe := rule.TTL
	if c.schedule.FailSafeMaxDuration > 0 {
		failSafe = c.schedule.FailSafeMaxDuration
	}
	return CachePolicy{
		Band:                rule.Band,
		Duration:            rule.TTL,
		FailSafeMaxDuration: failSafe,
	}, nil
}

// Current is ComputePolicy for the calculator's clock.
func (c *Calculator) Current() (CachePolicy, error) {
	now := time.Now
	if c.now != nil {
		now = c.now
	}
	return c.ComputePolicy(now())
}

// Classify returns only the band for the given instant.
func (c *Calculator) Classify(now time.Time) (Band, error) {
	rule, err := c.classify(now)
	if err != nil {
		return 0, err
	}
	return rule.Band, nil
}

func (c *Calculator) classify(now time.Time) (Rule, error) {
	loc := c.loc.Load()
	if loc == nil || len(c.rules) == 0 {
		return Rule{}, &ConfigurationError{Timezone: c.schedule.Timezone, Err: ErrUnknownTimezone}
	}

	local := now.In(loc)
	for _, r := range c.rules {
		if r.Matches(local) {
			return r, nil
		}
	}
	return Rule{}, fmt.Errorf("%w: no band matches %s", ErrInvalidSchedule, local.Format(time.RFC3339))
}

// Revalidate resolves the timezone again, e.g. after the host's tz database
// was updated. On failure the previously resolved location stays in use.
func (c *Calculator) Revalidate() error {
	loc, err := ResolveLocation(c.schedule.Timezone)
	if err != nil {
		return err
	}
	c.loc.Store(loc)
	return nil
}

// Location returns the resolved publisher timezone, or nil.
func (c *Calculator) Location() *time.Location {
	return c.loc.Load()
}

// Schedule returns the schedule the calculator was built with.
func (c *Calculator) Schedule() Schedule {
	return c.schedule
}

// Rules returns the classification rules in evaluation order.
func (c *Calculator) Rules() []Rule {
	out := make([]Rule, len(c.rules))
	copy(out, c.rules)
	return out
}
