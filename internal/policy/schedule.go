package policy

import (
	"fmt"
	"time"
)

const PragueTimezone = "Europe/Prague"

// Schedule describes when the publisher releases new data and how long a
// cached rate set stays valid around that moment.
//
// On a business day the clock is split by three boundaries:
//
//	[PreWindowStart, PublishWindowStart)  -> PreWindowTTL
//	[PublishWindowStart, PublishWindowEnd] -> PublishWindowTTL
//	anything else                          -> StableTTL
//
// Saturdays and Sundays always get WeekendTTL.
type Schedule struct {
	Timezone string `yaml:"timezone"`

	PreWindowStart     ClockTime `yaml:"pre_window_start"`
	PublishWindowStart ClockTime `yaml:"publish_window_start"`
	PublishWindowEnd   ClockTime `yaml:"publish_window_end"`

	PreWindowTTL     time.Duration `yaml:"pre_window_ttl"`
	PublishWindowTTL time.Duration `yaml:"publish_window_ttl"`
	StableTTL        time.Duration `yaml:"stable_ttl"`
	WeekendTTL       time.Duration `yaml:"weekend_ttl"`

	// FailSafeMaxDuration overrides the fail-safe duration of every policy.
	// Zero mirrors the primary duration.
	FailSafeMaxDuration time.Duration `yaml:"fail_safe_max_duration"`
}

// DefaultSchedule is the Czech National Bank publication schedule. The CNB
// publishes its daily fixing on business days shortly after 14:30 Prague time.
func DefaultSchedule() Schedule {
	return Schedule{
		Timezone:           PragueTimezone,
		PreWindowStart:     Clock(13, 30, 0),
		PublishWindowStart: Clock(14, 30, 0),
		PublishWindowEnd:   Clock(15, 30, 0),
		PreWindowTTL:       time.Minute,
		PublishWindowTTL:   5 * time.Minute,
		StableTTL:          time.Hour,
		WeekendTTL:         14*time.Hour + 30*time.Minute,
	}
}

// Validate checks boundary ordering and duration positivity. It does not
// resolve the timezone; see ResolveLocation.
func (s Schedule) Validate() error {
	if s.Timezone == "" {
		return fmt.Errorf("%w: timezone is required", ErrInvalidSchedule)
	}

	const day = ClockTime(24 * time.Hour)
	boundaries := []struct {
		name string
		at   ClockTime
	}{
		{"pre_window_start", s.PreWindowStart},
		{"publish_window_start", s.PublishWindowStart},
		{"publish_window_end", s.PublishWindowEnd},
	}
	for _, b := range boundaries {
		if b.at < 0 || b.at >= day {
			return fmt.Errorf("%w: %s %s is outside of a day", ErrInvalidSchedule, b.name, time.Duration(b.at))
		}
	}
	if s.PreWindowStart >= s.PublishWindowStart {
		return fmt.Errorf("%w: pre-window start %s must be before publish window start %s",
			ErrInvalidSchedule, s.PreWindowStart, s.PublishWindowStart)
	}
	if s.PublishWindowStart > s.PublishWindowEnd {
		return fmt.Errorf("%w: publish window start %s must not be after its end %s",
			ErrInvalidSchedule, s.PublishWindowStart, s.PublishWindowEnd)
	}

	ttls := []struct {
		name string
		ttl  time.Duration
	}{
		{"pre_window_ttl", s.PreWindowTTL},
		{"publish_window_ttl", s.PublishWindowTTL},
		{"stable_ttl", s.StableTTL},
		{"weekend_ttl", s.WeekendTTL},
	}
	for _, t := range ttls {
		if t.ttl <= 0 {
			return fmt.Errorf("%w: %s must be positive, got %s", ErrInvalidSchedule, t.name, t.ttl)
		}
	}
	if s.FailSafeMaxDuration < 0 {
		return fmt.Errorf("%w: fail_safe_max_duration must not be negative", ErrInvalidSchedule)
	}
	return nil
}
