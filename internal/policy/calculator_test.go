package policy

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustPrague(t *testing.T) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation(PragueTimezone)
	if err != nil {
		t.Skipf("tz database not available: %v", err)
	}
	return loc
}

func newDefaultCalculator(t *testing.T) *Calculator {
	t.Helper()
	mustPrague(t)
	c, err := NewCalculator(DefaultSchedule())
	require.NoError(t, err)
	return c
}

func TestCalculator_BoundaryExactness(t *testing.T) {
	c := newDefaultCalculator(t)
	prague := mustPrague(t)

	// 2025-01-08 is a Wednesday, 2025-01-11 a Saturday.
	local := func(day, hour, min, sec, nsec int) time.Time {
		return time.Date(2025, time.January, day, hour, min, sec, nsec, prague).UTC()
	}

	testCases := []struct {
		name     string
		at       time.Time
		band     Band
		duration time.Duration
	}{
		{"just before pre-window", local(8, 13, 29, 59, 0), BandWeekdayStable, time.Hour},
		{"pre-window opens", local(8, 13, 30, 0, 0), BandPreWindow, time.Minute},
		{"last second of pre-window", local(8, 14, 29, 59, 0), BandPreWindow, time.Minute},
		{"last nanosecond of pre-window", local(8, 14, 29, 59, 999999999), BandPreWindow, time.Minute},
		{"publish window opens", local(8, 14, 30, 0, 0), BandPublishWindow, 5 * time.Minute},
		{"publish window end is inclusive", local(8, 15, 30, 0, 0), BandPublishWindow, 5 * time.Minute},
		{"just after publish window", local(8, 15, 30, 0, 1), BandWeekdayStable, time.Hour},
		{"one second after publish window", local(8, 15, 30, 1, 0), BandWeekdayStable, time.Hour},
		{"weekday midnight", local(8, 0, 0, 0, 0), BandWeekdayStable, time.Hour},
		{"weekday late evening", local(8, 23, 59, 59, 0), BandWeekdayStable, time.Hour},
		{"saturday inside nominal publish window", local(11, 14, 45, 0, 0), BandWeekendStable, 14*time.Hour + 30*time.Minute},
		{"sunday pre-window time", local(12, 13, 45, 0, 0), BandWeekendStable, 14*time.Hour + 30*time.Minute},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			p, err := c.ComputePolicy(tc.at)
			require.NoError(t, err)
			assert.Equal(t, tc.band, p.Band)
			assert.Equal(t, tc.duration, p.Duration)
			assert.Equal(t, tc.duration, p.FailSafeMaxDuration)
		})
	}
}

func TestCalculator_TotalityOverAWeek(t *testing.T) {
	c := newDefaultCalculator(t)
	prague := mustPrague(t)
	rules := c.Rules()
	require.Len(t, rules, 4)

	start := time.Date(2025, time.January, 6, 0, 0, 0, 0, prague).UTC()
	seen := map[Band]int{}
	for i := 0; i < 7*24*60; i++ {
		at := start.Add(time.Duration(i) * time.Minute)
		local := at.In(prague)

		matched := 0
		var band Band
		for _, r := range rules {
			if r.Matches(local) {
				matched++
				band = r.Band
			}
		}
		require.Equal(t, 1, matched, "instant %s matched %d rules", local, matched)

		p, err := c.ComputePolicy(at)
		require.NoError(t, err)
		require.Equal(t, band, p.Band)
		require.Positive(t, p.Duration)
		require.Positive(t, p.FailSafeMaxDuration)
		seen[band]++
	}

	// 5 weekdays * 60 minutes each for both windows; the publish window
	// also owns the 15:30 minute.
	assert.Equal(t, 5*60, seen[BandPreWindow])
	assert.Equal(t, 5*61, seen[BandPublishWindow])
	assert.Equal(t, 2*24*60, seen[BandWeekendStable])
	assert.Equal(t, 5*(24*60-121), seen[BandWeekdayStable])
}

func TestCalculator_WeekendDominance(t *testing.T) {
	c := newDefaultCalculator(t)
	prague := mustPrague(t)

	start := time.Date(2025, time.February, 1, 0, 0, 0, 0, prague)
	for at := start; at.Before(start.Add(48 * time.Hour)); at = at.Add(7 * time.Minute) {
		p, err := c.ComputePolicy(at.UTC())
		require.NoError(t, err)
		require.Equal(t, BandWeekendStable, p.Band, "at %s", at)
		require.Equal(t, c.Schedule().WeekendTTL, p.Duration)
	}
}

func TestCalculator_Deterministic(t *testing.T) {
	c := newDefaultCalculator(t)
	at := time.Date(2025, time.March, 12, 13, 45, 0, 0, time.UTC)

	first, err := c.ComputePolicy(at)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p, err := c.ComputePolicy(at)
			assert.NoError(t, err)
			assert.Equal(t, first, p)
		}()
	}
	wg.Wait()
}

func TestCalculator_DaylightSaving(t *testing.T) {
	c := newDefaultCalculator(t)

	testCases := []struct {
		name string
		at   time.Time
		band Band
	}{
		// Same UTC wall time, one winter Friday and one summer Monday
		// around the 2025-03-30 spring-forward.
		{"friday before spring forward 12:30Z is 13:30 CET", time.Date(2025, time.March, 28, 12, 30, 0, 0, time.UTC), BandPreWindow},
		{"monday after spring forward 12:30Z is 14:30 CEST", time.Date(2025, time.March, 31, 12, 30, 0, 0, time.UTC), BandPublishWindow},
		{"monday after spring forward 13:30Z is 15:30 CEST", time.Date(2025, time.March, 31, 13, 30, 0, 0, time.UTC), BandPublishWindow},
		{"friday before spring forward 14:30Z is 15:30 CET", time.Date(2025, time.March, 28, 14, 30, 0, 0, time.UTC), BandPublishWindow},
		{"monday after spring forward 14:30Z is 16:30 CEST", time.Date(2025, time.March, 31, 14, 30, 0, 0, time.UTC), BandWeekdayStable},
		// Around the 2025-10-26 fall-back.
		{"friday before fall back 12:30Z is 14:30 CEST", time.Date(2025, time.October, 24, 12, 30, 0, 0, time.UTC), BandPublishWindow},
		{"monday after fall back 12:30Z is 13:30 CET", time.Date(2025, time.October, 27, 12, 30, 0, 0, time.UTC), BandPreWindow},
		{"monday after fall back 11:30Z is 12:30 CET", time.Date(2025, time.October, 27, 11, 30, 0, 0, time.UTC), BandWeekdayStable},
		// The transitions themselves happen on Sunday night.
		{"just before spring forward", time.Date(2025, time.March, 30, 0, 59, 59, 0, time.UTC), BandWeekendStable},
		{"just after spring forward", time.Date(2025, time.March, 30, 1, 0, 0, 0, time.UTC), BandWeekendStable},
		{"first monday instant after fall back week", time.Date(2025, time.October, 26, 23, 0, 0, 0, time.UTC), BandWeekdayStable},
		{"last sunday instant after fall back", time.Date(2025, time.October, 26, 22, 59, 59, 0, time.UTC), BandWeekendStable},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			band, err := c.Classify(tc.at)
			require.NoError(t, err)
			assert.Equal(t, tc.band, band)
		})
	}
}

func TestCalculator_CustomSchedule(t *testing.T) {
	mustPrague(t)
	s := DefaultSchedule()
	s.PreWindowStart = Clock(9, 0, 0)
	s.PublishWindowStart = Clock(9, 15, 0)
	s.PublishWindowEnd = Clock(9, 15, 0)
	s.FailSafeMaxDuration = 24 * time.Hour

	c, err := NewCalculator(s)
	require.NoError(t, err)

	prague := mustPrague(t)
	p, err := c.ComputePolicy(time.Date(2025, time.January, 8, 9, 15, 0, 0, prague))
	require.NoError(t, err)
	assert.Equal(t, BandPublishWindow, p.Band)
	assert.Equal(t, 5*time.Minute, p.Duration)
	assert.Equal(t, 24*time.Hour, p.FailSafeMaxDuration)
	assert.Equal(t, 24*time.Hour, p.Lifetime())

	p, err = c.ComputePolicy(time.Date(2025, time.January, 8, 9, 15, 1, 0, prague))
	require.NoError(t, err)
	assert.Equal(t, BandWeekdayStable, p.Band)
}

func TestCalculator_Current(t *testing.T) {
	mustPrague(t)
	fixed := time.Date(2025, time.January, 8, 13, 0, 0, 0, time.UTC) // 14:00 CET
	c, err := NewCalculator(DefaultSchedule(), WithClock(func() time.Time { return fixed }))
	require.NoError(t, err)

	p, err := c.Current()
	require.NoError(t, err)
	assert.Equal(t, BandPreWindow, p.Band)
}

func TestCalculator_ConfigurationError(t *testing.T) {
	s := DefaultSchedule()
	s.Timezone = "Mars/Olympus_Mons"

	c, err := NewCalculator(s)
	require.Error(t, err)
	assert.Nil(t, c)

	var cfgErr *ConfigurationError
	require.True(t, errors.As(err, &cfgErr))
	assert.Equal(t, "Mars/Olympus_Mons", cfgErr.Timezone)
	assert.ErrorIs(t, err, ErrUnknownTimezone)
}

func TestCalculator_ZeroValueFailsOnFirstCall(t *testing.T) {
	var c Calculator

	_, err := c.ComputePolicy(time.Now())
	var cfgErr *ConfigurationError
	require.True(t, errors.As(err, &cfgErr))

	_, err = c.Current()
	assert.ErrorIs(t, err, ErrUnknownTimezone)
}

func TestCalculator_RevalidateKeepsPreviousLocation(t *testing.T) {
	c := newDefaultCalculator(t)
	before := c.Location()

	require.NoError(t, c.Revalidate())
	assert.Equal(t, before.String(), c.Location().String())

	c.schedule.Timezone = "Nowhere/Nothing"
	err := c.Revalidate()
	assert.ErrorIs(t, err, ErrUnknownTimezone)
	assert.Equal(t, before.String(), c.Location().String())
}

func TestCachePolicy_WithFailSafe(t *testing.T) {
	p := CachePolicy{Band: BandPreWindow, Duration: time.Minute, FailSafeMaxDuration: time.Minute}

	extended := p.WithFailSafe(time.Hour)
	assert.Equal(t, time.Hour, extended.FailSafeMaxDuration)
	assert.Equal(t, time.Hour, extended.Lifetime())
	assert.Equal(t, time.Minute, p.FailSafeMaxDuration)
	assert.Equal(t, time.Minute, p.Lifetime())
}

func TestBand_String(t *testing.T) {
	assert.Equal(t, "pre_window", BandPreWindow.String())
	assert.Equal(t, "publish_window", BandPublishWindow.String())
	assert.Equal(t, "weekday_stable", BandWeekdayStable.String())
	assert.Equal(t, "weekend_stable", BandWeekendStable.String())
	assert.Equal(t, "historical", BandHistorical.String())
	assert.Equal(t, "band(9)", Band(9).String())
}
