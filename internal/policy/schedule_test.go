package policy

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.yaml.in/yaml/v3"
)

func TestSchedule_Validate(t *testing.T) {
	testCases := []struct {
		name    string
		mutate  func(s *Schedule)
		wantErr bool
	}{
		{"default", func(s *Schedule) {}, false},
		{"empty timezone", func(s *Schedule) { s.Timezone = "" }, true},
		{"pre-window after publish start", func(s *Schedule) { s.PreWindowStart = Clock(14, 30, 0) }, true},
		{"publish end before start", func(s *Schedule) { s.PublishWindowEnd = Clock(14, 0, 0) }, true},
		{"boundary past midnight", func(s *Schedule) { s.PublishWindowEnd = Clock(24, 0, 0) }, true},
		{"negative boundary", func(s *Schedule) { s.PreWindowStart = -1 }, true},
		{"zero pre-window ttl", func(s *Schedule) { s.PreWindowTTL = 0 }, true},
		{"negative weekend ttl", func(s *Schedule) { s.WeekendTTL = -time.Hour }, true},
		{"negative fail-safe", func(s *Schedule) { s.FailSafeMaxDuration = -time.Second }, true},
		{"empty publish window", func(s *Schedule) { s.PublishWindowEnd = s.PublishWindowStart }, false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			s := DefaultSchedule()
			tc.mutate(&s)
			err := s.Validate()
			if tc.wantErr {
				assert.ErrorIs(t, err, ErrInvalidSchedule)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestNewCalculator_RejectsInvalidSchedule(t *testing.T) {
	s := DefaultSchedule()
	s.StableTTL = 0

	_, err := NewCalculator(s)
	assert.ErrorIs(t, err, ErrInvalidSchedule)
}

func TestParseClockTime(t *testing.T) {
	c, err := ParseClockTime("13:30")
	require.NoError(t, err)
	assert.Equal(t, Clock(13, 30, 0), c)
	assert.Equal(t, "13:30", c.String())

	c, err = ParseClockTime(" 15:30:05 ")
	require.NoError(t, err)
	assert.Equal(t, Clock(15, 30, 5), c)
	assert.Equal(t, "15:30:05", c.String())

	for _, bad := range []string{"", "25:00", "13h30", "1:2:3:4"} {
		_, err := ParseClockTime(bad)
		assert.Error(t, err, bad)
	}
}

func TestTimeOfDay(t *testing.T) {
	at := time.Date(2025, time.June, 2, 14, 29, 59, 500, time.UTC)
	assert.Equal(t, Clock(14, 29, 59)+ClockTime(500), TimeOfDay(at))
}

func TestSchedule_YAML(t *testing.T) {
	doc := `
timezone: Central Europe Standard Time
pre_window_start: "13:00"
publish_window_start: "14:30"
publish_window_end: "15:45:30"
pre_window_ttl: 30s
publish_window_ttl: 2m
stable_ttl: 1h
weekend_ttl: 14h30m
fail_safe_max_duration: 6h
`
	var s Schedule
	require.NoError(t, yaml.Unmarshal([]byte(doc), &s))
	assert.Equal(t, "Central Europe Standard Time", s.Timezone)
	assert.Equal(t, Clock(13, 0, 0), s.PreWindowStart)
	assert.Equal(t, Clock(15, 45, 30), s.PublishWindowEnd)
	assert.Equal(t, 30*time.Second, s.PreWindowTTL)
	assert.Equal(t, 14*time.Hour+30*time.Minute, s.WeekendTTL)
	assert.Equal(t, 6*time.Hour, s.FailSafeMaxDuration)
	assert.NoError(t, s.Validate())

	out, err := yaml.Marshal(s)
	require.NoError(t, err)
	assert.Contains(t, string(out), "13:00")

	var bad Schedule
	assert.Error(t, yaml.Unmarshal([]byte(`pre_window_start: "noon"`), &bad))
}
