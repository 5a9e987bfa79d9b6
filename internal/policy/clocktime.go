package policy

import (
	"fmt"
	"strings"
	"time"

	"go.yaml.in/yaml/v3"
)

// ClockTime is a wall-clock time of day, stored as the offset from midnight.
type ClockTime time.Duration

// Clock builds a ClockTime from hours, minutes and seconds.
func Clock(hour, min, sec int) ClockTime {
	return ClockTime(time.Duration(hour)*time.Hour + time.Duration(min)*time.Minute + time.Duration(sec)*time.Second)
}

// ParseClockTime accepts "HH:MM" or "HH:MM:SS".
func ParseClockTime(s string) (ClockTime, error) {
	s = strings.TrimSpace(s)
	for _, layout := range []string{"15:04:05", "15:04"} {
		if t, err := time.Parse(layout, s); err == nil {
			h, m, sec := t.Clock()
			return Clock(h, m, sec), nil
		}
	}
	return 0, fmt.Errorf("invalid clock time %q, use HH:MM or HH:MM:SS", s)
}

// TimeOfDay returns the wall-clock time of t in t's own location. It is
// read from the clock fields, so DST transition days do not skew it.
func TimeOfDay(t time.Time) ClockTime {
	h, m, s := t.Clock()
	return Clock(h, m, s) + ClockTime(t.Nanosecond())
}

// Duration is the offset from midnight.
func (c ClockTime) Duration() time.Duration {
	return time.Duration(c)
}

// String formats as HH:MM, or HH:MM:SS when seconds are set.
func (c ClockTime) String() string {
	d := time.Duration(c)
	h := d / time.Hour
	m := (d % time.Hour) / time.Minute
	s := (d % time.Minute) / time.Second
	if s == 0 {
		return fmt.Sprintf("%02d:%02d", h, m)
	}
	return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
}

// UnmarshalYAML reads the same formats as ParseClockTime.
func (c *ClockTime) UnmarshalYAML(value *yaml.Node) error {
	var str string
	if err := value.Decode(&str); err != nil {
		return err
	}
	parsed, err := ParseClockTime(str)
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// MarshalYAML writes the String form.
func (c ClockTime) MarshalYAML() (interface{}, error) {
	return c.String(), nil
}
