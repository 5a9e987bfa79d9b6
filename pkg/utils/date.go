package utils

import (
	"time"
)

const DateLayout = "2006-01-02"

// StartOfDay truncates t to midnight UTC of its UTC calendar date.
func StartOfDay(t time.Time) time.Time {
	return DateIn(t, time.UTC)
}

// DateIn returns the calendar date of t as seen in loc, as midnight UTC so
// it compares equal to a parsed YYYY-MM-DD date.
func DateIn(t time.Time, loc *time.Location) time.Time {
	y, m, d := t.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ValidateDate reports whether date lies within the last maxAgeDays days
// up to and including today.
func ValidateDate(date, today time.Time, maxAgeDays int) bool {
	date = StartOfDay(date)
	today = StartOfDay(today)
	oldest := today.AddDate(0, 0, -maxAgeDays)

	return !date.Before(oldest) && !date.After(today)
}

func ParseDate(dateStr string) (time.Time, error) {
	return time.Parse(DateLayout, dateStr)
}

func FormatDate(date time.Time) string {
	return date.Format(DateLayout)
}
