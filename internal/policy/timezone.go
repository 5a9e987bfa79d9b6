package policy

import (
	"errors"
	"strings"
	"time"
)

// windowsZoneAliases maps Windows registry zone names to IANA names. The Go
// runtime only understands IANA identifiers, on every OS, so configuration
// written for a Windows host is translated here.
var windowsZoneAliases = map[string]string{
	"Central Europe Standard Time":   "Europe/Prague",
	"Central European Standard Time": "Europe/Warsaw",
	"W. Europe Standard Time":        "Europe/Berlin",
	"GMT Standard Time":              "Europe/London",
	"Romance Standard Time":          "Europe/Paris",
	"E. Europe Standard Time":        "Europe/Chisinau",
	"Coordinated Universal Time":     "UTC",
}

// CanonicalTimezone returns the IANA identifier for id.
func CanonicalTimezone(id string) string {
	id = strings.TrimSpace(id)
	if iana, ok := windowsZoneAliases[id]; ok {
		return iana
	}
	return id
}

// ResolveLocation loads the publisher timezone. An empty identifier is an
// error rather than UTC.
func ResolveLocation(id string) (*time.Location, error) {
	canonical := CanonicalTimezone(id)
	if canonical == "" {
		return nil, &ConfigurationError{Timezone: id, Err: ErrUnknownTimezone}
	}

	loc, err := time.LoadLocation(canonical)
	if err != nil {
		return nil, &ConfigurationError{Timezone: id, Err: errors.Join(ErrUnknownTimezone, err)}
	}
	return loc, nil
}
