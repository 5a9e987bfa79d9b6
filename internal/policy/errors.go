package policy

import (
	"errors"
	"fmt"
)

var (
	ErrUnknownTimezone = errors.New("unknown timezone")
	ErrInvalidSchedule = errors.New("invalid publication schedule")
)

// ConfigurationError reports a publisher timezone that cannot be resolved
// on this host. It is a deployment fault and is never retried.
type ConfigurationError struct {
	Timezone string
	Err      error
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("cache policy configuration: timezone %q: %v", e.Timezone, e.Err)
}

func (e *ConfigurationError) Unwrap() error {
	return e.Err
}
