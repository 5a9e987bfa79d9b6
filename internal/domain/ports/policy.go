package ports

import (
	"time"

	"cnb-rate-service/internal/policy"
)

type CachePolicyProvider interface {
	ComputePolicy(now time.Time) (policy.CachePolicy, error)
	// Location is the publisher timezone, or nil when it is unresolved.
	Location() *time.Location
}
