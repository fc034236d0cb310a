package connstatus

import (
	"time"
)

// StatusType represents the possible values of a single health dimension.
// Reachability and authentication are tracked independently; either may be
// unknown until a check has exercised it.
type StatusType string

const (
	StatusUnknown StatusType = "unknown"
	StatusUp      StatusType = "up"
	StatusDown    StatusType = "down"
)

// CheckResult holds the outcome of one health check against one endpoint.
type CheckResult struct {
	Address       string        `json:"address"`
	Reachable     StatusType    `json:"reachable"`
	Authenticated StatusType    `json:"authenticated"`
	Latency       time.Duration `json:"latency"`
	CheckedAt     time.Time     `json:"checked_at"`
	Healthy       bool          `json:"healthy"`
}

// IsHealthy reports whether the given pair of statuses describes a usable
// endpoint: reachable and not explicitly unauthenticated. Unknown
// authentication does not disqualify an endpoint.
func IsHealthy(reachable, authenticated StatusType) bool {
	return reachable == StatusUp && authenticated != StatusDown
}
