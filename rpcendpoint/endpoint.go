package rpcendpoint

import (
	"context"
	"time"

	"github.com/nodewatch/rpcmanager/connstatus"
)

// Endpoint is a single addressable remote RPC service with its own priority
// and health status. Implementations must be safe for concurrent checks of
// distinct endpoints; concurrent checks of the same endpoint resolve
// last-write-wins on the status fields.
type Endpoint interface {
	// Address returns the endpoint URL. It is the endpoint's identity
	// within a manager and never changes.
	Address() string

	// Priority returns the failover tier of the endpoint. Lower positive
	// values are probed first; 0 means unranked, always probed last.
	Priority() int

	// SetCredentials replaces the endpoint's credentials.
	SetCredentials(username, secret string)

	// Credentials returns the current username and secret.
	Credentials() (username, secret string)

	// Check performs one bounded round-trip against the endpoint,
	// updating reachability, authentication and latency as a side effect,
	// and reports whether the endpoint is usable. Transport failures are
	// reflected in the status fields, never returned.
	Check(ctx context.Context, timeout time.Duration) bool

	// Reachable reports the result of the last check, or unknown if the
	// endpoint has never been checked.
	Reachable() connstatus.StatusType

	// Authenticated reports the authentication outcome of the last check.
	// It is independent of reachability and stays unknown until a check
	// exercises authentication.
	Authenticated() connstatus.StatusType

	// Latency returns the round-trip time measured by the last successful
	// check. The second return value is false when no measurement exists.
	Latency() (time.Duration, bool)
}

// IsHealthy reports whether the endpoint is usable: reachable and not
// explicitly unauthenticated.
func IsHealthy(e Endpoint) bool {
	if e == nil {
		return false
	}
	return connstatus.IsHealthy(e.Reachable(), e.Authenticated())
}

// Result snapshots an endpoint's health fields into a CheckResult.
func Result(e Endpoint, checkedAt time.Time) connstatus.CheckResult {
	latency, _ := e.Latency()
	return connstatus.CheckResult{
		Address:       e.Address(),
		Reachable:     e.Reachable(),
		Authenticated: e.Authenticated(),
		Latency:       latency,
		CheckedAt:     checkedAt,
		Healthy:       IsHealthy(e),
	}
}
