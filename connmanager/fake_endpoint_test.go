package connmanager

import (
	"context"
	"sync"
	"time"

	"github.com/nodewatch/rpcmanager/connstatus"
	"github.com/nodewatch/rpcmanager/rpcendpoint"
)

// fakeEndpoint is a scripted Endpoint for tests. Each Check applies the
// onCheck script (when set) to the status fields and counts the invocation.
type fakeEndpoint struct {
	address  string
	priority int

	mu            sync.Mutex
	username      string
	secret        string
	reachable     connstatus.StatusType
	authenticated connstatus.StatusType
	latency       time.Duration
	hasLatency    bool

	checkDelay time.Duration
	onCheck    func(call int) (reachable, authenticated connstatus.StatusType)
	checks     int
}

func newFakeEndpoint(address string, priority int) *fakeEndpoint {
	return &fakeEndpoint{
		address:       address,
		priority:      priority,
		reachable:     connstatus.StatusUnknown,
		authenticated: connstatus.StatusUnknown,
	}
}

// newHealthyEndpoint returns a fake that reports reachable on every check.
func newHealthyEndpoint(address string, priority int) *fakeEndpoint {
	e := newFakeEndpoint(address, priority)
	e.onCheck = func(int) (connstatus.StatusType, connstatus.StatusType) {
		return connstatus.StatusUp, connstatus.StatusUnknown
	}
	return e
}

// newUnreachableEndpoint returns a fake that reports down on every check.
func newUnreachableEndpoint(address string, priority int) *fakeEndpoint {
	e := newFakeEndpoint(address, priority)
	e.onCheck = func(int) (connstatus.StatusType, connstatus.StatusType) {
		return connstatus.StatusDown, connstatus.StatusUnknown
	}
	return e
}

func (e *fakeEndpoint) setStatus(reachable, authenticated connstatus.StatusType) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.reachable = reachable
	e.authenticated = authenticated
}

func (e *fakeEndpoint) checkCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.checks
}

func (e *fakeEndpoint) Address() string { return e.address }
func (e *fakeEndpoint) Priority() int   { return e.priority }

func (e *fakeEndpoint) SetCredentials(username, secret string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.username = username
	e.secret = secret
}

func (e *fakeEndpoint) Credentials() (string, string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.username, e.secret
}

func (e *fakeEndpoint) Check(ctx context.Context, timeout time.Duration) bool {
	e.mu.Lock()
	delay := e.checkDelay
	e.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
		}
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.checks++
	if e.onCheck != nil {
		e.reachable, e.authenticated = e.onCheck(e.checks)
	}
	return connstatus.IsHealthy(e.reachable, e.authenticated)
}

func (e *fakeEndpoint) Reachable() connstatus.StatusType {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.reachable
}

func (e *fakeEndpoint) Authenticated() connstatus.StatusType {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.authenticated
}

func (e *fakeEndpoint) Latency() (time.Duration, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.latency, e.hasLatency
}

// countingObserver records every notification it receives and returns the
// configured error, if any.
type countingObserver struct {
	mu        sync.Mutex
	addresses []string // "" for a nil endpoint
	err       error
	onNotify  func(e rpcendpoint.Endpoint)
}

func (o *countingObserver) OnCurrentChanged(e rpcendpoint.Endpoint) error {
	o.mu.Lock()
	if e == nil {
		o.addresses = append(o.addresses, "")
	} else {
		o.addresses = append(o.addresses, e.Address())
	}
	onNotify := o.onNotify
	err := o.err
	o.mu.Unlock()

	if onNotify != nil {
		onNotify(e)
	}
	return err
}

func (o *countingObserver) notified() []string {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]string, len(o.addresses))
	copy(out, o.addresses)
	return out
}

func (o *countingObserver) count() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.addresses)
}
