package connmanager

import (
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/nodewatch/rpcmanager/metrics"
	"github.com/nodewatch/rpcmanager/params"
	"github.com/nodewatch/rpcmanager/rpcendpoint"
)

// EndpointFactory builds an endpoint for an address that is not yet
// registered. It is used by SetCurrentAddress when asked to connect to an
// unknown address.
type EndpointFactory func(address string) rpcendpoint.Endpoint

// Manager tracks a set of candidate RPC endpoints, ranks them, probes their
// health and maintains a single current endpoint, substituting a healthier
// one when the current degrades.
//
// All registry mutations and current-endpoint reads are serialized under one
// mutex. Health checks and observer dispatch happen outside the lock.
type Manager struct {
	mu        sync.Mutex
	endpoints map[string]rpcendpoint.Endpoint
	current   rpcendpoint.Endpoint
	observers []Observer

	autoSwitch   bool
	checkTimeout time.Duration

	defaultInterval time.Duration
	quit            chan struct{}
	wg              sync.WaitGroup

	factory EndpointFactory
	clock   clock.Clock
	logger  *zap.Logger
}

// Option configures a Manager.
type Option func(*Manager)

// WithLogger sets the manager's logger.
func WithLogger(logger *zap.Logger) Option {
	return func(m *Manager) {
		m.logger = logger
	}
}

// WithClock replaces the clock used to schedule periodic checks. Tests use
// a mock clock.
func WithClock(c clock.Clock) Option {
	return func(m *Manager) {
		m.clock = c
	}
}

// WithEndpointFactory replaces the factory used to create endpoints for
// unknown addresses.
func WithEndpointFactory(factory EndpointFactory) Option {
	return func(m *Manager) {
		m.factory = factory
	}
}

// New creates a Manager from the given configuration and registers its
// configured endpoints. A nil config uses defaults.
func New(cfg *params.Config, opts ...Option) (*Manager, error) {
	if cfg == nil {
		cfg = params.NewConfig()
	}

	m := &Manager{
		endpoints:       make(map[string]rpcendpoint.Endpoint),
		autoSwitch:      cfg.AutoSwitch,
		checkTimeout:    cfg.CheckTimeout(),
		defaultInterval: cfg.CheckInterval(),
		clock:           clock.New(),
		logger:          zap.NewNop(),
	}
	m.factory = func(address string) rpcendpoint.Endpoint {
		return rpcendpoint.NewClient(address, rpcendpoint.WithLogger(m.logger))
	}
	for _, opt := range opts {
		opt(m)
	}

	for _, ec := range cfg.Endpoints {
		client := rpcendpoint.NewClient(ec.Address,
			rpcendpoint.WithCredentials(ec.Username, ec.Secret),
			rpcendpoint.WithPriority(ec.Priority),
			rpcendpoint.WithLogger(m.logger))
		if err := m.AddEndpoint(client); err != nil {
			return nil, err
		}
	}

	return m, nil
}

// AddEndpoint registers an endpoint. It fails with ErrDuplicateEndpoint if
// an endpoint with the same address is already registered.
func (m *Manager) AddEndpoint(e rpcendpoint.Endpoint) error {
	if e == nil || e.Address() == "" {
		return errors.Wrap(ErrInvalidArgument, "endpoint must have an address")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.endpoints[e.Address()]; ok {
		return errors.Wrap(ErrDuplicateEndpoint, e.Address())
	}
	m.endpoints[e.Address()] = e
	return nil
}

// RemoveEndpoint removes the endpoint with the given address. It fails with
// ErrUnknownEndpoint if no such endpoint exists. Removing the current
// endpoint clears the current reference without notifying observers.
func (m *Manager) RemoveEndpoint(address string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.endpoints[address]
	if !ok {
		return errors.Wrap(ErrUnknownEndpoint, address)
	}
	delete(m.endpoints, address)
	if m.current == e {
		m.current = nil
	}
	return nil
}

// GetEndpoint returns the endpoint registered under the given address, or
// nil when absent. Absence is an expected lookup outcome, not an error.
func (m *Manager) GetEndpoint(address string) rpcendpoint.Endpoint {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.endpoints[address]
}

// Current returns the current endpoint, or nil when none is set.
func (m *Manager) Current() rpcendpoint.Endpoint {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

// SetCurrentAddress makes the endpoint registered under the given address
// current without modifying its credentials. An unknown address is
// registered as a new endpoint with empty credentials and priority 0. An
// empty address clears the current endpoint.
//
// The returned error aggregates observer failures and is non-fatal; the
// switch itself always succeeds.
func (m *Manager) SetCurrentAddress(address string) error {
	if address == "" {
		return m.Disconnect()
	}

	m.mu.Lock()
	target, ok := m.endpoints[address]
	if !ok {
		target = m.factory(address)
		m.endpoints[address] = target
	}
	changed := m.current != target
	m.current = target
	observers := m.observerSnapshot()
	m.mu.Unlock()

	m.updateConnectedGauge()
	if !changed {
		return nil
	}
	m.logger.Info("current endpoint changed", zap.String("address", address))
	return m.dispatch(observers, target)
}

// SetCurrentEndpoint makes the given endpoint current. If no endpoint with
// its address is registered it is registered first; if one is registered,
// that endpoint's credentials are overwritten with the given endpoint's
// credentials and it becomes current.
//
// Observers are notified only when the current identity or credentials
// actually changed. The returned error aggregates observer failures.
func (m *Manager) SetCurrentEndpoint(e rpcendpoint.Endpoint) error {
	if e == nil {
		return errors.Wrap(ErrInvalidArgument, "nil endpoint")
	}
	if e.Address() == "" {
		return errors.Wrap(ErrInvalidArgument, "endpoint must have an address")
	}

	m.mu.Lock()
	target, ok := m.endpoints[e.Address()]
	changed := false
	if ok {
		if target != e {
			username, secret := e.Credentials()
			oldUsername, oldSecret := target.Credentials()
			if username != oldUsername || secret != oldSecret {
				target.SetCredentials(username, secret)
				changed = true
			}
		}
	} else {
		m.endpoints[e.Address()] = e
		target = e
	}
	if m.current != target {
		m.current = target
		changed = true
	}
	observers := m.observerSnapshot()
	m.mu.Unlock()

	m.updateConnectedGauge()
	if !changed {
		return nil
	}
	m.logger.Info("current endpoint changed", zap.String("address", target.Address()))
	return m.dispatch(observers, target)
}

// Disconnect clears the current endpoint. Observers are notified with a nil
// endpoint if one was set.
func (m *Manager) Disconnect() error {
	m.mu.Lock()
	changed := m.current != nil
	m.current = nil
	observers := m.observerSnapshot()
	m.mu.Unlock()

	m.updateConnectedGauge()
	if !changed {
		return nil
	}
	m.logger.Info("disconnected from current endpoint")
	return m.dispatch(observers, nil)
}

// IsConnected reports whether a current endpoint exists, is reachable and
// is not explicitly unauthenticated.
func (m *Manager) IsConnected() bool {
	return rpcendpoint.IsHealthy(m.Current())
}

// SetAutoSwitch enables or disables automatic failover during check cycles.
func (m *Manager) SetAutoSwitch(enabled bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.autoSwitch = enabled
}

// AutoSwitch reports whether automatic failover is enabled.
func (m *Manager) AutoSwitch() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.autoSwitch
}

// SetCheckTimeout sets the per-check timeout.
func (m *Manager) SetCheckTimeout(timeout time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.checkTimeout = timeout
}

// CheckTimeout returns the per-check timeout.
func (m *Manager) CheckTimeout() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.checkTimeout
}

// PeerEndpoints would return endpoints discovered from the current daemon's
// peer list. Peer discovery is not supported.
func (m *Manager) PeerEndpoints() ([]rpcendpoint.Endpoint, error) {
	return nil, errors.Wrap(ErrNotImplemented, "peer endpoint discovery")
}

func (m *Manager) updateConnectedGauge() {
	if m.IsConnected() {
		metrics.Connected.Set(1)
	} else {
		metrics.Connected.Set(0)
	}
}

func recordCheck(e rpcendpoint.Endpoint) {
	if rpcendpoint.IsHealthy(e) {
		metrics.ChecksTotal.WithLabelValues("up").Inc()
	} else {
		metrics.ChecksTotal.WithLabelValues("down").Inc()
	}
	if latency, ok := e.Latency(); ok {
		metrics.EndpointLatency.WithLabelValues(e.Address()).Set(latency.Seconds())
	}
}
