package connmanager

import (
	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/nodewatch/rpcmanager/rpcendpoint"
)

// Observer receives notifications when the current endpoint changes,
// including health-state changes of an unchanged current endpoint. The
// endpoint is nil when the manager disconnected. A returned error is
// collected and reported to the caller that triggered the change; it does
// not prevent other observers from being notified.
type Observer interface {
	OnCurrentChanged(e rpcendpoint.Endpoint) error
}

// AddObserver appends an observer. Observers are notified in insertion
// order, concurrently.
func (m *Manager) AddObserver(o Observer) error {
	if o == nil {
		return errors.Wrap(ErrInvalidArgument, "nil observer")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.observers = append(m.observers, o)
	return nil
}

// RemoveObserver removes a previously added observer. It fails with
// ErrUnknownObserver if the observer was never added.
func (m *Manager) RemoveObserver(o Observer) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i, registered := range m.observers {
		if registered == o {
			m.observers = append(m.observers[:i], m.observers[i+1:]...)
			return nil
		}
	}
	return errors.WithStack(ErrUnknownObserver)
}

// observerSnapshot copies the observer list. Callers must hold m.mu.
// Dispatch always runs against a snapshot so that observers added or removed
// during dispatch do not affect the in-flight notification.
func (m *Manager) observerSnapshot() []Observer {
	observers := make([]Observer, len(m.observers))
	copy(observers, m.observers)
	return observers
}

// dispatch notifies every observer in the snapshot concurrently and waits
// for all handlers to complete. Handler errors are aggregated and returned
// to the triggering caller as a non-fatal report.
func (m *Manager) dispatch(observers []Observer, e rpcendpoint.Endpoint) error {
	if len(observers) == 0 {
		return nil
	}

	results := make(chan error, len(observers))
	for _, o := range observers {
		go func(o Observer) {
			results <- o.OnCurrentChanged(e)
		}(o)
	}

	var aggregated error
	for range observers {
		aggregated = multierr.Append(aggregated, <-results)
	}
	if aggregated != nil {
		m.logger.Warn("observer notification failed", zap.Error(aggregated))
	}
	return aggregated
}
