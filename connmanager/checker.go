package connmanager

import (
	"context"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/nodewatch/rpcmanager/connstatus"
	"github.com/nodewatch/rpcmanager/metrics"
	"github.com/nodewatch/rpcmanager/rpcendpoint"
)

// StartPeriodicChecks runs one check cycle synchronously, then schedules a
// recurring cycle at the given interval (the configured default when 0).
// Because the caller already got one cycle before this returns, the first
// scheduled firing is skipped. Cycles never overlap; a cycle error is logged
// and does not stop the loop. Calling StartPeriodicChecks while a task is
// running restarts it, so at most one task is ever active.
func (m *Manager) StartPeriodicChecks(interval time.Duration) {
	m.StopPeriodicChecks()

	if interval <= 0 {
		interval = m.defaultInterval
	}

	if err := m.checkCycle(context.Background()); err != nil {
		m.logger.Warn("initial check cycle reported errors", zap.Error(err))
	}

	m.mu.Lock()
	m.quit = make(chan struct{})
	quit := m.quit
	m.mu.Unlock()

	ticker := m.clock.Ticker(interval)
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		defer ticker.Stop()

		// The caller already awaited a cycle; skip the first firing to
		// avoid a redundant double-check right after start.
		first := true
		for {
			select {
			case <-ticker.C:
				if first {
					first = false
					continue
				}
				if err := m.checkCycle(context.Background()); err != nil {
					m.logger.Warn("check cycle reported errors", zap.Error(err))
				}
			case <-quit:
				return
			}
		}
	}()
}

// StopPeriodicChecks cancels the periodic task. It is idempotent and
// guarantees that no further cycles fire after it returns. An in-flight
// cycle is not aborted, only awaited.
func (m *Manager) StopPeriodicChecks() {
	m.mu.Lock()
	if m.quit != nil {
		close(m.quit)
		m.quit = nil
	}
	m.mu.Unlock()
	m.wg.Wait()
}

// CheckCurrent runs one check cycle and returns the post-cycle state of the
// current endpoint, or nil when none is set. The error aggregates observer
// failures raised by notifications during the cycle.
func (m *Manager) CheckCurrent(ctx context.Context) (*connstatus.CheckResult, error) {
	err := m.checkCycle(ctx)

	current := m.Current()
	if current == nil {
		return nil, err
	}
	result := rpcendpoint.Result(current, time.Now())
	return &result, err
}

// CheckAll checks every registered endpoint concurrently and returns the
// per-endpoint outcomes in presentation order. After the checks it applies
// the same notification and auto-switch rules as a periodic cycle, selecting
// a replacement from the fresh statuses without probing again.
func (m *Manager) CheckAll(ctx context.Context) ([]connstatus.CheckResult, error) {
	eps := m.endpointSnapshot()
	timeout := m.CheckTimeout()

	before := m.IsConnected()

	done := make(chan struct{}, len(eps))
	for _, e := range eps {
		go func(e rpcendpoint.Endpoint) {
			e.Check(ctx, timeout)
			recordCheck(e)
			done <- struct{}{}
		}(e)
	}
	for range eps {
		<-done
	}

	var err error
	current := m.Current()
	if current != nil && before != m.IsConnected() {
		m.mu.Lock()
		observers := m.observerSnapshot()
		m.mu.Unlock()
		err = m.dispatch(observers, current)
	}

	if m.AutoSwitch() && !m.IsConnected() {
		if best := firstHealthy(eps, current); best != nil {
			metrics.FailoversTotal.Inc()
			err = multierr.Append(err, m.SetCurrentEndpoint(best))
		}
	}
	m.updateConnectedGauge()

	checkedAt := time.Now()
	results := make([]connstatus.CheckResult, 0, len(eps))
	for _, e := range m.Endpoints() {
		results = append(results, rpcendpoint.Result(e, checkedAt))
	}
	return results, err
}

// checkCycle runs the connected/disconnected transition once: re-check the
// current endpoint and notify observers when its effective health state
// flipped, then fail over to the best available endpoint when auto-switch is
// enabled and the manager ended up disconnected.
func (m *Manager) checkCycle(ctx context.Context) error {
	m.mu.Lock()
	current := m.current
	timeout := m.checkTimeout
	m.mu.Unlock()

	var err error
	if current != nil {
		before := rpcendpoint.IsHealthy(current)
		current.Check(ctx, timeout)
		recordCheck(current)
		if after := rpcendpoint.IsHealthy(current); after != before {
			m.logger.Info("current endpoint health changed",
				zap.String("address", current.Address()),
				zap.Bool("healthy", after))
			m.mu.Lock()
			observers := m.observerSnapshot()
			m.mu.Unlock()
			err = m.dispatch(observers, current)
		}
	}

	if m.AutoSwitch() && !m.IsConnected() {
		if best := m.BestAvailable(ctx, current); best != nil {
			metrics.FailoversTotal.Inc()
			err = multierr.Append(err, m.SetCurrentEndpoint(best))
		}
	}
	m.updateConnectedGauge()

	return err
}

// firstHealthy picks the best endpoint from already-measured statuses:
// tiers ascending, lowest latency within a tier, skipping the excluded
// endpoint. It performs no probing.
func firstHealthy(eps []rpcendpoint.Endpoint, excluded rpcendpoint.Endpoint) rpcendpoint.Endpoint {
	for _, tier := range tiersAscending(eps) {
		var best rpcendpoint.Endpoint
		var bestLatency time.Duration
		for _, e := range tier {
			if excluded != nil && e.Address() == excluded.Address() {
				continue
			}
			if !rpcendpoint.IsHealthy(e) {
				continue
			}
			latency, ok := e.Latency()
			if !ok {
				latency = time.Duration(1<<63 - 1)
			}
			if best == nil || latency < bestLatency {
				best = e
				bestLatency = latency
			}
		}
		if best != nil {
			return best
		}
	}
	return nil
}
