package connmanager

import (
	"context"
	"time"

	mapset "github.com/deckarep/golang-set"
	"go.uber.org/zap"

	"github.com/nodewatch/rpcmanager/rpcendpoint"
)

type probeResult struct {
	endpoint rpcendpoint.Endpoint
	healthy  bool
}

// BestAvailable probes endpoints tier by tier in ascending priority order
// (unranked endpoints last) and returns the first healthy responder. Within
// a tier all candidates are checked concurrently and the first healthy
// result wins without waiting for the rest; a tier in which every probe
// fails yields to the next tier. It returns nil when every tier is
// exhausted, including when no endpoints are registered. Probe failures are
// never surfaced as errors.
func (m *Manager) BestAvailable(ctx context.Context, excluded ...rpcendpoint.Endpoint) rpcendpoint.Endpoint {
	excludedAddrs := mapset.NewThreadUnsafeSet()
	for _, e := range excluded {
		if e != nil {
			excludedAddrs.Add(e.Address())
		}
	}

	timeout := m.CheckTimeout()

	for _, tier := range tiersAscending(m.endpointSnapshot()) {
		candidates := make([]rpcendpoint.Endpoint, 0, len(tier))
		for _, e := range tier {
			if !excludedAddrs.Contains(e.Address()) {
				candidates = append(candidates, e)
			}
		}
		if len(candidates) == 0 {
			continue
		}

		if winner := m.probeTier(ctx, candidates, timeout); winner != nil {
			m.logger.Debug("probe found available endpoint",
				zap.String("address", winner.Address()),
				zap.Int("priority", winner.Priority()))
			return winner
		}
	}

	return nil
}

// probeTier races one health check per candidate and returns the first
// healthy endpoint, or nil when every probe reports unhealthy. The results
// channel is buffered to the tier size so that straggler probes can finish
// and record their side effects without being awaited.
func (m *Manager) probeTier(ctx context.Context, tier []rpcendpoint.Endpoint, timeout time.Duration) rpcendpoint.Endpoint {
	results := make(chan probeResult, len(tier))
	for _, e := range tier {
		go func(e rpcendpoint.Endpoint) {
			healthy := e.Check(ctx, timeout)
			recordCheck(e)
			results <- probeResult{endpoint: e, healthy: healthy}
		}(e)
	}

	for i := 0; i < len(tier); i++ {
		res := <-results
		if res.healthy {
			return res.endpoint
		}
	}
	return nil
}
