package connmanager

import (
	"sort"

	"github.com/nodewatch/rpcmanager/connstatus"
	"github.com/nodewatch/rpcmanager/rpcendpoint"
)

// Endpoints returns all registered endpoints in presentation order: the
// current endpoint first, then reachable before unreachable before unknown,
// then priority descending with 0 forced last, then address ascending.
func (m *Manager) Endpoints() []rpcendpoint.Endpoint {
	m.mu.Lock()
	eps := make([]rpcendpoint.Endpoint, 0, len(m.endpoints))
	for _, e := range m.endpoints {
		eps = append(eps, e)
	}
	current := m.current
	m.mu.Unlock()

	sort.SliceStable(eps, func(i, j int) bool {
		a, b := eps[i], eps[j]

		if (a == current) != (b == current) {
			return a == current
		}

		ra, rb := reachabilityRank(a.Reachable()), reachabilityRank(b.Reachable())
		if ra != rb {
			return ra < rb
		}

		pa, pb := a.Priority(), b.Priority()
		if (pa == 0) != (pb == 0) {
			return pb == 0 // unranked endpoints sort last
		}
		if pa != pb {
			return pa > pb
		}

		return a.Address() < b.Address()
	})

	return eps
}

func reachabilityRank(s connstatus.StatusType) int {
	switch s {
	case connstatus.StatusUp:
		return 0
	case connstatus.StatusDown:
		return 1
	default:
		return 2
	}
}

// tiersAscending groups endpoints by priority value and orders the tiers by
// ascending priority, with the 0-priority tier always last. The placement of
// the unranked tier is keyed on the priority value 0, never on group
// position.
func tiersAscending(eps []rpcendpoint.Endpoint) [][]rpcendpoint.Endpoint {
	groups := make(map[int][]rpcendpoint.Endpoint)
	for _, e := range eps {
		groups[e.Priority()] = append(groups[e.Priority()], e)
	}

	priorities := make([]int, 0, len(groups))
	for p := range groups {
		priorities = append(priorities, p)
	}
	sort.Slice(priorities, func(i, j int) bool {
		if (priorities[i] == 0) != (priorities[j] == 0) {
			return priorities[j] == 0
		}
		return priorities[i] < priorities[j]
	})

	tiers := make([][]rpcendpoint.Endpoint, 0, len(priorities))
	for _, p := range priorities {
		tiers = append(tiers, groups[p])
	}
	return tiers
}

// endpointSnapshot copies the endpoint set under the registry lock.
func (m *Manager) endpointSnapshot() []rpcendpoint.Endpoint {
	m.mu.Lock()
	defer m.mu.Unlock()
	eps := make([]rpcendpoint.Endpoint, 0, len(m.endpoints))
	for _, e := range m.endpoints {
		eps = append(eps, e)
	}
	return eps
}
