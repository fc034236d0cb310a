package connmanager

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestBestAvailablePicksHealthyInTier(t *testing.T) {
	m, err := New(nil)
	require.NoError(t, err)

	a := newUnreachableEndpoint("http://a:1", 1)
	b := newHealthyEndpoint("http://b:1", 1)
	require.NoError(t, m.AddEndpoint(a))
	require.NoError(t, m.AddEndpoint(b))

	best := m.BestAvailable(context.Background())
	require.NotNil(t, best)
	require.Equal(t, "http://b:1", best.Address())
}

func TestBestAvailableNoEndpoints(t *testing.T) {
	m, err := New(nil)
	require.NoError(t, err)

	require.Nil(t, m.BestAvailable(context.Background()))
}

func TestBestAvailableAllUnhealthy(t *testing.T) {
	m, err := New(nil)
	require.NoError(t, err)

	require.NoError(t, m.AddEndpoint(newUnreachableEndpoint("http://a:1", 1)))
	require.NoError(t, m.AddEndpoint(newUnreachableEndpoint("http://b:1", 2)))

	require.Nil(t, m.BestAvailable(context.Background()))
}

func TestBestAvailableFallsThroughToZeroTier(t *testing.T) {
	m, err := New(nil)
	require.NoError(t, err)

	a := newUnreachableEndpoint("http://a:1", 1)
	z := newHealthyEndpoint("http://z:1", 0)
	require.NoError(t, m.AddEndpoint(a))
	require.NoError(t, m.AddEndpoint(z))

	best := m.BestAvailable(context.Background())
	require.NotNil(t, best)
	// tier 1 is exhausted first, the unranked tier is a last resort
	require.Equal(t, "http://z:1", best.Address())
	require.Equal(t, 1, a.checkCount())
}

func TestBestAvailableHonorsTierOrder(t *testing.T) {
	m, err := New(nil)
	require.NoError(t, err)

	first := newHealthyEndpoint("http://first:1", 1)
	second := newHealthyEndpoint("http://second:1", 2)
	require.NoError(t, m.AddEndpoint(first))
	require.NoError(t, m.AddEndpoint(second))

	best := m.BestAvailable(context.Background())
	require.NotNil(t, best)
	require.Equal(t, "http://first:1", best.Address())
	// tier 2 is never probed once tier 1 produced a winner
	require.Equal(t, 0, second.checkCount())
}

func TestBestAvailableExcluded(t *testing.T) {
	m, err := New(nil)
	require.NoError(t, err)

	a := newHealthyEndpoint("http://a:1", 1)
	b := newHealthyEndpoint("http://b:1", 2)
	require.NoError(t, m.AddEndpoint(a))
	require.NoError(t, m.AddEndpoint(b))

	best := m.BestAvailable(context.Background(), a)
	require.NotNil(t, best)
	require.Equal(t, "http://b:1", best.Address())
	require.Equal(t, 0, a.checkCount())
}

func TestBestAvailableExcludingEverything(t *testing.T) {
	m, err := New(nil)
	require.NoError(t, err)

	a := newHealthyEndpoint("http://a:1", 1)
	require.NoError(t, m.AddEndpoint(a))

	require.Nil(t, m.BestAvailable(context.Background(), a))
}

func TestBestAvailableFirstWinnerReturnsEarly(t *testing.T) {
	m, err := New(nil)
	require.NoError(t, err)
	m.SetCheckTimeout(5 * time.Second)

	slow := newHealthyEndpoint("http://slow:1", 1)
	slow.checkDelay = 2 * time.Second
	fast := newHealthyEndpoint("http://fast:1", 1)
	require.NoError(t, m.AddEndpoint(slow))
	require.NoError(t, m.AddEndpoint(fast))

	start := time.Now()
	best := m.BestAvailable(context.Background())
	require.NotNil(t, best)
	require.Equal(t, "http://fast:1", best.Address())
	// the slow probe's result is dropped, not awaited
	require.Less(t, time.Since(start), time.Second)
}
