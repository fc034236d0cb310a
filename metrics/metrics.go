package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// ChecksTotal counts health checks by outcome ("up" or "down").
	ChecksTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "rpcmanager",
		Name:      "checks_total",
		Help:      "Number of endpoint health checks performed, by outcome.",
	}, []string{"result"})

	// FailoversTotal counts automatic switches to another endpoint.
	FailoversTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "rpcmanager",
		Name:      "failovers_total",
		Help:      "Number of automatic failovers to a healthier endpoint.",
	})

	// Connected reports whether a healthy current endpoint exists.
	Connected = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "rpcmanager",
		Name:      "connected",
		Help:      "1 when a healthy current endpoint is set, 0 otherwise.",
	})

	// EndpointLatency reports the last measured check round-trip per endpoint.
	EndpointLatency = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "rpcmanager",
		Name:      "endpoint_latency_seconds",
		Help:      "Round-trip time of the last successful check, per endpoint.",
	}, []string{"address"})
)

func init() {
	prometheus.MustRegister(ChecksTotal, FailoversTotal, Connected, EndpointLatency)
}

// StartMetricsServer starts an HTTP server exposing the prometheus handler.
// It blocks until the server fails.
func StartMetricsServer(addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	return http.ListenAndServe(addr, mux)
}
