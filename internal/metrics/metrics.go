package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

var (
	// Registry is the dedicated Prometheus registry for the API
	Registry = prometheus.NewRegistry()
	// HTTPRequests counts requests by method, path, and status
	HTTPRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "http_requests_total", Help: "Total HTTP requests."},
		[]string{"method", "path", "status"},
	)
	// HTTPDuration records request durations in seconds
	HTTPDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{Name: "http_request_duration_seconds", Help: "HTTP request duration in seconds.", Buckets: prometheus.DefBuckets},
		[]string{"method", "path", "status"},
	)

	// RouterCalls counts router queries by kind (cost|path), profile, and outcome (ok|unreachable|error|cache_hit)
	RouterCalls = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "mtsp_router_calls_total", Help: "Router calls by kind, profile, and outcome."},
		[]string{"kind", "profile", "outcome"},
	)
	// RouterLatency tracks router call latency in milliseconds
	RouterLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{Name: "mtsp_router_latency_ms", Help: "Router call latency in ms.", Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000}},
		[]string{"kind", "profile"},
	)
	// SolvePhase records the duration of each planner phase in seconds
	SolvePhase = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{Name: "mtsp_solve_phase_seconds", Help: "Planner phase duration in seconds.", Buckets: prometheus.DefBuckets},
		[]string{"strategy", "phase"},
	)
	// SolveOutcomes counts finished solves by strategy and outcome
	SolveOutcomes = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "mtsp_solves_total", Help: "Solves by strategy and outcome."},
		[]string{"strategy", "outcome"},
	)
	// CapHits counts solves that stopped early on an iteration cap or time budget
	CapHits = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "mtsp_cap_hits_total", Help: "Solves that hit a rebalance or 2-opt cap."},
		[]string{"cap"},
	)
)

// RegisterDefault registers collectors to the default registry.
func RegisterDefault() {
	regOnce.Do(func() {
		Registry.MustRegister(HTTPRequests)
		Registry.MustRegister(HTTPDuration)
		Registry.MustRegister(RouterCalls)
		Registry.MustRegister(RouterLatency)
		Registry.MustRegister(SolvePhase)
		Registry.MustRegister(SolveOutcomes)
		Registry.MustRegister(CapHits)
		// Go/process collectors on our registry
		Registry.MustRegister(collectors.NewGoCollector())
		Registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	})
}

var regOnce sync.Once
