// Package metrics exposes the Prometheus instrumentation surface,
// grounded in api_gateway/src/monitor/monitor.go's Metrics struct but
// trimmed to the signals this aggregator actually emits: request
// volume and latency, vendor errors, breaker state, and rate limit
// hits.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Metrics holds every Prometheus collector the service registers.
type Metrics struct {
	RequestsTotal       *prometheus.CounterVec
	RequestDuration      *prometheus.HistogramVec
	VendorErrorsTotal    *prometheus.CounterVec
	VendorDuration       *prometheus.HistogramVec
	CircuitBreakerState  *prometheus.GaugeVec
	RateLimitHits        *prometheus.CounterVec
	CacheHitsTotal       *prometheus.CounterVec
}

// New builds and registers every collector against reg. Pass
// prometheus.NewRegistry() in tests to avoid collisions with the
// global default registry across test runs.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		RequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "vendor_aggregator_requests_total",
				Help: "Total number of HTTP requests processed.",
			},
			[]string{"method", "path", "status"},
		),
		RequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "vendor_aggregator_request_duration_seconds",
				Help:    "HTTP request duration in seconds.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		VendorErrorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "vendor_aggregator_vendor_errors_total",
				Help: "Total number of vendor fetch/normalize failures.",
			},
			[]string{"vendor", "reason"},
		),
		VendorDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "vendor_aggregator_vendor_duration_seconds",
				Help:    "Per-vendor fetch duration in seconds.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"vendor"},
		),
		CircuitBreakerState: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "vendor_aggregator_circuit_breaker_state",
				Help: "Circuit breaker state per vendor (0=closed, 1=open, 2=half_open).",
			},
			[]string{"vendor"},
		),
		RateLimitHits: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "vendor_aggregator_rate_limit_hits_total",
				Help: "Total number of requests rejected by the rate limiter.",
			},
			[]string{"api_key"},
		),
		CacheHitsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "vendor_aggregator_cache_hits_total",
				Help: "Total number of product cache lookups by outcome.",
			},
			[]string{"outcome"}, // "hit" | "miss"
		),
	}

	reg.MustRegister(
		m.RequestsTotal,
		m.RequestDuration,
		m.VendorErrorsTotal,
		m.VendorDuration,
		m.CircuitBreakerState,
		m.RateLimitHits,
		m.CacheHitsTotal,
	)

	return m
}

// BreakerStateValue maps a circuit.State's string form to the gauge
// encoding used by CircuitBreakerState.
func BreakerStateValue(state string) float64 {
	switch state {
	case "OPEN":
		return 1
	case "HALF_OPEN":
		return 2
	default:
		return 0
	}
}
