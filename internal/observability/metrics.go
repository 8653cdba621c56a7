package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics is the worker's Prometheus collector set on a private registry. It
// satisfies the metric hooks of the provider client, the fixture feed and the
// settlement service.
type Metrics struct {
	registry *prometheus.Registry

	cycles             *prometheus.CounterVec
	cycleDuration      prometheus.Histogram
	lastCycle          prometheus.Gauge
	predictionOutcomes *prometheus.CounterVec
	upstreamRequests   *prometheus.CounterVec
	upstreamLatency    *prometheus.HistogramVec
	circuitState       *prometheus.GaugeVec
	cacheLookups       *prometheus.CounterVec
}

func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		cycles: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "settlement_cycles_total",
				Help: "Settlement cycles by final status",
			},
			[]string{"status"},
		),
		cycleDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "settlement_cycle_duration_seconds",
				Help:    "Wall time of one settlement cycle",
				Buckets: prometheus.ExponentialBuckets(0.05, 2, 12),
			},
		),
		lastCycle: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "settlement_last_cycle_timestamp_seconds",
				Help: "Unix time the last cycle finished",
			},
		),
		predictionOutcomes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "settlement_prediction_outcomes_total",
				Help: "Per-prediction task outcomes",
			},
			[]string{"outcome"},
		),
		upstreamRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "settlement_upstream_requests_total",
				Help: "Fixture provider requests by endpoint and outcome",
			},
			[]string{"endpoint", "outcome"},
		),
		upstreamLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "settlement_upstream_request_duration_seconds",
				Help:    "Fixture provider request latency including retries",
				Buckets: prometheus.ExponentialBuckets(0.01, 2, 12),
			},
			[]string{"endpoint"},
		),
		circuitState: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "settlement_circuit_state",
				Help: "Circuit breaker state (0 closed, 1 half-open, 2 open)",
			},
			[]string{"name"},
		),
		cacheLookups: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "settlement_fixture_cache_lookups_total",
				Help: "Fixture cache lookups by kind and result",
			},
			[]string{"kind", "result"},
		),
	}

	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.cycles,
		m.cycleDuration,
		m.lastCycle,
		m.predictionOutcomes,
		m.upstreamRequests,
		m.upstreamLatency,
		m.circuitState,
		m.cacheLookups,
	)
	return m
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) ObserveCycle(status string, elapsed time.Duration) {
	m.cycles.WithLabelValues(status).Inc()
	m.cycleDuration.Observe(elapsed.Seconds())
	m.lastCycle.SetToCurrentTime()
}

func (m *Metrics) AddPredictionOutcome(outcome string, n int) {
	if n <= 0 {
		return
	}
	m.predictionOutcomes.WithLabelValues(outcome).Add(float64(n))
}

func (m *Metrics) ObserveUpstreamRequest(endpoint, outcome string, elapsed time.Duration) {
	m.upstreamRequests.WithLabelValues(endpoint, outcome).Inc()
	m.upstreamLatency.WithLabelValues(endpoint).Observe(elapsed.Seconds())
}

func (m *Metrics) SetCircuitState(name, state string) {
	value := 0.0
	switch state {
	case "half_open":
		value = 1
	case "open":
		value = 2
	}
	m.circuitState.WithLabelValues(name).Set(value)
}

func (m *Metrics) ObserveCacheLookup(kind, result string) {
	m.cacheLookups.WithLabelValues(kind, result).Inc()
}
