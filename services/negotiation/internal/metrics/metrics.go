package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the negotiation service's collectors. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	registry          *prometheus.Registry
	operations        *prometheus.CounterVec
	stageAdvances     *prometheus.CounterVec
	agreementChanges  *prometheus.CounterVec
	invariantFailures prometheus.Counter
	publishes         *prometheus.CounterVec
	httpRequests      *prometheus.CounterVec
	httpDuration      *prometheus.HistogramVec
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "negotiation_operations_total",
			Help: "Engine operations by name and outcome (ok or the error kind).",
		}, []string{"operation", "outcome"}),
		stageAdvances: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "negotiation_stage_advances_total",
			Help: "Committed stage transitions by target stage.",
		}, []string{"stage"}),
		agreementChanges: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "negotiation_contracts_equal_changes_total",
			Help: "Flips of the contracts_equal flag by new value.",
		}, []string{"equal"}),
		invariantFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "negotiation_invariant_failures_total",
			Help: "Operations aborted by an internal invariant violation.",
		}),
		publishes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "negotiation_event_publish_total",
			Help: "Transaction event publish attempts by result.",
		}, []string{"result"}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total count of HTTP requests processed by route and status.",
		}, []string{"route", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Histogram of HTTP request durations by route.",
			Buckets: prometheus.DefBuckets,
		}, []string{"route"}),
	}
	m.registry.MustRegister(
		m.operations,
		m.stageAdvances,
		m.agreementChanges,
		m.invariantFailures,
		m.publishes,
		m.httpRequests,
		m.httpDuration,
		collectors.NewGoCollector(),
	)
	return m
}

func (m *Metrics) Operation(name, outcome string) {
	if m == nil {
		return
	}
	m.operations.WithLabelValues(name, outcome).Inc()
}

func (m *Metrics) StageAdvanced(stage string) {
	if m == nil {
		return
	}
	m.stageAdvances.WithLabelValues(stage).Inc()
}

func (m *Metrics) ContractsEqualChanged(equal bool) {
	if m == nil {
		return
	}
	m.agreementChanges.WithLabelValues(strconv.FormatBool(equal)).Inc()
}

func (m *Metrics) InvariantFailure() {
	if m == nil {
		return
	}
	m.invariantFailures.Inc()
}

func (m *Metrics) Publish(result string) {
	if m == nil {
		return
	}
	m.publishes.WithLabelValues(result).Inc()
}

func (m *Metrics) ObserveHTTP(route string, status int, d time.Duration) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(route, strconv.Itoa(status)).Inc()
	m.httpDuration.WithLabelValues(route).Observe(d.Seconds())
}

func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry exposes the collectors for tests.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }
