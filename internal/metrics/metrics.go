// Package metrics exposes Prometheus instrumentation for batch refreshes,
// assignment allocation and recorded decisions.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Refresh outcomes used as the result label of onboarding_batch_refresh_total.
const (
	ResultCreated         = "created"
	ResultReused          = "reused"
	ResultRetrievalError  = "retrieval_error"
	ResultGenerationError = "generation_error"
	ResultStoreError      = "store_error"
)

// Metrics groups the onboarding collectors. A nil *Metrics is a valid no-op.
type Metrics struct {
	registry *prometheus.Registry

	batchRefresh        *prometheus.CounterVec
	batchSize           prometheus.Gauge
	fetchDuration       prometheus.Histogram
	assignmentsCreated  prometheus.Counter
	responses           *prometheus.CounterVec
	onboardingCompleted prometheus.Counter
}

// New registers all collectors on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		batchRefresh: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "onboarding_batch_refresh_total",
			Help: "Batch refresh attempts by result.",
		}, []string{"result"}),
		batchSize: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "onboarding_batch_items",
			Help: "Number of candidate items in the most recently generated batch.",
		}),
		fetchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "onboarding_candidate_fetch_duration_seconds",
			Help:    "Latency of candidate source fetches.",
			Buckets: []float64{.1, .25, .5, 1, 2.5, 5, 10, 30},
		}),
		assignmentsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "onboarding_assignments_created_total",
			Help: "Assignments created for users.",
		}),
		responses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "onboarding_responses_total",
			Help: "Submitted decisions by decision and outcome (recorded or duplicate).",
		}, []string{"decision", "outcome"}),
		onboardingCompleted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "onboarding_completed_total",
			Help: "Responses that left the user with no pending assignments.",
		}),
	}
	m.registry.MustRegister(
		m.batchRefresh,
		m.batchSize,
		m.fetchDuration,
		m.assignmentsCreated,
		m.responses,
		m.onboardingCompleted,
	)
	return m
}

// Handler serves the registry in Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry for tests and extra collectors.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

func (m *Metrics) BatchRefresh(result string) {
	if m == nil {
		return
	}
	m.batchRefresh.WithLabelValues(result).Inc()
}

func (m *Metrics) BatchGenerated(items int) {
	if m == nil {
		return
	}
	m.batchSize.Set(float64(items))
}

func (m *Metrics) ObserveFetch(d time.Duration) {
	if m == nil {
		return
	}
	m.fetchDuration.Observe(d.Seconds())
}

func (m *Metrics) AssignmentsCreated(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.assignmentsCreated.Add(float64(n))
}

func (m *Metrics) Response(decision string, duplicate bool) {
	if m == nil {
		return
	}
	outcome := "recorded"
	if duplicate {
		outcome = "duplicate"
	}
	m.responses.WithLabelValues(decision, outcome).Inc()
}

func (m *Metrics) OnboardingCompleted() {
	if m == nil {
		return
	}
	m.onboardingCompleted.Inc()
}
