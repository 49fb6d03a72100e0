// Package metrics exposes Prometheus instrumentation for evaluations and the
// HTTP API.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "rice_eval"

// Metrics holds every collector on a private registry so that several
// instances can coexist in one process.
type Metrics struct {
	registry *prometheus.Registry

	// Evaluation metrics
	Evaluations        *prometheus.CounterVec
	QueriesScored      *prometheus.CounterVec
	EvaluationDuration *prometheus.HistogramVec

	// HTTP metrics
	HTTPRequests         *prometheus.CounterVec
	HTTPDuration         *prometheus.HistogramVec
	HTTPRequestsInFlight prometheus.Gauge
}

// New creates a metrics set with Go runtime and process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return newMetrics(reg)
}

func newMetrics(reg *prometheus.Registry) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		registry: reg,
		Evaluations: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "evaluations_total",
			Help:      "Metric computations over a full run",
		}, []string{"metric"}),
		QueriesScored: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "queries_scored_total",
			Help:      "Queries scored per metric",
		}, []string{"metric"}),
		EvaluationDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "evaluation_duration_seconds",
			Help:      "Time to score every query of a run for one metric",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 4, 10),
		}, []string{"metric"}),
		HTTPRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by method, route and status",
		}, []string{"method", "path", "status"}),
		HTTPDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "path"}),
		HTTPRequestsInFlight: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "http_requests_in_flight",
			Help:      "HTTP requests currently being served",
		}),
	}
}

// Registry returns the registry backing m.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// RecordEvaluation records one metric computed over queries queries.
func (m *Metrics) RecordEvaluation(metric string, queries int, elapsed time.Duration) {
	m.Evaluations.WithLabelValues(metric).Inc()
	m.QueriesScored.WithLabelValues(metric).Add(float64(queries))
	m.EvaluationDuration.WithLabelValues(metric).Observe(elapsed.Seconds())
}

// RecordHTTP records one served request.
func (m *Metrics) RecordHTTP(method, path string, status int, elapsed time.Duration) {
	m.HTTPRequests.WithLabelValues(method, path, statusCode(status)).Inc()
	m.HTTPDuration.WithLabelValues(method, path).Observe(elapsed.Seconds())
}
