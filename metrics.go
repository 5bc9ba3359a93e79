package gatekeeper

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics is the observability collaborator the pipeline reports into: one
// terminal outcome per request plus handler latency. Aggregation, export,
// and storage are left to the implementation.
type Metrics interface {
	// ObserveAdmission records a terminal pipeline outcome for an
	// endpoint: outcome is one of the stable [ErrorID] values, or "handled"
	// on success.
	ObserveAdmission(endpoint string, outcome string)
	// ObserveHandlerLatency records how long a handler took to run.
	ObserveHandlerLatency(endpoint string, d time.Duration)
}

// NoopMetrics discards every observation. It is the default when no
// [Metrics] is configured via [WithMetrics].
type NoopMetrics struct{}

// ObserveAdmission implements [Metrics].
func (NoopMetrics) ObserveAdmission(string, string) {}

// ObserveHandlerLatency implements [Metrics].
func (NoopMetrics) ObserveHandlerLatency(string, time.Duration) {}

// PrometheusMetrics is the default production [Metrics] implementation,
// backed by github.com/prometheus/client_golang.
type PrometheusMetrics struct {
	admissions *prometheus.CounterVec
	latency    *prometheus.HistogramVec
}

// NewPrometheusMetrics registers the gatekeeper_* collectors on reg and
// returns a [Metrics] backed by them. Pass prometheus.DefaultRegisterer to
// use the global registry.
func NewPrometheusMetrics(reg prometheus.Registerer) *PrometheusMetrics {
	admissions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "gatekeeper_admissions_total",
		Help: "Count of admission pipeline outcomes by endpoint and terminal state.",
	}, []string{"endpoint", "outcome"})
	latency := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "gatekeeper_handler_latency_seconds",
		Help:    "Handler execution latency in seconds, for admitted requests.",
		Buckets: prometheus.DefBuckets,
	}, []string{"endpoint"})
	reg.MustRegister(admissions, latency)
	return &PrometheusMetrics{admissions: admissions, latency: latency}
}

// ObserveAdmission implements [Metrics].
func (m *PrometheusMetrics) ObserveAdmission(endpoint, outcome string) {
	m.admissions.WithLabelValues(endpoint, outcome).Inc()
}

// ObserveHandlerLatency implements [Metrics].
func (m *PrometheusMetrics) ObserveHandlerLatency(endpoint string, d time.Duration) {
	m.latency.WithLabelValues(endpoint).Observe(d.Seconds())
}
