package metricsvc

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/trezcool/kadi/core"
)

const namespace = "kadi"

// PrometheusMetrics exposes domain events as prometheus counters on its own registry.
type PrometheusMetrics struct {
	registry    *prometheus.Registry
	assessments *prometheus.CounterVec
	finalized   *prometheus.CounterVec
	payments    *prometheus.CounterVec
	promoted    prometheus.Counter
}

var _ core.Metrics = (*PrometheusMetrics)(nil) // interface compliance check

func NewPrometheusMetrics() *PrometheusMetrics {
	m := &PrometheusMetrics{
		registry: prometheus.NewRegistry(),
		assessments: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "assessments_recorded_total",
			Help:      "Assessments recorded, by kind.",
		}, []string{"kind"}),
		finalized: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reports_finalized_total",
			Help:      "Reports moved to FINALIZED, by term and academic year.",
		}, []string{"term", "academic_year"}),
		payments: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fee_payments_recorded_total",
			Help:      "Fee payments recorded, by resulting status.",
		}, []string{"status"}),
		promoted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "students_promoted_total",
			Help:      "Students promoted.",
		}),
	}
	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.assessments,
		m.finalized,
		m.payments,
		m.promoted,
	)
	return m
}

func (m *PrometheusMetrics) AssessmentRecorded(kind string) {
	m.assessments.WithLabelValues(kind).Inc()
}

func (m *PrometheusMetrics) ReportFinalized(term, academicYear string) {
	m.finalized.WithLabelValues(term, academicYear).Inc()
}

func (m *PrometheusMetrics) PaymentRecorded(status string) {
	m.payments.WithLabelValues(status).Inc()
}

func (m *PrometheusMetrics) StudentsPromoted(n int) {
	m.promoted.Add(float64(n))
}

// Handler serves the registry in the prometheus exposition format.
func (m *PrometheusMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
