package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the service's Prometheus collectors. A nil *Metrics is valid
// and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	apiRequests *prometheus.CounterVec
	apiLatency  *prometheus.HistogramVec
	apiInflight prometheus.Gauge

	transitions *prometheus.CounterVec
	jobDuration *prometheus.HistogramVec
	jobsTotal   *prometheus.CounterVec
	queueDepth  prometheus.Gauge
}

// NewMetrics builds a Metrics on its own registry.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := &Metrics{
		registry: reg,
		apiRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pythagon_api_requests_total",
			Help: "Total API requests by method/route/status.",
		}, []string{"method", "route", "status"}),
		apiLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "pythagon_api_request_duration_seconds",
			Help:    "API request latency in seconds by method/route/status.",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
		}, []string{"method", "route", "status"}),
		apiInflight: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "pythagon_api_inflight_requests",
			Help: "In-flight API requests.",
		}),
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pythagon_status_transitions_total",
			Help: "Entity status transitions by kind and target status.",
		}, []string{"kind", "status"}),
		jobDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "pythagon_job_duration_seconds",
			Help:    "Background job duration by type and outcome.",
			Buckets: prometheus.DefBuckets,
		}, []string{"job_type", "outcome"}),
		jobsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pythagon_jobs_total",
			Help: "Background jobs by type and outcome.",
		}, []string{"job_type", "outcome"}),
		queueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "pythagon_job_queue_depth",
			Help: "Jobs waiting in the in-memory queue.",
		}),
	}
	reg.MustRegister(m.apiRequests, m.apiLatency, m.apiInflight, m.transitions, m.jobDuration, m.jobsTotal, m.queueDepth)
	return m
}

func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

func (m *Metrics) ApiInflightInc() {
	if m == nil {
		return
	}
	m.apiInflight.Inc()
}

func (m *Metrics) ApiInflightDec() {
	if m == nil {
		return
	}
	m.apiInflight.Dec()
}

func (m *Metrics) ObserveAPI(method, route, status string, dur time.Duration) {
	if m == nil {
		return
	}
	m.apiRequests.WithLabelValues(method, route, status).Inc()
	m.apiLatency.WithLabelValues(method, route, status).Observe(dur.Seconds())
}

func (m *Metrics) IncTransition(kind, status string) {
	if m == nil {
		return
	}
	m.transitions.WithLabelValues(kind, status).Inc()
}

func (m *Metrics) ObserveJob(jobType, outcome string, dur time.Duration) {
	if m == nil {
		return
	}
	m.jobsTotal.WithLabelValues(jobType, outcome).Inc()
	m.jobDuration.WithLabelValues(jobType, outcome).Observe(dur.Seconds())
}

func (m *Metrics) SetQueueDepth(n int) {
	if m == nil {
		return
	}
	m.queueDepth.Set(float64(n))
}
