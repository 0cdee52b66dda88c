package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the application. A nil *Metrics is
// valid and records nothing, so services and tests can omit it.
type Metrics struct {
	RecordsCreated      *prometheus.CounterVec
	NumberRetries       *prometheus.CounterVec
	AssociationsChanged *prometheus.CounterVec
	UpstreamCalls       *prometheus.CounterVec
	VersionsPublished   prometheus.Counter
	RequestLatency      *prometheus.HistogramVec
}

// New registers the metrics with the default registry. Call once per process.
func New() *Metrics {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

// NewWithRegistry registers the metrics with reg.
func NewWithRegistry(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		RecordsCreated: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "compliance_records_created_total",
			Help: "Records created, by kind",
		}, []string{"kind"}),
		NumberRetries: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "compliance_number_retries_total",
			Help: "Create attempts retried after a record number conflict",
		}, []string{"kind"}),
		AssociationsChanged: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "compliance_association_rows_total",
			Help: "Association rows inserted or soft-deleted by reconciliation",
		}, []string{"family", "change"}),
		UpstreamCalls: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "compliance_upstream_calls_total",
			Help: "Calls to external services, by dependency and outcome",
		}, []string{"dependency", "outcome"}),
		VersionsPublished: factory.NewCounter(prometheus.CounterOpts{
			Name: "compliance_versions_published_total",
			Help: "Record version rows published to Kafka",
		}),
		RequestLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "compliance_http_request_duration_seconds",
			Help:    "HTTP request latency",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
	}
}

func (m *Metrics) IncrementRecordsCreated(kind string) {
	if m == nil {
		return
	}
	m.RecordsCreated.WithLabelValues(kind).Inc()
}

func (m *Metrics) IncrementNumberRetries(kind string) {
	if m == nil {
		return
	}
	m.NumberRetries.WithLabelValues(kind).Inc()
}

// ObserveReconcile counts the rows one reconcile call wrote.
func (m *Metrics) ObserveReconcile(family string, added, removed int) {
	if m == nil {
		return
	}
	if added > 0 {
		m.AssociationsChanged.WithLabelValues(family, "added").Add(float64(added))
	}
	if removed > 0 {
		m.AssociationsChanged.WithLabelValues(family, "removed").Add(float64(removed))
	}
}

func (m *Metrics) ObserveUpstream(dependency, outcome string) {
	if m == nil {
		return
	}
	m.UpstreamCalls.WithLabelValues(dependency, outcome).Inc()
}

func (m *Metrics) AddVersionsPublished(n int) {
	if m == nil {
		return
	}
	m.VersionsPublished.Add(float64(n))
}

func (m *Metrics) ObserveRequest(method, route string, status int, d time.Duration) {
	if m == nil {
		return
	}
	m.RequestLatency.WithLabelValues(method, route, statusClass(status)).Observe(d.Seconds())
}

func statusClass(status int) string {
	switch {
	case status >= 500:
		return "5xx"
	case status >= 400:
		return "4xx"
	case status >= 300:
		return "3xx"
	default:
		return "2xx"
	}
}
