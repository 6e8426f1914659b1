package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "auditdesk"

// Metrics holds the application collectors. A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	importRows     *prometheus.CounterVec
	importDuration prometheus.Histogram
	changeLogs     *prometheus.CounterVec
	publishes      prometheus.Counter
	exports        *prometheus.CounterVec
	httpRequests   *prometheus.CounterVec
	httpDuration   *prometheus.HistogramVec
}

// New registers every collector on a fresh registry together with the Go and process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		importRows: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "import_rows_total",
			Help:      "Bulk import rows by outcome (created, updated, error).",
		}, []string{"outcome"}),
		importDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "import_duration_seconds",
			Help:      "Duration of bulk facility imports.",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 10),
		}),
		changeLogs: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "change_logs_written_total",
			Help:      "Change log rows written by entity type.",
		}, []string{"entity_type"}),
		publishes: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "questionnaire_publishes_total",
			Help:      "Questionnaire versions published.",
		}),
		exports: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "exports_total",
			Help:      "Generated exports by kind and format.",
		}, []string{"kind", "format"}),
		httpRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by method, route and status.",
		}, []string{"method", "route", "status"}),
		httpDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route"}),
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) ImportFinished(created, updated, failed int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.importRows.WithLabelValues("created").Add(float64(created))
	m.importRows.WithLabelValues("updated").Add(float64(updated))
	m.importRows.WithLabelValues("error").Add(float64(failed))
	m.importDuration.Observe(elapsed.Seconds())
}

func (m *Metrics) ChangeLogsWritten(entityType string, n int) {
	if m == nil || n == 0 {
		return
	}
	m.changeLogs.WithLabelValues(entityType).Add(float64(n))
}

func (m *Metrics) Published() {
	if m == nil {
		return
	}
	m.publishes.Inc()
}

func (m *Metrics) Exported(kind, format string) {
	if m == nil {
		return
	}
	m.exports.WithLabelValues(kind, format).Inc()
}

func (m *Metrics) ObserveHTTP(method, route string, status int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.httpDuration.WithLabelValues(route).Observe(elapsed.Seconds())
}
