package metrics

import (
	"time"

	"github.com/cockroachdb/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// PrometheusMetrics implements CheckMetrics with collectors held in
// a private registry. A run is a short-lived process, so the
// registry is flushed with WriteTextfile for the node exporter's
// textfile collector rather than served.
type PrometheusMetrics struct {
	registry *prometheus.Registry

	checks        *prometheus.CounterVec
	checkDuration *prometheus.HistogramVec
	pages         *prometheus.CounterVec
	records       *prometheus.CounterVec
	fetchErrors   *prometheus.CounterVec
	treatments    *prometheus.CounterVec
	runs          prometheus.Counter
	selected      prometheus.Gauge
}

// NewPrometheusMetrics creates a PrometheusMetrics with a fresh
// registry.
func NewPrometheusMetrics() *PrometheusMetrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &PrometheusMetrics{
		registry: reg,
		checks: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "beekeeper_checks_total",
				Help: "Total number of evaluated checks",
			},
			[]string{"code", "status"},
		),
		checkDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "beekeeper_check_duration_seconds",
				Help:    "Check evaluation time in seconds",
				Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
			},
			[]string{"code"},
		),
		pages: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "beekeeper_pages_fetched_total",
				Help: "Total number of datastore pages fetched",
			},
			[]string{"resource"},
		),
		records: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "beekeeper_records_scanned_total",
				Help: "Total number of records fetched for validation",
			},
			[]string{"resource"},
		),
		fetchErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "beekeeper_fetch_errors_total",
				Help: "Total number of failed catalog calls",
			},
			[]string{"op"},
		),
		treatments: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "beekeeper_treatments_total",
				Help: "Total number of applied treatments",
			},
			[]string{"action", "result"},
		),
		runs: factory.NewCounter(prometheus.CounterOpts{
			Name: "beekeeper_runs_total",
			Help: "Total number of runs",
		}),
		selected: factory.NewGauge(prometheus.GaugeOpts{
			Name: "beekeeper_selected_checks",
			Help: "Number of checks selected for the last run",
		}),
	}
}

func (m *PrometheusMetrics) RecordCheck(code, status string, duration time.Duration) {
	m.checks.WithLabelValues(code, status).Inc()
	m.checkDuration.WithLabelValues(code).Observe(duration.Seconds())
}

func (m *PrometheusMetrics) RecordPage(resourceID string, records int) {
	m.pages.WithLabelValues(resourceID).Inc()
	m.records.WithLabelValues(resourceID).Add(float64(records))
}

func (m *PrometheusMetrics) RecordFetchError(op string) {
	m.fetchErrors.WithLabelValues(op).Inc()
}

func (m *PrometheusMetrics) RecordTreatment(action string, ok bool) {
	result := "error"
	if ok {
		result = "ok"
	}
	m.treatments.WithLabelValues(action, result).Inc()
}

func (m *PrometheusMetrics) IncrementRunTotal() {
	m.runs.Inc()
}

func (m *PrometheusMetrics) SetSelectedChecks(count int) {
	m.selected.Set(float64(count))
}

// Registry returns the registry holding all collectors.
func (m *PrometheusMetrics) Registry() *prometheus.Registry {
	return m.registry
}

// WriteTextfile writes the registry in the text exposition format
// to path. The write goes through a temporary file and a rename.
func (m *PrometheusMetrics) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return errors.Wrapf(err, "write metrics to %s", path)
	}
	return nil
}
