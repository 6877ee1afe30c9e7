// Package metrics provides Prometheus metrics for the playstyle pipeline.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Manager manages all Prometheus metrics for the pipeline and its API.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	constLabels      map[string]string
	registry         prometheus.Registerer

	// Pipeline runs
	runs          *prometheus.CounterVec
	stageDuration *prometheus.HistogramVec

	// Batch shape of the last run
	inputObservations prometheus.Gauge
	profileRows       prometheus.Gauge
	playTypes         prometheus.Gauge
	flaggedRows       prometheus.Gauge
	sparseThreshold   prometheus.Gauge

	// Clustering and projection diagnostics of the last run
	selectedK         prometheus.Gauge
	inertia           *prometheus.GaugeVec
	explainedVariance *prometheus.GaugeVec
	kmeansRuns        prometheus.Counter

	// HTTP
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// Errors
	errors *prometheus.CounterVec
}

// Global metrics manager instance.
var globalManager *Manager //nolint:gochecknoglobals // intentional global for singleton metrics manager

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // intentional global for metrics registry

// Initialize global metrics.
func init() { //nolint:gochecknoinits // intentional init for global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a new metrics manager with default configuration.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "playstyle",
		subsystem:        "pipeline",
		histogramBuckets: prometheus.DefBuckets,
		constLabels:      map[string]string{},
		registry:         prometheus.DefaultRegisterer,
	}

	// Apply all options
	for _, opt := range opts {
		opt(m)
	}

	m.initializeMetrics()
	return m
}

// initializeMetrics creates all the Prometheus metrics.
func (m *Manager) initializeMetrics() { //nolint:funlen // one place for every metric definition
	auto := promauto.With(m.registry)

	m.runs = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "runs_total",
		Help:        "Pipeline runs by outcome",
		ConstLabels: m.constLabels,
	}, []string{"status"})

	m.stageDuration = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "stage_duration_seconds",
		Help:        "Wall time of each pipeline stage",
		Buckets:     m.histogramBuckets,
		ConstLabels: m.constLabels,
	}, []string{"stage"})

	m.inputObservations = auto.NewGauge(prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "input_observations",
		Help:        "Long-form observations read by the last run",
		ConstLabels: m.constLabels,
	})

	m.profileRows = auto.NewGauge(prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "profile_rows",
		Help:        "Player-team-season rows produced by the last run",
		ConstLabels: m.constLabels,
	})

	m.playTypes = auto.NewGauge(prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "play_types",
		Help:        "Play-type columns discovered by the last run",
		ConstLabels: m.constLabels,
	})

	m.flaggedRows = auto.NewGauge(prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "sparse_flagged_rows",
		Help:        "Rows below the SummedFrequency quantile in the last run",
		ConstLabels: m.constLabels,
	})

	m.sparseThreshold = auto.NewGauge(prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "sparse_threshold",
		Help:        "SummedFrequency quantile of the last run",
		ConstLabels: m.constLabels,
	})

	m.selectedK = auto.NewGauge(prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "selected_k",
		Help:        "Cluster count used by the last run",
		ConstLabels: m.constLabels,
	})

	m.inertia = auto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "inertia",
		Help:        "Best within-cluster sum of squares per candidate k in the last sweep",
		ConstLabels: m.constLabels,
	}, []string{"k"})

	m.explainedVariance = auto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "explained_variance_ratio",
		Help:        "Share of variance captured by each projection component",
		ConstLabels: m.constLabels,
	}, []string{"component"})

	m.kmeansRuns = auto.NewCounter(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "kmeans_runs_total",
		Help:        "Multi-restart k-means fits performed",
		ConstLabels: m.constLabels,
	})

	m.httpRequests = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   "http",
		Name:        "requests_total",
		Help:        "HTTP requests by endpoint, method and status",
		ConstLabels: m.constLabels,
	}, []string{"endpoint", "method", "status_code"})

	m.httpRequestDuration = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   "http",
		Name:        "request_duration_seconds",
		Help:        "HTTP request duration",
		Buckets:     m.histogramBuckets,
		ConstLabels: m.constLabels,
	}, []string{"endpoint", "method", "status_code"})

	m.errors = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "errors_total",
		Help:        "Errors by component and kind",
		ConstLabels: m.constLabels,
	}, []string{"component", "kind"})
}

// Pipeline Metrics Functions.

// RecordRun counts a finished run with status "ok" or "error".
func RecordRun(status string) {
	globalManager.runs.WithLabelValues(status).Inc()
}

// ObserveStage records how long a stage took.
func ObserveStage(stage string, d time.Duration) {
	globalManager.stageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

// UpdateInputObservations sets the long-form row count of the last run.
func UpdateInputObservations(n int) {
	globalManager.inputObservations.Set(float64(n))
}

// UpdateBatchShape sets the wide-form row and column counts of the last run.
func UpdateBatchShape(rows, playTypes int) {
	globalManager.profileRows.Set(float64(rows))
	globalManager.playTypes.Set(float64(playTypes))
}

// UpdateSparse sets the sparse-policy outcome of the last run.
func UpdateSparse(threshold float64, flagged int) {
	globalManager.sparseThreshold.Set(threshold)
	globalManager.flaggedRows.Set(float64(flagged))
}

// UpdateSelectedK sets the cluster count of the last run.
func UpdateSelectedK(k int) {
	globalManager.selectedK.Set(float64(k))
}

// UpdateInertiaCurve replaces the per-k inertia gauges.
func UpdateInertiaCurve(curve map[int]float64) {
	globalManager.inertia.Reset()
	for k, v := range curve {
		globalManager.inertia.WithLabelValues(strconv.Itoa(k)).Set(v)
	}
}

// UpdateExplainedVariance sets the ratio for component "pc1", "pc2".
func UpdateExplainedVariance(ratios [2]float64) {
	globalManager.explainedVariance.WithLabelValues("pc1").Set(ratios[0])
	globalManager.explainedVariance.WithLabelValues("pc2").Set(ratios[1])
}

// RecordKMeansRun counts one multi-restart fit.
func RecordKMeansRun() {
	globalManager.kmeansRuns.Inc()
}

// HTTP Metrics Functions.

// RecordHTTPRequest records an HTTP request with endpoint, method, and status code labels.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, d time.Duration) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(d.Seconds())
}

// Error Metrics Functions.

// RecordError records an error with component and kind labels.
func RecordError(component, kind string) {
	globalManager.errors.WithLabelValues(component, kind).Inc()
}

// GetRegistry returns the custom Prometheus registry used by our metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
