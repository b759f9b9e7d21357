// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	// Source metrics
	SourceRequests     *prometheus.CounterVec
	SourceRetries      *prometheus.CounterVec
	SourceLatency      *prometheus.HistogramVec
	BreakerState       *prometheus.GaugeVec
	BreakerTransitions *prometheus.CounterVec

	// Rate limiter metrics
	LimiterWaitSeconds *prometheus.HistogramVec
	LimiterSaturation  *prometheus.CounterVec
	LimiterAdmissions  *prometheus.CounterVec

	// Matching metrics
	MatchOutcomes *prometheus.CounterVec
	MatchScore    prometheus.Histogram

	// Persistence metrics
	RecordsSaved    *prometheus.CounterVec
	SaveFailures    *prometheus.CounterVec
	SaveDuration    prometheus.Histogram
	DeadlockRetries prometheus.Counter
	SlugCollisions  prometheus.Counter

	// Pipeline metrics
	PipelineRunsTotal *prometheus.CounterVec
	PipelineDuration  *prometheus.HistogramVec
	ItemsProcessed    *prometheus.CounterVec
	ActiveWorkers     prometheus.Gauge
	ActiveRuns        prometheus.Gauge

	// Database metrics
	DBQueryDuration *prometheus.HistogramVec
	DBQueryErrors   *prometheus.CounterVec
}

// NewMetrics creates a new Metrics instance with all metrics registered.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "catalog"
	}

	return &Metrics{
		// Source metrics
		SourceRequests: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "source",
			Name:      "requests_total",
			Help:      "Total number of source API requests by source and outcome",
		}, []string{"source", "outcome"}),
		SourceRetries: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "source",
			Name:      "retries_total",
			Help:      "Total number of retried source API attempts",
		}, []string{"source"}),
		SourceLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "source",
			Name:      "request_latency_seconds",
			Help:      "Source API request latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"source", "operation"}),
		BreakerState: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "source",
			Name:      "breaker_state",
			Help:      "Circuit breaker state (0 closed, 1 half-open, 2 open)",
		}, []string{"source"}),
		BreakerTransitions: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "source",
			Name:      "breaker_transitions_total",
			Help:      "Total number of circuit breaker state transitions",
		}, []string{"source", "to"}),

		// Rate limiter metrics
		LimiterWaitSeconds: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "ratelimit",
			Name:      "wait_seconds",
			Help:      "Time spent waiting for rate limiter admission",
			Buckets:   []float64{.001, .01, .1, .5, 1, 5, 15, 60, 180, 360},
		}, []string{"limiter"}),
		LimiterSaturation: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ratelimit",
			Name:      "saturation_total",
			Help:      "Window saturation threshold crossings by limiter",
		}, []string{"limiter", "threshold"}),
		LimiterAdmissions: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ratelimit",
			Name:      "admissions_total",
			Help:      "Total admissions by limiter",
		}, []string{"limiter"}),

		// Matching metrics
		MatchOutcomes: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "matching",
			Name:      "outcomes_total",
			Help:      "Matching decisions by status",
		}, []string{"status"}),
		MatchScore: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "matching",
			Name:      "score",
			Help:      "Distribution of matching scores",
			Buckets:   []float64{0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8, 0.9, 1.0},
		}),

		// Persistence metrics
		RecordsSaved: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "persistence",
			Name:      "records_saved_total",
			Help:      "Saved records by action (created, updated, skipped)",
		}, []string{"action"}),
		SaveFailures: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "persistence",
			Name:      "save_failures_total",
			Help:      "Per-record save failures by reason",
		}, []string{"reason"}),
		SaveDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "persistence",
			Name:      "save_duration_seconds",
			Help:      "Per-record save transaction duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}),
		DeadlockRetries: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "persistence",
			Name:      "deadlock_retries_total",
			Help:      "Total number of deadlock-triggered transaction retries",
		}),
		SlugCollisions: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "persistence",
			Name:      "slug_collisions_total",
			Help:      "Total number of slug collisions resolved by suffixing",
		}),

		// Pipeline metrics
		PipelineRunsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "runs_total",
			Help:      "Total number of pipeline runs by type and status",
		}, []string{"pipeline", "status"}),
		PipelineDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "duration_seconds",
			Help:      "Pipeline run duration in seconds",
			Buckets:   []float64{1, 5, 10, 30, 60, 120, 300, 600, 1800},
		}, []string{"pipeline"}),
		ItemsProcessed: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "items_processed_total",
			Help:      "Processed items by pipeline and status",
		}, []string{"pipeline", "status"}),
		ActiveWorkers: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "active_workers",
			Help:      "Current number of active fetch workers",
		}),
		ActiveRuns: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "active_runs",
			Help:      "Current number of in-flight pipeline runs",
		}),

		// Database metrics
		DBQueryDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_duration_seconds",
			Help:      "Database query duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"}),
		DBQueryErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_errors_total",
			Help:      "Total number of database query errors",
		}, []string{"operation"}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// DefaultMetrics is the default metrics instance.
var DefaultMetrics = NewMetrics("")

// RecordSourceRequest records one terminal source API outcome.
func RecordSourceRequest(source, outcome string, seconds float64) {
	DefaultMetrics.SourceRequests.WithLabelValues(source, outcome).Inc()
	DefaultMetrics.SourceLatency.WithLabelValues(source, "request").Observe(seconds)
}

// RecordSourceRetry increments the retry counter for a source.
func RecordSourceRetry(source string) {
	DefaultMetrics.SourceRetries.WithLabelValues(source).Inc()
}

// SetBreakerState sets the breaker state gauge (0 closed, 1 half-open, 2 open).
func SetBreakerState(source string, state float64) {
	DefaultMetrics.BreakerState.WithLabelValues(source).Set(state)
}

// RecordBreakerTransition counts a breaker state change.
func RecordBreakerTransition(source, to string) {
	DefaultMetrics.BreakerTransitions.WithLabelValues(source, to).Inc()
}

// ObserveLimiterWait records time spent blocked on a limiter.
func ObserveLimiterWait(limiter string, seconds float64) {
	DefaultMetrics.LimiterWaitSeconds.WithLabelValues(limiter).Observe(seconds)
	DefaultMetrics.LimiterAdmissions.WithLabelValues(limiter).Inc()
}

// RecordLimiterSaturation counts a saturation threshold crossing.
func RecordLimiterSaturation(limiter, threshold string) {
	DefaultMetrics.LimiterSaturation.WithLabelValues(limiter, threshold).Inc()
}

// RecordMatchOutcome records one matching decision.
func RecordMatchOutcome(status string, score float64) {
	DefaultMetrics.MatchOutcomes.WithLabelValues(status).Inc()
	DefaultMetrics.MatchScore.Observe(score)
}

// RecordSave records a successful per-record save by action.
func RecordSave(action string, seconds float64) {
	DefaultMetrics.RecordsSaved.WithLabelValues(action).Inc()
	DefaultMetrics.SaveDuration.Observe(seconds)
}

// RecordSaveFailure records a classified per-record failure.
func RecordSaveFailure(reason string) {
	DefaultMetrics.SaveFailures.WithLabelValues(reason).Inc()
}

// RecordDeadlockRetry increments the deadlock retry counter.
func RecordDeadlockRetry() {
	DefaultMetrics.DeadlockRetries.Inc()
}

// RecordSlugCollision increments the slug collision counter.
func RecordSlugCollision() {
	DefaultMetrics.SlugCollisions.Inc()
}

// RecordPipelineRun records a finished pipeline run.
func RecordPipelineRun(pipeline, status string, durationSeconds float64) {
	DefaultMetrics.PipelineRunsTotal.WithLabelValues(pipeline, status).Inc()
	DefaultMetrics.PipelineDuration.WithLabelValues(pipeline).Observe(durationSeconds)
}

// RecordItemProcessed records one processed item outcome.
func RecordItemProcessed(pipeline, status string) {
	DefaultMetrics.ItemsProcessed.WithLabelValues(pipeline, status).Inc()
}

// SetActiveWorkers updates the active worker gauge.
func SetActiveWorkers(n int) {
	DefaultMetrics.ActiveWorkers.Set(float64(n))
}

// AddActiveRun adjusts the in-flight run gauge by delta.
func AddActiveRun(delta float64) {
	DefaultMetrics.ActiveRuns.Add(delta)
}

// RecordDBQuery records database query metrics.
func RecordDBQuery(operation string, seconds float64, err error) {
	DefaultMetrics.DBQueryDuration.WithLabelValues(operation).Observe(seconds)
	if err != nil {
		DefaultMetrics.DBQueryErrors.WithLabelValues(operation).Inc()
	}
}
