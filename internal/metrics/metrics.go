package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "treeindex"

// Metrics holds the sync counters and histograms
type Metrics struct {
	runsTotal          *prometheus.CounterVec
	skippedTotal       *prometheus.CounterVec
	recordsTotal       *prometheus.CounterVec
	batchFailuresTotal *prometheus.CounterVec
	runDuration        *prometheus.HistogramVec
	lastSuccess        *prometheus.GaugeVec
}

// New registers the metrics with reg. Pass prometheus.DefaultRegisterer in
// production and a fresh registry in tests.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		runsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sync_runs_total",
			Help:      "Sync triggers by project and outcome",
		}, []string{"project", "status"}),
		skippedTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sync_skipped_total",
			Help:      "Triggers skipped because a run holding the same guard was in progress",
		}, []string{"project"}),
		recordsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_indexed_total",
			Help:      "Records submitted to the search index",
		}, []string{"project"}),
		batchFailuresTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "batch_failures_total",
			Help:      "Upsert batches rejected by the search index",
		}, []string{"project"}),
		runDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "sync_duration_seconds",
			Help:      "Duration of sync runs in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 5, 10, 30, 60, 120, 300, 900},
		}, []string{"project"}),
		lastSuccess: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_success_timestamp_seconds",
			Help:      "Unix time of the last fully successful run",
		}, []string{"project"}),
	}
}

// ObserveRun records the outcome of one trigger
func (m *Metrics) ObserveRun(projectID, status string, duration time.Duration, records, failedBatches int) {
	m.runsTotal.WithLabelValues(projectID, status).Inc()

	if status == "skipped" {
		m.skippedTotal.WithLabelValues(projectID).Inc()
		return
	}

	m.recordsTotal.WithLabelValues(projectID).Add(float64(records))
	m.batchFailuresTotal.WithLabelValues(projectID).Add(float64(failedBatches))
	m.runDuration.WithLabelValues(projectID).Observe(duration.Seconds())
	if status == "succeeded" {
		m.lastSuccess.WithLabelValues(projectID).SetToCurrentTime()
	}
}
