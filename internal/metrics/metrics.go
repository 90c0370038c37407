// Package metrics exposes Prometheus instrumentation for pipeline
// throughput and job-store health. Grounded on the teacher's
// internal/ai/patrol_metrics.go singleton pattern (sync.Once-guarded
// constructor, one CounterVec/Gauge per concern, MustRegister at
// construction).
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the scanner's process-wide Prometheus collectors.
type Metrics struct {
	imagesDiscovered *prometheus.CounterVec
	imagesIngested   *prometheus.CounterVec
	matchesCreated   *prometheus.CounterVec
	jobRuns          *prometheus.CounterVec
	jobFailures      *prometheus.CounterVec
	jobDuration      *prometheus.HistogramVec
	observerBuffer   prometheus.Gauge
	dueJobsBacklog   *prometheus.GaugeVec
}

var (
	instance *Metrics
	once     sync.Once
)

// Get returns the singleton metrics instance, registering its collectors
// with the default Prometheus registry on first call.
func Get() *Metrics {
	once.Do(func() {
		instance = newMetrics()
	})
	return instance
}

func newMetrics() *Metrics {
	m := &Metrics{
		imagesDiscovered: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "scanner",
				Subsystem: "discovery",
				Name:      "images_discovered_total",
				Help:      "Total candidate images returned by discovery sources.",
			},
			[]string{"source"},
		),
		imagesIngested: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "scanner",
				Subsystem: "ingest",
				Name:      "images_processed_total",
				Help:      "Total images processed by the ingest stage, by resulting status.",
			},
			[]string{"status"},
		),
		matchesCreated: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "scanner",
				Subsystem: "matching",
				Name:      "matches_created_total",
				Help:      "Total matches created, by confidence tier.",
			},
			[]string{"confidence_tier"},
		),
		jobRuns: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "scanner",
				Subsystem: "scheduler",
				Name:      "job_runs_total",
				Help:      "Total scheduled job executions, by kind.",
			},
			[]string{"kind"},
		),
		jobFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "scanner",
				Subsystem: "scheduler",
				Name:      "job_failures_total",
				Help:      "Total scheduled job failures, by kind.",
			},
			[]string{"kind"},
		),
		jobDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "scanner",
				Subsystem: "scheduler",
				Name:      "job_duration_seconds",
				Help:      "Job execution duration, by kind.",
				Buckets:   prometheus.ExponentialBuckets(0.1, 2, 12),
			},
			[]string{"kind"},
		),
		observerBuffer: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "scanner",
				Subsystem: "observer",
				Name:      "buffer_size",
				Help:      "Current number of feedback signals buffered in memory.",
			},
		),
		dueJobsBacklog: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "scanner",
				Subsystem: "scheduler",
				Name:      "due_jobs_backlog",
				Help:      "Number of due jobs observed at the start of the most recent tick, by kind.",
			},
			[]string{"kind"},
		),
	}

	prometheus.MustRegister(
		m.imagesDiscovered,
		m.imagesIngested,
		m.matchesCreated,
		m.jobRuns,
		m.jobFailures,
		m.jobDuration,
		m.observerBuffer,
		m.dueJobsBacklog,
	)

	return m
}

// RecordImagesDiscovered records candidates returned by a named discovery
// source.
func (m *Metrics) RecordImagesDiscovered(source string, n int) {
	m.imagesDiscovered.WithLabelValues(source).Add(float64(n))
}

// RecordImageProcessed records one ingest outcome.
func (m *Metrics) RecordImageProcessed(status string) {
	m.imagesIngested.WithLabelValues(status).Inc()
}

// RecordMatchCreated records one persisted match.
func (m *Metrics) RecordMatchCreated(confidenceTier string) {
	m.matchesCreated.WithLabelValues(confidenceTier).Inc()
}

// RecordJobRun records a job execution's kind and duration in seconds.
func (m *Metrics) RecordJobRun(kind string, durationSeconds float64) {
	m.jobRuns.WithLabelValues(kind).Inc()
	m.jobDuration.WithLabelValues(kind).Observe(durationSeconds)
}

// RecordJobFailure records a failed job execution.
func (m *Metrics) RecordJobFailure(kind string) {
	m.jobFailures.WithLabelValues(kind).Inc()
}

// SetObserverBufferSize reports the observer's current buffer occupancy.
func (m *Metrics) SetObserverBufferSize(n int) {
	m.observerBuffer.Set(float64(n))
}

// SetDueJobsBacklog reports how many jobs of a kind were due at tick start.
func (m *Metrics) SetDueJobsBacklog(kind string, n int) {
	m.dueJobsBacklog.WithLabelValues(kind).Set(float64(n))
}
