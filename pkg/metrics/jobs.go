package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// JobMetrics records runs of background maintenance jobs.
type JobMetrics struct {
	runs     *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

// NewJobMetrics registers the job metrics on the provided registerer.
func NewJobMetrics(reg prometheus.Registerer) *JobMetrics {
	if reg == nil {
		return &JobMetrics{}
	}
	runs := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "cart_sweep_job_runs_total",
		Help: "Cart maintenance job runs by job and outcome.",
	}, []string{"job", "outcome"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "cart_sweep_job_duration_seconds",
		Help:    "Cart maintenance job duration in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"job"})
	reg.MustRegister(runs, duration)
	return &JobMetrics{runs: runs, duration: duration}
}

// ObserveRun records one job run.
func (j *JobMetrics) ObserveRun(job, outcome string, elapsed time.Duration) {
	if j == nil || j.runs == nil {
		return
	}
	job = normalizeLabel(job)
	j.runs.WithLabelValues(job, normalizeLabel(outcome)).Inc()
	j.duration.WithLabelValues(job).Observe(elapsed.Seconds())
}
