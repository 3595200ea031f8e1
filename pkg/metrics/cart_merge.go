package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

// CartMergeMetrics records guest-cart merge activity.
type CartMergeMetrics struct {
	merges    *prometheus.CounterVec
	conflicts *prometheus.CounterVec
	clamped   prometheus.Counter
	duration  *prometheus.HistogramVec
}

// NewCartMergeMetrics registers the merge metrics on the provided registerer.
// A nil registerer yields a no-op recorder.
func NewCartMergeMetrics(reg prometheus.Registerer) *CartMergeMetrics {
	if reg == nil {
		return &CartMergeMetrics{}
	}
	merges := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "cart_merges_total",
		Help: "Cart merges by strategy and outcome.",
	}, []string{"strategy", "outcome"})
	conflicts := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "cart_merge_conflicts_total",
		Help: "Conflicting cart lines by the resolution that settled them.",
	}, []string{"resolution"})
	clamped := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cart_merge_clamped_lines_total",
		Help: "Merged cart lines reduced to their product maximum.",
	})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "cart_merge_duration_seconds",
		Help:    "Duration of cart merges including persistence.",
		Buckets: prometheus.DefBuckets,
	}, []string{"strategy"})
	reg.MustRegister(merges, conflicts, clamped, duration)
	return &CartMergeMetrics{
		merges:    merges,
		conflicts: conflicts,
		clamped:   clamped,
		duration:  duration,
	}
}

// ObserveMerge records a finished merge attempt.
func (m *CartMergeMetrics) ObserveMerge(strategy, outcome string, elapsed time.Duration) {
	if m == nil || m.merges == nil {
		return
	}
	strategy = normalizeLabel(strategy)
	m.merges.WithLabelValues(strategy, normalizeLabel(outcome)).Inc()
	m.duration.WithLabelValues(strategy).Observe(elapsed.Seconds())
}

// IncConflict counts one conflict settled by resolution.
func (m *CartMergeMetrics) IncConflict(resolution string) {
	if m == nil || m.conflicts == nil {
		return
	}
	m.conflicts.WithLabelValues(normalizeLabel(resolution)).Inc()
}

// AddClamped counts merged lines that were reduced to their maximum.
func (m *CartMergeMetrics) AddClamped(n int) {
	if m == nil || m.clamped == nil || n <= 0 {
		return
	}
	m.clamped.Add(float64(n))
}

func normalizeLabel(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}
