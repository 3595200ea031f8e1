package metrics

import (
	"fmt"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func TestCartMergeMetricsExportsCountersAndHistogram(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := NewCartMergeMetrics(reg)
	metrics.ObserveMerge("SMART", OutcomeSuccess, 250*time.Millisecond)
	metrics.ObserveMerge("SMART", OutcomeFailure, time.Millisecond)
	metrics.IncConflict("SUM_QUANTITIES")
	metrics.IncConflict("SUM_QUANTITIES")
	metrics.AddClamped(3)
	metrics.AddClamped(0)

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}

	if got, err := fetchCounterValue(mfs, "cart_merges_total", "outcome", OutcomeSuccess); err != nil {
		t.Fatalf("fetch success: %v", err)
	} else if got != 1 {
		t.Fatalf("expected success=1, got %f", got)
	}

	if got, err := fetchCounterValue(mfs, "cart_merges_total", "outcome", OutcomeFailure); err != nil {
		t.Fatalf("fetch failure: %v", err)
	} else if got != 1 {
		t.Fatalf("expected failure=1, got %f", got)
	}

	if got, err := fetchCounterValue(mfs, "cart_merge_conflicts_total", "resolution", "SUM_QUANTITIES"); err != nil {
		t.Fatalf("fetch conflicts: %v", err)
	} else if got != 2 {
		t.Fatalf("expected conflicts=2, got %f", got)
	}

	clamped := findMetricFamily(mfs, "cart_merge_clamped_lines_total")
	if clamped == nil || len(clamped.GetMetric()) != 1 {
		t.Fatalf("clamped counter not exported")
	}
	if got := clamped.GetMetric()[0].GetCounter().GetValue(); got != 3 {
		t.Fatalf("expected clamped=3, got %f", got)
	}

	if got, err := fetchHistogramSum(mfs, "cart_merge_duration_seconds", "strategy", "SMART"); err != nil {
		t.Fatalf("fetch duration: %v", err)
	} else if got <= 0 {
		t.Fatalf("expected duration sum > 0, got %f", got)
	}
}

func TestCartMergeMetricsNilSafe(t *testing.T) {
	var nilMetrics *CartMergeMetrics
	nilMetrics.ObserveMerge("SMART", OutcomeSuccess, time.Second)
	nilMetrics.IncConflict("KEEP_LOCAL")
	nilMetrics.AddClamped(1)

	noop := NewCartMergeMetrics(nil)
	noop.ObserveMerge("", "", time.Second)
	noop.IncConflict("")
	noop.AddClamped(2)
}

func TestHTTPMetricsObserveRequest(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := NewHTTPMetrics(reg)
	metrics.ObserveRequest("/api/v1/cart", "GET", 200, 10*time.Millisecond)
	metrics.ObserveRequest("", "GET", 404, time.Millisecond)

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}
	if got, err := fetchCounterValue(mfs, "http_requests_total", "route", "/api/v1/cart"); err != nil {
		t.Fatalf("fetch requests: %v", err)
	} else if got != 1 {
		t.Fatalf("expected requests=1, got %f", got)
	}
	if got, err := fetchCounterValue(mfs, "http_requests_total", "route", "unknown"); err != nil {
		t.Fatalf("fetch unknown route: %v", err)
	} else if got != 1 {
		t.Fatalf("expected unknown route=1, got %f", got)
	}
}

func fetchCounterValue(mfs []*dto.MetricFamily, name, label, value string) (float64, error) {
	mf := findMetricFamily(mfs, name)
	if mf == nil {
		return 0, fmt.Errorf("metric %q not found", name)
	}
	for _, metric := range mf.GetMetric() {
		if matchesLabel(metric.GetLabel(), label, value) {
			return metric.GetCounter().GetValue(), nil
		}
	}
	return 0, fmt.Errorf("metric %q missing label %s=%s", name, label, value)
}

func fetchHistogramSum(mfs []*dto.MetricFamily, name, label, value string) (float64, error) {
	mf := findMetricFamily(mfs, name)
	if mf == nil {
		return 0, fmt.Errorf("metric %q not found", name)
	}
	for _, metric := range mf.GetMetric() {
		if matchesLabel(metric.GetLabel(), label, value) {
			return metric.GetHistogram().GetSampleSum(), nil
		}
	}
	return 0, fmt.Errorf("histogram %q missing label %s=%s", name, label, value)
}

func findMetricFamily(mfs []*dto.MetricFamily, name string) *dto.MetricFamily {
	for _, mf := range mfs {
		if mf.GetName() == name {
			return mf
		}
	}
	return nil
}

func matchesLabel(labels []*dto.LabelPair, name, value string) bool {
	for _, label := range labels {
		if label.GetName() == name && label.GetValue() == value {
			return true
		}
	}
	return false
}
