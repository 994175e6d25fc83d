package metrics

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func TestCheckoutMetricsExportsCountersAndHistogram(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := NewCheckoutMetrics(reg)
	metrics.IncTransition("idle", "validating")
	metrics.IncTransition("idle", "validating")
	metrics.ObserveSubmission("accepted", 250*time.Millisecond)

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}

	if got, err := fetchCounterValue(mfs, "checkout_transitions_total", "to", "validating"); err != nil {
		t.Fatalf("fetch transitions: %v", err)
	} else if got != 2 {
		t.Fatalf("expected transitions=2, got %f", got)
	}

	if got, err := fetchHistogramSum(mfs, "checkout_submission_duration_seconds", "outcome", "accepted"); err != nil {
		t.Fatalf("fetch duration: %v", err)
	} else if got <= 0 {
		t.Fatalf("expected duration sum > 0, got %f", got)
	}
}

func TestCartMetricsSplitsResults(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := NewCartMetrics(reg)
	metrics.IncMutation("add", nil)
	metrics.IncMutation("add", errors.New("redis down"))

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}
	if got, err := fetchCounterValue(mfs, "cart_mutations_total", "result", "error"); err != nil {
		t.Fatalf("fetch errors: %v", err)
	} else if got != 1 {
		t.Fatalf("expected one failed mutation, got %f", got)
	}
}

func TestRetentionJobMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := NewRetentionJobMetrics(reg)
	metrics.ObserveDuration("cart-snapshot-retention", 40*time.Millisecond)
	metrics.IncRun("cart-snapshot-retention", nil)
	metrics.AddPurged("cart-snapshot-retention", 12)
	metrics.AddPurged("cart-snapshot-retention", 0)

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}
	if got, err := fetchCounterValue(mfs, "retention_rows_purged_total", "job", "cart-snapshot-retention"); err != nil {
		t.Fatalf("fetch purged: %v", err)
	} else if got != 12 {
		t.Fatalf("expected 12 purged rows, got %f", got)
	}
	if got, err := fetchCounterValue(mfs, "retention_job_runs_total", "result", "ok"); err != nil {
		t.Fatalf("fetch runs: %v", err)
	} else if got != 1 {
		t.Fatalf("expected one run, got %f", got)
	}
}

func TestNilMetricsAreNoops(t *testing.T) {
	var checkout *CheckoutMetrics
	checkout.IncTransition("a", "b")
	checkout.ObserveSubmission("x", time.Second)
	NewCartMetrics(nil).IncMutation("add", nil)
	var retention *RetentionJobMetrics
	retention.IncRun("x", nil)
	retention.AddPurged("x", 3)
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
