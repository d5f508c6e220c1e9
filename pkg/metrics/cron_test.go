package metrics

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func TestCronJobMetricsRecordsOutcomes(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewCronJobMetrics(reg)

	m.ObserveRun("media-intent-sweep", 250*time.Millisecond, nil)
	m.ObserveRun("media-intent-sweep", time.Second, errors.New("sftp: connection lost"))
	m.ObserveRun("", time.Millisecond, nil)
	m.IncSkippedCycle()

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}

	checks := []struct {
		job, outcome string
	}{
		{"media-intent-sweep", OutcomeSuccess},
		{"media-intent-sweep", OutcomeFailure},
		{"unknown", OutcomeSuccess},
	}
	for _, c := range checks {
		metric := findMetric(mfs, "catalog_cron_job_runs_total", map[string]string{"job": c.job, "outcome": c.outcome})
		if metric == nil || metric.GetCounter().GetValue() != 1 {
			t.Fatalf("expected one %s run for %s, got %v", c.outcome, c.job, metric)
		}
	}

	skipped := findMetric(mfs, "catalog_cron_cycles_skipped_total", nil)
	if skipped == nil || skipped.GetCounter().GetValue() != 1 {
		t.Fatalf("expected one skipped cycle, got %v", skipped)
	}
	last := findMetric(mfs, "catalog_cron_job_last_success_timestamp_seconds", map[string]string{"job": "media-intent-sweep"})
	if last == nil || last.GetGauge().GetValue() <= 0 {
		t.Fatalf("expected last success timestamp, got %v", last)
	}
	hist := findMetric(mfs, "catalog_cron_job_duration_seconds", map[string]string{"job": "media-intent-sweep"})
	if hist == nil || hist.GetHistogram().GetSampleCount() != 2 {
		t.Fatalf("expected both runs timed, got %v", hist)
	}
}

func TestCronJobMetricsNilSafe(t *testing.T) {
	m := NewCronJobMetrics(nil)
	m.ObserveRun("job", time.Second, nil)
	m.IncSkippedCycle()
}

func findMetric(mfs []*dto.MetricFamily, name string, labels map[string]string) *dto.Metric {
	mf := findMetricFamily(mfs, name)
	if mf == nil {
		return nil
	}
	for _, metric := range mf.GetMetric() {
		matched := true
		for k, v := range labels {
			if !matchesLabel(metric.GetLabel(), k, v) {
				matched = false
				break
			}
		}
		if matched {
			return metric
		}
	}
	return nil
}

func fetchCounterValue(mfs []*dto.MetricFamily, name, label, value string) (float64, error) {
	metric := findMetric(mfs, name, map[string]string{label: value})
	if metric == nil {
		return 0, fmt.Errorf("counter %q missing %s=%s", name, label, value)
	}
	return metric.GetCounter().GetValue(), nil
}

func fetchHistogramSum(mfs []*dto.MetricFamily, name, label, value string) (float64, error) {
	metric := findMetric(mfs, name, map[string]string{label: value})
	if metric == nil {
		return 0, fmt.Errorf("histogram %q missing %s=%s", name, label, value)
	}
	return metric.GetHistogram().GetSampleSum(), nil
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
