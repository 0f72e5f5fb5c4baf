package e2e

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"

	jobmetrics "github.com/ledgerline/ledgerline/internal/jobs"
	"github.com/ledgerline/ledgerline/jobs"
)

// TestJobMetricsSurface walks one simulated worker cycle through the job
// metrics and verifies everything the scrape endpoint would expose: run
// counts by status, failure counts, durations, and the scan-specific
// finding and anomaly counters.
func TestJobMetricsSurface(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := jobmetrics.NewMetrics(reg)

	tracker := metrics.Track(jobs.TaskLedgerIntegrityScan)
	metrics.AddFindings("checkpoint_mismatch", 2)
	metrics.AddFindings("negative_balance", 1)
	if err := tracker.End(nil); err != nil {
		t.Fatalf("successful run must pass nil through, got %v", err)
	}

	tracker = metrics.Track(jobs.TaskLedgerActivityScan)
	metrics.AddAnomalies("HIGH", 1)
	metrics.AddAnomalies("MEDIUM", 3)
	if err := tracker.End(nil); err != nil {
		t.Fatalf("successful run must pass nil through, got %v", err)
	}

	bad := errors.New("query timeout")
	tracker = metrics.Track(jobs.TaskSessionPurge)
	if err := tracker.End(bad); !errors.Is(err, bad) {
		t.Fatalf("failed run must return the original error, got %v", err)
	}

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}

	runChecks := []struct {
		labels map[string]string
		want   float64
	}{
		{map[string]string{"job": jobs.TaskLedgerIntegrityScan, "status": "success"}, 1},
		{map[string]string{"job": jobs.TaskLedgerActivityScan, "status": "success"}, 1},
		{map[string]string{"job": jobs.TaskSessionPurge, "status": "failure"}, 1},
	}
	for _, check := range runChecks {
		if !assertCounter(t, families, "ledgerline_jobs_total", check.labels, check.want) {
			t.Fatalf("expected ledgerline_jobs_total%v == %v", check.labels, check.want)
		}
	}

	if !assertCounter(t, families, "ledgerline_jobs_failures_total", map[string]string{"job": jobs.TaskSessionPurge}, 1) {
		t.Fatalf("expected one recorded failure for %s", jobs.TaskSessionPurge)
	}
	if !metricExists(families, "ledgerline_job_duration_seconds") {
		t.Fatalf("expected ledgerline_job_duration_seconds to be recorded")
	}
	if !assertCounter(t, families, "ledgerline_integrity_findings_total", map[string]string{"kind": "checkpoint_mismatch"}, 2) {
		t.Fatalf("expected two checkpoint_mismatch findings")
	}
	if !assertCounter(t, families, "ledgerline_integrity_findings_total", map[string]string{"kind": "negative_balance"}, 1) {
		t.Fatalf("expected one negative_balance finding")
	}
	if !assertCounter(t, families, "ledgerline_activity_anomalies_total", map[string]string{"severity": "MEDIUM"}, 3) {
		t.Fatalf("expected three MEDIUM anomalies")
	}
}

func assertCounter(t *testing.T, families []*dto.MetricFamily, name string, labels map[string]string, expected float64) bool {
	t.Helper()
	for _, fam := range families {
		if fam.GetName() != name {
			continue
		}
		for _, metric := range fam.GetMetric() {
			if matchLabels(metric.GetLabel(), labels) {
				if metric.GetCounter() == nil {
					return false
				}
				if metric.GetCounter().GetValue() == expected {
					return true
				}
			}
		}
	}
	return false
}

func metricExists(families []*dto.MetricFamily, name string) bool {
	for _, fam := range families {
		if fam.GetName() == name {
			return true
		}
	}
	return false
}

func matchLabels(pairs []*dto.LabelPair, expected map[string]string) bool {
	if len(expected) == 0 {
		return true
	}
	seen := make(map[string]string, len(pairs))
	for _, pair := range pairs {
		seen[pair.GetName()] = pair.GetValue()
	}
	for k, v := range expected {
		if seen[k] != v {
			return false
		}
	}
	return true
}
