package jobs

import (
	"math"
	"testing"
)

func TestClassifyOutflowFlatHistory(t *testing.T) {
	history := []float64{100, 100, 100, 100}
	severity, _ := classifyOutflow(history, 5000, 2.5)
	if severity != "" {
		t.Fatalf("zero stddev history must not flag, got %q", severity)
	}
}

func TestClassifyOutflowHighSpike(t *testing.T) {
	history := []float64{100, 120, 90, 110, 95}
	severity, zscore := classifyOutflow(history, 2000, 2.5)
	if severity != "HIGH" {
		t.Fatalf("severity = %q, want HIGH (z=%f)", severity, zscore)
	}
	if zscore < 2.5 {
		t.Fatalf("zscore = %f, want >= 2.5", zscore)
	}
}

func TestClassifyOutflowMediumSpike(t *testing.T) {
	history := []float64{100, 120, 90, 110, 95}
	mean := average(history)
	stddev := std(history, mean)
	// A value exactly between the MEDIUM and HIGH thresholds.
	last := mean + stddev*2.0
	severity, _ := classifyOutflow(history, last, 2.5)
	if severity != "MEDIUM" {
		t.Fatalf("severity = %q, want MEDIUM", severity)
	}
}

func TestClassifyOutflowUnremarkable(t *testing.T) {
	history := []float64{100, 120, 90, 110, 95}
	severity, _ := classifyOutflow(history, 105, 2.5)
	if severity != "" {
		t.Fatalf("severity = %q, want none", severity)
	}
}

func TestClassifyOutflowShortHistory(t *testing.T) {
	severity, zscore := classifyOutflow([]float64{100}, 900, 2.5)
	if severity != "" || zscore != 0 {
		t.Fatalf("single sample must not flag, got %q z=%f", severity, zscore)
	}
}

func TestStdSampleVariance(t *testing.T) {
	values := []float64{2, 4, 4, 4, 5, 5, 7, 9}
	mean := average(values)
	if mean != 5 {
		t.Fatalf("mean = %f, want 5", mean)
	}
	got := std(values, mean)
	want := math.Sqrt(32.0 / 7.0)
	if math.Abs(got-want) > 1e-9 {
		t.Fatalf("std = %f, want %f", got, want)
	}
}
