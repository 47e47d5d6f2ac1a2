package utils

import (
	"testing"
	"time"
)

func TestLatencyTrackerPercentile(t *testing.T) {
	tracker := NewLatencyTracker(100)
	for i := 1; i <= 100; i++ {
		tracker.Observe(time.Duration(i) * time.Millisecond)
	}

	if got := tracker.Count(); got != 100 {
		t.Fatalf("expected 100 samples, got %d", got)
	}
	p95 := tracker.Percentile(95)
	if p95 < 90*time.Millisecond || p95 > 100*time.Millisecond {
		t.Fatalf("p95 out of expected range: %v", p95)
	}
	if got := tracker.Percentile(0); got != time.Millisecond {
		t.Fatalf("p0 should be the minimum, got %v", got)
	}
	if got := tracker.Percentile(100); got != 100*time.Millisecond {
		t.Fatalf("p100 should be the maximum, got %v", got)
	}
}

func TestLatencyTrackerEmpty(t *testing.T) {
	tracker := NewLatencyTracker(10)
	if got := tracker.Percentile(95); got != 0 {
		t.Fatalf("empty tracker should return zero, got %v", got)
	}
}

func TestLatencyTrackerEvictsOldest(t *testing.T) {
	tracker := NewLatencyTracker(3)
	for _, d := range []time.Duration{time.Second, time.Millisecond, time.Millisecond, time.Millisecond} {
		tracker.Observe(d)
	}
	if got := tracker.Count(); got != 3 {
		t.Fatalf("expected 3 samples, got %d", got)
	}
	if got := tracker.Percentile(100); got != time.Millisecond {
		t.Fatalf("oldest sample should have been evicted, p100=%v", got)
	}
}
