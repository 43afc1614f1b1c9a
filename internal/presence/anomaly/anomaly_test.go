package anomaly

import (
	"testing"
	"time"

	"hexstride.io/internal/presence/model"
)

func sample(hex string, v int, ms int64) model.Sample {
	return model.Sample{HexID: hex, Value: v, At: time.UnixMilli(ms)}
}

func TestObserve_FirstSampleIsClean(t *testing.T) {
	d := NewDetector(DefaultConfig())
	if _, ok := d.Observe("p1", sample("A", 1, 1000)); ok {
		t.Fatalf("first sample should not be anomalous")
	}
}

func TestObserve_Oscillation(t *testing.T) {
	d := NewDetector(Config{OscillationWindow: time.Second, MaxDeltaPerSecond: 10})
	d.Observe("p1", sample("A", 1, 1000))
	a, ok := d.Observe("p1", sample("B", 1, 1500))
	if !ok || a.Type != model.AnomalyOscillation {
		t.Fatalf("expected oscillation, got ok=%v %+v", ok, a)
	}
	if a.ElapsedMs != 500 || a.PriorSample.HexID != "A" {
		t.Fatalf("unexpected detail: %+v", a)
	}
}

func TestObserve_NonIncreasingTimestamp(t *testing.T) {
	d := NewDetector(DefaultConfig())
	d.Observe("p1", sample("A", 1, 1000))
	a, ok := d.Observe("p1", sample("A", 1, 1000))
	if !ok || a.Type != model.AnomalyRate || a.Reason != "non-increasing timestamp" {
		t.Fatalf("expected rate anomaly, got ok=%v %+v", ok, a)
	}
}

func TestObserve_RateSpike(t *testing.T) {
	d := NewDetector(DefaultConfig())
	d.Observe("p1", sample("A", 1, 0))
	a, ok := d.Observe("p1", sample("A", 40, 3000))
	if !ok || a.Type != model.AnomalyRate || a.Delta != 39 {
		t.Fatalf("expected rate anomaly, got ok=%v %+v", ok, a)
	}
	if _, ok := d.Observe("p1", sample("A", 41, 13000)); ok {
		t.Fatalf("slow growth should be clean")
	}
}

func TestObserve_AlwaysOverwritesSample(t *testing.T) {
	d := NewDetector(DefaultConfig())
	d.Observe("p1", sample("A", 1, 0))
	d.Observe("p1", sample("B", 1, 100)) // oscillation, still stored
	if _, ok := d.Observe("p1", sample("B", 1, 5000)); ok {
		t.Fatalf("comparison should be against the latest sample")
	}
}

func TestForget(t *testing.T) {
	d := NewDetector(DefaultConfig())
	d.Observe("p1", sample("A", 1, 0))
	d.Forget("p1")
	if d.Len() != 0 {
		t.Fatalf("expected empty detector")
	}
	if _, ok := d.Observe("p1", sample("B", 1, 10)); ok {
		t.Fatalf("forgotten player starts fresh")
	}
}

func TestNewDetector_ZeroWindowTakesDefault(t *testing.T) {
	d := NewDetector(Config{MaxDeltaPerSecond: 5})
	d.Observe("p1", sample("A", 1, 1000))
	if a, ok := d.Observe("p1", sample("B", 1, 2500)); !ok || a.Type != model.AnomalyOscillation {
		t.Fatalf("expected oscillation under the default window, got ok=%v %+v", ok, a)
	}

	off := NewDetector(Config{OscillationWindow: -1, MaxDeltaPerSecond: 5})
	off.Observe("p1", sample("A", 1, 1000))
	if a, ok := off.Observe("p1", sample("B", 1, 1100)); ok {
		t.Fatalf("negative window disables oscillation, got %+v", a)
	}
}
