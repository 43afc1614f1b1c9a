package tiers

import (
	"math"
	"testing"
)

func TestNew_RejectsNonPositiveCap(t *testing.T) {
	if _, err := New(0); err == nil {
		t.Fatalf("expected error for cap=0")
	}
	if _, err := New(-10); err == nil {
		t.Fatalf("expected error for negative cap")
	}
}

func TestTable_ThresholdsNonDecreasing(t *testing.T) {
	for _, cap := range []int{1, 2, 3, 7, 100, 1000} {
		defs := MustNew(cap).Definitions()
		if defs[0].MinValue != 1 {
			t.Fatalf("cap=%d: first tier min=%d want 1", cap, defs[0].MinValue)
		}
		for i := 1; i < len(defs); i++ {
			if defs[i].TierID <= defs[i-1].TierID {
				t.Fatalf("cap=%d: tier ids not ascending at %d", cap, i)
			}
			if defs[i].MinValue < defs[i-1].MinValue {
				t.Fatalf("cap=%d: thresholds decrease at %d: %d < %d", cap, i, defs[i].MinValue, defs[i-1].MinValue)
			}
		}
	}
}

func TestClassify_Monotonic(t *testing.T) {
	tab := MustNew(100)
	prev := tab.Classify(-1)
	for v := 0; v <= 150; v++ {
		got := tab.ClassifyValue(v)
		if got < prev {
			t.Fatalf("classify not monotonic at %d: %d < %d", v, got, prev)
		}
		prev = got
	}
}

func TestClassify_NormalizesUntrustedInput(t *testing.T) {
	tab := MustNew(100)
	low := tab.Lowest()
	for _, v := range []float64{-5, 0, math.NaN(), math.Inf(1), math.Inf(-1)} {
		if got := tab.Classify(v); got != low {
			t.Fatalf("classify(%v)=%d want lowest %d", v, got, low)
		}
	}
	// 19.9 floors to 19, below the "settled" threshold of 20.
	if got := tab.Classify(19.9); got != 0 {
		t.Fatalf("classify(19.9)=%d want 0", got)
	}
	if got := tab.Classify(20); got != 1 {
		t.Fatalf("classify(20)=%d want 1", got)
	}
	if got := tab.ClassifyValue(100); got != 4 {
		t.Fatalf("classify(cap)=%d want 4", got)
	}
}

func TestClassify_CreateValueIsLowestTier(t *testing.T) {
	if got := MustNew(100).ClassifyValue(1); got != 0 {
		t.Fatalf("classify(1)=%d want 0", got)
	}
}
