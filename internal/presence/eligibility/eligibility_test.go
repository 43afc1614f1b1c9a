package eligibility

import (
	"testing"
	"time"
)

func TestEligible_DwellThreshold(t *testing.T) {
	cases := []struct {
		dwell int64
		want  bool
	}{
		{9000, true},
		{5000, false},
		{8999, false},
		{12000, true},
	}
	for _, c := range cases {
		got := Eligible(Input{Now: time.Unix(100, 0), DwellTimeMs: c.dwell, IntervalMs: 10_000, RequiredDwellFraction: 0.9})
		if got != c.want {
			t.Fatalf("dwell=%d: got %v want %v", c.dwell, got, c.want)
		}
	}
}

func TestEligible_PureWithoutPriorIncrement(t *testing.T) {
	for _, frac := range []float64{0, 0.25, 0.5, 1} {
		for dwell := int64(0); dwell <= 2000; dwell += 125 {
			want := float64(dwell) >= frac*1000
			if got := Eligible(Input{DwellTimeMs: dwell, IntervalMs: 1000, RequiredDwellFraction: frac}); got != want {
				t.Fatalf("frac=%v dwell=%d: got %v want %v", frac, dwell, got, want)
			}
		}
	}
}

func TestEligible_IntervalSinceLastIncrement(t *testing.T) {
	base := time.Unix(1_700_000_000, 0)
	in := Input{
		LastIncrementAt:       base,
		Now:                   base.Add(9999 * time.Millisecond),
		DwellTimeMs:           10_000,
		IntervalMs:            10_000,
		RequiredDwellFraction: 0.9,
	}
	if Eligible(in) {
		t.Fatalf("expected ineligible before the interval elapsed")
	}
	in.Now = base.Add(10 * time.Second)
	if !Eligible(in) {
		t.Fatalf("expected eligible once the interval elapsed")
	}
}

func TestEligible_SlackForgivesLateTick(t *testing.T) {
	base := time.Unix(1_700_000_000, 0)
	in := Input{
		LastIncrementAt:       base,
		Now:                   base.Add(9997*time.Millisecond + 400*time.Microsecond),
		DwellTimeMs:           9997,
		IntervalMs:            10_000,
		RequiredDwellFraction: 0.9,
	}
	if Eligible(in) {
		t.Fatalf("without slack a short interval is ineligible")
	}
	in.Slack = time.Second
	if !Eligible(in) {
		t.Fatalf("expected eligible within slack")
	}
	in.Now = base.Add(8 * time.Second)
	if Eligible(in) {
		t.Fatalf("slack must not cover more than it names")
	}
}
