package lifecycle

import (
	"testing"
	"time"

	"hexstride.io/internal/presence/model"
	"hexstride.io/internal/presence/tiers"
	"hexstride.io/internal/presence/tuning"
)

func newEngine(t *testing.T) *Engine {
	t.Helper()
	p := tuning.Defaults().Presence
	e, err := New(p, tiers.MustNew(p.Cap))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return e
}

func TestNew_RejectsMismatchedTable(t *testing.T) {
	p := tuning.Defaults().Presence
	if _, err := New(p, tiers.MustNew(50)); err == nil {
		t.Fatalf("expected mismatch error")
	}
}

func TestCreate(t *testing.T) {
	e := newEngine(t)
	now := time.UnixMilli(1_700_000_000_000)
	r := e.Create("p1", "q=-4,r=0", now)
	if r.Value != 1 || r.TierID != 0 || r.DecayState != model.DecayActive {
		t.Fatalf("unexpected record: %+v", r)
	}
	for _, ts := range []time.Time{r.CreatedAt, r.UpdatedAt, r.LastVisitedAt, r.LastIncrementAt} {
		if !ts.Equal(now) {
			t.Fatalf("timestamp mismatch: %v", ts)
		}
	}
}

func TestIncrement_CapAndCapped(t *testing.T) {
	e := newEngine(t)
	t0 := time.UnixMilli(1_000)
	r := e.Create("p1", "h", t0)

	t1 := t0.Add(time.Minute)
	res := e.Increment(r, 99, t1)
	if res.Record.Value != 100 || res.Delta != 99 || res.Reason != ReasonCap || !res.Capped {
		t.Fatalf("first increment: %+v", res)
	}
	if res.Record.DecayState != model.DecayCapped {
		t.Fatalf("expected capped state, got %s", res.Record.DecayState)
	}
	if !res.Record.LastIncrementAt.Equal(t1) {
		t.Fatalf("lastIncrementAt should advance on non-zero delta")
	}

	t2 := t1.Add(time.Minute)
	res2 := e.Increment(res.Record, 5, t2)
	if res2.Record.Value != 100 || res2.Delta != 0 || res2.Reason != ReasonCapped {
		t.Fatalf("second increment: %+v", res2)
	}
	if !res2.Record.LastIncrementAt.Equal(t1) {
		t.Fatalf("lastIncrementAt must not advance on zero delta")
	}
	if !res2.Record.LastVisitedAt.Equal(t2) || !res2.Record.UpdatedAt.Equal(t2) {
		t.Fatalf("visit/update timestamps should advance")
	}
}

func TestIncrement_NegativeAmountIsNoop(t *testing.T) {
	e := newEngine(t)
	r := e.Create("p1", "h", time.UnixMilli(0))
	res := e.Increment(r, -7, time.UnixMilli(10))
	if res.Delta != 0 || res.Record.Value != 1 || res.Reason != ReasonIncrement {
		t.Fatalf("unexpected: %+v", res)
	}
}

func TestIncrement_StaysWithinBounds(t *testing.T) {
	e := newEngine(t)
	r := e.Create("p1", "h", time.UnixMilli(0))
	for i := 0; i < 300; i++ {
		res := e.Increment(r, i%7, time.UnixMilli(int64(i)))
		r = res.Record
		if r.Value > e.Cap() || r.Value < 1 {
			t.Fatalf("value out of bounds: %d", r.Value)
		}
		if r.TierID != e.Tiers().ClassifyValue(r.Value) {
			t.Fatalf("tier drift: tier=%d value=%d", r.TierID, r.Value)
		}
		if r.Value == e.Cap() {
			again := e.Increment(r, 3, time.UnixMilli(int64(i)))
			if again.Delta != 0 || again.Reason != ReasonCapped {
				t.Fatalf("at cap: %+v", again)
			}
		}
	}
}

func TestIncrement_TierTransition(t *testing.T) {
	e := newEngine(t)
	r := e.Create("p1", "h", time.UnixMilli(0))
	r.Value = 19
	r.TierID = e.Tiers().ClassifyValue(19)
	res := e.Increment(r, 1, time.UnixMilli(1))
	if res.TierBefore != 0 || res.TierAfter != 1 {
		t.Fatalf("tier transition: before=%d after=%d", res.TierBefore, res.TierAfter)
	}
}

func TestDecay_Scenario(t *testing.T) {
	e := newEngine(t)
	r := e.Create("p1", "h", time.UnixMilli(0))
	r = e.Increment(r, 99, time.UnixMilli(1)).Record
	visited := r.LastVisitedAt
	incremented := r.LastIncrementAt

	res := e.Decay(r, time.UnixMilli(5000))
	if res.Record.Value != 95 || res.Delta != -5 || res.Record.DecayState != model.DecayDecaying {
		t.Fatalf("decay: %+v", res)
	}
	if !res.Record.LastVisitedAt.Equal(visited) || !res.Record.LastIncrementAt.Equal(incremented) {
		t.Fatalf("decay must not touch visit/increment timestamps")
	}
	if !res.Record.UpdatedAt.Equal(time.UnixMilli(5000)) {
		t.Fatalf("decay should advance updatedAt")
	}
}

func TestDecay_AtLeastOneAndNeverBelowFloor(t *testing.T) {
	e := newEngine(t)
	floor := e.Floor()
	for v := floor + 1; v <= e.Cap(); v++ {
		r := model.Record{PlayerID: "p", HexID: "h", Value: v, DecayState: model.DecayActive}
		res := e.Decay(r, time.UnixMilli(1))
		if res.Delta > -1 {
			t.Fatalf("v=%d: expected strict decrease, delta=%d", v, res.Delta)
		}
		if res.Record.Value < floor {
			t.Fatalf("v=%d: dropped below floor: %d", v, res.Record.Value)
		}
		if res.ReachedFloor != (res.Record.Value == floor) {
			t.Fatalf("v=%d: reachedFloor mismatch", v)
		}
	}
}

func TestDecay_AtFloorIsNoop(t *testing.T) {
	e := newEngine(t)
	r := model.Record{PlayerID: "p", HexID: "h", Value: e.Floor(), DecayState: model.DecayActive}
	res := e.Decay(r, time.UnixMilli(1))
	if res.Delta != 0 || res.Record.Value != e.Floor() || !res.ReachedFloor {
		t.Fatalf("expected no-op at floor: %+v", res)
	}
	if res.Record.DecayState != model.DecayActive {
		t.Fatalf("no-op decay must retain state, got %s", res.Record.DecayState)
	}

	below := model.Record{PlayerID: "p", HexID: "h", Value: 1, DecayState: model.DecayActive}
	if res := e.Decay(below, time.UnixMilli(1)); res.Delta != 0 || res.Record.Value != 1 {
		t.Fatalf("below floor must not change: %+v", res)
	}
}
