package lifecycle

import (
	"fmt"
	"math"
	"time"

	"hexstride.io/internal/presence/model"
	"hexstride.io/internal/presence/tiers"
	"hexstride.io/internal/presence/tuning"
)

type Reason string

const (
	ReasonIncrement Reason = "increment"
	ReasonCap       Reason = "cap"
	ReasonCapped    Reason = "capped"
)

// Engine computes record transitions. It is built once from tuning and shared
// read-only by every room and the decay processor.
type Engine struct {
	cap          int
	floor        int
	decayPercent float64
	tiers        *tiers.Table
}

func New(p tuning.Presence, table *tiers.Table) (*Engine, error) {
	if p.Cap <= 0 {
		return nil, fmt.Errorf("lifecycle: cap must be > 0")
	}
	if table == nil || table.Cap() != p.Cap {
		return nil, fmt.Errorf("lifecycle: tier table does not match cap %d", p.Cap)
	}
	return &Engine{
		cap:          p.Cap,
		floor:        p.FloorValue(),
		decayPercent: p.DecayPercent,
		tiers:        table,
	}, nil
}

func (e *Engine) Cap() int            { return e.cap }
func (e *Engine) Floor() int          { return e.floor }
func (e *Engine) Tiers() *tiers.Table { return e.tiers }

func (e *Engine) Create(playerID, hexID string, now time.Time) model.Record {
	return model.Record{
		PlayerID:        playerID,
		HexID:           hexID,
		Value:           1,
		TierID:          e.tiers.ClassifyValue(1),
		DecayState:      model.DecayActive,
		CreatedAt:       now,
		UpdatedAt:       now,
		LastVisitedAt:   now,
		LastIncrementAt: now,
	}
}

// Visit refreshes the visit timestamp of a revisited hex. Value is untouched.
func (e *Engine) Visit(r model.Record, now time.Time) model.Record {
	r.LastVisitedAt = now
	r.UpdatedAt = now
	return r
}

type IncrementResult struct {
	Record     model.Record
	Delta      int
	Capped     bool
	Reason     Reason
	TierBefore int
	TierAfter  int
}

func (e *Engine) Increment(r model.Record, amount int, now time.Time) IncrementResult {
	if amount < 0 {
		amount = 0
	}
	next := r.Value + amount
	if next > e.cap {
		next = e.cap
	}
	delta := next - r.Value
	capped := next >= e.cap

	reason := ReasonIncrement
	if capped {
		reason = ReasonCap
		if delta == 0 {
			reason = ReasonCapped
		}
	}

	out := r
	out.Value = next
	out.TierID = e.tiers.ClassifyValue(next)
	out.UpdatedAt = now
	out.LastVisitedAt = now
	if delta > 0 {
		out.LastIncrementAt = now
	}
	if capped {
		out.DecayState = model.DecayCapped
	} else {
		out.DecayState = model.DecayActive
	}

	return IncrementResult{
		Record:     out,
		Delta:      delta,
		Capped:     capped,
		Reason:     reason,
		TierBefore: e.tiers.ClassifyValue(r.Value),
		TierAfter:  out.TierID,
	}
}

type DecayResult struct {
	Record       model.Record
	Delta        int
	ReachedFloor bool
}

// Decay removes decayPercent of the value, at least 1, never below the floor.
// Visit and increment timestamps are left alone so dwell timers survive decay.
func (e *Engine) Decay(r model.Record, now time.Time) DecayResult {
	decrease := 0
	if r.Value > e.floor {
		raw := float64(r.Value) * e.decayPercent
		decrease = int(math.Floor(raw + 1e-9))
		if decrease < 1 {
			decrease = 1
		}
	}
	next := r.Value - decrease
	if next < e.floor {
		next = e.floor
	}
	if r.Value <= e.floor {
		next = r.Value
	}
	delta := next - r.Value

	out := r
	if delta < 0 {
		out.Value = next
		out.TierID = e.tiers.ClassifyValue(next)
		out.DecayState = model.DecayDecaying
		out.UpdatedAt = now
	}
	return DecayResult{
		Record:       out,
		Delta:        delta,
		ReachedFloor: out.Value == e.floor,
	}
}
