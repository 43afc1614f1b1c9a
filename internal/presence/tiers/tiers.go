package tiers

import (
	"fmt"
	"math"
)

// Definition is one row of the tier table. MinValue is inclusive.
type Definition struct {
	TierID    int    `json:"tier_id"`
	MinValue  int    `json:"min_value"`
	Label     string `json:"label"`
	ColorHint string `json:"color_hint"`
}

// Breakpoints are fractions of the cap. The first tier always starts at 1.
var breakpoints = []struct {
	frac  float64
	label string
	color string
}{
	{0, "faint", "#9aa5b1"},
	{0.2, "settled", "#5fb0a8"},
	{0.45, "established", "#3f8fd2"},
	{0.7, "rooted", "#8e5cd1"},
	{0.9, "anchored", "#e0a526"},
}

// Table classifies presence values. Build it once from the configured cap and
// share it; it is immutable.
type Table struct {
	cap  int
	defs []Definition
}

func New(cap int) (*Table, error) {
	if cap <= 0 {
		return nil, fmt.Errorf("tier table: cap must be > 0, got %d", cap)
	}
	defs := make([]Definition, 0, len(breakpoints))
	prev := 1
	for i, bp := range breakpoints {
		min := int(math.Ceil(float64(cap) * bp.frac))
		if i == 0 || min < 1 {
			min = 1
		}
		if min < prev {
			min = prev
		}
		prev = min
		defs = append(defs, Definition{
			TierID:    i,
			MinValue:  min,
			Label:     bp.label,
			ColorHint: bp.color,
		})
	}
	return &Table{cap: cap, defs: defs}, nil
}

// MustNew is New for callers that already validated cap.
func MustNew(cap int) *Table {
	t, err := New(cap)
	if err != nil {
		panic(err)
	}
	return t
}

func (t *Table) Cap() int { return t.cap }

func (t *Table) Lowest() int { return t.defs[0].TierID }

func (t *Table) Definitions() []Definition {
	out := make([]Definition, len(t.defs))
	copy(out, t.defs)
	return out
}

// Classify maps a possibly untrusted value to a tier id. Non-finite and
// negative inputs count as 0; fractions are floored.
func (t *Table) Classify(v float64) int {
	if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		v = 0
	}
	v = math.Floor(v)
	tier := t.defs[0].TierID
	for _, d := range t.defs {
		if float64(d.MinValue) <= v {
			tier = d.TierID
		}
	}
	return tier
}

func (t *Table) ClassifyValue(v int) int { return t.Classify(float64(v)) }

func (t *Table) Label(tierID int) string {
	for _, d := range t.defs {
		if d.TierID == tierID {
			return d.Label
		}
	}
	return ""
}
