package model

import "time"

type ReplayType string

const (
	ReplayCreate         ReplayType = "create"
	ReplayIncrement      ReplayType = "increment"
	ReplayDecay          ReplayType = "decay"
	ReplayCap            ReplayType = "cap"
	ReplayAnomaly        ReplayType = "anomaly"
	ReplayTierTransition ReplayType = "tier-transition"
)

const (
	DirectionUp   = "up"
	DirectionDown = "down"
)

// ReplayEvent is one lifecycle transition on the timeline of a (player, hex) key.
type ReplayEvent struct {
	Seq      uint64     `json:"seq"`
	PlayerID string     `json:"player_id"`
	HexID    string     `json:"hex_id"`
	Type     ReplayType `json:"type"`

	ValueBefore *int     `json:"value_before,omitempty"`
	ValueAfter  *int     `json:"value_after,omitempty"`
	TierFrom    *int     `json:"tier_from,omitempty"`
	TierTo      *int     `json:"tier_to,omitempty"`
	Direction   string   `json:"direction,omitempty"`
	Anomaly     *Anomaly `json:"anomaly,omitempty"`

	At time.Time `json:"at"`
}

func (e ReplayEvent) Key() Key { return Key{PlayerID: e.PlayerID, HexID: e.HexID} }

type AnomalyType string

const (
	AnomalyOscillation AnomalyType = "oscillation"
	AnomalyRate        AnomalyType = "rate"
)

type Sample struct {
	HexID string    `json:"hex_id"`
	Value int       `json:"value"`
	At    time.Time `json:"at"`
}

// Anomaly is a transient observation; it is never persisted with the record.
type Anomaly struct {
	Type        AnomalyType `json:"type"`
	Reason      string      `json:"reason"`
	Sample      Sample      `json:"sample"`
	PriorSample Sample      `json:"prior_sample"`
	ElapsedMs   int64       `json:"elapsed_ms"`
	Delta       int         `json:"delta"`
}

// Int returns a pointer to v, for the optional replay fields.
func Int(v int) *int { return &v }
