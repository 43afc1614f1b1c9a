package model

import "time"

type DecayState string

const (
	DecayActive   DecayState = "active"
	DecayDecaying DecayState = "decaying"
	DecayCapped   DecayState = "capped"
)

func (s DecayState) Valid() bool {
	switch s {
	case DecayActive, DecayDecaying, DecayCapped:
		return true
	}
	return false
}

// Record is the persisted presence of one player on one hex.
// (PlayerID, HexID) is unique. TierID is always derived from Value.
type Record struct {
	PlayerID   string     `json:"player_id"`
	HexID      string     `json:"hex_id"`
	Value      int        `json:"presence_value"`
	TierID     int        `json:"tier_id"`
	DecayState DecayState `json:"decay_state"`

	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
	LastVisitedAt time.Time `json:"last_visited_at"`
	// LastIncrementAt is zero when the record never received an increment.
	LastIncrementAt time.Time `json:"last_increment_at"`
}

func (r Record) Key() Key { return Key{PlayerID: r.PlayerID, HexID: r.HexID} }

type Key struct {
	PlayerID string
	HexID    string
}

// DecayEvent is emitted for every record a decay batch actually lowered.
type DecayEvent struct {
	PlayerID     string `json:"player_id"`
	HexID        string `json:"hex_id"`
	Delta        int    `json:"delta"`
	NewValue     int    `json:"new_value"`
	TierAfter    int    `json:"tier_after"`
	ReachedFloor bool   `json:"reached_floor"`
}
