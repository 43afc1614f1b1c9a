package protocol

import "hexstride.io/internal/presence/tiers"

// HELLO (client -> server)
type HelloMsg struct {
	Type            string     `json:"type"`
	ProtocolVersion string     `json:"protocol_version"`
	Auth            *HelloAuth `json:"auth,omitempty"`
	RoomPreference  string     `json:"room_preference,omitempty"`
}

type HelloAuth struct {
	Token string `json:"token,omitempty"`
}

// WELCOME (server -> client)
type WelcomeMsg struct {
	Type            string      `json:"type"`
	ProtocolVersion string      `json:"protocol_version"`
	SessionID       string      `json:"session_id"`
	PlayerID        string      `json:"player_id"`
	RoomID          string      `json:"room_id"`
	SpawnHex        string      `json:"spawn_hex"`
	WorldParams     WorldParams `json:"world_params"`
}

type WorldParams struct {
	Radius     int                `json:"radius"`
	Seed       int64              `json:"seed"`
	IntervalMs int64              `json:"interval_ms"`
	Cap        int                `json:"cap"`
	Floor      int                `json:"floor"`
	Tiers      []tiers.Definition `json:"tiers"`
}

// presence:move (client -> server). Client dwell claims are not accepted;
// dwell is measured from server receive times.
type MoveMsg struct {
	Type  string `json:"type"`
	HexID string `json:"hexId"`
	TS    int64  `json:"ts,omitempty"`
}

// presence:snapshot.request (client -> server)
type SnapshotRequestMsg struct {
	Type string `json:"type"`
}

type SnapshotEntry struct {
	HexID  string `json:"hexId"`
	Value  int    `json:"value"`
	TierID int    `json:"tierId"`
}

// presence:snapshot (server -> client)
type SnapshotMsg struct {
	Type    string          `json:"type"`
	Entries []SnapshotEntry `json:"entries"`
	TS      int64           `json:"ts"`
}

type UpdateReason string

const (
	ReasonCreate    UpdateReason = "create"
	ReasonIncrement UpdateReason = "increment"
	ReasonDecay     UpdateReason = "decay"
	ReasonCap       UpdateReason = "cap"
	ReasonAnomaly   UpdateReason = "anomaly"
)

// UpdateEntry is one presence transition.
type UpdateEntry struct {
	HexID     string       `json:"hexId"`
	Delta     int          `json:"delta"`
	NewValue  int          `json:"newValue"`
	Reason    UpdateReason `json:"reason"`
	TierAfter int          `json:"tierAfter"`
	TS        int64        `json:"ts"`
}

// presence:update (server -> client)
type UpdateMsg struct {
	Type string `json:"type"`
	UpdateEntry
}

// presence:update.bundled (server -> client)
type UpdateBundledMsg struct {
	Type    string        `json:"type"`
	Entries []UpdateEntry `json:"entries"`
	TS      int64         `json:"ts"`
}

// presence:error (server -> client)
type PresenceErrorMsg struct {
	Type    string `json:"type"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Flush turns the updates queued for one session into a single outbound
// message: the bare update when exactly one is queued, a bundle otherwise.
// It returns nil for an empty queue.
func Flush(queued []UpdateEntry, ts int64) any {
	switch len(queued) {
	case 0:
		return nil
	case 1:
		return UpdateMsg{Type: TypeUpdate, UpdateEntry: queued[0]}
	}
	entries := make([]UpdateEntry, len(queued))
	copy(entries, queued)
	return UpdateBundledMsg{Type: TypeUpdateBundled, Entries: entries, TS: ts}
}
