package room

import (
	"hexstride.io/internal/metrics"
	"hexstride.io/internal/presence/model"
	"hexstride.io/internal/protocol"
)

// handleDecay turns decay events into updates for every live session of the
// affected players. Events that arrived together share one flush per session.
func (r *Room) handleDecay(events []model.DecayEvent) {
	if len(events) == 0 || len(r.sessions) == 0 {
		return
	}
	now := r.now()
	touched := map[string]bool{}
	for _, ev := range events {
		for _, s := range r.sessionsInOrder() {
			if s.playerID != ev.PlayerID || s.state != stateActive {
				continue
			}
			s.queue(protocol.UpdateEntry{
				HexID:     ev.HexID,
				Delta:     ev.Delta,
				NewValue:  ev.NewValue,
				Reason:    protocol.ReasonDecay,
				TierAfter: ev.TierAfter,
				TS:        now.UnixMilli(),
			})
			touched[s.id] = true
			metrics.Inc(r.metrics, "room_decay_updates_total", metrics.T("room", r.cfg.ID))
		}
	}
	for _, s := range r.sessionsInOrder() {
		if touched[s.id] {
			r.flush(s, now)
		}
	}
}
