package room

import (
	"errors"
	"time"

	"hexstride.io/internal/metrics"
	"hexstride.io/internal/persistence/presencedb"
	"hexstride.io/internal/presence/model"
	"hexstride.io/internal/protocol"
	"hexstride.io/internal/worldmap"
)

// Rejection is why a movement sample was refused. It is sent to the client as
// the message of a presence:error.
type Rejection string

const (
	RejectInvalidHexID     Rejection = "invalid_hex_id"
	RejectTileNotFound     Rejection = "tile_not_found"
	RejectTileNotNavigable Rejection = "tile_not_navigable"
	RejectRateLimited      Rejection = "rate_limited"
)

func (r Rejection) Code() string {
	switch r {
	case RejectInvalidHexID:
		return protocol.ErrInvalidPayload
	case RejectTileNotFound:
		return protocol.ErrNotFound
	}
	return protocol.ErrDenied
}

// validateTarget checks the hex against the world map.
func validateTarget(w worldmap.Lookup, hexID string) (string, Rejection, bool) {
	q, rr, err := worldmap.ParseHexID(hexID)
	if err != nil {
		return "", RejectInvalidHexID, false
	}
	tile, ok := w.TileAt(q, rr)
	if !ok {
		return "", RejectTileNotFound, false
	}
	if !tile.Navigable {
		return "", RejectTileNotNavigable, false
	}
	return worldmap.HexID(q, rr), "", true
}

func (r *Room) handleMove(m moveRequest) {
	s := r.sessions[m.SessionID]
	if s == nil || s.state != stateActive {
		return
	}
	now := r.now()

	if !s.limiter.AllowN(now, 1) {
		r.reject(s, RejectRateLimited)
		return
	}
	hexID, why, ok := validateTarget(r.world, m.HexID)
	if !ok {
		r.reject(s, why)
		return
	}

	if hexID != s.hex || s.dwellStart.IsZero() {
		s.dwellStart = now
	}
	s.hex = hexID
	s.lastSample = now
	s.explored[hexID] = struct{}{}

	ctx, cancel := r.opCtx()
	defer cancel()

	rec, found, err := r.store.Get(ctx, s.playerID, hexID)
	if err != nil {
		r.persistFailed("move", s, hexID, err)
		return
	}
	if found {
		if _, err := r.store.Save(ctx, r.engine.Visit(rec, now)); err != nil {
			r.persistFailed("visit", s, hexID, err)
		}
		return
	}

	rec, created, err := r.store.Ensure(ctx, s.playerID, hexID, func() model.Record {
		return r.engine.Create(s.playerID, hexID, now)
	})
	if errors.Is(err, presencedb.ErrUnknownHex) {
		r.reject(s, RejectTileNotFound)
		return
	}
	if err != nil {
		r.persistFailed("create", s, hexID, err)
		return
	}
	if created {
		r.created(s, rec, now)
	} else if _, err := r.store.Save(ctx, r.engine.Visit(rec, now)); err != nil {
		r.persistFailed("visit", s, hexID, err)
	}
	r.flush(s, now)
}

// created records and queues the first update of a new record.
func (r *Room) created(s *session, rec model.Record, now time.Time) {
	metrics.Inc(r.metrics, "presence_created_total", metrics.T("room", r.cfg.ID))
	if r.bus != nil {
		r.bus.Publish(model.ReplayEvent{
			PlayerID:   rec.PlayerID,
			HexID:      rec.HexID,
			Type:       model.ReplayCreate,
			ValueAfter: model.Int(rec.Value),
			TierTo:     model.Int(rec.TierID),
			Direction:  model.DirectionUp,
			At:         now,
		})
	}
	s.queue(protocol.UpdateEntry{
		HexID:     rec.HexID,
		Delta:     rec.Value,
		NewValue:  rec.Value,
		Reason:    protocol.ReasonCreate,
		TierAfter: rec.TierID,
		TS:        now.UnixMilli(),
	})
}

func (r *Room) reject(s *session, why Rejection) {
	metrics.Inc(r.metrics, "move_rejected_total", metrics.T("room", r.cfg.ID), metrics.T("reason", string(why)))
	r.log.Debug("move rejected", "session", s.id, "reason", string(why))
	r.send(s, protocol.ErrorMsg(why.Code(), string(why)))
}
