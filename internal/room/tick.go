package room

import (
	"time"

	"hexstride.io/internal/metrics"
	"hexstride.io/internal/presence/eligibility"
	"hexstride.io/internal/presence/lifecycle"
	"hexstride.io/internal/presence/model"
	"hexstride.io/internal/protocol"
)

// tick runs one increment sweep over every session standing on a hex, then
// flushes each session's queue as one message.
func (r *Room) tick(now time.Time) {
	r.ticks.Add(1)
	sessions := r.sessionsInOrder()
	for _, s := range sessions {
		if s.state != stateActive || s.hex == "" {
			continue
		}
		r.tickSession(s, now)
	}
	for _, s := range sessions {
		r.flush(s, now)
	}
}

// tickSlack is how late a tick may run relative to the previous increment and
// still count as a full interval.
func (r *Room) tickSlack() time.Duration {
	return r.cfg.Presence.Interval() / 10
}

func (r *Room) tickSession(s *session, now time.Time) {
	ctx, cancel := r.opCtx()
	defer cancel()

	hexID := s.hex
	rec, created, err := r.store.Ensure(ctx, s.playerID, hexID, func() model.Record {
		return r.engine.Create(s.playerID, hexID, now)
	})
	if err != nil {
		r.persistFailed("tick", s, hexID, err)
		return
	}
	if created {
		r.created(s, rec, now)
	}

	ok := eligibility.Eligible(eligibility.Input{
		LastIncrementAt:       rec.LastIncrementAt,
		Now:                   now,
		DwellTimeMs:           s.dwell(now).Milliseconds(),
		IntervalMs:            r.cfg.Presence.IntervalMs,
		RequiredDwellFraction: r.cfg.Presence.DwellFraction,
		Slack:                 r.tickSlack(),
	})
	if !ok {
		return
	}

	res := r.engine.Increment(rec, 1, now)
	saved, err := r.store.Save(ctx, res.Record)
	if err != nil {
		r.persistFailed("increment", s, hexID, err)
		return
	}
	s.dwellStart = now
	if res.Delta == 0 {
		return
	}

	tiers := r.engine.Tiers()
	tierBefore := tiers.ClassifyValue(rec.Value)
	tierAfter := tiers.ClassifyValue(saved.Value)
	r.publishIncrement(rec, saved, res, tierBefore, tierAfter, now)

	reason := protocol.ReasonIncrement
	if res.Reason == lifecycle.ReasonCap {
		reason = protocol.ReasonCap
	}
	if a, flagged := r.detector.Observe(s.playerID, model.Sample{HexID: hexID, Value: saved.Value, At: now}); flagged {
		r.anomaly(s, a, now)
		reason = protocol.ReasonAnomaly
	}

	s.queue(protocol.UpdateEntry{
		HexID:     hexID,
		Delta:     res.Delta,
		NewValue:  saved.Value,
		Reason:    reason,
		TierAfter: tierAfter,
		TS:        now.UnixMilli(),
	})
}

func (r *Room) publishIncrement(before, after model.Record, res lifecycle.IncrementResult, tierBefore, tierAfter int, now time.Time) {
	metrics.Inc(r.metrics, "presence_increment_total", metrics.T("room", r.cfg.ID), metrics.T("reason", string(res.Reason)))
	if tierBefore != tierAfter {
		metrics.Inc(r.metrics, "presence_tier_transition_total", metrics.T("room", r.cfg.ID), metrics.T("direction", model.DirectionUp))
	}
	if r.bus == nil {
		return
	}
	typ := model.ReplayIncrement
	if res.Reason == lifecycle.ReasonCap {
		typ = model.ReplayCap
	}
	r.bus.Publish(model.ReplayEvent{
		PlayerID:    after.PlayerID,
		HexID:       after.HexID,
		Type:        typ,
		ValueBefore: model.Int(before.Value),
		ValueAfter:  model.Int(after.Value),
		Direction:   model.DirectionUp,
		At:          now,
	})
	if tierBefore != tierAfter {
		r.bus.Publish(model.ReplayEvent{
			PlayerID:  after.PlayerID,
			HexID:     after.HexID,
			Type:      model.ReplayTierTransition,
			TierFrom:  model.Int(tierBefore),
			TierTo:    model.Int(tierAfter),
			Direction: model.DirectionUp,
			At:        now,
		})
	}
}

func (r *Room) anomaly(s *session, a model.Anomaly, now time.Time) {
	metrics.Inc(r.metrics, "presence_anomaly_total", metrics.T("room", r.cfg.ID), metrics.T("type", string(a.Type)))
	r.log.Info("presence anomaly", "session", s.id, "player", s.playerID, "type", string(a.Type), "reason", a.Reason)
	if r.bus == nil {
		return
	}
	r.bus.Publish(model.ReplayEvent{
		PlayerID: s.playerID,
		HexID:    a.Sample.HexID,
		Type:     model.ReplayAnomaly,
		Anomaly:  &a,
		At:       now,
	})
}
