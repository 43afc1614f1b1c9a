package decay

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"hexstride.io/internal/metrics"
	"hexstride.io/internal/obslog"
	"hexstride.io/internal/persistence/presencedb"
	"hexstride.io/internal/presence/lifecycle"
	"hexstride.io/internal/presence/model"
	"hexstride.io/internal/presence/replay"
)

// Store is the transactional slice of presencedb the processor needs.
type Store interface {
	WithTx(ctx context.Context, fn func(tx *presencedb.Tx) error) error
}

type Config struct {
	BatchSize  int
	Inactivity time.Duration
}

type Report struct {
	Processed int `json:"processed"`
	Decayed   int `json:"decayed"`
	Skipped   int `json:"skipped"`
}

// Processor applies one decay batch per RunOnce. It does not schedule itself.
type Processor struct {
	store   Store
	engine  *lifecycle.Engine
	cfg     Config
	bus     *replay.Bus
	log     *slog.Logger
	metrics metrics.Sink

	save func(ctx context.Context, tx *presencedb.Tx, r model.Record) (model.Record, error)
}

type Options struct {
	Bus     *replay.Bus
	Log     *slog.Logger
	Metrics metrics.Sink
}

func NewProcessor(store Store, engine *lifecycle.Engine, cfg Config, opts Options) (*Processor, error) {
	if store == nil || engine == nil {
		return nil, fmt.Errorf("decay: store and engine are required")
	}
	if cfg.BatchSize <= 0 {
		return nil, fmt.Errorf("decay: batch size must be > 0")
	}
	if cfg.Inactivity < 0 {
		return nil, fmt.Errorf("decay: inactivity must be >= 0")
	}
	p := &Processor{
		store:   store,
		engine:  engine,
		cfg:     cfg,
		bus:     opts.Bus,
		log:     opts.Log,
		metrics: opts.Metrics,
		save: func(ctx context.Context, tx *presencedb.Tx, r model.Record) (model.Record, error) {
			return tx.Save(ctx, r)
		},
	}
	if p.log == nil {
		p.log = obslog.Nop()
	}
	if p.metrics == nil {
		p.metrics = metrics.Nop()
	}
	return p, nil
}

type decayed struct {
	before model.Record
	after  model.Record
	delta  int
	floor  bool
}

// RunOnce decays up to BatchSize stale records inside one transaction. Any
// store error rolls the whole batch back. notify runs once per decayed record
// after commit; its failures are logged and never affect the batch.
func (p *Processor) RunOnce(ctx context.Context, now time.Time, notify func(model.DecayEvent) error) (Report, error) {
	var (
		rep     Report
		changes []decayed
	)
	cutoff := now.Add(-p.cfg.Inactivity)

	err := p.store.WithTx(ctx, func(tx *presencedb.Tx) error {
		recs, err := tx.SelectStale(ctx, cutoff, p.engine.Floor(), p.cfg.BatchSize)
		if err != nil {
			return err
		}
		for _, r := range recs {
			rep.Processed++
			res := p.engine.Decay(r, now)
			if res.Delta == 0 {
				rep.Skipped++
				continue
			}
			saved, err := p.save(ctx, tx, res.Record)
			if err != nil {
				return fmt.Errorf("decay %s/%s: %w", r.PlayerID, r.HexID, err)
			}
			rep.Decayed++
			changes = append(changes, decayed{before: r, after: saved, delta: res.Delta, floor: res.ReachedFloor})
		}
		return nil
	})
	if err != nil {
		p.metrics.Add("decay_batch_failed_total", 1)
		p.log.Error("decay batch rolled back", "error", err)
		return Report{}, err
	}

	p.metrics.Add("decay_processed_total", float64(rep.Processed))
	p.metrics.Add("decay_decayed_total", float64(rep.Decayed))
	p.metrics.Add("decay_skipped_total", float64(rep.Skipped))

	for _, c := range changes {
		p.publish(c, now)
		ev := model.DecayEvent{
			PlayerID:     c.after.PlayerID,
			HexID:        c.after.HexID,
			Delta:        c.delta,
			NewValue:     c.after.Value,
			TierAfter:    c.after.TierID,
			ReachedFloor: c.floor,
		}
		if notify != nil {
			if err := safeNotify(notify, ev); err != nil {
				p.metrics.Add("decay_notify_failed_total", 1)
				p.log.Warn("decay notify failed", "player", ev.PlayerID, "hex", ev.HexID, "error", err)
			}
		}
	}
	if rep.Processed > 0 {
		p.log.Info("decay batch", "processed", rep.Processed, "decayed", rep.Decayed, "skipped", rep.Skipped)
	}
	return rep, nil
}

func (p *Processor) publish(c decayed, now time.Time) {
	if p.bus == nil {
		return
	}
	p.bus.Publish(model.ReplayEvent{
		PlayerID:    c.after.PlayerID,
		HexID:       c.after.HexID,
		Type:        model.ReplayDecay,
		ValueBefore: model.Int(c.before.Value),
		ValueAfter:  model.Int(c.after.Value),
		Direction:   model.DirectionDown,
		At:          now,
	})
	tiers := p.engine.Tiers()
	from, to := tiers.ClassifyValue(c.before.Value), tiers.ClassifyValue(c.after.Value)
	if from != to {
		p.bus.Publish(model.ReplayEvent{
			PlayerID:  c.after.PlayerID,
			HexID:     c.after.HexID,
			Type:      model.ReplayTierTransition,
			TierFrom:  model.Int(from),
			TierTo:    model.Int(to),
			Direction: model.DirectionDown,
			At:        now,
		})
	}
}

func safeNotify(fn func(model.DecayEvent) error, ev model.DecayEvent) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("notify panic: %v", r)
		}
	}()
	return fn(ev)
}
