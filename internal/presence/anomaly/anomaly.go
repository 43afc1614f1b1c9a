package anomaly

import (
	"math"
	"time"

	"hexstride.io/internal/presence/model"
)

// Config tunes the detector. Zero fields take DefaultConfig values; a
// negative OscillationWindow turns the oscillation check off.
type Config struct {
	OscillationWindow time.Duration
	MaxDeltaPerSecond float64
}

func DefaultConfig() Config {
	return Config{OscillationWindow: 2 * time.Second, MaxDeltaPerSecond: 10}
}

// Detector keeps one sample per player. It is owned by a single room loop and
// is not safe for concurrent use.
type Detector struct {
	cfg  Config
	last map[string]model.Sample
}

func NewDetector(cfg Config) *Detector {
	def := DefaultConfig()
	if cfg.MaxDeltaPerSecond <= 0 {
		cfg.MaxDeltaPerSecond = def.MaxDeltaPerSecond
	}
	if cfg.OscillationWindow == 0 {
		cfg.OscillationWindow = def.OscillationWindow
	}
	return &Detector{cfg: cfg, last: map[string]model.Sample{}}
}

// Observe compares s against the previous sample of the player and stores s.
// The first sample of a player is never anomalous.
func (d *Detector) Observe(playerID string, s model.Sample) (model.Anomaly, bool) {
	prior, ok := d.last[playerID]
	d.last[playerID] = s
	if !ok {
		return model.Anomaly{}, false
	}

	elapsed := s.At.Sub(prior.At).Milliseconds()
	delta := s.Value - prior.Value
	a := model.Anomaly{
		Sample:      s,
		PriorSample: prior,
		ElapsedMs:   elapsed,
		Delta:       delta,
	}

	switch {
	case elapsed <= 0:
		a.Type = model.AnomalyRate
		a.Reason = "non-increasing timestamp"
		return a, true
	case s.HexID != prior.HexID && elapsed < d.cfg.OscillationWindow.Milliseconds():
		a.Type = model.AnomalyOscillation
		a.Reason = "hex changed within oscillation window"
		return a, true
	}

	perSecond := math.Abs(float64(delta)) / (float64(elapsed) / 1000)
	if perSecond > d.cfg.MaxDeltaPerSecond {
		a.Type = model.AnomalyRate
		a.Reason = "presence delta exceeds rate limit"
		return a, true
	}
	return model.Anomaly{}, false
}

func (d *Detector) Forget(playerID string) { delete(d.last, playerID) }

func (d *Detector) Len() int { return len(d.last) }
