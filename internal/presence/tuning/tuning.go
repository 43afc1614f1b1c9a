package tuning

import (
	"errors"
	"fmt"
	"math"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// ErrInvalid marks a configuration that cannot run. It is fatal at startup.
var ErrInvalid = errors.New("invalid tuning")

type Tuning struct {
	Presence   Presence   `yaml:"presence" json:"presence"`
	Anomaly    Anomaly    `yaml:"anomaly" json:"anomaly"`
	Decay      Decay      `yaml:"decay" json:"decay"`
	Replay     Replay     `yaml:"replay" json:"replay"`
	RateLimits RateLimits `yaml:"rate_limits" json:"rate_limits"`
	World      World      `yaml:"world" json:"world"`
}

type Presence struct {
	Cap           int     `yaml:"cap" json:"cap"`
	FloorPercent  float64 `yaml:"floor_percent" json:"floor_percent"`
	DecayPercent  float64 `yaml:"decay_percent" json:"decay_percent"`
	InactivityMs  int64   `yaml:"inactivity_ms" json:"inactivity_ms"`
	IntervalMs    int64   `yaml:"interval_ms" json:"interval_ms"`
	DwellFraction float64 `yaml:"dwell_fraction" json:"dwell_fraction"`
}

type Anomaly struct {
	OscillationWindowMs int64   `yaml:"oscillation_window_ms" json:"oscillation_window_ms"`
	MaxDeltaPerSecond   float64 `yaml:"max_delta_per_second" json:"max_delta_per_second"`
}

type Decay struct {
	BatchSize int   `yaml:"batch_size" json:"batch_size"`
	EveryMs   int64 `yaml:"every_ms" json:"every_ms"`
}

type Replay struct {
	RingCapacity int `yaml:"ring_capacity" json:"ring_capacity"`
}

type RateLimits struct {
	MovesPerSecond float64 `yaml:"moves_per_second" json:"moves_per_second"`
	MoveBurst      int     `yaml:"move_burst" json:"move_burst"`
}

type World struct {
	Radius          int   `yaml:"radius" json:"radius"`
	Seed            int64 `yaml:"seed" json:"seed"`
	BlockedPermille int   `yaml:"blocked_permille" json:"blocked_permille"`
	RegionSize      int   `yaml:"region_size" json:"region_size"`
}

func Defaults() Tuning {
	return Tuning{
		Presence: Presence{
			Cap:           100,
			FloorPercent:  0.05,
			DecayPercent:  0.05,
			InactivityMs:  int64(24 * time.Hour / time.Millisecond),
			IntervalMs:    10_000,
			DwellFraction: 0.9,
		},
		Anomaly: Anomaly{
			OscillationWindowMs: 2000,
			MaxDeltaPerSecond:   10,
		},
		Decay: Decay{
			BatchSize: 100,
			EveryMs:   60_000,
		},
		Replay: Replay{
			RingCapacity: 64,
		},
		RateLimits: RateLimits{
			MovesPerSecond: 10,
			MoveBurst:      20,
		},
		World: World{
			Radius:          32,
			Seed:            1337,
			BlockedPermille: 80,
			RegionSize:      8,
		},
	}
}

// Load reads a tuning file on top of Defaults. A missing field keeps its default.
func Load(path string) (Tuning, error) {
	t := Defaults()
	raw, err := os.ReadFile(path)
	if err != nil {
		return t, err
	}
	if err := yaml.Unmarshal(raw, &t); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	if err := t.Validate(); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	return t, nil
}

func (t Tuning) Validate() error {
	p := t.Presence
	if p.Cap <= 0 {
		return fmt.Errorf("%w: presence.cap must be > 0", ErrInvalid)
	}
	if p.FloorPercent < 0 || p.FloorPercent >= 1 || math.IsNaN(p.FloorPercent) {
		return fmt.Errorf("%w: presence.floor_percent must be in [0, 1)", ErrInvalid)
	}
	if p.DecayPercent <= 0 || p.DecayPercent > 1 || math.IsNaN(p.DecayPercent) {
		return fmt.Errorf("%w: presence.decay_percent must be in (0, 1]", ErrInvalid)
	}
	if p.InactivityMs < 0 {
		return fmt.Errorf("%w: presence.inactivity_ms must be >= 0", ErrInvalid)
	}
	if p.IntervalMs <= 0 {
		return fmt.Errorf("%w: presence.interval_ms must be > 0", ErrInvalid)
	}
	if p.DwellFraction < 0 || p.DwellFraction > 1 || math.IsNaN(p.DwellFraction) {
		return fmt.Errorf("%w: presence.dwell_fraction must be in [0, 1]", ErrInvalid)
	}
	if t.Anomaly.OscillationWindowMs < 0 {
		return fmt.Errorf("%w: anomaly.oscillation_window_ms must be >= 0", ErrInvalid)
	}
	if t.Anomaly.MaxDeltaPerSecond <= 0 {
		return fmt.Errorf("%w: anomaly.max_delta_per_second must be > 0", ErrInvalid)
	}
	if t.Decay.BatchSize <= 0 {
		return fmt.Errorf("%w: decay.batch_size must be > 0", ErrInvalid)
	}
	if t.Decay.EveryMs <= 0 {
		return fmt.Errorf("%w: decay.every_ms must be > 0", ErrInvalid)
	}
	if t.Replay.RingCapacity <= 0 {
		return fmt.Errorf("%w: replay.ring_capacity must be > 0", ErrInvalid)
	}
	if t.RateLimits.MovesPerSecond <= 0 || t.RateLimits.MoveBurst <= 0 {
		return fmt.Errorf("%w: rate_limits must be > 0", ErrInvalid)
	}
	if t.World.Radius <= 0 {
		return fmt.Errorf("%w: world.radius must be > 0", ErrInvalid)
	}
	if t.World.BlockedPermille < 0 || t.World.BlockedPermille >= 1000 {
		return fmt.Errorf("%w: world.blocked_permille must be in [0, 1000)", ErrInvalid)
	}
	if t.World.RegionSize <= 0 {
		return fmt.Errorf("%w: world.region_size must be > 0", ErrInvalid)
	}
	return nil
}

// FloorValue is ceil(cap * floor_percent): decay never drops a value below it.
func (p Presence) FloorValue() int {
	return int(math.Ceil(float64(p.Cap) * p.FloorPercent))
}

func (p Presence) Interval() time.Duration {
	return time.Duration(p.IntervalMs) * time.Millisecond
}

func (p Presence) Inactivity() time.Duration {
	return time.Duration(p.InactivityMs) * time.Millisecond
}

func (d Decay) Every() time.Duration {
	return time.Duration(d.EveryMs) * time.Millisecond
}
