package room

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"hexstride.io/internal/presence/anomaly"
	"hexstride.io/internal/presence/tuning"
)

// Manager hosts every configured room in one process. Rooms share the store,
// engine, world, replay bus and decay hub; sessions never move between rooms.
type Manager struct {
	rooms     map[string]*Room
	defaultID string

	wg      sync.WaitGroup
	started bool
	mu      sync.Mutex
}

// NewManager builds one Room per spec. When logFor is set, each room logs to
// its own sink instead of deps.Log.
func NewManager(cfg RoomsConfig, t tuning.Tuning, deps Deps, logFor func(roomID string) *slog.Logger) (*Manager, error) {
	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	m := &Manager{rooms: map[string]*Room{}, defaultID: cfg.DefaultRoomID}
	for _, spec := range cfg.Rooms {
		d := deps
		if logFor != nil {
			d.Log = logFor(spec.ID)
		}
		r, err := New(Config{
			ID:          spec.ID,
			MaxSessions: spec.MaxSessions,
			Presence:    t.Presence,
			Anomaly: anomaly.Config{
				OscillationWindow: time.Duration(t.Anomaly.OscillationWindowMs) * time.Millisecond,
				MaxDeltaPerSecond: t.Anomaly.MaxDeltaPerSecond,
			},
			RateLimits: t.RateLimits,
		}, d)
		if err != nil {
			return nil, err
		}
		m.rooms[spec.ID] = r
	}
	return m, nil
}

// Start runs every room on its own goroutine until ctx is done.
func (m *Manager) Start(ctx context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.started {
		return
	}
	m.started = true
	for _, r := range m.rooms {
		m.wg.Add(1)
		go func(r *Room) {
			defer m.wg.Done()
			_ = r.Run(ctx)
		}(r)
	}
}

// Wait blocks until every room loop has returned.
func (m *Manager) Wait() { m.wg.Wait() }

// Route returns the preferred room, falling back to the default room when the
// preference is empty.
func (m *Manager) Route(preference string) (*Room, error) {
	id := strings.TrimSpace(preference)
	if id == "" {
		id = m.defaultID
	}
	r := m.rooms[id]
	if r == nil {
		return nil, fmt.Errorf("%w: %s", ErrUnknownRoom, id)
	}
	return r, nil
}

func (m *Manager) Room(id string) (*Room, bool) {
	r, ok := m.rooms[id]
	return r, ok
}

func (m *Manager) DefaultRoomID() string { return m.defaultID }

// Stats lists every room, ordered by id.
func (m *Manager) Stats() []Stats {
	out := make([]Stats, 0, len(m.rooms))
	for _, r := range m.rooms {
		out = append(out, r.Stats())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
