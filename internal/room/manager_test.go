package room

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"hexstride.io/internal/obslog"
	"hexstride.io/internal/presence/tuning"
)

func TestLoadRoomsConfig(t *testing.T) {
	cfg, err := LoadRoomsConfig("")
	if err != nil {
		t.Fatalf("defaults: %v", err)
	}
	if cfg.DefaultRoomID != "R1" || len(cfg.Rooms) != 1 {
		t.Fatalf("defaults=%+v", cfg)
	}

	dir := t.TempDir()
	path := filepath.Join(dir, "rooms.yaml")
	if err := os.WriteFile(path, []byte("rooms:\n  - id: A\n  - id: B\n    max_sessions: 2\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err = LoadRoomsConfig(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.DefaultRoomID != "A" || cfg.Rooms[0].MaxSessions != 512 || cfg.Rooms[0].Label != "A" {
		t.Fatalf("normalized=%+v", cfg)
	}
	if spec, ok := cfg.Spec("B"); !ok || spec.MaxSessions != 2 {
		t.Fatalf("spec B=%+v ok=%v", spec, ok)
	}

	for name, body := range map[string]string{
		"dup":     "rooms:\n  - id: A\n  - id: A\n",
		"empty":   "rooms: []\n",
		"default": "default_room_id: Z\nrooms:\n  - id: A\n",
	} {
		p := filepath.Join(dir, name+".yaml")
		_ = os.WriteFile(p, []byte(body), 0o644)
		if _, err := LoadRoomsConfig(p); err == nil {
			t.Fatalf("%s: expected validation error", name)
		}
	}
}

func TestManager_RouteAndStats(t *testing.T) {
	h := newHarness(t, nil)
	deps := Deps{Store: h.store, Engine: h.engine, World: h.world, Bus: h.bus, Metrics: h.reg}
	cfg := RoomsConfig{DefaultRoomID: "R1", Rooms: []RoomSpec{{ID: "R1"}, {ID: "R2", MaxSessions: 4}}}

	named := map[string]bool{}
	m, err := NewManager(cfg, tuning.Defaults(), deps, func(id string) *slog.Logger {
		named[id] = true
		return obslog.Nop()
	})
	if err != nil {
		t.Fatalf("manager: %v", err)
	}
	if !named["R1"] || !named["R2"] {
		t.Fatalf("per-room loggers not built: %v", named)
	}

	if r, err := m.Route(""); err != nil || r.ID() != "R1" {
		t.Fatalf("default route=%v err=%v", r, err)
	}
	if r, err := m.Route("R2"); err != nil || r.ID() != "R2" {
		t.Fatalf("route R2=%v err=%v", r, err)
	}
	if _, err := m.Route("nope"); !errors.Is(err, ErrUnknownRoom) {
		t.Fatalf("err=%v want ErrUnknownRoom", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	m.Start(ctx)
	m.Start(ctx)
	r2, _ := m.Room("R2")
	out := make(chan []byte, 8)
	if _, err := r2.Join(ctx, "p1", out); err != nil {
		t.Fatalf("join: %v", err)
	}
	stats := m.Stats()
	if len(stats) != 2 || stats[0].ID != "R1" || stats[1].ID != "R2" || stats[1].Sessions != 1 {
		t.Fatalf("stats=%+v", stats)
	}

	cancel()
	done := make(chan struct{})
	go func() { m.Wait(); close(done) }()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("rooms did not stop")
	}
	if r2.Stats().Sessions != 0 {
		t.Fatalf("sessions must be closed on shutdown")
	}
}
