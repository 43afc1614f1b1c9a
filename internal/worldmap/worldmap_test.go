package worldmap

import (
	"errors"
	"testing"

	"hexstride.io/internal/presence/tuning"
)

func TestParseHexID(t *testing.T) {
	q, r, err := ParseHexID("q=-4,r=0")
	if err != nil || q != -4 || r != 0 {
		t.Fatalf("parse: q=%d r=%d err=%v", q, r, err)
	}
	if HexID(q, r) != "q=-4,r=0" {
		t.Fatalf("format mismatch: %s", HexID(q, r))
	}
	for _, bad := range []string{"", "q=1", "q=a,r=1", "x=1,r=2", "q=1,r=2,s=3", "q=1,z=2"} {
		if _, _, err := ParseHexID(bad); !errors.Is(err, ErrBadHexID) {
			t.Fatalf("expected ErrBadHexID for %q, got %v", bad, err)
		}
	}
}

func TestMap_BoundsAndDeterminism(t *testing.T) {
	cfg := tuning.Defaults().World
	cfg.Radius = 5
	a := New(cfg)
	b := New(cfg)
	if _, ok := a.TileAt(6, 0); ok {
		t.Fatalf("tile outside radius should not exist")
	}
	if _, ok := a.TileAt(-4, 0); !ok {
		t.Fatalf("tile inside radius should exist")
	}
	count := 0
	for q := -6; q <= 6; q++ {
		for r := -6; r <= 6; r++ {
			ta, oka := a.TileAt(q, r)
			tb, okb := b.TileAt(q, r)
			if oka != okb || ta != tb {
				t.Fatalf("map not deterministic at %d,%d", q, r)
			}
			if oka {
				count++
			}
		}
	}
	if count != a.TileCount() {
		t.Fatalf("tile count: got %d want %d", count, a.TileCount())
	}
}

func TestMap_SpawnNavigable(t *testing.T) {
	cfg := tuning.Defaults().World
	cfg.BlockedPermille = 999
	m := New(cfg)
	q, r, err := ParseHexID(m.SpawnHex())
	if err != nil {
		t.Fatalf("spawn id: %v", err)
	}
	tile, ok := m.TileAt(q, r)
	if !ok || !tile.Navigable {
		t.Fatalf("spawn must be navigable: %+v", tile)
	}
	if !Known(m, "q=1,r=0") || Known(m, "q=99,r=0") || Known(m, "garbage") {
		t.Fatalf("Known mismatch")
	}
}

func TestDistance(t *testing.T) {
	if d := Distance(0, 0, -4, 0); d != 4 {
		t.Fatalf("distance=%d want 4", d)
	}
	if d := Distance(1, -1, -1, 1); d != 2 {
		t.Fatalf("distance=%d want 2", d)
	}
}

func TestNeighbors(t *testing.T) {
	if n := Neighbors(0, 0, 5); len(n) != 6 {
		t.Fatalf("inner neighbors=%v", n)
	}
	n := Neighbors(2, 0, 2)
	if len(n) != 3 {
		t.Fatalf("edge neighbors=%v want 3", n)
	}
	for _, id := range n {
		q, r, err := ParseHexID(id)
		if err != nil || Distance(2, 0, q, r) != 1 {
			t.Fatalf("bad neighbor %s", id)
		}
	}
}
