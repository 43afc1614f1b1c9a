package main

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"hexstride.io/internal/persistence/presencedb"
	"hexstride.io/internal/presence/model"
	"hexstride.io/internal/presence/tiers"
	"hexstride.io/internal/presence/tuning"
	"hexstride.io/internal/worldmap"
)

func seededDB(t *testing.T, recs ...model.Record) *sql.DB {
	t.Helper()
	tun := tuning.Defaults()
	path := filepath.Join(t.TempDir(), "presence.sqlite")
	store, err := presencedb.OpenSQLite(path, worldmap.New(tun.World), tiers.MustNew(tun.Presence.Cap))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	for _, r := range recs {
		if _, err := store.Save(context.Background(), r); err != nil {
			t.Fatalf("save %s/%s: %v", r.PlayerID, r.HexID, err)
		}
	}
	if err := store.Close(); err != nil {
		t.Fatalf("close store: %v", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func adminRec(player, hex string, value int, state model.DecayState, visited time.Time) model.Record {
	return model.Record{
		PlayerID: player, HexID: hex, Value: value, DecayState: state,
		CreatedAt: visited, UpdatedAt: visited, LastVisitedAt: visited,
	}
}

func TestQueries(t *testing.T) {
	now := time.UnixMilli(1_700_000_000_000)
	old := now.Add(-72 * time.Hour)
	db := seededDB(t,
		adminRec("p1", "q=0,r=0", 30, model.DecayActive, old),
		adminRec("p1", "q=1,r=0", 80, model.DecayActive, now),
		adminRec("p1", "q=0,r=1", 100, model.DecayCapped, old),
		adminRec("p2", "q=0,r=0", 5, model.DecayDecaying, old),
	)
	ctx := context.Background()

	recs, err := queryRecords(ctx, db, "p1", 10)
	if err != nil {
		t.Fatalf("records: %v", err)
	}
	if len(recs) != 3 || recs[0].Value != 100 || recs[2].Value != 30 {
		t.Fatalf("records=%+v", recs)
	}

	stale, err := queryStale(ctx, db, now.Add(-24*time.Hour), 5, 10)
	if err != nil {
		t.Fatalf("stale: %v", err)
	}
	if len(stale) != 1 || stale[0].HexID != "q=0,r=0" || stale[0].PlayerID != "p1" {
		t.Fatalf("stale=%+v", stale)
	}

	sum, err := querySummary(ctx, db)
	if err != nil {
		t.Fatalf("summary: %v", err)
	}
	total := 0
	for _, r := range sum {
		total += r.Records
	}
	if total != 4 {
		t.Fatalf("summary=%+v", sum)
	}
}
