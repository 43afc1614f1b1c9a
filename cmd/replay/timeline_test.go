package main

import (
	"testing"
	"time"

	persistlog "hexstride.io/internal/persistence/log"
	"hexstride.io/internal/presence/model"
)

func writeReplay(t *testing.T, events ...model.ReplayEvent) []string {
	t.Helper()
	dir := t.TempDir()
	w := persistlog.NewJSONLZstdWriter(dir, "replay")
	for _, e := range events {
		if err := w.Write(e); err != nil {
			t.Fatalf("write: %v", err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	files, err := persistlog.ListReplayFiles(dir)
	if err != nil || len(files) != 1 {
		t.Fatalf("files=%v err=%v", files, err)
	}
	return files
}

func evAt(seq uint64, player, hex string, typ model.ReplayType, ms int64) model.ReplayEvent {
	return model.ReplayEvent{Seq: seq, PlayerID: player, HexID: hex, Type: typ, At: time.UnixMilli(ms)}
}

func TestScan_FiltersTimeline(t *testing.T) {
	files := writeReplay(t,
		evAt(1, "p1", "q=0,r=0", model.ReplayCreate, 1000),
		evAt(2, "p2", "q=0,r=0", model.ReplayCreate, 1500),
		evAt(3, "p1", "q=0,r=0", model.ReplayIncrement, 2000),
		evAt(4, "p1", "q=1,r=0", model.ReplayCreate, 2500),
		evAt(5, "p1", "q=0,r=0", model.ReplayDecay, 3000),
	)

	var got []model.ReplayEvent
	sum, err := scan(files, filter{PlayerID: "p1", HexID: "q=0,r=0"}, func(e model.ReplayEvent) { got = append(got, e) })
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if sum.Events != 3 || sum.Keys != 1 || len(sum.Violations) != 0 {
		t.Fatalf("summary=%+v", sum)
	}
	if got[0].Type != model.ReplayCreate || got[2].Type != model.ReplayDecay {
		t.Fatalf("timeline=%+v", got)
	}

	got = nil
	_, _ = scan(files, filter{Type: model.ReplayCreate, Since: time.UnixMilli(1200)}, func(e model.ReplayEvent) { got = append(got, e) })
	if len(got) != 2 || got[0].PlayerID != "p2" {
		t.Fatalf("type+since=%+v", got)
	}

	sum, _ = scan(files, filter{Limit: 2}, func(model.ReplayEvent) {})
	if sum.Events != 2 {
		t.Fatalf("limit events=%d", sum.Events)
	}
}

func TestScan_ReportsOutOfOrderKeys(t *testing.T) {
	files := writeReplay(t,
		evAt(1, "p1", "h", model.ReplayCreate, 1000),
		evAt(3, "p1", "h", model.ReplayIncrement, 2000),
		evAt(2, "p1", "h", model.ReplayIncrement, 2500),
		evAt(4, "p1", "h", model.ReplayDecay, 1500),
	)
	sum, err := scan(files, filter{}, func(model.ReplayEvent) {})
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if len(sum.Violations) != 2 {
		t.Fatalf("violations=%v want 2", sum.Violations)
	}
}
