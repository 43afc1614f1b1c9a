package log

import (
	"path/filepath"
	"testing"
	"time"

	"hexstride.io/internal/presence/model"
	"hexstride.io/internal/presence/replay"
)

func TestReplayLogger_WritesBusEvents(t *testing.T) {
	dir := t.TempDir()
	bus := replay.NewBus(8)
	l := NewReplayLogger(dir, 16, func(err error) { t.Errorf("write: %v", err) })
	l.Attach(bus)

	at := time.Now()
	bus.Publish(model.ReplayEvent{PlayerID: "p1", HexID: "q=0,r=0", Type: model.ReplayCreate, ValueAfter: model.Int(1), At: at})
	bus.Publish(model.ReplayEvent{PlayerID: "p1", HexID: "q=0,r=0", Type: model.ReplayIncrement, ValueBefore: model.Int(1), ValueAfter: model.Int(2), Direction: model.DirectionUp, At: at.Add(time.Second)})
	if err := l.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := l.Close(); err != nil {
		t.Fatalf("second close: %v", err)
	}

	files, err := ListReplayFiles(dir)
	if err != nil || len(files) != 1 {
		t.Fatalf("files=%v err=%v", files, err)
	}
	var got []model.ReplayEvent
	if err := ReadReplayFile(files[0], func(e model.ReplayEvent) bool {
		got = append(got, e)
		return true
	}); err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(got) != 2 || got[0].Type != model.ReplayCreate || got[1].Type != model.ReplayIncrement {
		t.Fatalf("got=%+v", got)
	}
	if got[1].Seq != 2 || *got[1].ValueAfter != 2 {
		t.Fatalf("event fields lost: %+v", got[1])
	}
}

func TestJSONLZstdWriter_RotatesHourly(t *testing.T) {
	dir := t.TempDir()
	w := NewJSONLZstdWriter(dir, replayPrefix)
	now := time.Date(2026, 3, 1, 10, 59, 0, 0, time.UTC)
	w.now = func() time.Time { return now }

	if err := w.Write(map[string]int{"n": 1}); err != nil {
		t.Fatalf("write: %v", err)
	}
	now = now.Add(2 * time.Minute)
	if err := w.Write(map[string]int{"n": 2}); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	files, err := ListReplayFiles(dir)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	want := []string{
		filepath.Join(dir, "replay-2026-03-01-10.jsonl.zst"),
		filepath.Join(dir, "replay-2026-03-01-11.jsonl.zst"),
	}
	if len(files) != 2 || files[0] != want[0] || files[1] != want[1] {
		t.Fatalf("files=%v want %v", files, want)
	}
}
