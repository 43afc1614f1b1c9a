package obslog

import (
	"bytes"
	"errors"
	"log"
	"log/slog"
	"testing"
)

func TestNewWritesThroughPrefixedLogger(t *testing.T) {
	var buf bytes.Buffer
	New(log.New(&buf, "[room R1] ", 0)).Warn("tick persist failed", "player", "p1", "error", errors.New("disk full"))
	want := "[room R1] level=WARN msg=\"tick persist failed\" player=p1 error=\"disk full\"\n"
	if got := buf.String(); got != want {
		t.Fatalf("got %q want %q", got, want)
	}
}

func TestNewDropsDebug(t *testing.T) {
	var buf bytes.Buffer
	New(log.New(&buf, "", 0)).Debug("move rejected", "reason", "not_adjacent")
	if buf.Len() != 0 {
		t.Fatalf("debug should be filtered, got %q", buf.String())
	}
}

func TestRecorder(t *testing.T) {
	rec := &Recorder{}
	l := rec.Logger()
	l.Info("joined", "session", "s1")
	l.Warn("dropped", "session", "s1")
	l.Warn("dropped", "session", "s2")
	if rec.Count(slog.LevelWarn) != 2 || rec.Count(slog.LevelInfo) != 1 {
		t.Fatalf("counts warn=%d info=%d", rec.Count(slog.LevelWarn), rec.Count(slog.LevelInfo))
	}
	if got := rec.Records[0].Attrs["session"]; got != "s1" {
		t.Fatalf("session attr=%v", got)
	}
	Nop().Error("ignored")
}
