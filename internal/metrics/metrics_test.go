package metrics

import (
	"bytes"
	"strings"
	"testing"
)

func TestRegistry_CountersAndGauges(t *testing.T) {
	r := NewRegistry("hexstride_")
	r.Describe("move_rejected_total", "Rejected movement samples.")
	Inc(r, "move_rejected_total", T("room", "R1"), T("reason", "tile_not_found"))
	r.Add("move_rejected_total", 2, T("reason", "tile_not_found"), T("room", "R1"))
	r.Set("room_sessions", 3, T("room", "R1"))
	r.Set("room_sessions", 1, T("room", "R1"))

	if got := r.Value("move_rejected_total", T("room", "R1"), T("reason", "tile_not_found")); got != 3 {
		t.Fatalf("counter=%v want 3 (tag order must not matter)", got)
	}
	if got := r.Value("room_sessions", T("room", "R1")); got != 1 {
		t.Fatalf("gauge=%v want 1", got)
	}

	var buf bytes.Buffer
	r.WritePrometheus(&buf)
	out := buf.String()
	for _, want := range []string{
		"# HELP hexstride_move_rejected_total Rejected movement samples.\n",
		"# TYPE hexstride_move_rejected_total counter\n",
		`hexstride_move_rejected_total{reason="tile_not_found",room="R1"} 3` + "\n",
		"# TYPE hexstride_room_sessions gauge\n",
		`hexstride_room_sessions{room="R1"} 1` + "\n",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("missing %q in:\n%s", want, out)
		}
	}
}

func TestInc_NilSink(t *testing.T) {
	Inc(nil, "x")
	Inc(Nop(), "x")
}
