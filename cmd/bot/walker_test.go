package main

import (
	"math/rand"
	"testing"

	"hexstride.io/internal/worldmap"
)

func TestWalker_StaysAdjacentAndInside(t *testing.T) {
	w, err := newWalker("q=0,r=0", 2, 0, rand.New(rand.NewSource(7)))
	if err != nil {
		t.Fatalf("walker: %v", err)
	}
	for i := 0; i < 200; i++ {
		pq, pr := w.q, w.r
		next, moved := w.step()
		if !moved {
			t.Fatalf("step %d did not move with stay=0", i)
		}
		q, r, err := worldmap.ParseHexID(next)
		if err != nil {
			t.Fatalf("bad id %s", next)
		}
		if worldmap.Distance(pq, pr, q, r) != 1 || worldmap.Distance(0, 0, q, r) > 2 {
			t.Fatalf("step %d: %d,%d -> %s", i, pq, pr, next)
		}
	}
}

func TestWalker_RejectReturns(t *testing.T) {
	w, _ := newWalker("q=1,r=0", 4, 0, rand.New(rand.NewSource(1)))
	if _, moved := w.step(); !moved {
		t.Fatalf("expected a move")
	}
	w.reject()
	if w.hex() != "q=1,r=0" {
		t.Fatalf("hex=%s want q=1,r=0", w.hex())
	}
	if _, err := newWalker("nope", 4, 0, rand.New(rand.NewSource(1))); err == nil {
		t.Fatalf("bad spawn must fail")
	}
}
