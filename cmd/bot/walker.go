package main

import (
	"math/rand"

	"hexstride.io/internal/worldmap"
)

// walker wanders between adjacent hexes. It does not know which tiles are
// blocked; a rejected move sends it back to the last accepted hex.
type walker struct {
	q, r     int
	prevQ    int
	prevR    int
	radius   int
	stayProb float64
	rng      *rand.Rand
}

func newWalker(spawn string, radius int, stayProb float64, rng *rand.Rand) (*walker, error) {
	q, r, err := worldmap.ParseHexID(spawn)
	if err != nil {
		return nil, err
	}
	return &walker{q: q, r: r, prevQ: q, prevR: r, radius: radius, stayProb: stayProb, rng: rng}, nil
}

func (w *walker) step() (string, bool) {
	if w.rng.Float64() < w.stayProb {
		return "", false
	}
	ns := worldmap.Neighbors(w.q, w.r, w.radius)
	if len(ns) == 0 {
		return "", false
	}
	next := ns[w.rng.Intn(len(ns))]
	q, r, err := worldmap.ParseHexID(next)
	if err != nil {
		return "", false
	}
	w.prevQ, w.prevR = w.q, w.r
	w.q, w.r = q, r
	return next, true
}

func (w *walker) reject() {
	w.q, w.r = w.prevQ, w.prevR
}

func (w *walker) hex() string { return worldmap.HexID(w.q, w.r) }
