package worldmap

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"hexstride.io/internal/presence/tuning"
)

var ErrBadHexID = errors.New("bad hex id")

type Tile struct {
	Q         int    `json:"q"`
	R         int    `json:"r"`
	Navigable bool   `json:"navigable"`
	RegionID  string `json:"region_id"`
}

// Lookup is the read-only world collaborator consumed by rooms and the store.
type Lookup interface {
	TileAt(q, r int) (Tile, bool)
}

// Map is a deterministic axial hex map of a fixed radius around the origin.
type Map struct {
	radius          int
	seed            int64
	blockedPermille int
	regionSize      int
}

func New(cfg tuning.World) *Map {
	rs := cfg.RegionSize
	if rs <= 0 {
		rs = 8
	}
	return &Map{
		radius:          cfg.Radius,
		seed:            cfg.Seed,
		blockedPermille: cfg.BlockedPermille,
		regionSize:      rs,
	}
}

func (m *Map) Radius() int { return m.radius }
func (m *Map) Seed() int64 { return m.seed }

func (m *Map) TileAt(q, r int) (Tile, bool) {
	if Distance(0, 0, q, r) > m.radius {
		return Tile{}, false
	}
	t := Tile{Q: q, R: r, RegionID: m.regionID(q, r)}
	// The origin ring stays open so spawns always have somewhere to stand.
	t.Navigable = Distance(0, 0, q, r) <= 1 || int(hash2(m.seed, q, r)%1000) >= m.blockedPermille
	return t, true
}

func (m *Map) SpawnHex() string { return HexID(0, 0) }

// TileCount is the number of tiles inside the radius.
func (m *Map) TileCount() int {
	return 3*m.radius*(m.radius+1) + 1
}

func (m *Map) regionID(q, r int) string {
	return fmt.Sprintf("R%d_%d", floorDiv(q, m.regionSize), floorDiv(r, m.regionSize))
}

func Distance(q1, r1, q2, r2 int) int {
	dq := q1 - q2
	dr := r1 - r2
	return (abs(dq) + abs(dr) + abs(dq+dr)) / 2
}

var directions = [6][2]int{{1, 0}, {1, -1}, {0, -1}, {-1, 0}, {-1, 1}, {0, 1}}

// Neighbors returns the six adjacent hex ids within radius of the origin.
func Neighbors(q, r, radius int) []string {
	out := make([]string, 0, len(directions))
	for _, d := range directions {
		nq, nr := q+d[0], r+d[1]
		if Distance(0, 0, nq, nr) <= radius {
			out = append(out, HexID(nq, nr))
		}
	}
	return out
}

func HexID(q, r int) string {
	return fmt.Sprintf("q=%d,r=%d", q, r)
}

// ParseHexID accepts the canonical "q=<int>,r=<int>" form.
func ParseHexID(id string) (q, r int, err error) {
	parts := strings.Split(strings.TrimSpace(id), ",")
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("%w: %q", ErrBadHexID, id)
	}
	qs, ok := strings.CutPrefix(strings.TrimSpace(parts[0]), "q=")
	if !ok {
		return 0, 0, fmt.Errorf("%w: %q", ErrBadHexID, id)
	}
	rs, ok := strings.CutPrefix(strings.TrimSpace(parts[1]), "r=")
	if !ok {
		return 0, 0, fmt.Errorf("%w: %q", ErrBadHexID, id)
	}
	q, err = strconv.Atoi(qs)
	if err != nil {
		return 0, 0, fmt.Errorf("%w: %q", ErrBadHexID, id)
	}
	r, err = strconv.Atoi(rs)
	if err != nil {
		return 0, 0, fmt.Errorf("%w: %q", ErrBadHexID, id)
	}
	return q, r, nil
}

// Known reports whether id parses and names a tile of the lookup.
func Known(l Lookup, id string) bool {
	q, r, err := ParseHexID(id)
	if err != nil {
		return false
	}
	_, ok := l.TileAt(q, r)
	return ok
}

func hash2(seed int64, q, r int) uint64 {
	// splitmix64 over the packed coordinates.
	x := uint64(seed) ^ (uint64(uint32(q)) << 32) ^ uint64(uint32(r))
	x += 0x9e3779b97f4a7c15
	x = (x ^ (x >> 30)) * 0xbf58476d1ce4e5b9
	x = (x ^ (x >> 27)) * 0x94d049bb133111eb
	return x ^ (x >> 31)
}

func floorDiv(a, b int) int {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
