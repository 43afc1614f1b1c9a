package room

import (
	"time"

	"golang.org/x/time/rate"

	"hexstride.io/internal/protocol"
)

type sessionState int

const (
	stateJoining sessionState = iota
	stateActive
	stateClosing
)

func (s sessionState) String() string {
	switch s {
	case stateJoining:
		return "joining"
	case stateActive:
		return "active"
	case stateClosing:
		return "closing"
	}
	return "unknown"
}

// session is the live runtime state of one connection. Only the room loop
// touches it.
type session struct {
	id       string
	playerID string
	state    sessionState
	out      chan []byte

	hex        string
	dwellStart time.Time
	lastSample time.Time
	explored   map[string]struct{}

	limiter *rate.Limiter
	pending []protocol.UpdateEntry
}

func newSession(id, playerID string, out chan []byte, limits rateLimits) *session {
	return &session{
		id:       id,
		playerID: playerID,
		state:    stateJoining,
		out:      out,
		explored: map[string]struct{}{},
		limiter:  rate.NewLimiter(rate.Limit(limits.perSecond), limits.burst),
	}
}

func (s *session) dwell(now time.Time) time.Duration {
	if s.dwellStart.IsZero() || now.Before(s.dwellStart) {
		return 0
	}
	return now.Sub(s.dwellStart)
}

func (s *session) queue(u protocol.UpdateEntry) {
	s.pending = append(s.pending, u)
}

// clear drops everything a closing session still holds.
func (s *session) clear() {
	s.state = stateClosing
	s.pending = nil
	s.hex = ""
	s.dwellStart = time.Time{}
	s.limiter = nil
	s.explored = nil
}

type rateLimits struct {
	perSecond float64
	burst     int
}
