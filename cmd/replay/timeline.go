package main

import (
	"errors"
	"fmt"
	"time"

	persistlog "hexstride.io/internal/persistence/log"
	"hexstride.io/internal/presence/model"
)

type filter struct {
	PlayerID string
	HexID    string
	Type     model.ReplayType
	Since    time.Time
	Limit    int
}

func (f filter) match(e model.ReplayEvent) bool {
	if f.PlayerID != "" && e.PlayerID != f.PlayerID {
		return false
	}
	if f.HexID != "" && e.HexID != f.HexID {
		return false
	}
	if f.Type != "" && e.Type != f.Type {
		return false
	}
	return f.Since.IsZero() || !e.At.Before(f.Since)
}

type summary struct {
	Events     int
	Keys       int
	Violations []string
}

type keyState struct {
	seq uint64
	at  time.Time
}

var errLimit = errors.New("limit reached")

// scan streams matching events from files in order. Within one key both
// seq and timestamp must never go backwards; breaks are collected, not fatal.
func scan(files []string, f filter, fn func(model.ReplayEvent)) (summary, error) {
	var sum summary
	last := map[model.Key]keyState{}
	for _, path := range files {
		var stop error
		err := persistlog.ReadReplayFile(path, func(e model.ReplayEvent) bool {
			if !f.match(e) {
				return true
			}
			if prev, ok := last[e.Key()]; ok {
				if e.Seq <= prev.seq || e.At.Before(prev.at) {
					sum.Violations = append(sum.Violations, fmt.Sprintf("%s/%s seq=%d after seq=%d", e.PlayerID, e.HexID, e.Seq, prev.seq))
				}
			} else {
				sum.Keys++
			}
			last[e.Key()] = keyState{seq: e.Seq, at: e.At}
			sum.Events++
			fn(e)
			if f.Limit > 0 && sum.Events >= f.Limit {
				stop = errLimit
				return false
			}
			return true
		})
		if err != nil {
			return sum, err
		}
		if stop != nil {
			break
		}
	}
	return sum, nil
}
