package replay

import (
	"sync"
	"time"

	"hexstride.io/internal/presence/model"
)

// Subscriber receives every published event. It runs while the bus is locked,
// so it must be quick and must not publish.
type Subscriber func(model.ReplayEvent)

// Bus records presence lifecycle events in a bounded ring per (player, hex)
// key and fans them out to subscribers. Rooms and the decay processor publish
// from different goroutines; the bus lock gives every key one causal order.
type Bus struct {
	mu       sync.Mutex
	capacity int
	seq      uint64
	rings    map[model.Key]*ring
	subs     map[uint64]Subscriber
	order    []uint64
	nextSub  uint64
	now      func() time.Time
}

func NewBus(capacity int) *Bus {
	if capacity <= 0 {
		capacity = 64
	}
	return &Bus{
		capacity: capacity,
		rings:    map[model.Key]*ring{},
		subs:     map[uint64]Subscriber{},
		now:      time.Now,
	}
}

// Publish stamps e with a sequence number and appends it to its key's ring.
// A timestamp older than the key's newest event is raised to it, so a key's
// timeline never runs backwards.
func (b *Bus) Publish(e model.ReplayEvent) model.ReplayEvent {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.seq++
	e.Seq = b.seq
	if e.At.IsZero() {
		e.At = b.now()
	}
	r := b.rings[e.Key()]
	if r == nil {
		r = newRing(b.capacity)
		b.rings[e.Key()] = r
	}
	if prev, ok := r.last(); ok && e.At.Before(prev.At) {
		e.At = prev.At
	}
	r.push(e)

	for _, id := range b.order {
		b.subs[id](e)
	}
	return e
}

// Subscribe registers fn and returns a function that removes it.
func (b *Bus) Subscribe(fn func(model.ReplayEvent)) (unsubscribe func()) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextSub++
	id := b.nextSub
	b.subs[id] = fn
	b.order = append(b.order, id)
	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if _, ok := b.subs[id]; !ok {
			return
		}
		delete(b.subs, id)
		for i, v := range b.order {
			if v == id {
				b.order = append(b.order[:i], b.order[i+1:]...)
				break
			}
		}
	}
}

// Query returns the key's events with since <= At <= until, oldest first.
// A zero until means no upper bound; limit <= 0 means the whole window.
func (b *Bus) Query(playerID, hexID string, since, until time.Time, limit int) []model.ReplayEvent {
	b.mu.Lock()
	defer b.mu.Unlock()

	r := b.rings[model.Key{PlayerID: playerID, HexID: hexID}]
	if r == nil {
		return nil
	}
	out := make([]model.ReplayEvent, 0, r.len())
	r.each(func(e model.ReplayEvent) bool {
		if e.At.Before(since) {
			return true
		}
		if !until.IsZero() && e.At.After(until) {
			return false
		}
		out = append(out, e)
		return limit <= 0 || len(out) < limit
	})
	return out
}

func (b *Bus) Keys() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.rings)
}
