package decay

import (
	"errors"
	"sync"
	"sync/atomic"

	"hexstride.io/internal/presence/model"
)

// ErrDropped reports that at least one subscriber's mailbox was full.
var ErrDropped = errors.New("decay event dropped")

// Hub carries decay events from the batch processor to every live room.
// Each subscriber gets its own buffered mailbox; a slow room loses events
// instead of stalling the batch.
type Hub struct {
	mu     sync.RWMutex
	buffer int
	subs   map[string]chan model.DecayEvent

	dropped atomic.Uint64
}

func NewHub(buffer int) *Hub {
	if buffer <= 0 {
		buffer = 256
	}
	return &Hub{buffer: buffer, subs: map[string]chan model.DecayEvent{}}
}

// Subscribe registers a mailbox under id. Subscribing an id twice replaces the
// old mailbox and closes it.
func (h *Hub) Subscribe(id string) (<-chan model.DecayEvent, func()) {
	ch := make(chan model.DecayEvent, h.buffer)
	h.mu.Lock()
	if old, ok := h.subs[id]; ok {
		close(old)
	}
	h.subs[id] = ch
	h.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()
			if cur, ok := h.subs[id]; ok && cur == ch {
				delete(h.subs, id)
				close(ch)
			}
		})
	}
}

// Publish delivers ev to every subscriber without blocking and returns how many
// mailboxes accepted it.
func (h *Hub) Publish(ev model.DecayEvent) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	n := 0
	for _, ch := range h.subs {
		select {
		case ch <- ev:
			n++
		default:
			h.dropped.Add(1)
		}
	}
	return n
}

// Notify is Publish shaped as a processor callback.
func (h *Hub) Notify(ev model.DecayEvent) error {
	h.mu.RLock()
	total := len(h.subs)
	h.mu.RUnlock()
	if n := h.Publish(ev); n < total {
		return ErrDropped
	}
	return nil
}

func (h *Hub) Dropped() uint64 { return h.dropped.Load() }

func (h *Hub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}
