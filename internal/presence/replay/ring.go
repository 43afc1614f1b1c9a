package replay

import "hexstride.io/internal/presence/model"

// ring is a fixed-capacity FIFO; pushing into a full ring evicts the oldest event.
type ring struct {
	buf   []model.ReplayEvent
	head  int
	count int
}

func newRing(capacity int) *ring {
	return &ring{buf: make([]model.ReplayEvent, capacity)}
}

func (r *ring) push(e model.ReplayEvent) {
	if len(r.buf) == 0 {
		return
	}
	idx := (r.head + r.count) % len(r.buf)
	r.buf[idx] = e
	if r.count < len(r.buf) {
		r.count++
		return
	}
	r.head = (r.head + 1) % len(r.buf)
}

func (r *ring) last() (model.ReplayEvent, bool) {
	if r.count == 0 {
		return model.ReplayEvent{}, false
	}
	return r.buf[(r.head+r.count-1)%len(r.buf)], true
}

// each visits events oldest first until fn returns false.
func (r *ring) each(fn func(model.ReplayEvent) bool) {
	for i := 0; i < r.count; i++ {
		if !fn(r.buf[(r.head+i)%len(r.buf)]) {
			return
		}
	}
}

func (r *ring) len() int { return r.count }
