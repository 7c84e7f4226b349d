// Package history keeps the bounded trailing record of past samples used
// for charting. The ring is owned by the sampler; consumers only ever see
// snapshot copies.
package history

import "github.com/sysglance/sysglance/internal/model"

// Ring is a fixed-capacity FIFO of reduced sample points. Once full, each
// append evicts the oldest point. Not safe for concurrent use; the owning
// sampler serializes access.
type Ring struct {
	buf  []model.HistoryPoint
	head int // index of the oldest point
	n    int
}

// New returns a Ring holding at most capacity points. capacity must be
// positive; the sampler validates that before construction.
func New(capacity int) *Ring {
	return &Ring{buf: make([]model.HistoryPoint, capacity)}
}

// Append adds p, evicting the oldest point when the ring is full.
func (r *Ring) Append(p model.HistoryPoint) {
	if r.n < len(r.buf) {
		r.buf[(r.head+r.n)%len(r.buf)] = p
		r.n++
		return
	}
	r.buf[r.head] = p
	r.head = (r.head + 1) % len(r.buf)
}

// Snapshot returns the retained points oldest-first in a freshly allocated
// slice, so callers can iterate while the sampler keeps appending.
func (r *Ring) Snapshot() []model.HistoryPoint {
	out := make([]model.HistoryPoint, r.n)
	for i := 0; i < r.n; i++ {
		out[i] = r.buf[(r.head+i)%len(r.buf)]
	}
	return out
}

// Len reports how many points are currently retained.
func (r *Ring) Len() int { return r.n }

// Cap reports the fixed capacity.
func (r *Ring) Cap() int { return len(r.buf) }
