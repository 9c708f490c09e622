package otel

import (
	"maps"
	"slices"
	"sync"
)

// DefaultRingSize is used when NewRingBuffer is given a non-positive size.
const DefaultRingSize = 1024

// RingBuffer keeps the newest events in memory for the debug endpoint and
// the TUI overlay. It is safe for concurrent use.
type RingBuffer struct {
	mu     sync.Mutex
	events []Event
	next   int  // slot the next Push overwrites once full
	full   bool // events has reached capacity
	limit  int
}

// NewRingBuffer returns a buffer holding at most size events.
func NewRingBuffer(size int) *RingBuffer {
	if size <= 0 {
		size = DefaultRingSize
	}
	return &RingBuffer{events: make([]Event, 0, size), limit: size}
}

// Push stores e, evicting the oldest event when the buffer is full.
func (r *RingBuffer) Push(e Event) {
	e.Extra = maps.Clone(e.Extra)

	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.full {
		r.events = append(r.events, e)
		r.full = len(r.events) == r.limit
		return
	}
	r.events[r.next] = e
	r.next = (r.next + 1) % r.limit
}

// ordered returns the buffered events oldest first. Caller holds r.mu.
func (r *RingBuffer) ordered() []Event {
	if !r.full {
		return r.events
	}
	return append(slices.Clone(r.events[r.next:]), r.events[:r.next]...)
}

// Snapshot copies every buffered event, oldest first.
func (r *RingBuffer) Snapshot() []Event {
	return r.Last(r.limit)
}

// Last copies up to n of the newest events, oldest first.
func (r *RingBuffer) Last(n int) []Event {
	return r.LastOf(n, "")
}

// LastOf copies up to n of the newest events of the given kind, oldest
// first. An empty kind matches every event. The result is nil when nothing
// matches.
func (r *RingBuffer) LastOf(n int, kind EventKind) []Event {
	if n <= 0 {
		return nil
	}

	r.mu.Lock()
	all := r.ordered()
	var out []Event
	for i := len(all) - 1; i >= 0 && len(out) < n; i-- {
		if kind == "" || all[i].Kind == kind {
			out = append(out, all[i])
		}
	}
	r.mu.Unlock()

	slices.Reverse(out)
	return out
}

// Len reports how many events are buffered.
func (r *RingBuffer) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.events)
}

// Cap reports the maximum number of buffered events.
func (r *RingBuffer) Cap() int { return r.limit }

// Stats tallies the buffered events per kind.
func (r *RingBuffer) Stats() map[EventKind]int {
	r.mu.Lock()
	defer r.mu.Unlock()

	tally := make(map[EventKind]int)
	for _, e := range r.events {
		tally[e.Kind]++
	}
	return tally
}
