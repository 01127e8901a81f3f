package events

import "sync"

// RingBuffer keeps the most recent events in memory. Adding to a full
// buffer overwrites the oldest event.
type RingBuffer struct {
	mu    sync.RWMutex
	slots []Event
	head  int // next write position
	count int
}

func NewRingBuffer(size int) *RingBuffer {
	return &RingBuffer{slots: make([]Event, max(size, 1))}
}

func (rb *RingBuffer) Add(e Event) {
	rb.mu.Lock()
	rb.slots[rb.head] = e
	rb.head = (rb.head + 1) % len(rb.slots)
	rb.count = min(rb.count+1, len(rb.slots))
	rb.mu.Unlock()
}

// Last returns up to n of the newest events, oldest first. n <= 0 returns
// everything buffered.
func (rb *RingBuffer) Last(n int) []Event {
	rb.mu.RLock()
	defer rb.mu.RUnlock()
	if n <= 0 || n > rb.count {
		n = rb.count
	}
	out := make([]Event, n)
	start := rb.head - n
	if start < 0 {
		start += len(rb.slots)
	}
	for i := range out {
		out[i] = rb.slots[(start+i)%len(rb.slots)]
	}
	return out
}

// Snapshot returns every buffered event, oldest first.
func (rb *RingBuffer) Snapshot() []Event { return rb.Last(0) }

func (rb *RingBuffer) Clear() {
	rb.mu.Lock()
	clear(rb.slots)
	rb.head, rb.count = 0, 0
	rb.mu.Unlock()
}

func (rb *RingBuffer) Len() int {
	rb.mu.RLock()
	defer rb.mu.RUnlock()
	return rb.count
}
