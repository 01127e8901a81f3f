package grid

import (
	"container/heap"

	"github.com/AaronLay10/SignalGrid/internal/geom"
	"github.com/AaronLay10/SignalGrid/internal/node"
)

type scheduled struct {
	at  uint64
	seq uint64
	pos geom.Pos
	n   *node.Node
}

type schedKey struct {
	n  *node.Node
	at uint64
}

// tickQueue orders scheduled ticks by due tick, then by insertion. Entries
// are bound to the node instance, so a callback for a removed or replaced
// node is dropped instead of firing on its successor.
type tickQueue struct {
	items   entryHeap
	seq     uint64
	keys    map[schedKey]struct{}
	pending map[*node.Node]int
}

func (q *tickQueue) init() {
	q.keys = make(map[schedKey]struct{})
	q.pending = make(map[*node.Node]int)
}

func (q *tickQueue) Len() int { return len(q.items) }

// schedule adds a tick for n at tick at. Duplicate requests for the same
// node and tick collapse into one.
func (q *tickQueue) schedule(n *node.Node, p geom.Pos, at uint64) {
	k := schedKey{n, at}
	if _, ok := q.keys[k]; ok {
		return
	}
	q.keys[k] = struct{}{}
	q.pending[n]++
	q.seq++
	heap.Push(&q.items, scheduled{at: at, seq: q.seq, pos: p, n: n})
}

func (q *tickQueue) pendingFor(n *node.Node) int { return q.pending[n] }

// popDue removes and returns the next entry due at or before now.
func (q *tickQueue) popDue(now uint64) (scheduled, bool) {
	if len(q.items) == 0 || q.items[0].at > now {
		return scheduled{}, false
	}
	e := heap.Pop(&q.items).(scheduled)
	delete(q.keys, schedKey{e.n, e.at})
	if q.pending[e.n]--; q.pending[e.n] <= 0 {
		delete(q.pending, e.n)
	}
	return e, true
}

// forget drops the bookkeeping of a removed node; its heap entries are
// discarded lazily when they come due.
func (q *tickQueue) forget(n *node.Node) {
	delete(q.pending, n)
}

type entryHeap []scheduled

func (h entryHeap) Len() int { return len(h) }

func (h entryHeap) Less(i, j int) bool {
	if h[i].at != h[j].at {
		return h[i].at < h[j].at
	}
	return h[i].seq < h[j].seq
}

func (h entryHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *entryHeap) Push(x any) { *h = append(*h, x.(scheduled)) }

func (h *entryHeap) Pop() any {
	old := *h
	n := len(old)
	e := old[n-1]
	*h = old[:n-1]
	return e
}
