package node

import (
	"github.com/AaronLay10/SignalGrid/internal/geom"
	"github.com/AaronLay10/SignalGrid/internal/sensor"
)

// Record is the durable state of a node. Timers and debounce counters are
// ephemeral and start fresh after a restore.
type Record struct {
	Pos     geom.Pos       `json:"pos"`
	Type    string         `json:"type"`
	Facing  geom.Direction `json:"facing"`
	Powered bool           `json:"powered"`
	SCD     uint32         `json:"scd"`
	SVD     uint32         `json:"svd"`
	Links   []Link         `json:"links,omitempty"`
}

// Record captures the durable state.
func (n *Node) Record() Record {
	return Record{
		Pos:     n.pos,
		Type:    n.cap.Name(),
		Facing:  n.facing,
		Powered: n.powered,
		SCD:     uint32(n.cfg),
		SVD:     uint32(n.val),
		Links:   n.Links(),
	}
}

// Restore loads durable state. A zero scd is treated as broken data and
// resets the node to its defaults.
func (n *Node) Restore(r Record) {
	n.Reset()
	if r.SCD != 0 {
		n.cfg = scd(r.SCD)
		n.val = svd(r.SVD)
	}
	n.links = append([]Link(nil), r.Links...)
	n.setPowered(r.Powered)
	switch v := n.variant.(type) {
	case sensor.Poller:
		n.schedulePoll(v)
	}
	if n.powered && n.cap.Timed() {
		n.reschedule()
	}
}
