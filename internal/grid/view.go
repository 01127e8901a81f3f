package grid

import (
	"sort"

	"github.com/AaronLay10/SignalGrid/internal/geom"
	"github.com/AaronLay10/SignalGrid/internal/node"
)

// NodeView is a read-only snapshot of one node.
type NodeView struct {
	Pos       geom.Pos       `json:"pos"`
	Type      string         `json:"type"`
	Kind      string         `json:"kind"`
	Facing    geom.Direction `json:"facing"`
	Powered   bool           `json:"powered"`
	Power     int            `json:"power"`
	OnPower   int            `json:"on_power"`
	OffPower  int            `json:"off_power"`
	Inverted  bool           `json:"inverted"`
	Weak      bool           `json:"weak"`
	NoOutput  bool           `json:"no_output"`
	OnTime    int            `json:"on_time"`
	Remaining int            `json:"remaining"`
	Tint      int            `json:"tint"`
	Input     int            `json:"input,omitempty"`
	Links     []node.Link    `json:"links,omitempty"`
}

func viewOf(n *node.Node) NodeView {
	c := n.Capability()
	return NodeView{
		Pos:       n.Pos(),
		Type:      c.Name(),
		Kind:      c.Kind().String(),
		Facing:    n.Facing(),
		Powered:   n.Powered(),
		Power:     n.Power(false),
		OnPower:   n.OnPower(),
		OffPower:  n.OffPower(),
		Inverted:  n.Inverted(),
		Weak:      n.Weak(),
		NoOutput:  n.NoOutput(),
		OnTime:    n.ConfiguredOnTime(),
		Remaining: n.Remaining(),
		Tint:      n.Tint(),
		Input:     n.Input(),
		Links:     n.Links(),
	}
}

// Node returns a snapshot of the node at p.
func (g *Grid) Node(p geom.Pos) (NodeView, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	n, err := g.nodeAt(p)
	if err != nil {
		return NodeView{}, err
	}
	return viewOf(n), nil
}

// Snapshot returns all nodes ordered by position.
func (g *Grid) Snapshot() []NodeView {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]NodeView, 0, len(g.nodes))
	for _, n := range g.nodes {
		out = append(out, viewOf(n))
	}
	sort.Slice(out, func(i, j int) bool { return less(out[i].Pos, out[j].Pos) })
	return out
}

// HasNode reports whether a node sits at p.
func (g *Grid) HasNode(p geom.Pos) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	_, ok := g.nodes[p]
	return ok
}

// Len returns the number of placed nodes.
func (g *Grid) Len() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.nodes)
}
