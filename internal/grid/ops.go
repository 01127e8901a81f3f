package grid

import (
	"fmt"

	"github.com/AaronLay10/SignalGrid/internal/geom"
	"github.com/AaronLay10/SignalGrid/internal/node"
)

// Place builds a node of the named type at p and informs its neighbors.
func (g *Grid) Place(typeName string, p geom.Pos, facing geom.Direction, params node.Params) (NodeView, error) {
	if _, ok := node.Lookup(typeName); !ok {
		return NodeView{}, fmt.Errorf("%w: %q", ErrUnknownType, typeName)
	}
	g.mu.Lock()
	if _, ok := g.nodes[p]; ok {
		g.mu.Unlock()
		return NodeView{}, fmt.Errorf("%w: %s", ErrOccupied, p)
	}
	if _, ok := g.cells[p]; ok {
		g.mu.Unlock()
		return NodeView{}, fmt.Errorf("%w: %s holds a %s block", ErrOccupied, p, g.cells[p].Material)
	}
	n, err := node.Build(typeName, p, facing, params, g.host, g.host, g.policy)
	if err != nil {
		g.mu.Unlock()
		return NodeView{}, err
	}
	g.nodes[p] = n
	n.Place()
	g.markDirty(p)
	g.changed[p] = struct{}{}
	g.emit("info", "node.placed", "", map[string]interface{}{
		"pos":    p.String(),
		"type":   typeName,
		"facing": facing.String(),
	})
	v := viewOf(n)
	g.release()
	return v, nil
}

// Remove takes the node at p out of the grid. Its links are dropped as
// items at p and returned.
func (g *Grid) Remove(p geom.Pos) ([]node.Link, error) {
	g.mu.Lock()
	n, err := g.nodeAt(p)
	if err != nil {
		g.mu.Unlock()
		return nil, err
	}
	links := n.Remove()
	delete(g.nodes, p)
	g.queue.forget(n)
	delete(g.dirty, p)
	g.deleted[p] = struct{}{}
	g.changed[p] = struct{}{}
	g.emit("info", "node.removed", "", map[string]interface{}{
		"pos":   p.String(),
		"type":  n.Capability().Name(),
		"links": len(links),
	})
	g.release()
	return links, nil
}

// with runs fn on the node at p under the grid lock.
func (g *Grid) with(p geom.Pos, fn func(n *node.Node)) error {
	g.mu.Lock()
	n, err := g.nodeAt(p)
	if err != nil {
		g.mu.Unlock()
		return err
	}
	fn(n)
	g.release()
	return nil
}

// Activate presses the node at p. It reports false when the node type does
// not react to manual activation.
func (g *Grid) Activate(p geom.Pos) (bool, error) {
	var ok bool
	err := g.with(p, func(n *node.Node) {
		ok = n.Activate(node.CauseManual)
		g.emit("info", "operator.activate", "", map[string]interface{}{
			"pos":      p.String(),
			"accepted": ok,
			"powered":  n.Powered(),
		})
	})
	return ok, err
}

// Cycle performs a configuration gesture on the node at p.
func (g *Grid) Cycle(p geom.Pos, double bool) (node.CycleResult, error) {
	var r node.CycleResult
	err := g.with(p, func(n *node.Node) {
		r = n.CycleConfig(double)
		g.emit("info", "operator.cycle", "", map[string]interface{}{
			"pos":       p.String(),
			"result":    r.String(),
			"weak":      n.Weak(),
			"inverted":  n.Inverted(),
			"no_output": n.NoOutput(),
		})
	})
	return r, err
}

// SecondaryClick cancels a running pulse where the node type allows it.
func (g *Grid) SecondaryClick(p geom.Pos) (bool, error) {
	var ok bool
	err := g.with(p, func(n *node.Node) { ok = n.SecondaryClick() })
	return ok, err
}

// SetPulseTime sets the pulse length from an item count.
func (g *Grid) SetPulseTime(p geom.Pos, items int) (bool, error) {
	var ok bool
	err := g.with(p, func(n *node.Node) { ok = n.SetPulseTime(items) })
	return ok, err
}

// SetTint stores a 0..15 color tint.
func (g *Grid) SetTint(p geom.Pos, color int) error {
	if color < 0 || color > 15 {
		return fmt.Errorf("tint %d out of range 0..15", color)
	}
	return g.with(p, func(n *node.Node) { n.ApplyTint(color) })
}

// Touch configures a touch-configurable node from a face-local point.
func (g *Grid) Touch(p geom.Pos, x, y float64) (bool, error) {
	var ok bool
	err := g.with(p, func(n *node.Node) { ok = n.TouchConfigure(x, y) })
	return ok, err
}

// Reset returns the node at p to its placement configuration, unpowered,
// keeping its links.
func (g *Grid) Reset(p geom.Pos) error {
	return g.with(p, func(n *node.Node) {
		r := n.Record()
		r.SCD, r.Powered = 0, false
		n.Restore(r)
		g.notifyNeighbors(p)
		g.markDirty(p)
		g.changed[p] = struct{}{}
		g.emit("info", "node.configured", "reset", map[string]interface{}{"pos": p.String()})
	})
}

// SelectLinkTarget returns the link item for the node at p.
func (g *Grid) SelectLinkTarget(p geom.Pos) (node.Link, error) {
	var (
		l  node.Link
		ok bool
	)
	err := g.with(p, func(n *node.Node) {
		if l, ok = n.SelectAsTarget(); ok {
			g.emit("info", "link.selected", "", map[string]interface{}{"target": p.String(), "mode": l.Mode.String()})
		} else {
			g.emit("info", "link.rejected", "not a link target", map[string]interface{}{"target": p.String()})
		}
	})
	if err == nil && !ok {
		err = fmt.Errorf("node at %s does not accept links", p)
	}
	return l, err
}

// NextLinkMode cycles the mode of a link item for its target.
func (g *Grid) NextLinkMode(l node.Link) (node.Link, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	n, err := g.nodeAt(l.Target)
	if err != nil {
		return l, err
	}
	return node.NextMode(l, n), nil
}

// AssignLink attaches a link item to the source node at src.
func (g *Grid) AssignLink(src geom.Pos, l node.Link) (node.AssignResult, error) {
	var r node.AssignResult
	err := g.with(src, func(n *node.Node) {
		r = n.Assign(l)
		fields := map[string]interface{}{
			"source": src.String(),
			"target": l.Target.String(),
			"mode":   l.Mode.String(),
			"result": r.String(),
		}
		if r == node.Assigned {
			g.markDirty(src)
			g.emit("info", "link.assigned", "", fields)
		} else {
			g.emit("warn", "link.rejected", "", fields)
		}
	})
	return r, err
}

// LinkTo selects target as a link item with the given mode and assigns it
// to src in one step.
func (g *Grid) LinkTo(src, target geom.Pos, mode node.LinkMode) (node.AssignResult, error) {
	g.mu.Lock()
	t, err := g.nodeAt(target)
	if err != nil {
		g.mu.Unlock()
		return node.ErrFailed, err
	}
	supported := false
	for _, m := range t.SupportedModes() {
		supported = supported || m == mode
	}
	if !supported {
		g.mu.Unlock()
		return node.ErrFailed, fmt.Errorf("node at %s does not support link mode %s", target, mode)
	}
	l := node.Link{Target: target, TargetType: t.Capability().Name(), Mode: mode}
	g.mu.Unlock()
	return g.AssignLink(src, l)
}

// Unlink removes every link of the node at p. With drop set the link items
// are spawned at p.
func (g *Grid) Unlink(p geom.Pos, drop bool) ([]node.Link, error) {
	var out []node.Link
	err := g.with(p, func(n *node.Node) {
		out = n.UnlinkAll(drop)
		if len(out) > 0 {
			g.markDirty(p)
		}
		if !drop {
			for _, l := range out {
				g.emit("info", "link.unlinked", "", map[string]interface{}{
					"pos":    p.String(),
					"target": l.Target.String(),
				})
			}
		}
	})
	return out, err
}

// EntityInside reports an entity collision with the contact node at p.
func (g *Grid) EntityInside(p geom.Pos) error {
	return g.with(p, func(n *node.Node) { n.EntityInside() })
}
