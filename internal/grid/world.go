package grid

import (
	"math"

	"github.com/AaronLay10/SignalGrid/internal/geom"
	"github.com/AaronLay10/SignalGrid/internal/node"
	"github.com/AaronLay10/SignalGrid/internal/sensor"
)

// hostWorld is the node-facing view of the grid. Its methods are only
// called from node code, which runs with the grid lock held.
type hostWorld struct {
	g *Grid
}

var (
	_ node.World   = (*hostWorld)(nil)
	_ node.Effects = (*hostWorld)(nil)
)

func (w *hostWorld) NodeAt(p geom.Pos) (*node.Node, bool) {
	n, ok := w.g.nodes[p]
	return n, ok
}

func (w *hostWorld) SetPowered(p geom.Pos, powered bool) {
	g := w.g
	n, ok := g.nodes[p]
	if !ok || n.Powered() == powered {
		// Placement and restore also pass through here before the node is
		// registered; the caller records those.
		if ok {
			g.changed[p] = struct{}{}
		}
		return
	}
	g.changed[p] = struct{}{}
	g.markDirty(p)
	name := "node.unpowered"
	if powered {
		name = "node.powered"
	}
	g.emit("info", name, "", map[string]interface{}{
		"pos":  p.String(),
		"type": n.Capability().Name(),
		"tick": g.tick,
	})
}

func (w *hostWorld) ScheduleTick(p geom.Pos, delay int) {
	g := w.g
	n, ok := g.nodes[p]
	if !ok {
		return
	}
	g.queue.schedule(n, p, g.tick+uint64(max(delay, 1)))
}

func (w *hostWorld) IsTickScheduled(p geom.Pos) bool {
	n, ok := w.g.nodes[p]
	return ok && w.g.queue.pendingFor(n) > 0
}

func (w *hostWorld) NotifyNeighbor(p, from geom.Pos) {
	w.g.notifyQ = append(w.g.notifyQ, notification{pos: p, from: from})
}

func (w *hostWorld) SpawnItem(p geom.Pos, item node.Item) {
	g := w.g
	g.dropped = append(g.dropped, DroppedItem{Pos: p, Item: item, Tick: g.tick})
	fields := map[string]interface{}{"pos": p.String(), "item": item.Name}
	if item.Link != nil {
		fields["target"] = item.Link.Target.String()
	}
	g.emit("info", "link.unlinked", "", fields)
}

func (w *hostWorld) CurrentTick() uint64 { return w.g.tick }

func (w *hostWorld) SignalFrom(from geom.Pos, dir geom.Direction) int {
	if n, ok := w.g.nodes[from]; ok {
		return n.PowerToward(dir, false)
	}
	return w.g.sources[from]
}

// Play implements node.Effects.
func (w *hostWorld) Play(e node.Effect, p geom.Pos) {
	w.g.metrics.Effect(e.String())
	w.g.emit("debug", "effect.played", "", map[string]interface{}{
		"pos":    p.String(),
		"effect": e.String(),
	})
}

// Probe

func (w *hostWorld) Entities(area geom.Box, f sensor.EntityFilter) []sensor.Entity {
	var out []sensor.Entity
	for _, e := range w.g.entities {
		if area.Contains(e.Pos) && f.Matches(e.Class) {
			out = append(out, e)
		}
	}
	sortEntities(out)
	return out
}

// Unobstructed walks the segment in quarter-cell steps and fails on the
// first solid cell other than the two endpoints' own cells.
func (w *hostWorld) Unobstructed(from, to geom.Vec3) bool {
	start, end := cellOf(from), cellOf(to)
	dx, dy, dz := to.X-from.X, to.Y-from.Y, to.Z-from.Z
	dist := math.Sqrt(dx*dx + dy*dy + dz*dz)
	steps := int(dist * 4)
	for i := 1; i < steps; i++ {
		t := float64(i) / float64(steps)
		c := cellOf(geom.Vec3{X: from.X + dx*t, Y: from.Y + dy*t, Z: from.Z + dz*t})
		if c == start || c == end {
			continue
		}
		if cell, ok := w.g.cells[c]; ok && cell.Solid() {
			return false
		}
	}
	return true
}

func cellOf(v geom.Vec3) geom.Pos {
	return geom.Pos{X: int(math.Floor(v.X)), Y: int(math.Floor(v.Y)), Z: int(math.Floor(v.Z))}
}

func (w *hostWorld) Loaded(p geom.Pos) bool {
	return w.g.bounds == nil || w.g.bounds.Contains(p.Center())
}

func (w *hostWorld) LightLevel(p geom.Pos) int {
	sky := w.g.env.SkyLight
	if !w.g.env.IsDay() {
		sky /= 4
	}
	if !w.skyVisible(p) {
		sky = 0
	}
	return max(sky, w.g.blockLight[p])
}

func (w *hostWorld) DayTime() int64 { return w.g.env.DayTime }

func (w *hostWorld) RainingAt(p geom.Pos) bool {
	return w.g.env.Raining && w.skyVisible(p)
}

func (w *hostWorld) Thundering() bool { return w.g.env.Thundering }

// skyVisible reports whether no solid cell lies above p within skyScan cells.
func (w *hostWorld) skyVisible(p geom.Pos) bool {
	for y := 1; y <= skyScan; y++ {
		if c, ok := w.g.cells[geom.Pos{X: p.X, Y: p.Y + y, Z: p.Z}]; ok && c.Solid() {
			return false
		}
	}
	return true
}

func (w *hostWorld) Override(p geom.Pos) (int, bool) {
	v, ok := w.g.overrides[p]
	return v, ok
}

func (w *hostWorld) Slots(p geom.Pos) (int, int, bool) {
	inv, ok := w.g.inventories[p]
	if !ok || inv.Size <= 0 {
		return 0, 0, false
	}
	return inv.Used, inv.Size, true
}

// Signal returns the strongest level reaching p from its neighbors, not
// counting skip, plus any external source placed at p.
func (w *hostWorld) Signal(p, skip geom.Pos) int {
	best := w.g.sources[p]
	for _, d := range geom.Directions {
		nb := p.Neighbor(d)
		if nb == skip {
			continue
		}
		best = max(best, w.SignalFrom(nb, d.Opposite()))
	}
	return best
}

func (w *hostWorld) Match(p geom.Pos, m sensor.Matcher) bool {
	c, ok := w.g.cells[p]
	switch m {
	case sensor.MatchAir:
		return !ok
	case sensor.MatchAny:
		return ok
	}
	return ok && c.Has(m)
}
