package grid

import (
	"fmt"
	"slices"
	"sort"

	"github.com/AaronLay10/SignalGrid/internal/geom"
	"github.com/AaronLay10/SignalGrid/internal/node"
	"github.com/AaronLay10/SignalGrid/internal/sensor"
)

const (
	dayLength = 24000
	nightFrom = 13000
	skyScan   = 32
)

// Environment is the global weather and time of day.
type Environment struct {
	DayTime    int64 `json:"day_time" yaml:"day_time"`
	Raining    bool  `json:"raining" yaml:"raining"`
	Thundering bool  `json:"thundering" yaml:"thundering"`
	SkyLight   int   `json:"sky_light" yaml:"sky_light"`
	// Frozen stops the day time from advancing with the ticks.
	Frozen bool `json:"frozen" yaml:"frozen"`
}

func DefaultEnvironment() Environment {
	return Environment{SkyLight: 15}
}

// IsDay reports whether the sun is up.
func (e Environment) IsDay() bool {
	return e.DayTime%dayLength < nightFrom
}

// WorldUpdate is a partial environment change. Nil fields are left alone.
type WorldUpdate struct {
	DayTime    *int64 `json:"day_time,omitempty"`
	Raining    *bool  `json:"raining,omitempty"`
	Thundering *bool  `json:"thundering,omitempty"`
	SkyLight   *int   `json:"sky_light,omitempty"`
	Frozen     *bool  `json:"frozen,omitempty"`
}

func (u WorldUpdate) apply(e Environment) Environment {
	if u.DayTime != nil {
		e.DayTime = max(*u.DayTime, 0)
	}
	if u.Raining != nil {
		e.Raining = *u.Raining
	}
	if u.Thundering != nil {
		e.Thundering = *u.Thundering
	}
	if u.SkyLight != nil {
		e.SkyLight = min(max(*u.SkyLight, 0), 15)
	}
	if u.Frozen != nil {
		e.Frozen = *u.Frozen
	}
	return e
}

// Cell is a non-node block occupying a position.
type Cell struct {
	Material string           `json:"material"`
	Tags     []sensor.Matcher `json:"tags"`
}

// NewCell builds a cell from a material name and matcher tag names.
func NewCell(material string, tags ...string) (Cell, error) {
	c := Cell{Material: material}
	for _, t := range tags {
		m, err := sensor.ParseMatcher(t)
		if err != nil {
			return Cell{}, fmt.Errorf("cell %s: %w", material, err)
		}
		c.Tags = append(c.Tags, m)
	}
	return c, nil
}

func (c Cell) Has(m sensor.Matcher) bool { return slices.Contains(c.Tags, m) }

func (c Cell) Solid() bool { return c.Has(sensor.MatchSolid) }

// Inventory is the slot usage of a container cell.
type Inventory struct {
	Used int `json:"used"`
	Size int `json:"size"`
}

// DroppedItem is an item a node spawned into the world.
type DroppedItem struct {
	Pos  geom.Pos  `json:"pos"`
	Item node.Item `json:"item"`
	Tick uint64    `json:"tick"`
}

func less(a, b geom.Pos) bool {
	if a.X != b.X {
		return a.X < b.X
	}
	if a.Y != b.Y {
		return a.Y < b.Y
	}
	return a.Z < b.Z
}

func sortChanges(cs []Change) {
	sort.Slice(cs, func(i, j int) bool { return less(cs[i].Pos, cs[j].Pos) })
}

func sortEntities(es []sensor.Entity) {
	sort.Slice(es, func(i, j int) bool { return es[i].ID < es[j].ID })
}

// Environment returns the current environment.
func (g *Grid) Environment() Environment {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.env
}

// UpdateWorld applies a partial environment change.
func (g *Grid) UpdateWorld(u WorldUpdate) Environment {
	g.mu.Lock()
	g.env = u.apply(g.env)
	env := g.env
	g.emit("info", "operator.world", "", map[string]interface{}{
		"day_time":   env.DayTime,
		"raining":    env.Raining,
		"thundering": env.Thundering,
		"sky_light":  env.SkyLight,
	})
	g.release()
	return env
}

// SetCell places or replaces a block and informs the surrounding nodes.
func (g *Grid) SetCell(p geom.Pos, c Cell) error {
	g.mu.Lock()
	if _, ok := g.nodes[p]; ok {
		g.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrOccupied, p)
	}
	g.cells[p] = c
	g.notifyNeighbors(p)
	g.release()
	return nil
}

// ClearCell removes the block at p.
func (g *Grid) ClearCell(p geom.Pos) {
	g.mu.Lock()
	if _, ok := g.cells[p]; ok {
		delete(g.cells, p)
		g.notifyNeighbors(p)
	}
	g.release()
}

// SetBlockLight sets the emitted light level at p (0 removes it).
func (g *Grid) SetBlockLight(p geom.Pos, level int) {
	g.mu.Lock()
	if level <= 0 {
		delete(g.blockLight, p)
	} else {
		g.blockLight[p] = min(level, 15)
	}
	g.release()
}

// SetInventory sets the slot usage of a container at p. A zero size
// removes the container.
func (g *Grid) SetInventory(p geom.Pos, inv Inventory) {
	g.mu.Lock()
	if inv.Size <= 0 {
		delete(g.inventories, p)
	} else {
		inv.Used = min(max(inv.Used, 0), inv.Size)
		g.inventories[p] = inv
	}
	g.notifyNeighbors(p)
	g.release()
}

// SetOverride sets a comparator-style override level at p; a negative
// level removes it.
func (g *Grid) SetOverride(p geom.Pos, level int) {
	g.mu.Lock()
	if level < 0 {
		delete(g.overrides, p)
	} else {
		g.overrides[p] = min(level, 15)
	}
	g.notifyNeighbors(p)
	g.release()
}

// SetInput drives an external signal source at p, as if a powered block
// sat there. Level 0 removes the source.
func (g *Grid) SetInput(p geom.Pos, level int) error {
	g.mu.Lock()
	if _, ok := g.nodes[p]; ok {
		g.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrOccupied, p)
	}
	level = min(max(level, 0), 15)
	if level == g.sources[p] {
		g.mu.Unlock()
		return nil
	}
	if level == 0 {
		delete(g.sources, p)
	} else {
		g.sources[p] = level
	}
	g.notifyNeighbors(p)
	g.release()
	return nil
}

// Input returns the external source level at p.
func (g *Grid) Input(p geom.Pos) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.sources[p]
}

// PutEntity adds or moves an entity. Contact nodes it stands on are
// informed immediately.
func (g *Grid) PutEntity(e sensor.Entity) {
	g.mu.Lock()
	g.entities[e.ID] = e
	feet := cellOf(e.Pos)
	for _, p := range []geom.Pos{feet, feet.Add(0, -1, 0)} {
		if n, ok := g.nodes[p]; ok && n.Capability().Kind() == node.Contact {
			n.EntityInside()
		}
	}
	g.release()
}

// RemoveEntity removes an entity by id.
func (g *Grid) RemoveEntity(id string) {
	g.mu.Lock()
	delete(g.entities, id)
	g.mu.Unlock()
}

// Dropped returns and clears the items spawned since the last call.
func (g *Grid) Dropped() []DroppedItem {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := g.dropped
	g.dropped = nil
	return out
}
