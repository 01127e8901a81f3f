// Package grid hosts signal nodes in an in-memory world and drives them
// tick by tick.
package grid

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/AaronLay10/SignalGrid/internal/events"
	"github.com/AaronLay10/SignalGrid/internal/geom"
	"github.com/AaronLay10/SignalGrid/internal/metrics"
	"github.com/AaronLay10/SignalGrid/internal/node"
	"github.com/AaronLay10/SignalGrid/internal/sensor"
)

var (
	ErrNoNode      = errors.New("no node at position")
	ErrUnknownType = errors.New("unknown node type")
	ErrOccupied    = errors.New("position occupied")
)

// maxNotifications bounds one drain of the neighbor queue so a feedback
// loop cannot stall the tick.
const maxNotifications = 1 << 16

// Change is reported to listeners whenever a node's output may have changed.
type Change struct {
	Pos     geom.Pos `json:"pos"`
	Type    string   `json:"type"`
	Powered bool     `json:"powered"`
	Power   int      `json:"power"`
	Tick    uint64   `json:"tick"`
	Removed bool     `json:"removed,omitempty"`
}

type pendingEvent struct {
	level, name, msg string
	fields           map[string]interface{}
}

type notification struct {
	pos, from geom.Pos
}

// Grid is the host world. All exported methods are safe for concurrent use;
// node callbacks run with the grid lock held.
type Grid struct {
	mu sync.Mutex

	id      string
	policy  *node.Options
	metrics *metrics.GridCollector
	logger  *slog.Logger
	store   Store
	bounds  *geom.Box

	tick    uint64
	nodes   map[geom.Pos]*node.Node
	queue   tickQueue
	notifyQ []notification

	env         Environment
	cells       map[geom.Pos]Cell
	entities    map[string]sensor.Entity
	inventories map[geom.Pos]Inventory
	overrides   map[geom.Pos]int
	sources     map[geom.Pos]int
	blockLight  map[geom.Pos]int
	dropped     []DroppedItem

	dirty   map[geom.Pos]struct{}
	deleted map[geom.Pos]struct{}
	changed map[geom.Pos]struct{}

	paused    bool
	listeners []func(Change)
	pending   []pendingEvent

	host *hostWorld
}

// Option configures a Grid.
type Option func(*Grid)

// WithPolicy replaces the default node policy. Hooks are owned by the grid.
func WithPolicy(p node.Options) Option {
	return func(g *Grid) {
		hooks := g.policy.Hooks
		*g.policy = p
		g.policy.Hooks = hooks
	}
}

func WithMetrics(m *metrics.GridCollector) Option {
	return func(g *Grid) { g.metrics = m }
}

func WithLogger(l *slog.Logger) Option {
	return func(g *Grid) { g.logger = l }
}

func WithStore(s Store) Option {
	return func(g *Grid) { g.store = s }
}

// WithBounds limits the loaded region; cells outside read as unloaded.
func WithBounds(b geom.Box) Option {
	return func(g *Grid) { g.bounds = &b }
}

// WithEnvironment sets the initial weather and time.
func WithEnvironment(e Environment) Option {
	return func(g *Grid) { g.env = e }
}

// New creates an empty grid.
func New(id string, opts ...Option) *Grid {
	def := node.DefaultOptions()
	g := &Grid{
		id:          id,
		policy:      &def,
		logger:      slog.New(slog.NewTextHandler(io.Discard, nil)),
		nodes:       make(map[geom.Pos]*node.Node),
		cells:       make(map[geom.Pos]Cell),
		entities:    make(map[string]sensor.Entity),
		inventories: make(map[geom.Pos]Inventory),
		overrides:   make(map[geom.Pos]int),
		sources:     make(map[geom.Pos]int),
		blockLight:  make(map[geom.Pos]int),
		dirty:       make(map[geom.Pos]struct{}),
		deleted:     make(map[geom.Pos]struct{}),
		changed:     make(map[geom.Pos]struct{}),
		env:         DefaultEnvironment(),
	}
	g.queue.init()
	g.host = &hostWorld{g: g}
	for _, opt := range opts {
		opt(g)
	}
	g.installHooks()
	return g
}

// ID returns the grid id.
func (g *Grid) ID() string { return g.id }

// OnChange registers a listener for output changes. Listeners run outside
// the grid lock, in registration order.
func (g *Grid) OnChange(fn func(Change)) {
	g.mu.Lock()
	g.listeners = append(g.listeners, fn)
	g.mu.Unlock()
}

// ApplyPolicy swaps the policy switches at runtime. Sensor intervals only
// apply to nodes placed afterwards.
func (g *Grid) ApplyPolicy(p node.Options) {
	g.mu.Lock()
	hooks, clock := g.policy.Hooks, g.policy.Clock
	*g.policy = p
	g.policy.Hooks = hooks
	if g.policy.Clock == nil {
		g.policy.Clock = clock
	}
	g.emit("info", "config.reloaded", "policy applied", map[string]interface{}{
		"without_linking":   p.WithoutLinking,
		"without_no_output": p.WithoutNoOutput,
		"max_link_distance": p.MaxLinkDistance,
	})
	g.release()
}

// Policy returns a copy of the active policy.
func (g *Grid) Policy() node.Options {
	g.mu.Lock()
	defer g.mu.Unlock()
	return *g.policy
}

// Tick returns the current tick.
func (g *Grid) Tick() uint64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.tick
}

func (g *Grid) installHooks() {
	g.policy.Hooks = node.Hooks{
		Activated: func(n *node.Node, cause node.Cause) {
			g.metrics.Activation(n.Capability().Name(), cause.String())
			g.markDirty(n.Pos())
		},
		LinkRequest: func(src *node.Node, l node.Link, r node.RequestResult) {
			g.metrics.LinkRequest(r.String())
			if r.Failed() {
				g.emit("warn", "link.failed", "", map[string]interface{}{
					"source": src.Pos().String(),
					"target": l.Target.String(),
					"mode":   l.Mode.String(),
					"result": r.String(),
				})
			}
		},
		Configured: func(n *node.Node) {
			g.markDirty(n.Pos())
			g.changed[n.Pos()] = struct{}{}
			g.emit("info", "node.configured", "", map[string]interface{}{
				"pos":  n.Pos().String(),
				"type": n.Capability().Name(),
			})
		},
		Polled: func(n *node.Node, out sensor.Outcome) {
			g.metrics.SensorPoll(n.Capability().Sensor().String())
		},
	}
}

// emit queues an event for delivery once the lock is released.
func (g *Grid) emit(level, name, msg string, fields map[string]interface{}) {
	g.pending = append(g.pending, pendingEvent{level, name, msg, fields})
}

func (g *Grid) markDirty(p geom.Pos) {
	g.dirty[p] = struct{}{}
	delete(g.deleted, p)
}

// release drains notifications, collects changes and unlocks, then delivers
// events and change notifications outside the lock.
func (g *Grid) release() {
	g.drain()
	evs := g.pending
	g.pending = nil
	changes := g.collectChanges()
	listeners := g.listeners
	g.updateGauges()
	g.mu.Unlock()

	for _, e := range evs {
		if _, err := events.Emit(e.level, e.name, e.msg, e.fields); err != nil {
			g.logger.Error("emit failed", "event", e.name, "error", err)
		}
	}
	for _, c := range changes {
		for _, fn := range listeners {
			fn(c)
		}
	}
}

func (g *Grid) collectChanges() []Change {
	if len(g.changed) == 0 {
		return nil
	}
	out := make([]Change, 0, len(g.changed))
	for p := range g.changed {
		c := Change{Pos: p, Tick: g.tick, Removed: true}
		if n, ok := g.nodes[p]; ok {
			c = Change{Pos: p, Type: n.Capability().Name(), Powered: n.Powered(), Power: n.Power(false), Tick: g.tick}
		}
		out = append(out, c)
		delete(g.changed, p)
	}
	sortChanges(out)
	return out
}

func (g *Grid) updateGauges() {
	if g.metrics == nil {
		return
	}
	powered := 0
	for _, n := range g.nodes {
		if n.Powered() {
			powered++
		}
	}
	g.metrics.SetNodeCounts(len(g.nodes), powered, g.queue.Len())
}

// drain delivers queued neighbor notifications until the queue is empty.
func (g *Grid) drain() {
	delivered := 0
	for len(g.notifyQ) > 0 {
		if delivered >= maxNotifications {
			g.logger.Warn("notification limit reached, dropping remainder",
				"dropped", len(g.notifyQ), "tick", g.tick)
			g.notifyQ = nil
			return
		}
		nt := g.notifyQ[0]
		g.notifyQ = g.notifyQ[1:]
		delivered++
		if n, ok := g.nodes[nt.pos]; ok {
			n.NeighborChanged(nt.from)
		}
	}
	g.notifyQ = nil
}

// notifyNeighbors queues a change notification for the six cells around p.
func (g *Grid) notifyNeighbors(p geom.Pos) {
	for _, d := range geom.Directions {
		g.notifyQ = append(g.notifyQ, notification{pos: p.Neighbor(d), from: p})
	}
}

func (g *Grid) nodeAt(p geom.Pos) (*node.Node, error) {
	n, ok := g.nodes[p]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNoNode, p)
	}
	return n, nil
}
