// Package sensor holds the automatic node families. Each sensor keeps only
// its own parameters and ephemeral counters; the owning node applies the
// outcome of a poll to its powered state.
package sensor

import (
	"fmt"
	"math/rand/v2"

	"github.com/AaronLay10/SignalGrid/internal/geom"
)

// Kind identifies a sensor family.
type Kind uint8

const (
	None Kind = iota
	Volume
	Linear
	Light
	Rain
	Lightning
	DayTimer
	Interval
	Level
	BlockPattern
)

var kindNames = [...]string{"none", "volume", "linear", "light", "rain", "lightning", "day_timer", "interval", "level", "block_pattern"}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("sensor(%d)", uint8(k))
}

// Probe is the read-only view of the world a sensor samples.
type Probe interface {
	Entities(area geom.Box, filter EntityFilter) []Entity
	Unobstructed(from, to geom.Vec3) bool
	Loaded(p geom.Pos) bool
	LightLevel(p geom.Pos) int
	DayTime() int64
	RainingAt(p geom.Pos) bool
	Thundering() bool
	// Override returns the comparator-style override level of a cell.
	Override(p geom.Pos) (int, bool)
	// Slots returns the occupied and total slot counts of a container cell.
	Slots(p geom.Pos) (used, size int, ok bool)
	// Signal returns the strongest signal reaching p, ignoring the node at skip.
	Signal(p geom.Pos, skip geom.Pos) int
	Match(p geom.Pos, m Matcher) bool
}

// Variant is the kind-specific parameter block carried by a node. The set of
// implementations is closed to this package.
type Variant interface {
	isVariant()
}

// Poller is a Variant that samples the world on its own cadence.
type Poller interface {
	Variant
	Kind() Kind
	// Due reports whether a poll should run at tick now.
	Due(now uint64) bool
	// Next is the tick of the next poll.
	Next() uint64
	Poll(in Input) Outcome
	// Reset clears ephemeral counters and schedules a poll for tick now.
	Reset(now uint64)
}

// Input is the node state a poll may read.
type Input struct {
	Now       uint64
	Pos       geom.Pos
	Facing    geom.Direction
	Powered   bool
	Inverted  bool
	OnTime    int
	Remaining int
	Probe     Probe
}

// Apply says how a poll outcome is written back.
type Apply uint8

const (
	// ApplyNone leaves the node untouched.
	ApplyNone Apply = iota
	// ApplyState drives the node to Active, holding it on for Hold ticks.
	ApplyState
	// ApplyToggle activates the node when its powered state differs from Active.
	ApplyToggle
	// ApplyLevel reports a change of an analog output level.
	ApplyLevel
)

// Outcome is the result of one poll.
type Outcome struct {
	Apply   Apply
	Active  bool
	Hold    int
	Changed bool
}

// cadence spaces polls with a per-node pseudo-random offset.
type cadence struct {
	next uint64
	rng  *rand.Rand
}

func newCadence(seed uint64) cadence {
	return cadence{rng: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))}
}

func (c *cadence) Due(now uint64) bool { return now >= c.next }

func (c *cadence) Next() uint64 { return c.next }

func (c *cadence) after(now uint64, base, spread int) {
	if spread > 0 {
		base += c.rng.IntN(spread)
	}
	if base < 1 {
		base = 1
	}
	c.next = now + uint64(base)
}

// soon brings the next poll forward to now+delay if it is further away.
func (c *cadence) soon(now uint64, delay int) {
	if at := now + uint64(delay); c.next > at {
		c.next = at
	}
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// thresholdVote returns +1 at or above on, -1 at or below off, 0 in
// between. When off >= on the band collapses and only an exact match with
// on votes +1.
func thresholdVote(value, on, off int) int {
	if off >= on {
		if value == on {
			return 1
		}
		return -1
	}
	switch {
	case value <= off:
		return -1
	case value >= on:
		return 1
	default:
		return 0
	}
}
