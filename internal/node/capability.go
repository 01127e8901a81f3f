package node

import (
	"fmt"

	"github.com/AaronLay10/SignalGrid/internal/geom"
	"github.com/AaronLay10/SignalGrid/internal/sensor"
)

// Kind is the closed set of node families.
type Kind uint8

const (
	Latching Kind = iota + 1
	Pulse
	Contact
	Detector
	Environmental
	Timer
	Sampler
	Observer
	Relay
)

var kindNames = [...]string{"", "latching", "pulse", "contact", "detector", "environmental", "timer", "sampler", "observer", "relay"}

func (k Kind) String() string {
	if k > 0 && int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

// Automatic reports whether the kind is driven by a polled sensor.
func (k Kind) Automatic() bool {
	switch k {
	case Detector, Environmental, Timer, Sampler, Observer:
		return true
	}
	return false
}

// Flag is one capability bit.
type Flag uint32

const (
	Invertible Flag = 1 << iota
	Weakable
	PulseTimeConfigurable
	TouchConfigurable
	PulseExtendable
	SecondaryClickReset
	SidesConfigurable
	LinkSource
	LinkTarget
	// Momentary marks a relay that only reacts to rising input edges and
	// then times out like a pulse node.
	Momentary
)

// Mount describes how a node is attached and which neighbors it feeds.
type Mount uint8

const (
	// MountCube nodes fill a whole cell.
	MountCube Mount = iota
	// MountWall nodes hang on the cell behind them.
	MountWall
	// MountFloor nodes lie flat and feed forward and down.
	MountFloor
	// MountHatch nodes are lateral and wall-mounted and feed their front cell.
	MountHatch
)

var mountNames = [...]string{"cube", "wall", "floor", "hatch"}

func (m Mount) String() string {
	if int(m) < len(mountNames) {
		return mountNames[m]
	}
	return fmt.Sprintf("mount(%d)", uint8(m))
}

// Capability is the immutable descriptor of a node type.
type Capability struct {
	name     string
	kind     Kind
	sensor   sensor.Kind
	mount    Mount
	flags    Flag
	defaults scd
}

// CapabilityOption customizes a capability at construction.
type CapabilityOption func(*Capability)

// WithFlags adds capability flags.
func WithFlags(flags ...Flag) CapabilityOption {
	return func(c *Capability) {
		for _, f := range flags {
			c.flags |= f
		}
	}
}

// WithMount sets the attachment geometry.
func WithMount(m Mount) CapabilityOption {
	return func(c *Capability) { c.mount = m }
}

// WithSensor sets the sensor sub-kind for automatic nodes.
func WithSensor(k sensor.Kind) CapabilityOption {
	return func(c *Capability) { c.sensor = k }
}

// WithPowers sets the default on and off levels. An explicit zero on level
// is kept as zero.
func WithPowers(on, off int) CapabilityOption {
	return func(c *Capability) {
		c.defaults = c.defaults.withOnPower(on).withOffPower(off)
	}
}

// WithDefaultWeak makes weak output the default configuration.
func WithDefaultWeak() CapabilityOption {
	return func(c *Capability) { c.defaults |= scdWeak }
}

// WithDefaultInverted makes inverted output the default configuration.
func WithDefaultInverted() CapabilityOption {
	return func(c *Capability) { c.defaults |= scdInverted }
}

// WithSides enables individual output sides. Any side implies the node is
// sides-configurable.
func WithSides(sides ...geom.Side) CapabilityOption {
	return func(c *Capability) {
		for _, s := range sides {
			c.defaults = c.defaults.withSide(s, true)
		}
		if len(sides) > 0 {
			c.flags |= SidesConfigurable
		}
	}
}

// NewCapability builds a descriptor. Nodes default to on level 15.
func NewCapability(name string, kind Kind, opts ...CapabilityOption) Capability {
	c := Capability{name: name, kind: kind, defaults: scd(0).withOnPower(15)}
	for _, opt := range opts {
		opt(&c)
	}
	return c
}

func (c Capability) Name() string        { return c.name }
func (c Capability) Kind() Kind          { return c.kind }
func (c Capability) Sensor() sensor.Kind { return c.sensor }
func (c Capability) Mount() Mount        { return c.mount }

// Has reports whether flag f is set.
func (c Capability) Has(f Flag) bool { return c.flags&f == f }

func (c Capability) Invertible() bool            { return c.Has(Invertible) }
func (c Capability) Weakable() bool              { return c.Has(Weakable) }
func (c Capability) PulseTimeConfigurable() bool { return c.Has(PulseTimeConfigurable) }
func (c Capability) TouchConfigurable() bool     { return c.Has(TouchConfigurable) }
func (c Capability) PulseExtendable() bool       { return c.Has(PulseExtendable) }
func (c Capability) SecondaryClickReset() bool   { return c.Has(SecondaryClickReset) }
func (c Capability) SidesConfigurable() bool     { return c.Has(SidesConfigurable) }
func (c Capability) LinkSource() bool            { return c.Has(LinkSource) }
func (c Capability) LinkTarget() bool            { return c.Has(LinkTarget) }

// Relay reports whether the node forwards its input over links.
func (c Capability) Relay() bool { return c.kind == Relay }

// Timed reports whether the node auto-deactivates through the pulse scheduler.
func (c Capability) Timed() bool {
	switch c.kind {
	case Pulse, Contact:
		return true
	case Relay:
		return c.Has(Momentary)
	}
	return false
}

// Toggles reports whether activation flips the powered state.
func (c Capability) Toggles() bool {
	switch c.kind {
	case Latching, Observer:
		return true
	case Relay:
		return !c.Has(Momentary)
	}
	return false
}

// DefaultOnPower is the on level new nodes start with.
func (c Capability) DefaultOnPower() int { return c.defaults.onPower() }

// DefaultWeak reports whether weak output is the default.
func (c Capability) DefaultWeak() bool { return c.defaults.weak() }
