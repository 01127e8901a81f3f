package node

import (
	"time"

	"github.com/AaronLay10/SignalGrid/internal/geom"
	"github.com/AaronLay10/SignalGrid/internal/sensor"
)

// scd packs power levels, output flags and enabled sides.
type scd uint32

const (
	scdOnPowerMask  scd = 0x0000f
	scdOffPowerMask scd = 0x000f0
	scdOffShift         = 4
	scdInverted     scd = 0x00100
	scdWeak         scd = 0x00200
	scdNoOutput     scd = 0x00400
	scdSidesMask    scd = 0x3f000
	scdSidesShift       = 12
	scdDefaultsMask scd = 0x3ffff
)

func (s scd) onPower() int  { return int(s & scdOnPowerMask) }
func (s scd) offPower() int { return int((s & scdOffPowerMask) >> scdOffShift) }
func (s scd) inverted() bool { return s&scdInverted != 0 }
func (s scd) weak() bool     { return s&scdWeak != 0 }
func (s scd) noOutput() bool { return s&scdNoOutput != 0 }

func (s scd) withOnPower(p int) scd {
	return (s &^ scdOnPowerMask) | scd(clampPower(p))
}

func (s scd) withOffPower(p int) scd {
	return (s &^ scdOffPowerMask) | scd(clampPower(p))<<scdOffShift
}

func (s scd) with(flag scd, on bool) scd {
	if on {
		return s | flag
	}
	return s &^ flag
}

func (s scd) side(side geom.Side) bool {
	return s&(1<<(scdSidesShift+uint(side))) != 0
}

func (s scd) withSide(side geom.Side, on bool) scd {
	return s.with(1<<(scdSidesShift+uint(side)), on)
}

// svd packs the configured on-time and the color tint.
type svd uint32

const (
	svdOnTimeMask svd = 0x0ff
	svdTintMask   svd = 0xf00
	svdTintShift      = 8
)

func (v svd) onTime() int { return int(v & svdOnTimeMask) }
func (v svd) tint() int   { return int((v & svdTintMask) >> svdTintShift) }

func (v svd) withOnTime(t int) svd {
	return (v &^ svdOnTimeMask) | svd(min(max(t, 0), 255))
}

func (v svd) withTint(c int) svd {
	return (v &^ svdTintMask) | svd(c&0xf)<<svdTintShift
}

func clampPower(p int) int {
	return min(max(p, 0), 15)
}

// Node is one placed signal node.
type Node struct {
	pos     geom.Pos
	facing  geom.Direction
	cap     Capability
	variant sensor.Variant
	world   World
	fx      Effects
	opts    *Options

	powered bool
	cfg     scd
	val     svd
	links   []Link
	baseCfg scd
	baseVal svd

	deadline        uint64
	lastLinkRequest uint64
	linkRequested   bool
	input           int
	lastClick       time.Time
	lastCycle       time.Time
	lastTouch       uint64
	touched         bool
}

// New creates a node with the capability defaults. The node is not yet
// placed: call Place once it is in the world.
func New(pos geom.Pos, facing geom.Direction, c Capability, variant sensor.Variant, w World, fx Effects, opts *Options) *Node {
	if opts == nil {
		o := DefaultOptions()
		opts = &o
	}
	n := &Node{
		pos:     pos,
		facing:  facing,
		cap:     c,
		variant: variant,
		world:   w,
		fx:      fx,
		opts:    opts,
		baseCfg: c.defaults & scdDefaultsMask,
	}
	n.Reset()
	return n
}

func (n *Node) Pos() geom.Pos              { return n.pos }
func (n *Node) Facing() geom.Direction     { return n.facing }
func (n *Node) Capability() Capability     { return n.cap }
func (n *Node) Variant() sensor.Variant    { return n.variant }
func (n *Node) Powered() bool              { return n.powered }
func (n *Node) OnPower() int               { return n.cfg.onPower() }
func (n *Node) OffPower() int              { return n.cfg.offPower() }
func (n *Node) Inverted() bool             { return n.cfg.inverted() }
func (n *Node) Weak() bool                 { return n.cfg.weak() }
func (n *Node) NoOutput() bool             { return n.cfg.noOutput() }
func (n *Node) ConfiguredOnTime() int      { return n.val.onTime() }
func (n *Node) Tint() int                  { return n.val.tint() }
func (n *Node) SideEnabled(s geom.Side) bool { return n.cfg.side(s) }

// SetOnPower sets the level emitted while powered.
func (n *Node) SetOnPower(p int) { n.cfg = n.cfg.withOnPower(p) }

// SetOffPower sets the level emitted while unpowered.
func (n *Node) SetOffPower(p int) { n.cfg = n.cfg.withOffPower(p) }

// SetInverted sets the inverted flag if the node supports it.
func (n *Node) SetInverted(v bool) {
	if n.cap.Invertible() || !v {
		n.cfg = n.cfg.with(scdInverted, v)
	}
}

// SetWeak sets the weak flag if the node supports it.
func (n *Node) SetWeak(v bool) {
	if n.cap.Weakable() || v == n.cap.DefaultWeak() {
		n.cfg = n.cfg.with(scdWeak, v)
	}
}

// SetNoOutput sets the no-output flag unless policy or kind forbids it.
func (n *Node) SetNoOutput(v bool) {
	if v && (n.opts.WithoutNoOutput || n.cap.Relay()) {
		return
	}
	n.cfg = n.cfg.with(scdNoOutput, v)
}

// SetSide enables or disables one output side on sides-configurable nodes.
func (n *Node) SetSide(s geom.Side, on bool) {
	if n.cap.SidesConfigurable() {
		n.cfg = n.cfg.withSide(s, on)
	}
}

// SetConfiguredOnTime stores an explicit pulse time in ticks (0..255).
func (n *Node) SetConfiguredOnTime(t int) { n.val = n.val.withOnTime(t) }

// SetTint stores a 0..15 color tint.
func (n *Node) SetTint(c int) { n.val = n.val.withTint(c) }

// Reset restores the placement defaults and clears timers.
func (n *Node) Reset() {
	n.deadline = 0
	n.val = n.baseVal
	n.cfg = n.baseCfg
	n.input = 0
	if p, ok := n.variant.(sensor.Poller); ok && n.world != nil {
		p.Reset(n.world.CurrentTick())
	}
}

func (n *Node) now() uint64 { return n.world.CurrentTick() }

func (n *Node) setPowered(v bool) {
	n.powered = v
	n.world.SetPowered(n.pos, v)
}

func (n *Node) play(e Effect) {
	if n.fx != nil {
		n.fx.Play(e, n.pos)
	}
}
