package node

import (
	"github.com/AaronLay10/SignalGrid/internal/geom"
	"github.com/AaronLay10/SignalGrid/internal/sensor"
)

// Activate handles a manual press, a link request or a sensor toggle.
// It returns false when the node kind ignores the stimulus.
func (n *Node) Activate(cause Cause) bool {
	switch n.cap.Kind() {
	case Latching, Pulse, Observer:
	case Timer:
		if cause == CauseTick {
			return false
		}
		n.applySensor(!n.powered, 0)
		n.activated(cause)
		return true
	case Contact, Detector, Environmental, Sampler, Relay:
		return false
	}
	if n.cap.Kind() == Observer && cause == CauseManual {
		return false
	}

	was := n.powered
	if n.cap.Toggles() {
		n.setPowered(!was)
	} else {
		n.setPowered(true)
	}
	if n.powered {
		n.play(EffectOn)
	} else {
		n.play(EffectOff)
	}
	if !n.cap.Relay() {
		n.notify(false)
	}
	if n.cap.Timed() {
		if !n.cap.PulseExtendable() {
			n.resetTimer(0)
		}
		n.extend()
		n.reschedule()
	}
	if n.cap.LinkSource() {
		switch {
		case n.powered && !was:
			n.sendLinks(n.cfg.onPower(), 15, true)
		case !n.powered && was && !n.cap.Timed():
			n.sendLinks(0, 0, true)
		}
	}
	n.activated(cause)
	return true
}

func (n *Node) activated(cause Cause) {
	if n.opts.Hooks.Activated != nil {
		n.opts.Hooks.Activated(n, cause)
	}
}

// applySensor drives an automatic node to active, holding it for hold ticks.
func (n *Node) applySensor(active bool, hold int) {
	if active {
		n.resetTimer(hold)
		if n.powered {
			return
		}
		if t, ok := n.variant.(*sensor.Timer); ok {
			t.Restart(n.now())
			n.schedulePoll(t)
		}
		n.setPowered(true)
		n.play(EffectOn)
		n.notify(false)
		if n.cap.LinkSource() {
			n.sendLinks(n.onLevel(), 15, true)
		}
		return
	}
	if !n.powered || (hold > 0 && n.Remaining() > 0) {
		return
	}
	n.setPowered(false)
	n.play(EffectOff)
	n.notify(false)
	if n.cap.LinkSource() {
		n.sendLinks(0, 0, true)
	}
}

func (n *Node) onLevel() int {
	if t, ok := n.variant.(*sensor.Timer); ok {
		return t.Params().Power
	}
	return n.cfg.onPower()
}

// Tick runs a scheduled tick: pulse expiry, contact re-detection or a
// sensor poll.
func (n *Node) Tick() {
	switch n.cap.Kind() {
	case Pulse:
		n.pulseTick()
	case Relay:
		if n.cap.Timed() {
			n.pulseTick()
		}
	case Contact:
		if n.powered && !n.detectContact() {
			n.pulseTick()
		}
	case Detector, Environmental, Timer, Sampler, Observer:
		n.poll()
	case Latching:
	}
}

func (n *Node) sensorInput() sensor.Input {
	return sensor.Input{
		Now:       n.now(),
		Pos:       n.pos,
		Facing:    n.facing,
		Powered:   n.powered,
		Inverted:  n.cfg.inverted(),
		OnTime:    n.val.onTime(),
		Remaining: n.Remaining(),
		Probe:     n.world,
	}
}

func (n *Node) poll() {
	p, ok := n.variant.(sensor.Poller)
	if !ok {
		return
	}
	if !p.Due(n.now()) {
		n.schedulePoll(p)
		return
	}
	out := p.Poll(n.sensorInput())
	if n.opts.Hooks.Polled != nil {
		n.opts.Hooks.Polled(n, out)
	}
	switch out.Apply {
	case sensor.ApplyState:
		n.applySensor(out.Active, out.Hold)
	case sensor.ApplyToggle:
		if n.powered != out.Active {
			n.Activate(CauseTick)
		}
	case sensor.ApplyLevel:
		if out.Changed && n.powered {
			n.notify(false)
		}
	}
	n.schedulePoll(p)
}

func (n *Node) schedulePoll(p sensor.Poller) {
	delay := 1
	if next, now := p.Next(), n.now(); next > now {
		delay = int(next - now)
	}
	n.world.ScheduleTick(n.pos, delay)
}

// EntityInside is called by the host when an entity collides with a
// contact node.
func (n *Node) EntityInside() {
	if n.cap.Kind() == Contact {
		n.detectContact()
	}
}

func (n *Node) detectContact() bool {
	c, ok := n.variant.(*sensor.Contact)
	if !ok {
		return false
	}
	active := c.Detect(n.pos, n.world)
	if active {
		t := n.val.onTime()
		if t <= 0 {
			t = 20
		}
		n.resetTimer(max(t, 4))
		if !n.powered {
			n.setPowered(true)
			n.play(EffectOn)
			n.notify(false)
			if n.cap.LinkSource() {
				n.sendLinks(n.cfg.onPower(), 15, true)
			}
			n.activated(CauseTick)
		}
	}
	if n.powered {
		n.reschedule()
	}
	return active
}

// NeighborChanged is called when an adjacent cell changed.
func (n *Node) NeighborChanged(from geom.Pos) {
	now := n.now()
	switch v := n.variant.(type) {
	case *sensor.Observer:
		v.Observe(now)
		n.schedulePoll(v)
	case *sensor.Sampler:
		v.BlockUpdated(now)
		n.schedulePoll(v)
	}
	if n.cap.Relay() && n.feedsFrom(from) {
		n.sampleInput()
	}
}

// attachment is the direction of the cell a mounted node hangs on.
func (n *Node) attachment() geom.Direction {
	if n.cap.Mount() == MountFloor {
		return geom.Down
	}
	return n.facing.Opposite()
}

func (n *Node) feedsFrom(from geom.Pos) bool {
	if n.cap.Mount() == MountCube {
		return true
	}
	return from == n.pos.Neighbor(n.attachment())
}

func (n *Node) inputLevel() int {
	if n.cap.Mount() == MountCube {
		best := 0
		for _, d := range geom.Directions {
			best = max(best, n.world.SignalFrom(n.pos.Neighbor(d), d.Opposite()))
		}
		return best
	}
	a := n.attachment()
	return n.world.SignalFrom(n.pos.Neighbor(a), a.Opposite())
}

// sampleInput reads the relay input and forwards it over the links.
func (n *Node) sampleInput() {
	p := clampPower(n.inputLevel())
	if n.cfg.inverted() {
		p = 15 - p
	}
	if p == n.input {
		return
	}
	n.input = p
	was := n.powered
	on := p > 0
	if on != was && (!n.cap.Timed() || on) {
		n.setPowered(on)
		if n.cap.Timed() {
			n.resetTimer(0)
			n.extend()
			n.reschedule()
		}
		if on {
			n.play(EffectOn)
		} else {
			n.play(EffectOff)
		}
		n.activated(CauseTick)
	}
	digital := 0
	if n.powered {
		digital = 15
	}
	n.sendLinks(p, digital, n.powered != was)
}

// Input returns the last sampled relay input level.
func (n *Node) Input() int { return n.input }

// Place initializes a freshly placed node and informs its neighbors.
func (n *Node) Place() {
	n.Reset()
	n.setPowered(false)
	n.notify(true)
	switch v := n.variant.(type) {
	case sensor.Poller:
		n.schedulePoll(v)
	}
	if n.cap.Relay() {
		n.sampleInput()
	}
}

// Remove drops all links and informs dependents before the node goes away.
func (n *Node) Remove() []Link {
	links := n.UnlinkAll(true)
	n.cfg = n.cfg.with(scdNoOutput, true)
	n.notify(true)
	return links
}

// SecondaryClick cancels a running pulse on nodes that allow it.
func (n *Node) SecondaryClick() bool {
	if !n.cap.SecondaryClickReset() {
		return false
	}
	was := n.powered
	n.resetTimer(0)
	n.setPowered(false)
	n.play(EffectOff)
	if !n.cap.Relay() {
		n.notify(false)
	}
	if was && n.cap.LinkSource() {
		n.sendLinks(0, 0, true)
	}
	return true
}

// SetPulseTime sets an explicit on-time of two ticks per item.
func (n *Node) SetPulseTime(items int) bool {
	if n.opts.WithoutPulseTimeConfig || !n.cap.PulseTimeConfigurable() {
		return false
	}
	n.SetConfiguredOnTime(items * 2)
	n.play(EffectConfig)
	n.configured()
	return true
}

// ApplyTint stores a color tint and reports it as a configuration change.
func (n *Node) ApplyTint(c int) {
	n.SetTint(c)
	n.configured()
}

func (n *Node) configured() {
	if n.opts.Hooks.Configured != nil {
		n.opts.Hooks.Configured(n)
	}
}
