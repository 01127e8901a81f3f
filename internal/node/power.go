package node

import (
	"github.com/AaronLay10/SignalGrid/internal/geom"
	"github.com/AaronLay10/SignalGrid/internal/sensor"
)

// Power returns the emitted level. No-output nodes emit nothing, weak
// nodes emit nothing to strong queries, otherwise powered == inverted
// selects the off level.
func (n *Node) Power(strong bool) int {
	if n.cfg.noOutput() || (strong && n.cfg.weak()) {
		return 0
	}
	switch v := n.variant.(type) {
	case *sensor.Timer:
		if !n.powered {
			return 0
		}
		return v.Output()
	case *sensor.Sampler:
		if !v.Emits() {
			return 0
		}
	}
	if n.powered == n.cfg.inverted() {
		return n.cfg.offPower()
	}
	return n.cfg.onPower()
}

// PowerToward returns the level emitted through the face pointing in dir.
func (n *Node) PowerToward(dir geom.Direction, strong bool) int {
	if n.cap.Relay() {
		return 0
	}
	if n.cap.SidesConfigurable() {
		if !n.cfg.side(geom.LocalSide(n.facing, dir)) {
			return 0
		}
		return n.Power(strong)
	}
	switch n.cap.Mount() {
	case MountWall:
		if dir != n.facing.Opposite() && (strong || n.cfg.weak()) {
			return 0
		}
	case MountFloor:
		if dir != n.facing && dir != geom.Down && (strong || n.cfg.weak()) {
			return 0
		}
	case MountHatch:
		if dir != n.facing {
			return 0
		}
	}
	return n.Power(strong)
}
