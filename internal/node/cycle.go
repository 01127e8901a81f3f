package node

import (
	"time"

	"github.com/AaronLay10/SignalGrid/internal/sensor"
)

// CycleResult is the outcome of a configuration gesture.
type CycleResult uint8

const (
	// CycleIgnored means the gesture was the first half of a double activation.
	CycleIgnored CycleResult = iota
	// CycleStatus means the gesture only showed the current configuration.
	CycleStatus
	// CycleChanged means the output configuration advanced one step.
	CycleChanged
)

func (r CycleResult) String() string {
	switch r {
	case CycleIgnored:
		return "ignored"
	case CycleStatus:
		return "status"
	default:
		return "changed"
	}
}

type outputConfig struct {
	weak, inverted, noOutput bool
}

var (
	cycleBoth   = []outputConfig{{}, {weak: true}, {weak: true, inverted: true}, {inverted: true}, {noOutput: true}}
	cycleWeak   = []outputConfig{{}, {weak: true}, {noOutput: true}}
	cycleInvert = []outputConfig{{}, {inverted: true}, {noOutput: true}}
)

func within(now, last time.Time, window time.Duration) bool {
	if last.IsZero() {
		return false
	}
	dt := now.Sub(last)
	return dt > 0 && dt < window
}

// CycleConfig advances the output configuration. With needDouble set the
// gesture must be repeated within the click timeout; a gesture after a
// pause only shows the status.
func (n *Node) CycleConfig(needDouble bool) CycleResult {
	now := n.opts.now()
	if needDouble {
		if !within(now, n.lastClick, n.opts.ClickTimeout) {
			n.lastClick = now
			return CycleIgnored
		}
		n.lastClick = time.Time{}
	}
	multi := within(now, n.lastCycle, n.opts.CycleSpacing)
	n.lastCycle = now
	if !multi || !n.nextOutputConfig() {
		return CycleStatus
	}
	n.notifyAll()
	n.play(EffectConfig)
	n.configured()
	return CycleChanged
}

func (n *Node) nextOutputConfig() bool {
	var order []outputConfig
	switch {
	case n.cap.Invertible() && n.cap.Weakable():
		order = cycleBoth
	case n.cap.Weakable():
		order = cycleWeak
	case n.cap.Invertible():
		order = cycleInvert
	default:
		return false
	}
	if n.opts.WithoutNoOutput || n.cap.Relay() {
		order = order[:len(order)-1]
	}
	forcedWeak := n.cap.DefaultWeak() && !n.cap.Weakable()
	cur := outputConfig{weak: n.cfg.weak(), inverted: n.cfg.inverted(), noOutput: n.cfg.noOutput()}
	next := order[0]
	for i, c := range order {
		c.weak = c.weak || forcedWeak
		if c == cur {
			next = order[(i+1)%len(order)]
			break
		}
	}
	n.cfg = n.cfg.
		with(scdWeak, next.weak || forcedWeak).
		with(scdInverted, next.inverted).
		with(scdNoOutput, next.noOutput)
	return true
}

const touchRepeatWindow = 40

// TouchConfigure adjusts a touch-configurable node from a touch at the
// face-local point (x, y), both in [0,1). A touch after a pause only shows
// the status and returns false.
func (n *Node) TouchConfigure(x, y float64) bool {
	if !n.cap.TouchConfigurable() {
		return false
	}
	now := n.now()
	showOnly := !n.touched || now-n.lastTouch > touchRepeatWindow
	n.touched = true
	n.lastTouch = now
	if showOnly {
		return false
	}
	field := min(max(int(x*4), 0), 3)
	up := y >= 0.5
	step := -1
	if up {
		step = 1
	}
	switch v := n.variant.(type) {
	case *sensor.Timer:
		if y >= 0.4 && y < 0.6 {
			n.applySensor(!n.powered, 0)
			return true
		}
		p := v.Params()
		switch field {
		case 0:
			p.OnTime = stepPeriod(p.OnTime, up)
		case 1:
			p.OffTime = stepPeriod(p.OffTime, up)
		case 2:
			p.Ramp += step
		case 3:
			p.Power += step
		}
		v.SetParams(p)
	case *sensor.Detector:
		p := v.Params()
		switch field {
		case 0:
			p.Range = max(p.Range+step, sensor.DetectorRangeMin)
		case 1:
			p.Threshold += step
		case 2:
			p.Filter = sensor.EntityFilter((int(p.Filter) + 7 + step) % 7)
		case 3:
			n.SetOnPower(max(n.cfg.onPower()+step, 1))
		}
		v.SetParams(p)
	default:
		n.SetOnPower(int(y * 16))
		n.notify(false)
	}
	n.play(EffectConfig)
	n.configured()
	return true
}

func stepPeriod(t int, up bool) int {
	if up {
		return sensor.NextLongerPeriod(t)
	}
	return sensor.NextShorterPeriod(t)
}
