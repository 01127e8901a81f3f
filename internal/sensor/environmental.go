package sensor

import (
	"math"

	"github.com/AaronLay10/SignalGrid/internal/geom"
)

const (
	DebounceMax       = 10
	weatherCounterMax = 4
	dayLength         = 24000
)

// DayTimerCurve maps a debounce setting to the chance of following the
// setpoint on a given poll: (1 - debounce/Scale)^2 * Gain.
type DayTimerCurve struct {
	Scale float64
	Gain  float64
}

// DefaultDayTimerCurve is the curve used unless a node overrides it.
var DefaultDayTimerCurve = DayTimerCurve{Scale: 9, Gain: 0.7}

// Probability returns the follow chance for a debounce value.
func (c DayTimerCurve) Probability(debounce int) float64 {
	f := 1 - float64(debounce)/c.Scale
	return f * f * c.Gain
}

// EnvironmentalParams configures light, rain, lightning and day-timer sensors.
type EnvironmentalParams struct {
	On       int
	Off      int
	Debounce int
	Interval int
	Curve    DayTimerCurve
}

// Environmental samples a world condition with rate-limited hysteresis.
type Environmental struct {
	cadence
	kind    Kind
	params  EnvironmentalParams
	counter int
}

func (*Environmental) isVariant() {}

// NewEnvironmental builds a Light, Rain, Lightning or DayTimer sensor.
func NewEnvironmental(kind Kind, p EnvironmentalParams, seed uint64) *Environmental {
	e := &Environmental{cadence: newCadence(seed), kind: kind}
	e.SetParams(p)
	return e
}

func (e *Environmental) Kind() Kind { return e.kind }

func (e *Environmental) Params() EnvironmentalParams { return e.params }

// SetParams clamps and stores p.
func (e *Environmental) SetParams(p EnvironmentalParams) {
	p.On = clamp(p.On, 0, 15)
	p.Off = clamp(p.Off, 0, 15)
	p.Debounce = clamp(p.Debounce, 0, DebounceMax)
	p.Interval = max(p.Interval, 10)
	if p.Curve.Scale <= 0 {
		p.Curve = DefaultDayTimerCurve
	}
	e.params = p
}

func (e *Environmental) Reset(now uint64) {
	e.counter = 0
	e.next = now
}

// Counter exposes the debounce counter.
func (e *Environmental) Counter() int { return e.counter }

func (e *Environmental) Poll(in Input) Outcome {
	e.after(in.Now, e.params.Interval, 5)
	active := in.Powered
	hold := in.OnTime
	switch e.kind {
	case Light:
		active = e.pollLight(in, active)
	case Rain:
		if in.Facing != geom.Up && in.Facing != geom.Down {
			active = e.weatherVote(in.Probe.RainingAt(in.Pos.Neighbor(geom.Up)), active)
		}
	case Lightning:
		struck := in.Probe.Thundering() &&
			(in.Probe.RainingAt(in.Pos) || in.Probe.RainingAt(in.Pos.Offset(geom.Up, 20)))
		active = e.weatherVote(struck, active)
	case DayTimer:
		hold = 0
		active = e.pollDayTime(in, active)
	}
	return Outcome{Apply: ApplyState, Active: active, Hold: hold}
}

func (e *Environmental) pollLight(in Input, active bool) bool {
	if e.params.On == 0 && e.params.Off == 0 {
		e.params.On, e.params.Off = 7, 6
		return active
	}
	vote := thresholdVote(in.Probe.LightLevel(in.Pos), e.params.On, e.params.Off)
	if e.params.Debounce <= 0 {
		e.counter = 0
		if vote != 0 {
			return vote > 0
		}
		return active
	}
	e.counter += vote
	if e.counter <= 0 {
		e.counter = 0
		return false
	}
	if e.counter >= e.params.Debounce {
		e.counter = e.params.Debounce
		return true
	}
	return active
}

func (e *Environmental) weatherVote(yes bool, active bool) bool {
	if yes {
		e.counter++
	} else {
		e.counter--
	}
	switch {
	case e.counter <= 0:
		e.counter = 0
		return false
	case e.counter >= weatherCounterMax:
		e.counter = weatherCounterMax
		return true
	}
	return active
}

// DayScale converts world time to the 0..15 scale.
func DayScale(dayTime int64) float64 {
	t := dayTime % dayLength
	if t < 0 {
		t += dayLength
	}
	return float64(t) * 15 / dayLength
}

// InDayWindow reports whether t lies in [on, off], wrapping past 15 when
// on > off. An empty window (on == off) never holds.
func InDayWindow(t float64, on, off int) bool {
	lo, hi := float64(on), float64(off)
	if on == off {
		return false
	}
	if on < off {
		return t >= lo && t <= hi
	}
	return t >= lo || t <= hi
}

func (e *Environmental) pollDayTime(in Input, active bool) bool {
	setpoint := InDayWindow(DayScale(in.Probe.DayTime()), e.params.On, e.params.Off)
	if active == setpoint {
		return active
	}
	if e.params.Debounce <= 0 {
		return setpoint
	}
	p := math.Max(0, e.params.Curve.Probability(e.params.Debounce))
	if e.rng.Float64() <= p {
		return setpoint
	}
	return active
}
