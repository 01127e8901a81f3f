package sensor

const (
	TimerPeriodMax = 12000
	TimerRampMax   = 5
	timerRampStep  = 5
	timerIdle      = 200
)

// TimerParams configures an interval timer.
type TimerParams struct {
	Power   int
	OnTime  int
	OffTime int
	Ramp    int
}

// Timer is a free-running on/off oscillator with an optional power ramp.
type Timer struct {
	cadence
	params TimerParams
	level  int
	high   bool
	output int
}

func (*Timer) isVariant() {}

// NewTimer builds an interval timer. Zero fields take the defaults.
func NewTimer(p TimerParams, seed uint64) *Timer {
	t := &Timer{cadence: newCadence(seed)}
	if p.Power == 0 {
		p.Power = 15
	}
	if p.OnTime == 0 {
		p.OnTime = 20
	}
	if p.OffTime == 0 {
		p.OffTime = 20
	}
	t.SetParams(p)
	return t
}

func (t *Timer) Kind() Kind { return Interval }

func (t *Timer) Params() TimerParams { return t.params }

// SetParams clamps and stores p.
func (t *Timer) SetParams(p TimerParams) {
	p.Power = clamp(p.Power, 1, 15)
	p.OnTime = clamp(p.OnTime, 0, TimerPeriodMax)
	p.OffTime = clamp(p.OffTime, 0, TimerPeriodMax)
	p.Ramp = clamp(p.Ramp, 0, TimerRampMax)
	t.params = p
}

func (t *Timer) Reset(now uint64) { t.Restart(now) }

// Restart starts a fresh cycle at the low phase on tick now.
func (t *Timer) Restart(now uint64) {
	t.next = now
	t.level = 0
	t.high = false
}

// Output is the level emitted while the node is powered.
func (t *Timer) Output() int { return t.output }

func (t *Timer) Poll(in Input) Outcome {
	prev := t.level
	wait := 0
	p := t.params
	switch {
	case p.OnTime <= 0 || p.OffTime <= 0 || p.Power <= 0:
		t.level, wait = 0, 20
	case !t.high:
		wait = p.OnTime
		if t.level += p.Ramp; p.Ramp <= 0 || t.level >= p.Power {
			t.level, t.high = p.Power, true
		} else {
			wait = timerRampStep
		}
	default:
		wait = p.OffTime
		if t.level -= p.Ramp; p.Ramp <= 0 || t.level <= 0 {
			t.level, t.high = 0, false
		} else {
			wait = timerRampStep
		}
	}
	spread := 0
	changed := prev != t.level
	if changed {
		t.output = t.level
		if in.Inverted {
			t.output = 15 - t.level
		}
		if !in.Powered {
			wait, spread = timerIdle, 10
			t.output = 0
			if in.Inverted {
				t.output = 15
			}
		}
	}
	t.after(in.Now, wait, spread)
	return Outcome{Apply: ApplyLevel, Changed: changed}
}

// NextLongerPeriod steps a period up along the adjustment table: fine below
// 100 ticks, coarser above.
func NextLongerPeriod(t int) int {
	switch {
	case t < 10:
		t++
	case t < 100:
		t += 10
	case t < 300:
		t += 50
	case t < 1000:
		t += 100
	default:
		t += 1000
	}
	return min(t, TimerPeriodMax)
}

// NextShorterPeriod steps a period down along the adjustment table.
func NextShorterPeriod(t int) int {
	switch {
	case t <= 10:
		t--
	case t <= 100:
		t -= 10
	case t <= 300:
		t -= 50
	case t <= 1000:
		t -= 100
	default:
		t -= 1000
	}
	return max(t, 0)
}
