package sensor

import (
	"fmt"
	"strings"
)

// Matcher is a cell predicate used by pattern observers.
type Matcher uint8

const (
	MatchAny Matcher = iota
	MatchSolid
	MatchLiquid
	MatchAir
	MatchPlant
	MatchWood
	MatchStone
	MatchGlass
	MatchClay
	MatchWater
	MatchOre
	MatchLog
	MatchCrop
	MatchMatureCrop
	MatchSapling
	MatchSoil
	MatchFertile
	MatchPlanks
	MatchSlab
)

var matcherNames = [...]string{
	"any", "solid", "liquid", "air", "plant", "wood", "stone", "glass", "clay", "water",
	"ore", "log", "crop", "mature_crop", "sapling", "soil", "fertile", "planks", "slab",
}

func (m Matcher) String() string {
	if int(m) < len(matcherNames) {
		return matcherNames[m]
	}
	return fmt.Sprintf("matcher(%d)", uint8(m))
}

// ParseMatcher accepts the lowercase matcher names.
func ParseMatcher(s string) (Matcher, error) {
	for i, n := range matcherNames {
		if n == strings.ToLower(s) {
			return Matcher(i), nil
		}
	}
	return 0, fmt.Errorf("unknown matcher: %q", s)
}

// MarshalText implements encoding.TextMarshaler.
func (m Matcher) MarshalText() ([]byte, error) { return []byte(m.String()), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (m *Matcher) UnmarshalText(b []byte) error {
	v, err := ParseMatcher(string(b))
	if err != nil {
		return err
	}
	*m = v
	return nil
}

const (
	ObserverRangeMax = 8
)

// ObserverParams configures a block pattern observer.
type ObserverParams struct {
	Range     int
	Threshold int
	Debounce  int
	Matcher   Matcher
}

// Observer counts matching cells along its facing.
type Observer struct {
	cadence
	params  ObserverParams
	counter int
}

func (*Observer) isVariant() {}

// NewObserver builds a pattern observer.
func NewObserver(p ObserverParams, seed uint64) *Observer {
	o := &Observer{cadence: newCadence(seed)}
	o.SetParams(p)
	return o
}

func (o *Observer) Kind() Kind { return BlockPattern }

func (o *Observer) Params() ObserverParams { return o.params }

// SetParams clamps and stores p.
func (o *Observer) SetParams(p ObserverParams) {
	p.Range = clamp(p.Range, 0, ObserverRangeMax)
	p.Threshold = clamp(p.Threshold, 1, ObserverRangeMax)
	p.Debounce = clamp(p.Debounce, 0, DebounceMax)
	o.params = p
}

func (o *Observer) Reset(now uint64) {
	o.counter = 0
	o.next = now
}

// Observe asks for a poll within the next couple of ticks without
// recomputing now.
func (o *Observer) Observe(now uint64) {
	if o.next > now+2 {
		o.next = now
	}
}

func (o *Observer) Poll(in Input) Outcome {
	base := 10
	if o.params.Range <= 1 {
		base = 20
	}
	o.after(in.Now, base, 3)

	rng := max(o.params.Range, 1)
	limit := min(o.params.Threshold, rng)
	n := 0
	for i := 1; i <= rng; i++ {
		p := in.Pos.Offset(in.Facing, i)
		if !in.Probe.Loaded(p) || !in.Probe.Match(p, o.params.Matcher) {
			continue
		}
		n++
		if n >= limit {
			break
		}
	}
	active := n >= o.params.Threshold
	if o.params.Debounce > 0 {
		if active {
			if o.counter++; o.counter < o.params.Debounce {
				return Outcome{}
			}
			o.counter = o.params.Debounce
		} else {
			if o.counter--; o.counter > 0 {
				return Outcome{}
			}
			o.counter = 0
		}
	}
	return Outcome{Apply: ApplyToggle, Active: active}
}
