package sensor

import (
	"fmt"
	"math"
	"strings"
)

// SampleMode selects what a level sampler reads from the cell behind it.
type SampleMode uint8

const (
	SampleOverride SampleMode = iota
	SampleUsedSlots
	SampleFreeSlots
	SampleSignal
)

var sampleModeNames = [...]string{"override", "used_slots", "free_slots", "signal"}

func (m SampleMode) String() string {
	if int(m) < len(sampleModeNames) {
		return sampleModeNames[m]
	}
	return fmt.Sprintf("sample(%d)", uint8(m))
}

// ParseSampleMode accepts the lowercase mode names.
func ParseSampleMode(s string) (SampleMode, error) {
	for i, n := range sampleModeNames {
		if n == strings.ToLower(s) {
			return SampleMode(i), nil
		}
	}
	return 0, fmt.Errorf("unknown sample mode: %q", s)
}

// SamplerParams configures a level sampler.
type SamplerParams struct {
	Mode     SampleMode
	On       int
	Off      int
	Interval int
}

// Sampler compares a level read from the adjacent cell against thresholds.
type Sampler struct {
	cadence
	params SamplerParams
}

func (*Sampler) isVariant() {}

// NewSampler builds a level sampler. A zero On threshold defaults to 1.
func NewSampler(p SamplerParams, seed uint64) *Sampler {
	s := &Sampler{cadence: newCadence(seed)}
	if p.On == 0 && p.Off == 0 {
		p.On = 1
	}
	s.SetParams(p)
	return s
}

func (s *Sampler) Kind() Kind { return Level }

func (s *Sampler) Params() SamplerParams { return s.params }

// SetParams clamps and stores p.
func (s *Sampler) SetParams(p SamplerParams) {
	p.On = clamp(p.On, 0, 15)
	p.Off = clamp(p.Off, 0, 15)
	p.Interval = max(p.Interval, 4)
	s.params = p
}

func (s *Sampler) Reset(now uint64) { s.next = now }

// Emits reports whether the sampler drives an output level.
func (s *Sampler) Emits() bool { return s.params.Mode != SampleSignal }

// BlockUpdated pulls the next poll forward to the next tick.
func (s *Sampler) BlockUpdated(now uint64) { s.soon(now, 1) }

// Sample reads the raw level behind the node, -1 when there is nothing to read.
func (s *Sampler) Sample(in Input) int {
	behind := in.Pos.Neighbor(in.Facing.Opposite())
	switch s.params.Mode {
	case SampleOverride:
		if v, ok := in.Probe.Override(behind); ok {
			return clamp(v, 0, 15)
		}
	case SampleUsedSlots, SampleFreeSlots:
		used, size, ok := in.Probe.Slots(behind)
		if !ok || size <= 0 {
			return -1
		}
		n := used
		if s.params.Mode == SampleFreeSlots {
			n = size - used
		}
		return clamp(int(math.Round(float64(n)*15/float64(size))), 0, 15)
	case SampleSignal:
		return clamp(in.Probe.Signal(behind, in.Pos), 0, 15)
	}
	return -1
}

func (s *Sampler) Poll(in Input) Outcome {
	s.after(in.Now, s.params.Interval, 2)
	value := s.Sample(in)
	if value < 0 {
		s.after(in.Now, 20, 0)
		return Outcome{Apply: ApplyState, Active: false}
	}
	active := in.Powered
	switch thresholdVote(value, s.params.On, s.params.Off) {
	case 1:
		active = true
	case -1:
		active = false
	}
	return Outcome{Apply: ApplyState, Active: active}
}
