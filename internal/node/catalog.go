package node

import (
	"fmt"
	"sort"

	"github.com/AaronLay10/SignalGrid/internal/geom"
	"github.com/AaronLay10/SignalGrid/internal/sensor"
)

var allSides = []geom.Side{geom.Bottom, geom.Top, geom.Front, geom.Back, geom.Left, geom.Right}

var catalog = map[string]Capability{}

func register(c Capability) {
	catalog[c.Name()] = c
}

func init() {
	register(NewCapability("lever", Latching, WithMount(MountWall),
		WithFlags(Invertible, Weakable, LinkSource, LinkTarget)))
	register(NewCapability("toggle_block", Latching, WithSides(allSides...),
		WithFlags(Invertible, Weakable, LinkSource, LinkTarget)))
	register(NewCapability("dimmer", Latching, WithMount(MountWall),
		WithFlags(Invertible, Weakable, TouchConfigurable, LinkTarget)))
	register(NewCapability("button", Pulse, WithMount(MountWall),
		WithFlags(Invertible, Weakable, PulseTimeConfigurable, LinkSource, LinkTarget)))
	register(NewCapability("pulse_button", Pulse, WithMount(MountWall),
		WithFlags(Invertible, Weakable, PulseTimeConfigurable, PulseExtendable, SecondaryClickReset, LinkSource, LinkTarget)))
	register(NewCapability("contact_mat", Contact, WithMount(MountFloor),
		WithFlags(Invertible, Weakable, PulseTimeConfigurable, LinkSource)))
	register(NewCapability("hatch_contact", Contact, WithMount(MountHatch),
		WithFlags(Invertible, PulseTimeConfigurable, LinkSource)))
	register(NewCapability("volume_detector", Detector, WithMount(MountWall), WithSensor(sensor.Volume),
		WithFlags(Invertible, Weakable, PulseTimeConfigurable, TouchConfigurable, LinkSource)))
	register(NewCapability("linear_detector", Detector, WithMount(MountWall), WithSensor(sensor.Linear),
		WithFlags(Invertible, Weakable, PulseTimeConfigurable, TouchConfigurable, LinkSource)))
	register(NewCapability("light_sensor", Environmental, WithMount(MountWall), WithSensor(sensor.Light),
		WithFlags(Invertible, Weakable, PulseTimeConfigurable, LinkSource)))
	register(NewCapability("rain_sensor", Environmental, WithMount(MountWall), WithSensor(sensor.Rain),
		WithFlags(Invertible, Weakable, PulseTimeConfigurable, LinkSource)))
	register(NewCapability("lightning_sensor", Environmental, WithMount(MountWall), WithSensor(sensor.Lightning),
		WithFlags(Invertible, Weakable, PulseTimeConfigurable, LinkSource)))
	register(NewCapability("day_timer", Environmental, WithMount(MountWall), WithSensor(sensor.DayTimer),
		WithFlags(Invertible, Weakable, LinkSource)))
	register(NewCapability("interval_timer", Timer, WithMount(MountWall), WithSensor(sensor.Interval),
		WithFlags(Invertible, Weakable, TouchConfigurable, LinkSource, LinkTarget)))
	register(NewCapability("level_sampler", Sampler, WithMount(MountWall), WithSensor(sensor.Level),
		WithFlags(Invertible, Weakable, LinkSource)))
	register(NewCapability("pattern_observer", Observer, WithMount(MountWall), WithSensor(sensor.BlockPattern),
		WithFlags(Invertible, Weakable, LinkSource)))
	register(NewCapability("link_relay", Relay, WithMount(MountWall),
		WithFlags(Invertible, LinkSource)))
	register(NewCapability("link_pulse_relay", Relay, WithMount(MountWall),
		WithFlags(Invertible, Momentary, PulseExtendable, LinkSource)))
	register(NewCapability("link_relay_block", Relay,
		WithFlags(Invertible, LinkSource)))
}

// Lookup returns the capability registered under name.
func Lookup(name string) (Capability, bool) {
	c, ok := catalog[name]
	return c, ok
}

// Types lists the registered type names in order.
func Types() []string {
	out := make([]string, 0, len(catalog))
	for name := range catalog {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Params are the per-placement settings of a node. Fields irrelevant to a
// type are ignored.
type Params struct {
	OnPower   *int   `yaml:"on_power,omitempty" json:"on_power,omitempty"`
	OffPower  *int   `yaml:"off_power,omitempty" json:"off_power,omitempty"`
	OnTime    int    `yaml:"on_time,omitempty" json:"on_time,omitempty"`
	Inverted  bool   `yaml:"inverted,omitempty" json:"inverted,omitempty"`
	Weak      bool   `yaml:"weak,omitempty" json:"weak,omitempty"`
	Range     int    `yaml:"range,omitempty" json:"range,omitempty"`
	Threshold int    `yaml:"threshold,omitempty" json:"threshold,omitempty"`
	Filter    string `yaml:"filter,omitempty" json:"filter,omitempty"`
	On        int    `yaml:"threshold_on,omitempty" json:"threshold_on,omitempty"`
	Off       int    `yaml:"threshold_off,omitempty" json:"threshold_off,omitempty"`
	Debounce  int    `yaml:"debounce,omitempty" json:"debounce,omitempty"`
	Power     int    `yaml:"power,omitempty" json:"power,omitempty"`
	Period    struct {
		On  int `yaml:"on,omitempty" json:"on,omitempty"`
		Off int `yaml:"off,omitempty" json:"off,omitempty"`
	} `yaml:"period,omitempty" json:"period,omitempty"`
	Ramp            int    `yaml:"ramp,omitempty" json:"ramp,omitempty"`
	Mode            string `yaml:"mode,omitempty" json:"mode,omitempty"`
	Matcher         string `yaml:"matcher,omitempty" json:"matcher,omitempty"`
	HighSensitivity bool   `yaml:"high_sensitivity,omitempty" json:"high_sensitivity,omitempty"`
}

// NewVariant builds the kind-specific parameter block for c.
func NewVariant(c Capability, pos geom.Pos, p Params, opts *Options) (sensor.Variant, error) {
	seed := pos.Seed(uint32(c.Sensor()))
	switch c.Kind() {
	case Latching, Pulse, Relay:
		return nil, nil
	case Contact:
		f := sensor.FilterEverything
		if p.Filter != "" {
			var err error
			if f, err = sensor.ParseEntityFilter(p.Filter); err != nil {
				return nil, err
			}
		}
		return sensor.NewContact(sensor.ContactParams{Threshold: p.Threshold, Filter: f, HighSensitivity: p.HighSensitivity}), nil
	case Detector:
		f := sensor.FilterCreatures
		if p.Filter != "" {
			var err error
			if f, err = sensor.ParseEntityFilter(p.Filter); err != nil {
				return nil, err
			}
		}
		interval := opts.VolumetricInterval
		if c.Sensor() == sensor.Linear {
			interval = opts.LinearInterval
		}
		return sensor.NewDetector(c.Sensor(), sensor.DetectorParams{
			Range: p.Range, Threshold: p.Threshold, Filter: f, Interval: interval,
		}, seed), nil
	case Environmental:
		return sensor.NewEnvironmental(c.Sensor(), sensor.EnvironmentalParams{
			On: p.On, Off: p.Off, Debounce: p.Debounce,
		}, seed), nil
	case Timer:
		return sensor.NewTimer(sensor.TimerParams{
			Power: p.Power, OnTime: p.Period.On, OffTime: p.Period.Off, Ramp: p.Ramp,
		}, seed), nil
	case Sampler:
		mode := sensor.SampleOverride
		if p.Mode != "" {
			var err error
			if mode, err = sensor.ParseSampleMode(p.Mode); err != nil {
				return nil, err
			}
		}
		return sensor.NewSampler(sensor.SamplerParams{Mode: mode, On: p.On, Off: p.Off}, seed), nil
	case Observer:
		m := sensor.MatchAny
		if p.Matcher != "" {
			var err error
			if m, err = sensor.ParseMatcher(p.Matcher); err != nil {
				return nil, err
			}
		}
		return sensor.NewObserver(sensor.ObserverParams{
			Range: p.Range, Threshold: p.Threshold, Debounce: p.Debounce, Matcher: m,
		}, seed), nil
	}
	return nil, fmt.Errorf("no variant for kind %s", c.Kind())
}

// Build creates a node of the named type. Params are applied on top of the
// capability defaults and become the values Reset returns to.
func Build(typeName string, pos geom.Pos, facing geom.Direction, p Params, w World, fx Effects, opts *Options) (*Node, error) {
	c, ok := Lookup(typeName)
	if !ok {
		return nil, fmt.Errorf("unknown node type %q", typeName)
	}
	if opts == nil {
		o := DefaultOptions()
		opts = &o
	}
	v, err := NewVariant(c, pos, p, opts)
	if err != nil {
		return nil, fmt.Errorf("node %s at %s: %w", typeName, pos, err)
	}
	n := New(pos, facing, c, v, w, fx, opts)
	n.applyParams(p)
	return n, nil
}

func (n *Node) applyParams(p Params) {
	if p.OnPower != nil {
		n.SetOnPower(*p.OnPower)
	}
	if p.OffPower != nil {
		n.SetOffPower(*p.OffPower)
	}
	if p.OnTime > 0 {
		n.SetConfiguredOnTime(p.OnTime)
	}
	if p.Inverted {
		n.SetInverted(true)
	}
	if p.Weak {
		n.SetWeak(true)
	}
	n.baseCfg, n.baseVal = n.cfg, n.val
}
