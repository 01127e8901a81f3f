package sensor

import "github.com/AaronLay10/SignalGrid/internal/geom"

const (
	DetectorRangeMin     = 1
	DetectorRangeMax     = 16
	DetectorRangeDefault = 5
)

// DetectorParams configures an entity detector.
type DetectorParams struct {
	Range     int
	Threshold int
	Filter    EntityFilter
	// Interval is the base number of ticks between scans.
	Interval int
}

// Detector counts visible entities inside a volume in front of the node.
type Detector struct {
	cadence
	kind   Kind
	params DetectorParams
}

func (*Detector) isVariant() {}

// NewDetector builds a volume or linear detector.
func NewDetector(kind Kind, p DetectorParams, seed uint64) *Detector {
	if kind != Linear {
		kind = Volume
	}
	d := &Detector{cadence: newCadence(seed), kind: kind}
	d.SetParams(p)
	return d
}

func (d *Detector) Kind() Kind { return d.kind }

func (d *Detector) Params() DetectorParams { return d.params }

// SetParams clamps and stores p.
func (d *Detector) SetParams(p DetectorParams) {
	if p.Range == 0 {
		p.Range = DetectorRangeDefault
	}
	p.Range = clamp(p.Range, DetectorRangeMin, DetectorRangeMax)
	p.Threshold = max(p.Threshold, 1)
	if p.Interval <= 0 {
		p.Interval = 10
		if d.kind == Linear {
			p.Interval = 4
		}
	}
	d.params = p
}

func (d *Detector) Reset(now uint64) { d.next = now }

// Area returns the world-space search volume for a node at pos.
func (d *Detector) Area(pos geom.Pos, facing geom.Direction) geom.Box {
	s := float64(d.params.Range)
	var b geom.Box
	if d.kind == Linear {
		b = geom.NewBox(-0.5, -0.5, -0.5, s, 0.5, 0.5)
	} else {
		b = geom.NewBox(0, -2, -s, s, 2, s)
	}
	return b.TransformForward(facing).Offset(pos).Stretch(1, 1, 1)
}

func (d *Detector) Poll(in Input) Outcome {
	interval := d.params.Interval
	d.after(in.Now, interval, 2)
	if in.Powered && in.Remaining > interval {
		return Outcome{}
	}
	hits := in.Probe.Entities(d.Area(in.Pos, in.Facing), d.params.Filter)
	active := false
	if len(hits) >= d.params.Threshold {
		target := in.Pos.Center()
		seen := 0
		for _, e := range hits {
			eye := e.Pos.Y + e.EyeHeight
			if in.Probe.Unobstructed(geom.Vec3{X: e.Pos.X - 0.2, Y: eye, Z: e.Pos.Z - 0.2}, target) ||
				in.Probe.Unobstructed(geom.Vec3{X: e.Pos.X + 0.2, Y: eye, Z: e.Pos.Z + 0.2}, target) {
				seen++
				if seen >= d.params.Threshold {
					active = true
					break
				}
			}
		}
	}
	return Outcome{Apply: ApplyState, Active: active, Hold: in.OnTime}
}
