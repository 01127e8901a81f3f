package sensor

import "github.com/AaronLay10/SignalGrid/internal/geom"

const ContactThresholdMax = 64

// ContactParams configures a contact plate.
type ContactParams struct {
	Threshold       int
	Filter          EntityFilter
	HighSensitivity bool
}

// Contact detects entities standing on or in the node's cell. It is not
// polled; the host calls Detect on collision and on scheduled ticks.
type Contact struct {
	params ContactParams
}

func (*Contact) isVariant() {}

// NewContact builds a contact plate variant.
func NewContact(p ContactParams) *Contact {
	c := &Contact{}
	c.SetParams(p)
	return c
}

func (c *Contact) Params() ContactParams { return c.params }

// SetParams clamps and stores p.
func (c *Contact) SetParams(p ContactParams) {
	p.Threshold = clamp(p.Threshold, 1, ContactThresholdMax)
	c.params = p
}

// Area is the detection volume for a plate at pos.
func (c *Contact) Area(pos geom.Pos) geom.Box {
	return geom.CellBox(pos, pos.Add(1, 2, 1))
}

// Detect reports whether enough qualifying entities touch the plate.
func (c *Contact) Detect(pos geom.Pos, probe Probe) bool {
	hits := probe.Entities(c.Area(pos), c.params.Filter)
	if len(hits) < c.params.Threshold {
		return false
	}
	if c.params.HighSensitivity {
		return true
	}
	for _, e := range hits {
		if !e.IgnoresTriggers {
			return true
		}
	}
	return false
}
