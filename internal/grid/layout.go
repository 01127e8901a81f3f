package grid

import (
	"errors"
	"fmt"

	"github.com/AaronLay10/SignalGrid/internal/geom"
	"github.com/AaronLay10/SignalGrid/internal/node"
)

// Placement is one node of a declared layout.
type Placement struct {
	Type   string
	Pos    geom.Pos
	Facing geom.Direction
	Params node.Params
	Links  []LinkSpec
}

// LinkSpec is a link declared in a layout.
type LinkSpec struct {
	Target geom.Pos
	Mode   node.LinkMode
}

// ApplyLayout places every node, then wires the declared links. Failures
// are collected; the rest of the layout is still applied.
func (g *Grid) ApplyLayout(ps []Placement) error {
	var errs []error
	for _, p := range ps {
		if _, err := g.Place(p.Type, p.Pos, p.Facing, p.Params); err != nil {
			errs = append(errs, fmt.Errorf("place %s at %s: %w", p.Type, p.Pos, err))
		}
	}
	for _, p := range ps {
		for _, l := range p.Links {
			r, err := g.LinkTo(p.Pos, l.Target, l.Mode)
			switch {
			case err != nil:
				errs = append(errs, fmt.Errorf("link %s -> %s: %w", p.Pos, l.Target, err))
			case r != node.Assigned:
				errs = append(errs, fmt.Errorf("link %s -> %s: %s", p.Pos, l.Target, r))
			}
		}
	}
	return errors.Join(errs...)
}
