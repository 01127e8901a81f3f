package geom

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Pos is an integer grid cell.
type Pos struct {
	X, Y, Z int
}

// Offset returns the cell n steps from p in direction d.
func (p Pos) Offset(d Direction, n int) Pos {
	x, y, z := d.Vector()
	return Pos{p.X + x*n, p.Y + y*n, p.Z + z*n}
}

// Neighbor returns the adjacent cell in direction d.
func (p Pos) Neighbor(d Direction) Pos {
	return p.Offset(d, 1)
}

// Add returns the component-wise sum.
func (p Pos) Add(x, y, z int) Pos {
	return Pos{p.X + x, p.Y + y, p.Z + z}
}

// DistSq returns the squared euclidean distance between cell origins.
func (p Pos) DistSq(q Pos) int {
	dx, dy, dz := p.X-q.X, p.Y-q.Y, p.Z-q.Z
	return dx*dx + dy*dy + dz*dz
}

// Distance returns the truncated euclidean distance.
func (p Pos) Distance(q Pos) int {
	return int(math.Sqrt(float64(p.DistSq(q))))
}

// Center returns the center point of the cell.
func (p Pos) Center() Vec3 {
	return Vec3{float64(p.X) + 0.5, float64(p.Y) + 0.5, float64(p.Z) + 0.5}
}

// DirectionTo returns the direction from p to an adjacent cell q.
func (p Pos) DirectionTo(q Pos) (Direction, bool) {
	for _, d := range Directions {
		if p.Neighbor(d) == q {
			return d, true
		}
	}
	return 0, false
}

func (p Pos) String() string {
	return fmt.Sprintf("%d,%d,%d", p.X, p.Y, p.Z)
}

// ParsePos parses the "x,y,z" form produced by String.
func ParsePos(s string) (Pos, error) {
	parts := strings.Split(strings.TrimSpace(s), ",")
	if len(parts) != 3 {
		return Pos{}, fmt.Errorf("invalid position %q: want x,y,z", s)
	}
	var v [3]int
	for i, part := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil {
			return Pos{}, fmt.Errorf("invalid position %q: %w", s, err)
		}
		v[i] = n
	}
	return Pos{v[0], v[1], v[2]}, nil
}

// MarshalText implements encoding.TextMarshaler.
func (p Pos) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (p *Pos) UnmarshalText(b []byte) error {
	v, err := ParsePos(string(b))
	if err != nil {
		return err
	}
	*p = v
	return nil
}
