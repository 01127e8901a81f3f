package geom

// Vec3 is a point in continuous grid space.
type Vec3 struct {
	X, Y, Z float64
}

// Add returns the component-wise sum.
func (v Vec3) Add(x, y, z float64) Vec3 {
	return Vec3{v.X + x, v.Y + y, v.Z + z}
}

// Box is an axis-aligned bounding box. Min is always <= Max per axis.
type Box struct {
	Min, Max Vec3
}

// NewBox builds a box from two corners in any order.
func NewBox(x0, y0, z0, x1, y1, z1 float64) Box {
	return Box{
		Min: Vec3{min(x0, x1), min(y0, y1), min(z0, z1)},
		Max: Vec3{max(x0, x1), max(y0, y1), max(z0, z1)},
	}
}

// CellBox spans the cells from a to b inclusive of a's origin and b's origin.
func CellBox(a, b Pos) Box {
	return NewBox(float64(a.X), float64(a.Y), float64(a.Z), float64(b.X), float64(b.Y), float64(b.Z))
}

// Offset moves the box by the origin of p.
func (b Box) Offset(p Pos) Box {
	dx, dy, dz := float64(p.X), float64(p.Y), float64(p.Z)
	return Box{Min: b.Min.Add(dx, dy, dz), Max: b.Max.Add(dx, dy, dz)}
}

// Stretch grows the box along each axis: positive values move the max
// face outwards, negative values move the min face.
func (b Box) Stretch(x, y, z float64) Box {
	out := b
	stretch := func(lo, hi *float64, v float64) {
		if v < 0 {
			*lo += v
		} else {
			*hi += v
		}
	}
	stretch(&out.Min.X, &out.Max.X, x)
	stretch(&out.Min.Y, &out.Max.Y, y)
	stretch(&out.Min.Z, &out.Max.Z, z)
	return out
}

// Contains reports whether v lies inside the box (max faces exclusive).
func (b Box) Contains(v Vec3) bool {
	return v.X >= b.Min.X && v.X < b.Max.X &&
		v.Y >= b.Min.Y && v.Y < b.Max.Y &&
		v.Z >= b.Min.Z && v.Z < b.Max.Z
}

// TransformForward rotates a box modelled for an east-facing node so it
// points along facing.
func (b Box) TransformForward(facing Direction) Box {
	x0, y0, z0 := b.Min.X, b.Min.Y, b.Min.Z
	x1, y1, z1 := b.Max.X, b.Max.Y, b.Max.Z
	switch facing {
	case Down:
		return NewBox(y0, -x0, z0, y1, -x1, z1)
	case Up:
		return NewBox(-y0, x0, z0, -y1, x1, z1)
	case North:
		return NewBox(z0, y0, -x0, z1, y1, -x1)
	case South:
		return NewBox(-z0, y0, x0, -z1, y1, x1)
	case West:
		return NewBox(-x0, y0, -z0, -x1, y1, -z1)
	default:
		return b
	}
}
