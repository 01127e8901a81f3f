package geom

import (
	"fmt"
	"strings"
)

// Direction is an absolute face direction in the grid.
type Direction uint8

const (
	Down Direction = iota
	Up
	North
	South
	West
	East
)

// Directions lists all six faces in index order.
var Directions = [6]Direction{Down, Up, North, South, West, East}

var directionNames = [6]string{"down", "up", "north", "south", "west", "east"}

var directionVectors = [6][3]int{
	{0, -1, 0},
	{0, 1, 0},
	{0, 0, -1},
	{0, 0, 1},
	{-1, 0, 0},
	{1, 0, 0},
}

func (d Direction) String() string {
	if int(d) < len(directionNames) {
		return directionNames[d]
	}
	return fmt.Sprintf("direction(%d)", uint8(d))
}

// Opposite returns the direction pointing the other way.
func (d Direction) Opposite() Direction {
	return d ^ 1
}

// Vector returns the unit offset of d.
func (d Direction) Vector() (x, y, z int) {
	v := directionVectors[d]
	return v[0], v[1], v[2]
}

// Horizontal reports whether d lies in the x/z plane.
func (d Direction) Horizontal() bool {
	return d >= North
}

// ParseDirection accepts the lowercase direction names.
func ParseDirection(s string) (Direction, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for i, n := range directionNames {
		if n == s {
			return Direction(i), nil
		}
	}
	return 0, fmt.Errorf("unknown direction: %q", s)
}

// MarshalText implements encoding.TextMarshaler.
func (d Direction) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Direction) UnmarshalText(b []byte) error {
	v, err := ParseDirection(string(b))
	if err != nil {
		return err
	}
	*d = v
	return nil
}

// Side is a node-local face. Index values line up with Direction so a side
// set can be stored in the same six bits.
type Side uint8

const (
	Bottom Side = iota
	Top
	Front
	Back
	Left
	Right
)

var sideNames = [6]string{"bottom", "top", "front", "back", "left", "right"}

func (s Side) String() string {
	if int(s) < len(sideNames) {
		return sideNames[s]
	}
	return fmt.Sprintf("side(%d)", uint8(s))
}

// ParseSide accepts the lowercase side names.
func ParseSide(s string) (Side, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for i, n := range sideNames {
		if n == s {
			return Side(i), nil
		}
	}
	return 0, fmt.Errorf("unknown side: %q", s)
}

// sideOf[facing][absolute] gives the node-local side facing the absolute
// direction. Front is the face opposite the facing: a node facing south has
// its front towards north and its back towards south.
var sideOf = [6][6]Side{
	Down:  {Back, Front, Top, Bottom, Left, Right},
	Up:    {Front, Back, Bottom, Top, Left, Right},
	North: {Bottom, Top, Back, Front, Left, Right},
	South: {Bottom, Top, Front, Back, Right, Left},
	West:  {Bottom, Top, Right, Left, Back, Front},
	East:  {Bottom, Top, Left, Right, Front, Back},
}

// LocalSide translates the absolute direction d into the node-local side of a
// node placed with the given facing.
func LocalSide(facing, d Direction) Side {
	return sideOf[facing][d]
}
