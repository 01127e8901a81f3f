package sensor

import (
	"fmt"
	"strings"

	"github.com/AaronLay10/SignalGrid/internal/geom"
)

// Class is the broad category of an entity.
type Class uint8

const (
	ClassCreature Class = iota
	ClassPlayer
	ClassMonster
	ClassAnimal
	ClassVillager
	ClassObject
)

var classNames = [...]string{"creature", "player", "monster", "animal", "villager", "object"}

func (c Class) String() string {
	if int(c) < len(classNames) {
		return classNames[c]
	}
	return fmt.Sprintf("class(%d)", uint8(c))
}

// ParseClass accepts the lowercase class names.
func ParseClass(s string) (Class, error) {
	for i, n := range classNames {
		if n == strings.ToLower(s) {
			return Class(i), nil
		}
	}
	return 0, fmt.Errorf("unknown entity class: %q", s)
}

// Living reports whether the class counts as a creature.
func (c Class) Living() bool {
	return c != ClassObject
}

// Entity is a mobile thing a detector can see.
type Entity struct {
	ID        string    `json:"id"`
	Class     Class     `json:"class"`
	Pos       geom.Vec3 `json:"pos"`
	EyeHeight float64   `json:"eye_height"`
	// IgnoresTriggers marks entities that do not press contact plates
	// unless the plate is high-sensitivity.
	IgnoresTriggers bool `json:"ignores_triggers"`
}

// MarshalText implements encoding.TextMarshaler.
func (c Class) MarshalText() ([]byte, error) { return []byte(c.String()), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (c *Class) UnmarshalText(b []byte) error {
	v, err := ParseClass(string(b))
	if err != nil {
		return err
	}
	*c = v
	return nil
}

// EntityFilter selects which entity classes are counted.
type EntityFilter uint8

const (
	FilterCreatures EntityFilter = iota
	FilterPlayers
	FilterMobs
	FilterAnimals
	FilterVillagers
	FilterObjects
	FilterEverything
)

var filterNames = [...]string{"creatures", "players", "mobs", "animals", "villagers", "objects", "everything"}

func (f EntityFilter) String() string {
	if int(f) < len(filterNames) {
		return filterNames[f]
	}
	return fmt.Sprintf("filter(%d)", uint8(f))
}

// ParseEntityFilter accepts the lowercase filter names.
func ParseEntityFilter(s string) (EntityFilter, error) {
	for i, n := range filterNames {
		if n == strings.ToLower(s) {
			return EntityFilter(i), nil
		}
	}
	return 0, fmt.Errorf("unknown entity filter: %q", s)
}

// Matches reports whether an entity of class c passes the filter.
func (f EntityFilter) Matches(c Class) bool {
	switch f {
	case FilterCreatures:
		return c.Living()
	case FilterPlayers:
		return c == ClassPlayer
	case FilterMobs:
		return c == ClassMonster
	case FilterAnimals:
		return c == ClassAnimal
	case FilterVillagers:
		return c == ClassVillager
	case FilterObjects:
		return c == ClassObject
	default:
		return true
	}
}
