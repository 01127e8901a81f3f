package node

import (
	"fmt"
	"time"

	"github.com/AaronLay10/SignalGrid/internal/geom"
	"github.com/AaronLay10/SignalGrid/internal/sensor"
)

// World is the host grid a node lives in.
type World interface {
	sensor.Probe
	NodeAt(pos geom.Pos) (*Node, bool)
	SetPowered(pos geom.Pos, powered bool)
	ScheduleTick(pos geom.Pos, delay int)
	IsTickScheduled(pos geom.Pos) bool
	NotifyNeighbor(pos, from geom.Pos)
	SpawnItem(pos geom.Pos, item Item)
	CurrentTick() uint64
	// SignalFrom returns the level emitted by the cell at from towards dir.
	SignalFrom(from geom.Pos, dir geom.Direction) int
}

// Effect identifies a user feedback event.
type Effect uint8

const (
	EffectOn Effect = iota
	EffectOff
	EffectConfig
	EffectLinkFailed
	EffectLinkAssigned
	EffectLinkRejected
	EffectTargetSelected
)

var effectNames = [...]string{"on", "off", "config", "link_failed", "link_assigned", "link_rejected", "target_selected"}

func (e Effect) String() string {
	if int(e) < len(effectNames) {
		return effectNames[e]
	}
	return fmt.Sprintf("effect(%d)", uint8(e))
}

// Effects plays fire-and-forget feedback.
type Effects interface {
	Play(effect Effect, pos geom.Pos)
}

// Item is a physical item a node can drop into the world.
type Item struct {
	Name string `json:"name"`
	Link *Link  `json:"link,omitempty"`
}

// Cause says what triggered an activation.
type Cause uint8

const (
	CauseManual Cause = iota
	CauseLink
	CauseTick
)

var causeNames = [...]string{"manual", "link", "tick"}

func (c Cause) String() string {
	if int(c) < len(causeNames) {
		return causeNames[c]
	}
	return fmt.Sprintf("cause(%d)", uint8(c))
}

// Clock supplies wall-clock time for gesture timing.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// SystemClock reads time.Now.
var SystemClock Clock = systemClock{}

// Options are the grid-wide policy switches shared by every node.
type Options struct {
	WithoutLinking         bool
	WithoutNoOutput        bool
	WithoutPulseTimeConfig bool
	// MaxLinkDistance limits link length in cells. Zero means unlimited.
	MaxLinkDistance int
	// ClickTimeout is the double-activation window for config cycling.
	ClickTimeout time.Duration
	// CycleSpacing is the window after which a config gesture only shows status.
	CycleSpacing       time.Duration
	VolumetricInterval int
	LinearInterval     int
	Clock              Clock
	Hooks              Hooks
}

// Hooks observe node activity. Nil hooks are skipped.
type Hooks struct {
	Activated   func(n *Node, cause Cause)
	LinkRequest func(src *Node, l Link, r RequestResult)
	Configured  func(n *Node)
	Polled      func(n *Node, out sensor.Outcome)
}

// DefaultOptions returns the stock policy.
func DefaultOptions() Options {
	return Options{
		MaxLinkDistance:    48,
		ClickTimeout:       700 * time.Millisecond,
		CycleSpacing:       3 * time.Second,
		VolumetricInterval: 10,
		LinearInterval:     4,
		Clock:              SystemClock,
	}
}

func (o *Options) now() time.Time {
	if o.Clock == nil {
		return time.Now()
	}
	return o.Clock.Now()
}
