package node

import (
	"fmt"
	"strings"

	"github.com/AaronLay10/SignalGrid/internal/geom"
)

// LinkMode says how a target reacts to a request.
type LinkMode uint8

const (
	ModeAsState LinkMode = iota
	ModeActivate
	ModeDeactivate
	ModeToggle
	ModeInvState
)

var linkModeNames = [...]string{"as_state", "activate", "deactivate", "toggle", "inv_state"}

func (m LinkMode) String() string {
	if int(m) < len(linkModeNames) {
		return linkModeNames[m]
	}
	return fmt.Sprintf("mode(%d)", uint8(m))
}

// ParseLinkMode accepts the lowercase mode names.
func ParseLinkMode(s string) (LinkMode, error) {
	for i, n := range linkModeNames {
		if n == strings.ToLower(strings.TrimSpace(s)) {
			return LinkMode(i), nil
		}
	}
	return 0, fmt.Errorf("unknown link mode: %q", s)
}

// MarshalText implements encoding.TextMarshaler.
func (m LinkMode) MarshalText() ([]byte, error) { return []byte(m.String()), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (m *LinkMode) UnmarshalText(b []byte) error {
	v, err := ParseLinkMode(string(b))
	if err != nil {
		return err
	}
	*m = v
	return nil
}

// Link is a directed relay connection to a remote node.
type Link struct {
	Target     geom.Pos `json:"target"`
	TargetType string   `json:"target_type"`
	Mode       LinkMode `json:"mode"`
}

// AssignResult is the outcome of attaching a link to a source.
type AssignResult uint8

const (
	Assigned AssignResult = iota
	ErrSelfAssign
	ErrNoSource
	ErrTooFar
	ErrAlreadyLinked
	ErrFailed
)

var assignNames = [...]string{"ok", "self_assign", "no_source", "too_far", "already_linked", "failed"}

func (r AssignResult) String() string {
	if int(r) < len(assignNames) {
		return assignNames[r]
	}
	return fmt.Sprintf("assign(%d)", uint8(r))
}

// RequestResult is the outcome of one link request.
type RequestResult uint8

const (
	RequestOK RequestResult = iota
	RequestNotMatched
	RequestTooFar
	RequestTargetGone
	RequestRejected
)

var requestNames = [...]string{"ok", "not_matched", "too_far", "target_gone", "rejected"}

func (r RequestResult) String() string {
	if int(r) < len(requestNames) {
		return requestNames[r]
	}
	return fmt.Sprintf("request(%d)", uint8(r))
}

// Failed reports whether the result counts as a delivery failure.
func (r RequestResult) Failed() bool {
	return r != RequestOK && r != RequestNotMatched
}

// SupportedModes lists the modes a node accepts as a link target.
func (n *Node) SupportedModes() []LinkMode {
	if !n.cap.LinkTarget() {
		return nil
	}
	if n.cap.Timed() {
		return []LinkMode{ModeActivate, ModeDeactivate, ModeToggle}
	}
	return []LinkMode{ModeAsState, ModeActivate, ModeDeactivate, ModeToggle, ModeInvState}
}

func (n *Node) supportsMode(m LinkMode) bool {
	for _, s := range n.SupportedModes() {
		if s == m {
			return true
		}
	}
	return false
}

// SelectAsTarget produces the link item pointing at n, with the first
// supported mode.
func (n *Node) SelectAsTarget() (Link, bool) {
	modes := n.SupportedModes()
	if len(modes) == 0 {
		n.play(EffectLinkRejected)
		return Link{}, false
	}
	n.play(EffectTargetSelected)
	return Link{Target: n.pos, TargetType: n.cap.Name(), Mode: modes[0]}, true
}

// NextMode cycles l to the next mode supported by target.
func NextMode(l Link, target *Node) Link {
	modes := target.SupportedModes()
	if len(modes) == 0 {
		return l
	}
	for i, m := range modes {
		if m == l.Mode {
			l.Mode = modes[(i+1)%len(modes)]
			return l
		}
	}
	l.Mode = modes[0]
	return l
}

// Links returns a copy of the outgoing links.
func (n *Node) Links() []Link {
	return append([]Link(nil), n.links...)
}

// Assign attaches l to this source node.
func (n *Node) Assign(l Link) AssignResult {
	switch {
	case l.Target == n.pos:
		return ErrSelfAssign
	case !n.cap.LinkSource():
		return ErrNoSource
	case n.tooFar(l.Target):
		return ErrTooFar
	}
	for _, e := range n.links {
		if e.Target == l.Target {
			return ErrAlreadyLinked
		}
	}
	target, ok := n.world.NodeAt(l.Target)
	if !ok || target.cap.Name() != l.TargetType || !target.supportsMode(l.Mode) {
		return ErrFailed
	}
	n.links = append(n.links, l)
	target.initFromSource(l, n)
	n.play(EffectLinkAssigned)
	return Assigned
}

func (n *Node) tooFar(p geom.Pos) bool {
	limit := n.opts.MaxLinkDistance
	return limit > 0 && n.pos.Distance(p) > limit
}

// UnlinkAll removes every outgoing link. With drop set the link items are
// spawned at the node's position.
func (n *Node) UnlinkAll(drop bool) []Link {
	out := n.links
	n.links = nil
	if drop {
		for i := range out {
			l := out[i]
			n.world.SpawnItem(n.pos, Item{Name: "link", Link: &l})
		}
	}
	return out
}

// CheckRequest is the reentrancy guard: a node accepts at most one link
// request per tick, and only if it is a link target.
func (n *Node) CheckRequest() bool {
	now := n.now()
	if n.linkRequested && n.lastLinkRequest == now {
		return false
	}
	n.linkRequested = true
	n.lastLinkRequest = now
	return n.cap.LinkTarget()
}

// ActivateLinks sends (analog, digital, changed) to every link. It returns
// true when no request failed; failures never undo local state.
func (n *Node) ActivateLinks(analog, digital int, changed bool) bool {
	if n.opts.WithoutLinking {
		return true
	}
	n.linkRequested = true
	n.lastLinkRequest = n.now()
	ok := true
	for _, l := range n.links {
		r := n.trigger(l, analog, digital, changed)
		if n.opts.Hooks.LinkRequest != nil {
			n.opts.Hooks.LinkRequest(n, l, r)
		}
		if r.Failed() {
			ok = false
		}
	}
	return ok
}

func (n *Node) sendLinks(analog, digital int, changed bool) {
	if len(n.links) == 0 {
		return
	}
	if !n.ActivateLinks(analog, digital, changed) {
		n.play(EffectLinkFailed)
	}
}

func (n *Node) trigger(l Link, analog, digital int, changed bool) RequestResult {
	if n.tooFar(l.Target) {
		return RequestTooFar
	}
	target, ok := n.world.NodeAt(l.Target)
	if !ok || target.cap.Name() != l.TargetType {
		return RequestTargetGone
	}
	on := digital != 0
	switch l.Mode {
	case ModeAsState:
		if (target.Power(false) != 0) == on {
			return RequestNotMatched
		}
	case ModeInvState:
		if (target.Power(false) != 0) != on {
			return RequestNotMatched
		}
	case ModeActivate:
		if !changed || !on {
			return RequestNotMatched
		}
	case ModeDeactivate:
		if !changed || on {
			return RequestNotMatched
		}
	case ModeToggle:
		if !changed {
			return RequestNotMatched
		}
	}
	return target.handleRequest()
}

// handleRequest runs on the target side of a matched request.
func (n *Node) handleRequest() RequestResult {
	switch n.cap.Kind() {
	case Latching, Pulse:
		if !n.CheckRequest() {
			return RequestTargetGone
		}
		n.Activate(CauseLink)
		return RequestOK
	case Timer:
		if !n.CheckRequest() {
			return RequestRejected
		}
		n.applySensor(!n.powered, 0)
		return RequestOK
	default:
		return RequestRejected
	}
}

// initFromSource aligns a state-following target with its new source.
func (n *Node) initFromSource(l Link, src *Node) {
	on := src.powered
	var want bool
	switch l.Mode {
	case ModeAsState:
		want = on
	case ModeInvState:
		want = !on
	default:
		return
	}
	if n.powered == want {
		return
	}
	switch n.cap.Kind() {
	case Latching:
		n.Activate(CauseLink)
	case Timer:
		n.applySensor(want, 0)
	}
}
