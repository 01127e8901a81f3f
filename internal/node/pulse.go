package node

const (
	// pulseLimit bounds a pulse deadline. Remaining times above it are
	// treated as stale and read as zero.
	pulseLimit = 400
	// pulseConfiguredMin is the smallest explicit on-time honoured by extend.
	pulseConfiguredMin = 2
	pulseStaircaseTop  = 200
)

// Remaining returns the ticks left before a pulse expires.
func (n *Node) Remaining() int {
	now := n.now()
	if n.deadline <= now {
		return 0
	}
	t := n.deadline - now
	if t > pulseLimit {
		return 0
	}
	return int(t)
}

// resetTimer sets the deadline preset ticks from now.
func (n *Node) resetTimer(preset int) {
	preset = min(max(preset, 0), pulseLimit)
	n.deadline = n.now() + uint64(preset)
}

// extendTime picks the next pulse length: an explicit on-time if one is
// configured, else a staircase over the remaining time so that rapid
// re-triggering grows the pulse.
func extendTime(configured, remaining int) int {
	if configured >= pulseConfiguredMin {
		return configured
	}
	switch {
	case remaining > 90:
		return pulseStaircaseTop
	case remaining > 45:
		return 100
	case remaining > 15:
		return 50
	case remaining > 1:
		return 30
	default:
		return 20
	}
}

func (n *Node) extend() {
	n.resetTimer(extendTime(n.val.onTime(), n.Remaining()))
}

// reschedule asks for a tick at the deadline unless one is pending.
func (n *Node) reschedule() {
	if n.world.IsTickScheduled(n.pos) {
		return
	}
	n.world.ScheduleTick(n.pos, max(n.Remaining(), 1))
}

// pulseTick expires a timed node once its deadline has passed.
func (n *Node) pulseTick() {
	if !n.powered {
		return
	}
	if n.Remaining() > 0 {
		n.reschedule()
		return
	}
	n.setPowered(false)
	n.play(EffectOff)
	if !n.cap.Relay() {
		n.notify(false)
	}
	if n.cap.LinkSource() {
		n.sendLinks(0, 0, true)
	}
}
