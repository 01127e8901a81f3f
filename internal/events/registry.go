package events

import "fmt"

var allowedEvents = map[string]struct{}{
	// node
	"node.placed":     {},
	"node.removed":    {},
	"node.powered":    {},
	"node.unpowered":  {},
	"node.configured": {},
	"node.restored":   {},

	// link
	"link.selected": {},
	"link.assigned": {},
	"link.rejected": {},
	"link.unlinked": {},
	"link.failed":   {},

	// effect
	"effect.played": {},

	// grid
	"grid.started": {},
	"grid.stopped": {},
	"grid.saved":   {},
	"grid.loaded":  {},

	// operator
	"operator.activate": {},
	"operator.cycle":    {},
	"operator.place":    {},
	"operator.remove":   {},
	"operator.world":    {},

	// bridge
	"bridge.connected":    {},
	"bridge.disconnected": {},
	"bridge.command":      {},
	"bridge.error":        {},

	// config
	"config.reloaded": {},
	"config.error":    {},

	// system
	"system.startup":  {},
	"system.shutdown": {},
	"system.error":    {},
}

func Validate(event string) error {
	if _, ok := allowedEvents[event]; !ok {
		return fmt.Errorf("unknown event: %s", event)
	}
	return nil
}
