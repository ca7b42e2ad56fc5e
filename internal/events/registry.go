package events

import "fmt"

var allowedEvents = map[string]struct{}{
	// asset cache
	"asset.load_started": {},
	"asset.loaded":       {},
	"asset.load_failed":  {},
	"asset.released":     {},
	"asset.evicted":      {},
	"asset.teardown":     {},

	// scene graph
	"graph.loaded":          {},
	"graph.not_initialized": {},

	// navigation
	"scene.changed":        {},
	"scene.unknown":        {},
	"transition.started":   {},
	"transition.completed": {},
	"transition.rejected":  {},
	"transition.error":     {},

	// commands
	"command.executed":  {},
	"command.ignored":   {},
	"command.malformed": {},
	"command.error":     {},

	// collaborators
	"story.started":        {},
	"quest.talked":         {},
	"panel.opened":         {},
	"collaborator.missing": {},

	// presentation clients
	"presentation.connected":    {},
	"presentation.disconnected": {},

	// session
	"session.started":  {},
	"session.preload":  {},
	"session.teardown": {},

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
