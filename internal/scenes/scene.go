// Package scenes is the read model of the adventure database: scene nodes and
// the commands attached to each.
package scenes

import (
	"encoding/json"
	"strings"
)

// CommandType tags a command with the handler that receives it.
type CommandType string

const (
	CommandMove    CommandType = "move"
	CommandTalk    CommandType = "talk"
	CommandShop    CommandType = "shop"
	CommandExplore CommandType = "explore"
	CommandBattle  CommandType = "battle"
	CommandSystem  CommandType = "system"
)

// UnmarshalJSON accepts any casing ("Move", "move") and keeps unknown values.
func (t *CommandType) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	*t = CommandType(strings.ToLower(strings.TrimSpace(s)))
	return nil
}

// Command is a typed, parameterized action attached to a scene.
// Parameter encoding is type-specific, e.g. shop uses "path|shopId".
type Command struct {
	Type      CommandType `json:"type"`
	Parameter string      `json:"parameter"`
	Label     string      `json:"label"`
}

// Scene is a navigable location.
type Scene struct {
	ID                 string    `json:"id"`
	Name               string    `json:"name"`
	AutoTriggerStoryID string    `json:"auto_trigger_story_id,omitempty"`
	Commands           []Command `json:"commands"`
}

// Database is the top-level document stored under the adventure database address.
type Database struct {
	Version int     `json:"version"`
	Scenes  []Scene `json:"scenes"`
}
