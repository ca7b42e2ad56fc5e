package navigator

import (
	"fmt"

	"github.com/AaronLay10/AdventureEngine/internal/scenes"
)

// Issue is a problem found in a scene database that would make a command a
// no-op at runtime.
type Issue struct {
	SceneID string `json:"scene_id"`
	Index   int    `json:"index"` // command index, -1 for the scene itself
	Message string `json:"message"`
}

func (i Issue) String() string {
	if i.Index < 0 {
		return fmt.Sprintf("%s: %s", i.SceneID, i.Message)
	}
	return fmt.Sprintf("%s[%d]: %s", i.SceneID, i.Index, i.Message)
}

// Lint checks every command in db against the handlers New registers.
func Lint(db *scenes.Database) []Issue {
	ids := make(map[string]bool, len(db.Scenes))
	for _, s := range db.Scenes {
		ids[s.ID] = true
	}

	var issues []Issue
	for _, s := range db.Scenes {
		if s.Name == "" {
			issues = append(issues, Issue{SceneID: s.ID, Index: -1, Message: "scene has no name"})
		}
		for i, cmd := range s.Commands {
			add := func(format string, args ...interface{}) {
				issues = append(issues, Issue{SceneID: s.ID, Index: i, Message: fmt.Sprintf(format, args...)})
			}
			switch cmd.Type {
			case scenes.CommandMove:
				if !ids[cmd.Parameter] {
					add("move targets unknown scene %q", cmd.Parameter)
				}
			case scenes.CommandTalk:
				if cmd.Parameter == "" {
					add("talk without story id")
				}
			case scenes.CommandShop:
				if _, err := ParseShopParameter(cmd.Parameter); err != nil {
					add("%v", err)
				}
			case scenes.CommandExplore, scenes.CommandBattle, scenes.CommandSystem:
			default:
				add("unknown command type %q", cmd.Type)
			}
		}
	}
	return issues
}
