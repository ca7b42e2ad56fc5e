package navigator

import (
	"context"
	"errors"

	"github.com/AaronLay10/AdventureEngine/internal/scenes"
)

var (
	ErrNotInitialized     = errors.New("scene graph not initialized")
	ErrUnknownScene       = errors.New("unknown scene")
	ErrTransitionRejected = errors.New("transition already in progress")
	ErrMalformedParameter = errors.New("malformed command parameter")
)

// State is the navigator's transition state.
type State string

const (
	StateIdle          State = "idle"
	StateTransitioning State = "transitioning"
)

// Status is a point-in-time view of the navigator.
type Status struct {
	SceneID   string `json:"scene_id,omitempty"`
	SceneName string `json:"scene_name,omitempty"`
	State     State  `json:"state"`
}

// SceneSource resolves scene ids. *scenes.Graph satisfies it.
type SceneSource interface {
	Ready() bool
	GetScene(sceneID string) (*scenes.Scene, bool)
}

// SceneObserver is notified synchronously after the current scene changes.
type SceneObserver func(scene *scenes.Scene)

// StoryPlayer starts story playback for a story id.
type StoryPlayer interface {
	Start(ctx context.Context, storyID string) error
}

// QuestNotifier is told whenever the player talks to someone.
type QuestNotifier interface {
	OnTalkedTo(ctx context.Context, id string) error
}

// PanelOpener asks the presentation layer to open a UI panel.
type PanelOpener interface {
	OpenPanel(ctx context.Context, kind string, payload interface{}) error
}
