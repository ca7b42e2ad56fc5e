// Package navigator drives scene transitions and routes scene commands to
// their handlers.
package navigator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/AaronLay10/AdventureEngine/internal/assets"
	"github.com/AaronLay10/AdventureEngine/internal/events"
	"github.com/AaronLay10/AdventureEngine/internal/scenes"
)

// Navigator is the state machine over the current scene.
type Navigator struct {
	graph      SceneSource
	cache      scenes.Acquirer
	transition Transition
	settle     time.Duration

	story  StoryPlayer
	quest  QuestNotifier
	panels PanelOpener

	dispatcher *Dispatcher

	mu        sync.Mutex
	current   *scenes.Scene
	state     State
	busy      bool
	observers []SceneObserver

	// shops holds the dataset each shop address was last opened with; the
	// navigator keeps one cache reference per address.
	shops map[string]*assets.Asset
}

// Option configures a Navigator.
type Option func(*Navigator)

// WithTransition sets the transition effect provider.
// A nil provider keeps the timed fallback.
func WithTransition(t Transition) Option {
	return func(n *Navigator) {
		if t != nil {
			n.transition = t
		}
	}
}

// WithSettleDelay sets the pause between applying a scene and fading in.
func WithSettleDelay(d time.Duration) Option {
	return func(n *Navigator) { n.settle = d }
}

func WithStory(s StoryPlayer) Option {
	return func(n *Navigator) { n.story = s }
}

func WithQuest(q QuestNotifier) Option {
	return func(n *Navigator) { n.quest = q }
}

func WithPanels(p PanelOpener) Option {
	return func(n *Navigator) { n.panels = p }
}

// New creates an idle navigator with no current scene.
func New(graph SceneSource, cache scenes.Acquirer, opts ...Option) *Navigator {
	n := &Navigator{
		graph:      graph,
		cache:      cache,
		transition: FallbackTransition(),
		settle:     DefaultSettleDelay,
		state:      StateIdle,
		dispatcher: NewDispatcher(),
		shops:      make(map[string]*assets.Asset),
	}
	for _, opt := range opts {
		opt(n)
	}

	n.dispatcher.Register(scenes.CommandMove, n.EnterScene)
	n.dispatcher.Register(scenes.CommandTalk, n.handleTalk)
	n.dispatcher.Register(scenes.CommandShop, n.handleShop)
	// Reserved extension points.
	n.dispatcher.Register(scenes.CommandExplore, noop)
	n.dispatcher.Register(scenes.CommandBattle, noop)
	n.dispatcher.Register(scenes.CommandSystem, noop)

	return n
}

func noop(context.Context, string) error { return nil }

// Handle replaces the handler for a command type, e.g. to fill one of the
// reserved explore/battle/system slots.
func (n *Navigator) Handle(t scenes.CommandType, h HandlerFunc) {
	n.dispatcher.Register(t, h)
}

// OnSceneChanged registers an observer. Observers run in registration order.
func (n *Navigator) OnSceneChanged(obs SceneObserver) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.observers = append(n.observers, obs)
}

// CurrentScene returns the current scene, or nil before the first entry.
func (n *Navigator) CurrentScene() *scenes.Scene {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.current
}

// State returns the transition state.
func (n *Navigator) State() State {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.state
}

// Status returns the current scene and state.
func (n *Navigator) Status() Status {
	n.mu.Lock()
	defer n.mu.Unlock()
	st := Status{State: n.state}
	if n.current != nil {
		st.SceneID = n.current.ID
		st.SceneName = n.current.Name
	}
	return st
}

// EnterScene moves to sceneID.
//
// The first entry, and any entry while no scene is current, applies the scene
// synchronously. Re-entering the current scene is a no-op. Any other entry
// runs fade-out, apply, fade-in. A call made while another entry is still in
// progress is rejected with ErrTransitionRejected; nothing is queued.
//
// Every error is logged here; callers may ignore the return value.
func (n *Navigator) EnterScene(ctx context.Context, sceneID string) error {
	if !n.graph.Ready() {
		events.Emit("warning", "graph.not_initialized", "navigation ignored", map[string]interface{}{
			"scene_id": sceneID,
		})
		return ErrNotInitialized
	}

	scene, ok := n.graph.GetScene(sceneID)
	if !ok {
		events.Emit("error", "scene.unknown", "scene not found in database", map[string]interface{}{
			"scene_id": sceneID,
		})
		return fmt.Errorf("%w: %s", ErrUnknownScene, sceneID)
	}

	n.mu.Lock()
	if n.busy {
		n.mu.Unlock()
		events.Emit("warning", "transition.rejected", "", map[string]interface{}{
			"scene_id": sceneID,
		})
		return fmt.Errorf("%w: %s", ErrTransitionRejected, sceneID)
	}
	from := n.current
	if from != nil && from.ID == sceneID {
		n.mu.Unlock()
		return nil
	}
	n.busy = true
	if from != nil {
		n.state = StateTransitioning
	}
	n.mu.Unlock()

	defer func() {
		n.mu.Lock()
		n.busy = false
		n.state = StateIdle
		n.mu.Unlock()
	}()

	if from == nil {
		n.apply(ctx, scene)
		return nil
	}

	n.transitionTo(ctx, from, scene)
	return nil
}

func (n *Navigator) transitionTo(ctx context.Context, from, to *scenes.Scene) {
	// Once started a transition runs to completion.
	ctx = context.WithoutCancel(ctx)

	events.Emit("info", "transition.started", "", map[string]interface{}{
		"from": from.ID,
		"to":   to.ID,
	})

	if err := n.transition.FadeOut(ctx); err != nil {
		n.effectFailed("fade_out", to.ID, err)
	}

	n.apply(ctx, to)

	if err := sleep(ctx, n.settle); err != nil {
		n.effectFailed("settle", to.ID, err)
	}

	if err := n.transition.FadeIn(ctx); err != nil {
		n.effectFailed("fade_in", to.ID, err)
	}

	events.Emit("info", "transition.completed", "", map[string]interface{}{
		"from": from.ID,
		"to":   to.ID,
	})
}

func (n *Navigator) effectFailed(phase, sceneID string, err error) {
	events.Emit("error", "transition.error", err.Error(), map[string]interface{}{
		"phase":    phase,
		"scene_id": sceneID,
	})
}

// apply sets the current scene, notifies observers, then fires the scene's
// auto-trigger story before returning.
func (n *Navigator) apply(ctx context.Context, scene *scenes.Scene) {
	n.mu.Lock()
	n.current = scene
	observers := append([]SceneObserver(nil), n.observers...)
	n.mu.Unlock()

	events.Emit("info", "scene.changed", "", map[string]interface{}{
		"scene_id":   scene.ID,
		"scene_name": scene.Name,
	})

	for _, obs := range observers {
		obs(scene)
	}

	if scene.AutoTriggerStoryID != "" {
		n.handleTalk(ctx, scene.AutoTriggerStoryID)
	}
}

// ExecuteCommand routes cmd to its handler. A nil command and unknown command
// types are no-ops. Handler errors are logged where they occur and returned
// for information only.
func (n *Navigator) ExecuteCommand(ctx context.Context, cmd *scenes.Command) error {
	if cmd == nil {
		return nil
	}

	handled, err := n.dispatcher.Dispatch(ctx, *cmd)
	if !handled {
		events.Emit("debug", "command.ignored", "", map[string]interface{}{
			"type":  string(cmd.Type),
			"label": cmd.Label,
		})
		return nil
	}

	fields := map[string]interface{}{
		"type":      string(cmd.Type),
		"label":     cmd.Label,
		"parameter": cmd.Parameter,
	}
	if err != nil {
		fields["error"] = err.Error()
	}
	events.Emit("info", "command.executed", "", fields)
	return err
}

func (n *Navigator) handleTalk(ctx context.Context, storyID string) error {
	if storyID == "" {
		events.Emit("warning", "command.malformed", "talk without story id", map[string]interface{}{
			"type": "talk",
		})
		return fmt.Errorf("%w: empty story id", ErrMalformedParameter)
	}

	if n.story == nil {
		n.missing("story", "story not started")
	} else if err := n.story.Start(ctx, storyID); err != nil {
		events.Emit("error", "command.error", err.Error(), map[string]interface{}{
			"type":     "talk",
			"story_id": storyID,
		})
	} else {
		events.Emit("info", "story.started", "", map[string]interface{}{
			"story_id": storyID,
		})
	}

	if n.quest == nil {
		n.missing("quest", "quest progress not notified")
	} else if err := n.quest.OnTalkedTo(ctx, storyID); err != nil {
		events.Emit("error", "command.error", err.Error(), map[string]interface{}{
			"type": "talk",
			"id":   storyID,
		})
	} else {
		events.Emit("info", "quest.talked", "", map[string]interface{}{
			"id": storyID,
		})
	}

	return nil
}

func (n *Navigator) missing(collaborator, msg string) {
	events.Emit("warning", "collaborator.missing", msg, map[string]interface{}{
		"collaborator": collaborator,
	})
}
