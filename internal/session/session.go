// Package session owns the per-session cache, scene graph and navigator.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/AaronLay10/AdventureEngine/internal/assets"
	"github.com/AaronLay10/AdventureEngine/internal/config"
	"github.com/AaronLay10/AdventureEngine/internal/events"
	"github.com/AaronLay10/AdventureEngine/internal/navigator"
	"github.com/AaronLay10/AdventureEngine/internal/scenes"
)

// ErrNoLoader is returned by New when the configured backend needs an
// injected loader and none was given.
var ErrNoLoader = errors.New("content backend requires WithLoader")

// Session is one running adventure. Nothing in it is shared between sessions.
type Session struct {
	cfg *config.SessionConfig

	loader assets.Loader
	dir    *assets.DirLoader
	cache  *assets.Cache
	graph  *scenes.Graph
	nav    *navigator.Navigator

	navOpts []navigator.Option

	startedAt    time.Time
	teardownOnce sync.Once
	tornDown     atomic.Bool
}

type Option func(*Session)

// WithLoader replaces the loader built from the content config.
func WithLoader(l assets.Loader) Option {
	return func(s *Session) { s.loader = l }
}

func WithStory(p navigator.StoryPlayer) Option {
	return func(s *Session) { s.navOpts = append(s.navOpts, navigator.WithStory(p)) }
}

func WithQuest(q navigator.QuestNotifier) Option {
	return func(s *Session) { s.navOpts = append(s.navOpts, navigator.WithQuest(q)) }
}

func WithPanels(p navigator.PanelOpener) Option {
	return func(s *Session) { s.navOpts = append(s.navOpts, navigator.WithPanels(p)) }
}

func WithTransition(t navigator.Transition) Option {
	return func(s *Session) { s.navOpts = append(s.navOpts, navigator.WithTransition(t)) }
}

// New builds a session from cfg. It does not load anything; call Start.
func New(cfg *config.SessionConfig, opts ...Option) (*Session, error) {
	s := &Session{cfg: cfg}

	// Config-derived timing goes first so injected options win.
	tc := cfg.Transition
	out := tc.FadeOut
	if out == 0 {
		out = navigator.DefaultFallbackFade
	}
	s.navOpts = append(s.navOpts, navigator.WithTransition(navigator.TimedTransition{Out: out, In: tc.FadeIn}))
	if tc.Settle > 0 {
		s.navOpts = append(s.navOpts, navigator.WithSettleDelay(tc.Settle))
	}

	for _, opt := range opts {
		opt(s)
	}

	if err := s.buildLoader(); err != nil {
		return nil, err
	}

	s.cache = assets.NewCache(s.loader)
	s.graph = scenes.NewGraph()
	s.nav = navigator.New(s.graph, s.cache, s.navOpts...)
	return s, nil
}

func (s *Session) buildLoader() error {
	content := s.cfg.Content

	if content.Dir != "" {
		dir, err := assets.NewDirLoader(content.Dir)
		if err != nil {
			return fmt.Errorf("content dir: %w", err)
		}
		s.dir = dir
	}

	if s.loader == nil {
		if content.Backend != config.BackendDir && content.Backend != "" {
			return fmt.Errorf("%w: %s", ErrNoLoader, content.Backend)
		}
		if s.dir == nil {
			return fmt.Errorf("%w: no content dir", ErrNoLoader)
		}
		s.loader = s.dir
	}

	if content.FallbackDir != "" {
		fb, err := assets.NewDirLoader(content.FallbackDir)
		if err != nil {
			return fmt.Errorf("fallback dir: %w", err)
		}
		s.loader = assets.Fallback{Primary: s.loader, Secondary: fb}
	}
	return nil
}

// Start preloads the configured databases, loads the scene graph and enters
// the start scene. Load failures are logged and leave the session running;
// only a cancelled ctx is returned as an error.
func (s *Session) Start(ctx context.Context) error {
	s.startedAt = time.Now()
	events.Emit("info", "session.started", "", map[string]interface{}{
		"session_id": s.cfg.Session.ID,
		"backend":    s.cfg.Content.Backend,
	})

	s.preload(ctx)
	if err := ctx.Err(); err != nil {
		return err
	}

	if err := s.graph.Load(ctx, s.cache, s.cfg.Content.AdventureDatabase); err != nil {
		return ctx.Err()
	}

	if start := s.startScene(); start != "" {
		_ = s.nav.EnterScene(ctx, start)
	}
	return nil
}

func (s *Session) preload(ctx context.Context) {
	addrs := s.cfg.Content.Preload
	if len(addrs) == 0 {
		return
	}

	var failed atomic.Int32
	var g errgroup.Group
	for _, addr := range addrs {
		addr := addr
		g.Go(func() error {
			if _, err := s.cache.Acquire(ctx, addr); err != nil {
				failed.Add(1)
			}
			return nil
		})
	}
	_ = g.Wait()

	events.Emit("info", "session.preload", "", map[string]interface{}{
		"requested": len(addrs),
		"failed":    int(failed.Load()),
	})
}

// Watch evicts changed content files from the cache until ctx is done.
// A change to the adventure database reloads the scene graph; if no scene
// was entered yet, the start scene is entered after a successful reload.
// It returns immediately when there is no content directory.
func (s *Session) Watch(ctx context.Context) error {
	if s.dir == nil {
		return nil
	}
	return assets.Watch(ctx, s.dir, s.cache, func(address string) {
		if address == s.cfg.Content.AdventureDatabase {
			s.reloadGraph(ctx)
		}
	})
}

// reloadGraph reloads the adventure database. A failed reload keeps the
// previously loaded scenes.
func (s *Session) reloadGraph(ctx context.Context) {
	if err := s.graph.Load(ctx, s.cache, s.cfg.Content.AdventureDatabase); err != nil {
		return
	}
	if s.nav.CurrentScene() != nil {
		return
	}
	if start := s.startScene(); start != "" {
		_ = s.nav.EnterScene(ctx, start)
	}
}

func (s *Session) startScene() string {
	if s.cfg.Session.StartScene != "" {
		return s.cfg.Session.StartScene
	}
	return s.graph.StartSceneID()
}

// Teardown releases every cached asset. Only the first call has an effect.
func (s *Session) Teardown() {
	s.teardownOnce.Do(func() {
		s.cache.Teardown()
		s.tornDown.Store(true)
		events.Emit("info", "session.teardown", "", map[string]interface{}{
			"session_id": s.cfg.Session.ID,
		})
	})
}

// TornDown reports whether Teardown has run.
func (s *Session) TornDown() bool {
	return s.tornDown.Load()
}

func (s *Session) ID() string                      { return s.cfg.Session.ID }
func (s *Session) Config() *config.SessionConfig   { return s.cfg }
func (s *Session) Cache() *assets.Cache            { return s.cache }
func (s *Session) Graph() *scenes.Graph            { return s.graph }
func (s *Session) Navigator() *navigator.Navigator { return s.nav }
func (s *Session) StartedAt() time.Time            { return s.startedAt }
