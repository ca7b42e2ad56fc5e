package scenes

import (
	"context"
	"sync"

	"github.com/AaronLay10/AdventureEngine/internal/assets"
	"github.com/AaronLay10/AdventureEngine/internal/events"
)

// Acquirer is the slice of the asset cache the graph needs.
type Acquirer interface {
	Acquire(ctx context.Context, address string) (*assets.Asset, error)
}

// Graph is a read-only lookup over the loaded adventure database.
// Until Load succeeds the graph is not initialized and every lookup misses.
type Graph struct {
	mu      sync.RWMutex
	address string
	db      *Database
	index   map[string]*Scene
}

// NewGraph returns an uninitialized graph.
func NewGraph() *Graph {
	return &Graph{}
}

// NewGraphFromDatabase returns a graph initialized from an already decoded database.
func NewGraphFromDatabase(db *Database) *Graph {
	g := &Graph{}
	g.set("", db)
	return g
}

// Load acquires the database at address and indexes it. Failures leave the
// graph not initialized; they are logged and returned, never fatal.
func (g *Graph) Load(ctx context.Context, src Acquirer, address string) error {
	a, err := src.Acquire(ctx, address)
	if err != nil {
		g.notInitialized(address, err)
		return err
	}

	db, err := ParseDatabase(a.Data)
	if err != nil {
		g.notInitialized(address, err)
		return err
	}

	g.set(address, db)
	events.Emit("info", "graph.loaded", "", map[string]interface{}{
		"address": address,
		"scenes":  len(db.Scenes),
	})
	return nil
}

func (g *Graph) notInitialized(address string, err error) {
	events.Emit("warning", "graph.not_initialized", err.Error(), map[string]interface{}{
		"address": address,
	})
}

func (g *Graph) set(address string, db *Database) {
	index := make(map[string]*Scene, len(db.Scenes))
	for i := range db.Scenes {
		index[db.Scenes[i].ID] = &db.Scenes[i]
	}

	g.mu.Lock()
	g.address = address
	g.db = db
	g.index = index
	g.mu.Unlock()
}

// Ready reports whether a database has been loaded.
func (g *Graph) Ready() bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.db != nil
}

// GetScene returns the scene with the given id.
func (g *Graph) GetScene(sceneID string) (*Scene, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	s, ok := g.index[sceneID]
	return s, ok
}

// StartSceneID returns the first scene in the database, or "" if none.
func (g *Graph) StartSceneID() string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	if g.db == nil || len(g.db.Scenes) == 0 {
		return ""
	}
	return g.db.Scenes[0].ID
}

// SceneIDs returns scene ids in database order.
func (g *Graph) SceneIDs() []string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	if g.db == nil {
		return nil
	}
	ids := make([]string, 0, len(g.db.Scenes))
	for _, s := range g.db.Scenes {
		ids = append(ids, s.ID)
	}
	return ids
}

// Address returns the cache address the database was loaded from.
func (g *Graph) Address() string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.address
}
