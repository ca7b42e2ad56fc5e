package scenes

import (
	"context"
	"errors"
	"io"
	"os"
	"testing"

	"github.com/AaronLay10/AdventureEngine/internal/assets"
	"github.com/AaronLay10/AdventureEngine/internal/events"
)

func TestMain(m *testing.M) {
	events.SetOutput(io.Discard)
	os.Exit(m.Run())
}

type staticAcquirer struct {
	data  map[string][]byte
	calls int
}

func (s *staticAcquirer) Acquire(ctx context.Context, address string) (*assets.Asset, error) {
	s.calls++
	d, ok := s.data[address]
	if !ok {
		return nil, assets.ErrLoadFailed
	}
	return &assets.Asset{Address: address, Data: d}, nil
}

func fixture(t *testing.T) []byte {
	t.Helper()
	b, err := os.ReadFile("testdata/adventure.v1.json")
	if err != nil {
		t.Fatalf("failed to read fixture: %v", err)
	}
	return b
}

func TestLoadDatabaseFile(t *testing.T) {
	db, err := LoadDatabaseFile("testdata/adventure.v1.json")
	if err != nil {
		t.Fatalf("failed to load database: %v", err)
	}

	if db.Version != 1 {
		t.Errorf("expected version 1, got %d", db.Version)
	}
	if len(db.Scenes) != 3 {
		t.Fatalf("expected 3 scenes, got %d", len(db.Scenes))
	}

	bs := db.Scenes[1]
	if bs.AutoTriggerStoryID != "story_blacksmith_greeting" {
		t.Errorf("expected auto trigger story, got %q", bs.AutoTriggerStoryID)
	}
	if bs.Commands[0].Type != CommandShop {
		t.Errorf("expected command type to normalize to shop, got %q", bs.Commands[0].Type)
	}
	if db.Scenes[2].Commands[1].Type != CommandType("craft") {
		t.Errorf("expected unknown command type to be preserved, got %q", db.Scenes[2].Commands[1].Type)
	}
}

func TestParseDatabaseRejectsBadInput(t *testing.T) {
	if _, err := ParseDatabase([]byte(`{"version":2,"scenes":[]}`)); !errors.Is(err, ErrUnsupportedVersion) {
		t.Errorf("expected ErrUnsupportedVersion, got %v", err)
	}
	if _, err := ParseDatabase([]byte(`not json`)); err == nil {
		t.Error("expected error for invalid JSON")
	}
	if _, err := ParseDatabase([]byte(`{"version":1,"scenes":[{"id":""}]}`)); err == nil {
		t.Error("expected error for missing scene id")
	}
	if _, err := ParseDatabase([]byte(`{"version":1,"scenes":[{"id":"a"},{"id":"a"}]}`)); err == nil {
		t.Error("expected error for duplicate scene id")
	}
}

func TestGraphLoad(t *testing.T) {
	src := &staticAcquirer{data: map[string][]byte{"AdventureDatabase": fixture(t)}}
	g := NewGraph()

	if g.Ready() {
		t.Fatal("new graph must not be ready")
	}
	if err := g.Load(context.Background(), src, "AdventureDatabase"); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if src.calls != 1 {
		t.Errorf("expected exactly one Acquire, got %d", src.calls)
	}
	if !g.Ready() {
		t.Fatal("graph should be ready after load")
	}

	s, ok := g.GetScene("blacksmith")
	if !ok || s.Name != "Blacksmith" {
		t.Errorf("expected blacksmith scene, got %+v (ok=%v)", s, ok)
	}
	if _, ok := g.GetScene("missing"); ok {
		t.Error("unknown scene should miss")
	}
	if g.StartSceneID() != "village_square" {
		t.Errorf("expected village_square as start scene, got %q", g.StartSceneID())
	}
	if ids := g.SceneIDs(); len(ids) != 3 || ids[2] != "forest_edge" {
		t.Errorf("unexpected scene ids: %v", ids)
	}
	if g.Address() != "AdventureDatabase" {
		t.Errorf("unexpected address %q", g.Address())
	}
}

func TestGraphLoadFailureLeavesGraphUninitialized(t *testing.T) {
	events.Clear()
	g := NewGraph()

	err := g.Load(context.Background(), &staticAcquirer{}, "AdventureDatabase")
	if !errors.Is(err, assets.ErrLoadFailed) {
		t.Fatalf("expected load failure, got %v", err)
	}
	if g.Ready() {
		t.Error("graph must stay uninitialized after a failed load")
	}
	if _, ok := g.GetScene("village_square"); ok {
		t.Error("lookups must miss while uninitialized")
	}
	if g.StartSceneID() != "" {
		t.Error("expected empty start scene while uninitialized")
	}
	if len(events.Find("graph.not_initialized")) != 1 {
		t.Error("expected graph.not_initialized to be logged")
	}
}

func TestGraphLoadRejectsCorruptDatabase(t *testing.T) {
	src := &staticAcquirer{data: map[string][]byte{"AdventureDatabase": []byte(`{"version":9}`)}}
	g := NewGraph()
	if err := g.Load(context.Background(), src, "AdventureDatabase"); !errors.Is(err, ErrUnsupportedVersion) {
		t.Fatalf("expected ErrUnsupportedVersion, got %v", err)
	}
	if g.Ready() {
		t.Error("graph must stay uninitialized")
	}
}
