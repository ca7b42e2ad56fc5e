package navigator

import (
	"strings"
	"testing"

	"github.com/AaronLay10/AdventureEngine/internal/scenes"
)

func TestLint(t *testing.T) {
	db := &scenes.Database{
		Version: 1,
		Scenes: []scenes.Scene{
			{ID: "a", Name: "A", Commands: []scenes.Command{
				{Type: scenes.CommandMove, Parameter: "b"},
				{Type: scenes.CommandMove, Parameter: "nowhere"},
				{Type: scenes.CommandTalk},
				{Type: scenes.CommandShop, Parameter: "Data/Shops/|x"},
				{Type: "craft"},
				{Type: scenes.CommandBattle, Parameter: "goblins"},
			}},
			{ID: "b"},
		},
	}

	issues := Lint(db)
	want := []string{
		`a[1]: move targets unknown scene "nowhere"`,
		"a[2]: talk without story id",
		"a[3]: malformed command parameter",
		`a[4]: unknown command type "craft"`,
		"b: scene has no name",
	}
	if len(issues) != len(want) {
		t.Fatalf("got %d issues, want %d: %v", len(issues), len(want), issues)
	}
	for i, w := range want {
		if !strings.HasPrefix(issues[i].String(), w) {
			t.Errorf("issue %d = %q, want prefix %q", i, issues[i].String(), w)
		}
	}
}

func TestLintTestdata(t *testing.T) {
	db, err := scenes.LoadDatabaseFile("../scenes/testdata/adventure.v1.json")
	if err != nil {
		t.Fatal(err)
	}
	// forest_edge carries a deliberately unknown "Craft" command.
	issues := Lint(db)
	if len(issues) != 1 || issues[0].SceneID != "forest_edge" {
		t.Errorf("issues = %v", issues)
	}
}
