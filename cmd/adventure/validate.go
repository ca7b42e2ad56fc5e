package main

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/AaronLay10/AdventureEngine/internal/navigator"
	"github.com/AaronLay10/AdventureEngine/internal/scenes"
)

func validate(ctx context.Context, cmd *cli.Command) error {
	path := cmd.Args().First()
	if path == "" {
		return fmt.Errorf("usage: adventure validate <database.json>")
	}

	db, err := scenes.LoadDatabaseFile(path)
	if err != nil {
		return err
	}

	issues := navigator.Lint(db)
	for _, issue := range issues {
		fmt.Println(issue)
	}
	fmt.Printf("%d scenes, %d issues\n", len(db.Scenes), len(issues))

	if len(issues) > 0 {
		return fmt.Errorf("%s: %d issues", path, len(issues))
	}
	return nil
}
