package main

import (
	"context"
	"log"
	"os"

	_ "github.com/joho/godotenv/autoload"
	"github.com/urfave/cli/v3"

	"github.com/AaronLay10/AdventureEngine/internal/version"
)

func configFlag() *cli.StringFlag {
	return &cli.StringFlag{
		Name:        "config",
		Aliases:     []string{"c"},
		Usage:       "Path to session config file",
		DefaultText: "config/session.yaml",
		Value:       "config/session.yaml",
		Sources:     cli.EnvVars("ADVENTURE_CONFIG_FILE"),
	}
}

func main() {
	cmd := &cli.Command{
		Name:    "adventure",
		Usage:   "Scene navigation and asset orchestration for an adventure session",
		Version: version.Version,
		Action:  serve,
		Flags:   []cli.Flag{configFlag()},
		Commands: []*cli.Command{
			{
				Name:      "validate",
				Usage:     "Check a scene database for commands that would be ignored at runtime",
				ArgsUsage: "<database.json>",
				Action:    validate,
			},
			{
				Name:      "import",
				Usage:     "Copy a content directory into the configured database backend",
				ArgsUsage: "<content-dir>",
				Flags:     []cli.Flag{configFlag()},
				Action:    importContent,
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		log.Printf("adventure: %v", err)
		os.Exit(1)
	}
}
