package main

import (
	"context"
	"fmt"
	"io/fs"
	"log"
	"os"
	"path/filepath"

	"github.com/urfave/cli/v3"

	"github.com/AaronLay10/AdventureEngine/internal/assets"
	"github.com/AaronLay10/AdventureEngine/internal/config"
	"github.com/AaronLay10/AdventureEngine/internal/storage/postgres"
	"github.com/AaronLay10/AdventureEngine/internal/storage/sqlite"
)

type putFunc func(ctx context.Context, address string, body []byte) error

// importContent copies every <address>.json under a directory into the
// database backend named by the session config.
func importContent(ctx context.Context, cmd *cli.Command) error {
	dir := cmd.Args().First()
	if dir == "" {
		return fmt.Errorf("usage: adventure import <content-dir>")
	}

	cfg, err := config.LoadSessionConfig(cmd.String("config"))
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	var put putFunc
	switch cfg.Content.Backend {
	case config.BackendSQLite:
		store, err := sqlite.Open(cfg.Content.SQLitePath)
		if err != nil {
			return err
		}
		defer store.Close()
		put = store.Put
	case config.BackendPostgres:
		pgCfg, err := postgres.ConfigFromEnv()
		if err != nil {
			return err
		}
		pg, err := postgres.New(pgCfg, cfg.Session.ID)
		if err != nil {
			return err
		}
		defer pg.Close()
		put = pg.PutContent
	default:
		return fmt.Errorf("content backend %q reads the directory directly; nothing to import", cfg.Content.Backend)
	}

	loader, err := assets.NewDirLoader(dir)
	if err != nil {
		return err
	}

	n := 0
	err = filepath.WalkDir(loader.Root(), func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		address, ok := loader.AddressFor(path)
		if !ok {
			return nil
		}
		body, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		if err := put(ctx, address, body); err != nil {
			return fmt.Errorf("import %s: %w", address, err)
		}
		n++
		return nil
	})
	if err != nil {
		return err
	}

	log.Printf("imported %d content files into %s", n, cfg.Content.Backend)
	return nil
}
