package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

const validConfig = `
version: 1
session:
  id: demo
  start_scene: ${TEST_START_SCENE}
content:
  dir: ./content
  preload: [CharacterDatabase, ItemDatabase]
transition:
  fade_out: 250ms
  settle: 50ms
network:
  http_port: 9090
`

func TestParseSessionConfigDefaults(t *testing.T) {
	t.Setenv("TEST_START_SCENE", "village_square")

	cfg, err := ParseSessionConfig([]byte(validConfig))
	if err != nil {
		t.Fatalf("ParseSessionConfig: %v", err)
	}

	if cfg.Session.StartScene != "village_square" {
		t.Errorf("start_scene = %q, want env expansion", cfg.Session.StartScene)
	}
	if cfg.Content.Backend != BackendDir {
		t.Errorf("backend = %q, want %q", cfg.Content.Backend, BackendDir)
	}
	if cfg.Content.AdventureDatabase != DefaultAdventureDatabase {
		t.Errorf("adventure_database = %q", cfg.Content.AdventureDatabase)
	}
	if cfg.Transition.Mode != TransitionTimed {
		t.Errorf("transition mode = %q", cfg.Transition.Mode)
	}
	if cfg.Transition.FadeOut != 250*time.Millisecond || cfg.Transition.Settle != 50*time.Millisecond {
		t.Errorf("transition = %+v", cfg.Transition)
	}
	if cfg.HTTPPort() != 9090 {
		t.Errorf("HTTPPort = %d", cfg.HTTPPort())
	}
	if len(cfg.Content.Preload) != 2 {
		t.Errorf("preload = %v", cfg.Content.Preload)
	}
}

func TestHTTPPortDefault(t *testing.T) {
	cfg := &SessionConfig{}
	if cfg.HTTPPort() != 8080 {
		t.Errorf("HTTPPort = %d, want 8080", cfg.HTTPPort())
	}
}

func TestSessionConfigValidation(t *testing.T) {
	tests := []struct {
		name    string
		doc     string
		wantErr string
	}{
		{
			name:    "bad version",
			doc:     "version: 2\nsession: {id: x}\ncontent: {dir: c}\n",
			wantErr: "unsupported session.yaml version",
		},
		{
			name:    "missing id",
			doc:     "version: 1\ncontent: {dir: c}\n",
			wantErr: "session.id is required",
		},
		{
			name:    "unknown backend",
			doc:     "version: 1\nsession: {id: x}\ncontent: {backend: s3}\n",
			wantErr: "content",
		},
		{
			name:    "sqlite without path",
			doc:     "version: 1\nsession: {id: x}\ncontent: {backend: sqlite}\n",
			wantErr: "content",
		},
		{
			name:    "dir backend without dir",
			doc:     "version: 1\nsession: {id: x}\n",
			wantErr: "content",
		},
		{
			name:    "empty preload entry",
			doc:     "version: 1\nsession: {id: x}\ncontent: {dir: c, preload: [\"\"]}\n",
			wantErr: "content",
		},
		{
			name:    "mqtt transition without mqtt",
			doc:     "version: 1\nsession: {id: x}\ncontent: {dir: c}\ntransition: {mode: mqtt}\n",
			wantErr: "network.mqtt is disabled",
		},
		{
			name:    "negative settle",
			doc:     "version: 1\nsession: {id: x}\ncontent: {dir: c}\ntransition: {settle: -1s}\n",
			wantErr: "transition",
		},
		{
			name:    "bad port",
			doc:     "version: 1\nsession: {id: x}\ncontent: {dir: c}\nnetwork: {http_port: 70000}\n",
			wantErr: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseSessionConfig([]byte(tt.doc))
			if err == nil {
				t.Fatal("expected validation error")
			}
			if tt.wantErr != "" && !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("err = %v, want it to mention %q", err, tt.wantErr)
			}
		})
	}
}

func TestPostgresBackendNeedsNoPath(t *testing.T) {
	doc := "version: 1\nsession: {id: x}\ncontent: {backend: postgres}\nevents: {postgres: true}\n"
	cfg, err := ParseSessionConfig([]byte(doc))
	if err != nil {
		t.Fatalf("ParseSessionConfig: %v", err)
	}
	if !cfg.Events.Postgres {
		t.Error("events.postgres not decoded")
	}
}

func TestLoadSessionConfig(t *testing.T) {
	t.Setenv("TEST_START_SCENE", "")
	path := filepath.Join(t.TempDir(), "session.yaml")
	if err := os.WriteFile(path, []byte(validConfig), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadSessionConfig(path)
	if err != nil {
		t.Fatalf("LoadSessionConfig: %v", err)
	}
	if cfg.Session.ID != "demo" || cfg.Session.StartScene != "" {
		t.Errorf("session = %+v", cfg.Session)
	}

	if _, err := LoadSessionConfig(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}
