package postgres

import (
	"strings"
	"testing"
)

func TestConfigFromEnvDefaults(t *testing.T) {
	for _, key := range []string{"PGHOST", "PGPORT", "PGUSER", "PGDATABASE", "PGPASSWORD", "PGPASSWORD_FILE", "PGSSLMODE"} {
		t.Setenv(key, "")
	}

	cfg, err := ConfigFromEnv()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Host != "127.0.0.1" || cfg.Port != "5432" || cfg.SSLMode != "disable" {
		t.Errorf("unexpected defaults: %+v", cfg)
	}
	if strings.Contains(cfg.ConnString(), "password=") {
		t.Errorf("conn string must omit empty password: %s", cfg.ConnString())
	}
}

func TestConfigFromEnvOverrides(t *testing.T) {
	t.Setenv("PGHOST", "db.internal")
	t.Setenv("PGUSER", "game")
	t.Setenv("PGPASSWORD", "hunter2")
	t.Setenv("PGPASSWORD_FILE", "")

	cfg, err := ConfigFromEnv()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	conn := cfg.ConnString()
	for _, want := range []string{"host=db.internal", "user=game", "password=hunter2"} {
		if !strings.Contains(conn, want) {
			t.Errorf("expected %q in %q", want, conn)
		}
	}
}

func TestClampLimit(t *testing.T) {
	if clampLimit(0) != 200 {
		t.Errorf("expected default limit 200")
	}
	if clampLimit(50000) != 10000 {
		t.Errorf("expected limit capped at 10000")
	}
	if clampLimit(10) != 10 {
		t.Errorf("expected limit passed through")
	}
}
