package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/epiforge/ccdl/internal/domain"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("port = %d, want 8080", cfg.Server.Port)
	}
	if cfg.Mode() != domain.ModeLenient {
		t.Errorf("mode = %v, want lenient", cfg.Mode())
	}
}

func TestLoad_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ccdl.yaml")
	data := `
server:
  port: 9090
schema:
  path: /etc/ccdl/schema.json
  watch: true
translate:
  mode: strict
storage:
  dbpath: /var/lib/ccdl/runs.db
`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Server.Port != 9090 {
		t.Errorf("port = %d, want 9090", cfg.Server.Port)
	}
	if cfg.Schema.Path != "/etc/ccdl/schema.json" {
		t.Errorf("schema path = %q", cfg.Schema.Path)
	}
	if !cfg.Schema.Watch {
		t.Error("schema watch = false, want true")
	}
	if cfg.Mode() != domain.ModeStrict {
		t.Errorf("mode = %v, want strict", cfg.Mode())
	}
	if cfg.Storage.Dbpath != "/var/lib/ccdl/runs.db" {
		t.Errorf("dbpath = %q", cfg.Storage.Dbpath)
	}
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ccdl.yaml")
	if err := os.WriteFile(path, []byte("server:\n  port: 9090\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("CCDL_SERVER_PORT", "7070")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Server.Port != 7070 {
		t.Errorf("port = %d, want 7070", cfg.Server.Port)
	}
}

func TestLoad_RejectsUnknownMode(t *testing.T) {
	t.Setenv("CCDL_TRANSLATE_MODE", "pedantic")
	if _, err := Load(""); err == nil {
		t.Error("Load() error = nil, want non-nil for unknown mode")
	}
}
