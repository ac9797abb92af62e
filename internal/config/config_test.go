package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"fornax/internal/config"
)

func TestLoadDefaultsExpandPaths(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)

	cfg, resolved, exists, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if resolved == "" {
		t.Fatal("expected resolved path")
	}
	if exists {
		t.Fatal("expected config file to be absent in temp HOME")
	}

	wantSource := filepath.Join(tempHome, ".local", "share", "fornax", "src")
	if cfg.Paths.SourceDir != wantSource {
		t.Fatalf("unexpected source dir: got %q want %q", cfg.Paths.SourceDir, wantSource)
	}
	if cfg.Paths.APIBind != "127.0.0.1:8003" {
		t.Fatalf("unexpected api bind: %q", cfg.Paths.APIBind)
	}
	if cfg.Logging.Format != "console" || cfg.Logging.Level != "info" {
		t.Fatalf("unexpected logging defaults: %+v", cfg.Logging)
	}
	if cfg.Workflow.StagePollInterval != 60 {
		t.Fatalf("unexpected stage poll interval: %d", cfg.Workflow.StagePollInterval)
	}
}

func TestLoadParsesOriginTables(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	body := `
[paths]
source_dir = "` + filepath.Join(dir, "src") + `"
work_dir = "` + filepath.Join(dir, "tmp") + `"
dest_dir = "` + filepath.Join(dir, "dest") + `"
log_dir = "` + filepath.Join(dir, "logs") + `"

[archivematica.aurora]
baseurl = "http://am.example.org/"
username = "fornax"
api_key = "secret"
location_uuid = "loc-1"
processing_config = "default"
version = "1.11.2"
close_completed = true

[archivematica.digitization]
baseurl = "http://am2.example.org"
username = "fornax"
api_key = "secret2"
location_uuid = "loc-2"
version = "1.13"
`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, _, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists {
		t.Fatal("expected config file to exist")
	}

	aurora, err := cfg.Origin("aurora")
	if err != nil {
		t.Fatalf("Origin(aurora): %v", err)
	}
	if aurora.BaseURL != "http://am.example.org" {
		t.Fatalf("expected trailing slash trimmed, got %q", aurora.BaseURL)
	}
	if !aurora.SkipEmptyGrants() {
		t.Fatal("expected 1.11.2 dashboard to skip empty grant rows")
	}
	if !aurora.CloseCompleted {
		t.Fatal("expected close_completed to be parsed")
	}

	digi, err := cfg.Origin("digitization")
	if err != nil {
		t.Fatalf("Origin(digitization): %v", err)
	}
	if digi.SkipEmptyGrants() {
		t.Fatal("expected 1.13 dashboard to keep empty grant rows")
	}

	if _, err := cfg.Origin("unknown"); err == nil {
		t.Fatal("expected error for unknown origin")
	}
}

func TestValidateRejectsIncompleteOrigin(t *testing.T) {
	cfg := config.Default()
	cfg.Archivematica["broken"] = config.Archivematica{BaseURL: "http://am.example.org"}
	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected validation error")
	}
	if !strings.Contains(err.Error(), "archivematica.broken") {
		t.Fatalf("expected origin named in error, got %v", err)
	}
}

func TestValidateRejectsBadCleanupURL(t *testing.T) {
	cfg := config.Default()
	cfg.Cleanup.URL = "ftp://cleanup.example.org"
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected validation error for non-http cleanup url")
	}
}
