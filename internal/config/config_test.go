package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Store.DatabasePath != "data/orderstatus.db" {
		t.Errorf("unexpected default db path: %s", cfg.Store.DatabasePath)
	}
	if cfg.Queue.MaxAttempts != 5 {
		t.Errorf("unexpected default max attempts: %d", cfg.Queue.MaxAttempts)
	}
}

func TestLoadYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
store:
  database_path: /tmp/test.db
queue:
  tick_interval: 10s
  max_attempts: 3
intake:
  inbox_dir: drops
  actor: bob
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Store.DatabasePath != "/tmp/test.db" {
		t.Errorf("db path = %s", cfg.Store.DatabasePath)
	}
	if cfg.GetTickInterval() != 10*time.Second {
		t.Errorf("tick interval = %v", cfg.GetTickInterval())
	}
	if cfg.Queue.MaxAttempts != 3 {
		t.Errorf("max attempts = %d", cfg.Queue.MaxAttempts)
	}
	if cfg.Intake.Actor != "bob" {
		t.Errorf("actor = %s", cfg.Intake.Actor)
	}
	// Unset fields keep defaults.
	if cfg.Queue.BatchSize != 25 {
		t.Errorf("batch size = %d", cfg.Queue.BatchSize)
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("ORDERSTATUS_DB", "/env/override.db")
	t.Setenv("ORDERSTATUS_LOG_LEVEL", "debug")

	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Store.DatabasePath != "/env/override.db" {
		t.Errorf("env override ignored: %s", cfg.Store.DatabasePath)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("log level override ignored: %s", cfg.Logging.Level)
	}
}

func TestValidate(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should validate: %v", err)
	}

	cfg.Queue.MaxAttempts = 0
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for zero max_attempts")
	}

	cfg = DefaultConfig()
	cfg.Store.DatabasePath = ""
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for empty database path")
	}
}

func TestDurationFallbacks(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Queue.TickInterval = "garbage"
	if cfg.GetTickInterval() != 30*time.Second {
		t.Errorf("expected fallback tick interval, got %v", cfg.GetTickInterval())
	}
}

func TestSaveRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sub", "config.yaml")

	cfg := DefaultConfig()
	cfg.Intake.InboxDir = "custom-inbox"
	if err := cfg.Save(path); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if loaded.Intake.InboxDir != "custom-inbox" {
		t.Errorf("round trip lost inbox dir: %s", loaded.Intake.InboxDir)
	}
}
