package logging

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func reset() {
	CloseAll()
	optsMu.Lock()
	opts = Options{}
	enabled = false
	logLevel = LevelInfo
	optsMu.Unlock()
}

func TestDisabledByDefault(t *testing.T) {
	reset()

	if IsCategoryEnabled(CategoryStore) {
		t.Error("store category should be disabled before Initialize")
	}
	// Must not panic or create files.
	Store("this goes nowhere")
}

func TestInitializeAndWrite(t *testing.T) {
	reset()
	dir := t.TempDir()

	if err := Initialize(Options{Dir: dir, Level: "debug"}); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}
	defer reset()

	Store("hello %s", "world")
	StoreDebug("debug line")
	CloseAll()

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	var storeLog string
	for _, e := range entries {
		if strings.Contains(e.Name(), "store") {
			storeLog = filepath.Join(dir, e.Name())
		}
	}
	if storeLog == "" {
		t.Fatalf("no store log file created in %s", dir)
	}
	data, err := os.ReadFile(storeLog)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if !strings.Contains(string(data), "hello world") {
		t.Errorf("store log missing info line: %q", data)
	}
	if !strings.Contains(string(data), "debug line") {
		t.Errorf("store log missing debug line at debug level: %q", data)
	}
}

func TestLevelFiltering(t *testing.T) {
	reset()
	dir := t.TempDir()

	if err := Initialize(Options{Dir: dir, Level: "warn"}); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}
	defer reset()

	l := Get(CategoryQueue)
	l.Info("suppressed")
	l.Warn("kept")
	CloseAll()

	entries, _ := os.ReadDir(dir)
	for _, e := range entries {
		data, _ := os.ReadFile(filepath.Join(dir, e.Name()))
		if strings.Contains(string(data), "suppressed") {
			t.Errorf("info line written at warn level")
		}
		if strings.Contains(e.Name(), "queue") && !strings.Contains(string(data), "kept") {
			t.Errorf("warn line missing")
		}
	}
}

func TestCategoryFilter(t *testing.T) {
	reset()
	dir := t.TempDir()

	err := Initialize(Options{
		Dir:        dir,
		Level:      "info",
		Categories: map[string]bool{"serial": false},
	})
	if err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}
	defer reset()

	if IsCategoryEnabled(CategorySerial) {
		t.Error("serial category should be disabled by filter")
	}
	if !IsCategoryEnabled(CategoryStore) {
		t.Error("unlisted categories should default to enabled")
	}
}
