package store

import (
	"testing"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:")
	if err != nil {
		t.Fatalf("Failed to open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestOpenCreatesSchema(t *testing.T) {
	s := newTestStore(t)

	stats, err := s.Stats()
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}

	requiredTables := []string{
		"purchase_orders", "po_lines", "planning",
		"bol_entries", "bol_lines", "serial_assignments",
		"edit_log", "work_queue",
	}
	for _, table := range requiredTables {
		if _, ok := stats[table]; !ok {
			t.Errorf("Stats missing table: %s", table)
		}
	}
}

func TestMigrationsIdempotent(t *testing.T) {
	s := newTestStore(t)

	// A second pass over an already-migrated schema must be a no-op.
	if err := RunMigrations(s.DB()); err != nil {
		t.Fatalf("RunMigrations on fresh schema failed: %v", err)
	}

	if !tableExists(s.DB(), "purchase_orders") {
		t.Error("tableExists false for existing table")
	}
	if tableExists(s.DB(), "no_such_table") {
		t.Error("tableExists true for missing table")
	}
	if !columnExists(s.DB(), "purchase_orders", "notes") {
		t.Error("columnExists false for existing column")
	}
	if columnExists(s.DB(), "purchase_orders", "no_such_column") {
		t.Error("columnExists true for missing column")
	}
}
