// Package store implements the SQLite-backed tabular store for the order
// status workflow: purchase orders, PO lines, planning rows, bills of
// lading, serial assignments, the edit log, and the persisted work queue.
//
// All records are keyed by business keys (PO number, PO|SKU, BOL number,
// serial number) and writes are last-write-wins upserts. Every mutating
// path appends field-level rows to the edit log inside the same
// transaction, so the log is the only history the system keeps.
package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/DoubleArturo/hsus-order-status/internal/logging"

	_ "github.com/mattn/go-sqlite3"
)

// Store wraps the SQLite database holding all workflow tables.
type Store struct {
	db     *sql.DB
	mu     sync.RWMutex
	dbPath string
}

// Open initializes the SQLite database at the given path. Use ":memory:"
// for an ephemeral store in tests.
func Open(path string) (*Store, error) {
	timer := logging.StartTimer(logging.CategoryStore, "Open")
	defer timer.Stop()

	logging.Store("Opening store at path: %s", path)

	if path != ":memory:" {
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0755); err != nil {
			logging.Get(logging.CategoryStore).Error("Failed to create directory %s: %v", dir, err)
			return nil, fmt.Errorf("failed to create directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		logging.Get(logging.CategoryStore).Error("Failed to open database at %s: %v", path, err)
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		logging.StoreDebug("Failed to set sqlite busy_timeout: %v", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		logging.StoreDebug("Failed to set sqlite journal_mode=WAL: %v", err)
	}
	if _, err := db.Exec("PRAGMA synchronous = NORMAL"); err != nil {
		logging.StoreDebug("Failed to set sqlite synchronous=NORMAL: %v", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		logging.StoreDebug("Failed to enable foreign keys: %v", err)
	}

	s := &Store{db: db, dbPath: path}
	if err := s.initialize(); err != nil {
		logging.Get(logging.CategoryStore).Error("Failed to initialize schema: %v", err)
		db.Close()
		return nil, err
	}

	logging.Store("Store initialization complete")
	return s, nil
}

// initialize creates the required tables.
func (s *Store) initialize() error {
	poTable := `
	CREATE TABLE IF NOT EXISTS purchase_orders (
		po_number TEXT PRIMARY KEY,
		vendor TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL DEFAULT 'open',
		order_date DATETIME,
		notes TEXT NOT NULL DEFAULT '',
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_po_status ON purchase_orders(status);
	CREATE INDEX IF NOT EXISTS idx_po_vendor ON purchase_orders(vendor);
	`

	poLinesTable := `
	CREATE TABLE IF NOT EXISTS po_lines (
		po_number TEXT NOT NULL,
		sku TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		qty_ordered TEXT NOT NULL DEFAULT '0',
		unit_cost TEXT NOT NULL DEFAULT '0',
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		PRIMARY KEY(po_number, sku)
	);
	CREATE INDEX IF NOT EXISTS idx_po_lines_sku ON po_lines(sku);
	`

	planningTable := `
	CREATE TABLE IF NOT EXISTS planning (
		po_number TEXT NOT NULL,
		sku TEXT NOT NULL,
		qty_planned TEXT NOT NULL DEFAULT '0',
		ship_week TEXT NOT NULL DEFAULT '',
		warehouse TEXT NOT NULL DEFAULT '',
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		PRIMARY KEY(po_number, sku)
	);
	CREATE INDEX IF NOT EXISTS idx_planning_week ON planning(ship_week);
	`

	bolTable := `
	CREATE TABLE IF NOT EXISTS bol_entries (
		bol_number TEXT PRIMARY KEY,
		carrier TEXT NOT NULL DEFAULT '',
		ship_date DATETIME,
		status TEXT NOT NULL DEFAULT 'open',
		notes TEXT NOT NULL DEFAULT '',
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_bol_status ON bol_entries(status);
	`

	bolLinesTable := `
	CREATE TABLE IF NOT EXISTS bol_lines (
		bol_number TEXT NOT NULL,
		po_number TEXT NOT NULL,
		sku TEXT NOT NULL,
		qty_shipped TEXT NOT NULL DEFAULT '0',
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		PRIMARY KEY(bol_number, po_number, sku)
	);
	CREATE INDEX IF NOT EXISTS idx_bol_lines_line ON bol_lines(po_number, sku);
	`

	serialsTable := `
	CREATE TABLE IF NOT EXISTS serial_assignments (
		serial TEXT PRIMARY KEY,
		bol_number TEXT NOT NULL,
		po_number TEXT NOT NULL DEFAULT '',
		sku TEXT NOT NULL DEFAULT '',
		assigned_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_serials_bol ON serial_assignments(bol_number);
	CREATE INDEX IF NOT EXISTS idx_serials_line ON serial_assignments(po_number, sku);
	`

	editLogTable := `
	CREATE TABLE IF NOT EXISTS edit_log (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		entity TEXT NOT NULL,
		key TEXT NOT NULL,
		field TEXT NOT NULL DEFAULT '',
		old_value TEXT NOT NULL DEFAULT '',
		new_value TEXT NOT NULL DEFAULT '',
		actor TEXT NOT NULL DEFAULT '',
		edited_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_edit_entity_key ON edit_log(entity, key);
	CREATE INDEX IF NOT EXISTS idx_edit_time ON edit_log(edited_at);
	`

	queueTable := `
	CREATE TABLE IF NOT EXISTS work_queue (
		id TEXT PRIMARY KEY,
		kind TEXT NOT NULL,
		payload TEXT NOT NULL DEFAULT '{}',
		status TEXT NOT NULL DEFAULT 'pending',
		attempts INTEGER NOT NULL DEFAULT 0,
		not_before DATETIME,
		leased_until DATETIME,
		last_error TEXT NOT NULL DEFAULT '',
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_queue_status ON work_queue(status, not_before);
	CREATE INDEX IF NOT EXISTS idx_queue_kind ON work_queue(kind);
	`

	for _, table := range []string{
		poTable,
		poLinesTable,
		planningTable,
		bolTable,
		bolLinesTable,
		serialsTable,
		editLogTable,
		queueTable,
	} {
		if _, err := s.db.Exec(table); err != nil {
			return fmt.Errorf("failed to create table: %w", err)
		}
	}

	if err := RunMigrations(s.db); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	logging.Store("Closing store database connection")
	return s.db.Close()
}

// DB returns the underlying SQL database connection.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Stats returns per-table row counts.
func (s *Store) Stats() (map[string]int64, error) {
	timer := logging.StartTimer(logging.CategoryStore, "Stats")
	defer timer.Stop()

	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := make(map[string]int64)
	tables := []string{
		"purchase_orders", "po_lines", "planning",
		"bol_entries", "bol_lines", "serial_assignments",
		"edit_log", "work_queue",
	}
	for _, table := range tables {
		var count int64
		err := s.db.QueryRow(fmt.Sprintf("SELECT COUNT(*) FROM %s", table)).Scan(&count)
		if err != nil {
			logging.StoreDebug("Table %s count failed: %v", table, err)
			continue
		}
		stats[table] = count
	}
	return stats, nil
}
