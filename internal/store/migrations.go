package store

import (
	"database/sql"
	"fmt"

	"github.com/DoubleArturo/hsus-order-status/internal/logging"
)

// Migration defines an additive schema migration.
type Migration struct {
	Table  string
	Column string
	Def    string
}

// pendingMigrations lists schema migrations to apply. These handle
// databases created before a column existed.
var pendingMigrations = []Migration{
	// PO notes column (added with the edit-log rework)
	{"purchase_orders", "notes", "TEXT NOT NULL DEFAULT ''"},
	// Planning warehouse column (added for multi-warehouse planning)
	{"planning", "warehouse", "TEXT NOT NULL DEFAULT ''"},
	// Queue bookkeeping columns
	{"work_queue", "last_error", "TEXT NOT NULL DEFAULT ''"},
	{"work_queue", "leased_until", "DATETIME"},
}

// RunMigrations applies schema migrations for existing databases.
func RunMigrations(db *sql.DB) error {
	timer := logging.StartTimer(logging.CategoryStore, "RunMigrations")
	defer timer.Stop()

	applied := 0
	for _, m := range pendingMigrations {
		if !tableExists(db, m.Table) {
			continue
		}
		if columnExists(db, m.Table, m.Column) {
			continue
		}
		query := fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s %s", m.Table, m.Column, m.Def)
		logging.StoreDebug("Executing migration: %s", query)
		if _, err := db.Exec(query); err != nil {
			// Column may already exist in another form; warn and continue.
			logging.Get(logging.CategoryStore).Warn("Migration failed: %s.%s: %v", m.Table, m.Column, err)
			continue
		}
		applied++
	}
	if applied > 0 {
		logging.Store("Applied %d schema migrations", applied)
	}
	return nil
}

// tableExists checks if a table exists in the database.
func tableExists(db *sql.DB, table string) bool {
	var name string
	err := db.QueryRow(
		"SELECT name FROM sqlite_master WHERE type='table' AND name=?", table,
	).Scan(&name)
	return err == nil
}

// columnExists checks if a column exists on a table.
func columnExists(db *sql.DB, table, column string) bool {
	rows, err := db.Query(fmt.Sprintf("PRAGMA table_info(%s)", table))
	if err != nil {
		return false
	}
	defer rows.Close()

	for rows.Next() {
		var cid int
		var name, ctype string
		var notnull, pk int
		var dflt sql.NullString
		if err := rows.Scan(&cid, &name, &ctype, &notnull, &dflt, &pk); err != nil {
			continue
		}
		if name == column {
			return true
		}
	}
	return false
}
