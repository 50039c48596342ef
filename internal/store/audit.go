package store

import (
	"database/sql"
	"time"

	"github.com/DoubleArturo/hsus-order-status/internal/logging"
	"github.com/DoubleArturo/hsus-order-status/internal/types"
)

// fieldChange is one changed field recorded by an upsert.
type fieldChange struct {
	Field string
	Old   string
	New   string
}

// createdMarker is the edit-log row written when a record first appears.
// Field is empty and NewValue carries the marker.
const createdMarker = "created"

// appendEdits writes edit-log rows inside the caller's transaction. No-op
// writes (empty changes slice) produce no rows.
func appendEdits(tx *sql.Tx, entity, key, actor string, changes []fieldChange) error {
	for _, c := range changes {
		_, err := tx.Exec(
			`INSERT INTO edit_log (entity, key, field, old_value, new_value, actor)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			entity, key, c.Field, c.Old, c.New, actor,
		)
		if err != nil {
			return err
		}
	}
	return nil
}

// diffField appends a change when old != new.
func diffField(changes []fieldChange, field, oldVal, newVal string) []fieldChange {
	if oldVal == newVal {
		return changes
	}
	return append(changes, fieldChange{Field: field, Old: oldVal, New: newVal})
}

// EditFilter narrows an edit-history query. Zero values mean "no filter".
type EditFilter struct {
	Entity string
	Key    string
	Since  time.Time
	Limit  int
}

// ListEdits returns edit-history rows, newest first.
func (s *Store) ListEdits(f EditFilter) ([]types.EditEntry, error) {
	timer := logging.StartTimer(logging.CategoryAudit, "ListEdits")
	defer timer.Stop()

	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `SELECT id, entity, key, field, old_value, new_value, actor, edited_at
	          FROM edit_log WHERE 1=1`
	var args []interface{}
	if f.Entity != "" {
		query += " AND entity = ?"
		args = append(args, f.Entity)
	}
	if f.Key != "" {
		query += " AND key = ?"
		args = append(args, f.Key)
	}
	if !f.Since.IsZero() {
		query += " AND edited_at >= ?"
		args = append(args, f.Since)
	}
	query += " ORDER BY id DESC"
	if f.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, f.Limit)
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		logging.Get(logging.CategoryAudit).Error("Failed to query edit log: %v", err)
		return nil, err
	}
	defer rows.Close()

	var entries []types.EditEntry
	for rows.Next() {
		var e types.EditEntry
		if err := rows.Scan(&e.ID, &e.Entity, &e.Key, &e.Field, &e.OldValue, &e.NewValue, &e.Actor, &e.EditedAt); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// PurgeEdits deletes edit-log rows older than the cutoff. Returns the
// number of rows removed.
func (s *Store) PurgeEdits(olderThan time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.Exec("DELETE FROM edit_log WHERE edited_at < ?", olderThan)
	if err != nil {
		return 0, err
	}
	n, _ := res.RowsAffected()
	if n > 0 {
		logging.Audit("Purged %d edit-log rows older than %s", n, olderThan.Format(time.RFC3339))
	}
	return n, nil
}
