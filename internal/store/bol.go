package store

import (
	"database/sql"
	"fmt"

	"github.com/DoubleArturo/hsus-order-status/internal/logging"
	"github.com/DoubleArturo/hsus-order-status/internal/types"

	"github.com/shopspring/decimal"
)

// UpsertBOL inserts or updates a bill of lading keyed by BOL number.
// Status transitions go through VoidBOL, not here: an upsert never
// resurrects or voids a BOL.
func (s *Store) UpsertBOL(bol types.BOLEntry, actor string) error {
	timer := logging.StartTimer(logging.CategoryStore, "UpsertBOL")
	defer timer.Stop()

	if bol.BOLNumber == "" {
		return fmt.Errorf("bol number required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to start transaction: %w", err)
	}
	defer tx.Rollback()

	var changes []fieldChange
	var prevCarrier, prevStatus, prevNotes string
	var prevShipDate sql.NullTime
	err = tx.QueryRow(
		"SELECT carrier, ship_date, status, notes FROM bol_entries WHERE bol_number = ?",
		string(bol.BOLNumber),
	).Scan(&prevCarrier, &prevShipDate, &prevStatus, &prevNotes)
	status := types.BOLOpen
	switch {
	case err == sql.ErrNoRows:
		changes = append(changes, fieldChange{New: createdMarker})
	case err != nil:
		return fmt.Errorf("failed to read existing bol: %w", err)
	default:
		if types.BOLStatus(prevStatus) == types.BOLVoid {
			return fmt.Errorf("bol %s is void; create a new BOL instead of editing it", bol.BOLNumber)
		}
		status = types.BOLStatus(prevStatus)
		changes = diffField(changes, "carrier", prevCarrier, bol.Carrier)
		prevDateStr := ""
		if prevShipDate.Valid {
			prevDateStr = prevShipDate.Time.Format(dateLayout)
		}
		newDateStr := ""
		if !bol.ShipDate.IsZero() {
			newDateStr = bol.ShipDate.Format(dateLayout)
		}
		changes = diffField(changes, "ship_date", prevDateStr, newDateStr)
		changes = diffField(changes, "notes", prevNotes, bol.Notes)
		if len(changes) == 0 {
			return nil
		}
	}

	var shipDate interface{}
	if !bol.ShipDate.IsZero() {
		shipDate = bol.ShipDate
	}
	_, err = tx.Exec(
		`INSERT INTO bol_entries (bol_number, carrier, ship_date, status, notes, updated_at)
		 VALUES (?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
		 ON CONFLICT(bol_number) DO UPDATE SET
		 carrier = excluded.carrier,
		 ship_date = excluded.ship_date,
		 notes = excluded.notes,
		 updated_at = CURRENT_TIMESTAMP`,
		string(bol.BOLNumber), bol.Carrier, shipDate, string(status), bol.Notes,
	)
	if err != nil {
		logging.Get(logging.CategoryStore).Error("Failed to upsert bol %s: %v", bol.BOLNumber, err)
		return fmt.Errorf("failed to upsert bol: %w", err)
	}

	if err := appendEdits(tx, "bol", string(bol.BOLNumber), actor, changes); err != nil {
		return fmt.Errorf("failed to append edit log: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}

	logging.StoreDebug("Upserted bol %s (%d field changes)", bol.BOLNumber, len(changes))
	return nil
}

// GetBOL returns the bill of lading with the given number.
func (s *Store) GetBOL(bol types.BOLNumber) (types.BOLEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.getBOLLocked(bol)
}

func (s *Store) getBOLLocked(bol types.BOLNumber) (types.BOLEntry, error) {
	var out types.BOLEntry
	var shipDate sql.NullTime
	err := s.db.QueryRow(
		`SELECT bol_number, carrier, ship_date, status, notes, created_at, updated_at
		 FROM bol_entries WHERE bol_number = ?`,
		string(bol),
	).Scan(&out.BOLNumber, &out.Carrier, &shipDate, &out.Status, &out.Notes, &out.CreatedAt, &out.UpdatedAt)
	if err == sql.ErrNoRows {
		return out, fmt.Errorf("bol %s: %w", bol, ErrNotFound)
	}
	if err != nil {
		return out, fmt.Errorf("failed to get bol: %w", err)
	}
	if shipDate.Valid {
		out.ShipDate = shipDate.Time
	}
	return out, nil
}

// ListBOLs returns bills of lading, optionally filtered by status.
func (s *Store) ListBOLs(status types.BOLStatus) ([]types.BOLEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `SELECT bol_number, carrier, ship_date, status, notes, created_at, updated_at
	          FROM bol_entries`
	var args []interface{}
	if status != "" {
		query += " WHERE status = ?"
		args = append(args, string(status))
	}
	query += " ORDER BY bol_number"

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list bols: %w", err)
	}
	defer rows.Close()

	var bols []types.BOLEntry
	for rows.Next() {
		var bol types.BOLEntry
		var shipDate sql.NullTime
		if err := rows.Scan(&bol.BOLNumber, &bol.Carrier, &shipDate, &bol.Status, &bol.Notes, &bol.CreatedAt, &bol.UpdatedAt); err != nil {
			return nil, err
		}
		if shipDate.Valid {
			bol.ShipDate = shipDate.Time
		}
		bols = append(bols, bol)
	}
	return bols, rows.Err()
}

// UpsertBOLLine attaches a shipped quantity of a PO line to a BOL. The
// BOL must exist and be open.
func (s *Store) UpsertBOLLine(line types.BOLLine, actor string) error {
	timer := logging.StartTimer(logging.CategoryStore, "UpsertBOLLine")
	defer timer.Stop()

	if line.BOLNumber == "" || line.PO == "" || line.SKU == "" {
		return fmt.Errorf("bol number, po number, and sku required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	bol, err := s.getBOLLocked(line.BOLNumber)
	if err != nil {
		return err
	}
	if bol.Status == types.BOLVoid {
		return fmt.Errorf("bol %s is void", line.BOLNumber)
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to start transaction: %w", err)
	}
	defer tx.Rollback()

	key := fmt.Sprintf("%s|%s", line.BOLNumber, line.Key())

	var changes []fieldChange
	var prevQty string
	err = tx.QueryRow(
		"SELECT qty_shipped FROM bol_lines WHERE bol_number = ? AND po_number = ? AND sku = ?",
		string(line.BOLNumber), string(line.PO), string(line.SKU),
	).Scan(&prevQty)
	switch {
	case err == sql.ErrNoRows:
		changes = append(changes, fieldChange{New: createdMarker})
	case err != nil:
		return fmt.Errorf("failed to read existing bol line: %w", err)
	default:
		changes = diffField(changes, "qty_shipped", prevQty, line.QtyShipped.String())
		if len(changes) == 0 {
			return nil
		}
	}

	_, err = tx.Exec(
		`INSERT INTO bol_lines (bol_number, po_number, sku, qty_shipped, updated_at)
		 VALUES (?, ?, ?, ?, CURRENT_TIMESTAMP)
		 ON CONFLICT(bol_number, po_number, sku) DO UPDATE SET
		 qty_shipped = excluded.qty_shipped,
		 updated_at = CURRENT_TIMESTAMP`,
		string(line.BOLNumber), string(line.PO), string(line.SKU), line.QtyShipped.String(),
	)
	if err != nil {
		logging.Get(logging.CategoryStore).Error("Failed to upsert bol line %s: %v", key, err)
		return fmt.Errorf("failed to upsert bol line: %w", err)
	}

	if err := appendEdits(tx, "bol_line", key, actor, changes); err != nil {
		return fmt.Errorf("failed to append edit log: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}

	logging.StoreDebug("Upserted bol line %s", key)
	return nil
}

// ListBOLLines returns the lines of a BOL, or all BOL lines when bol is
// empty.
func (s *Store) ListBOLLines(bol types.BOLNumber) ([]types.BOLLine, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `SELECT bol_number, po_number, sku, qty_shipped, created_at, updated_at
	          FROM bol_lines`
	var args []interface{}
	if bol != "" {
		query += " WHERE bol_number = ?"
		args = append(args, string(bol))
	}
	query += " ORDER BY bol_number, po_number, sku"

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list bol lines: %w", err)
	}
	defer rows.Close()

	var lines []types.BOLLine
	for rows.Next() {
		var line types.BOLLine
		var qty string
		if err := rows.Scan(&line.BOLNumber, &line.PO, &line.SKU, &qty, &line.CreatedAt, &line.UpdatedAt); err != nil {
			return nil, err
		}
		if line.QtyShipped, err = decimal.NewFromString(qty); err != nil {
			return nil, fmt.Errorf("bad qty_shipped %q: %w", qty, err)
		}
		lines = append(lines, line)
	}
	return lines, rows.Err()
}

// VoidBOL marks a BOL void and releases every serial bound to it, all in
// one transaction. Released serials go back to the unassigned pool.
func (s *Store) VoidBOL(bol types.BOLNumber, actor string) error {
	timer := logging.StartTimer(logging.CategoryStore, "VoidBOL")
	defer timer.Stop()

	s.mu.Lock()
	defer s.mu.Unlock()

	existing, err := s.getBOLLocked(bol)
	if err != nil {
		return err
	}
	if existing.Status == types.BOLVoid {
		return nil // Already void: idempotent.
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to start transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(
		"UPDATE bol_entries SET status = ?, updated_at = CURRENT_TIMESTAMP WHERE bol_number = ?",
		string(types.BOLVoid), string(bol),
	); err != nil {
		return fmt.Errorf("failed to void bol: %w", err)
	}

	// Collect the serials being released so each gets its own log row.
	rows, err := tx.Query("SELECT serial FROM serial_assignments WHERE bol_number = ?", string(bol))
	if err != nil {
		return fmt.Errorf("failed to list bol serials: %w", err)
	}
	var serials []string
	for rows.Next() {
		var sn string
		if err := rows.Scan(&sn); err != nil {
			rows.Close()
			return err
		}
		serials = append(serials, sn)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	if _, err := tx.Exec("DELETE FROM serial_assignments WHERE bol_number = ?", string(bol)); err != nil {
		return fmt.Errorf("failed to release serials: %w", err)
	}

	edits := []fieldChange{{Field: "status", Old: string(existing.Status), New: string(types.BOLVoid)}}
	if err := appendEdits(tx, "bol", string(bol), actor, edits); err != nil {
		return fmt.Errorf("failed to append edit log: %w", err)
	}
	for _, sn := range serials {
		if err := appendEdits(tx, "serial", sn, actor, []fieldChange{
			{Field: "bol_number", Old: string(bol), New: ""},
		}); err != nil {
			return fmt.Errorf("failed to append edit log: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}

	logging.Store("Voided bol %s and released %d serials", bol, len(serials))
	return nil
}
