package store

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/DoubleArturo/hsus-order-status/internal/logging"
	"github.com/DoubleArturo/hsus-order-status/internal/types"

	"github.com/shopspring/decimal"
)

// ErrNotFound is returned by lookups when no record matches the key.
var ErrNotFound = errors.New("record not found")

const dateLayout = "2006-01-02"

// UpsertPO inserts or updates a purchase order keyed by PO number.
// Last-write-wins on the full row; changed fields are appended to the
// edit log under the given actor.
func (s *Store) UpsertPO(po types.PurchaseOrder, actor string) error {
	timer := logging.StartTimer(logging.CategoryStore, "UpsertPO")
	defer timer.Stop()

	if po.PONumber == "" {
		return fmt.Errorf("po number required")
	}
	if po.Status == "" {
		po.Status = types.POOpen
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to start transaction: %w", err)
	}
	defer tx.Rollback()

	var changes []fieldChange
	var prev types.PurchaseOrder
	var prevDate sql.NullTime
	err = tx.QueryRow(
		"SELECT vendor, status, order_date, notes FROM purchase_orders WHERE po_number = ?",
		string(po.PONumber),
	).Scan(&prev.Vendor, &prev.Status, &prevDate, &prev.Notes)
	switch {
	case err == sql.ErrNoRows:
		changes = append(changes, fieldChange{New: createdMarker})
	case err != nil:
		return fmt.Errorf("failed to read existing po: %w", err)
	default:
		changes = diffField(changes, "vendor", prev.Vendor, po.Vendor)
		changes = diffField(changes, "status", string(prev.Status), string(po.Status))
		prevDateStr := ""
		if prevDate.Valid {
			prevDateStr = prevDate.Time.Format(dateLayout)
		}
		newDateStr := ""
		if !po.OrderDate.IsZero() {
			newDateStr = po.OrderDate.Format(dateLayout)
		}
		changes = diffField(changes, "order_date", prevDateStr, newDateStr)
		changes = diffField(changes, "notes", prev.Notes, po.Notes)
		if len(changes) == 0 {
			// Identical row: no write, no edit-log noise.
			return nil
		}
	}

	var orderDate interface{}
	if !po.OrderDate.IsZero() {
		orderDate = po.OrderDate
	}
	_, err = tx.Exec(
		`INSERT INTO purchase_orders (po_number, vendor, status, order_date, notes, updated_at)
		 VALUES (?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
		 ON CONFLICT(po_number) DO UPDATE SET
		 vendor = excluded.vendor,
		 status = excluded.status,
		 order_date = excluded.order_date,
		 notes = excluded.notes,
		 updated_at = CURRENT_TIMESTAMP`,
		string(po.PONumber), po.Vendor, string(po.Status), orderDate, po.Notes,
	)
	if err != nil {
		logging.Get(logging.CategoryStore).Error("Failed to upsert po %s: %v", po.PONumber, err)
		return fmt.Errorf("failed to upsert po: %w", err)
	}

	if err := appendEdits(tx, "po", string(po.PONumber), actor, changes); err != nil {
		return fmt.Errorf("failed to append edit log: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}

	logging.StoreDebug("Upserted po %s (%d field changes)", po.PONumber, len(changes))
	return nil
}

// GetPO returns the purchase order with the given number.
func (s *Store) GetPO(po types.PONumber) (types.PurchaseOrder, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out types.PurchaseOrder
	var orderDate sql.NullTime
	err := s.db.QueryRow(
		`SELECT po_number, vendor, status, order_date, notes, created_at, updated_at
		 FROM purchase_orders WHERE po_number = ?`,
		string(po),
	).Scan(&out.PONumber, &out.Vendor, &out.Status, &orderDate, &out.Notes, &out.CreatedAt, &out.UpdatedAt)
	if err == sql.ErrNoRows {
		return out, fmt.Errorf("po %s: %w", po, ErrNotFound)
	}
	if err != nil {
		return out, fmt.Errorf("failed to get po: %w", err)
	}
	if orderDate.Valid {
		out.OrderDate = orderDate.Time
	}
	return out, nil
}

// ListPOs returns purchase orders, optionally filtered by status.
func (s *Store) ListPOs(status types.POStatus) ([]types.PurchaseOrder, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `SELECT po_number, vendor, status, order_date, notes, created_at, updated_at
	          FROM purchase_orders`
	var args []interface{}
	if status != "" {
		query += " WHERE status = ?"
		args = append(args, string(status))
	}
	query += " ORDER BY po_number"

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list pos: %w", err)
	}
	defer rows.Close()

	var pos []types.PurchaseOrder
	for rows.Next() {
		var po types.PurchaseOrder
		var orderDate sql.NullTime
		if err := rows.Scan(&po.PONumber, &po.Vendor, &po.Status, &orderDate, &po.Notes, &po.CreatedAt, &po.UpdatedAt); err != nil {
			return nil, err
		}
		if orderDate.Valid {
			po.OrderDate = orderDate.Time
		}
		pos = append(pos, po)
	}
	return pos, rows.Err()
}

// DeletePO removes a purchase order and its lines, logging the deletion.
func (s *Store) DeletePO(po types.PONumber, actor string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to start transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.Exec("DELETE FROM purchase_orders WHERE po_number = ?", string(po))
	if err != nil {
		return fmt.Errorf("failed to delete po: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return fmt.Errorf("po %s: %w", po, ErrNotFound)
	}
	if _, err := tx.Exec("DELETE FROM po_lines WHERE po_number = ?", string(po)); err != nil {
		return fmt.Errorf("failed to delete po lines: %w", err)
	}

	edits := []fieldChange{{New: "deleted"}}
	if err := appendEdits(tx, "po", string(po), actor, edits); err != nil {
		return fmt.Errorf("failed to append edit log: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}

	logging.Store("Deleted po %s and its lines", po)
	return nil
}

// UpsertPOLine inserts or updates a PO line keyed by (PO number, SKU).
func (s *Store) UpsertPOLine(line types.POLine, actor string) error {
	timer := logging.StartTimer(logging.CategoryStore, "UpsertPOLine")
	defer timer.Stop()

	if line.PO == "" || line.SKU == "" {
		return fmt.Errorf("po number and sku required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to start transaction: %w", err)
	}
	defer tx.Rollback()

	key := line.Key().String()

	var changes []fieldChange
	var prevDesc, prevQty, prevCost string
	err = tx.QueryRow(
		"SELECT description, qty_ordered, unit_cost FROM po_lines WHERE po_number = ? AND sku = ?",
		string(line.PO), string(line.SKU),
	).Scan(&prevDesc, &prevQty, &prevCost)
	switch {
	case err == sql.ErrNoRows:
		changes = append(changes, fieldChange{New: createdMarker})
	case err != nil:
		return fmt.Errorf("failed to read existing po line: %w", err)
	default:
		changes = diffField(changes, "description", prevDesc, line.Description)
		changes = diffField(changes, "qty_ordered", prevQty, line.QtyOrdered.String())
		changes = diffField(changes, "unit_cost", prevCost, line.UnitCost.String())
		if len(changes) == 0 {
			return nil
		}
	}

	_, err = tx.Exec(
		`INSERT INTO po_lines (po_number, sku, description, qty_ordered, unit_cost, updated_at)
		 VALUES (?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
		 ON CONFLICT(po_number, sku) DO UPDATE SET
		 description = excluded.description,
		 qty_ordered = excluded.qty_ordered,
		 unit_cost = excluded.unit_cost,
		 updated_at = CURRENT_TIMESTAMP`,
		string(line.PO), string(line.SKU), line.Description,
		line.QtyOrdered.String(), line.UnitCost.String(),
	)
	if err != nil {
		logging.Get(logging.CategoryStore).Error("Failed to upsert po line %s: %v", key, err)
		return fmt.Errorf("failed to upsert po line: %w", err)
	}

	if err := appendEdits(tx, "po_line", key, actor, changes); err != nil {
		return fmt.Errorf("failed to append edit log: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}

	logging.StoreDebug("Upserted po line %s (%d field changes)", key, len(changes))
	return nil
}

// GetPOLine returns the line with the given composite key.
func (s *Store) GetPOLine(key types.LineKey) (types.POLine, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var line types.POLine
	var qty, cost string
	err := s.db.QueryRow(
		`SELECT po_number, sku, description, qty_ordered, unit_cost, created_at, updated_at
		 FROM po_lines WHERE po_number = ? AND sku = ?`,
		string(key.PO), string(key.SKU),
	).Scan(&line.PO, &line.SKU, &line.Description, &qty, &cost, &line.CreatedAt, &line.UpdatedAt)
	if err == sql.ErrNoRows {
		return line, fmt.Errorf("po line %s: %w", key, ErrNotFound)
	}
	if err != nil {
		return line, fmt.Errorf("failed to get po line: %w", err)
	}
	if line.QtyOrdered, err = decimal.NewFromString(qty); err != nil {
		return line, fmt.Errorf("bad qty_ordered %q for %s: %w", qty, key, err)
	}
	if line.UnitCost, err = decimal.NewFromString(cost); err != nil {
		return line, fmt.Errorf("bad unit_cost %q for %s: %w", cost, key, err)
	}
	return line, nil
}

// ListPOLines returns all lines of a PO, or all lines when po is empty.
func (s *Store) ListPOLines(po types.PONumber) ([]types.POLine, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `SELECT po_number, sku, description, qty_ordered, unit_cost, created_at, updated_at
	          FROM po_lines`
	var args []interface{}
	if po != "" {
		query += " WHERE po_number = ?"
		args = append(args, string(po))
	}
	query += " ORDER BY po_number, sku"

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list po lines: %w", err)
	}
	defer rows.Close()

	var lines []types.POLine
	for rows.Next() {
		var line types.POLine
		var qty, cost string
		if err := rows.Scan(&line.PO, &line.SKU, &line.Description, &qty, &cost, &line.CreatedAt, &line.UpdatedAt); err != nil {
			return nil, err
		}
		if line.QtyOrdered, err = decimal.NewFromString(qty); err != nil {
			return nil, fmt.Errorf("bad qty_ordered %q: %w", qty, err)
		}
		if line.UnitCost, err = decimal.NewFromString(cost); err != nil {
			return nil, fmt.Errorf("bad unit_cost %q: %w", cost, err)
		}
		lines = append(lines, line)
	}
	return lines, rows.Err()
}
