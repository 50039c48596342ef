package store

import (
	"database/sql"
	"fmt"

	"github.com/DoubleArturo/hsus-order-status/internal/logging"
	"github.com/DoubleArturo/hsus-order-status/internal/types"

	"github.com/shopspring/decimal"
)

// UpsertPlanningRow inserts or updates a planning row keyed by (PO, SKU).
func (s *Store) UpsertPlanningRow(row types.PlanningRow, actor string) error {
	timer := logging.StartTimer(logging.CategoryStore, "UpsertPlanningRow")
	defer timer.Stop()

	if row.PO == "" || row.SKU == "" {
		return fmt.Errorf("po number and sku required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to start transaction: %w", err)
	}
	defer tx.Rollback()

	key := row.Key().String()

	var changes []fieldChange
	var prevQty, prevWeek, prevWarehouse string
	err = tx.QueryRow(
		"SELECT qty_planned, ship_week, warehouse FROM planning WHERE po_number = ? AND sku = ?",
		string(row.PO), string(row.SKU),
	).Scan(&prevQty, &prevWeek, &prevWarehouse)
	switch {
	case err == sql.ErrNoRows:
		changes = append(changes, fieldChange{New: createdMarker})
	case err != nil:
		return fmt.Errorf("failed to read existing planning row: %w", err)
	default:
		changes = diffField(changes, "qty_planned", prevQty, row.QtyPlanned.String())
		changes = diffField(changes, "ship_week", prevWeek, row.ShipWeek)
		changes = diffField(changes, "warehouse", prevWarehouse, row.Warehouse)
		if len(changes) == 0 {
			return nil
		}
	}

	_, err = tx.Exec(
		`INSERT INTO planning (po_number, sku, qty_planned, ship_week, warehouse, updated_at)
		 VALUES (?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
		 ON CONFLICT(po_number, sku) DO UPDATE SET
		 qty_planned = excluded.qty_planned,
		 ship_week = excluded.ship_week,
		 warehouse = excluded.warehouse,
		 updated_at = CURRENT_TIMESTAMP`,
		string(row.PO), string(row.SKU), row.QtyPlanned.String(), row.ShipWeek, row.Warehouse,
	)
	if err != nil {
		logging.Get(logging.CategoryStore).Error("Failed to upsert planning row %s: %v", key, err)
		return fmt.Errorf("failed to upsert planning row: %w", err)
	}

	if err := appendEdits(tx, "planning", key, actor, changes); err != nil {
		return fmt.Errorf("failed to append edit log: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}

	logging.StoreDebug("Upserted planning row %s (%d field changes)", key, len(changes))
	return nil
}

// GetPlanningRow returns the planning row with the given composite key.
func (s *Store) GetPlanningRow(key types.LineKey) (types.PlanningRow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var row types.PlanningRow
	var qty string
	err := s.db.QueryRow(
		`SELECT po_number, sku, qty_planned, ship_week, warehouse, created_at, updated_at
		 FROM planning WHERE po_number = ? AND sku = ?`,
		string(key.PO), string(key.SKU),
	).Scan(&row.PO, &row.SKU, &qty, &row.ShipWeek, &row.Warehouse, &row.CreatedAt, &row.UpdatedAt)
	if err == sql.ErrNoRows {
		return row, fmt.Errorf("planning row %s: %w", key, ErrNotFound)
	}
	if err != nil {
		return row, fmt.Errorf("failed to get planning row: %w", err)
	}
	if row.QtyPlanned, err = decimal.NewFromString(qty); err != nil {
		return row, fmt.Errorf("bad qty_planned %q for %s: %w", qty, key, err)
	}
	return row, nil
}

// ListPlanning returns planning rows for a PO, or all rows when po is empty.
func (s *Store) ListPlanning(po types.PONumber) ([]types.PlanningRow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `SELECT po_number, sku, qty_planned, ship_week, warehouse, created_at, updated_at
	          FROM planning`
	var args []interface{}
	if po != "" {
		query += " WHERE po_number = ?"
		args = append(args, string(po))
	}
	query += " ORDER BY po_number, sku"

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list planning rows: %w", err)
	}
	defer rows.Close()

	var out []types.PlanningRow
	for rows.Next() {
		var row types.PlanningRow
		var qty string
		if err := rows.Scan(&row.PO, &row.SKU, &qty, &row.ShipWeek, &row.Warehouse, &row.CreatedAt, &row.UpdatedAt); err != nil {
			return nil, err
		}
		if row.QtyPlanned, err = decimal.NewFromString(qty); err != nil {
			return nil, fmt.Errorf("bad qty_planned %q: %w", qty, err)
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

// DeletePlanningRow removes a planning row, logging the deletion.
func (s *Store) DeletePlanningRow(key types.LineKey, actor string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to start transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.Exec("DELETE FROM planning WHERE po_number = ? AND sku = ?", string(key.PO), string(key.SKU))
	if err != nil {
		return fmt.Errorf("failed to delete planning row: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return fmt.Errorf("planning row %s: %w", key, ErrNotFound)
	}

	if err := appendEdits(tx, "planning", key.String(), actor, []fieldChange{{New: "deleted"}}); err != nil {
		return fmt.Errorf("failed to append edit log: %w", err)
	}
	return tx.Commit()
}
