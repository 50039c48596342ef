package store

import (
	"database/sql"
	"fmt"
	"strings"

	"github.com/DoubleArturo/hsus-order-status/internal/logging"
	"github.com/DoubleArturo/hsus-order-status/internal/types"
)

// SerialConflictError reports serials that are already bound to another
// BOL. Nothing is applied when the error is returned.
type SerialConflictError struct {
	Conflicts map[string]types.BOLNumber // serial -> owning BOL
}

func (e *SerialConflictError) Error() string {
	parts := make([]string, 0, len(e.Conflicts))
	for sn, bol := range e.Conflicts {
		parts = append(parts, fmt.Sprintf("%s (bound to %s)", sn, bol))
	}
	return fmt.Sprintf("%d serial(s) already assigned: %s", len(e.Conflicts), strings.Join(parts, ", "))
}

// AssignSerials binds serials to a BOL line. The whole batch is checked
// before anything is written: if any serial is bound to a different BOL
// the call fails with a SerialConflictError and applies nothing. Serials
// already bound to this same BOL line are skipped (re-import safe).
func (s *Store) AssignSerials(serials []string, bol types.BOLNumber, key types.LineKey, actor string) error {
	timer := logging.StartTimer(logging.CategorySerial, "AssignSerials")
	defer timer.Stop()

	if bol == "" {
		return fmt.Errorf("bol number required")
	}
	if len(serials) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	entry, err := s.getBOLLocked(bol)
	if err != nil {
		return err
	}
	if entry.Status == types.BOLVoid {
		return fmt.Errorf("bol %s is void", bol)
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to start transaction: %w", err)
	}
	defer tx.Rollback()

	conflicts := make(map[string]types.BOLNumber)
	var toInsert []string
	for _, sn := range serials {
		var owner string
		err := tx.QueryRow("SELECT bol_number FROM serial_assignments WHERE serial = ?", sn).Scan(&owner)
		switch {
		case err == sql.ErrNoRows:
			toInsert = append(toInsert, sn)
		case err != nil:
			return fmt.Errorf("failed to check serial %s: %w", sn, err)
		case types.BOLNumber(owner) == bol:
			// Already on this BOL: skip quietly.
		default:
			conflicts[sn] = types.BOLNumber(owner)
		}
	}
	if len(conflicts) > 0 {
		logging.Get(logging.CategorySerial).Warn("Rejected assignment to %s: %d conflicting serials", bol, len(conflicts))
		return &SerialConflictError{Conflicts: conflicts}
	}

	for _, sn := range toInsert {
		if _, err := tx.Exec(
			`INSERT INTO serial_assignments (serial, bol_number, po_number, sku)
			 VALUES (?, ?, ?, ?)`,
			sn, string(bol), string(key.PO), string(key.SKU),
		); err != nil {
			return fmt.Errorf("failed to assign serial %s: %w", sn, err)
		}
		if err := appendEdits(tx, "serial", sn, actor, []fieldChange{
			{Field: "bol_number", New: string(bol)},
		}); err != nil {
			return fmt.Errorf("failed to append edit log: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}

	logging.Serial("Assigned %d serials to bol %s line %s (%d already present)",
		len(toInsert), bol, key, len(serials)-len(toInsert))
	return nil
}

// ReleaseSerials unbinds the given serials, logging each release. Serials
// not currently assigned are ignored.
func (s *Store) ReleaseSerials(serials []string, actor string) error {
	timer := logging.StartTimer(logging.CategorySerial, "ReleaseSerials")
	defer timer.Stop()

	if len(serials) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to start transaction: %w", err)
	}
	defer tx.Rollback()

	released := 0
	for _, sn := range serials {
		var owner string
		err := tx.QueryRow("SELECT bol_number FROM serial_assignments WHERE serial = ?", sn).Scan(&owner)
		if err == sql.ErrNoRows {
			continue
		}
		if err != nil {
			return fmt.Errorf("failed to check serial %s: %w", sn, err)
		}
		if _, err := tx.Exec("DELETE FROM serial_assignments WHERE serial = ?", sn); err != nil {
			return fmt.Errorf("failed to release serial %s: %w", sn, err)
		}
		if err := appendEdits(tx, "serial", sn, actor, []fieldChange{
			{Field: "bol_number", Old: owner, New: ""},
		}); err != nil {
			return fmt.Errorf("failed to append edit log: %w", err)
		}
		released++
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}

	logging.Serial("Released %d of %d serials", released, len(serials))
	return nil
}

// GetSerial returns the assignment for one serial number.
func (s *Store) GetSerial(serial string) (types.SerialAssignment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var sa types.SerialAssignment
	err := s.db.QueryRow(
		`SELECT serial, bol_number, po_number, sku, assigned_at
		 FROM serial_assignments WHERE serial = ?`, serial,
	).Scan(&sa.Serial, &sa.BOLNumber, &sa.PO, &sa.SKU, &sa.AssignedAt)
	if err == sql.ErrNoRows {
		return sa, fmt.Errorf("serial %s: %w", serial, ErrNotFound)
	}
	if err != nil {
		return sa, fmt.Errorf("failed to get serial: %w", err)
	}
	return sa, nil
}

// ListSerialsByBOL returns the serials bound to a BOL.
func (s *Store) ListSerialsByBOL(bol types.BOLNumber) ([]types.SerialAssignment, error) {
	return s.listSerials("bol_number = ?", string(bol))
}

// ListSerialsForLine returns the serials bound to a PO line across all BOLs.
func (s *Store) ListSerialsForLine(key types.LineKey) ([]types.SerialAssignment, error) {
	return s.listSerials("po_number = ? AND sku = ?", string(key.PO), string(key.SKU))
}

// ListAllSerials returns every serial assignment.
func (s *Store) ListAllSerials() ([]types.SerialAssignment, error) {
	return s.listSerials("1=1")
}

func (s *Store) listSerials(where string, args ...interface{}) ([]types.SerialAssignment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(
		`SELECT serial, bol_number, po_number, sku, assigned_at
		 FROM serial_assignments WHERE `+where+` ORDER BY serial`, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list serials: %w", err)
	}
	defer rows.Close()

	var out []types.SerialAssignment
	for rows.Next() {
		var sa types.SerialAssignment
		if err := rows.Scan(&sa.Serial, &sa.BOLNumber, &sa.PO, &sa.SKU, &sa.AssignedAt); err != nil {
			return nil, err
		}
		out = append(out, sa)
	}
	return out, rows.Err()
}
