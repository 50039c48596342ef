package store

import (
	"errors"
	"testing"
	"time"

	"github.com/DoubleArturo/hsus-order-status/internal/types"

	"github.com/shopspring/decimal"
)

func TestUpsertPOCreateAndUpdate(t *testing.T) {
	s := newTestStore(t)

	po := types.PurchaseOrder{
		PONumber:  "PO-1001",
		Vendor:    "Acme Pet Supply",
		OrderDate: time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC),
	}
	if err := s.UpsertPO(po, "alice"); err != nil {
		t.Fatalf("UpsertPO create failed: %v", err)
	}

	got, err := s.GetPO("PO-1001")
	if err != nil {
		t.Fatalf("GetPO failed: %v", err)
	}
	if got.Vendor != "Acme Pet Supply" {
		t.Errorf("vendor = %q", got.Vendor)
	}
	if got.Status != types.POOpen {
		t.Errorf("default status = %q, want open", got.Status)
	}

	// Update changes one field; the edit log records exactly that field.
	po.Vendor = "Acme Pet Supply LLC"
	po.Status = types.POOpen
	if err := s.UpsertPO(po, "bob"); err != nil {
		t.Fatalf("UpsertPO update failed: %v", err)
	}

	edits, err := s.ListEdits(EditFilter{Entity: "po", Key: "PO-1001"})
	if err != nil {
		t.Fatalf("ListEdits failed: %v", err)
	}
	if len(edits) != 2 {
		t.Fatalf("edit count = %d, want 2 (created + vendor)", len(edits))
	}
	// Newest first.
	if edits[0].Field != "vendor" || edits[0].OldValue != "Acme Pet Supply" || edits[0].NewValue != "Acme Pet Supply LLC" {
		t.Errorf("vendor edit = %+v", edits[0])
	}
	if edits[0].Actor != "bob" {
		t.Errorf("actor = %q, want bob", edits[0].Actor)
	}
	if edits[1].NewValue != "created" {
		t.Errorf("first edit = %+v, want created marker", edits[1])
	}
}

func TestUpsertPONoOpWritesNothing(t *testing.T) {
	s := newTestStore(t)

	po := types.PurchaseOrder{PONumber: "PO-1", Vendor: "V", Status: types.POOpen}
	if err := s.UpsertPO(po, "alice"); err != nil {
		t.Fatalf("UpsertPO failed: %v", err)
	}
	if err := s.UpsertPO(po, "alice"); err != nil {
		t.Fatalf("identical UpsertPO failed: %v", err)
	}

	edits, _ := s.ListEdits(EditFilter{Entity: "po", Key: "PO-1"})
	if len(edits) != 1 {
		t.Errorf("no-op write added edit rows: %d", len(edits))
	}
}

func TestGetPONotFound(t *testing.T) {
	s := newTestStore(t)

	_, err := s.GetPO("PO-MISSING")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestListPOsByStatus(t *testing.T) {
	s := newTestStore(t)

	for _, po := range []types.PurchaseOrder{
		{PONumber: "PO-1", Status: types.POOpen},
		{PONumber: "PO-2", Status: types.POShipped},
		{PONumber: "PO-3", Status: types.POOpen},
	} {
		if err := s.UpsertPO(po, "t"); err != nil {
			t.Fatalf("UpsertPO failed: %v", err)
		}
	}

	open, err := s.ListPOs(types.POOpen)
	if err != nil {
		t.Fatalf("ListPOs failed: %v", err)
	}
	if len(open) != 2 {
		t.Errorf("open count = %d, want 2", len(open))
	}

	all, err := s.ListPOs("")
	if err != nil {
		t.Fatalf("ListPOs failed: %v", err)
	}
	if len(all) != 3 {
		t.Errorf("all count = %d, want 3", len(all))
	}
}

func TestUpsertPOLineAndGet(t *testing.T) {
	s := newTestStore(t)

	line := types.POLine{
		PO:          "PO-1001",
		SKU:         "SKU-RED",
		Description: "Red widget",
		QtyOrdered:  decimal.NewFromInt(120),
		UnitCost:    decimal.RequireFromString("3.75"),
	}
	if err := s.UpsertPOLine(line, "alice"); err != nil {
		t.Fatalf("UpsertPOLine failed: %v", err)
	}

	got, err := s.GetPOLine(types.LineKey{PO: "PO-1001", SKU: "SKU-RED"})
	if err != nil {
		t.Fatalf("GetPOLine failed: %v", err)
	}
	if !got.QtyOrdered.Equal(decimal.NewFromInt(120)) {
		t.Errorf("qty = %s", got.QtyOrdered)
	}
	if !got.UnitCost.Equal(decimal.RequireFromString("3.75")) {
		t.Errorf("cost = %s", got.UnitCost)
	}

	// Quantity change logged under the PO|SKU key.
	line.QtyOrdered = decimal.NewFromInt(90)
	if err := s.UpsertPOLine(line, "bob"); err != nil {
		t.Fatalf("UpsertPOLine update failed: %v", err)
	}
	edits, _ := s.ListEdits(EditFilter{Entity: "po_line", Key: "PO-1001|SKU-RED"})
	if len(edits) != 2 {
		t.Fatalf("edit count = %d, want 2", len(edits))
	}
	if edits[0].Field != "qty_ordered" || edits[0].OldValue != "120" || edits[0].NewValue != "90" {
		t.Errorf("qty edit = %+v", edits[0])
	}
}

func TestDeletePOCascadesLines(t *testing.T) {
	s := newTestStore(t)

	if err := s.UpsertPO(types.PurchaseOrder{PONumber: "PO-1"}, "t"); err != nil {
		t.Fatal(err)
	}
	if err := s.UpsertPOLine(types.POLine{PO: "PO-1", SKU: "A", QtyOrdered: decimal.NewFromInt(1)}, "t"); err != nil {
		t.Fatal(err)
	}

	if err := s.DeletePO("PO-1", "admin"); err != nil {
		t.Fatalf("DeletePO failed: %v", err)
	}
	if _, err := s.GetPO("PO-1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("po still present after delete")
	}
	lines, _ := s.ListPOLines("PO-1")
	if len(lines) != 0 {
		t.Errorf("po lines survived delete: %d", len(lines))
	}

	if err := s.DeletePO("PO-1", "admin"); !errors.Is(err, ErrNotFound) {
		t.Errorf("second delete should be ErrNotFound, got %v", err)
	}
}
