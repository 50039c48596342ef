package store

import (
	"errors"
	"testing"

	"github.com/DoubleArturo/hsus-order-status/internal/types"
)

func TestAssignSerialsConflictAppliesNothing(t *testing.T) {
	s := newTestStore(t)

	key := types.LineKey{PO: "PO-1", SKU: "A"}
	if err := s.UpsertBOL(types.BOLEntry{BOLNumber: "BOL-1"}, "t"); err != nil {
		t.Fatal(err)
	}
	if err := s.UpsertBOL(types.BOLEntry{BOLNumber: "BOL-2"}, "t"); err != nil {
		t.Fatal(err)
	}
	if err := s.AssignSerials([]string{"SN-1", "SN-2"}, "BOL-1", key, "t"); err != nil {
		t.Fatalf("AssignSerials failed: %v", err)
	}

	// SN-2 collides; SN-9 must NOT be applied either.
	err := s.AssignSerials([]string{"SN-9", "SN-2"}, "BOL-2", key, "t")
	var conflict *SerialConflictError
	if !errors.As(err, &conflict) {
		t.Fatalf("expected SerialConflictError, got %v", err)
	}
	if owner := conflict.Conflicts["SN-2"]; owner != "BOL-1" {
		t.Errorf("conflict owner = %s, want BOL-1", owner)
	}
	if _, err := s.GetSerial("SN-9"); !errors.Is(err, ErrNotFound) {
		t.Error("partial batch was applied despite conflict")
	}
}

func TestAssignSerialsReimportSafe(t *testing.T) {
	s := newTestStore(t)

	key := types.LineKey{PO: "PO-1", SKU: "A"}
	if err := s.UpsertBOL(types.BOLEntry{BOLNumber: "BOL-1"}, "t"); err != nil {
		t.Fatal(err)
	}
	if err := s.AssignSerials([]string{"SN-1"}, "BOL-1", key, "t"); err != nil {
		t.Fatal(err)
	}
	// Same serial, same BOL: skipped, not an error, no extra edits.
	if err := s.AssignSerials([]string{"SN-1", "SN-2"}, "BOL-1", key, "t"); err != nil {
		t.Fatalf("re-import failed: %v", err)
	}

	edits, _ := s.ListEdits(EditFilter{Entity: "serial", Key: "SN-1"})
	if len(edits) != 1 {
		t.Errorf("re-import duplicated edit rows: %d", len(edits))
	}
}

func TestReleaseSerials(t *testing.T) {
	s := newTestStore(t)

	key := types.LineKey{PO: "PO-1", SKU: "A"}
	if err := s.UpsertBOL(types.BOLEntry{BOLNumber: "BOL-1"}, "t"); err != nil {
		t.Fatal(err)
	}
	if err := s.AssignSerials([]string{"SN-1", "SN-2"}, "BOL-1", key, "t"); err != nil {
		t.Fatal(err)
	}

	// Unknown serials are ignored.
	if err := s.ReleaseSerials([]string{"SN-1", "SN-NOPE"}, "t"); err != nil {
		t.Fatalf("ReleaseSerials failed: %v", err)
	}
	if _, err := s.GetSerial("SN-1"); !errors.Is(err, ErrNotFound) {
		t.Error("SN-1 still assigned after release")
	}
	if _, err := s.GetSerial("SN-2"); err != nil {
		t.Errorf("SN-2 should remain assigned: %v", err)
	}
}

func TestListSerialsForLine(t *testing.T) {
	s := newTestStore(t)

	keyA := types.LineKey{PO: "PO-1", SKU: "A"}
	keyB := types.LineKey{PO: "PO-1", SKU: "B"}
	if err := s.UpsertBOL(types.BOLEntry{BOLNumber: "BOL-1"}, "t"); err != nil {
		t.Fatal(err)
	}
	if err := s.AssignSerials([]string{"SN-1", "SN-2"}, "BOL-1", keyA, "t"); err != nil {
		t.Fatal(err)
	}
	if err := s.AssignSerials([]string{"SN-3"}, "BOL-1", keyB, "t"); err != nil {
		t.Fatal(err)
	}

	forA, err := s.ListSerialsForLine(keyA)
	if err != nil {
		t.Fatal(err)
	}
	if len(forA) != 2 {
		t.Errorf("line A serials = %d, want 2", len(forA))
	}
	all, err := s.ListAllSerials()
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 3 {
		t.Errorf("all serials = %d, want 3", len(all))
	}
}

func TestAssignSerialsToVoidBOL(t *testing.T) {
	s := newTestStore(t)

	if err := s.UpsertBOL(types.BOLEntry{BOLNumber: "BOL-1"}, "t"); err != nil {
		t.Fatal(err)
	}
	if err := s.VoidBOL("BOL-1", "t"); err != nil {
		t.Fatal(err)
	}
	err := s.AssignSerials([]string{"SN-1"}, "BOL-1", types.LineKey{}, "t")
	if err == nil {
		t.Error("expected error assigning to void BOL")
	}
}
