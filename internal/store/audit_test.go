package store

import (
	"testing"
	"time"

	"github.com/DoubleArturo/hsus-order-status/internal/types"
)

func TestListEditsFilters(t *testing.T) {
	s := newTestStore(t)

	if err := s.UpsertPO(types.PurchaseOrder{PONumber: "PO-1", Vendor: "V1"}, "alice"); err != nil {
		t.Fatal(err)
	}
	if err := s.UpsertPO(types.PurchaseOrder{PONumber: "PO-2", Vendor: "V2"}, "alice"); err != nil {
		t.Fatal(err)
	}
	if err := s.UpsertPO(types.PurchaseOrder{PONumber: "PO-1", Vendor: "V1b"}, "bob"); err != nil {
		t.Fatal(err)
	}

	byKey, err := s.ListEdits(EditFilter{Entity: "po", Key: "PO-1"})
	if err != nil {
		t.Fatalf("ListEdits failed: %v", err)
	}
	if len(byKey) != 2 {
		t.Errorf("PO-1 edits = %d, want 2", len(byKey))
	}

	limited, err := s.ListEdits(EditFilter{Entity: "po", Limit: 1})
	if err != nil {
		t.Fatalf("ListEdits failed: %v", err)
	}
	if len(limited) != 1 {
		t.Errorf("limited edits = %d, want 1", len(limited))
	}
	// Newest first: the limit-1 row is bob's vendor change.
	if limited[0].Actor != "bob" {
		t.Errorf("newest actor = %q, want bob", limited[0].Actor)
	}

	future, err := s.ListEdits(EditFilter{Since: time.Now().Add(time.Hour)})
	if err != nil {
		t.Fatalf("ListEdits failed: %v", err)
	}
	if len(future) != 0 {
		t.Errorf("future-since returned %d edits", len(future))
	}
}

func TestPurgeEdits(t *testing.T) {
	s := newTestStore(t)

	if err := s.UpsertPO(types.PurchaseOrder{PONumber: "PO-1"}, "t"); err != nil {
		t.Fatal(err)
	}

	n, err := s.PurgeEdits(time.Now().Add(time.Hour))
	if err != nil {
		t.Fatalf("PurgeEdits failed: %v", err)
	}
	if n != 1 {
		t.Errorf("purged = %d, want 1", n)
	}

	remaining, _ := s.ListEdits(EditFilter{})
	if len(remaining) != 0 {
		t.Errorf("edits remain after purge: %d", len(remaining))
	}
}
