// Package types defines the shared domain records for the order-status
// workflow: purchase orders, planning rows, bills of lading, serial
// assignments, edit-history entries, and work-queue tasks.
package types

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// PONumber identifies a purchase order.
type PONumber string

// SKU identifies a stock-keeping unit on a PO line.
type SKU string

// BOLNumber identifies a bill of lading.
type BOLNumber string

// LineKey is the composite key of a PO line and of everything that
// references one (planning rows, BOL lines, serial bindings).
type LineKey struct {
	PO  PONumber
	SKU SKU
}

// String renders the key in the PO|SKU form used throughout the edit log.
func (k LineKey) String() string {
	return string(k.PO) + "|" + string(k.SKU)
}

// PurchaseOrder is the header record keyed by PO number.
type PurchaseOrder struct {
	PONumber  PONumber
	Vendor    string
	Status    POStatus
	OrderDate time.Time
	Notes     string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// POStatus is the lifecycle state of a purchase order.
type POStatus string

const (
	POOpen     POStatus = "open"
	POPartial  POStatus = "partial"
	POShipped  POStatus = "shipped"
	POCanceled POStatus = "canceled"
)

// POLine is a line item keyed by (PO number, SKU).
type POLine struct {
	PO          PONumber
	SKU         SKU
	Description string
	QtyOrdered  decimal.Decimal
	UnitCost    decimal.Decimal
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Key returns the composite line key.
func (l POLine) Key() LineKey { return LineKey{PO: l.PO, SKU: l.SKU} }

// PlanningRow is a planned shipment for a PO line, keyed by (PO, SKU).
type PlanningRow struct {
	PO         PONumber
	SKU        SKU
	QtyPlanned decimal.Decimal
	ShipWeek   string
	Warehouse  string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Key returns the composite line key.
func (p PlanningRow) Key() LineKey { return LineKey{PO: p.PO, SKU: p.SKU} }

// BOLStatus is the lifecycle state of a bill of lading.
type BOLStatus string

const (
	BOLOpen BOLStatus = "open"
	BOLVoid BOLStatus = "void"
)

// BOLEntry is a bill of lading header keyed by BOL number.
type BOLEntry struct {
	BOLNumber BOLNumber
	Carrier   string
	ShipDate  time.Time
	Status    BOLStatus
	Notes     string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// BOLLine attaches a shipped quantity of a PO line to a BOL.
type BOLLine struct {
	BOLNumber  BOLNumber
	PO         PONumber
	SKU        SKU
	QtyShipped decimal.Decimal
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Key returns the composite line key.
func (l BOLLine) Key() LineKey { return LineKey{PO: l.PO, SKU: l.SKU} }

// SerialAssignment binds a serial number to a BOL line. A serial is bound
// to at most one BOL at a time.
type SerialAssignment struct {
	Serial     string
	BOLNumber  BOLNumber
	PO         PONumber
	SKU        SKU
	AssignedAt time.Time
}

// EditEntry is one append-only row of the edit history. Entity names the
// table ("po", "po_line", "planning", "bol", "bol_line", "serial"), Key is
// the business key of the edited record.
type EditEntry struct {
	ID       int64
	Entity   string
	Key      string
	Field    string
	OldValue string
	NewValue string
	Actor    string
	EditedAt time.Time
}

// TaskStatus is the state of a work-queue task.
type TaskStatus string

const (
	TaskPending TaskStatus = "pending"
	TaskLeased  TaskStatus = "leased"
	TaskDone    TaskStatus = "done"
	TaskFailed  TaskStatus = "failed"
)

// Task is one persisted work-queue entry. Delivery is at-least-once:
// handlers must tolerate seeing the same task twice.
type Task struct {
	ID          string
	Kind        string
	Payload     json.RawMessage
	Status      TaskStatus
	Attempts    int
	NotBefore   time.Time
	LeasedUntil time.Time
	LastError   string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
