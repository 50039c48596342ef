// Package intake loads tabular PO and planning exports into the store.
// Files arrive as CSV or XLSX; the column header decides what a file
// contains. An fsnotify watcher turns files dropped into an inbox
// directory into queued import tasks.
package intake

import (
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/DoubleArturo/hsus-order-status/internal/logging"
	"github.com/DoubleArturo/hsus-order-status/internal/store"
	"github.com/DoubleArturo/hsus-order-status/internal/types"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
)

// TaskImportFile is the work-queue task kind the watcher enqueues.
const TaskImportFile = "import_file"

// ImportPayload is the JSON payload of a TaskImportFile task.
type ImportPayload struct {
	Path string `json:"path"`
}

// FileKind is what a tabular export contains, detected from its header.
type FileKind string

const (
	KindPO       FileKind = "po"
	KindPlanning FileKind = "planning"
	KindUnknown  FileKind = "unknown"
)

// PO exports carry the header fields repeated on every line row, the way
// most ERP line-level exports do.
var poHeader = []string{"po_number", "vendor", "status", "order_date", "sku", "description", "qty_ordered", "unit_cost"}

var planningHeader = []string{"po_number", "sku", "qty_planned", "ship_week", "warehouse"}

// Result counts what an import wrote.
type Result struct {
	Files        int
	POs          int
	POLines      int
	PlanningRows int
}

func (r *Result) add(other Result) {
	r.Files += other.Files
	r.POs += other.POs
	r.POLines += other.POLines
	r.PlanningRows += other.PlanningRows
}

// Importer upserts tabular exports into the store under a fixed actor
// name so the edit log attributes imported changes.
type Importer struct {
	store *store.Store
	actor string
}

// NewImporter creates an importer writing as the given actor.
func NewImporter(s *store.Store, actor string) *Importer {
	return &Importer{store: s, actor: actor}
}

// ImportFile imports one CSV or XLSX file, dispatching on extension.
func (im *Importer) ImportFile(path string) (Result, error) {
	timer := logging.StartTimer(logging.CategoryIntake, "ImportFile")
	defer timer.Stop()

	var records [][]string
	var err error
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		records, err = readCSV(path)
	case ".xlsx":
		records, err = readXLSX(path)
	default:
		return Result{}, fmt.Errorf("unsupported file type %s", filepath.Ext(path))
	}
	if err != nil {
		return Result{}, err
	}

	result, err := im.importRecords(records, filepath.Base(path))
	if err != nil {
		return Result{}, err
	}
	result.Files = 1
	logging.Intake("Imported %s: %d POs, %d lines, %d planning rows",
		filepath.Base(path), result.POs, result.POLines, result.PlanningRows)
	return result, nil
}

// ImportAll imports several files in parallel, bounded by maxParallel.
// The store serializes writes internally, so parallelism here mostly
// overlaps file parsing. The first error cancels the rest.
func (im *Importer) ImportAll(paths []string, maxParallel int) (Result, error) {
	if maxParallel < 1 {
		maxParallel = 1
	}

	var g errgroup.Group
	g.SetLimit(maxParallel)

	var mu sync.Mutex
	var total Result
	for _, path := range paths {
		path := path
		g.Go(func() error {
			result, err := im.ImportFile(path)
			if err != nil {
				return fmt.Errorf("%s: %w", filepath.Base(path), err)
			}
			mu.Lock()
			total.add(result)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return total, err
	}
	return total, nil
}

// importRecords applies parsed rows. The header row decides whether this
// is a PO export or a planning export. Parsing fails fast with the
// 1-based row number so the operator can fix the file.
func (im *Importer) importRecords(records [][]string, source string) (Result, error) {
	if len(records) < 2 {
		return Result{}, fmt.Errorf("%s: file must have a header and at least one data row", source)
	}

	header := records[0]
	switch detectKind(header) {
	case KindPO:
		return im.importPORows(records[1:], source)
	case KindPlanning:
		return im.importPlanningRows(records[1:], source)
	default:
		return Result{}, fmt.Errorf("%s: unrecognized header %v", source, header)
	}
}

func (im *Importer) importPORows(rows [][]string, source string) (Result, error) {
	var result Result
	seen := make(map[types.PONumber]bool)

	for i, record := range rows {
		rowNum := i + 2
		if len(record) != len(poHeader) {
			return result, fmt.Errorf("%s row %d: expected %d columns, got %d", source, rowNum, len(poHeader), len(record))
		}

		po, line, err := parsePORow(record)
		if err != nil {
			return result, fmt.Errorf("%s row %d: %w", source, rowNum, err)
		}

		// The header fields repeat on every row; only the first
		// occurrence counts toward the PO total. Repeated upserts of
		// identical data are no-ops in the store.
		if err := im.store.UpsertPO(po, im.actor); err != nil {
			return result, fmt.Errorf("%s row %d: %w", source, rowNum, err)
		}
		if !seen[po.PONumber] {
			seen[po.PONumber] = true
			result.POs++
		}

		if err := im.store.UpsertPOLine(line, im.actor); err != nil {
			return result, fmt.Errorf("%s row %d: %w", source, rowNum, err)
		}
		result.POLines++
	}
	return result, nil
}

func (im *Importer) importPlanningRows(rows [][]string, source string) (Result, error) {
	var result Result
	for i, record := range rows {
		rowNum := i + 2
		if len(record) != len(planningHeader) {
			return result, fmt.Errorf("%s row %d: expected %d columns, got %d", source, rowNum, len(planningHeader), len(record))
		}

		row, err := parsePlanningRow(record)
		if err != nil {
			return result, fmt.Errorf("%s row %d: %w", source, rowNum, err)
		}
		if err := im.store.UpsertPlanningRow(row, im.actor); err != nil {
			return result, fmt.Errorf("%s row %d: %w", source, rowNum, err)
		}
		result.PlanningRows++
	}
	return result, nil
}

func detectKind(header []string) FileKind {
	if matchHeader(header, poHeader) {
		return KindPO
	}
	if matchHeader(header, planningHeader) {
		return KindPlanning
	}
	return KindUnknown
}

func matchHeader(actual, expected []string) bool {
	if len(actual) != len(expected) {
		return false
	}
	for i, col := range expected {
		if strings.ToLower(strings.TrimSpace(actual[i])) != col {
			return false
		}
	}
	return true
}

func parsePORow(record []string) (types.PurchaseOrder, types.POLine, error) {
	po := types.PurchaseOrder{
		PONumber: types.PONumber(strings.TrimSpace(record[0])),
		Vendor:   strings.TrimSpace(record[1]),
	}
	if po.PONumber == "" {
		return po, types.POLine{}, fmt.Errorf("empty po_number")
	}

	status, err := parsePOStatus(record[2])
	if err != nil {
		return po, types.POLine{}, err
	}
	po.Status = status

	if dateStr := strings.TrimSpace(record[3]); dateStr != "" {
		po.OrderDate, err = time.Parse("2006-01-02", dateStr)
		if err != nil {
			return po, types.POLine{}, fmt.Errorf("invalid order_date %q (expected YYYY-MM-DD)", dateStr)
		}
	}

	line := types.POLine{
		PO:          po.PONumber,
		SKU:         types.SKU(strings.TrimSpace(record[4])),
		Description: strings.TrimSpace(record[5]),
	}
	if line.SKU == "" {
		return po, line, fmt.Errorf("empty sku")
	}
	if line.QtyOrdered, err = decimal.NewFromString(strings.TrimSpace(record[6])); err != nil {
		return po, line, fmt.Errorf("invalid qty_ordered %q", record[6])
	}
	if line.UnitCost, err = decimal.NewFromString(strings.TrimSpace(record[7])); err != nil {
		return po, line, fmt.Errorf("invalid unit_cost %q", record[7])
	}
	return po, line, nil
}

func parsePlanningRow(record []string) (types.PlanningRow, error) {
	row := types.PlanningRow{
		PO:        types.PONumber(strings.TrimSpace(record[0])),
		SKU:       types.SKU(strings.TrimSpace(record[1])),
		ShipWeek:  strings.TrimSpace(record[3]),
		Warehouse: strings.TrimSpace(record[4]),
	}
	if row.PO == "" {
		return row, fmt.Errorf("empty po_number")
	}
	if row.SKU == "" {
		return row, fmt.Errorf("empty sku")
	}
	var err error
	if row.QtyPlanned, err = decimal.NewFromString(strings.TrimSpace(record[2])); err != nil {
		return row, fmt.Errorf("invalid qty_planned %q", record[2])
	}
	return row, nil
}

func parsePOStatus(s string) (types.POStatus, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "open":
		return types.POOpen, nil
	case "partial":
		return types.POPartial, nil
	case "shipped":
		return types.POShipped, nil
	case "canceled", "cancelled":
		return types.POCanceled, nil
	default:
		return types.POOpen, fmt.Errorf("invalid status %q (expected open, partial, shipped, or canceled)", s)
	}
}
