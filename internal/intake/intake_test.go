package intake

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/DoubleArturo/hsus-order-status/internal/store"
	"github.com/DoubleArturo/hsus-order-status/internal/types"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

const poCSV = `po_number,vendor,status,order_date,sku,description,qty_ordered,unit_cost
PO-100,Acme,open,2026-03-01,SKU-A,Widget,10,4.50
PO-100,Acme,open,2026-03-01,SKU-B,Gadget,4,12.00
PO-200,Globex,partial,,SKU-A,Widget,6,4.55
`

const planningCSV = `po_number,sku,qty_planned,ship_week,warehouse
PO-100,SKU-A,10,2026-W12,EAST
PO-100,SKU-B,2,2026-W13,EAST
`

func TestImportPOCSV(t *testing.T) {
	s := newTestStore(t)
	dir := t.TempDir()
	path := writeFile(t, dir, "pos.csv", poCSV)

	result, err := NewImporter(s, "importer").ImportFile(path)
	require.NoError(t, err)
	assert.Equal(t, 2, result.POs)
	assert.Equal(t, 3, result.POLines)

	po, err := s.GetPO("PO-100")
	require.NoError(t, err)
	assert.Equal(t, "Acme", po.Vendor)
	assert.Equal(t, types.POOpen, po.Status)
	assert.Equal(t, "2026-03-01", po.OrderDate.Format("2006-01-02"))

	line, err := s.GetPOLine(types.LineKey{PO: "PO-100", SKU: "SKU-A"})
	require.NoError(t, err)
	assert.True(t, line.QtyOrdered.Equal(decimal.NewFromInt(10)))
	assert.True(t, line.UnitCost.Equal(decimal.RequireFromString("4.50")))

	// Missing order_date is allowed.
	po2, err := s.GetPO("PO-200")
	require.NoError(t, err)
	assert.True(t, po2.OrderDate.IsZero())
	assert.Equal(t, types.POPartial, po2.Status)
}

func TestImportPlanningCSV(t *testing.T) {
	s := newTestStore(t)
	dir := t.TempDir()
	path := writeFile(t, dir, "plan.csv", planningCSV)

	result, err := NewImporter(s, "importer").ImportFile(path)
	require.NoError(t, err)
	assert.Equal(t, 2, result.PlanningRows)

	row, err := s.GetPlanningRow(types.LineKey{PO: "PO-100", SKU: "SKU-B"})
	require.NoError(t, err)
	assert.Equal(t, "2026-W13", row.ShipWeek)
	assert.Equal(t, "EAST", row.Warehouse)
	assert.True(t, row.QtyPlanned.Equal(decimal.NewFromInt(2)))
}

func TestImportXLSX(t *testing.T) {
	s := newTestStore(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "plan.xlsx")

	f := excelize.NewFile()
	rows := [][]interface{}{
		{"po_number", "sku", "qty_planned", "ship_week", "warehouse"},
		{"PO-300", "SKU-C", "5", "2026-W14", "WEST"},
	}
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow("Sheet1", cell, &row))
	}
	require.NoError(t, f.SaveAs(path))
	require.NoError(t, f.Close())

	result, err := NewImporter(s, "importer").ImportFile(path)
	require.NoError(t, err)
	assert.Equal(t, 1, result.PlanningRows)

	row, err := s.GetPlanningRow(types.LineKey{PO: "PO-300", SKU: "SKU-C"})
	require.NoError(t, err)
	assert.Equal(t, "WEST", row.Warehouse)
}

func TestImportErrors(t *testing.T) {
	s := newTestStore(t)
	dir := t.TempDir()
	im := NewImporter(s, "importer")

	_, err := im.ImportFile(writeFile(t, dir, "bad.txt", "whatever"))
	assert.ErrorContains(t, err, "unsupported file type")

	_, err = im.ImportFile(writeFile(t, dir, "empty.csv", "po_number,sku\n"))
	assert.ErrorContains(t, err, "at least one data row")

	_, err = im.ImportFile(writeFile(t, dir, "header.csv", "foo,bar\n1,2\n"))
	assert.ErrorContains(t, err, "unrecognized header")

	badQty := "po_number,sku,qty_planned,ship_week,warehouse\nPO-1,SKU-A,lots,2026-W01,EAST\n"
	_, err = im.ImportFile(writeFile(t, dir, "badqty.csv", badQty))
	assert.ErrorContains(t, err, "row 2")
	assert.ErrorContains(t, err, "qty_planned")
}

func TestImportAll(t *testing.T) {
	s := newTestStore(t)
	dir := t.TempDir()

	paths := []string{
		writeFile(t, dir, "pos.csv", poCSV),
		writeFile(t, dir, "plan.csv", planningCSV),
	}

	result, err := NewImporter(s, "importer").ImportAll(paths, 4)
	require.NoError(t, err)
	assert.Equal(t, 2, result.Files)
	assert.Equal(t, 2, result.POs)
	assert.Equal(t, 2, result.PlanningRows)
}

func TestImportAllStopsOnError(t *testing.T) {
	s := newTestStore(t)
	dir := t.TempDir()

	paths := []string{
		writeFile(t, dir, "plan.csv", planningCSV),
		writeFile(t, dir, "broken.csv", "foo,bar\n1,2\n"),
	}

	_, err := NewImporter(s, "importer").ImportAll(paths, 1)
	require.Error(t, err)
	assert.ErrorContains(t, err, "broken.csv")
}

func TestWatcherEnqueuesSettledFiles(t *testing.T) {
	s := newTestStore(t)
	dir := t.TempDir()

	w, err := NewWatcher(s, dir, 100*time.Millisecond)
	require.NoError(t, err)
	require.NoError(t, w.Start(t.Context()))
	defer w.Stop()

	writeFile(t, dir, "drop.csv", planningCSV)
	writeFile(t, dir, "ignore.tmp", "partial download")

	var tasks []types.Task
	require.Eventually(t, func() bool {
		tasks, err = s.ListTasks(types.TaskPending, 10)
		return err == nil && len(tasks) > 0
	}, 5*time.Second, 50*time.Millisecond, "no import task enqueued")

	require.Len(t, tasks, 1)
	assert.Equal(t, TaskImportFile, tasks[0].Kind)

	var payload ImportPayload
	require.NoError(t, json.Unmarshal(tasks[0].Payload, &payload))
	assert.Equal(t, filepath.Join(dir, "drop.csv"), payload.Path)
}
