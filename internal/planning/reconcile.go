// Package planning reconciles the three shipping tables against each
// other: planned quantities per PO line, shipped quantities on open BOLs,
// and the serials assigned to those BOL lines. It never mutates; it only
// reports the differences.
package planning

import (
	"fmt"
	"time"

	"github.com/DoubleArturo/hsus-order-status/internal/cache"
	"github.com/DoubleArturo/hsus-order-status/internal/logging"
	"github.com/DoubleArturo/hsus-order-status/internal/store"
	"github.com/DoubleArturo/hsus-order-status/internal/types"

	"github.com/shopspring/decimal"
)

// LineStatus is the reconciled view of one PO line.
type LineStatus struct {
	Key        types.LineKey
	QtyOrdered decimal.Decimal
	QtyPlanned decimal.Decimal
	QtyShipped decimal.Decimal // Sum over open BOLs only
	Serials    int             // Serials assigned across open BOLs

	Unplanned decimal.Decimal // ordered - planned, when positive
	Unshipped decimal.Decimal // planned - shipped, when positive
}

// BOLGap is a BOL line whose serial count does not match its shipped
// quantity.
type BOLGap struct {
	BOLNumber  types.BOLNumber
	Key        types.LineKey
	QtyShipped decimal.Decimal
	Serials    int
}

// Orphan is a row referencing a key that does not exist on the other
// side of the reconciliation.
type Orphan struct {
	Entity string // "planning", "bol_line", "serial"
	Key    string
	Reason string
}

// Report is the result of one reconciliation pass.
type Report struct {
	GeneratedAt time.Time
	Lines       []LineStatus
	BOLGaps     []BOLGap
	Orphans     []Orphan
}

// Reconciler runs reconciliation passes over the store, caching the
// report for a short TTL since the CLI tends to ask repeatedly.
type Reconciler struct {
	store *store.Store
	cache *cache.TTL[*Report]
}

// New creates a reconciler with the given report cache TTL.
func New(s *store.Store, ttl time.Duration) *Reconciler {
	return &Reconciler{store: s, cache: cache.New[*Report](ttl)}
}

// Invalidate drops any cached report. Call after imports or edits.
func (r *Reconciler) Invalidate() {
	r.cache.Clear()
}

// Reconcile builds the full report, serving a cached copy when fresh.
func (r *Reconciler) Reconcile() (*Report, error) {
	if report, ok := r.cache.Get("full"); ok {
		logging.PlanningDebug("Serving cached reconciliation report")
		return report, nil
	}

	timer := logging.StartTimer(logging.CategoryPlanning, "Reconcile")
	defer timer.Stop()

	report, err := r.build()
	if err != nil {
		return nil, err
	}
	r.cache.Set("full", report)
	return report, nil
}

func (r *Reconciler) build() (*Report, error) {
	poLines, err := r.store.ListPOLines("")
	if err != nil {
		return nil, fmt.Errorf("failed to load po lines: %w", err)
	}
	planRows, err := r.store.ListPlanning("")
	if err != nil {
		return nil, fmt.Errorf("failed to load planning rows: %w", err)
	}
	bols, err := r.store.ListBOLs("")
	if err != nil {
		return nil, fmt.Errorf("failed to load bols: %w", err)
	}
	bolLines, err := r.store.ListBOLLines("")
	if err != nil {
		return nil, fmt.Errorf("failed to load bol lines: %w", err)
	}
	serials, err := r.store.ListAllSerials()
	if err != nil {
		return nil, fmt.Errorf("failed to load serials: %w", err)
	}

	report := &Report{GeneratedAt: time.Now().UTC()}

	openBOL := make(map[types.BOLNumber]bool)
	knownBOL := make(map[types.BOLNumber]bool)
	for _, b := range bols {
		knownBOL[b.BOLNumber] = true
		if b.Status == types.BOLOpen {
			openBOL[b.BOLNumber] = true
		}
	}

	ordered := make(map[types.LineKey]decimal.Decimal)
	for _, l := range poLines {
		ordered[l.Key()] = l.QtyOrdered
	}

	planned := make(map[types.LineKey]decimal.Decimal)
	for _, p := range planRows {
		planned[p.Key()] = p.QtyPlanned
		if _, ok := ordered[p.Key()]; !ok {
			report.Orphans = append(report.Orphans, Orphan{
				Entity: "planning",
				Key:    p.Key().String(),
				Reason: "no matching PO line",
			})
		}
	}

	// Serials per BOL line, and orphan detection against known BOLs.
	type bolLineKey struct {
		bol types.BOLNumber
		key types.LineKey
	}
	serialCount := make(map[bolLineKey]int)
	serialsPerLine := make(map[types.LineKey]int)
	for _, sa := range serials {
		if !knownBOL[sa.BOLNumber] {
			report.Orphans = append(report.Orphans, Orphan{
				Entity: "serial",
				Key:    sa.Serial,
				Reason: fmt.Sprintf("bound to unknown BOL %s", sa.BOLNumber),
			})
			continue
		}
		k := types.LineKey{PO: sa.PO, SKU: sa.SKU}
		serialCount[bolLineKey{bol: sa.BOLNumber, key: k}]++
		if openBOL[sa.BOLNumber] {
			serialsPerLine[k]++
		}
	}

	// Shipped quantity per line over open BOLs, plus per-BOL-line serial
	// gaps and orphaned BOL lines.
	shipped := make(map[types.LineKey]decimal.Decimal)
	for _, bl := range bolLines {
		if !knownBOL[bl.BOLNumber] {
			report.Orphans = append(report.Orphans, Orphan{
				Entity: "bol_line",
				Key:    fmt.Sprintf("%s|%s", bl.BOLNumber, bl.Key()),
				Reason: fmt.Sprintf("unknown BOL %s", bl.BOLNumber),
			})
			continue
		}
		if !openBOL[bl.BOLNumber] {
			continue // Void BOLs do not count as shipped.
		}
		if _, ok := ordered[bl.Key()]; !ok {
			report.Orphans = append(report.Orphans, Orphan{
				Entity: "bol_line",
				Key:    fmt.Sprintf("%s|%s", bl.BOLNumber, bl.Key()),
				Reason: "no matching PO line",
			})
		}
		shipped[bl.Key()] = shipped[bl.Key()].Add(bl.QtyShipped)

		count := serialCount[bolLineKey{bol: bl.BOLNumber, key: bl.Key()}]
		if !decimal.NewFromInt(int64(count)).Equal(bl.QtyShipped) {
			report.BOLGaps = append(report.BOLGaps, BOLGap{
				BOLNumber:  bl.BOLNumber,
				Key:        bl.Key(),
				QtyShipped: bl.QtyShipped,
				Serials:    count,
			})
		}
	}

	// One status row per PO line, in store order.
	for _, l := range poLines {
		key := l.Key()
		ls := LineStatus{
			Key:        key,
			QtyOrdered: l.QtyOrdered,
			QtyPlanned: planned[key],
			QtyShipped: shipped[key],
			Serials:    serialsPerLine[key],
		}
		if gap := ls.QtyOrdered.Sub(ls.QtyPlanned); gap.IsPositive() {
			ls.Unplanned = gap
		}
		if gap := ls.QtyPlanned.Sub(ls.QtyShipped); gap.IsPositive() {
			ls.Unshipped = gap
		}
		report.Lines = append(report.Lines, ls)
	}

	logging.Planning("Reconciled %d lines: %d BOL serial gaps, %d orphans",
		len(report.Lines), len(report.BOLGaps), len(report.Orphans))
	return report, nil
}
