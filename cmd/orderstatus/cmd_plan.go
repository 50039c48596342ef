package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/DoubleArturo/hsus-order-status/internal/planning"
	"github.com/DoubleArturo/hsus-order-status/internal/types"

	"github.com/spf13/cobra"
)

var planPOFilter string

var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Planning rows and reconciliation",
}

var planListCmd = &cobra.Command{
	Use:   "list",
	Short: "List planning rows",
	RunE:  runPlanList,
}

var planReconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Reconcile planned vs shipped vs serialized quantities",
	RunE:  runPlanReconcile,
}

func runPlanList(cmd *cobra.Command, args []string) error {
	s, err := openStore()
	if err != nil {
		return err
	}
	defer s.Close()

	rows, err := s.ListPlanning(types.PONumber(planPOFilter))
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "PO\tSKU\tPLANNED\tSHIP WEEK\tWAREHOUSE")
	for _, row := range rows {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", row.PO, row.SKU, row.QtyPlanned, row.ShipWeek, row.Warehouse)
	}
	return w.Flush()
}

func runPlanReconcile(cmd *cobra.Command, args []string) error {
	s, err := openStore()
	if err != nil {
		return err
	}
	defer s.Close()

	report, err := planning.New(s, cfg.GetCacheTTL()).Reconcile()
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "PO\tSKU\tORDERED\tPLANNED\tSHIPPED\tSERIALS\tUNPLANNED\tUNSHIPPED")
	for _, line := range report.Lines {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%d\t%s\t%s\n",
			line.Key.PO, line.Key.SKU,
			line.QtyOrdered, line.QtyPlanned, line.QtyShipped, line.Serials,
			line.Unplanned, line.Unshipped)
	}
	if err := w.Flush(); err != nil {
		return err
	}

	if len(report.BOLGaps) > 0 {
		fmt.Println("\nBOL lines with serial gaps:")
		for _, gap := range report.BOLGaps {
			fmt.Printf("  %s %s: shipped %s, %d serial(s) assigned\n",
				gap.BOLNumber, gap.Key, gap.QtyShipped, gap.Serials)
		}
	}
	if len(report.Orphans) > 0 {
		fmt.Println("\nOrphaned rows:")
		for _, o := range report.Orphans {
			fmt.Printf("  [%s] %s: %s\n", o.Entity, o.Key, o.Reason)
		}
	}
	return nil
}

func init() {
	planListCmd.Flags().StringVar(&planPOFilter, "po", "", "Filter by PO number")
	planCmd.AddCommand(planListCmd)
	planCmd.AddCommand(planReconcileCmd)
}
