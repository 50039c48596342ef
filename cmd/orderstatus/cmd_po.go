package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/DoubleArturo/hsus-order-status/internal/types"

	"github.com/spf13/cobra"
)

var poStatusFilter string

var poCmd = &cobra.Command{
	Use:   "po",
	Short: "Inspect purchase orders",
}

var poListCmd = &cobra.Command{
	Use:   "list",
	Short: "List purchase orders",
	RunE:  runPOList,
}

var poShowCmd = &cobra.Command{
	Use:   "show [po-number]",
	Short: "Show a purchase order and its lines",
	Args:  cobra.ExactArgs(1),
	RunE:  runPOShow,
}

func runPOList(cmd *cobra.Command, args []string) error {
	s, err := openStore()
	if err != nil {
		return err
	}
	defer s.Close()

	pos, err := s.ListPOs(types.POStatus(poStatusFilter))
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "PO\tVENDOR\tSTATUS\tORDER DATE")
	for _, po := range pos {
		date := ""
		if !po.OrderDate.IsZero() {
			date = po.OrderDate.Format("2006-01-02")
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", po.PONumber, po.Vendor, po.Status, date)
	}
	return w.Flush()
}

func runPOShow(cmd *cobra.Command, args []string) error {
	s, err := openStore()
	if err != nil {
		return err
	}
	defer s.Close()

	poNum := types.PONumber(args[0])
	po, err := s.GetPO(poNum)
	if err != nil {
		return err
	}

	fmt.Printf("PO:       %s\n", po.PONumber)
	fmt.Printf("Vendor:   %s\n", po.Vendor)
	fmt.Printf("Status:   %s\n", po.Status)
	if !po.OrderDate.IsZero() {
		fmt.Printf("Ordered:  %s\n", po.OrderDate.Format("2006-01-02"))
	}
	if po.Notes != "" {
		fmt.Printf("Notes:    %s\n", po.Notes)
	}

	lines, err := s.ListPOLines(poNum)
	if err != nil {
		return err
	}
	if len(lines) == 0 {
		return nil
	}

	fmt.Println()
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "SKU\tDESCRIPTION\tQTY\tUNIT COST")
	for _, line := range lines {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", line.SKU, line.Description, line.QtyOrdered, line.UnitCost)
	}
	return w.Flush()
}

func init() {
	poListCmd.Flags().StringVar(&poStatusFilter, "status", "", "Filter by status (open, partial, shipped, canceled)")
	poCmd.AddCommand(poListCmd)
	poCmd.AddCommand(poShowCmd)
}
