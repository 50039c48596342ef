package main

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/DoubleArturo/hsus-order-status/internal/types"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
)

var (
	bolCarrier      string
	bolShipDate     string
	bolNotes        string
	bolStatusFilter string
)

var bolCmd = &cobra.Command{
	Use:   "bol",
	Short: "Bills of lading",
}

var bolAddCmd = &cobra.Command{
	Use:   "add [bol-number]",
	Short: "Create or update a BOL",
	Args:  cobra.ExactArgs(1),
	RunE:  runBOLAdd,
}

var bolLineCmd = &cobra.Command{
	Use:   "line [bol-number] [po-number] [sku] [qty]",
	Short: "Attach a PO line to a BOL with a shipped quantity",
	Args:  cobra.ExactArgs(4),
	RunE:  runBOLLine,
}

var bolVoidCmd = &cobra.Command{
	Use:   "void [bol-number]",
	Short: "Void a BOL and release its serials",
	Args:  cobra.ExactArgs(1),
	RunE:  runBOLVoid,
}

var bolListCmd = &cobra.Command{
	Use:   "list",
	Short: "List BOLs",
	RunE:  runBOLList,
}

var bolShowCmd = &cobra.Command{
	Use:   "show [bol-number]",
	Short: "Show a BOL and its lines",
	Args:  cobra.ExactArgs(1),
	RunE:  runBOLShow,
}

func runBOLAdd(cmd *cobra.Command, args []string) error {
	s, err := openStore()
	if err != nil {
		return err
	}
	defer s.Close()

	bol := types.BOLEntry{
		BOLNumber: types.BOLNumber(args[0]),
		Carrier:   bolCarrier,
		Notes:     bolNotes,
		Status:    types.BOLOpen,
	}
	if bolShipDate != "" {
		bol.ShipDate, err = time.Parse("2006-01-02", bolShipDate)
		if err != nil {
			return fmt.Errorf("invalid --ship-date %q (expected YYYY-MM-DD)", bolShipDate)
		}
	}

	if err := s.UpsertBOL(bol, editActor()); err != nil {
		return err
	}
	fmt.Printf("BOL %s saved\n", bol.BOLNumber)
	return nil
}

func runBOLLine(cmd *cobra.Command, args []string) error {
	s, err := openStore()
	if err != nil {
		return err
	}
	defer s.Close()

	qty, err := decimal.NewFromString(args[3])
	if err != nil {
		return fmt.Errorf("invalid quantity %q", args[3])
	}

	line := types.BOLLine{
		BOLNumber:  types.BOLNumber(args[0]),
		PO:         types.PONumber(args[1]),
		SKU:        types.SKU(args[2]),
		QtyShipped: qty,
	}
	if err := s.UpsertBOLLine(line, editActor()); err != nil {
		return err
	}
	fmt.Printf("BOL %s: %s|%s shipped %s\n", line.BOLNumber, line.PO, line.SKU, line.QtyShipped)
	return nil
}

func runBOLVoid(cmd *cobra.Command, args []string) error {
	s, err := openStore()
	if err != nil {
		return err
	}
	defer s.Close()

	bol := types.BOLNumber(args[0])
	if err := s.VoidBOL(bol, editActor()); err != nil {
		return err
	}
	fmt.Printf("BOL %s voided, serials released\n", bol)
	return nil
}

func runBOLList(cmd *cobra.Command, args []string) error {
	s, err := openStore()
	if err != nil {
		return err
	}
	defer s.Close()

	bols, err := s.ListBOLs(types.BOLStatus(bolStatusFilter))
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "BOL\tCARRIER\tSTATUS\tSHIP DATE")
	for _, bol := range bols {
		date := ""
		if !bol.ShipDate.IsZero() {
			date = bol.ShipDate.Format("2006-01-02")
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", bol.BOLNumber, bol.Carrier, bol.Status, date)
	}
	return w.Flush()
}

func runBOLShow(cmd *cobra.Command, args []string) error {
	s, err := openStore()
	if err != nil {
		return err
	}
	defer s.Close()

	bolNum := types.BOLNumber(args[0])
	bol, err := s.GetBOL(bolNum)
	if err != nil {
		return err
	}

	fmt.Printf("BOL:      %s\n", bol.BOLNumber)
	fmt.Printf("Carrier:  %s\n", bol.Carrier)
	fmt.Printf("Status:   %s\n", bol.Status)
	if !bol.ShipDate.IsZero() {
		fmt.Printf("Shipped:  %s\n", bol.ShipDate.Format("2006-01-02"))
	}
	if bol.Notes != "" {
		fmt.Printf("Notes:    %s\n", bol.Notes)
	}

	lines, err := s.ListBOLLines(bolNum)
	if err != nil {
		return err
	}
	if len(lines) > 0 {
		fmt.Println()
		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "PO\tSKU\tQTY SHIPPED")
		for _, line := range lines {
			fmt.Fprintf(w, "%s\t%s\t%s\n", line.PO, line.SKU, line.QtyShipped)
		}
		if err := w.Flush(); err != nil {
			return err
		}
	}

	serials, err := s.ListSerialsByBOL(bolNum)
	if err != nil {
		return err
	}
	if len(serials) > 0 {
		fmt.Printf("\n%d serial(s) assigned\n", len(serials))
	}
	return nil
}

func init() {
	bolAddCmd.Flags().StringVar(&bolCarrier, "carrier", "", "Carrier name")
	bolAddCmd.Flags().StringVar(&bolShipDate, "ship-date", "", "Ship date (YYYY-MM-DD)")
	bolAddCmd.Flags().StringVar(&bolNotes, "notes", "", "Free-form notes")
	bolListCmd.Flags().StringVar(&bolStatusFilter, "status", "", "Filter by status (open, void)")

	bolCmd.AddCommand(bolAddCmd)
	bolCmd.AddCommand(bolLineCmd)
	bolCmd.AddCommand(bolVoidCmd)
	bolCmd.AddCommand(bolListCmd)
	bolCmd.AddCommand(bolShowCmd)
}
