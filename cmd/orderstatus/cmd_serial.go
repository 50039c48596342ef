package main

import (
	"errors"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/DoubleArturo/hsus-order-status/internal/serial"
	"github.com/DoubleArturo/hsus-order-status/internal/store"
	"github.com/DoubleArturo/hsus-order-status/internal/types"

	"github.com/spf13/cobra"
)

var serialBOLFilter string

var serialCmd = &cobra.Command{
	Use:   "serial",
	Short: "Serial number assignment",
}

var serialAssignCmd = &cobra.Command{
	Use:   "assign [bol-number] [po-number] [sku] [expression]",
	Short: "Assign serials to a BOL line",
	Long: `Assigns serial numbers to a BOL line. The expression accepts single
serials, comma lists and ranges:

  HS-00100
  HS-00100,HS-00102
  HS-00100-HS-00110
  HS-00100-110          (shorthand for the range above)

A serial already bound to another BOL is a conflict; nothing is applied
when any serial in the expression conflicts.`,
	Args: cobra.ExactArgs(4),
	RunE: runSerialAssign,
}

var serialReleaseCmd = &cobra.Command{
	Use:   "release [expression]",
	Short: "Release serials from their BOLs",
	Args:  cobra.ExactArgs(1),
	RunE:  runSerialRelease,
}

var serialListCmd = &cobra.Command{
	Use:   "list",
	Short: "List serial assignments",
	RunE:  runSerialList,
}

func runSerialAssign(cmd *cobra.Command, args []string) error {
	s, err := openStore()
	if err != nil {
		return err
	}
	defer s.Close()

	serials, err := serial.Parse(args[3])
	if err != nil {
		return err
	}

	bol := types.BOLNumber(args[0])
	key := types.LineKey{PO: types.PONumber(args[1]), SKU: types.SKU(args[2])}
	if err := s.AssignSerials(serials, bol, key, editActor()); err != nil {
		var conflict *store.SerialConflictError
		if errors.As(err, &conflict) {
			fmt.Fprintln(os.Stderr, "Conflicting serials:")
			for sn, owner := range conflict.Conflicts {
				fmt.Fprintf(os.Stderr, "  %s already on %s\n", sn, owner)
			}
		}
		return err
	}
	fmt.Printf("Assigned %d serial(s) to %s (%s)\n", len(serials), bol, key)
	return nil
}

func runSerialRelease(cmd *cobra.Command, args []string) error {
	s, err := openStore()
	if err != nil {
		return err
	}
	defer s.Close()

	serials, err := serial.Parse(args[0])
	if err != nil {
		return err
	}
	if err := s.ReleaseSerials(serials, editActor()); err != nil {
		return err
	}
	fmt.Printf("Released %d serial(s)\n", len(serials))
	return nil
}

func runSerialList(cmd *cobra.Command, args []string) error {
	s, err := openStore()
	if err != nil {
		return err
	}
	defer s.Close()

	var assignments []types.SerialAssignment
	if serialBOLFilter != "" {
		assignments, err = s.ListSerialsByBOL(types.BOLNumber(serialBOLFilter))
	} else {
		assignments, err = s.ListAllSerials()
	}
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "SERIAL\tBOL\tPO\tSKU")
	for _, sa := range assignments {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", sa.Serial, sa.BOLNumber, sa.PO, sa.SKU)
	}
	return w.Flush()
}

func init() {
	serialListCmd.Flags().StringVar(&serialBOLFilter, "bol", "", "Filter by BOL number")
	serialCmd.AddCommand(serialAssignCmd)
	serialCmd.AddCommand(serialReleaseCmd)
	serialCmd.AddCommand(serialListCmd)
}
