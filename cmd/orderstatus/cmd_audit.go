package main

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/DoubleArturo/hsus-order-status/internal/store"

	"github.com/spf13/cobra"
)

var (
	auditEntity string
	auditKey    string
	auditSince  string
	auditLimit  int
)

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Show recent edits from the edit log",
	Long: `Lists edit-history rows, newest first. Every upsert, delete, serial
assignment and void is recorded here with the acting user.`,
	RunE: runAudit,
}

func runAudit(cmd *cobra.Command, args []string) error {
	s, err := openStore()
	if err != nil {
		return err
	}
	defer s.Close()

	filter := store.EditFilter{
		Entity: auditEntity,
		Key:    auditKey,
		Limit:  auditLimit,
	}
	if auditSince != "" {
		filter.Since, err = time.Parse("2006-01-02", auditSince)
		if err != nil {
			return fmt.Errorf("invalid --since %q (expected YYYY-MM-DD)", auditSince)
		}
	}

	edits, err := s.ListEdits(filter)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "WHEN\tENTITY\tKEY\tFIELD\tOLD\tNEW\tACTOR")
	for _, e := range edits {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			e.EditedAt.Format("2006-01-02 15:04:05"),
			e.Entity, e.Key, e.Field, e.OldValue, e.NewValue, e.Actor)
	}
	return w.Flush()
}

func init() {
	auditCmd.Flags().StringVar(&auditEntity, "entity", "", "Filter by entity (po, po_line, planning, bol, bol_line, serial)")
	auditCmd.Flags().StringVar(&auditKey, "key", "", "Filter by business key")
	auditCmd.Flags().StringVar(&auditSince, "since", "", "Only edits on or after this date (YYYY-MM-DD)")
	auditCmd.Flags().IntVar(&auditLimit, "limit", 50, "Maximum rows")
}
