package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/DoubleArturo/hsus-order-status/internal/intake"
	"github.com/DoubleArturo/hsus-order-status/internal/queue"
	"github.com/DoubleArturo/hsus-order-status/internal/store"
	"github.com/DoubleArturo/hsus-order-status/internal/types"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var importCmd = &cobra.Command{
	Use:   "import [files...]",
	Short: "Import CSV/XLSX exports of POs and planning rows",
	Long: `Imports one or more tabular exports. The column header of each file
decides what it contains:

  PO exports:       po_number,vendor,status,order_date,sku,description,qty_ordered,unit_cost
  Planning exports: po_number,sku,qty_planned,ship_week,warehouse

Files are imported in parallel, bounded by intake.max_parallel.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runImport,
}

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Watch the inbox directory and import dropped files",
	Long: `Watches intake.inbox_dir for new CSV/XLSX files. Each settled file is
enqueued as a work-queue task and imported by the queue runner, so an
interrupted run picks the work back up on restart.`,
	RunE: runWatch,
}

func runImport(cmd *cobra.Command, args []string) error {
	s, err := openStore()
	if err != nil {
		return err
	}
	defer s.Close()

	im := intake.NewImporter(s, cfg.Intake.Actor)
	result, err := im.ImportAll(args, cfg.Intake.MaxParallel)
	if err != nil {
		return err
	}

	logger.Info("Import finished",
		zap.Int("files", result.Files),
		zap.Int("pos", result.POs),
		zap.Int("po_lines", result.POLines),
		zap.Int("planning_rows", result.PlanningRows))
	fmt.Printf("Imported %d file(s): %d POs, %d PO lines, %d planning rows\n",
		result.Files, result.POs, result.POLines, result.PlanningRows)
	return nil
}

func runWatch(cmd *cobra.Command, args []string) error {
	s, err := openStore()
	if err != nil {
		return err
	}
	defer s.Close()

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	runner := newRunnerWithHandlers(s)
	runner.Start(ctx)
	defer runner.Stop()

	w, err := intake.NewWatcher(s, cfg.Intake.InboxDir, cfg.GetSettleDelay())
	if err != nil {
		return fmt.Errorf("failed to create inbox watcher: %w", err)
	}
	if err := w.Start(ctx); err != nil {
		return fmt.Errorf("failed to start inbox watcher: %w", err)
	}
	defer w.Stop()

	fmt.Printf("Watching %s (Ctrl-C to stop)\n", cfg.Intake.InboxDir)
	<-sigCh
	logger.Info("Shutdown signal received")
	return nil
}

// newRunnerWithHandlers builds the queue runner with every task kind the
// suite knows how to process.
func newRunnerWithHandlers(s *store.Store) *queue.Runner {
	runner := queue.NewRunner(s, queue.Options{
		TickInterval:  cfg.GetTickInterval(),
		LeaseDuration: cfg.GetLeaseDuration(),
		MaxAttempts:   cfg.Queue.MaxAttempts,
		RetryBackoff:  cfg.GetRetryBackoff(),
		BatchSize:     cfg.Queue.BatchSize,
	})

	im := intake.NewImporter(s, cfg.Intake.Actor)
	runner.Register(intake.TaskImportFile, func(ctx context.Context, task types.Task) error {
		var payload intake.ImportPayload
		if err := json.Unmarshal(task.Payload, &payload); err != nil {
			return fmt.Errorf("bad import payload: %w", err)
		}
		_, err := im.ImportFile(payload.Path)
		return err
	})
	return runner
}
