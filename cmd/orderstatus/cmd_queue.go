package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/DoubleArturo/hsus-order-status/internal/types"

	"github.com/spf13/cobra"
)

var (
	queueRunOnce      bool
	queueStatusFilter string
	queueListLimit    int
)

var queueCmd = &cobra.Command{
	Use:   "queue",
	Short: "Work queue",
}

var queueRunCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the queue: drain due tasks on a re-arming timer",
	Long: `Drains due work-queue tasks through the registered handlers. With
--once a single drain runs and the command exits; otherwise the runner
re-arms its timer after every drain until interrupted. Leased tasks left
behind by a crashed run are requeued before each drain.`,
	RunE: runQueueRun,
}

var queueListCmd = &cobra.Command{
	Use:   "list",
	Short: "List queue tasks",
	RunE:  runQueueList,
}

func runQueueRun(cmd *cobra.Command, args []string) error {
	s, err := openStore()
	if err != nil {
		return err
	}
	defer s.Close()

	runner := newRunnerWithHandlers(s)

	if queueRunOnce {
		n, err := runner.Drain(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Printf("Processed %d task(s)\n", n)
		return nil
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	runner.Start(cmd.Context())
	defer runner.Stop()
	runner.Kick()

	fmt.Printf("Queue runner started, tick %s (Ctrl-C to stop)\n", cfg.GetTickInterval())
	<-sigCh
	logger.Info("Shutdown signal received")
	return nil
}

func runQueueList(cmd *cobra.Command, args []string) error {
	s, err := openStore()
	if err != nil {
		return err
	}
	defer s.Close()

	tasks, err := s.ListTasks(types.TaskStatus(queueStatusFilter), queueListLimit)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tKIND\tSTATUS\tATTEMPTS\tNOT BEFORE\tLAST ERROR")
	for _, task := range tasks {
		notBefore := ""
		if !task.NotBefore.IsZero() {
			notBefore = task.NotBefore.Format(time.RFC3339)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\t%s\n",
			task.ID, task.Kind, task.Status, task.Attempts, notBefore, task.LastError)
	}
	return w.Flush()
}

func init() {
	queueRunCmd.Flags().BoolVar(&queueRunOnce, "once", false, "Drain once and exit")
	queueListCmd.Flags().StringVar(&queueStatusFilter, "status", "", "Filter by status (pending, leased, done, failed)")
	queueListCmd.Flags().IntVar(&queueListLimit, "limit", 50, "Maximum tasks to list")

	queueCmd.AddCommand(queueRunCmd)
	queueCmd.AddCommand(queueListCmd)
}
