package main

import (
	"fmt"
	"os"

	"github.com/DoubleArturo/hsus-order-status/internal/config"
	"github.com/DoubleArturo/hsus-order-status/internal/logging"
	"github.com/DoubleArturo/hsus-order-status/internal/store"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	// Global flags
	configPath string
	verbose    bool
	actor      string

	cfg    *config.Config
	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "orderstatus",
	Short: "Order status back office: PO intake, planning, BOLs, serials",
	Long: `orderstatus keeps purchase orders, shipment planning, bills of lading
and serial assignments reconciled in one SQLite database.

Tabular exports (CSV/XLSX) are imported directly or picked up from an
inbox directory; every change is recorded in an append-only edit log.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		zapCfg := zap.NewProductionConfig()
		if verbose {
			zapCfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		var err error
		logger, err = zapCfg.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}

		cfg, err = config.Load(configPath)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("invalid config: %w", err)
		}
		if verbose && cfg.Logging.Level != "debug" {
			cfg.Logging.Level = "debug"
		}
		if err := logging.Initialize(logging.Options{
			Dir:        cfg.Logging.Dir,
			Level:      cfg.Logging.Level,
			Categories: cfg.Logging.Categories,
		}); err != nil {
			return fmt.Errorf("failed to initialize file logging: %w", err)
		}
		logging.Boot("orderstatus %s starting (db: %s)", cfg.Version, cfg.Store.DatabasePath)
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		logging.CloseAll()
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

// openStore opens the configured database, creating the schema on first
// use. Callers own the returned store and must Close it.
func openStore() (*store.Store, error) {
	s, err := store.Open(cfg.Store.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open store at %s: %w", cfg.Store.DatabasePath, err)
	}
	return s, nil
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "orderstatus.yaml", "Config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().StringVar(&actor, "actor", "", "Actor recorded in the edit log (default: $USER)")

	rootCmd.AddCommand(importCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(poCmd)
	rootCmd.AddCommand(planCmd)
	rootCmd.AddCommand(bolCmd)
	rootCmd.AddCommand(serialCmd)
	rootCmd.AddCommand(queueCmd)
	rootCmd.AddCommand(auditCmd)
}

// editActor is the name written to the edit log for CLI mutations.
func editActor() string {
	if actor != "" {
		return actor
	}
	if u := os.Getenv("USER"); u != "" {
		return u
	}
	return "cli"
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
