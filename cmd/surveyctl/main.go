// surveyctl is the operator tool for the underwater survey archive: it
// parses autopilot binary logs, imports session recordings, loads tide
// tables and applies tide-corrected depths, all against one SQLite
// database.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/hidrolab/rovsurvey/internal/store"
)

var (
	logLevel slog.LevelVar
	logger   = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: &logLevel}))

	cfgPath string
	cfg     *Config

	dryRun    bool
	verbose   bool
	batchSize int

	rootCmd = &cobra.Command{
		Use:   "surveyctl",
		Short: "Manage the underwater survey archive",
		Long: `surveyctl ingests ROV survey data into a SQLite archive: autopilot
binary logs, video and image-sequence recordings, sonar frame dumps
and tide tables. Every write is idempotent, so interrupted runs are
safe to repeat.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			var err error
			if cfg, err = LoadConfig(cfgPath); err != nil {
				return fmt.Errorf("loading configuration: %w", err)
			}
			if verbose {
				cfg.LogLevel = "debug"
			}

			var level slog.Level
			if err := level.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
				return fmt.Errorf("invalid log level %q: %w", cfg.LogLevel, err)
			}
			logLevel.Set(level)

			if batchSize > 0 {
				cfg.BatchSize = batchSize
			}
			if dryRun {
				logger.Info("dry run, no changes will be written")
			}
			return nil
		},
	}
)

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "path to the configuration file")
	rootCmd.PersistentFlags().BoolVarP(&dryRun, "dry-run", "n", false, "simulate without writing to the database")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.PersistentFlags().IntVar(&batchSize, "batch-size", 0, "rows per batched insert (default from configuration)")
}

// openStore opens the archive honouring the dry-run flag.
func openStore() *store.Store {
	mode := store.RunApply
	if dryRun {
		mode = store.RunSimulate
	}
	return store.New(cfg.Database,
		store.WithRunMode(mode),
		store.WithBatchSize(cfg.BatchSize))
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		logger.Error(err.Error())

		cancel()
		os.Exit(1)
	}
}
