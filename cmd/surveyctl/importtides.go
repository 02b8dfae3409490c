package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/hidrolab/rovsurvey/internal/report"
	"github.com/hidrolab/rovsurvey/internal/tide"
)

var (
	tidePort     string
	tideTimezone string
	tideForce    bool
)

var importTidesCmd = &cobra.Command{
	Use:   "import-tides <file>",
	Short: "Import a tide table for a port",
	Long: `Import a tide table of high/low events. Timestamps are read in the
port's timezone and stored in UTC. An import overlapping stored
readings is refused unless --force replaces the overlapping range.`,
	Args: cobra.ExactArgs(1),
	RunE: runImportTides,
}

func init() {
	importTidesCmd.Flags().StringVar(&tidePort, "port", "", "tide gauge port (default from configuration)")
	importTidesCmd.Flags().StringVar(&tideTimezone, "timezone", "", "timezone of the tide table (default from configuration)")
	importTidesCmd.Flags().BoolVar(&tideForce, "force", false, "replace stored readings in the imported range")
	rootCmd.AddCommand(importTidesCmd)
}

func runImportTides(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	port := tidePort
	if port == "" {
		port = cfg.Tide.Port
	}
	tz := tideTimezone
	if tz == "" {
		tz = cfg.Tide.Timezone
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return fmt.Errorf("loading timezone %q: %w", tz, err)
	}

	levels, malformed, err := tide.ParseFile(args[0], port, loc, logger)
	if err != nil {
		return err
	}

	s := openStore()
	defer s.Close()

	summary := report.New("import-tides")
	defer summary.Emit(logger)
	summary.Add("readings", int64(len(levels)))
	summary.Add("malformed", int64(malformed))

	if err := tide.Import(ctx, s, levels, tideForce); err != nil {
		return err
	}
	return nil
}
