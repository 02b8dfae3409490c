package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hidrolab/rovsurvey/internal/importer"
	"github.com/hidrolab/rovsurvey/internal/report"
)

var fixFPSCmd = &cobra.Command{
	Use:   "fix-fps",
	Short: "Audit and correct stored media frame rates",
	Long: `Re-derive the frame rate of every video and image-sequence asset from
its indexed frame count and stored time span, and correct stored rates
that drifted past tolerance. Assets with an implausibly low real rate
are reported as broken and left alone. Combined with --dry-run this is
a pure audit.`,
	Args: cobra.NoArgs,
	RunE: runFixFPS,
}

func init() {
	rootCmd.AddCommand(fixFPSCmd)
}

func runFixFPS(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	s := openStore()
	defer s.Close()

	summary := report.New("fix-fps")
	defer summary.Emit(logger)

	results, err := importer.AuditFPS(ctx, s, logger)
	for _, r := range results {
		summary.Add("assets", 1)
		if r.Broken {
			summary.Add("broken", 1)
		}
		if r.Updated {
			summary.Add("updated", 1)
		}
	}
	if err != nil {
		return fmt.Errorf("auditing frame rates: %w", err)
	}
	return nil
}
