package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hidrolab/rovsurvey/internal/importer"
	"github.com/hidrolab/rovsurvey/internal/report"
)

var (
	importProgress bool
	importWorkers  int
)

var importSessionsCmd = &cobra.Command{
	Use:   "import-sessions <root>",
	Short: "Import session recordings under a directory",
	Long: `Walk the session directories under <root> and register their video
recordings, image sequences and sonar frame dumps. Every frame is
timestamped and aligned to the owning mission's navigation timeline;
re-importing a session refreshes its assets in place.`,
	Args: cobra.ExactArgs(1),
	RunE: runImportSessions,
}

func init() {
	importSessionsCmd.Flags().BoolVar(&importProgress, "progress", false, "show a progress bar for sonar frame scans")
	importSessionsCmd.Flags().IntVar(&importWorkers, "workers", 0, "sonar parsing workers (default from configuration)")
	rootCmd.AddCommand(importSessionsCmd)
}

func runImportSessions(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	root := args[0]

	s := openStore()
	defer s.Close()

	config := importer.Config{
		VideoSensor:   cfg.Sensors.Video.Name,
		VideoInstance: cfg.Sensors.Video.Instance,
		ImageSensor:   cfg.Sensors.Image.Name,
		ImageInstance: cfg.Sensors.Image.Instance,
		SonarSensor:   cfg.Sensors.Sonar.Name,
		SonarInstance: cfg.Sensors.Sonar.Instance,
		Workers:       cfg.Import.Workers,
		Progress:      importProgress,
	}
	if importWorkers > 0 {
		config.Workers = importWorkers
	}

	summary := report.New("import-sessions")
	defer summary.Emit(logger)

	stats, err := importer.New(s, logger, config).ImportRoot(ctx, root)
	if stats != nil {
		summary.Add("sessions", int64(stats.Sessions))
		summary.Add("failed_sessions", int64(stats.Failed))
		summary.Add("assets", int64(stats.Assets))
		summary.Add("frames", int64(stats.Frames))
		summary.Add("matched_frames", int64(stats.Matched))
		summary.Add("malformed", int64(stats.Malformed))
	}
	if err != nil {
		return fmt.Errorf("importing sessions: %w", err)
	}
	return nil
}
