package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/hidrolab/rovsurvey/internal/mission"
	"github.com/hidrolab/rovsurvey/internal/report"
	"github.com/hidrolab/rovsurvey/internal/tide"
)

var (
	correctMissionID int64
	correctAll       bool
	correctPort      string
)

var correctDepthsCmd = &cobra.Command{
	Use:   "correct-depths",
	Short: "Apply tide-corrected depths to navigation samples",
	Long: `Subtract the interpolated tide height from every raw depth sample,
rebasing depths to a fixed datum, then refresh the depth statistics of
the affected media assets. Safe to repeat; each run recomputes from
the raw depths.`,
	RunE: runCorrectDepths,
}

func init() {
	correctDepthsCmd.Flags().Int64Var(&correctMissionID, "mission", 0, "correct a single mission")
	correctDepthsCmd.Flags().BoolVar(&correctAll, "all", false, "correct every stored mission")
	correctDepthsCmd.Flags().StringVar(&correctPort, "port", "", "tide gauge port (default from configuration)")
	correctDepthsCmd.MarkFlagsOneRequired("mission", "all")
	correctDepthsCmd.MarkFlagsMutuallyExclusive("mission", "all")
	rootCmd.AddCommand(correctDepthsCmd)
}

func runCorrectDepths(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	port := correctPort
	if port == "" {
		port = cfg.Tide.Port
	}

	s := openStore()
	defer s.Close()

	var missions []mission.Mission
	if correctMissionID != 0 {
		m, err := s.Mission(ctx, correctMissionID)
		if err != nil {
			return fmt.Errorf("mission %d: %w", correctMissionID, err)
		}
		missions = []mission.Mission{*m}
	} else {
		var err error
		if missions, err = s.Missions(ctx); err != nil {
			return fmt.Errorf("listing missions: %w", err)
		}
	}

	corrector := tide.NewCorrector(s, logger)

	summary := report.New("correct-depths")
	defer summary.Emit(logger)

	for i := range missions {
		if err := ctx.Err(); err != nil {
			return err
		}

		stats, err := corrector.CorrectMission(ctx, &missions[i], port)
		if err != nil {
			summary.Add("failed_missions", 1)
			logger.Error("mission correction failed",
				slog.Int64("mission", missions[i].ID),
				slog.Any("error", err))
			continue
		}
		summary.Add("missions", 1)
		summary.Add("samples", int64(stats.Samples))
		summary.Add("corrected", int64(stats.Corrected))
		summary.Add("no_depth", int64(stats.NoDepth))
		summary.Add("no_bracket", int64(stats.NoBracket))
	}
	return nil
}
