package main

import (
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/hidrolab/rovsurvey/internal/ingest"
	"github.com/hidrolab/rovsurvey/internal/mission"
	"github.com/hidrolab/rovsurvey/internal/report"
	"github.com/hidrolab/rovsurvey/internal/store"
)

var (
	parseLogFileID int64
	parseLogAll    bool
	parseLogForce  bool

	parseLogImuInstances  string
	parseLogMagInstances  string
	parseLogBaroInstances string
)

var parseLogCmd = &cobra.Command{
	Use:   "parse-log",
	Short: "Decode registered autopilot binary logs into samples",
	Long: `Decode registered autopilot binary logs and persist their navigation,
IMU, magnetometer and barometer samples. A log is marked parsed after a
complete pass; --force reparses logs already marked, relying on the
idempotent inserts to avoid duplicates.`,
	RunE: runParseLog,
}

func init() {
	parseLogCmd.Flags().Int64Var(&parseLogFileID, "logfile-id", 0, "parse a single registered log file")
	parseLogCmd.Flags().BoolVar(&parseLogAll, "all", false, "parse every pending log file")
	parseLogCmd.Flags().BoolVar(&parseLogForce, "force", false, "also reparse logs already marked parsed")
	parseLogCmd.Flags().StringVar(&parseLogImuInstances, "imu-instances", "", "IMU instances to ingest (default from configuration)")
	parseLogCmd.Flags().StringVar(&parseLogMagInstances, "mag-instances", "", "magnetometer instances to ingest (default from configuration)")
	parseLogCmd.Flags().StringVar(&parseLogBaroInstances, "baro-instances", "", "barometer instances to ingest (default from configuration)")
	parseLogCmd.MarkFlagsOneRequired("logfile-id", "all")
	parseLogCmd.MarkFlagsMutuallyExclusive("logfile-id", "all")
	rootCmd.AddCommand(parseLogCmd)
}

func runParseLog(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	s := openStore()
	defer s.Close()

	var (
		files []mission.LogFile
		err   error
	)
	if parseLogFileID != 0 {
		lf, err := s.LogFile(ctx, parseLogFileID)
		if err != nil {
			return fmt.Errorf("log file %d: %w", parseLogFileID, err)
		}
		if lf.AlreadyParsed && !parseLogForce {
			return fmt.Errorf("log file %d is already parsed, use --force to repeat", parseLogFileID)
		}
		files = []mission.LogFile{*lf}
	} else {
		if files, err = s.LogFiles(ctx, parseLogForce); err != nil {
			return fmt.Errorf("listing log files: %w", err)
		}
	}
	if len(files) == 0 {
		logger.Info("no pending log files")
		return nil
	}

	parser, err := newLogParser(s)
	if err != nil {
		return err
	}

	summary := report.New("parse-log")
	defer summary.Emit(logger)

	for i := range files {
		lf := &files[i]
		if err := ctx.Err(); err != nil {
			return err
		}

		m, err := s.Mission(ctx, lf.MissionID)
		if err != nil {
			return fmt.Errorf("mission %d: %w", lf.MissionID, err)
		}
		deployments, err := s.Deployments(ctx, m.ID)
		if err != nil {
			return fmt.Errorf("deployments for mission %d: %w", m.ID, err)
		}

		logger.Info("parsing log file",
			slog.Int64("id", lf.ID),
			slog.String("path", lf.Path),
			slog.Int64("mission", m.ID))

		stats, err := parser.ParseFile(ctx, lf, m, ingest.NewDeploymentTable(deployments))
		if err != nil {
			summary.Add("failed_files", 1)
			logger.Error("log file failed",
				slog.Int64("id", lf.ID),
				slog.Any("error", err))
			continue
		}

		summary.Add("files", 1)
		summary.Add("messages", int64(stats.Total))
		summary.Add("saved", int64(stats.Saved))
		summary.Add("filtered", int64(stats.Filtered))
		summary.Add("dropped", int64(stats.Dropped))
		summary.Add("errors", int64(stats.Errors))
		summary.Add("corrupt_records", int64(stats.Skipped))

		// A completed pass marks the file, record-level errors
		// included; they are counted above and the inserts are
		// idempotent on a re-run. Only a fatal error above withholds
		// the flag.
		if err := s.MarkLogFileParsed(ctx, lf.ID); err != nil {
			return fmt.Errorf("marking log file %d parsed: %w", lf.ID, err)
		}
	}
	return nil
}

func newLogParser(s *store.Store) (*ingest.LogParser, error) {
	options := make([]ingest.Option, 0, 3)
	for _, sensors := range []struct {
		kind      mission.SensorKind
		flag      string
		instances string
	}{
		{mission.SensorIMU, parseLogImuInstances, cfg.Sensors.ImuInstances},
		{mission.SensorCompass, parseLogMagInstances, cfg.Sensors.MagInstances},
		{mission.SensorPressure, parseLogBaroInstances, cfg.Sensors.BaroInstances},
	} {
		list := sensors.instances
		if sensors.flag != "" {
			list = sensors.flag
		}
		instances, err := parseInstances(list)
		if err != nil {
			return nil, fmt.Errorf("%s instances: %w", sensors.kind, err)
		}
		options = append(options, ingest.WithAllowedInstances(sensors.kind, instances))
	}
	return ingest.NewLogParser(s, logger, options...), nil
}

// parseInstances splits a comma-separated instance list, e.g. "0,1".
func parseInstances(list string) ([]int, error) {
	var instances []int
	for _, part := range strings.Split(list, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		n, err := strconv.Atoi(part)
		if err != nil {
			return nil, fmt.Errorf("invalid instance %q", part)
		}
		instances = append(instances, n)
	}
	if len(instances) == 0 {
		return nil, fmt.Errorf("empty instance list")
	}
	return instances, nil
}
