package tide

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/hidrolab/rovsurvey/internal/mission"
)

// ErrRangeExists means readings already cover part of the imported
// range; a forced import replaces them.
var ErrRangeExists = errors.New("tide: readings already exist for the imported range")

// ImportStore is the persistence surface a tide import writes through.
type ImportStore interface {
	HasTideLevels(ctx context.Context, port string, from, to time.Time) (bool, error)
	DeleteTideLevels(ctx context.Context, port string, from, to time.Time) (int64, error)
	InsertTideLevels(ctx context.Context, levels []mission.TideLevel) error
}

// ParseFile reads a tide table of `<date>,<time>,<height_m>` lines.
// Timestamps are interpreted in the port's timezone and stored in UTC.
// Comments and malformed lines are counted and skipped.
func ParseFile(path, port string, loc *time.Location, logger *slog.Logger) ([]mission.TideLevel, int, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, fmt.Errorf("opening tide file: %w", err)
	}
	defer f.Close()

	var (
		levels    []mission.TideLevel
		malformed int
		lineNo    int
	)
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		level, err := parseLine(line, port, loc)
		if err != nil {
			malformed++
			logger.Warn("skipping tide line",
				slog.Int("line", lineNo),
				slog.Any("error", err))
			continue
		}
		levels = append(levels, level)
	}
	if err := scanner.Err(); err != nil {
		return nil, malformed, fmt.Errorf("reading tide file: %w", err)
	}
	return levels, malformed, nil
}

func parseLine(line, port string, loc *time.Location) (mission.TideLevel, error) {
	parts := strings.Split(line, ",")
	if len(parts) != 3 {
		return mission.TideLevel{}, fmt.Errorf("want 3 fields, got %d", len(parts))
	}

	stamp := strings.TrimSpace(parts[0]) + " " + strings.TrimSpace(parts[1])
	var (
		ts  time.Time
		err error
	)
	for _, layout := range []string{"2006-01-02 15:04:05", "2006-01-02 15:04"} {
		if ts, err = time.ParseInLocation(layout, stamp, loc); err == nil {
			break
		}
	}
	if err != nil {
		return mission.TideLevel{}, fmt.Errorf("parsing timestamp %q: %w", stamp, err)
	}

	height, err := strconv.ParseFloat(strings.TrimSpace(parts[2]), 64)
	if err != nil {
		return mission.TideLevel{}, fmt.Errorf("parsing height %q: %w", parts[2], err)
	}

	return mission.TideLevel{Port: port, Time: ts.UTC(), HeightM: height}, nil
}

// Import persists parsed tide levels. An overlap with stored readings
// is refused unless force is set, in which case the overlapping range
// is replaced.
func Import(ctx context.Context, store ImportStore, levels []mission.TideLevel, force bool) error {
	if len(levels) == 0 {
		return errors.New("tide: nothing to import")
	}

	port := levels[0].Port
	from, to := levels[0].Time, levels[0].Time
	for _, l := range levels {
		if l.Time.Before(from) {
			from = l.Time
		}
		if l.Time.After(to) {
			to = l.Time
		}
	}

	exists, err := store.HasTideLevels(ctx, port, from, to)
	if err != nil {
		return fmt.Errorf("checking stored range: %w", err)
	}
	if exists {
		if !force {
			return fmt.Errorf("%w: %s %s to %s", ErrRangeExists, port,
				from.Format(time.RFC3339), to.Format(time.RFC3339))
		}
		if _, err := store.DeleteTideLevels(ctx, port, from, to); err != nil {
			return fmt.Errorf("replacing stored range: %w", err)
		}
	}

	if err := store.InsertTideLevels(ctx, levels); err != nil {
		return fmt.Errorf("inserting tide levels: %w", err)
	}
	return nil
}
