package tide

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hidrolab/rovsurvey/internal/mission"
	"github.com/hidrolab/rovsurvey/internal/store"
)

// eventBuffer widens the tide window loaded around a mission so the
// first and last samples still find a bracketing pair.
const eventBuffer = 7 * time.Hour

// CorrectorStore is the persistence surface depth correction runs
// against.
type CorrectorStore interface {
	NavSamples(ctx context.Context, missionID int64) ([]mission.NavSample, error)
	TideLevels(ctx context.Context, port string, from, to time.Time) ([]mission.TideLevel, error)
	UpdateCorrectedDepths(ctx context.Context, updates []store.DepthUpdate) error
	MediaAssets(ctx context.Context, missionID int64) ([]mission.MediaAsset, error)
	RefreshAssetDepthStats(ctx context.Context, assetID int64) error
}

// CorrectionStats summarises one mission's depth correction.
type CorrectionStats struct {
	Samples   int // navigation samples considered
	Corrected int // corrected depths written
	NoDepth   int // samples with no raw depth
	NoBracket int // samples outside the tide event range
}

// Corrector rebases raw depths to the seabed by subtracting the
// interpolated tide height at each sample's time.
type Corrector struct {
	store  CorrectorStore
	logger *slog.Logger
}

// NewCorrector returns a Corrector running against the given store.
func NewCorrector(store CorrectorStore, logger *slog.Logger) *Corrector {
	return &Corrector{store: store, logger: logger}
}

// CorrectMission corrects every depth sample of one mission against
// the port's tide table, then refreshes the depth statistics of the
// mission's media assets. Samples it cannot correct keep whatever
// corrected depth they had.
func (c *Corrector) CorrectMission(ctx context.Context, m *mission.Mission, port string) (*CorrectionStats, error) {
	samples, err := c.store.NavSamples(ctx, m.ID)
	if err != nil {
		return nil, fmt.Errorf("loading nav samples: %w", err)
	}

	stats := &CorrectionStats{Samples: len(samples)}
	if len(samples) == 0 {
		return stats, nil
	}

	from := samples[0].Timestamp.Add(-eventBuffer)
	to := samples[len(samples)-1].Timestamp.Add(eventBuffer)
	levels, err := c.store.TideLevels(ctx, port, from, to)
	if err != nil {
		return nil, fmt.Errorf("loading tide levels: %w", err)
	}
	if len(levels) < 2 {
		// Interpolation needs a bracketing pair. A mission the tide
		// table does not cover is left as it is, not a reason to stop
		// a multi-mission run.
		c.logger.Warn("insufficient tide data, skipping mission",
			slog.Int64("mission", m.ID),
			slog.String("port", port),
			slog.Int("events", len(levels)),
			slog.Time("from", from),
			slog.Time("to", to))
		for _, s := range samples {
			if s.DepthM == nil {
				stats.NoDepth++
			} else {
				stats.NoBracket++
			}
		}
		return stats, nil
	}

	updates := make([]store.DepthUpdate, 0, len(samples))
	for _, s := range samples {
		if s.DepthM == nil {
			stats.NoDepth++
			continue
		}
		first, second, ok := Bracket(levels, s.Timestamp)
		if !ok {
			stats.NoBracket++
			continue
		}
		updates = append(updates, store.DepthUpdate{
			NavSampleID:     s.ID,
			CorrectedDepthM: *s.DepthM - Height(s.Timestamp, first, second),
		})
	}

	if err := c.store.UpdateCorrectedDepths(ctx, updates); err != nil {
		return nil, fmt.Errorf("writing corrected depths: %w", err)
	}
	stats.Corrected = len(updates)

	assets, err := c.store.MediaAssets(ctx, m.ID)
	if err != nil {
		return nil, fmt.Errorf("listing media assets: %w", err)
	}
	for _, a := range assets {
		if err := c.store.RefreshAssetDepthStats(ctx, a.ID); err != nil {
			return nil, fmt.Errorf("refreshing stats for asset %d: %w", a.ID, err)
		}
	}

	c.logger.Info("depth correction complete",
		slog.Int64("mission", m.ID),
		slog.String("port", port),
		slog.Int("samples", stats.Samples),
		slog.Int("corrected", stats.Corrected),
		slog.Int("no_depth", stats.NoDepth),
		slog.Int("no_bracket", stats.NoBracket))
	return stats, nil
}
