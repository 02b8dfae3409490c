package importer

import (
	"context"
	"fmt"
	"log/slog"
	"math"

	"github.com/hidrolab/rovsurvey/internal/mission"
)

const (
	// Below this rate the frame index is considered incomplete, an
	// interrupted indexing run; it gets reported, never rewritten.
	brokenFPSThreshold = 5.0

	// Stored and recomputed rates within this tolerance are left alone.
	fpsTolerance = 0.5
)

// AuditStore is the persistence surface the frame-rate audit runs
// against.
type AuditStore interface {
	AllMediaAssets(ctx context.Context) ([]mission.MediaAsset, error)
	FrameCount(ctx context.Context, assetID int64) (int64, error)
	UpdateAssetFPS(ctx context.Context, assetID int64, fps float64) error
}

// AuditResult describes one asset's frame-rate audit.
type AuditResult struct {
	Asset     mission.MediaAsset
	StoredFPS float64
	ActualFPS float64
	Broken    bool
	Updated   bool
}

// AuditFPS re-derives the frame rate of every video and image-sequence
// asset from its indexed frame count and stored time span, and
// corrects stored rates that drifted past tolerance. No media file is
// touched. Assets whose real rate is implausibly low are flagged
// broken and reported untouched.
func AuditFPS(ctx context.Context, store AuditStore, logger *slog.Logger) ([]AuditResult, error) {
	assets, err := store.AllMediaAssets(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing media assets: %w", err)
	}

	var results []AuditResult
	for _, a := range assets {
		if a.Type != mission.MediaVideo && a.Type != mission.MediaImageSet {
			continue
		}
		if err := ctx.Err(); err != nil {
			return results, err
		}

		duration := a.EndTime.Sub(a.StartTime).Seconds()
		if duration <= 0 {
			continue
		}
		frames, err := store.FrameCount(ctx, a.ID)
		if err != nil {
			return results, fmt.Errorf("counting frames for %s: %w", a.FilePath, err)
		}
		if frames == 0 {
			continue
		}

		r := AuditResult{Asset: a, ActualFPS: float64(frames) / duration}
		if a.FPS != nil {
			r.StoredFPS = *a.FPS
		}

		switch {
		case r.ActualFPS < brokenFPSThreshold:
			r.Broken = true
			logger.Warn("frame rate implausibly low, asset likely needs re-indexing",
				slog.String("file", a.FilePath),
				slog.Float64("fps", r.ActualFPS),
				slog.Int64("frames", frames),
				slog.Float64("duration_s", duration))
		case math.Abs(r.StoredFPS-r.ActualFPS) > fpsTolerance:
			fps := math.Round(r.ActualFPS*1000) / 1000
			if err := store.UpdateAssetFPS(ctx, a.ID, fps); err != nil {
				return results, fmt.Errorf("updating fps for %s: %w", a.FilePath, err)
			}
			r.Updated = true
			logger.Info("corrected stored frame rate",
				slog.String("file", a.FilePath),
				slog.Float64("stored", r.StoredFPS),
				slog.Float64("actual", fps))
		}
		results = append(results, r)
	}
	return results, nil
}
