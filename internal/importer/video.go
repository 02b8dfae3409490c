package importer

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"time"

	"github.com/hidrolab/rovsurvey/internal/mission"
	"github.com/hidrolab/rovsurvey/internal/timeseries"
)

var videoNameRe = regexp.MustCompile(`^main_rec_(\d+)\.(mkv|mp4)$`)

// importVideos registers every main recording under camera_0. Each
// file becomes one MediaAsset with synthetic per-frame timestamps
// spaced at the recomputed frame rate.
func (im *Importer) importVideos(ctx context.Context, root, dir string, m *mission.Mission, ref time.Time, series *timeseries.Series, s *sessionStats) error {
	camDir := filepath.Join(dir, camera0Dir)
	entries, err := os.ReadDir(camDir)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("reading %s: %w", camera0Dir, err)
	}

	var names []string
	for _, e := range entries {
		if !e.IsDir() && videoNameRe.MatchString(e.Name()) {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	deployment, err := im.store.FindDeployment(ctx, m.ID, im.config.VideoSensor, im.config.VideoInstance)
	if err != nil {
		if len(names) == 0 {
			return nil
		}
		return fmt.Errorf("video deployment %s/%d: %w", im.config.VideoSensor, im.config.VideoInstance, err)
	}

	for _, name := range names {
		if err := im.importVideo(ctx, root, filepath.Join(camDir, name), deployment.ID, ref, series, s); err != nil {
			return err
		}
	}
	return nil
}

func (im *Importer) importVideo(ctx context.Context, root, path string, deploymentID int64, ref time.Time, series *timeseries.Series, s *sessionStats) error {
	start := ref
	if m := videoNameRe.FindStringSubmatch(filepath.Base(path)); m != nil {
		if epoch, err := strconv.ParseInt(m[1], 10, 64); err == nil {
			start = time.Unix(epoch, 0).UTC()
		}
	}

	info, err := ProbeVideo(ctx, path)
	if err != nil {
		return fmt.Errorf("probing %s: %w", filepath.Base(path), err)
	}
	if !info.Valid() {
		// Interrupted recordings carry no trustworthy header counts.
		// A full decode pass is the only way to learn what is there.
		im.logger.Warn("container metadata unusable, decoding to count frames",
			slog.String("file", filepath.Base(path)))
		if info, err = CountFrames(ctx, path); err != nil {
			return fmt.Errorf("counting frames in %s: %w", filepath.Base(path), err)
		}
		// The decode pass recovers duration and frame count; the
		// nominal rate may still read zero, and is recomputed below
		// from those two anyway.
		if info.DurationS <= 0 || info.FrameCount <= 0 {
			return fmt.Errorf("no usable frames in %s", filepath.Base(path))
		}
	}

	// Synthetic timestamps drift whenever the nominal rate and the
	// actual frame count disagree, so the rate is always recomputed
	// from what is really in the file.
	fps := float64(info.FrameCount) / info.DurationS

	frames := make([]mission.FrameIndex, info.FrameCount)
	for i := range frames {
		offset := time.Duration(float64(i) / fps * float64(time.Second))
		frames[i] = mission.FrameIndex{
			FrameNumber: i,
			Timestamp:   start.Add(offset),
		}
	}
	alignFrames(series, frames)

	end := start
	if len(frames) > 0 {
		_, end = frameSpan(frames)
	}
	count := info.FrameCount
	asset := &mission.MediaAsset{
		DeploymentID: deploymentID,
		Type:         mission.MediaVideo,
		FilePath:     relPath(root, path),
		StartTime:    start,
		EndTime:      end,
		FPS:          &fps,
		ImageCount:   &count,
	}
	return im.persistAsset(ctx, asset, frames, s)
}
