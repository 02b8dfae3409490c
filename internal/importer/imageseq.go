package importer

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/hidrolab/rovsurvey/internal/mission"
	"github.com/hidrolab/rovsurvey/internal/timeseries"
)

var imageLineRe = regexp.MustCompile(`^image(\d+)\s+(\d+)\s*$`)

// importImageSet registers the camera_1 still sequence. The sequence
// ships its own per-frame timestamp index, so no timestamps are
// synthesised here.
func (im *Importer) importImageSet(ctx context.Context, root, dir string, m *mission.Mission, series *timeseries.Series, s *sessionStats) error {
	indexPath := filepath.Join(dir, camera1Dir, timestampsFile)
	frames, malformed, err := parseImageIndex(indexPath)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("reading image index: %w", err)
	}
	s.malformed += malformed
	if len(frames) == 0 {
		return fmt.Errorf("image index %s holds no valid lines", relPath(root, indexPath))
	}

	deployment, err := im.store.FindDeployment(ctx, m.ID, im.config.ImageSensor, im.config.ImageInstance)
	if err != nil {
		return fmt.Errorf("image deployment %s/%d: %w", im.config.ImageSensor, im.config.ImageInstance, err)
	}

	sortFramesByNumber(frames)
	alignFrames(series, frames)

	start, end := frames[0].Timestamp, frames[0].Timestamp
	for _, f := range frames {
		if f.Timestamp.Before(start) {
			start = f.Timestamp
		}
		if f.Timestamp.After(end) {
			end = f.Timestamp
		}
	}

	count := int64(len(frames))
	asset := &mission.MediaAsset{
		DeploymentID: deployment.ID,
		Type:         mission.MediaImageSet,
		FilePath:     relPath(root, filepath.Join(dir, camera1Dir)),
		StartTime:    start,
		EndTime:      end,
		ImageCount:   &count,
	}
	return im.persistAsset(ctx, asset, frames, s)
}

// parseImageIndex reads `image<N> <epoch_ms>` lines. Malformed lines
// are counted, not fatal.
func parseImageIndex(path string) (frames []mission.FrameIndex, malformed int, err error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		m := imageLineRe.FindStringSubmatch(line)
		if m == nil {
			malformed++
			continue
		}
		num, err1 := strconv.Atoi(m[1])
		ms, err2 := strconv.ParseInt(m[2], 10, 64)
		if err1 != nil || err2 != nil {
			malformed++
			continue
		}

		frames = append(frames, mission.FrameIndex{
			FrameNumber: num,
			Timestamp:   epochMillis(ms),
		})
	}
	return frames, malformed, scanner.Err()
}

// firstImageTimestamp returns the first valid timestamp in the image
// index, used as the session's reference time.
func firstImageTimestamp(path string) (time.Time, error) {
	frames, _, err := parseImageIndex(path)
	if err != nil {
		return time.Time{}, err
	}
	if len(frames) == 0 {
		return time.Time{}, fmt.Errorf("no valid lines in %s", path)
	}
	return frames[0].Timestamp, nil
}
