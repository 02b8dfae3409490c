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
	"sync"
	"sync/atomic"
	"time"

	"github.com/schollz/progressbar/v3"

	"github.com/hidrolab/rovsurvey/internal/mission"
	"github.com/hidrolab/rovsurvey/internal/timeseries"
)

var sonarFrameRe = regexp.MustCompile(`frame(\d+)\.txt$`)

// importSonar registers the raw sonar frame dump. Frame headers are
// parsed concurrently, then re-sorted by frame number so the persisted
// index is deterministic regardless of worker scheduling.
func (im *Importer) importSonar(ctx context.Context, root, dir string, m *mission.Mission, series *timeseries.Series, s *sessionStats) error {
	rawDir := filepath.Join(dir, filepath.FromSlash(sonarRawDir))
	paths, err := sonarFramePaths(rawDir)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("listing sonar frames: %w", err)
	}
	if len(paths) == 0 {
		return nil
	}

	deployment, err := im.store.FindDeployment(ctx, m.ID, im.config.SonarSensor, im.config.SonarInstance)
	if err != nil {
		return fmt.Errorf("sonar deployment %s/%d: %w", im.config.SonarSensor, im.config.SonarInstance, err)
	}

	frames, malformed := im.parseSonarFrames(ctx, paths)
	s.malformed += malformed
	if len(frames) == 0 {
		return fmt.Errorf("no parseable sonar frames under %s", relPath(root, rawDir))
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
		Type:         mission.MediaSonar,
		FilePath:     relPath(root, rawDir),
		StartTime:    start,
		EndTime:      end,
		ImageCount:   &count,
	}
	return im.persistAsset(ctx, asset, frames, s)
}

// parseSonarFrames reads frame headers on a bounded worker pool.
func (im *Importer) parseSonarFrames(ctx context.Context, paths []string) ([]mission.FrameIndex, int) {
	var (
		wg        sync.WaitGroup
		malformed atomic.Int64
	)

	jobs := make(chan string)
	results := make(chan mission.FrameIndex, len(paths))

	var bar *progressbar.ProgressBar
	if im.config.Progress {
		bar = progressbar.Default(int64(len(paths)), "sonar frames")
	}

	for range im.config.Workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for path := range jobs {
				if f, ok := parseSonarFrame(path); ok {
					results <- f
				} else {
					malformed.Add(1)
				}
				if bar != nil {
					bar.Add(1)
				}
			}
		}()
	}

	go func() {
		defer close(jobs)
		for _, path := range paths {
			select {
			case jobs <- path:
			case <-ctx.Done():
				return
			}
		}
	}()

	wg.Wait()
	close(results)

	frames := make([]mission.FrameIndex, 0, len(paths))
	for f := range results {
		frames = append(frames, f)
	}
	return frames, int(malformed.Load())
}

// parseSonarFrame reads a frame file's header line: `<token> <epoch_ms>`.
func parseSonarFrame(path string) (mission.FrameIndex, bool) {
	m := sonarFrameRe.FindStringSubmatch(filepath.Base(path))
	if m == nil {
		return mission.FrameIndex{}, false
	}
	num, err := strconv.Atoi(m[1])
	if err != nil {
		return mission.FrameIndex{}, false
	}

	ms, err := sonarHeaderMillis(path)
	if err != nil {
		return mission.FrameIndex{}, false
	}

	return mission.FrameIndex{FrameNumber: num, Timestamp: epochMillis(ms)}, true
}

func sonarHeaderMillis(path string) (int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	if !scanner.Scan() {
		return 0, fmt.Errorf("empty frame file %s", path)
	}

	fields := strings.Fields(scanner.Text())
	if len(fields) < 2 {
		return 0, fmt.Errorf("short header in %s", path)
	}
	return strconv.ParseInt(fields[1], 10, 64)
}

func sonarFramePaths(rawDir string) ([]string, error) {
	entries, err := os.ReadDir(rawDir)
	if err != nil {
		return nil, err
	}

	var paths []string
	for _, e := range entries {
		if !e.IsDir() && sonarFrameRe.MatchString(e.Name()) {
			paths = append(paths, filepath.Join(rawDir, e.Name()))
		}
	}
	return paths, nil
}

// firstSonarTimestamp returns the earliest frame header timestamp,
// used as the session's reference time when no image index exists.
func firstSonarTimestamp(rawDir string) (time.Time, error) {
	paths, err := sonarFramePaths(rawDir)
	if err != nil {
		return time.Time{}, err
	}

	best := int64(-1)
	for _, path := range paths {
		ms, err := sonarHeaderMillis(path)
		if err != nil {
			continue
		}
		if best < 0 || ms < best {
			best = ms
		}
	}
	if best < 0 {
		return time.Time{}, fmt.Errorf("no parseable sonar frames under %s", rawDir)
	}
	return epochMillis(best), nil
}
