// Package importer walks survey session directories and registers
// their recordings: camera video files, per-frame image sequences and
// raw sonar frame dumps. Every frame gets a timestamp, real or
// synthesised, and is aligned to the owning mission's navigation
// timeline by nearest timestamp.
package importer

import (
	"context"
	"errors"
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

var (
	// ErrNoMission means no stored mission covers the session's
	// reference timestamp.
	ErrNoMission = errors.New("importer: no mission covers the session")

	// ErrAmbiguousMission means more than one stored mission covers
	// the session's reference timestamp.
	ErrAmbiguousMission = errors.New("importer: multiple missions cover the session")

	// ErrNoReferenceTime means the session directory contains nothing
	// a reference timestamp could be derived from.
	ErrNoReferenceTime = errors.New("importer: no reference timestamp in session")
)

var (
	sessionDirRe   = regexp.MustCompile(`^(?:mission|session)([_-].*)?$`)
	sessionEpochRe = regexp.MustCompile(`^(?:mission|session)[_-](\d+)$`)
)

const (
	camera0Dir  = "camera_0"
	camera1Dir  = "camera_1"
	sonarRawDir = "sonar/raw"

	timestampsFile = "timestamps.txt"
)

// Store is the persistence surface the importers run against.
type Store interface {
	MissionsCovering(ctx context.Context, t time.Time) ([]mission.Mission, error)
	FindDeployment(ctx context.Context, missionID int64, sensorName string, instance int) (*mission.SensorDeployment, error)
	NavSeries(ctx context.Context, missionID int64) (*timeseries.Series, error)
	UpsertMediaAsset(ctx context.Context, a *mission.MediaAsset) error
	ReplaceFrameIndex(ctx context.Context, assetID int64, frames []mission.FrameIndex) error
	RefreshAssetDepthStats(ctx context.Context, assetID int64) error
}

// Config names the deployed sensors each session subdirectory maps to.
type Config struct {
	VideoSensor   string
	VideoInstance int
	ImageSensor   string
	ImageInstance int
	SonarSensor   string
	SonarInstance int

	// Workers bounds the sonar frame parsing pool.
	Workers int

	// Progress enables a terminal progress bar for long sonar scans.
	Progress bool
}

// DefaultConfig returns the vehicle's standard sensor fit.
func DefaultConfig() Config {
	return Config{
		VideoSensor:   "BR_LowLightCamera",
		VideoInstance: 0,
		ImageSensor:   "Panasonic_BGH1",
		ImageInstance: 1,
		SonarSensor:   "SonoptixECHO",
		SonarInstance: 0,
		Workers:       8,
	}
}

// Stats summarises one import run.
type Stats struct {
	Sessions  int // session directories visited
	Failed    int // sessions abandoned on a fatal error
	Assets    int // media assets created or refreshed
	Frames    int // frame index rows written
	Matched   int // frames linked to a navigation sample
	Malformed int // skipped frame lines and files
}

func (s *Stats) merge(o sessionStats) {
	s.Assets += o.assets
	s.Frames += o.frames
	s.Matched += o.matched
	s.Malformed += o.malformed
}

type sessionStats struct {
	assets    int
	frames    int
	matched   int
	malformed int
}

// Importer registers session recordings against stored missions.
type Importer struct {
	store  Store
	logger *slog.Logger
	config Config
}

// New returns an Importer using the given store and configuration.
func New(store Store, logger *slog.Logger, config Config) *Importer {
	if config.Workers <= 0 {
		config.Workers = DefaultConfig().Workers
	}
	return &Importer{store: store, logger: logger, config: config}
}

// ImportRoot walks the root directory's session folders and imports
// each one. A failed session is logged and skipped; the walk continues.
func (im *Importer) ImportRoot(ctx context.Context, root string) (*Stats, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, fmt.Errorf("reading import root: %w", err)
	}

	stats := &Stats{}
	for _, e := range entries {
		if !e.IsDir() || !sessionDirRe.MatchString(e.Name()) {
			continue
		}
		if err := ctx.Err(); err != nil {
			return stats, err
		}

		stats.Sessions++
		dir := filepath.Join(root, e.Name())
		if err := im.ImportSession(ctx, root, dir, stats); err != nil {
			stats.Failed++
			im.logger.Error("session import failed",
				slog.String("session", e.Name()),
				slog.Any("error", err))
		}
	}
	return stats, nil
}

// ImportSession imports one session directory: resolve the covering
// mission, load its navigation series once, then register whichever of
// the three recording kinds the directory holds.
func (im *Importer) ImportSession(ctx context.Context, root, dir string, stats *Stats) error {
	ref, err := im.referenceTime(dir)
	if err != nil {
		return err
	}

	m, err := im.resolveMission(ctx, ref)
	if err != nil {
		return err
	}

	series, err := im.store.NavSeries(ctx, m.ID)
	if err != nil {
		return fmt.Errorf("loading nav series: %w", err)
	}

	im.logger.Info("importing session",
		slog.String("session", filepath.Base(dir)),
		slog.Int64("mission", m.ID),
		slog.Time("reference", ref),
		slog.Int("nav_samples", series.Len()))

	var s sessionStats
	if err := im.importVideos(ctx, root, dir, m, ref, series, &s); err != nil {
		return err
	}
	if err := im.importImageSet(ctx, root, dir, m, series, &s); err != nil {
		return err
	}
	if err := im.importSonar(ctx, root, dir, m, series, &s); err != nil {
		return err
	}

	stats.merge(s)
	return nil
}

// resolveMission demands exactly one covering mission. Zero or several
// is a setup problem the operator has to fix, not something to guess
// through.
func (im *Importer) resolveMission(ctx context.Context, ref time.Time) (*mission.Mission, error) {
	covering, err := im.store.MissionsCovering(ctx, ref)
	if err != nil {
		return nil, fmt.Errorf("resolving mission: %w", err)
	}
	switch len(covering) {
	case 0:
		return nil, fmt.Errorf("%w: %s", ErrNoMission, ref.Format(time.RFC3339))
	case 1:
		return &covering[0], nil
	default:
		return nil, fmt.Errorf("%w: %s matches %d missions", ErrAmbiguousMission, ref.Format(time.RFC3339), len(covering))
	}
}

// referenceTime derives the session's anchor timestamp, tried in
// order: the image sequence index, the first sonar frame, the epoch in
// the directory name.
func (im *Importer) referenceTime(dir string) (time.Time, error) {
	if ts, err := firstImageTimestamp(filepath.Join(dir, camera1Dir, timestampsFile)); err == nil {
		return ts, nil
	}
	if ts, err := firstSonarTimestamp(filepath.Join(dir, filepath.FromSlash(sonarRawDir))); err == nil {
		return ts, nil
	}
	if m := sessionEpochRe.FindStringSubmatch(filepath.Base(dir)); m != nil {
		epoch, err := strconv.ParseInt(m[1], 10, 64)
		if err == nil {
			return time.Unix(epoch, 0).UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: %s", ErrNoReferenceTime, filepath.Base(dir))
}

// persistAsset upserts the asset, regenerates its frame index and
// refreshes the depth statistics derived from the matched samples.
func (im *Importer) persistAsset(ctx context.Context, a *mission.MediaAsset, frames []mission.FrameIndex, s *sessionStats) error {
	if err := im.store.UpsertMediaAsset(ctx, a); err != nil {
		return err
	}
	if err := im.store.ReplaceFrameIndex(ctx, a.ID, frames); err != nil {
		return fmt.Errorf("replacing frame index: %w", err)
	}
	if err := im.store.RefreshAssetDepthStats(ctx, a.ID); err != nil {
		return fmt.Errorf("refreshing depth stats: %w", err)
	}

	s.assets++
	s.frames += len(frames)
	for _, f := range frames {
		if f.NavSampleID != nil {
			s.matched++
		}
	}
	return nil
}

// alignFrames links every frame to the nearest navigation sample. An
// empty series leaves all frames unmatched.
func alignFrames(series *timeseries.Series, frames []mission.FrameIndex) {
	for i := range frames {
		match, ok := series.Nearest(frames[i].Timestamp)
		if !ok {
			continue
		}
		id := match.ID
		delta := match.Delta.Milliseconds()
		frames[i].NavSampleID = &id
		frames[i].NavMatchDeltaMS = &delta
	}
}

// frameSpan reports the first and last timestamp of a non-empty,
// time-ordered frame set.
func frameSpan(frames []mission.FrameIndex) (time.Time, time.Time) {
	return frames[0].Timestamp, frames[len(frames)-1].Timestamp
}

func sortFramesByNumber(frames []mission.FrameIndex) {
	sort.Slice(frames, func(i, j int) bool {
		return frames[i].FrameNumber < frames[j].FrameNumber
	})
}

// relPath stores paths relative to the import root so the database
// stays valid when the archive volume is remounted elsewhere.
func relPath(root, path string) string {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return path
	}
	return filepath.ToSlash(rel)
}

func epochMillis(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}
