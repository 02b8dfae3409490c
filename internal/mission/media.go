package mission

import "time"

const (
	MediaVideo    MediaType = "video"
	MediaImage    MediaType = "image"
	MediaImageSet MediaType = "image_set"
	MediaSonar    MediaType = "sonar_set"
)

type MediaType string

// MediaAsset is one recording produced by a deployment: a single video
// file or one image-sequence folder. The triple (deployment, file path,
// media type) is the natural key re-imports resolve against, so running
// an importer twice updates the same row instead of duplicating it.
// FPS is nil for image sets until derived; the depth range is derived
// from the linked frames and refreshed after every import and after
// tide correction.
type MediaAsset struct {
	ID           int64
	DeploymentID int64
	Type         MediaType
	FilePath     string
	StartTime    time.Time
	EndTime      time.Time
	FPS          *float64
	ImageCount   *int64
	MinDepthM    *float64
	MaxDepthM    *float64
	Notes        string
}

// FrameIndex links one media frame to the nearest navigation sample.
// NavSampleID is nil when no navigation data covers the frame's time;
// NavMatchDeltaMS records how far the match is, so large deltas stay
// diagnosable instead of being silently accepted. Frame numbers are
// unique within an asset, and the whole set is regenerated on re-import.
type FrameIndex struct {
	ID             int64
	MediaAssetID   int64
	FrameNumber    int
	Timestamp      time.Time
	NavSampleID    *int64
	NavMatchDeltaMS *int64
}
