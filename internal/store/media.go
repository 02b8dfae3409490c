package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/hidrolab/rovsurvey/internal/mission"
)

const upsertMediaAssetSQL = `
INSERT INTO media_assets (
    deployment_id,
    media_type,
    file_path,
    start_time,
    end_time,
    fps,
    image_count,
    notes
)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (deployment_id, file_path, media_type) DO UPDATE SET
    start_time = excluded.start_time,
    end_time = excluded.end_time,
    fps = excluded.fps,
    image_count = excluded.image_count,
    notes = excluded.notes
RETURNING id`

// UpsertMediaAsset inserts the asset or refreshes the existing row for
// the same deployment, path and type, so re-importing a session folder
// converges instead of duplicating. The asset ID is set on success. In
// simulate mode the ID is left at zero.
func (s *Store) UpsertMediaAsset(ctx context.Context, a *mission.MediaAsset) error {
	if s.Simulated() {
		return nil
	}

	db, err := s.getWriteDB()
	if err != nil {
		return fmt.Errorf("getting write connection: %w", err)
	}

	row := db.QueryRowContext(ctx, upsertMediaAssetSQL,
		a.DeploymentID, string(a.Type), a.FilePath,
		a.StartTime.UTC(), a.EndTime.UTC(),
		nullFloat(a.FPS), nullInt(a.ImageCount), a.Notes)
	if err := row.Scan(&a.ID); err != nil {
		return fmt.Errorf("upserting media asset: %w", err)
	}
	return nil
}

const insertFrameIndexSQL = `
INSERT INTO frame_index (
    media_asset_id,
    frame_number,
    timestamp,
    nav_sample_id,
    nav_match_delta_ms
)
VALUES `

// ReplaceFrameIndex drops the asset's existing frame index and writes
// the new one, all in a single transaction.
func (s *Store) ReplaceFrameIndex(ctx context.Context, assetID int64, frames []mission.FrameIndex) (err error) {
	if s.Simulated() {
		return nil
	}

	db, err := s.getWriteDB()
	if err != nil {
		return fmt.Errorf("getting write connection: %w", err)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer rollbackWithError(tx, &err)

	if _, err = tx.ExecContext(ctx, "DELETE FROM frame_index WHERE media_asset_id = ?", assetID); err != nil {
		return fmt.Errorf("deleting stale frame index: %w", err)
	}

	for start := 0; start < len(frames); start += s.batchSize {
		end := min(start+s.batchSize, len(frames))

		var sb strings.Builder
		sb.WriteString(insertFrameIndexSQL)

		values := make([]any, 0, (end-start)*5)
		for i := start; i < end; i++ {
			if i > start {
				sb.WriteString(", ")
			}
			sb.WriteString("(?, ?, ?, ?, ?)")
			f := frames[i]
			values = append(values, assetID, f.FrameNumber, f.Timestamp.UTC(),
				nullInt(f.NavSampleID), nullInt(f.NavMatchDeltaMS))
		}

		if _, err = tx.ExecContext(ctx, sb.String(), values...); err != nil {
			return fmt.Errorf("inserting frame index rows: %w", err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

const refreshAssetDepthStatsSQL = `
UPDATE media_assets SET
    min_depth_m = (
        SELECT MIN(COALESCE(n.corrected_depth_m, n.depth_m))
        FROM frame_index f
        JOIN nav_samples n ON n.id = f.nav_sample_id
        WHERE f.media_asset_id = media_assets.id
    ),
    max_depth_m = (
        SELECT MAX(COALESCE(n.corrected_depth_m, n.depth_m))
        FROM frame_index f
        JOIN nav_samples n ON n.id = f.nav_sample_id
        WHERE f.media_asset_id = media_assets.id
    )
WHERE id = ?`

// RefreshAssetDepthStats recomputes the asset's depth range from its
// matched navigation samples, preferring tide-corrected depths where
// they exist.
func (s *Store) RefreshAssetDepthStats(ctx context.Context, assetID int64) error {
	if s.Simulated() {
		return nil
	}

	db, err := s.getWriteDB()
	if err != nil {
		return fmt.Errorf("getting write connection: %w", err)
	}

	if _, err := db.ExecContext(ctx, refreshAssetDepthStatsSQL, assetID); err != nil {
		return fmt.Errorf("refreshing asset depth stats: %w", err)
	}
	return nil
}

// UpdateAssetFPS overwrites the stored frame rate for a media asset.
func (s *Store) UpdateAssetFPS(ctx context.Context, assetID int64, fps float64) error {
	if s.Simulated() {
		return nil
	}

	db, err := s.getWriteDB()
	if err != nil {
		return fmt.Errorf("getting write connection: %w", err)
	}

	if _, err := db.ExecContext(ctx, "UPDATE media_assets SET fps = ? WHERE id = ?", fps, assetID); err != nil {
		return fmt.Errorf("updating asset fps: %w", err)
	}
	return nil
}

const selectMediaAssetsSQL = `
SELECT a.id, a.deployment_id, a.media_type, a.file_path, a.start_time, a.end_time,
       a.fps, a.image_count, a.min_depth_m, a.max_depth_m, a.notes
FROM media_assets a`

// MediaAssets returns the assets recorded for a mission's deployments,
// ordered by start time.
func (s *Store) MediaAssets(ctx context.Context, missionID int64) ([]mission.MediaAsset, error) {
	query := selectMediaAssetsSQL + `
JOIN sensor_deployments d ON d.id = a.deployment_id
WHERE d.mission_id = ?
ORDER BY a.start_time`
	return s.queryMediaAssets(ctx, query, missionID)
}

// AllMediaAssets returns every stored media asset ordered by start time.
func (s *Store) AllMediaAssets(ctx context.Context) ([]mission.MediaAsset, error) {
	return s.queryMediaAssets(ctx, selectMediaAssetsSQL+"\nORDER BY a.start_time")
}

func (s *Store) queryMediaAssets(ctx context.Context, query string, args ...any) (assets []mission.MediaAsset, err error) {
	db, err := s.getReadDB()
	if err != nil {
		return nil, fmt.Errorf("getting read connection: %w", err)
	}

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying media assets: %w", err)
	}
	defer closeWithError(rows, &err)

	for rows.Next() {
		var (
			a               mission.MediaAsset
			mediaType       string
			fps, minD, maxD sql.NullFloat64
			imageCount      sql.NullInt64
		)
		if err = rows.Scan(&a.ID, &a.DeploymentID, &mediaType, &a.FilePath, &a.StartTime, &a.EndTime,
			&fps, &imageCount, &minD, &maxD, &a.Notes); err != nil {
			return nil, fmt.Errorf("scanning media asset: %w", err)
		}
		a.Type = mission.MediaType(mediaType)
		a.StartTime = a.StartTime.UTC()
		a.EndTime = a.EndTime.UTC()
		a.FPS = floatPtr(fps)
		a.ImageCount = intPtr(imageCount)
		a.MinDepthM = floatPtr(minD)
		a.MaxDepthM = floatPtr(maxD)
		assets = append(assets, a)
	}
	return assets, rows.Err()
}

// FrameCount reports how many frame index rows an asset has.
func (s *Store) FrameCount(ctx context.Context, assetID int64) (int64, error) {
	db, err := s.getReadDB()
	if err != nil {
		return 0, fmt.Errorf("getting read connection: %w", err)
	}

	var n int64
	row := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM frame_index WHERE media_asset_id = ?", assetID)
	if err := row.Scan(&n); err != nil {
		return 0, fmt.Errorf("counting frames: %w", err)
	}
	return n, nil
}
