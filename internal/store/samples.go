package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/hidrolab/rovsurvey/internal/mission"
	"github.com/hidrolab/rovsurvey/internal/timeseries"
)

// Per-type sample inserts use INSERT OR IGNORE against the natural key
// so re-running a partially committed log parse never duplicates rows.

const insertNavSamplesSQL = `
INSERT OR IGNORE INTO nav_samples (
    mission_id,
    timestamp,
    roll_deg,
    pitch_deg,
    yaw_deg,
    depth_m
)
VALUES `

// InsertNavSamples batch-inserts navigation samples in one transaction.
func (s *Store) InsertNavSamples(ctx context.Context, samples []mission.NavSample) error {
	if s.Simulated() || len(samples) == 0 {
		return nil
	}

	return s.batchInsert(ctx, insertNavSamplesSQL, "(?, ?, ?, ?, ?, ?)", len(samples), func(i int) []any {
		n := samples[i]
		return []any{n.MissionID, n.Timestamp.UTC(), nullFloat(n.RollDeg), nullFloat(n.PitchDeg), nullFloat(n.YawDeg), nullFloat(n.DepthM)}
	})
}

const insertImuSamplesSQL = `
INSERT OR IGNORE INTO imu_samples (
    log_file_id,
    deployment_id,
    timestamp,
    gx_rad_s,
    gy_rad_s,
    gz_rad_s,
    ax_m_s2,
    ay_m_s2,
    az_m_s2
)
VALUES `

// InsertImuSamples batch-inserts IMU samples in one transaction.
func (s *Store) InsertImuSamples(ctx context.Context, samples []mission.ImuSample) error {
	if s.Simulated() || len(samples) == 0 {
		return nil
	}

	return s.batchInsert(ctx, insertImuSamplesSQL, "(?, ?, ?, ?, ?, ?, ?, ?, ?)", len(samples), func(i int) []any {
		m := samples[i]
		return []any{m.LogFileID, m.DeploymentID, m.Timestamp.UTC(), m.GxRadS, m.GyRadS, m.GzRadS, m.AxMS2, m.AyMS2, m.AzMS2}
	})
}

const insertCompassSamplesSQL = `
INSERT OR IGNORE INTO compass_samples (
    log_file_id,
    deployment_id,
    timestamp,
    mx_ut,
    my_ut,
    mz_ut
)
VALUES `

// InsertCompassSamples batch-inserts magnetometer samples in one transaction.
func (s *Store) InsertCompassSamples(ctx context.Context, samples []mission.CompassSample) error {
	if s.Simulated() || len(samples) == 0 {
		return nil
	}

	return s.batchInsert(ctx, insertCompassSamplesSQL, "(?, ?, ?, ?, ?, ?)", len(samples), func(i int) []any {
		m := samples[i]
		return []any{m.LogFileID, m.DeploymentID, m.Timestamp.UTC(), m.MxUT, m.MyUT, m.MzUT}
	})
}

const insertPressureSamplesSQL = `
INSERT OR IGNORE INTO pressure_samples (
    log_file_id,
    deployment_id,
    timestamp,
    pressure_pa,
    temperature_c
)
VALUES `

// InsertPressureSamples batch-inserts barometer samples in one transaction.
func (s *Store) InsertPressureSamples(ctx context.Context, samples []mission.PressureSample) error {
	if s.Simulated() || len(samples) == 0 {
		return nil
	}

	return s.batchInsert(ctx, insertPressureSamplesSQL, "(?, ?, ?, ?, ?)", len(samples), func(i int) []any {
		m := samples[i]
		return []any{m.LogFileID, m.DeploymentID, m.Timestamp.UTC(), m.PressurePa, nullFloat(m.TemperatureC)}
	})
}

// batchInsert executes a multi-VALUES insert in one transaction,
// chunked to the store's batch size.
func (s *Store) batchInsert(ctx context.Context, insertSQL, placeholder string, count int, args func(i int) []any) (err error) {
	db, err := s.getWriteDB()
	if err != nil {
		return fmt.Errorf("getting write connection: %w", err)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer rollbackWithError(tx, &err)

	for start := 0; start < count; start += s.batchSize {
		end := min(start+s.batchSize, count)

		var sb strings.Builder
		sb.WriteString(insertSQL)

		values := make([]any, 0, (end-start)*8)
		for i := start; i < end; i++ {
			if i > start {
				sb.WriteString(", ")
			}
			sb.WriteString(placeholder)
			values = append(values, args(i)...)
		}

		if _, err = tx.ExecContext(ctx, sb.String(), values...); err != nil {
			return fmt.Errorf("batch inserting rows: %w", err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

const selectNavSeriesSQL = `
SELECT id, timestamp
FROM nav_samples
WHERE mission_id = ?
ORDER BY timestamp`

// NavSeries loads the mission's navigation timeline as a reference
// series for nearest-timestamp alignment. Loaded once per mission and
// shared read-only from there on.
func (s *Store) NavSeries(ctx context.Context, missionID int64) (*timeseries.Series, error) {
	db, err := s.getReadDB()
	if err != nil {
		return nil, fmt.Errorf("getting read connection: %w", err)
	}

	rows, err := db.QueryContext(ctx, selectNavSeriesSQL, missionID)
	if err != nil {
		return nil, fmt.Errorf("querying nav series: %w", err)
	}
	defer closeWithError(rows, &err)

	var entries []timeseries.Entry
	for rows.Next() {
		var e timeseries.Entry
		if err = rows.Scan(&e.ID, &e.Time); err != nil {
			return nil, fmt.Errorf("scanning nav series entry: %w", err)
		}
		e.Time = e.Time.UTC()
		entries = append(entries, e)
	}
	if err = rows.Err(); err != nil {
		return nil, err
	}
	return timeseries.New(entries), nil
}

const selectNavSamplesSQL = `
SELECT id, mission_id, timestamp, roll_deg, pitch_deg, yaw_deg, depth_m, corrected_depth_m
FROM nav_samples
WHERE mission_id = ?
ORDER BY timestamp`

// NavSamples returns a mission's navigation samples ordered by time.
func (s *Store) NavSamples(ctx context.Context, missionID int64) (samples []mission.NavSample, err error) {
	db, err := s.getReadDB()
	if err != nil {
		return nil, fmt.Errorf("getting read connection: %w", err)
	}

	rows, err := db.QueryContext(ctx, selectNavSamplesSQL, missionID)
	if err != nil {
		return nil, fmt.Errorf("querying nav samples: %w", err)
	}
	defer closeWithError(rows, &err)

	for rows.Next() {
		n, err := scanNavSample(rows)
		if err != nil {
			return nil, err
		}
		samples = append(samples, *n)
	}
	return samples, rows.Err()
}

func scanNavSample(row rowScanner) (*mission.NavSample, error) {
	var (
		n                                mission.NavSample
		roll, pitch, yaw, depth, corrDep sql.NullFloat64
	)
	if err := row.Scan(&n.ID, &n.MissionID, &n.Timestamp, &roll, &pitch, &yaw, &depth, &corrDep); err != nil {
		return nil, fmt.Errorf("scanning nav sample: %w", err)
	}
	n.Timestamp = n.Timestamp.UTC()
	n.RollDeg = floatPtr(roll)
	n.PitchDeg = floatPtr(pitch)
	n.YawDeg = floatPtr(yaw)
	n.DepthM = floatPtr(depth)
	n.CorrectedDepthM = floatPtr(corrDep)
	return &n, nil
}

// DepthUpdate carries one tide-corrected depth for a navigation sample.
type DepthUpdate struct {
	NavSampleID     int64
	CorrectedDepthM float64
}

const updateCorrectedDepthSQL = `
UPDATE nav_samples SET corrected_depth_m = ? WHERE id = ?`

// UpdateCorrectedDepths applies tide-corrected depths as one bulk
// update in a single transaction.
func (s *Store) UpdateCorrectedDepths(ctx context.Context, updates []DepthUpdate) (err error) {
	if s.Simulated() || len(updates) == 0 {
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

	stmt, err := tx.PrepareContext(ctx, updateCorrectedDepthSQL)
	if err != nil {
		return fmt.Errorf("preparing statement: %w", err)
	}
	defer closeWithError(stmt, &err)

	for _, u := range updates {
		if _, err = stmt.ExecContext(ctx, u.CorrectedDepthM, u.NavSampleID); err != nil {
			return fmt.Errorf("updating corrected depth: %w", err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}
