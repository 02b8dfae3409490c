package store

import (
	"context"
	"fmt"
	"time"

	"github.com/hidrolab/rovsurvey/internal/mission"
)

const insertTideLevelsSQL = `
INSERT OR IGNORE INTO tide_levels (port, time, height_m)
VALUES `

// InsertTideLevels batch-inserts tide gauge readings. Readings already
// present for the same port and time are left untouched.
func (s *Store) InsertTideLevels(ctx context.Context, levels []mission.TideLevel) error {
	if s.Simulated() || len(levels) == 0 {
		return nil
	}

	return s.batchInsert(ctx, insertTideLevelsSQL, "(?, ?, ?)", len(levels), func(i int) []any {
		t := levels[i]
		return []any{t.Port, t.Time.UTC(), t.HeightM}
	})
}

// DeleteTideLevels removes a port's readings inside [from, to].
func (s *Store) DeleteTideLevels(ctx context.Context, port string, from, to time.Time) (int64, error) {
	if s.Simulated() {
		return 0, nil
	}

	db, err := s.getWriteDB()
	if err != nil {
		return 0, fmt.Errorf("getting write connection: %w", err)
	}

	res, err := db.ExecContext(ctx,
		"DELETE FROM tide_levels WHERE port = ? AND time >= ? AND time <= ?",
		port, from.UTC(), to.UTC())
	if err != nil {
		return 0, fmt.Errorf("deleting tide levels: %w", err)
	}
	return res.RowsAffected()
}

const selectTideLevelsSQL = `
SELECT id, port, time, height_m
FROM tide_levels
WHERE port = ? AND time >= ? AND time <= ?
ORDER BY time`

// TideLevels returns a port's readings inside [from, to] ordered by time.
func (s *Store) TideLevels(ctx context.Context, port string, from, to time.Time) (levels []mission.TideLevel, err error) {
	db, err := s.getReadDB()
	if err != nil {
		return nil, fmt.Errorf("getting read connection: %w", err)
	}

	rows, err := db.QueryContext(ctx, selectTideLevelsSQL, port, from.UTC(), to.UTC())
	if err != nil {
		return nil, fmt.Errorf("querying tide levels: %w", err)
	}
	defer closeWithError(rows, &err)

	for rows.Next() {
		var t mission.TideLevel
		if err = rows.Scan(&t.ID, &t.Port, &t.Time, &t.HeightM); err != nil {
			return nil, fmt.Errorf("scanning tide level: %w", err)
		}
		t.Time = t.Time.UTC()
		levels = append(levels, t)
	}
	return levels, rows.Err()
}

// HasTideLevels reports whether any reading exists for the port inside
// [from, to].
func (s *Store) HasTideLevels(ctx context.Context, port string, from, to time.Time) (bool, error) {
	db, err := s.getReadDB()
	if err != nil {
		return false, fmt.Errorf("getting read connection: %w", err)
	}

	var n int64
	row := db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM tide_levels WHERE port = ? AND time >= ? AND time <= ?",
		port, from.UTC(), to.UTC())
	if err := row.Scan(&n); err != nil {
		return false, fmt.Errorf("counting tide levels: %w", err)
	}
	return n > 0, nil
}
