package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/hidrolab/rovsurvey/internal/mission"
)

const insertMissionSQL = `
INSERT INTO missions (start_time, end_time, location)
VALUES (?, ?, ?)`

// CreateMission stores a mission and returns its ID. Missions are
// normally provisioned before any pipeline stage runs.
func (s *Store) CreateMission(ctx context.Context, m *mission.Mission) (int64, error) {
	if s.Simulated() {
		return 0, nil
	}

	db, err := s.getWriteDB()
	if err != nil {
		return 0, fmt.Errorf("getting write connection: %w", err)
	}

	result, err := db.ExecContext(ctx, insertMissionSQL, m.StartTime.UTC(), nullTime(m.EndTime), m.Location)
	if err != nil {
		return 0, fmt.Errorf("inserting mission: %w", err)
	}
	return result.LastInsertId()
}

const selectMissionSQL = `
SELECT id, start_time, end_time, location
FROM missions
WHERE id = ?`

// Mission returns a mission by its ID.
func (s *Store) Mission(ctx context.Context, id int64) (*mission.Mission, error) {
	db, err := s.getReadDB()
	if err != nil {
		return nil, fmt.Errorf("getting read connection: %w", err)
	}

	m, err := scanMission(db.QueryRowContext(ctx, selectMissionSQL, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("mission %d: %w", id, ErrNotFound)
	}
	return m, err
}

const selectMissionsSQL = `
SELECT id, start_time, end_time, location
FROM missions
ORDER BY start_time`

// Missions returns all missions ordered by start time.
func (s *Store) Missions(ctx context.Context) (missions []mission.Mission, err error) {
	db, err := s.getReadDB()
	if err != nil {
		return nil, fmt.Errorf("getting read connection: %w", err)
	}

	rows, err := db.QueryContext(ctx, selectMissionsSQL)
	if err != nil {
		return nil, fmt.Errorf("querying missions: %w", err)
	}
	defer closeWithError(rows, &err)

	for rows.Next() {
		m, err := scanMission(rows)
		if err != nil {
			return nil, err
		}
		missions = append(missions, *m)
	}
	return missions, rows.Err()
}

const selectMissionsCoveringSQL = `
SELECT id, start_time, end_time, location
FROM missions
WHERE start_time <= ? AND (end_time IS NULL OR end_time >= ?)
ORDER BY start_time`

// MissionsCovering returns every mission whose time window contains t.
// Auto-detection requires the result to hold exactly one mission; the
// caller decides what zero or several matches mean.
func (s *Store) MissionsCovering(ctx context.Context, t time.Time) (missions []mission.Mission, err error) {
	db, err := s.getReadDB()
	if err != nil {
		return nil, fmt.Errorf("getting read connection: %w", err)
	}

	t = t.UTC()
	rows, err := db.QueryContext(ctx, selectMissionsCoveringSQL, t, t)
	if err != nil {
		return nil, fmt.Errorf("querying missions: %w", err)
	}
	defer closeWithError(rows, &err)

	for rows.Next() {
		m, err := scanMission(rows)
		if err != nil {
			return nil, err
		}
		missions = append(missions, *m)
	}
	return missions, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMission(row rowScanner) (*mission.Mission, error) {
	var m mission.Mission
	var end sql.NullTime
	if err := row.Scan(&m.ID, &m.StartTime, &end, &m.Location); err != nil {
		return nil, fmt.Errorf("scanning mission: %w", err)
	}
	m.StartTime = m.StartTime.UTC()
	m.EndTime = timePtr(end)
	return &m, nil
}

const insertDeploymentSQL = `
INSERT INTO sensor_deployments (mission_id, sensor_name, sensor_kind, instance)
VALUES (?, ?, ?, ?)`

// CreateDeployment stores a sensor deployment and returns its ID.
func (s *Store) CreateDeployment(ctx context.Context, d *mission.SensorDeployment) (int64, error) {
	if s.Simulated() {
		return 0, nil
	}

	db, err := s.getWriteDB()
	if err != nil {
		return 0, fmt.Errorf("getting write connection: %w", err)
	}

	result, err := db.ExecContext(ctx, insertDeploymentSQL, d.MissionID, d.SensorName, string(d.Kind), d.Instance)
	if err != nil {
		return 0, fmt.Errorf("inserting deployment: %w", err)
	}
	return result.LastInsertId()
}

const selectDeploymentsSQL = `
SELECT id, mission_id, sensor_name, sensor_kind, instance
FROM sensor_deployments
WHERE mission_id = ?
ORDER BY sensor_name, instance`

// Deployments returns all sensor deployments for a mission.
func (s *Store) Deployments(ctx context.Context, missionID int64) (deployments []mission.SensorDeployment, err error) {
	db, err := s.getReadDB()
	if err != nil {
		return nil, fmt.Errorf("getting read connection: %w", err)
	}

	rows, err := db.QueryContext(ctx, selectDeploymentsSQL, missionID)
	if err != nil {
		return nil, fmt.Errorf("querying deployments: %w", err)
	}
	defer closeWithError(rows, &err)

	for rows.Next() {
		var d mission.SensorDeployment
		var kind string
		if err = rows.Scan(&d.ID, &d.MissionID, &d.SensorName, &kind, &d.Instance); err != nil {
			return nil, fmt.Errorf("scanning deployment: %w", err)
		}
		d.Kind = mission.SensorKind(kind)
		deployments = append(deployments, d)
	}
	return deployments, rows.Err()
}

const selectDeploymentSQL = `
SELECT id, mission_id, sensor_name, sensor_kind, instance
FROM sensor_deployments
WHERE mission_id = ? AND sensor_name = ? AND instance = ?`

// FindDeployment resolves a deployment by its natural key. Returns
// ErrNotFound if the sensor was not provisioned on the mission.
func (s *Store) FindDeployment(ctx context.Context, missionID int64, sensorName string, instance int) (*mission.SensorDeployment, error) {
	db, err := s.getReadDB()
	if err != nil {
		return nil, fmt.Errorf("getting read connection: %w", err)
	}

	var d mission.SensorDeployment
	var kind string
	err = db.QueryRowContext(ctx, selectDeploymentSQL, missionID, sensorName, instance).
		Scan(&d.ID, &d.MissionID, &d.SensorName, &kind, &d.Instance)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("deployment %s/%d on mission %d: %w", sensorName, instance, missionID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("scanning deployment: %w", err)
	}
	d.Kind = mission.SensorKind(kind)
	return &d, nil
}

const insertLogFileSQL = `
INSERT INTO log_files (mission_id, path, created_at, already_parsed)
VALUES (?, ?, ?, ?)`

// CreateLogFile registers a raw binary log against a mission.
func (s *Store) CreateLogFile(ctx context.Context, lf *mission.LogFile) (int64, error) {
	if s.Simulated() {
		return 0, nil
	}

	db, err := s.getWriteDB()
	if err != nil {
		return 0, fmt.Errorf("getting write connection: %w", err)
	}

	result, err := db.ExecContext(ctx, insertLogFileSQL, lf.MissionID, lf.Path, lf.CreatedAt.UTC(), lf.AlreadyParsed)
	if err != nil {
		return 0, fmt.Errorf("inserting log file: %w", err)
	}
	return result.LastInsertId()
}

const selectLogFileSQL = `
SELECT id, mission_id, path, created_at, already_parsed
FROM log_files
WHERE id = ?`

// LogFile returns a log file by its ID.
func (s *Store) LogFile(ctx context.Context, id int64) (*mission.LogFile, error) {
	db, err := s.getReadDB()
	if err != nil {
		return nil, fmt.Errorf("getting read connection: %w", err)
	}

	var lf mission.LogFile
	err = db.QueryRowContext(ctx, selectLogFileSQL, id).
		Scan(&lf.ID, &lf.MissionID, &lf.Path, &lf.CreatedAt, &lf.AlreadyParsed)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("log file %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("scanning log file: %w", err)
	}
	lf.CreatedAt = lf.CreatedAt.UTC()
	return &lf, nil
}

const selectLogFilesSQL = `
SELECT id, mission_id, path, created_at, already_parsed
FROM log_files
WHERE already_parsed = 0 OR ?
ORDER BY id`

// LogFiles returns log files pending ingestion, or every log file when
// includeParsed is set (the --force path).
func (s *Store) LogFiles(ctx context.Context, includeParsed bool) (files []mission.LogFile, err error) {
	db, err := s.getReadDB()
	if err != nil {
		return nil, fmt.Errorf("getting read connection: %w", err)
	}

	rows, err := db.QueryContext(ctx, selectLogFilesSQL, includeParsed)
	if err != nil {
		return nil, fmt.Errorf("querying log files: %w", err)
	}
	defer closeWithError(rows, &err)

	for rows.Next() {
		var lf mission.LogFile
		if err = rows.Scan(&lf.ID, &lf.MissionID, &lf.Path, &lf.CreatedAt, &lf.AlreadyParsed); err != nil {
			return nil, fmt.Errorf("scanning log file: %w", err)
		}
		lf.CreatedAt = lf.CreatedAt.UTC()
		files = append(files, lf)
	}
	return files, rows.Err()
}

const markLogFileParsedSQL = `
UPDATE log_files SET already_parsed = 1 WHERE id = ?`

// MarkLogFileParsed flags a log file as fully ingested so later runs
// skip it unless forced.
func (s *Store) MarkLogFileParsed(ctx context.Context, id int64) error {
	if s.Simulated() {
		return nil
	}

	db, err := s.getWriteDB()
	if err != nil {
		return fmt.Errorf("getting write connection: %w", err)
	}

	if _, err = db.ExecContext(ctx, markLogFileParsedSQL, id); err != nil {
		return fmt.Errorf("marking log file parsed: %w", err)
	}
	return nil
}
