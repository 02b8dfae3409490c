package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/hidrolab/rovsurvey/internal/mission"
)

func newTestStore(t *testing.T, options ...func(*Store)) *Store {
	t.Helper()

	s := New(filepath.Join(t.TempDir(), "survey.db"), options...)
	t.Cleanup(func() {
		if err := s.Close(); err != nil {
			t.Errorf("Close() error = %v", err)
		}
	})
	return s
}

func seedMission(t *testing.T, s *Store, start, end time.Time) int64 {
	t.Helper()

	id, err := s.CreateMission(context.Background(), &mission.Mission{
		StartTime: start,
		EndTime:   &end,
		Location:  "Caniço",
	})
	if err != nil {
		t.Fatalf("CreateMission() error = %v", err)
	}
	return id
}

func seedDeployment(t *testing.T, s *Store, missionID int64, name string, kind mission.SensorKind, instance int) int64 {
	t.Helper()

	id, err := s.CreateDeployment(context.Background(), &mission.SensorDeployment{
		MissionID:  missionID,
		SensorName: name,
		Kind:       kind,
		Instance:   instance,
	})
	if err != nil {
		t.Fatalf("CreateDeployment() error = %v", err)
	}
	return id
}

func TestMissionRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	start := time.Date(2023, 7, 14, 9, 0, 0, 0, time.UTC)
	end := start.Add(2 * time.Hour)
	id := seedMission(t, s, start, end)

	m, err := s.Mission(ctx, id)
	if err != nil {
		t.Fatalf("Mission() error = %v", err)
	}
	if !m.StartTime.Equal(start) {
		t.Errorf("StartTime = %v, want %v", m.StartTime, start)
	}
	if m.EndTime == nil || !m.EndTime.Equal(end) {
		t.Errorf("EndTime = %v, want %v", m.EndTime, end)
	}
	if m.Location != "Caniço" {
		t.Errorf("Location = %q, want %q", m.Location, "Caniço")
	}

	if _, err = s.Mission(ctx, id+100); !errors.Is(err, ErrNotFound) {
		t.Errorf("Mission(missing) error = %v, want ErrNotFound", err)
	}
}

func TestMissionsCovering(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	start := time.Date(2023, 7, 14, 9, 0, 0, 0, time.UTC)
	id := seedMission(t, s, start, start.Add(time.Hour))
	seedMission(t, s, start.Add(6*time.Hour), start.Add(7*time.Hour))

	covering, err := s.MissionsCovering(ctx, start.Add(30*time.Minute))
	if err != nil {
		t.Fatalf("MissionsCovering() error = %v", err)
	}
	if len(covering) != 1 || covering[0].ID != id {
		t.Fatalf("MissionsCovering() = %v, want single mission %d", covering, id)
	}

	covering, err = s.MissionsCovering(ctx, start.Add(3*time.Hour))
	if err != nil {
		t.Fatalf("MissionsCovering() error = %v", err)
	}
	if len(covering) != 0 {
		t.Errorf("MissionsCovering(gap) = %v, want none", covering)
	}
}

func TestInsertNavSamplesIdempotent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	start := time.Date(2023, 7, 14, 9, 0, 0, 0, time.UTC)
	id := seedMission(t, s, start, start.Add(time.Hour))

	depth := 12.5
	samples := []mission.NavSample{
		{MissionID: id, Timestamp: start, DepthM: &depth},
		{MissionID: id, Timestamp: start.Add(time.Second), DepthM: &depth},
	}
	if err := s.InsertNavSamples(ctx, samples); err != nil {
		t.Fatalf("InsertNavSamples() error = %v", err)
	}

	// A second pass over the same log must not duplicate rows.
	if err := s.InsertNavSamples(ctx, samples); err != nil {
		t.Fatalf("InsertNavSamples() retry error = %v", err)
	}

	got, err := s.NavSamples(ctx, id)
	if err != nil {
		t.Fatalf("NavSamples() error = %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("NavSamples() returned %d rows, want 2", len(got))
	}
	if got[0].DepthM == nil || *got[0].DepthM != depth {
		t.Errorf("DepthM = %v, want %v", got[0].DepthM, depth)
	}
	if got[0].RollDeg != nil {
		t.Errorf("RollDeg = %v, want nil", got[0].RollDeg)
	}
}

func TestUpdateCorrectedDepths(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	start := time.Date(2023, 7, 14, 9, 0, 0, 0, time.UTC)
	id := seedMission(t, s, start, start.Add(time.Hour))

	depth := 10.0
	if err := s.InsertNavSamples(ctx, []mission.NavSample{
		{MissionID: id, Timestamp: start, DepthM: &depth},
	}); err != nil {
		t.Fatalf("InsertNavSamples() error = %v", err)
	}

	got, err := s.NavSamples(ctx, id)
	if err != nil {
		t.Fatalf("NavSamples() error = %v", err)
	}
	if err := s.UpdateCorrectedDepths(ctx, []DepthUpdate{
		{NavSampleID: got[0].ID, CorrectedDepthM: 9.4},
	}); err != nil {
		t.Fatalf("UpdateCorrectedDepths() error = %v", err)
	}

	got, err = s.NavSamples(ctx, id)
	if err != nil {
		t.Fatalf("NavSamples() error = %v", err)
	}
	if got[0].CorrectedDepthM == nil || *got[0].CorrectedDepthM != 9.4 {
		t.Errorf("CorrectedDepthM = %v, want 9.4", got[0].CorrectedDepthM)
	}
}

func TestUpsertMediaAssetConverges(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	start := time.Date(2023, 7, 14, 9, 0, 0, 0, time.UTC)
	missionID := seedMission(t, s, start, start.Add(time.Hour))
	depID := seedDeployment(t, s, missionID, "BR_LowLightCamera", mission.SensorCamera, 0)

	fps := 30.0
	asset := &mission.MediaAsset{
		DeploymentID: depID,
		Type:         mission.MediaVideo,
		FilePath:     "camera_1/main_rec_1689325200.mkv",
		StartTime:    start,
		EndTime:      start.Add(10 * time.Minute),
		FPS:          &fps,
	}
	if err := s.UpsertMediaAsset(ctx, asset); err != nil {
		t.Fatalf("UpsertMediaAsset() error = %v", err)
	}
	firstID := asset.ID
	if firstID == 0 {
		t.Fatal("UpsertMediaAsset() did not set the asset ID")
	}

	fps2 := 29.5
	asset.FPS = &fps2
	asset.EndTime = start.Add(12 * time.Minute)
	if err := s.UpsertMediaAsset(ctx, asset); err != nil {
		t.Fatalf("UpsertMediaAsset() retry error = %v", err)
	}
	if asset.ID != firstID {
		t.Errorf("retry allocated a new ID %d, want %d", asset.ID, firstID)
	}

	assets, err := s.MediaAssets(ctx, missionID)
	if err != nil {
		t.Fatalf("MediaAssets() error = %v", err)
	}
	if len(assets) != 1 {
		t.Fatalf("MediaAssets() returned %d rows, want 1", len(assets))
	}
	if assets[0].FPS == nil || *assets[0].FPS != fps2 {
		t.Errorf("FPS = %v, want %v", assets[0].FPS, fps2)
	}
}

func TestReplaceFrameIndex(t *testing.T) {
	s := newTestStore(t, WithBatchSize(2))
	ctx := context.Background()

	start := time.Date(2023, 7, 14, 9, 0, 0, 0, time.UTC)
	missionID := seedMission(t, s, start, start.Add(time.Hour))
	depID := seedDeployment(t, s, missionID, "SonoptixECHO", mission.SensorSonar, 0)

	asset := &mission.MediaAsset{
		DeploymentID: depID,
		Type:         mission.MediaSonar,
		FilePath:     "sonar",
		StartTime:    start,
		EndTime:      start.Add(time.Minute),
	}
	if err := s.UpsertMediaAsset(ctx, asset); err != nil {
		t.Fatalf("UpsertMediaAsset() error = %v", err)
	}

	frames := make([]mission.FrameIndex, 5)
	for i := range frames {
		frames[i] = mission.FrameIndex{
			FrameNumber: i,
			Timestamp:   start.Add(time.Duration(i) * time.Second),
		}
	}
	if err := s.ReplaceFrameIndex(ctx, asset.ID, frames); err != nil {
		t.Fatalf("ReplaceFrameIndex() error = %v", err)
	}

	// Re-indexing with fewer frames must replace, not append.
	if err := s.ReplaceFrameIndex(ctx, asset.ID, frames[:3]); err != nil {
		t.Fatalf("ReplaceFrameIndex() retry error = %v", err)
	}

	n, err := s.FrameCount(ctx, asset.ID)
	if err != nil {
		t.Fatalf("FrameCount() error = %v", err)
	}
	if n != 3 {
		t.Errorf("FrameCount() = %d, want 3", n)
	}
}

func TestRefreshAssetDepthStats(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	start := time.Date(2023, 7, 14, 9, 0, 0, 0, time.UTC)
	missionID := seedMission(t, s, start, start.Add(time.Hour))
	depID := seedDeployment(t, s, missionID, "BR_LowLightCamera", mission.SensorCamera, 0)

	d1, d2 := 8.0, 14.0
	corrected := 7.2
	if err := s.InsertNavSamples(ctx, []mission.NavSample{
		{MissionID: missionID, Timestamp: start, DepthM: &d1},
		{MissionID: missionID, Timestamp: start.Add(time.Second), DepthM: &d2},
	}); err != nil {
		t.Fatalf("InsertNavSamples() error = %v", err)
	}
	nav, err := s.NavSamples(ctx, missionID)
	if err != nil {
		t.Fatalf("NavSamples() error = %v", err)
	}
	if err := s.UpdateCorrectedDepths(ctx, []DepthUpdate{
		{NavSampleID: nav[0].ID, CorrectedDepthM: corrected},
	}); err != nil {
		t.Fatalf("UpdateCorrectedDepths() error = %v", err)
	}

	asset := &mission.MediaAsset{
		DeploymentID: depID,
		Type:         mission.MediaVideo,
		FilePath:     "camera_1/main_rec_1689325200.mkv",
		StartTime:    start,
		EndTime:      start.Add(time.Minute),
	}
	if err := s.UpsertMediaAsset(ctx, asset); err != nil {
		t.Fatalf("UpsertMediaAsset() error = %v", err)
	}
	if err := s.ReplaceFrameIndex(ctx, asset.ID, []mission.FrameIndex{
		{FrameNumber: 0, Timestamp: start, NavSampleID: &nav[0].ID},
		{FrameNumber: 1, Timestamp: start.Add(time.Second), NavSampleID: &nav[1].ID},
	}); err != nil {
		t.Fatalf("ReplaceFrameIndex() error = %v", err)
	}

	if err := s.RefreshAssetDepthStats(ctx, asset.ID); err != nil {
		t.Fatalf("RefreshAssetDepthStats() error = %v", err)
	}

	assets, err := s.MediaAssets(ctx, missionID)
	if err != nil {
		t.Fatalf("MediaAssets() error = %v", err)
	}
	// The corrected depth wins over the raw one where it exists.
	if assets[0].MinDepthM == nil || *assets[0].MinDepthM != corrected {
		t.Errorf("MinDepthM = %v, want %v", assets[0].MinDepthM, corrected)
	}
	if assets[0].MaxDepthM == nil || *assets[0].MaxDepthM != d2 {
		t.Errorf("MaxDepthM = %v, want %v", assets[0].MaxDepthM, d2)
	}
}

func TestTideLevels(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	base := time.Date(2023, 7, 14, 0, 0, 0, 0, time.UTC)
	levels := []mission.TideLevel{
		{Port: "funchal", Time: base, HeightM: 1.0},
		{Port: "funchal", Time: base.Add(time.Hour), HeightM: 0.2},
		{Port: "funchal", Time: base.Add(2 * time.Hour), HeightM: 0.8},
	}
	if err := s.InsertTideLevels(ctx, levels); err != nil {
		t.Fatalf("InsertTideLevels() error = %v", err)
	}
	if err := s.InsertTideLevels(ctx, levels); err != nil {
		t.Fatalf("InsertTideLevels() retry error = %v", err)
	}

	got, err := s.TideLevels(ctx, "funchal", base, base.Add(time.Hour))
	if err != nil {
		t.Fatalf("TideLevels() error = %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("TideLevels() returned %d rows, want 2", len(got))
	}
	if got[0].HeightM != 1.0 || got[1].HeightM != 0.2 {
		t.Errorf("TideLevels() heights = %v, %v, want 1.0, 0.2", got[0].HeightM, got[1].HeightM)
	}

	ok, err := s.HasTideLevels(ctx, "funchal", base, base.Add(2*time.Hour))
	if err != nil {
		t.Fatalf("HasTideLevels() error = %v", err)
	}
	if !ok {
		t.Error("HasTideLevels() = false, want true")
	}

	deleted, err := s.DeleteTideLevels(ctx, "funchal", base, base.Add(2*time.Hour))
	if err != nil {
		t.Fatalf("DeleteTideLevels() error = %v", err)
	}
	if deleted != 3 {
		t.Errorf("DeleteTideLevels() = %d, want 3", deleted)
	}
}

func TestSimulateSkipsWrites(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "survey.db")
	ctx := context.Background()

	start := time.Date(2023, 7, 14, 9, 0, 0, 0, time.UTC)

	// Seed real data first so the simulated store has something to read.
	seed := New(dbPath)
	missionID := seedMission(t, seed, start, start.Add(time.Hour))
	if err := seed.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	s := New(dbPath, WithRunMode(RunSimulate))
	defer s.Close()

	id, err := s.CreateMission(ctx, &mission.Mission{StartTime: start})
	if err != nil {
		t.Fatalf("CreateMission() error = %v", err)
	}
	if id != 0 {
		t.Errorf("simulated CreateMission() = %d, want 0", id)
	}

	depth := 5.0
	if err := s.InsertNavSamples(ctx, []mission.NavSample{
		{MissionID: missionID, Timestamp: start, DepthM: &depth},
	}); err != nil {
		t.Fatalf("simulated InsertNavSamples() error = %v", err)
	}

	missions, err := s.Missions(ctx)
	if err != nil {
		t.Fatalf("Missions() error = %v", err)
	}
	if len(missions) != 1 {
		t.Errorf("Missions() returned %d rows after simulated writes, want 1", len(missions))
	}
	nav, err := s.NavSamples(ctx, missionID)
	if err != nil {
		t.Fatalf("NavSamples() error = %v", err)
	}
	if len(nav) != 0 {
		t.Errorf("NavSamples() returned %d rows after simulated insert, want 0", len(nav))
	}
}

func TestLogFileLifecycle(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	start := time.Date(2023, 7, 14, 9, 0, 0, 0, time.UTC)
	missionID := seedMission(t, s, start, start.Add(time.Hour))

	id, err := s.CreateLogFile(ctx, &mission.LogFile{
		MissionID: missionID,
		Path:      "logs/00000012.BIN",
		CreatedAt: start,
	})
	if err != nil {
		t.Fatalf("CreateLogFile() error = %v", err)
	}

	pending, err := s.LogFiles(ctx, false)
	if err != nil {
		t.Fatalf("LogFiles() error = %v", err)
	}
	if len(pending) != 1 {
		t.Fatalf("LogFiles(pending) returned %d rows, want 1", len(pending))
	}

	if err := s.MarkLogFileParsed(ctx, id); err != nil {
		t.Fatalf("MarkLogFileParsed() error = %v", err)
	}

	pending, err = s.LogFiles(ctx, false)
	if err != nil {
		t.Fatalf("LogFiles() error = %v", err)
	}
	if len(pending) != 0 {
		t.Errorf("LogFiles(pending) returned %d rows after parse, want 0", len(pending))
	}

	all, err := s.LogFiles(ctx, true)
	if err != nil {
		t.Fatalf("LogFiles() error = %v", err)
	}
	if len(all) != 1 || !all[0].AlreadyParsed {
		t.Errorf("LogFiles(all) = %+v, want one parsed file", all)
	}
}
