package ingest

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"io"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/hidrolab/rovsurvey/internal/mission"
)

const (
	typeFMT  = 0x80
	typeAHR2 = 0x10
	typeIMU  = 0x11
	typeMAG  = 0x12
	typeBARO = 0x13
)

func fixedString(s string, size int) []byte {
	b := make([]byte, size)
	copy(b, s)
	return b
}

func fmtRecord(msgType byte, length byte, name, format, columns string) []byte {
	var buf bytes.Buffer
	buf.Write([]byte{0xA3, 0x95, typeFMT})
	buf.WriteByte(msgType)
	buf.WriteByte(length)
	buf.Write(fixedString(name, 4))
	buf.Write(fixedString(format, 16))
	buf.Write(fixedString(columns, 64))
	return buf.Bytes()
}

func dataRecord(msgType byte, payload []byte) []byte {
	return append([]byte{0xA3, 0x95, msgType}, payload...)
}

func u64le(v uint64) []byte {
	b := make([]byte, 8)
	binary.LittleEndian.PutUint64(b, v)
	return b
}

func f32le(v float32) []byte {
	b := make([]byte, 4)
	binary.LittleEndian.PutUint32(b, math.Float32bits(v))
	return b
}

func ahr2Record(timeUS uint64, roll, pitch, yaw, alt float32) []byte {
	var p bytes.Buffer
	p.Write(u64le(timeUS))
	p.Write(f32le(roll))
	p.Write(f32le(pitch))
	p.Write(f32le(yaw))
	p.Write(f32le(alt))
	return dataRecord(typeAHR2, p.Bytes())
}

func imuRecord(timeUS uint64, instance byte, values [6]float32) []byte {
	var p bytes.Buffer
	p.Write(u64le(timeUS))
	p.WriteByte(instance)
	for _, v := range values {
		p.Write(f32le(v))
	}
	return dataRecord(typeIMU, p.Bytes())
}

func magRecord(timeUS uint64, instance byte, x, y, z float32) []byte {
	var p bytes.Buffer
	p.Write(u64le(timeUS))
	p.WriteByte(instance)
	p.Write(f32le(x))
	p.Write(f32le(y))
	p.Write(f32le(z))
	return dataRecord(typeMAG, p.Bytes())
}

func baroRecord(timeUS uint64, instance byte, press, temp float32) []byte {
	var p bytes.Buffer
	p.Write(u64le(timeUS))
	p.WriteByte(instance)
	p.Write(f32le(press))
	p.Write(f32le(temp))
	return dataRecord(typeBARO, p.Bytes())
}

func logPreamble() []byte {
	var buf bytes.Buffer
	buf.Write(fmtRecord(typeAHR2, 27, "AHR2", "Qffff", "TimeUS,Roll,Pitch,Yaw,Alt"))
	buf.Write(fmtRecord(typeIMU, 36, "IMU", "QBffffff", "TimeUS,I,GyrX,GyrY,GyrZ,AccX,AccY,AccZ"))
	buf.Write(fmtRecord(typeMAG, 24, "MAG", "QBfff", "TimeUS,I,MagX,MagY,MagZ"))
	buf.Write(fmtRecord(typeBARO, 20, "BARO", "QBff", "TimeUS,I,Press,Temp"))
	return buf.Bytes()
}

type memWriter struct {
	nav      []mission.NavSample
	imu      []mission.ImuSample
	compass  []mission.CompassSample
	pressure []mission.PressureSample

	failNav bool
}

var errFlush = errors.New("flush refused")

func (w *memWriter) InsertNavSamples(_ context.Context, s []mission.NavSample) error {
	if w.failNav {
		return errFlush
	}
	w.nav = append(w.nav, s...)
	return nil
}

func (w *memWriter) InsertImuSamples(_ context.Context, s []mission.ImuSample) error {
	w.imu = append(w.imu, s...)
	return nil
}

func (w *memWriter) InsertCompassSamples(_ context.Context, s []mission.CompassSample) error {
	w.compass = append(w.compass, s...)
	return nil
}

func (w *memWriter) InsertPressureSamples(_ context.Context, s []mission.PressureSample) error {
	w.pressure = append(w.pressure, s...)
	return nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func writeLog(t *testing.T, records ...[]byte) string {
	t.Helper()

	var buf bytes.Buffer
	buf.Write(logPreamble())
	for _, r := range records {
		buf.Write(r)
	}
	path := filepath.Join(t.TempDir(), "00000001.BIN")
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatalf("writing log fixture: %v", err)
	}
	return path
}

func testMission() *mission.Mission {
	start := time.Date(2023, 7, 14, 9, 0, 0, 0, time.UTC)
	end := start.Add(time.Hour)
	return &mission.Mission{ID: 1, StartTime: start, EndTime: &end}
}

func testTable() *DeploymentTable {
	return NewDeploymentTable([]mission.SensorDeployment{
		{ID: 11, MissionID: 1, Kind: mission.SensorIMU, Instance: 0},
		{ID: 12, MissionID: 1, Kind: mission.SensorCompass, Instance: 0},
		{ID: 13, MissionID: 1, Kind: mission.SensorCompass, Instance: 1},
		{ID: 14, MissionID: 1, Kind: mission.SensorPressure, Instance: 1},
	})
}

func TestParseFileRoutesSamples(t *testing.T) {
	m := testMission()
	path := writeLog(t,
		ahr2Record(1_000_000, 1.5, -2.5, 180, -12.5),
		imuRecord(1_000_000, 0, [6]float32{0.01, 0.02, 0.03, 0.1, 0.2, 9.8}),
		magRecord(1_000_000, 1, 250, -120, 300),
		baroRecord(1_000_000, 1, 202650, 18.5),
	)
	lf := &mission.LogFile{ID: 5, MissionID: m.ID, Path: path, CreatedAt: m.StartTime}

	w := &memWriter{}
	p := NewLogParser(w, discardLogger())

	stats, err := p.ParseFile(context.Background(), lf, m, testTable())
	if err != nil {
		t.Fatalf("ParseFile() error = %v", err)
	}

	if stats.Total != 4 || stats.Saved != 4 || stats.Errors != 0 {
		t.Errorf("stats = %+v, want 4 total, 4 saved, 0 errors", stats)
	}

	if len(w.nav) != 1 {
		t.Fatalf("nav samples = %d, want 1", len(w.nav))
	}
	nav := w.nav[0]
	wantTS := m.StartTime.Add(time.Second)
	if !nav.Timestamp.Equal(wantTS) {
		t.Errorf("nav timestamp = %v, want %v", nav.Timestamp, wantTS)
	}
	if nav.DepthM == nil || math.Abs(*nav.DepthM-12.5) > 1e-6 {
		t.Errorf("nav depth = %v, want 12.5", nav.DepthM)
	}
	if nav.RollDeg == nil || math.Abs(*nav.RollDeg-1.5) > 1e-6 {
		t.Errorf("nav roll = %v, want 1.5", nav.RollDeg)
	}

	if len(w.imu) != 1 || w.imu[0].DeploymentID != 11 {
		t.Errorf("imu samples = %+v, want one for deployment 11", w.imu)
	}
	if len(w.compass) != 1 {
		t.Fatalf("compass samples = %d, want 1", len(w.compass))
	}
	// Milligauss on the wire, microtesla in the store.
	if math.Abs(w.compass[0].MxUT-25) > 1e-4 {
		t.Errorf("compass MxUT = %v, want 25", w.compass[0].MxUT)
	}
	if len(w.pressure) != 1 || w.pressure[0].DeploymentID != 14 {
		t.Errorf("pressure samples = %+v, want one for deployment 14", w.pressure)
	}
	if w.pressure[0].TemperatureC == nil || math.Abs(*w.pressure[0].TemperatureC-18.5) > 1e-4 {
		t.Errorf("pressure temperature = %v, want 18.5", w.pressure[0].TemperatureC)
	}
}

func TestParseFileRequiresMissionEnd(t *testing.T) {
	m := testMission()
	m.EndTime = nil
	lf := &mission.LogFile{ID: 5, MissionID: m.ID, Path: "unused.BIN", CreatedAt: m.StartTime}

	p := NewLogParser(&memWriter{}, discardLogger())
	if _, err := p.ParseFile(context.Background(), lf, m, testTable()); !errors.Is(err, ErrMissingMissionBound) {
		t.Fatalf("ParseFile() error = %v, want ErrMissingMissionBound", err)
	}
}

func TestParseFileFiltersWindow(t *testing.T) {
	m := testMission()
	// One sample in window, one two hours past the end.
	path := writeLog(t,
		ahr2Record(1_000_000, 0, 0, 0, -5),
		ahr2Record(uint64(3*time.Hour/time.Microsecond), 0, 0, 0, -6),
	)
	lf := &mission.LogFile{ID: 5, MissionID: m.ID, Path: path, CreatedAt: m.StartTime}

	w := &memWriter{}
	p := NewLogParser(w, discardLogger())

	stats, err := p.ParseFile(context.Background(), lf, m, testTable())
	if err != nil {
		t.Fatalf("ParseFile() error = %v", err)
	}
	if stats.Filtered != 1 || stats.Saved != 1 {
		t.Errorf("stats = %+v, want 1 filtered, 1 saved", stats)
	}
	if len(w.nav) != 1 {
		t.Errorf("nav samples = %d, want 1", len(w.nav))
	}
}

func TestParseFileDropsDisallowedInstances(t *testing.T) {
	m := testMission()
	path := writeLog(t,
		imuRecord(1_000_000, 2, [6]float32{}),   // instance outside the allow-list
		baroRecord(1_000_000, 0, 101325, 20),    // internal barometer, not deployed
		magRecord(1_000_000, 1, 100, 100, 100),  // allowed
	)
	lf := &mission.LogFile{ID: 5, MissionID: m.ID, Path: path, CreatedAt: m.StartTime}

	w := &memWriter{}
	p := NewLogParser(w, discardLogger())

	stats, err := p.ParseFile(context.Background(), lf, m, testTable())
	if err != nil {
		t.Fatalf("ParseFile() error = %v", err)
	}
	if stats.Dropped != 2 || stats.Saved != 1 {
		t.Errorf("stats = %+v, want 2 dropped, 1 saved", stats)
	}
	if len(w.imu) != 0 || len(w.pressure) != 0 || len(w.compass) != 1 {
		t.Errorf("routed samples = imu %d, pressure %d, compass %d, want 0, 0, 1",
			len(w.imu), len(w.pressure), len(w.compass))
	}
}

func TestParseFileCountsFailedFlushes(t *testing.T) {
	m := testMission()
	path := writeLog(t, ahr2Record(1_000_000, 0, 0, 0, -5))
	lf := &mission.LogFile{ID: 5, MissionID: m.ID, Path: path, CreatedAt: m.StartTime}

	w := &memWriter{failNav: true}
	p := NewLogParser(w, discardLogger())

	stats, err := p.ParseFile(context.Background(), lf, m, testTable())
	if err != nil {
		t.Fatalf("ParseFile() error = %v", err)
	}
	if stats.Errors == 0 {
		t.Error("stats.Errors = 0, want failed final flush counted")
	}
}

func TestDeploymentTableLookup(t *testing.T) {
	table := testTable()

	id, ok := table.Lookup(mission.SensorCompass, 1)
	if !ok || id != 13 {
		t.Errorf("Lookup(compass, 1) = %d, %v, want 13, true", id, ok)
	}
	if _, ok := table.Lookup(mission.SensorIMU, 2); ok {
		t.Error("Lookup(imu, 2) = true, want false")
	}
}
