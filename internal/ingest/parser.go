// Package ingest decodes autopilot binary logs and routes the decoded
// messages into typed, batch-persisted samples. Each log file is one
// unit of work: its messages are timestamped against the file's
// creation time, filtered to the mission window, routed to the
// deployment that produced them and flushed in batches.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/hidrolab/rovsurvey/internal/dataflash"
	"github.com/hidrolab/rovsurvey/internal/mission"
)

// ErrMissingMissionBound is returned when the mission has no end time.
// The window filter needs both bounds, so such missions must be closed
// out before their logs can be parsed.
var ErrMissingMissionBound = errors.New("ingest: mission has no end time")

const defaultFlushLimit = 2000

// Stats summarises one log file's parse.
type Stats struct {
	Total    int            // messages decoded
	Filtered int            // outside the mission window
	Dropped  int            // no deployment for the sensor instance
	Saved    int            // routed into a sample buffer
	Errors   int            // malformed messages and failed flushes
	Skipped  int            // corrupt records resynced past by the reader
	ByType   map[string]int // saved counts per message name
}

// Option configures a LogParser.
type Option func(*LogParser)

// WithFlushLimit sets how many samples a per-type buffer holds before
// it is flushed to the store.
func WithFlushLimit(n int) Option {
	return func(p *LogParser) {
		if n > 0 {
			p.flushLimit = n
		}
	}
}

// WithAllowedInstances restricts which sensor instances of a kind are
// ingested. Messages from other instances are counted as dropped.
func WithAllowedInstances(kind mission.SensorKind, instances []int) Option {
	return func(p *LogParser) {
		allowed := make(map[int]bool, len(instances))
		for _, i := range instances {
			allowed[i] = true
		}
		p.allowed[kind] = allowed
	}
}

// LogParser turns autopilot binary logs into stored samples.
type LogParser struct {
	writer     SampleWriter
	logger     *slog.Logger
	flushLimit int
	allowed    map[mission.SensorKind]map[int]bool
}

// NewLogParser returns a parser writing through the given writer. The
// default instance allow-lists match the vehicle's wiring: one IMU, two
// magnetometers and the external water-pressure barometer.
func NewLogParser(writer SampleWriter, logger *slog.Logger, options ...Option) *LogParser {
	p := &LogParser{
		writer:     writer,
		logger:     logger,
		flushLimit: defaultFlushLimit,
		allowed: map[mission.SensorKind]map[int]bool{
			mission.SensorIMU:      {0: true},
			mission.SensorCompass:  {0: true, 1: true},
			mission.SensorPressure: {1: true},
		},
	}
	for _, option := range options {
		option(p)
	}
	return p
}

// ParseFile decodes one binary log and persists its samples. Record
// level problems are counted and skipped; only open and stream setup
// failures abort the file.
func (p *LogParser) ParseFile(ctx context.Context, lf *mission.LogFile, m *mission.Mission, table *DeploymentTable) (*Stats, error) {
	if m.EndTime == nil {
		return nil, fmt.Errorf("mission %d: %w", m.ID, ErrMissingMissionBound)
	}

	f, err := os.Open(lf.Path)
	if err != nil {
		return nil, fmt.Errorf("opening log file: %w", err)
	}
	defer f.Close()

	stats := &Stats{ByType: make(map[string]int)}
	acc := newAccumulator(p.writer, p.flushLimit)
	r := dataflash.NewReader(f)

	for {
		if err := ctx.Err(); err != nil {
			return stats, err
		}

		msg, err := r.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return stats, fmt.Errorf("reading log stream: %w", err)
		}
		stats.Total++

		ts := p.resolveTimestamp(lf, msg)
		if ts.Before(m.StartTime) || ts.After(*m.EndTime) {
			stats.Filtered++
			continue
		}

		if err := p.route(ctx, acc, stats, lf, m, table, msg, ts); err != nil {
			stats.Errors++
			p.logger.Warn("flush failed, continuing",
				slog.String("message", msg.Name()),
				slog.Any("error", err))
		}
	}

	if err := acc.flushAll(ctx); err != nil {
		stats.Errors++
		p.logger.Warn("final flush failed", slog.Any("error", err))
	}

	stats.Skipped = r.SkippedRecords()
	return stats, nil
}

// resolveTimestamp converts the message's boot-relative clock to an
// absolute time anchored at the file's creation. Messages with no
// usable clock inherit the creation time itself.
func (p *LogParser) resolveTimestamp(lf *mission.LogFile, msg *dataflash.Message) time.Time {
	us, ok := msg.TimeUS()
	if !ok {
		return lf.CreatedAt
	}
	return lf.CreatedAt.Add(time.Duration(us) * time.Microsecond)
}

func (p *LogParser) route(ctx context.Context, acc *accumulator, stats *Stats, lf *mission.LogFile, m *mission.Mission, table *DeploymentTable, msg *dataflash.Message, ts time.Time) error {
	switch msg.Name() {
	case "AHR2":
		return p.routeNav(ctx, acc, stats, m, msg, ts)
	case "IMU":
		return p.routeImu(ctx, acc, stats, lf, table, msg, ts)
	case "MAG":
		return p.routeCompass(ctx, acc, stats, lf, table, msg, ts)
	case "BARO":
		return p.routePressure(ctx, acc, stats, lf, table, msg, ts)
	}
	return nil
}

func (p *LogParser) routeNav(ctx context.Context, acc *accumulator, stats *Stats, m *mission.Mission, msg *dataflash.Message, ts time.Time) error {
	s := mission.NavSample{MissionID: m.ID, Timestamp: ts}
	if v, ok := msg.Float("Roll"); ok {
		s.RollDeg = &v
	}
	if v, ok := msg.Float("Pitch"); ok {
		s.PitchDeg = &v
	}
	if v, ok := msg.Float("Yaw"); ok {
		s.YawDeg = &v
	}
	// The autopilot reports altitude; underwater that is depth with
	// the sign flipped.
	if v, ok := msg.Float("Alt"); ok {
		depth := -v
		s.DepthM = &depth
	}

	stats.Saved++
	stats.ByType[msg.Name()]++
	return acc.addNav(ctx, s)
}

func (p *LogParser) routeImu(ctx context.Context, acc *accumulator, stats *Stats, lf *mission.LogFile, table *DeploymentTable, msg *dataflash.Message, ts time.Time) error {
	depID, ok := p.resolveDeployment(table, mission.SensorIMU, msg)
	if !ok {
		stats.Dropped++
		return nil
	}

	s := mission.ImuSample{LogFileID: lf.ID, DeploymentID: depID, Timestamp: ts}
	fields := []struct {
		column string
		dst    *float64
	}{
		{"GyrX", &s.GxRadS}, {"GyrY", &s.GyRadS}, {"GyrZ", &s.GzRadS},
		{"AccX", &s.AxMS2}, {"AccY", &s.AyMS2}, {"AccZ", &s.AzMS2},
	}
	for _, f := range fields {
		v, ok := msg.Float(f.column)
		if !ok {
			stats.Errors++
			return nil
		}
		*f.dst = v
	}

	stats.Saved++
	stats.ByType[msg.Name()]++
	return acc.addImu(ctx, s)
}

func (p *LogParser) routeCompass(ctx context.Context, acc *accumulator, stats *Stats, lf *mission.LogFile, table *DeploymentTable, msg *dataflash.Message, ts time.Time) error {
	depID, ok := p.resolveDeployment(table, mission.SensorCompass, msg)
	if !ok {
		stats.Dropped++
		return nil
	}

	s := mission.CompassSample{LogFileID: lf.ID, DeploymentID: depID, Timestamp: ts}
	fields := []struct {
		column string
		dst    *float64
	}{
		{"MagX", &s.MxUT}, {"MagY", &s.MyUT}, {"MagZ", &s.MzUT},
	}
	for _, f := range fields {
		v, ok := msg.Float(f.column)
		if !ok {
			stats.Errors++
			return nil
		}
		// Field strength arrives in milligauss.
		*f.dst = v / 10
	}

	stats.Saved++
	stats.ByType[msg.Name()]++
	return acc.addCompass(ctx, s)
}

func (p *LogParser) routePressure(ctx context.Context, acc *accumulator, stats *Stats, lf *mission.LogFile, table *DeploymentTable, msg *dataflash.Message, ts time.Time) error {
	depID, ok := p.resolveDeployment(table, mission.SensorPressure, msg)
	if !ok {
		stats.Dropped++
		return nil
	}

	press, ok := msg.Float("Press")
	if !ok {
		stats.Errors++
		return nil
	}

	s := mission.PressureSample{LogFileID: lf.ID, DeploymentID: depID, Timestamp: ts, PressurePa: press}
	if v, ok := msg.Float("Temp"); ok {
		s.TemperatureC = &v
	}

	stats.Saved++
	stats.ByType[msg.Name()]++
	return acc.addPressure(ctx, s)
}

// resolveDeployment reads the message's instance column, applies the
// kind's allow-list and maps to a deployment. Messages without an
// instance column belong to instance zero.
func (p *LogParser) resolveDeployment(table *DeploymentTable, kind mission.SensorKind, msg *dataflash.Message) (int64, bool) {
	instance := 0
	if v, ok := msg.Int("I"); ok {
		instance = int(v)
	}
	if allowed, ok := p.allowed[kind]; ok && !allowed[instance] {
		return 0, false
	}
	return table.Lookup(kind, instance)
}
