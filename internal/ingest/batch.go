package ingest

import (
	"context"

	"github.com/hidrolab/rovsurvey/internal/mission"
)

// SampleWriter is the slice of the store the decoder pipeline writes
// through.
type SampleWriter interface {
	InsertNavSamples(ctx context.Context, samples []mission.NavSample) error
	InsertImuSamples(ctx context.Context, samples []mission.ImuSample) error
	InsertCompassSamples(ctx context.Context, samples []mission.CompassSample) error
	InsertPressureSamples(ctx context.Context, samples []mission.PressureSample) error
}

// accumulator buffers decoded samples per type and flushes each buffer
// through the writer once it reaches the flush threshold. Buffers are
// fixed per type rather than keyed so a flush never interleaves sample
// kinds inside one statement.
type accumulator struct {
	writer SampleWriter
	limit  int

	nav      []mission.NavSample
	imu      []mission.ImuSample
	compass  []mission.CompassSample
	pressure []mission.PressureSample
}

func newAccumulator(writer SampleWriter, limit int) *accumulator {
	return &accumulator{writer: writer, limit: limit}
}

func (a *accumulator) addNav(ctx context.Context, s mission.NavSample) error {
	a.nav = append(a.nav, s)
	if len(a.nav) < a.limit {
		return nil
	}
	return a.flushNav(ctx)
}

func (a *accumulator) addImu(ctx context.Context, s mission.ImuSample) error {
	a.imu = append(a.imu, s)
	if len(a.imu) < a.limit {
		return nil
	}
	return a.flushImu(ctx)
}

func (a *accumulator) addCompass(ctx context.Context, s mission.CompassSample) error {
	a.compass = append(a.compass, s)
	if len(a.compass) < a.limit {
		return nil
	}
	return a.flushCompass(ctx)
}

func (a *accumulator) addPressure(ctx context.Context, s mission.PressureSample) error {
	a.pressure = append(a.pressure, s)
	if len(a.pressure) < a.limit {
		return nil
	}
	return a.flushPressure(ctx)
}

func (a *accumulator) flushNav(ctx context.Context) error {
	if len(a.nav) == 0 {
		return nil
	}
	err := a.writer.InsertNavSamples(ctx, a.nav)
	a.nav = a.nav[:0]
	return err
}

func (a *accumulator) flushImu(ctx context.Context) error {
	if len(a.imu) == 0 {
		return nil
	}
	err := a.writer.InsertImuSamples(ctx, a.imu)
	a.imu = a.imu[:0]
	return err
}

func (a *accumulator) flushCompass(ctx context.Context) error {
	if len(a.compass) == 0 {
		return nil
	}
	err := a.writer.InsertCompassSamples(ctx, a.compass)
	a.compass = a.compass[:0]
	return err
}

func (a *accumulator) flushPressure(ctx context.Context) error {
	if len(a.pressure) == 0 {
		return nil
	}
	err := a.writer.InsertPressureSamples(ctx, a.pressure)
	a.pressure = a.pressure[:0]
	return err
}

// flushAll drains every buffer at end of stream. The first error is
// returned but remaining buffers are still flushed.
func (a *accumulator) flushAll(ctx context.Context) error {
	var first error
	for _, flush := range []func(context.Context) error{
		a.flushNav, a.flushImu, a.flushCompass, a.flushPressure,
	} {
		if err := flush(ctx); err != nil && first == nil {
			first = err
		}
	}
	return first
}
