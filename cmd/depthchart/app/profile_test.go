package app

import (
	"testing"
	"time"

	"github.com/hidrolab/rovsurvey/internal/mission"
)

func f(v float64) *float64 { return &v }

func TestNewDepthProfile(t *testing.T) {
	start := time.Date(2023, 7, 14, 9, 0, 0, 0, time.UTC)
	m := &mission.Mission{ID: 1, StartTime: start}

	samples := []mission.NavSample{
		{Timestamp: start, DepthM: f(10), CorrectedDepthM: f(9.4)},
		{Timestamp: start.Add(time.Minute)}, // no depth, excluded
		{Timestamp: start.Add(2 * time.Minute), DepthM: f(14)},
		{Timestamp: start.Add(3 * time.Minute), DepthM: f(8), CorrectedDepthM: f(7.1)},
	}

	p := NewDepthProfile(m, samples)
	if p.Empty() {
		t.Fatal("profile is empty")
	}
	if p.Len() != 3 {
		t.Errorf("Len() = %d, want 3", p.Len())
	}
	if !p.Start.Equal(start) || !p.End.Equal(start.Add(3*time.Minute)) {
		t.Errorf("span = [%v, %v]", p.Start, p.End)
	}
	// Extrema cover both traces.
	if p.MinDepth != 7.1 {
		t.Errorf("MinDepth = %v, want 7.1", p.MinDepth)
	}
	if p.MaxDepth != 14 {
		t.Errorf("MaxDepth = %v, want 14", p.MaxDepth)
	}
	if p.Span() != 3*time.Minute {
		t.Errorf("Span() = %v, want 3m", p.Span())
	}
}

func TestNewDepthProfileEmpty(t *testing.T) {
	m := &mission.Mission{ID: 1}
	p := NewDepthProfile(m, []mission.NavSample{{Timestamp: time.Now()}})
	if !p.Empty() {
		t.Error("profile with no depths should be empty")
	}
}
