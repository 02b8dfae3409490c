package app

import (
	"time"

	"gonum.org/v1/gonum/floats"

	"github.com/hidrolab/rovsurvey/internal/mission"
)

// DepthPoint is one charted sample. Corrected is NaN-free only when a
// corrected depth exists; Raw is always present.
type DepthPoint struct {
	Time      time.Time
	Raw       float64
	Corrected *float64
}

// DepthProfile is a mission's charted depth series with its extrema
// precomputed across both traces.
type DepthProfile struct {
	Mission *mission.Mission
	Points  []DepthPoint

	Start    time.Time
	End      time.Time
	MinDepth float64
	MaxDepth float64
}

// NewDepthProfile keeps the samples carrying a raw depth and computes
// the time and depth ranges the chart has to span.
func NewDepthProfile(m *mission.Mission, samples []mission.NavSample) *DepthProfile {
	p := &DepthProfile{Mission: m}

	var depths []float64
	for _, s := range samples {
		if s.DepthM == nil {
			continue
		}

		point := DepthPoint{Time: s.Timestamp, Raw: *s.DepthM}
		depths = append(depths, *s.DepthM)
		if s.CorrectedDepthM != nil {
			point.Corrected = s.CorrectedDepthM
			depths = append(depths, *s.CorrectedDepthM)
		}
		p.Points = append(p.Points, point)
	}
	if len(p.Points) == 0 {
		return p
	}

	p.Start = p.Points[0].Time
	p.End = p.Points[len(p.Points)-1].Time
	p.MinDepth = floats.Min(depths)
	p.MaxDepth = floats.Max(depths)
	return p
}

func (p *DepthProfile) Empty() bool {
	return len(p.Points) == 0
}

func (p *DepthProfile) Len() int {
	return len(p.Points)
}

// Span returns the charted duration.
func (p *DepthProfile) Span() time.Duration {
	return p.End.Sub(p.Start)
}
