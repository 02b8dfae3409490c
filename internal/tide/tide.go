// Package tide turns discrete high/low tide events into a continuous
// water-height estimate and applies it to recorded depths. Between two
// consecutive events the height follows a half cosine, the standard
// first-order approximation of the tidal curve.
package tide

import (
	"math"
	"sort"
	"time"

	"github.com/hidrolab/rovsurvey/internal/mission"
)

// Height interpolates the water height at t between two consecutive
// tide events. With a zero-length interval the first event's height is
// returned as is.
func Height(t time.Time, first, second mission.TideLevel) float64 {
	h1, h2 := first.HeightM, second.HeightM
	period := second.Time.Sub(first.Time)
	if period == 0 {
		return h1
	}

	elapsed := t.Sub(first.Time)
	phase := math.Pi * float64(elapsed) / float64(period)
	return (h1+h2)/2 + (h1-h2)/2*math.Cos(phase)
}

// Bracket finds the consecutive pair of events surrounding t in a
// time-sorted sequence. It reports false when t falls before the first
// or after the last event.
func Bracket(levels []mission.TideLevel, t time.Time) (mission.TideLevel, mission.TideLevel, bool) {
	if len(levels) < 2 {
		return mission.TideLevel{}, mission.TideLevel{}, false
	}

	// First event at or after t.
	p := sort.Search(len(levels), func(i int) bool {
		return !levels[i].Time.Before(t)
	})
	switch {
	case p == 0:
		if levels[0].Time.Equal(t) {
			return levels[0], levels[1], true
		}
		return mission.TideLevel{}, mission.TideLevel{}, false
	case p == len(levels):
		return mission.TideLevel{}, mission.TideLevel{}, false
	}
	return levels[p-1], levels[p], true
}
