// Package timeseries implements the immutable reference timeline used
// to join frames and sensor samples to navigation data by nearest
// timestamp. A Series is built once per mission, then shared read-only
// across however many goroutines are aligning against it.
package timeseries

import (
	"sort"
	"time"
)

// Entry is one reference point: a timestamp and the identifier of the
// record it belongs to.
type Entry struct {
	Time time.Time
	ID   int64
}

// Match is the result of a nearest lookup. Delta is the absolute
// distance between the query and the matched entry.
type Match struct {
	Index int
	ID    int64
	Delta time.Duration
}

// Series is a timestamp-sorted sequence of entries. It is immutable
// after construction.
type Series struct {
	times []time.Time
	ids   []int64
}

// New builds a Series from entries, copying and sorting them by time.
// Input order does not matter.
func New(entries []Entry) *Series {
	sorted := make([]Entry, len(entries))
	copy(sorted, entries)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Time.Before(sorted[j].Time)
	})

	s := Series{
		times: make([]time.Time, len(sorted)),
		ids:   make([]int64, len(sorted)),
	}
	for i, e := range sorted {
		s.times[i] = e.Time
		s.ids[i] = e.ID
	}
	return &s
}

// Len returns the number of entries in the series.
func (s *Series) Len() int {
	return len(s.times)
}

// At returns the entry at index i.
func (s *Series) At(i int) Entry {
	return Entry{Time: s.times[i], ID: s.ids[i]}
}

// Nearest returns the entry closest in time to q. When q falls exactly
// between two entries, the earlier one wins. Queries outside the series
// range clamp to the boundary entry with the full distance as Delta;
// only an empty series yields no match.
func (s *Series) Nearest(q time.Time) (Match, bool) {
	n := len(s.times)
	if n == 0 {
		return Match{}, false
	}

	p := sort.Search(n, func(i int) bool {
		return !s.times[i].Before(q)
	})

	idx := p
	switch {
	case p == n:
		idx = n - 1
	case p > 0:
		before := q.Sub(s.times[p-1])
		after := s.times[p].Sub(q)
		if before <= after {
			idx = p - 1
		}
	}

	delta := q.Sub(s.times[idx])
	if delta < 0 {
		delta = -delta
	}
	return Match{Index: idx, ID: s.ids[idx], Delta: delta}, true
}
