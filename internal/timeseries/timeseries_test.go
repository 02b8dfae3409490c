package timeseries

import (
	"testing"
	"time"
)

func refSeries(base time.Time, offsets ...time.Duration) *Series {
	entries := make([]Entry, len(offsets))
	for i, off := range offsets {
		entries[i] = Entry{Time: base.Add(off), ID: int64(i + 1)}
	}
	return New(entries)
}

func TestSeries_Nearest(t *testing.T) {
	base := time.Date(2025, 12, 9, 10, 0, 0, 0, time.UTC)
	s := refSeries(base, 0, 2*time.Second, 10*time.Second)

	testCases := []struct {
		name      string
		query     time.Time
		wantIndex int
		wantDelta time.Duration
	}{
		{"exact hit", base.Add(2 * time.Second), 1, 0},
		{"closer to left", base.Add(2500 * time.Millisecond), 1, 500 * time.Millisecond},
		{"closer to right", base.Add(9 * time.Second), 2, time.Second},
		{"before range clamps to first", base.Add(-time.Minute), 0, time.Minute},
		{"after range clamps to last", base.Add(70 * time.Second), 2, time.Minute},
		{"exact tie prefers earlier", base.Add(time.Second), 0, time.Second},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			m, ok := s.Nearest(tc.query)
			if !ok {
				t.Fatal("expected a match")
			}
			if m.Index != tc.wantIndex {
				t.Errorf("expected index %d, got %d", tc.wantIndex, m.Index)
			}
			if m.Delta != tc.wantDelta {
				t.Errorf("expected delta %v, got %v", tc.wantDelta, m.Delta)
			}
			if m.ID != int64(tc.wantIndex+1) {
				t.Errorf("expected ID %d, got %d", tc.wantIndex+1, m.ID)
			}
		})
	}
}

func TestSeries_NearestMinimizesDistance(t *testing.T) {
	base := time.Date(2025, 12, 9, 10, 0, 0, 0, time.UTC)
	s := refSeries(base, 0, 700*time.Millisecond, 3*time.Second, 3100*time.Millisecond, 9*time.Second)

	// Sweep queries across the range and verify the result always
	// matches a brute-force scan.
	for q := -2 * time.Second; q <= 11*time.Second; q += 130 * time.Millisecond {
		query := base.Add(q)
		m, ok := s.Nearest(query)
		if !ok {
			t.Fatal("expected a match")
		}

		best := 0
		bestDelta := time.Duration(1<<63 - 1)
		for i := 0; i < s.Len(); i++ {
			d := query.Sub(s.At(i).Time)
			if d < 0 {
				d = -d
			}
			if d < bestDelta {
				best, bestDelta = i, d
			}
		}

		if m.Delta != bestDelta {
			t.Errorf("query %v: expected delta %v, got %v (index %d)", q, bestDelta, m.Delta, m.Index)
		}
		if m.Index != best {
			t.Errorf("query %v: expected index %d, got %d", q, best, m.Index)
		}
	}
}

func TestSeries_NearestEmpty(t *testing.T) {
	s := New(nil)
	if _, ok := s.Nearest(time.Now()); ok {
		t.Error("empty series should not match")
	}
}

func TestSeries_NewSortsInput(t *testing.T) {
	base := time.Date(2025, 12, 9, 10, 0, 0, 0, time.UTC)
	s := New([]Entry{
		{Time: base.Add(5 * time.Second), ID: 3},
		{Time: base, ID: 1},
		{Time: base.Add(2 * time.Second), ID: 2},
	})

	for i := 1; i < s.Len(); i++ {
		if s.At(i).Time.Before(s.At(i - 1).Time) {
			t.Fatalf("series not sorted at index %d", i)
		}
	}
	if s.At(0).ID != 1 || s.At(2).ID != 3 {
		t.Error("IDs did not follow their timestamps through the sort")
	}
}
