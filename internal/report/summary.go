// Package report collects counters for one operator command run and
// emits a closing summary. Every run gets a unique identifier so runs
// can be told apart when logs from several invocations end up in the
// same place.
package report

import (
	"log/slog"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
)

// Summary accumulates named counters for one run of a pipeline stage.
// Not safe for concurrent use; aggregate per goroutine and merge.
type Summary struct {
	RunID   string
	Stage   string
	started time.Time

	order  []string
	counts map[string]int64
}

// New starts a summary for the named stage.
func New(stage string) *Summary {
	return &Summary{
		RunID:   uuid.NewString(),
		Stage:   stage,
		started: time.Now(),
		counts:  make(map[string]int64),
	}
}

// Add increments a named counter. Counters appear in the emitted
// summary in first-use order.
func (s *Summary) Add(name string, delta int64) {
	if _, ok := s.counts[name]; !ok {
		s.order = append(s.order, name)
	}
	s.counts[name] += delta
}

// Count returns a counter's current value.
func (s *Summary) Count(name string) int64 {
	return s.counts[name]
}

// Emit logs the closing summary with all counters and the elapsed
// time.
func (s *Summary) Emit(logger *slog.Logger) {
	attrs := make([]any, 0, 2*len(s.order)+6)
	attrs = append(attrs,
		slog.String("run_id", s.RunID),
		slog.String("stage", s.Stage),
		slog.Duration("elapsed", time.Since(s.started).Round(time.Millisecond)))
	for _, name := range s.order {
		attrs = append(attrs, slog.String(name, humanize.Comma(s.counts[name])))
	}
	logger.Info("run complete", attrs...)
}
