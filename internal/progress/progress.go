// internal/progress/progress.go

// Package progress reports fractional completion of long-running analyses.
// Each engine owns a span of the run's [0,1] progress range and reports
// relative completion within it.
package progress

import (
	"math"
	"sync"
)

// Status is one progress snapshot. Progress is the internal fraction;
// sinks consume the 0-100 integer form via Percent.
type Status struct {
	Progress float64 `json:"progress"`
	Message  string  `json:"message"`
}

// Percent renders the fraction as the integer percentage the status sink
// contract expects.
func (s Status) Percent() int {
	return int(math.Round(s.Progress * 100))
}

// Reporter receives progress updates. The zero value of a nil Reporter is
// valid everywhere: trackers tolerate it.
type Reporter interface {
	Report(status Status)
}

// ReporterFunc adapts a function to the Reporter interface.
type ReporterFunc func(status Status)

func (f ReporterFunc) Report(status Status) { f(status) }

// Tracker maps an engine's relative progress onto its span of the overall
// run. Update clamps to [0,1] and is safe for concurrent use.
type Tracker struct {
	mu       sync.Mutex
	reporter Reporter
	start    float64
	span     float64
	last     Status
}

// NewTracker creates a tracker covering [start, start+span] of the run.
func NewTracker(reporter Reporter, start, span float64) *Tracker {
	return &Tracker{reporter: reporter, start: start, span: span}
}

// Update reports relative progress rel in [0,1] within the tracker's span.
func (t *Tracker) Update(rel float64, message string) {
	if t == nil {
		return
	}
	if rel < 0 {
		rel = 0
	}
	if rel > 1 {
		rel = 1
	}

	t.mu.Lock()
	abs := t.start + rel*t.span
	if abs > 1 {
		abs = 1
	}
	t.last = Status{Progress: abs, Message: message}
	reporter := t.reporter
	status := t.last
	t.mu.Unlock()

	if reporter != nil {
		reporter.Report(status)
	}
}

// Last returns the most recent status the tracker reported.
func (t *Tracker) Last() Status {
	if t == nil {
		return Status{}
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.last
}
