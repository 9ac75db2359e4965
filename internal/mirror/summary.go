package mirror

import (
	"time"

	"audiomirror/internal/reconcile"
)

// FileFailure is a per-file error reported in the summary.
type FileFailure struct {
	Path string
	Err  error
}

// Summary reports what a run did.
type Summary struct {
	RunID string

	Candidates    int
	Transcoded    int
	PassedThrough int
	Reclaimed     int
	Skipped       int
	Failed        int

	Collisions int
	Ignored    int

	OrphansRemoved int
	RecordsPruned  int
	DirsRemoved    int

	Failures    []FileFailure
	Interrupted bool
	Duration    time.Duration
}

// Succeeded is the number of files with a durable outcome.
func (s Summary) Succeeded() int {
	return s.Transcoded + s.PassedThrough + s.Reclaimed + s.Skipped
}

func (s *Summary) count(status reconcile.Status) {
	switch status {
	case reconcile.StatusTranscoded:
		s.Transcoded++
	case reconcile.StatusPassedThrough:
		s.PassedThrough++
	case reconcile.StatusReclaimed:
		s.Reclaimed++
	default:
		s.Skipped++
	}
}
