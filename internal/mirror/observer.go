package mirror

import (
	"time"

	"audiomirror/internal/pipeline"
)

// Observer receives progress events. OnFileDone is always called from the
// aggregator goroutine, never concurrently.
type Observer interface {
	// OnStart is called once the candidate list is known.
	OnStart(total int)
	// OnFileDone is called for every processed candidate.
	OnFileDone(done, total int, res pipeline.Result)
	// OnPhaseDone is called as each run phase finishes.
	OnPhaseDone(name string, dur time.Duration)
}
