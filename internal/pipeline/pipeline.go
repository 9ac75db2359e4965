// Package pipeline fans candidate paths across a bounded worker pool and
// funnels every result back to a single consumer.
//
// Workers share nothing but the Processor they call. The consumer runs on the
// caller's goroutine, so result handling needs no locking and is the only
// writer downstream of the pool.
package pipeline

import (
	"context"
	"sync"
	"time"

	"audiomirror/internal/reconcile"
)

// Processor handles one candidate path. *reconcile.Engine satisfies it.
type Processor interface {
	Process(ctx context.Context, path string) (reconcile.Outcome, error)
}

// Result pairs a path with its outcome or error.
type Result struct {
	Path     string
	Outcome  reconcile.Outcome
	Err      error
	Duration time.Duration
}

// Handler consumes results in completion order. Returning an error stops the
// feed; results already in flight are still delivered.
type Handler func(Result) error

// Report summarizes a finished run of the pool.
type Report struct {
	Submitted int
	Completed int
	Total     int
}

// Interrupted reports whether some paths were never handed to a worker.
func (r Report) Interrupted() bool {
	return r.Submitted < r.Total
}

// Run processes paths in order with the given number of workers (minimum one).
//
// Canceling ctx stops new paths from being submitted. Work already handed to a
// worker runs to completion with a context that ignores the cancellation, so a
// transcode is never cut off halfway. Run returns the first handler error, or
// ctx's error if the feed was cut short by cancellation.
func Run(ctx context.Context, paths []string, workers int, proc Processor, handle Handler) (Report, error) {
	if workers < 1 {
		workers = 1
	}
	if workers > len(paths) && len(paths) > 0 {
		workers = len(paths)
	}

	report := Report{Total: len(paths)}
	workCtx := context.WithoutCancel(ctx)
	jobs := make(chan string)
	results := make(chan Result, workers*2)
	stop := make(chan struct{})
	var stopOnce sync.Once

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for path := range jobs {
				started := time.Now()
				outcome, err := proc.Process(workCtx, path)
				results <- Result{
					Path:     path,
					Outcome:  outcome,
					Err:      err,
					Duration: time.Since(started),
				}
			}
		}()
	}

	submitted := make(chan int, 1)
	go func() {
		n := 0
		defer func() {
			close(jobs)
			submitted <- n
			wg.Wait()
			close(results)
		}()
		for _, path := range paths {
			select {
			case <-stop:
				return
			default:
			}
			if ctx.Err() != nil {
				return
			}
			select {
			case <-stop:
				return
			case <-ctx.Done():
				return
			case jobs <- path:
				n++
			}
		}
	}()

	var handleErr error
	for res := range results {
		report.Completed++
		if handle == nil {
			continue
		}
		if err := handle(res); err != nil && handleErr == nil {
			handleErr = err
			stopOnce.Do(func() { close(stop) })
		}
	}
	report.Submitted = <-submitted

	if handleErr != nil {
		return report, handleErr
	}
	if report.Interrupted() {
		if err := ctx.Err(); err != nil {
			return report, err
		}
	}
	return report, nil
}
