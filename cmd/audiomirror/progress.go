package main

import (
	"io"
	"time"

	"github.com/schollz/progressbar/v3"

	"audiomirror/internal/pipeline"
)

// progressObserver drives a terminal progress bar from run events.
type progressObserver struct {
	w   io.Writer
	bar *progressbar.ProgressBar
}

func newProgressObserver(w io.Writer) *progressObserver {
	return &progressObserver{w: w}
}

func (p *progressObserver) OnStart(total int) {
	p.bar = progressbar.NewOptions(total,
		progressbar.OptionSetWriter(p.w),
		progressbar.OptionSetDescription("mirroring"),
		progressbar.OptionShowCount(),
		progressbar.OptionSetWidth(30),
		progressbar.OptionThrottle(100*time.Millisecond),
		progressbar.OptionClearOnFinish(),
	)
}

func (p *progressObserver) OnFileDone(done, total int, res pipeline.Result) {
	if p.bar == nil {
		return
	}
	_ = p.bar.Set(done)
}

func (p *progressObserver) OnPhaseDone(name string, dur time.Duration) {
	if name == "process" && p.bar != nil {
		_ = p.bar.Finish()
	}
}
