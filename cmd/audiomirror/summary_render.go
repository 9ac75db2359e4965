package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/fatih/color"

	"audiomirror/internal/mirror"
)

type palette struct {
	ok   *color.Color
	warn *color.Color
	fail *color.Color
	head *color.Color
}

func newPalette(colorize bool) palette {
	p := palette{
		ok:   color.New(color.FgGreen),
		warn: color.New(color.FgYellow),
		fail: color.New(color.FgRed),
		head: color.New(color.FgCyan, color.Bold),
	}
	for _, c := range []*color.Color{p.ok, p.warn, p.fail, p.head} {
		if colorize {
			c.EnableColor()
		} else {
			c.DisableColor()
		}
	}
	return p
}

// maxListedFailures caps the per-file failure list printed after a run.
const maxListedFailures = 20

func renderSummary(w io.Writer, summary mirror.Summary, colorize bool) {
	p := newPalette(colorize)

	rows := [][]string{
		{"Transcoded", strconv.Itoa(summary.Transcoded)},
		{"Passed through", strconv.Itoa(summary.PassedThrough)},
		{"Reclaimed", strconv.Itoa(summary.Reclaimed)},
		{"Skipped", strconv.Itoa(summary.Skipped)},
		{"Failed", strconv.Itoa(summary.Failed)},
		{"Collisions dropped", strconv.Itoa(summary.Collisions)},
		{"Orphans removed", strconv.Itoa(summary.OrphansRemoved)},
		{"Records pruned", strconv.Itoa(summary.RecordsPruned)},
		{"Directories removed", strconv.Itoa(summary.DirsRemoved)},
	}
	fmt.Fprintln(w, renderTable([]string{"Outcome", "Files"}, rows, []columnAlignment{alignLeft, alignRight}))

	status := p.ok.Sprint("complete")
	switch {
	case summary.Interrupted:
		status = p.warn.Sprint("interrupted, cleanup deferred to next run")
	case summary.Failed > 0:
		status = p.fail.Sprintf("completed with %d failure(s)", summary.Failed)
	}
	fmt.Fprintf(w, "%s %s in %s (run %s)\n",
		p.head.Sprint("Mirror"),
		status,
		summary.Duration.Round(time.Millisecond),
		summary.RunID,
	)

	if len(summary.Failures) == 0 {
		return
	}
	fmt.Fprintln(w, p.fail.Sprint("Failures:"))
	for i, failure := range summary.Failures {
		if i == maxListedFailures {
			fmt.Fprintf(w, "  ... and %d more (see log)\n", len(summary.Failures)-maxListedFailures)
			break
		}
		fmt.Fprintf(w, "  %s: %s\n", failure.Path, firstLine(failure.Err))
	}
}

func firstLine(err error) string {
	if err == nil {
		return ""
	}
	msg := err.Error()
	if idx := strings.IndexByte(msg, '\n'); idx >= 0 {
		return msg[:idx]
	}
	return msg
}
