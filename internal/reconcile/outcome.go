package reconcile

import (
	"errors"
	"fmt"

	"audiomirror/internal/filecache"
)

// Status is the durable result of processing one file.
type Status int

const (
	StatusSkipped Status = iota
	StatusTranscoded
	StatusPassedThrough
	StatusReclaimed
)

func (s Status) String() string {
	switch s {
	case StatusTranscoded:
		return "transcoded"
	case StatusPassedThrough:
		return "passed through"
	case StatusReclaimed:
		return "reclaimed"
	default:
		return "skipped"
	}
}

// Outcome is the result of a successful Process call.
type Outcome struct {
	Source string
	Record filecache.Record
	Status Status
	// ReclaimedFrom names the orphaned source whose output was moved, if any.
	ReclaimedFrom string
}

// ErrIgnored is returned for paths whose extension is on the ignore list.
var ErrIgnored = errors.New("extension is ignored")

// FileError is a failure confined to one source file.
type FileError struct {
	Path string
	Op   string
	Err  error
}

func (e *FileError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *FileError) Unwrap() error { return e.Err }

func fileErr(path, op string, err error) error {
	return &FileError{Path: path, Op: op, Err: err}
}
