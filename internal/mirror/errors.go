package mirror

import "errors"

var (
	// ErrSetup marks failures detected before any file is processed.
	ErrSetup = errors.New("setup failed")
	// ErrStorage marks a failure persisting results. Batches committed before
	// the failure remain valid.
	ErrStorage = errors.New("storage failure")
	// ErrLocked reports that another run holds the database lock.
	ErrLocked = errors.New("another run is using the record database")
)
