package preflight

import (
	"fmt"
	"strings"

	"audiomirror/internal/config"
	"audiomirror/internal/deps"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// RunAll executes every preflight check for the given config. needEncoder
// controls whether the transcoder binary must resolve.
func RunAll(cfg *config.Config, needEncoder bool) []Result {
	if cfg == nil {
		return nil
	}

	results := []Result{
		CheckDirectoryAccess("Source directory", cfg.Paths.SourceDir, AccessRead),
		CheckDirectoryAccess("Destination directory", cfg.Paths.DestinationDir, AccessReadWrite),
		CheckDatabaseLocation("Record database", cfg.Paths.DatabasePath),
	}

	if needEncoder {
		for _, status := range deps.CheckBinaries([]deps.Requirement{deps.FFmpegRequirement(cfg.Transcode.FFmpegBinary)}) {
			results = append(results, fromStatus(status))
		}
	}
	return results
}

// Failures returns an error naming every failed check, or nil.
func Failures(results []Result) error {
	var failed []string
	for _, r := range results {
		if !r.Passed {
			failed = append(failed, fmt.Sprintf("%s: %s", r.Name, r.Detail))
		}
	}
	if len(failed) == 0 {
		return nil
	}
	return fmt.Errorf("preflight failed: %s", strings.Join(failed, "; "))
}

func fromStatus(status deps.Status) Result {
	if status.Available {
		return Result{Name: status.Name, Passed: true, Detail: status.Resolved}
	}
	return Result{Name: status.Name, Detail: status.Detail}
}
