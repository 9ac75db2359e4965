// Package scan enumerates the source tree into the ordered candidate list a
// run processes.
package scan

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"

	"audiomirror/internal/logging"
	"audiomirror/internal/pathmatch"
	"audiomirror/internal/reconcile"
)

// Candidate is one source file eligible for processing this run.
type Candidate struct {
	Path        string
	Size        int64
	Kind        pathmatch.Kind
	Destination string
}

// Collision records a source dropped because an earlier candidate already
// maps to the same destination.
type Collision struct {
	Path        string
	Destination string
	Winner      string
}

// Result is the outcome of a scan.
type Result struct {
	// Candidates are ordered by descending size, ties broken by path.
	Candidates []Candidate
	Collisions []Collision
	Ignored    int
	Skipped    int
}

// Paths returns the candidate source paths in processing order.
func (r Result) Paths() []string {
	paths := make([]string, len(r.Candidates))
	for i, c := range r.Candidates {
		paths[i] = c.Path
	}
	return paths
}

// Destinations returns the set of destinations claimed by candidates.
func (r Result) Destinations() map[string]struct{} {
	set := make(map[string]struct{}, len(r.Candidates))
	for _, c := range r.Candidates {
		set[c.Destination] = struct{}{}
	}
	return set
}

// Options tune a scan.
type Options struct {
	// Exclude lists files that must never become candidates, such as the
	// record database when it lives inside the source tree.
	Exclude []string
	Logger  *slog.Logger
}

// Candidates walks settings.SourceDir. Symbolic links, non-regular files and
// ignored extensions are left out. When two files map to the same destination
// the larger one wins, or the lexically smaller path on equal size.
func Candidates(ctx context.Context, settings reconcile.Settings, opts Options) (Result, error) {
	logger := logging.NewComponentLogger(opts.Logger, "scan")
	excluded := statAll(opts.Exclude)

	var (
		result Result
		found  []Candidate
	)
	root := settings.SourceDir
	// a symlinked root is followed; symlinks below it are not
	if info, err := os.Lstat(root); err == nil && info.Mode()&fs.ModeSymlink != 0 {
		root += string(filepath.Separator)
	}
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			if path == root {
				return walkErr
			}
			logger.Warn("skipping unreadable path",
				logging.Path(path),
				logging.Error(walkErr),
				logging.Event("scan_unreadable"),
			)
			result.Skipped++
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.IsDir() || !d.Type().IsRegular() {
			return nil
		}

		kind := settings.Classify(path)
		if kind == pathmatch.Ignore {
			result.Ignored++
			return nil
		}

		info, err := d.Info()
		if err != nil {
			logger.Warn("skipping file that vanished during scan", logging.Path(path), logging.Error(err))
			result.Skipped++
			return nil
		}
		if isExcluded(info, excluded) {
			return nil
		}

		dst, err := settings.Destination(path, kind)
		if err != nil {
			return err
		}
		found = append(found, Candidate{Path: path, Size: info.Size(), Kind: kind, Destination: dst})
		return nil
	})
	if err != nil {
		return Result{}, err
	}

	sort.Slice(found, func(i, j int) bool {
		if found[i].Size != found[j].Size {
			return found[i].Size > found[j].Size
		}
		return found[i].Path < found[j].Path
	})

	winners := make(map[string]string, len(found))
	result.Candidates = make([]Candidate, 0, len(found))
	for _, c := range found {
		if winner, ok := winners[c.Destination]; ok {
			logger.Warn("destination already claimed, dropping candidate",
				logging.Path(c.Path),
				logging.String("destination", c.Destination),
				logging.String("winner", winner),
				logging.Event("destination_collision"),
			)
			result.Collisions = append(result.Collisions, Collision{Path: c.Path, Destination: c.Destination, Winner: winner})
			continue
		}
		winners[c.Destination] = c.Path
		result.Candidates = append(result.Candidates, c)
	}

	logger.Debug("scan complete",
		logging.Int("candidates", len(result.Candidates)),
		logging.Int("collisions", len(result.Collisions)),
		logging.Int("ignored", result.Ignored),
	)
	return result, nil
}

func statAll(paths []string) []os.FileInfo {
	var infos []os.FileInfo
	for _, path := range paths {
		if info, err := os.Stat(path); err == nil {
			infos = append(infos, info)
		}
	}
	return infos
}

func isExcluded(info os.FileInfo, excluded []os.FileInfo) bool {
	for _, ex := range excluded {
		if os.SameFile(info, ex) {
			return true
		}
	}
	return false
}
