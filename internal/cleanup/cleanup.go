// Package cleanup removes mirror outputs whose sources are gone and sweeps the
// directories they leave empty.
package cleanup

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/sys/unix"

	"audiomirror/internal/filecache"
	"audiomirror/internal/logging"
)

// Result contains the outcome of a cleanup pass.
type Result struct {
	Removed []string
	Errors  []Error
}

// Error pairs a path with its cleanup error.
type Error struct {
	Path string
	Err  error
}

// RemoveOrphans deletes the destination of every orphan that was not reclaimed
// during the run. Outputs that were moved away are simply absent. Paths in live
// belong to current candidates and are never touched. Failures are logged and
// collected, never fatal.
func RemoveOrphans(ctx context.Context, orphans []filecache.Record, live map[string]struct{}, logger *slog.Logger) Result {
	logger = logging.NewComponentLogger(logger, "cleanup")
	result := Result{}

	for _, orphan := range orphans {
		if ctx.Err() != nil {
			break
		}
		dst := strings.TrimSpace(orphan.DestinationPath)
		if dst == "" {
			continue
		}
		if _, ok := live[dst]; ok {
			continue
		}
		if err := os.Remove(dst); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			result.Errors = append(result.Errors, Error{Path: dst, Err: err})
			logger.Warn("failed to remove orphaned output",
				logging.Path(dst),
				logging.String("source", orphan.SourcePath),
				logging.Error(err),
				logging.String(logging.FieldEventType, "orphan_cleanup_failed"),
				logging.String(logging.FieldErrorHint, "check destination permissions"),
				logging.String(logging.FieldImpact, "stale file remains in the mirror"),
			)
			continue
		}
		result.Removed = append(result.Removed, dst)
		logger.Info("removed orphaned output",
			logging.Path(dst),
			logging.String("source", orphan.SourcePath),
			logging.String(logging.FieldEventType, "orphan_cleanup"),
		)
	}
	return result
}

// RemoveEmptyDirs deletes every empty directory below root, deepest first, so
// a chain of directories emptied by orphan removal disappears in one pass.
// root itself is never removed.
func RemoveEmptyDirs(ctx context.Context, root string, logger *slog.Logger) Result {
	logger = logging.NewComponentLogger(logger, "cleanup")
	result := Result{}

	root = filepath.Clean(root)
	var dirs []string
	walkErr := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == root {
				return err
			}
			logger.Warn("skipping unreadable directory", logging.Path(path), logging.Error(err))
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() && path != root {
			dirs = append(dirs, path)
		}
		return nil
	})
	if walkErr != nil {
		result.Errors = append(result.Errors, Error{Path: root, Err: walkErr})
		return result
	}

	// WalkDir visits parents before children; reverse to go bottom-up.
	for i := len(dirs) - 1; i >= 0; i-- {
		if ctx.Err() != nil {
			break
		}
		dir := dirs[i]
		if err := os.Remove(dir); err != nil {
			if isNotEmpty(err) || errors.Is(err, fs.ErrNotExist) {
				continue
			}
			result.Errors = append(result.Errors, Error{Path: dir, Err: err})
			logger.Warn("failed to remove empty directory",
				logging.Path(dir),
				logging.Error(err),
				logging.String(logging.FieldEventType, "dir_cleanup_failed"),
			)
			continue
		}
		result.Removed = append(result.Removed, dir)
		logger.Debug("removed empty directory", logging.Path(dir))
	}
	return result
}

func isNotEmpty(err error) bool {
	return errors.Is(err, unix.ENOTEMPTY) || errors.Is(err, unix.EEXIST)
}
