package reconcile

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"audiomirror/internal/encoder"
	"audiomirror/internal/filecache"
	"audiomirror/internal/fileutil"
	"audiomirror/internal/logging"
	"audiomirror/internal/pathmatch"
)

// Snapshot is the read-only run state every worker consults.
type Snapshot struct {
	// Cache holds the records loaded at run start, keyed by source path.
	Cache map[string]filecache.Record
	// Orphans indexes records whose source is not a candidate this run.
	Orphans *OrphanIndex
	// LiveDestinations holds the destination of every candidate. Orphaned or
	// stale outputs at these paths belong to another file and are left alone.
	LiveDestinations map[string]struct{}
}

// Engine processes individual files. It is safe for concurrent use.
type Engine struct {
	settings Settings
	snapshot Snapshot
	encoder  encoder.Encoder
	logger   *slog.Logger
}

// NewEngine wires an Engine. A nil logger discards output.
func NewEngine(settings Settings, snapshot Snapshot, enc encoder.Encoder, logger *slog.Logger) *Engine {
	return &Engine{
		settings: settings,
		snapshot: snapshot,
		encoder:  enc,
		logger:   logging.NewComponentLogger(logger, "reconcile"),
	}
}

// Process brings the destination for src up to date. On error nothing is
// recorded for src, so the file is retried on the next run.
func (e *Engine) Process(ctx context.Context, src string) (Outcome, error) {
	kind := e.settings.Classify(src)
	if kind == pathmatch.Ignore {
		return Outcome{}, fileErr(src, "classify", ErrIgnored)
	}
	tag := e.settings.ConfigTag(kind)

	info, err := os.Stat(src)
	if err != nil {
		return Outcome{}, fileErr(src, "stat", err)
	}
	if !info.Mode().IsRegular() {
		return Outcome{}, fileErr(src, "stat", errors.New("not a regular file"))
	}
	modTime, size := info.ModTime(), info.Size()

	dst, err := e.settings.Destination(src, kind)
	if err != nil {
		return Outcome{}, fileErr(src, "map destination", err)
	}

	if prev, ok := e.snapshot.Cache[src]; ok {
		if prev.Config == tag && prev.DestinationPath == dst && prev.SameStat(modTime, size) && fileutil.Exists(dst) {
			return Outcome{Source: src, Record: prev, Status: StatusSkipped}, nil
		}
		e.removePrevious(prev.DestinationPath, dst)
	}

	hash, err := HashFile(src)
	if err != nil {
		return Outcome{}, fileErr(src, "hash", err)
	}

	// concurrent creation by sibling workers is expected; a real failure
	// surfaces when the destination itself is written
	_ = os.MkdirAll(filepath.Dir(dst), 0o755)

	record := filecache.Record{
		SourcePath:      src,
		DestinationPath: dst,
		Hash:            hash,
		ModTime:         modTime,
		Size:            size,
		Config:          tag,
	}

	if from, ok := e.reclaim(src, dst, hash, tag, size); ok {
		return Outcome{Source: src, Record: record, Status: StatusReclaimed, ReclaimedFrom: from}, nil
	}

	if kind == pathmatch.Transcode {
		if err := fileutil.RemoveIfExists(dst); err != nil {
			return Outcome{}, fileErr(src, "remove existing destination", err)
		}
		if err := e.encoder.Encode(ctx, src, dst, e.settings.BitrateKbps); err != nil {
			return Outcome{}, fileErr(src, "transcode", err)
		}
		return Outcome{Source: src, Record: record, Status: StatusTranscoded}, nil
	}

	if err := fileutil.Place(src, dst, e.settings.CopyMode); err != nil {
		return Outcome{}, fileErr(src, "passthrough", err)
	}
	return Outcome{Source: src, Record: record, Status: StatusPassedThrough}, nil
}

// removePrevious deletes the output recorded for an outdated record. The
// current destination is regenerated anyway; any other path that a live
// candidate now maps to is not ours to remove.
func (e *Engine) removePrevious(prevDst, dst string) {
	if prevDst == "" || (prevDst != dst && e.isLive(prevDst)) {
		return
	}
	if err := os.Remove(prevDst); err != nil && !errors.Is(err, fs.ErrNotExist) {
		e.logger.Warn("failed to remove previous destination",
			logging.Path(prevDst),
			logging.Error(err),
			logging.Event("stale_destination_remove_failed"),
		)
	}
}

// reclaim tries to move an orphan's output to dst. It reports the orphan's
// source path on success.
func (e *Engine) reclaim(src, dst, hash, tag string, size int64) (string, bool) {
	for _, orphan := range e.snapshot.Orphans.Lookup(hash) {
		if orphan.Config != tag {
			continue
		}
		if !fileutil.Exists(orphan.DestinationPath) {
			continue
		}
		if orphan.Size != size {
			e.logger.Warn("content hash matches but size differs, not reclaiming",
				logging.Path(src),
				logging.String("orphan", orphan.SourcePath),
				logging.Int64("size", size),
				logging.Int64("orphan_size", orphan.Size),
				logging.Event("hash_size_mismatch"),
			)
			continue
		}
		if orphan.DestinationPath != dst && e.isLive(orphan.DestinationPath) {
			continue
		}
		if orphan.DestinationPath == dst {
			return orphan.SourcePath, true
		}

		if err := fileutil.RemoveIfExists(dst); err != nil {
			e.logger.Debug("could not clear reclaim target", logging.Path(dst), logging.Error(err))
		}
		if err := os.Rename(orphan.DestinationPath, dst); err != nil {
			e.logger.Debug("reclaim lost, trying next candidate",
				logging.Path(src),
				logging.String("orphan", orphan.SourcePath),
				logging.Error(err),
				logging.Event("reclaim_race_lost"),
			)
			continue
		}
		return orphan.SourcePath, true
	}
	return "", false
}

func (e *Engine) isLive(path string) bool {
	_, ok := e.snapshot.LiveDestinations[path]
	return ok
}
