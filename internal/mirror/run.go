package mirror

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"

	"audiomirror/internal/cleanup"
	"audiomirror/internal/config"
	"audiomirror/internal/encoder"
	"audiomirror/internal/filecache"
	"audiomirror/internal/logging"
	"audiomirror/internal/pathmatch"
	"audiomirror/internal/pipeline"
	"audiomirror/internal/preflight"
	"audiomirror/internal/reconcile"
	"audiomirror/internal/scan"
)

// Options configure a run. Only Config is required.
type Options struct {
	Config *config.Config
	// Encoder overrides the ffmpeg transcoder. When set, the ffmpeg binary is
	// not required to resolve.
	Encoder   encoder.Encoder
	Logger    *slog.Logger
	Observer  Observer
	BatchSize int
}

// LockPath returns the run lock location for a database path.
func LockPath(databasePath string) string {
	return databasePath + ".lock"
}

// Run mirrors cfg's source tree into its destination. The returned summary is
// meaningful even when err is non-nil, unless err wraps ErrSetup.
//
// Canceling ctx stops new files from being started; files in progress finish
// and are persisted, and orphan cleanup is skipped so the next run can finish
// it. The returned error then wraps ctx's error.
func Run(ctx context.Context, opts Options) (Summary, error) {
	started := time.Now()
	cfg := opts.Config
	if cfg == nil {
		return Summary{}, fmt.Errorf("%w: config is required", ErrSetup)
	}

	summary := Summary{RunID: uuid.NewString()}
	logger := logging.WithRunID(logging.NewComponentLogger(opts.Logger, "mirror"), summary.RunID)
	obs := opts.Observer

	enc := opts.Encoder
	if err := preflight.Failures(preflight.RunAll(cfg, enc == nil)); err != nil {
		return Summary{}, fmt.Errorf("%w: %w", ErrSetup, err)
	}
	if enc == nil {
		enc = encoder.NewFFmpeg(cfg.Transcode.FFmpegBinary)
	}

	dbPath := cfg.Paths.DatabasePath
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return Summary{}, fmt.Errorf("%w: create database directory: %w", ErrSetup, err)
	}
	lock := flock.New(LockPath(dbPath))
	locked, err := lock.TryLock()
	if err != nil {
		return Summary{}, fmt.Errorf("%w: acquire run lock: %w", ErrSetup, err)
	}
	if !locked {
		return Summary{}, fmt.Errorf("%w: %w (%s)", ErrSetup, ErrLocked, dbPath)
	}
	defer func() { _ = lock.Unlock() }()

	store, err := filecache.Open(dbPath)
	if err != nil {
		return Summary{}, fmt.Errorf("%w: open record database: %w", ErrSetup, err)
	}
	defer store.Close()

	settings := reconcile.SettingsFromConfig(cfg)
	logger.Info("mirror run starting",
		logging.String("source", cfg.Paths.SourceDir),
		logging.String("destination", cfg.Paths.DestinationDir),
		logging.String("config_tag", settings.ConfigTag(pathmatch.Transcode)),
		logging.Int("workers", cfg.Workers.Count),
	)

	phase := time.Now()
	scanned, err := scan.Candidates(ctx, settings, scan.Options{
		Exclude: []string{dbPath, dbPath + "-wal", dbPath + "-shm", LockPath(dbPath)},
		Logger:  opts.Logger,
	})
	if err != nil {
		if ctx.Err() != nil {
			summary.Interrupted = true
			summary.Duration = time.Since(started)
			return summary, ctx.Err()
		}
		return Summary{}, fmt.Errorf("%w: scan source: %w", ErrSetup, err)
	}
	summary.Candidates = len(scanned.Candidates)
	summary.Collisions = len(scanned.Collisions)
	summary.Ignored = scanned.Ignored
	phaseDone(obs, "scan", phase)

	cache, err := store.Load(ctx)
	if err != nil {
		return Summary{}, fmt.Errorf("%w: load records: %w", ErrSetup, err)
	}

	paths := scanned.Paths()
	live := scanned.Destinations()
	orphans, prune := reconcile.BuildOrphanIndex(cache, paths)
	logger.Debug("run state loaded",
		logging.Int("candidates", len(paths)),
		logging.Int("records", len(cache)),
		logging.Int("orphans", orphans.Len()),
	)

	engine := reconcile.NewEngine(settings, reconcile.Snapshot{
		Cache:            cache,
		Orphans:          orphans,
		LiveDestinations: live,
	}, enc, opts.Logger)

	agg := &aggregator{
		ctx:     ctx,
		logger:  logger,
		writer:  filecache.NewBatchWriter(store, opts.BatchSize),
		summary: &summary,
		obs:     obs,
		total:   len(paths),
	}
	if obs != nil {
		obs.OnStart(len(paths))
	}

	phase = time.Now()
	workers := cfg.Workers.Count
	if workers <= 0 {
		workers = config.DefaultWorkerCount()
	}
	_, pipeErr := pipeline.Run(ctx, paths, workers, engine, agg.handle)
	if agg.storageErr == nil {
		if err := agg.writer.Flush(context.WithoutCancel(ctx)); err != nil {
			agg.storageErr = err
		}
	}
	phaseDone(obs, "process", phase)

	if agg.storageErr != nil {
		summary.Duration = time.Since(started)
		logger.Error("persisting results failed, stopping run",
			logging.Error(agg.storageErr),
			logging.Int("persisted", agg.writer.Written()),
			logging.String(logging.FieldImpact, "cleanup skipped; committed batches are kept"),
		)
		return summary, fmt.Errorf("%w: %w", ErrStorage, agg.storageErr)
	}
	if pipeErr != nil {
		summary.Interrupted = true
		summary.Duration = time.Since(started)
		logger.Warn("run interrupted, orphan cleanup skipped",
			logging.Int("persisted", agg.writer.Written()),
			logging.Event("run_interrupted"),
		)
		return summary, pipeErr
	}

	phase = time.Now()
	cleanupCtx := context.WithoutCancel(ctx)
	removed := cleanup.RemoveOrphans(cleanupCtx, orphans.Records(), live, opts.Logger)
	summary.OrphansRemoved = len(removed.Removed)

	pruned, err := store.DeleteBatch(cleanupCtx, prune)
	if err != nil {
		summary.Duration = time.Since(started)
		return summary, fmt.Errorf("%w: prune records: %w", ErrStorage, err)
	}
	summary.RecordsPruned = int(pruned)

	dirs := cleanup.RemoveEmptyDirs(cleanupCtx, cfg.Paths.DestinationDir, opts.Logger)
	summary.DirsRemoved = len(dirs.Removed)
	phaseDone(obs, "cleanup", phase)

	summary.Duration = time.Since(started)
	logger.Info("mirror run complete",
		logging.Int("transcoded", summary.Transcoded),
		logging.Int("passed_through", summary.PassedThrough),
		logging.Int("reclaimed", summary.Reclaimed),
		logging.Int("skipped", summary.Skipped),
		logging.Int("failed", summary.Failed),
		logging.Int("orphans_removed", summary.OrphansRemoved),
		logging.Int("records_pruned", summary.RecordsPruned),
		logging.Duration("elapsed", summary.Duration),
	)
	return summary, nil
}

func phaseDone(obs Observer, name string, since time.Time) {
	if obs != nil {
		obs.OnPhaseDone(name, time.Since(since))
	}
}

// aggregator is the single consumer of pipeline results. It is the only
// writer to the record database while workers run.
type aggregator struct {
	ctx        context.Context
	logger     *slog.Logger
	writer     *filecache.BatchWriter
	summary    *Summary
	obs        Observer
	total      int
	done       int
	storageErr error
}

func (a *aggregator) handle(res pipeline.Result) error {
	a.done++
	if a.obs != nil {
		a.obs.OnFileDone(a.done, a.total, res)
	}

	if res.Err != nil {
		a.summary.Failed++
		a.summary.Failures = append(a.summary.Failures, FileFailure{Path: res.Path, Err: res.Err})
		a.logger.Error("file failed",
			logging.Path(res.Path),
			logging.Error(res.Err),
			logging.String(logging.FieldImpact, "will be retried next run"),
		)
		return nil
	}

	out := res.Outcome
	a.summary.count(out.Status)
	a.logOutcome(res)

	if a.storageErr != nil {
		return nil
	}
	// persistence outlives cancellation so finished work is never lost
	if err := a.writer.Add(context.WithoutCancel(a.ctx), out.Record); err != nil {
		a.storageErr = err
		return err
	}
	return nil
}

func (a *aggregator) logOutcome(res pipeline.Result) {
	out := res.Outcome
	attrs := []any{
		logging.Path(res.Path),
		logging.String("destination", out.Record.DestinationPath),
		logging.Duration("elapsed", res.Duration),
	}
	switch out.Status {
	case reconcile.StatusSkipped:
		a.logger.Debug("skipped", attrs...)
	case reconcile.StatusReclaimed:
		a.logger.Info("reclaimed", append(attrs, logging.String("from", out.ReclaimedFrom))...)
	default:
		a.logger.Info(out.Status.String(), attrs...)
	}
}

// IsSetup reports whether err happened before any file was processed.
func IsSetup(err error) bool {
	return errors.Is(err, ErrSetup)
}
