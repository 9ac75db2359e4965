package reconcile_test

import (
	"bytes"
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"audiomirror/internal/config"
	"audiomirror/internal/filecache"
	"audiomirror/internal/pathmatch"
	"audiomirror/internal/reconcile"
	"audiomirror/internal/testsupport"
)

type fixture struct {
	cfg      *config.Config
	settings reconcile.Settings
	enc      *testsupport.StubEncoder
}

func newFixture(t *testing.T, opts ...testsupport.ConfigOption) *fixture {
	t.Helper()
	cfg := testsupport.NewConfig(t, opts...)
	return &fixture{cfg: cfg, settings: reconcile.SettingsFromConfig(cfg), enc: testsupport.NewStubEncoder()}
}

func (f *fixture) src(rel string) string { return filepath.Join(f.cfg.Paths.SourceDir, rel) }

func (f *fixture) dst(rel string) string { return filepath.Join(f.cfg.Paths.DestinationDir, rel) }

func (f *fixture) engine(cache map[string]filecache.Record, candidates ...string) *reconcile.Engine {
	orphans, _ := reconcile.BuildOrphanIndex(cache, candidates)
	live := make(map[string]struct{})
	for _, src := range candidates {
		kind := f.settings.Classify(src)
		if dst, err := f.settings.Destination(src, kind); err == nil {
			live[dst] = struct{}{}
		}
	}
	snapshot := reconcile.Snapshot{Cache: cache, Orphans: orphans, LiveDestinations: live}
	return reconcile.NewEngine(f.settings, snapshot, f.enc, nil)
}

// process runs one file through a fresh engine and returns the outcome.
func (f *fixture) process(t *testing.T, cache map[string]filecache.Record, src string, candidates ...string) reconcile.Outcome {
	t.Helper()
	if len(candidates) == 0 {
		candidates = []string{src}
	}
	out, err := f.engine(cache, candidates...).Process(context.Background(), src)
	if err != nil {
		t.Fatalf("Process(%s) failed: %v", src, err)
	}
	return out
}

func TestProcessTranscodesNewFile(t *testing.T) {
	f := newFixture(t)
	src := f.src("artist/album/01.flac")
	testsupport.WriteFile(t, src, 4096)

	out := f.process(t, nil, src)
	if out.Status != reconcile.StatusTranscoded {
		t.Fatalf("status = %v, want transcoded", out.Status)
	}
	if out.Record.DestinationPath != f.dst("artist/album/01.ogg") {
		t.Fatalf("destination = %s", out.Record.DestinationPath)
	}
	if out.Record.Config != "ogg:128" || out.Record.Size != 4096 || out.Record.Hash == "" {
		t.Fatalf("unexpected record %#v", out.Record)
	}
	if !testsupport.Exists(t, out.Record.DestinationPath) {
		t.Fatal("destination was not written")
	}
	if f.enc.Calls() != 1 {
		t.Fatalf("encoder calls = %d, want 1", f.enc.Calls())
	}
}

func TestProcessPassesThroughWithHardlink(t *testing.T) {
	f := newFixture(t)
	src := f.src("b.mp3")
	testsupport.WriteFile(t, src, 2048)

	out := f.process(t, nil, src)
	if out.Status != reconcile.StatusPassedThrough || out.Record.Config != filecache.PassthroughTag {
		t.Fatalf("unexpected outcome %#v", out)
	}
	si, _ := os.Stat(src)
	di, err := os.Stat(f.dst("b.mp3"))
	if err != nil || !os.SameFile(si, di) {
		t.Fatalf("expected hardlinked destination (%v)", err)
	}
	if f.enc.Calls() != 0 {
		t.Fatal("passthrough must not invoke the encoder")
	}
}

func TestProcessSkipsUnchangedFile(t *testing.T) {
	f := newFixture(t)
	src := f.src("a.flac")
	testsupport.WriteFile(t, src, 1024)
	first := f.process(t, nil, src)

	cache := map[string]filecache.Record{src: first.Record}
	f.enc.Reset()
	second := f.process(t, cache, src)
	if second.Status != reconcile.StatusSkipped {
		t.Fatalf("status = %v, want skipped", second.Status)
	}
	if second.Record != first.Record {
		t.Fatalf("skip should reuse the stored record, got %#v", second.Record)
	}
	if f.enc.Calls() != 0 {
		t.Fatal("skip must not invoke the encoder")
	}
}

func TestProcessReprocessesWhenAnySkipConditionFails(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(t *testing.T, f *fixture, rec *filecache.Record)
	}{
		{"destination deleted", func(t *testing.T, f *fixture, rec *filecache.Record) {
			if err := os.Remove(rec.DestinationPath); err != nil {
				t.Fatal(err)
			}
		}},
		{"mtime changed", func(t *testing.T, f *fixture, rec *filecache.Record) {
			testsupport.Touch(t, rec.SourcePath, time.Second)
		}},
		{"size changed", func(t *testing.T, f *fixture, rec *filecache.Record) {
			rec.Size++
		}},
		{"config changed", func(t *testing.T, f *fixture, rec *filecache.Record) {
			rec.Config = "ogg:96"
		}},
		{"destination mapping changed", func(t *testing.T, f *fixture, rec *filecache.Record) {
			rec.DestinationPath = f.dst("old/a.ogg")
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			src := f.src("a.flac")
			testsupport.WriteFile(t, src, 1024)
			rec := f.process(t, nil, src).Record

			tt.mutate(t, f, &rec)
			f.enc.Reset()
			out := f.process(t, map[string]filecache.Record{src: rec}, src)
			if out.Status == reconcile.StatusSkipped {
				t.Fatal("expected reprocessing")
			}
			if f.enc.Calls() != 1 {
				t.Fatalf("encoder calls = %d, want 1", f.enc.Calls())
			}
			if !testsupport.Exists(t, f.dst("a.ogg")) {
				t.Fatal("destination missing after reprocess")
			}
		})
	}
}

func TestProcessFormatChangeRemovesPreviousOutput(t *testing.T) {
	f := newFixture(t)
	src := f.src("a.flac")
	testsupport.WriteFile(t, src, 1024)
	rec := f.process(t, nil, src).Record

	g := *f
	g.cfg.Transcode.Format = "opus"
	g.settings = reconcile.SettingsFromConfig(g.cfg)
	out := g.process(t, map[string]filecache.Record{src: rec}, src)

	if out.Status != reconcile.StatusTranscoded || out.Record.Config != "opus:128" {
		t.Fatalf("unexpected outcome %#v", out)
	}
	if testsupport.Exists(t, f.dst("a.ogg")) {
		t.Fatal("old-format output should be removed")
	}
	if !testsupport.Exists(t, f.dst("a.opus")) {
		t.Fatal("new-format output missing")
	}
}

func TestProcessReclaimsRenamedFile(t *testing.T) {
	f := newFixture(t)
	oldSrc := f.src("old/a.flac")
	testsupport.WriteFile(t, oldSrc, 8192)
	rec := f.process(t, nil, oldSrc).Record
	produced, _ := os.ReadFile(rec.DestinationPath)

	newSrc := f.src("new/c.flac")
	if err := os.MkdirAll(filepath.Dir(newSrc), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.Rename(oldSrc, newSrc); err != nil {
		t.Fatal(err)
	}

	f.enc.Reset()
	out := f.process(t, map[string]filecache.Record{oldSrc: rec}, newSrc)
	if out.Status != reconcile.StatusReclaimed || out.ReclaimedFrom != oldSrc {
		t.Fatalf("unexpected outcome %#v", out)
	}
	if f.enc.Calls() != 0 {
		t.Fatal("reclaim must not invoke the encoder")
	}
	if out.Record.Hash != rec.Hash || out.Record.SourcePath != newSrc {
		t.Fatalf("unexpected record %#v", out.Record)
	}
	moved, err := os.ReadFile(f.dst("new/c.ogg"))
	if err != nil || string(moved) != string(produced) {
		t.Fatalf("reclaimed output mismatch: %q (%v)", moved, err)
	}
	if testsupport.Exists(t, rec.DestinationPath) {
		t.Fatal("orphan output should have been moved away")
	}
}

func TestProcessDoesNotReclaimAcrossConfigOrSize(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(rec *filecache.Record)
	}{
		{"config mismatch", func(rec *filecache.Record) { rec.Config = "ogg:320" }},
		{"hash match with size mismatch", func(rec *filecache.Record) { rec.Size += 10 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			oldSrc := f.src("a.flac")
			testsupport.WriteFile(t, oldSrc, 1024)
			rec := f.process(t, nil, oldSrc).Record
			tt.mutate(&rec)

			newSrc := f.src("b.flac")
			if err := os.Rename(oldSrc, newSrc); err != nil {
				t.Fatal(err)
			}

			f.enc.Reset()
			out := f.process(t, map[string]filecache.Record{oldSrc: rec}, newSrc)
			if out.Status != reconcile.StatusTranscoded {
				t.Fatalf("status = %v, want transcoded", out.Status)
			}
			if !testsupport.Exists(t, rec.DestinationPath) {
				t.Fatal("rejected orphan output must stay in place")
			}
		})
	}
}

func TestProcessDoesNotReclaimLiveDestination(t *testing.T) {
	f := newFixture(t)
	// x.flac is deleted and its bytes reappear at y.flac, while a new x.wav
	// now maps onto x.ogg.
	f.cfg.Transcode.AllowedExtensions = []string{"flac", "wav"}
	f.settings = reconcile.SettingsFromConfig(f.cfg)

	oldSrc := f.src("x.flac")
	testsupport.WriteFile(t, oldSrc, 1024)
	rec := f.process(t, nil, oldSrc).Record
	if err := os.Rename(oldSrc, f.src("y.flac")); err != nil {
		t.Fatal(err)
	}
	testsupport.WritePattern(t, f.src("x.wav"), 512, 0x11)

	f.enc.Reset()
	out := f.process(t, map[string]filecache.Record{oldSrc: rec}, f.src("y.flac"), f.src("y.flac"), f.src("x.wav"))
	if out.Status != reconcile.StatusTranscoded {
		t.Fatalf("status = %v, want transcoded", out.Status)
	}
	if !testsupport.Exists(t, f.dst("x.ogg")) {
		t.Fatal("live destination should not be moved")
	}
}

func TestProcessReclaimsAfterForcedReprocess(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(f *fixture, rec *filecache.Record)
	}{
		{"config changed", func(f *fixture, rec *filecache.Record) {
			rec.Config = "ogg:96"
		}},
		{"destination mapping changed", func(f *fixture, rec *filecache.Record) {
			rec.DestinationPath = f.dst("old/x.ogg")
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			src := f.src("x.flac")
			orphanSrc := f.src("o.flac")
			testsupport.WriteFile(t, src, 2048)
			testsupport.WriteFile(t, orphanSrc, 2048)
			rec := f.process(t, nil, src).Record
			orphan := f.process(t, nil, orphanSrc).Record
			if err := os.Remove(orphanSrc); err != nil {
				t.Fatal(err)
			}

			tt.mutate(f, &rec)
			cache := map[string]filecache.Record{src: rec, orphanSrc: orphan}
			f.enc.Reset()
			out := f.process(t, cache, src)

			if out.Status != reconcile.StatusReclaimed || out.ReclaimedFrom != orphanSrc {
				t.Fatalf("unexpected outcome %#v", out)
			}
			if f.enc.Calls() != 0 {
				t.Fatalf("encoder calls = %d, want 0", f.enc.Calls())
			}
			if out.Record.Config != "ogg:128" || out.Record.DestinationPath != f.dst("x.ogg") {
				t.Fatalf("unexpected record %#v", out.Record)
			}
			if !testsupport.Exists(t, f.dst("x.ogg")) {
				t.Fatal("destination missing after reclaim")
			}
			if testsupport.Exists(t, orphan.DestinationPath) {
				t.Fatal("orphan output should have been moved away")
			}
		})
	}
}

func TestProcessReclaimsOrphanAlreadyAtDestination(t *testing.T) {
	f := newFixture(t, testsupport.WithExtensions([]string{"flac", "wav"}, nil))
	oldSrc := f.src("a.flac")
	testsupport.WriteFile(t, oldSrc, 1024)
	rec := f.process(t, nil, oldSrc).Record
	produced, _ := os.ReadFile(rec.DestinationPath)

	newSrc := f.src("a.wav")
	if err := os.Rename(oldSrc, newSrc); err != nil {
		t.Fatal(err)
	}

	f.enc.Reset()
	out := f.process(t, map[string]filecache.Record{oldSrc: rec}, newSrc)
	if out.Status != reconcile.StatusReclaimed || out.ReclaimedFrom != oldSrc {
		t.Fatalf("unexpected outcome %#v", out)
	}
	if out.Record.DestinationPath != rec.DestinationPath {
		t.Fatalf("destination = %s, want %s", out.Record.DestinationPath, rec.DestinationPath)
	}
	if f.enc.Calls() != 0 {
		t.Fatal("reclaim must not invoke the encoder")
	}
	kept, err := os.ReadFile(rec.DestinationPath)
	if err != nil || string(kept) != string(produced) {
		t.Fatalf("output should stay in place: %q (%v)", kept, err)
	}
}

func TestProcessIgnoresOrphanWithMissingOutput(t *testing.T) {
	f := newFixture(t)
	oldSrc := f.src("a.flac")
	testsupport.WriteFile(t, oldSrc, 1024)
	rec := f.process(t, nil, oldSrc).Record
	rec.Size += 10
	if err := os.Remove(rec.DestinationPath); err != nil {
		t.Fatal(err)
	}
	newSrc := f.src("b.flac")
	if err := os.Rename(oldSrc, newSrc); err != nil {
		t.Fatal(err)
	}

	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	orphans, _ := reconcile.BuildOrphanIndex(map[string]filecache.Record{oldSrc: rec}, []string{newSrc})
	engine := reconcile.NewEngine(f.settings, reconcile.Snapshot{
		Cache:            map[string]filecache.Record{oldSrc: rec},
		Orphans:          orphans,
		LiveDestinations: map[string]struct{}{f.dst("b.ogg"): {}},
	}, f.enc, logger)

	out, err := engine.Process(context.Background(), newSrc)
	if err != nil {
		t.Fatalf("Process failed: %v", err)
	}
	if out.Status != reconcile.StatusTranscoded {
		t.Fatalf("status = %v, want transcoded", out.Status)
	}
	if strings.Contains(buf.String(), "hash_size_mismatch") {
		t.Fatalf("orphan without output should not be compared: %s", buf.String())
	}
}

func TestProcessReclaimRaceHasSingleWinner(t *testing.T) {
	f := newFixture(t, testsupport.WithWorkers(4))
	oldSrc := f.src("orig.flac")
	testsupport.WriteFile(t, oldSrc, 4096)
	rec := f.process(t, nil, oldSrc).Record
	if err := os.Remove(oldSrc); err != nil {
		t.Fatal(err)
	}

	var candidates []string
	for _, name := range []string{"c1.flac", "c2.flac", "c3.flac", "c4.flac"} {
		path := f.src(name)
		testsupport.WriteFile(t, path, 4096)
		candidates = append(candidates, path)
	}

	f.enc.Reset()
	engine := f.engine(map[string]filecache.Record{oldSrc: rec}, candidates...)

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		statuses = map[reconcile.Status]int{}
	)
	for _, src := range candidates {
		wg.Add(1)
		go func(src string) {
			defer wg.Done()
			out, err := engine.Process(context.Background(), src)
			if err != nil {
				t.Errorf("Process(%s) failed: %v", src, err)
				return
			}
			mu.Lock()
			statuses[out.Status]++
			mu.Unlock()
		}(src)
	}
	wg.Wait()

	if statuses[reconcile.StatusReclaimed] != 1 || statuses[reconcile.StatusTranscoded] != 3 {
		t.Fatalf("unexpected status counts %v", statuses)
	}
	if f.enc.Calls() != 3 {
		t.Fatalf("encoder calls = %d, want 3", f.enc.Calls())
	}
	for _, name := range []string{"c1.ogg", "c2.ogg", "c3.ogg", "c4.ogg"} {
		if !testsupport.Exists(t, f.dst(name)) {
			t.Fatalf("%s missing", name)
		}
	}
}

func TestProcessErrors(t *testing.T) {
	f := newFixture(t, testsupport.WithExtensions([]string{"flac"}, []string{"log"}))

	var fileErr *reconcile.FileError

	_, err := f.engine(nil).Process(context.Background(), f.src("rip.log"))
	if !errors.Is(err, reconcile.ErrIgnored) {
		t.Fatalf("expected ErrIgnored, got %v", err)
	}

	_, err = f.engine(nil).Process(context.Background(), f.src("missing.flac"))
	if !errors.As(err, &fileErr) || fileErr.Op != "stat" || !errors.Is(err, fs.ErrNotExist) {
		t.Fatalf("expected stat FileError, got %v", err)
	}

	src := f.src("broken.flac")
	testsupport.WriteFile(t, src, 100)
	f.enc.FailFor(src, errors.New("decoder exploded"))
	_, err = f.engine(nil).Process(context.Background(), src)
	if !errors.As(err, &fileErr) || fileErr.Op != "transcode" || fileErr.Path != src {
		t.Fatalf("expected transcode FileError, got %v", err)
	}
}

func TestDestinationMapping(t *testing.T) {
	s := reconcile.Settings{SourceDir: "/music", DestinationDir: "/mirror", Format: "opus"}
	tests := []struct {
		src  string
		kind pathmatch.Kind
		want string
	}{
		{"/music/a/b.flac", pathmatch.Transcode, "/mirror/a/b.opus"},
		{"/music/a/b.c.FLAC", pathmatch.Transcode, "/mirror/a/b.c.opus"},
		{"/music/a/b.mp3", pathmatch.Passthrough, "/mirror/a/b.mp3"},
		{"/music/cover", pathmatch.Passthrough, "/mirror/cover"},
	}
	for _, tt := range tests {
		got, err := s.Destination(tt.src, tt.kind)
		if err != nil || got != tt.want {
			t.Errorf("Destination(%s) = %q, %v; want %q", tt.src, got, err, tt.want)
		}
	}
	if _, err := s.Destination("/elsewhere/x.flac", pathmatch.Transcode); err == nil {
		t.Error("expected error for path outside source")
	}
}

func TestConfigTag(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithFormat("opus"), testsupport.WithBitrate(96))
	s := reconcile.SettingsFromConfig(cfg)
	if got := s.ConfigTag(pathmatch.Transcode); got != "opus:96" {
		t.Fatalf("transcode tag = %q, want opus:96", got)
	}
	if got := s.ConfigTag(pathmatch.Passthrough); got != filecache.PassthroughTag {
		t.Fatalf("passthrough tag = %q, want %q", got, filecache.PassthroughTag)
	}
}
