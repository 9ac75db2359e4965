package testsupport

import (
	"os"
	"path/filepath"
	"testing"

	"audiomirror/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test:
// an existing source and destination tree plus a database path outside both.
// Transcoding defaults to flac -> ogg at 128 kbps with two workers.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.SourceDir = filepath.Join(base, "source")
	cfgVal.Paths.DestinationDir = filepath.Join(base, "mirror")
	cfgVal.Paths.DatabasePath = filepath.Join(base, "state", "mirror.db")
	cfgVal.Transcode.AllowedExtensions = []string{"flac"}
	cfgVal.Transcode.Format = "ogg"
	cfgVal.Transcode.BitrateKbps = 128
	cfgVal.Workers.Count = 2
	cfgVal.Logging.Level = "error"

	for _, dir := range []string{cfgVal.Paths.SourceDir, cfgVal.Paths.DestinationDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			t.Fatalf("mkdir %s: %v", dir, err)
		}
	}

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	return builder.cfg
}

// WithFormat overrides the target format.
func WithFormat(format string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Transcode.Format = format
	}
}

// WithBitrate overrides the target bitrate.
func WithBitrate(kbps int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Transcode.BitrateKbps = kbps
	}
}

// WithExtensions replaces the allowed and ignored extension lists.
func WithExtensions(allowed, ignored []string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Transcode.AllowedExtensions = allowed
		b.cfg.Transcode.IgnoredExtensions = ignored
	}
}

// WithWorkers sets the worker pool size.
func WithWorkers(n int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Workers.Count = n
	}
}

// WithCopyMode switches passthrough from hardlinks to copies.
func WithCopyMode() ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Passthrough.Copy = true
	}
}

// WithStubbedBinaries writes stub executables for the provided names and
// prepends them to PATH. If names is empty, ffmpeg is stubbed.
func WithStubbedBinaries(names ...string) ConfigOption {
	return func(b *configBuilder) {
		if len(names) == 0 {
			names = []string{"ffmpeg"}
		}
		binDir := filepath.Join(b.baseDir, "bin")
		if err := os.MkdirAll(binDir, 0o755); err != nil {
			b.t.Fatalf("mkdir bin dir: %v", err)
		}
		script := []byte("#!/bin/sh\nexit 0\n")
		for _, name := range names {
			target := filepath.Join(binDir, name)
			if err := os.WriteFile(target, script, 0o755); err != nil {
				b.t.Fatalf("write stub %s: %v", name, err)
			}
		}

		oldPath := os.Getenv("PATH")
		if err := os.Setenv("PATH", binDir+string(os.PathListSeparator)+oldPath); err != nil {
			b.t.Fatalf("set PATH: %v", err)
		}
		b.t.Cleanup(func() {
			_ = os.Setenv("PATH", oldPath)
		})
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.SourceDir)
}
