package main

import (
	"github.com/spf13/cobra"

	"audiomirror/internal/config"
)

// mirrorFlags carries command-line values that override the config file.
type mirrorFlags struct {
	source      string
	destination string
	database    string
	allowed     []string
	ignored     []string
	format      string
	bitrate     int
	threads     int
	copyMode    bool
}

func (f *mirrorFlags) bindPaths(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.source, "source", "i", "", "Source directory to mirror from")
	cmd.Flags().StringVarP(&f.destination, "destination", "o", "", "Destination directory to mirror into")
	cmd.Flags().StringVarP(&f.database, "db-path", "d", "", "Record database path (created if missing)")
}

func (f *mirrorFlags) bind(cmd *cobra.Command) {
	f.bindPaths(cmd)
	cmd.Flags().StringSliceVarP(&f.allowed, "allowed", "a", nil, "Extensions to transcode (repeatable)")
	cmd.Flags().StringSliceVarP(&f.ignored, "ignored", "x", nil, "Extensions to ignore (repeatable)")
	cmd.Flags().StringVarP(&f.format, "format", "f", "", "Transcoded output format (file extension for ffmpeg)")
	cmd.Flags().IntVarP(&f.bitrate, "bitrate", "b", 0, "Bitrate of transcoded files in kbps")
	cmd.Flags().IntVarP(&f.threads, "threads", "t", 0, "Worker count (default max(cores-1, 1))")
	cmd.Flags().BoolVarP(&f.copyMode, "copy", "c", false, "Copy passed-through files instead of hardlinking")
}

// override applies only the flags the user set, so unset flags never clobber
// file values.
func (f *mirrorFlags) override(cmd *cobra.Command) config.Override {
	changed := func(name string) bool {
		flag := cmd.Flags().Lookup(name)
		return flag != nil && flag.Changed
	}
	return func(cfg *config.Config) {
		if changed("source") {
			cfg.Paths.SourceDir = f.source
		}
		if changed("destination") {
			cfg.Paths.DestinationDir = f.destination
		}
		if changed("db-path") {
			cfg.Paths.DatabasePath = f.database
		}
		if changed("allowed") {
			cfg.Transcode.AllowedExtensions = f.allowed
		}
		if changed("ignored") {
			cfg.Transcode.IgnoredExtensions = f.ignored
		}
		if changed("format") {
			cfg.Transcode.Format = f.format
		}
		if changed("bitrate") {
			cfg.Transcode.BitrateKbps = f.bitrate
		}
		if changed("threads") {
			cfg.Workers.Count = f.threads
		}
		if changed("copy") {
			cfg.Passthrough.Copy = f.copyMode
		}
	}
}
