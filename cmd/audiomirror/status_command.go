package main

import (
	"fmt"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"audiomirror/internal/filecache"
	"audiomirror/internal/preflight"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	var flags mirrorFlags

	cmd := &cobra.Command{
		Use:         "status",
		Short:       "Show readiness checks and what the record database holds",
		Annotations: map[string]string{"skipConfigLoad": "true"},
		Args:        cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig(flags.override(cmd))
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			out := cmd.OutOrStdout()
			p := newPalette(shouldColorize(out))

			fmt.Fprintln(out, p.head.Sprint("Checks"))
			rows := [][]string{}
			for _, check := range preflight.RunAll(cfg, true) {
				rows = append(rows, []string{check.Name, checkLabel(p, check.Passed), check.Detail})
			}
			fmt.Fprintln(out, renderTable([]string{"Check", "Status", "Detail"}, rows, nil))

			fmt.Fprintln(out, p.head.Sprint("Records"))
			if _, err := os.Stat(cfg.Paths.DatabasePath); err != nil {
				fmt.Fprintf(out, "No record database at %s yet; run `audiomirror run` to create it\n", cfg.Paths.DatabasePath)
				return nil
			}
			store, err := filecache.Open(cfg.Paths.DatabasePath)
			if err != nil {
				return fmt.Errorf("open record database: %w", err)
			}
			defer store.Close()

			summary, err := store.Summary(cmd.Context())
			if err != nil {
				return err
			}
			var (
				totalFiles int
				totalBytes int64
				recordRows [][]string
			)
			for _, entry := range summary {
				totalFiles += entry.Files
				totalBytes += entry.Bytes
				recordRows = append(recordRows, []string{
					entry.Config,
					humanize.Comma(int64(entry.Files)),
					humanize.Bytes(uint64(entry.Bytes)),
				})
			}
			recordRows = append(recordRows, []string{"total", humanize.Comma(int64(totalFiles)), humanize.Bytes(uint64(totalBytes))})
			fmt.Fprintln(out, renderTable([]string{"Processing", "Files", "Source size"}, recordRows, []columnAlignment{alignLeft, alignRight, alignRight}))
			fmt.Fprintf(out, "Database: %s (current tag %s, %d workers)\n", cfg.Paths.DatabasePath, transcodeTag(cfg), cfg.Workers.Count)
			return nil
		},
	}

	flags.bind(cmd)
	return cmd
}

func checkLabel(p palette, passed bool) string {
	if passed {
		return p.ok.Sprint("OK")
	}
	return p.fail.Sprint("FAIL")
}
