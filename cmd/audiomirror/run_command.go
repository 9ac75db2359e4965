package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"audiomirror/internal/mirror"
)

func newRunCommand(ctx *commandContext) *cobra.Command {
	var flags mirrorFlags
	var showProgress bool

	cmd := &cobra.Command{
		Use:         "run",
		Short:       "Bring the mirror up to date with the source tree",
		Annotations: map[string]string{"skipConfigLoad": "true"},
		Args:        cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig(flags.override(cmd))
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			logger, err := ctx.logger()
			if err != nil {
				return fmt.Errorf("create logger: %w", err)
			}

			opts := mirror.Options{Config: cfg, Logger: logger}
			errOut := cmd.ErrOrStderr()
			if showProgress && shouldColorize(errOut) {
				opts.Observer = newProgressObserver(errOut)
			}

			summary, runErr := mirror.Run(cmd.Context(), opts)
			if mirror.IsSetup(runErr) {
				return runErr
			}

			out := cmd.OutOrStdout()
			renderSummary(out, summary, shouldColorize(out))
			if runErr != nil {
				return runErr
			}
			if summary.Failed > 0 {
				return fmt.Errorf("%d file(s) failed; they will be retried on the next run", summary.Failed)
			}
			return nil
		},
	}

	flags.bind(cmd)
	cmd.Flags().BoolVar(&showProgress, "progress", false, "Show a progress bar when attached to a terminal")
	return cmd
}
