package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"framewatch/internal/preflight"
	"framewatch/internal/store"
)

func newCheckCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Verify directories, camera, backend, and optional tooling",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if err := cfg.EnsureDirectories(); err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			colorize := shouldColorize(out)

			results := preflight.RunAll(cmd.Context(), cfg)
			for _, line := range checkLines(results, colorize) {
				fmt.Fprintln(out, line)
			}

			if st, err := store.Open(cfg); err != nil {
				fmt.Fprintln(out, renderStatusLine("Capture index", statusError, err.Error(), colorize))
			} else {
				health, healthErr := st.CheckHealth(cmd.Context())
				_ = st.Close()
				if healthErr != nil {
					fmt.Fprintln(out, renderStatusLine("Capture index", statusError, healthErr.Error(), colorize))
				} else {
					detail := fmt.Sprintf("%d runs, %d frames, integrity %s", health.TotalRuns, health.TotalFrames, yesNo(health.IntegrityCheck))
					fmt.Fprintln(out, renderStatusLine("Capture index", statusOK, detail, colorize))
				}
			}

			if failed := preflight.Failed(results); len(failed) > 0 {
				return fmt.Errorf("%d required check(s) failed", len(failed))
			}
			return nil
		},
	}
}
