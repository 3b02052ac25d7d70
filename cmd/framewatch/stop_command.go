package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"framewatch/internal/daemonctl"
)

func newStopCommand(ctx *commandContext) *cobra.Command {
	var grace time.Duration

	cmd := &cobra.Command{
		Use:   "stop",
		Short: "Drain and stop a running pipeline",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			result, err := daemonctl.StopAndTerminate(cfg, grace)
			if errors.Is(err, daemonctl.ErrDaemonNotRunning) {
				fmt.Fprintln(out, "Framewatch is not running")
				return nil
			}
			if err != nil {
				return err
			}
			switch {
			case result.ForcedKill:
				fmt.Fprintf(out, "Framewatch did not drain within %s; killed pid %d\n", grace, result.PID)
			case result.StopAcknowledged:
				fmt.Fprintln(out, "Framewatch stopped")
			default:
				fmt.Fprintf(out, "Framewatch stopped (%s)\n", result.Message)
			}
			return nil
		},
	}
	cmd.Flags().DurationVar(&grace, "grace", 10*time.Second, "How long to wait for the drain before killing the process")
	return cmd
}
