package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"framewatch/internal/daemonctl"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the running pipeline or the most recent run",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			snap, err := daemonctl.BuildStatusSnapshot(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			if jsonOutput {
				return writeJSON(cmd, snap)
			}

			out := cmd.OutOrStdout()
			colorize := shouldColorize(out)
			var lines []string
			lines = append(lines, renderSectionHeader("Framewatch", colorize)...)
			if snap.Reachable && snap.Daemon.Running {
				lines = append(lines, renderStatusLine("Daemon", statusOK, fmt.Sprintf("Running (pid %d)", snap.Daemon.PID), colorize))
			} else {
				lines = append(lines, renderStatusLine("Daemon", statusWarn, "Not running (start with `framewatch run`)", colorize))
			}
			if d := snap.Daemon; d.CameraDevice != "" {
				switch {
				case !d.HotplugWatched:
					lines = append(lines, renderStatusLine("Camera", statusInfo, d.CameraDevice, colorize))
				case d.CameraPresent:
					lines = append(lines, renderStatusLine("Camera", statusOK, d.CameraDevice+" present", colorize))
				default:
					lines = append(lines, renderStatusLine("Camera", statusError, d.CameraDevice+" missing", colorize))
				}
			}
			if snap.Daemon.LastError != "" {
				lines = append(lines, renderStatusLine("Last error", statusError, snap.Daemon.LastError, colorize))
			}

			if p := snap.Daemon.Pipeline; p != nil {
				lines = append(lines, "")
				lines = append(lines, renderSectionHeader("Pipeline", colorize)...)
				lines = append(lines, pipelineLines(p, colorize)...)
				lines = append(lines, "", stageTable(p), channelTable(p))
			} else if snap.LastRun != nil {
				lines = append(lines, "")
				lines = append(lines, renderSectionHeader("Last run", colorize)...)
				lines = append(lines, lastRunLines(snap.LastRun, colorize)...)
			}

			if len(snap.Checks) > 0 {
				lines = append(lines, "")
				lines = append(lines, renderSectionHeader("Checks", colorize)...)
				lines = append(lines, checkLines(snap.Checks, colorize)...)
			}
			fmt.Fprintln(out, strings.Join(lines, "\n"))
			return nil
		},
	}
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Emit the snapshot as JSON")
	return cmd
}
