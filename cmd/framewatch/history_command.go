package main

import (
	"errors"
	"fmt"
	"path/filepath"
	"strconv"

	"github.com/spf13/cobra"

	"framewatch/internal/store"
)

func newHistoryCommand(ctx *commandContext) *cobra.Command {
	var runID string
	var limit int
	var prune int
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recorded runs or the frames of one run",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			st, err := store.Open(cfg)
			if err != nil {
				return err
			}
			defer st.Close()

			out := cmd.OutOrStdout()
			if cmd.Flags().Changed("prune") {
				removed, err := st.PruneRuns(cmd.Context(), prune)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "Pruned %d run(s)\n", removed)
				return nil
			}

			if runID != "" {
				run, err := st.GetRun(cmd.Context(), runID)
				if err != nil {
					return err
				}
				if run == nil {
					return errors.New("no run matches " + runID)
				}
				frames, err := st.ListFrames(cmd.Context(), run.ID)
				if err != nil {
					return err
				}
				if jsonOutput {
					return writeJSON(cmd, map[string]any{"run": run, "frames": frames})
				}
				colorize := shouldColorize(out)
				for _, line := range lastRunLines(run, colorize) {
					fmt.Fprintln(out, line)
				}
				if len(frames) == 0 {
					fmt.Fprintln(out, "No frames recorded")
					return nil
				}
				fmt.Fprintln(out, frameTable(frames))
				return nil
			}

			runs, err := st.ListRuns(cmd.Context(), limit)
			if err != nil {
				return err
			}
			if jsonOutput {
				return writeJSON(cmd, runs)
			}
			if len(runs) == 0 {
				fmt.Fprintln(out, "No runs recorded")
				return nil
			}
			fmt.Fprintln(out, runTable(runs))
			return nil
		},
	}
	cmd.Flags().StringVar(&runID, "run", "", "Show the frames of one run (id or unique prefix)")
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Number of runs to list (0 lists all)")
	cmd.Flags().IntVar(&prune, "prune", 0, "Delete all but the newest N runs")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Emit JSON")
	return cmd
}

func runTable(runs []*store.Run) string {
	rows := make([][]string, 0, len(runs))
	for _, run := range runs {
		id := run.ID
		if len(id) > 8 {
			id = id[:8]
		}
		rows = append(rows, []string{
			id,
			run.Source,
			string(run.Status),
			formatTimestamp(run.StartedAt),
			formatDuration(run.Duration()),
			strconv.FormatUint(run.Completed, 10),
			strconv.FormatUint(run.Dropped, 10),
			strconv.FormatInt(run.Allocated-run.Released, 10),
		})
	}
	return renderTable([]column{
		left("Run"), left("Source"), left("Status"), left("Started"),
		right("Duration"), right("Frames"), right("Dropped"), right("Leaked"),
	}, rows)
}

func frameTable(frames []store.FrameRecord) string {
	rows := make([][]string, 0, len(frames))
	for _, f := range frames {
		rows = append(rows, []string{
			strconv.FormatUint(f.Seq, 10),
			f.Variant,
			strconv.Itoa(f.Motion),
			strconv.Itoa(f.Lines),
			strconv.Itoa(f.Circles),
			formatTimestamp(f.CapturedAt),
			filepath.Base(f.Path),
		})
	}
	return renderTable([]column{
		right("Seq"), left("Variant"), right("Motion"), right("Lines"),
		right("Circles"), left("Captured"), left("File"),
	}, rows)
}
