package main

import (
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/pkg/profile"
	"github.com/spf13/cobra"

	"framewatch/internal/config"
	"framewatch/internal/daemonrun"
	"framewatch/internal/faults"
	"framewatch/internal/vision"
)

func newRunCommand(ctx *commandContext) *cobra.Command {
	var synthetic bool
	var profileMode string
	var logLevel string
	var runID string

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the capture pipeline in the foreground",
		Long: "Run arms the sequencer, starts the Acquire, Difference, Process, and Write\n" +
			"stages, and runs until sequencer.max_frames stills are written or the\n" +
			"process receives SIGINT/SIGTERM. Stages are drained in reverse order on stop.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if synthetic {
				useSyntheticSource(cfg, cmd.ErrOrStderr())
			}

			stop, err := startProfile(profileMode, cfg.Paths.StateDir)
			if err != nil {
				return err
			}
			defer stop()

			return daemonrun.Run(cmd.Context(), cfg, daemonrun.Options{
				LogLevel: logLevel,
				RunID:    runID,
			})
		},
	}

	cmd.Flags().BoolVar(&synthetic, "synthetic", false, "Use the synthetic frame source instead of the configured camera")
	cmd.Flags().StringVar(&profileMode, "profile", "", "Write a cpu or mem profile to the state directory")
	cmd.Flags().StringVar(&logLevel, "log-level", "", "Override logging.level for this run")
	cmd.Flags().StringVar(&runID, "run-id", "", "Use a fixed run identifier")
	return cmd
}

// useSyntheticSource switches cfg to generated frames. Builds without the
// configured backend fall back to the software backend.
func useSyntheticSource(cfg *config.Config, warn io.Writer) {
	cfg.Camera.Source = "synthetic"
	if !slices.Contains(vision.Backends(), cfg.Processing.Backend) {
		fmt.Fprintf(warn, "processing backend %q not built in; using software\n", cfg.Processing.Backend)
		cfg.Processing.Backend = "software"
	}
}

func startProfile(mode, dir string) (func(), error) {
	var kind func(*profile.Profile)
	switch strings.ToLower(strings.TrimSpace(mode)) {
	case "":
		return func() {}, nil
	case "cpu":
		kind = profile.CPUProfile
	case "mem":
		kind = profile.MemProfile
	default:
		return nil, faults.Configuration("cli", fmt.Sprintf("unknown --profile %q (want cpu or mem)", mode), nil)
	}
	p := profile.Start(kind, profile.ProfilePath(dir), profile.NoShutdownHook, profile.Quiet)
	return p.Stop, nil
}
