package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"framewatch/internal/config"
)

func newConfigCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration utilities",
	}
	cmd.AddCommand(newConfigValidateCommand(ctx), newConfigInitCommand())
	return cmd
}

func newConfigInitCommand() *cobra.Command {
	var targetPath string
	var overwrite bool

	cmd := &cobra.Command{
		Use:         "init",
		Short:       "Write a sample configuration file",
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, _ []string) error {
			target, err := initTarget(targetPath)
			if err != nil {
				return err
			}
			if !overwrite {
				switch _, err := os.Stat(target); {
				case err == nil:
					return fmt.Errorf("%s already exists; pass --overwrite to replace it", target)
				case !errors.Is(err, fs.ErrNotExist):
					return fmt.Errorf("inspect %s: %w", target, err)
				}
			}
			if err := config.CreateSample(target); err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Wrote sample configuration to %s\n", target)
			fmt.Fprintln(out, "Edit [camera] and [paths], then run `framewatch check`.")
			return nil
		},
	}

	cmd.Flags().StringVarP(&targetPath, "path", "p", "", "Destination for the configuration file")
	cmd.Flags().BoolVar(&overwrite, "overwrite", false, "Replace an existing file")
	return cmd
}

func initTarget(flagValue string) (string, error) {
	if v := strings.TrimSpace(flagValue); v != "" {
		return config.ExpandPath(v)
	}
	return config.DefaultConfigPath()
}

func newConfigValidateCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Load the configuration and print the stage schedule",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			source := ctx.configPath
			if _, err := os.Stat(source); err != nil {
				source += " (missing, defaults applied)"
			}
			fmt.Fprintf(out, "Config: %s\n", source)
			fmt.Fprintf(out, "Camera: %s %dx%d via %s backend\n",
				cfg.Camera.Source, cfg.Camera.Width, cfg.Camera.Height, cfg.Processing.Backend)
			fmt.Fprintf(out, "Output: %s\n", cfg.Paths.OutputDir)
			fmt.Fprintln(out, scheduleTable(cfg))
			fmt.Fprintln(out, "Configuration valid")
			return nil
		},
	}
}

func scheduleTable(cfg *config.Config) string {
	base := cfg.Sequencer.BaseRateHz
	rows := make([][]string, 0, 4)
	for _, name := range []string{config.StageAcquire, config.StageDifference, config.StageProcess, config.StageWrite} {
		hz := cfg.StageRate(name)
		div := "-"
		if hz > 0 {
			div = "/" + strconv.Itoa(base/hz)
		}
		rows = append(rows, []string{name, strconv.Itoa(hz) + " Hz", div, formatDuration(cfg.StageTimeout(name))})
	}
	return renderTable([]column{left("Stage"), right("Rate"), right("Divisor"), right("Wait")}, rows)
}
