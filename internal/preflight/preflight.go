package preflight

import (
	"context"

	"framewatch/internal/config"
	"framewatch/internal/deps"
)

// Result reports the outcome of a single preflight check. Optional results
// do not block a run.
type Result struct {
	Name     string
	Passed   bool
	Optional bool
	Detail   string
}

// RunAll executes all applicable preflight checks for the given config.
func RunAll(ctx context.Context, cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}

	results := []Result{
		CheckDirectoryAccess("Output directory", cfg.Paths.OutputDir),
		CheckDirectoryAccess("State directory", cfg.Paths.StateDir),
		CheckDirectoryAccess("Log directory", cfg.Paths.LogDir),
		CheckBackend(cfg.Processing.Backend),
	}

	switch cfg.Camera.Source {
	case "device":
		results = append(results, CheckVideoDevice(cfg.Camera.DeviceIndex))
	case "directory":
		results = append(results, CheckReplayDir(cfg.Camera.ReplayDir))
	}

	if cfg.Realtime.Enabled {
		results = append(results, CheckRealtime(cfg.Realtime.Priority))
	}
	if cfg.Metrics.Bind != "" {
		results = append(results, CheckBind(ctx, cfg.Metrics.Bind))
	}
	if cfg.Output.ArchiveEncode {
		for _, status := range deps.CheckBinaries(deps.ArchiveRequirements()) {
			results = append(results, fromDependency(status))
		}
	}
	return results
}

// Failed returns the required checks that did not pass.
func Failed(results []Result) []Result {
	var out []Result
	for _, r := range results {
		if !r.Passed && !r.Optional {
			out = append(out, r)
		}
	}
	return out
}

func fromDependency(status deps.Status) Result {
	r := Result{Name: status.Name, Passed: status.Available, Optional: status.Optional}
	if status.Available {
		r.Detail = status.Path
	} else {
		r.Detail = status.Detail
	}
	return r
}
