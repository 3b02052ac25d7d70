package daemonctl

import (
	"context"
	"errors"
	"time"

	"framewatch/internal/config"
	"framewatch/internal/ipc"
	"framewatch/internal/preflight"
	"framewatch/internal/store"
)

// Snapshot is what `framewatch status` renders.
type Snapshot struct {
	Reachable bool
	Daemon    *ipc.StatusResponse
	LastRun   *store.Run
	Checks    []preflight.Result
}

// BuildStatusSnapshot asks the running process for its status. Without an
// active pipeline the newest stored run is attached, and without a process
// the preflight checks are too.
func BuildStatusSnapshot(ctx context.Context, cfg *config.Config) (*Snapshot, error) {
	if cfg == nil {
		return nil, errors.New("configuration not available")
	}
	snap := &Snapshot{Daemon: &ipc.StatusResponse{}}
	if client, err := ipc.Dial(cfg.SocketPath()); err == nil {
		if resp, err := client.Status(); err == nil {
			snap.Reachable = true
			snap.Daemon = resp
		}
		_ = client.Close()
	}
	if snap.Daemon.Pipeline == nil {
		snap.LastRun = latestRun(ctx, cfg)
	}
	if !snap.Reachable {
		snap.Checks = preflight.RunAll(ctx, cfg)
	}
	return snap, nil
}

func latestRun(ctx context.Context, cfg *config.Config) *store.Run {
	st, err := store.Open(cfg)
	if err != nil {
		return nil
	}
	defer st.Close()
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	runs, err := st.ListRuns(ctx, 1)
	if err != nil || len(runs) == 0 {
		return nil
	}
	return runs[0]
}
