package store

import "time"

// RunStatus is the lifecycle state recorded for a run.
type RunStatus string

const (
	RunRunning   RunStatus = "running"
	RunCompleted RunStatus = "completed"
	RunStopped   RunStatus = "stopped"
	RunFailed    RunStatus = "failed"
)

// Run is one pipeline execution from Running to Stopped.
type Run struct {
	ID             string
	Source         string
	Status         RunStatus
	StartedAt      time.Time
	StoppedAt      time.Time
	Ticks          uint64
	Completed      uint64
	Dropped        uint64
	Allocated      int64
	Released       int64
	DoubleReleases int64
	VideoPath      string
	ArchivePath    string
	ErrorMessage   string
}

// Duration reports how long the run lasted, or zero while it is running.
func (r Run) Duration() time.Duration {
	if r.StoppedAt.IsZero() {
		return 0
	}
	return r.StoppedAt.Sub(r.StartedAt)
}

// FrameRecord is one persisted still.
type FrameRecord struct {
	ID          int64
	RunID       string
	Seq         uint64
	Variant     string
	Path        string
	Width       int
	Height      int
	Motion      int
	Lines       int
	Circles     int
	CapturedAt  time.Time
	PersistedAt time.Time
}
