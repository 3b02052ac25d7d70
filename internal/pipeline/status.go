package pipeline

import (
	"time"

	"framewatch/internal/frame"
	"framewatch/internal/mailbox"
	"framewatch/internal/release"
	"framewatch/internal/sequencer"
	"framewatch/internal/stage"
)

// RingStatus summarizes the acquisition ring.
type RingStatus struct {
	Size      int    `json:"size"`
	Capacity  int    `json:"capacity"`
	Evictions uint64 `json:"evictions"`
}

// Status is a point-in-time view of a pipeline for the status command.
type Status struct {
	RunID      string                `json:"run_id"`
	StartedAt  time.Time             `json:"started_at,omitzero"`
	// Uptime runs from Run until Stopped and is zero before Run.
	Uptime     time.Duration         `json:"uptime"`
	State      string                `json:"state"`
	Ticks      uint64                `json:"ticks"`
	Completed  uint64                `json:"completed"`
	MaxFrames  int                   `json:"max_frames"`
	Divisors   map[string]uint64     `json:"divisors"`
	Stages     []stage.Stats         `json:"stages"`
	Health     []stage.Health        `json:"health"`
	Signals    []release.Stats       `json:"signals"`
	Channels   []mailbox.Stats       `json:"channels"`
	Ring       RingStatus            `json:"ring"`
	Ledger     frame.Snapshot        `json:"ledger"`
	Jitter     sequencer.JitterStats `json:"jitter"`
	StopEvents []StopEvent           `json:"stop_events,omitempty"`
	StopReason string                `json:"stop_reason,omitempty"`
	VideoPath  string                `json:"video_path,omitempty"`
	Archive    string                `json:"archive_path,omitempty"`
}

// Status gathers counters from every component. It is safe to call at any
// point in the lifecycle.
func (p *Pipeline) Status() Status {
	st := Status{
		RunID:     p.runID,
		State:     p.seq.State().String(),
		Ticks:     p.seq.Ticks(),
		Completed: p.seq.Completed(),
		MaxFrames: p.cfg.Sequencer.MaxFrames,
		Divisors:  p.seq.Divisors(),
		Channels:  []mailbox.Stats{p.selectQ.Stats(), p.writeQ.Stats()},
		Ledger:    p.ledger.Snapshot(),
		Jitter:    p.seq.Jitter(),
		VideoPath: p.output.VideoPath,
	}
	for _, r := range p.runners {
		st.Stages = append(st.Stages, r.Stats())
		st.Health = append(st.Health, r.Health())
		st.Signals = append(st.Signals, p.signals[r.Name()].Stats())
	}

	p.ringMu.Lock()
	st.Ring = RingStatus{Size: p.ring.Size(), Capacity: p.ring.Capacity(), Evictions: p.evictions}
	p.ringMu.Unlock()

	p.mu.Lock()
	st.StopEvents = append([]StopEvent(nil), p.stopEvents...)
	st.StopReason = string(p.reason)
	st.Archive = p.archive
	st.StartedAt = p.startedAt
	switch {
	case p.startedAt.IsZero():
	case p.stoppedAt.IsZero():
		st.Uptime = time.Since(p.startedAt)
	default:
		st.Uptime = p.stoppedAt.Sub(p.startedAt)
	}
	p.mu.Unlock()
	return st
}
