package stage

// Phase is the lifecycle position of a stage loop.
type Phase string

const (
	PhaseIdle     Phase = "idle"
	PhaseRunning  Phase = "running"
	PhaseDraining Phase = "draining"
	PhaseStopped  Phase = "stopped"
)

// Health is the readiness record reported in pipeline status.
type Health struct {
	Name  string `json:"name"`
	Phase Phase  `json:"phase"`
	Ready bool   `json:"ready"`
	// Detail is empty while the loop is running.
	Detail string `json:"detail,omitempty"`
}

// Health reports whether the stage loop is live. A stage that was told to
// stop but has not exited yet is draining.
func (r *Runner) Health() Health {
	h := Health{Name: r.opts.Name}
	switch {
	case !r.started.Load():
		h.Phase, h.Detail = PhaseIdle, "not started"
	case isClosed(r.done):
		h.Phase, h.Detail = PhaseStopped, "stopped"
	case !r.keepRunning.Load():
		h.Phase, h.Detail = PhaseDraining, "stopping"
	default:
		h.Phase, h.Ready = PhaseRunning, true
	}
	return h
}
