package realtime

import "framewatch/internal/config"

// Policy is the scheduling request for a stage thread.
type Policy struct {
	Enabled  bool
	Priority int
	CPUs     []int
}

// Info reports the scheduling state of a thread.
type Info struct {
	Policy   string `json:"policy"`
	Priority int    `json:"priority"`
	CPUCount int    `json:"cpu_count"`
}

// FromConfig builds the stage policy from the [realtime] section. Stages
// closer to the camera get a higher priority, mirroring rate-monotonic
// assignment: faster release rates run at higher priority.
func FromConfig(cfg *config.Config, stage string) Policy {
	if cfg == nil || !cfg.Realtime.Enabled {
		return Policy{}
	}
	priority := cfg.Realtime.Priority
	for i, name := range config.Stages {
		if name == stage {
			priority -= i
			break
		}
	}
	if priority < 1 {
		priority = 1
	}
	return Policy{
		Enabled:  true,
		Priority: priority,
		CPUs:     append([]int(nil), cfg.Realtime.CPUs...),
	}
}
