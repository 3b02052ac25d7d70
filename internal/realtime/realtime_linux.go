//go:build linux

package realtime

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// Apply sets the scheduling policy and affinity of the calling thread. The
// caller must hold runtime.LockOSThread for the setting to stick to its
// goroutine.
func Apply(p Policy) error {
	if !p.Enabled {
		return nil
	}
	if len(p.CPUs) > 0 {
		var set unix.CPUSet
		set.Zero()
		for _, cpu := range p.CPUs {
			set.Set(cpu)
		}
		if err := unix.SchedSetaffinity(0, &set); err != nil {
			return fmt.Errorf("set cpu affinity %v: %w", p.CPUs, err)
		}
	}
	attr := unix.SchedAttr{
		Size:     unix.SizeofSchedAttr,
		Policy:   unix.SCHED_FIFO,
		Priority: uint32(p.Priority),
	}
	if err := unix.SchedSetAttr(0, &attr, 0); err != nil {
		return fmt.Errorf("set SCHED_FIFO priority %d: %w", p.Priority, err)
	}
	return nil
}

// Current describes the calling thread's scheduling policy.
func Current() (Info, error) {
	attr, err := unix.SchedGetAttr(0, 0)
	if err != nil {
		return Info{}, fmt.Errorf("get scheduling attributes: %w", err)
	}
	var set unix.CPUSet
	if err := unix.SchedGetaffinity(0, &set); err != nil {
		return Info{}, fmt.Errorf("get cpu affinity: %w", err)
	}
	return Info{
		Policy:   policyName(attr.Policy),
		Priority: int(attr.Priority),
		CPUCount: set.Count(),
	}, nil
}

func policyName(policy uint32) string {
	switch policy {
	case unix.SCHED_NORMAL:
		return "normal"
	case unix.SCHED_FIFO:
		return "fifo"
	case unix.SCHED_RR:
		return "rr"
	case unix.SCHED_BATCH:
		return "batch"
	case unix.SCHED_IDLE:
		return "idle"
	default:
		return fmt.Sprintf("policy(%d)", policy)
	}
}
