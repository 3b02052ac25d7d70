package stage

import (
	"sync"
	"time"
)

// Stats is a snapshot of a stage's timing counters.
type Stats struct {
	Name           string        `json:"name"`
	Running        bool          `json:"running"`
	Releases       uint64        `json:"releases"`
	Timeouts       uint64        `json:"timeouts"`
	Runs           uint64        `json:"runs"`
	Units          uint64        `json:"units"`
	Errors         uint64        `json:"errors"`
	DeadlineMisses uint64        `json:"deadline_misses"`
	LastRun        time.Duration `json:"last_run"`
	AverageRun     time.Duration `json:"average_run"`
	MaxRun         time.Duration `json:"max_run"`
	AverageJitter  time.Duration `json:"average_jitter"`
	MaxJitter      time.Duration `json:"max_jitter"`
	LastError      string        `json:"last_error,omitempty"`
}

type counters struct {
	mu          sync.Mutex
	stats       Stats
	totalRun    time.Duration
	totalJitter time.Duration
	jitterN     uint64
	prevStart   time.Time
}

func (c *counters) release() {
	c.mu.Lock()
	c.stats.Releases++
	c.mu.Unlock()
}

func (c *counters) timeout() {
	c.mu.Lock()
	c.stats.Timeouts++
	c.mu.Unlock()
}

// started records release-to-release jitter against the expected period.
// prevStart is always taken from the start just recorded.
func (c *counters) started(now time.Time, period time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if period > 0 && !c.prevStart.IsZero() {
		dev := now.Sub(c.prevStart) - period
		if dev < 0 {
			dev = -dev
		}
		c.jitterN++
		c.totalJitter += dev
		if dev > c.stats.MaxJitter {
			c.stats.MaxJitter = dev
		}
	}
	c.prevStart = now
}

func (c *counters) finished(elapsed time.Duration, units int, err error, missed bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stats.Runs++
	c.stats.Units += uint64(units)
	c.stats.LastRun = elapsed
	c.totalRun += elapsed
	if elapsed > c.stats.MaxRun {
		c.stats.MaxRun = elapsed
	}
	if missed {
		c.stats.DeadlineMisses++
	}
	if err != nil {
		c.stats.Errors++
		c.stats.LastError = err.Error()
	}
}

func (c *counters) snapshot() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := c.stats
	if out.Runs > 0 {
		out.AverageRun = c.totalRun / time.Duration(out.Runs)
	}
	if c.jitterN > 0 {
		out.AverageJitter = c.totalJitter / time.Duration(c.jitterN)
	}
	return out
}
