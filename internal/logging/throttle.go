package logging

import (
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"
)

// Throttle limits how often a repetitive log line is emitted. Calls that are
// skipped are counted and reported to the next emitted call.
type Throttle struct {
	sometimes  rate.Sometimes
	suppressed atomic.Uint64
}

// NewThrottle emits the first call and then at most once per interval.
func NewThrottle(interval time.Duration) *Throttle {
	return &Throttle{sometimes: rate.Sometimes{First: 1, Interval: interval}}
}

// Do runs emit when the throttle allows it, passing the number of calls
// suppressed since the last emission.
func (t *Throttle) Do(emit func(suppressed uint64)) {
	if t == nil {
		emit(0)
		return
	}
	ran := false
	t.sometimes.Do(func() {
		ran = true
		emit(t.suppressed.Swap(0))
	})
	if !ran {
		t.suppressed.Add(1)
	}
}
