// Package release implements the per-stage admission signal posted by the
// sequencer and awaited by each stage worker.
//
// A Signal is a counting semaphore capped at a small number of pending
// releases. Posts beyond the cap coalesce into the pending ones, so a busy
// stage slips a sub-rate release instead of queuing an unbounded backlog.
// Signals gate admission only; data moves through the ring and mailboxes.
package release

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"
)

var (
	// ErrTimeout is returned when no release arrived before the deadline.
	ErrTimeout = errors.New("release wait timed out")
	// ErrInterrupted is returned once the signal is interrupted or the
	// context ends.
	ErrInterrupted = errors.New("release wait interrupted")
)

// Stats is a snapshot of signal counters.
type Stats struct {
	Name      string `json:"name"`
	Posts     uint64 `json:"posts"`
	Coalesced uint64 `json:"coalesced"`
	Admitted  uint64 `json:"admitted"`
	Timeouts  uint64 `json:"timeouts"`
	Pending   int    `json:"pending"`
}

// Signal is a capped counting semaphore with interrupt support.
type Signal struct {
	name      string
	tokens    chan struct{}
	interrupt chan struct{}
	once      sync.Once

	posts     atomic.Uint64
	coalesced atomic.Uint64
	admitted  atomic.Uint64
	timeouts  atomic.Uint64
}

// New creates a signal holding at most maxPending releases.
func New(name string, maxPending int) *Signal {
	if maxPending < 1 {
		maxPending = 1
	}
	return &Signal{
		name:      name,
		tokens:    make(chan struct{}, maxPending),
		interrupt: make(chan struct{}),
	}
}

// Name returns the signal's label.
func (s *Signal) Name() string {
	return s.name
}

// Post adds a release and wakes at most one waiter. It never blocks and
// reports false when the release coalesced into an already pending one.
func (s *Signal) Post() bool {
	s.posts.Add(1)
	select {
	case s.tokens <- struct{}{}:
		return true
	default:
		s.coalesced.Add(1)
		return false
	}
}

// TimedWait blocks until a release is available, the timeout elapses, the
// signal is interrupted, or ctx ends. A non-positive timeout polls once.
func (s *Signal) TimedWait(ctx context.Context, timeout time.Duration) error {
	select {
	case <-s.interrupt:
		return ErrInterrupted
	default:
	}

	if timeout <= 0 {
		select {
		case <-s.tokens:
			s.admitted.Add(1)
			return nil
		default:
			s.timeouts.Add(1)
			return ErrTimeout
		}
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-s.tokens:
		s.admitted.Add(1)
		return nil
	case <-s.interrupt:
		return ErrInterrupted
	case <-ctx.Done():
		return ErrInterrupted
	case <-timer.C:
		s.timeouts.Add(1)
		return ErrTimeout
	}
}

// Interrupt wakes any waiter and makes every later wait return
// ErrInterrupted. It is safe to call more than once.
func (s *Signal) Interrupt() {
	s.once.Do(func() { close(s.interrupt) })
}

// Interrupted reports whether Interrupt has been called.
func (s *Signal) Interrupted() bool {
	select {
	case <-s.interrupt:
		return true
	default:
		return false
	}
}

// Pending returns the number of releases waiting to be consumed.
func (s *Signal) Pending() int {
	return len(s.tokens)
}

// Stats returns a snapshot of the signal counters.
func (s *Signal) Stats() Stats {
	return Stats{
		Name:      s.name,
		Posts:     s.posts.Load(),
		Coalesced: s.coalesced.Load(),
		Admitted:  s.admitted.Load(),
		Timeouts:  s.timeouts.Load(),
		Pending:   s.Pending(),
	}
}
