package stage

import (
	"context"
	"errors"
	"log/slog"
	"runtime"
	"sync/atomic"
	"time"

	"framewatch/internal/logging"
	"framewatch/internal/realtime"
	"framewatch/internal/release"
)

// Work performs one bounded unit of stage work (usually a full drain of the
// upstream channel) and reports how many items it handled. Errors are logged
// and counted; they never stop the stage.
type Work func(ctx context.Context) (int, error)

// Observer receives per-release measurements, typically for metrics export.
type Observer interface {
	ObserveRun(stage string, elapsed time.Duration, units int)
	ObserveTimeout(stage string)
	ObserveDeadlineMiss(stage string)
}

// Options configures a Runner.
type Options struct {
	Name    string
	Signal  *release.Signal
	Timeout time.Duration
	// Period is the stage's release interval, used for jitter and deadline
	// accounting. Zero disables both.
	Period         time.Duration
	DeadlineFactor int
	// WorkOnTimeout runs Work even when the wait timed out, so a drain stage
	// still polls channels that filled between releases.
	WorkOnTimeout bool
	Realtime      realtime.Policy
	Logger        *slog.Logger
	Observer      Observer
}

// Runner executes a stage loop.
type Runner struct {
	opts        Options
	work        Work
	logger      *slog.Logger
	keepRunning atomic.Bool
	started     atomic.Bool
	done        chan struct{}
	counters    counters
	missLog     *logging.Throttle
}

// NewRunner constructs a runner. The keep-running flag starts set.
func NewRunner(opts Options, work Work) *Runner {
	logger := opts.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	if opts.DeadlineFactor < 1 {
		opts.DeadlineFactor = 1
	}
	r := &Runner{
		opts:    opts,
		work:    work,
		logger:  logger,
		done:    make(chan struct{}),
		missLog: logging.NewThrottle(5 * time.Second),
	}
	r.counters.stats.Name = opts.Name
	r.keepRunning.Store(true)
	return r
}

// Name returns the stage name.
func (r *Runner) Name() string {
	return r.opts.Name
}

// Run executes the stage loop on a locked OS thread until Stop is called or
// ctx ends. It closes Done on return.
func (r *Runner) Run(ctx context.Context) {
	r.started.Store(true)
	defer close(r.done)

	runtime.LockOSThread()
	defer runtime.UnlockOSThread()
	if err := realtime.Apply(r.opts.Realtime); err != nil {
		logging.WarnWithContext(r.logger, "realtime scheduling unavailable; using default scheduler", "realtime_unavailable",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "grant CAP_SYS_NICE or disable [realtime]"),
			logging.String(logging.FieldImpact, "stage release latency is not bounded"),
		)
	}

	r.logger.Debug("stage started",
		logging.Duration("timeout", r.opts.Timeout),
		logging.Duration("period", r.opts.Period),
	)
	defer r.logger.Debug("stage exited")

	for r.keepRunning.Load() {
		if ctx.Err() != nil {
			return
		}
		if !r.wait(ctx) {
			continue
		}
		r.runOnce(ctx)
	}
}

// wait blocks on the release signal and reports whether work should run.
func (r *Runner) wait(ctx context.Context) bool {
	err := r.opts.Signal.TimedWait(ctx, r.opts.Timeout)
	switch {
	case err == nil:
		r.counters.release()
		return true
	case errors.Is(err, release.ErrTimeout):
		r.counters.timeout()
		if r.opts.Observer != nil {
			r.opts.Observer.ObserveTimeout(r.opts.Name)
		}
		r.logger.Debug("release wait timed out", logging.Duration("timeout", r.opts.Timeout))
		return r.opts.WorkOnTimeout
	default:
		return false
	}
}

func (r *Runner) runOnce(ctx context.Context) {
	start := time.Now()
	r.counters.started(start, r.opts.Period)

	units, err := r.work(ctx)
	elapsed := time.Since(start)

	budget := r.opts.Period * time.Duration(r.opts.DeadlineFactor)
	missed := budget > 0 && elapsed > budget
	r.counters.finished(elapsed, units, err, missed)

	if r.opts.Observer != nil {
		r.opts.Observer.ObserveRun(r.opts.Name, elapsed, units)
		if missed {
			r.opts.Observer.ObserveDeadlineMiss(r.opts.Name)
		}
	}
	if missed {
		r.missLog.Do(func(suppressed uint64) {
			logging.WarnWithContext(r.logger, "stage overran its release period", "deadline_miss",
				logging.Duration("elapsed", elapsed),
				logging.Duration("budget", budget),
				logging.Int("units", units),
				logging.Uint64("suppressed", suppressed),
				logging.String(logging.FieldImpact, "later releases coalesce and the stage runs below its configured rate"),
			)
		})
	}
	if err != nil {
		logging.ErrorWithContext(r.logger, "stage unit failed", "stage_unit_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "the unit was discarded; the stage keeps running"),
		)
	}
}

// Stop clears the keep-running flag and interrupts a pending wait. A unit in
// progress completes before the loop observes the flag.
func (r *Runner) Stop() {
	r.keepRunning.Store(false)
	r.opts.Signal.Interrupt()
}

// Done is closed when Run returns.
func (r *Runner) Done() <-chan struct{} {
	return r.done
}

// Stats returns the current timing counters.
func (r *Runner) Stats() Stats {
	out := r.counters.snapshot()
	out.Running = r.started.Load() && r.keepRunning.Load() && !isClosed(r.done)
	return out
}

func isClosed(ch <-chan struct{}) bool {
	select {
	case <-ch:
		return true
	default:
		return false
	}
}
