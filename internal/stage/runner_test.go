package stage

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"framewatch/internal/release"
)

type recordingObserver struct {
	mu       sync.Mutex
	runs     int
	timeouts int
	misses   int
}

func (o *recordingObserver) ObserveRun(string, time.Duration, int) {
	o.mu.Lock()
	o.runs++
	o.mu.Unlock()
}

func (o *recordingObserver) ObserveTimeout(string) {
	o.mu.Lock()
	o.timeouts++
	o.mu.Unlock()
}

func (o *recordingObserver) ObserveDeadlineMiss(string) {
	o.mu.Lock()
	o.misses++
	o.mu.Unlock()
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestRunnerRunsWorkPerRelease(t *testing.T) {
	sig := release.New("difference", 1)
	var calls atomic.Int32
	r := NewRunner(Options{Name: "difference", Signal: sig, Timeout: time.Second}, func(context.Context) (int, error) {
		calls.Add(1)
		return 3, nil
	})
	go r.Run(context.Background())

	for i := 1; i <= 3; i++ {
		sig.Post()
		want := int32(i)
		waitFor(t, "work call", func() bool { return calls.Load() == want })
	}
	r.Stop()
	<-r.Done()

	stats := r.Stats()
	if stats.Releases != 3 || stats.Runs != 3 || stats.Units != 9 {
		t.Fatalf("unexpected stats %+v", stats)
	}
	if stats.Running {
		t.Fatal("stopped runner reports running")
	}
	if h := r.Health(); h.Ready || h.Phase != PhaseStopped {
		t.Fatalf("unexpected health %+v", h)
	}
}

func TestRunnerTimeoutSkipsWorkUnlessPolling(t *testing.T) {
	for _, poll := range []bool{false, true} {
		sig := release.New("acquire", 1)
		var calls atomic.Int32
		obs := &recordingObserver{}
		r := NewRunner(Options{
			Name:          "acquire",
			Signal:        sig,
			Timeout:       2 * time.Millisecond,
			WorkOnTimeout: poll,
			Observer:      obs,
		}, func(context.Context) (int, error) {
			calls.Add(1)
			return 0, nil
		})
		go r.Run(context.Background())
		waitFor(t, "timeouts", func() bool { return r.Stats().Timeouts >= 3 })
		r.Stop()
		<-r.Done()

		if poll && calls.Load() == 0 {
			t.Fatal("polling stage should run work on timeout")
		}
		if !poll && calls.Load() != 0 {
			t.Fatalf("non-polling stage ran work %d times on timeout", calls.Load())
		}
		obs.mu.Lock()
		if obs.timeouts < 3 {
			t.Fatalf("observer saw %d timeouts", obs.timeouts)
		}
		obs.mu.Unlock()
	}
}

func TestStopLetsInFlightUnitComplete(t *testing.T) {
	sig := release.New("difference", 1)
	entered := make(chan struct{})
	proceed := make(chan struct{})
	var drained atomic.Int32

	r := NewRunner(Options{Name: "difference", Signal: sig, Timeout: time.Second}, func(context.Context) (int, error) {
		close(entered)
		<-proceed
		for i := 0; i < 5; i++ {
			drained.Add(1)
		}
		return 5, nil
	})
	go r.Run(context.Background())
	sig.Post()
	<-entered

	r.Stop()
	select {
	case <-r.Done():
		t.Fatal("runner exited while a unit was in progress")
	case <-time.After(20 * time.Millisecond):
	}
	close(proceed)
	select {
	case <-r.Done():
	case <-time.After(time.Second):
		t.Fatal("runner did not exit after unit completed")
	}
	if drained.Load() != 5 {
		t.Fatalf("drain incomplete: %d", drained.Load())
	}
	if r.Stats().Runs != 1 {
		t.Fatalf("expected exactly one run, got %d", r.Stats().Runs)
	}
}

func TestRunnerCountsErrorsAndDeadlineMisses(t *testing.T) {
	sig := release.New("process", 1)
	obs := &recordingObserver{}
	r := NewRunner(Options{
		Name:     "process",
		Signal:   sig,
		Timeout:  time.Second,
		Period:   time.Millisecond,
		Observer: obs,
	}, func(context.Context) (int, error) {
		time.Sleep(5 * time.Millisecond)
		return 1, errors.New("zero width candidate")
	})
	go r.Run(context.Background())
	sig.Post()
	waitFor(t, "run", func() bool { return r.Stats().Runs == 1 })
	r.Stop()
	<-r.Done()

	stats := r.Stats()
	if stats.Errors != 1 || stats.LastError == "" {
		t.Fatalf("expected error to be recorded, got %+v", stats)
	}
	if stats.DeadlineMisses != 1 || stats.MaxRun < 5*time.Millisecond {
		t.Fatalf("expected deadline miss, got %+v", stats)
	}
	obs.mu.Lock()
	defer obs.mu.Unlock()
	if obs.misses != 1 || obs.runs != 1 {
		t.Fatalf("observer runs=%d misses=%d", obs.runs, obs.misses)
	}
}

func TestRunnerExitsOnContextCancel(t *testing.T) {
	sig := release.New("write", 1)
	r := NewRunner(Options{Name: "write", Signal: sig, Timeout: time.Minute}, func(context.Context) (int, error) {
		return 0, nil
	})
	if h := r.Health(); h.Ready || h.Phase != PhaseIdle {
		t.Fatal("unstarted runner should not be healthy")
	}
	ctx, cancel := context.WithCancel(context.Background())
	go r.Run(ctx)
	waitFor(t, "start", func() bool { return r.Health().Ready })
	cancel()
	select {
	case <-r.Done():
	case <-time.After(time.Second):
		t.Fatal("runner ignored context cancellation")
	}
}

func TestJitterUsesJustRecordedStart(t *testing.T) {
	var c counters
	base := time.Unix(0, 0)
	period := 10 * time.Millisecond
	c.started(base, period)
	c.started(base.Add(12*time.Millisecond), period)
	c.started(base.Add(20*time.Millisecond), period)

	stats := c.snapshot()
	if stats.MaxJitter != 2*time.Millisecond {
		t.Fatalf("max jitter = %v, want 2ms", stats.MaxJitter)
	}
	if stats.AverageJitter != 2*time.Millisecond {
		t.Fatalf("average jitter = %v, want 2ms", stats.AverageJitter)
	}
}
