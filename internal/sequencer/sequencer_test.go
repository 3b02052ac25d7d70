package sequencer

import (
	"context"
	"errors"
	"testing"
	"time"

	"framewatch/internal/faults"
	"framewatch/internal/release"
)

type fakeTicker struct {
	ch      chan time.Time
	stopped chan struct{}
}

func newFakeTicker() *fakeTicker {
	return &fakeTicker{ch: make(chan time.Time), stopped: make(chan struct{}, 1)}
}

func (f *fakeTicker) C() <-chan time.Time { return f.ch }
func (f *fakeTicker) Stop() {
	select {
	case f.stopped <- struct{}{}:
	default:
	}
}

func pipelineStages(sizes ...int) ([]Stage, []*release.Signal) {
	names := []string{"acquire", "difference", "process", "write"}
	rates := []int{24, 2, 1, 1}
	stages := make([]Stage, 0, len(names))
	signals := make([]*release.Signal, 0, len(names))
	for i, name := range names {
		capacity := 1
		if i < len(sizes) {
			capacity = sizes[i]
		}
		sig := release.New(name, capacity)
		signals = append(signals, sig)
		stages = append(stages, Stage{Name: name, RateHz: rates[i], Signal: sig})
	}
	return stages, signals
}

func TestDivisorsForDefaultRates(t *testing.T) {
	stages, _ := pipelineStages()
	seq, err := New(Config{BaseRateHz: 120, Stages: stages}, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	want := map[string]uint64{"acquire": 5, "difference": 60, "process": 120, "write": 120}
	got := seq.Divisors()
	for name, div := range want {
		if got[name] != div {
			t.Fatalf("divisor[%s] = %d, want %d", name, got[name], div)
		}
	}
	if seq.State() != StateArmed {
		t.Fatalf("state = %s, want armed", seq.State())
	}
	if p := seq.StagePeriod("acquire"); p != seq.Period()*5 {
		t.Fatalf("acquire period = %v", p)
	}
}

func TestTickPostsAtSubRates(t *testing.T) {
	stages, signals := pipelineStages()
	seq, err := New(Config{BaseRateHz: 120, Stages: stages}, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	divisors := []uint64{5, 60, 120, 120}
	prev := make([]uint64, len(signals))
	for tick := uint64(1); tick <= 120; tick++ {
		if got := seq.Tick(); got != tick {
			t.Fatalf("Tick returned %d, want %d", got, tick)
		}
		for i, sig := range signals {
			posts := sig.Stats().Posts
			if posts-prev[i] > 1 {
				t.Fatalf("tick %d posted %s %d times", tick, sig.Name(), posts-prev[i])
			}
			if due := tick%divisors[i] == 0; due != (posts != prev[i]) {
				t.Fatalf("tick %d: %s posted=%v due=%v", tick, sig.Name(), posts != prev[i], due)
			}
			prev[i] = posts
		}
	}

	want := []uint64{24, 2, 1, 1}
	for i, sig := range signals {
		if got := sig.Stats().Posts; got != want[i] {
			t.Fatalf("%s posts = %d, want %d", sig.Name(), got, want[i])
		}
	}
}

func TestNewRejectsInvalidConfiguration(t *testing.T) {
	sig := release.New("acquire", 1)
	cases := []struct {
		name string
		cfg  Config
	}{
		{"zero base", Config{BaseRateHz: 0, Stages: []Stage{{Name: "acquire", RateHz: 1, Signal: sig}}}},
		{"no stages", Config{BaseRateHz: 120}},
		{"nil signal", Config{BaseRateHz: 120, Stages: []Stage{{Name: "acquire", RateHz: 24}}}},
		{"non dividing", Config{BaseRateHz: 120, Stages: []Stage{{Name: "acquire", RateHz: 25, Signal: sig}}}},
		{"too fast", Config{BaseRateHz: 120, Stages: []Stage{{Name: "acquire", RateHz: 240, Signal: sig}}}},
		{"zero rate", Config{BaseRateHz: 120, Stages: []Stage{{Name: "acquire", RateHz: 0, Signal: sig}}}},
		{"duplicate", Config{BaseRateHz: 120, Stages: []Stage{
			{Name: "acquire", RateHz: 24, Signal: sig},
			{Name: "acquire", RateHz: 24, Signal: sig},
		}}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := New(tc.cfg, nil)
			if err == nil {
				t.Fatal("expected configuration error")
			}
			if !errors.Is(err, faults.ErrConfiguration) || !faults.IsFatal(err) {
				t.Fatalf("expected fatal configuration error, got %v", err)
			}
		})
	}
}

func TestMarkCompletedClosesDoneAtThreshold(t *testing.T) {
	stages, _ := pipelineStages()
	seq, _ := New(Config{BaseRateHz: 120, Stages: stages, MaxFrames: 3}, nil)
	for i := 0; i < 2; i++ {
		seq.MarkCompleted()
	}
	select {
	case <-seq.Done():
		t.Fatal("done closed early")
	default:
	}
	seq.MarkCompleted()
	seq.MarkCompleted()
	select {
	case <-seq.Done():
	default:
		t.Fatal("done not closed at threshold")
	}
	if seq.Completed() != 4 {
		t.Fatalf("completed = %d", seq.Completed())
	}
}

func TestRunLifecycleWithFakeTicker(t *testing.T) {
	stages, signals := pipelineStages()
	ft := newFakeTicker()
	var hooked []uint64
	seq, err := New(Config{BaseRateHz: 120, Stages: stages}, nil,
		WithTicker(func(time.Duration) Ticker { return ft }),
		WithTickHook(func(n uint64) { hooked = append(hooked, n) }),
	)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	errCh := make(chan error, 1)
	go func() { errCh <- seq.Run(context.Background()) }()

	base := time.Now()
	for i := 0; i < 10; i++ {
		ft.ch <- base.Add(time.Duration(i) * seq.Period())
	}
	if seq.State() != StateRunning {
		t.Fatalf("state = %s, want running", seq.State())
	}
	if !seq.BeginDrain() {
		t.Fatal("BeginDrain should succeed from running")
	}
	if seq.BeginDrain() {
		t.Fatal("BeginDrain should be a one-shot transition")
	}
	ft.ch <- base.Add(10 * seq.Period())

	seq.Disarm()
	if err := <-errCh; err != nil {
		t.Fatalf("Run: %v", err)
	}
	if seq.State() != StateStopped {
		t.Fatalf("state = %s, want stopped", seq.State())
	}
	if seq.Ticks() != 11 || len(hooked) != 11 {
		t.Fatalf("ticks = %d hooked = %d", seq.Ticks(), len(hooked))
	}
	if got := signals[0].Stats().Posts; got != 2 {
		t.Fatalf("acquire posts = %d, want 2", got)
	}
	if j := seq.Jitter(); j.Samples != 10 || j.Max != 0 {
		t.Fatalf("unexpected jitter %+v", j)
	}
	select {
	case <-ft.stopped:
	default:
		t.Fatal("ticker not stopped")
	}
	if err := seq.Run(context.Background()); err == nil {
		t.Fatal("Run after stop should fail")
	}
}
