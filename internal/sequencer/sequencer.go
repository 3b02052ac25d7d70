package sequencer

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"framewatch/internal/faults"
	"framewatch/internal/logging"
	"framewatch/internal/release"
)

// Stage binds a stage name and desired release rate to its signal.
type Stage struct {
	Name   string
	RateHz int
	Signal *release.Signal
}

// Config describes the tick schedule.
type Config struct {
	BaseRateHz int
	Stages     []Stage
	// MaxFrames is the completion threshold; zero runs until stopped.
	MaxFrames uint64
	// JitterWarn is the tick interval deviation counted as late.
	JitterWarn time.Duration
}

// Option customizes a Sequencer.
type Option func(*Sequencer)

// WithTicker replaces the wall-clock ticker.
func WithTicker(factory TickerFactory) Option {
	return func(s *Sequencer) {
		if factory != nil {
			s.newTicker = factory
		}
	}
}

// WithTickHook registers a callback invoked after every tick.
func WithTickHook(hook func(tick uint64)) Option {
	return func(s *Sequencer) {
		s.onTick = hook
	}
}

type slot struct {
	name    string
	divisor uint64
	signal  *release.Signal
}

// JitterStats summarizes observed tick interval deviation.
type JitterStats struct {
	Samples uint64        `json:"samples"`
	Late    uint64        `json:"late"`
	Average time.Duration `json:"average"`
	Max     time.Duration `json:"max"`
}

// Sequencer posts stage release signals at integer sub-rates of a base tick.
type Sequencer struct {
	cfg       Config
	period    time.Duration
	slots     []slot
	logger    *slog.Logger
	newTicker TickerFactory
	onTick    func(uint64)

	state     atomic.Int32
	tick      atomic.Uint64
	completed atomic.Uint64

	done     chan struct{}
	doneOnce sync.Once
	stop     chan struct{}
	stopOnce sync.Once
	exited   chan struct{}

	jitterMu    sync.Mutex
	lastTick    time.Time
	jitter      JitterStats
	jitterTotal time.Duration
}

// New validates cfg and returns an armed sequencer. Validation failures are
// configuration errors.
func New(cfg Config, logger *slog.Logger, opts ...Option) (*Sequencer, error) {
	if logger == nil {
		logger = logging.NewNop()
	}
	s := &Sequencer{
		cfg:       cfg,
		logger:    logger,
		newTicker: NewWallTicker,
		done:      make(chan struct{}),
		stop:      make(chan struct{}),
		exited:    make(chan struct{}),
	}
	s.state.Store(int32(StateIdle))
	for _, opt := range opts {
		opt(s)
	}

	slots, err := buildSlots(cfg)
	if err != nil {
		return nil, err
	}
	s.slots = slots
	s.period = time.Second / time.Duration(cfg.BaseRateHz)
	s.state.Store(int32(StateArmed))
	return s, nil
}

func buildSlots(cfg Config) ([]slot, error) {
	if cfg.BaseRateHz <= 0 {
		return nil, faults.Configuration("sequencer", fmt.Sprintf("base rate must be positive, got %d", cfg.BaseRateHz), nil)
	}
	if len(cfg.Stages) == 0 {
		return nil, faults.Configuration("sequencer", "no stages configured", nil)
	}
	seen := make(map[string]struct{}, len(cfg.Stages))
	slots := make([]slot, 0, len(cfg.Stages))
	for _, st := range cfg.Stages {
		if st.Signal == nil {
			return nil, faults.Configuration("sequencer", fmt.Sprintf("stage %q has no release signal", st.Name), nil)
		}
		if _, dup := seen[st.Name]; dup {
			return nil, faults.Configuration("sequencer", fmt.Sprintf("stage %q configured twice", st.Name), nil)
		}
		seen[st.Name] = struct{}{}
		divisor, err := Divisor(cfg.BaseRateHz, st.RateHz)
		if err != nil {
			return nil, faults.Configuration("sequencer", fmt.Sprintf("stage %q", st.Name), err)
		}
		slots = append(slots, slot{name: st.Name, divisor: divisor, signal: st.Signal})
	}
	return slots, nil
}

// Divisor returns base/rate, requiring rate to divide base exactly.
func Divisor(baseHz, rateHz int) (uint64, error) {
	if rateHz <= 0 {
		return 0, fmt.Errorf("rate must be positive, got %d Hz", rateHz)
	}
	if rateHz > baseHz {
		return 0, fmt.Errorf("rate %d Hz exceeds base rate %d Hz", rateHz, baseHz)
	}
	if baseHz%rateHz != 0 {
		return 0, fmt.Errorf("rate %d Hz does not divide base rate %d Hz", rateHz, baseHz)
	}
	return uint64(baseHz / rateHz), nil
}

// Run moves Armed to Running and ticks until ctx ends or Disarm is called.
func (s *Sequencer) Run(ctx context.Context) error {
	if !s.state.CompareAndSwap(int32(StateArmed), int32(StateRunning)) {
		return fmt.Errorf("sequencer: cannot run from state %s", s.State())
	}
	defer close(s.exited)

	ticker := s.newTicker(s.period)
	defer ticker.Stop()

	s.logger.Info("sequencer running",
		logging.Int("base_rate_hz", s.cfg.BaseRateHz),
		logging.Duration("period", s.period),
		logging.Uint64("max_frames", s.cfg.MaxFrames),
	)

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-s.stop:
			return nil
		case now := <-ticker.C():
			s.observe(now)
			s.Tick()
		}
	}
}

// Tick advances the counter once and posts every due signal. Run calls it
// on each timer tick; tests may call it directly.
func (s *Sequencer) Tick() uint64 {
	n := s.tick.Add(1)
	for _, sl := range s.slots {
		if n%sl.divisor == 0 {
			sl.signal.Post()
		}
	}
	if s.onTick != nil {
		s.onTick(n)
	}
	return n
}

func (s *Sequencer) observe(now time.Time) {
	s.jitterMu.Lock()
	defer s.jitterMu.Unlock()
	if !s.lastTick.IsZero() {
		dev := now.Sub(s.lastTick) - s.period
		if dev < 0 {
			dev = -dev
		}
		s.jitter.Samples++
		s.jitterTotal += dev
		if dev > s.jitter.Max {
			s.jitter.Max = dev
		}
		if s.cfg.JitterWarn > 0 && dev > s.cfg.JitterWarn {
			s.jitter.Late++
		}
	}
	s.lastTick = now
}

// MarkCompleted records one persisted frame and closes Done when the
// completion threshold is reached.
func (s *Sequencer) MarkCompleted() uint64 {
	n := s.completed.Add(1)
	if s.cfg.MaxFrames > 0 && n >= s.cfg.MaxFrames {
		s.doneOnce.Do(func() {
			s.logger.Info("completion threshold reached",
				logging.Uint64("completed", n),
				logging.Uint64("max_frames", s.cfg.MaxFrames),
			)
			close(s.done)
		})
	}
	return n
}

// Done is closed once the completion threshold is reached.
func (s *Sequencer) Done() <-chan struct{} {
	return s.done
}

// BeginDrain moves Running (or Armed) to Draining. It reports false when the
// sequencer was already draining or stopped.
func (s *Sequencer) BeginDrain() bool {
	for {
		cur := State(s.state.Load())
		if cur != StateRunning && cur != StateArmed {
			return false
		}
		if s.state.CompareAndSwap(int32(cur), int32(StateDraining)) {
			s.logger.Info("sequencer draining",
				logging.Uint64("tick", s.tick.Load()),
				logging.Uint64("completed", s.completed.Load()),
			)
			return true
		}
	}
}

// Disarm stops the timer and moves to Stopped. It waits for Run to return
// when Run was started.
func (s *Sequencer) Disarm() {
	prev := State(s.state.Swap(int32(StateStopped)))
	s.stopOnce.Do(func() { close(s.stop) })
	if prev == StateRunning || prev == StateDraining {
		select {
		case <-s.exited:
		case <-time.After(time.Second):
			s.logger.Warn("sequencer timer did not exit promptly")
		}
	}
}

// State returns the lifecycle state.
func (s *Sequencer) State() State {
	return State(s.state.Load())
}

// Ticks returns the current tick counter.
func (s *Sequencer) Ticks() uint64 {
	return s.tick.Load()
}

// Completed returns the completion counter.
func (s *Sequencer) Completed() uint64 {
	return s.completed.Load()
}

// Period returns the base tick interval.
func (s *Sequencer) Period() time.Duration {
	return s.period
}

// Divisors returns each stage's divisor keyed by name.
func (s *Sequencer) Divisors() map[string]uint64 {
	out := make(map[string]uint64, len(s.slots))
	for _, sl := range s.slots {
		out[sl.name] = sl.divisor
	}
	return out
}

// StagePeriod returns the release interval of the named stage.
func (s *Sequencer) StagePeriod(name string) time.Duration {
	for _, sl := range s.slots {
		if sl.name == name {
			return s.period * time.Duration(sl.divisor)
		}
	}
	return 0
}

// Jitter returns tick interval statistics.
func (s *Sequencer) Jitter() JitterStats {
	s.jitterMu.Lock()
	defer s.jitterMu.Unlock()
	out := s.jitter
	if out.Samples > 0 {
		out.Average = s.jitterTotal / time.Duration(out.Samples)
	}
	return out
}
