package pipeline

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"framewatch/internal/capture"
	"framewatch/internal/config"
	"framewatch/internal/faults"
	"framewatch/internal/frame"
	"framewatch/internal/sequencer"
	"framewatch/internal/store"
	"framewatch/internal/testsupport"
)

func newTestPipeline(t *testing.T, cfg *config.Config, painter capture.Painter, opts ...Option) *Pipeline {
	t.Helper()
	ledger := frame.NewLedger()
	src, err := capture.Prepare(capture.NewSynthetic(ledger, painter), cfg, nil)
	if err != nil {
		t.Fatalf("prepare capture: %v", err)
	}
	opts = append([]Option{WithLedger(ledger), WithCapture(src), WithRunID("0a1b2c3d-test")}, opts...)
	p, err := New(cfg, testsupport.Backend(), nil, opts...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return p
}

func mustWork(t *testing.T, name string, work func(context.Context) (int, error)) int {
	t.Helper()
	n, err := work(context.Background())
	if err != nil {
		t.Fatalf("%s work: %v", name, err)
	}
	return n
}

func TestNewRejectsInvalidRates(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Sequencer.AcquireHz = 7

	_, err := New(cfg, testsupport.Backend(), nil)
	if err == nil {
		t.Fatal("expected error for a rate that does not divide the base rate")
	}
	if !faults.IsFatal(err) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}

func TestNewArmsWithDefaultDivisors(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	p := newTestPipeline(t, cfg, nil)

	st := p.Status()
	if st.State != "armed" {
		t.Fatalf("expected armed, got %s", st.State)
	}
	want := map[string]uint64{
		config.StageAcquire:    5,
		config.StageDifference: 60,
		config.StageProcess:    120,
		config.StageWrite:      120,
	}
	for name, div := range want {
		if st.Divisors[name] != div {
			t.Fatalf("divisor for %s = %d, want %d", name, st.Divisors[name], div)
		}
	}
}

func TestAcquireOverwritesOldestWhenRingFull(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithCapacities(2, 4, 4))
	p := newTestPipeline(t, cfg, capture.Alternating(1, 10, 200))

	for i := 0; i < 5; i++ {
		mustWork(t, "acquire", p.acquire.work)
	}
	st := p.Status()
	if st.Ring.Size != 2 || st.Ring.Evictions != 3 {
		t.Fatalf("expected 2 buffered and 3 evicted, got %+v", st.Ring)
	}
	if got := p.ledger.Outstanding(); got != 2 {
		t.Fatalf("expected 2 outstanding frames, got %d", got)
	}

	p.releaseBuffered()
	if snap := p.ledger.Snapshot(); snap.Outstanding != 0 || snap.DoubleReleases != 0 {
		t.Fatalf("unexpected ledger after release: %+v", snap)
	}
}

func TestWarmupFramesAreDiscarded(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Camera.WarmupFrames = 3
	p := newTestPipeline(t, cfg, nil)

	for i := 0; i < 4; i++ {
		mustWork(t, "acquire", p.acquire.work)
	}
	if size := p.ringSize(); size != 1 {
		t.Fatalf("expected 1 frame after warm-up, got %d", size)
	}
	if got := p.ledger.Outstanding(); got != 1 {
		t.Fatalf("warm-up frames leaked: %d outstanding", got)
	}
	p.releaseBuffered()
}

func TestHandOffDropsAndFreesWhenWriteChannelFull(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithCapacities(8, 8, 2))
	cfg.Sequencer.MaxFrames = 0
	cfg.Channels.SendTimeoutMS = 0
	p := newTestPipeline(t, cfg, capture.Alternating(1, 10, 200))

	for i := 0; i < 6; i++ {
		mustWork(t, "acquire", p.acquire.work)
	}
	if n := mustWork(t, "difference", p.difference.work); n != 6 {
		t.Fatalf("difference drained %d frames, want 6", n)
	}
	if p.ringSize() != 0 {
		t.Fatal("difference did not empty the ring")
	}
	if got := p.selectQ.Len(); got != 5 {
		t.Fatalf("expected 5 candidates after the baseline frame, got %d", got)
	}

	if n := mustWork(t, "process", p.process.work); n != 5 {
		t.Fatalf("process handled %d candidates, want 5", n)
	}
	ws := p.writeQ.Stats()
	if ws.Len != 2 || ws.Rejected != 3 {
		t.Fatalf("expected 2 queued and 3 rejected, got %+v", ws)
	}
	// Two queued candidates own three frames each, plus the baseline.
	if got := p.ledger.Outstanding(); got != 7 {
		t.Fatalf("expected 7 outstanding frames, got %d", got)
	}

	if n := mustWork(t, "write", p.write.work); n != 2 {
		t.Fatalf("write handled %d candidates, want 2", n)
	}
	if got := p.seq.Completed(); got != 2 {
		t.Fatalf("completed = %d, want 2", got)
	}
	stills, err := filepath.Glob(filepath.Join(p.output.Dir, "color_*.jpg"))
	if err != nil {
		t.Fatal(err)
	}
	if len(stills) != 2 {
		t.Fatalf("expected 2 stills, got %v", stills)
	}

	if freed := p.releaseBuffered(); freed != 1 {
		t.Fatalf("expected only the baseline to be freed at stop, got %d", freed)
	}
	if snap := p.ledger.Snapshot(); snap.Outstanding != 0 || snap.DoubleReleases != 0 {
		t.Fatalf("unexpected ledger: %+v", snap)
	}
}

func TestQuietFramesProduceNoCandidates(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	p := newTestPipeline(t, cfg, capture.Sequence(40))

	for i := 0; i < 4; i++ {
		mustWork(t, "acquire", p.acquire.work)
	}
	mustWork(t, "difference", p.difference.work)
	if got := p.selectQ.Len(); got != 0 {
		t.Fatalf("expected no candidates from identical frames, got %d", got)
	}
	if got := p.ledger.Outstanding(); got != 1 {
		t.Fatalf("expected only the baseline outstanding, got %d", got)
	}
	p.releaseBuffered()
}

func TestOnlyChangedFramesBecomeCandidates(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	// Pairs of identical frames: 1,2 dark, 3,4 bright, 5,6 dark, 7,8 bright.
	p := newTestPipeline(t, cfg, capture.Alternating(2, 10, 200))

	for i := 0; i < 8; i++ {
		mustWork(t, "acquire", p.acquire.work)
	}
	if n := mustWork(t, "difference", p.difference.work); n != 8 {
		t.Fatalf("difference drained %d frames, want 8", n)
	}

	var seqs []uint64
	for {
		c, err := p.selectQ.TryReceive()
		if err != nil {
			break
		}
		seqs = append(seqs, c.Seq)
		if c.Motion <= cfg.Motion.MotionThreshold {
			t.Fatalf("candidate %d motion %d is not above the threshold", c.Seq, c.Motion)
		}
		if err := c.Release(); err != nil {
			t.Fatalf("release candidate %d: %v", c.Seq, err)
		}
	}
	want := []uint64{3, 5, 7}
	if len(seqs) != len(want) {
		t.Fatalf("candidates = %v, want %v", seqs, want)
	}
	for i := range want {
		if seqs[i] != want[i] {
			t.Fatalf("candidates = %v, want %v", seqs, want)
		}
	}

	p.releaseBuffered()
	if snap := p.ledger.Snapshot(); snap.Outstanding != 0 || snap.DoubleReleases != 0 {
		t.Fatalf("unexpected ledger: %+v", snap)
	}
}

func TestSettleDelaySelectsLaterFrame(t *testing.T) {
	d := &differenceStage{motionThreshold: 10, settleFrames: 2}
	steps := []struct {
		motion   int
		selected bool
		reported int
	}{
		{motion: 3},
		{motion: 50},
		{motion: 0},
		{motion: 70},
		{motion: 0, selected: true, reported: 50},
		{motion: 4},
	}
	for i, step := range steps {
		selected, reported := d.accept(step.motion)
		if selected != step.selected {
			t.Fatalf("step %d: selected = %v, want %v", i, selected, step.selected)
		}
		if selected && reported != step.reported {
			t.Fatalf("step %d: motion = %d, want %d", i, reported, step.reported)
		}
	}

	immediate := &differenceStage{motionThreshold: 10}
	if ok, _ := immediate.accept(10); ok {
		t.Fatal("motion equal to the threshold must not select")
	}
	if ok, m := immediate.accept(11); !ok || m != 11 {
		t.Fatalf("expected immediate selection, got %v %d", ok, m)
	}
}

func TestWritePersistsConfiguredVariant(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Processing.SaveVariant = "threshold"
	cfg.Output.StillFormat = "png"
	p := newTestPipeline(t, cfg, capture.Alternating(1, 10, 200))

	mustWork(t, "acquire", p.acquire.work)
	mustWork(t, "acquire", p.acquire.work)
	mustWork(t, "difference", p.difference.work)
	mustWork(t, "process", p.process.work)
	mustWork(t, "write", p.write.work)

	stills, err := filepath.Glob(filepath.Join(p.output.Dir, "*.png"))
	if err != nil {
		t.Fatal(err)
	}
	if len(stills) != 1 || !strings.HasPrefix(filepath.Base(stills[0]), "threshold_") {
		t.Fatalf("expected one threshold still, got %v", stills)
	}
	p.releaseBuffered()
	if snap := p.ledger.Snapshot(); snap.Outstanding != 0 || snap.DoubleReleases != 0 {
		t.Fatalf("unexpected ledger: %+v", snap)
	}
}

func TestWriteSkipsCandidatesPastCompletion(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Sequencer.MaxFrames = 1
	p := newTestPipeline(t, cfg, capture.Alternating(1, 10, 200))

	for i := 0; i < 3; i++ {
		mustWork(t, "acquire", p.acquire.work)
	}
	mustWork(t, "difference", p.difference.work)
	mustWork(t, "process", p.process.work)
	mustWork(t, "write", p.write.work)

	if got := p.seq.Completed(); got != 1 {
		t.Fatalf("completed = %d, want 1", got)
	}
	select {
	case <-p.seq.Done():
	default:
		t.Fatal("expected completion to be signalled")
	}
	p.releaseBuffered()
	if got := p.ledger.Outstanding(); got != 0 {
		t.Fatalf("skipped candidate leaked: %d outstanding", got)
	}
}

func TestProcessDiscardsMalformedCandidate(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	p := newTestPipeline(t, cfg, nil)

	diff := frame.New(p.ledger, 4, 4, frame.FormatGray)
	c := frame.Candidate{Frame: frame.Frame{Width: 0, Height: 4}, Diff: diff, Seq: 9}
	if err := p.selectQ.TrySend(c, 0, 0); err != nil {
		t.Fatalf("TrySend: %v", err)
	}
	mustWork(t, "process", p.process.work)

	if got := p.writeQ.Len(); got != 0 {
		t.Fatalf("malformed candidate forwarded: %d queued", got)
	}
	if !diff.Released() {
		t.Fatal("malformed candidate frames were not freed")
	}
}

func TestProcessReplacesFrameWithEdgeImage(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithFrameSize(64, 48))
	cfg.Processing.EdgeEnhance = true
	cfg.Processing.LineDetect = true
	p := newTestPipeline(t, cfg, capture.MovingSquare(20, 6))

	for i := 0; i < 3; i++ {
		mustWork(t, "acquire", p.acquire.work)
	}
	mustWork(t, "difference", p.difference.work)
	mustWork(t, "process", p.process.work)

	c, err := p.writeQ.TryReceive()
	if err != nil {
		t.Fatalf("expected a processed candidate: %v", err)
	}
	if c.Frame.Empty() || c.Frame.Seq != c.Seq {
		t.Fatalf("processed frame lost its metadata: %+v", c.Frame)
	}
	if c.Lines == 0 && c.Frame.Format != frame.FormatGray {
		t.Fatalf("edge image without overlay should stay gray, got %s", c.Frame.Format)
	}
	_ = c.Release()
	p.releaseBuffered()
	if snap := p.ledger.Snapshot(); snap.Outstanding != 0 || snap.DoubleReleases != 0 {
		t.Fatalf("unexpected ledger: %+v", snap)
	}
}

func fastRates(cfg *config.Config) {
	cfg.Sequencer.AcquireHz = 60
	cfg.Sequencer.DifferenceHz = 30
	cfg.Sequencer.ProcessHz = 30
	cfg.Sequencer.WriteHz = 30
	cfg.Sequencer.StopGraceMS = 20
	cfg.Timeouts.AcquireMS = 50
	cfg.Timeouts.DifferenceMS = 50
	cfg.Timeouts.ProcessMS = 50
	cfg.Timeouts.WriteMS = 50
}

func TestRunStopsAtCompletionThreshold(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	fastRates(cfg)
	cfg.Sequencer.MaxFrames = 3
	st := testsupport.MustOpenStore(t, cfg)
	p := newTestPipeline(t, cfg, capture.Alternating(1, 10, 200), WithStore(st))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()
	if err := p.Run(ctx); err != nil {
		t.Fatalf("Run: %v", err)
	}

	status := p.Status()
	if status.StopReason != string(ReasonCompleted) {
		t.Fatalf("stop reason = %q, want completed", status.StopReason)
	}
	if status.State != "stopped" {
		t.Fatalf("state = %s, want stopped", status.State)
	}
	if status.Completed < 3 {
		t.Fatalf("completed = %d, want at least 3", status.Completed)
	}
	if status.Ledger.Outstanding != 0 || status.Ledger.DoubleReleases != 0 {
		t.Fatalf("unexpected ledger at stop: %+v", status.Ledger)
	}

	run, err := st.GetRun(context.Background(), p.RunID())
	if err != nil || run == nil {
		t.Fatalf("GetRun: %v %v", run, err)
	}
	if run.Status != store.RunCompleted || run.Completed != status.Completed {
		t.Fatalf("unexpected run record: %+v", run)
	}
	frames, err := st.CountFrames(context.Background(), p.RunID())
	if err != nil {
		t.Fatal(err)
	}
	if uint64(frames) != status.Completed {
		t.Fatalf("indexed %d frames, completed %d", frames, status.Completed)
	}
}

func TestRequestStopDrainsConsumersFirst(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	fastRates(cfg)
	cfg.Sequencer.MaxFrames = 0
	p := newTestPipeline(t, cfg, capture.Alternating(2, 10, 200))

	done := make(chan error, 1)
	go func() { done <- p.Run(context.Background()) }()

	deadline := time.After(10 * time.Second)
	for p.seq.Completed() < 1 {
		select {
		case <-deadline:
			t.Fatal("no frame persisted before deadline")
		case <-time.After(10 * time.Millisecond):
		}
	}
	p.RequestStop()
	p.RequestStop()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
	case <-time.After(20 * time.Second):
		t.Fatal("pipeline did not stop")
	}

	status := p.Status()
	if status.StopReason != string(ReasonRequested) {
		t.Fatalf("stop reason = %q, want requested", status.StopReason)
	}
	order := []string{config.StageWrite, config.StageProcess, config.StageDifference, config.StageAcquire}
	if len(status.StopEvents) != len(order) {
		t.Fatalf("expected %d stop events, got %+v", len(order), status.StopEvents)
	}
	for i, name := range order {
		ev := status.StopEvents[i]
		if ev.Stage != name || ev.TimedOut {
			t.Fatalf("stop event %d = %+v, want %s exited in time", i, ev, name)
		}
		if i > 0 && ev.Signalled.Before(status.StopEvents[i-1].Exited) {
			t.Fatalf("%s signalled before %s exited", name, order[i-1])
		}
	}
	grace := cfg.StopGrace()
	if gap := status.StopEvents[2].Signalled.Sub(status.StopEvents[1].Exited); gap < grace {
		t.Fatalf("difference stopped %s after process, want at least %s", gap, grace)
	}
	for _, h := range status.Health {
		if h.Ready {
			t.Fatalf("stage %s still healthy after stop", h.Name)
		}
	}
	if status.Ledger.Outstanding != 0 || status.Ledger.DoubleReleases != 0 {
		t.Fatalf("unexpected ledger at stop: %+v", status.Ledger)
	}
}

func TestRunRejectsSecondStart(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	fastRates(cfg)
	cfg.Sequencer.MaxFrames = 1
	p := newTestPipeline(t, cfg, capture.Alternating(1, 10, 200))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()
	if err := p.Run(ctx); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if err := p.Run(ctx); err == nil {
		t.Fatal("expected second Run to fail")
	}
}

type manualTicker struct {
	ch chan time.Time
}

func (m *manualTicker) C() <-chan time.Time { return m.ch }
func (m *manualTicker) Stop()               {}

func TestRunDrivenByManualTicker(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	fastRates(cfg)
	cfg.Sequencer.MaxFrames = 2
	mt := &manualTicker{ch: make(chan time.Time)}
	p := newTestPipeline(t, cfg, capture.Alternating(1, 10, 200),
		WithTicker(func(time.Duration) sequencer.Ticker { return mt }))

	if st := p.Status(); !st.StartedAt.IsZero() || st.Uptime != 0 {
		t.Fatalf("armed pipeline reports uptime: %+v", st)
	}

	done := make(chan error, 1)
	go func() { done <- p.Run(context.Background()) }()

	var sent uint64
	now := time.Now()
	deadline := time.After(20 * time.Second)
	for running := true; running; {
		select {
		case err := <-done:
			if err != nil {
				t.Fatalf("Run: %v", err)
			}
			running = false
		case mt.ch <- now:
			sent++
			now = now.Add(time.Second / time.Duration(cfg.Sequencer.BaseRateHz))
		case <-deadline:
			t.Fatalf("pipeline did not complete after %d ticks", sent)
		}
	}

	st := p.Status()
	if st.StopReason != string(ReasonCompleted) || st.Completed < 2 {
		t.Fatalf("unexpected stop: reason=%q completed=%d", st.StopReason, st.Completed)
	}
	if st.Ticks != sent {
		t.Fatalf("ticks = %d, sent %d", st.Ticks, sent)
	}
	for _, sig := range st.Signals {
		if want := sent / st.Divisors[sig.Name]; sig.Posts != want {
			t.Fatalf("%s posts = %d, want %d after %d ticks", sig.Name, sig.Posts, want, sent)
		}
	}
	if st.Jitter.Max != 0 {
		t.Fatalf("evenly spaced ticks reported jitter %s", st.Jitter.Max)
	}
	if st.StartedAt.IsZero() || st.Uptime <= 0 {
		t.Fatalf("missing uptime after run: %s since %s", st.Uptime, st.StartedAt)
	}
	if again := p.Status(); again.Uptime != st.Uptime {
		t.Fatalf("uptime kept growing after stop: %s then %s", st.Uptime, again.Uptime)
	}
	if st.Ledger.Outstanding != 0 || st.Ledger.DoubleReleases != 0 {
		t.Fatalf("unexpected ledger at stop: %+v", st.Ledger)
	}
}
