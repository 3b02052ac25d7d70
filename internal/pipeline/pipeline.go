package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"framewatch/internal/capture"
	"framewatch/internal/config"
	"framewatch/internal/faults"
	"framewatch/internal/frame"
	"framewatch/internal/logging"
	"framewatch/internal/mailbox"
	"framewatch/internal/metrics"
	"framewatch/internal/persist"
	"framewatch/internal/realtime"
	"framewatch/internal/release"
	"framewatch/internal/ring"
	"framewatch/internal/sequencer"
	"framewatch/internal/stage"
	"framewatch/internal/store"
	"framewatch/internal/vision"
)

// StopReason records why a run left Running.
type StopReason string

const (
	ReasonNone      StopReason = ""
	ReasonCompleted StopReason = "completed"
	ReasonRequested StopReason = "requested"
	ReasonCanceled  StopReason = "canceled"
	ReasonFailed    StopReason = "failed"
)

// Pipeline is one armed run of the four-stage pipeline.
type Pipeline struct {
	cfg     *config.Config
	logger  *slog.Logger
	runID   string
	ledger  *frame.Ledger
	metrics *metrics.Registry
	store   *store.Store

	seq     *sequencer.Sequencer
	signals map[string]*release.Signal

	ringMu    sync.Mutex
	ring      *ring.Ring[frame.Frame]
	evictions uint64

	selectQ *mailbox.Queue[frame.Candidate]
	writeQ  *mailbox.Queue[frame.Candidate]

	capture     vision.Capture
	transformer vision.Transformer
	output      persist.Output
	archiver    persist.Archiver

	acquire    *acquireStage
	difference *differenceStage
	process    *processStage
	write      *writeStage
	runners    []*stage.Runner

	stopReq   chan struct{}
	stopOnce  sync.Once
	started  atomic.Bool
	finished chan struct{}

	mu         sync.Mutex
	reason     StopReason
	stopEvents []StopEvent
	run        *store.Run
	archive    string
	startedAt  time.Time
	stoppedAt  time.Time
}

// New validates the configuration, builds every primitive, and arms the
// sequencer. Any failure is a configuration error and nothing is started.
func New(cfg *config.Config, backend vision.Backend, logger *slog.Logger, opts ...Option) (*Pipeline, error) {
	if cfg == nil {
		return nil, faults.Configuration("pipeline", "configuration is nil", nil)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if backend.Transformer == nil {
		return nil, faults.Configuration("pipeline", "vision backend has no transformer", nil)
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.runID == "" {
		o.runID = uuid.NewString()
	}
	if o.ledger == nil {
		o.ledger = frame.NewLedger()
	}
	if o.metrics == nil {
		o.metrics = metrics.New()
	}

	variant, err := frame.ParseSaveVariant(cfg.Processing.SaveVariant)
	if err != nil {
		return nil, faults.Configuration("pipeline", "processing.save_variant", err)
	}
	filter, err := vision.ParseFilter(cfg.Processing.Filter)
	if err != nil {
		return nil, faults.Configuration("pipeline", "processing.filter", err)
	}

	logger = logger.With(logging.String(logging.FieldRunID, o.runID))
	p := &Pipeline{
		cfg:         cfg,
		logger:      logging.NewComponentLogger(logger, "pipeline"),
		runID:       o.runID,
		ledger:      o.ledger,
		metrics:     o.metrics,
		store:       o.store,
		signals:     make(map[string]*release.Signal, len(config.Stages)),
		ring:        ring.New[frame.Frame](cfg.Channels.RingCapacity),
		transformer: backend.Transformer,
		archiver:    o.archiver,
		stopReq:     make(chan struct{}),
		finished:    make(chan struct{}),
	}

	if p.selectQ, err = mailbox.New[frame.Candidate]("select", cfg.Channels.SelectCapacity); err != nil {
		return nil, faults.Configuration("pipeline", "create select channel", err)
	}
	if p.writeQ, err = mailbox.New[frame.Candidate]("write", cfg.Channels.WriteCapacity); err != nil {
		return nil, faults.Configuration("pipeline", "create write channel", err)
	}

	stages := make([]sequencer.Stage, 0, len(config.Stages))
	for _, name := range config.Stages {
		sig := release.New(name, cfg.Sequencer.SignalDepth)
		p.signals[name] = sig
		stages = append(stages, sequencer.Stage{Name: name, RateHz: cfg.StageRate(name), Signal: sig})
	}
	seqOpts := []sequencer.Option{sequencer.WithTickHook(func(uint64) { p.metrics.Tick() })}
	if o.ticker != nil {
		seqOpts = append(seqOpts, sequencer.WithTicker(o.ticker))
	}
	p.seq, err = sequencer.New(sequencer.Config{
		BaseRateHz: cfg.Sequencer.BaseRateHz,
		Stages:     stages,
		MaxFrames:  uint64(cfg.Sequencer.MaxFrames),
		JitterWarn: cfg.JitterWarn(),
	}, logging.NewComponentLogger(logger, "sequencer"), seqOpts...)
	if err != nil {
		return nil, err
	}

	p.capture = o.capture
	if p.capture == nil {
		p.capture, err = capture.Open(cfg, p.ledger, backend, p.logger)
		if err != nil {
			return nil, err
		}
	}
	p.output = persist.Open(cfg, backend, p.runID)

	p.acquire = &acquireStage{p: p, warmup: cfg.Camera.WarmupFrames, evictLog: logging.NewThrottle(5 * time.Second)}
	p.difference = &differenceStage{
		p:               p,
		pixelThreshold:  uint8(cfg.Motion.PixelThreshold),
		motionThreshold: cfg.Motion.MotionThreshold,
		settleFrames:    cfg.Motion.SettleFrames,
		variant:         variant,
		dropLog:         logging.NewThrottle(5 * time.Second),
	}
	p.process = &processStage{
		p:            p,
		edgeEnhance:  cfg.Processing.EdgeEnhance,
		lineDetect:   cfg.Processing.LineDetect,
		circleDetect: cfg.Processing.CircleDetect,
		filter:       filter,
		dropLog:      logging.NewThrottle(5 * time.Second),
	}
	p.write = &writeStage{p: p, host: labelHost(cfg.Output.LabelHost)}

	works := map[string]stage.Work{
		config.StageAcquire:    p.acquire.work,
		config.StageDifference: p.difference.work,
		config.StageProcess:    p.process.work,
		config.StageWrite:      p.write.work,
	}
	for _, name := range config.Stages {
		p.runners = append(p.runners, stage.NewRunner(stage.Options{
			Name:           name,
			Signal:         p.signals[name],
			Timeout:        cfg.StageTimeout(name),
			Period:         p.seq.StagePeriod(name),
			DeadlineFactor: cfg.Sequencer.DeadlineFactor,
			WorkOnTimeout:  name != config.StageAcquire,
			Realtime:       realtime.FromConfig(cfg, name),
			Logger:         logging.ForStage(logger, cfg, name),
			Observer:       p.metrics,
		}, works[name]))
	}

	p.metrics.RegisterGauge("ledger_outstanding", "Frame buffers allocated and not yet released", func() float64 {
		return float64(p.ledger.Outstanding())
	})
	p.metrics.RegisterGauge("ring_size", "Frames waiting in the acquisition ring", func() float64 {
		return float64(p.ringSize())
	})

	p.logger.Info("pipeline armed",
		logging.Any("divisors", p.seq.Divisors()),
		logging.Int("ring_capacity", p.ring.Capacity()),
		logging.Int("select_capacity", p.selectQ.Cap()),
		logging.Int("write_capacity", p.writeQ.Cap()),
		logging.String("save_variant", variant.String()),
	)
	return p, nil
}

func labelHost(configured string) string {
	if configured != "" {
		return configured
	}
	host, err := os.Hostname()
	if err != nil {
		return ""
	}
	return host
}

// RunID returns the run identifier.
func (p *Pipeline) RunID() string {
	return p.runID
}

// Ledger returns the frame allocation ledger.
func (p *Pipeline) Ledger() *frame.Ledger {
	return p.ledger
}

// Metrics returns the metrics registry.
func (p *Pipeline) Metrics() *metrics.Registry {
	return p.metrics
}

// Run moves the pipeline to Running and blocks until it is Stopped. The run
// ends when the completion threshold is reached, RequestStop is called, or
// ctx ends; each path drains through the same ordered shutdown. A clean
// stop returns nil.
func (p *Pipeline) Run(ctx context.Context) error {
	if !p.started.CompareAndSwap(false, true) {
		return errors.New("pipeline already started")
	}
	defer close(p.finished)
	p.mu.Lock()
	p.startedAt = time.Now()
	p.mu.Unlock()

	if p.store != nil {
		run, err := p.store.BeginRun(ctx, p.runID, p.cfg.Camera.Source)
		if err != nil {
			logging.WarnWithContext(p.logger, "capture index unavailable; run will not be recorded", "store_begin_failed",
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check the state directory and captures.db"),
			)
		} else {
			p.mu.Lock()
			p.run = run
			p.mu.Unlock()
		}
	}

	stageCtx, cancelStages := context.WithCancel(logging.WithRunID(context.WithoutCancel(ctx), p.runID))
	defer cancelStages()

	for _, r := range p.runners {
		go r.Run(logging.WithStage(stageCtx, r.Name()))
	}
	seqErr := make(chan error, 1)
	go func() { seqErr <- p.seq.Run(stageCtx) }()

	p.logger.Info("pipeline running", logging.String("source", p.cfg.Camera.Source))

	var (
		reason StopReason
		runErr error
	)
	select {
	case <-p.seq.Done():
		reason = ReasonCompleted
	case <-p.stopReq:
		reason = ReasonRequested
	case <-ctx.Done():
		reason = ReasonCanceled
	case err := <-seqErr:
		reason = ReasonFailed
		runErr = err
		if runErr == nil {
			runErr = errors.New("sequencer exited unexpectedly")
		}
	}
	p.setReason(reason)

	p.shutdown()
	cancelStages()
	for _, r := range p.runners {
		<-r.Done()
	}
	p.finish(reason, runErr)
	p.mu.Lock()
	p.stoppedAt = time.Now()
	p.mu.Unlock()
	return runErr
}

// RequestStop asks a running pipeline to drain and stop. It returns
// immediately; Run returns once the pipeline is Stopped.
func (p *Pipeline) RequestStop() {
	p.stopOnce.Do(func() { close(p.stopReq) })
}

// Finished is closed when Run returns.
func (p *Pipeline) Finished() <-chan struct{} {
	return p.finished
}

func (p *Pipeline) setReason(reason StopReason) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.reason == ReasonNone {
		p.reason = reason
	}
}

// finish frees everything still buffered, closes the outputs, and records
// the run.
func (p *Pipeline) finish(reason StopReason, runErr error) {
	freed := p.releaseBuffered()
	if err := p.output.Persister.Close(); err != nil {
		logging.WarnWithContext(p.logger, "closing output failed", "output_close_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "the run video may be truncated"),
		)
	}
	if err := p.capture.Close(); err != nil {
		p.logger.Debug("capture close failed", logging.Error(err))
	}

	archivePath := p.archiveVideo()

	snap := p.ledger.Snapshot()
	attrs := []logging.Attr{
		logging.String("reason", string(reason)),
		logging.Uint64("ticks", p.seq.Ticks()),
		logging.Uint64("completed", p.seq.Completed()),
		logging.Int("freed_at_stop", freed),
		logging.Int64("allocated", snap.Allocated),
		logging.Int64("released", snap.Released),
		logging.Int64("outstanding", snap.Outstanding),
	}
	if snap.Outstanding != 0 || snap.DoubleReleases != 0 {
		logging.WarnWithContext(p.logger, "frame ledger out of balance at stop", "ledger_imbalance",
			append(attrs,
				logging.Int64("double_releases", snap.DoubleReleases),
				logging.Alert("frame_leak"))...)
	} else {
		p.logger.Info("pipeline stopped", logging.Args(attrs...)...)
	}

	p.recordRun(reason, runErr, archivePath)
}

// releaseBuffered frees every frame still held by the ring, the mailboxes,
// and the difference baseline. Stage loops have exited when this runs.
func (p *Pipeline) releaseBuffered() int {
	freed := 0
	p.ringMu.Lock()
	p.ring.Reset(func(f frame.Frame) {
		_ = f.Release()
		freed++
	})
	p.ringMu.Unlock()
	p.selectQ.Close()
	p.writeQ.Close()
	freed += p.selectQ.Drain(func(c frame.Candidate) { _ = c.Release() })
	freed += p.writeQ.Drain(func(c frame.Candidate) { _ = c.Release() })
	freed += p.difference.reset()
	return freed
}

func (p *Pipeline) archiveVideo() string {
	if !p.cfg.Output.ArchiveEncode || p.archiver == nil || p.output.VideoPath == "" {
		return ""
	}
	if _, err := os.Stat(p.output.VideoPath); err != nil {
		return ""
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
	defer cancel()
	path, err := p.archiver.Encode(ctx, p.output.VideoPath, p.output.Dir)
	if err != nil {
		logging.WarnWithContext(p.logger, "archive encode failed", "archive_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "the MJPEG video is kept; re-run the encode manually"),
		)
		return ""
	}
	p.mu.Lock()
	p.archive = path
	p.mu.Unlock()
	return path
}

func (p *Pipeline) recordRun(reason StopReason, runErr error, archivePath string) {
	p.mu.Lock()
	run := p.run
	p.mu.Unlock()
	if p.store == nil || run == nil {
		return
	}
	snap := p.ledger.Snapshot()
	run.Status = store.RunStopped
	switch reason {
	case ReasonCompleted:
		run.Status = store.RunCompleted
	case ReasonFailed:
		run.Status = store.RunFailed
	}
	run.Ticks = p.seq.Ticks()
	run.Completed = p.seq.Completed()
	run.Dropped = p.selectQ.Stats().Rejected + p.writeQ.Stats().Rejected
	run.Allocated = snap.Allocated
	run.Released = snap.Released
	run.DoubleReleases = snap.DoubleReleases
	run.VideoPath = p.output.VideoPath
	run.ArchivePath = archivePath
	if runErr != nil {
		run.ErrorMessage = runErr.Error()
	}
	if err := p.store.FinishRun(context.Background(), run); err != nil {
		p.logger.Warn("recording run failed", logging.Error(err))
	}
}

func (p *Pipeline) ringPut(f frame.Frame) (frame.Frame, bool) {
	p.ringMu.Lock()
	defer p.ringMu.Unlock()
	old, evicted := p.ring.Put(f)
	if evicted {
		p.evictions++
	}
	return old, evicted
}

func (p *Pipeline) ringGet() (frame.Frame, bool) {
	p.ringMu.Lock()
	defer p.ringMu.Unlock()
	return p.ring.Get()
}

func (p *Pipeline) ringSize() int {
	p.ringMu.Lock()
	defer p.ringMu.Unlock()
	return p.ring.Size()
}

// sendOrRelease hands c to q. On failure the candidate is freed here and
// the error is returned for logging; the caller no longer owns c either way.
func sendOrRelease(q *mailbox.Queue[frame.Candidate], c frame.Candidate, timeout time.Duration) error {
	err := q.TrySend(c, 0, timeout)
	if err == nil {
		return nil
	}
	_ = c.Release()
	return fmt.Errorf("%w: %s channel: %w", faults.ErrTransient, q.Name(), err)
}
