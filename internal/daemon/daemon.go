package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"

	"github.com/gofrs/flock"

	"framewatch/internal/config"
	"framewatch/internal/logging"
	"framewatch/internal/metrics"
	"framewatch/internal/persist"
	"framewatch/internal/pipeline"
	"framewatch/internal/preflight"
	"framewatch/internal/store"
	"framewatch/internal/vision"
)

// Daemon owns one pipeline run and enforces single-instance execution.
type Daemon struct {
	cfg     *config.Config
	logger  *slog.Logger
	store   *store.Store
	backend vision.Backend
	metrics *metrics.Registry
	opts    []pipeline.Option

	lockPath string
	lock     *flock.Flock
	monitor  *netlinkMonitor

	running atomic.Bool
	active  atomic.Bool

	mu       sync.Mutex
	pipeline *pipeline.Pipeline
	lastRun  *pipeline.Status
	lastErr  string
}

// Status represents daemon runtime information.
type Status struct {
	Running        bool
	PID            int
	LockFilePath   string
	DatabasePath   string
	CameraDevice   string
	CameraPresent  bool
	HotplugWatched bool
	Pipeline       *pipeline.Status
	LastError      string
}

// New constructs a daemon. Extra pipeline options are applied to every run.
func New(cfg *config.Config, st *store.Store, backend vision.Backend, reg *metrics.Registry, logger *slog.Logger, opts ...pipeline.Option) (*Daemon, error) {
	if cfg == nil || st == nil || logger == nil {
		return nil, errors.New("daemon requires config, store, and logger")
	}
	if reg == nil {
		reg = metrics.New()
	}
	d := &Daemon{
		cfg:      cfg,
		logger:   logging.NewComponentLogger(logger, "daemon"),
		store:    st,
		backend:  backend,
		metrics:  reg,
		opts:     opts,
		lockPath: cfg.LockPath(),
		lock:     flock.New(cfg.LockPath()),
	}
	if cfg.Camera.Source == "device" {
		d.monitor = newNetlinkMonitor(preflight.DevicePath(cfg.Camera.DeviceIndex), logger, d.cameraEvent)
	}
	return d, nil
}

// Start acquires the instance lock, marks runs left open by a crashed
// process, and starts the hotplug monitor.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another framewatch instance is already running")
	}

	if n, err := d.store.MarkAbandoned(ctx); err != nil {
		d.logger.Warn("marking abandoned runs failed", logging.Error(err))
	} else if n > 0 {
		d.logger.Info("marked abandoned runs as failed", logging.Int64("count", n))
	}
	if err := d.monitor.Start(ctx); err != nil {
		d.logger.Debug("hotplug monitor unavailable", logging.Error(err))
	}

	d.running.Store(true)
	d.logger.Info("framewatch daemon started", logging.String("lock", d.lockPath))
	return nil
}

// Run builds a pipeline, runs it to Stopped, and returns its error. Only
// one run may be active at a time.
func (d *Daemon) Run(ctx context.Context) error {
	if !d.running.Load() {
		return errors.New("daemon not started")
	}
	if !d.active.CompareAndSwap(false, true) {
		return errors.New("a pipeline run is already active")
	}
	defer d.active.Store(false)

	opts := append([]pipeline.Option{
		pipeline.WithStore(d.store),
		pipeline.WithMetrics(d.metrics),
	}, d.opts...)
	if d.cfg.Output.ArchiveEncode {
		opts = append(opts, pipeline.WithArchiver(&persist.Drapto{Logger: d.logger}))
	}

	p, err := pipeline.New(d.cfg, d.backend, d.logger, opts...)
	if err != nil {
		d.setLastError(err)
		return err
	}
	d.mu.Lock()
	d.pipeline = p
	d.mu.Unlock()

	runErr := p.Run(ctx)

	final := p.Status()
	d.mu.Lock()
	d.pipeline = nil
	d.lastRun = &final
	d.mu.Unlock()
	if runErr != nil {
		d.setLastError(runErr)
	}
	return runErr
}

// RequestStop asks the active pipeline to drain and stop. It reports false
// when no run is active.
func (d *Daemon) RequestStop() bool {
	d.mu.Lock()
	p := d.pipeline
	d.mu.Unlock()
	if p == nil {
		return false
	}
	p.RequestStop()
	d.logger.Info("pipeline stop requested", logging.String(logging.FieldRunID, p.RunID()))
	return true
}

// Stop stops the monitor and releases the instance lock. It does not stop
// an active pipeline; use RequestStop and wait for Run to return.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}
	d.monitor.Stop()
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
	d.running.Store(false)
	d.logger.Info("framewatch daemon stopped")
}

// Close releases resources held by the daemon.
func (d *Daemon) Close() error {
	d.Stop()
	return nil
}

// Metrics returns the registry shared by every run.
func (d *Daemon) Metrics() *metrics.Registry {
	return d.metrics
}

// Status returns the current daemon status, including the active run or the
// last finished one.
func (d *Daemon) Status() Status {
	st := Status{
		Running:        d.running.Load(),
		PID:            os.Getpid(),
		LockFilePath:   d.lockPath,
		DatabasePath:   d.store.Path(),
		HotplugWatched: d.monitor.Running(),
	}
	if d.monitor != nil {
		st.CameraDevice = d.monitor.device
		st.CameraPresent = d.monitor.Present()
	}
	d.mu.Lock()
	p := d.pipeline
	last := d.lastRun
	st.LastError = d.lastErr
	d.mu.Unlock()
	if p != nil {
		ps := p.Status()
		st.Pipeline = &ps
	} else if last != nil {
		copied := *last
		st.Pipeline = &copied
	}
	return st
}

func (d *Daemon) setLastError(err error) {
	d.mu.Lock()
	d.lastErr = err.Error()
	d.mu.Unlock()
}

func (d *Daemon) cameraEvent(action, device string) {
	switch action {
	case actionRemove:
		logging.WarnWithContext(d.logger, "camera removed", "camera_removed",
			logging.String("device", device),
			logging.String(logging.FieldImpact, "acquire reads fail until the camera returns"),
			logging.String(logging.FieldErrorHint, "reconnect the camera; the run keeps its state"),
		)
	case actionAdd:
		d.logger.Info("camera attached", logging.String("device", device))
	}
}
