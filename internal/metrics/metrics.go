// Package metrics exports pipeline counters to Prometheus. Each pipeline
// owns its own registry.
package metrics

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"framewatch/internal/stage"
)

const namespace = "framewatch"

// Registry holds the pipeline collectors.
type Registry struct {
	reg *prometheus.Registry

	stageRuns      *prometheus.CounterVec
	stageUnits     *prometheus.CounterVec
	stageTimeouts  *prometheus.CounterVec
	stageMisses    *prometheus.CounterVec
	stageDuration  *prometheus.HistogramVec
	channelDrops   *prometheus.CounterVec
	ringEvictions  prometheus.Counter
	candidates     prometheus.Counter
	persisted      prometheus.Counter
	malformed      prometheus.Counter
	sequencerTicks prometheus.Counter
}

// New builds a registry with the Go and process collectors attached.
func New() *Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	f := promauto.With(reg)
	return &Registry{
		reg: reg,
		stageRuns: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stage_runs_total",
			Help:      "Stage releases that ran a unit of work",
		}, []string{"stage"}),
		stageUnits: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stage_units_total",
			Help:      "Items handled by each stage",
		}, []string{"stage"}),
		stageTimeouts: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stage_wait_timeouts_total",
			Help:      "Release waits that timed out",
		}, []string{"stage"}),
		stageMisses: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stage_deadline_misses_total",
			Help:      "Runs that exceeded the stage period budget",
		}, []string{"stage"}),
		stageDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "stage_run_seconds",
			Help:      "Duration of one stage unit of work",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 14),
		}, []string{"stage"}),
		channelDrops: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "channel_drops_total",
			Help:      "Items dropped and freed because a channel send failed",
		}, []string{"channel"}),
		ringEvictions: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ring_evictions_total",
			Help:      "Frames evicted from the acquisition ring",
		}),
		candidates: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "candidates_total",
			Help:      "Frames flagged as motion candidates",
		}),
		persisted: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_persisted_total",
			Help:      "Frames written by the Write stage",
		}),
		malformed: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "malformed_frames_total",
			Help:      "Frames discarded for unusable dimensions",
		}),
		sequencerTicks: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sequencer_ticks_total",
			Help:      "Base-rate ticks issued by the sequencer",
		}),
	}
}

// Gatherer exposes the registry for HTTP export and tests.
func (r *Registry) Gatherer() prometheus.Gatherer {
	return r.reg
}

// RegisterGauge adds a gauge sampled from fn at scrape time. A gauge
// already registered under name is replaced.
func (r *Registry) RegisterGauge(name, help string, fn func() float64) {
	gauge := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      name,
		Help:      help,
	}, fn)
	if err := r.reg.Register(gauge); err != nil {
		var existing prometheus.AlreadyRegisteredError
		if errors.As(err, &existing) {
			r.reg.Unregister(existing.ExistingCollector)
			r.reg.MustRegister(gauge)
		}
	}
}

var _ stage.Observer = (*Registry)(nil)

func (r *Registry) ObserveRun(name string, elapsed time.Duration, units int) {
	r.stageRuns.WithLabelValues(name).Inc()
	if units > 0 {
		r.stageUnits.WithLabelValues(name).Add(float64(units))
	}
	r.stageDuration.WithLabelValues(name).Observe(elapsed.Seconds())
}

func (r *Registry) ObserveTimeout(name string) {
	r.stageTimeouts.WithLabelValues(name).Inc()
}

func (r *Registry) ObserveDeadlineMiss(name string) {
	r.stageMisses.WithLabelValues(name).Inc()
}

// Drop counts an item freed after a failed channel send.
func (r *Registry) Drop(channel string) {
	r.channelDrops.WithLabelValues(channel).Inc()
}

// Evicted counts a ring overwrite.
func (r *Registry) Evicted() {
	r.ringEvictions.Inc()
}

// Candidate counts a motion candidate.
func (r *Registry) Candidate() {
	r.candidates.Inc()
}

// Persisted counts a written frame.
func (r *Registry) Persisted() {
	r.persisted.Inc()
}

// Malformed counts a discarded frame.
func (r *Registry) Malformed() {
	r.malformed.Inc()
}

// Tick counts a sequencer tick.
func (r *Registry) Tick() {
	r.sequencerTicks.Inc()
}
