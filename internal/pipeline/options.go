package pipeline

import (
	"framewatch/internal/frame"
	"framewatch/internal/metrics"
	"framewatch/internal/persist"
	"framewatch/internal/sequencer"
	"framewatch/internal/store"
	"framewatch/internal/vision"
)

// Option customizes a Pipeline.
type Option func(*options)

type options struct {
	runID    string
	ledger   *frame.Ledger
	capture  vision.Capture
	metrics  *metrics.Registry
	store    *store.Store
	archiver persist.Archiver
	ticker   sequencer.TickerFactory
}

// WithRunID fixes the run identifier instead of generating one.
func WithRunID(id string) Option {
	return func(o *options) { o.runID = id }
}

// WithLedger accounts frame allocations against ledger.
func WithLedger(ledger *frame.Ledger) Option {
	return func(o *options) { o.ledger = ledger }
}

// WithCapture supplies an opened and configured frame source, bypassing
// the configured camera source.
func WithCapture(c vision.Capture) Option {
	return func(o *options) { o.capture = c }
}

// WithMetrics exports counters to reg.
func WithMetrics(reg *metrics.Registry) Option {
	return func(o *options) { o.metrics = reg }
}

// WithStore records the run and every persisted frame in st.
func WithStore(st *store.Store) Option {
	return func(o *options) { o.store = st }
}

// WithArchiver re-encodes the run video at Stopped when
// output.archive_encode is set.
func WithArchiver(a persist.Archiver) Option {
	return func(o *options) { o.archiver = a }
}

// WithTicker replaces the sequencer's wall-clock ticker.
func WithTicker(factory sequencer.TickerFactory) Option {
	return func(o *options) { o.ticker = factory }
}
