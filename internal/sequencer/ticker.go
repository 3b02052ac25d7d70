package sequencer

import "time"

// Ticker delivers periodic ticks.
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

// TickerFactory builds a Ticker for the given period.
type TickerFactory func(period time.Duration) Ticker

type wallTicker struct {
	t *time.Ticker
}

func (w wallTicker) C() <-chan time.Time { return w.t.C }
func (w wallTicker) Stop()               { w.t.Stop() }

// NewWallTicker wraps time.NewTicker.
func NewWallTicker(period time.Duration) Ticker {
	return wallTicker{t: time.NewTicker(period)}
}
