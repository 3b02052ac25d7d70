package frame

import "sync/atomic"

// Ledger counts buffer allocations and releases.
type Ledger struct {
	allocs  atomic.Int64
	frees   atomic.Int64
	doubles atomic.Int64
}

// NewLedger returns an empty ledger.
func NewLedger() *Ledger {
	return &Ledger{}
}

// Allocated returns the number of buffers allocated against the ledger.
func (l *Ledger) Allocated() int64 {
	if l == nil {
		return 0
	}
	return l.allocs.Load()
}

// Released returns the number of buffers released.
func (l *Ledger) Released() int64 {
	if l == nil {
		return 0
	}
	return l.frees.Load()
}

// Outstanding returns allocations not yet released.
func (l *Ledger) Outstanding() int64 {
	if l == nil {
		return 0
	}
	return l.allocs.Load() - l.frees.Load()
}

// DoubleReleases counts Release calls on already released buffers.
func (l *Ledger) DoubleReleases() int64 {
	if l == nil {
		return 0
	}
	return l.doubles.Load()
}

// Snapshot is a point-in-time copy of the ledger counters.
type Snapshot struct {
	Allocated      int64 `json:"allocated"`
	Released       int64 `json:"released"`
	Outstanding    int64 `json:"outstanding"`
	DoubleReleases int64 `json:"double_releases"`
}

// Snapshot captures the current counters.
func (l *Ledger) Snapshot() Snapshot {
	allocs := l.Allocated()
	frees := l.Released()
	return Snapshot{
		Allocated:      allocs,
		Released:       frees,
		Outstanding:    allocs - frees,
		DoubleReleases: l.DoubleReleases(),
	}
}

func (l *Ledger) noteAlloc() {
	if l != nil {
		l.allocs.Add(1)
	}
}

func (l *Ledger) noteFree() {
	if l != nil {
		l.frees.Add(1)
	}
}

func (l *Ledger) noteDouble() {
	if l != nil {
		l.doubles.Add(1)
	}
}
