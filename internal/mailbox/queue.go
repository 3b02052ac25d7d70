package mailbox

import (
	"container/heap"
	"errors"
	"fmt"
	"sync"
	"time"
)

var (
	// ErrFull is returned by TrySend when no slot opened before the deadline.
	ErrFull = errors.New("mailbox full")
	// ErrWouldBlock is returned by Receive when no message arrived in time.
	ErrWouldBlock = errors.New("mailbox would block")
	// ErrClosed is returned once the queue is closed and drained.
	ErrClosed = errors.New("mailbox closed")
)

// Stats is a snapshot of queue counters.
type Stats struct {
	Name     string `json:"name"`
	Len      int    `json:"len"`
	Capacity int    `json:"capacity"`
	Sent     uint64 `json:"sent"`
	Received uint64 `json:"received"`
	Rejected uint64 `json:"rejected"`
}

// Queue is a bounded priority mailbox safe for concurrent use.
type Queue[T any] struct {
	name     string
	capacity int

	mu      sync.Mutex
	entries entryHeap[T]
	seq     uint64
	closed  bool
	changed chan struct{}

	sent     uint64
	received uint64
	rejected uint64
}

// New creates a queue. A non-positive capacity is rejected.
func New[T any](name string, capacity int) (*Queue[T], error) {
	if capacity < 1 {
		return nil, fmt.Errorf("mailbox %s: capacity must be positive, got %d", name, capacity)
	}
	return &Queue[T]{
		name:     name,
		capacity: capacity,
		entries:  make(entryHeap[T], 0, capacity),
		changed:  make(chan struct{}),
	}, nil
}

// Name returns the queue's label.
func (q *Queue[T]) Name() string {
	return q.name
}

// Cap returns the fixed capacity.
func (q *Queue[T]) Cap() int {
	return q.capacity
}

// Len returns the number of queued messages.
func (q *Queue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.entries)
}

// TrySend enqueues item, waiting at most timeout for a free slot. A zero
// timeout makes a single non-blocking attempt. On ErrFull or ErrClosed the
// caller still owns item.
func (q *Queue[T]) TrySend(item T, priority int, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	q.mu.Lock()
	for {
		if q.closed {
			q.rejected++
			q.mu.Unlock()
			return ErrClosed
		}
		if len(q.entries) < q.capacity {
			q.seq++
			heap.Push(&q.entries, entry[T]{item: item, priority: priority, seq: q.seq})
			q.sent++
			q.broadcastLocked()
			q.mu.Unlock()
			return nil
		}
		ch := q.changed
		q.mu.Unlock()
		if !waitUntil(deadline, ch) {
			q.mu.Lock()
			q.rejected++
			q.mu.Unlock()
			return ErrFull
		}
		q.mu.Lock()
	}
}

// Receive dequeues the highest priority, oldest message, waiting at most
// timeout. A zero timeout never blocks.
func (q *Queue[T]) Receive(timeout time.Duration) (T, error) {
	deadline := time.Now().Add(timeout)
	q.mu.Lock()
	for {
		if len(q.entries) > 0 {
			e := heap.Pop(&q.entries).(entry[T])
			q.received++
			q.broadcastLocked()
			q.mu.Unlock()
			return e.item, nil
		}
		if q.closed {
			q.mu.Unlock()
			var zero T
			return zero, ErrClosed
		}
		ch := q.changed
		q.mu.Unlock()
		if !waitUntil(deadline, ch) {
			var zero T
			return zero, ErrWouldBlock
		}
		q.mu.Lock()
	}
}

// TryReceive is Receive without waiting.
func (q *Queue[T]) TryReceive() (T, error) {
	return q.Receive(0)
}

// Close rejects further sends and wakes every waiter. Queued messages remain
// receivable.
func (q *Queue[T]) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	q.closed = true
	q.broadcastLocked()
}

// Drain removes every queued message, handing each to release, and returns
// how many were removed.
func (q *Queue[T]) Drain(release func(T)) int {
	q.mu.Lock()
	items := make([]T, 0, len(q.entries))
	for len(q.entries) > 0 {
		items = append(items, heap.Pop(&q.entries).(entry[T]).item)
	}
	q.broadcastLocked()
	q.mu.Unlock()

	if release != nil {
		for _, item := range items {
			release(item)
		}
	}
	return len(items)
}

// Stats returns a snapshot of the queue counters.
func (q *Queue[T]) Stats() Stats {
	q.mu.Lock()
	defer q.mu.Unlock()
	return Stats{
		Name:     q.name,
		Len:      len(q.entries),
		Capacity: q.capacity,
		Sent:     q.sent,
		Received: q.received,
		Rejected: q.rejected,
	}
}

func (q *Queue[T]) broadcastLocked() {
	close(q.changed)
	q.changed = make(chan struct{})
}

func waitUntil(deadline time.Time, ch <-chan struct{}) bool {
	remaining := time.Until(deadline)
	if remaining <= 0 {
		return false
	}
	timer := time.NewTimer(remaining)
	defer timer.Stop()
	select {
	case <-ch:
		return true
	case <-timer.C:
		return false
	}
}
