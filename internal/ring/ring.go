// Package ring provides a fixed-capacity circular buffer that overwrites the
// oldest element when full.
//
// A Ring is not safe for concurrent use. Callers sharing a ring between a
// producer and a consumer hold their own mutex around each Put or Get.
package ring

// Ring is a bounded FIFO with overwrite-oldest semantics.
type Ring[T any] struct {
	items []T
	head  int
	tail  int
	full  bool
}

// New returns a ring with the given capacity. Capacities below one are
// raised to one.
func New[T any](capacity int) *Ring[T] {
	if capacity < 1 {
		capacity = 1
	}
	return &Ring[T]{items: make([]T, capacity)}
}

// Put inserts item. When the ring is full the oldest unread item is evicted
// and returned with evicted set, so owners can release it.
func (r *Ring[T]) Put(item T) (old T, evicted bool) {
	if r.full {
		old = r.items[r.tail]
		evicted = true
		r.tail = (r.tail + 1) % len(r.items)
	}
	r.items[r.head] = item
	r.head = (r.head + 1) % len(r.items)
	r.full = r.head == r.tail
	return old, evicted
}

// Get removes and returns the oldest item. ok is false when the ring is empty.
func (r *Ring[T]) Get() (item T, ok bool) {
	if r.Empty() {
		return item, false
	}
	var zero T
	item = r.items[r.tail]
	r.items[r.tail] = zero
	r.full = false
	r.tail = (r.tail + 1) % len(r.items)
	return item, true
}

// Peek returns the oldest item without removing it.
func (r *Ring[T]) Peek() (item T, ok bool) {
	if r.Empty() {
		return item, false
	}
	return r.items[r.tail], true
}

// Empty reports whether no items are buffered.
func (r *Ring[T]) Empty() bool {
	return !r.full && r.head == r.tail
}

// Full reports whether the next Put will evict.
func (r *Ring[T]) Full() bool {
	return r.full
}

// Size returns the number of buffered items.
func (r *Ring[T]) Size() int {
	if r.full {
		return len(r.items)
	}
	if r.head >= r.tail {
		return r.head - r.tail
	}
	return len(r.items) + r.head - r.tail
}

// Capacity returns the fixed capacity.
func (r *Ring[T]) Capacity() int {
	return len(r.items)
}

// Reset drops every buffered item, passing each to release when non-nil.
func (r *Ring[T]) Reset(release func(T)) {
	for {
		item, ok := r.Get()
		if !ok {
			break
		}
		if release != nil {
			release(item)
		}
	}
	r.head, r.tail, r.full = 0, 0, false
}
