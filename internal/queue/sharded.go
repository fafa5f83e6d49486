package queue

import (
	"sync"
	"sync/atomic"
	"time"
)

// waitTimeout is the short timed wait used by BlockingPop to close the race
// window between a waiter's last try_pop probe and a concurrent push
// incrementing size.
const waitTimeout = 10 * time.Microsecond

// Sharded fans a queue of T out over N independent segments, spreading
// contention via round-robin push/pop hints. Size is tracked globally;
// `done` is monotonic (false->true, never reverses).
type Sharded[T any] struct {
	segments []*Segment[T]
	pushHint atomic.Uint64
	popHint  atomic.Uint64
	size     atomic.Int64
	done     atomic.Bool

	mu   sync.Mutex
	cond *sync.Cond
}

// NewSharded builds a Sharded queue of n segments, each with the given
// per-segment capacity.
func NewSharded[T any](n, segmentCapacity int) *Sharded[T] {
	if n <= 0 {
		n = 1
	}
	q := &Sharded[T]{segments: make([]*Segment[T], n)}
	for i := range q.segments {
		q.segments[i] = NewSegment[T](segmentCapacity)
	}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// Len returns the queue's current total occupancy.
func (q *Sharded[T]) Len() int { return int(q.size.Load()) }

// NumSegments returns the shard count N.
func (q *Sharded[T]) NumSegments() int { return len(q.segments) }

// IsDone reports whether SignalDone has been called.
func (q *Sharded[T]) IsDone() bool { return q.done.Load() }

// SignalDone marks the queue done and wakes all blocked poppers. Idempotent.
func (q *Sharded[T]) SignalDone() {
	q.done.Store(true)
	q.mu.Lock()
	q.cond.Broadcast()
	q.mu.Unlock()
}

func (q *Sharded[T]) notifyPushed() {
	q.mu.Lock()
	q.cond.Broadcast()
	q.mu.Unlock()
}

// tryPushOnce probes N segments starting at the push hint, trying a plain
// TryPush; returns true on first success.
func (q *Sharded[T]) tryPushOnce(item T) bool {
	n := len(q.segments)
	start := int(q.pushHint.Add(1)-1) % n
	for i := 0; i < n; i++ {
		idx := (start + i) % n
		if q.segments[idx].TryPush(item) {
			return true
		}
	}
	return false
}

// tryPopOnce probes N segments starting at the pop hint, returning the
// first successfully popped item.
func (q *Sharded[T]) tryPopOnce() (T, bool) {
	n := len(q.segments)
	start := int(q.popHint.Add(1)-1) % n
	for i := 0; i < n; i++ {
		idx := (start + i) % n
		if v, ok := q.segments[idx].TryPop(); ok {
			return v, true
		}
	}
	var zero T
	return zero, false
}

// TryPush attempts a single non-blocking, non-evicting push, for callers
// that want to fail fast rather than resize or evict.
func (q *Sharded[T]) TryPush(item T) bool {
	if q.tryPushOnce(item) {
		q.size.Add(1)
		q.notifyPushed()
		return true
	}
	return false
}

// NonBlockingPush probes for TrySwapPush across segments. If an eviction
// occurred the caller is handed the evicted item (evictedOK==true) so it can
// be executed synchronously, keeping size unchanged; otherwise size is
// incremented. This bounds storage growth without blocking.
func (q *Sharded[T]) NonBlockingPush(item T) (evicted T, evictedOK bool) {
	n := len(q.segments)
	start := int(q.pushHint.Add(1)-1) % n
	for i := 0; i < n; i++ {
		idx := (start + i) % n
		if ev, evOK, ok := q.segments[idx].TrySwapPush(item); ok {
			if !evOK {
				q.size.Add(1)
				q.notifyPushed()
			}
			return ev, evOK
		}
	}
	// Every segment's mutex was contended; fall back to a growing push so
	// the item is never silently dropped.
	return q.PushWithPossibleResize(item), false
}

// PushWithPossibleResize probes for TryPushGrowing; never drops, never
// blocks, may allocate. Returns the zero value of evicted-slot semantics
// (there is none) for symmetry with NonBlockingPush's call site.
func (q *Sharded[T]) PushWithPossibleResize(item T) T {
	n := len(q.segments)
	start := int(q.pushHint.Add(1)-1) % n
	for {
		for i := 0; i < n; i++ {
			idx := (start + i) % n
			if q.segments[idx].TryPushGrowing(item) {
				q.size.Add(1)
				q.notifyPushed()
				var zero T
				return zero
			}
		}
		// All N segment mutexes momentarily contended; retry immediately.
	}
}

// BlockingPop retries TryPop rounds; between rounds it sleeps on the
// condition variable with a short timed wait, to close the race window
// where a push increments size between this caller's last probe and its
// wait. Returns false iff done && size==0 was observed while holding the
// condition variable's mutex.
func (q *Sharded[T]) BlockingPop() (T, bool) {
	for {
		if v, ok := q.tryPopOnce(); ok {
			q.size.Add(-1)
			return v, true
		}

		q.mu.Lock()
		if q.done.Load() && q.size.Load() == 0 {
			q.mu.Unlock()
			var zero T
			return zero, false
		}
		// Re-probe while holding the condvar mutex to close the race
		// window before committing to a wait.
		if v, ok := q.tryPopOnce(); ok {
			q.mu.Unlock()
			q.size.Add(-1)
			return v, true
		}
		timer := time.AfterFunc(waitTimeout, func() {
			q.mu.Lock()
			q.cond.Broadcast()
			q.mu.Unlock()
		})
		q.cond.Wait()
		timer.Stop()
		q.mu.Unlock()
	}
}

// TryPop performs a single non-blocking pop attempt across segments,
// without falling back to a condition-variable wait.
func (q *Sharded[T]) TryPop() (T, bool) {
	if v, ok := q.tryPopOnce(); ok {
		q.size.Add(-1)
		return v, true
	}
	var zero T
	return zero, false
}
