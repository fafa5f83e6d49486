// Package timer implements a deadline-ordered timer manager. A dedicated
// scheduler goroutine owns the ordering across a set of sharded min-heaps,
// expiring entries by re-posting them onto a configured executor.
//
// Author: aaron-michaux
package timer

import (
	"container/heap"
	"math"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sys/cpu"
)

// Executor is the minimal contract this package needs from a worker pool
// (or any substitute): schedule a task for execution.
type Executor interface {
	Execute(task func())
}

// Clock is the monotonic clock collaborator, expressed in nanoseconds
// relative to an arbitrary epoch (only differences matter).
type Clock interface {
	Now() int64
}

// systemClock reports nanoseconds elapsed since the clock was constructed,
// using time.Since (which uses the runtime's monotonic reading) rather than
// wall-clock time, so it is immune to NTP/wall-clock adjustments.
type systemClock struct{ start time.Time }

// NewSystemClock returns a Clock backed by the process's monotonic clock.
func NewSystemClock() Clock { return &systemClock{start: time.Now()} }

func (c *systemClock) Now() int64 { return int64(time.Since(c.start)) }

const sentinelWhen = math.MaxInt64

// entry is one scheduled thunk, keyed by absolute deadline.
type entry struct {
	when int64
	task func()
}

// minHeap orders entries by ascending `when`.
type minHeap []entry

func (h minHeap) Len() int            { return len(h) }
func (h minHeap) Less(i, j int) bool  { return h[i].when < h[j].when }
func (h minHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *minHeap) Push(x interface{}) { *h = append(*h, x.(entry)) }
func (h *minHeap) Pop() interface{} {
	old := *h
	n := len(old)
	e := old[n-1]
	*h = old[:n-1]
	return e
}

// shard is one independently-locked min-heap.
type shard struct {
	mu sync.Mutex
	h  minHeap
}

func newShard(capacity int) *shard {
	return &shard{h: make(minHeap, 0, capacity)}
}

// tryPush non-blockingly inserts, failing only if the mutex is contended.
func (s *shard) tryPush(e entry) bool {
	if !s.mu.TryLock() {
		return false
	}
	defer s.mu.Unlock()
	heap.Push(&s.h, e)
	return true
}

// popUntil drains entries with when <= now, submitting each to exec, and
// returns the minimum remaining `when` (sentinelWhen if empty).
func (s *shard) popUntil(now int64, exec Executor) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	for len(s.h) > 0 && s.h[0].when <= now {
		e := heap.Pop(&s.h).(entry)
		exec.Execute(e.task)
	}
	if len(s.h) == 0 {
		return sentinelWhen
	}
	return s.h[0].when
}

// Manager is a sharded, deadline-ordered timer service with one background
// scheduler goroutine.
type Manager struct {
	shards   []*shard
	pushIdx  atomic.Uint64
	done     atomic.Bool
	nextWhen atomic.Int64

	mu   sync.Mutex
	cond *sync.Cond

	exec  Executor
	clock Clock

	stopped chan struct{}
}

// Config controls shard count and per-shard heap capacity.
type Config struct {
	NSegments       int // default 8
	SegmentCapacity int // default 100
}

// DefaultConfig applies the baseline defaults.
func DefaultConfig() Config { return Config{NSegments: 8, SegmentCapacity: 100} }

func (c Config) normalize() Config {
	if c.NSegments <= 0 {
		c.NSegments = 8
	}
	if c.SegmentCapacity <= 0 {
		c.SegmentCapacity = 100
	}
	return c
}

// New constructs a Manager and starts its scheduler goroutine.
func New(exec Executor, cfg Config) *Manager {
	return NewWithClock(exec, cfg, NewSystemClock())
}

// NewWithClock is New, but with an injectable Clock (useful in tests).
func NewWithClock(exec Executor, cfg Config, clock Clock) *Manager {
	cfg = cfg.normalize()
	m := &Manager{
		shards:  make([]*shard, cfg.NSegments),
		exec:    exec,
		clock:   clock,
		stopped: make(chan struct{}),
	}
	for i := range m.shards {
		m.shards[i] = newShard(cfg.SegmentCapacity)
	}
	m.cond = sync.NewCond(&m.mu)
	m.nextWhen.Store(sentinelWhen)
	go m.run()
	return m
}

// Now returns the manager's monotonic clock reading, in nanoseconds.
func (m *Manager) Now() int64 { return m.clock.Now() }

// Post schedules task to run after delay, returning false only if the
// manager has been disposed.
func (m *Manager) Post(delay time.Duration, task func()) bool {
	if m.done.Load() {
		return false
	}
	when := m.clock.Now() + int64(delay)
	n := len(m.shards)
	start := int(m.pushIdx.Add(1) - 1)
	for {
		for i := 0; i < n; i++ {
			idx := (start + i) % n
			if m.shards[idx].tryPush(entry{when: when, task: task}) {
				m.updateNextWhen(when)
				return true
			}
		}
	}
}

func (m *Manager) updateNextWhen(when int64) {
	if when >= m.nextWhen.Load() {
		return
	}
	m.mu.Lock()
	if when < m.nextWhen.Load() {
		m.nextWhen.Store(when)
		m.cond.Broadcast()
	}
	m.mu.Unlock()
}

func (m *Manager) run() {
	defer close(m.stopped)
	for !m.done.Load() {
		m.nextWhen.Store(sentinelWhen)
		now := m.clock.Now()
		next := int64(sentinelWhen)
		for _, s := range m.shards {
			if w := s.popUntil(now, m.exec); w < next {
				next = w
			}
		}
		m.updateNextWhen(next)
		m.waitUntil()
		m.spinBackoff()
	}
}

// spinBackoff briefly yields the scheduler goroutine's remaining quantum
// before the next drain pass. On CPUs with wide SIMD (AVX2), a plain
// runtime.Gosched is cheap enough to prefer over a timed sleep; narrower
// CPUs fall back to a short sleep to avoid needless spinning.
func (m *Manager) spinBackoff() {
	if cpu.X86.HasAVX2 {
		runtime.Gosched()
		return
	}
	time.Sleep(time.Microsecond)
}

// waitUntil sleeps on the condition variable until nextWhen elapses or a
// wakeup (a closer deadline, or done) is signalled.
func (m *Manager) waitUntil() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for {
		if m.done.Load() {
			return
		}
		when := m.nextWhen.Load()
		delta := when - m.clock.Now()
		if delta <= 0 {
			return
		}
		if when == sentinelWhen {
			m.cond.Wait()
			continue
		}
		timer := time.AfterFunc(time.Duration(delta), func() {
			m.mu.Lock()
			m.cond.Broadcast()
			m.mu.Unlock()
		})
		m.cond.Wait()
		timer.Stop()
		return
	}
}

// Dispose stops the scheduler goroutine. Idempotent.
func (m *Manager) Dispose() {
	if !m.done.CompareAndSwap(false, true) {
		<-m.stopped
		return
	}
	m.mu.Lock()
	m.cond.Broadcast()
	m.mu.Unlock()
	<-m.stopped
}
