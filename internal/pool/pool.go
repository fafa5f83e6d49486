// Package pool implements a fixed worker-set thread pool draining a
// sharded queue, with configurable submission policies for a full queue.
//
// Author: aaron-michaux
package pool

import (
	"errors"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/aaron-michaux/zero/internal/queue"
)

// Task is a moveable, nothrow-callable unit of work. Go closures are
// already heap-moveable; "nothrow" is enforced by recovering panics at the
// point of invocation (fatal in the worker loop, captured as an error in
// PackagedTask.Invoke).
type Task = func()

// Policy controls behavior when backing storage is full.
type Policy int

const (
	// DispatchWhenFull executes the task synchronously on the caller (via
	// eviction) if called from a pool thread; otherwise falls through to
	// NeverBlock.
	DispatchWhenFull Policy = iota
	// NeverBlock never drops and never blocks; it may allocate.
	NeverBlock
	// BlockWhenFull is reserved; unimplemented in this core.
	BlockWhenFull
)

// ErrNotSupported is returned by Submit when asked for BlockWhenFull.
var ErrNotSupported = errors.New("pool: BlockWhenFull is not implemented")

// ErrClosed is returned by Submit after the pool has been shut down. Posts
// after shutdown are silent no-ops at the policy layer; ErrClosed exists
// for callers that want to observe it.
var ErrClosed = errors.New("pool: closed")

// Config collects the pool's tunable knobs.
type Config struct {
	ThreadCount     int  // default: runtime.NumCPU()
	NSegments       int  // default: 2 * ThreadCount
	SegmentCapacity int  // default: 256
	PinWorkers      bool // optional: LockOSThread per worker
}

// DefaultConfig applies the baseline defaults, given a thread count of
// zero meaning "auto".
func DefaultConfig() Config {
	return Config{ThreadCount: 0, NSegments: 0, SegmentCapacity: 256}
}

func (c Config) normalize() Config {
	if c.ThreadCount <= 0 {
		c.ThreadCount = max(1, runtime.NumCPU())
	}
	if c.NSegments <= 0 {
		c.NSegments = 2 * c.ThreadCount
	}
	if c.SegmentCapacity <= 0 {
		c.SegmentCapacity = 256
	}
	return c
}

type state int32

const (
	stateRunning state = iota
	stateDone
)

// Pool is a fixed worker-set thread pool draining a Sharded queue of Task.
type Pool struct {
	q       *queue.Sharded[Task]
	state   atomic.Int32
	workers sync.WaitGroup

	// workerIDs maps this pool's worker goroutine ids, so Dispatch can
	// detect self-submission. Not a global singleton: each Pool owns its
	// own map.
	workerIDs sync.Map // int64 -> struct{}
}

// New constructs and starts a Pool per cfg (zero values filled with the
// baseline defaults).
func New(cfg Config) *Pool {
	cfg = cfg.normalize()
	p := &Pool{q: queue.NewSharded[Task](cfg.NSegments, cfg.SegmentCapacity)}
	p.state.Store(int32(stateRunning))
	for i := 0; i < cfg.ThreadCount; i++ {
		p.workers.Add(1)
		go p.workerLoop(cfg.PinWorkers)
	}
	return p
}

func (p *Pool) isRunning() bool { return state(p.state.Load()) == stateRunning }

// isPoolThread reports whether the calling goroutine is one of this pool's
// workers.
func (p *Pool) isPoolThread() bool {
	_, ok := p.workerIDs.Load(goroutineID())
	return ok
}

func (p *Pool) workerLoop(pin bool) {
	defer p.workers.Done()
	if pin {
		runtime.LockOSThread()
		defer runtime.UnlockOSThread()
	}
	p.workerIDs.Store(goroutineID(), struct{}{})
	defer p.workerIDs.Delete(goroutineID())

	for !p.q.IsDone() {
		for {
			task, ok := p.q.TryPop()
			if !ok {
				break
			}
			runTask(task)
		}
		task, ok := p.q.BlockingPop()
		if !ok {
			return // done signalled and queue drained
		}
		runTask(task)
	}
}

// runTask executes a task, treating any escaping panic as fatal: exceptions
// escaping a worker loop are fatal, workers must not leak them.
func runTask(task Task) {
	defer func() {
		if r := recover(); r != nil {
			panic(r) // re-raise: fatal, matches the source's std::terminate
		}
	}()
	task()
}

// Submit posts task per the given policy.
func (p *Pool) Submit(task Task, policy Policy) error {
	if task == nil {
		return nil
	}
	if !p.isRunning() {
		return ErrClosed
	}
	switch policy {
	case BlockWhenFull:
		return ErrNotSupported
	case DispatchWhenFull:
		if p.isPoolThread() {
			if evicted, evictedOK := p.q.NonBlockingPush(task); evictedOK {
				runTask(evicted)
			}
			return nil
		}
		fallthrough
	case NeverBlock:
		p.q.PushWithPossibleResize(task)
		return nil
	default:
		return ErrNotSupported
	}
}

// Post is equivalent to Submit(task, DispatchWhenFull): the pool's default
// posting policy.
func (p *Pool) Post(task Task) error { return p.Submit(task, DispatchWhenFull) }

// Dispatch runs task inline if the caller is already on a pool thread,
// else posts it.
func (p *Pool) Dispatch(task Task) {
	if task == nil {
		return
	}
	if p.isPoolThread() {
		runTask(task)
		return
	}
	_ = p.Post(task)
}

// Defer always posts via NeverBlock, never executing inline.
func (p *Pool) Defer(task Task) error { return p.Submit(task, NeverBlock) }

// TryRunOne steals and runs one task, returning whether one was found.
func (p *Pool) TryRunOne() bool {
	if !p.isRunning() {
		return false
	}
	task, ok := p.q.TryPop()
	if !ok {
		return false
	}
	runTask(task)
	return true
}

// StealTasksUntil repeatedly calls TryRunOne until pred returns true,
// backing off ~1µs when the queue is empty, so a caller can keep the pool
// draining while it waits for pred.
func (p *Pool) StealTasksUntil(pred func() bool) {
	for !pred() {
		if !p.TryRunOne() {
			time.Sleep(time.Microsecond)
		}
	}
}

// Execute implements the Executor contract (§6): schedule a task.
func (p *Pool) Execute(task Task) { _ = p.Post(task) }

// Shutdown sets the pool to Done, signals the queue done, and joins all
// workers. Idempotent.
func (p *Pool) Shutdown() {
	if !p.state.CompareAndSwap(int32(stateRunning), int32(stateDone)) {
		p.workers.Wait()
		return
	}
	p.q.SignalDone()
	p.workers.Wait()
}

// QueueLen returns the number of tasks currently queued (not the worker
// count — callers wanting worker count should retain their Config).
func (p *Pool) QueueLen() int { return p.q.Len() }
