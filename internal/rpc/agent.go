package rpc

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// Executor is the minimal contract the agent needs from a worker pool
// (or any substitute): schedule a task for execution.
type Executor interface {
	Execute(task func())
}

// TimerPoster is the minimal contract the agent needs from a timer
// manager (or any substitute): post a delayed task.
type TimerPoster interface {
	Post(delay time.Duration, task func()) bool
}

// Clock is the monotonic clock collaborator.
type Clock interface {
	Now() int64
}

// Carrier is the minimal contract the agent needs from the framed duplex
// stream: hand a fully-encoded buffer off for asynchronous send.
type Carrier interface {
	Send(buf []byte) error
}

// Logger is an optional structured-logging sink for non-fatal, localized
// send errors and request tracing. Frames that fail to decode are dropped
// without a log event. A nil Logger disables logging entirely.
type Logger interface {
	LogFrameError(requestID uint64, op string, err error)
	// LogRequestDispatch is observability-only: correlationID never
	// appears on the wire (the envelope is bit-exact and carries no room
	// for it) and has no effect on protocol semantics. It is emitted once
	// per decoded inbound request; the id is not stored on the CallContext
	// and is not attached to any later log event.
	LogRequestDispatch(requestID uint64, correlationID string, callID uint32)
}

// Handler processes one inbound request. It must eventually call a method
// on ctx that finalizes the call (Finish/FinishWithPayload/
// FinishWithError/Cancel); if it never does, the call is reaped when its
// deadline expires.
type Handler func(ctx *CallContext, payload []byte)

// Serializer produces an outbound call's payload, or an error if encoding
// failed.
type Serializer func() ([]byte, error)

// Completion observes the outcome of one outbound call. Each request_id
// receives exactly one completion invocation.
type Completion func(status StatusCode, errMessage, errDetails string, payload []byte)

// Config collects the Agent's configuration knobs.
type Config struct {
	Handler               Handler // default: nil, meaning every request finalizes Unimplemented
	DefaultDeadlineMillis uint32  // default: 0, meaning no deadline
	Logger                Logger  // optional; nil disables frame-error logging
}

type outstandingCall struct {
	completion Completion
	cancelTimer func()
}

// Agent is simultaneously server and client on one framed duplex stream.
type Agent struct {
	carrier Carrier
	exec    Executor
	timers  TimerPoster
	clock   Clock
	cfg     Config

	nextRequestID uint64
	idMu          sync.Mutex

	mu          sync.Mutex
	outstanding map[uint64]*outstandingCall
	closed      bool

	inflight errgroup.Group
}

// New constructs an Agent. carrier, exec, timers, and clock are required
// collaborators; cfg supplies the handler and default deadline.
func New(carrier Carrier, exec Executor, timers TimerPoster, clock Clock, cfg Config) *Agent {
	return &Agent{
		carrier:     carrier,
		exec:        exec,
		timers:      timers,
		clock:       clock,
		cfg:         cfg,
		outstanding: make(map[uint64]*outstandingCall),
	}
}

// HandleFrame is the inbound path entry point: decode the tag, dispatch to
// the request or response handler. Empty frames are refused silently.
func (a *Agent) HandleFrame(raw []byte) {
	if len(raw) == 0 {
		return
	}
	if IsRequest(raw) {
		a.handleRequestFrame(raw)
		return
	}
	a.handleResponseFrame(raw)
}

func (a *Agent) handleRequestFrame(raw []byte) {
	req, err := DecodeRequest(raw)
	if err != nil {
		return // malformed; dropped, non-fatal
	}
	ctx := &CallContext{
		agent:     a,
		requestID: req.RequestID,
		callID:    req.CallID,
		deadline:  computeDeadline(a.clock.Now(), req.DeadlineMillis),
	}
	if a.cfg.Logger != nil {
		a.cfg.Logger.LogRequestDispatch(req.RequestID, uuid.NewString(), req.CallID)
	}
	if a.cfg.Handler == nil {
		ctx.Finish(Unimplemented)
		return
	}

	handler := a.cfg.Handler
	payload := req.Payload
	if req.DeadlineMillis > 0 {
		// Reap a handler that never finalizes (a no-op if it already has).
		a.timers.Post(time.Duration(req.DeadlineMillis)*time.Millisecond, func() {
			ctx.Finish(DeadlineExceeded)
		})
	}
	done := make(chan struct{})
	a.inflight.Go(func() error {
		<-done
		return nil
	})
	a.exec.Execute(func() {
		defer close(done)
		handler(ctx, payload)
	})
}

func (a *Agent) handleResponseFrame(raw []byte) {
	resp, err := DecodeResponse(raw)
	if err != nil {
		return // malformed; dropped
	}
	call, ok := a.removeOutstanding(resp.RequestID)
	if !ok {
		return // late or duplicate; dropped silently
	}
	if call.cancelTimer != nil {
		call.cancelTimer()
	}
	call.completion(resp.Status, resp.ErrorMessage, resp.ErrorDetails, resp.Payload)
}

func (a *Agent) removeOutstanding(requestID uint64) (*outstandingCall, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	call, ok := a.outstanding[requestID]
	if ok {
		delete(a.outstanding, requestID)
	}
	return call, ok
}

// PerformCall is the outbound path: allocate a request id, encode and
// send the request, arm a deadline timer if requested, and invoke
// completion exactly once with whichever of {wire response, timer, local
// failure} resolves first.
func (a *Agent) PerformCall(callID uint32, deadlineMillis uint32, serialize Serializer, completion Completion) {
	requestID := a.allocateRequestID()

	if deadlineMillis == 0 {
		deadlineMillis = a.cfg.DefaultDeadlineMillis
	}

	payload, err := serialize()
	if err != nil {
		completion(Aborted, err.Error(), "", nil)
		return
	}
	buf := EncodeRequest(requestID, callID, deadlineMillis, payload)

	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		completion(Unavailable, "agent closed", "", nil)
		return
	}
	call := &outstandingCall{completion: completion}
	a.outstanding[requestID] = call
	a.mu.Unlock()

	if deadlineMillis > 0 {
		d := time.Duration(deadlineMillis) * time.Millisecond
		var stopped bool
		var stopMu sync.Mutex
		call.cancelTimer = func() {
			stopMu.Lock()
			stopped = true
			stopMu.Unlock()
		}
		a.timers.Post(d, func() {
			stopMu.Lock()
			already := stopped
			stopMu.Unlock()
			if already {
				return
			}
			if c, ok := a.removeOutstanding(requestID); ok {
				c.completion(DeadlineExceeded, "deadline exceeded", "", nil)
			}
		})
	}

	if err := a.carrier.Send(buf); err != nil {
		if a.cfg.Logger != nil {
			a.cfg.Logger.LogFrameError(requestID, "send_request", err)
		}
		if c, ok := a.removeOutstanding(requestID); ok {
			if c.cancelTimer != nil {
				c.cancelTimer()
			}
			c.completion(Unavailable, err.Error(), "", nil)
		}
	}
}

func (a *Agent) allocateRequestID() uint64 {
	a.idMu.Lock()
	defer a.idMu.Unlock()
	a.nextRequestID++
	return a.nextRequestID
}

func (a *Agent) sendResponse(requestID uint64, buf []byte) {
	if err := a.carrier.Send(buf); err != nil {
		// Non-fatal and localized: the response was already finalized, so
		// there is nothing left to retry here beyond logging.
		if a.cfg.Logger != nil {
			a.cfg.Logger.LogFrameError(requestID, "send_response", err)
		}
	}
}

// Close ends the agent: drains in-flight handler dispatches, then resolves
// every outstanding outbound call as Unavailable, matching stream-level-
// error semantics.
func (a *Agent) Close() {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return
	}
	a.closed = true
	calls := a.outstanding
	a.outstanding = make(map[uint64]*outstandingCall)
	a.mu.Unlock()

	_ = a.inflight.Wait()

	for _, c := range calls {
		if c.cancelTimer != nil {
			c.cancelTimer()
		}
		c.completion(Unavailable, "agent closed", "", nil)
	}
}
