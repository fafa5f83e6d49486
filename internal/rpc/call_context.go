package rpc

import (
	"math"
	"sync"
)

// noDeadline is the "+∞" sentinel for an inbound call with
// deadline_millis == 0, matching internal/timer's sentinelWhen convention.
const noDeadline = math.MaxInt64

// CallContext is constructed on inbound request decode and destroyed (in
// the sense of being released for GC) once finish_call has encoded and
// submitted a response.
type CallContext struct {
	agent     *Agent
	requestID uint64
	callID    uint32
	deadline  int64 // nanoseconds on agent.clock's scale; noDeadline means none

	mu         sync.Mutex
	finished   bool
	cancelled  bool
	completion func(StatusCode)
}

// Finish is finish_call(status, nil): finalize with status and no payload.
func (c *CallContext) Finish(status StatusCode) {
	c.FinishWithPayload(status, nil)
}

// FinishWithPayload is finish_call(status, serializer) where serializer has
// already produced payload.
func (c *CallContext) FinishWithPayload(status StatusCode, payload []byte) {
	c.finishWithError(status, "", "", payload)
}

// FinishWithError is finish_call carrying an explicit error_message/details
// pair (used when status != OK).
func (c *CallContext) FinishWithError(status StatusCode, errMessage, errDetails string) {
	c.finishWithError(status, errMessage, errDetails, nil)
}

func (c *CallContext) finishWithError(status StatusCode, errMessage, errDetails string, payload []byte) {
	c.mu.Lock()
	if c.finished {
		c.mu.Unlock()
		return
	}
	c.finished = true
	completion := c.completion
	c.mu.Unlock()

	if status == OK && c.deadline != noDeadline && c.agent.clock.Now() > c.deadline {
		status = DeadlineExceeded
	}

	buf, err := EncodeResponse(c.requestID, status, errMessage, errDetails, payload)
	if err != nil {
		buf, _ = EncodeResponse(c.requestID, DataLoss, "response encode failure", err.Error(), nil)
	}
	c.agent.sendResponse(c.requestID, buf)

	if completion != nil {
		completion(status)
	}
}

// SetCompletion installs a local completion hook invoked with the final
// status once the response has been sent. It has no effect on the wire
// format; it exists purely for server-side bookkeeping.
func (c *CallContext) SetCompletion(fn func(StatusCode)) {
	c.mu.Lock()
	c.completion = fn
	c.mu.Unlock()
}

// Cancel marks the context cancelled and delegates to Finish(Cancelled).
func (c *CallContext) Cancel() {
	c.mu.Lock()
	c.cancelled = true
	c.mu.Unlock()
	c.Finish(Cancelled)
}

// IsCancelled reports whether Cancel has been called on this context, so a
// handler can cooperatively abandon work in progress.
func (c *CallContext) IsCancelled() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cancelled
}

// RequestID returns the id of the inbound request this context answers.
func (c *CallContext) RequestID() uint64 { return c.requestID }

// CallID returns the call id the request was dispatched for, so a handler
// shared across multiple RPC methods can tell which one it is serving.
func (c *CallContext) CallID() uint32 { return c.callID }

// Deadline reports the absolute deadline (agent clock scale) and whether
// one was set at all.
func (c *CallContext) Deadline() (when int64, ok bool) {
	if c.deadline == noDeadline {
		return 0, false
	}
	return c.deadline, true
}

func computeDeadline(nowNanos int64, deadlineMillis uint32) int64 {
	if deadlineMillis == 0 {
		return noDeadline
	}
	return nowNanos + int64(deadlineMillis)*1_000_000
}
