package rpc

import (
	"errors"
	"sync"
	"testing"
	"time"
)

// pipe connects two Agents' carriers directly: Send on one side delivers
// synchronously to the other's HandleFrame, exercising the agent end to
// end without a real socket (the role internal/stream.Pipe plays in the
// full runtime).
type pipe struct {
	peer *Agent
}

func (p *pipe) Send(buf []byte) error {
	cp := append([]byte(nil), buf...)
	p.peer.HandleFrame(cp)
	return nil
}

type inlineExecutor struct{}

func (inlineExecutor) Execute(task func()) { task() }

type fakeClock struct{ mu sync.Mutex; now int64 }

func (c *fakeClock) Now() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) advance(d time.Duration) {
	c.mu.Lock()
	c.now += int64(d)
	c.mu.Unlock()
}

type fakeTimers struct {
	mu    sync.Mutex
	armed []func()
}

func (t *fakeTimers) Post(delay time.Duration, task func()) bool {
	t.mu.Lock()
	t.armed = append(t.armed, task)
	t.mu.Unlock()
	return true
}

func (t *fakeTimers) fireAll() {
	t.mu.Lock()
	tasks := t.armed
	t.armed = nil
	t.mu.Unlock()
	for _, fn := range tasks {
		fn()
	}
}

// TestEchoScenario checks a client call round-trips through a server
// handler that echoes its payload back as OK.
func TestEchoScenario(t *testing.T) {
	clock := &fakeClock{}
	server := New(nil, inlineExecutor{}, &fakeTimers{}, clock, Config{
		Handler: func(ctx *CallContext, payload []byte) {
			ctx.FinishWithPayload(OK, payload)
		},
	})
	client := New(nil, inlineExecutor{}, &fakeTimers{}, clock, Config{})
	server.carrier = &pipe{peer: client}
	client.carrier = &pipe{peer: server}

	done := make(chan struct{})
	var gotStatus StatusCode
	var gotPayload []byte
	client.PerformCall(1, 0, func() ([]byte, error) {
		return []byte("ping"), nil
	}, func(status StatusCode, errMessage, errDetails string, payload []byte) {
		gotStatus = status
		gotPayload = payload
		close(done)
	})

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for completion")
	}
	if gotStatus != OK {
		t.Fatalf("expected OK, got %v", gotStatus)
	}
	if string(gotPayload) != "ping" {
		t.Fatalf("expected echoed payload, got %q", gotPayload)
	}
}

// TestUnimplementedWhenNoHandler checks a server with no installed
// handler finalizes every request Unimplemented.
func TestUnimplementedWhenNoHandler(t *testing.T) {
	clock := &fakeClock{}
	server := New(nil, inlineExecutor{}, &fakeTimers{}, clock, Config{})
	client := New(nil, inlineExecutor{}, &fakeTimers{}, clock, Config{})
	server.carrier = &pipe{peer: client}
	client.carrier = &pipe{peer: server}

	done := make(chan StatusCode, 1)
	client.PerformCall(1, 0, func() ([]byte, error) { return nil, nil }, func(status StatusCode, _, _ string, _ []byte) {
		done <- status
	})
	select {
	case status := <-done:
		if status != Unimplemented {
			t.Fatalf("expected Unimplemented, got %v", status)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out")
	}
}

// TestDeadlineExceededOnTimeout checks a call whose deadline timer fires
// before any response resolves DeadlineExceeded exactly once, and a later
// wire response is dropped as a duplicate.
func TestDeadlineExceededOnTimeout(t *testing.T) {
	clock := &fakeClock{}
	timers := &fakeTimers{}
	// Server side never responds (simulated by a carrier that drops sends).
	client := New(droppingCarrier{}, inlineExecutor{}, timers, clock, Config{})

	var calls []StatusCode
	var mu sync.Mutex
	client.PerformCall(1, 100, func() ([]byte, error) { return nil, nil }, func(status StatusCode, _, _ string, _ []byte) {
		mu.Lock()
		calls = append(calls, status)
		mu.Unlock()
	})

	timers.fireAll()

	// A late response for the same (now-removed) request_id must be
	// dropped silently rather than completing a second time.
	raw, _ := EncodeResponse(1, OK, "", "", nil)
	client.HandleFrame(raw)

	mu.Lock()
	defer mu.Unlock()
	if len(calls) != 1 || calls[0] != DeadlineExceeded {
		t.Fatalf("expected exactly one DeadlineExceeded completion, got %v", calls)
	}
}

type droppingCarrier struct{}

func (droppingCarrier) Send(buf []byte) error { return nil }

// TestSerializerFailureAborts covers the serializer-failure branch of
// perform_rpc_call: completion fires locally with Aborted, no frame sent.
func TestSerializerFailureAborts(t *testing.T) {
	clock := &fakeClock{}
	client := New(panicIfSentCarrier{t}, inlineExecutor{}, &fakeTimers{}, clock, Config{})
	boom := errors.New("encode failed")

	done := make(chan StatusCode, 1)
	client.PerformCall(1, 0, func() ([]byte, error) { return nil, boom }, func(status StatusCode, errMessage, _ string, _ []byte) {
		if errMessage != boom.Error() {
			t.Errorf("expected error message %q, got %q", boom.Error(), errMessage)
		}
		done <- status
	})
	if status := <-done; status != Aborted {
		t.Fatalf("expected Aborted, got %v", status)
	}
}

type panicIfSentCarrier struct{ t *testing.T }

func (c panicIfSentCarrier) Send(buf []byte) error {
	c.t.Fatal("carrier.Send must not be called after a serializer failure")
	return nil
}

// TestCloseResolvesOutstandingAsUnavailable checks that closing the agent
// resolves every outstanding call with Unavailable.
func TestCloseResolvesOutstandingAsUnavailable(t *testing.T) {
	clock := &fakeClock{}
	client := New(droppingCarrier{}, inlineExecutor{}, &fakeTimers{}, clock, Config{})

	const n = 5
	results := make(chan StatusCode, n)
	for i := 0; i < n; i++ {
		client.PerformCall(1, 0, func() ([]byte, error) { return nil, nil }, func(status StatusCode, _, _ string, _ []byte) {
			results <- status
		})
	}
	client.Close()

	for i := 0; i < n; i++ {
		select {
		case status := <-results:
			if status != Unavailable {
				t.Fatalf("expected Unavailable, got %v", status)
			}
		case <-time.After(time.Second):
			t.Fatal("timed out waiting for completion")
		}
	}
}

// TestMalformedInboundFrameIsDropped checks that frame corruption is
// non-terminal: the offending frame is dropped without affecting the agent.
func TestMalformedInboundFrameIsDropped(t *testing.T) {
	clock := &fakeClock{}
	handlerCalled := false
	server := New(droppingCarrier{}, inlineExecutor{}, &fakeTimers{}, clock, Config{
		Handler: func(ctx *CallContext, payload []byte) {
			handlerCalled = true
			ctx.Finish(OK)
		},
	})
	server.HandleFrame([]byte{tagRequest, 0x01}) // too short to be a valid request
	server.HandleFrame(nil)                      // empty frame, refused
	if handlerCalled {
		t.Fatal("handler invoked for a malformed frame")
	}
}
