package queue

import (
	"sync"
	"testing"
	"time"
)

func TestShardedPushPopAll(t *testing.T) {
	q := NewSharded[int](4, 8)
	const n = 200
	for i := 0; i < n; i++ {
		q.PushWithPossibleResize(i)
	}
	if q.Len() != n {
		t.Fatalf("expected len %d, got %d", n, q.Len())
	}
	seen := make(map[int]bool, n)
	for i := 0; i < n; i++ {
		v, ok := q.BlockingPop()
		if !ok {
			t.Fatalf("unexpected pop failure at %d", i)
		}
		seen[v] = true
	}
	if len(seen) != n {
		t.Fatalf("expected %d distinct items, got %d", n, len(seen))
	}
	if q.Len() != 0 {
		t.Fatalf("expected empty queue, got len %d", q.Len())
	}
}

func TestShardedBlockingPopUnblocksOnPush(t *testing.T) {
	q := NewSharded[int](2, 4)
	done := make(chan int, 1)
	go func() {
		v, ok := q.BlockingPop()
		if !ok {
			done <- -1
			return
		}
		done <- v
	}()
	time.Sleep(2 * time.Millisecond)
	q.PushWithPossibleResize(42)
	select {
	case v := <-done:
		if v != 42 {
			t.Fatalf("expected 42, got %d", v)
		}
	case <-time.After(time.Second):
		t.Fatal("blocking pop never returned")
	}
}

func TestShardedSignalDoneUnblocksWaiters(t *testing.T) {
	q := NewSharded[int](2, 4)
	var wg sync.WaitGroup
	results := make([]bool, 4)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, ok := q.BlockingPop()
			results[i] = ok
		}(i)
	}
	time.Sleep(2 * time.Millisecond)
	q.SignalDone()
	wg.Wait()
	for i, ok := range results {
		if ok {
			t.Fatalf("waiter %d expected done-signal failure, got success", i)
		}
	}
}

func TestShardedNonBlockingPushEviction(t *testing.T) {
	q := NewSharded[int](1, 2)
	q.TryPush(1)
	q.TryPush(2)
	if q.Len() != 2 {
		t.Fatalf("expected len 2, got %d", q.Len())
	}
	evicted, evictedOK := q.NonBlockingPush(3)
	if !evictedOK || evicted != 1 {
		t.Fatalf("expected eviction of 1, got (%v, %v)", evicted, evictedOK)
	}
	if q.Len() != 2 {
		t.Fatalf("expected size unchanged at 2 after eviction, got %d", q.Len())
	}
}
