package pool

import (
	"bytes"
	"runtime"
	"strconv"
)

// goroutineID extracts the calling goroutine's runtime id by parsing the
// "goroutine NNN [running]:" header that runtime.Stack always emits first.
//
// This is the closest Go analogue to the C++ source's
// `thread_local uintptr_t this_thread_threadpool_id`: each worker goroutine
// registers its id once at loop entry into a map owned by its specific
// *Pool, letting Dispatch/Submit detect "is the caller a worker of THIS
// pool" without a global singleton.
func goroutineID() int64 {
	var buf [64]byte
	n := runtime.Stack(buf[:], false)
	b := bytes.TrimPrefix(buf[:n], []byte("goroutine "))
	if idx := bytes.IndexByte(b, ' '); idx >= 0 {
		b = b[:idx]
	}
	id, _ := strconv.ParseInt(string(b), 10, 64)
	return id
}
