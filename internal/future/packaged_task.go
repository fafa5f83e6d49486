package future

// PackagedTask wraps a callable and a Promise[R]: invoking it runs the
// callable and captures its result or error into the promise. Invoking a
// Cancelled task is a no-op.
type PackagedTask[R any] struct {
	fn func() (R, error)
	p  Promise[R]
}

// NewPackagedTask constructs a PackagedTask wrapping fn.
func NewPackagedTask[R any](fn func() (R, error)) *PackagedTask[R] {
	return &PackagedTask[R]{fn: fn, p: NewPromise[R]()}
}

// Future returns this task's future.
func (t *PackagedTask[R]) Future() Future[R] {
	return Future[R]{s: t.p.s}
}

// Invoke runs the wrapped callable and completes the task's promise. A
// panic escaping fn is recovered and captured as the future's error rather
// than propagated.
func (t *PackagedTask[R]) Invoke() {
	t.p.s.mu.Lock()
	cancelled := t.p.s.status == statusCancelled
	t.p.s.mu.Unlock()
	if cancelled {
		return
	}

	var (
		v   R
		err error
	)
	func() {
		defer func() {
			if r := recover(); r != nil {
				err = panicToError(r)
			}
		}()
		v, err = t.fn()
	}()

	if err != nil {
		_ = t.p.SetError(err)
		return
	}
	_ = t.p.SetValue(v)
}
