package future

// Promise is the producing side of a Future[R]. The zero value is not
// usable; construct with NewPromise.
type Promise[R any] struct {
	s *state[R]
}

// NewPromise constructs an unset Promise/Future pair.
func NewPromise[R any]() Promise[R] {
	return Promise[R]{s: newState[R]()}
}

// Future returns the Future associated with this promise. Calling it twice
// on the same promise fails with ErrAlreadyRetrieved (mirroring
// std::promise::get_future's single-retrieval contract).
func (p Promise[R]) Future() (Future[R], error) {
	p.s.mu.Lock()
	if p.s.futureTaken {
		p.s.mu.Unlock()
		return Future[R]{}, ErrAlreadyRetrieved
	}
	p.s.futureTaken = true
	p.s.mu.Unlock()
	return Future[R]{s: p.s}, nil
}

// SetValue completes the promise with v. Returns ErrAlreadySet if the
// promise was already Set or Cancelled.
func (p Promise[R]) SetValue(v R) error {
	return p.s.complete(v, nil)
}

// SetError completes the promise with err. Returns ErrAlreadySet if the
// promise was already Set or Cancelled.
func (p Promise[R]) SetError(err error) error {
	var zero R
	return p.s.complete(zero, err)
}

// Cancel transitions the promise to Cancelled, if still Unset. Idempotent.
func (p Promise[R]) Cancel() { p.s.cancel() }
