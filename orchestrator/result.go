package orchestrator

import (
	"context"
	"sync"
)

// Result is a single-resolution future holding the terminal value of a pass.
type Result struct {
	once  sync.Once
	done  chan struct{}
	value any
	err   error
}

func newResult() *Result { return &Result{done: make(chan struct{})} }

func (r *Result) resolve(value any, err error) {
	r.once.Do(func() {
		r.value = value
		r.err = err
		close(r.done)
	})
}

// Done returns a channel closed once the result is resolved.
func (r *Result) Done() <-chan struct{} { return r.done }

// Await blocks until the result resolves or ctx is done. The value is nil if
// the trace never carried output or the pass failed.
func (r *Result) Await(ctx context.Context) (any, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-r.done:
		return r.value, r.err
	}
}

// Value returns the resolved value without blocking, or ErrNotResolved.
func (r *Result) Value() (any, error) {
	select {
	case <-r.done:
		return r.value, r.err
	default:
		return nil, ErrNotResolved
	}
}
