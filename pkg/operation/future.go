package operation

import (
	"context"
	"sync"
)

// Future is a completion handle for a queued operation. It is resolved
// exactly once; later calls to Resolve are ignored.
type Future struct {
	done   chan struct{}
	once   sync.Once
	result Result
}

// NewFuture returns an unresolved future.
func NewFuture() *Future {
	return &Future{done: make(chan struct{})}
}

// Completed returns a future already resolved with r.
func Completed(r Result) *Future {
	f := NewFuture()
	f.Resolve(r)
	return f
}

// Resolve completes the future. It reports whether this call resolved it.
func (f *Future) Resolve(r Result) bool {
	resolved := false
	f.once.Do(func() {
		f.result = r
		close(f.done)
		resolved = true
	})
	return resolved
}

// Done is closed once the future is resolved.
func (f *Future) Done() <-chan struct{} {
	return f.done
}

// Wait blocks until the future resolves or ctx is done. Abandoning a wait
// does not cancel the operation.
func (f *Future) Wait(ctx context.Context) (Result, error) {
	select {
	case <-f.done:
		return f.result, nil
	case <-ctx.Done():
		return Result{}, ctx.Err()
	}
}

// Result returns the outcome without blocking.
func (f *Future) Result() (Result, bool) {
	select {
	case <-f.done:
		return f.result, true
	default:
		return Result{}, false
	}
}
