// internal/deferred/deferred.go
package deferred

import (
	"context"
	"sync"
)

// Deferred is a one-shot completion handle. It starts pending and transitions
// exactly once to either a resolved value or a rejection error; every later
// Resolve or Reject is a no-op. Waiters observe settlement through Done or Await.
type Deferred[T any] struct {
	mu      sync.Mutex
	done    chan struct{}
	settled bool
	val     T
	err     error
}

// New creates a pending Deferred.
func New[T any]() *Deferred[T] {
	return &Deferred[T]{done: make(chan struct{})}
}

// Resolved creates a Deferred that is already settled with the given value.
func Resolved[T any](v T) *Deferred[T] {
	d := New[T]()
	d.Resolve(v)
	return d
}

// Resolve settles the Deferred with a value. Returns false if it was already settled.
func (d *Deferred[T]) Resolve(v T) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.settled {
		return false
	}
	d.settled = true
	d.val = v
	close(d.done)
	return true
}

// Reject settles the Deferred with an error. Returns false if it was already settled.
func (d *Deferred[T]) Reject(err error) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.settled {
		return false
	}
	d.settled = true
	d.err = err
	close(d.done)
	return true
}

// Done is closed once the Deferred has settled.
func (d *Deferred[T]) Done() <-chan struct{} {
	return d.done
}

// IsSettled reports whether Resolve or Reject has already won.
func (d *Deferred[T]) IsSettled() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.settled
}

// Result returns the settled value or error. Only valid after Done is closed.
func (d *Deferred[T]) Result() (T, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.val, d.err
}

// Await blocks until the Deferred settles or the context is canceled.
func (d *Deferred[T]) Await(ctx context.Context) (T, error) {
	select {
	case <-d.done:
		return d.Result()
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}
