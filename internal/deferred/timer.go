// internal/deferred/timer.go
package deferred

import (
	"fmt"
	"sync"
	"time"
)

// TimeoutError is the rejection produced when a Timer fires before the awaited
// condition is met. Message describes what was being awaited.
type TimeoutError struct {
	Message string
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("timeout waiting for %s", e.Message)
}

// Scope is a shared registry of outstanding timers. Tearing a scope down with
// ExpireAll force-rejects every still-pending timer, so no wait outlives the
// session that created it.
type Scope struct {
	mu     sync.Mutex
	timers map[*Timer]struct{}
}

// NewScope creates an empty timer registry.
func NewScope() *Scope {
	return &Scope{timers: make(map[*Timer]struct{})}
}

// ExpireAll rejects every registered timer with the supplied error and empties
// the registry. Timers that already fired or were cleared are skipped.
func (s *Scope) ExpireAll(err error) {
	s.mu.Lock()
	pending := make([]*Timer, 0, len(s.timers))
	for t := range s.timers {
		pending = append(pending, t)
	}
	s.timers = make(map[*Timer]struct{})
	s.mu.Unlock()

	for _, t := range pending {
		t.expireWith(err)
	}
}

// Pending returns the number of timers currently registered.
func (s *Scope) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.timers)
}

func (s *Scope) register(t *Timer) {
	s.mu.Lock()
	s.timers[t] = struct{}{}
	s.mu.Unlock()
}

func (s *Scope) deregister(t *Timer) {
	s.mu.Lock()
	delete(s.timers, t)
	s.mu.Unlock()
}

// Timer is a cancelable one-shot delay. After the duration elapses it invokes
// the reject callback with a TimeoutError carrying the message, unless Clear
// was called first. The callback runs at most once.
type Timer struct {
	mu      sync.Mutex
	timer   *time.Timer
	scope   *Scope
	message string
	reject  func(error)
	settled bool
}

// NewTimer arms a timer for the given duration and registers it with the scope
// (if non-nil). reject receives the terminal error exactly once.
func NewTimer(d time.Duration, message string, scope *Scope, reject func(error)) *Timer {
	t := &Timer{
		scope:   scope,
		message: message,
		reject:  reject,
	}
	if scope != nil {
		scope.register(t)
	}
	t.timer = time.AfterFunc(d, func() {
		t.expireWith(&TimeoutError{Message: message})
	})
	return t
}

// Clear stops the timer and removes it from its scope. Idempotent; a cleared
// timer never invokes its reject callback.
func (t *Timer) Clear() {
	t.mu.Lock()
	if t.settled {
		t.mu.Unlock()
		return
	}
	t.settled = true
	if t.timer != nil {
		t.timer.Stop()
	}
	t.mu.Unlock()

	if t.scope != nil {
		t.scope.deregister(t)
	}
}

func (t *Timer) expireWith(err error) {
	t.mu.Lock()
	if t.settled {
		t.mu.Unlock()
		return
	}
	t.settled = true
	if t.timer != nil {
		t.timer.Stop()
	}
	reject := t.reject
	t.mu.Unlock()

	if t.scope != nil {
		t.scope.deregister(t)
	}
	if reject != nil {
		reject(err)
	}
}
