// internal/deferred/timer_test.go
package deferred

import (
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTimer(t *testing.T) {
	t.Run("FiresWithTimeoutError", func(t *testing.T) {
		scope := NewScope()
		errCh := make(chan error, 1)
		NewTimer(20*time.Millisecond, `load status "domContentLoaded"`, scope, func(err error) {
			errCh <- err
		})

		select {
		case err := <-errCh:
			var timeoutErr *TimeoutError
			require.ErrorAs(t, err, &timeoutErr)
			assert.Contains(t, timeoutErr.Error(), "domContentLoaded")
		case <-time.After(2 * time.Second):
			t.Fatal("timer never fired")
		}
		assert.Equal(t, 0, scope.Pending(), "fired timer must deregister itself")
	})

	t.Run("ClearPreventsFiring", func(t *testing.T) {
		scope := NewScope()
		var fired atomic.Int32
		timer := NewTimer(20*time.Millisecond, "never", scope, func(error) {
			fired.Add(1)
		})
		timer.Clear()
		assert.Equal(t, 0, scope.Pending())

		time.Sleep(60 * time.Millisecond)
		assert.Equal(t, int32(0), fired.Load(), "cleared timer must not invoke its callback")
	})

	t.Run("ClearIsIdempotent", func(t *testing.T) {
		timer := NewTimer(time.Hour, "idle", NewScope(), func(error) {
			t.Error("callback must never run")
		})
		timer.Clear()
		timer.Clear()
	})

	t.Run("ExpireAllRejectsPendingWithSuppliedError", func(t *testing.T) {
		scope := NewScope()
		teardown := errors.New("session closed")

		got := make(chan error, 2)
		NewTimer(time.Hour, "first", scope, func(err error) { got <- err })
		NewTimer(time.Hour, "second", scope, func(err error) { got <- err })
		cleared := NewTimer(time.Hour, "cleared", scope, func(error) {
			t.Error("cleared timer must not be expired")
		})
		cleared.Clear()

		scope.ExpireAll(teardown)
		for i := 0; i < 2; i++ {
			select {
			case err := <-got:
				assert.ErrorIs(t, err, teardown)
			case <-time.After(time.Second):
				t.Fatal("ExpireAll did not reject all pending timers")
			}
		}
		assert.Equal(t, 0, scope.Pending())
	})

	t.Run("ExpireAllAfterFireIsNoop", func(t *testing.T) {
		scope := NewScope()
		var calls atomic.Int32
		NewTimer(10*time.Millisecond, "quick", scope, func(error) {
			calls.Add(1)
		})

		assert.Eventually(t, func() bool { return calls.Load() == 1 }, time.Second, 5*time.Millisecond)
		scope.ExpireAll(errors.New("late teardown"))
		assert.Equal(t, int32(1), calls.Load(), "callback must run at most once")
	})
}
