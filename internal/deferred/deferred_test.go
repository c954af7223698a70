// internal/deferred/deferred_test.go
package deferred

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestDeferred(t *testing.T) {
	t.Run("ResolveWinsExactlyOnce", func(t *testing.T) {
		d := New[int]()
		assert.False(t, d.IsSettled())

		require.True(t, d.Resolve(42))
		assert.False(t, d.Resolve(99), "second resolve must be a no-op")
		assert.False(t, d.Reject(errors.New("too late")), "reject after resolve must be a no-op")

		v, err := d.Result()
		require.NoError(t, err)
		assert.Equal(t, 42, v)
		assert.True(t, d.IsSettled())
	})

	t.Run("RejectWinsExactlyOnce", func(t *testing.T) {
		d := New[string]()
		boom := errors.New("boom")
		require.True(t, d.Reject(boom))
		assert.False(t, d.Resolve("late"))

		_, err := d.Result()
		assert.ErrorIs(t, err, boom)
	})

	t.Run("DoneClosesOnSettlement", func(t *testing.T) {
		d := New[int]()
		select {
		case <-d.Done():
			t.Fatal("Done closed before settlement")
		default:
		}
		d.Resolve(1)
		select {
		case <-d.Done():
		case <-time.After(time.Second):
			t.Fatal("Done not closed after settlement")
		}
	})

	t.Run("AwaitReturnsValue", func(t *testing.T) {
		d := New[int]()
		go d.Resolve(7)

		v, err := d.Await(context.Background())
		require.NoError(t, err)
		assert.Equal(t, 7, v)
	})

	t.Run("AwaitHonorsContext", func(t *testing.T) {
		d := New[int]()
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err := d.Await(ctx)
		assert.ErrorIs(t, err, context.Canceled)
		assert.False(t, d.IsSettled(), "context cancellation must not settle the deferred")
	})

	t.Run("ResolvedIsSettledImmediately", func(t *testing.T) {
		d := Resolved("done")
		require.True(t, d.IsSettled())
		v, err := d.Result()
		require.NoError(t, err)
		assert.Equal(t, "done", v)
	})
}
