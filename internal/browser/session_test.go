// internal/browser/session_test.go
package browser

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/page"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xkilldash9x/navsync/internal/browser/navigation"
)

// fakeExecutor answers CDP commands in-process so actions can run without a browser.
type fakeExecutor struct {
	errorText string
	err       error
}

func (f fakeExecutor) Execute(_ context.Context, _ string, _, res interface{}) error {
	if f.err != nil {
		return f.err
	}
	if r, ok := res.(*page.NavigateReturns); ok {
		r.FrameID = "frame-1"
		r.ErrorText = f.errorText
	}
	return nil
}

func TestNavigateAction(t *testing.T) {
	t.Run("CleanNavigation", func(t *testing.T) {
		ctx := cdp.WithExecutor(context.Background(), fakeExecutor{})
		assert.NoError(t, navigateAction("https://example.com").Do(ctx))
	})

	t.Run("ErrorTextBecomesNavigationError", func(t *testing.T) {
		ctx := cdp.WithExecutor(context.Background(), fakeExecutor{errorText: "net::ERR_NAME_NOT_RESOLVED"})
		err := navigateAction("https://example.com").Do(ctx)
		var navErr *navigation.NavigationError
		require.ErrorAs(t, err, &navErr)
		assert.Equal(t, "net::ERR_NAME_NOT_RESOLVED", navErr.Message)
		assert.Equal(t, "https://example.com", navErr.URL)
	})

	t.Run("TransportErrorPassesThrough", func(t *testing.T) {
		boom := errors.New("target crashed")
		ctx := cdp.WithExecutor(context.Background(), fakeExecutor{err: boom})
		assert.ErrorIs(t, navigateAction("https://example.com").Do(ctx), boom)
	})
}

func TestCombineContext(t *testing.T) {
	t.Run("PrimaryCancelPropagates", func(t *testing.T) {
		primary, cancelPrimary := context.WithCancel(context.Background())
		combined, cancel := CombineContext(primary, context.Background())
		defer cancel()

		cancelPrimary()
		select {
		case <-combined.Done():
		case <-time.After(time.Second):
			t.Fatal("combined context not canceled with its primary")
		}
	})

	t.Run("SecondaryCancelPropagates", func(t *testing.T) {
		secondary, cancelSecondary := context.WithCancel(context.Background())
		combined, cancel := CombineContext(context.Background(), secondary)
		defer cancel()

		cancelSecondary()
		select {
		case <-combined.Done():
		case <-time.After(time.Second):
			t.Fatal("combined context not canceled with its secondary")
		}
	})

	t.Run("ExplicitCancelReleasesTheWatcher", func(t *testing.T) {
		combined, cancel := CombineContext(context.Background(), context.Background())
		cancel()
		assert.ErrorIs(t, combined.Err(), context.Canceled)
	})
}
