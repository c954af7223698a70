// internal/browser/bridge.go
package browser

import (
	"context"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/xkilldash9x/navsync/internal/browser/navigation"
	"github.com/xkilldash9x/navsync/internal/commands"
)

// bridge translates raw CDP target events into timeline mutations. It is the
// only writer of the timeline; chromedp delivers events sequentially, which
// gives the timeline its ordering guarantee.
type bridge struct {
	logger   *zap.Logger
	timeline *navigation.Timeline
	recorder *commands.Recorder

	mainFrame  cdp.FrameID
	docRequest network.RequestID
}

func newBridge(logger *zap.Logger, timeline *navigation.Timeline, recorder *commands.Recorder) *bridge {
	return &bridge{
		logger:   logger.Named("bridge"),
		timeline: timeline,
		recorder: recorder,
	}
}

// listen attaches the bridge to the chromedp target behind ctx.
func (b *bridge) listen(ctx context.Context) {
	chromedp.ListenTarget(ctx, b.handle)
}

func (b *bridge) handle(ev interface{}) {
	switch ev := ev.(type) {
	case *page.EventFrameRequestedNavigation:
		if !b.isMainFrame(ev.FrameID) {
			return
		}
		b.timeline.BeginNavigation(ev.URL, mapNavigationReason(ev.Reason), b.recorder.LastID())

	case *page.EventFrameNavigated:
		if ev.Frame == nil {
			return
		}
		if ev.Frame.ParentID == "" {
			b.mainFrame = ev.Frame.ID
		}
		if b.isMainFrame(ev.Frame.ID) {
			b.timeline.UpdateFinalURL(ev.Frame.URL)
		}

	case *page.EventNavigatedWithinDocument:
		if !b.isMainFrame(ev.FrameID) {
			return
		}
		b.timeline.BeginNavigation(ev.URL, navigation.ReasonInPage, b.recorder.LastID())
		// The document never unloads on an in-page navigation; it is ready
		// and loaded the moment the entry exists.
		b.timeline.SetStatus(navigation.DomContentLoaded)
		b.timeline.SetStatus(navigation.AllContentLoaded)

	case *network.EventRequestWillBeSent:
		if ev.Type != network.ResourceTypeDocument || !b.isMainFrame(ev.FrameID) {
			return
		}
		// Page.navigate produces no frameRequestedNavigation, so a document
		// request with no open entry (the very first goto) or a non-redirect
		// document request on an entry that already owns a load (every later
		// goto) opens a new entry, anchored to the command currently in effect.
		top := b.timeline.Top()
		if top == nil || (ev.RedirectResponse == nil && startsNewLoad(top)) {
			b.timeline.BeginNavigation(ev.DocumentURL, navigation.ReasonUserInitiated, b.recorder.LastID())
		}
		if ev.RedirectResponse != nil {
			b.timeline.SetStatus(navigation.HTTPRedirected)
		}
		b.docRequest = ev.RequestID
		b.timeline.UpdateFinalURL(ev.Request.URL)
		b.timeline.ResolveResourceID(ev.RequestID)
		b.timeline.SetStatus(navigation.HTTPRequested)

	case *network.EventResponseReceived:
		if ev.RequestID != b.docRequest || ev.Type != network.ResourceTypeDocument {
			return
		}
		if ev.Response != nil {
			b.timeline.UpdateFinalURL(ev.Response.URL)
		}
		b.timeline.SetStatus(navigation.HTTPResponded)

	case *network.EventLoadingFailed:
		if ev.RequestID != b.docRequest || ev.Canceled {
			return
		}
		b.timeline.FailNavigation(&navigation.NavigationError{
			URL:     b.timeline.CurrentURL(),
			Message: ev.ErrorText,
		})

	case *page.EventLifecycleEvent:
		if !b.isMainFrame(ev.FrameID) {
			return
		}
		b.handleLifecycle(ev.Name)
	}
}

func (b *bridge) handleLifecycle(name string) {
	switch name {
	case "DOMContentLoaded":
		b.timeline.SetStatus(navigation.DomContentLoaded)
	case "load":
		b.timeline.SetStatus(navigation.AllContentLoaded)
	case "firstPaint", "firstContentfulPaint":
		b.timeline.SetStatus(navigation.ContentPaint)
	case "firstMeaningfulPaint":
		b.timeline.NotePaint()
	case "networkAlmostIdle", "networkIdle":
		// No new milestone, but the page may have settled; re-announce so
		// painting-stable waits get re-evaluated.
		b.timeline.Notify()
	}
}

// startsNewLoad reports whether the top entry already owns a document load. A
// fresh entry announced by frameRequestedNavigation has no request attached
// yet and absorbs the next document request; an entry that recorded one (or
// finished loading, like an in-page entry) does not.
func startsNewLoad(top *navigation.Entry) bool {
	return top.HasStatus(navigation.HTTPRequested) || top.HasStatus(navigation.AllContentLoaded)
}

// isMainFrame accepts events before the main frame id is known; a fresh
// target only emits for its top-level frame.
func (b *bridge) isMainFrame(id cdp.FrameID) bool {
	return b.mainFrame == "" || id == b.mainFrame
}

func mapNavigationReason(reason page.ClientNavigationReason) navigation.Reason {
	switch reason {
	case page.ClientNavigationReasonHTTPHeaderRefresh:
		return navigation.ReasonHTTPHeaderRefresh
	case page.ClientNavigationReasonMetaTagRefresh:
		return navigation.ReasonMetaTagRefresh
	case page.ClientNavigationReasonReload:
		return navigation.ReasonReload
	case page.ClientNavigationReasonScriptInitiated:
		return navigation.ReasonScriptInitiated
	default:
		return navigation.ReasonUserInitiated
	}
}
