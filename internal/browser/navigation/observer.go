// internal/browser/navigation/observer.go
package navigation

import (
	"fmt"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/cdproto/network"
	"go.uber.org/zap"

	"github.com/xkilldash9x/navsync/internal/commands"
	"github.com/xkilldash9x/navsync/internal/deferred"
)

// DefaultWaitTimeout bounds a wait when the caller does not override it.
const DefaultWaitTimeout = 60 * time.Second

// WaitOptions tune a single wait call.
type WaitOptions struct {
	// Timeout caps the wait; zero selects the observer default.
	Timeout time.Duration
	// SinceCommandID scopes a location wait to navigations that started at or
	// after the given command. Nil selects the implicit cursor maintained by
	// WillRunCommand. Not supported for load-status waits.
	SinceCommandID *int64
}

// Resolution carries what satisfied a wait: the milestone for load waits, the
// matching navigation entry for location waits.
type Resolution struct {
	Status LoadStatus
	Entry  *Entry
}

// pendingTrigger is the single in-flight wait condition an Observer tracks.
type pendingTrigger struct {
	isLocation     bool
	status         LoadStatus
	location       LocationTrigger
	sinceCommandID int64
	result         *deferred.Deferred[Resolution]
	timer          *deferred.Timer
	description    string
}

// Observer resolves wait-for requests against the navigation timeline. It is
// level-triggered: every timeline notification re-checks the pending trigger
// against the full current state, so duplicated or coalesced notifications
// cannot cause a stuck wait. At most one trigger is pending at a time; a new
// wait supersedes and rejects its predecessor.
type Observer struct {
	mu     sync.Mutex
	logger *zap.Logger

	timeline       *Timeline
	scope          *deferred.Scope
	defaultTimeout time.Duration

	pending    *pendingTrigger
	settlement *time.Timer

	// resourceWaits are the outstanding resource-id deferreds handed to
	// callers, tracked so CancelWaiting can reject them.
	resourceWaits []*deferred.Deferred[network.RequestID]

	// defaultSinceCommandID anchors location waits that do not specify their
	// own scope. Maintained by WillRunCommand.
	defaultSinceCommandID int64

	unsubscribe func()
}

// NewObserver creates an observer subscribed to the timeline's change
// notifications. defaultTimeout of zero selects DefaultWaitTimeout.
func NewObserver(timeline *Timeline, scope *deferred.Scope, logger *zap.Logger, defaultTimeout time.Duration) *Observer {
	if logger == nil {
		logger = zap.NewNop()
	}
	if defaultTimeout <= 0 {
		defaultTimeout = DefaultWaitTimeout
	}
	o := &Observer{
		logger:         logger.Named("observer"),
		timeline:       timeline,
		scope:          scope,
		defaultTimeout: defaultTimeout,
	}
	o.unsubscribe = timeline.OnStatusChange(o.onStatusChange)
	return o
}

// Close detaches the observer from the timeline and cancels outstanding waits.
func (o *Observer) Close() {
	if o.unsubscribe != nil {
		o.unsubscribe()
	}
	o.CancelWaiting("observer closed")
}

// WillRunCommand maintains the implicit since-command cursor from the command
// stream. It must be called with the incoming command and the full prior
// history before the command runs. Rules, applied in order:
//
//  1. A goto command always resets the anchor to itself.
//  2. A run of waitFor* commands followed by a non-waitFor command moves the
//     anchor past the settling waits to that next real action.
//  3. A waitForLocation issued directly after another waitFor* (except
//     waitForMillis) anchors to its own id, so back-to-back location waits do
//     not match stale history.
func (o *Observer) WillRunCommand(newCommand commands.Meta, priorCommands []commands.Meta) {
	o.mu.Lock()
	defer o.mu.Unlock()

	var last *commands.Meta
	for i := range priorCommands {
		cmd := &priorCommands[i]
		if cmd.Name == "goto" {
			o.defaultSinceCommandID = cmd.ID
		}
		if last != nil && strings.HasPrefix(last.Name, "waitFor") && !strings.HasPrefix(cmd.Name, "waitFor") {
			o.defaultSinceCommandID = cmd.ID
		}
		last = cmd
	}
	if newCommand.Name == "waitForLocation" && last != nil &&
		strings.HasPrefix(last.Name, "waitFor") && last.Name != "waitForMillis" {
		o.defaultSinceCommandID = newCommand.ID
	}
}

// DefaultSinceCommandID returns the current implicit location-wait anchor.
func (o *Observer) DefaultSinceCommandID() int64 {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.defaultSinceCommandID
}

// WaitForLoad registers a wait for the top entry to reach at least the given
// milestone. If the milestone has already been reached the returned handle is
// settled and no timer is armed. Scoped load waits are not supported.
func (o *Observer) WaitForLoad(status LoadStatus, opts WaitOptions) (*deferred.Deferred[Resolution], error) {
	if !status.Valid() || status == HTTPRedirected {
		return nil, &InvalidArgumentError{Param: "load status", Value: string(status)}
	}
	if opts.SinceCommandID != nil {
		return nil, &UnsupportedOptionError{
			Option: "sinceCommandId",
			Detail: "load-status waits always target the most recent navigation",
		}
	}

	o.mu.Lock()
	if status == PaintingStable {
		if o.timeline.PaintStableStatus().IsStable {
			o.mu.Unlock()
			return deferred.Resolved(Resolution{Status: PaintingStable}), nil
		}
	} else if top := o.timeline.Top(); top != nil {
		if satisfied, ok := statusSatisfied(top.StatusChanges(), status); ok {
			o.mu.Unlock()
			return deferred.Resolved(Resolution{Status: satisfied}), nil
		}
	}

	p := &pendingTrigger{
		status:      status,
		result:      deferred.New[Resolution](),
		description: fmt.Sprintf("load status %q", status),
	}
	o.registerLocked(p, opts.Timeout)
	o.mu.Unlock()

	// The top entry may have advanced between the check and the registration;
	// run the notification path once to close that window.
	o.recheck()
	return p.result, nil
}

// WaitForReady waits for the DOM to be ready on the top entry.
func (o *Observer) WaitForReady() (*deferred.Deferred[Resolution], error) {
	return o.WaitForLoad(DomContentLoaded, WaitOptions{})
}

// WaitForLocation registers a wait for a navigational transition at or after
// the scoping command id. An already-satisfying history resolves immediately
// with no timer armed.
func (o *Observer) WaitForLocation(trigger LocationTrigger, opts WaitOptions) (*deferred.Deferred[Resolution], error) {
	if !trigger.Valid() {
		return nil, &InvalidArgumentError{Param: "location trigger", Value: string(trigger)}
	}

	o.mu.Lock()
	since := o.defaultSinceCommandID
	if opts.SinceCommandID != nil {
		since = *opts.SinceCommandID
	}
	if entry, ok := o.hasLocationTrigger(trigger, since); ok {
		o.mu.Unlock()
		return deferred.Resolved(Resolution{Entry: entry}), nil
	}

	p := &pendingTrigger{
		isLocation:     true,
		location:       trigger,
		sinceCommandID: since,
		result:         deferred.New[Resolution](),
		description:    fmt.Sprintf("location %q since command %d", trigger, since),
	}
	o.registerLocked(p, opts.Timeout)
	o.mu.Unlock()
	return p.result, nil
}

// HasLocationTrigger reports whether the history already satisfies the trigger
// at or after sinceCommandID. Pure: repeated calls with identical history and
// arguments return identical results and mutate nothing.
func (o *Observer) HasLocationTrigger(trigger LocationTrigger, sinceCommandID int64) bool {
	_, ok := o.hasLocationTrigger(trigger, sinceCommandID)
	return ok
}

// hasLocationTrigger walks history in chronological order, tracking the most
// recently settled URL. An entry counts as settled once it reached
// HTTPResponded or DomContentLoaded without having been redirected.
func (o *Observer) hasLocationTrigger(trigger LocationTrigger, sinceCommandID int64) (*Entry, bool) {
	var previousLoadedURL string
	for _, entry := range o.timeline.History() {
		if entry.StartCommandID() >= sinceCommandID {
			switch trigger {
			case LocationReload:
				if entry.Reason().isReload() {
					return entry, true
				}
			case LocationChange:
				finalURL := entry.FinalURL()
				if previousLoadedURL != "" && previousLoadedURL != finalURL &&
					!isTrivialInPageAdjustment(entry.Reason(), previousLoadedURL, finalURL) {
					return entry, true
				}
			}
		}
		if (entry.HasStatus(HTTPResponded) || entry.HasStatus(DomContentLoaded)) &&
			!entry.HasStatus(HTTPRedirected) {
			previousLoadedURL = entry.FinalURL()
		}
	}
	return nil, false
}

// isTrivialInPageAdjustment filters cosmetic URL touch-ups: an in-page
// navigation whose URL only gained or lost a single trailing character, such
// as a trailing slash, is not a real location change.
func isTrivialInPageAdjustment(reason Reason, prev, cur string) bool {
	if reason != ReasonInPage {
		return false
	}
	diff := len(prev) - len(cur)
	if diff < 0 {
		diff = -diff
	}
	if diff > 1 {
		return false
	}
	return strings.HasPrefix(prev, cur) || strings.HasPrefix(cur, prev)
}

// WaitForNavigationResourceID awaits the primary network resource of the
// current top entry. A terminal navigation error on the entry is surfaced to
// the waiter even if the resource id never resolves.
func (o *Observer) WaitForNavigationResourceID() *deferred.Deferred[network.RequestID] {
	result := deferred.New[network.RequestID]()

	o.mu.Lock()
	top := o.timeline.Top()
	// Prune settled waits so the tracking list does not grow unbounded.
	kept := o.resourceWaits[:0]
	for _, w := range o.resourceWaits {
		if !w.IsSettled() {
			kept = append(kept, w)
		}
	}
	o.resourceWaits = append(kept, result)
	o.mu.Unlock()

	if top == nil {
		result.Reject(&NavigationError{Message: "no navigation in progress"})
		return result
	}

	go func() {
		select {
		case <-top.ResourceID().Done():
			if navErr := top.NavigationError(); navErr != nil {
				result.Reject(navErr)
				return
			}
			id, err := top.ResourceID().Result()
			if err != nil {
				result.Reject(err)
				return
			}
			result.Resolve(id)
		case <-result.Done():
			// Canceled from the outside; nothing left to deliver.
		}
	}()
	return result
}

// CancelWaiting clears any armed settlement timer and rejects every still
// pending wait with a CanceledError carrying the reason and the caller's
// location. Safe to call repeatedly; settled waits are unaffected.
func (o *Observer) CancelWaiting(reason string) {
	origin := ""
	if _, file, line, ok := runtime.Caller(1); ok {
		origin = fmt.Sprintf("%s:%d", file, line)
	}

	o.mu.Lock()
	o.stopSettlementLocked()
	p := o.pending
	o.pending = nil
	waits := o.resourceWaits
	o.resourceWaits = nil
	o.mu.Unlock()

	if p != nil {
		p.timer.Clear()
		o.logger.Debug("Canceling pending trigger",
			zap.String("awaiting", p.description),
			zap.String("reason", reason))
		p.result.Reject(&CanceledError{Reason: reason, Awaiting: p.description, Origin: origin})
	}
	for _, w := range waits {
		w.Reject(&CanceledError{Reason: reason, Awaiting: "navigation resource id", Origin: origin})
	}
}

// registerLocked installs p as the pending trigger, superseding and rejecting
// any predecessor before p's deadline timer is armed.
func (o *Observer) registerLocked(p *pendingTrigger, timeout time.Duration) {
	if prev := o.pending; prev != nil {
		o.pending = nil
		prev.timer.Clear()
		prev.result.Reject(&CanceledError{
			Reason:   "superseded by a newer wait",
			Awaiting: prev.description,
		})
	}
	if timeout <= 0 {
		timeout = o.defaultTimeout
	}
	p.timer = deferred.NewTimer(timeout, p.description, o.scope, func(err error) {
		o.expirePending(p, err)
	})
	o.pending = p
	o.logger.Debug("Pending trigger registered",
		zap.String("awaiting", p.description),
		zap.Duration("timeout", timeout),
		zap.String("url", o.timeline.CurrentURL()))
}

// expirePending removes p if it is still the pending trigger and rejects it.
func (o *Observer) expirePending(p *pendingTrigger, err error) {
	o.mu.Lock()
	if o.pending == p {
		o.pending = nil
		o.stopSettlementLocked()
	}
	o.mu.Unlock()
	p.result.Reject(err)
}

// recheck runs the notification path against current state.
func (o *Observer) recheck() {
	o.onStatusChange(StatusChangeEvent{})
}

// onStatusChange re-evaluates the pending trigger against the full current
// timeline state. The event payload is ignored; evaluation is level-triggered.
func (o *Observer) onStatusChange(StatusChangeEvent) {
	o.mu.Lock()
	defer o.mu.Unlock()

	p := o.pending
	if p == nil {
		return
	}

	if p.isLocation {
		if entry, ok := o.hasLocationTrigger(p.location, p.sinceCommandID); ok {
			o.resolvePendingLocked(p, Resolution{Entry: entry})
		}
		return
	}

	if p.status == PaintingStable {
		o.checkPaintStableLocked(p)
		return
	}

	top := o.timeline.Top()
	if top == nil {
		return
	}
	if satisfied, ok := statusSatisfied(top.StatusChanges(), p.status); ok {
		o.resolvePendingLocked(p, Resolution{Status: satisfied})
	}
}

// checkPaintStableLocked resolves a painting-stable wait once the page has
// settled, or arms the settlement timer for the reported remaining quiet time.
// Repeated notifications only ever keep one settlement timer in flight.
func (o *Observer) checkPaintStableLocked(p *pendingTrigger) {
	stability := o.timeline.PaintStableStatus()
	if stability.IsStable {
		o.resolvePendingLocked(p, Resolution{Status: PaintingStable})
		return
	}
	if !stability.HasEstimate {
		return
	}
	o.stopSettlementLocked()
	o.settlement = time.AfterFunc(stability.TimeUntilReady, o.settlementFired)
}

// settlementFired resolves an in-flight painting-stable wait unconditionally:
// the quiet period elapsed, which counts as settled even without a further
// explicit stability signal.
func (o *Observer) settlementFired() {
	o.mu.Lock()
	defer o.mu.Unlock()

	p := o.pending
	if p == nil || p.isLocation || p.status != PaintingStable {
		return
	}
	if top := o.timeline.Top(); top != nil {
		loadedAt, _ := top.StatusTime(AllContentLoaded)
		paintedAt, _ := top.StatusTime(ContentPaint)
		o.logger.Debug("Painting-stable settlement elapsed",
			zap.Time("all_content_loaded_at", loadedAt),
			zap.Time("content_paint_at", paintedAt),
			zap.String("url", top.FinalURL()))
	}
	o.resolvePendingLocked(p, Resolution{Status: PaintingStable})
}

// resolvePendingLocked settles p exactly once and clears all trigger state.
func (o *Observer) resolvePendingLocked(p *pendingTrigger, res Resolution) {
	if o.pending == p {
		o.pending = nil
	}
	o.stopSettlementLocked()
	p.timer.Clear()
	o.logger.Debug("Pending trigger resolved",
		zap.String("awaiting", p.description),
		zap.String("status", string(res.Status)),
		zap.String("url", o.timeline.CurrentURL()))
	p.result.Resolve(res)
}

func (o *Observer) stopSettlementLocked() {
	if o.settlement != nil {
		o.settlement.Stop()
		o.settlement = nil
	}
}
