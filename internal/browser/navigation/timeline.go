// internal/browser/navigation/timeline.go
package navigation

import (
	"sync"
	"time"

	"github.com/chromedp/cdproto/network"
	"go.uber.org/zap"
)

// StatusChangeEvent notifies listeners that a milestone was observed on the
// timeline. The same status may be announced more than once; listeners must be
// idempotent under duplicate notifications.
type StatusChangeEvent struct {
	Entry  *Entry
	Status LoadStatus
	URL    string
}

// PaintStability answers whether the page has settled visually. When not yet
// stable, TimeUntilReady estimates the remaining quiet time (valid only if
// HasEstimate is set).
type PaintStability struct {
	IsStable       bool
	TimeUntilReady time.Duration
	HasEstimate    bool
}

// Timeline is the ordered, append-only history of navigation entries for one
// frame. It owns all entry mutation; the observer and other consumers only
// read it and react to its change notifications.
type Timeline struct {
	mu        sync.Mutex
	logger    *zap.Logger
	history   []*Entry
	listeners map[int]func(StatusChangeEvent)
	nextSubID int

	// paintQuiet is the minimum quiet period after the last paint/content
	// signal before the page counts as painting-stable.
	paintQuiet time.Duration
	now        func() time.Time
}

// NewTimeline creates an empty timeline. paintQuiet controls painting-stable
// settlement; zero selects the 500ms default.
func NewTimeline(logger *zap.Logger, paintQuiet time.Duration) *Timeline {
	if logger == nil {
		logger = zap.NewNop()
	}
	if paintQuiet <= 0 {
		paintQuiet = 500 * time.Millisecond
	}
	return &Timeline{
		logger:     logger.Named("timeline"),
		listeners:  make(map[int]func(StatusChangeEvent)),
		paintQuiet: paintQuiet,
		now:        time.Now,
	}
}

// OnStatusChange registers a listener invoked synchronously, in emission
// order, for every status observation. The returned function unsubscribes.
func (t *Timeline) OnStatusChange(fn func(StatusChangeEvent)) func() {
	t.mu.Lock()
	id := t.nextSubID
	t.nextSubID++
	t.listeners[id] = fn
	t.mu.Unlock()
	return func() {
		t.mu.Lock()
		delete(t.listeners, id)
		t.mu.Unlock()
	}
}

// Top returns the current navigation entry, or nil before the first navigation.
func (t *Timeline) Top() *Entry {
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(t.history) == 0 {
		return nil
	}
	return t.history[len(t.history)-1]
}

// History returns the navigation entries in chronological order.
func (t *Timeline) History() []*Entry {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]*Entry, len(t.history))
	copy(out, t.history)
	return out
}

// CurrentURL is the final URL of the top entry, for diagnostic logging.
func (t *Timeline) CurrentURL() string {
	if top := t.Top(); top != nil {
		return top.FinalURL()
	}
	return ""
}

// BeginNavigation appends a new entry, making it the top, and announces it.
func (t *Timeline) BeginNavigation(url string, reason Reason, commandID int64) *Entry {
	now := t.now()
	entry := newEntry(url, reason, commandID, now)
	entry.recordStatus(NavigationRequested, now)

	t.mu.Lock()
	t.history = append(t.history, entry)
	t.mu.Unlock()

	t.logger.Debug("Navigation began",
		zap.String("url", url),
		zap.String("reason", string(reason)),
		zap.Int64("command_id", commandID))
	t.emit(StatusChangeEvent{Entry: entry, Status: NavigationRequested, URL: url})
	return entry
}

// SetStatus records a milestone on the top entry as of now.
func (t *Timeline) SetStatus(s LoadStatus) {
	t.SetStatusAt(s, t.now())
}

// SetStatusAt records a milestone on the top entry with an explicit timestamp.
// The notification fires even when the milestone was already present.
func (t *Timeline) SetStatusAt(s LoadStatus, at time.Time) {
	top := t.Top()
	if top == nil {
		return
	}
	if top.recordStatus(s, at) {
		t.logger.Debug("Load status changed",
			zap.String("status", string(s)),
			zap.String("url", top.FinalURL()))
	}
	t.emit(StatusChangeEvent{Entry: top, Status: s, URL: top.FinalURL()})
}

// Notify re-announces the top entry's most recent status without recording
// anything new. Listeners must tolerate these duplicate notifications.
func (t *Timeline) Notify() {
	top := t.Top()
	if top == nil {
		return
	}
	changes := top.StatusChanges()
	if len(changes) == 0 {
		return
	}
	last := changes[len(changes)-1]
	t.emit(StatusChangeEvent{Entry: top, Status: last.Status, URL: top.FinalURL()})
}

// UpdateFinalURL replaces the top entry's settled URL, as redirects resolve.
func (t *Timeline) UpdateFinalURL(url string) {
	if top := t.Top(); top != nil {
		top.setFinalURL(url)
	}
}

// NotePaint records a paint/content signal that resets the painting-stable
// quiet period without being a pipeline milestone of its own.
func (t *Timeline) NotePaint() {
	if top := t.Top(); top != nil {
		top.notePaint(t.now())
	}
}

// ResolveResourceID settles the top entry's primary network resource.
func (t *Timeline) ResolveResourceID(id network.RequestID) {
	if top := t.Top(); top != nil {
		top.resourceID.Resolve(id)
	}
}

// FailNavigation records a terminal error on the top entry and releases any
// resource-id waiters with it.
func (t *Timeline) FailNavigation(err error) {
	top := t.Top()
	if top == nil {
		return
	}
	t.logger.Debug("Navigation failed", zap.String("url", top.FinalURL()), zap.Error(err))
	top.fail(err)
}

// HasLoadStatus reports whether the top entry has reached at least the given
// milestone. PaintingStable is answered by the stability query.
func (t *Timeline) HasLoadStatus(s LoadStatus) bool {
	if s == PaintingStable {
		return t.PaintStableStatus().IsStable
	}
	top := t.Top()
	if top == nil {
		return false
	}
	_, ok := statusSatisfied(top.StatusChanges(), s)
	return ok
}

// PaintStableStatus reports whether the top entry has settled: the page load
// finished and the quiet period has elapsed since the last paint signal. When
// the load finished but the quiet period is still running, the remaining wait
// is returned as an estimate.
func (t *Timeline) PaintStableStatus() PaintStability {
	top := t.Top()
	if top == nil {
		return PaintStability{}
	}
	if top.HasStatus(PaintingStable) {
		return PaintStability{IsStable: true}
	}
	if !top.HasStatus(AllContentLoaded) {
		return PaintStability{}
	}
	anchor := top.lastPaintTime()
	if anchor.IsZero() {
		return PaintStability{}
	}
	remaining := t.paintQuiet - t.now().Sub(anchor)
	if remaining <= 0 {
		return PaintStability{IsStable: true}
	}
	return PaintStability{TimeUntilReady: remaining, HasEstimate: true}
}

// emit delivers the event to all listeners outside the timeline lock, so a
// listener may read the timeline back without deadlocking. Events arrive in
// order because the browser event pump feeds the timeline from one goroutine.
func (t *Timeline) emit(ev StatusChangeEvent) {
	t.mu.Lock()
	fns := make([]func(StatusChangeEvent), 0, len(t.listeners))
	for _, fn := range t.listeners {
		fns = append(fns, fn)
	}
	t.mu.Unlock()
	for _, fn := range fns {
		fn(ev)
	}
}
