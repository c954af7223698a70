// internal/browser/navigation/entry.go
package navigation

import (
	"sync"
	"time"

	"github.com/chromedp/cdproto/network"

	"github.com/xkilldash9x/navsync/internal/deferred"
)

// Entry is one recorded page-load episode: a navigation, reload or redirect
// with its own status timeline. Entries are created and mutated only by the
// Timeline; everything else reads them through the accessors below.
type Entry struct {
	mu sync.RWMutex

	startCommandID int64
	requestedURL   string
	finalURL       string
	reason         Reason
	startTime      time.Time

	// statusChanges is chronological and append-only; a milestone is recorded
	// at its first observation and never overwritten.
	statusChanges []StatusChange
	// lastPaint tracks the most recent paint/content signal for stability checks.
	lastPaint time.Time

	resourceID *deferred.Deferred[network.RequestID]
	navError   error
}

func newEntry(url string, reason Reason, commandID int64, at time.Time) *Entry {
	return &Entry{
		startCommandID: commandID,
		requestedURL:   url,
		finalURL:       url,
		reason:         reason,
		startTime:      at,
		resourceID:     deferred.New[network.RequestID](),
	}
}

// StartCommandID is the command in effect when this navigation began. It is
// the lower bound for "since" scoping of location triggers.
func (e *Entry) StartCommandID() int64 {
	return e.startCommandID
}

// RequestedURL is the URL the navigation was issued for.
func (e *Entry) RequestedURL() string {
	return e.requestedURL
}

// FinalURL is the last settled URL for this entry, updated as redirects resolve.
func (e *Entry) FinalURL() string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.finalURL
}

// Reason classifies why this navigation occurred.
func (e *Entry) Reason() Reason {
	return e.reason
}

// StartTime is when the navigation began.
func (e *Entry) StartTime() time.Time {
	return e.startTime
}

// StatusChanges returns the chronological milestone observations.
func (e *Entry) StatusChanges() []StatusChange {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]StatusChange, len(e.statusChanges))
	copy(out, e.statusChanges)
	return out
}

// HasStatus reports whether the milestone was observed on this entry.
func (e *Entry) HasStatus(s LoadStatus) bool {
	_, ok := e.StatusTime(s)
	return ok
}

// StatusTime returns when the milestone was first observed.
func (e *Entry) StatusTime(s LoadStatus) (time.Time, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	for _, change := range e.statusChanges {
		if change.Status == s {
			return change.At, true
		}
	}
	return time.Time{}, false
}

// ResourceID settles once the entry's primary network resource is known, or
// rejects with the navigation error if the load fails first.
func (e *Entry) ResourceID() *deferred.Deferred[network.RequestID] {
	return e.resourceID
}

// NavigationError returns the terminal error recorded for this entry, if any.
func (e *Entry) NavigationError() error {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.navError
}

// recordStatus notes the first observation of a milestone. Returns false when
// the milestone was already present.
func (e *Entry) recordStatus(s LoadStatus, at time.Time) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, change := range e.statusChanges {
		if change.Status == s {
			return false
		}
	}
	e.statusChanges = append(e.statusChanges, StatusChange{Status: s, At: at})
	if s == ContentPaint || s == AllContentLoaded {
		if at.After(e.lastPaint) {
			e.lastPaint = at
		}
	}
	return true
}

func (e *Entry) setFinalURL(url string) {
	e.mu.Lock()
	e.finalURL = url
	e.mu.Unlock()
}

func (e *Entry) notePaint(at time.Time) {
	e.mu.Lock()
	if at.After(e.lastPaint) {
		e.lastPaint = at
	}
	e.mu.Unlock()
}

func (e *Entry) lastPaintTime() time.Time {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.lastPaint
}

// fail records the terminal navigation error and rejects the resource id so
// waiters are released even though the id will never resolve.
func (e *Entry) fail(err error) {
	e.mu.Lock()
	e.navError = err
	e.mu.Unlock()
	e.resourceID.Reject(err)
}
