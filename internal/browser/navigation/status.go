// internal/browser/navigation/status.go
package navigation

import "time"

// LoadStatus is one milestone in a navigation entry's load lifecycle.
type LoadStatus string

const (
	NavigationRequested LoadStatus = "navigationRequested"
	HTTPRequested       LoadStatus = "httpRequested"
	HTTPRedirected      LoadStatus = "httpRedirected"
	HTTPResponded       LoadStatus = "httpResponded"
	DomContentLoaded    LoadStatus = "domContentLoaded"
	AllContentLoaded    LoadStatus = "allContentLoaded"
	ContentPaint        LoadStatus = "contentPaint"
	PaintingStable      LoadStatus = "paintingStable"
)

// statusPipeline imposes a total order on load milestones so "has at least X
// happened" can be answered by rank comparison. AllContentLoaded keeps a fixed
// rank between DomContentLoaded and ContentPaint: the window load event can
// arrive out of order relative to paint signals and must not skew the pipeline.
// HTTPRedirected deliberately has no rank; a redirect is never forward progress.
var statusPipeline = map[LoadStatus]int{
	NavigationRequested: 0,
	HTTPRequested:       1,
	HTTPResponded:       2,
	DomContentLoaded:    3,
	AllContentLoaded:    4,
	ContentPaint:        5,
	PaintingStable:      6,
}

// Valid reports whether s names a known load milestone, including HTTPRedirected.
func (s LoadStatus) Valid() bool {
	if s == HTTPRedirected {
		return true
	}
	_, ok := statusPipeline[s]
	return ok
}

// rank returns the pipeline rank of s. HTTPRedirected and unknown values have none.
func (s LoadStatus) rank() (int, bool) {
	r, ok := statusPipeline[s]
	return r, ok
}

// StatusChange records the first observation of a milestone.
type StatusChange struct {
	Status LoadStatus
	At     time.Time
}

// statusSatisfied scans observed status changes for any milestone whose rank is
// at least that of target, skipping HTTPRedirected. It returns the first such
// milestone in observation order.
func statusSatisfied(changes []StatusChange, target LoadStatus) (LoadStatus, bool) {
	want, ok := target.rank()
	if !ok {
		return "", false
	}
	for _, change := range changes {
		if change.Status == HTTPRedirected {
			continue
		}
		if got, ok := change.Status.rank(); ok && got >= want {
			return change.Status, true
		}
	}
	return "", false
}

// LocationTrigger describes a navigational transition, as opposed to a
// point-in-time load milestone.
type LocationTrigger string

const (
	LocationChange LocationTrigger = "change"
	LocationReload LocationTrigger = "reload"
)

// Valid reports whether t is a known location trigger.
func (t LocationTrigger) Valid() bool {
	return t == LocationChange || t == LocationReload
}

// Reason classifies why a navigation entry came to exist.
type Reason string

const (
	ReasonUserInitiated     Reason = "userInitiated"
	ReasonInPage            Reason = "inPage"
	ReasonHTTPHeaderRefresh Reason = "httpHeaderRefresh"
	ReasonMetaTagRefresh    Reason = "metaTagRefresh"
	ReasonReload            Reason = "reload"
	ReasonRedirect          Reason = "redirect"
	ReasonScriptInitiated   Reason = "scriptInitiated"
)

// isReload reports whether the reason classifies the navigation as a reload,
// including server and meta-tag driven refreshes.
func (r Reason) isReload() bool {
	return r == ReasonReload || r == ReasonHTTPHeaderRefresh || r == ReasonMetaTagRefresh
}
