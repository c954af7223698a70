// internal/browser/navigation/snapshot.go
package navigation

import "time"

// EntrySnapshot is a read-only, serializable view of one navigation entry.
type EntrySnapshot struct {
	StartCommandID int64                  `json:"startCommandId"`
	RequestedURL   string                 `json:"requestedUrl"`
	FinalURL       string                 `json:"finalUrl"`
	Reason         string                 `json:"reason"`
	StartTime      time.Time              `json:"startTime"`
	StatusChanges  []StatusChangeSnapshot `json:"statusChanges"`
	ResourceID     string                 `json:"resourceId,omitempty"`
	Error          string                 `json:"error,omitempty"`
}

// StatusChangeSnapshot is one milestone observation in a snapshot.
type StatusChangeSnapshot struct {
	Status string    `json:"status"`
	At     time.Time `json:"at"`
}

// Snapshot exports the full history for diagnostics and CLI output.
func (t *Timeline) Snapshot() []EntrySnapshot {
	history := t.History()
	out := make([]EntrySnapshot, 0, len(history))
	for _, entry := range history {
		snap := EntrySnapshot{
			StartCommandID: entry.StartCommandID(),
			RequestedURL:   entry.RequestedURL(),
			FinalURL:       entry.FinalURL(),
			Reason:         string(entry.Reason()),
			StartTime:      entry.StartTime(),
		}
		for _, change := range entry.StatusChanges() {
			snap.StatusChanges = append(snap.StatusChanges, StatusChangeSnapshot{
				Status: string(change.Status),
				At:     change.At,
			})
		}
		if entry.ResourceID().IsSettled() {
			if id, err := entry.ResourceID().Result(); err == nil {
				snap.ResourceID = string(id)
			}
		}
		if err := entry.NavigationError(); err != nil {
			snap.Error = err.Error()
		}
		out = append(out, snap)
	}
	return out
}
