// internal/commands/recorder.go
package commands

import "sync"

// Meta identifies one issued command. IDs increase monotonically per Recorder
// and are used by the navigation observer purely as an ordering key.
type Meta struct {
	ID   int64
	Name string
}

// Recorder assigns ids to commands as they are issued and keeps the ordered
// history of everything recorded so far.
type Recorder struct {
	mu      sync.Mutex
	nextID  int64
	history []Meta
}

// NewRecorder creates a Recorder whose first command receives id 1.
func NewRecorder() *Recorder {
	return &Recorder{}
}

// Record assigns the next id to the named command, appends it to the history
// and returns its Meta.
func (r *Recorder) Record(name string) Meta {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	meta := Meta{ID: r.nextID, Name: name}
	r.history = append(r.history, meta)
	return meta
}

// History returns a copy of every command recorded so far, in issue order.
func (r *Recorder) History() []Meta {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Meta, len(r.history))
	copy(out, r.history)
	return out
}

// LastID returns the id of the most recently recorded command, or 0 if none.
func (r *Recorder) LastID() int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.history) == 0 {
		return 0
	}
	return r.history[len(r.history)-1].ID
}
