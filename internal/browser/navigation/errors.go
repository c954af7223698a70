// internal/browser/navigation/errors.go
package navigation

import "fmt"

// Typed errors so callers can classify wait failures with errors.As instead of
// string matching: a timeout usually means "not yet", a cancellation means the
// wait was deliberately abandoned.

// InvalidArgumentError reports an unknown load status or location trigger
// passed to a wait call. It fails synchronously, before any timer is armed.
type InvalidArgumentError struct {
	Param string
	Value string
}

func (e *InvalidArgumentError) Error() string {
	return fmt.Sprintf("invalid %s %q", e.Param, e.Value)
}

// UnsupportedOptionError reports a wait option that the engine does not
// implement for the requested wait kind.
type UnsupportedOptionError struct {
	Option string
	Detail string
}

func (e *UnsupportedOptionError) Error() string {
	return fmt.Sprintf("unsupported option %s: %s", e.Option, e.Detail)
}

// CanceledError rejects an outstanding wait when it is explicitly canceled or
// superseded by a newer wait. Awaiting describes the condition that was being
// waited on; Origin records the call site that triggered the cancellation.
type CanceledError struct {
	Reason   string
	Awaiting string
	Origin   string
}

func (e *CanceledError) Error() string {
	msg := fmt.Sprintf("wait canceled: %s", e.Reason)
	if e.Awaiting != "" {
		msg += fmt.Sprintf(" (awaiting %s)", e.Awaiting)
	}
	return msg
}

// NavigationError is the terminal failure recorded on a navigation entry, for
// example when the document request fails at the network layer.
type NavigationError struct {
	URL     string
	Message string
	Err     error
}

func (e *NavigationError) Error() string {
	return fmt.Sprintf("navigation to %s failed: %s", e.URL, e.Message)
}

// Unwrap exposes the underlying error for errors.Is/As.
func (e *NavigationError) Unwrap() error {
	return e.Err
}
