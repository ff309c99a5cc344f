// Package affinity binds worker threads to execution units. Hard pinning is
// only available on Linux; other platforms get a stub so the harness still
// runs unpinned there.
package affinity

import "errors"

// Unassigned marks a worker that is not bound to any execution unit.
const Unassigned = -1

// ErrUnsupported is returned by BindToUnit on platforms without a pinning
// mechanism.
var ErrUnsupported = errors.New("thread pinning not supported on this platform")

// Pinner binds the calling thread to a specific execution unit. Binding is
// best-effort throughout the harness: a failure is logged by the caller and
// the thread proceeds unpinned.
type Pinner interface {
	// BindToUnit constrains the calling OS thread to the given unit. The
	// caller must have locked the goroutine to its thread first.
	BindToUnit(unit int) error
}

// Noop is a Pinner that accepts every request without binding anything.
// Used when pinning is disabled or no unit list could be resolved.
type Noop struct{}

func (Noop) BindToUnit(int) error { return nil }
