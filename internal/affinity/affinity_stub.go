//go:build !linux

package affinity

// StubPinner reports pinning as unsupported.
type StubPinner struct{}

// New returns the platform pinner.
func New() Pinner {
	return StubPinner{}
}

func (StubPinner) BindToUnit(int) error { return ErrUnsupported }

// BumpPriority is a no-op off Linux.
func BumpPriority() error { return nil }
