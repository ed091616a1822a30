package model

// Filter is an immutable snapshot of the visibility state used to decide
// which trackers are drawn
type Filter struct {
	Hidden   map[string]bool
	Visible  map[string]bool
	Isolated map[string]bool
}

// Eligible reports whether serial should be rendered: not hidden, visible,
// and inside the isolation set when one is active.
func (f Filter) Eligible(serial string) bool {
	if f.Hidden[serial] || !f.Visible[serial] {
		return false
	}
	if len(f.Isolated) > 0 && !f.Isolated[serial] {
		return false
	}
	return true
}

// Isolating reports whether an isolation set is active
func (f Filter) Isolating() bool {
	return len(f.Isolated) > 0
}
