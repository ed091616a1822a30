// Package registry holds the authoritative in-memory set of trackers.
//
// A Registry merges the stats reported by each fetch cycle with the metadata
// persisted in a store.State (display names, color keys, hidden set) and
// owns the transient visibility, selection and isolation state of a view.
// It is passed explicitly to the fetch cycle and the map sync engine and is
// safe for concurrent use.
package registry

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/penwyp/go-tracker-monitor/internal/core/color"
	"github.com/penwyp/go-tracker-monitor/internal/core/model"
	"github.com/penwyp/go-tracker-monitor/internal/data/store"
	"github.com/penwyp/go-tracker-monitor/internal/util"
)

// ErrUnknownTracker is returned for serials that have never been discovered
var ErrUnknownTracker = errors.New("unknown tracker")

// ValidationError rejects a command argument; no state is changed
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// RenamePolicy decides whether a rename also assigns a new color key
type RenamePolicy string

const (
	RenameKeepColor       RenamePolicy = "keep"
	RenameRegenerateColor RenamePolicy = "regenerate"
)

// ParseRenamePolicy accepts "keep" and "regenerate"; empty means keep
func ParseRenamePolicy(s string) (RenamePolicy, error) {
	switch RenamePolicy(strings.ToLower(strings.TrimSpace(s))) {
	case "", RenameKeepColor:
		return RenameKeepColor, nil
	case RenameRegenerateColor:
		return RenameRegenerateColor, nil
	default:
		return "", fmt.Errorf("unknown rename policy %q (keep, regenerate)", s)
	}
}

// Options configures a Registry
type Options struct {
	RenamePolicy RenamePolicy
	// NewColorKey generates color keys, color.NewKey when nil
	NewColorKey func() string
}

// Registry is the tracker store shared by the fetch cycle and the view
type Registry struct {
	mu     sync.RWMutex
	state  *store.State
	policy RenamePolicy
	newKey func() string

	known    map[string]*model.Tracker
	current  []string // serials of the latest refresh, in input order
	names    map[string]string
	colors   map[string]string
	hidden   map[string]bool // as persisted, may name undiscovered serials
	visible  map[string]bool
	selected map[string]bool
	isolated map[string]bool
}

// New loads persisted metadata from state
func New(state *store.State, opts Options) *Registry {
	if opts.RenamePolicy == "" {
		opts.RenamePolicy = RenameKeepColor
	}
	if opts.NewColorKey == nil {
		opts.NewColorKey = color.NewKey
	}

	return &Registry{
		state:    state,
		policy:   opts.RenamePolicy,
		newKey:   opts.NewColorKey,
		known:    make(map[string]*model.Tracker),
		names:    state.Names(),
		colors:   state.ColorKeys(),
		hidden:   state.HiddenSerials(),
		visible:  make(map[string]bool),
		selected: make(map[string]bool),
		isolated: make(map[string]bool),
	}
}

// Policy returns the rename color policy
func (r *Registry) Policy() RenamePolicy {
	return r.policy
}

// Refresh merges a discovery result into the registry and returns the
// trackers in input order. Color keys generated for new serials are
// persisted before Refresh returns.
func (r *Registry) Refresh(stats model.StatsSet) []model.Tracker {
	r.mu.Lock()
	defer r.mu.Unlock()

	generated := 0
	seen := make(map[string]bool, len(stats))
	current := make([]string, 0, len(stats))
	out := make([]model.Tracker, 0, len(stats))

	for _, st := range stats {
		if st.Serial == "" || seen[st.Serial] {
			continue
		}
		seen[st.Serial] = true

		t, ok := r.known[st.Serial]
		if !ok {
			t = &model.Tracker{Serial: st.Serial}
			r.known[st.Serial] = t
			r.visible[st.Serial] = true
		}
		if _, has := r.colors[st.Serial]; !has {
			r.colors[st.Serial] = r.newKey()
			generated++
		}

		t.PointCount = st.Points
		t.FirstSeen = st.First
		t.LastSeen = st.Last
		r.resolveLocked(t)

		current = append(current, st.Serial)
		out = append(out, *t)
	}
	r.current = current

	if generated > 0 {
		if err := r.state.SaveColorKeys(r.colors); err != nil {
			util.LogError("Failed to persist color keys", util.F("error", err.Error()))
		} else {
			util.LogDebug("Assigned color keys", util.F("count", generated))
		}
	}
	return out
}

// resolveLocked recomputes the derived fields of t
func (r *Registry) resolveLocked(t *model.Tracker) {
	t.Name = t.Serial
	if name, ok := r.names[t.Serial]; ok && strings.TrimSpace(name) != "" {
		t.Name = name
	}
	t.ColorKey = r.colors[t.Serial]
	t.Color = color.FromKey(t.ColorKey).String()
}

// Rename sets the display name of serial. An empty name is rejected
// without touching persisted state.
func (r *Registry) Rename(serial, newName string) (model.Tracker, error) {
	name := strings.TrimSpace(newName)
	if name == "" {
		return model.Tracker{}, &ValidationError{Field: "name", Reason: "must not be empty"}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	t, ok := r.known[serial]
	if !ok {
		return model.Tracker{}, fmt.Errorf("rename %s: %w", serial, ErrUnknownTracker)
	}

	names := copyStrings(r.names)
	names[serial] = name
	if err := r.state.SaveNames(names); err != nil {
		return model.Tracker{}, err
	}
	r.names = names

	if r.policy == RenameRegenerateColor {
		colors := copyStrings(r.colors)
		colors[serial] = r.newKey()
		if err := r.state.SaveColorKeys(colors); err != nil {
			util.LogError("Failed to persist regenerated color key",
				util.F("serial", serial), util.F("error", err.Error()))
		} else {
			r.colors = colors
		}
	}

	r.resolveLocked(t)
	util.LogInfo("Tracker renamed", util.F("serial", serial), util.F("name", name))
	return *t, nil
}

// Hide soft-deletes serial from listing and rendering and persists the
// hidden set
func (r *Registry) Hide(serial string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.known[serial]; !ok {
		return fmt.Errorf("hide %s: %w", serial, ErrUnknownTracker)
	}
	if r.hidden[serial] {
		return nil
	}

	hidden := copyBools(r.hidden)
	hidden[serial] = true
	if err := r.state.SaveHiddenSerials(hidden); err != nil {
		return err
	}
	r.hidden = hidden
	delete(r.selected, serial)

	util.LogInfo("Tracker hidden", util.F("serial", serial))
	return nil
}

// RestoreAll clears the hidden set
func (r *Registry) RestoreAll() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.state.SaveHiddenSerials(map[string]bool{}); err != nil {
		return err
	}
	restored := len(r.hidden)
	r.hidden = make(map[string]bool)

	util.LogInfo("Hidden trackers restored", util.F("count", restored))
	return nil
}

// Reload re-reads persisted metadata, used when another process changed it
func (r *Registry) Reload() {
	names := r.state.Names()
	colors := r.state.ColorKeys()
	hidden := r.state.HiddenSerials()

	r.mu.Lock()
	defer r.mu.Unlock()

	missing := false
	for serial := range r.known {
		if _, ok := colors[serial]; !ok {
			colors[serial] = r.colors[serial]
			missing = true
		}
	}
	r.names = names
	r.colors = colors
	r.hidden = hidden
	for _, t := range r.known {
		r.resolveLocked(t)
	}

	if missing {
		if err := r.state.SaveColorKeys(colors); err != nil {
			util.LogError("Failed to persist color keys", util.F("error", err.Error()))
		}
	}
}

func (r *Registry) lookupLocked(serial string) error {
	if _, ok := r.known[serial]; !ok {
		return fmt.Errorf("%s: %w", serial, ErrUnknownTracker)
	}
	return nil
}

// SetVisible sets the visibility flag of serial
func (r *Registry) SetVisible(serial string, visible bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.lookupLocked(serial); err != nil {
		return err
	}
	r.visible[serial] = visible
	return nil
}

// ToggleVisible flips the visibility flag of serial and returns the new value
func (r *Registry) ToggleVisible(serial string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.lookupLocked(serial); err != nil {
		return false, err
	}
	r.visible[serial] = !r.visible[serial]
	return r.visible[serial], nil
}

// ToggleSelected flips whether serial is part of the pending selection
func (r *Registry) ToggleSelected(serial string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.lookupLocked(serial); err != nil {
		return false, err
	}
	if r.selected[serial] {
		delete(r.selected, serial)
		return false, nil
	}
	r.selected[serial] = true
	return true, nil
}

// ClearSelection empties the pending selection
func (r *Registry) ClearSelection() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.selected = make(map[string]bool)
}

// Selected returns the selected serials, sorted
func (r *Registry) Selected() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return sortedKeys(r.selected)
}

// Isolate replaces the isolation set with a snapshot of the selection and
// returns it. An empty selection clears isolation.
func (r *Registry) Isolate() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.isolated = copyBools(r.selected)
	isolated := sortedKeys(r.isolated)
	util.LogDebug("Isolation changed", util.F("serials", strings.Join(isolated, ",")))
	return isolated
}

// ClearIsolation ends isolation, makes every known tracker visible again and
// clears the selection
func (r *Registry) ClearIsolation() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.isolated = make(map[string]bool)
	r.selected = make(map[string]bool)
	for serial := range r.known {
		r.visible[serial] = true
	}
}

// Isolated returns the isolated serials, sorted
func (r *Registry) Isolated() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return sortedKeys(r.isolated)
}

// Filter returns a snapshot of the state deciding render eligibility.
// Hidden serials that were never discovered are left out.
func (r *Registry) Filter() model.Filter {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.filterLocked()
}

func (r *Registry) filterLocked() model.Filter {
	hidden := make(map[string]bool, len(r.hidden))
	for serial, ok := range r.hidden {
		if _, known := r.known[serial]; ok && known {
			hidden[serial] = true
		}
	}
	return model.Filter{
		Hidden:   hidden,
		Visible:  copyBools(r.visible),
		Isolated: copyBools(r.isolated),
	}
}

// Eligible reports whether serial is currently rendered
func (r *Registry) Eligible(serial string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if _, ok := r.known[serial]; !ok {
		return false
	}
	return r.filterLocked().Eligible(serial)
}

// EligibleSerials returns the eligible serials of the latest refresh in order
func (r *Registry) EligibleSerials() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	f := r.filterLocked()
	out := make([]string, 0, len(r.current))
	for _, serial := range r.current {
		if f.Eligible(serial) {
			out = append(out, serial)
		}
	}
	return out
}

// Trackers returns the trackers of the latest refresh in order
func (r *Registry) Trackers() []model.Tracker {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]model.Tracker, 0, len(r.current))
	for _, serial := range r.current {
		out = append(out, *r.known[serial])
	}
	return out
}

// Listed returns the trackers of the latest refresh that are not hidden
func (r *Registry) Listed() []model.Tracker {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]model.Tracker, 0, len(r.current))
	for _, serial := range r.current {
		if r.hidden[serial] {
			continue
		}
		out = append(out, *r.known[serial])
	}
	return out
}

// Tracker returns the tracker for serial
func (r *Registry) Tracker(serial string) (model.Tracker, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	t, ok := r.known[serial]
	if !ok {
		return model.Tracker{}, false
	}
	return *t, true
}

// Hidden returns the discovered hidden serials, sorted
func (r *Registry) Hidden() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return sortedKeys(r.filterLocked().Hidden)
}

// HasHidden reports whether any discovered tracker is hidden
func (r *Registry) HasHidden() bool {
	return len(r.Hidden()) > 0
}

// IsSelected reports whether serial is in the pending selection
func (r *Registry) IsSelected(serial string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.selected[serial]
}

// IsVisible reports the visibility flag of serial
func (r *Registry) IsVisible(serial string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.visible[serial]
}

func copyStrings(m map[string]string) map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func copyBools(m map[string]bool) map[string]bool {
	out := make(map[string]bool, len(m))
	for k, v := range m {
		if v {
			out[k] = true
		}
	}
	return out
}

func sortedKeys(m map[string]bool) []string {
	keys := make([]string, 0, len(m))
	for k, v := range m {
		if v {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys
}
