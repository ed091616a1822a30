package mapsync

import (
	"sort"
	"sync"

	"github.com/penwyp/go-tracker-monitor/internal/core/model"
	"github.com/penwyp/go-tracker-monitor/internal/util"
)

// DefaultFitPadding is the fraction added on each side when fitting the view
const DefaultFitPadding = 0.1

// Surface is a map widget that holds layers
type Surface interface {
	AddLayer(layer Layer)
	RemoveLayer(id string)
	FitBounds(bounds Bounds)
}

// Engine applies plans to a Surface
type Engine struct {
	mu      sync.Mutex
	surface Surface
	padding float64
	drawn   map[string][]string // serial -> layer ids on the surface
	fitted  bool
}

// NewEngine creates an engine drawing onto surface
func NewEngine(surface Surface) *Engine {
	return &Engine{
		surface: surface,
		padding: DefaultFitPadding,
		drawn:   make(map[string][]string),
	}
}

// SetFitPadding changes the padding used for the first fit
func (e *Engine) SetFitPadding(frac float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.padding = frac
}

// Previous returns the serials that currently have layers
func (e *Engine) Previous() map[string]bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.previousLocked()
}

func (e *Engine) previousLocked() map[string]bool {
	prev := make(map[string]bool, len(e.drawn))
	for serial := range e.drawn {
		prev[serial] = true
	}
	return prev
}

// Drawn returns the drawn serials, sorted
func (e *Engine) Drawn() []string {
	e.mu.Lock()
	defer e.mu.Unlock()

	serials := make([]string, 0, len(e.drawn))
	for serial := range e.drawn {
		serials = append(serials, serial)
	}
	sort.Strings(serials)
	return serials
}

// Render computes and applies a plan in one step
func (e *Engine) Render(trackers []model.Tracker, points map[string][]model.TrackPoint, filter model.Filter) Plan {
	e.mu.Lock()
	defer e.mu.Unlock()

	plan := Compute(trackers, points, filter, e.previousLocked())
	e.applyLocked(plan)
	return plan
}

// Apply removes stale layers, rebuilds the planned ones and fits the view on
// the first render that has points
func (e *Engine) Apply(plan Plan) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.applyLocked(plan)
}

func (e *Engine) applyLocked(plan Plan) {
	for _, serial := range plan.Remove {
		e.removeSerialLocked(serial)
	}

	for _, d := range plan.Draw {
		e.removeSerialLocked(d.Serial)
		ids := make([]string, 0, len(d.Layers))
		for _, layer := range d.Layers {
			e.surface.AddLayer(layer)
			ids = append(ids, layer.ID)
		}
		e.drawn[d.Serial] = ids
	}

	if !e.fitted && len(plan.Draw) > 0 && !plan.Bounds.IsEmpty() {
		e.surface.FitBounds(plan.Bounds.Pad(e.padding))
		e.fitted = true
		util.LogDebug("Fitted view to rendered points",
			util.F("min_lat", plan.Bounds.MinLat), util.F("min_lng", plan.Bounds.MinLng),
			util.F("max_lat", plan.Bounds.MaxLat), util.F("max_lng", plan.Bounds.MaxLng))
	}
}

func (e *Engine) removeSerialLocked(serial string) {
	for _, id := range e.drawn[serial] {
		e.surface.RemoveLayer(id)
	}
	delete(e.drawn, serial)
}
