// Package mapsync keeps the layers of a drawing surface in step with the
// tracker registry.
//
// Compute is pure: it derives the render set and the diff against the
// previously drawn trackers from a registry snapshot. Engine applies a Plan
// to a Surface and remembers what it drew.
package mapsync

import (
	"sort"

	"github.com/penwyp/go-tracker-monitor/internal/core/model"
)

// TrackerLayers is the full layer set of one tracker
type TrackerLayers struct {
	Serial string
	Layers []Layer
}

// Plan is the outcome of one render computation
type Plan struct {
	// RenderSet lists the eligible serials in tracker order, with or without points
	RenderSet []string
	// Remove lists previously drawn serials that must disappear, sorted
	Remove []string
	// Draw holds the rebuilt layers of every eligible tracker with points
	Draw []TrackerLayers
	// Bounds covers every point in Draw
	Bounds Bounds
}

// LayerCount returns the number of layers in Draw
func (p Plan) LayerCount() int {
	n := 0
	for _, d := range p.Draw {
		n += len(d.Layers)
	}
	return n
}

// Layers returns the layers planned for serial
func (p Plan) Layers(serial string) []Layer {
	for _, d := range p.Draw {
		if d.Serial == serial {
			return d.Layers
		}
	}
	return nil
}

// Compute builds the plan for trackers under filter. previous is the set of
// serials that currently have layers on the surface.
func Compute(trackers []model.Tracker, points map[string][]model.TrackPoint, filter model.Filter, previous map[string]bool) Plan {
	plan := Plan{Bounds: emptyBounds()}
	drawn := make(map[string]bool, len(trackers))

	for _, t := range trackers {
		if drawn[t.Serial] || !filter.Eligible(t.Serial) {
			continue
		}
		plan.RenderSet = append(plan.RenderSet, t.Serial)

		pts := points[t.Serial]
		layers := buildLayers(t, pts)
		if len(layers) == 0 {
			continue
		}
		drawn[t.Serial] = true
		plan.Draw = append(plan.Draw, TrackerLayers{Serial: t.Serial, Layers: layers})
		for _, p := range pts {
			plan.Bounds = plan.Bounds.Extend(p)
		}
	}

	for serial, ok := range previous {
		if ok && !drawn[serial] {
			plan.Remove = append(plan.Remove, serial)
		}
	}
	sort.Strings(plan.Remove)
	return plan
}
