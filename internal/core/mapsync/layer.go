package mapsync

import (
	"fmt"
	"math"

	"github.com/penwyp/go-tracker-monitor/internal/core/color"
	"github.com/penwyp/go-tracker-monitor/internal/core/model"
	"github.com/peterstace/simplefeatures/geom"
	"github.com/wroge/wgs84"
)

// Marker styles. The latest point of a track is emphasized.
const (
	MarkerRadius        = 4.0
	MarkerOpacity       = 0.6
	LatestMarkerRadius  = 7.0
	LatestMarkerOpacity = 1.0
	PathOpacity         = 0.8
)

// LayerKind distinguishes overlays
type LayerKind string

const (
	KindPath   LayerKind = "path"
	KindMarker LayerKind = "marker"
)

// Layer is one overlay on the drawing surface. Coordinates are lng/lat.
type Layer struct {
	ID       string
	Serial   string
	Kind     LayerKind
	Color    color.HSL
	Path     geom.LineString // KindPath only
	Position geom.Point      // KindMarker only
	Point    model.TrackPoint
	Radius   float64
	Opacity  float64
	Latest   bool
}

func pathLayerID(serial string) string {
	return serial + "/path"
}

func markerLayerID(serial string, i int) string {
	return fmt.Sprintf("%s/marker/%d", serial, i)
}

// TrackPath joins points in array order into a lng/lat line. A track needs
// at least two points.
func TrackPath(points []model.TrackPoint) (geom.LineString, bool) {
	if len(points) < 2 {
		return geom.LineString{}, false
	}
	coords := make([]float64, 0, 2*len(points))
	for _, p := range points {
		coords = append(coords, p.Lng, p.Lat)
	}
	return geom.NewLineString(geom.NewSequence(coords, geom.DimXY)), true
}

// buildLayers creates the overlays for one tracker: a path when there are at
// least two points and a marker per point
func buildLayers(t model.Tracker, points []model.TrackPoint) []Layer {
	if len(points) == 0 {
		return nil
	}
	hsl := color.FromKey(t.ColorKey)
	layers := make([]Layer, 0, len(points)+1)

	if path, ok := TrackPath(points); ok {
		layers = append(layers, Layer{
			ID:      pathLayerID(t.Serial),
			Serial:  t.Serial,
			Kind:    KindPath,
			Color:   hsl,
			Path:    path,
			Opacity: PathOpacity,
		})
	}

	last := len(points) - 1
	for i, p := range points {
		layer := Layer{
			ID:       markerLayerID(t.Serial, i),
			Serial:   t.Serial,
			Kind:     KindMarker,
			Color:    hsl,
			Position: geom.NewPoint(geom.Coordinates{XY: geom.XY{X: p.Lng, Y: p.Lat}, Type: geom.DimXY}),
			Point:    p,
			Radius:   MarkerRadius,
			Opacity:  MarkerOpacity,
		}
		if i == last {
			layer.Radius = LatestMarkerRadius
			layer.Opacity = LatestMarkerOpacity
			layer.Latest = true
		}
		layers = append(layers, layer)
	}
	return layers
}

// Bounds is a lng/lat bounding box
type Bounds struct {
	MinLng, MinLat float64
	MaxLng, MaxLat float64
}

// emptyBounds is the identity for Extend
func emptyBounds() Bounds {
	return Bounds{
		MinLng: math.Inf(1), MinLat: math.Inf(1),
		MaxLng: math.Inf(-1), MaxLat: math.Inf(-1),
	}
}

// IsEmpty reports whether no point was added
func (b Bounds) IsEmpty() bool {
	return b.MinLng > b.MaxLng || b.MinLat > b.MaxLat
}

// Extend grows the box to contain p
func (b Bounds) Extend(p model.TrackPoint) Bounds {
	b.MinLng = math.Min(b.MinLng, p.Lng)
	b.MinLat = math.Min(b.MinLat, p.Lat)
	b.MaxLng = math.Max(b.MaxLng, p.Lng)
	b.MaxLat = math.Max(b.MaxLat, p.Lat)
	return b
}

// Pad grows each side by frac of the box size
func (b Bounds) Pad(frac float64) Bounds {
	if b.IsEmpty() {
		return b
	}
	dLng := (b.MaxLng - b.MinLng) * frac
	dLat := (b.MaxLat - b.MinLat) * frac
	return Bounds{
		MinLng: math.Max(b.MinLng-dLng, -180),
		MinLat: math.Max(b.MinLat-dLat, -90),
		MaxLng: math.Min(b.MaxLng+dLng, 180),
		MaxLat: math.Min(b.MaxLat+dLat, 90),
	}
}

// Mercator returns the corners in Web Mercator (EPSG:3857) meters
func (b Bounds) Mercator() (minX, minY, maxX, maxY float64) {
	toMercator := wgs84.EPSG().Transform(4326, 3857)
	minX, minY, _ = toMercator(b.MinLng, clampLat(b.MinLat), 0)
	maxX, maxY, _ = toMercator(b.MaxLng, clampLat(b.MaxLat), 0)
	return minX, minY, maxX, maxY
}

// ToMercator projects one lng/lat position to EPSG:3857
func ToMercator(lng, lat float64) (x, y float64) {
	x, y, _ = wgs84.EPSG().Transform(4326, 3857)(lng, clampLat(lat), 0)
	return x, y
}

// Web Mercator is undefined at the poles
func clampLat(lat float64) float64 {
	const limit = 85.05112878
	return math.Max(-limit, math.Min(limit, lat))
}
