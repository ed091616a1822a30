package display

import (
	"math"
	"sort"
	"strings"
	"sync"

	"github.com/penwyp/go-tracker-monitor/internal/core/color"
	"github.com/penwyp/go-tracker-monitor/internal/core/mapsync"
	"github.com/penwyp/go-tracker-monitor/internal/util"
)

// Glyphs used on the map
const (
	GlyphPath   = '·'
	GlyphMarker = '•'
	GlyphLatest = '●'
)

// minSpanMeters keeps a single point from collapsing the viewport
const minSpanMeters = 500.0

// Cell is one character of the rasterized map
type Cell struct {
	Ch    rune
	Color color.RGB
	Set   bool
}

type viewport struct {
	minX, minY, maxX, maxY float64
}

// Canvas is a map surface that keeps layers in memory and rasterizes them
// into terminal cells using a Web Mercator projection
type Canvas struct {
	mu     sync.RWMutex
	layers map[string]mapsync.Layer
	view   *viewport
}

// NewCanvas creates an empty canvas
func NewCanvas() *Canvas {
	return &Canvas{layers: make(map[string]mapsync.Layer)}
}

// AddLayer stores layer, replacing a layer with the same id
func (c *Canvas) AddLayer(layer mapsync.Layer) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.layers[layer.ID] = layer
}

// RemoveLayer drops the layer with id
func (c *Canvas) RemoveLayer(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.layers, id)
}

// FitBounds sets the visible area
func (c *Canvas) FitBounds(bounds mapsync.Bounds) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.view = viewportFor(bounds)
}

// Fit sets the visible area to the current layers plus padding
func (c *Canvas) Fit(padding float64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	b, ok := c.boundsLocked()
	if !ok {
		return false
	}
	c.view = viewportFor(b.Pad(padding))
	return true
}

// LayerCount returns the number of layers held
func (c *Canvas) LayerCount() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.layers)
}

// Layers returns the held layers ordered by id
func (c *Canvas) Layers() []mapsync.Layer {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.sortedLocked()
}

func (c *Canvas) sortedLocked() []mapsync.Layer {
	out := make([]mapsync.Layer, 0, len(c.layers))
	for _, l := range c.layers {
		out = append(out, l)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (c *Canvas) boundsLocked() (mapsync.Bounds, bool) {
	b := mapsync.Bounds{MinLng: math.Inf(1), MinLat: math.Inf(1), MaxLng: math.Inf(-1), MaxLat: math.Inf(-1)}
	for _, l := range c.layers {
		if l.Kind == mapsync.KindMarker {
			b = b.Extend(l.Point)
		}
	}
	return b, !b.IsEmpty()
}

func viewportFor(b mapsync.Bounds) *viewport {
	minX, minY, maxX, maxY := b.Mercator()
	v := &viewport{minX: minX, minY: minY, maxX: maxX, maxY: maxY}
	if v.maxX-v.minX < minSpanMeters {
		mid := (v.minX + v.maxX) / 2
		v.minX, v.maxX = mid-minSpanMeters/2, mid+minSpanMeters/2
	}
	if v.maxY-v.minY < minSpanMeters {
		mid := (v.minY + v.maxY) / 2
		v.minY, v.maxY = mid-minSpanMeters/2, mid+minSpanMeters/2
	}
	return v
}

// project maps a lng/lat position to a cell, reporting false when outside
func (v *viewport) project(lng, lat float64, width, height int) (col, row int, ok bool) {
	x, y := mapsync.ToMercator(lng, lat)
	fx := (x - v.minX) / (v.maxX - v.minX)
	fy := (v.maxY - y) / (v.maxY - v.minY)
	if fx < 0 || fx > 1 || fy < 0 || fy > 1 {
		return 0, 0, false
	}
	return int(math.Round(fx * float64(width-1))), int(math.Round(fy * float64(height-1))), true
}

// Rasterize draws paths first and markers on top. Without a fitted view
// the current layers define the visible area.
func (c *Canvas) Rasterize(width, height int) [][]Cell {
	grid := make([][]Cell, height)
	for i := range grid {
		grid[i] = make([]Cell, width)
	}
	if width <= 0 || height <= 0 {
		return grid
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	view := c.view
	if view == nil {
		b, ok := c.boundsLocked()
		if !ok {
			return grid
		}
		view = viewportFor(b.Pad(mapsync.DefaultFitPadding))
	}

	layers := c.sortedLocked()
	for _, l := range layers {
		if l.Kind != mapsync.KindPath {
			continue
		}
		rgb := l.Color.RGB()
		seq := l.Path.Coordinates()
		for i := 1; i < seq.Length(); i++ {
			a, b := seq.GetXY(i-1), seq.GetXY(i)
			c0, r0, ok0 := view.project(a.X, a.Y, width, height)
			c1, r1, ok1 := view.project(b.X, b.Y, width, height)
			if !ok0 || !ok1 {
				continue
			}
			drawLine(grid, c0, r0, c1, r1, Cell{Ch: GlyphPath, Color: rgb, Set: true})
		}
	}

	// older markers first so the latest position stays on top
	for _, latest := range []bool{false, true} {
		for _, l := range layers {
			if l.Kind != mapsync.KindMarker || l.Latest != latest {
				continue
			}
			col, row, ok := view.project(l.Point.Lng, l.Point.Lat, width, height)
			if !ok {
				continue
			}
			glyph := GlyphMarker
			if l.Latest {
				glyph = GlyphLatest
			}
			grid[row][col] = Cell{Ch: glyph, Color: l.Color.RGB(), Set: true}
		}
	}
	return grid
}

// drawLine plots the cells between two points (Bresenham)
func drawLine(grid [][]Cell, c0, r0, c1, r1 int, cell Cell) {
	dc := abs(c1 - c0)
	dr := -abs(r1 - r0)
	sc, sr := 1, 1
	if c0 > c1 {
		sc = -1
	}
	if r0 > r1 {
		sr = -1
	}
	e := dc + dr
	for {
		grid[r0][c0] = cell
		if c0 == c1 && r0 == r1 {
			return
		}
		e2 := 2 * e
		if e2 >= dr {
			e += dr
			c0 += sc
		}
		if e2 <= dc {
			e += dc
			r0 += sr
		}
	}
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

// RenderLines rasterizes the canvas into width-wide lines with truecolor
// escapes. Empty cells are blank.
func (c *Canvas) RenderLines(width, height int) []string {
	grid := c.Rasterize(width, height)
	lines := make([]string, len(grid))
	for i, row := range grid {
		var b strings.Builder
		colored := false
		for _, cell := range row {
			if !cell.Set {
				if colored {
					b.WriteString(util.ColorReset)
					colored = false
				}
				b.WriteRune(' ')
				continue
			}
			b.WriteString(util.TrueColor(cell.Color.R, cell.Color.G, cell.Color.B))
			colored = true
			b.WriteRune(cell.Ch)
		}
		if colored {
			b.WriteString(util.ColorReset)
		}
		lines[i] = b.String()
	}
	return lines
}
