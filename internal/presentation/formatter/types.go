package formatter

import (
	"fmt"
	"io"
	"time"

	"github.com/penwyp/go-tracker-monitor/internal/core/mapsync"
	"github.com/penwyp/go-tracker-monitor/internal/core/model"
)

// TrackerRow is one tracker in a listing
type TrackerRow struct {
	Serial     string            `json:"serial"`
	Name       string            `json:"name"`
	Color      string            `json:"color"`
	ColorKey   string            `json:"colorKey"`
	Points     int               `json:"points"`
	First      *int64            `json:"first,omitempty"`
	Last       *int64            `json:"last,omitempty"`
	Hidden     bool              `json:"hidden"`
	Rendered   bool              `json:"rendered"`
	Failed     bool              `json:"historyFailed,omitempty"`
	Latest     *model.TrackPoint `json:"latest,omitempty"`
	Track      int               `json:"trackPoints"`
	Path       string            `json:"path,omitempty"` // WKT, lng/lat
}

// Report is the result of one fetch cycle as printed by the CLI
type Report struct {
	Backend     string       `json:"backend"`
	CycleID     uint64       `json:"cycleId"`
	GeneratedAt time.Time    `json:"generatedAt"`
	Trackers    []TrackerRow `json:"trackers"`
	Failed      []string     `json:"failed,omitempty"`
}

// NewTrackerRow builds a listing row from a tracker and its fetched history
func NewTrackerRow(t model.Tracker, points []model.TrackPoint, hidden, rendered, failed bool) TrackerRow {
	row := TrackerRow{
		Serial:   t.Serial,
		Name:     t.Name,
		Color:    t.Color,
		ColorKey: t.ColorKey,
		Points:   t.PointCount,
		First:    t.FirstSeen,
		Last:     t.LastSeen,
		Hidden:   hidden,
		Rendered: rendered,
		Failed:   failed,
		Track:    len(points),
	}
	if len(points) > 0 {
		latest := points[len(points)-1]
		row.Latest = &latest
	}
	if path, ok := mapsync.TrackPath(points); ok {
		row.Path = path.AsText()
	}
	return row
}

// Formatter writes a report in one output format
type Formatter interface {
	Format(w io.Writer, report Report) error
}

// Output format names
const (
	FormatTable   = "table"
	FormatJSON    = "json"
	FormatCSV     = "csv"
	FormatSummary = "summary"
)

// New returns the formatter for name
func New(name string) (Formatter, error) {
	switch name {
	case FormatTable, "":
		return NewTableFormatter(), nil
	case FormatJSON:
		return NewJSONFormatter(), nil
	case FormatCSV:
		return NewCSVFormatter(), nil
	case FormatSummary:
		return NewSummaryFormatter(), nil
	default:
		return nil, fmt.Errorf("unknown output format %q (table, json, csv, summary)", name)
	}
}
