package display

import (
	"time"

	"github.com/penwyp/go-tracker-monitor/internal/core/model"
	"github.com/penwyp/go-tracker-monitor/internal/core/telemetry"
)

// TrackerRow is one line of the tracker panel
type TrackerRow struct {
	Tracker  model.Tracker
	Visible  bool
	Selected bool
	Isolated bool
	Eligible bool
	Latest   *model.TrackPoint
}

// View is everything the terminal shows in one frame
type View struct {
	Rows          []TrackerRow
	HiddenCount   int
	Isolating     bool
	State         model.InteractionState
	CycleID       uint64
	LastUpdate    time.Time
	FailedSerials []string
	LastError     string
	Metrics       telemetry.Snapshot
	BackendURL    string
	Interval      time.Duration
	Now           time.Time
}
