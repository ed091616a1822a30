package tracking

import (
	"context"

	"github.com/penwyp/go-tracker-monitor/internal/core/mapsync"
	"github.com/penwyp/go-tracker-monitor/internal/core/model"
	"github.com/penwyp/go-tracker-monitor/internal/presentation/display"
	"github.com/penwyp/go-tracker-monitor/internal/presentation/interaction"
)

// Source fetches discovery and history data from the tracker service
type Source interface {
	// ListTrackers returns the serials known to the service
	ListTrackers(ctx context.Context) ([]string, error)
	// Stats returns the per-serial summary in service order
	Stats(ctx context.Context) (model.StatsSet, error)
	// History returns the point history of one tracker
	History(ctx context.Context, serial string) ([]model.TrackPoint, error)
}

// Renderer computes and applies a layer plan
type Renderer interface {
	Render(trackers []model.Tracker, points map[string][]model.TrackPoint, filter model.Filter) mapsync.Plan
}

// DisplayController handles terminal display operations
type DisplayController interface {
	// EnterAlternateScreen switches to alternate terminal screen
	EnterAlternateScreen()
	// ExitAlternateScreen returns to normal terminal screen
	ExitAlternateScreen()
	// ClearScreen clears the terminal screen
	ClearScreen()
	// Draw renders the map and the tracker panel
	Draw(view display.View)
}

// InputHandler processes keyboard events
type InputHandler interface {
	// Events returns a channel of keyboard events
	Events() <-chan interaction.KeyEvent
	// Close cleans up input handler resources
	Close() error
}

// StateMonitor reports persisted keys changed by another process
type StateMonitor interface {
	// Events returns a channel of changed keys
	Events() <-chan string
	// Close stops monitoring and cleans up resources
	Close() error
}
