package tracking

import (
	"time"

	"github.com/penwyp/go-tracker-monitor/internal/core/mapsync"
	"github.com/penwyp/go-tracker-monitor/internal/core/registry"
	"github.com/penwyp/go-tracker-monitor/internal/data/store"
)

// TrackingConfig contains configuration for the watch and one-shot commands
type TrackingConfig struct {
	// Backend service
	BackendURL     string
	RequestTimeout time.Duration

	// Persisted state
	StateDir     string
	StoreBackend string // file, sqlite, memory

	// Refresh settings
	Interval      time.Duration
	UIRefreshRate float64

	// Performance settings
	Concurrency int

	// Map settings
	FitPadding float64 // fraction of the track extent added around a fit

	// Behaviour
	RenamePolicy registry.RenamePolicy

	// Display settings
	Timezone string
}

// Validate fills in defaults for unset fields. A zero FitPadding is kept:
// the configuration layer supplies its default.
func (c *TrackingConfig) Validate() error {
	if c.BackendURL == "" {
		c.BackendURL = "http://localhost:5000"
	}
	if c.RequestTimeout == 0 {
		c.RequestTimeout = 10 * time.Second
	}
	if c.StateDir == "" {
		c.StateDir = "~/.go-tracker-monitor/state"
	}
	if c.StoreBackend == "" {
		c.StoreBackend = store.BackendFile
	}
	if c.Interval == 0 {
		c.Interval = 15 * time.Second
	}
	if c.UIRefreshRate == 0 {
		c.UIRefreshRate = 1
	}
	if c.Concurrency == 0 {
		c.Concurrency = 4
	}
	if c.FitPadding < 0 {
		c.FitPadding = mapsync.DefaultFitPadding
	}
	if c.RenamePolicy == "" {
		c.RenamePolicy = registry.RenameKeepColor
	}
	if c.Timezone == "" {
		c.Timezone = "Local"
	}
	return nil
}
