package tracking

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/penwyp/go-tracker-monitor/internal/core/mapsync"
	"github.com/penwyp/go-tracker-monitor/internal/core/model"
	"github.com/penwyp/go-tracker-monitor/internal/core/registry"
	"github.com/penwyp/go-tracker-monitor/internal/core/telemetry"
	"github.com/penwyp/go-tracker-monitor/internal/presentation/display"
	"github.com/penwyp/go-tracker-monitor/internal/presentation/interaction"
	"github.com/penwyp/go-tracker-monitor/internal/util"
)

// fitter is implemented by surfaces that can re-fit their view on demand
type fitter interface {
	Fit(padding float64) bool
}

// Components are the collaborators of an Orchestrator. Input and Monitor
// are optional: a keyboard reader is opened when Input is nil, and store
// changes are not followed when Monitor is nil.
type Components struct {
	Source   Source
	Registry *registry.Registry
	Metrics  *telemetry.Metrics
	Display  DisplayController
	Surface  mapsync.Surface
	Input    InputHandler
	Monitor  StateMonitor
}

// Orchestrator coordinates all components for the watch command
type Orchestrator struct {
	config *TrackingConfig

	// Core components
	registry     *registry.Registry
	engine       *mapsync.Engine
	cycle        *FetchCycle
	stateManager *StateManager
	metrics      *telemetry.Metrics

	// UI components
	display  DisplayController
	surface  mapsync.Surface
	keyboard InputHandler

	// Monitoring
	monitor StateMonitor
}

// NewOrchestrator creates a new Orchestrator instance
func NewOrchestrator(config *TrackingConfig, c Components) (*Orchestrator, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if c.Source == nil || c.Registry == nil {
		return nil, errors.New("source and registry are required")
	}
	if c.Surface == nil {
		return nil, errors.New("a map surface is required")
	}

	engine := mapsync.NewEngine(c.Surface)
	engine.SetFitPadding(config.FitPadding)
	cycle := NewFetchCycle(c.Source, c.Registry, engine, c.Metrics, config.Concurrency, config.RequestTimeout)

	return &Orchestrator{
		config:       config,
		registry:     c.Registry,
		engine:       engine,
		cycle:        cycle,
		stateManager: NewStateManager(),
		metrics:      c.Metrics,
		display:      c.Display,
		surface:      c.Surface,
		keyboard:     c.Input,
		monitor:      c.Monitor,
	}, nil
}

// StateManager returns the view state
func (o *Orchestrator) StateManager() *StateManager {
	return o.stateManager
}

// Cycle returns the fetch cycle runner
func (o *Orchestrator) Cycle() *FetchCycle {
	return o.cycle
}

// Run starts the orchestrator main loop
func (o *Orchestrator) Run(ctx context.Context) error {
	util.LogInfo("Starting tracker watch", util.F("backend", o.config.BackendURL), util.F("interval", o.config.Interval.String()))
	defer o.Close()

	if err := util.InitializeTimeProvider(o.config.Timezone); err != nil {
		return fmt.Errorf("failed to initialize timezone: %w", err)
	}

	if o.keyboard == nil {
		keyboard, err := interaction.NewKeyboardReader()
		if err != nil {
			return fmt.Errorf("failed to initialize keyboard: %w", err)
		}
		o.keyboard = keyboard
	}

	if o.display != nil {
		o.display.EnterAlternateScreen()
		defer o.display.ExitAlternateScreen()
	}

	o.stateManager.SetLoadingState(true, "Loading trackers...")
	o.updateDisplay()

	// first cycle starts immediately; later ones follow the interval
	o.cycle.Trigger(ctx)

	uiTicker := time.NewTicker(time.Duration(1000/o.config.UIRefreshRate) * time.Millisecond)
	defer uiTicker.Stop()

	dataTicker := time.NewTicker(o.config.Interval)
	defer dataTicker.Stop()

	var storeEvents <-chan string
	if o.monitor != nil {
		storeEvents = o.monitor.Events()
	}

	for {
		select {
		case <-ctx.Done():
			util.LogInfo("Shutting down tracker watch")
			return nil

		case <-uiTicker.C:
			if !o.stateManager.GetInteractionState().IsPaused {
				o.updateDisplay()
			}

		case <-dataTicker.C:
			if !o.stateManager.GetInteractionState().IsPaused {
				o.startCycle(ctx)
			}

		case result := <-o.cycle.Results():
			o.handleResult(result)
			o.updateDisplay()

		case key := <-storeEvents:
			o.handleStoreChange(ctx, key)
			o.updateDisplay()

		case keyEvent := <-o.keyboard.Events():
			if o.handleKeyboard(ctx, keyEvent) {
				return nil
			}
			o.updateDisplay()
		}
	}
}

// RunOnce performs a single cycle without any UI
func (o *Orchestrator) RunOnce(ctx context.Context) (CycleResult, error) {
	if err := util.InitializeTimeProvider(o.config.Timezone); err != nil {
		return CycleResult{}, fmt.Errorf("failed to initialize timezone: %w", err)
	}
	result := o.cycle.Run(ctx)
	o.handleResult(result)
	return result, result.Err
}

func (o *Orchestrator) startCycle(ctx context.Context) {
	o.stateManager.UpdateInteractionState(func(s *model.InteractionState) {
		if s.DisplayStatus == model.StatusNormal {
			s.DisplayStatus = model.StatusRefreshing
		}
	})
	o.cycle.Trigger(ctx)
}

func (o *Orchestrator) handleResult(result CycleResult) {
	if result.Discarded {
		return
	}
	o.stateManager.RecordResult(result, time.Now())
	o.stateManager.ClampCursor(len(o.registry.Listed()))
	if result.Err != nil {
		util.LogWarn("Fetch cycle failed", util.F("cycle_id", result.CycleID), util.F("error", result.Err.Error()))
	}
}

// handleStoreChange picks up hidden, name and color changes written by
// another process
func (o *Orchestrator) handleStoreChange(ctx context.Context, key string) {
	util.LogInfo("Persisted state changed externally", util.F("key", key))
	o.registry.Reload()
	o.stateManager.ClampCursor(len(o.registry.Listed()))
	o.filterChanged(ctx)
}

// filterChanged redraws with last-known points and fetches any newly
// eligible tracker that has no history yet
func (o *Orchestrator) filterChanged(ctx context.Context) {
	o.cycle.Rerender()
	if missing := o.cycle.Missing(o.registry.EligibleSerials()); len(missing) > 0 {
		util.LogDebug("Fetching history for newly eligible trackers", util.F("serials", missing))
		o.startCycle(ctx)
	}
}

// cursorSerial returns the serial of the tracker under the cursor
func (o *Orchestrator) cursorSerial() (string, bool) {
	listed := o.registry.Listed()
	cursor := o.stateManager.GetInteractionState().Cursor
	if cursor < 0 || cursor >= len(listed) {
		return "", false
	}
	return listed[cursor].Serial, true
}

// handleKeyboard handles keyboard events and reports whether to exit
func (o *Orchestrator) handleKeyboard(ctx context.Context, event interaction.KeyEvent) bool {
	state := o.stateManager.GetInteractionState()
	action := interaction.ActionFor(event, state.ShowHelp)

	// only help and quit keys work while help is shown
	if state.ShowHelp && action != interaction.ActionHelp && action != interaction.ActionCloseHelp && action != interaction.ActionQuit {
		return false
	}

	switch action {
	case interaction.ActionQuit:
		return true

	case interaction.ActionCursorUp:
		o.stateManager.MoveCursor(-1, len(o.registry.Listed()))
	case interaction.ActionCursorDown:
		o.stateManager.MoveCursor(1, len(o.registry.Listed()))

	case interaction.ActionToggleVisible:
		if serial, ok := o.cursorSerial(); ok {
			if _, err := o.registry.ToggleVisible(serial); err != nil {
				o.reportError("toggle visibility", err)
				return false
			}
			o.filterChanged(ctx)
		}

	case interaction.ActionToggleSelect:
		if serial, ok := o.cursorSerial(); ok {
			if _, err := o.registry.ToggleSelected(serial); err != nil {
				o.reportError("select", err)
			}
		}

	case interaction.ActionIsolate:
		isolated := o.registry.Isolate()
		if len(isolated) == 0 {
			o.stateManager.SetStatusMessage("Nothing selected, showing all visible trackers")
		} else {
			o.stateManager.SetStatusMessage(fmt.Sprintf("Showing %d selected trackers", len(isolated)))
		}
		o.filterChanged(ctx)

	case interaction.ActionClearIsolation:
		o.registry.ClearIsolation()
		o.stateManager.SetStatusMessage("")
		o.filterChanged(ctx)

	case interaction.ActionHide:
		if serial, ok := o.cursorSerial(); ok {
			if err := o.registry.Hide(serial); err != nil {
				o.reportError("hide", err)
				return false
			}
			o.stateManager.ClampCursor(len(o.registry.Listed()))
			o.filterChanged(ctx)
		}

	case interaction.ActionRestoreAll:
		if !o.registry.HasHidden() {
			return false
		}
		if err := o.registry.RestoreAll(); err != nil {
			o.reportError("restore", err)
			return false
		}
		o.filterChanged(ctx)

	case interaction.ActionFit:
		if f, ok := o.surface.(fitter); ok && f.Fit(o.config.FitPadding) {
			o.stateManager.SetStatusMessage("")
		}

	case interaction.ActionRefresh:
		o.startCycle(ctx)

	case interaction.ActionPause:
		o.stateManager.UpdateInteractionState(func(s *model.InteractionState) {
			s.IsPaused = !s.IsPaused
		})

	case interaction.ActionHelp:
		o.stateManager.UpdateInteractionState(func(s *model.InteractionState) {
			s.ShowHelp = !s.ShowHelp
		})
	case interaction.ActionCloseHelp:
		o.stateManager.UpdateInteractionState(func(s *model.InteractionState) {
			s.ShowHelp = false
		})
	}
	return false
}

// reportError surfaces a failed command in the status bar; the registry
// state is left as it was
func (o *Orchestrator) reportError(command string, err error) {
	util.LogError("Command failed", util.F("command", command), util.F("error", err.Error()))
	o.stateManager.SetStatusMessage(fmt.Sprintf("%s failed: %v", command, err))
}

// BuildView assembles the frame shown by the display
func (o *Orchestrator) BuildView() display.View {
	listed := o.registry.Listed()
	isolated := make(map[string]bool)
	for _, serial := range o.registry.Isolated() {
		isolated[serial] = true
	}

	rows := make([]display.TrackerRow, 0, len(listed))
	for _, t := range listed {
		row := display.TrackerRow{
			Tracker:  t,
			Visible:  o.registry.IsVisible(t.Serial),
			Selected: o.registry.IsSelected(t.Serial),
			Isolated: isolated[t.Serial],
			Eligible: o.registry.Eligible(t.Serial),
		}
		if pts := o.cycle.Points(t.Serial); len(pts) > 0 {
			latest := pts[len(pts)-1]
			row.Latest = &latest
		}
		rows = append(rows, row)
	}

	view := display.View{
		Rows:          rows,
		HiddenCount:   len(o.registry.Hidden()),
		Isolating:     len(isolated) > 0,
		State:         o.stateManager.GetInteractionState(),
		CycleID:       o.cycle.LatestID(),
		LastUpdate:    o.stateManager.GetLastDataUpdate(),
		FailedSerials: o.stateManager.GetFailedSerials(),
		LastError:     o.stateManager.GetLastError(),
		BackendURL:    o.config.BackendURL,
		Interval:      o.config.Interval,
		Now:           time.Now(),
	}
	if o.metrics != nil {
		view.Metrics = o.metrics.Snapshot()
	}
	return view
}

func (o *Orchestrator) updateDisplay() {
	if o.display == nil {
		return
	}
	o.display.Draw(o.BuildView())
}

// Close cleans up all resources
func (o *Orchestrator) Close() error {
	var errs []error
	if o.monitor != nil {
		if err := o.monitor.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close state monitor: %w", err))
		}
		o.monitor = nil
	}
	if o.keyboard != nil {
		if err := o.keyboard.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close keyboard: %w", err))
		}
		o.keyboard = nil
	}
	return errors.Join(errs...)
}
