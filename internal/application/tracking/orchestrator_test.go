package tracking

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/penwyp/go-tracker-monitor/internal/core/model"
	"github.com/penwyp/go-tracker-monitor/internal/core/registry"
	"github.com/penwyp/go-tracker-monitor/internal/data/store"
	"github.com/penwyp/go-tracker-monitor/internal/presentation/display"
	"github.com/penwyp/go-tracker-monitor/internal/presentation/interaction"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeDisplay struct {
	mu      sync.Mutex
	views   []display.View
	entered bool
	exited  bool
}

func (f *fakeDisplay) EnterAlternateScreen() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entered = true
}

func (f *fakeDisplay) ExitAlternateScreen() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.exited = true
}

func (f *fakeDisplay) ClearScreen() {}

func (f *fakeDisplay) Draw(view display.View) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.views = append(f.views, view)
}

func (f *fakeDisplay) lastView() display.View {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.views[len(f.views)-1]
}

type fakeInput struct {
	events chan interaction.KeyEvent
	closed bool
}

func newFakeInput() *fakeInput {
	return &fakeInput{events: make(chan interaction.KeyEvent, 8)}
}

func (f *fakeInput) Events() <-chan interaction.KeyEvent { return f.events }
func (f *fakeInput) Close() error {
	f.closed = true
	return nil
}

type fakeMonitor struct {
	events chan string
	closed bool
}

func (f *fakeMonitor) Events() <-chan string { return f.events }
func (f *fakeMonitor) Close() error {
	f.closed = true
	return nil
}

func key(ch rune) interaction.KeyEvent {
	return interaction.KeyEvent{Key: ch, Type: interaction.KeyChar}
}

type orchestratorFixture struct {
	orch    *Orchestrator
	src     *fakeSource
	backend store.Store
	reg     *registry.Registry
	canvas  *display.Canvas
	display *fakeDisplay
	input   *fakeInput
	monitor *fakeMonitor
}

func newOrchestratorFixture(t *testing.T) *orchestratorFixture {
	t.Helper()

	src := newFakeSource()
	src.stats = model.StatsSet{{Serial: "A", Points: 2}, {Serial: "B", Points: 1}, {Serial: "C", Points: 1}}
	src.history["A"] = []model.TrackPoint{pt(1, 1), pt(2, 2)}
	src.history["B"] = []model.TrackPoint{pt(3, 3)}
	src.history["C"] = []model.TrackPoint{pt(4, 4)}

	backend := store.NewMemoryStore()
	reg := registry.New(store.NewState(backend), registry.Options{NewColorKey: sequentialKeys()})
	canvas := display.NewCanvas()
	fx := &orchestratorFixture{
		src:     src,
		backend: backend,
		reg:     reg,
		canvas:  canvas,
		display: &fakeDisplay{},
		input:   newFakeInput(),
		monitor: &fakeMonitor{events: make(chan string, 1)},
	}

	cfg := &TrackingConfig{Interval: time.Hour, Timezone: "UTC", StoreBackend: store.BackendMemory}
	orch, err := NewOrchestrator(cfg, Components{
		Source:   src,
		Registry: reg,
		Metrics:  newTestMetrics(t),
		Display:  fx.display,
		Surface:  canvas,
		Input:    fx.input,
		Monitor:  fx.monitor,
	})
	require.NoError(t, err)
	fx.orch = orch
	return fx
}

func TestNewOrchestrator_RequiresComponents(t *testing.T) {
	_, err := NewOrchestrator(&TrackingConfig{}, Components{})
	assert.Error(t, err)

	_, err = NewOrchestrator(&TrackingConfig{}, Components{Source: newFakeSource(), Registry: newTestRegistry()})
	assert.Error(t, err, "surface is required")
}

func TestOrchestrator_RunOnce(t *testing.T) {
	fx := newOrchestratorFixture(t)

	result, err := fx.orch.RunOnce(context.Background())
	require.NoError(t, err)
	assert.True(t, result.Applied)
	assert.Equal(t, 5, fx.canvas.LayerCount())

	view := fx.orch.BuildView()
	require.Len(t, view.Rows, 3)
	assert.Equal(t, "A", view.Rows[0].Tracker.Serial)
	require.NotNil(t, view.Rows[0].Latest)
	assert.Equal(t, pt(2, 2), *view.Rows[0].Latest)
	assert.Zero(t, view.HiddenCount)
	assert.Equal(t, uint64(1), view.CycleID)
	assert.Equal(t, int64(1), view.Metrics.CyclesApplied)
}

func TestOrchestrator_HideAndRestore(t *testing.T) {
	fx := newOrchestratorFixture(t)
	ctx := context.Background()
	_, err := fx.orch.RunOnce(ctx)
	require.NoError(t, err)

	// cursor on B, hide it
	assert.False(t, fx.orch.handleKeyboard(ctx, interaction.KeyEvent{Type: interaction.KeyDown}))
	assert.False(t, fx.orch.handleKeyboard(ctx, key('x')))

	view := fx.orch.BuildView()
	assert.Equal(t, 1, view.HiddenCount)
	assert.Len(t, view.Rows, 2)
	assert.Equal(t, []string{"A", "C"}, fx.engineDrawn())
	assert.True(t, store.NewState(fx.backend).HiddenSerials()["B"], "hidden set is persisted")

	// restore brings B back without waiting for a new cycle
	assert.False(t, fx.orch.handleKeyboard(ctx, key('a')))
	view = fx.orch.BuildView()
	assert.Zero(t, view.HiddenCount)
	assert.Len(t, view.Rows, 3)
	assert.Equal(t, []string{"A", "B", "C"}, fx.engineDrawn())
}

func TestOrchestrator_IsolateAndClear(t *testing.T) {
	fx := newOrchestratorFixture(t)
	ctx := context.Background()
	_, err := fx.orch.RunOnce(ctx)
	require.NoError(t, err)

	fx.orch.handleKeyboard(ctx, key('s')) // select A
	fx.orch.handleKeyboard(ctx, key('j'))
	fx.orch.handleKeyboard(ctx, key('j'))
	fx.orch.handleKeyboard(ctx, key('s')) // select C
	fx.orch.handleKeyboard(ctx, key('i'))

	view := fx.orch.BuildView()
	assert.True(t, view.Isolating)
	assert.Equal(t, []string{"A", "C"}, fx.engineDrawn())
	assert.False(t, view.Rows[1].Eligible)

	fx.orch.handleKeyboard(ctx, key('c'))
	view = fx.orch.BuildView()
	assert.False(t, view.Isolating)
	assert.Equal(t, []string{"A", "B", "C"}, fx.engineDrawn())
}

func TestOrchestrator_ToggleVisible(t *testing.T) {
	fx := newOrchestratorFixture(t)
	ctx := context.Background()
	_, err := fx.orch.RunOnce(ctx)
	require.NoError(t, err)

	fx.orch.handleKeyboard(ctx, key(' '))
	assert.False(t, fx.reg.IsVisible("A"))
	assert.Equal(t, []string{"B", "C"}, fx.engineDrawn())

	fx.orch.handleKeyboard(ctx, interaction.KeyEvent{Type: interaction.KeyEnter})
	assert.True(t, fx.reg.IsVisible("A"))
	assert.Equal(t, []string{"A", "B", "C"}, fx.engineDrawn())
}

func TestOrchestrator_HelpSwallowsCommands(t *testing.T) {
	fx := newOrchestratorFixture(t)
	ctx := context.Background()
	_, err := fx.orch.RunOnce(ctx)
	require.NoError(t, err)

	fx.orch.handleKeyboard(ctx, key('h'))
	assert.True(t, fx.orch.StateManager().GetInteractionState().ShowHelp)

	fx.orch.handleKeyboard(ctx, key('x'))
	assert.Zero(t, fx.orch.BuildView().HiddenCount, "commands are ignored while help is shown")

	assert.False(t, fx.orch.handleKeyboard(ctx, interaction.KeyEvent{Type: interaction.KeyEscape}), "Esc closes help")
	assert.False(t, fx.orch.StateManager().GetInteractionState().ShowHelp)
	assert.True(t, fx.orch.handleKeyboard(ctx, interaction.KeyEvent{Type: interaction.KeyEscape}), "Esc quits")
	assert.True(t, fx.orch.handleKeyboard(ctx, key('q')))
}

func TestOrchestrator_PauseAndFit(t *testing.T) {
	fx := newOrchestratorFixture(t)
	ctx := context.Background()
	_, err := fx.orch.RunOnce(ctx)
	require.NoError(t, err)

	fx.orch.handleKeyboard(ctx, key('p'))
	assert.True(t, fx.orch.StateManager().GetInteractionState().IsPaused)
	fx.orch.handleKeyboard(ctx, key('p'))
	assert.False(t, fx.orch.StateManager().GetInteractionState().IsPaused)

	assert.False(t, fx.orch.handleKeyboard(ctx, key('f')))
}

func TestOrchestrator_StoreChangeReloadsRegistry(t *testing.T) {
	fx := newOrchestratorFixture(t)
	ctx := context.Background()
	_, err := fx.orch.RunOnce(ctx)
	require.NoError(t, err)

	// another process hides C
	require.NoError(t, store.NewState(fx.backend).SaveHiddenSerials(map[string]bool{"C": true}))
	fx.orch.handleStoreChange(ctx, store.KeyHiddenTrackers)

	assert.Equal(t, 1, fx.orch.BuildView().HiddenCount)
	assert.Equal(t, []string{"A", "B"}, fx.engineDrawn())
}

func TestOrchestrator_RunLoop(t *testing.T) {
	fx := newOrchestratorFixture(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- fx.orch.Run(ctx) }()

	assert.Eventually(t, func() bool {
		return fx.canvas.LayerCount() == 5
	}, 2*time.Second, 10*time.Millisecond, "first cycle renders immediately")

	fx.input.events <- key('q')
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("run loop did not exit on quit")
	}

	assert.True(t, fx.display.entered)
	assert.True(t, fx.display.exited)
	assert.True(t, fx.input.closed)
	assert.True(t, fx.monitor.closed)
	assert.Equal(t, model.StatusLoading, fx.display.views[0].State.DisplayStatus)
}

// engineDrawn lists the serials with layers on the canvas
func (fx *orchestratorFixture) engineDrawn() []string {
	return fx.orch.engine.Drawn()
}
