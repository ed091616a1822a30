package tracking

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/penwyp/go-tracker-monitor/internal/core/mapsync"
	"github.com/penwyp/go-tracker-monitor/internal/core/model"
	"github.com/penwyp/go-tracker-monitor/internal/core/registry"
	"github.com/penwyp/go-tracker-monitor/internal/core/telemetry"
	"github.com/penwyp/go-tracker-monitor/internal/data/backend"
	"github.com/penwyp/go-tracker-monitor/internal/data/store"
	"github.com/penwyp/go-tracker-monitor/internal/presentation/display"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeSource serves canned discovery and history results
type fakeSource struct {
	mu          sync.Mutex
	stats       model.StatsSet
	statsErr    error
	statsHook   func()
	serials     []string
	serialsErr  error
	history     map[string][]model.TrackPoint
	historyErr  map[string]error
	historyHook func(ctx context.Context, serial string)
	requested   []string
}

func newFakeSource() *fakeSource {
	return &fakeSource{
		history:    make(map[string][]model.TrackPoint),
		historyErr: make(map[string]error),
	}
}

func (f *fakeSource) ListTrackers(ctx context.Context) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.serials, f.serialsErr
}

func (f *fakeSource) Stats(ctx context.Context) (model.StatsSet, error) {
	f.mu.Lock()
	hook := f.statsHook
	f.mu.Unlock()

	if hook != nil {
		hook()
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	return f.stats, f.statsErr
}

func (f *fakeSource) History(ctx context.Context, serial string) ([]model.TrackPoint, error) {
	f.mu.Lock()
	f.requested = append(f.requested, serial)
	hook := f.historyHook
	f.mu.Unlock()

	if hook != nil {
		hook(ctx, serial)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.historyErr[serial]; err != nil {
		return nil, err
	}
	return f.history[serial], nil
}

func (f *fakeSource) set(fn func(f *fakeSource)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	fn(f)
}

func (f *fakeSource) requestedSerials() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := append([]string(nil), f.requested...)
	sort.Strings(out)
	return out
}

// recordingRenderer keeps every render call
type recordingRenderer struct {
	mu    sync.Mutex
	calls []map[string][]model.TrackPoint
}

func (r *recordingRenderer) Render(trackers []model.Tracker, points map[string][]model.TrackPoint, filter model.Filter) mapsync.Plan {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, points)
	return mapsync.Compute(trackers, points, filter, nil)
}

func (r *recordingRenderer) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.calls)
}

func (r *recordingRenderer) last() map[string][]model.TrackPoint {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.calls) == 0 {
		return nil
	}
	return r.calls[len(r.calls)-1]
}

func sequentialKeys() func() string {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("key-%d", n)
	}
}

func newTestRegistry() *registry.Registry {
	return registry.New(store.NewState(store.NewMemoryStore()), registry.Options{NewColorKey: sequentialKeys()})
}

func newTestMetrics(t *testing.T) *telemetry.Metrics {
	t.Helper()
	m, err := telemetry.NewMetrics()
	require.NoError(t, err)
	return m
}

func pt(lat, lng float64) model.TrackPoint {
	return model.TrackPoint{Lat: lat, Lng: lng}
}

func TestFetchCycle_RendersEligibleTrackers(t *testing.T) {
	src := newFakeSource()
	src.stats = model.StatsSet{{Serial: "T1", Points: 2}, {Serial: "T2", Points: 1}}
	src.history["T1"] = []model.TrackPoint{pt(10, 20), pt(11, 21)}
	src.history["T2"] = []model.TrackPoint{pt(5, 5)}

	canvas := display.NewCanvas()
	fc := NewFetchCycle(src, newTestRegistry(), mapsync.NewEngine(canvas), nil, 2, time.Second)

	result := fc.Run(context.Background())
	require.NoError(t, result.Err)
	assert.True(t, result.Applied)
	assert.Equal(t, uint64(1), result.CycleID)
	require.Len(t, result.Trackers, 2)

	assert.Len(t, result.Plan.Layers("T1"), 3, "path plus two markers")
	assert.Len(t, result.Plan.Layers("T2"), 1, "single point has no path")
	assert.Equal(t, 4, canvas.LayerCount())
	assert.Equal(t, []model.TrackPoint{pt(10, 20), pt(11, 21)}, fc.Points("T1"))
}

func TestFetchCycle_StaleCycleIsDiscarded(t *testing.T) {
	src := newFakeSource()
	src.stats = model.StatsSet{{Serial: "A", Points: 1}}
	src.history["A"] = []model.TrackPoint{pt(1, 1)}

	entered := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once
	src.historyHook = func(ctx context.Context, serial string) {
		first := false
		once.Do(func() { first = true })
		if first {
			close(entered)
			<-release
		}
	}

	renderer := &recordingRenderer{}
	metrics := newTestMetrics(t)
	fc := NewFetchCycle(src, newTestRegistry(), renderer, metrics, 1, time.Second)

	done := make(chan CycleResult, 1)
	go func() { done <- fc.Run(context.Background()) }()
	<-entered

	// the newer cycle sees different data and finishes first
	src.set(func(f *fakeSource) { f.history["A"] = []model.TrackPoint{pt(2, 2)} })
	second := fc.Run(context.Background())
	require.True(t, second.Applied)
	assert.Equal(t, uint64(2), second.CycleID)

	// the older cycle now returns with the first response
	src.set(func(f *fakeSource) { f.history["A"] = []model.TrackPoint{pt(1, 1)} })
	close(release)
	first := <-done

	assert.True(t, first.Discarded)
	assert.False(t, first.Applied)
	assert.ErrorIs(t, first.Err, ErrSuperseded)
	assert.Equal(t, 1, renderer.count(), "only the latest cycle renders")
	assert.Equal(t, []model.TrackPoint{pt(2, 2)}, fc.Points("A"))
	assert.Equal(t, uint64(2), fc.LastResult().CycleID)

	snap := metrics.Snapshot()
	assert.GreaterOrEqual(t, snap.CyclesApplied, int64(1))
	assert.GreaterOrEqual(t, snap.CyclesDiscarded, int64(1))
}

func TestFetchCycle_HistoryFailureKeepsLastKnownPoints(t *testing.T) {
	src := newFakeSource()
	src.stats = model.StatsSet{{Serial: "A"}, {Serial: "B"}}
	src.history["A"] = []model.TrackPoint{pt(1, 1), pt(2, 2)}
	src.history["B"] = []model.TrackPoint{pt(3, 3)}

	renderer := &recordingRenderer{}
	fc := NewFetchCycle(src, newTestRegistry(), renderer, nil, 4, time.Second)
	require.True(t, fc.Run(context.Background()).Applied)

	src.set(func(f *fakeSource) {
		f.historyErr["A"] = &backend.TransportError{Endpoint: "/data/A", StatusCode: 500}
		f.history["B"] = []model.TrackPoint{pt(4, 4)}
	})
	result := fc.Run(context.Background())

	require.True(t, result.Applied)
	assert.NoError(t, result.Err)
	assert.Equal(t, []string{"A"}, result.FailedSerials)
	assert.Equal(t, []model.TrackPoint{pt(1, 1), pt(2, 2)}, renderer.last()["A"])
	assert.Equal(t, []model.TrackPoint{pt(4, 4)}, renderer.last()["B"])
}

func TestFetchCycle_DiscoveryFailureLeavesStateUntouched(t *testing.T) {
	src := newFakeSource()
	src.stats = model.StatsSet{{Serial: "A"}}
	src.history["A"] = []model.TrackPoint{pt(1, 1)}

	reg := newTestRegistry()
	renderer := &recordingRenderer{}
	fc := NewFetchCycle(src, reg, renderer, nil, 1, time.Second)
	require.True(t, fc.Run(context.Background()).Applied)

	src.set(func(f *fakeSource) {
		f.stats = model.StatsSet{{Serial: "A"}, {Serial: "B"}}
		f.statsErr = &backend.TransportError{Endpoint: "/stats", Err: errors.New("connection refused")}
	})
	result := fc.Run(context.Background())

	require.Error(t, result.Err)
	var terr *backend.TransportError
	assert.True(t, errors.As(result.Err, &terr))
	assert.False(t, result.Applied)
	assert.Equal(t, 1, renderer.count(), "map is not redrawn")
	assert.Len(t, reg.Trackers(), 1, "registry is not refreshed")
	assert.Equal(t, result.CycleID, fc.LastResult().CycleID)
}

func TestFetchCycle_StaleDiscoveryFailureIsDiscarded(t *testing.T) {
	src := newFakeSource()
	src.stats = model.StatsSet{{Serial: "A"}}
	src.history["A"] = []model.TrackPoint{pt(1, 1)}

	entered := make(chan struct{})
	release := make(chan struct{})
	src.statsHook = func() {
		close(entered)
		<-release
	}

	metrics := newTestMetrics(t)
	fc := NewFetchCycle(src, newTestRegistry(), &recordingRenderer{}, metrics, 1, time.Second)

	done := make(chan CycleResult, 1)
	go func() { done <- fc.Run(context.Background()) }()
	<-entered

	src.set(func(f *fakeSource) { f.statsHook = nil })
	second := fc.Run(context.Background())
	require.True(t, second.Applied)

	// the older cycle's discovery now fails
	src.set(func(f *fakeSource) {
		f.statsErr = &backend.TransportError{Endpoint: "/stats", StatusCode: 503}
	})
	close(release)
	first := <-done

	assert.True(t, first.Discarded)
	assert.ErrorIs(t, first.Err, ErrSuperseded)
	last := fc.LastResult()
	assert.Equal(t, second.CycleID, last.CycleID)
	assert.NoError(t, last.Err)
	assert.Equal(t, int64(0), metrics.Snapshot().CyclesFailed)
}

func TestFetchCycle_TrackerListIsBestEffort(t *testing.T) {
	src := newFakeSource()
	src.stats = model.StatsSet{{Serial: "A"}}
	src.serialsErr = errors.New("boom")

	fc := NewFetchCycle(src, newTestRegistry(), &recordingRenderer{}, nil, 1, time.Second)
	result := fc.Run(context.Background())

	require.NoError(t, result.Err)
	require.Len(t, result.Trackers, 1)
}

func TestFetchCycle_MalformedResponsesAreEmpty(t *testing.T) {
	src := newFakeSource()
	src.statsErr = fmt.Errorf("decoding /stats: %w", backend.ErrMalformedResponse)
	src.serials = []string{"A"}
	src.historyErr["A"] = fmt.Errorf("decoding /data/A: %w", backend.ErrMalformedResponse)

	renderer := &recordingRenderer{}
	fc := NewFetchCycle(src, newTestRegistry(), renderer, nil, 1, time.Second)
	result := fc.Run(context.Background())

	require.NoError(t, result.Err)
	assert.True(t, result.Applied)
	require.Len(t, result.Trackers, 1, "tracker list still contributes")
	assert.Equal(t, "A", result.Trackers[0].Serial)
	assert.Empty(t, result.FailedSerials)
	assert.Equal(t, []model.TrackPoint{}, renderer.last()["A"])
	assert.Empty(t, result.Plan.Layers("A"))
}

func TestFetchCycle_OnlyEligibleTrackersAreFetched(t *testing.T) {
	src := newFakeSource()
	src.stats = model.StatsSet{{Serial: "A"}, {Serial: "H"}, {Serial: "V"}}

	reg := newTestRegistry()
	reg.Refresh(src.stats)
	require.NoError(t, reg.Hide("H"))
	require.NoError(t, reg.SetVisible("V", false))

	fc := NewFetchCycle(src, reg, &recordingRenderer{}, nil, 2, time.Second)
	require.True(t, fc.Run(context.Background()).Applied)

	assert.Equal(t, []string{"A"}, src.requestedSerials())
	assert.Equal(t, []string{"H", "V"}, fc.Missing([]string{"A", "H", "V"}))
}

func TestFetchCycle_TriggerDeliversResult(t *testing.T) {
	src := newFakeSource()
	src.stats = model.StatsSet{{Serial: "A"}}

	fc := NewFetchCycle(src, newTestRegistry(), &recordingRenderer{}, nil, 1, time.Second)
	fc.Trigger(context.Background())

	select {
	case result := <-fc.Results():
		assert.True(t, result.Applied)
		assert.Equal(t, uint64(1), fc.LatestID())
	case <-time.After(2 * time.Second):
		t.Fatal("no result delivered")
	}
}

func TestFetchCycle_RerenderUsesCurrentFilter(t *testing.T) {
	src := newFakeSource()
	src.stats = model.StatsSet{{Serial: "A"}, {Serial: "B"}}
	src.history["A"] = []model.TrackPoint{pt(1, 1)}
	src.history["B"] = []model.TrackPoint{pt(2, 2)}

	reg := newTestRegistry()
	fc := NewFetchCycle(src, reg, &recordingRenderer{}, nil, 1, time.Second)
	require.True(t, fc.Run(context.Background()).Applied)

	require.NoError(t, reg.SetVisible("B", false))
	plan := fc.Rerender()
	assert.Equal(t, []string{"A"}, plan.RenderSet)
}

func TestFetchCycle_DiscoverOnlyRefreshesRegistry(t *testing.T) {
	src := newFakeSource()
	src.stats = model.StatsSet{{Serial: "A", Points: 1}}
	src.serials = []string{"A", "B"}
	renderer := &recordingRenderer{}
	fc := NewFetchCycle(src, newTestRegistry(), renderer, nil, 2, time.Second)

	trackers, err := fc.Discover(context.Background())
	require.NoError(t, err)
	require.Len(t, trackers, 2)
	assert.Equal(t, "B", trackers[1].Serial)

	assert.Zero(t, fc.LatestID())
	assert.Empty(t, src.requestedSerials())
	assert.Zero(t, renderer.count())

	src.set(func(f *fakeSource) { f.statsErr = errors.New("connection refused") })
	_, err = fc.Discover(context.Background())
	assert.Error(t, err)
}
