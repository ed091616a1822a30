package tracking

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/penwyp/go-tracker-monitor/internal/core/mapsync"
	"github.com/penwyp/go-tracker-monitor/internal/core/model"
	"github.com/penwyp/go-tracker-monitor/internal/core/registry"
	"github.com/penwyp/go-tracker-monitor/internal/core/telemetry"
	"github.com/penwyp/go-tracker-monitor/internal/data/backend"
	"github.com/penwyp/go-tracker-monitor/internal/util"
)

// ErrSuperseded marks a cycle whose results were dropped because a newer
// cycle had been issued
var ErrSuperseded = errors.New("superseded by a newer cycle")

// CycleResult describes the outcome of one fetch cycle
type CycleResult struct {
	CycleID   uint64
	Applied   bool
	Discarded bool
	// Err is set when discovery failed or the cycle was superseded
	Err           error
	Trackers      []model.Tracker
	FailedSerials []string
	Plan          mapsync.Plan
	Duration      time.Duration
}

// FetchCycle runs the two-phase poll: discovery, then history for every
// render-eligible tracker, then one atomic render. Cycles may overlap; only
// the latest issued cycle may change shared state.
type FetchCycle struct {
	source      Source
	registry    *registry.Registry
	renderer    Renderer
	metrics     *telemetry.Metrics
	concurrency int
	timeout     time.Duration

	latest  atomic.Uint64
	applyMu sync.Mutex
	points  map[string][]model.TrackPoint // last-known history per serial
	last    CycleResult

	results chan CycleResult
}

// NewFetchCycle wires a cycle runner. metrics may be nil.
func NewFetchCycle(source Source, reg *registry.Registry, renderer Renderer, metrics *telemetry.Metrics, concurrency int, timeout time.Duration) *FetchCycle {
	if concurrency <= 0 {
		concurrency = 1
	}
	return &FetchCycle{
		source:      source,
		registry:    reg,
		renderer:    renderer,
		metrics:     metrics,
		concurrency: concurrency,
		timeout:     timeout,
		points:      make(map[string][]model.TrackPoint),
		results:     make(chan CycleResult, 8),
	}
}

// Results delivers the outcome of cycles started with Trigger
func (fc *FetchCycle) Results() <-chan CycleResult {
	return fc.results
}

// Trigger starts a cycle in the background
func (fc *FetchCycle) Trigger(ctx context.Context) {
	go func() {
		result := fc.Run(ctx)
		select {
		case fc.results <- result:
		default:
			util.LogDebug("Dropping cycle result, consumer is behind", util.F("cycle_id", result.CycleID))
		}
	}()
}

// LatestID returns the id of the most recently issued cycle
func (fc *FetchCycle) LatestID() uint64 {
	return fc.latest.Load()
}

// LastResult returns the last applied or failed result
func (fc *FetchCycle) LastResult() CycleResult {
	fc.applyMu.Lock()
	defer fc.applyMu.Unlock()
	return fc.last
}

// Points returns the last-known history of serial
func (fc *FetchCycle) Points(serial string) []model.TrackPoint {
	fc.applyMu.Lock()
	defer fc.applyMu.Unlock()
	return append([]model.TrackPoint(nil), fc.points[serial]...)
}

// Missing returns the serials that have no fetched history yet
func (fc *FetchCycle) Missing(serials []string) []string {
	fc.applyMu.Lock()
	defer fc.applyMu.Unlock()

	var out []string
	for _, serial := range serials {
		if _, ok := fc.points[serial]; !ok {
			out = append(out, serial)
		}
	}
	return out
}

// Rerender draws the current registry state with the last-known points,
// used after visibility changes between cycles
func (fc *FetchCycle) Rerender() mapsync.Plan {
	fc.applyMu.Lock()
	defer fc.applyMu.Unlock()
	return fc.renderer.Render(fc.registry.Trackers(), fc.pointsSnapshotLocked(), fc.registry.Filter())
}

func (fc *FetchCycle) pointsSnapshotLocked() map[string][]model.TrackPoint {
	out := make(map[string][]model.TrackPoint, len(fc.points))
	for serial, pts := range fc.points {
		out[serial] = pts
	}
	return out
}

func (fc *FetchCycle) isLatest(id uint64) bool {
	return fc.latest.Load() == id
}

// Run executes one cycle synchronously
func (fc *FetchCycle) Run(ctx context.Context) CycleResult {
	start := time.Now()
	id := fc.latest.Add(1)
	ctx = context.WithValue(ctx, util.CycleIDKey, id)
	result := CycleResult{CycleID: id}

	if fc.metrics != nil {
		fc.metrics.CycleStarted(ctx)
	}
	util.LogDebug("Fetch cycle started", util.F("cycle_id", id))

	// Phase 1: discovery, applied before any history is requested
	stats, err := fc.discover(ctx)
	if err != nil {
		fc.applyMu.Lock()
		defer fc.applyMu.Unlock()
		if !fc.isLatest(id) {
			util.LogDebug("Discovery of superseded cycle failed",
				util.F("cycle_id", id), util.F("error", err.Error()))
			return fc.discard(ctx, result, start)
		}
		result.Err = err
		result.Duration = time.Since(start)
		util.LogWarn("Discovery failed, keeping previous map state",
			util.F("cycle_id", id), util.F("error", err.Error()))
		fc.finish(ctx, &result, telemetry.OutcomeFailed)
		return result
	}

	fc.applyMu.Lock()
	if !fc.isLatest(id) {
		fc.applyMu.Unlock()
		return fc.discard(ctx, result, start)
	}
	result.Trackers = fc.registry.Refresh(stats)
	eligible := fc.registry.EligibleSerials()
	fc.applyMu.Unlock()

	// Phase 2: history for every eligible tracker
	fetched, failed := fc.fetchHistories(ctx, eligible)

	// Apply atomically, only if still the latest cycle
	fc.applyMu.Lock()
	defer fc.applyMu.Unlock()
	if !fc.isLatest(id) {
		return fc.discard(ctx, result, start)
	}

	for serial, pts := range fetched {
		fc.points[serial] = pts
	}
	result.FailedSerials = failed
	result.Plan = fc.renderer.Render(fc.registry.Trackers(), fc.pointsSnapshotLocked(), fc.registry.Filter())
	result.Applied = true
	result.Duration = time.Since(start)
	fc.finish(ctx, &result, telemetry.OutcomeApplied)

	util.LogDebug("Fetch cycle applied",
		util.F("cycle_id", id),
		util.F("trackers", len(result.Trackers)),
		util.F("layers", result.Plan.LayerCount()),
		util.F("failed", len(failed)),
		util.F("duration", result.Duration.String()))
	return result
}

// finish records the outcome. Applied and failed outcomes require applyMu.
func (fc *FetchCycle) finish(ctx context.Context, result *CycleResult, outcome string) {
	if fc.metrics != nil {
		fc.metrics.CycleFinished(ctx, outcome)
	}
	if outcome == telemetry.OutcomeDiscarded {
		return
	}
	fc.last = *result
}

func (fc *FetchCycle) discard(ctx context.Context, result CycleResult, start time.Time) CycleResult {
	result.Discarded = true
	result.Err = ErrSuperseded
	result.Duration = time.Since(start)
	fc.finish(ctx, &result, telemetry.OutcomeDiscarded)
	util.LogDebug("Discarding results of superseded cycle",
		util.F("cycle_id", result.CycleID), util.F("latest", fc.latest.Load()))
	return result
}

// Discover runs only the discovery phase and refreshes the registry. No
// cycle id is issued, so a cycle in flight is not superseded.
func (fc *FetchCycle) Discover(ctx context.Context) ([]model.Tracker, error) {
	stats, err := fc.discover(ctx)
	if err != nil {
		return nil, err
	}
	fc.applyMu.Lock()
	defer fc.applyMu.Unlock()
	return fc.registry.Refresh(stats), nil
}

// discover merges /stats with /trackers. A transport failure of /stats
// fails the cycle; /trackers is best effort. Malformed bodies count as empty.
func (fc *FetchCycle) discover(ctx context.Context) (model.StatsSet, error) {
	reqCtx, cancel := fc.requestContext(ctx)
	defer cancel()

	stats, err := fc.source.Stats(reqCtx)
	if err != nil && !errors.Is(err, backend.ErrMalformedResponse) {
		return nil, fmt.Errorf("discovery: %w", err)
	}

	serials, err := fc.source.ListTrackers(reqCtx)
	if err != nil && !errors.Is(err, backend.ErrMalformedResponse) {
		util.LogWarn("Tracker list unavailable, using stats only", util.F("error", err.Error()))
	}
	return stats.WithSerials(serials), nil
}

func (fc *FetchCycle) requestContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if fc.timeout > 0 {
		return context.WithTimeout(ctx, fc.timeout)
	}
	return context.WithCancel(ctx)
}

type historyResult struct {
	serial string
	points []model.TrackPoint
	err    error
}

// fetchHistories loads every serial concurrently and gathers all results.
// Failed serials are reported and left out of the returned map.
func (fc *FetchCycle) fetchHistories(ctx context.Context, serials []string) (map[string][]model.TrackPoint, []string) {
	results := make(chan historyResult, len(serials))
	semaphore := make(chan struct{}, fc.concurrency)
	var wg sync.WaitGroup

	for _, serial := range serials {
		wg.Add(1)
		go func(s string) {
			defer wg.Done()

			semaphore <- struct{}{}
			defer func() { <-semaphore }()

			reqCtx, cancel := fc.requestContext(ctx)
			defer cancel()

			pts, err := fc.source.History(reqCtx, s)
			if errors.Is(err, backend.ErrMalformedResponse) {
				pts, err = []model.TrackPoint{}, nil
			}
			results <- historyResult{serial: s, points: pts, err: err}
		}(serial)
	}

	wg.Wait()
	close(results)

	fetched := make(map[string][]model.TrackPoint, len(serials))
	var failed []string
	for r := range results {
		if r.err != nil {
			failed = append(failed, r.serial)
			if fc.metrics != nil {
				fc.metrics.HistoryFailed(ctx, r.serial)
			}
			util.LogWarn("History fetch failed, keeping last-known points",
				util.F("serial", r.serial), util.F("error", r.err.Error()))
			continue
		}
		if r.points == nil {
			r.points = []model.TrackPoint{}
		}
		fetched[r.serial] = r.points
	}
	sort.Strings(failed)
	return fetched, failed
}
