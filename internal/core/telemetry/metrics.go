// Package telemetry records fetch cycle counters. Counters are published
// through the global OpenTelemetry meter, which is a no-op unless a
// provider is installed, and mirrored locally for the status line.
package telemetry

import (
	"context"
	"fmt"
	"sync/atomic"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const instrumentationName = "github.com/penwyp/go-tracker-monitor/internal/core/telemetry"

func meter() metric.Meter {
	return otel.Meter(instrumentationName)
}

// Snapshot is a copy of the local counters
type Snapshot struct {
	CyclesStarted   int64
	CyclesApplied   int64
	CyclesDiscarded int64
	CyclesFailed    int64
	HistoryFailures int64
}

// Metrics holds the cycle counters
type Metrics struct {
	started   metric.Int64Counter
	finished  metric.Int64Counter
	histFails metric.Int64Counter

	local struct {
		started, applied, discarded, failed, histFails atomic.Int64
	}
}

// NewMetrics registers the counters on the global meter
func NewMetrics() (*Metrics, error) {
	m := meter()
	metrics := &Metrics{}

	var err error
	metrics.started, err = m.Int64Counter(
		"tracker.cycles.started",
		metric.WithDescription("Fetch cycles started"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating started counter: %w", err)
	}

	metrics.finished, err = m.Int64Counter(
		"tracker.cycles.finished",
		metric.WithDescription("Fetch cycles finished, by outcome"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating finished counter: %w", err)
	}

	metrics.histFails, err = m.Int64Counter(
		"tracker.history.failures",
		metric.WithDescription("Per-tracker history fetches that failed"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating history failure counter: %w", err)
	}

	return metrics, nil
}

// CycleStarted counts a new cycle
func (m *Metrics) CycleStarted(ctx context.Context) {
	m.local.started.Add(1)
	m.started.Add(ctx, 1)
}

// Cycle outcomes
const (
	OutcomeApplied   = "applied"
	OutcomeDiscarded = "discarded"
	OutcomeFailed    = "failed"
)

// CycleFinished counts a finished cycle by outcome
func (m *Metrics) CycleFinished(ctx context.Context, outcome string) {
	switch outcome {
	case OutcomeApplied:
		m.local.applied.Add(1)
	case OutcomeDiscarded:
		m.local.discarded.Add(1)
	case OutcomeFailed:
		m.local.failed.Add(1)
	}
	m.finished.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}

// HistoryFailed counts a failed per-tracker fetch
func (m *Metrics) HistoryFailed(ctx context.Context, serial string) {
	m.local.histFails.Add(1)
	m.histFails.Add(ctx, 1, metric.WithAttributes(attribute.String("serial", serial)))
}

// Snapshot returns the local counters
func (m *Metrics) Snapshot() Snapshot {
	return Snapshot{
		CyclesStarted:   m.local.started.Load(),
		CyclesApplied:   m.local.applied.Load(),
		CyclesDiscarded: m.local.discarded.Load(),
		CyclesFailed:    m.local.failed.Load(),
		HistoryFailures: m.local.histFails.Load(),
	}
}
