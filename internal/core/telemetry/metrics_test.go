package telemetry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricsCounters(t *testing.T) {
	m, err := NewMetrics()
	require.NoError(t, err)
	ctx := context.Background()

	m.CycleStarted(ctx)
	m.CycleStarted(ctx)
	m.CycleStarted(ctx)
	m.CycleFinished(ctx, OutcomeApplied)
	m.CycleFinished(ctx, OutcomeDiscarded)
	m.CycleFinished(ctx, OutcomeFailed)
	m.HistoryFailed(ctx, "T1")

	assert.Equal(t, Snapshot{
		CyclesStarted:   3,
		CyclesApplied:   1,
		CyclesDiscarded: 1,
		CyclesFailed:    1,
		HistoryFailures: 1,
	}, m.Snapshot())
}
