package tracking

import (
	"sync"
	"time"

	"github.com/penwyp/go-tracker-monitor/internal/core/model"
)

// StateManager manages the watch view state in a thread-safe manner
type StateManager struct {
	mu sync.RWMutex

	// Interaction state
	interactionState model.InteractionState

	// Cycle outcome
	lastDataUpdate time.Time // last applied cycle
	lastError      string
	failedSerials  []string
}

// NewStateManager creates a new StateManager instance
func NewStateManager() *StateManager {
	return &StateManager{}
}

// GetInteractionState returns current interaction state
func (sm *StateManager) GetInteractionState() model.InteractionState {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return sm.interactionState
}

// UpdateInteractionState updates specific fields of interaction state
func (sm *StateManager) UpdateInteractionState(updateFunc func(*model.InteractionState)) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	updateFunc(&sm.interactionState)
}

// SetLoadingState switches between the loading screen and normal display
func (sm *StateManager) SetLoadingState(isLoading bool, message string) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	if isLoading {
		sm.interactionState.DisplayStatus = model.StatusLoading
	} else {
		sm.interactionState.DisplayStatus = model.StatusNormal
	}
	sm.interactionState.StatusMessage = message
}

// SetStatusMessage shows a one-line message in the status bar
func (sm *StateManager) SetStatusMessage(message string) {
	sm.UpdateInteractionState(func(s *model.InteractionState) {
		s.StatusMessage = message
	})
}

// RecordResult stores the outcome of a finished cycle. Superseded cycles
// leave the state untouched.
func (sm *StateManager) RecordResult(result CycleResult, at time.Time) {
	if result.Discarded {
		return
	}

	sm.mu.Lock()
	defer sm.mu.Unlock()

	if sm.interactionState.DisplayStatus == model.StatusLoading || sm.interactionState.DisplayStatus == model.StatusRefreshing {
		sm.interactionState.DisplayStatus = model.StatusNormal
		sm.interactionState.StatusMessage = ""
	}

	if result.Err != nil {
		sm.lastError = result.Err.Error()
		sm.interactionState.DisplayStatus = model.StatusError
		return
	}
	if sm.interactionState.DisplayStatus == model.StatusError {
		sm.interactionState.DisplayStatus = model.StatusNormal
	}
	sm.lastError = ""
	sm.lastDataUpdate = at
	sm.failedSerials = append([]string(nil), result.FailedSerials...)
}

// GetLastDataUpdate returns the time of the last applied cycle
func (sm *StateManager) GetLastDataUpdate() time.Time {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return sm.lastDataUpdate
}

// GetLastError returns the error of the last failed cycle, cleared by the
// next applied one
func (sm *StateManager) GetLastError() string {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return sm.lastError
}

// GetFailedSerials returns the serials whose history failed in the last
// applied cycle
func (sm *StateManager) GetFailedSerials() []string {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return append([]string(nil), sm.failedSerials...)
}

// MoveCursor moves the cursor by delta, clamped to [0, n)
func (sm *StateManager) MoveCursor(delta, n int) {
	sm.UpdateInteractionState(func(s *model.InteractionState) {
		s.Cursor = clampCursor(s.Cursor+delta, n)
	})
}

// ClampCursor keeps the cursor inside a list of n rows
func (sm *StateManager) ClampCursor(n int) {
	sm.MoveCursor(0, n)
}

func clampCursor(cursor, n int) int {
	if cursor >= n {
		cursor = n - 1
	}
	if cursor < 0 {
		cursor = 0
	}
	return cursor
}
