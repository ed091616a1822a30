package model

// DisplayStatus represents the current display state
type DisplayStatus int

const (
	StatusNormal DisplayStatus = iota
	StatusLoading
	StatusRefreshing
	StatusError
)

// InteractionState holds the transient UI state of the watch view
type InteractionState struct {
	IsPaused      bool
	ShowHelp      bool
	Cursor        int // index into the listed trackers
	DisplayStatus DisplayStatus
	StatusMessage string
}
