package interaction

// Action is a watch-view command bound to a key
type Action int

const (
	ActionNone Action = iota
	ActionQuit
	ActionCursorUp
	ActionCursorDown
	ActionToggleVisible
	ActionToggleSelect
	ActionIsolate
	ActionClearIsolation
	ActionHide
	ActionRestoreAll
	ActionRefresh
	ActionPause
	ActionHelp
	ActionCloseHelp
	ActionFit
)

// Binding documents one key for the help screen
type Binding struct {
	Keys        string
	Description string
}

// Bindings lists the watch-view keys in help order
var Bindings = []Binding{
	{"↑/↓ j/k", "Move cursor"},
	{"space", "Show or hide tracker on the map"},
	{"s", "Select tracker for isolation"},
	{"i", "Show only selected trackers"},
	{"c", "Clear isolation, show all"},
	{"x", "Hide tracker from the list"},
	{"a", "Show all hidden trackers"},
	{"f", "Fit map to rendered points"},
	{"r", "Refresh now"},
	{"p", "Pause / resume"},
	{"h", "Toggle help"},
	{"q/Esc", "Quit"},
}

// ActionFor maps a key event to an action. helpShown makes Esc close the
// help screen instead of quitting.
func ActionFor(event KeyEvent, helpShown bool) Action {
	switch event.Type {
	case KeyUp:
		return ActionCursorUp
	case KeyDown:
		return ActionCursorDown
	case KeyEnter:
		return ActionToggleVisible
	case KeyEscape:
		if helpShown {
			return ActionCloseHelp
		}
		return ActionQuit
	}

	switch event.Key {
	case 'q', 'Q', 3:
		return ActionQuit
	case 'k', 'K':
		return ActionCursorUp
	case 'j', 'J':
		return ActionCursorDown
	case ' ':
		return ActionToggleVisible
	case 's', 'S':
		return ActionToggleSelect
	case 'i', 'I':
		return ActionIsolate
	case 'c', 'C':
		return ActionClearIsolation
	case 'x', 'X':
		return ActionHide
	case 'a', 'A':
		return ActionRestoreAll
	case 'f', 'F':
		return ActionFit
	case 'r', 'R':
		return ActionRefresh
	case 'p', 'P':
		return ActionPause
	case 'h', 'H', '?':
		return ActionHelp
	}
	return ActionNone
}
