package display

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/penwyp/go-tracker-monitor/internal/core/color"
	"github.com/penwyp/go-tracker-monitor/internal/core/model"
	"github.com/penwyp/go-tracker-monitor/internal/presentation/interaction"
	"github.com/penwyp/go-tracker-monitor/internal/presentation/layout"
	"github.com/penwyp/go-tracker-monitor/internal/util"
)

// chrome counts the lines around the map and panel: title, status and hint
// plus one spare so the last line never scrolls
const chrome = 4

const (
	eraseToEOL = "\033[K"
	eraseBelow = "\033[J"
)

// TerminalDisplay draws the live map and tracker panel
type TerminalDisplay struct {
	mu                sync.Mutex
	out               io.Writer
	canvas            *Canvas
	sizer             func() *layout.Sizer
	inAlternateScreen bool
}

// NewTerminalDisplay creates a display writing to stdout
func NewTerminalDisplay() *TerminalDisplay {
	return NewTerminalDisplayTo(os.Stdout, layout.DetectSizer)
}

// NewTerminalDisplayTo creates a display with an explicit writer and size
// source
func NewTerminalDisplayTo(out io.Writer, sizer func() *layout.Sizer) *TerminalDisplay {
	return &TerminalDisplay{
		out:    out,
		canvas: NewCanvas(),
		sizer:  sizer,
	}
}

// Canvas returns the map surface layers are drawn onto
func (td *TerminalDisplay) Canvas() *Canvas {
	return td.canvas
}

// EnterAlternateScreen switches to alternate screen buffer
func (td *TerminalDisplay) EnterAlternateScreen() {
	td.mu.Lock()
	defer td.mu.Unlock()

	if !td.inAlternateScreen {
		fmt.Fprint(td.out, util.EnterAltScreen, util.ClearScreen, util.ClearScrollback,
			util.ResetScrollRegion, util.HideCursor, util.MoveCursorHome)
		td.inAlternateScreen = true
	}
}

// ExitAlternateScreen returns to normal screen buffer
func (td *TerminalDisplay) ExitAlternateScreen() {
	td.mu.Lock()
	defer td.mu.Unlock()

	if td.inAlternateScreen {
		fmt.Fprint(td.out, util.ClearScreen, util.MoveCursorHome, util.ShowCursor, util.ExitAltScreen)
		td.inAlternateScreen = false
	}
}

// ClearScreen clears the screen
func (td *TerminalDisplay) ClearScreen() {
	td.mu.Lock()
	defer td.mu.Unlock()
	fmt.Fprint(td.out, util.ClearScreen, util.MoveCursorHome)
}

// Draw renders one frame
func (td *TerminalDisplay) Draw(view View) {
	td.mu.Lock()
	defer td.mu.Unlock()

	var b strings.Builder
	b.WriteString(util.MoveCursorHome)
	for _, line := range td.frame(view) {
		b.WriteString(line)
		b.WriteString(eraseToEOL)
		b.WriteString("\r\n")
	}
	b.WriteString(eraseBelow)
	fmt.Fprint(td.out, b.String())
}

// frame builds the lines of one frame
func (td *TerminalDisplay) frame(view View) []string {
	sizer := td.sizer()
	if view.State.ShowHelp {
		return td.helpLines(sizer)
	}
	if view.State.DisplayStatus == model.StatusLoading {
		return []string{
			util.ColorBold + "go-tracker-monitor" + util.ColorReset,
			"",
			util.ColorCyan + "⏳ " + nonEmpty(view.State.StatusMessage, "Loading trackers...") + util.ColorReset,
		}
	}

	panelRows := len(view.Rows)
	if panelRows == 0 {
		panelRows = 1
	}
	if max := sizer.PanelRows(chrome); panelRows > max {
		panelRows = max
	}

	lines := make([]string, 0, sizer.Height)
	lines = append(lines, td.titleLine(view))

	mapWidth := sizer.MapWidth()
	mapHeight := sizer.MapHeight(chrome + panelRows)
	lines = append(lines, "┌"+strings.Repeat("─", mapWidth)+"┐")
	for _, row := range td.canvas.RenderLines(mapWidth, mapHeight) {
		lines = append(lines, "│"+row+"│")
	}
	lines = append(lines, "└"+strings.Repeat("─", mapWidth)+"┘")

	lines = append(lines, td.panelLines(view, sizer, panelRows)...)
	lines = append(lines, td.statusLine(view))
	if hint := hintLine(view); hint != "" {
		lines = append(lines, hint)
	}
	return lines
}

func (td *TerminalDisplay) titleLine(view View) string {
	title := util.ColorBold + "go-tracker-monitor" + util.ColorReset
	right := fmt.Sprintf("%s  every %s", view.BackendURL, view.Interval)
	if view.State.IsPaused {
		right = util.ColorRed + "PAUSED" + util.ColorReset + "  " + right
	}
	if view.State.DisplayStatus == model.StatusRefreshing {
		right = util.ColorCyan + "⟳" + util.ColorReset + " " + right
	}
	return title + "  " + right
}

// panelLines lists the trackers with their visibility, selection and
// isolation markers; the cursor row is kept in view
func (td *TerminalDisplay) panelLines(view View, sizer *layout.Sizer, maxRows int) []string {
	if len(view.Rows) == 0 {
		return []string{util.ColorDim + "No trackers reported yet" + util.ColorReset}
	}

	start := 0
	if view.State.Cursor >= maxRows {
		start = view.State.Cursor - maxRows + 1
	}
	end := start + maxRows
	if end > len(view.Rows) {
		end = len(view.Rows)
	}

	nameWidth := 24
	now := renderedAt(view)
	lines := make([]string, 0, end-start)
	for i := start; i < end; i++ {
		row := view.Rows[i]
		t := row.Tracker

		cursor := "  "
		if i == view.State.Cursor {
			cursor = "▸ "
		}
		check := "[ ]"
		if row.Visible {
			check = "[x]"
		}
		mark := " "
		switch {
		case row.Isolated:
			mark = "◆"
		case row.Selected:
			mark = "*"
		}

		rgb := color.FromKey(t.ColorKey).RGB()
		swatch := util.TrueColor(rgb.R, rgb.G, rgb.B) + string(GlyphLatest) + util.ColorReset

		label := t.Name
		if t.Name != t.Serial {
			label = fmt.Sprintf("%s (%s)", t.Name, t.Serial)
		}
		label = sizer.PadString(util.Truncate(label, nameWidth), nameWidth, true)

		detail := fmt.Sprintf("%5s pts", util.FormatNumber(t.PointCount))
		if row.Latest != nil {
			detail += "  " + util.FormatCoord(row.Latest.Lat, row.Latest.Lng)
			detail += "  " + util.FormatAge(row.Latest.Timestamp, now)
		} else {
			detail += "  last " + util.FormatAge(t.LastSeen, now)
		}

		line := fmt.Sprintf("%s%s %s %s %s  %s", cursor, check, mark, swatch, label, detail)
		if !row.Eligible {
			line = util.ColorDim + line + util.ColorReset
		}
		lines = append(lines, line)
	}
	return lines
}

func (td *TerminalDisplay) statusLine(view View) string {
	parts := []string{fmt.Sprintf("cycle %d", view.CycleID)}
	if !view.LastUpdate.IsZero() {
		parts = append(parts, "updated "+util.GetTimeProvider().Format(view.LastUpdate, "15:04:05"))
	}
	parts = append(parts, fmt.Sprintf("applied %d discarded %d", view.Metrics.CyclesApplied, view.Metrics.CyclesDiscarded))
	if view.Isolating {
		parts = append(parts, util.ColorCyan+"isolated"+util.ColorReset)
	}
	if len(view.FailedSerials) > 0 {
		parts = append(parts, util.ColorRed+"stale: "+strings.Join(view.FailedSerials, ",")+util.ColorReset)
	}
	if view.LastError != "" {
		parts = append(parts, util.ColorRed+view.LastError+util.ColorReset)
	}
	if view.State.StatusMessage != "" {
		parts = append(parts, view.State.StatusMessage)
	}
	return util.ColorDim + strings.Join(parts, " · ") + util.ColorReset
}

// hintLine offers the restore action only while trackers are hidden
func hintLine(view View) string {
	hint := "h help · q quit"
	if view.HiddenCount > 0 {
		hint = fmt.Sprintf("a show all trackers (%d hidden) · %s", view.HiddenCount, hint)
	}
	return util.ColorDim + hint + util.ColorReset
}

func (td *TerminalDisplay) helpLines(sizer *layout.Sizer) []string {
	lines := []string{util.ColorBold + "Keys" + util.ColorReset, ""}
	for _, b := range interaction.Bindings {
		lines = append(lines, "  "+sizer.PadString(b.Keys, 10, true)+b.Description)
	}
	lines = append(lines, "", util.ColorDim+"Press h or Esc to close"+util.ColorReset)
	return lines
}

func nonEmpty(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}

// renderedAt is the reference time for relative ages
func renderedAt(view View) time.Time {
	if view.Now.IsZero() {
		return time.Now()
	}
	return view.Now
}
