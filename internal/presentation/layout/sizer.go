package layout

import (
	"os"
	"strings"

	"github.com/mattn/go-runewidth"
	"golang.org/x/term"
)

const (
	DefaultWidth  = 100
	DefaultHeight = 32

	minMapHeight = 6
	maxMapHeight = 40
)

// Sizer splits the terminal between the map and the tracker panel
type Sizer struct {
	Width  int
	Height int
}

// NewSizer creates a sizer for a terminal of the given size
func NewSizer(width, height int) *Sizer {
	return &Sizer{Width: width, Height: height}
}

// DetectSizer measures stdout, falling back to the default size when stdout
// is not a terminal
func DetectSizer() *Sizer {
	width, height, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil || width <= 0 || height <= 0 {
		return NewSizer(DefaultWidth, DefaultHeight)
	}
	return NewSizer(width, height)
}

// displayWidth calculates the display width of s, counting wide runes twice
func (s Sizer) displayWidth(text string) int {
	return runewidth.StringWidth(text)
}

// PadString pads a string to a specific display width
func (s Sizer) PadString(text string, width int, leftAlign bool) string {
	actualWidth := s.displayWidth(text)
	if actualWidth >= width {
		return text
	}

	padding := strings.Repeat(" ", width-actualWidth)
	if leftAlign {
		return text + padding
	}
	return padding + text
}

// MapWidth is the number of map columns inside the frame
func (s Sizer) MapWidth() int {
	if s.Width < 12 {
		return 10
	}
	return s.Width - 2
}

// MapHeight is the number of map rows inside the frame once the panel and
// chrome lines are reserved
func (s Sizer) MapHeight(reservedLines int) int {
	h := s.Height - reservedLines - 2
	if h < minMapHeight {
		return minMapHeight
	}
	if h > maxMapHeight {
		return maxMapHeight
	}
	return h
}

// PanelRows is how many tracker rows fit when the map keeps its minimum
// height
func (s Sizer) PanelRows(chromeLines int) int {
	rows := s.Height - chromeLines - minMapHeight - 2
	if rows < 3 {
		return 3
	}
	return rows
}
