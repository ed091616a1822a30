// Package termscreen interprets ANSI terminal output into a grid of cells so
// tests can assert on what a user would see.
package termscreen

import (
	"regexp"
	"strings"
)

var ansiEscape = regexp.MustCompile(`\x1b\[[0-9;?]*[a-zA-Z]`)

// Color is a 24-bit foreground color
type Color struct {
	R, G, B uint8
}

type cell struct {
	ch    rune
	fg    Color
	hasFg bool
}

// Screen is a virtual terminal
type Screen struct {
	rows    int
	cols    int
	buffer  [][]cell
	cursorX int
	cursorY int
	fg      Color
	hasFg   bool
}

// New creates a blank screen
func New(rows, cols int) *Screen {
	s := &Screen{rows: rows, cols: cols, buffer: make([][]cell, rows)}
	for i := range s.buffer {
		s.buffer[i] = blankRow(cols)
	}
	return s
}

func blankRow(cols int) []cell {
	row := make([]cell, cols)
	for j := range row {
		row[j] = cell{ch: ' '}
	}
	return row
}

// StripANSI removes all ANSI escape codes from a string
func StripANSI(s string) string {
	return ansiEscape.ReplaceAllString(s, "")
}

// Parse feeds output into a new screen of the given size
func Parse(output string, rows, cols int) *Screen {
	s := New(rows, cols)
	s.Write(output)
	return s
}

// Write interprets output at the current cursor position
func (s *Screen) Write(output string) {
	runes := []rune(output)
	i := 0
	for i < len(runes) {
		switch {
		case runes[i] == '\x1b' && i+1 < len(runes) && runes[i+1] == '[':
			i = s.handleSequence(runes, i)
		case runes[i] == '\r':
			s.cursorX = 0
			i++
		case runes[i] == '\n':
			s.lineFeed()
			s.cursorX = 0
			i++
		case runes[i] == '\b':
			if s.cursorX > 0 {
				s.cursorX--
			}
			i++
		default:
			s.putChar(runes[i])
			i++
		}
	}
}

// handleSequence processes one CSI sequence and returns the index after it
func (s *Screen) handleSequence(runes []rune, start int) int {
	i := start + 2
	private := false
	if i < len(runes) && runes[i] == '?' {
		private = true
		i++
	}

	params := []int{}
	current := 0
	for i < len(runes) {
		r := runes[i]
		switch {
		case r >= '0' && r <= '9':
			current = current*10 + int(r-'0')
		case r == ';':
			params = append(params, current)
			current = 0
		default:
			params = append(params, current)
			if !private {
				s.handleCommand(r, params)
			}
			return i + 1
		}
		i++
	}
	return i
}

func param(params []int, idx, def int) int {
	if len(params) > idx && params[idx] > 0 {
		return params[idx]
	}
	return def
}

func (s *Screen) handleCommand(cmd rune, params []int) {
	switch cmd {
	case 'H', 'f':
		s.cursorY = clamp(param(params, 0, 1)-1, 0, s.rows-1)
		s.cursorX = clamp(param(params, 1, 1)-1, 0, s.cols-1)
	case 'J':
		switch param(params, 0, 0) {
		case 0:
			s.clearRange(s.cursorY, s.cursorX, s.rows-1, s.cols-1)
		case 1:
			s.clearRange(0, 0, s.cursorY, s.cursorX)
		case 2, 3:
			s.clearRange(0, 0, s.rows-1, s.cols-1)
		}
	case 'K':
		switch param(params, 0, 0) {
		case 0:
			s.clearRange(s.cursorY, s.cursorX, s.cursorY, s.cols-1)
		case 1:
			s.clearRange(s.cursorY, 0, s.cursorY, s.cursorX)
		case 2:
			s.clearRange(s.cursorY, 0, s.cursorY, s.cols-1)
		}
	case 'A':
		s.cursorY = clamp(s.cursorY-param(params, 0, 1), 0, s.rows-1)
	case 'B':
		s.cursorY = clamp(s.cursorY+param(params, 0, 1), 0, s.rows-1)
	case 'C':
		s.cursorX = clamp(s.cursorX+param(params, 0, 1), 0, s.cols-1)
	case 'D':
		s.cursorX = clamp(s.cursorX-param(params, 0, 1), 0, s.cols-1)
	case 'm':
		s.handleSGR(params)
	}
}

// handleSGR tracks the foreground color; other attributes are ignored
func (s *Screen) handleSGR(params []int) {
	for i := 0; i < len(params); i++ {
		switch params[i] {
		case 0, 39:
			s.hasFg = false
		case 38:
			if i+4 < len(params) && params[i+1] == 2 {
				s.fg = Color{uint8(params[i+2]), uint8(params[i+3]), uint8(params[i+4])}
				s.hasFg = true
				i += 4
			}
		}
	}
}

func (s *Screen) putChar(ch rune) {
	if s.cursorX >= s.cols {
		s.cursorX = 0
		s.lineFeed()
	}
	s.buffer[s.cursorY][s.cursorX] = cell{ch: ch, fg: s.fg, hasFg: s.hasFg}
	s.cursorX++
}

func (s *Screen) lineFeed() {
	s.cursorY++
	if s.cursorY >= s.rows {
		copy(s.buffer, s.buffer[1:])
		s.buffer[s.rows-1] = blankRow(s.cols)
		s.cursorY = s.rows - 1
	}
}

// clearRange blanks cells from (r0,c0) to (r1,c1) in reading order
func (s *Screen) clearRange(r0, c0, r1, c1 int) {
	for r := r0; r <= r1; r++ {
		from, to := 0, s.cols-1
		if r == r0 {
			from = c0
		}
		if r == r1 {
			to = c1
		}
		for c := from; c <= to && c < s.cols; c++ {
			s.buffer[r][c] = cell{ch: ' '}
		}
	}
}

// Render returns the screen content with trailing spaces trimmed
func (s *Screen) Render() string {
	lines := make([]string, s.rows)
	for i := range s.buffer {
		lines[i] = s.Line(i)
	}
	return strings.Join(lines, "\n")
}

// Line returns one row with trailing spaces trimmed
func (s *Screen) Line(row int) string {
	if row < 0 || row >= s.rows {
		return ""
	}
	runes := make([]rune, s.cols)
	for j, c := range s.buffer[row] {
		runes[j] = c.ch
	}
	return strings.TrimRight(string(runes), " ")
}

// ContainsText checks if the screen contains text
func (s *Screen) ContainsText(text string) bool {
	return strings.Contains(s.Render(), text)
}

// Find returns the first position of ch, or -1, -1
func (s *Screen) Find(ch rune) (row, col int) {
	for r := range s.buffer {
		for c := range s.buffer[r] {
			if s.buffer[r][c].ch == ch {
				return r, c
			}
		}
	}
	return -1, -1
}

// Count returns how many cells hold ch
func (s *Screen) Count(ch rune) int {
	n := 0
	for r := range s.buffer {
		for c := range s.buffer[r] {
			if s.buffer[r][c].ch == ch {
				n++
			}
		}
	}
	return n
}

// ColorAt returns the foreground color of a cell, if one was set
func (s *Screen) ColorAt(row, col int) (Color, bool) {
	if row < 0 || row >= s.rows || col < 0 || col >= s.cols {
		return Color{}, false
	}
	c := s.buffer[row][col]
	return c.fg, c.hasFg
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
