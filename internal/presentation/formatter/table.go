package formatter

import (
	"fmt"
	"io"
	"strings"

	"github.com/penwyp/go-tracker-monitor/internal/util"
)

// timeLayout is used for first/last seen columns
const timeLayout = "2006-01-02 15:04:05"

type TableFormatter struct {
	headers []string
}

func NewTableFormatter() *TableFormatter {
	return &TableFormatter{
		headers: []string{"Serial", "Name", "Color", "Points", "Last Seen", "Latest Position", "State"},
	}
}

func (f *TableFormatter) Format(w io.Writer, report Report) error {
	rows := make([][]string, 0, len(report.Trackers))
	for _, t := range report.Trackers {
		rows = append(rows, f.rowValues(t))
	}

	total := 0
	for _, t := range report.Trackers {
		total += t.Points
	}
	totalRow := make([]string, len(f.headers))
	totalRow[0] = "Total"
	totalRow[1] = fmt.Sprintf("%d trackers", len(report.Trackers))
	totalRow[3] = formatNumber(total)

	widths := f.calculateColumnWidths(append(rows, totalRow))

	f.printBorder(w, widths, "top")
	f.printRow(w, f.headers, widths)
	f.printBorder(w, widths, "middle")
	for _, row := range rows {
		f.printRow(w, row, widths)
	}
	f.printBorder(w, widths, "middle")
	f.printRow(w, totalRow, widths)
	f.printBorder(w, widths, "bottom")

	if len(report.Failed) > 0 {
		fmt.Fprintf(w, "History unavailable for: %s\n", strings.Join(report.Failed, ", "))
	}
	return nil
}

func (f *TableFormatter) rowValues(t TrackerRow) []string {
	position := "-"
	if t.Latest != nil {
		position = util.FormatCoord(t.Latest.Lat, t.Latest.Lng)
	}

	var state []string
	switch {
	case t.Hidden:
		state = append(state, "hidden")
	case t.Rendered:
		state = append(state, "shown")
	default:
		state = append(state, "not shown")
	}
	if t.Failed {
		state = append(state, "stale")
	}

	return []string{
		t.Serial,
		t.Name,
		t.Color,
		formatNumber(t.Points),
		util.GetTimeProvider().FormatUnix(t.Last, timeLayout),
		position,
		strings.Join(state, ", "),
	}
}

// calculateColumnWidths determines optimal width for each column based on content
func (f *TableFormatter) calculateColumnWidths(rows [][]string) []int {
	widths := make([]int, len(f.headers))
	for i, header := range f.headers {
		widths[i] = util.GetDisplayWidth(header)
	}
	for _, row := range rows {
		for i, value := range row {
			if w := util.GetDisplayWidth(value); w > widths[i] {
				widths[i] = w
			}
		}
	}
	return widths
}

// printBorder prints table borders (top, middle, bottom)
func (f *TableFormatter) printBorder(w io.Writer, widths []int, borderType string) {
	var left, middle, right string
	switch borderType {
	case "top":
		left, middle, right = "┌", "┬", "┐"
	case "middle":
		left, middle, right = "├", "┼", "┤"
	case "bottom":
		left, middle, right = "└", "┴", "┘"
	}

	var b strings.Builder
	b.WriteString(left)
	for i, width := range widths {
		b.WriteString(strings.Repeat("─", width+2))
		if i < len(widths)-1 {
			b.WriteString(middle)
		}
	}
	b.WriteString(right)
	fmt.Fprintln(w, b.String())
}

// printRow prints a row; the points column is right-aligned
func (f *TableFormatter) printRow(w io.Writer, values []string, widths []int) {
	var b strings.Builder
	b.WriteString("│")
	for i, value := range values {
		pad := strings.Repeat(" ", widths[i]-util.GetDisplayWidth(value))
		if i == 3 {
			b.WriteString(" " + pad + value + " │")
		} else {
			b.WriteString(" " + value + pad + " │")
		}
	}
	fmt.Fprintln(w, b.String())
}

func formatNumber(n int) string {
	s := fmt.Sprintf("%d", n)
	if len(s) <= 3 {
		return s
	}

	var result []byte
	for i, digit := range []byte(s) {
		if i > 0 && (len(s)-i)%3 == 0 {
			result = append(result, ',')
		}
		result = append(result, digit)
	}

	return string(result)
}
