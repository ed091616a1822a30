package formatter

import (
	"fmt"
	"io"
	"strings"

	"github.com/penwyp/go-tracker-monitor/internal/util"
)

// SummaryFormatter prints a short human-readable report of a cycle.
type SummaryFormatter struct{}

// NewSummaryFormatter creates a new instance of SummaryFormatter.
func NewSummaryFormatter() *SummaryFormatter {
	return &SummaryFormatter{}
}

// Format writes totals and the most recent report.
func (f *SummaryFormatter) Format(w io.Writer, report Report) error {
	var totalPoints, hidden, rendered int
	var newest *TrackerRow
	for i := range report.Trackers {
		t := &report.Trackers[i]
		totalPoints += t.Points
		if t.Hidden {
			hidden++
		}
		if t.Rendered {
			rendered++
		}
		if t.Last != nil && (newest == nil || newest.Last == nil || *t.Last > *newest.Last) {
			newest = t
		}
	}

	fmt.Fprintln(w, strings.Repeat("=", 60))
	fmt.Fprintln(w, "Tracker Summary Report")
	fmt.Fprintln(w, strings.Repeat("=", 60))
	fmt.Fprintln(w)
	fmt.Fprintf(w, "Backend: %s\n", report.Backend)
	fmt.Fprintf(w, "Generated: %s\n", util.GetTimeProvider().Format(report.GeneratedAt, timeLayout))
	fmt.Fprintln(w)

	if len(report.Trackers) == 0 {
		fmt.Fprintln(w, "No trackers reported")
		fmt.Fprintln(w)
		fmt.Fprintln(w, strings.Repeat("=", 60))
		return nil
	}

	fmt.Fprintln(w, "Trackers:")
	fmt.Fprintf(w, "  Known: %d\n", len(report.Trackers))
	fmt.Fprintf(w, "  Shown on map: %d\n", rendered)
	fmt.Fprintf(w, "  Hidden: %d\n", hidden)
	fmt.Fprintf(w, "  Total points: %s\n", formatNumber(totalPoints))
	fmt.Fprintln(w)

	if newest != nil {
		fmt.Fprintln(w, "Most recent report:")
		fmt.Fprintf(w, "  %s (%s) at %s\n", newest.Name, newest.Serial,
			util.GetTimeProvider().FormatUnix(newest.Last, timeLayout))
		if newest.Latest != nil {
			fmt.Fprintf(w, "  Position: %s\n", util.FormatCoord(newest.Latest.Lat, newest.Latest.Lng))
		}
		fmt.Fprintln(w)
	}

	if len(report.Failed) > 0 {
		fmt.Fprintf(w, "History unavailable: %s\n", strings.Join(report.Failed, ", "))
		fmt.Fprintln(w)
	}

	fmt.Fprintln(w, strings.Repeat("=", 60))
	return nil
}
