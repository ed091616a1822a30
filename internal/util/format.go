package util

import (
	"fmt"
	"time"
)

// FormatNumber shortens large counts (1.5K, 2.0M)
func FormatNumber(n int) string {
	if n < 1000 {
		return fmt.Sprintf("%d", n)
	} else if n < 1000000 {
		return fmt.Sprintf("%.1fK", float64(n)/1000)
	}
	return fmt.Sprintf("%.1fM", float64(n)/1000000)
}

// FormatAge renders how long ago a unix timestamp was, relative to now
func FormatAge(ts *int64, now time.Time) string {
	if ts == nil {
		return "never"
	}
	d := now.Sub(time.Unix(*ts, 0))
	if d < 0 {
		d = 0
	}

	switch {
	case d < time.Minute:
		return fmt.Sprintf("%ds ago", int(d.Seconds()))
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh %dm ago", int(d.Hours()), int(d.Minutes())%60)
	default:
		return fmt.Sprintf("%dd ago", int(d.Hours())/24)
	}
}

// FormatCoord renders a lat/lng pair with 5 decimals (about 1 m)
func FormatCoord(lat, lng float64) string {
	return fmt.Sprintf("%.5f, %.5f", lat, lng)
}
