package model

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Tracker is the view-model of one tracked device
type Tracker struct {
	Serial     string `json:"serial"`
	Name       string `json:"name"`
	ColorKey   string `json:"colorKey"`
	Color      string `json:"color"`
	PointCount int    `json:"points"`
	FirstSeen  *int64 `json:"first,omitempty"`
	LastSeen   *int64 `json:"last,omitempty"`
}

// TrackPoint is one reported position
type TrackPoint struct {
	Lat        float64  `json:"lat"`
	Lng        float64  `json:"lng"`
	Timestamp  *int64   `json:"timestamp,omitempty"`
	Confidence *float64 `json:"confidence,omitempty"`
}

// TrackerStats is the per-serial summary reported by the backend
type TrackerStats struct {
	Serial string
	Points int
	First  *int64
	Last   *int64
}

// StatsSet is an ordered serial -> stats mapping. Order follows the keys of
// the JSON object it was decoded from.
type StatsSet []TrackerStats

type statsEntry struct {
	Points *float64 `json:"points"`
	First  *float64 `json:"first"`
	Last   *float64 `json:"last"`
}

func floatToUnix(v *float64) *int64 {
	if v == nil {
		return nil
	}
	ts := int64(*v)
	return &ts
}

// UnmarshalJSON decodes a JSON object keeping its key order. Duplicate keys
// keep their first position and last value.
func (s *StatsSet) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))

	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if tok == nil {
		*s = StatsSet{}
		return nil
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("stats must be a JSON object, got %v", tok)
	}

	out := StatsSet{}
	index := make(map[string]int)
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return err
		}
		serial, ok := keyTok.(string)
		if !ok {
			return fmt.Errorf("unexpected stats key %v", keyTok)
		}

		var entry statsEntry
		if err := dec.Decode(&entry); err != nil {
			return fmt.Errorf("stats for %s: %w", serial, err)
		}

		stats := TrackerStats{
			Serial: serial,
			First:  floatToUnix(entry.First),
			Last:   floatToUnix(entry.Last),
		}
		if entry.Points != nil && *entry.Points > 0 {
			stats.Points = int(*entry.Points)
		}

		if i, dup := index[serial]; dup {
			out[i] = stats
			continue
		}
		index[serial] = len(out)
		out = append(out, stats)
	}

	if _, err := dec.Token(); err != nil {
		return err
	}
	*s = out
	return nil
}

// Serials returns the serials in order
func (s StatsSet) Serials() []string {
	serials := make([]string, len(s))
	for i, st := range s {
		serials[i] = st.Serial
	}
	return serials
}

// Lookup finds the stats for serial
func (s StatsSet) Lookup(serial string) (TrackerStats, bool) {
	for _, st := range s {
		if st.Serial == serial {
			return st, true
		}
	}
	return TrackerStats{}, false
}

// WithSerials appends zero-point entries for serials not yet present
func (s StatsSet) WithSerials(serials []string) StatsSet {
	seen := make(map[string]bool, len(s))
	for _, st := range s {
		seen[st.Serial] = true
	}

	out := make(StatsSet, len(s), len(s)+len(serials))
	copy(out, s)
	for _, serial := range serials {
		if serial == "" || seen[serial] {
			continue
		}
		seen[serial] = true
		out = append(out, TrackerStats{Serial: serial})
	}
	return out
}
