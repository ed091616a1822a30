package util

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFormatNumber(t *testing.T) {
	tests := []struct {
		name     string
		input    int
		expected string
	}{
		{name: "zero", input: 0, expected: "0"},
		{name: "small number", input: 42, expected: "42"},
		{name: "hundreds", input: 999, expected: "999"},
		{name: "exactly 1000", input: 1000, expected: "1.0K"},
		{name: "thousands", input: 1500, expected: "1.5K"},
		{name: "millions", input: 2500000, expected: "2.5M"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, FormatNumber(tt.input))
		})
	}
}

func TestFormatAge(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	ts := func(offset time.Duration) *int64 {
		v := now.Add(-offset).Unix()
		return &v
	}

	tests := []struct {
		name     string
		ts       *int64
		expected string
	}{
		{name: "nil", ts: nil, expected: "never"},
		{name: "seconds", ts: ts(42 * time.Second), expected: "42s ago"},
		{name: "minutes", ts: ts(5 * time.Minute), expected: "5m ago"},
		{name: "hours", ts: ts(2*time.Hour + 3*time.Minute), expected: "2h 3m ago"},
		{name: "days", ts: ts(72 * time.Hour), expected: "3d ago"},
		{name: "future clamps to zero", ts: ts(-time.Minute), expected: "0s ago"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, FormatAge(tt.ts, now))
		})
	}
}

func TestFormatCoord(t *testing.T) {
	assert.Equal(t, "52.52000, 13.40500", FormatCoord(52.52, 13.405))
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "abc", Truncate("abc", 5))
	assert.Equal(t, "ab…", Truncate("abcdef", 3))
	assert.Equal(t, "", Truncate("abc", 0))
	assert.Equal(t, 4, GetDisplayWidth("漢字"))
}
