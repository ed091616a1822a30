package layout

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewSizer(t *testing.T) {
	tests := []struct {
		name   string
		width  int
		height int
	}{
		{"standard_terminal", 80, 24},
		{"wide_terminal", 120, 40},
		{"very_small_terminal", 30, 10},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sizer := NewSizer(tt.width, tt.height)
			assert.Equal(t, tt.width, sizer.Width)
			assert.Equal(t, tt.height, sizer.Height)
		})
	}
}

func TestDetectSizerFallsBack(t *testing.T) {
	// go test does not attach stdout to a terminal
	sizer := DetectSizer()
	assert.Greater(t, sizer.Width, 0)
	assert.Greater(t, sizer.Height, 0)
}

func TestPadString(t *testing.T) {
	s := Sizer{}
	assert.Equal(t, "ab  ", s.PadString("ab", 4, true))
	assert.Equal(t, "  ab", s.PadString("ab", 4, false))
	assert.Equal(t, "中文", s.PadString("中文", 4, true), "wide runes count double")
	assert.Equal(t, "toolong", s.PadString("toolong", 3, true))
}

func TestMapDimensions(t *testing.T) {
	s := NewSizer(80, 30)
	assert.Equal(t, 78, s.MapWidth())
	assert.Equal(t, 18, s.MapHeight(10))
	assert.Equal(t, minMapHeight, s.MapHeight(40), "never below the minimum")
	assert.Equal(t, maxMapHeight, NewSizer(80, 200).MapHeight(10))
	assert.Equal(t, 10, NewSizer(5, 30).MapWidth())

	assert.Equal(t, 17, s.PanelRows(5))
	assert.Equal(t, 3, NewSizer(80, 10).PanelRows(5))
}
