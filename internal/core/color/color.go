// Package color derives stable display colors for trackers.
//
// A tracker owns an opaque color key that is generated once and persisted.
// The color itself is never stored: it is recomputed from the key with a
// polynomial rolling hash with a 32-bit shift over the key's UTF-16 code units, so the
// same key yields the same hue in any process or language that implements
// the same hash.
package color

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"math"
	"strconv"
	"time"
	"unicode/utf16"

	"github.com/google/uuid"
)

const (
	Saturation = 70
	Lightness  = 50
)

// HSL is a color in hue/saturation/lightness space. Saturation and
// lightness are percentages.
type HSL struct {
	H int
	S int
	L int
}

// RGB is a 24-bit color
type RGB struct {
	R, G, B uint8
}

// Hash is the rolling hash h = c + ((h<<5) - h). Only the shift is done in
// 32 bits, the accumulator itself does not wrap.
func Hash(key string) int64 {
	var h int64
	for _, c := range utf16.Encode([]rune(key)) {
		h = int64(c) + int64(int32(h)<<5) - h
	}
	return h
}

// Hue maps a key to a hue in [0, 360)
func Hue(key string) int {
	h := Hash(key)
	if h < 0 {
		h = -h
	}
	return int(h % 360)
}

// FromKey returns the display color for a color key
func FromKey(key string) HSL {
	return HSL{H: Hue(key), S: Saturation, L: Lightness}
}

// String renders the CSS form, e.g. "hsl(212, 70%, 50%)"
func (c HSL) String() string {
	return fmt.Sprintf("hsl(%d, %d%%, %d%%)", c.H, c.S, c.L)
}

// RGB converts to 24-bit RGB
func (c HSL) RGB() RGB {
	h := float64(((c.H%360)+360)%360) / 360
	s := float64(c.S) / 100
	l := float64(c.L) / 100

	if s == 0 {
		v := uint8(math.Round(l * 255))
		return RGB{v, v, v}
	}

	var q float64
	if l < 0.5 {
		q = l * (1 + s)
	} else {
		q = l + s - l*s
	}
	p := 2*l - q

	return RGB{
		R: uint8(math.Round(hueToChannel(p, q, h+1.0/3) * 255)),
		G: uint8(math.Round(hueToChannel(p, q, h) * 255)),
		B: uint8(math.Round(hueToChannel(p, q, h-1.0/3) * 255)),
	}
}

func hueToChannel(p, q, t float64) float64 {
	if t < 0 {
		t++
	}
	if t > 1 {
		t--
	}
	switch {
	case t < 1.0/6:
		return p + (q-p)*6*t
	case t < 0.5:
		return q
	case t < 2.0/3:
		return p + (q-p)*(2.0/3-t)*6
	default:
		return p
	}
}

// Hex renders "#rrggbb"
func (c RGB) Hex() string {
	return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)
}

// NewKey generates a fresh color key: a UUIDv7, whose leading bits are the
// millisecond timestamp followed by random bits. Keys only need to be
// visually distinct, not unique.
func NewKey() string {
	if id, err := uuid.NewV7(); err == nil {
		return id.String()
	}

	suffix := make([]byte, 6)
	_, _ = rand.Read(suffix)
	return strconv.FormatInt(time.Now().UnixMilli(), 36) + "-" + hex.EncodeToString(suffix)
}
