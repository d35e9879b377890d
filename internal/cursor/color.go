package cursor

import (
	"unicode/utf16"

	"github.com/lucasb-eyer/go-colorful"
)

const (
	markerSaturation = 0.75
	markerLightness  = 0.50
)

// Color is the display colour assigned to a collaborator.
type Color struct {
	Hue int // degrees in [0, 360)
	c   colorful.Color
}

// Hex returns the colour as #rrggbb.
func (c Color) Hex() string {
	return c.c.Hex()
}

// RGB returns the 8-bit channels.
func (c Color) RGB() (r, g, b uint8) {
	return c.c.RGB255()
}

// hueFor hashes the UTF-16 code units of name with h = c + (h<<5) - h and
// reduces it to a hue. Only the shift truncates to 32 bits; the sum does not,
// which keeps hues identical to the ones browsers compute for the same name.
func hueFor(name string) int {
	var h int64
	for _, unit := range utf16.Encode([]rune(name)) {
		h = int64(unit) + int64(int32(h)<<5) - h
	}
	hue := int(h % 360)
	if hue < 0 {
		hue += 360
	}
	return hue
}

// ColorFor derives a stable colour from a username.
func ColorFor(name string) Color {
	hue := hueFor(name)
	return Color{
		Hue: hue,
		c:   colorful.Hsl(float64(hue), markerSaturation, markerLightness),
	}
}
