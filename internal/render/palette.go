package render

import (
	"image/color"

	"github.com/lucasb-eyer/go-colorful"
)

// xterm default values for the 16 basic colors.
var basicPalette = [16]color.RGBA{
	{0, 0, 0, 255}, {205, 0, 0, 255}, {0, 205, 0, 255}, {205, 205, 0, 255},
	{0, 0, 238, 255}, {205, 0, 205, 255}, {0, 205, 205, 255}, {229, 229, 229, 255},
	{127, 127, 127, 255}, {255, 0, 0, 255}, {0, 255, 0, 255}, {255, 255, 0, 255},
	{92, 92, 255, 255}, {255, 0, 255, 255}, {0, 255, 255, 255}, {255, 255, 255, 255},
}

type labColor struct {
	l, a, b float64
}

// palette is a fixed set of terminal colors with precomputed Lab values.
type palette struct {
	// offset is the terminal color index of entry 0.
	offset int
	lab    []labColor
}

func newPalette(offset int, colors []color.RGBA) *palette {
	p := &palette{offset: offset, lab: make([]labColor, len(colors))}
	for i, c := range colors {
		l, a, b := colorful.Color{
			R: float64(c.R) / 255,
			G: float64(c.G) / 255,
			B: float64(c.B) / 255,
		}.Lab()
		p.lab[i] = labColor{l, a, b}
	}
	return p
}

// xterm256 covers the 6x6x6 cube and the grayscale ramp (indices 16-255).
// Indices 0-15 follow the user's theme and are excluded.
var xterm256 = func() *palette {
	levels := [6]uint8{0, 95, 135, 175, 215, 255}
	colors := make([]color.RGBA, 0, 240)
	for r := range 6 {
		for g := range 6 {
			for b := range 6 {
				colors = append(colors, color.RGBA{levels[r], levels[g], levels[b], 255})
			}
		}
	}
	for i := range 24 {
		v := uint8(8 + 10*i)
		colors = append(colors, color.RGBA{v, v, v, 255})
	}
	return newPalette(16, colors)
}()

var xterm16 = newPalette(0, basicPalette[:])

// matcher finds the perceptually nearest palette entry. Results are
// memoized per matcher; a matcher is not safe for concurrent use.
type matcher struct {
	p    *palette
	memo map[[3]uint8]int
}

func newMatcher(p *palette) *matcher {
	return &matcher{p: p, memo: make(map[[3]uint8]int)}
}

// nearest returns the terminal color index closest to r, g, b in CIE Lab.
func (m *matcher) nearest(r, g, b uint8) int {
	key := [3]uint8{r, g, b}
	if idx, ok := m.memo[key]; ok {
		return idx
	}

	l, a, bb := colorful.Color{
		R: float64(r) / 255,
		G: float64(g) / 255,
		B: float64(b) / 255,
	}.Lab()

	best, bestDist := 0, -1.0
	for i, c := range m.p.lab {
		dl, da, db := l-c.l, a-c.a, bb-c.b
		d := dl*dl + da*da + db*db
		if bestDist < 0 || d < bestDist {
			best, bestDist = i, d
		}
	}
	idx := m.p.offset + best
	m.memo[key] = idx
	return idx
}
