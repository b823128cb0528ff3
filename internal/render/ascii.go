package render

import (
	"bytes"
	"image"
	"image/color"

	"github.com/charmbracelet/x/ansi"

	"github.com/llehouerou/ptui/internal/config"
)

// DefaultRamp is ordered from darkest to brightest.
const DefaultRamp = " .:-=+*#%@"

// 4x4 Bayer threshold matrix.
var bayer4 = [4][4]float64{
	{0, 8, 2, 10},
	{12, 4, 14, 6},
	{3, 11, 1, 9},
	{15, 7, 13, 5},
}

// ASCIIRenderer maps pixel luminance to characters of a ramp, one pixel per
// cell.
type ASCIIRenderer struct {
	ramp   []rune
	colors bool
	dither string
}

// NewASCIIRenderer configures the renderer from the jp2a settings.
func NewASCIIRenderer(cfg config.Jp2aConfig) *ASCIIRenderer {
	ramp := []rune(DefaultRamp)
	if cfg.Chars != nil && *cfg.Chars != "" {
		ramp = []rune(*cfg.Chars)
	}
	if cfg.Invert {
		rev := make([]rune, len(ramp))
		for i, r := range ramp {
			rev[len(ramp)-1-i] = r
		}
		ramp = rev
	}
	return &ASCIIRenderer{ramp: ramp, colors: cfg.Colors, dither: cfg.Dither}
}

func (r *ASCIIRenderer) Name() Backend             { return BackendASCII }
func (r *ASCIIRenderer) Supported() bool           { return true }
func (r *ASCIIRenderer) SupportsTransitions() bool { return true }

// TargetPixels allows two source rows per cell so the box average in Render
// has data to work with.
func (r *ASCIIRenderer) TargetPixels(cols, rows int) (int, int) {
	return cols, 2 * rows
}

func (r *ASCIIRenderer) Render(img image.Image, cols, rows int) ([]byte, error) {
	b := img.Bounds()
	c, rr := Fit(b.Dx(), b.Dy(), cols, rows)
	if c == 0 {
		return nil, nil
	}

	pix := toNRGBA(img, c, rr)
	idx := r.quantize(pix)

	var buf bytes.Buffer
	for y := range rr {
		var prev string
		for x := range c {
			if r.colors {
				px := opaque(pix.NRGBAAt(x, y))
				seq := ansi.Style{}.ForegroundColor(color.RGBA{px.R, px.G, px.B, 255}).String()
				if seq != prev {
					buf.WriteString(seq)
					prev = seq
				}
			}
			buf.WriteRune(r.ramp[idx[y*c+x]])
		}
		if r.colors {
			buf.WriteString(ansi.ResetStyle)
		}
		if y+1 < rr {
			buf.WriteByte('\n')
		}
	}
	return buf.Bytes(), nil
}

// quantize returns a ramp index per pixel, row-major.
func (r *ASCIIRenderer) quantize(pix *image.NRGBA) []int {
	w, h := pix.Rect.Dx(), pix.Rect.Dy()
	levels := len(r.ramp) - 1
	out := make([]int, w*h)

	lum := make([]float64, w*h)
	for y := range h {
		for x := range w {
			lum[y*w+x] = luminance(opaque(pix.NRGBAAt(x, y)))
		}
	}

	if levels <= 0 {
		return out
	}

	step := 1 / float64(levels)
	switch r.dither {
	case "floyd":
		for y := range h {
			for x := range w {
				i := y*w + x
				old := clampUnit(lum[i])
				q := int(old*float64(levels) + 0.5)
				out[i] = q
				e := old - float64(q)*step
				if x+1 < w {
					lum[i+1] += e * 7 / 16
				}
				if y+1 < h {
					if x > 0 {
						lum[i+w-1] += e * 3 / 16
					}
					lum[i+w] += e * 5 / 16
					if x+1 < w {
						lum[i+w+1] += e * 1 / 16
					}
				}
			}
		}
	case "ordered":
		for y := range h {
			for x := range w {
				i := y*w + x
				t := (bayer4[y%4][x%4]+0.5)/16 - 0.5
				v := clampUnit(lum[i] + t*step)
				out[i] = int(v*float64(levels) + 0.5)
			}
		}
	default:
		for i, l := range lum {
			out[i] = int(clampUnit(l)*float64(levels) + 0.5)
		}
	}
	return out
}

func clampUnit(v float64) float64 {
	return max(0, min(v, 1))
}
