package render

import (
	"bytes"
	"image"
	"image/color"

	"github.com/charmbracelet/x/ansi"

	"github.com/llehouerou/ptui/internal/config"
)

// ColorMode selects the SGR color encoding used by cell renderers.
type ColorMode int

const (
	ColorFull ColorMode = iota // 24-bit
	Color256                   // xterm 256-color palette
	Color16                    // basic 16 colors
)

// ParseColorMode maps converter.chafa.colors to a ColorMode.
func ParseColorMode(s string) ColorMode {
	switch s {
	case "256":
		return Color256
	case "16":
		return Color16
	default:
		return ColorFull
	}
}

const (
	upperHalfBlock = "▀"
	appleTerminal  = "Apple_Terminal"
)

// symbolRamp is ordered from sparse to dense.
var symbolRamp = []string{"░", "▒", "▓", "█"}

// ANSIRenderer draws two pixels per cell with the upper half block: the
// foreground paints the top pixel and the background the bottom one. In
// symbols mode each cell is one pixel drawn with a shade glyph.
type ANSIRenderer struct {
	mode    ColorMode
	symbols bool
}

// NewANSIRenderer configures the renderer from the chafa settings.
// macOS Terminal.app cannot display 24-bit color, so full color is
// downgraded to 256 there.
func NewANSIRenderer(cfg config.ChafaConfig, termProgram string) *ANSIRenderer {
	mode := ParseColorMode(cfg.Colors)
	if mode == ColorFull && termProgram == appleTerminal {
		mode = Color256
	}
	return &ANSIRenderer{mode: mode, symbols: cfg.Format == "symbols"}
}

func (r *ANSIRenderer) Name() Backend             { return BackendANSI }
func (r *ANSIRenderer) Supported() bool           { return true }
func (r *ANSIRenderer) SupportsTransitions() bool { return true }

// Mode returns the effective color mode.
func (r *ANSIRenderer) Mode() ColorMode { return r.mode }

func (r *ANSIRenderer) TargetPixels(cols, rows int) (int, int) {
	return cols, 2 * rows
}

func (r *ANSIRenderer) Render(img image.Image, cols, rows int) ([]byte, error) {
	b := img.Bounds()
	c, rr := Fit(b.Dx(), b.Dy(), cols, rows)
	if c == 0 {
		return nil, nil
	}

	enc := newColorEncoder(r.mode)
	var buf bytes.Buffer
	if r.symbols {
		pix := toNRGBA(img, c, rr)
		r.renderSymbols(&buf, pix, enc)
	} else {
		pix := toNRGBA(img, c, 2*rr)
		r.renderHalfBlocks(&buf, pix, enc)
	}
	return buf.Bytes(), nil
}

func (r *ANSIRenderer) renderHalfBlocks(buf *bytes.Buffer, pix *image.NRGBA, enc *colorEncoder) {
	w, h := pix.Rect.Dx(), pix.Rect.Dy()
	for y := 0; y < h; y += 2 {
		var prev string
		for x := range w {
			top := opaque(pix.NRGBAAt(x, y))
			bottom := opaque(pix.NRGBAAt(x, y+1))
			seq := ansi.Style{}.
				ForegroundColor(enc.color(top)).
				BackgroundColor(enc.color(bottom)).
				String()
			if seq != prev {
				buf.WriteString(seq)
				prev = seq
			}
			buf.WriteString(upperHalfBlock)
		}
		buf.WriteString(ansi.ResetStyle)
		if y+2 < h {
			buf.WriteByte('\n')
		}
	}
}

func (r *ANSIRenderer) renderSymbols(buf *bytes.Buffer, pix *image.NRGBA, enc *colorEncoder) {
	w, h := pix.Rect.Dx(), pix.Rect.Dy()
	for y := range h {
		var prev string
		for x := range w {
			c := opaque(pix.NRGBAAt(x, y))
			seq := ansi.Style{}.ForegroundColor(enc.color(c)).String()
			if seq != prev {
				buf.WriteString(seq)
				prev = seq
			}
			idx := int(luminance(c)*float64(len(symbolRamp)-1) + 0.5)
			buf.WriteString(symbolRamp[idx])
		}
		buf.WriteString(ansi.ResetStyle)
		if y+1 < h {
			buf.WriteByte('\n')
		}
	}
}

// colorEncoder maps pixels to SGR colors for a color mode.
type colorEncoder struct {
	mode ColorMode
	m    *matcher
}

func newColorEncoder(mode ColorMode) *colorEncoder {
	e := &colorEncoder{mode: mode}
	switch mode {
	case Color256:
		e.m = newMatcher(xterm256)
	case Color16:
		e.m = newMatcher(xterm16)
	}
	return e
}

func (e *colorEncoder) color(c color.RGBA) ansi.Color {
	switch e.mode {
	case Color256:
		return ansi.ExtendedColor(e.m.nearest(c.R, c.G, c.B))
	case Color16:
		return ansi.BasicColor(e.m.nearest(c.R, c.G, c.B))
	default:
		return c
	}
}

// opaque composites c over black.
func opaque(c color.NRGBA) color.RGBA {
	if c.A == 255 {
		return color.RGBA{c.R, c.G, c.B, 255}
	}
	a := uint16(c.A)
	return color.RGBA{
		R: uint8(uint16(c.R) * a / 255),
		G: uint8(uint16(c.G) * a / 255),
		B: uint8(uint16(c.B) * a / 255),
		A: 255,
	}
}

// luminance returns the Rec. 709 relative luminance of c in [0, 1].
func luminance(c color.RGBA) float64 {
	return (0.2126*float64(c.R) + 0.7152*float64(c.G) + 0.0722*float64(c.B)) / 255
}
