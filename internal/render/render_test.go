package render

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/png"
	"strconv"
	"strings"
	"testing"

	"github.com/charmbracelet/x/ansi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/llehouerou/ptui/internal/config"
)

func solid(w, h int, c color.Color) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := range h {
		for x := range w {
			img.Set(x, y, c)
		}
	}
	return img
}

func gradient(w, h int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := range h {
		for x := range w {
			v := uint8(x * 255 / max(w-1, 1))
			img.SetNRGBA(x, y, color.NRGBA{v, v, v, 255})
		}
	}
	return img
}

func TestFit(t *testing.T) {
	tests := []struct {
		name             string
		srcW, srcH       int
		cols, rows       int
		wantCols, wantRs int
	}{
		{"square in wide box", 100, 100, 80, 24, 48, 24},
		{"wide image", 200, 100, 40, 40, 40, 10},
		{"exact half-cell ratio", 80, 48, 80, 24, 80, 24},
		{"tall image", 100, 400, 80, 24, 12, 24},
		{"tiny", 1, 1, 10, 10, 10, 5},
		{"zero box", 100, 100, 0, 10, 0, 0},
		{"zero image", 0, 100, 10, 10, 0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, r := Fit(tt.srcW, tt.srcH, tt.cols, tt.rows)
			assert.Equal(t, tt.wantCols, c, "cols")
			assert.Equal(t, tt.wantRs, r, "rows")
			assert.LessOrEqual(t, c, tt.cols)
			assert.LessOrEqual(t, r, tt.rows)
		})
	}
}

func TestANSIRenderer_HalfBlocks(t *testing.T) {
	r := NewANSIRenderer(config.ChafaConfig{Format: "ansi", Colors: "full"}, "")

	out, err := r.Render(solid(8, 8, color.RGBA{255, 0, 0, 255}), 4, 2)
	require.NoError(t, err)

	s := string(out)
	lines := strings.Split(s, "\n")
	require.Len(t, lines, 2)
	for _, line := range lines {
		assert.Equal(t, 4, strings.Count(line, upperHalfBlock))
		assert.True(t, strings.HasSuffix(line, ansi.ResetStyle))
		// Identical cells share one SGR sequence.
		assert.Equal(t, 1, strings.Count(line, "38;2;255;0;0"))
	}
	assert.Equal(t, 4, ansi.StringWidth(lines[0]))
}

func TestANSIRenderer_ColorModes(t *testing.T) {
	red := solid(2, 2, color.RGBA{255, 0, 0, 255})

	tests := []struct {
		colors      string
		termProgram string
		want        ColorMode
		contains    string
	}{
		{"full", "", ColorFull, "38;2;255;0;0"},
		{"256", "", Color256, "38;5;196"},
		{"full", "Apple_Terminal", Color256, "38;5;196"},
		{"16", "", Color16, ""},
	}
	for _, tt := range tests {
		t.Run(tt.colors+"/"+tt.termProgram, func(t *testing.T) {
			r := NewANSIRenderer(config.ChafaConfig{Format: "ansi", Colors: tt.colors}, tt.termProgram)
			assert.Equal(t, tt.want, r.Mode())

			out, err := r.Render(red, 1, 1)
			require.NoError(t, err)
			if tt.contains != "" {
				assert.Contains(t, string(out), tt.contains)
			}
			if tt.want != ColorFull {
				assert.NotContains(t, string(out), "38;2;")
			}
		})
	}
}

func TestANSIRenderer_Symbols(t *testing.T) {
	r := NewANSIRenderer(config.ChafaConfig{Format: "symbols", Colors: "full"}, "")

	out, err := r.Render(solid(4, 4, color.White), 2, 1)
	require.NoError(t, err)
	assert.Equal(t, 2, strings.Count(string(out), "█"))
	assert.NotContains(t, string(out), upperHalfBlock)
}

func TestANSIRenderer_EmptyBox(t *testing.T) {
	r := NewANSIRenderer(config.ChafaConfig{Format: "ansi", Colors: "full"}, "")
	out, err := r.Render(solid(4, 4, color.White), 0, 0)
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestASCIIRenderer_Ramp(t *testing.T) {
	r := NewASCIIRenderer(config.Jp2aConfig{Dither: "none"})

	out, err := r.Render(solid(4, 4, color.White), 2, 1)
	require.NoError(t, err)
	assert.Equal(t, "@@", string(out))

	out, err = r.Render(solid(4, 4, color.Black), 2, 1)
	require.NoError(t, err)
	assert.Equal(t, "  ", string(out))
}

func TestASCIIRenderer_InvertAndChars(t *testing.T) {
	chars := "ab"
	r := NewASCIIRenderer(config.Jp2aConfig{Invert: true, Chars: &chars, Dither: "none"})

	out, err := r.Render(solid(2, 2, color.White), 1, 1)
	require.NoError(t, err)
	assert.Equal(t, "a", string(out))
}

func TestASCIIRenderer_Colors(t *testing.T) {
	r := NewASCIIRenderer(config.Jp2aConfig{Colors: true, Dither: "none"})

	out, err := r.Render(solid(4, 4, color.RGBA{0, 255, 0, 255}), 2, 1)
	require.NoError(t, err)
	assert.Contains(t, string(out), "38;2;0;255;0")
	assert.True(t, strings.HasSuffix(string(out), ansi.ResetStyle))
}

func TestASCIIRenderer_Dither(t *testing.T) {
	img := gradient(64, 32)
	for _, d := range []string{"none", "floyd", "ordered"} {
		t.Run(d, func(t *testing.T) {
			r := NewASCIIRenderer(config.Jp2aConfig{Dither: d})
			out, err := r.Render(img, 32, 8)
			require.NoError(t, err)

			lines := strings.Split(string(out), "\n")
			require.Len(t, lines, 8)
			for _, line := range lines {
				assert.Len(t, []rune(line), 32)
				for _, ch := range line {
					assert.Contains(t, DefaultRamp, string(ch))
				}
			}
			// Gradient runs dark to bright.
			assert.Equal(t, ' ', []rune(lines[0])[0])
			assert.Equal(t, '@', []rune(lines[0])[31])
		})
	}
}

func TestAutoMaxDimension(t *testing.T) {
	assert.Equal(t, 512, AutoMaxDimension(20, 10))
	assert.Equal(t, 1024, AutoMaxDimension(400, 120))
	// 80x24: max(60*8, 20*16) * 0.9 = 432, clamped up.
	assert.Equal(t, 512, AutoMaxDimension(0, 0))
	// 200x50: max(150*8, 42*16) * 0.9 = 1080, clamped down.
	assert.Equal(t, 1024, AutoMaxDimension(200, 50))
	// 120x40: max(90*8, 34*16) * 0.9 = 648.
	assert.Equal(t, 648, AutoMaxDimension(120, 40))
}

func kittyCaps() Capabilities {
	return Capabilities{Protocols: []Backend{BackendKitty, BackendITerm2, BackendSixel}, CellWidth: 10, CellHeight: 20}
}

func TestKittyRenderer(t *testing.T) {
	r := NewKittyRenderer(config.GraphicalConfig{FilterType: "bilinear", MaxDimension: 64}, kittyCaps())

	w, h := r.TargetPixels(10, 5)
	assert.Equal(t, 64, w)
	assert.Equal(t, 64, h)

	out, err := r.Render(solid(200, 100, color.White), 10, 5)
	require.NoError(t, err)
	s := string(out)
	assert.True(t, strings.HasPrefix(s, KittyDeleteAll))
	assert.Contains(t, s, "a=T,f=32,t=d,s=64,v=32,c=10,r=3")
	assert.True(t, strings.HasSuffix(s, escEnd))
}

func TestKittyRenderer_Unsupported(t *testing.T) {
	r := NewKittyRenderer(config.GraphicalConfig{MaxDimension: 64}, Capabilities{})
	assert.False(t, r.Supported())

	_, err := r.Render(solid(4, 4, color.White), 2, 2)
	assert.ErrorIs(t, err, ErrUnsupportedByTerminal)
}

func TestEncodeKitty_Chunked(t *testing.T) {
	pix := make([]byte, 4000)
	for i := range pix {
		pix[i] = byte(i % 256)
	}

	s := string(EncodeKitty(pix, 25, 40, 3, 2))
	body := strings.TrimPrefix(s, KittyDeleteAll)

	assert.Equal(t, 2, strings.Count(body, escStart))
	first, rest, found := strings.Cut(body, escEnd)
	require.True(t, found)
	assert.Contains(t, first, "m=1")
	assert.Contains(t, first, "s=25,v=40,c=3,r=2")
	assert.Contains(t, rest, "m=0")
	assert.NotContains(t, rest, "f=32")
}

func TestITerm2Renderer(t *testing.T) {
	r := NewITerm2Renderer(config.GraphicalConfig{FilterType: "lanczos3", MaxDimension: 128}, kittyCaps())

	out, err := r.Render(solid(64, 64, color.White), 8, 4)
	require.NoError(t, err)
	s := string(out)
	assert.True(t, strings.HasPrefix(s, "\x1b]1337;File=inline=1;size="))
	assert.Contains(t, s, ";width=8;height=4;preserveAspectRatio=1:")
	assert.True(t, strings.HasSuffix(s, "\a"))
}

func TestEncodeITerm2(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, solid(2, 2, color.White)))

	s := string(EncodeITerm2(buf.Bytes(), 3, 1))
	assert.Contains(t, s, "size="+strconv.Itoa(buf.Len())+";width=3;height=1;")
}

func TestSixelRenderer(t *testing.T) {
	r := NewSixelRenderer(config.GraphicalConfig{FilterType: "nearest", MaxDimension: 256}, kittyCaps())

	w, h := r.TargetPixels(10, 5)
	assert.Equal(t, 100, w)
	assert.Equal(t, 80, h)

	out, err := r.Render(solid(50, 50, color.RGBA{0, 0, 255, 255}), 10, 5)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(out, []byte("\x1bP")))
	assert.True(t, bytes.HasSuffix(out, []byte("\x1b\\")))
}

func TestNegotiate(t *testing.T) {
	tests := []struct {
		kind, format string
		want         []Backend
	}{
		{config.ConverterChafa, "ansi", []Backend{BackendANSI}},
		{config.ConverterChafa, "symbols", []Backend{BackendANSI}},
		{config.ConverterChafa, "kitty", []Backend{BackendKitty, BackendANSI}},
		{config.ConverterChafa, "iterm", []Backend{BackendITerm2, BackendANSI}},
		{config.ConverterChafa, "sixel", []Backend{BackendSixel, BackendANSI}},
		{config.ConverterJp2a, "kitty", []Backend{BackendASCII}},
		{config.ConverterGraphical, "ansi", []Backend{BackendKitty, BackendITerm2, BackendSixel, BackendANSI}},
	}
	for _, tt := range tests {
		t.Run(tt.kind+"/"+tt.format, func(t *testing.T) {
			got := Negotiate(tt.kind, tt.format)
			assert.Equal(t, tt.want, got)
			assert.False(t, got[len(got)-1].Inline(), "chain must end in a text backend")
		})
	}
}

func TestChain_FallsBackWhenUnsupported(t *testing.T) {
	cfg := config.Default().Converter
	cfg.Selected = config.ConverterGraphical

	chain := NewChain(cfg, Capabilities{})
	assert.Equal(t, BackendANSI, chain.Primary().Name())
	assert.True(t, chain.SupportsTransitions())

	art, err := chain.Render(solid(16, 16, color.White), 8, 4)
	require.NoError(t, err)
	assert.Equal(t, BackendANSI, art.Backend)
	assert.Equal(t, BackendKitty, art.Requested)
	assert.True(t, art.Fallback())
	assert.NotEmpty(t, art.Payload)
}

func TestChain_UsesFirstSupported(t *testing.T) {
	cfg := config.Default().Converter
	cfg.Selected = config.ConverterGraphical

	caps := Capabilities{Protocols: []Backend{BackendSixel}, CellWidth: 8, CellHeight: 16}
	chain := NewChain(cfg, caps)
	assert.Equal(t, BackendSixel, chain.Primary().Name())
	assert.False(t, chain.SupportsTransitions())

	art, err := chain.Render(solid(16, 16, color.White), 8, 4)
	require.NoError(t, err)
	assert.Equal(t, BackendSixel, art.Backend)
	assert.True(t, art.Fallback())
}

type stubRenderer struct {
	name Backend
	err  error
}

func (s stubRenderer) Name() Backend                          { return s.name }
func (s stubRenderer) Supported() bool                        { return true }
func (s stubRenderer) TargetPixels(cols, rows int) (int, int) { return cols, rows }
func (s stubRenderer) SupportsTransitions() bool              { return false }
func (s stubRenderer) Render(image.Image, int, int) ([]byte, error) {
	if s.err != nil {
		return nil, s.err
	}
	return []byte(s.name), nil
}

func TestChain_RuntimeUnsupportedAdvances(t *testing.T) {
	chain := NewChainOf(
		stubRenderer{name: BackendKitty, err: ErrUnsupportedByTerminal},
		stubRenderer{name: BackendANSI},
	)

	art, err := chain.Render(solid(4, 4, color.White), 4, 2)
	require.NoError(t, err)
	assert.Equal(t, BackendANSI, art.Backend)
	assert.Equal(t, "ansi", string(art.Payload))
}

func TestChain_OtherErrorsStop(t *testing.T) {
	boom := errors.New("boom")
	chain := NewChainOf(
		stubRenderer{name: BackendKitty, err: boom},
		stubRenderer{name: BackendANSI},
	)

	_, err := chain.Render(solid(4, 4, color.White), 4, 2)
	assert.ErrorIs(t, err, boom)
}

func TestPlaceholder(t *testing.T) {
	out := Placeholder(12, 5, "no preview")
	lines := strings.Split(out, "\n")
	require.Len(t, lines, 5)
	for _, line := range lines {
		assert.Equal(t, 12, ansi.StringWidth(line))
	}
	assert.Contains(t, lines[2], "no preview")

	long := Placeholder(8, 3, "this message is too long")
	assert.Contains(t, long, "…")
	for _, line := range strings.Split(long, "\n") {
		assert.Equal(t, 8, ansi.StringWidth(line))
	}

	assert.Empty(t, Placeholder(3, 5, "x"))
}

func TestEnvProbe(t *testing.T) {
	tests := []struct {
		name     string
		env      map[string]string
		override string
		tty      bool
		want     []Backend
	}{
		{"not a tty", map[string]string{"KITTY_WINDOW_ID": "1"}, "", false, nil},
		{"kitty", map[string]string{"KITTY_WINDOW_ID": "1", "TERM": "xterm-kitty"}, "", true, []Backend{BackendKitty}},
		{"iterm", map[string]string{"TERM_PROGRAM": "iTerm.app"}, "", true, []Backend{BackendITerm2}},
		{"wezterm", map[string]string{"TERM_PROGRAM": "WezTerm"}, "", true, []Backend{BackendKitty, BackendITerm2, BackendSixel}},
		{"foot", map[string]string{"TERM": "foot"}, "", true, []Backend{BackendSixel}},
		{"mlterm", map[string]string{"TERM": "mlterm"}, "", true, []Backend{BackendSixel}},
		{"mintty", map[string]string{"TERM": "xterm", "TERM_PROGRAM": "mintty"}, "", true, []Backend{BackendITerm2, BackendSixel}},
		{"generic xterm", map[string]string{"TERM": "xterm-256color"}, "", true, nil},
		{"bare xterm", map[string]string{"TERM": "xterm"}, "", true, nil},
		{"override sixel", map[string]string{"TERM": "xterm-256color"}, "sixel", true, []Backend{BackendSixel}},
		{"contour", map[string]string{"CONTOUR_PROFILE": "x", "GHOSTTY_RESOURCES_DIR": "/x"}, "", true, []Backend{BackendSixel}},
		{"plain linux console", map[string]string{"TERM": "linux"}, "", true, nil},
		{"override kitty", map[string]string{"TERM": "linux"}, "kitty", true, []Backend{BackendKitty}},
		{"override none", map[string]string{"KITTY_WINDOW_ID": "1"}, "none", true, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := EnvProbe{
				Override: tt.override,
				Getenv:   func(k string) string { return tt.env[k] },
				IsTTY:    func() bool { return tt.tty },
			}
			caps := p.Probe()
			assert.Equal(t, tt.want, caps.Protocols)
			assert.Positive(t, caps.CellWidth)
			assert.Positive(t, caps.CellHeight)
		})
	}
}

func TestEnvProbe_GenericXtermFallsBackToCells(t *testing.T) {
	p := EnvProbe{
		Getenv: func(k string) string {
			return map[string]string{"TERM": "xterm-256color"}[k]
		},
		IsTTY: func() bool { return true },
	}
	cfg := config.Default().Converter
	cfg.Selected = config.ConverterGraphical

	chain := NewChain(cfg, p.Probe())
	assert.Equal(t, BackendANSI, chain.Primary().Name())

	art, err := chain.Render(solid(16, 16, color.White), 8, 4)
	require.NoError(t, err)
	assert.Equal(t, BackendANSI, art.Backend)
	assert.NotContains(t, string(art.Payload), "\x1bP", "no sixel DCS in the payload")
}

func TestCapabilities_TextBackendsAlwaysSupported(t *testing.T) {
	var caps Capabilities
	assert.True(t, caps.Supports(BackendANSI))
	assert.True(t, caps.Supports(BackendASCII))
	assert.False(t, caps.Supports(BackendKitty))
}
