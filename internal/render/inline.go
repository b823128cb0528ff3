package render

import (
	"fmt"
	"image"

	"github.com/llehouerou/ptui/internal/config"
)

const (
	defaultCellWidth  = 8
	defaultCellHeight = 16

	autoMinDimension = 512
	autoMaxDimension = 1024
)

// inline holds what Kitty, iTerm2 and Sixel renderers share: terminal
// capabilities and resampling settings.
type inline struct {
	caps   Capabilities
	filter string
	maxDim int
}

func newInline(cfg config.GraphicalConfig, caps Capabilities) inline {
	maxDim := cfg.MaxDimension
	if cfg.AutoResize {
		maxDim = AutoMaxDimension(caps.Cols, caps.Rows)
	}
	return inline{caps: caps, filter: cfg.FilterType, maxDim: maxDim}
}

// AutoMaxDimension estimates the largest useful image dimension for a
// terminal of cols x rows cells. The preview pane takes about 75% of the
// width and 85% of the height; the result is clamped to [512, 1024].
// Unknown sizes assume 80x24.
func AutoMaxDimension(cols, rows int) int {
	if cols <= 0 || rows <= 0 {
		cols, rows = 80, 24
	}
	w := float64(int(float64(cols)*0.75) * defaultCellWidth)
	h := float64(int(float64(rows)*0.85) * defaultCellHeight)
	return clamp(int(max(w, h)*0.9), autoMinDimension, autoMaxDimension)
}

// box returns the pixel box for cols x rows cells of cellW x cellH pixels,
// scaled down to fit maxDim.
func (in inline) box(cols, rows, cellW, cellH int) (int, int) {
	w, h := cols*cellW, rows*cellH
	if w <= 0 || h <= 0 {
		return 0, 0
	}
	if m := in.maxDim; m > 0 && (w > m || h > m) {
		if w >= h {
			h = max(1, h*m/w)
			w = m
		} else {
			w = max(1, w*m/h)
			h = m
		}
	}
	return w, h
}

// prepare resamples img into the pixel box and returns the scaled image and
// the cell box it occupies.
func (in inline) prepare(img image.Image, cols, rows, boxW, boxH int) (image.Image, int, int, error) {
	if boxW <= 0 || boxH <= 0 {
		return nil, 0, 0, fmt.Errorf("empty target %dx%d", cols, rows)
	}
	scaled := resample(img, boxW, boxH, in.filter)
	b := scaled.Bounds()
	c, r := Fit(b.Dx(), b.Dy(), cols, rows)
	if c == 0 {
		return nil, 0, 0, fmt.Errorf("empty image %dx%d", b.Dx(), b.Dy())
	}
	return scaled, c, r, nil
}
