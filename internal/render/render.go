// Package render converts decoded pixels into terminal-writable payloads.
//
// Three families of backends exist: ANSI cells (half blocks with colored
// foreground and background), ASCII art (a luminance ramp) and inline
// graphics (Kitty, iTerm2 and Sixel escape sequences). A Chain tries the
// backends negotiated for the selected converter in order and reports which
// one actually produced the payload.
package render

import (
	"errors"
	"image"
	"image/color"
	"image/draw"

	"github.com/disintegration/imaging"
	"github.com/nfnt/resize"
)

// Backend identifies a renderer variant.
type Backend string

const (
	BackendANSI   Backend = "ansi"
	BackendASCII  Backend = "ascii"
	BackendKitty  Backend = "kitty"
	BackendITerm2 Backend = "iterm2"
	BackendSixel  Backend = "sixel"
)

// Inline reports whether b places raster graphics rather than text cells.
func (b Backend) Inline() bool {
	switch b {
	case BackendKitty, BackendITerm2, BackendSixel:
		return true
	default:
		return false
	}
}

// ErrUnsupportedByTerminal is returned when the terminal cannot display a
// backend's output. The chain falls through to the next backend.
var ErrUnsupportedByTerminal = errors.New("unsupported by terminal")

// Renderer turns pixels into a payload that fits in cols x rows cells.
type Renderer interface {
	Name() Backend
	// Supported reports whether the terminal can display this backend.
	Supported() bool
	// TargetPixels is the pixel box the decoder should cover so that
	// Render does not need to upscale.
	TargetPixels(cols, rows int) (w, h int)
	Render(img image.Image, cols, rows int) ([]byte, error)
	// SupportsTransitions reports whether payloads are plain cell text that
	// the transition engine can blend.
	SupportsTransitions() bool
}

// Artifact is a rendered payload and the backend that produced it.
type Artifact struct {
	Payload   []byte
	Backend   Backend
	Requested Backend
	// Cols and Rows are the cells the payload occupies.
	Cols, Rows int
}

// Fallback reports whether a backend other than the requested one was used.
func (a Artifact) Fallback() bool {
	return a.Backend != a.Requested
}

// Fit returns the largest cell box inside cols x rows that keeps the
// aspect ratio of a srcW x srcH image. A cell is twice as tall as it is wide.
func Fit(srcW, srcH, cols, rows int) (int, int) {
	if srcW <= 0 || srcH <= 0 || cols <= 0 || rows <= 0 {
		return 0, 0
	}
	// Work in half-cell units: the box is cols wide and 2*rows tall.
	boxH := 2 * rows
	if srcW*boxH >= srcH*cols {
		h := (srcH*cols + srcW) / (2 * srcW) // round(cols*srcH/srcW / 2)
		return cols, clamp(h, 1, rows)
	}
	w := (srcW*boxH*2 + srcH) / (2 * srcH) // round(2*rows*srcW/srcH)
	return clamp(w, 1, cols), rows
}

func clamp(v, lo, hi int) int {
	return max(lo, min(v, hi))
}

// toNRGBA resamples img to exactly w x h with imaging's Box filter, which
// averages the source pixels that fall into each destination pixel.
func toNRGBA(img image.Image, w, h int) *image.NRGBA {
	b := img.Bounds()
	if b.Dx() == w && b.Dy() == h {
		if n, ok := img.(*image.NRGBA); ok && b.Min == (image.Point{}) {
			return n
		}
		return imaging.Clone(img)
	}
	return imaging.Resize(img, w, h, imaging.Box)
}

// Filters maps converter.graphical.filter_type to nfnt/resize kernels.
var Filters = map[string]resize.InterpolationFunction{
	"nearest":  resize.NearestNeighbor,
	"bilinear": resize.Bilinear,
	"bicubic":  resize.Bicubic,
	"mitchell": resize.MitchellNetravali,
	"lanczos2": resize.Lanczos2,
	"lanczos3": resize.Lanczos3,
}

// resample scales img to fit within maxW x maxH using the named filter.
// Images already inside the box are returned unchanged.
func resample(img image.Image, maxW, maxH int, filter string) image.Image {
	b := img.Bounds()
	if b.Dx() <= maxW && b.Dy() <= maxH {
		return img
	}
	interp, ok := Filters[filter]
	if !ok {
		interp = resize.Lanczos3
	}
	return resize.Thumbnail(uint(maxW), uint(maxH), img, interp)
}

// flatten composites img over an opaque background.
func flatten(img image.Image, bg color.Color) *image.RGBA {
	b := img.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), image.NewUniform(bg), image.Point{}, draw.Src)
	draw.Draw(dst, dst.Bounds(), img, b.Min, draw.Over)
	return dst
}
