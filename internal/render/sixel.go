package render

import (
	"bytes"
	"fmt"
	"image"
	"image/color"

	"github.com/mattn/go-sixel"

	"github.com/llehouerou/ptui/internal/config"
)

// SixelRenderer encodes a dithered, palette-reduced image as DCS sixel data.
type SixelRenderer struct {
	inline
}

func NewSixelRenderer(cfg config.GraphicalConfig, caps Capabilities) *SixelRenderer {
	return &SixelRenderer{inline: newInline(cfg, caps)}
}

func (s *SixelRenderer) Name() Backend             { return BackendSixel }
func (s *SixelRenderer) Supported() bool           { return s.caps.Supports(BackendSixel) }
func (s *SixelRenderer) SupportsTransitions() bool { return false }

// TargetPixels uses the actual cell pixel size and leaves 1 row of vertical
// margin to prevent terminal scroll when the image reaches the bottom.
// Sixel images are drawn at their pixel size, so this box is exact.
func (s *SixelRenderer) TargetPixels(cols, rows int) (int, int) {
	cw, ch := s.caps.CellWidth, s.caps.CellHeight
	if cw <= 0 || ch <= 0 {
		cw, ch = defaultCellWidth, defaultCellHeight
	}
	return s.box(cols, max(rows-1, 1), cw, ch)
}

func (s *SixelRenderer) Render(img image.Image, cols, rows int) ([]byte, error) {
	if !s.Supported() {
		return nil, fmt.Errorf("sixel: %w", ErrUnsupportedByTerminal)
	}
	w, h := s.TargetPixels(cols, rows)
	scaled, _, _, err := s.prepare(img, cols, rows, w, h)
	if err != nil {
		return nil, fmt.Errorf("sixel: %w", err)
	}

	var buf bytes.Buffer
	enc := sixel.NewEncoder(&buf)
	enc.Dither = true
	if err := enc.Encode(flatten(scaled, color.Black)); err != nil {
		return nil, fmt.Errorf("encode sixel: %w", err)
	}
	return buf.Bytes(), nil
}
