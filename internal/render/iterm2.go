package render

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"image/png"

	"github.com/llehouerou/ptui/internal/config"
)

// ITerm2Renderer emits the OSC 1337 inline file protocol with a PNG body.
type ITerm2Renderer struct {
	inline
}

func NewITerm2Renderer(cfg config.GraphicalConfig, caps Capabilities) *ITerm2Renderer {
	return &ITerm2Renderer{inline: newInline(cfg, caps)}
}

func (t *ITerm2Renderer) Name() Backend             { return BackendITerm2 }
func (t *ITerm2Renderer) Supported() bool           { return t.caps.Supports(BackendITerm2) }
func (t *ITerm2Renderer) SupportsTransitions() bool { return false }

func (t *ITerm2Renderer) TargetPixels(cols, rows int) (int, int) {
	return t.box(cols, rows, defaultCellWidth, defaultCellHeight)
}

func (t *ITerm2Renderer) Render(img image.Image, cols, rows int) ([]byte, error) {
	if !t.Supported() {
		return nil, fmt.Errorf("iterm2: %w", ErrUnsupportedByTerminal)
	}
	w, h := t.TargetPixels(cols, rows)
	scaled, c, r, err := t.prepare(img, cols, rows, w, h)
	if err != nil {
		return nil, fmt.Errorf("iterm2: %w", err)
	}

	var pngBuf bytes.Buffer
	enc := png.Encoder{CompressionLevel: png.BestSpeed}
	if err := enc.Encode(&pngBuf, scaled); err != nil {
		return nil, fmt.Errorf("iterm2: encode png: %w", err)
	}
	return EncodeITerm2(pngBuf.Bytes(), c, r), nil
}

// EncodeITerm2 wraps image file data in an OSC 1337 sequence sized in cells.
func EncodeITerm2(data []byte, cols, rows int) []byte {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "\x1b]1337;File=inline=1;size=%d;width=%d;height=%d;preserveAspectRatio=1:",
		len(data), cols, rows)
	buf.WriteString(base64.StdEncoding.EncodeToString(data))
	buf.WriteByte('\a')
	return buf.Bytes()
}
