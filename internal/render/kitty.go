package render

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"

	"github.com/disintegration/imaging"

	"github.com/llehouerou/ptui/internal/config"
)

// Kitty graphics protocol escape sequences
const (
	escStart = "\x1b_G"
	escEnd   = "\x1b\\"

	// Max bytes of base64 payload per escape sequence chunk
	chunkSize = 4096
)

// KittyDeleteAll removes every image placed by earlier payloads.
const KittyDeleteAll = escStart + "a=d,d=a,q=2" + escEnd

// KittyRenderer transmits raw RGBA pixels (f=32) and displays them in one
// step (a=T), scaled by the terminal to the cell box.
type KittyRenderer struct {
	inline
}

func NewKittyRenderer(cfg config.GraphicalConfig, caps Capabilities) *KittyRenderer {
	return &KittyRenderer{inline: newInline(cfg, caps)}
}

func (k *KittyRenderer) Name() Backend             { return BackendKitty }
func (k *KittyRenderer) Supported() bool           { return k.caps.Supports(BackendKitty) }
func (k *KittyRenderer) SupportsTransitions() bool { return false }

// TargetPixels uses standard 8x16 cell assumptions; the terminal scales the
// image to the requested cells.
func (k *KittyRenderer) TargetPixels(cols, rows int) (int, int) {
	return k.box(cols, rows, defaultCellWidth, defaultCellHeight)
}

func (k *KittyRenderer) Render(img image.Image, cols, rows int) ([]byte, error) {
	if !k.Supported() {
		return nil, fmt.Errorf("kitty: %w", ErrUnsupportedByTerminal)
	}
	w, h := k.TargetPixels(cols, rows)
	scaled, c, r, err := k.prepare(img, cols, rows, w, h)
	if err != nil {
		return nil, fmt.Errorf("kitty: %w", err)
	}

	rgba := imaging.Clone(scaled)
	b := rgba.Bounds()
	return EncodeKitty(rgba.Pix, b.Dx(), b.Dy(), c, r), nil
}

// EncodeKitty builds the escape sequences transmitting width x height RGBA
// pixels for display in cols x rows cells. Earlier images are deleted first
// so the payload can be written repeatedly without stacking placements.
func EncodeKitty(rgba []byte, width, height, cols, rows int) []byte {
	encoded := base64.StdEncoding.EncodeToString(rgba)

	var buf bytes.Buffer
	buf.Grow(len(encoded) + len(encoded)/chunkSize*8 + 128)
	buf.WriteString(KittyDeleteAll)

	// Split into chunks; m=1 means more chunks follow, m=0 means last chunk
	for i := 0; i < len(encoded); i += chunkSize {
		end := min(i+chunkSize, len(encoded))
		more := 0
		if end < len(encoded) {
			more = 1
		}

		buf.WriteString(escStart)
		if i == 0 {
			// First chunk includes all parameters
			fmt.Fprintf(&buf, "a=T,f=32,t=d,s=%d,v=%d,c=%d,r=%d,C=1,q=2,m=%d;", width, height, cols, rows, more)
		} else {
			// Subsequent chunks only have m parameter
			fmt.Fprintf(&buf, "m=%d;", more)
		}
		buf.WriteString(encoded[i:end])
		buf.WriteString(escEnd)
	}
	return buf.Bytes()
}
