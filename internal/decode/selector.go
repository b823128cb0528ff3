// Package decode turns image files into pixels at the smallest size that
// still covers a display target.
//
// JPEG sources go through a FastDecoder that subsamples during decode
// (1/2, 1/4 or 1/8). Everything else, and any JPEG the fast path cannot
// handle, is fully decoded with imaging. Callers only see an error when
// both paths fail.
package decode

import (
	"context"
	"fmt"
	"image"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/webp" // register webp with image.Decode

	"github.com/llehouerou/ptui/internal/logging"
	"github.com/llehouerou/ptui/internal/metrics"
)

// Decoder names reported in Image.Decoder.
const (
	DecoderFull = "imaging"
)

// FastDecoder decodes a file at a reduced power-of-two scale.
type FastDecoder interface {
	Name() string
	// Available reports whether the decoder can be used right now.
	Available() bool
	DecodeScaled(ctx context.Context, path string, scale Scale) (image.Image, error)
}

// Image is the output of a decode.
type Image struct {
	Pixels image.Image
	// Width and Height are the decoded dimensions.
	Width, Height int
	// SourceWidth and SourceHeight are the dimensions stored in the file.
	SourceWidth, SourceHeight int
	Format                    string
	Decoder                   string
	Scale                     Scale
}

// Selector chooses between the fast and full decode paths.
type Selector struct {
	fast            FastDecoder
	unavailableOnce sync.Once
}

// NewSelector returns a selector. fast may be nil, in which case every
// image is fully decoded.
func NewSelector(fast FastDecoder) *Selector {
	return &Selector{fast: fast}
}

// Inspect reads the format and stored dimensions without decoding pixels.
func Inspect(path string) (format string, width, height int, err error) {
	f, err := os.Open(path)
	if err != nil {
		return "", 0, 0, &Error{Kind: IoError, Path: path, Err: err}
	}
	defer f.Close()

	cfg, format, err := image.DecodeConfig(f)
	if err != nil {
		return "", 0, 0, &Error{Kind: classify(err), Path: path, Err: err}
	}
	return format, cfg.Width, cfg.Height, nil
}

// Decode produces pixels for path covering the boxW x boxH target box.
// A non-positive box dimension is unconstrained.
func (s *Selector) Decode(ctx context.Context, path string, boxW, boxH int) (*Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	format, srcW, srcH, err := Inspect(path)
	if err != nil {
		return nil, err
	}

	if format == "jpeg" {
		scale := SelectScale(srcW, srcH, boxW, boxH)
		if scale > ScaleFull {
			if img, ok := s.decodeFast(ctx, path, scale); ok {
				b := img.Bounds()
				metrics.DecodesTotal.WithLabelValues(s.fast.Name(), scale.String()).Inc()
				return &Image{
					Pixels:       img,
					Width:        b.Dx(),
					Height:       b.Dy(),
					SourceWidth:  srcW,
					SourceHeight: srcH,
					Format:       format,
					Decoder:      s.fast.Name(),
					Scale:        scale,
				}, nil
			}
		}
	}

	img, err := decodeFull(path)
	if err != nil {
		return nil, err
	}
	b := img.Bounds()
	metrics.DecodesTotal.WithLabelValues(DecoderFull, ScaleFull.String()).Inc()
	return &Image{
		Pixels:       img,
		Width:        b.Dx(),
		Height:       b.Dy(),
		SourceWidth:  srcW,
		SourceHeight: srcH,
		Format:       format,
		Decoder:      DecoderFull,
		Scale:        ScaleFull,
	}, nil
}

func (s *Selector) decodeFast(ctx context.Context, path string, scale Scale) (image.Image, bool) {
	if s.fast == nil {
		return nil, false
	}
	if !s.fast.Available() {
		metrics.DecodeFallbacks.WithLabelValues("unavailable").Inc()
		s.unavailableOnce.Do(func() {
			logging.Warn("decode: %s unavailable, degraded to full decode", s.fast.Name())
		})
		return nil, false
	}

	start := time.Now()
	img, err := s.fast.DecodeScaled(ctx, path, scale)
	if err != nil || img == nil {
		metrics.DecodeFallbacks.WithLabelValues("failed").Inc()
		logging.Warn("decode: %s failed on %s, degraded to full decode: %v",
			s.fast.Name(), filepath.Base(path), err)
		return nil, false
	}
	logging.Debug("decode: %s %s at %s in %s", s.fast.Name(), filepath.Base(path), scale, time.Since(start))
	return img, true
}

func decodeFull(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &Error{Kind: IoError, Path: path, Err: err}
	}
	defer f.Close()

	img, err := imaging.Decode(f, imaging.AutoOrientation(true))
	if err != nil {
		if err == io.EOF {
			err = io.ErrUnexpectedEOF
		}
		return nil, &Error{Kind: classify(err), Path: path, Err: fmt.Errorf("full decode: %w", err)}
	}
	return img, nil
}
