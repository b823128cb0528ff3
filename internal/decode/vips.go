package decode

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"path/filepath"
	"sync"

	"github.com/davidbyttow/govips/v2/vips"
	"github.com/disintegration/imaging"

	"github.com/llehouerou/ptui/internal/logging"
)

var (
	vipsMu      sync.Mutex
	vipsStarted bool
)

// ErrVipsUnavailable is returned by VipsDecoder when libvips is not running.
var ErrVipsUnavailable = errors.New("libvips not available")

// StartVips initializes libvips. It should be called once at startup; later
// calls are no-ops. libvips diagnostics are routed to the logger at the
// current log level.
func StartVips() {
	vipsMu.Lock()
	defer vipsMu.Unlock()

	if vipsStarted {
		return
	}

	var vipsLogLevel vips.LogLevel
	switch logging.GetLevel() {
	case logging.LevelDebug:
		vipsLogLevel = vips.LogLevelInfo
	case logging.LevelWarn:
		vipsLogLevel = vips.LogLevelError
	case logging.LevelError:
		vipsLogLevel = vips.LogLevelCritical
	default:
		vipsLogLevel = vips.LogLevelWarning
	}

	vips.LoggingSettings(func(domain string, level vips.LogLevel, msg string) {
		switch level {
		case vips.LogLevelError, vips.LogLevelCritical:
			logging.Error("[%s] %s", domain, msg)
		case vips.LogLevelWarning:
			logging.Warn("[%s] %s", domain, msg)
		default:
			logging.Debug("[%s] %s", domain, msg)
		}
	}, vipsLogLevel)

	// One libvips thread per operation; the worker pool provides parallelism.
	vips.Startup(&vips.Config{
		ConcurrencyLevel: 1,
		MaxCacheMem:      32 * 1024 * 1024,
		MaxCacheSize:     64,
	})

	vipsStarted = true
	logging.Info("libvips initialized (version: %s)", vips.Version)
}

// ShutdownVips releases libvips resources.
func ShutdownVips() {
	vipsMu.Lock()
	defer vipsMu.Unlock()

	if vipsStarted {
		vips.Shutdown()
		vipsStarted = false
		logging.Info("libvips shutdown complete")
	}
}

// VipsDecoder is the FastDecoder backed by libvips shrink-on-load.
type VipsDecoder struct{}

func (VipsDecoder) Name() string { return "vips" }

func (VipsDecoder) Available() bool {
	vipsMu.Lock()
	defer vipsMu.Unlock()
	return vipsStarted
}

// DecodeScaled loads path with the JPEG shrink factor set to scale, so
// libjpeg skips the discarded DCT coefficients instead of resizing later.
func (d VipsDecoder) DecodeScaled(ctx context.Context, path string, scale Scale) (image.Image, error) {
	if !d.Available() {
		return nil, ErrVipsUnavailable
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	params := vips.NewImportParams()
	params.AutoRotate.Set(true)
	params.JpegShrinkFactor.Set(int(scale))

	ref, err := vips.LoadImageFromFile(path, params)
	if err != nil {
		return nil, fmt.Errorf("vips load %s: %w", filepath.Base(path), err)
	}
	defer ref.Close()

	exportParams := vips.NewPngExportParams()
	exportParams.Compression = 1
	data, _, err := ref.ExportPng(exportParams)
	if err != nil {
		return nil, fmt.Errorf("vips export: %w", err)
	}

	img, err := imaging.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode vips output: %w", err)
	}
	return img, nil
}
