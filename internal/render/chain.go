package render

import (
	"errors"
	"fmt"
	"image"

	"github.com/llehouerou/ptui/internal/config"
	"github.com/llehouerou/ptui/internal/logging"
	"github.com/llehouerou/ptui/internal/metrics"
)

// Negotiate returns the backends to try, in order, for a converter kind and
// its chafa format. The last element is always a text backend.
func Negotiate(kind, chafaFormat string) []Backend {
	switch kind {
	case config.ConverterJp2a:
		return []Backend{BackendASCII}
	case config.ConverterGraphical:
		return []Backend{BackendKitty, BackendITerm2, BackendSixel, BackendANSI}
	}
	switch chafaFormat {
	case "kitty":
		return []Backend{BackendKitty, BackendANSI}
	case "iterm":
		return []Backend{BackendITerm2, BackendANSI}
	case "sixel":
		return []Backend{BackendSixel, BackendANSI}
	default:
		return []Backend{BackendANSI}
	}
}

// NewRenderer builds the renderer for one backend.
func NewRenderer(b Backend, cfg config.ConverterConfig, caps Capabilities) Renderer {
	switch b {
	case BackendASCII:
		return NewASCIIRenderer(cfg.Jp2a)
	case BackendKitty:
		return NewKittyRenderer(cfg.Graphical, caps)
	case BackendITerm2:
		return NewITerm2Renderer(cfg.Graphical, caps)
	case BackendSixel:
		return NewSixelRenderer(cfg.Graphical, caps)
	default:
		return NewANSIRenderer(cfg.Chafa, caps.TermProgram)
	}
}

// Chain renders with the first backend that works, falling through on
// ErrUnsupportedByTerminal.
type Chain struct {
	renderers []Renderer
}

// NewChain negotiates backends for the selected converter.
func NewChain(cfg config.ConverterConfig, caps Capabilities) *Chain {
	backends := Negotiate(cfg.Selected, cfg.Chafa.Format)
	c := &Chain{renderers: make([]Renderer, 0, len(backends))}
	for _, b := range backends {
		c.renderers = append(c.renderers, NewRenderer(b, cfg, caps))
	}
	return c
}

// NewChainOf builds a chain from explicit renderers.
func NewChainOf(renderers ...Renderer) *Chain {
	return &Chain{renderers: renderers}
}

// Backends lists the negotiated backends in order.
func (c *Chain) Backends() []Backend {
	out := make([]Backend, len(c.renderers))
	for i, r := range c.renderers {
		out[i] = r.Name()
	}
	return out
}

// Requested is the backend the configuration asked for.
func (c *Chain) Requested() Backend {
	if len(c.renderers) == 0 {
		return BackendANSI
	}
	return c.renderers[0].Name()
}

// Primary returns the first renderer the terminal supports.
func (c *Chain) Primary() Renderer {
	for _, r := range c.renderers {
		if r.Supported() {
			return r
		}
	}
	if len(c.renderers) > 0 {
		return c.renderers[len(c.renderers)-1]
	}
	return nil
}

// TargetPixels is the decode box for the primary renderer.
func (c *Chain) TargetPixels(cols, rows int) (int, int) {
	if p := c.Primary(); p != nil {
		return p.TargetPixels(cols, rows)
	}
	return cols, 2 * rows
}

// SupportsTransitions reports whether the primary renderer produces cell text.
func (c *Chain) SupportsTransitions() bool {
	p := c.Primary()
	return p != nil && p.SupportsTransitions()
}

// Render produces an artifact for img in cols x rows cells.
func (c *Chain) Render(img image.Image, cols, rows int) (Artifact, error) {
	requested := c.Requested()
	for _, r := range c.renderers {
		if !r.Supported() {
			c.fallback(requested, r.Name(), ErrUnsupportedByTerminal)
			continue
		}
		payload, err := r.Render(img, cols, rows)
		if errors.Is(err, ErrUnsupportedByTerminal) {
			c.fallback(requested, r.Name(), err)
			continue
		}
		if err != nil {
			return Artifact{}, err
		}
		b := img.Bounds()
		fc, fr := Fit(b.Dx(), b.Dy(), cols, rows)
		return Artifact{
			Payload:   payload,
			Backend:   r.Name(),
			Requested: requested,
			Cols:      fc,
			Rows:      fr,
		}, nil
	}
	return Artifact{}, fmt.Errorf("no renderer for %s: %w", requested, ErrUnsupportedByTerminal)
}

func (c *Chain) fallback(requested, skipped Backend, err error) {
	metrics.RenderFallbacks.WithLabelValues(string(skipped)).Inc()
	logging.Debug("render: %s skipped (requested %s): %v", skipped, requested, err)
}
