package transition

import (
	"math/rand/v2"
	"slices"
)

// Effect names a transition animation.
type Effect string

const (
	Scattering     Effect = "scattering"
	Typewriter     Effect = "typewriter"
	ScrollingLeft  Effect = "scrolling_left"
	ScrollingRight Effect = "scrolling_right"
	Climbing       Effect = "climbing"
)

// Effects lists every supported effect.
var Effects = []Effect{Scattering, Typewriter, ScrollingLeft, ScrollingRight, Climbing}

// Known reports whether name is a supported effect.
func Known(name string) bool {
	return slices.Contains(Effects, Effect(name))
}

// Frames is the number of steps in every transition.
const Frames = 20

const cursor = "█"

// source tells where an output cell comes from.
type source struct {
	to   bool
	r, c int
}

// plan computes frames for one effect over a rows x cols screen.
type plan struct {
	effect     Effect
	rows, cols int
	// order is the reveal order of cells for scattering and typewriter.
	order []int
}

func newPlan(effect Effect, rows, cols int, seed uint64) *plan {
	p := &plan{effect: effect, rows: rows, cols: cols}
	n := rows * cols
	switch effect {
	case Scattering:
		rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
		p.order = rng.Perm(n)
	case Typewriter:
		p.order = make([]int, n)
		for i := range p.order {
			p.order[i] = i
		}
	}
	return p
}

// revealed is how many cells of order show the new content at frame.
func (p *plan) revealed(frame int) int {
	return p.rows * p.cols * frame / Frames
}

// Mask returns, per cell in row-major order, whether it shows the new
// content at frame.
func (p *plan) Mask(frame int) []bool {
	frame = clampFrame(frame)
	mask := make([]bool, p.rows*p.cols)
	if p.order != nil {
		for _, idx := range p.order[:p.revealed(frame)] {
			mask[idx] = true
		}
		return mask
	}
	for r := range p.rows {
		for c := range p.cols {
			mask[r*p.cols+c] = p.source(frame, r, c).to
		}
	}
	return mask
}

// source maps an output cell of a sliding effect to its origin.
func (p *plan) source(frame, r, c int) source {
	switch p.effect {
	case ScrollingLeft:
		// The new content pushes in from the right.
		off := p.cols - p.cols*frame/Frames
		if c < off {
			return source{r: r, c: c + p.cols - off}
		}
		return source{to: true, r: r, c: c - off}
	case ScrollingRight:
		// The new content pushes in from the left.
		off := p.cols * frame / Frames
		if c < off {
			return source{to: true, r: r, c: c + p.cols - off}
		}
		return source{r: r, c: c - off}
	case Climbing:
		// The new content rises from the bottom.
		off := p.rows - p.rows*frame/Frames
		if r < off {
			return source{r: r + p.rows - off, c: c}
		}
		return source{to: true, r: r - off, c: c}
	}
	return source{to: frame >= Frames, r: r, c: c}
}

// cells builds the screen for frame from the two grids.
func (p *plan) cells(frame int, from, to *Grid) []Cell {
	frame = clampFrame(frame)
	out := make([]Cell, p.rows*p.cols)

	if p.order != nil {
		for r := range p.rows {
			for c := range p.cols {
				out[r*p.cols+c] = from.At(r, c)
			}
		}
		k := p.revealed(frame)
		for _, idx := range p.order[:k] {
			out[idx] = to.At(idx/p.cols, idx%p.cols)
		}
		if p.effect == Typewriter && k < len(out) {
			out[k] = Cell{Text: cursor, Width: 1}
		}
		return out
	}

	for r := range p.rows {
		for c := range p.cols {
			s := p.source(frame, r, c)
			if s.to {
				out[r*p.cols+c] = to.At(s.r, s.c)
			} else {
				out[r*p.cols+c] = from.At(s.r, s.c)
			}
		}
	}
	return out
}

func clampFrame(frame int) int {
	return max(0, min(frame, Frames))
}
