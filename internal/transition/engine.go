package transition

import (
	"time"
)

// State is the engine's mode.
type State int

const (
	Idle State = iota
	Transitioning
)

func (s State) String() string {
	if s == Transitioning {
		return "transitioning"
	}
	return "idle"
}

// Engine plays one transition at a time. It is driven by Tick from the UI
// loop and is not safe for concurrent use.
type Engine struct {
	state    State
	from, to *Grid
	plan     *plan
	effect   Effect
	seed     uint64
	frameDur time.Duration
	started  time.Time

	frame    int
	prev     []Cell
	rendered string
}

// NewEngine returns an idle engine.
func NewEngine() *Engine {
	return &Engine{}
}

// State returns the current mode.
func (e *Engine) State() State { return e.state }

// Effect returns the running effect.
func (e *Engine) Effect() Effect { return e.effect }

// Duration is the total length of a transition with the given frame
// duration.
func Duration(frameDuration time.Duration) time.Duration {
	return Frames * frameDuration
}

// Start begins a transition from one rendered payload to another. It
// returns false, leaving the engine idle, when to is missing, the effect is
// unknown or the frame duration is not positive; callers then show to
// directly.
func (e *Engine) Start(from, to []byte, effect string, frameDuration time.Duration, seed uint64, now time.Time) bool {
	if to == nil || !Known(effect) || frameDuration <= 0 {
		return false
	}

	fg, tg := Parse(from), Parse(to)
	rows := max(len(fg.Rows), len(tg.Rows))
	cols := max(fg.Cols, tg.Cols)

	e.state = Transitioning
	e.from, e.to = fg, tg
	e.effect = Effect(effect)
	e.seed = seed
	e.frameDur = frameDuration
	e.started = now
	e.plan = newPlan(e.effect, rows, cols, seed)
	e.frame = -1
	e.prev = nil
	e.rendered = ""
	return true
}

// Tick advances to the frame for now. It returns the screen, the cells
// (row-major indices) that differ from the previous frame, and whether the
// transition has finished. When done, frame is the target payload and the
// engine is idle again.
func (e *Engine) Tick(now time.Time) (frame string, changed []int, done bool) {
	if e.state != Transitioning {
		return "", nil, true
	}

	elapsed := now.Sub(e.started)
	if elapsed >= Duration(e.frameDur) {
		return e.finish(), nil, true
	}

	n := max(int(elapsed/e.frameDur), 0)
	if n == e.frame {
		return e.rendered, nil, false
	}

	cells := e.plan.cells(n, e.from, e.to)
	for i, c := range cells {
		if e.prev == nil || e.prev[i] != c {
			changed = append(changed, i)
		}
	}
	e.frame = n
	e.prev = cells
	e.rendered = e.join(cells)
	return e.rendered, changed, false
}

// Mask returns the reveal mask at elapsed time t: true where a cell shows
// the new content. Equal seeds, effects, durations and sizes give equal
// masks.
func (e *Engine) Mask(t time.Duration) []bool {
	if e.plan == nil {
		return nil
	}
	return e.plan.Mask(e.frameAt(t))
}

// Frame renders frame i of the running transition.
func (e *Engine) Frame(i int) string {
	if e.plan == nil {
		return ""
	}
	return e.join(e.plan.cells(i, e.from, e.to))
}

// Abort ends the transition immediately and returns the target screen.
func (e *Engine) Abort() string {
	if e.state != Transitioning {
		return ""
	}
	return e.finish()
}

func (e *Engine) finish() string {
	out := e.to.String()
	e.state = Idle
	e.from, e.to, e.plan = nil, nil, nil
	e.prev = nil
	e.rendered = ""
	return out
}

func (e *Engine) frameAt(t time.Duration) int {
	if e.frameDur <= 0 {
		return Frames
	}
	return clampFrame(int(t / e.frameDur))
}

func (e *Engine) join(cells []Cell) string {
	g := &Grid{Rows: make([][]Cell, e.plan.rows), Cols: e.plan.cols}
	for r := range e.plan.rows {
		g.Rows[r] = cells[r*e.plan.cols : (r+1)*e.plan.cols]
	}
	return g.String()
}
