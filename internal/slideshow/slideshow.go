// Package slideshow steps through a list of images, fetching each preview
// through the scheduler and animating between text previews.
package slideshow

import (
	"time"

	"github.com/llehouerou/ptui/internal/config"
	"github.com/llehouerou/ptui/internal/logging"
	"github.com/llehouerou/ptui/internal/preview"
	"github.com/llehouerou/ptui/internal/transition"
)

// SlotNext receives the upcoming slide while the current one stays on
// screen.
const SlotNext preview.Slot = "slideshow-next"

// Loader is the part of the scheduler the controller drives.
type Loader interface {
	Schedule(req preview.Request, slot preview.Slot) preview.Generation
	Prefetch(reqs ...preview.Request)
	Cancel(slot preview.Slot)
}

// TransitionState describes a running transition.
type TransitionState struct {
	From, To      *preview.Entry
	Effect        string
	Elapsed       time.Duration
	FrameDuration time.Duration
	Seed          uint64
}

// State is a snapshot of the controller.
type State struct {
	CurrentIndex int
	// PendingNextIndex is the slide waiting for its preview, or -1.
	PendingNextIndex int
	Transition       *TransitionState
}

// Controller owns which image is shown and when the next one replaces it.
// It is driven from the UI loop and is not safe for concurrent use.
type Controller struct {
	loader Loader
	config preview.SnapshotSource
	engine *transition.Engine
	images []string
	cols   int
	rows   int

	state   State
	playing bool
	seed    uint64

	current  *preview.Entry
	screen   string
	shownAt  time.Time
	focusGen preview.Generation
	nextGen  preview.Generation
	started  time.Time
}

// New returns a stopped controller over images. Call Show to load the
// first one.
func New(loader Loader, cfg preview.SnapshotSource, images []string, cols, rows int) *Controller {
	return &Controller{
		loader: loader,
		config: cfg,
		engine: transition.NewEngine(),
		images: images,
		cols:   cols,
		rows:   rows,
		state:  State{PendingNextIndex: -1},
	}
}

// State returns the current state. Transition is nil when idle.
func (c *Controller) State() State {
	s := c.state
	if s.Transition != nil {
		t := *s.Transition
		s.Transition = &t
	}
	return s
}

// Screen returns the text to display.
func (c *Controller) Screen() string { return c.screen }

// Current returns the entry on screen, or nil while the first preview
// loads.
func (c *Controller) Current() *preview.Entry { return c.current }

// Path returns the current image path.
func (c *Controller) Path() string {
	if len(c.images) == 0 {
		return ""
	}
	return c.images[c.state.CurrentIndex]
}

// Len returns the number of images.
func (c *Controller) Len() int { return len(c.images) }

// Playing reports whether slides advance on their own.
func (c *Controller) Playing() bool { return c.playing }

// Loading reports whether the current slide's preview is still on its way.
func (c *Controller) Loading() bool { return c.focusGen != 0 }

// Toggle starts or stops automatic advance.
func (c *Controller) Toggle(now time.Time) {
	c.playing = !c.playing
	if c.playing {
		c.shownAt = now
		return
	}
	c.cancelPending()
}

// Next shows the following image, wrapping at the end.
func (c *Controller) Next(now time.Time) { c.Show(c.state.CurrentIndex+1, now) }

// Prev shows the preceding image, wrapping at the start.
func (c *Controller) Prev(now time.Time) { c.Show(c.state.CurrentIndex-1, now) }

// Show navigates to index. A running transition snaps to its end and a
// pending automatic advance is dropped.
func (c *Controller) Show(index int, now time.Time) {
	if len(c.images) == 0 {
		return
	}
	c.abort()
	c.cancelPending()
	c.state.CurrentIndex = c.wrap(index)
	c.focusGen = c.loader.Schedule(c.request(c.state.CurrentIndex), preview.SlotFocus)
	c.shownAt = now
	c.prefetch(c.state.CurrentIndex)
}

// Resize changes the cell box and reloads the current image.
func (c *Controller) Resize(cols, rows int, now time.Time) {
	if cols == c.cols && rows == c.rows {
		return
	}
	c.cols, c.rows = cols, rows
	c.Show(c.state.CurrentIndex, now)
}

// Reload fetches the current image again, for example after a config
// change.
func (c *Controller) Reload(now time.Time) {
	c.Show(c.state.CurrentIndex, now)
}

// Deliver hands a drained scheduler result to the controller. It returns
// false when the result belongs to neither of its slots or is outdated.
func (c *Controller) Deliver(res preview.Result, now time.Time) bool {
	switch {
	case res.Slot == preview.SlotFocus && res.Generation == c.focusGen:
		c.focusGen = 0
		c.abort()
		c.show(res.Entry, now)
		return true
	case res.Slot == SlotNext && res.Generation == c.nextGen:
		c.nextGen = 0
		c.advance(res.Entry, now)
		return true
	}
	return false
}

// Tick advances a running transition and starts the next slide when the
// delay has passed. It reports whether the screen changed.
func (c *Controller) Tick(now time.Time) bool {
	if t := c.state.Transition; t != nil {
		frame, changed, done := c.engine.Tick(now)
		t.Elapsed = now.Sub(c.started)
		if done {
			c.state.Transition = nil
			c.show(c.current, now)
			return true
		}
		if frame != c.screen {
			c.screen = frame
			return true
		}
		return len(changed) > 0
	}

	if !c.playing || len(c.images) < 2 || c.current == nil ||
		c.focusGen != 0 || c.state.PendingNextIndex >= 0 {
		return false
	}
	if now.Sub(c.shownAt) < c.delay() {
		return false
	}

	// The next slide shows once its preview is delivered; until then the
	// current one stays.
	next := c.wrap(c.state.CurrentIndex + 1)
	c.state.PendingNextIndex = next
	c.nextGen = c.loader.Schedule(c.request(next), SlotNext)
	return false
}

func (c *Controller) advance(to *preview.Entry, now time.Time) {
	next := c.state.PendingNextIndex
	c.state.PendingNextIndex = -1
	if next < 0 {
		return
	}
	from := c.current
	c.state.CurrentIndex = next
	c.prefetch(next)

	tc := c.config.Current().Config.SlideshowTransitions
	if !tc.Enabled || from == nil || to == nil || !blendable(from) || !blendable(to) {
		c.show(to, now)
		return
	}

	c.seed++
	frameDur := time.Duration(tc.FrameDurationMS) * time.Millisecond
	if !c.engine.Start(from.Payload, to.Payload, tc.Effect, frameDur, c.seed, now) {
		logging.Debug("slideshow: no transition for effect %q", tc.Effect)
		c.show(to, now)
		return
	}
	c.current = to
	c.started = now
	c.state.Transition = &TransitionState{
		From:          from,
		To:            to,
		Effect:        tc.Effect,
		FrameDuration: frameDur,
		Seed:          c.seed,
	}
	c.Tick(now)
}

func (c *Controller) show(e *preview.Entry, now time.Time) {
	c.current = e
	c.screen = ""
	if e != nil {
		c.screen = string(e.Payload)
	}
	c.shownAt = now
}

// abort ends a running transition on its target.
func (c *Controller) abort() {
	if c.state.Transition == nil {
		return
	}
	c.engine.Abort()
	c.state.Transition = nil
	c.screen = string(c.current.Payload)
}

func (c *Controller) cancelPending() {
	if c.nextGen != 0 {
		c.loader.Cancel(SlotNext)
		c.nextGen = 0
	}
	c.state.PendingNextIndex = -1
}

func (c *Controller) prefetch(from int) {
	if len(c.images) < 2 {
		return
	}
	reqs := []preview.Request{c.request(c.wrap(from + 1))}
	if len(c.images) > 2 {
		reqs = append(reqs, c.request(c.wrap(from-1)))
	}
	c.loader.Prefetch(reqs...)
}

func (c *Controller) request(i int) preview.Request {
	return preview.Request{Path: c.images[i], Cols: c.cols, Rows: c.rows}
}

func (c *Controller) delay() time.Duration {
	return time.Duration(c.config.Current().Config.SlideshowDelayMS) * time.Millisecond
}

func (c *Controller) wrap(i int) int {
	n := len(c.images)
	return ((i % n) + n) % n
}

// blendable reports whether an entry is cell text the transition engine
// can animate.
func blendable(e *preview.Entry) bool {
	return !e.Backend.Inline()
}

var _ Loader = (*preview.Scheduler)(nil)

var _ preview.SnapshotSource = (*config.Store)(nil)
