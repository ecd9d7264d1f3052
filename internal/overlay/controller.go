// Package overlay drives the item detail overlay from the navigable
// location and the cached Collection.
//
// The overlay opens at once when the location names an item present in the
// Collection and closes with a short dismissal delay otherwise. The selected
// item is kept until the delay has passed so the closing view can still
// render it.
package overlay

import (
	"sync"
	"time"

	"github.com/Makepad-fr/todos/internal/clock"
	"github.com/Makepad-fr/todos/internal/model"
)

// DismissDelay is how long the overlay stays in Closing before the
// selection is cleared.
const DismissDelay = 200 * time.Millisecond

// State of the overlay.
type State int

const (
	Closed State = iota
	Opening
	Open
	Closing
)

func (s State) String() string {
	switch s {
	case Closed:
		return "closed"
	case Opening:
		return "opening"
	case Open:
		return "open"
	case Closing:
		return "closing"
	}
	return "unknown"
}

// Navigator replaces the current location. It may call back into the
// Controller.
type Navigator func(Location)

// Option configures a Controller.
type Option func(*Controller)

// WithClock injects the timer source.
func WithClock(c clock.Clock) Option { return func(ctl *Controller) { ctl.clock = c } }

// WithDelay overrides DismissDelay.
func WithDelay(d time.Duration) Option { return func(ctl *Controller) { ctl.delay = d } }

// WithNavigator sets the function used to clear the item parameter on
// dismissal.
func WithNavigator(n Navigator) Option { return func(ctl *Controller) { ctl.navigate = n } }

// WithOnChange registers a hook called after every state transition,
// outside the controller lock.
func WithOnChange(fn func(State)) Option { return func(ctl *Controller) { ctl.onChange = fn } }

// Controller is safe for concurrent use: Sync runs on the UI side while
// ItemDeleted arrives from the realtime read loop.
type Controller struct {
	clock    clock.Clock
	delay    time.Duration
	navigate Navigator
	onChange func(State)

	mu       sync.Mutex
	state    State
	selected *model.Todo
	creating bool
	loc      Location
	timer    *clock.Timer
	gen      uint64
}

func NewController(opts ...Option) *Controller {
	c := &Controller{clock: clock.Real(), delay: DismissDelay}
	for _, o := range opts {
		o(c)
	}
	return c
}

// State returns the current overlay state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Selected returns the item the overlay shows. It stays set while Closing.
func (c *Controller) Selected() (model.Todo, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.selected == nil {
		return model.Todo{}, false
	}
	return *c.selected, true
}

// Creating reports whether the overlay is open for a new item.
func (c *Controller) Creating() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.creating
}

// Location returns the last location passed to Sync.
func (c *Controller) Location() Location {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.loc
}

// Sync reconciles the overlay with loc and the current Collection. It must
// be called whenever either changes.
func (c *Controller) Sync(loc Location, page *model.TodoPage) {
	c.mu.Lock()
	c.loc = loc
	id := loc.TodoID()
	var changes []State
	if todo, ok := page.Find(id); id != "" && ok {
		c.creating = false
		c.selected = &todo
		changes = c.openLocked()
	} else if !(c.creating && id == "") {
		c.creating = false
		changes = c.closeLocked()
	}
	c.mu.Unlock()
	c.emit(changes)
}

// OpenCreate opens the overlay with no selected item, for a new item.
// Collection changes do not close it; only Dismiss or a location naming
// an item does.
func (c *Controller) OpenCreate() {
	c.mu.Lock()
	c.creating = true
	c.selected = nil
	changes := c.openLocked()
	c.mu.Unlock()
	c.emit(changes)
}

// Dismiss is the explicit user close. The item parameter is cleared through
// the navigator so the location stops naming the item.
func (c *Controller) Dismiss() {
	c.mu.Lock()
	c.creating = false
	loc := c.loc
	changes := c.closeLocked()
	c.mu.Unlock()
	c.emit(changes)

	if loc.TodoID() != "" && c.navigate != nil {
		c.navigate(loc.WithoutTodo())
	}
}

// ItemDeleted closes the overlay when it shows id.
func (c *Controller) ItemDeleted(id string) {
	c.mu.Lock()
	shown := c.selected != nil && c.selected.ID == id && (c.state == Open || c.state == Opening)
	c.mu.Unlock()
	if shown {
		c.Dismiss()
	}
}

func (c *Controller) openLocked() []State {
	c.cancelTimerLocked()
	if c.state == Open {
		return nil
	}
	c.state = Opening
	c.state = Open
	return []State{Opening, Open}
}

func (c *Controller) closeLocked() []State {
	if c.state == Closed || c.state == Closing {
		return nil
	}
	c.gen++
	if c.delay <= 0 {
		c.state = Closed
		c.selected = nil
		return []State{Closing, Closed}
	}
	c.state = Closing
	gen := c.gen
	c.timer = c.clock.AfterFunc(c.delay, func() { c.finishClose(gen) })
	return []State{Closing}
}

func (c *Controller) finishClose(gen uint64) {
	c.mu.Lock()
	if c.gen != gen || c.state != Closing {
		c.mu.Unlock()
		return
	}
	c.state = Closed
	c.selected = nil
	c.timer = nil
	c.mu.Unlock()
	c.emit([]State{Closed})
}

func (c *Controller) cancelTimerLocked() {
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	c.gen++
}

func (c *Controller) emit(states []State) {
	if c.onChange == nil {
		return
	}
	for _, s := range states {
		c.onChange(s)
	}
}
