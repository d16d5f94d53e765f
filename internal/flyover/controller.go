// Package flyover coordinates the full-screen panel a tile opens into: the
// timed hand-off from grid cell to overlay, the transient page color, focus
// return and the deferred navigation that follows.
package flyover

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/Zachkp/metro-portfolio/internal/tiles"
)

// DefaultDelay is how long the flyover animates before navigation.
const DefaultDelay = 420 * time.Millisecond

var (
	ErrMissingNavigator = errors.New("flyover: navigator is required")
	ErrMissingColor     = errors.New("flyover: color effect is required")
)

// Phase is the controller's position in the open/navigate cycle.
type Phase int

const (
	Idle Phase = iota
	Opening
	Navigating
)

func (p Phase) String() string {
	switch p {
	case Opening:
		return "opening"
	case Navigating:
		return "navigating"
	default:
		return "idle"
	}
}

// MarshalText renders the phase by name in JSON.
func (p Phase) MarshalText() ([]byte, error) { return []byte(p.String()), nil }

// UnmarshalText parses a phase name.
func (p *Phase) UnmarshalText(b []byte) error {
	switch string(b) {
	case "idle":
		*p = Idle
	case "opening":
		*p = Opening
	case "navigating":
		*p = Navigating
	default:
		return fmt.Errorf("flyover: unknown phase %q", b)
	}
	return nil
}

// State is a snapshot of the controller.
type State struct {
	ActiveTile   *tiles.Data `json:"activeTile"`
	IsNavigating bool        `json:"isNavigating"`
	Phase        Phase       `json:"phase"`
}

// Options wires a Controller to its collaborators.
type Options struct {
	Navigator Navigator
	Color     ColorEffect
	Focus     Focus
	Scheduler Scheduler
	Delay     time.Duration
	Logger    *log.Logger
	// OnChange observes every transition. It runs with the controller
	// locked and must not call back into it.
	OnChange func(State)
}

// Controller owns which tile is open. All methods are safe for concurrent use.
type Controller struct {
	nav      Navigator
	color    ColorEffect
	focus    Focus
	sched    Scheduler
	delay    time.Duration
	logger   *log.Logger
	onChange func(State)

	mu        sync.Mutex
	active    *tiles.Data
	phase     Phase
	pending   Task
	gen       uint64
	lastFocus string
}

// New returns a Controller. Navigator and Color are required.
func New(opts Options) (*Controller, error) {
	if opts.Navigator == nil {
		return nil, ErrMissingNavigator
	}
	if opts.Color == nil {
		return nil, ErrMissingColor
	}
	c := &Controller{
		nav:      opts.Navigator,
		color:    opts.Color,
		focus:    opts.Focus,
		sched:    opts.Scheduler,
		delay:    opts.Delay,
		logger:   opts.Logger,
		onChange: opts.OnChange,
	}
	if c.focus == nil {
		c.focus = noFocus{}
	}
	if c.sched == nil {
		c.sched = TimerScheduler{}
	}
	if c.delay <= 0 {
		c.delay = DefaultDelay
	}
	if c.logger == nil {
		c.logger = log.Default()
	}
	return c, nil
}

// Open makes tile the active tile and arms its transition, replacing any
// tile that was already open.
func (c *Controller) Open(tile tiles.Data) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.cancelLocked()
	t := tile
	c.active = &t
	if t.HasTarget() {
		c.color.Apply(t.Color)
	} else {
		c.color.Clear()
	}

	if c.lastFocus == "" {
		c.lastFocus = c.focus.Current()
	}
	c.focus.Move(DialogID(string(t.Key)))

	c.phase = Opening
	gen := c.gen
	c.pending = c.sched.After(c.delay, func() { c.fire(gen) })
	c.logger.Debug("flyover opened", "key", t.Key, "href", t.Href)
	c.notifyLocked()
}

// Close dismisses the active tile and cancels any pending navigation.
func (c *Controller) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.cancelLocked()
	c.resetLocked()
}

// Restore handles a page shown again from the back/forward cache. A persisted
// page would otherwise come back with the overlay stuck open.
func (c *Controller) Restore(persisted bool) {
	if persisted {
		c.Close()
	}
}

// Stop cancels a pending transition without touching state.
func (c *Controller) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cancelLocked()
}

// State returns the current snapshot.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stateLocked()
}

func (c *Controller) fire(gen uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if gen != c.gen || c.active == nil {
		return
	}
	c.pending = nil
	c.gen++

	tile := *c.active
	if !tile.HasTarget() {
		c.resetLocked()
		return
	}

	c.phase = Navigating
	c.logger.Debug("flyover navigating", "key", tile.Key, "href", tile.Href)
	if tile.IsExternal() {
		c.nav.Redirect(tile.Href)
	} else {
		c.nav.Navigate(tile.Href)
	}
	c.notifyLocked()
}

// cancelLocked invalidates the pending task, including one whose timer has
// already fired but is still waiting for the lock.
func (c *Controller) cancelLocked() {
	if c.pending != nil {
		c.pending.Cancel()
		c.pending = nil
	}
	c.gen++
}

func (c *Controller) resetLocked() {
	wasOpen := c.active != nil
	c.active = nil
	c.phase = Idle
	if !wasOpen {
		return
	}
	c.color.Clear()
	if c.lastFocus != "" {
		c.focus.Move(c.lastFocus)
		c.lastFocus = ""
	}
	c.notifyLocked()
}

func (c *Controller) stateLocked() State {
	s := State{Phase: c.phase, IsNavigating: c.active != nil}
	if c.active != nil {
		t := *c.active
		s.ActiveTile = &t
	}
	return s
}

func (c *Controller) notifyLocked() {
	if c.onChange != nil {
		c.onChange(c.stateLocked())
	}
}
