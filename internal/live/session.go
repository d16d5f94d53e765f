package live

import (
	"sync"
	"time"

	"github.com/Zachkp/metro-portfolio/internal/flyover"
	"github.com/Zachkp/metro-portfolio/internal/tiles"
)

// Session is the server-side view of one browser session.
type Session struct {
	ID string

	hub     *Hub
	ctrl    *flyover.Controller
	storage Storage

	mu        sync.Mutex
	instances []tiles.Instance
	focus     string
	props     map[string]string
	lastSeen  time.Time
}

// Controller returns the session's flyover controller.
func (s *Session) Controller() *flyover.Controller { return s.ctrl }

// Open opens tile, recording focusedID as the element that had focus.
func (s *Session) Open(tile tiles.Data, focusedID string) {
	s.mu.Lock()
	s.focus = focusedID
	s.mu.Unlock()
	s.ctrl.Open(tile)
}

// Sync pushes the current flyover state to the session's streams.
func (s *Session) Sync() {
	st := s.ctrl.State()
	s.emit(Event{Type: EventState, State: &st, LockScroll: st.ActiveTile != nil})
}

// Regenerate replaces the working set with a fresh layout for the viewport.
func (s *Session) Regenerate(defs []tiles.Definition, width, height int) []tiles.Instance {
	generated := s.hub.cfg.Generator.Generate(defs, width, height)
	s.mu.Lock()
	s.instances = generated
	s.mu.Unlock()
	return clone(generated)
}

// Instances returns the working set.
func (s *Session) Instances() []tiles.Instance {
	s.mu.Lock()
	defer s.mu.Unlock()
	return clone(s.instances)
}

// AppendBatch grows the working set for infinite scroll and returns only the
// new instances, none once the cap is reached.
func (s *Session) AppendBatch(defs []tiles.Definition) []tiles.Instance {
	s.mu.Lock()
	defer s.mu.Unlock()
	before := len(s.instances)
	s.instances = s.hub.cfg.Generator.Append(s.instances, defs)
	return clone(s.instances[before:])
}

// PageColor returns the tile color tinting the session's pages, if any.
func (s *Session) PageColor() string {
	s.mu.Lock()
	v, ok := s.props[flyover.PageProperty]
	s.mu.Unlock()
	if ok {
		return v
	}
	stored, found, err := s.storage.GetItem(flyover.StorageKey)
	if err != nil {
		s.hub.cfg.Logger.Error("failed to read tile color", "session", shortID(s.ID), "err", err)
		return ""
	}
	if !found {
		return ""
	}
	return stored
}

func (s *Session) emit(e Event) {
	s.hub.publish(s.ID, e)
}

func (s *Session) touch(now time.Time) {
	s.mu.Lock()
	s.lastSeen = now
	s.mu.Unlock()
}

func (s *Session) seenBefore(t time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSeen.Before(t)
}

func clone(in []tiles.Instance) []tiles.Instance {
	if in == nil {
		return nil
	}
	out := make([]tiles.Instance, len(in))
	copy(out, in)
	return out
}

type sessionNavigator struct{ s *Session }

func (n sessionNavigator) Navigate(path string) {
	n.s.emit(Event{Type: EventNavigate, Href: path})
}

func (n sessionNavigator) Redirect(url string) {
	n.s.emit(Event{Type: EventRedirect, Href: url})
}

// sessionFocus reports the element the browser said was focused when it
// asked to open a tile, and tells the browser where focus should go next.
type sessionFocus struct{ s *Session }

func (f sessionFocus) Current() string {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	return f.s.focus
}

func (f sessionFocus) Move(id string) {
	f.s.emit(Event{Type: EventFocus, Target: id})
}

type sessionPage struct{ s *Session }

func (p sessionPage) SetProperty(name, value string) {
	p.s.mu.Lock()
	p.s.props[name] = value
	p.s.mu.Unlock()
	p.s.emit(Event{Type: EventStyle, Property: name, Value: value})
}

func (p sessionPage) RemoveProperty(name string) {
	p.s.mu.Lock()
	delete(p.s.props, name)
	p.s.mu.Unlock()
	p.s.emit(Event{Type: EventStyle, Property: name})
}
