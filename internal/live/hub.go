// Package live holds per-browser-session state: the tile working set, the
// flyover controller and the event stream the browser follows.
package live

import (
	"errors"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/Zachkp/metro-portfolio/internal/flyover"
	"github.com/Zachkp/metro-portfolio/internal/tiles"
)

// Storage is session-scoped storage that can also be read back.
type Storage interface {
	flyover.SessionStorage
	GetItem(key string) (string, bool, error)
}

// Event is pushed to the browser over the event stream.
type Event struct {
	Type       string         `json:"type"`
	State      *flyover.State `json:"state,omitempty"`
	LockScroll bool           `json:"lockScroll,omitempty"`
	Href       string         `json:"href,omitempty"`
	Target     string         `json:"target,omitempty"`
	Property   string         `json:"property,omitempty"`
	Value      string         `json:"value,omitempty"`
}

// Event types.
const (
	EventState    = "state"
	EventNavigate = "navigate"
	EventRedirect = "redirect"
	EventFocus    = "focus"
	EventStyle    = "style"
)

// Config wires a Hub.
type Config struct {
	Generator *tiles.Generator
	// Storage returns the session-scoped storage for a session id.
	Storage   func(sessionID string) Storage
	Scheduler flyover.Scheduler
	Delay     time.Duration
	Logger    *log.Logger
}

var (
	ErrMissingGenerator = errors.New("live: generator is required")
	ErrMissingStorage   = errors.New("live: storage is required")
)

// Hub owns every live session.
type Hub struct {
	cfg    Config
	events *Broadcaster
	now    func() time.Time

	mu       sync.Mutex
	sessions map[string]*Session
}

// NewHub returns a Hub.
func NewHub(cfg Config) (*Hub, error) {
	if cfg.Generator == nil {
		return nil, ErrMissingGenerator
	}
	if cfg.Storage == nil {
		return nil, ErrMissingStorage
	}
	if cfg.Logger == nil {
		cfg.Logger = log.Default()
	}
	return &Hub{
		cfg:      cfg,
		events:   NewBroadcaster(cfg.Logger),
		now:      time.Now,
		sessions: make(map[string]*Session),
	}, nil
}

// Events returns the hub's broadcaster.
func (h *Hub) Events() *Broadcaster { return h.events }

// Session returns the session for id, creating it on first use.
func (h *Hub) Session(id string) (*Session, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if s, ok := h.sessions[id]; ok {
		s.touch(h.now())
		return s, nil
	}

	s := &Session{
		ID:       id,
		hub:      h,
		storage:  h.cfg.Storage(id),
		props:    map[string]string{},
		lastSeen: h.now(),
	}
	logger := h.cfg.Logger.With("session", shortID(id))
	ctrl, err := flyover.New(flyover.Options{
		Navigator: sessionNavigator{s},
		Color:     flyover.NewColorSideEffect(s.storage, sessionPage{s}, logger),
		Focus:     sessionFocus{s},
		Scheduler: h.cfg.Scheduler,
		Delay:     h.cfg.Delay,
		Logger:    logger,
		OnChange: func(st flyover.State) {
			s.emit(Event{Type: EventState, State: &st, LockScroll: st.ActiveTile != nil})
		},
	})
	if err != nil {
		return nil, err
	}
	s.ctrl = ctrl
	h.sessions[id] = s
	return s, nil
}

// Len returns the number of live sessions.
func (h *Hub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.sessions)
}

// Prune drops sessions idle for longer than maxIdle that have no open stream,
// cancelling their pending transitions.
func (h *Hub) Prune(maxIdle time.Duration) int {
	cutoff := h.now().Add(-maxIdle)
	h.mu.Lock()
	defer h.mu.Unlock()

	n := 0
	for id, s := range h.sessions {
		if s.seenBefore(cutoff) && h.events.Streams(id) == 0 {
			s.ctrl.Stop()
			delete(h.sessions, id)
			n++
		}
	}
	return n
}

func (h *Hub) publish(sessionID string, e Event) {
	h.events.Publish(sessionID, e)
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[len(id)-8:]
	}
	return id
}
