package live

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/charmbracelet/log"
)

const (
	streamBuffer = 16
	heartbeat    = 30 * time.Second
)

// stream is one open event connection. A session has one per open tab.
type stream struct {
	ch chan Event
}

// Broadcaster delivers session events to the browser tabs following them.
type Broadcaster struct {
	logger *log.Logger

	mu       sync.Mutex
	sessions map[string]map[*stream]struct{}
}

// NewBroadcaster creates a broadcaster with no open streams.
func NewBroadcaster(logger *log.Logger) *Broadcaster {
	if logger == nil {
		logger = log.Default()
	}
	return &Broadcaster{logger: logger, sessions: make(map[string]map[*stream]struct{})}
}

func (b *Broadcaster) subscribe(sessionID string) *stream {
	s := &stream{ch: make(chan Event, streamBuffer)}
	b.mu.Lock()
	defer b.mu.Unlock()
	set, ok := b.sessions[sessionID]
	if !ok {
		set = make(map[*stream]struct{})
		b.sessions[sessionID] = set
	}
	set[s] = struct{}{}
	return s
}

// unsubscribe is idempotent.
func (b *Broadcaster) unsubscribe(sessionID string, s *stream) {
	b.mu.Lock()
	defer b.mu.Unlock()
	set := b.sessions[sessionID]
	if _, ok := set[s]; !ok {
		return
	}
	delete(set, s)
	close(s.ch)
	if len(set) == 0 {
		delete(b.sessions, sessionID)
	}
}

// Publish queues e on every stream of sessionID without blocking. A stream
// that has fallen behind loses its oldest queued event, so the latest state
// always reaches the page.
func (b *Broadcaster) Publish(sessionID string, e Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for s := range b.sessions[sessionID] {
		select {
		case s.ch <- e:
			continue
		default:
		}
		select {
		case old := <-s.ch:
			b.logger.Debug("stream behind, dropping event", "session", shortID(sessionID), "type", old.Type)
		default:
		}
		select {
		case s.ch <- e:
		default:
		}
	}
}

// Streams returns the number of open streams for sessionID.
func (b *Broadcaster) Streams(sessionID string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.sessions[sessionID])
}

// ServeSSE streams a session's events until the request ends. onConnect runs
// once the stream is subscribed, so anything it publishes reaches this tab.
func (b *Broadcaster) ServeSSE(w http.ResponseWriter, r *http.Request, sessionID string, onConnect func()) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	s := b.subscribe(sessionID)
	defer b.unsubscribe(sessionID, s)
	if onConnect != nil {
		onConnect()
	}

	ticker := time.NewTicker(heartbeat)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case e, ok := <-s.ch:
			if !ok {
				return
			}
			if err := writeEvent(w, e); err != nil {
				b.logger.Error("failed to write event", "session", shortID(sessionID), "type", e.Type, "err", err)
				continue
			}
			flusher.Flush()
		case <-ticker.C:
			fmt.Fprint(w, ": heartbeat\n\n")
			flusher.Flush()
		}
	}
}

// writeEvent writes e as one unnamed SSE message, which the page reads with
// EventSource.onmessage.
func writeEvent(w io.Writer, e Event) error {
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("encode %s event: %w", e.Type, err)
	}
	_, err = fmt.Fprintf(w, "data: %s\n\n", data)
	return err
}
