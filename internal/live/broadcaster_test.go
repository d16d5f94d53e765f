package live

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/log"
)

func newTestBroadcaster() *Broadcaster {
	return NewBroadcaster(log.New(io.Discard))
}

func TestBroadcasterSubscribeUnsubscribe(t *testing.T) {
	b := newTestBroadcaster()
	s1 := b.subscribe("s1")
	s2 := b.subscribe("s1")
	s3 := b.subscribe("s2")

	if b.Streams("s1") != 2 || b.Streams("s2") != 1 {
		t.Fatalf("unexpected counts s1=%d s2=%d", b.Streams("s1"), b.Streams("s2"))
	}

	b.unsubscribe("s1", s1)
	b.unsubscribe("s1", s1) // idempotent
	b.unsubscribe("s1", s2)
	b.unsubscribe("s2", s3)
	if b.Streams("s1") != 0 || b.Streams("s2") != 0 {
		t.Fatal("expected no streams after unsubscribe")
	}
	if len(b.sessions) != 0 {
		t.Fatalf("empty sessions kept: %d", len(b.sessions))
	}
}

func TestPublishIsSessionScoped(t *testing.T) {
	b := newTestBroadcaster()
	mine := b.subscribe("s1")
	other := b.subscribe("s2")
	defer b.unsubscribe("s1", mine)
	defer b.unsubscribe("s2", other)

	b.Publish("s1", Event{Type: EventNavigate, Href: "/about"})

	select {
	case e := <-mine.ch:
		if e.Href != "/about" {
			t.Fatalf("got %+v", e)
		}
	case <-time.After(100 * time.Millisecond):
		t.Fatal("event not delivered")
	}
	select {
	case <-other.ch:
		t.Fatal("other session received the event")
	case <-time.After(20 * time.Millisecond):
	}
}

func TestPublishKeepsNewestForSlowStream(t *testing.T) {
	b := newTestBroadcaster()
	s := b.subscribe("s1")
	defer b.unsubscribe("s1", s)

	total := streamBuffer + 5
	for i := range total {
		b.Publish("s1", Event{Type: EventFocus, Target: string(rune('a' + i))})
	}
	if len(s.ch) != streamBuffer {
		t.Fatalf("expected a full buffer of %d, got %d", streamBuffer, len(s.ch))
	}

	var last Event
	first := <-s.ch
	for len(s.ch) > 0 {
		last = <-s.ch
	}
	if want := string(rune('a' + 5)); first.Target != want {
		t.Fatalf("oldest queued event %q, want %q", first.Target, want)
	}
	if want := string(rune('a' + total - 1)); last.Target != want {
		t.Fatalf("newest queued event %q, want %q", last.Target, want)
	}
}

func TestServeSSEStreamsEvents(t *testing.T) {
	b := newTestBroadcaster()
	ctx, cancel := context.WithCancel(context.Background())
	req := httptest.NewRequest(http.MethodGet, "/events", nil).WithContext(ctx)
	w := httptest.NewRecorder()

	done := make(chan struct{})
	go func() {
		b.ServeSSE(w, req, "s1", func() { b.Publish("s1", Event{Type: EventRedirect, Href: "https://example.com"}) })
		close(done)
	}()

	deadline := time.After(time.Second)
	for b.Streams("s1") == 0 {
		select {
		case <-deadline:
			t.Fatal("stream never subscribed")
		case <-time.After(5 * time.Millisecond):
		}
	}
	time.Sleep(20 * time.Millisecond)
	cancel()
	<-done

	if ct := w.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("content type %q", ct)
	}
	want := `data: {"type":"redirect","href":"https://example.com"}` + "\n\n"
	if !strings.Contains(w.Body.String(), want) {
		t.Fatalf("body %q", w.Body.String())
	}
	if b.Streams("s1") != 0 {
		t.Fatal("stream not released when the request ended")
	}
}
