package main

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gin-gonic/gin"

	"github.com/Zachkp/metro-portfolio/internal/content"
	"github.com/Zachkp/metro-portfolio/internal/flyover"
	"github.com/Zachkp/metro-portfolio/internal/store"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// heldScheduler never fires on its own; tests run pending tasks explicitly.
type heldScheduler struct {
	mu    sync.Mutex
	tasks []*heldTask
}

type heldTask struct {
	fn        func()
	cancelled bool
}

func (t *heldTask) Cancel() bool {
	if t.cancelled {
		return false
	}
	t.cancelled = true
	return true
}

func (s *heldScheduler) After(_ time.Duration, fn func()) flyover.Task {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := &heldTask{fn: fn}
	s.tasks = append(s.tasks, t)
	return t
}

func (s *heldScheduler) RunAll() {
	s.mu.Lock()
	tasks := s.tasks
	s.tasks = nil
	s.mu.Unlock()
	for _, t := range tasks {
		if !t.cancelled {
			t.fn()
		}
	}
}

type fakeMailer struct {
	mu   sync.Mutex
	sent []contactForm
	err  error
}

func (m *fakeMailer) Send(name, email, message string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, contactForm{Name: name, Email: email, Message: message})
	return nil
}

type testServer struct {
	*Server
	sched  *heldScheduler
	mailer *fakeMailer
}

func newTestServer(t *testing.T, configure ...func(*Config)) *testServer {
	t.Helper()
	catalog, err := content.LoadCatalog("")
	if err != nil {
		t.Fatalf("LoadCatalog: %v", err)
	}
	themes, err := content.LoadThemes("", catalog.Tiles)
	if err != nil {
		t.Fatalf("LoadThemes: %v", err)
	}
	db, err := store.OpenMemory()
	if err != nil {
		t.Fatalf("OpenMemory: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	cfg := LoadConfig()
	cfg.Admin = AdminConfig{Username: "admin", Password: "secret"}
	for _, f := range configure {
		f(&cfg)
	}
	sched := &heldScheduler{}
	mailer := &fakeMailer{}
	srv, err := NewServer(cfg, Deps{
		Catalog:   catalog,
		Themes:    themes,
		DB:        db,
		Mailer:    mailer,
		Logger:    log.New(io.Discard),
		Scheduler: sched,
	})
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}
	return &testServer{Server: srv, sched: sched, mailer: mailer}
}

// browser keeps cookies between requests like a real one would.
type browser struct {
	t       *testing.T
	h       http.Handler
	cookies map[string]*http.Cookie
}

func newBrowser(t *testing.T, h http.Handler) *browser {
	return &browser{t: t, h: h, cookies: map[string]*http.Cookie{}}
}

func (b *browser) do(req *http.Request) *httptest.ResponseRecorder {
	b.t.Helper()
	req.Header.Set("DNT", "1")
	for _, c := range b.cookies {
		req.AddCookie(c)
	}
	w := httptest.NewRecorder()
	b.h.ServeHTTP(w, req)
	for _, c := range w.Result().Cookies() {
		if c.MaxAge < 0 {
			delete(b.cookies, c.Name)
			continue
		}
		b.cookies[c.Name] = c
	}
	return w
}

func (b *browser) get(path string) *httptest.ResponseRecorder {
	return b.do(httptest.NewRequest(http.MethodGet, path, nil))
}

func (b *browser) postJSON(path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return b.do(req)
}

func (b *browser) postForm(path string, form url.Values) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return b.do(req)
}

func decodeState(t *testing.T, w *httptest.ResponseRecorder) flyover.State {
	t.Helper()
	var st flyover.State
	if err := json.Unmarshal(w.Body.Bytes(), &st); err != nil {
		t.Fatalf("decode state %q: %v", w.Body.String(), err)
	}
	return st
}

func TestHomeRendersGrid(t *testing.T) {
	ts := newTestServer(t)
	b := newBrowser(t, ts)

	w := b.get("/")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	body := w.Body.String()
	if n := strings.Count(body, `class="metro-tile `); n != 48 {
		t.Errorf("rendered %d tiles, want 48 for the fallback viewport", n)
	}
	if !strings.Contains(body, "tile-theme-metro") {
		t.Error("default theme class missing")
	}
	if _, ok := b.cookies[sessionCookie]; !ok {
		t.Error("session cookie not issued")
	}
}

func TestTilesAPI(t *testing.T) {
	ts := newTestServer(t)
	b := newBrowser(t, ts)

	tests := []struct {
		query  string
		count  int
		mobile bool
	}{
		{"w=1280&h=720", 48, false},
		{"", 48, false},
		{"w=375&h=812", 40, true},
	}
	for _, tt := range tests {
		w := b.get("/api/tiles?" + tt.query)
		if w.Code != http.StatusOK {
			t.Fatalf("%q: status = %d", tt.query, w.Code)
		}
		var resp struct {
			Count    int `json:"count"`
			Viewport struct {
				Mobile bool `json:"mobile"`
			} `json:"viewport"`
		}
		if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
			t.Fatal(err)
		}
		if resp.Count != tt.count || resp.Viewport.Mobile != tt.mobile {
			t.Errorf("%q: count=%d mobile=%v, want %d %v", tt.query, resp.Count, resp.Viewport.Mobile, tt.count, tt.mobile)
		}
	}
}

func TestMoreTilesStopsAtCap(t *testing.T) {
	ts := newTestServer(t)
	b := newBrowser(t, ts)
	b.get("/tiles?w=375&h=812")

	batches := 0
	for {
		w := b.get("/tiles/more")
		if w.Code == http.StatusNoContent {
			break
		}
		if w.Code != http.StatusOK {
			t.Fatalf("status = %d", w.Code)
		}
		batches++
		if batches > 10 {
			t.Fatal("append never stopped")
		}
	}
	// 40 initial, then 6 full batches of 24 and a trimmed batch of 16.
	if batches != 7 {
		t.Errorf("batches = %d, want 7", batches)
	}
}

func TestFlyoverOpenNavigateAndClose(t *testing.T) {
	ts := newTestServer(t)
	b := newBrowser(t, ts)
	b.get("/")

	w := b.postJSON("/api/flyover/open", `{"key":"profile","focus":"tile-x"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("open status = %d: %s", w.Code, w.Body.String())
	}
	st := decodeState(t, w)
	if st.ActiveTile == nil || st.ActiveTile.Key != "profile" || !st.IsNavigating || st.Phase != flyover.Opening {
		t.Fatalf("state after open = %+v", st)
	}

	page := b.get("/about")
	if !strings.Contains(page.Body.String(), "--metro-page-bg: #2d89ef") {
		t.Error("section page not tinted with the opened tile's color")
	}

	ts.sched.RunAll()
	st = decodeState(t, b.get("/api/flyover"))
	if st.Phase != flyover.Navigating {
		t.Errorf("phase after delay = %v, want navigating", st.Phase)
	}

	st = decodeState(t, b.postJSON("/api/flyover/close", ""))
	if st.ActiveTile != nil || st.IsNavigating || st.Phase != flyover.Idle {
		t.Errorf("state after close = %+v", st)
	}
}

func TestFlyoverCloseCancelsNavigation(t *testing.T) {
	ts := newTestServer(t)
	b := newBrowser(t, ts)
	b.get("/")

	b.postJSON("/api/flyover/open", `{"key":"lms"}`)
	b.postJSON("/api/flyover/close", "")
	ts.sched.RunAll()

	st := decodeState(t, b.get("/api/flyover"))
	if st.ActiveTile != nil || st.Phase != flyover.Idle {
		t.Errorf("state = %+v, want idle", st)
	}
}

func TestFlyoverRestore(t *testing.T) {
	ts := newTestServer(t)
	b := newBrowser(t, ts)
	b.get("/")
	b.postJSON("/api/flyover/open", `{"key":"talk"}`)

	st := decodeState(t, b.postJSON("/api/flyover/restore", `{"persisted":false}`))
	if st.ActiveTile == nil {
		t.Fatal("a fresh page load should leave the flyover alone")
	}
	st = decodeState(t, b.postJSON("/api/flyover/restore", `{"persisted":true}`))
	if st.ActiveTile != nil || st.IsNavigating {
		t.Errorf("state after restore from cache = %+v", st)
	}
}

func TestFlyoverOpenRejectsBadRequests(t *testing.T) {
	ts := newTestServer(t)
	b := newBrowser(t, ts)

	if w := b.postJSON("/api/flyover/open", `{"key":"nope"}`); w.Code != http.StatusNotFound {
		t.Errorf("unknown key status = %d, want 404", w.Code)
	}
	if w := b.postJSON("/api/flyover/open", `{}`); w.Code != http.StatusBadRequest {
		t.Errorf("missing key status = %d, want 400", w.Code)
	}
}

func TestHomeClosesOpenFlyover(t *testing.T) {
	ts := newTestServer(t)
	b := newBrowser(t, ts)
	b.get("/")
	b.postJSON("/api/flyover/open", `{"key":"sandbox"}`)

	b.get("/")
	st := decodeState(t, b.get("/api/flyover"))
	if st.ActiveTile != nil {
		t.Errorf("state after reload = %+v, want closed", st)
	}
}

func TestThemeSelection(t *testing.T) {
	ts := newTestServer(t)
	b := newBrowser(t, ts)

	w := b.get("/theme/neon")
	if w.Code != http.StatusSeeOther {
		t.Fatalf("status = %d", w.Code)
	}
	if body := b.get("/").Body.String(); !strings.Contains(body, "tile-theme-neon") {
		t.Error("theme cookie not honored")
	}
	if w := b.get("/theme/missing"); w.Code != http.StatusNotFound {
		t.Errorf("unknown theme status = %d", w.Code)
	}
}

func TestUnknownThemeCookieUsesConfiguredDefault(t *testing.T) {
	ts := newTestServer(t, func(cfg *Config) { cfg.DefaultTheme = "pastel" })
	b := newBrowser(t, ts)
	b.cookies[themeCookie] = &http.Cookie{Name: themeCookie, Value: "retired"}

	body := b.get("/").Body.String()
	if !strings.Contains(body, "tile-theme-pastel") {
		t.Error("unknown theme cookie did not fall back to the configured default")
	}
}

func TestNewServerRejectsHrefsOnBuiltinRoutes(t *testing.T) {
	themes, err := content.LoadThemes("", nil)
	if err != nil {
		t.Fatalf("LoadThemes: %v", err)
	}
	db, err := store.OpenMemory()
	if err != nil {
		t.Fatalf("OpenMemory: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	for _, href := range []string{"/", "/#top", "/privacy", "/tiles", "/tiles/more", "/theme/neon", "/api/tiles", "/static/metro.css", "/admin", "/admin/login", "/docs/:id"} {
		catalog, err := content.ParseCatalog([]byte("tiles:\n  - key: home\n    title: Home\n    href: \"" + href + "\"\n"))
		if err != nil {
			t.Fatalf("%s: ParseCatalog: %v", href, err)
		}
		func() {
			defer func() {
				if p := recover(); p != nil {
					t.Errorf("%s: NewServer panicked: %v", href, p)
				}
			}()
			if _, err := NewServer(LoadConfig(), Deps{
				Catalog: catalog,
				Themes:  themes,
				DB:      db,
				Mailer:  &fakeMailer{},
				Logger:  log.New(io.Discard),
			}); err == nil {
				t.Errorf("%s: NewServer accepted a colliding href", href)
			}
		}()
	}
}

func TestNewServerServesSectionHrefs(t *testing.T) {
	themes, err := content.LoadThemes("", nil)
	if err != nil {
		t.Fatalf("LoadThemes: %v", err)
	}
	db, err := store.OpenMemory()
	if err != nil {
		t.Fatalf("OpenMemory: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	catalog, err := content.ParseCatalog([]byte("tiles:\n  - key: notes\n    title: Notes\n    href: /notes#latest\n  - key: mail\n    title: Mail\n    href: /contact\n"))
	if err != nil {
		t.Fatalf("ParseCatalog: %v", err)
	}
	srv, err := NewServer(LoadConfig(), Deps{
		Catalog: catalog,
		Themes:  themes,
		DB:      db,
		Mailer:  &fakeMailer{},
		Logger:  log.New(io.Discard),
	})
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}
	b := newBrowser(t, srv)
	if w := b.get("/notes"); w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "Notes") {
		t.Errorf("/notes = %d %q", w.Code, w.Body.String())
	}
}

func TestAdminRequiresLogin(t *testing.T) {
	ts := newTestServer(t)
	b := newBrowser(t, ts)

	w := b.get("/admin/dashboard")
	if w.Code != http.StatusFound || w.Header().Get("Location") != "/admin/login" {
		t.Fatalf("unauthenticated dashboard = %d %q", w.Code, w.Header().Get("Location"))
	}

	w = b.postForm("/admin/login", url.Values{"username": {"admin"}, "password": {"wrong"}})
	if w.Code != http.StatusUnauthorized {
		t.Errorf("bad login status = %d", w.Code)
	}

	w = b.postForm("/admin/login", url.Values{"username": {"admin"}, "password": {"secret"}})
	if w.Code != http.StatusFound {
		t.Fatalf("login status = %d", w.Code)
	}
	if w := b.get("/admin/dashboard"); w.Code != http.StatusOK {
		t.Errorf("dashboard status = %d", w.Code)
	}
}

func TestContactSubmit(t *testing.T) {
	ts := newTestServer(t)
	b := newBrowser(t, ts)

	w := b.postForm("/contact", url.Values{"fullName": {"Ada"}, "email": {"not-an-email"}, "message": {"hi"}})
	if !strings.Contains(w.Body.String(), "valid email") {
		t.Errorf("invalid email body = %q", w.Body.String())
	}

	w = b.postForm("/contact", url.Values{
		"fullName": {"Ada\r\nBcc: x@example.com"},
		"email":    {"ada@example.com"},
		"message":  {"<script>alert(1)</script>Hello"},
	})
	if !strings.Contains(w.Body.String(), "metro-alert--success") {
		t.Fatalf("submit body = %q", w.Body.String())
	}
	if len(ts.mailer.sent) != 1 {
		t.Fatalf("sent %d messages", len(ts.mailer.sent))
	}
	got := ts.mailer.sent[0]
	if strings.ContainsAny(got.Name, "\r\n") {
		t.Errorf("name kept line breaks: %q", got.Name)
	}
	if strings.Contains(got.Message, "<script>") {
		t.Errorf("message not sanitized: %q", got.Message)
	}
}
