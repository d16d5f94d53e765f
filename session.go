package main

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/oklog/ulid/v2"

	"github.com/Zachkp/metro-portfolio/internal/live"
	"github.com/Zachkp/metro-portfolio/internal/tiles"
)

const (
	sessionCookie  = "metro_session"
	themeCookie    = "metro_theme"
	viewportCookie = "metro_viewport"
	sessionCtxKey  = "liveSession"
)

// sessionMiddleware attaches the browser's live session, issuing a
// browser-session cookie on first visit. Static assets and admin pages do
// not need one.
func (s *Server) sessionMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		path := c.Request.URL.Path
		if strings.HasPrefix(path, "/static/") || strings.HasPrefix(path, "/admin") {
			c.Next()
			return
		}

		id, err := c.Cookie(sessionCookie)
		if err != nil || !validSessionID(id) {
			id = ulid.Make().String()
			c.SetSameSite(http.SameSiteLaxMode)
			c.SetCookie(sessionCookie, id, 0, "/", "", s.cfg.Release, true)
		}

		sess, err := s.hub.Session(id)
		if err != nil {
			s.logger.Error("failed to create session", "err", err)
			c.AbortWithStatus(http.StatusInternalServerError)
			return
		}
		c.Set(sessionCtxKey, sess)
		c.Next()
	}
}

func validSessionID(id string) bool {
	_, err := ulid.ParseStrict(id)
	return err == nil
}

// mustSession returns the live session attached by sessionMiddleware. A
// handler reaching it without one is wired wrong.
func mustSession(c *gin.Context) *live.Session {
	v, ok := c.Get(sessionCtxKey)
	if !ok {
		panic(fmt.Sprintf("no live session for %s: sessionMiddleware not installed", c.FullPath()))
	}
	return v.(*live.Session)
}

// theme returns the theme selected by cookie or query, else the default.
func (s *Server) theme(c *gin.Context) tiles.Theme {
	if name := c.Query("theme"); name != "" && s.themes.Has(name) {
		return s.themes.Get(name)
	}
	if name, err := c.Cookie(themeCookie); err == nil && s.themes.Has(name) {
		return s.themes.Get(name)
	}
	if s.cfg.DefaultTheme != "" {
		return s.themes.Get(s.cfg.DefaultTheme)
	}
	return s.themes.Default()
}

// viewport reads w/h query parameters, falling back to the last viewport the
// browser reported. Zero means unknown.
func viewport(c *gin.Context) (int, int) {
	w, _ := strconv.Atoi(c.Query("w"))
	h, _ := strconv.Atoi(c.Query("h"))
	if w > 0 && h > 0 {
		return w, h
	}
	if v, err := c.Cookie(viewportCookie); err == nil {
		ws, hs, ok := strings.Cut(v, "x")
		if ok {
			w, _ = strconv.Atoi(ws)
			h, _ = strconv.Atoi(hs)
			return w, h
		}
	}
	return 0, 0
}
