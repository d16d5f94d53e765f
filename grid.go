package main

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/Zachkp/metro-portfolio/internal/content"
	"github.com/Zachkp/metro-portfolio/internal/tiles"
)

// tileView is a resolved tile with what the template needs to place it.
type tileView struct {
	tiles.Resolved
	Cols     int
	Rows     int
	External bool
	DOMID    string
}

func (s *Server) views(instances []tiles.Instance, theme tiles.Theme) []tileView {
	resolved := tiles.Resolve(instances, tiles.ResolveData(theme, s.catalog.Tiles))
	out := make([]tileView, len(resolved))
	for i, r := range resolved {
		span := r.Size.Span()
		out[i] = tileView{
			Resolved: r,
			Cols:     span.Cols,
			Rows:     span.Rows,
			External: r.Tile.IsExternal(),
			DOMID:    "tile-" + r.InstanceID,
		}
	}
	return out
}

func (s *Server) handleHome(c *gin.Context) {
	sess := mustSession(c)
	theme := s.theme(c)

	// A freshly loaded grid never inherits an open flyover.
	sess.Controller().Close()

	instances := sess.Instances()
	w, h := viewport(c)
	if len(instances) == 0 {
		instances = sess.Regenerate(s.catalog.Tiles, w, h)
	}
	w, h = s.gen.Viewport(w, h)

	c.HTML(http.StatusOK, "index.html", gin.H{
		"site":       s.catalog.Site,
		"theme":      theme,
		"themes":     s.themes.List(),
		"tiles":      s.views(instances, theme),
		"width":      w,
		"height":     h,
		"mobile":     s.gen.IsMobile(w),
		"delay":      s.cfg.FlyoverDelay.Milliseconds(),
		"breakpoint": s.gen.Config().MobileBreakpoint,
		"appendCap":  s.gen.Config().AppendCap,
	})
}

// handleTiles regenerates the working set for the reported viewport and
// returns the grid fragment.
func (s *Server) handleTiles(c *gin.Context) {
	sess := mustSession(c)
	w, h := viewport(c)
	instances := sess.Regenerate(s.catalog.Tiles, w, h)
	if w > 0 && h > 0 {
		c.SetSameSite(http.SameSiteLaxMode)
		c.SetCookie(viewportCookie, strconv.Itoa(w)+"x"+strconv.Itoa(h), 0, "/", "", s.cfg.Release, false)
	}
	c.HTML(http.StatusOK, "grid.html", gin.H{
		"tiles": s.views(instances, s.theme(c)),
	})
}

// handleMoreTiles appends an infinite-scroll batch.
func (s *Server) handleMoreTiles(c *gin.Context) {
	sess := mustSession(c)
	added := sess.AppendBatch(s.catalog.Tiles)
	if len(added) == 0 {
		c.Status(http.StatusNoContent)
		return
	}
	c.HTML(http.StatusOK, "tiles.html", gin.H{
		"tiles": s.views(added, s.theme(c)),
	})
}

func (s *Server) handleTheme(c *gin.Context) {
	name := c.Param("name")
	if !s.themes.Has(name) {
		c.String(http.StatusNotFound, "unknown theme")
		return
	}
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(themeCookie, name, 365*24*3600, "/", "", s.cfg.Release, false)
	c.Redirect(http.StatusSeeOther, "/")
}

// handleTilesAPI returns a freshly generated layout without touching the
// session's working set.
func (s *Server) handleTilesAPI(c *gin.Context) {
	w, h := viewport(c)
	theme := s.theme(c)
	instances := s.gen.Generate(s.catalog.Tiles, w, h)
	resolved := tiles.Resolve(instances, tiles.ResolveData(theme, s.catalog.Tiles))
	vw, vh := s.gen.Viewport(w, h)

	c.JSON(http.StatusOK, gin.H{
		"theme":    theme.Name,
		"viewport": gin.H{"width": vw, "height": vh, "mobile": s.gen.IsMobile(vw)},
		"count":    len(resolved),
		"tiles":    resolved,
	})
}

func (s *Server) handleThemesAPI(c *gin.Context) {
	type themeInfo struct {
		Name  string `json:"name"`
		Label string `json:"label"`
	}
	list := s.themes.List()
	out := make([]themeInfo, len(list))
	for i, t := range list {
		out[i] = themeInfo{Name: t.Name, Label: t.Label}
	}
	c.JSON(http.StatusOK, gin.H{"default": s.themes.Default().Name, "themes": out})
}

// handleSection serves the page an internal tile navigates to, tinted with
// the color of the tile that led here.
func (s *Server) handleSection(path string) gin.HandlerFunc {
	return func(c *gin.Context) {
		sess := mustSession(c)
		section, ok := s.catalog.Section(path)
		if !ok {
			section = s.fallbackSection(path)
		}
		c.HTML(http.StatusOK, "section.html", gin.H{
			"site":      s.catalog.Site,
			"section":   section,
			"pageColor": sess.PageColor(),
			"theme":     s.theme(c),
		})
	}
}

// fallbackSection titles a page no section was authored for after the first
// tile pointing at it.
func (s *Server) fallbackSection(path string) content.Section {
	sec := content.Section{Path: path}
	for _, d := range s.catalog.Tiles {
		if p, _, _ := strings.Cut(d.Href, "#"); p == path {
			sec.Title = d.Title
			sec.Eyebrow = d.Description
			break
		}
	}
	return sec
}
