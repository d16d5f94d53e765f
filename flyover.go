package main

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Zachkp/metro-portfolio/internal/tiles"
)

type openRequest struct {
	Key   string `json:"key" binding:"required"`
	Focus string `json:"focus"`
}

type restoreRequest struct {
	Persisted bool `json:"persisted"`
}

func (s *Server) handleFlyoverState(c *gin.Context) {
	c.JSON(http.StatusOK, mustSession(c).Controller().State())
}

func (s *Server) handleFlyoverOpen(c *gin.Context) {
	sess := mustSession(c)

	var req openRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "key is required"})
		return
	}
	def, ok := s.catalog.Definition(tiles.Key(req.Key))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown tile"})
		return
	}

	sess.Open(tiles.ResolveTile(s.theme(c), def), req.Focus)
	go s.recordTileOpen(def.Key, sess.ID)

	c.JSON(http.StatusOK, sess.Controller().State())
}

func (s *Server) handleFlyoverClose(c *gin.Context) {
	ctrl := mustSession(c).Controller()
	ctrl.Close()
	c.JSON(http.StatusOK, ctrl.State())
}

func (s *Server) handleFlyoverRestore(c *gin.Context) {
	var req restoreRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid body"})
		return
	}
	ctrl := mustSession(c).Controller()
	ctrl.Restore(req.Persisted)
	c.JSON(http.StatusOK, ctrl.State())
}

// handleFlyoverEvents streams the session's flyover events. The current
// state is sent first so a reconnecting page catches up.
func (s *Server) handleFlyoverEvents(c *gin.Context) {
	sess := mustSession(c)
	s.hub.Events().ServeSSE(c.Writer, c.Request, sess.ID, sess.Sync)
}

// recordTileOpen counts an open for the dashboard. Sessions are stored
// hashed, like visitor addresses.
func (s *Server) recordTileOpen(key tiles.Key, sessionID string) {
	hashed := s.admin.hash(sessionID)
	if err := s.db.RecordTileOpen(context.Background(), key, hashed, time.Now()); err != nil {
		s.logger.Error("failed to record tile open", "key", key, "err", err)
	}
}
