// admin.go - privacy-conscious visitor metrics and the admin dashboard
package main

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gin-gonic/gin"
)

const adminCookie = "admin_token"

// adminAuth holds the per-process admin token and the salt used to hash
// client addresses and session ids.
type adminAuth struct {
	cfg    AdminConfig
	token  string
	salt   string
	logger *log.Logger
}

func newAdminAuth(cfg AdminConfig, debug bool, logger *log.Logger) (*adminAuth, error) {
	token, err := randomHex(32)
	if err != nil {
		return nil, fmt.Errorf("admin token: %w", err)
	}
	salt, err := randomHex(32)
	if err != nil {
		return nil, fmt.Errorf("hashing salt: %w", err)
	}

	logger.Info("admin access available", "path", "/admin/login")
	if debug {
		if cfg.Username == "admin" || cfg.Password == "admin123" {
			logger.Warn("using default admin credentials; set ADMIN_USERNAME and ADMIN_PASSWORD")
		}
		logger.Debug("admin token (dev only)", "token", token)
	}
	return &adminAuth{cfg: cfg, token: token, salt: salt, logger: logger}, nil
}

func randomHex(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// hash returns a truncated salted hash, stable for the life of the process.
func (a *adminAuth) hash(v string) string {
	sum := sha256.Sum256([]byte(v + a.salt))
	return hex.EncodeToString(sum[:])[:16]
}

func (a *adminAuth) middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, err := c.Cookie(adminCookie)
		if err != nil || subtle.ConstantTimeCompare([]byte(token), []byte(a.token)) != 1 {
			c.Redirect(http.StatusFound, "/admin/login")
			c.Abort()
			return
		}
		c.Next()
	}
}

func (a *adminAuth) validCredentials(username, password string) bool {
	userOK := subtle.ConstantTimeCompare([]byte(username), []byte(a.cfg.Username)) == 1
	passOK := subtle.ConstantTimeCompare([]byte(password), []byte(a.cfg.Password)) == 1
	return userOK && passOK
}

// visitorTracking records page views with hashed addresses. Assets, API
// calls, fragments and admin pages are skipped, and Do Not Track is honored.
func (s *Server) visitorTracking() gin.HandlerFunc {
	skip := []string{"/static/", "/admin", "/api/", "/tiles", "/theme/", "/favicon", "/privacy"}
	return func(c *gin.Context) {
		path := c.Request.URL.Path
		if c.Request.Method != http.MethodGet || c.GetHeader("DNT") == "1" {
			c.Next()
			return
		}
		for _, p := range skip {
			if strings.HasPrefix(path, p) {
				c.Next()
				return
			}
		}

		hashed := s.admin.hash(c.ClientIP())
		agent := c.GetHeader("User-Agent")
		go func() {
			if err := s.db.RecordVisit(context.Background(), hashed, agent, path, time.Now()); err != nil {
				s.logger.Error("failed to record visitor", "err", err)
			}
		}()
		c.Next()
	}
}

func (s *Server) adminRoutes(r *gin.Engine) {
	r.GET("/privacy", func(c *gin.Context) {
		c.HTML(http.StatusOK, "privacy.html", gin.H{
			"title": "Privacy Policy",
			"site":  s.catalog.Site,
		})
	})

	r.GET("/admin/login", func(c *gin.Context) {
		c.HTML(http.StatusOK, "admin-login.html", gin.H{"title": "Admin Login"})
	})

	r.POST("/admin/login", func(c *gin.Context) {
		client := s.admin.hash(c.ClientIP())
		if !s.admin.validCredentials(c.PostForm("username"), c.PostForm("password")) {
			s.logger.Warn("failed admin login", "client", client)
			c.HTML(http.StatusUnauthorized, "admin-login.html", gin.H{
				"title": "Admin Login",
				"error": "Invalid credentials",
			})
			return
		}
		c.SetSameSite(http.SameSiteStrictMode)
		c.SetCookie(adminCookie, s.admin.token, 3600*24, "/admin", "", s.cfg.Release, true)
		s.logger.Info("admin login", "client", client)
		c.Redirect(http.StatusFound, "/admin/dashboard")
	})

	r.GET("/admin/logout", func(c *gin.Context) {
		c.SetCookie(adminCookie, "", -1, "/admin", "", s.cfg.Release, true)
		s.logger.Info("admin logout", "client", s.admin.hash(c.ClientIP()))
		c.Redirect(http.StatusFound, "/admin/login")
	})

	admin := r.Group("/admin")
	admin.Use(s.admin.middleware())

	admin.GET("/dashboard", func(c *gin.Context) {
		stats, err := s.db.Stats(c.Request.Context(), time.Now())
		if err != nil {
			s.logger.Error("failed to load admin stats", "err", err)
			c.HTML(http.StatusInternalServerError, "admin-error.html", gin.H{
				"error": "Failed to load statistics",
			})
			return
		}
		c.HTML(http.StatusOK, "admin-dashboard.html", gin.H{
			"stats":    stats,
			"sessions": s.hub.Len(),
		})
	})

	admin.GET("/api/stats", func(c *gin.Context) {
		stats, err := s.db.Stats(c.Request.Context(), time.Now())
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, stats)
	})

	admin.GET("/export/stats", func(c *gin.Context) {
		stats, err := s.db.Stats(c.Request.Context(), time.Now())
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.Header("Content-Disposition", "attachment; filename=admin-stats.json")
		s.logger.Info("admin stats exported", "client", s.admin.hash(c.ClientIP()))
		c.JSON(http.StatusOK, stats)
	})

	admin.POST("/privacy/cleanup", func(c *gin.Context) {
		go s.pruneVisitors(context.Background())
		c.JSON(http.StatusOK, gin.H{"message": "Privacy cleanup initiated"})
	})
}
