package main

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/Zachkp/metro-portfolio/internal/content"
	"github.com/Zachkp/metro-portfolio/internal/flyover"
	"github.com/Zachkp/metro-portfolio/internal/live"
	"github.com/Zachkp/metro-portfolio/internal/store"
	"github.com/Zachkp/metro-portfolio/internal/tiles"
)

//go:embed templates/*.html
var templateFS embed.FS

//go:embed static
var staticFS embed.FS

// Deps are the collaborators a Server is built from.
type Deps struct {
	Catalog   *content.Catalog
	Themes    *content.Themes
	DB        *store.DB
	Generator *tiles.Generator
	Mailer    Mailer
	Logger    *log.Logger
	// Scheduler overrides the flyover timer, for tests.
	Scheduler flyover.Scheduler
}

// Server is the portfolio site.
type Server struct {
	cfg     Config
	engine  *gin.Engine
	catalog *content.Catalog
	themes  *content.Themes
	db      *store.DB
	gen     *tiles.Generator
	hub     *live.Hub
	mailer  Mailer
	admin   *adminAuth
	logger  *log.Logger
}

// NewServer wires the routes.
func NewServer(cfg Config, deps Deps) (*Server, error) {
	if deps.Catalog == nil || deps.Themes == nil || deps.DB == nil {
		return nil, errors.New("server: catalog, themes and db are required")
	}
	if deps.Logger == nil {
		deps.Logger = log.Default()
	}
	if deps.Generator == nil {
		deps.Generator = tiles.NewGenerator(tiles.DefaultConfig())
	}
	if deps.Mailer == nil {
		deps.Mailer = smtpMailer{cfg: cfg.SMTP, logger: deps.Logger}
	}

	db := deps.DB
	hub, err := live.NewHub(live.Config{
		Generator: deps.Generator,
		Storage:   func(id string) live.Storage { return db.SessionStorage(id) },
		Scheduler: deps.Scheduler,
		Delay:     cfg.FlyoverDelay,
		Logger:    deps.Logger,
	})
	if err != nil {
		return nil, fmt.Errorf("server: %w", err)
	}

	admin, err := newAdminAuth(cfg.Admin, !cfg.Release, deps.Logger)
	if err != nil {
		return nil, fmt.Errorf("server: %w", err)
	}

	s := &Server{
		cfg:     cfg,
		catalog: deps.Catalog,
		themes:  deps.Themes,
		db:      db,
		gen:     deps.Generator,
		hub:     hub,
		mailer:  deps.Mailer,
		admin:   admin,
		logger:  deps.Logger,
	}
	if err := s.routes(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Server) routes() error {
	r := gin.New()
	r.Use(gin.Recovery(), requestLogger(s.logger))

	tmpl, err := template.New("").Funcs(templateFuncs).ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return fmt.Errorf("server: templates: %w", err)
	}
	r.SetHTMLTemplate(tmpl)

	static, err := fs.Sub(staticFS, "static")
	if err != nil {
		return fmt.Errorf("server: static: %w", err)
	}
	r.StaticFS("/static", http.FS(static))

	r.Use(s.visitorTracking())
	r.Use(s.sessionMiddleware())

	r.GET("/", s.handleHome)
	r.GET("/tiles", s.handleTiles)
	r.GET("/tiles/more", s.handleMoreTiles)
	r.GET("/theme/:name", s.handleTheme)

	api := r.Group("/api")
	if len(s.cfg.AllowedOrigins) > 0 {
		api.Use(cors.New(cors.Config{
			AllowOrigins:     s.cfg.AllowedOrigins,
			AllowMethods:     []string{"GET", "POST", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Cache-Control"},
			AllowCredentials: true,
			MaxAge:           12 * time.Hour,
		}))
	}
	api.GET("/tiles", s.handleTilesAPI)
	api.GET("/themes", s.handleThemesAPI)
	api.GET("/flyover", s.handleFlyoverState)
	api.POST("/flyover/open", s.handleFlyoverOpen)
	api.POST("/flyover/close", s.handleFlyoverClose)
	api.POST("/flyover/restore", s.handleFlyoverRestore)
	api.GET("/flyover/events", s.handleFlyoverEvents)

	r.GET("/contact", s.handleContactPage)
	r.POST("/contact", s.handleContactSubmit)

	for _, path := range s.catalog.InternalPaths() {
		if path == "/contact" {
			continue
		}
		if err := checkSectionPath(path); err != nil {
			return err
		}
		r.GET(path, s.handleSection(path))
	}

	s.adminRoutes(r)

	s.engine = r
	return nil
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.engine.ServeHTTP(w, r)
}

// Run serves until ctx is cancelled, pruning idle sessions and expired
// records in the background.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go s.housekeeping(ctx)

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("listening", "addr", s.cfg.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		s.logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) housekeeping(ctx context.Context) {
	ticker := time.NewTicker(10 * time.Minute)
	defer ticker.Stop()

	s.pruneVisitors(ctx)
	lastVisitorPrune := time.Now()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		if n := s.hub.Prune(s.cfg.SessionIdle); n > 0 {
			s.logger.Debug("pruned idle sessions", "count", n)
		}
		if n, err := s.db.PruneSessions(ctx, 24*time.Hour); err != nil {
			s.logger.Error("failed to prune session storage", "err", err)
		} else if n > 0 {
			s.logger.Debug("pruned session storage", "rows", n)
		}
		if time.Since(lastVisitorPrune) > 24*time.Hour {
			s.pruneVisitors(ctx)
			lastVisitorPrune = time.Now()
		}
	}
}

// pruneVisitors keeps twelve months of visitor data.
func (s *Server) pruneVisitors(ctx context.Context) {
	n, err := s.db.PruneVisitors(ctx, 365*24*time.Hour)
	if err != nil {
		s.logger.Error("failed to clean up visitor data", "err", err)
		return
	}
	if n > 0 {
		s.logger.Info("privacy cleanup", "removed", n)
	}
}

// builtinPaths are served by the site itself. Section pages may not claim
// them or anything below builtinPrefixes.
var (
	builtinPaths    = []string{"/", "/tiles", "/privacy"}
	builtinPrefixes = []string{"/static/", "/api/", "/tiles/", "/theme/", "/admin"}
)

// checkSectionPath rejects tile hrefs that would collide with a built-in
// route or be read by the router as a wildcard.
func checkSectionPath(path string) error {
	if strings.ContainsAny(path, ":*") {
		return fmt.Errorf("server: tile href %q contains a route wildcard", path)
	}
	if slices.Contains(builtinPaths, path) {
		return fmt.Errorf("server: tile href %q collides with a built-in page", path)
	}
	for _, p := range builtinPrefixes {
		if strings.HasPrefix(path, p) || path+"/" == p {
			return fmt.Errorf("server: tile href %q collides with built-in routes under %s", path, p)
		}
	}
	return nil
}

var templateFuncs = template.FuncMap{
	"safeCSS": func(s string) template.CSS { return template.CSS(s) },
}
