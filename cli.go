package main

import (
	"context"
	"fmt"
	"math/rand/v2"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"

	"github.com/charmbracelet/lipgloss"
	charmlog "github.com/charmbracelet/log"
	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"github.com/Zachkp/metro-portfolio/internal/content"
	"github.com/Zachkp/metro-portfolio/internal/store"
	"github.com/Zachkp/metro-portfolio/internal/tiles"
)

// Execute runs the metro command line. With no subcommand it serves the site.
func Execute() error {
	var verbose bool
	cfg := LoadConfig()

	serve := newServeCmd(&cfg)
	root := &cobra.Command{
		Use:          "metro",
		Short:        "Metro serves a live tile portfolio",
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			level := charmlog.InfoLevel
			if verbose {
				level = charmlog.DebugLevel
			}
			cmd.SetContext(withLogger(cmd.Context(), newLogger(os.Stderr, level)))
		},
		RunE: serve.RunE,
	}
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose logging")
	root.PersistentFlags().StringVar(&cfg.ContentPath, "content", cfg.ContentPath, "tile catalog YAML (default: embedded)")
	root.PersistentFlags().StringVar(&cfg.ThemesPath, "themes", cfg.ThemesPath, "theme palettes TOML (default: embedded)")
	root.Flags().AddFlagSet(serve.Flags())

	root.AddCommand(serve)
	root.AddCommand(newLayoutCmd(&cfg))
	root.AddCommand(newThemesCmd(&cfg))

	return root.ExecuteContext(context.Background())
}

func loadContent(cfg *Config) (*content.Catalog, *content.Themes, error) {
	catalog, err := content.LoadCatalog(cfg.ContentPath)
	if err != nil {
		return nil, nil, err
	}
	themes, err := content.LoadThemes(cfg.ThemesPath, catalog.Tiles)
	if err != nil {
		return nil, nil, err
	}
	return catalog, themes, nil
}

func newServeCmd(cfg *Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the portfolio",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := loggerFromContext(cmd.Context())

			catalog, themes, err := loadContent(cfg)
			if err != nil {
				logger.Error("failed to load content", "err", err)
				return err
			}
			if cfg.DefaultTheme != "" && !themes.Has(cfg.DefaultTheme) {
				logger.Warn("unknown METRO_THEME, using the default", "theme", cfg.DefaultTheme, "default", themes.Default().Name)
			}

			db, err := store.Open(cfg.DBPath)
			if err != nil {
				logger.Error("failed to open database", "path", cfg.DBPath, "err", err)
				return err
			}
			defer db.Close()

			if cfg.Release {
				gin.SetMode(gin.ReleaseMode)
			}
			srv, err := NewServer(*cfg, Deps{
				Catalog: catalog,
				Themes:  themes,
				DB:      db,
				Logger:  logger,
			})
			if err != nil {
				logger.Error("failed to build server", "err", err)
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return srv.Run(ctx)
		},
	}
	cmd.Flags().StringVar(&cfg.Addr, "addr", cfg.Addr, "listen address")
	cmd.Flags().StringVar(&cfg.DBPath, "db", cfg.DBPath, "SQLite database path")
	cmd.Flags().StringVar(&cfg.DefaultTheme, "theme", cfg.DefaultTheme, "default theme")
	return cmd
}

func newThemesCmd(cfg *Config) *cobra.Command {
	return &cobra.Command{
		Use:   "themes",
		Short: "List the available themes",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, themes, err := loadContent(cfg)
			if err != nil {
				return err
			}
			for _, t := range themes.List() {
				marker := " "
				if t.Name == themes.Default().Name {
					marker = "*"
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s %-10s %s\n", marker, t.Name, styleDim.Render(t.Label))
			}
			return nil
		},
	}
}

func newLayoutCmd(cfg *Config) *cobra.Command {
	var (
		width, height int
		themeName     string
		seed          uint64
		mobile        bool
	)
	cmd := &cobra.Command{
		Use:   "layout",
		Short: "Preview a generated tile layout in the terminal",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := loggerFromContext(cmd.Context())
			catalog, themes, err := loadContent(cfg)
			if err != nil {
				return err
			}

			var opts []tiles.Option
			if seed != 0 {
				opts = append(opts, tiles.WithSource(rand.New(rand.NewPCG(seed, seed))))
			}
			gen := tiles.NewGenerator(tiles.DefaultConfig(), opts...)
			if mobile && !gen.IsMobile(width) {
				width, height = gen.Config().MobileBreakpoint/2, 812
			}
			theme := themes.Get(themeName)

			instances := gen.Generate(catalog.Tiles, width, height)
			resolved := tiles.Resolve(instances, tiles.ResolveData(theme, catalog.Tiles))
			w, h := gen.Viewport(width, height)
			logger.Debug("generated layout", "instances", len(instances), "resolved", len(resolved))

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, styleTitle.Render(fmt.Sprintf("%dx%d · %s · %d tiles", w, h, theme.Name, len(resolved))))
			fmt.Fprintln(out, renderLayout(resolved, previewColumns(w, gen.Config().BaseTileWidth)))
			fmt.Fprintln(out, summarize(resolved))
			return nil
		},
	}
	cmd.Flags().IntVar(&width, "width", 0, "viewport width (default: fallback viewport)")
	cmd.Flags().IntVar(&height, "height", 0, "viewport height (default: fallback viewport)")
	cmd.Flags().StringVar(&themeName, "theme", "", "theme name")
	cmd.Flags().Uint64Var(&seed, "seed", 0, "random seed for a reproducible layout")
	cmd.Flags().BoolVar(&mobile, "mobile", false, "preview the mobile layout")
	return cmd
}

var (
	styleTitle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("36"))
	styleDim   = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
)

const (
	cellWidth  = 8
	cellHeight = 2
)

// previewColumns is how many base tiles fit across a viewport of width w.
func previewColumns(w, cell int) int {
	if cell <= 0 {
		return 1
	}
	return max(1, (w+cell-1)/cell)
}

// renderLayout packs tiles left to right into rows of cols cells. It is a
// preview, not the browser's dense grid placement.
func renderLayout(resolved []tiles.Resolved, cols int) string {
	var rows []string
	var row []string
	used := 0
	flush := func() {
		if len(row) > 0 {
			rows = append(rows, lipgloss.JoinHorizontal(lipgloss.Top, row...))
		}
		row, used = nil, 0
	}

	for _, r := range resolved {
		span := r.Size.Span()
		if span.Cols > cols {
			span.Cols = cols
		}
		if used+span.Cols > cols {
			flush()
		}
		row = append(row, renderTile(r, span))
		used += span.Cols
	}
	flush()
	return lipgloss.JoinVertical(lipgloss.Left, rows...)
}

func renderTile(r tiles.Resolved, span tiles.Span) string {
	fg := lipgloss.Color("#ffffff")
	if r.Tile.Contrast == tiles.Dark {
		fg = lipgloss.Color("#1d1d1d")
	}
	w := span.Cols*cellWidth - 1
	label := string(r.Key)
	if len(label) > w {
		label = label[:w]
	}
	return lipgloss.NewStyle().
		Background(lipgloss.Color(r.Tile.Color)).
		Foreground(fg).
		Width(w).
		Height(span.Rows * cellHeight).
		MarginRight(1).
		Render(label)
}

func summarize(resolved []tiles.Resolved) string {
	bySize := map[tiles.Size]int{}
	byKey := map[tiles.Key]int{}
	for _, r := range resolved {
		bySize[r.Size]++
		byKey[r.Key]++
	}
	keys := make([]string, 0, len(byKey))
	for k := range byKey {
		keys = append(keys, string(k))
	}
	sort.Strings(keys)

	var b strings.Builder
	fmt.Fprintf(&b, "sizes: medium=%d wide=%d large=%d\n", bySize[tiles.Medium], bySize[tiles.Wide], bySize[tiles.Large])
	for _, k := range keys {
		fmt.Fprintf(&b, "%s=%d ", k, byKey[tiles.Key(k)])
	}
	return styleDim.Render(strings.TrimSpace(b.String()))
}
