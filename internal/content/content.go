// Package content loads the authored tile catalog, section pages and theme
// palettes. Files on disk override the embedded defaults.
package content

import (
	"embed"
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/Zachkp/metro-portfolio/internal/tiles"
)

//go:embed defaults/tiles.yaml defaults/themes.toml
var defaults embed.FS

var ErrNoTiles = errors.New("content: catalog has no tiles")

// Site is the page header copy.
type Site struct {
	Title       string `yaml:"title"`
	Eyebrow     string `yaml:"eyebrow"`
	Description string `yaml:"description"`
}

// Section is a target page for an internal tile href.
type Section struct {
	Path       string   `yaml:"path"`
	Title      string   `yaml:"title"`
	Eyebrow    string   `yaml:"eyebrow"`
	Paragraphs []string `yaml:"paragraphs"`
}

// Catalog is the authored content of the site.
type Catalog struct {
	Site     Site               `yaml:"site"`
	Tiles    []tiles.Definition `yaml:"tiles"`
	Sections []Section          `yaml:"sections"`
}

// Section returns the section served at path.
func (c *Catalog) Section(path string) (Section, bool) {
	for _, s := range c.Sections {
		if s.Path == path {
			return s, true
		}
	}
	return Section{}, false
}

// Definition returns the tile definition for key.
func (c *Catalog) Definition(key tiles.Key) (tiles.Definition, bool) {
	for _, d := range c.Tiles {
		if d.Key == key {
			return d, true
		}
	}
	return tiles.Definition{}, false
}

// InternalPaths returns the distinct page paths internal tile hrefs point at,
// without fragments, in catalog order.
func (c *Catalog) InternalPaths() []string {
	seen := map[string]bool{}
	var out []string
	for _, d := range c.Tiles {
		if d.Href == "" || tiles.IsExternalHref(d.Href) {
			continue
		}
		p, _, _ := strings.Cut(d.Href, "#")
		if p == "" || seen[p] {
			continue
		}
		seen[p] = true
		out = append(out, p)
	}
	return out
}

// LoadCatalog reads the catalog at path, or the embedded default when path is empty.
func LoadCatalog(path string) (*Catalog, error) {
	data, err := readFile(path, "defaults/tiles.yaml")
	if err != nil {
		return nil, err
	}
	return ParseCatalog(data)
}

// ParseCatalog decodes and validates a YAML catalog.
func ParseCatalog(data []byte) (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("content: parse catalog: %w", err)
	}
	if err := c.validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

func (c *Catalog) validate() error {
	if len(c.Tiles) == 0 {
		return ErrNoTiles
	}
	seen := map[tiles.Key]bool{}
	for i, d := range c.Tiles {
		if d.Key == "" {
			return fmt.Errorf("content: tile %d has no key", i)
		}
		if seen[d.Key] {
			return fmt.Errorf("content: duplicate tile key %q", d.Key)
		}
		seen[d.Key] = true
		if d.Title == "" {
			return fmt.Errorf("content: tile %q has no title", d.Key)
		}
		if d.Size == "" {
			c.Tiles[i].Size = tiles.Medium
		} else if !d.Size.Valid() {
			return fmt.Errorf("content: tile %q has unknown size %q", d.Key, d.Size)
		}
		if d.Href != "" && !tiles.IsExternalHref(d.Href) && !strings.HasPrefix(d.Href, "/") {
			return fmt.Errorf("content: tile %q href %q is neither absolute nor rooted", d.Key, d.Href)
		}
	}
	for _, s := range c.Sections {
		if !strings.HasPrefix(s.Path, "/") || s.Path == "/" {
			return fmt.Errorf("content: invalid section path %q", s.Path)
		}
	}
	return nil
}

func readFile(path, fallback string) ([]byte, error) {
	if path == "" {
		return defaults.ReadFile(fallback)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("content: read %s: %w", path, err)
	}
	return data, nil
}
