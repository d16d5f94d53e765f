// Package tiles models the live tile catalog and generates the randomized,
// viewport-sized working set of tile instances painted on the home grid.
package tiles

import (
	"fmt"
	"regexp"
)

// Size is the display size of a tile on the grid.
type Size string

const (
	Medium Size = "medium"
	Wide   Size = "wide"
	Large  Size = "large"
)

// Sizes lists every size in the order used for uniform draws.
var Sizes = []Size{Medium, Wide, Large}

// Span is the number of grid columns and rows a tile occupies.
type Span struct {
	Cols int
	Rows int
}

// Span returns the grid span of s. Unknown sizes occupy a single cell.
func (s Size) Span() Span {
	switch s {
	case Wide:
		return Span{Cols: 2, Rows: 1}
	case Large:
		return Span{Cols: 2, Rows: 2}
	default:
		return Span{Cols: 1, Rows: 1}
	}
}

// Valid reports whether s is one of the known sizes.
func (s Size) Valid() bool {
	return s == Medium || s == Wide || s == Large
}

// ParseSize converts a string into a Size.
func ParseSize(v string) (Size, error) {
	s := Size(v)
	if !s.Valid() {
		return "", fmt.Errorf("tiles: unknown size %q", v)
	}
	return s, nil
}

// Key identifies a logical tile.
type Key string

// Contrast selects the text color used on top of a tile color.
type Contrast string

const (
	Light Contrast = "light"
	Dark  Contrast = "dark"
)

// Definition is an authored tile. Definitions are loaded once and never mutated.
type Definition struct {
	Key         Key    `json:"key" yaml:"key"`
	Title       string `json:"title" yaml:"title"`
	Description string `json:"description,omitempty" yaml:"description"`
	Size        Size   `json:"size" yaml:"size"`
	Href        string `json:"href,omitempty" yaml:"href"`
	Order       int    `json:"order,omitempty" yaml:"order"`
}

// Data is a definition with its theme-resolved presentation.
type Data struct {
	Definition
	Color    string   `json:"color"`
	Contrast Contrast `json:"contrast"`
	Icon     string   `json:"icon"`
}

var externalHref = regexp.MustCompile(`^https?://`)

// IsExternalHref reports whether href is an absolute http(s) URL.
func IsExternalHref(href string) bool {
	return externalHref.MatchString(href)
}

// HasTarget reports whether the tile navigates anywhere when opened.
func (d Data) HasTarget() bool { return d.Href != "" }

// IsExternal reports whether the tile leaves the site.
func (d Data) IsExternal() bool { return IsExternalHref(d.Href) }

// Instance is one generated placement of a tile on the grid.
type Instance struct {
	ID   string `json:"id"`
	Key  Key    `json:"key"`
	Size Size   `json:"size"`
}

// Resolved is an instance joined with its tile data, the unit actually rendered.
type Resolved struct {
	InstanceID string `json:"instanceId"`
	Key        Key    `json:"key"`
	Tile       Data   `json:"tile"`
	Size       Size   `json:"size"`
}

// Keys returns the keys of defs in order.
func Keys(defs []Definition) []Key {
	keys := make([]Key, len(defs))
	for i, d := range defs {
		keys[i] = d.Key
	}
	return keys
}
