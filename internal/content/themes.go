package content

import (
	"fmt"

	"github.com/BurntSushi/toml"

	"github.com/Zachkp/metro-portfolio/internal/tiles"
)

type themeFile struct {
	Default string      `toml:"default"`
	Theme   []themeSpec `toml:"theme"`
}

type themeSpec struct {
	Name     string            `toml:"name"`
	Label    string            `toml:"label"`
	Palette  map[string]string `toml:"palette"`
	Contrast map[string]string `toml:"contrast"`
	Icons    map[string]string `toml:"icons"`
}

// Themes is the registry of available themes.
type Themes struct {
	byName      map[string]tiles.Theme
	order       []string
	defaultName string
}

// Get returns the named theme, falling back to the default theme.
func (t *Themes) Get(name string) tiles.Theme {
	if th, ok := t.byName[name]; ok {
		return th
	}
	return t.byName[t.defaultName]
}

// Has reports whether name is a registered theme.
func (t *Themes) Has(name string) bool {
	_, ok := t.byName[name]
	return ok
}

// Default returns the default theme.
func (t *Themes) Default() tiles.Theme { return t.byName[t.defaultName] }

// List returns the themes in file order.
func (t *Themes) List() []tiles.Theme {
	out := make([]tiles.Theme, len(t.order))
	for i, n := range t.order {
		out[i] = t.byName[n]
	}
	return out
}

// LoadThemes reads themes from path, or the embedded defaults when path is
// empty, and checks every theme resolves every tile in defs.
func LoadThemes(path string, defs []tiles.Definition) (*Themes, error) {
	data, err := readFile(path, "defaults/themes.toml")
	if err != nil {
		return nil, err
	}
	return ParseThemes(data, defs)
}

// ParseThemes decodes and validates a TOML theme file.
func ParseThemes(data []byte, defs []tiles.Definition) (*Themes, error) {
	var f themeFile
	if err := toml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("content: parse themes: %w", err)
	}
	if len(f.Theme) == 0 {
		return nil, fmt.Errorf("content: no themes defined")
	}

	reg := &Themes{byName: make(map[string]tiles.Theme, len(f.Theme))}
	for _, spec := range f.Theme {
		if spec.Name == "" {
			return nil, fmt.Errorf("content: theme without a name")
		}
		if _, dup := reg.byName[spec.Name]; dup {
			return nil, fmt.Errorf("content: duplicate theme %q", spec.Name)
		}
		th := spec.theme()
		if err := th.Covers(defs); err != nil {
			return nil, fmt.Errorf("content: %w", err)
		}
		reg.byName[spec.Name] = th
		reg.order = append(reg.order, spec.Name)
	}

	reg.defaultName = f.Default
	if reg.defaultName == "" {
		reg.defaultName = reg.order[0]
	}
	if !reg.Has(reg.defaultName) {
		return nil, fmt.Errorf("content: default theme %q is not defined", reg.defaultName)
	}
	return reg, nil
}

func (s themeSpec) theme() tiles.Theme {
	th := tiles.Theme{
		Name:      s.Name,
		Label:     s.Label,
		Palette:   make(map[tiles.Key]string, len(s.Palette)),
		Contrasts: make(map[tiles.Key]tiles.Contrast, len(s.Contrast)),
		Icons:     make(map[tiles.Key]string, len(s.Icons)),
	}
	if th.Label == "" {
		th.Label = s.Name
	}
	for k, v := range s.Palette {
		th.Palette[tiles.Key(k)] = v
	}
	for k, v := range s.Contrast {
		th.Contrasts[tiles.Key(k)] = tiles.Contrast(v)
	}
	for k, v := range s.Icons {
		th.Icons[tiles.Key(k)] = v
	}
	return th
}
