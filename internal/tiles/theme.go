package tiles

import "fmt"

// Theme supplies color, contrast and icon per tile key.
type Theme struct {
	Name      string
	Label     string
	Palette   map[Key]string
	Contrasts map[Key]Contrast
	Icons     map[Key]string
}

// Class is the styling hook applied to tiles rendered with t.
func (t Theme) Class() string {
	return "tile-theme-" + t.Name
}

// Covers returns an error naming the first key in defs the theme cannot resolve.
func (t Theme) Covers(defs []Definition) error {
	for _, d := range defs {
		if _, ok := t.Palette[d.Key]; !ok {
			return fmt.Errorf("tiles: theme %q has no color for %q", t.Name, d.Key)
		}
		c, ok := t.Contrasts[d.Key]
		if !ok {
			return fmt.Errorf("tiles: theme %q has no contrast for %q", t.Name, d.Key)
		}
		if c != Light && c != Dark {
			return fmt.Errorf("tiles: theme %q has invalid contrast %q for %q", t.Name, c, d.Key)
		}
		if _, ok := t.Icons[d.Key]; !ok {
			return fmt.Errorf("tiles: theme %q has no icon for %q", t.Name, d.Key)
		}
	}
	return nil
}

// ResolveTile merges def with the presentation t assigns to its key.
func ResolveTile(t Theme, def Definition) Data {
	return Data{
		Definition: def,
		Color:      t.Palette[def.Key],
		Contrast:   t.Contrasts[def.Key],
		Icon:       t.Icons[def.Key],
	}
}

// ResolveData resolves every definition against t.
func ResolveData(t Theme, defs []Definition) []Data {
	out := make([]Data, len(defs))
	for i, d := range defs {
		out[i] = ResolveTile(t, d)
	}
	return out
}

// Resolve joins instances with their tile data. Instances whose key has no
// data are dropped. The rendered tile takes the instance's size.
func Resolve(instances []Instance, data []Data) []Resolved {
	byKey := make(map[Key]Data, len(data))
	for _, d := range data {
		byKey[d.Key] = d
	}

	out := make([]Resolved, 0, len(instances))
	for _, inst := range instances {
		base, ok := byKey[inst.Key]
		if !ok {
			continue
		}
		base.Size = inst.Size
		out = append(out, Resolved{
			InstanceID: inst.ID,
			Key:        inst.Key,
			Tile:       base,
			Size:       inst.Size,
		})
	}
	return out
}
