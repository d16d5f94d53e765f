package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/Zachkp/metro-portfolio/internal/tiles"
)

func TestSummarizeCountsSizesAndKeys(t *testing.T) {
	resolved := []tiles.Resolved{
		{Key: "lms", Size: tiles.Large},
		{Key: "lms", Size: tiles.Medium},
		{Key: "github", Size: tiles.Wide},
	}
	out := summarize(resolved)
	for _, want := range []string{"medium=1", "wide=1", "large=1", "github=1", "lms=2"} {
		if !strings.Contains(out, want) {
			t.Errorf("summary %q missing %q", out, want)
		}
	}
}

func TestRenderLayoutIncludesEveryTile(t *testing.T) {
	resolved := []tiles.Resolved{
		{Key: "lms", Size: tiles.Large, Tile: tiles.Data{Color: "#00aba9", Contrast: tiles.Light}},
		{Key: "talk", Size: tiles.Medium, Tile: tiles.Data{Color: "#e3a21a", Contrast: tiles.Dark}},
		{Key: "stack", Size: tiles.Wide, Tile: tiles.Data{Color: "#ff0097", Contrast: tiles.Light}},
	}
	out := renderLayout(resolved, 3)
	for _, key := range []string{"lms", "talk", "stack"} {
		if !strings.Contains(out, key) {
			t.Errorf("layout missing %q", key)
		}
	}
}

func TestThemesCommandListsThemes(t *testing.T) {
	cfg := Config{}
	cmd := newThemesCmd(&cfg)
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{})
	if err := cmd.Execute(); err != nil {
		t.Fatal(err)
	}
	for _, name := range []string{"metro", "pastel", "neon", "glass"} {
		if !strings.Contains(out.String(), name) {
			t.Errorf("output %q missing theme %q", out.String(), name)
		}
	}
	if !strings.Contains(out.String(), "* metro") {
		t.Errorf("default theme not marked: %q", out.String())
	}
}

func TestPreviewColumnsFollowsBaseTileWidth(t *testing.T) {
	tests := []struct {
		width, cell, want int
	}{
		{1280, 160, 8},
		{1281, 160, 9},
		{1280, 200, 7},
		{100, 160, 1},
		{1280, 0, 1},
	}
	for _, tt := range tests {
		if got := previewColumns(tt.width, tt.cell); got != tt.want {
			t.Errorf("previewColumns(%d, %d) = %d, want %d", tt.width, tt.cell, got, tt.want)
		}
	}
}
