// Package structures stamps pre-authored tile templates into generated chunks.
package structures

import (
	"fmt"
	"unicode/utf8"

	"github.com/OCharnyshevich/abyss/internal/server/world"
)

// Layer selects which grid a template writes.
type Layer uint8

const (
	// LayerBase writes base tiles and clears ore.
	LayerBase Layer = iota
	// LayerOre writes the ore overlay over a fallback base tile.
	LayerOre
)

// ParseLayer maps an authoring name to a Layer.
func ParseLayer(s string) (Layer, error) {
	switch s {
	case "base":
		return LayerBase, nil
	case "ore":
		return LayerOre, nil
	}
	return LayerBase, fmt.Errorf("unknown layer %q", s)
}

// Template is a rectangular tile pattern. Tiles are row-major from the
// bottom row up.
type Template struct {
	ID       string
	Width    int
	Height   int
	Tiles    []world.TileID
	Layer    Layer
	Fallback world.TileID
}

// At returns the template tile at local (x, y).
func (t *Template) At(x, y int) world.TileID {
	return t.Tiles[y*t.Width+x]
}

// Bounds returns the world rectangle covered when anchored at p.
func (t *Template) Bounds(p world.Point) world.Rect {
	return world.RectAt(p, t.Width, t.Height)
}

// FromRows builds a template from ASCII rows listed top row first.
func FromRows(id string, rows []string, legend map[rune]world.TileID) (*Template, error) {
	if len(rows) == 0 {
		return nil, fmt.Errorf("template %q: no rows", id)
	}
	w, h := utf8.RuneCountInString(rows[0]), len(rows)
	t := &Template{ID: id, Width: w, Height: h, Tiles: make([]world.TileID, w*h), Fallback: world.TileRock}

	for r, row := range rows {
		if n := utf8.RuneCountInString(row); n != w {
			return nil, fmt.Errorf("template %q: row %d width %d, want %d", id, r, n, w)
		}
		y := h - 1 - r
		for x, ch := range []rune(row) {
			tile, ok := legend[ch]
			if !ok {
				return nil, fmt.Errorf("template %q: %q not in legend", id, ch)
			}
			t.Tiles[y*w+x] = tile
		}
	}
	return t, nil
}

// Source resolves templates by id.
type Source interface {
	Template(id string) (*Template, bool)
}

// Catalog is a fixed map of templates.
type Catalog map[string]*Template

// Template implements Source.
func (c Catalog) Template(id string) (*Template, bool) {
	t, ok := c[id]
	return t, ok
}
