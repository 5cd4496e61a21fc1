// Package settings loads world generation authoring data and resolves it
// into the immutable per-world WorldGenSettings.
package settings

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"unicode/utf8"

	"github.com/hashicorp/go-multierror"
	"gopkg.in/yaml.v3"

	"github.com/OCharnyshevich/abyss/internal/server/world"
)

// Authoring is the on-disk description of a world, as written by designers.
type Authoring struct {
	ChunkSize int        `yaml:"chunk_size" json:"chunk_size"`
	Depth     int        `yaml:"depth" json:"depth"`
	Trench    Trench     `yaml:"trench" json:"trench"`
	Terrain   Terrain    `yaml:"terrain" json:"terrain"`
	Layout    Layout     `yaml:"layout" json:"layout"`
	Tiles     []TileSpec `yaml:"tiles" json:"tiles"`
	Biomes    []BandSpec `yaml:"biome_bands" json:"biome_bands"`
	Ores      []OreSpec  `yaml:"ores" json:"ores"`
	Entities  EntitySet  `yaml:"entities" json:"entities"`

	Structures []StructureSpec `yaml:"structures" json:"structures"`
}

// Trench describes the central trench cut into the sea floor.
type Trench struct {
	CenterX      int     `yaml:"center_x" json:"center_x"`
	SurfaceWidth int     `yaml:"surface_width" json:"surface_width"`
	FloorWidth   int     `yaml:"floor_width" json:"floor_width"`
	Depth        int     `yaml:"depth" json:"depth"`
	Wobble       float64 `yaml:"wobble" json:"wobble"`
	WobbleScale  float64 `yaml:"wobble_scale" json:"wobble_scale"`
}

// Terrain holds rasterization parameters for caves and rock toughness.
type Terrain struct {
	CaveScale         float64 `yaml:"cave_scale" json:"cave_scale"`
	CaveThreshold     float64 `yaml:"cave_threshold" json:"cave_threshold"`
	CaveOctaves       int     `yaml:"cave_octaves" json:"cave_octaves"`
	ToughFraction     float64 `yaml:"tough_fraction" json:"tough_fraction"`
	VeryToughFraction float64 `yaml:"very_tough_fraction" json:"very_tough_fraction"`
	ShallowsDepth     int     `yaml:"shallows_depth" json:"shallows_depth"`
}

// Layout controls biome band stacking.
type Layout struct {
	TopMargin  int `yaml:"top_margin" json:"top_margin"`
	SideMargin int `yaml:"side_margin" json:"side_margin"`
	Gap        int `yaml:"gap" json:"gap"`
}

// TileSpec adds a named tile to the palette.
type TileSpec struct {
	ID   int    `yaml:"id" json:"id"`
	Name string `yaml:"name" json:"name"`
}

// BandSpec is one biome band before placement.
type BandSpec struct {
	Biome     string `yaml:"biome" json:"biome"`
	HalfWidth int    `yaml:"half_width" json:"half_width"`
	Height    int    `yaml:"height" json:"height"`
}

// OreSpec is one ore definition before placement.
type OreSpec struct {
	Name              string   `yaml:"name" json:"name"`
	Tile              string   `yaml:"tile" json:"tile"`
	Stage             int      `yaml:"stage" json:"stage"`
	Biomes            []string `yaml:"biomes" json:"biomes,omitempty"`
	DepthFraction     float64  `yaml:"depth_fraction" json:"depth_fraction"`
	BandWidthFraction float64  `yaml:"band_width_fraction" json:"band_width_fraction"`
	MaxSpawnChance    float64  `yaml:"max_spawn_chance" json:"max_spawn_chance"`
	NoiseScale        float64  `yaml:"noise_scale" json:"noise_scale"`
	NoiseThreshold    float64  `yaml:"noise_threshold" json:"noise_threshold"`
}

// EntitySet is the entity definition table plus the coarse placement gate.
type EntitySet struct {
	GlobalFrequency float64      `yaml:"global_frequency" json:"global_frequency"`
	GlobalThreshold float64      `yaml:"global_threshold" json:"global_threshold"`
	Definitions     []EntitySpec `yaml:"definitions" json:"definitions"`
}

// EntitySpec describes an anchored entity.
type EntitySpec struct {
	ID             string   `yaml:"id" json:"id"`
	Width          int      `yaml:"width" json:"width"`
	Height         int      `yaml:"height" json:"height"`
	AnchorX        *int     `yaml:"anchor_x" json:"anchor_x,omitempty"`
	Orientations   []string `yaml:"orientations" json:"orientations"`
	NoiseFrequency float64  `yaml:"noise_frequency" json:"noise_frequency"`
	NoiseThreshold float64  `yaml:"noise_threshold" json:"noise_threshold"`
	MinY           *int     `yaml:"min_y" json:"min_y,omitempty"`
	MaxY           *int     `yaml:"max_y" json:"max_y,omitempty"`
	Biomes         []string `yaml:"biomes" json:"biomes,omitempty"`
}

// StructureSpec is a structure template drawn as ASCII rows, top row first.
type StructureSpec struct {
	ID       string            `yaml:"id" json:"id"`
	Layer    string            `yaml:"layer" json:"layer"`
	Fallback string            `yaml:"fallback" json:"fallback,omitempty"`
	Legend   map[string]string `yaml:"legend" json:"legend"`
	Rows     []string          `yaml:"rows" json:"rows"`
	Count    int               `yaml:"count" json:"count,omitempty"`
	MinDepth float64           `yaml:"min_depth" json:"min_depth,omitempty"`
	MaxDepth float64           `yaml:"max_depth" json:"max_depth,omitempty"`
}

// Load reads and validates an authoring file.
func Load(path string) (*Authoring, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read definitions: %w", err)
	}
	return Parse(raw)
}

// Parse decodes and validates authoring YAML.
func Parse(raw []byte) (*Authoring, error) {
	var a Authoring
	if err := yaml.Unmarshal(raw, &a); err != nil {
		return nil, fmt.Errorf("parse definitions: %w", err)
	}
	if err := a.Validate(); err != nil {
		return nil, err
	}
	return &a, nil
}

var builtinTiles = map[string]world.TileID{
	"air":             world.TileAir,
	"rock":            world.TileRock,
	"tough_rock":      world.TileToughRock,
	"very_tough_rock": world.TileVeryToughRock,
}

var orientationNames = map[string]bool{
	"ground":     true,
	"ceiling":    true,
	"left_wall":  true,
	"right_wall": true,
}

// Palette returns every tile name known to the authoring data.
func (a *Authoring) Palette() map[string]world.TileID {
	p := make(map[string]world.TileID, len(builtinTiles)+len(a.Tiles))
	for k, v := range builtinTiles {
		p[k] = v
	}
	for _, t := range a.Tiles {
		p[t.Name] = world.TileID(t.ID)
	}
	return p
}

// Validate reports every problem found in the authoring data at once.
func (a *Authoring) Validate() error {
	var result *multierror.Error
	fail := func(format string, args ...any) {
		result = multierror.Append(result, fmt.Errorf(format, args...))
	}

	if a.ChunkSize <= 0 {
		fail("chunk_size must be positive, got %d", a.ChunkSize)
	}
	if a.Depth <= 0 {
		fail("depth must be positive, got %d", a.Depth)
	}
	if a.Trench.Depth <= 0 || a.Trench.Depth > a.Depth {
		fail("trench.depth must be in (0, depth], got %d", a.Trench.Depth)
	}
	if a.Trench.SurfaceWidth < a.Trench.FloorWidth || a.Trench.FloorWidth < 0 {
		fail("trench widths invalid: surface %d floor %d", a.Trench.SurfaceWidth, a.Trench.FloorWidth)
	}
	if a.Terrain.ToughFraction > a.Terrain.VeryToughFraction {
		fail("terrain.tough_fraction must not exceed very_tough_fraction")
	}

	ids := make(map[int]string)
	for _, t := range a.Tiles {
		switch {
		case t.Name == "":
			fail("tile %d has no name", t.ID)
		case t.ID <= int(world.TileVeryToughRock) || t.ID >= int(world.OreInvalid):
			fail("tile %q id %d collides with a reserved id", t.Name, t.ID)
		case ids[t.ID] != "":
			fail("tile id %d used by %q and %q", t.ID, ids[t.ID], t.Name)
		}
		if _, ok := builtinTiles[t.Name]; ok {
			fail("tile %q shadows a built-in tile", t.Name)
		}
		ids[t.ID] = t.Name
	}
	palette := a.Palette()

	for i, b := range a.Biomes {
		if _, ok := world.ParseBiome(b.Biome); !ok {
			fail("biome_bands[%d]: unknown biome %q", i, b.Biome)
		}
		if b.HalfWidth <= 0 || b.Height <= 0 {
			fail("biome_bands[%d]: half_width and height must be positive", i)
		}
	}

	for _, o := range a.Ores {
		if t, ok := palette[o.Tile]; !ok || t <= world.TileVeryToughRock {
			fail("ore %q: tile %q is not an ore tile", o.Name, o.Tile)
		}
		if o.Stage < 0 || o.Stage > 2 {
			fail("ore %q: stage %d out of range", o.Name, o.Stage)
		}
		if o.DepthFraction < 0 || o.DepthFraction > 1 {
			fail("ore %q: depth_fraction %v out of [0,1]", o.Name, o.DepthFraction)
		}
		if o.BandWidthFraction < 0 {
			fail("ore %q: band_width_fraction must not be negative", o.Name)
		}
		if o.NoiseScale <= 0 {
			fail("ore %q: noise_scale must be positive", o.Name)
		}
		checkBiomes(o.Biomes, "ore "+o.Name, fail)
	}

	seen := make(map[string]bool)
	for _, e := range a.Entities.Definitions {
		if e.ID == "" || seen[e.ID] {
			fail("entity id %q empty or duplicated", e.ID)
		}
		seen[e.ID] = true
		if e.Width <= 0 || e.Height <= 0 {
			fail("entity %q: width and height must be positive", e.ID)
		}
		if e.AnchorX != nil && (*e.AnchorX < 0 || *e.AnchorX >= e.Width) {
			fail("entity %q: anchor_x outside width", e.ID)
		}
		if len(e.Orientations) == 0 {
			fail("entity %q: no orientations", e.ID)
		}
		for _, o := range e.Orientations {
			if !orientationNames[o] {
				fail("entity %q: unknown orientation %q", e.ID, o)
			}
		}
		checkBiomes(e.Biomes, "entity "+e.ID, fail)
	}

	for _, s := range a.Structures {
		if err := validateStructure(s, palette); err != nil {
			result = multierror.Append(result, err)
		}
	}

	return result.ErrorOrNil()
}

func checkBiomes(names []string, owner string, fail func(string, ...any)) {
	for _, n := range names {
		if _, ok := world.ParseBiome(n); !ok {
			fail("%s: unknown biome %q", owner, n)
		}
	}
}

func validateStructure(s StructureSpec, palette map[string]world.TileID) error {
	if s.ID == "" {
		return errors.New("structure with empty id")
	}
	if s.Layer != "base" && s.Layer != "ore" {
		return fmt.Errorf("structure %q: layer must be base or ore, got %q", s.ID, s.Layer)
	}
	if s.Fallback != "" {
		if _, ok := palette[s.Fallback]; !ok {
			return fmt.Errorf("structure %q: unknown fallback tile %q", s.ID, s.Fallback)
		}
	}
	if len(s.Rows) == 0 {
		return fmt.Errorf("structure %q: no rows", s.ID)
	}
	for k := range s.Legend {
		if utf8.RuneCountInString(k) != 1 {
			return fmt.Errorf("structure %q: legend key %q must be one character", s.ID, k)
		}
	}
	w := utf8.RuneCountInString(s.Rows[0])
	for i, r := range s.Rows {
		if n := utf8.RuneCountInString(r); n != w {
			return fmt.Errorf("structure %q: row %d has width %d, want %d", s.ID, i, n, w)
		}
		for _, ch := range r {
			name, ok := s.Legend[string(ch)]
			if !ok {
				return fmt.Errorf("structure %q: row %d uses %q missing from legend", s.ID, i, ch)
			}
			if _, ok := palette[name]; !ok {
				return fmt.Errorf("structure %q: legend tile %q unknown", s.ID, name)
			}
		}
	}
	if s.MaxDepth != 0 && s.MaxDepth < s.MinDepth {
		return fmt.Errorf("structure %q: max_depth below min_depth", s.ID)
	}
	return nil
}

func parseBiomes(names []string) world.BiomeMask {
	var m world.BiomeMask
	for _, n := range names {
		if b, ok := world.ParseBiome(strings.TrimSpace(n)); ok {
			m |= world.MaskOf(b)
		}
	}
	return m
}
