package settings

import (
	"fmt"
	"math"

	"github.com/OCharnyshevich/abyss/internal/server/entities"
	"github.com/OCharnyshevich/abyss/internal/server/structures"
	"github.com/OCharnyshevich/abyss/internal/server/world"
	"github.com/OCharnyshevich/abyss/internal/server/world/gen"
)

const (
	saltLayout   = 0x6c61796f
	saltOre      = 0x6f726573
	saltEntity   = 0x656e7473
	saltFeatures = 0x66656174
)

// BiomeBand is a placed rectangle of biome to one side of the trench.
// Origin is the band's top-center cell.
type BiomeBand struct {
	Type      world.BiomeID `json:"type"`
	HalfWidth int           `json:"half_width"`
	Height    int           `json:"height"`
	Origin    world.Point   `json:"origin"`
	OnRight   bool          `json:"on_right"`
}

// Contains reports whether p falls inside the band.
func (b BiomeBand) Contains(p world.Point) bool {
	return p.X >= b.Origin.X-b.HalfWidth && p.X <= b.Origin.X+b.HalfWidth &&
		p.Y <= b.Origin.Y && p.Y > b.Origin.Y-b.Height
}

// OreDefinition is a fully resolved ore band.
type OreDefinition struct {
	Name              string          `json:"name"`
	Tile              world.TileID    `json:"tile"`
	Stage             int             `json:"stage"`
	Biomes            world.BiomeMask `json:"biomes"`
	DepthFraction     float64         `json:"depth_fraction"`
	MaxSpawnChance    float64         `json:"max_spawn_chance"`
	BandWidthFraction float64         `json:"band_width_fraction"`
	NoiseScale        float64         `json:"noise_scale"`
	NoiseThreshold    float64         `json:"noise_threshold"`
	NoiseOffsetX      float64         `json:"noise_offset_x"`
	NoiseOffsetY      float64         `json:"noise_offset_y"`
	Origin            world.Point     `json:"origin"`
}

// Feature is a structure instance placed by the world-feature spawner.
type Feature struct {
	TemplateID string      `json:"template"`
	Anchor     world.Point `json:"anchor"`
}

// WorldGenSettings is the immutable per-world description every pipeline
// stage reads. It is safe to share across goroutines.
type WorldGenSettings struct {
	Seed      int64           `json:"seed"`
	Randomize bool            `json:"randomize"`
	ChunkSize int             `json:"chunk_size"`
	Depth     int             `json:"depth"`
	Trench    Trench          `json:"trench"`
	Terrain   Terrain         `json:"terrain"`
	Bands     []BiomeBand     `json:"bands"`
	Ores      []OreDefinition `json:"ores"`
	Features  []Feature       `json:"features"`
}

// ReferencePoint is the trench center at maximum depth.
func (s *WorldGenSettings) ReferencePoint() world.Point {
	return world.Point{X: s.Trench.CenterX, Y: -s.Trench.Depth}
}

// DepthFraction maps a world Y to its fraction of the generation depth.
// The surface is y=0.
func (s *WorldGenSettings) DepthFraction(y int) float64 {
	return float64(-y) / float64(s.Depth)
}

// TrenchHalfWidth returns the trench half width at world Y, or -1 below the floor.
func (s *WorldGenSettings) TrenchHalfWidth(y int) float64 {
	t := s.Trench
	if y > 0 || y < -t.Depth {
		return -1
	}
	f := float64(-y) / float64(t.Depth)
	return (float64(t.SurfaceWidth) + (float64(t.FloorWidth)-float64(t.SurfaceWidth))*f) / 2
}

// BiomeAt returns the band biome covering p, or ok=false.
func (s *WorldGenSettings) BiomeAt(p world.Point) (world.BiomeID, bool) {
	for _, b := range s.Bands {
		if b.Contains(p) {
			return b.Type, true
		}
	}
	return world.BiomeNone, false
}

// Resolve places biome bands, ore origins and features for a world. With
// randomize off the result depends only on the authoring data and the seed's
// noise offsets; with it on, band order, starting side and gaps vary by seed.
func Resolve(a *Authoring, seed int64, randomize bool) (*WorldGenSettings, error) {
	if err := a.Validate(); err != nil {
		return nil, err
	}

	s := &WorldGenSettings{
		Seed:      seed,
		Randomize: randomize,
		ChunkSize: a.ChunkSize,
		Depth:     a.Depth,
		Trench:    a.Trench,
		Terrain:   a.Terrain,
	}
	rng := gen.NewChunkRNG(seed, 0, 0, saltLayout)

	s.Bands = placeBands(a, s, rng, randomize)

	palette := a.Palette()
	startRight := randomize && rng.NextN(2) == 1
	for i, o := range a.Ores {
		ox, oy := gen.SeedOffset(seed, saltOre+int64(i))
		def := OreDefinition{
			Name:              o.Name,
			Tile:              palette[o.Tile],
			Stage:             o.Stage,
			Biomes:            parseBiomes(o.Biomes),
			DepthFraction:     o.DepthFraction,
			MaxSpawnChance:    o.MaxSpawnChance,
			BandWidthFraction: o.BandWidthFraction,
			NoiseScale:        o.NoiseScale,
			NoiseThreshold:    o.NoiseThreshold,
			NoiseOffsetX:      ox,
			NoiseOffsetY:      oy,
		}
		def.Origin = s.oreOrigin(o, startRight)
		s.Ores = append(s.Ores, def)
	}

	features, err := spawnFeatures(a, s)
	if err != nil {
		return nil, err
	}
	s.Features = features
	return s, nil
}

// placeBands alternates bands left and right of the trench, stacking each
// side downward so bands on one side never overlap.
func placeBands(a *Authoring, s *WorldGenSettings, rng *gen.ChunkRNG, randomize bool) []BiomeBand {
	order := make([]int, len(a.Biomes))
	for i := range order {
		order[i] = i
	}
	right := false
	if randomize {
		rng.Shuffle(len(order), func(i, j int) { order[i], order[j] = order[j], order[i] })
		right = rng.NextN(2) == 1
	}

	cursor := [2]int{-a.Layout.TopMargin, -a.Layout.TopMargin}
	surfaceHalf := float64(a.Trench.SurfaceWidth) / 2

	bands := make([]BiomeBand, 0, len(order))
	for _, idx := range order {
		bs := a.Biomes[idx]
		biome, _ := world.ParseBiome(bs.Biome)

		side := 0
		if right {
			side = 1
		}
		offset := int(math.Ceil(surfaceHalf)) + a.Layout.SideMargin + bs.HalfWidth
		x := a.Trench.CenterX - offset
		if right {
			x = a.Trench.CenterX + offset
		}

		bands = append(bands, BiomeBand{
			Type:      biome,
			HalfWidth: bs.HalfWidth,
			Height:    bs.Height,
			Origin:    world.Point{X: x, Y: cursor[side]},
			OnRight:   right,
		})

		gap := a.Layout.Gap
		if randomize && gap > 0 {
			gap += rng.NextN(gap + 1)
		}
		cursor[side] -= bs.Height + gap
		right = !right
	}
	return bands
}

// oreOrigin puts stage 0 on the trench axis and stages 1 and 2 on opposite
// sides at their depth.
func (s *WorldGenSettings) oreOrigin(o OreSpec, startRight bool) world.Point {
	y := -int(math.Round(o.DepthFraction * float64(s.Depth)))
	if o.Stage == 0 {
		return world.Point{X: s.Trench.CenterX, Y: y}
	}
	right := startRight
	if o.Stage == 2 {
		right = !right
	}
	half := s.TrenchHalfWidth(y)
	if half < 0 {
		half = float64(s.Trench.FloorWidth) / 2
	}
	dx := int(math.Ceil(half)) + 1
	if right {
		return world.Point{X: s.Trench.CenterX + dx, Y: y}
	}
	return world.Point{X: s.Trench.CenterX - dx, Y: y}
}

// spawnFeatures scatters structure instances deterministically from the seed.
func spawnFeatures(a *Authoring, s *WorldGenSettings) ([]Feature, error) {
	var out []Feature
	for i, st := range a.Structures {
		if st.Count <= 0 {
			continue
		}
		rng := gen.NewChunkRNG(s.Seed, i, 0, saltFeatures)
		minD, maxD := st.MinDepth, st.MaxDepth
		if maxD == 0 {
			maxD = 1
		}
		top := -int(minD * float64(s.Depth))
		bottom := -int(maxD * float64(s.Depth))
		span := top - bottom + 1
		if span <= 0 {
			return nil, fmt.Errorf("structure %q: empty depth range", st.ID)
		}
		width := float64(a.Trench.SurfaceWidth)*2 + 1
		for i := 0; i < st.Count; i++ {
			x := a.Trench.CenterX + int((rng.Float64()*2-1)*width)
			y := bottom + rng.NextN(span)
			out = append(out, Feature{TemplateID: st.ID, Anchor: world.Point{X: x, Y: y}})
		}
	}
	return out, nil
}

// EntityDefinitions converts the authoring entity table.
func EntityDefinitions(a *Authoring, seed int64) ([]*entities.Definition, entities.GateConfig) {
	defs := make([]*entities.Definition, 0, len(a.Entities.Definitions))
	for i, e := range a.Entities.Definitions {
		d := &entities.Definition{
			ID:             e.ID,
			Width:          e.Width,
			Height:         e.Height,
			AnchorX:        e.Width / 2,
			NoiseFrequency: e.NoiseFrequency,
			NoiseThreshold: e.NoiseThreshold,
			MinY:           math.MinInt,
			MaxY:           math.MaxInt,
			Biomes:         parseBiomes(e.Biomes),
		}
		if e.AnchorX != nil {
			d.AnchorX = *e.AnchorX
		}
		if e.MinY != nil {
			d.MinY = *e.MinY
		}
		if e.MaxY != nil {
			d.MaxY = *e.MaxY
		}
		for _, name := range e.Orientations {
			if o, ok := entities.ParseOrientation(name); ok {
				d.Orientations = append(d.Orientations, o)
			}
		}
		d.NoiseOffsetX, d.NoiseOffsetY = gen.SeedOffset(seed, saltEntity+int64(i))
		defs = append(defs, d)
	}
	gate := entities.GateConfig{
		Frequency: a.Entities.GlobalFrequency,
		Threshold: a.Entities.GlobalThreshold,
	}
	return defs, gate
}

// Templates converts the authoring structure table.
func Templates(a *Authoring) (structures.Catalog, error) {
	palette := a.Palette()
	cat := make(structures.Catalog, len(a.Structures))
	for _, st := range a.Structures {
		legend := make(map[rune]world.TileID, len(st.Legend))
		for k, name := range st.Legend {
			r := []rune(k)
			if len(r) != 1 {
				return nil, fmt.Errorf("structure %q: legend key %q must be one character", st.ID, k)
			}
			legend[r[0]] = palette[name]
		}
		tpl, err := structures.FromRows(st.ID, st.Rows, legend)
		if err != nil {
			return nil, err
		}
		if tpl.Layer, err = structures.ParseLayer(st.Layer); err != nil {
			return nil, fmt.Errorf("structure %q: %w", st.ID, err)
		}
		if st.Fallback != "" {
			tpl.Fallback = palette[st.Fallback]
		}
		cat[st.ID] = tpl
	}
	return cat, nil
}
