// Package entities finds anchor points for decorative and functional entities
// inside freshly decoded chunks.
package entities

import (
	"cmp"
	"log/slog"
	"slices"

	"github.com/OCharnyshevich/abyss/internal/server/world"
	"github.com/OCharnyshevich/abyss/internal/server/world/gen"
)

const rankSalt = 0x656e7469 // "enti"

// Lookup resolves tiles outside the chunk being searched.
// ok is false when the tile is unknown, which fails any requirement.
type Lookup interface {
	TileAt(x, y int) (world.TileID, bool)
}

// LookupFunc adapts a function to Lookup.
type LookupFunc func(x, y int) (world.TileID, bool)

// TileAt implements Lookup.
func (f LookupFunc) TileAt(x, y int) (world.TileID, bool) { return f(x, y) }

// GateConfig is the coarse noise gate every candidate cell passes first.
type GateConfig struct {
	Frequency float64
	Threshold float64
}

// Searcher runs the anchor search for one chunk at a time. It holds only
// read-only tables and may be shared across goroutines.
type Searcher struct {
	defs  []*Definition
	reqs  map[string][]Requirement
	noise *gen.NoiseGenerator
	gate  GateConfig
	gx    float64
	gy    float64
	log   *slog.Logger
}

// NewSearcher builds a searcher for the given definitions.
func NewSearcher(seed int64, defs []*Definition, gate GateConfig, log *slog.Logger) *Searcher {
	ordered := slices.Clone(defs)
	slices.SortStableFunc(ordered, func(a, b *Definition) int {
		if c := cmp.Compare(b.Footprint(), a.Footprint()); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})

	reqs := make(map[string][]Requirement, len(ordered))
	for _, d := range ordered {
		reqs[d.ID] = d.Requirements()
	}
	gx, gy := gen.SeedOffset(seed, rankSalt)

	return &Searcher{
		defs:  ordered,
		reqs:  reqs,
		noise: gen.NewNoiseGenerator(seed ^ rankSalt),
		gate:  gate,
		gx:    gx,
		gy:    gy,
		log:   log,
	}
}

// Result is the output of one chunk's search.
type Result struct {
	Spawns  []SpawnInfo
	Claimed map[world.Point]struct{}
}

// Rank returns the definitions in search order for a chunk: descending
// footprint, with equal footprints shuffled by the chunk seed.
func (s *Searcher) Rank(chunkSeed int64) []*Definition {
	out := slices.Clone(s.defs)
	rng := gen.NewChunkRNG(chunkSeed, 0, 0, rankSalt)

	for start := 0; start < len(out); {
		end := start + 1
		for end < len(out) && out[end].Footprint() == out[start].Footprint() {
			end++
		}
		group := out[start:end]
		rng.Shuffle(len(group), func(i, j int) { group[i], group[j] = group[j], group[i] })
		start = end
	}
	return out
}

// Search scans every solid, unclaimed cell of chunk for a definition that fits.
// Cells outside the chunk are read through lookup; claims only cover this chunk's pass.
func (s *Searcher) Search(chunk *world.ChunkData, chunkSeed int64, lookup Lookup) Result {
	res := Result{Claimed: make(map[world.Point]struct{})}
	if len(s.defs) == 0 {
		return res
	}
	ranked := s.Rank(chunkSeed)
	origin := chunk.Coord.Origin(chunk.Size)

	tileAt := func(p world.Point) (world.TileID, bool) {
		lx, ly := p.X-origin.X, p.Y-origin.Y
		if chunk.InBounds(lx, ly) {
			return chunk.Tile(lx, ly), true
		}
		if lookup == nil {
			return world.TileAir, false
		}
		return lookup.TileAt(p.X, p.Y)
	}

	for y := 0; y < chunk.Size; y++ {
		for x := 0; x < chunk.Size; x++ {
			if !chunk.Tile(x, y).Solid() {
				continue
			}
			anchor := world.Point{X: origin.X + x, Y: origin.Y + y}
			if _, taken := res.Claimed[anchor]; taken {
				continue
			}
			if !s.passGate(anchor) {
				continue
			}
			biome := chunk.Biome(x, y)

			for _, d := range ranked {
				if !s.passDefinition(d, anchor, biome) {
					continue
				}
				o, cells, ok := s.fit(d, anchor, tileAt, res.Claimed)
				if !ok {
					continue
				}
				for _, c := range cells {
					res.Claimed[c] = struct{}{}
				}
				res.Spawns = append(res.Spawns, SpawnInfo{Type: d.ID, Position: anchor, Orientation: o})
				break
			}
		}
	}

	if len(res.Spawns) > 0 {
		s.log.Debug("entity anchors found", "chunk", chunk.Coord, "count", len(res.Spawns))
	}
	return res
}

func (s *Searcher) passGate(p world.Point) bool {
	if s.gate.Frequency <= 0 {
		return true
	}
	v := s.noise.Sample01(float64(p.X), float64(p.Y), s.gx, s.gy, s.gate.Frequency)
	return v > s.gate.Threshold
}

func (s *Searcher) passDefinition(d *Definition, p world.Point, biome world.BiomeID) bool {
	if p.Y < d.MinY || p.Y > d.MaxY {
		return false
	}
	if !d.Biomes.Has(biome) {
		return false
	}
	if d.NoiseFrequency <= 0 {
		return true
	}
	v := s.noise.Sample01(float64(p.X), float64(p.Y), d.NoiseOffsetX, d.NoiseOffsetY, d.NoiseFrequency)
	return v > d.NoiseThreshold
}

// fit tries each allowed orientation in order and returns the first one whose
// requirements all hold, with the world cells it occupies.
func (s *Searcher) fit(
	d *Definition,
	anchor world.Point,
	tileAt func(world.Point) (world.TileID, bool),
	claimed map[world.Point]struct{},
) (Orientation, []world.Point, bool) {
	reqs := s.reqs[d.ID]
	cells := make([]world.Point, 0, len(reqs))

next:
	for _, o := range d.Orientations {
		cells = cells[:0]
		for _, r := range reqs {
			p := anchor.Add(Remap(r.Offset, o))
			if _, taken := claimed[p]; taken {
				continue next
			}
			t, ok := tileAt(p)
			if !ok || t.Solid() != r.Solid {
				continue next
			}
			cells = append(cells, p)
		}
		return o, cells, true
	}
	return Ground, nil, false
}
