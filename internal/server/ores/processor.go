// Package ores places ore veins over decoded base terrain.
package ores

import (
	"math"

	"github.com/OCharnyshevich/abyss/internal/server/settings"
	"github.com/OCharnyshevich/abyss/internal/server/world"
	"github.com/OCharnyshevich/abyss/internal/server/world/gen"
)

// Processor evaluates ore definitions per cell. It holds only immutable
// tables and is safe to share between chunk tasks.
type Processor struct {
	defs  []settings.OreDefinition
	noise *gen.NoiseGenerator
	ref   world.Point
	depth float64
}

// NewProcessor builds a processor from resolved settings. Noise is seeded from
// the world seed so results do not depend on which chunk is processed first.
func NewProcessor(s *settings.WorldGenSettings) *Processor {
	return &Processor{
		defs:  s.Ores,
		noise: gen.NewNoiseGenerator(s.Seed),
		ref:   s.ReferencePoint(),
		depth: float64(s.Depth),
	}
}

// Run returns a fresh ore overlay for chunk, initialised to OreInvalid.
// It reads the chunk's tiles and biomes and writes nothing else.
func (p *Processor) Run(chunk *world.ChunkData) []world.TileID {
	out := make([]world.TileID, len(chunk.Tiles))
	for i := range out {
		out[i] = world.OreInvalid
	}
	origin := chunk.Coord.Origin(chunk.Size)

	for y := 0; y < chunk.Size; y++ {
		wy := origin.Y + y
		depthFrac := float64(-wy) / p.depth

		for x := 0; x < chunk.Size; x++ {
			i := chunk.Index(x, y)
			if chunk.Tiles[i] == world.TileAir {
				continue
			}
			wx := origin.X + x
			biome := chunk.Biomes[i]

			for d := range p.defs {
				if p.matches(&p.defs[d], wx, wy, depthFrac, biome) {
					out[i] = p.defs[d].Tile
					break
				}
			}
		}
	}
	return out
}

// matches applies the depth band, biome and noise tests. A cell that passes
// all three always receives the ore.
func (p *Processor) matches(def *settings.OreDefinition, wx, wy int, depthFrac float64, biome world.BiomeID) bool {
	if math.Abs(depthFrac-def.DepthFraction) > def.BandWidthFraction/2 {
		return false
	}
	if !def.Biomes.Has(biome) {
		return false
	}
	return p.Sample(def, wx, wy) > def.NoiseThreshold
}

// Sample returns the [0,1] noise value def sees at world cell (wx, wy).
// Noise is sampled relative to the reference point so moving the trench
// moves its veins with it.
func (p *Processor) Sample(def *settings.OreDefinition, wx, wy int) float64 {
	x := float64(wx - p.ref.X)
	y := float64(wy - p.ref.Y)
	return p.noise.Sample01(x, y, def.NoiseOffsetX, def.NoiseOffsetY, def.NoiseScale)
}

// Apply copies an ore overlay into chunk. Air cells never receive ore.
func Apply(chunk *world.ChunkData, ores []world.TileID) {
	for i, o := range ores {
		if chunk.Tiles[i] == world.TileAir {
			chunk.Ores[i] = world.OreInvalid
			continue
		}
		chunk.Ores[i] = o
	}
}
