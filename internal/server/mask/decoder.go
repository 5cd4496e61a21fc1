package mask

import (
	"log/slog"

	"github.com/OCharnyshevich/abyss/internal/server/world"
)

// Decoder interprets mask buffers. It is stateless apart from its tables.
type Decoder struct {
	materials MaterialTable
	biomes    BiomeTable
	log       *slog.Logger
}

// NewDecoder creates a decoder with the given lookup tables.
func NewDecoder(materials MaterialTable, biomes BiomeTable, log *slog.Logger) *Decoder {
	return &Decoder{materials: materials, biomes: biomes, log: log}
}

// Decode builds one chunk per requested coordinate whose pixels lie inside
// buf. origin is the chunk at the buffer's bottom-left. Chunks outside the
// buffer are logged and omitted, so the result may be shorter than requested.
func (d *Decoder) Decode(buf *Buffer, requested []world.ChunkCoord, origin world.ChunkCoord, chunkSize int) []*world.ChunkData {
	out := make([]*world.ChunkData, 0, len(requested))
	for _, coord := range requested {
		ox := (coord.X - origin.X) * chunkSize
		oy := (coord.Y - origin.Y) * chunkSize
		if ox < 0 || oy < 0 || ox+chunkSize > buf.Width || oy+chunkSize > buf.Height {
			d.log.Warn("chunk outside mask extent, skipping",
				"chunk", coord, "origin", origin, "width", buf.Width, "height", buf.Height)
			continue
		}
		out = append(out, d.decodeChunk(buf, coord, ox, oy, chunkSize))
	}
	return out
}

func (d *Decoder) decodeChunk(buf *Buffer, coord world.ChunkCoord, ox, oy, size int) *world.ChunkData {
	c := world.NewChunkData(coord, size)
	var bad, unknown int

	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			i := c.Index(x, y)
			cov, err1 := buf.At(ox+x, oy+y, ChannelCoverage)
			mat, err2 := buf.At(ox+x, oy+y, ChannelMaterial)
			bio, err3 := buf.At(ox+x, oy+y, ChannelBiome)
			if err1 != nil || err2 != nil || err3 != nil {
				bad++
				continue
			}
			if cov == 0 {
				continue
			}

			tile, ok := d.materials.Lookup(mat)
			if !ok {
				unknown++
				tile = world.TileAir
			}
			biome, ok := d.biomes.Lookup(bio)
			if !ok {
				unknown++
			}
			c.Tiles[i] = tile
			c.Biomes[i] = biome
		}
	}

	if bad > 0 {
		d.log.Warn("mask cells out of range, treated as air", "chunk", coord, "cells", bad)
	}
	if unknown > 0 {
		d.log.Debug("unrecognised mask codes", "chunk", coord, "cells", unknown)
	}
	return c
}
