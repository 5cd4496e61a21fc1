// Package payload flattens finished chunks into the transport form.
package payload

import "github.com/OCharnyshevich/abyss/internal/server/world"

// DurabilityDefault tells clients to use the tile's default durability.
const DurabilityDefault int32 = -1

// ChunkPayload is the wire-ready form of one chunk. Arrays are row-major,
// y outer and x inner, matching world.ChunkData.
type ChunkPayload struct {
	Coord      world.ChunkCoord
	Size       int
	TileIDs    []world.TileID
	OreIDs     []world.TileID
	Durability []int32
	EntityIDs  []uint64
}

// FromChunk copies a chunk's grids into a payload.
func FromChunk(c *world.ChunkData) *ChunkPayload {
	p := &ChunkPayload{
		Coord:      c.Coord,
		Size:       c.Size,
		TileIDs:    append([]world.TileID(nil), c.Tiles...),
		OreIDs:     append([]world.TileID(nil), c.Ores...),
		Durability: make([]int32, len(c.Tiles)),
	}
	for i := range p.Durability {
		p.Durability[i] = DurabilityDefault
	}
	return p
}

// SetCell mirrors a stamped cell into the payload.
func (p *ChunkPayload) SetCell(i int, tile, ore world.TileID) {
	p.TileIDs[i] = tile
	p.OreIDs[i] = ore
}

// Assemble builds payloads in the order of coords. Coordinates without a
// chunk are skipped. A payload already in built is used as is; otherwise one
// is made from the chunk. ids attaches registry-issued entity ids per chunk.
func Assemble(
	coords []world.ChunkCoord,
	chunks map[world.ChunkCoord]*world.ChunkData,
	built map[world.ChunkCoord]*ChunkPayload,
	ids map[world.ChunkCoord][]uint64,
) []*ChunkPayload {
	out := make([]*ChunkPayload, 0, len(coords))
	for _, c := range coords {
		p, ok := built[c]
		if !ok {
			cd, ok := chunks[c]
			if !ok {
				continue
			}
			p = FromChunk(cd)
		}
		if len(ids[c]) > 0 {
			p.EntityIDs = append([]uint64(nil), ids[c]...)
		}
		out = append(out, p)
	}
	return out
}
