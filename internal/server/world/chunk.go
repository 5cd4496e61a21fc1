package world

import (
	"crypto/sha256"
	"encoding/binary"
)

// ChunkData holds one chunk's grids. All slices have Size*Size entries,
// row-major with y outer and x inner.
type ChunkData struct {
	Coord  ChunkCoord
	Size   int
	Tiles  []TileID
	Biomes []BiomeID
	Ores   []TileID
}

// NewChunkData allocates an all-air chunk with no ore.
func NewChunkData(coord ChunkCoord, size int) *ChunkData {
	n := size * size
	c := &ChunkData{
		Coord:  coord,
		Size:   size,
		Tiles:  make([]TileID, n),
		Biomes: make([]BiomeID, n),
		Ores:   make([]TileID, n),
	}
	for i := range c.Ores {
		c.Ores[i] = OreInvalid
	}
	return c
}

// Index returns the flat index of local cell (x, y).
func (c *ChunkData) Index(x, y int) int {
	return y*c.Size + x
}

// InBounds reports whether (x, y) is a local cell of the chunk.
func (c *ChunkData) InBounds(x, y int) bool {
	return x >= 0 && x < c.Size && y >= 0 && y < c.Size
}

// Tile returns the base tile at local (x, y).
func (c *ChunkData) Tile(x, y int) TileID {
	return c.Tiles[c.Index(x, y)]
}

// SetTile sets the base tile at local (x, y). Setting air clears any ore.
func (c *ChunkData) SetTile(x, y int, t TileID) {
	i := c.Index(x, y)
	c.Tiles[i] = t
	if t == TileAir {
		c.Ores[i] = OreInvalid
	}
}

// Ore returns the ore overlay at local (x, y).
func (c *ChunkData) Ore(x, y int) TileID {
	return c.Ores[c.Index(x, y)]
}

// SetOre sets the ore overlay at local (x, y). Air cells never carry ore.
func (c *ChunkData) SetOre(x, y int, t TileID) {
	i := c.Index(x, y)
	if c.Tiles[i] == TileAir {
		c.Ores[i] = OreInvalid
		return
	}
	c.Ores[i] = t
}

// Biome returns the biome at local (x, y).
func (c *ChunkData) Biome(x, y int) BiomeID {
	return c.Biomes[c.Index(x, y)]
}

// Bounds returns the chunk's world rectangle.
func (c *ChunkData) Bounds() Rect {
	return c.Coord.Bounds(c.Size)
}

// Clone returns a deep copy.
func (c *ChunkData) Clone() *ChunkData {
	out := &ChunkData{
		Coord:  c.Coord,
		Size:   c.Size,
		Tiles:  append([]TileID(nil), c.Tiles...),
		Biomes: append([]BiomeID(nil), c.Biomes...),
		Ores:   append([]TileID(nil), c.Ores...),
	}
	return out
}

// Digest hashes tiles, biomes and ores so reruns can be compared byte for byte.
func (c *ChunkData) Digest() [32]byte {
	h := sha256.New()
	var buf [2]byte
	for _, t := range c.Tiles {
		binary.LittleEndian.PutUint16(buf[:], uint16(t))
		h.Write(buf[:])
	}
	for _, b := range c.Biomes {
		h.Write([]byte{byte(b)})
	}
	for _, t := range c.Ores {
		binary.LittleEndian.PutUint16(buf[:], uint16(t))
		h.Write(buf[:])
	}
	var out [32]byte
	copy(out[:], h.Sum(nil))
	return out
}
