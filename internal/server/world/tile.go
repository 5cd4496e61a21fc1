package world

// TileID identifies a base material or an ore overlay tile.
type TileID uint16

// Reserved tile ids. Real tiles from the palette start after these.
const (
	TileAir           TileID = 0
	TileRock          TileID = 1
	TileToughRock     TileID = 2
	TileVeryToughRock TileID = 3

	// OreInvalid marks a cell without ore. It never collides with air or a palette id.
	OreInvalid TileID = 0xFFFF
)

// Solid reports whether the tile blocks movement and can anchor entities.
func (t TileID) Solid() bool {
	return t != TileAir && t != OreInvalid
}

// BiomeID classifies a cell.
type BiomeID uint8

const (
	BiomeNone BiomeID = iota
	BiomeShallows
	BiomeKelpForest
	BiomeCoralReef
	BiomeVents
	BiomeAbyss
	BiomeTrench

	biomeCount
)

var biomeNames = [biomeCount]string{
	BiomeNone:       "none",
	BiomeShallows:   "shallows",
	BiomeKelpForest: "kelp_forest",
	BiomeCoralReef:  "coral_reef",
	BiomeVents:      "vents",
	BiomeAbyss:      "abyss",
	BiomeTrench:     "trench",
}

func (b BiomeID) String() string {
	if b < biomeCount {
		return biomeNames[b]
	}
	return "unknown"
}

// ParseBiome maps an authoring name to a BiomeID.
func ParseBiome(name string) (BiomeID, bool) {
	for i, n := range biomeNames {
		if n == name {
			return BiomeID(i), true
		}
	}
	return BiomeNone, false
}

// BiomeMask is a set of biomes. The zero mask admits every biome.
type BiomeMask uint32

// MaskOf builds a mask from a list of biomes.
func MaskOf(biomes ...BiomeID) BiomeMask {
	var m BiomeMask
	for _, b := range biomes {
		m |= 1 << b
	}
	return m
}

// Has reports whether b is admitted by the mask.
func (m BiomeMask) Has(b BiomeID) bool {
	return m == 0 || m&(1<<b) != 0
}
