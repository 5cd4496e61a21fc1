package mask

import (
	"fmt"

	"github.com/OCharnyshevich/abyss/internal/server/world"
)

// MaterialTable maps quantized channel values to base tiles.
type MaterialTable struct {
	Step  uint8
	Codes map[uint8]world.TileID
}

// DefaultMaterials covers the four reserved base tiles.
func DefaultMaterials() MaterialTable {
	return MaterialTable{
		Step: 64,
		Codes: map[uint8]world.TileID{
			0:   world.TileAir,
			64:  world.TileRock,
			128: world.TileToughRock,
			192: world.TileVeryToughRock,
		},
	}
}

// Lookup snaps v to the nearest step and returns its tile.
func (m MaterialTable) Lookup(v uint8) (world.TileID, bool) {
	step := int(m.Step)
	if step == 0 {
		step = 1
	}
	q := (int(v) + step/2) / step * step
	if q > 255 {
		q = 255
	}
	t, ok := m.Codes[uint8(q)]
	return t, ok
}

// Encode returns the lowest channel value mapped to a tile.
func (m MaterialTable) Encode(t world.TileID) (uint8, bool) {
	best, found := uint8(0), false
	for code, tile := range m.Codes {
		if tile == t && (!found || code < best) {
			best, found = code, true
		}
	}
	return best, found
}

// BiomeTable maps sentinel channel values to biomes.
type BiomeTable struct {
	Tolerance uint8
	Values    map[world.BiomeID]uint8
}

// NewBiomeTable validates that no two sentinel windows overlap.
func NewBiomeTable(tolerance uint8, values map[world.BiomeID]uint8) (BiomeTable, error) {
	for a, sa := range values {
		for b, sb := range values {
			if a >= b {
				continue
			}
			if dist(sa, sb) <= 2*int(tolerance) {
				return BiomeTable{}, fmt.Errorf("biome %d (sentinel %d) overlaps biome %d (sentinel %d) at tolerance %d",
					a, sa, b, sb, tolerance)
			}
		}
	}
	return BiomeTable{Tolerance: tolerance, Values: values}, nil
}

// DefaultBiomes spaces the biome sentinels 32 apart.
func DefaultBiomes() BiomeTable {
	t, err := NewBiomeTable(8, map[world.BiomeID]uint8{
		world.BiomeNone:       0,
		world.BiomeShallows:   32,
		world.BiomeKelpForest: 64,
		world.BiomeCoralReef:  96,
		world.BiomeVents:      128,
		world.BiomeAbyss:      160,
		world.BiomeTrench:     192,
	})
	if err != nil {
		panic(err)
	}
	return t
}

// Lookup returns the biome whose sentinel is nearest to v and within
// tolerance. Ties go to the lower sentinel, then the lower biome id.
func (t BiomeTable) Lookup(v uint8) (world.BiomeID, bool) {
	var (
		best  world.BiomeID
		bestS uint8
		bestD int
		found bool
	)
	for b, s := range t.Values {
		d := dist(v, s)
		if d > int(t.Tolerance) {
			continue
		}
		if !found || d < bestD || (d == bestD && (s < bestS || (s == bestS && b < best))) {
			best, bestS, bestD, found = b, s, d, true
		}
	}
	if !found {
		return world.BiomeNone, false
	}
	return best, true
}

func dist(a, b uint8) int {
	d := int(a) - int(b)
	if d < 0 {
		return -d
	}
	return d
}

// Encode returns the sentinel for a biome.
func (t BiomeTable) Encode(b world.BiomeID) uint8 {
	return t.Values[b]
}
