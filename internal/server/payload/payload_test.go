package payload

import (
	"testing"

	"github.com/OCharnyshevich/abyss/internal/server/world"
)

func sampleChunk(coord world.ChunkCoord) *world.ChunkData {
	c := world.NewChunkData(coord, 16)
	for y := 0; y < 8; y++ {
		for x := 0; x < 16; x++ {
			c.SetTile(x, y, world.TileRock)
		}
	}
	c.SetOre(3, 2, 40)
	c.SetOre(4, 2, 40)
	c.SetTile(15, 7, world.TileVeryToughRock)
	return c
}

func TestAssemblePreservesOrder(t *testing.T) {
	coords := []world.ChunkCoord{{X: 2, Y: 0}, {X: 0, Y: 0}, {X: 1, Y: 0}, {X: 9, Y: 9}}
	chunks := map[world.ChunkCoord]*world.ChunkData{}
	for _, c := range coords[:3] {
		chunks[c] = sampleChunk(c)
	}
	ids := map[world.ChunkCoord][]uint64{{X: 0, Y: 0}: {7, 8}}

	out := Assemble(coords, chunks, nil, ids)
	if len(out) != 3 {
		t.Fatalf("payloads = %d, want 3 (missing chunk skipped)", len(out))
	}
	for i, want := range coords[:3] {
		if out[i].Coord != want {
			t.Errorf("payload[%d].Coord = %v, want %v", i, out[i].Coord, want)
		}
	}
	if len(out[1].EntityIDs) != 2 || out[1].EntityIDs[0] != 7 {
		t.Errorf("entity ids = %v", out[1].EntityIDs)
	}
	if out[0].EntityIDs != nil {
		t.Errorf("unexpected entity ids %v", out[0].EntityIDs)
	}
}

func TestFromChunkDurabilitySentinel(t *testing.T) {
	p := FromChunk(sampleChunk(world.ChunkCoord{}))
	if len(p.Durability) != 256 || len(p.TileIDs) != 256 || len(p.OreIDs) != 256 {
		t.Fatalf("unexpected lengths")
	}
	for i, d := range p.Durability {
		if d != DurabilityDefault {
			t.Fatalf("Durability[%d] = %d, want %d", i, d, DurabilityDefault)
		}
	}
}

func TestFromChunkCopies(t *testing.T) {
	c := sampleChunk(world.ChunkCoord{})
	p := FromChunk(c)
	c.SetTile(0, 0, world.TileAir)
	if p.TileIDs[0] != world.TileRock {
		t.Fatal("payload shares storage with chunk")
	}
}

func TestAssembleUsesBuiltPayload(t *testing.T) {
	coord := world.ChunkCoord{X: 1, Y: -1}
	chunks := map[world.ChunkCoord]*world.ChunkData{coord: sampleChunk(coord)}
	pre := FromChunk(chunks[coord])
	pre.SetCell(0, world.TileVeryToughRock, 41)

	out := Assemble([]world.ChunkCoord{coord}, chunks, map[world.ChunkCoord]*ChunkPayload{coord: pre}, nil)
	if len(out) != 1 || out[0] != pre {
		t.Fatalf("Assemble did not reuse the built payload")
	}
	if out[0].TileIDs[0] != world.TileVeryToughRock || out[0].OreIDs[0] != 41 {
		t.Errorf("cell 0 = %d/%d, want mirrored values", out[0].TileIDs[0], out[0].OreIDs[0])
	}
}
