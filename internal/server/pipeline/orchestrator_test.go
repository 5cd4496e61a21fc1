package pipeline

import (
	"errors"
	"io"
	"log/slog"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/OCharnyshevich/abyss/internal/server/entities"
	"github.com/OCharnyshevich/abyss/internal/server/mask"
	"github.com/OCharnyshevich/abyss/internal/server/settings"
	"github.com/OCharnyshevich/abyss/internal/server/structures"
	"github.com/OCharnyshevich/abyss/internal/server/world"
)

const (
	tileCopper world.TileID = 10
	tileWall   world.TileID = 30
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testBundle() *settings.Bundle {
	s := &settings.WorldGenSettings{
		Seed:      1234,
		ChunkSize: 16,
		Depth:     256,
		Trench:    settings.Trench{CenterX: 0, SurfaceWidth: 12, FloorWidth: 4, Depth: 200},
		Terrain: settings.Terrain{
			CaveScale: 0.08, CaveThreshold: 0.65, CaveOctaves: 2,
			ToughFraction: 0.4, VeryToughFraction: 0.8, ShallowsDepth: 16,
		},
		Ores: []settings.OreDefinition{{
			Name: "copper", Tile: tileCopper, DepthFraction: 0.1, BandWidthFraction: 0.4,
			MaxSpawnChance: 1, NoiseScale: 0.15, NoiseThreshold: 0.5,
		}},
	}
	return &settings.Bundle{
		Settings: s,
		Templates: structures.Catalog{
			"box": {ID: "box", Width: 2, Height: 2, Layer: structures.LayerBase,
				Tiles: []world.TileID{tileWall, tileWall, tileWall, tileWall}},
		},
		Entities: []*entities.Definition{{
			ID: "kelp", Width: 1, Height: 2, Orientations: []entities.Orientation{entities.Ground},
			MinY: math.MinInt, MaxY: math.MaxInt,
		}},
	}
}

// flatRenderer returns an all-rock mask of the viewport size, synchronously.
type flatRenderer struct {
	mu    sync.Mutex
	calls int
	size  int
	err   error
	short bool
}

func (f *flatRenderer) Render(v mask.Viewport, done func(*mask.Buffer, error)) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if f.err != nil {
		done(nil, f.err)
		return
	}
	n := v.Chunks * f.size
	w := n
	if f.short {
		w = n - f.size
	}
	b := mask.NewBuffer(w, n, 3)
	for y := 0; y < n; y++ {
		for x := 0; x < w; x++ {
			b.Set(x, y, mask.ChannelCoverage, 255)
			b.Set(x, y, mask.ChannelMaterial, 64)
		}
	}
	done(b, nil)
}

// heldRenderer parks the completion callback until released.
type heldRenderer struct {
	inner Renderer
	held  chan func()
}

func (h *heldRenderer) Render(v mask.Viewport, done func(*mask.Buffer, error)) {
	h.held <- func() { h.inner.Render(v, done) }
}

type fakeRegistry struct {
	mu     sync.Mutex
	next   uint64
	calls  map[world.ChunkCoord]int
	ids    map[world.ChunkCoord][]uint64
	spawns map[world.ChunkCoord][]entities.SpawnInfo
}

func newFakeRegistry() *fakeRegistry {
	return &fakeRegistry{
		calls:  map[world.ChunkCoord]int{},
		ids:    map[world.ChunkCoord][]uint64{},
		spawns: map[world.ChunkCoord][]entities.SpawnInfo{},
	}
}

func (f *fakeRegistry) Register(coord world.ChunkCoord, spawns []entities.SpawnInfo) ([]uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[coord]++
	ids := make([]uint64, len(spawns))
	for i := range ids {
		f.next++
		ids[i] = f.next
	}
	f.ids[coord] = append(f.ids[coord], ids...)
	f.spawns[coord] = append(f.spawns[coord], spawns...)
	return ids, nil
}

func (f *fakeRegistry) InChunk(coord world.ChunkCoord) ([]uint64, []entities.SpawnInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.ids[coord], f.spawns[coord], nil
}

func newOrchestrator(b *settings.Bundle, r Renderer, reg EntityRegistry, workers int) (*Orchestrator, *world.Store, *structures.Registry) {
	store := world.NewStore(b.Settings.ChunkSize)
	structs := structures.NewRegistry()
	o := New(Config{
		Bundle:     b,
		Renderer:   r,
		Decoder:    mask.NewDecoder(mask.DefaultMaterials(), mask.DefaultBiomes(), testLogger()),
		Store:      store,
		Structures: structs,
		Registry:   reg,
		Workers:    workers,
	}, testLogger())
	return o, store, structs
}

func generate(t *testing.T, o *Orchestrator, req Request) Result {
	t.Helper()
	ch := make(chan Result, 1)
	if !o.Generate(req, func(r Result) { ch <- r }) {
		t.Fatal("Generate rejected an idle orchestrator")
	}
	select {
	case r := <-ch:
		return r
	case <-time.After(10 * time.Second):
		t.Fatal("generation did not complete")
	}
	return Result{}
}

func TestRequestCoordsOrder(t *testing.T) {
	req := Request{Center: world.ChunkCoord{X: 5, Y: -2}, Radius: 1}
	got := req.Coords()
	want := []world.ChunkCoord{
		{X: 4, Y: -3}, {X: 5, Y: -3}, {X: 6, Y: -3},
		{X: 4, Y: -2}, {X: 5, Y: -2}, {X: 6, Y: -2},
		{X: 4, Y: -1}, {X: 5, Y: -1}, {X: 6, Y: -1},
	}
	if len(got) != len(want) {
		t.Fatalf("coords = %d, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("coords[%d] = %v, want %v", i, got[i], want[i])
		}
	}
	if v := req.Viewport(); v.Origin != (world.ChunkCoord{X: 4, Y: -3}) || v.Chunks != 3 {
		t.Errorf("viewport = %+v", v)
	}
}

func TestGenerateFlatPass(t *testing.T) {
	reg := newFakeRegistry()
	r := &flatRenderer{size: 16}
	o, store, _ := newOrchestrator(testBundle(), r, reg, 4)

	req := Request{Center: world.ChunkCoord{X: 0, Y: -2}, Radius: 1}
	res := generate(t, o, req)

	coords := req.Coords()
	if len(res.Payloads) != len(coords) {
		t.Fatalf("payloads = %d, want %d", len(res.Payloads), len(coords))
	}
	for i, p := range res.Payloads {
		if p.Coord != coords[i] {
			t.Errorf("payload[%d] = %v, want %v", i, p.Coord, coords[i])
		}
		for j := range p.TileIDs {
			if p.TileIDs[j] == world.TileAir && p.OreIDs[j] != world.OreInvalid {
				t.Fatalf("payload %v cell %d is air with ore", p.Coord, j)
			}
		}
	}
	if o.State() != StateIdle {
		t.Errorf("state after pass = %v, want idle", o.State())
	}
	if store.Len() != len(coords) {
		t.Errorf("store holds %d chunks, want %d", store.Len(), len(coords))
	}
	// A solid mask has no open volume, so nothing spawns.
	for c, s := range res.Entities {
		if len(s) != 0 {
			t.Errorf("chunk %v spawned %d entities in solid rock", c, len(s))
		}
	}
}

func TestGenerateServesStoredChunks(t *testing.T) {
	r := &flatRenderer{size: 16}
	o, _, _ := newOrchestrator(testBundle(), r, nil, 2)

	req := Request{Center: world.ChunkCoord{X: 3, Y: -3}, Radius: 0}
	first := generate(t, o, req)
	second := generate(t, o, req)

	if r.calls != 1 {
		t.Errorf("renderer called %d times, want 1", r.calls)
	}
	if len(second.Payloads) != 1 || second.Payloads[0].Coord != req.Center {
		t.Fatalf("second pass payloads = %+v", second.Payloads)
	}
	if first.Chunks[req.Center].Digest() != second.Chunks[req.Center].Digest() {
		t.Error("stored chunk differs from generated one")
	}
}

func TestGenerateRejectsWhileBusy(t *testing.T) {
	h := &heldRenderer{inner: &flatRenderer{size: 16}, held: make(chan func(), 1)}
	o, _, _ := newOrchestrator(testBundle(), h, nil, 2)

	firstDone := make(chan Result, 1)
	if !o.Generate(Request{Radius: 0}, func(r Result) { firstDone <- r }) {
		t.Fatal("first request rejected")
	}
	release := <-h.held
	if o.State() != StateAwaitingReadback {
		t.Errorf("state = %v, want awaiting_readback", o.State())
	}

	var rejected Result
	called := false
	if o.Generate(Request{Center: world.ChunkCoord{X: 9}}, func(r Result) { rejected, called = r, true }) {
		t.Fatal("second request accepted while busy")
	}
	if !called || !rejected.Empty() {
		t.Fatal("rejected request should get an empty result synchronously")
	}

	release()
	if res := <-firstDone; len(res.Payloads) != 1 {
		t.Fatalf("first request payloads = %d, want 1", len(res.Payloads))
	}
}

func TestGenerateReadbackError(t *testing.T) {
	r := &flatRenderer{size: 16, err: errors.New("device lost")}
	o, store, _ := newOrchestrator(testBundle(), r, nil, 2)

	res := generate(t, o, Request{Radius: 1})
	if !res.Empty() {
		t.Fatalf("payloads = %d, want none after readback failure", len(res.Payloads))
	}
	if o.State() != StateIdle {
		t.Errorf("state = %v, want idle", o.State())
	}
	if store.Len() != 0 {
		t.Errorf("store holds %d chunks after failure", store.Len())
	}
}

func TestGenerateSkipsChunksOutsideMask(t *testing.T) {
	r := &flatRenderer{size: 16, short: true}
	o, _, _ := newOrchestrator(testBundle(), r, nil, 2)

	req := Request{Radius: 1}
	res := generate(t, o, req)
	// The mask lacks its right-most chunk column.
	if len(res.Payloads) != 6 {
		t.Fatalf("payloads = %d, want 6", len(res.Payloads))
	}
	for _, p := range res.Payloads {
		if p.Coord.X == 1 {
			t.Errorf("chunk %v outside the mask was returned", p.Coord)
		}
	}
}

func TestGenerateStampsStructures(t *testing.T) {
	b := testBundle()
	r := &flatRenderer{size: 16}
	o, _, structs := newOrchestrator(b, r, nil, 2)
	structs.Register("box", world.Point{X: 15, Y: -1}, 4)

	res := generate(t, o, Request{Center: world.ChunkCoord{X: 0, Y: 0}, Radius: 1})

	c := res.Chunks[world.ChunkCoord{X: 0, Y: -1}]
	if c == nil {
		t.Fatal("chunk (0,-1) missing")
	}
	if c.Tile(15, 15) != tileWall || c.Ore(15, 15) != world.OreInvalid {
		t.Errorf("stamped cell = %d/%d", c.Tile(15, 15), c.Ore(15, 15))
	}
	right := res.Chunks[world.ChunkCoord{X: 1, Y: 0}]
	if right.Tile(0, 0) != tileWall {
		t.Error("structure not stamped across the chunk corner")
	}
	if len(structs.Unfinished()) != 0 {
		t.Error("structure should be fully stamped")
	}
	if st := o.Stats(); st != (Stats{Chunks: 9, Structures: 1, Stamped: 1}) {
		t.Errorf("Stats = %+v", st)
	}

	// Payloads are built before stamping and receive every stamped cell.
	for _, p := range res.Payloads {
		cd := res.Chunks[p.Coord]
		for i := range cd.Tiles {
			if p.TileIDs[i] != cd.Tiles[i] || p.OreIDs[i] != cd.Ores[i] {
				t.Fatalf("payload %v cell %d = %d/%d, chunk has %d/%d",
					p.Coord, i, p.TileIDs[i], p.OreIDs[i], cd.Tiles[i], cd.Ores[i])
			}
		}
	}
}

func TestGenerateDeterministicAcrossWorkers(t *testing.T) {
	b := testBundle()
	req := Request{Center: world.ChunkCoord{X: 1, Y: -2}, Radius: 2}

	digests := func(workers int) map[world.ChunkCoord][32]byte {
		rast := mask.NewRasterizer(b.Settings, mask.DefaultMaterials(), mask.DefaultBiomes(), testLogger())
		o, _, _ := newOrchestrator(b, rast, nil, workers)
		res := generate(t, o, req)
		out := make(map[world.ChunkCoord][32]byte, len(res.Chunks))
		for c, cd := range res.Chunks {
			out[c] = cd.Digest()
		}
		return out
	}

	one := digests(1)
	many := digests(8)
	if len(one) != 25 || len(many) != 25 {
		t.Fatalf("chunks = %d / %d, want 25", len(one), len(many))
	}
	for c, d := range one {
		if many[c] != d {
			t.Errorf("chunk %v differs between 1 and 8 workers", c)
		}
	}
}

func TestGenerateRegistersEntities(t *testing.T) {
	b := testBundle()
	reg := newFakeRegistry()
	rast := mask.NewRasterizer(b.Settings, mask.DefaultMaterials(), mask.DefaultBiomes(), testLogger())
	o, _, _ := newOrchestrator(b, rast, reg, 4)

	// Straddle the sea floor so the kelp finds open water above rock.
	res := generate(t, o, Request{Center: world.ChunkCoord{X: 3, Y: 0}, Radius: 1})

	total := 0
	for _, p := range res.Payloads {
		total += len(p.EntityIDs)
		if want := len(res.Entities[p.Coord]); len(p.EntityIDs) != want {
			t.Errorf("chunk %v: %d ids for %d spawns", p.Coord, len(p.EntityIDs), want)
		}
	}
	if total == 0 {
		t.Fatal("expected kelp on the sea floor")
	}
}

func TestStoredChunksKeepEntities(t *testing.T) {
	b := testBundle()
	reg := newFakeRegistry()
	rast := mask.NewRasterizer(b.Settings, mask.DefaultMaterials(), mask.DefaultBiomes(), testLogger())
	o, _, _ := newOrchestrator(b, rast, reg, 4)

	req := Request{Center: world.ChunkCoord{X: 3, Y: 0}, Radius: 1}
	first := generate(t, o, req)
	second := generate(t, o, req)

	total := 0
	for _, p := range second.Payloads {
		got, want := second.Entities[p.Coord], first.Entities[p.Coord]
		if len(got) != len(want) {
			t.Errorf("chunk %v: %d entities from store, want %d", p.Coord, len(got), len(want))
			continue
		}
		for i := range want {
			if got[i] != want[i] {
				t.Errorf("chunk %v entity %d = %+v, want %+v", p.Coord, i, got[i], want[i])
			}
		}
		if len(p.EntityIDs) != len(got) {
			t.Errorf("chunk %v: %d ids for %d entities", p.Coord, len(p.EntityIDs), len(got))
		}
		total += len(got)
	}
	if total == 0 {
		t.Fatal("expected kelp on the sea floor")
	}
	for c, n := range reg.calls {
		if n != 1 {
			t.Errorf("chunk %v registered %d times, want once", c, n)
		}
	}
}
