// Package pipeline drives chunk generation end to end: render, readback,
// decode, parallel per-chunk jobs, structure stamping and payload assembly.
package pipeline

import (
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/OCharnyshevich/abyss/internal/server/entities"
	"github.com/OCharnyshevich/abyss/internal/server/mask"
	"github.com/OCharnyshevich/abyss/internal/server/ores"
	"github.com/OCharnyshevich/abyss/internal/server/payload"
	"github.com/OCharnyshevich/abyss/internal/server/settings"
	"github.com/OCharnyshevich/abyss/internal/server/structures"
	"github.com/OCharnyshevich/abyss/internal/server/world"
	"github.com/OCharnyshevich/abyss/internal/server/world/gen"
)

// Renderer produces a mask for a viewport and reports completion
// asynchronously.
type Renderer interface {
	Render(v mask.Viewport, done func(*mask.Buffer, error))
}

// EntityRegistry issues persistent ids for discovered spawns and lists what
// a chunk already holds.
type EntityRegistry interface {
	Register(coord world.ChunkCoord, spawns []entities.SpawnInfo) ([]uint64, error)
	InChunk(coord world.ChunkCoord) ([]uint64, []entities.SpawnInfo, error)
}

// Orchestrator runs one generation pass at a time.
type Orchestrator struct {
	state atomic.Int32

	bundle     *settings.Bundle
	renderer   Renderer
	decoder    *mask.Decoder
	ores       *ores.Processor
	searcher   *entities.Searcher
	stamper    *structures.Stamper
	structures *structures.Registry
	registry   EntityRegistry
	store      *world.Store
	workers    int
	log        *slog.Logger

	// Only touched by the active pass.
	entityIDs map[world.ChunkCoord][]uint64
}

// Config wires an Orchestrator's collaborators. Registry may be nil.
type Config struct {
	Bundle     *settings.Bundle
	Renderer   Renderer
	Decoder    *mask.Decoder
	Store      *world.Store
	Structures *structures.Registry
	Registry   EntityRegistry
	Workers    int
}

// New creates an idle orchestrator.
func New(cfg Config, log *slog.Logger) *Orchestrator {
	s := cfg.Bundle.Settings
	workers := cfg.Workers
	if workers <= 0 {
		workers = 1
	}
	return &Orchestrator{
		bundle:     cfg.Bundle,
		renderer:   cfg.Renderer,
		decoder:    cfg.Decoder,
		ores:       ores.NewProcessor(s),
		searcher:   entities.NewSearcher(s.Seed, cfg.Bundle.Entities, cfg.Bundle.EntityGate, log),
		stamper:    structures.NewStamper(cfg.Bundle, log),
		structures: cfg.Structures,
		registry:   cfg.Registry,
		store:      cfg.Store,
		workers:    workers,
		log:        log,
		entityIDs:  make(map[world.ChunkCoord][]uint64),
	}
}

// State returns the current pipeline state.
func (o *Orchestrator) State() State {
	return State(o.state.Load())
}

// Stats reports stored chunks and structure progress. It is safe to call
// while a pass is running.
func (o *Orchestrator) Stats() Stats {
	st := Stats{Chunks: o.store.Len()}
	if o.structures == nil {
		return st
	}
	for _, p := range o.structures.All() {
		st.Structures++
		if p.Stamped {
			st.Stamped++
		}
	}
	return st
}

func (o *Orchestrator) setState(s State) {
	o.state.Store(int32(s))
}

// Generate starts a pass for req. If another pass is in flight the request is
// rejected: done receives an empty result immediately and Generate returns
// false. Otherwise done is called once, from another goroutine, when the pass
// finishes or fails.
func (o *Orchestrator) Generate(req Request, done func(Result)) bool {
	if !o.state.CompareAndSwap(int32(StateIdle), int32(StateAwaitingRender)) {
		o.log.Debug("generation rejected, pass in flight", "state", o.State())
		done(Result{})
		return false
	}

	coords := req.Coords()
	var missing []world.ChunkCoord
	for _, c := range coords {
		if !o.store.Has(c) {
			missing = append(missing, c)
		}
	}
	start := time.Now()

	if len(missing) == 0 {
		go o.guard(done, func() Result {
			o.setState(StateAssembling)
			return o.assemble(coords, nil, nil, nil)
		})
		return true
	}

	vp := req.Viewport()
	o.setState(StateAwaitingReadback)
	o.renderer.Render(vp, func(buf *mask.Buffer, err error) {
		if err != nil {
			o.log.Warn("mask readback failed", "error", err)
			o.setState(StateIdle)
			done(Result{})
			return
		}
		o.guard(done, func() Result {
			res := o.run(buf, vp, coords, missing)
			o.log.Info("chunks generated",
				"center", req.Center, "radius", req.Radius,
				"generated", len(missing), "served", len(res.Payloads),
				"elapsed", time.Since(start))
			return res
		})
	})
	return true
}

// guard runs a pass body, returning to Idle before done is called. A panic in
// the body yields an empty result.
func (o *Orchestrator) guard(done func(Result), body func() Result) {
	var res Result
	func() {
		defer func() {
			if r := recover(); r != nil {
				o.log.Error("generation pass panicked", "panic", r)
				res = Result{}
			}
		}()
		res = body()
	}()
	o.setState(StateIdle)
	done(res)
}

type slot struct {
	chunk  *world.ChunkData
	ores   []world.TileID
	spawns entities.Result
}

func (o *Orchestrator) run(buf *mask.Buffer, vp mask.Viewport, coords, missing []world.ChunkCoord) Result {
	size := o.bundle.Settings.ChunkSize

	o.setState(StateDecoding)
	decoded := o.decoder.Decode(buf, missing, vp.Origin, size)

	o.setState(StateRunningJobs)
	arena := make([]slot, len(decoded))
	batch := make(map[world.ChunkCoord]*world.ChunkData, len(decoded))
	for i, c := range decoded {
		arena[i].chunk = c
		batch[c.Coord] = c
	}
	if err := o.runJobs(arena, batch); err != nil {
		o.log.Error("chunk jobs failed", "error", err)
	}

	fresh := make(map[world.ChunkCoord]*world.ChunkData, len(arena))
	built := make(map[world.ChunkCoord]*payload.ChunkPayload, len(arena))
	spawns := make(map[world.ChunkCoord][]entities.SpawnInfo, len(arena))
	for i := range arena {
		s := &arena[i]
		if s.ores != nil {
			ores.Apply(s.chunk, s.ores)
		}
		fresh[s.chunk.Coord] = s.chunk
		built[s.chunk.Coord] = payload.FromChunk(s.chunk)
		spawns[s.chunk.Coord] = s.spawns.Spawns
		s.ores, s.spawns = nil, entities.Result{}
	}

	o.setState(StateStamping)
	o.stamp(decoded, built)
	o.store.Commit(fresh)

	o.setState(StateAssembling)
	return o.assemble(coords, fresh, built, spawns)
}

// runJobs runs one ore task and one entity task per chunk. Each task writes
// only its own slot; tiles are read-only until Wait returns.
func (o *Orchestrator) runJobs(arena []slot, batch map[world.ChunkCoord]*world.ChunkData) error {
	seed := o.bundle.Settings.Seed
	lookup := entities.LookupFunc(func(x, y int) (world.TileID, bool) {
		coord, local := world.ChunkOf(world.Point{X: x, Y: y}, o.store.ChunkSize())
		if c, ok := batch[coord]; ok {
			return c.Tile(local.X, local.Y), true
		}
		return o.store.TileAt(x, y)
	})

	var g errgroup.Group
	g.SetLimit(o.workers)
	for i := range arena {
		s := &arena[i]
		g.Go(func() (err error) {
			defer recoverTask(&err, "ore", s.chunk.Coord)
			s.ores = o.ores.Run(s.chunk)
			return nil
		})
		g.Go(func() (err error) {
			defer recoverTask(&err, "entity", s.chunk.Coord)
			cs := gen.DeriveChunkSeed(seed, s.chunk.Coord.X, s.chunk.Coord.Y)
			s.spawns = o.searcher.Search(s.chunk, cs, lookup)
			return nil
		})
	}
	return g.Wait()
}

func recoverTask(err *error, kind string, coord world.ChunkCoord) {
	if r := recover(); r != nil {
		*err = fmt.Errorf("%s task for chunk %s: %v", kind, coord, r)
	}
}

// stamp writes unfinished structures into chunks and mirrors every stamped
// cell into the chunk's payload.
func (o *Orchestrator) stamp(chunks []*world.ChunkData, built map[world.ChunkCoord]*payload.ChunkPayload) {
	if o.structures == nil || len(chunks) == 0 {
		return
	}
	for _, cov := range o.stamper.Stamp(o.structures.Unfinished(), chunks, built) {
		o.structures.MarkCovered(cov)
	}
}

func (o *Orchestrator) assemble(
	coords []world.ChunkCoord,
	fresh map[world.ChunkCoord]*world.ChunkData,
	built map[world.ChunkCoord]*payload.ChunkPayload,
	spawns map[world.ChunkCoord][]entities.SpawnInfo,
) Result {
	all := make(map[world.ChunkCoord]*world.ChunkData, len(coords))
	for _, c := range coords {
		if cd, ok := fresh[c]; ok {
			all[c] = cd
		} else if cd, ok := o.store.Get(c); ok {
			all[c] = cd
		}
	}

	entitiesOut := make(map[world.ChunkCoord][]entities.SpawnInfo, len(all))
	for _, c := range coords {
		if _, ok := all[c]; !ok {
			continue
		}
		if list, ok := spawns[c]; ok {
			entitiesOut[c] = list
			o.register(c, list)
			continue
		}
		entitiesOut[c] = o.stored(c)
	}

	return Result{
		Payloads: payload.Assemble(coords, all, built, o.entityIDs),
		Chunks:   all,
		Entities: entitiesOut,
	}
}

// register issues ids for a freshly generated chunk's spawns.
func (o *Orchestrator) register(c world.ChunkCoord, list []entities.SpawnInfo) {
	if o.registry == nil || len(list) == 0 {
		return
	}
	ids, err := o.registry.Register(c, list)
	if err != nil {
		o.log.Warn("entity registration failed", "chunk", c, "error", err)
		return
	}
	o.entityIDs[c] = ids
}

// stored rebuilds the spawn list of a chunk served from the store, refreshing
// its ids from the registry.
func (o *Orchestrator) stored(c world.ChunkCoord) []entities.SpawnInfo {
	if o.registry == nil {
		return nil
	}
	ids, list, err := o.registry.InChunk(c)
	if err != nil {
		o.log.Warn("entity lookup failed", "chunk", c, "error", err)
		return nil
	}
	if len(ids) > 0 {
		o.entityIDs[c] = ids
	}
	return list
}

// RegisterFeatures records every resolved feature placement with the
// structure registry.
func RegisterFeatures(b *settings.Bundle, reg *structures.Registry) int {
	n := 0
	for _, f := range b.Settings.Features {
		tpl, ok := b.Template(f.TemplateID)
		if !ok {
			continue
		}
		reg.Register(f.TemplateID, f.Anchor, tpl.Width*tpl.Height)
		n++
	}
	return n
}
