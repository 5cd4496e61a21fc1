package structures

import (
	"sync"

	"github.com/OCharnyshevich/abyss/internal/server/world"
)

// Placement is a registered structure instance.
type Placement struct {
	ID         uint64
	TemplateID string
	Anchor     world.Point
	Stamped    bool
}

type placementState struct {
	Placement
	area    int
	covered int
	chunks  map[world.ChunkCoord]bool
}

// Registry tracks structure placements across generation passes.
type Registry struct {
	mu     sync.Mutex
	nextID uint64
	items  []*placementState
	byID   map[uint64]*placementState
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{byID: make(map[uint64]*placementState)}
}

// Register adds a placement whose template covers area cells.
func (r *Registry) Register(templateID string, anchor world.Point, area int) Placement {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.nextID++
	ps := &placementState{
		Placement: Placement{ID: r.nextID, TemplateID: templateID, Anchor: anchor},
		area:      area,
		chunks:    make(map[world.ChunkCoord]bool),
	}
	r.items = append(r.items, ps)
	r.byID[ps.ID] = ps
	return ps.Placement
}

// Unfinished returns snapshots of placements not yet fully stamped, in
// registration order.
func (r *Registry) Unfinished() []Placement {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]Placement, 0, len(r.items))
	for _, ps := range r.items {
		if !ps.Stamped {
			out = append(out, ps.Placement)
		}
	}
	return out
}

// All returns snapshots of every placement.
func (r *Registry) All() []Placement {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]Placement, len(r.items))
	for i, ps := range r.items {
		out[i] = ps.Placement
	}
	return out
}

// MarkCovered records that a chunk received cells of a placement. A chunk is
// only counted once. The placement becomes stamped when every cell is covered.
func (r *Registry) MarkCovered(cov Coverage) {
	r.mu.Lock()
	defer r.mu.Unlock()

	ps, ok := r.byID[cov.PlacementID]
	if !ok || ps.chunks[cov.Chunk] {
		return
	}
	ps.chunks[cov.Chunk] = true
	ps.covered += cov.Cells
	if ps.covered >= ps.area {
		ps.Stamped = true
	}
}
