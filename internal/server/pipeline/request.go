package pipeline

import (
	"github.com/OCharnyshevich/abyss/internal/server/entities"
	"github.com/OCharnyshevich/abyss/internal/server/mask"
	"github.com/OCharnyshevich/abyss/internal/server/payload"
	"github.com/OCharnyshevich/abyss/internal/server/world"
)

// Request asks for the square of chunks within Radius of Center.
type Request struct {
	Center world.ChunkCoord
	Radius int
}

// Viewport returns the rasterization viewport covering the request.
func (r Request) Viewport() mask.Viewport {
	rad := max(r.Radius, 0)
	return mask.Viewport{
		Origin: world.ChunkCoord{X: r.Center.X - rad, Y: r.Center.Y - rad},
		Chunks: 2*rad + 1,
	}
}

// Coords lists the requested chunks row by row from the bottom, x inner.
func (r Request) Coords() []world.ChunkCoord {
	v := r.Viewport()
	out := make([]world.ChunkCoord, 0, v.Chunks*v.Chunks)
	for dy := 0; dy < v.Chunks; dy++ {
		for dx := 0; dx < v.Chunks; dx++ {
			out = append(out, world.ChunkCoord{X: v.Origin.X + dx, Y: v.Origin.Y + dy})
		}
	}
	return out
}

// Result is delivered to the completion callback. Payloads follow the
// request's coordinate order; missing chunks are simply absent.
type Result struct {
	Payloads []*payload.ChunkPayload
	Chunks   map[world.ChunkCoord]*world.ChunkData
	Entities map[world.ChunkCoord][]entities.SpawnInfo
}

// Empty reports whether the result carries no chunks.
func (r Result) Empty() bool {
	return len(r.Payloads) == 0
}

// Stats summarises what the orchestrator has produced so far.
type Stats struct {
	Chunks     int `json:"chunks"`
	Structures int `json:"structures"`
	Stamped    int `json:"stamped"`
}
