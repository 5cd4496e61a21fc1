package structures

import (
	"log/slog"

	"github.com/OCharnyshevich/abyss/internal/server/payload"
	"github.com/OCharnyshevich/abyss/internal/server/world"
)

// Coverage reports how many cells of a placement one chunk received.
type Coverage struct {
	PlacementID uint64
	Chunk       world.ChunkCoord
	Cells       int
}

// Stamper writes templates into chunks. It runs after all per-chunk jobs have
// joined and is the last writer for every cell it touches.
type Stamper struct {
	templates Source
	log       *slog.Logger
}

// NewStamper creates a stamper backed by the given templates.
func NewStamper(templates Source, log *slog.Logger) *Stamper {
	return &Stamper{templates: templates, log: log}
}

// Stamp applies every placement to every chunk it intersects. When payloads
// holds an entry for a chunk, stamped cells are mirrored into it.
func (s *Stamper) Stamp(
	placements []Placement,
	chunks []*world.ChunkData,
	payloads map[world.ChunkCoord]*payload.ChunkPayload,
) []Coverage {
	var out []Coverage
	for _, pl := range placements {
		tpl, ok := s.templates.Template(pl.TemplateID)
		if !ok {
			s.log.Warn("structure template missing", "template", pl.TemplateID, "placement", pl.ID)
			continue
		}
		rect := tpl.Bounds(pl.Anchor)

		for _, c := range chunks {
			overlap := rect.Intersect(c.Bounds())
			if overlap.Empty() {
				continue
			}
			s.stampChunk(tpl, pl.Anchor, overlap, c, payloads[c.Coord])
			out = append(out, Coverage{PlacementID: pl.ID, Chunk: c.Coord, Cells: overlap.Area()})
		}
	}
	return out
}

func (s *Stamper) stampChunk(tpl *Template, anchor world.Point, overlap world.Rect, c *world.ChunkData, mirror *payload.ChunkPayload) {
	origin := c.Coord.Origin(c.Size)

	for wy := overlap.MinY; wy <= overlap.MaxY; wy++ {
		for wx := overlap.MinX; wx <= overlap.MaxX; wx++ {
			src := tpl.At(wx-anchor.X, wy-anchor.Y)
			lx, ly := wx-origin.X, wy-origin.Y
			i := c.Index(lx, ly)

			switch tpl.Layer {
			case LayerOre:
				if src == world.TileAir {
					c.Tiles[i] = world.TileAir
					c.Ores[i] = world.OreInvalid
				} else {
					c.Tiles[i] = tpl.Fallback
					c.Ores[i] = src
				}
			default:
				c.Tiles[i] = src
				c.Ores[i] = world.OreInvalid
			}

			if mirror != nil {
				mirror.SetCell(i, c.Tiles[i], c.Ores[i])
			}
		}
	}
}
