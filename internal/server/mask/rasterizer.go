package mask

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"log/slog"
	"math"

	"github.com/nfnt/resize"

	"github.com/OCharnyshevich/abyss/internal/server/settings"
	"github.com/OCharnyshevich/abyss/internal/server/world"
	"github.com/OCharnyshevich/abyss/internal/server/world/gen"
)

const (
	saltCaves  = 0x63617665
	saltWobble = 0x776f6262
)

// Viewport is a square block of chunks to rasterize. Origin is the
// bottom-left chunk.
type Viewport struct {
	Origin world.ChunkCoord
	Chunks int
}

// Rasterizer is the software rendering backend. It paints the trench, caves,
// rock toughness and biome bands for a viewport.
type Rasterizer struct {
	s         *settings.WorldGenSettings
	caves     *gen.NoiseGenerator
	wobble    *gen.NoiseGenerator
	materials MaterialTable
	biomes    BiomeTable
	log       *slog.Logger
}

// NewRasterizer creates a rasterizer for the given settings.
func NewRasterizer(s *settings.WorldGenSettings, materials MaterialTable, biomes BiomeTable, log *slog.Logger) *Rasterizer {
	return &Rasterizer{
		s:         s,
		caves:     gen.NewNoiseGenerator(s.Seed ^ saltCaves),
		wobble:    gen.NewNoiseGenerator(s.Seed ^ saltWobble),
		materials: materials,
		biomes:    biomes,
		log:       log,
	}
}

// Render paints v on its own goroutine and delivers the readback to done.
func (r *Rasterizer) Render(v Viewport, done func(*Buffer, error)) {
	go func() {
		img, err := r.Paint(v)
		if err != nil {
			done(nil, err)
			return
		}
		done(FromImage(img), nil)
	}()
}

// Paint rasterizes v into an image with one pixel per tile, top row first.
func (r *Rasterizer) Paint(v Viewport) (*image.NRGBA, error) {
	if v.Chunks <= 0 {
		return nil, errors.New("viewport has no chunks")
	}
	size := v.Chunks * r.s.ChunkSize
	if size > 1<<14 {
		return nil, fmt.Errorf("viewport of %d tiles too large", size)
	}

	img := image.NewNRGBA(image.Rect(0, 0, size, size))
	base := v.Origin.Origin(r.s.ChunkSize)

	for py := 0; py < size; py++ {
		wy := base.Y + size - 1 - py
		for px := 0; px < size; px++ {
			wx := base.X + px
			tile, biome := r.Classify(wx, wy)
			code, ok := r.materials.Encode(tile)
			if !ok {
				code = 0
			}
			img.SetNRGBA(px, py, color.NRGBA{R: 255, G: code, B: r.biomes.Encode(biome), A: 255})
		}
	}
	return img, nil
}

// Classify returns the base material and biome of a world cell.
func (r *Rasterizer) Classify(wx, wy int) (world.TileID, world.BiomeID) {
	s := r.s
	p := world.Point{X: wx, Y: wy}

	if wy > 0 {
		return world.TileAir, world.BiomeShallows
	}

	if half := s.TrenchHalfWidth(wy); half >= 0 {
		center := float64(s.Trench.CenterX)
		if s.Trench.Wobble > 0 {
			center += r.wobble.Noise2D(float64(wy)*s.Trench.WobbleScale, 0) * s.Trench.Wobble
		}
		if math.Abs(float64(wx)-center) <= half {
			return world.TileAir, world.BiomeTrench
		}
	}

	biome, ok := s.BiomeAt(p)
	if !ok && -wy < s.Terrain.ShallowsDepth {
		biome = world.BiomeShallows
	}

	if s.Terrain.CaveScale > 0 {
		n := r.caves.OctaveNoise2D(float64(wx)*s.Terrain.CaveScale, float64(wy)*s.Terrain.CaveScale, max(s.Terrain.CaveOctaves, 1), 0.5)
		if gen.Noise01(n) > s.Terrain.CaveThreshold {
			return world.TileAir, biome
		}
	}

	f := s.DepthFraction(wy)
	switch {
	case s.Terrain.VeryToughFraction > 0 && f >= s.Terrain.VeryToughFraction:
		return world.TileVeryToughRock, biome
	case s.Terrain.ToughFraction > 0 && f >= s.Terrain.ToughFraction:
		return world.TileToughRock, biome
	default:
		return world.TileRock, biome
	}
}

// Preview scales a buffer up for inspection.
func Preview(b *Buffer, scale int) image.Image {
	img := b.Image()
	if scale <= 1 {
		return img
	}
	return resize.Resize(uint(b.Width*scale), uint(b.Height*scale), img, resize.NearestNeighbor)
}
