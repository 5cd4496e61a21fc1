package entities

import "github.com/OCharnyshevich/abyss/internal/server/world"

// Definition describes where an entity may spawn.
type Definition struct {
	ID string

	// Width columns wide, Height empty rows above a solid anchor row.
	// AnchorX is the anchor's column inside the width.
	Width   int
	Height  int
	AnchorX int

	Orientations []Orientation

	NoiseFrequency float64
	NoiseOffsetX   float64
	NoiseOffsetY   float64
	NoiseThreshold float64

	MinY, MaxY int
	Biomes     world.BiomeMask
}

// Requirement is one cell an entity needs, relative to its anchor in
// canonical orientation.
type Requirement struct {
	Offset world.Point
	Solid  bool
}

// Footprint returns the number of volume cells the entity occupies.
func (d *Definition) Footprint() int {
	return d.Width * d.Height
}

// Requirements lists the anchor row (y=0, solid) followed by the volume
// (y>0, empty).
func (d *Definition) Requirements() []Requirement {
	out := make([]Requirement, 0, d.Width*(d.Height+1))
	for y := 0; y <= d.Height; y++ {
		for x := -d.AnchorX; x < d.Width-d.AnchorX; x++ {
			out = append(out, Requirement{
				Offset: world.Point{X: x, Y: y},
				Solid:  y <= 0,
			})
		}
	}
	return out
}

// SpawnInfo is a discovered spawn point.
type SpawnInfo struct {
	Type        string
	Position    world.Point
	Orientation Orientation
}
